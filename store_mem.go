package colldb

import (
	"bytes"
	"context"
	"iter"
	"slices"
	"sort"
	"sync"
)

type memStore struct {
	mu     sync.Mutex
	items  []memEntry // sorted by raw key
	seq    uint64
	closed bool
}

type memEntry struct {
	raw   []byte
	value []byte
	stamp Versionstamp
}

// NewMemoryStore returns a transient in-memory Store implementation intended
// for tests and embedding.
func NewMemoryStore() Store {
	return &memStore{}
}

func (s *memStore) Get(ctx context.Context, key Key) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw := key.encoded()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	i, ok := s.find(raw)
	if !ok {
		return nil, nil
	}
	it := s.items[i]
	return &Entry{Key: slices.Clone(key), Value: slices.Clone(it.value), Versionstamp: it.stamp}, nil
}

func (s *memStore) Set(ctx context.Context, key Key, value []byte) (Versionstamp, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw := key.encoded()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrStoreClosed
	}
	s.seq++
	stamp := formatVersionstamp(s.seq)
	i, ok := s.find(raw)
	if ok {
		s.items[i].value = slices.Clone(value)
		s.items[i].stamp = stamp
	} else {
		s.items = slices.Insert(s.items, i, memEntry{raw: raw, value: slices.Clone(value), stamp: stamp})
	}
	return stamp, nil
}

func (s *memStore) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw := key.encoded()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	i, ok := s.find(raw)
	if !ok {
		return nil
	}
	s.items = slices.Delete(s.items, i, i+1)
	return nil
}

// Scan re-seeks by the last returned key on every step, so the sequence stays
// valid across concurrent mutation and makes no snapshot promise.
func (s *memStore) Scan(ctx context.Context, prefix Key, opt ScanOptions) iter.Seq2[Entry, error] {
	lo := prefix.encoded()
	var sa, eb []byte
	if opt.StartAfter != nil {
		sa = opt.StartAfter.encoded()
	}
	if opt.EndBefore != nil {
		eb = opt.EndBefore.encoded()
	}
	return func(yield func(Entry, error) bool) {
		var last []byte
		started := false
		count := 0
		for {
			if opt.Limit > 0 && count >= opt.Limit {
				return
			}
			if err := ctx.Err(); err != nil {
				yield(Entry{}, err)
				return
			}
			it, ok, err := s.scanStep(lo, sa, eb, last, started, opt.Reverse)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !ok {
				return
			}
			key, err := decodeKey(it.raw)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !yield(Entry{Key: key, Value: it.value, Versionstamp: it.stamp}, nil) {
				return
			}
			last, started = it.raw, true
			count++
		}
	}
}

func (s *memStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.items = nil
	return nil
}

func (s *memStore) find(raw []byte) (idx int, ok bool) {
	items := s.items
	i := sort.Search(len(items), func(i int) bool {
		return bytes.Compare(items[i].raw, raw) >= 0
	})
	if i < len(items) && bytes.Equal(items[i].raw, raw) {
		return i, true
	}
	return i, false
}

func (s *memStore) scanStep(lo, sa, eb, last []byte, started, reverse bool) (memEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return memEntry{}, false, ErrStoreClosed
	}

	var i int
	if reverse {
		if started {
			i, _ = s.find(last)
			i--
		} else {
			hi := prefixSuccessor(lo)
			if eb != nil && (hi == nil || bytes.Compare(eb, hi) < 0) {
				hi = eb
			}
			if hi != nil {
				i, _ = s.find(hi)
				i--
			} else {
				i = len(s.items) - 1
			}
		}
		if i < 0 {
			return memEntry{}, false, nil
		}
		it := s.items[i]
		if !bytes.HasPrefix(it.raw, lo) {
			return memEntry{}, false, nil
		}
		if started && eb != nil && bytes.Compare(it.raw, eb) >= 0 {
			return memEntry{}, false, nil
		}
		if sa != nil && bytes.Compare(it.raw, sa) <= 0 {
			return memEntry{}, false, nil
		}
		return it.clone(), true, nil
	}

	if started {
		var exact bool
		i, exact = s.find(last)
		if exact {
			i++
		}
	} else if sa != nil && bytes.Compare(sa, lo) >= 0 {
		var exact bool
		i, exact = s.find(sa)
		if exact {
			i++
		}
	} else {
		i, _ = s.find(lo)
	}
	if i >= len(s.items) {
		return memEntry{}, false, nil
	}
	it := s.items[i]
	if !bytes.HasPrefix(it.raw, lo) {
		return memEntry{}, false, nil
	}
	if eb != nil && bytes.Compare(it.raw, eb) >= 0 {
		return memEntry{}, false, nil
	}
	return it.clone(), true, nil
}

func (it memEntry) clone() memEntry {
	return memEntry{
		raw:   slices.Clone(it.raw),
		value: slices.Clone(it.value),
		stamp: it.stamp,
	}
}
