package colldb

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"iter"
	"slices"
	"time"

	"go.etcd.io/bbolt"
)

var dataBucketName = []byte("data")

type boltStore struct {
	bdb *bbolt.DB
}

type BoltOptions struct {
	IsTesting bool
	MmapSize  int
}

// OpenBolt opens a persistent Store backed by a Bolt database file.
func OpenBolt(path string, opt BoltOptions) (Store, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 1024
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("colldb: %w", err)
	}
	err = bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(dataBucketName)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("colldb: %w", err)
	}
	return &boltStore{bdb: bdb}, nil
}

func (s *boltStore) Bolt() *bbolt.DB {
	return s.bdb
}

// Bolt value layout: 8-byte big-endian versionstamp sequence, then payload.

func putBoltValue(seq uint64, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(buf, seq)
	copy(buf[8:], payload)
	return buf
}

func parseBoltValue(raw []byte) (uint64, []byte, error) {
	if len(raw) < 8 {
		return 0, nil, fmt.Errorf("invalid stored value: %d bytes", len(raw))
	}
	return binary.BigEndian.Uint64(raw), raw[8:], nil
}

func (s *boltStore) Get(ctx context.Context, key Key) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entry *Entry
	err := s.bdb.View(func(btx *bbolt.Tx) error {
		raw := btx.Bucket(dataBucketName).Get(key.encoded())
		if raw == nil {
			return nil
		}
		seq, payload, err := parseBoltValue(raw)
		if err != nil {
			return err
		}
		entry = &Entry{
			Key:          slices.Clone(key),
			Value:        slices.Clone(payload),
			Versionstamp: formatVersionstamp(seq),
		}
		return nil
	})
	if err != nil {
		return nil, mapBoltErr(err)
	}
	return entry, nil
}

func (s *boltStore) Set(ctx context.Context, key Key, value []byte) (Versionstamp, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var stamp Versionstamp
	err := s.bdb.Update(func(btx *bbolt.Tx) error {
		b := btx.Bucket(dataBucketName)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		stamp = formatVersionstamp(seq)
		return b.Put(key.encoded(), putBoltValue(seq, value))
	})
	if err != nil {
		return "", mapBoltErr(err)
	}
	return stamp, nil
}

func (s *boltStore) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.bdb.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(dataBucketName).Delete(key.encoded())
	})
	return mapBoltErr(err)
}

func (s *boltStore) Scan(ctx context.Context, prefix Key, opt ScanOptions) iter.Seq2[Entry, error] {
	lo := prefix.encoded()
	var sa, eb []byte
	if opt.StartAfter != nil {
		sa = opt.StartAfter.encoded()
	}
	if opt.EndBefore != nil {
		eb = opt.EndBefore.encoded()
	}
	return func(yield func(Entry, error) bool) {
		btx, err := s.bdb.Begin(false)
		if err != nil {
			yield(Entry{}, mapBoltErr(err))
			return
		}
		defer btx.Rollback()
		c := btx.Bucket(dataBucketName).Cursor()

		var k, v []byte
		if opt.Reverse {
			k, v = boltSeekLast(c, lo, eb)
		} else if sa != nil && bytes.Compare(sa, lo) >= 0 {
			k, v = c.Seek(sa)
			if k != nil && bytes.Equal(k, sa) {
				k, v = c.Next()
			}
		} else {
			k, v = c.Seek(lo)
		}

		count := 0
		for k != nil {
			if opt.Limit > 0 && count >= opt.Limit {
				return
			}
			if err := ctx.Err(); err != nil {
				yield(Entry{}, err)
				return
			}
			if !bytes.HasPrefix(k, lo) {
				return
			}
			if opt.Reverse {
				if sa != nil && bytes.Compare(k, sa) <= 0 {
					return
				}
			} else {
				if eb != nil && bytes.Compare(k, eb) >= 0 {
					return
				}
			}

			key, err := decodeKey(k)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			seq, payload, err := parseBoltValue(v)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			entry := Entry{
				Key:          key,
				Value:        slices.Clone(payload),
				Versionstamp: formatVersionstamp(seq),
			}
			if !yield(entry, nil) {
				return
			}
			count++

			if opt.Reverse {
				k, v = c.Prev()
			} else {
				k, v = c.Next()
			}
		}
	}
}

// boltSeekLast positions the cursor on the last key below both the
// prefix-successor of lo and the optional exclusive upper bound.
func boltSeekLast(c *bbolt.Cursor, lo, eb []byte) ([]byte, []byte) {
	hi := prefixSuccessor(lo)
	if eb != nil && (hi == nil || bytes.Compare(eb, hi) < 0) {
		hi = eb
	}
	if hi == nil {
		return c.Last()
	}
	k, _ := c.Seek(hi)
	if k == nil {
		return c.Last()
	}
	return c.Prev()
}

func (s *boltStore) Close() error {
	return s.bdb.Close()
}

func mapBoltErr(err error) error {
	if err == bbolt.ErrDatabaseNotOpen || err == bbolt.ErrTxClosed {
		return ErrStoreClosed
	}
	return err
}
