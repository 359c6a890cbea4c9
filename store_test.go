package colldb

import (
	"context"
	"testing"
)

func scanKeys(t testing.TB, store Store, prefix Key, opt ScanOptions) []string {
	t.Helper()
	var out []string
	for entry, err := range store.Scan(context.Background(), prefix, opt) {
		if err != nil {
			t.Fatalf("** scan failed: %v", err)
		}
		out = append(out, entry.Key.String())
	}
	return out
}

func TestStoreBasics(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		t.Cleanup(func() { store.Close() })
		ctx := context.Background()

		entry, err := store.Get(ctx, Key{"a", "1"})
		nofail(t, err)
		if entry != nil {
			t.Fatalf("** got %v, wanted absent", entry)
		}

		v1, err := store.Set(ctx, Key{"a", "1"}, []byte("one"))
		nofail(t, err)
		v2, err := store.Set(ctx, Key{"a", "1"}, []byte("two"))
		nofail(t, err)
		if v2 <= v1 {
			t.Errorf("** versionstamp did not advance: %s -> %s", v1, v2)
		}

		entry, err = store.Get(ctx, Key{"a", "1"})
		nofail(t, err)
		if entry == nil {
			t.Fatalf("** got absent, wanted entry")
		}
		deepEqual(t, string(entry.Value), "two")
		deepEqual(t, entry.Versionstamp, v2)
		deepEqual(t, entry.Key, Key{"a", "1"})

		nofail(t, store.Delete(ctx, Key{"a", "1"}))
		nofail(t, store.Delete(ctx, Key{"a", "1"})) // deleting absent key is not an error

		entry, err = store.Get(ctx, Key{"a", "1"})
		nofail(t, err)
		if entry != nil {
			t.Fatalf("** got %v, wanted absent", entry)
		}
	})
}

func TestStoreScan(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		t.Cleanup(func() { store.Close() })
		ctx := context.Background()

		for _, k := range []Key{
			{"a", "1"}, {"a", "2"}, {"a", "3"},
			{"ab", "1"},
			{"b", "1"},
		} {
			must(store.Set(ctx, k, nil))
		}

		deepEqual(t, scanKeys(t, store, Key{"a"}, ScanOptions{}), []string{"a/1", "a/2", "a/3"})
		deepEqual(t, scanKeys(t, store, Key{"ab"}, ScanOptions{}), []string{"ab/1"})
		deepEqual(t, scanKeys(t, store, nil, ScanOptions{}), []string{"a/1", "a/2", "a/3", "ab/1", "b/1"})
		deepEqual(t, scanKeys(t, store, Key{"c"}, ScanOptions{}), []string(nil))

		deepEqual(t, scanKeys(t, store, Key{"a"}, ScanOptions{Reverse: true}), []string{"a/3", "a/2", "a/1"})
		deepEqual(t, scanKeys(t, store, nil, ScanOptions{Reverse: true}), []string{"b/1", "ab/1", "a/3", "a/2", "a/1"})

		deepEqual(t, scanKeys(t, store, Key{"a"}, ScanOptions{Limit: 2}), []string{"a/1", "a/2"})
		deepEqual(t, scanKeys(t, store, Key{"a"}, ScanOptions{Limit: 2, Reverse: true}), []string{"a/3", "a/2"})

		deepEqual(t, scanKeys(t, store, Key{"a"}, ScanOptions{StartAfter: Key{"a", "1"}}), []string{"a/2", "a/3"})
		deepEqual(t, scanKeys(t, store, Key{"a"}, ScanOptions{EndBefore: Key{"a", "3"}}), []string{"a/1", "a/2"})
		deepEqual(t, scanKeys(t, store, Key{"a"}, ScanOptions{StartAfter: Key{"a", "1"}, EndBefore: Key{"a", "3"}}), []string{"a/2"})
		deepEqual(t, scanKeys(t, store, Key{"a"}, ScanOptions{StartAfter: Key{"a", "1"}, EndBefore: Key{"a", "3"}, Reverse: true}), []string{"a/2"})
	})
}

// The scan is restartable and lazy: the same sequence value can be ranged
// over again and observes mutations made between runs.
func TestStoreScanRestartable(t *testing.T) {
	store := NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	must(store.Set(ctx, Key{"a", "1"}, nil))
	seq := store.Scan(ctx, Key{"a"}, ScanOptions{})

	deepEqual(t, len(collectEntries(t, seq)), 1)
	must(store.Set(ctx, Key{"a", "2"}, nil))
	deepEqual(t, len(collectEntries(t, seq)), 2)
}

func TestStoreScanToleratesConcurrentDelete(t *testing.T) {
	store := NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	for _, k := range []Key{{"a", "1"}, {"a", "2"}, {"a", "3"}} {
		must(store.Set(ctx, k, nil))
	}

	var seen []string
	for entry, err := range store.Scan(ctx, Key{"a"}, ScanOptions{}) {
		nofail(t, err)
		seen = append(seen, entry.Key.String())
		if len(seen) == 1 {
			nofail(t, store.Delete(ctx, Key{"a", "2"}))
		}
	}
	deepEqual(t, seen, []string{"a/1", "a/3"})
}

func TestStoreClosed(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		must(store.Set(ctx, Key{"a", "1"}, nil))
		nofail(t, store.Close())

		if _, err := store.Get(ctx, Key{"a", "1"}); err == nil {
			t.Errorf("** Get after Close did not fail")
		}
		if _, err := store.Set(ctx, Key{"a", "1"}, nil); err == nil {
			t.Errorf("** Set after Close did not fail")
		}
		if err := store.Delete(ctx, Key{"a", "1"}); err == nil {
			t.Errorf("** Delete after Close did not fail")
		}
		for _, err := range store.Scan(ctx, nil, ScanOptions{}) {
			if err == nil {
				t.Errorf("** Scan after Close did not fail")
			}
			break
		}
	})
}

func TestStoreScanCanceled(t *testing.T) {
	store := NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	must(store.Set(context.Background(), Key{"a", "1"}, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, err := range store.Scan(ctx, nil, ScanOptions{}) {
		if err == nil {
			t.Errorf("** Scan with canceled context did not fail")
		}
		break
	}
}

func collectEntries(t testing.TB, seq func(func(Entry, error) bool)) []Entry {
	t.Helper()
	var out []Entry
	for entry, err := range seq {
		if err != nil {
			t.Fatalf("** scan failed: %v", err)
		}
		out = append(out, entry)
	}
	return out
}
