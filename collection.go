package colldb

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strconv"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
)

// KeyBuilder derives the ordered index key parts for a record.
type KeyBuilder func(rec Record) Key

// IDGenerator produces a fresh, collision-resistant, lexically sortable id.
type IDGenerator func() string

// NewULID is the default IDGenerator.
func NewULID() string {
	return ulid.Make().String()
}

// FieldKey returns a KeyBuilder reading the given top-level fields in order.
// String values are used verbatim, other values are canonicalized with
// formatKeyPart; a missing field contributes an empty part.
func FieldKey(fields ...string) KeyBuilder {
	return func(rec Record) Key {
		parts := make(Key, len(fields))
		for i, f := range fields {
			parts[i] = formatKeyPart(rec[f])
		}
		return parts
	}
}

func formatKeyPart(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

// Collection owns all read/write/index-maintenance logic for one named
// collection. Collections are configured once at startup and are immutable
// afterwards.
type Collection struct {
	name       string
	internal   bool
	newID      IDGenerator
	indexes    map[string]KeyBuilder
	indexNames []string // sorted, fixes fan-out and error-reporting order
	store      Store
	logger     *slog.Logger
}

func (c *Collection) Name() string { return c.name }

// Internal collections are reachable only by direct in-process reference,
// never through the HTTP boundary.
func (c *Collection) Internal() bool { return c.internal }

// Get returns the record stored at id, or nil if absent.
func (c *Collection) Get(ctx context.Context, id string) (*Result, error) {
	entry, err := c.store.Get(ctx, primaryKey(c.name, id))
	if err != nil || entry == nil {
		return nil, err
	}
	rec, err := decodeRecord(entry.Value)
	if err != nil {
		return nil, err
	}
	return &Result{ID: id, Versionstamp: entry.Versionstamp, Value: rec}, nil
}

// List lazily iterates every record in the collection in ascending id order.
// Each entry's versionstamp is its own; the listing is not a snapshot.
func (c *Collection) List(ctx context.Context) iter.Seq2[*Result, error] {
	return func(yield func(*Result, error) bool) {
		for entry, err := range c.store.Scan(ctx, Key{c.name}, ScanOptions{}) {
			if err != nil {
				yield(nil, err)
				return
			}
			rec, err := decodeRecord(entry.Value)
			if err != nil {
				yield(nil, err)
				return
			}
			res := &Result{ID: entry.Key[len(entry.Key)-1], Versionstamp: entry.Versionstamp, Value: rec}
			if !yield(res, nil) {
				return
			}
		}
	}
}

// ListBy lazily iterates records whose index entry extends the given key
// parts. Dangling index entries (no primary record behind them) are skipped
// silently: they are an accepted artifact of non-atomic index maintenance.
func (c *Collection) ListBy(ctx context.Context, index string, parts Key) iter.Seq2[*Result, error] {
	return c.ListByLimit(ctx, index, parts, 0)
}

// ListByLimit is ListBy with a limit passed through to the store's scan.
// Zero means no limit. The limit caps scanned index entries, so the result
// may be shorter when dangling entries are skipped.
func (c *Collection) ListByLimit(ctx context.Context, index string, parts Key, limit int) iter.Seq2[*Result, error] {
	return func(yield func(*Result, error) bool) {
		if _, ok := c.indexes[index]; !ok {
			yield(nil, fmt.Errorf("colldb: no index %s.%s", c.name, index))
			return
		}
		prefix := indexPrefix(c.name, index, parts)
		for entry, err := range c.store.Scan(ctx, prefix, ScanOptions{Limit: limit}) {
			if err != nil {
				yield(nil, err)
				return
			}
			id := entry.Key[len(entry.Key)-1]
			res, err := c.Get(ctx, id)
			if err != nil {
				yield(nil, err)
				return
			}
			if res == nil {
				continue
			}
			if !yield(res, nil) {
				return
			}
		}
	}
}

// Append stores rec under a freshly generated id, then fans out one index
// entry per registered index. Returns the stored record with the primary
// write's versionstamp.
func (c *Collection) Append(ctx context.Context, rec Record) (*Result, error) {
	id := c.newID()
	value := sanitizeRecord(rec)
	payload, err := encodeRecord(value)
	if err != nil {
		return nil, err
	}
	pk := primaryKey(c.name, id)
	stamp, err := c.store.Set(ctx, pk, payload)
	if err != nil {
		return nil, opErr(KindWriteFailure, c.name, pk, err)
	}
	c.logOp(ctx, "APPEND", id)
	if err := c.writeIndexEntries(ctx, id, value); err != nil {
		return nil, err
	}
	return &Result{ID: id, Versionstamp: stamp, Value: value}, nil
}

// Replace overwrites the record at id, rebuilding its index entries. Returns
// nil without side effects if the record is absent.
func (c *Collection) Replace(ctx context.Context, id string, rec Record) (*Result, error) {
	old, err := c.Get(ctx, id)
	if err != nil || old == nil {
		return nil, err
	}
	return c.update(ctx, id, old.Value, sanitizeRecord(rec))
}

// Merge applies a shallow field union of the existing record and partial
// (partial wins), then proceeds like Replace with the merged record. Returns
// nil without side effects if the record is absent.
func (c *Collection) Merge(ctx context.Context, id string, partial Record) (*Result, error) {
	old, err := c.Get(ctx, id)
	if err != nil || old == nil {
		return nil, err
	}
	return c.update(ctx, id, old.Value, mergeRecords(old.Value, sanitizeRecord(partial)))
}

func (c *Collection) update(ctx context.Context, id string, old, upd Record) (*Result, error) {
	payload, err := encodeRecord(upd)
	if err != nil {
		return nil, err
	}
	pk := primaryKey(c.name, id)
	stamp, err := c.store.Set(ctx, pk, payload)
	if err != nil {
		return nil, opErr(KindWriteFailure, c.name, pk, err)
	}
	c.logOp(ctx, "UPDATE", id)
	// Deleting stale entries before writing new ones shortens (but cannot
	// eliminate) the window where two derived keys point at the same id.
	if err := c.deleteStaleIndexEntries(ctx, id, old, upd); err != nil {
		return nil, err
	}
	if err := c.writeIndexEntries(ctx, id, upd); err != nil {
		return nil, err
	}
	return &Result{ID: id, Versionstamp: stamp, Value: upd}, nil
}

// Delete removes the record at id and the index entries derived from it as it
// existed before deletion. Returns the deleted record with its pre-deletion
// versionstamp, or nil without side effects if absent.
func (c *Collection) Delete(ctx context.Context, id string) (*Result, error) {
	old, err := c.Get(ctx, id)
	if err != nil || old == nil {
		return nil, err
	}
	pk := primaryKey(c.name, id)
	if err := c.store.Delete(ctx, pk); err != nil {
		return nil, opErr(KindWriteFailure, c.name, pk, err)
	}
	c.logOp(ctx, "DELETE", id)
	if err := c.deleteStaleIndexEntries(ctx, id, old.Value, nil); err != nil {
		return nil, err
	}
	return old, nil
}

// writeIndexEntries fans out one entry per registered index, concurrently,
// and waits for all of them. Any failure fails the operation; the primary
// write is not rolled back.
func (c *Collection) writeIndexEntries(ctx context.Context, id string, rec Record) error {
	var g errgroup.Group
	for _, name := range c.indexNames {
		ik := indexKey(c.name, name, c.indexes[name](rec), id)
		g.Go(func() error {
			if _, err := c.store.Set(ctx, ik, nil); err != nil {
				return opErr(KindPartialIndex, c.name, ik, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// deleteStaleIndexEntries removes entries derived from old whose keys are not
// derived from upd as well. upd == nil means the record is gone and every
// entry is stale.
func (c *Collection) deleteStaleIndexEntries(ctx context.Context, id string, old, upd Record) error {
	var g errgroup.Group
	for _, name := range c.indexNames {
		oldKey := c.indexes[name](old)
		if upd != nil && oldKey.Equal(c.indexes[name](upd)) {
			continue
		}
		ik := indexKey(c.name, name, oldKey, id)
		g.Go(func() error {
			if err := c.store.Delete(ctx, ik); err != nil {
				return opErr(KindPartialIndex, c.name, ik, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *Collection) logOp(ctx context.Context, op, id string) {
	if c.logger == nil {
		return
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "colldb: "+op,
		slog.String("collection", c.name), slog.String("id", id))
}
