package colldb

import (
	"encoding/json"
	"maps"

	"github.com/vmihailenco/msgpack/v5"
)

// Record is an opaque structured value: a map of field names to
// JSON-compatible values, belonging to exactly one collection.
type Record map[string]any

// Reserved metadata field names. They are synthesized on output and stripped
// from incoming records, so output augmentation can never collide with a
// stored field.
const (
	MetaID           = "id"
	MetaVersionstamp = "versionstamp"
)

// Result is a record augmented with its id and the versionstamp observed by
// the read or write that produced it.
type Result struct {
	ID           string
	Versionstamp Versionstamp
	Value        Record
}

func (r *Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Value)+2)
	maps.Copy(out, r.Value)
	out[MetaID] = r.ID
	out[MetaVersionstamp] = string(r.Versionstamp)
	return json.Marshal(out)
}

func encodeRecord(rec Record) ([]byte, error) {
	return msgpack.Marshal(map[string]any(rec))
}

func decodeRecord(payload []byte) (Record, error) {
	rec := make(Record)
	err := msgpack.Unmarshal(payload, (*map[string]any)(&rec))
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// sanitizeRecord copies rec without the reserved metadata fields.
func sanitizeRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		if k == MetaID || k == MetaVersionstamp {
			continue
		}
		out[k] = v
	}
	return out
}

// mergeRecords is a shallow field union: partial fields override, the
// remaining old fields survive.
func mergeRecords(old, partial Record) Record {
	out := make(Record, len(old)+len(partial))
	maps.Copy(out, old)
	maps.Copy(out, partial)
	return out
}
