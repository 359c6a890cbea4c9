package colldb

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStoreClosed is returned by store operations after Close.
var ErrStoreClosed = errors.New("store closed")

// ErrorKind classifies collection operation failures. NotFound is not an
// error kind: absent targets surface as nil results.
type ErrorKind int

const (
	// KindWriteFailure means the store reported a failed or conflicted
	// mutation of the primary key. No index entries have been touched.
	KindWriteFailure ErrorKind = iota + 1

	// KindPartialIndex means one or more secondary index entry writes or
	// deletes failed after the primary mutation already succeeded. The
	// primary mutation is NOT rolled back.
	KindPartialIndex
)

func (k ErrorKind) String() string {
	switch k {
	case KindWriteFailure:
		return "write failed"
	case KindPartialIndex:
		return "index maintenance failed"
	default:
		return fmt.Sprintf("error %d", int(k))
	}
}

// Error carries the failure kind, the collection and the offending physical
// key of a collection operation.
type Error struct {
	Kind       ErrorKind
	Collection string
	Key        Key
	Err        error
}

func opErr(kind ErrorKind, collection string, key Key, err error) error {
	return &Error{kind, collection, key, err}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	var buf strings.Builder
	if e.Key != nil {
		buf.WriteString(e.Key.String())
	} else {
		buf.WriteString(e.Collection)
	}
	buf.WriteString(": ")
	buf.WriteString(e.Kind.String())
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// IsKind reports whether err is (or wraps) a collection Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
