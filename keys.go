package colldb

import (
	"fmt"
	"strings"
)

// indexSuffix separates a collection's index namespace from its primary
// namespace. It contains 0xFF, which is illegal in collection names, so no
// collection's primary key space can collide with any index key space.
const indexSuffix = "\xffidx"

// Key is an ordered sequence of string parts. The store orders keys by
// component-wise lexicographic comparison of the part sequence, which matches
// bytewise comparison of the encoded form.
type Key []string

func primaryKey(collection, id string) Key {
	return Key{collection, id}
}

func indexKey(collection, index string, parts Key, id string) Key {
	k := make(Key, 0, len(parts)+3)
	k = append(k, collection+indexSuffix, index)
	k = append(k, parts...)
	return append(k, id)
}

// indexPrefix is a scan prefix, not a full key: every physical key returned
// by a scan under it extends it with a trailing id part.
func indexPrefix(collection, index string, parts Key) Key {
	k := make(Key, 0, len(parts)+2)
	k = append(k, collection+indexSuffix, index)
	return append(k, parts...)
}

func (k Key) Equal(another Key) bool {
	if len(another) != len(k) {
		return false
	}
	for i, part := range k {
		if another[i] != part {
			return false
		}
	}
	return true
}

func (k Key) String() string {
	var buf strings.Builder
	for i, part := range k {
		if i > 0 {
			buf.WriteByte('/')
		}
		buf.WriteString(strings.Map(printableKeyRune, part))
	}
	return buf.String()
}

func printableKeyRune(r rune) rune {
	if r < 0x20 || r == 0x7F || r == 0xFF {
		return '?'
	}
	return r
}

// Key encoding: each part opens with the 0x02 marker and is terminated by
// 0x00; a 0x00 byte inside a part is escaped as 0x00 0xFF. The escape byte
// sorts above the marker of a following part, and the terminator sorts below
// every part continuation, so encoded keys compare bytewise in part-sequence
// order, and the encoding of a part-sequence prefix is a byte prefix of every
// encoding that extends it.

const (
	keyPartMarker     = 0x02
	keyPartTerminator = 0x00
	keyPartEscape     = 0xFF
)

func (k Key) encode(buf []byte) []byte {
	for _, part := range k {
		buf = appendKeyPart(buf, part)
	}
	return buf
}

func (k Key) encoded() []byte {
	return k.encode(make([]byte, 0, k.encodedLen()))
}

func (k Key) encodedLen() int {
	n := 2 * len(k)
	for _, part := range k {
		n += len(part)
	}
	return n
}

func appendKeyPart(buf []byte, part string) []byte {
	buf = append(buf, keyPartMarker)
	for i := 0; i < len(part); i++ {
		b := part[i]
		if b == keyPartTerminator {
			buf = append(buf, keyPartTerminator, keyPartEscape)
		} else {
			buf = append(buf, b)
		}
	}
	return append(buf, keyPartTerminator)
}

func decodeKey(raw []byte) (Key, error) {
	var k Key
	for len(raw) > 0 {
		if raw[0] != keyPartMarker {
			return nil, fmt.Errorf("invalid key encoding: bad part marker 0x%02x after %d parts", raw[0], len(k))
		}
		raw = raw[1:]
		var part []byte
		terminated := false
		for i := 0; i < len(raw); i++ {
			b := raw[i]
			if b != keyPartTerminator {
				part = append(part, b)
				continue
			}
			if i+1 < len(raw) && raw[i+1] == keyPartEscape {
				part = append(part, keyPartTerminator)
				i++
				continue
			}
			k = append(k, string(part))
			raw = raw[i+1:]
			terminated = true
			break
		}
		if !terminated {
			return nil, fmt.Errorf("invalid key encoding: unterminated part after %d parts", len(k))
		}
	}
	return k, nil
}
