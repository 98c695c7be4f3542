package kv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Key is a tuple of components. Supported component types are string and the
// signed integer kinds; integers are stored as int64.
//
// Keys are encoded so that bytes.Compare on two encodings gives the same
// result as comparing the tuples component by component. Integers sort
// before strings at the same position.
type Key []any

const (
	tagInt    byte = 0x15
	tagString byte = 0x20

	// upper bound for a prefix range, greater than any component tag
	rangeEnd byte = 0xff
)

var ErrInvalidKey = errors.New("kv: invalid key")

// Encode returns the order-preserving byte encoding of k.
func (k Key) Encode() ([]byte, error) {
	buf := make([]byte, 0, 16*len(k))
	for i, c := range k {
		switch v := c.(type) {
		case string:
			buf = appendString(buf, v)
		case int:
			buf = appendInt(buf, int64(v))
		case int32:
			buf = appendInt(buf, int64(v))
		case int64:
			buf = appendInt(buf, v)
		default:
			return nil, fmt.Errorf("%w: component %d has unsupported type %T", ErrInvalidKey, i, c)
		}
	}
	return buf, nil
}

func (k Key) String() string {
	parts := make([]string, len(k))
	for i, c := range k {
		parts[i] = fmt.Sprintf("%v", c)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Equal reports whether both keys encode to the same bytes.
func (k Key) Equal(o Key) bool {
	a, errA := k.Encode()
	b, errB := o.Encode()
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// int64 is written big-endian with the sign bit flipped so negative values
// sort before positive ones.
func appendInt(buf []byte, v int64) []byte {
	buf = append(buf, tagInt)
	return binary.BigEndian.AppendUint64(buf, uint64(v)^(1<<63))
}

// NUL bytes inside strings are escaped as 0x00 0xff; a bare 0x00 terminates.
func appendString(buf []byte, s string) []byte {
	buf = append(buf, tagString)
	for i := 0; i < len(s); i++ {
		buf = append(buf, s[i])
		if s[i] == 0x00 {
			buf = append(buf, 0xff)
		}
	}
	return append(buf, 0x00)
}

// DecodeKey reverses Key.Encode.
func DecodeKey(b []byte) (Key, error) {
	var k Key
	for len(b) > 0 {
		switch b[0] {
		case tagInt:
			if len(b) < 9 {
				return nil, fmt.Errorf("%w: truncated integer", ErrInvalidKey)
			}
			k = append(k, int64(binary.BigEndian.Uint64(b[1:9])^(1<<63)))
			b = b[9:]
		case tagString:
			var sb strings.Builder
			i := 1
			for {
				if i >= len(b) {
					return nil, fmt.Errorf("%w: unterminated string", ErrInvalidKey)
				}
				if b[i] == 0x00 {
					if i+1 < len(b) && b[i+1] == 0xff {
						sb.WriteByte(0x00)
						i += 2
						continue
					}
					break
				}
				sb.WriteByte(b[i])
				i++
			}
			k = append(k, sb.String())
			b = b[i+1:]
		default:
			return nil, fmt.Errorf("%w: unknown tag 0x%02x", ErrInvalidKey, b[0])
		}
	}
	return k, nil
}

// prefixRange returns the [start, end) byte range holding every key that has
// prefix as its leading components.
func prefixRange(prefix Key) (start, end []byte, err error) {
	start, err = prefix.Encode()
	if err != nil {
		return nil, nil, err
	}
	end = append(bytes.Clone(start), rangeEnd)
	return start, end, nil
}
