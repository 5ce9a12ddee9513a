// Package varint implements the unsigned variable-length integer and
// length-prefixed string primitives of the Minecraft protocol.
package varint

import (
	"errors"
	"fmt"
	"io"
)

const (
	// MaxLen is the maximum number of bytes a 32-bit VarInt occupies on the wire.
	MaxLen = 5

	// DefaultMaxStringLength caps declared string lengths (1 MiB).
	// The protocol sets no ceiling of its own.
	DefaultMaxStringLength = 1 << 20
)

var (
	// ErrMalformed is returned when a VarInt does not terminate within MaxLen bytes.
	ErrMalformed = errors.New("malformed varint")

	// ErrOversized is returned when a declared length exceeds the configured ceiling.
	ErrOversized = errors.New("declared length exceeds limit")
)

// Append appends the encoding of v to dst, least significant group first.
func Append(dst []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if v == 0 {
			return dst
		}
	}
}

// Encode returns the 1-5 byte encoding of v.
func Encode(v uint32) []byte {
	return Append(make([]byte, 0, MaxLen), v)
}

// Size returns the number of bytes Encode(v) produces.
func Size(v uint32) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}

// Decode reads one VarInt from r, a byte at a time.
func Decode(r io.ByteReader) (uint32, error) {
	var (
		value uint32
		shift uint
	)

	for n := 0; ; n++ {
		if n >= MaxLen {
			return 0, ErrMalformed
		}

		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}

		value |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
	}
}

// AppendString appends VarInt(len(s)) followed by the UTF-8 bytes of s.
func AppendString(dst []byte, s string) []byte {
	dst = Append(dst, uint32(len(s)))
	return append(dst, s...)
}

// DecodeString reads a length-prefixed string from r.
// Declared lengths above maxLen fail with ErrOversized before any allocation.
func DecodeString(r io.ByteReader, maxLen int) (string, error) {
	length, err := Decode(r)
	if err != nil {
		return "", err
	}
	if maxLen > 0 && uint64(length) > uint64(maxLen) {
		return "", fmt.Errorf("%w: string of %d bytes, limit %d", ErrOversized, length, maxLen)
	}

	buf := make([]byte, length)
	if rd, ok := r.(io.Reader); ok {
		if _, err := io.ReadFull(rd, buf); err != nil {
			return "", err
		}
		return string(buf), nil
	}

	for i := range buf {
		if buf[i], err = r.ReadByte(); err != nil {
			return "", err
		}
	}

	return string(buf), nil
}
