// Package pickle implements the length-prefixed binary container format used
// to carry typed string entries through the system clipboard. The layout
// matches the cross-process clipboard container several host frameworks
// exchange:
//
//	container := u32(payloadSize) u32(entryCount) entry*
//	entry     := u32(typeCharCount) utf16le(type) pad4
//	             u32(valueCharCount) utf16le(value) pad4
//
// All counts are UTF-16 character counts, not byte counts; the byte length of
// a string field is charCount*2, then zero-padded to the next 4-byte boundary.
package pickle

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// Entry is one typed string in a container. Both fields are logically UTF-16
// character sequences on the wire.
type Entry struct {
	Type  string
	Value string
}

// Container is an ordered list of entries. Decoding the bytes produced by
// Encode always yields an equal container.
type Container struct {
	Entries []Entry
}

// DecodeError describes why a byte buffer could not be decoded. Decode never
// panics and never silently truncates; any malformed input produces one of
// these.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("pickle: decode failed at offset %d: %s", e.Offset, e.Reason)
}

const headerSize = 8 // payload size + entry count

// Encode serializes the container into its wire form.
func Encode(c Container) []byte {
	// First pass: total size so the buffer is allocated once.
	payload := 4 // entry count
	for _, e := range c.Entries {
		payload += 4 + paddedLen(e.Type)
		payload += 4 + paddedLen(e.Value)
	}

	buf := make([]byte, 4+payload)
	binary.LittleEndian.PutUint32(buf[0:], uint32(payload))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(c.Entries)))
	off := headerSize
	for _, e := range c.Entries {
		off = putString(buf, off, e.Type)
		off = putString(buf, off, e.Value)
	}
	return buf
}

// Decode parses a wire-form buffer back into a container.
func Decode(buf []byte) (Container, error) {
	if len(buf) < headerSize {
		return Container{}, &DecodeError{Offset: 0, Reason: fmt.Sprintf("buffer too short (%d bytes)", len(buf))}
	}
	payload := int(binary.LittleEndian.Uint32(buf[0:]))
	if payload != len(buf)-4 {
		return Container{}, &DecodeError{
			Offset: 0,
			Reason: fmt.Sprintf("payload size %d does not match %d remaining bytes", payload, len(buf)-4),
		}
	}
	count := int(binary.LittleEndian.Uint32(buf[4:]))

	c := Container{Entries: make([]Entry, 0, count)}
	off := headerSize
	for i := 0; i < count; i++ {
		typ, next, err := getString(buf, off)
		if err != nil {
			return Container{}, err
		}
		val, next, err := getString(buf, next)
		if err != nil {
			return Container{}, err
		}
		c.Entries = append(c.Entries, Entry{Type: typ, Value: val})
		off = next
	}
	if off != len(buf) {
		return Container{}, &DecodeError{Offset: off, Reason: fmt.Sprintf("%d trailing bytes after last entry", len(buf)-off)}
	}
	return c, nil
}

// paddedLen returns the on-wire byte length of a string field: UTF-16LE bytes
// rounded up to a 4-byte boundary.
func paddedLen(s string) int {
	n := len(utf16.Encode([]rune(s))) * 2
	return n + pad4(n)
}

func pad4(n int) int {
	return (4 - n%4) % 4
}

func putString(buf []byte, off int, s string) int {
	units := utf16.Encode([]rune(s))
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(units)))
	off += 4
	for _, u := range units {
		binary.LittleEndian.PutUint16(buf[off:], u)
		off += 2
	}
	// Padding bytes are already zero from allocation.
	off += pad4(len(units) * 2)
	return off
}

func getString(buf []byte, off int) (string, int, error) {
	if off+4 > len(buf) {
		return "", 0, &DecodeError{Offset: off, Reason: "truncated length prefix"}
	}
	chars := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4

	// Character count, so the byte length is chars*2. Treating it as a byte
	// count reads garbage past misaligned boundaries.
	byteLen := chars * 2
	if off+byteLen > len(buf) {
		return "", 0, &DecodeError{
			Offset: off,
			Reason: fmt.Sprintf("string of %d chars (%d bytes) exceeds buffer", chars, byteLen),
		}
	}
	units := make([]uint16, chars)
	for i := 0; i < chars; i++ {
		units[i] = binary.LittleEndian.Uint16(buf[off+i*2:])
	}
	off += byteLen

	padding := pad4(byteLen)
	if off+padding > len(buf) {
		return "", 0, &DecodeError{Offset: off, Reason: "truncated padding"}
	}
	off += padding // padding content is ignored

	return string(utf16.Decode(units)), off, nil
}
