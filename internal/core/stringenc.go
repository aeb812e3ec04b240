package core

import (
	"sync"
	"unicode/utf8"
	"unsafe"
)

// DefaultStringScratchSize is the default bound for the per-call string
// scratch buffer. Strings that encode larger than this fall back to a heap
// allocation transparently.
const DefaultStringScratchSize = 8 * 1024

var scratchPool = sync.Pool{
	New: func() any {
		b := make([]byte, DefaultStringScratchSize)
		return &b
	},
}

func getScratch(size int) *[]byte {
	if size <= 0 || size == DefaultStringScratchSize {
		return scratchPool.Get().(*[]byte)
	}
	b := make([]byte, size)
	return &b
}

func putScratch(b *[]byte) {
	if len(*b) == DefaultStringScratchSize {
		scratchPool.Put(b)
	}
}

// IsSingleByte reports whether every code point of s fits in one byte
// (Latin-1 range). ASCII strings additionally need no re-encoding at all.
func IsSingleByte(s string) bool {
	for _, r := range s {
		if r > 0xFF {
			return false
		}
	}
	return true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// EncodeString produces the single-byte or UTF-8 transport bytes for s.
// ASCII sources are reinterpreted without a copy (the returned bytes alias
// the string and must be treated as read-only). Latin-1 sources re-encode
// into scratch when they fit, otherwise into a fresh heap buffer. Anything
// wider stays UTF-8. The second result reports whether the bytes are a
// single-byte encoding.
func EncodeString(s string, scratch []byte) ([]byte, bool) {
	if isASCII(s) {
		if len(s) == 0 {
			return nil, true
		}
		// Read-only alias of the string's bytes.
		return unsafe.Slice(unsafe.StringData(s), len(s)), true
	}
	if IsSingleByte(s) {
		var dst []byte
		if cap(scratch) >= len(s) {
			dst = scratch[:0]
		} else {
			dst = make([]byte, 0, len(s))
		}
		for _, r := range s {
			dst = append(dst, byte(r))
		}
		return dst, true
	}
	return []byte(s), false
}

// DecodeString is the inverse of EncodeString.
func DecodeString(b []byte, singleByte bool) string {
	if !singleByte {
		return string(b)
	}
	if isASCIIBytes(b) {
		return string(b)
	}
	// Latin-1 bytes back to a Go (UTF-8) string.
	buf := make([]byte, 0, len(b)+len(b)/2)
	for _, c := range b {
		buf = utf8.AppendRune(buf, rune(c))
	}
	return string(buf)
}

func isASCIIBytes(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
