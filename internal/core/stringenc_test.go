package core

import (
	"testing"
	"unsafe"
)

func TestIsSingleByte(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"hello", true},
		// é (U+00E9) and ÿ (U+00FF) are Latin-1; Ā (U+0100) is the first
		// two-byte code point.
		{"café", true},
		{"ÿ", true},
		{"Ā", false},
		{"日本語", false},
		{"mixed é and 漢", false},
	}
	for _, c := range cases {
		if got := IsSingleByte(c.in); got != c.want {
			t.Errorf("IsSingleByte(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestEncodeStringASCIIAliasesSource(t *testing.T) {
	s := "plain ascii payload"
	b, single := EncodeString(s, nil)
	if !single {
		t.Fatal("ASCII string reported as non-single-byte")
	}
	if string(b) != s {
		t.Fatalf("encoded bytes = %q, want %q", b, s)
	}
	// Zero-copy: the bytes alias the string's storage.
	if unsafe.Pointer(&b[0]) != unsafe.Pointer(unsafe.StringData(s)) {
		t.Error("ASCII encoding copied instead of aliasing")
	}
}

func TestEncodeStringLatin1UsesScratch(t *testing.T) {
	s := "café" // 5 UTF-8 bytes, 4 Latin-1 bytes
	scratch := make([]byte, DefaultStringScratchSize)
	b, single := EncodeString(s, scratch)
	if !single {
		t.Fatal("Latin-1 string reported as non-single-byte")
	}
	want := []byte{'c', 'a', 'f', 0xe9}
	if len(b) != len(want) {
		t.Fatalf("encoded %d bytes, want %d", len(b), len(want))
	}
	for i := range want {
		if b[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, b[i], want[i])
		}
	}
	if &b[0] != &scratch[0] {
		t.Error("Latin-1 encoding did not use the scratch buffer")
	}
	if got := DecodeString(b, true); got != s {
		t.Errorf("round trip = %q, want %q", got, s)
	}
}

func TestEncodeStringWideFallsBackToUTF8(t *testing.T) {
	s := "漢字"
	b, single := EncodeString(s, nil)
	if single {
		t.Fatal("wide string reported as single-byte")
	}
	if got := DecodeString(b, false); got != s {
		t.Errorf("round trip = %q, want %q", got, s)
	}
}

func TestEncodeStringOverflowsScratchToHeap(t *testing.T) {
	// A Latin-1 string longer than the scratch still encodes correctly.
	small := make([]byte, 4)
	long := ""
	for i := 0; i < 64; i++ {
		long += "é"
	}
	b, single := EncodeString(long, small)
	if !single || len(b) != 64 {
		t.Fatalf("encoded %d bytes single=%v, want 64 single-byte", len(b), single)
	}
	if got := DecodeString(b, true); got != long {
		t.Error("oversized Latin-1 round trip mismatch")
	}
}

func TestScopeEncodeStringReusableScratch(t *testing.T) {
	sc := NewCallScope(nil, DefaultStringScratchSize)
	defer sc.Close()
	b, single := sc.EncodeString("scoped")
	if !single || string(b) != "scoped" {
		t.Fatalf("scope encode = %q single=%v", b, single)
	}
}
