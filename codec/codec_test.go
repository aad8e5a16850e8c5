package codec

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestBuiltinCodecsRoundTrip(t *testing.T) {
	r := NewRegistry()
	src := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)
	for _, id := range []ID{LZLite, LZFast, LZHC, Deflate} {
		info, err := r.Lookup(id)
		if err != nil {
			t.Fatalf("Lookup(%v): %v", id, err)
		}
		dst := make([]byte, len(src)*2)
		n := info.Encode(src, dst, 5, nil)
		if n <= 0 {
			t.Fatalf("%s: Encode returned %d", info.Name, n)
		}
		out := make([]byte, len(src))
		m := info.Decode(dst[:n], out, nil)
		if m != len(src) {
			t.Fatalf("%s: Decode returned %d, want %d", info.Name, m, len(src))
		}
		if !bytes.Equal(out, src) {
			t.Fatalf("%s: round trip mismatch", info.Name)
		}
	}
}

func TestZstdDictionaryRoundTrip(t *testing.T) {
	r := NewRegistry()
	info, err := r.Lookup(DictEntrop)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	dict := bytes.Repeat([]byte{0xAB, 0xCD, 0xEF, 0x01}, 64)
	src := make([]byte, 1024)
	rand.New(rand.NewSource(1)).Read(src)

	dst := make([]byte, len(src)*2)
	n := info.Encode(src, dst, 5, dict)
	if n <= 0 {
		t.Fatalf("Encode with dict returned %d", n)
	}
	out := make([]byte, len(src))
	m := info.Decode(dst[:n], out, dict)
	if m != len(src) || !bytes.Equal(out, src) {
		t.Fatalf("dictionary round trip mismatch")
	}
}

func TestLookupUnknownCodec(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Lookup(ID(99)); err == nil {
		t.Fatalf("expected error for unregistered codec id")
	}
}

func TestAccelerationMonotonic(t *testing.T) {
	prev := Acceleration(0)
	for level := 1; level <= 9; level++ {
		a := Acceleration(level)
		if a > prev {
			t.Fatalf("acceleration increased with level: %d -> %d at level %d", prev, a, level)
		}
		prev = a
	}
}
