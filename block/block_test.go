package block

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/blox/blox/codec"
	"github.com/blox/blox/filter"
)

func TestCompressDecompressRoundTripRandom(t *testing.T) {
	reg := codec.NewRegistry()
	cfg := Config{TypeSize: 4, CodecID: codec.LZHC, CLevel: 5}
	pipe := filter.Pipeline{TypeSize: 4}
	arena := filter.NewArena(256)

	src := make([]byte, 256)
	rand.New(rand.NewSource(7)).Read(src)

	dst := make([]byte, len(src)*2)
	n, err := Compress(cfg, reg, pipe, arena, nil, 0, 0, 0, false, false, src, dst)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	out := make([]byte, len(src))
	if err := Decompress(cfg, reg, pipe, arena, nil, 0, 0, 0, false, false, false, dst[:n], len(src), out); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("round trip mismatch")
	}
}

func TestCompressDecompressAllZero(t *testing.T) {
	reg := codec.NewRegistry()
	cfg := Config{TypeSize: 1, CodecID: codec.LZLite, CLevel: 5, DontSplit: true}
	pipe := filter.Pipeline{TypeSize: 1}
	arena := filter.NewArena(128)

	src := make([]byte, 128)
	dst := make([]byte, len(src)*2)
	n, err := Compress(cfg, reg, pipe, arena, nil, 0, 0, 0, false, false, src, dst)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if n != 4 {
		t.Fatalf("all-zero block should collapse to a 4-byte prefix, got %d bytes", n)
	}

	out := make([]byte, len(src))
	for i := range out {
		out[i] = 0xFF
	}
	if err := Decompress(cfg, reg, pipe, arena, nil, 0, 0, 0, false, false, false, dst[:n], len(src), out); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("zero-run round trip mismatch")
	}
}

func TestCompressDecompressRepeatedByteRun(t *testing.T) {
	reg := codec.NewRegistry()
	cfg := Config{TypeSize: 1, CodecID: codec.LZLite, CLevel: 5, DontSplit: true}
	pipe := filter.Pipeline{TypeSize: 1}
	arena := filter.NewArena(64)

	src := bytes.Repeat([]byte{0x42}, 64)
	dst := make([]byte, len(src)*2)
	n, err := Compress(cfg, reg, pipe, arena, nil, 0, 0, 0, false, false, src, dst)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if n != 5 {
		t.Fatalf("repeated-byte block should collapse to a 5-byte run token, got %d bytes", n)
	}

	out := make([]byte, len(src))
	if err := Decompress(cfg, reg, pipe, arena, nil, 0, 0, 0, false, false, false, dst[:n], len(src), out); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("run round trip mismatch")
	}
}

func TestDecompressRejectsReservedRunToken(t *testing.T) {
	reg := codec.NewRegistry()
	cfg := Config{TypeSize: 1, CodecID: codec.LZLite, CLevel: 5, DontSplit: true}
	pipe := filter.Pipeline{TypeSize: 1}
	arena := filter.NewArena(16)

	body := make([]byte, 5)
	body[0], body[1], body[2], body[3] = 0x00, 0x00, 0x00, 0xFF // -16777216 little-endian int32 (negative prefix)
	body[4] = 0x03                                              // reserved token, bit1 set

	out := make([]byte, 16)
	err := Decompress(cfg, reg, pipe, arena, nil, 0, 0, 0, false, false, false, body, 16, out)
	if err == nil {
		t.Fatalf("expected error for reserved run token")
	}
}

func TestDecompressMaskoutSkipsBlock(t *testing.T) {
	reg := codec.NewRegistry()
	cfg := Config{TypeSize: 1, CodecID: codec.LZLite, CLevel: 5, DontSplit: true}
	pipe := filter.Pipeline{TypeSize: 1}
	arena := filter.NewArena(16)

	out := bytes.Repeat([]byte{0xAA}, 16)
	if err := Decompress(cfg, reg, pipe, arena, nil, 0, 0, 0, false, false, true, nil, 16, out); err != nil {
		t.Fatalf("Decompress with maskout: %v", err)
	}
	for _, b := range out {
		if b != 0xAA {
			t.Fatalf("maskout must leave dst untouched")
		}
	}
}

func TestTrainingModeForcesSingleSubStream(t *testing.T) {
	reg := codec.NewRegistry()
	cfg := Config{TypeSize: 8, CodecID: codec.LZLite, CLevel: 5}
	pipe := filter.Pipeline{TypeSize: 8}
	arena := filter.NewArena(64)

	src := make([]byte, 64)
	rand.New(rand.NewSource(3)).Read(src)

	// nstreams(64, false, false) with TypeSize 8 splits into 8 sub-streams,
	// each carrying its own 4-byte prefix (32 bytes of prefixes total).
	// nstreams(64, false, true) collapses to a single sub-stream (4 bytes).
	dstSplit := make([]byte, 128)
	nSplit, err := Compress(cfg, reg, pipe, arena, nil, 0, 0, 0, false, false, src, dstSplit)
	if err != nil {
		t.Fatalf("Compress (split): %v", err)
	}

	dstTrain := make([]byte, 128)
	nTrain, err := Compress(cfg, reg, pipe, arena, nil, 0, 0, 0, false, true, src, dstTrain)
	if err != nil {
		t.Fatalf("Compress (training): %v", err)
	}

	out := make([]byte, len(src))
	if err := Decompress(cfg, reg, pipe, arena, nil, 0, 0, 0, false, true, false, dstTrain[:nTrain], len(src), out); err != nil {
		t.Fatalf("Decompress (training): %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("training-mode round trip mismatch")
	}
	if nSplit == nTrain {
		t.Fatalf("expected split and training-mode encodings to differ in framing overhead")
	}
}

func TestCompressIncompressibleFallsBackToRawLiteral(t *testing.T) {
	reg := codec.NewRegistry()
	cfg := Config{TypeSize: 1, CodecID: codec.LZLite, CLevel: 5, DontSplit: true}
	pipe := filter.Pipeline{TypeSize: 1}
	arena := filter.NewArena(64)

	src := make([]byte, 64)
	rand.New(rand.NewSource(42)).Read(src)

	dst := make([]byte, len(src)+4)
	n, err := Compress(cfg, reg, pipe, arena, nil, 0, 0, 0, false, false, src, dst)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	out := make([]byte, len(src))
	if err := Decompress(cfg, reg, pipe, arena, nil, 0, 0, 0, false, false, false, dst[:n], len(src), out); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("raw literal round trip mismatch")
	}
}
