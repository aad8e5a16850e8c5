package chunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"

	"github.com/blox/blox/codec"
	"github.com/blox/blox/errs"
	"github.com/blox/blox/header"
)

func baseConfig() Config {
	return Config{
		TypeSize: 4,
		CLevel:   5,
		CodecID:  codec.LZHC,
		Shuffle:  ShuffleByte,
		NThreads: 2,
	}
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	reg := codec.NewRegistry()
	cfg := baseConfig()

	src := make([]byte, 4*4000)
	rand.New(rand.NewSource(11)).Read(src)

	out, err := Compress(cfg, reg, src)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	dst := make([]byte, len(src))
	if err := Decompress(reg, out, dst, 2, nil, nil); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(dst, src) {
		t.Fatalf("round trip mismatch")
	}
}

func TestAllZeroProducesHeaderOnlyZeroChunk(t *testing.T) {
	reg := codec.NewRegistry()
	cfg := baseConfig()

	src := make([]byte, 8192)
	out, err := Compress(cfg, reg, src)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	h, err := header.ReadHeader(out, true)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.SpecialType != header.SpecialZero {
		t.Fatalf("special type = %s, want zero", h.SpecialType)
	}
	if int(h.CBytes) != h.HeaderLen() {
		t.Fatalf("cbytes = %d, want header length %d", h.CBytes, h.HeaderLen())
	}

	dst := make([]byte, len(src))
	for i := range dst {
		dst[i] = 0xFF
	}
	if err := Decompress(reg, out, dst, 1, nil, nil); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(dst, src) {
		t.Fatalf("zero chunk decode mismatch")
	}
}

func TestRepeatedValueSpecialChunk(t *testing.T) {
	reg := codec.NewRegistry()
	cfg := baseConfig()

	value := make([]byte, 4)
	binary.LittleEndian.PutUint32(value, 0xDEADBEEF)
	out, err := CompressValue(cfg, value, 4096)
	if err != nil {
		t.Fatalf("CompressValue: %v", err)
	}
	h, err := header.ReadHeader(out, true)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.SpecialType != header.SpecialValue {
		t.Fatalf("special type = %s, want value", h.SpecialType)
	}
	body := out[h.HeaderLen():]
	want := []byte{0xEF, 0xBE, 0xAD, 0xDE}
	if !bytes.Equal(body, want) {
		t.Fatalf("body = % x, want % x", body, want)
	}

	dst := make([]byte, 4096*4)
	if err := Decompress(reg, out, dst, 1, nil, nil); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	for i := 0; i < len(dst); i += 4 {
		if !bytes.Equal(dst[i:i+4], want) {
			t.Fatalf("element at %d = % x, want % x", i/4, dst[i:i+4], want)
		}
	}
}

func TestRunOfNonzeroWithinBlock(t *testing.T) {
	reg := codec.NewRegistry()
	cfg := Config{TypeSize: 1, CLevel: 5, CodecID: codec.LZLite, BlockSize: 256}

	src := bytes.Repeat([]byte{0xAA}, 256)
	out, err := Compress(cfg, reg, src)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	dst := make([]byte, len(src))
	if err := Decompress(reg, out, dst, 1, nil, nil); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(dst, src) {
		t.Fatalf("run round trip mismatch")
	}
}

func TestIncompressibleRandomData(t *testing.T) {
	reg := codec.NewRegistry()
	cfg := Config{TypeSize: 1, CLevel: 5, CodecID: codec.LZLite}

	src := make([]byte, 1<<20)
	rand.New(rand.NewSource(99)).Read(src)
	out, err := Compress(cfg, reg, src)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	dst := make([]byte, len(src))
	if err := Decompress(reg, out, dst, 4, nil, nil); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(dst, src) {
		t.Fatalf("incompressible round trip mismatch")
	}
}

func TestGetItemMidBlock(t *testing.T) {
	reg := codec.NewRegistry()
	cfg := Config{TypeSize: 4, CLevel: 5, CodecID: codec.LZHC, Shuffle: ShuffleByte, BlockSize: 4096}

	const nelem = 16384
	src := make([]byte, nelem*4)
	for i := 0; i < nelem; i++ {
		binary.LittleEndian.PutUint32(src[i*4:i*4+4], uint32(i))
	}
	out, err := Compress(cfg, reg, src)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	dst := make([]byte, 3*4)
	if err := GetItem(reg, out, 5000, 3, dst); err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	for i := 0; i < 3; i++ {
		got := binary.LittleEndian.Uint32(dst[i*4 : i*4+4])
		if got != uint32(5000+i) {
			t.Fatalf("element %d = %d, want %d", i, got, 5000+i)
		}
	}
}

func TestThreadCountInvariance(t *testing.T) {
	reg := codec.NewRegistry()
	src := make([]byte, 16384*4)
	for i := 0; i < 16384; i++ {
		binary.LittleEndian.PutUint32(src[i*4:i*4+4], uint32(i))
	}

	var chunks [][]byte
	for _, nt := range []int{1, 2, 8} {
		cfg := Config{TypeSize: 4, CLevel: 5, CodecID: codec.LZHC, Shuffle: ShuffleByte, BlockSize: 4096, NThreads: nt}
		out, err := Compress(cfg, reg, src)
		if err != nil {
			t.Fatalf("Compress nthreads=%d: %v", nt, err)
		}
		chunks = append(chunks, out)
	}

	for _, c := range chunks {
		for _, nt := range []int{1, 2, 8} {
			dst := make([]byte, len(src))
			if err := Decompress(reg, c, dst, nt, nil, nil); err != nil {
				t.Fatalf("Decompress nthreads=%d: %v", nt, err)
			}
			if !bytes.Equal(dst, src) {
				t.Fatalf("nthreads=%d produced different output", nt)
			}
		}
	}
}

func TestMemcpyedIdempotence(t *testing.T) {
	reg := codec.NewRegistry()
	cfg := Config{TypeSize: 1, CLevel: 0, CodecID: codec.LZLite}

	src := make([]byte, 1000)
	rand.New(rand.NewSource(5)).Read(src)
	out, err := Compress(cfg, reg, src)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	h, err := header.ReadHeader(out, true)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if int(h.CBytes) != h.HeaderLen()+len(src) {
		t.Fatalf("cbytes = %d, want %d", h.CBytes, h.HeaderLen()+len(src))
	}
	if !bytes.Equal(out[h.HeaderLen():], src) {
		t.Fatalf("memcpyed body mismatch")
	}
}

func TestDictionaryInvariance(t *testing.T) {
	reg := codec.NewRegistry()
	src := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 2000)

	cfgNoDict := Config{TypeSize: 1, CLevel: 5, CodecID: codec.DictEntrop, BlockSize: 8192}
	cfgDict := cfgNoDict
	cfgDict.UseDict = true

	outNoDict, err := Compress(cfgNoDict, reg, src)
	if err != nil {
		t.Fatalf("Compress (no dict): %v", err)
	}
	outDict, err := Compress(cfgDict, reg, src)
	if err != nil {
		t.Fatalf("Compress (dict): %v", err)
	}

	dst1 := make([]byte, len(src))
	if err := Decompress(reg, outNoDict, dst1, 2, nil, nil); err != nil {
		t.Fatalf("Decompress (no dict): %v", err)
	}
	dst2 := make([]byte, len(src))
	if err := Decompress(reg, outDict, dst2, 2, nil, nil); err != nil {
		t.Fatalf("Decompress (dict): %v", err)
	}
	if !bytes.Equal(dst1, src) || !bytes.Equal(dst2, src) {
		t.Fatalf("dictionary-invariance round trip mismatch")
	}
}

func TestDictionaryRequestOnNonDictCapableCodec(t *testing.T) {
	reg := codec.NewRegistry()
	cfg := Config{TypeSize: 1, CLevel: 5, CodecID: codec.LZLite, BlockSize: 8192, UseDict: true}
	src := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 2000)

	_, err := Compress(cfg, reg, src)
	if !errors.Is(err, errs.ErrCodecDict) {
		t.Fatalf("Compress: got %v, want errs.ErrCodecDict", err)
	}
}

func TestCompressUninitLeavesDestinationUntouched(t *testing.T) {
	reg := codec.NewRegistry()
	cfg := Config{TypeSize: 4}
	out, err := CompressUninit(cfg, 64)
	if err != nil {
		t.Fatalf("CompressUninit: %v", err)
	}
	dst := bytes.Repeat([]byte{0x7A}, 64)
	if err := Decompress(reg, out, dst, 1, nil, nil); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	for _, b := range dst {
		if b != 0x7A {
			t.Fatalf("uninit decode must not touch dst")
		}
	}
}

func TestCompressNaNFill(t *testing.T) {
	reg := codec.NewRegistry()
	cfg := Config{TypeSize: 4}
	out, err := CompressNaN(cfg, 16)
	if err != nil {
		t.Fatalf("CompressNaN: %v", err)
	}
	dst := make([]byte, 16)
	if err := Decompress(reg, out, dst, 1, nil, nil); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	for i := 0; i < 16; i += 4 {
		bits := binary.LittleEndian.Uint32(dst[i : i+4])
		exp := uint32(0x7fc00000)
		if bits&0x7fc00000 != exp&0x7fc00000 {
			t.Fatalf("element at %d not NaN pattern: %x", i, bits)
		}
	}
}

func TestMaskoutSkipsSelectedBlocks(t *testing.T) {
	reg := codec.NewRegistry()
	cfg := Config{TypeSize: 1, CLevel: 5, CodecID: codec.LZLite, BlockSize: 64}

	src := make([]byte, 256)
	rand.New(rand.NewSource(21)).Read(src)
	out, err := Compress(cfg, reg, src)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	dst := bytes.Repeat([]byte{0x11}, len(src))
	maskout := []bool{false, true, false, false}
	if err := Decompress(reg, out, dst, 1, maskout, nil); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	for i := 64; i < 128; i++ {
		if dst[i] != 0x11 {
			t.Fatalf("masked block was overwritten at %d", i)
		}
	}
	if !bytes.Equal(dst[:64], src[:64]) || !bytes.Equal(dst[128:], src[128:]) {
		t.Fatalf("non-masked blocks were not decoded correctly")
	}
}
