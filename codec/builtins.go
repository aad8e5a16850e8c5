package codec

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// builtins returns the static table of corpus-backed codec implementations.
// Each wraps a real klauspost/compress backend behind the
// encode(src,dst,level,ctx)->int / decode(src,dst,ctx)->int contract of §1,
// grounded on falk-nsz-go/pkg/zstd/zstd.go's encoder-pool-by-level pattern.
func builtins() []Info {
	return []Info{
		{ID: LZLite, Name: "lz-lite", FormatID: 0, Version: 1, Encode: s2Encode(false), Decode: s2Decode},
		{ID: LZFast, Name: "lz-fast", FormatID: 1, Version: 1, Encode: s2Encode(true), Decode: s2Decode},
		{ID: LZHC, Name: "lz-hc", FormatID: 2, Version: 1, DictCapable: true, Encode: zstdEncode, Decode: zstdDecode},
		{ID: Deflate, Name: "deflate", FormatID: 3, Version: 1, Encode: deflateEncode, Decode: deflateDecode},
		{ID: DictEntrop, Name: "dict-entropy", FormatID: 4, Version: 1, DictCapable: true, Encode: zstdEncode, Decode: zstdDecode},
	}
}

// --- S2 (LZ-family) --------------------------------------------------

func s2Encode(better bool) EncodeFunc {
	return func(src, dst []byte, level int, ctx interface{}) int {
		buf := make([]byte, 0, s2.MaxEncodedLen(len(src)))
		var out []byte
		if better || level >= 7 {
			out = s2.EncodeBetter(buf, src)
		} else {
			out = s2.Encode(buf, src)
		}
		if len(out) == 0 || len(out) > len(dst) {
			return 0
		}
		copy(dst, out)
		return len(out)
	}
}

func s2Decode(src, dst []byte, ctx interface{}) int {
	n, err := s2.DecodedLen(src)
	if err != nil || n > len(dst) {
		return -1
	}
	out, err := s2.Decode(dst[:n], src)
	if err != nil {
		return -1
	}
	return len(out)
}

// --- Zstandard ---------------------------------------------------------

// rawDictID is the non-zero dictionary id written into zstd frames that use
// a raw-content dictionary, so the decoder can find the matching dictionary.
const rawDictID = 1

var (
	zstdEncoderPools   = make(map[int]*sync.Pool)
	zstdEncoderPoolsMu sync.RWMutex
	zstdSharedDecoder, _ = zstd.NewReader(nil)
)

func getZstdEncoderPool(level int, dict []byte) *sync.Pool {
	key := level
	if len(dict) > 0 {
		// Dictionary-bearing encoders are not pooled across dictionaries;
		// a distinct pool per (level) is still used for the no-dict path.
		return &sync.Pool{New: func() interface{} { return newZstdEncoder(level, dict) }}
	}
	zstdEncoderPoolsMu.RLock()
	pool, ok := zstdEncoderPools[key]
	zstdEncoderPoolsMu.RUnlock()
	if ok {
		return pool
	}
	zstdEncoderPoolsMu.Lock()
	defer zstdEncoderPoolsMu.Unlock()
	if pool, ok = zstdEncoderPools[key]; ok {
		return pool
	}
	pool = &sync.Pool{New: func() interface{} { return newZstdEncoder(level, nil) }}
	zstdEncoderPools[key] = pool
	return pool
}

func newZstdEncoder(level int, dict []byte) *zstd.Encoder {
	opts := []zstd.EOption{
		zstd.WithEncoderLevel(zstdLevel(level)),
		zstd.WithEncoderConcurrency(1),
	}
	if len(dict) > 0 {
		opts = append(opts, zstd.WithEncoderDictRaw(rawDictID, dict))
	}
	enc, _ := zstd.NewWriter(nil, opts...)
	return enc
}

func zstdLevel(clevel int) zstd.EncoderLevel {
	// clevel is the core's 0..9 dial; map it onto zstd's four encoder levels.
	switch {
	case clevel <= 1:
		return zstd.SpeedFastest
	case clevel <= 4:
		return zstd.SpeedDefault
	case clevel <= 7:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

// zstdEncode and zstdDecode take their dictionary, if any, from ctx (a
// []byte set by the chunk engine once C9 has trained one for this chunk).
// The dictionary is raw content (not a zstd-format dictionary) registered
// under rawDictID. A nil ctx gives the plain dictionary-free path.
func zstdEncode(src, dst []byte, level int, ctx interface{}) int {
	dict, _ := ctx.([]byte)
	pool := getZstdEncoderPool(level, dict)
	enc := pool.Get().(*zstd.Encoder)
	defer pool.Put(enc)
	out := enc.EncodeAll(src, make([]byte, 0, len(src)))
	if len(out) == 0 || len(out) > len(dst) {
		return 0
	}
	copy(dst, out)
	return len(out)
}

func zstdDecode(src, dst []byte, ctx interface{}) int {
	dict, _ := ctx.([]byte)
	dec := zstdSharedDecoder
	if len(dict) > 0 {
		d, err := zstd.NewReader(nil, zstd.WithDecoderDictRaw(rawDictID, dict))
		if err != nil {
			return -1
		}
		defer d.Close()
		dec = d
	}
	out, err := dec.DecodeAll(src, dst[:0])
	if err != nil || len(out) > len(dst) {
		return -1
	}
	return len(out)
}

// --- DEFLATE -------------------------------------------------------------

func deflateEncode(src, dst []byte, level int, ctx interface{}) int {
	if level < 1 {
		level = 1
	}
	if level > 9 {
		level = 9
	}
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return -1
	}
	if _, err := w.Write(src); err != nil {
		return -1
	}
	if err := w.Close(); err != nil {
		return -1
	}
	if buf.Len() == 0 || buf.Len() > len(dst) {
		return 0
	}
	copy(dst, buf.Bytes())
	return buf.Len()
}

func deflateDecode(src, dst []byte, ctx interface{}) int {
	r := flate.NewReader(bytes.NewReader(src))
	defer r.Close()
	n, err := io.ReadFull(r, dst)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return -1
	}
	// Confirm the stream is fully consumed (no trailing bytes beyond dst's capacity).
	var extra [1]byte
	if m, _ := r.Read(extra[:]); m > 0 {
		return -1
	}
	return n
}
