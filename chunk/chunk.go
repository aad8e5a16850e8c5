// Package chunk implements the chunk engine (C6): computing block layout,
// producing the self-describing chunk (header ‖ bstarts ‖ optional
// dictionary ‖ block bodies), the MEMCPYED fast path, and the whole-chunk
// special-value encodings, plus the getitem path (C8) and dictionary
// training (C9). It is grounded on original_source/blosc/blosc2.c's
// blosc_c/blosc_d chunk loops for layout and on
// cosnicolaou-pbzip2/parallel.go's dispatch shape for scheduling, by way of
// the block/ and pool/ packages.
package chunk

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/blox/blox/block"
	"github.com/blox/blox/codec"
	"github.com/blox/blox/errs"
	"github.com/blox/blox/filter"
	"github.com/blox/blox/header"
	"github.com/blox/blox/pool"
)

// MinBufferSize is the smallest input for which compression is attempted;
// below it (and whenever CLevel==0) the chunk engine chooses MEMCPYED.
const MinBufferSize = 128

// DefaultBlockSize is used when Config.BlockSize is 0 and the input is too
// large for a single block; it is doubled for clevel >= 7.
const DefaultBlockSize = 64 * 1024

// Config holds the caller-visible per-chunk compression parameters (§6).
type Config struct {
	TypeSize  uint8
	CLevel    int
	CodecID   codec.ID
	Shuffle   ShuffleMode
	Delta     bool
	DontSplit bool
	BlockSize uint32 // 0 = auto
	NThreads  int

	// Minimal forces a 16-byte header (BLOSC1_COMPAT) on Compress: at most
	// one shuffle filter plus delta, no dictionary, no ZERO detection. The
	// explicit CompressNaN/CompressValue/CompressUninit entry points still
	// emit an extended header.
	Minimal bool

	UseDict bool

	Pre, Post filter.Callback
}

// ShuffleMode selects which shuffle filter, if any, occupies the pipeline's
// first slot.
type ShuffleMode int

const (
	ShuffleNone ShuffleMode = iota
	ShuffleByte
	ShuffleBit
)

func (c Config) validate(nbytes int) error {
	if c.CLevel < 0 || c.CLevel > 9 {
		return fmt.Errorf("chunk: %w: clevel %d out of [0,9]", errs.ErrInvalidParam, c.CLevel)
	}
	if nbytes > header.MaxBufferSize {
		return fmt.Errorf("chunk: %w: srcsize %d exceeds maximum", errs.ErrInvalidParam, nbytes)
	}
	if c.TypeSize == 0 {
		return fmt.Errorf("chunk: %w: typesize must be > 0", errs.ErrInvalidParam)
	}
	return nil
}

func defaultBlockSize(typesize uint8, nbytes, clevel int) uint32 {
	bs := DefaultBlockSize
	if clevel >= 7 {
		bs *= 2
	}
	if nbytes > 0 && nbytes < bs {
		bs = nbytes
	}
	ts := int(typesize)
	if bs < ts {
		bs = ts
	}
	bs -= bs % ts
	if bs == 0 {
		bs = ts
	}
	return uint32(bs)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// layout captures the block geometry computed once per chunk.
type layout struct {
	nbytes    int
	blockSize uint32
	nblocks   int
	leftover  int // 0 means the last block is full
}

func computeLayout(nbytes int, blockSize uint32) layout {
	if nbytes == 0 {
		return layout{nbytes: 0, blockSize: blockSize, nblocks: 0, leftover: 0}
	}
	nblocks := ceilDiv(nbytes, int(blockSize))
	leftover := nbytes % int(blockSize)
	return layout{nbytes: nbytes, blockSize: blockSize, nblocks: nblocks, leftover: leftover}
}

func (l layout) blockBounds(k int) (start, size int) {
	start = k * int(l.blockSize)
	size = int(l.blockSize)
	if l.leftover != 0 && k == l.nblocks-1 {
		size = l.leftover
	}
	return start, size
}

func (l layout) isLeftover(k int) bool {
	return l.leftover != 0 && k == l.nblocks-1
}

func buildHeader(cfg Config, nbytes int, bs uint32, special header.SpecialType) *header.Header {
	h := &header.Header{
		Version:   header.Version,
		VersionLZ: header.VersionLZ,
		TypeSize:  cfg.TypeSize,
		NBytes:    uint32(nbytes),
		BlockSize: bs,
		DontSplit: cfg.DontSplit,
		CodecID:   uint8(cfg.CodecID),
		Delta:     cfg.Delta,
	}
	switch cfg.Shuffle {
	case ShuffleByte:
		h.ByteShuffle = true
	case ShuffleBit:
		h.BitShuffle = true
	}
	if cfg.Minimal && special == header.SpecialNone {
		return h
	}
	// Extended header: the minimal ByteShuffle/BitShuffle bits are forced to
	// both-1 purely as the "extended header present" discriminator; the real
	// pipeline lives in h.Filters.
	h.Extended = true
	h.ByteShuffle = true
	h.BitShuffle = true
	slot := 0
	switch cfg.Shuffle {
	case ShuffleByte:
		h.Filters[slot] = header.FilterSpec{ID: filter.ByteShuffle}
		slot++
	case ShuffleBit:
		h.Filters[slot] = header.FilterSpec{ID: filter.BitShuffleID}
		slot++
	}
	if cfg.Delta && slot < header.NumFilterSlots {
		h.Filters[slot] = header.FilterSpec{ID: filter.Delta}
	}
	h.BigEndian = header.HostBigEndian()
	h.SpecialType = special
	return h
}

func pipelineFor(cfg Config, h *header.Header) filter.Pipeline {
	if h.Extended {
		return filter.Pipeline{Filters: h.Filters, TypeSize: int(cfg.TypeSize)}
	}
	return filter.FromHeader(h)
}

// Compress produces a self-describing chunk for src per cfg. Whole-chunk
// special encodings (ZERO) are detected automatically; NaN/Value/Uninit are
// produced by the dedicated CompressNaN/CompressValue/CompressUninit
// entry points instead, since the core only recognises them when the
// caller asks for them explicitly.
func Compress(cfg Config, reg *codec.Registry, src []byte) ([]byte, error) {
	if err := cfg.validate(len(src)); err != nil {
		return nil, err
	}
	if !cfg.Minimal && isAllZero(src) {
		return compressSpecial(cfg, len(src), header.SpecialZero, nil)
	}
	if cfg.CLevel == 0 || len(src) < MinBufferSize {
		return compressMemcpyed(cfg, src)
	}

	bs := cfg.BlockSize
	if bs == 0 {
		bs = defaultBlockSize(cfg.TypeSize, len(src), cfg.CLevel)
	}
	lay := computeLayout(len(src), bs)

	var dict []byte
	if cfg.UseDict && !cfg.Minimal {
		info, err := reg.Lookup(cfg.CodecID)
		if err != nil {
			return nil, err
		}
		if !info.DictCapable {
			return nil, fmt.Errorf("chunk: %w: codec %v is not dictionary-capable", errs.ErrCodecDict, cfg.CodecID)
		}
		dict, err = trainDictionary(cfg, reg, lay, src)
		if err != nil {
			return nil, err
		}
	}

	h := buildHeader(cfg, len(src), bs, header.SpecialNone)
	h.HasDict = len(dict) > 0

	body, err := compressBlocks(cfg, reg, h, lay, src, dict)
	if err != nil {
		return nil, err
	}

	headerLen := h.HeaderLen()
	bstartsLen := lay.nblocks * 4
	dictAreaLen := 0
	if len(dict) > 0 {
		dictAreaLen = 4 + len(dict)
	}
	total := headerLen + bstartsLen + dictAreaLen + len(body.bytes)
	out := make([]byte, total)
	if _, err := header.WriteHeader(h, out); err != nil {
		return nil, err
	}
	for k, off := range body.bstarts {
		binary.LittleEndian.PutUint32(out[headerLen+4*k:headerLen+4*k+4], uint32(off))
	}
	pos := headerLen + bstartsLen
	if len(dict) > 0 {
		binary.LittleEndian.PutUint32(out[pos:pos+4], uint32(len(dict)))
		pos += 4
		copy(out[pos:], dict)
		pos += len(dict)
	}
	copy(out[pos:], body.bytes)

	h.CBytes = uint32(total)
	if _, err := header.WriteHeader(h, out); err != nil {
		return nil, err
	}
	return out, nil
}

type blockBody struct {
	bytes   []byte
	bstarts []int
}

func compressBlocks(cfg Config, reg *codec.Registry, h *header.Header, lay layout, src, dict []byte) (*blockBody, error) {
	pipe := pipelineFor(cfg, h)
	nthreads := cfg.NThreads
	if nthreads <= 0 {
		nthreads = 1
	}
	arenas := make([]*filter.Arena, nthreads)
	for i := range arenas {
		arenas[i] = filter.NewArena(int(lay.blockSize))
	}

	blkCfg := block.Config{TypeSize: int(cfg.TypeSize), CodecID: cfg.CodecID, CLevel: cfg.CLevel, DontSplit: cfg.DontSplit, Dict: dict}

	ctx := context.Background()
	op := pool.New(ctx, nthreads)
	for k := 0; k < lay.nblocks; k++ {
		k := k
		start, size := lay.blockBounds(k)
		srcBlock := src[start : start+size]
		isLeftover := lay.isLeftover(k)
		if _, err := op.Submit(func(tid int) (interface{}, error) {
			dst := make([]byte, size+4+4*int(cfg.TypeSize)+1)
			n, err := block.Compress(blkCfg, reg, pipe, arenas[tid], cfg.Pre, k, 0, tid, isLeftover, false, srcBlock, dst)
			if err != nil {
				return nil, err
			}
			out := make([]byte, n)
			copy(out, dst[:n])
			return out, nil
		}); err != nil {
			return nil, err
		}
	}
	go op.Close()

	results := make([][]byte, lay.nblocks)
	for res := range op.Results() {
		if res.Err != nil {
			return nil, res.Err
		}
		results[res.Order-1] = res.Value.([]byte)
	}

	bb := &blockBody{bstarts: make([]int, lay.nblocks)}
	offset := 0
	for k, r := range results {
		bb.bstarts[k] = offset
		offset += len(r)
	}
	bb.bytes = make([]byte, offset)
	pos := 0
	for _, r := range results {
		copy(bb.bytes[pos:], r)
		pos += len(r)
	}
	return bb, nil
}

func compressMemcpyed(cfg Config, src []byte) ([]byte, error) {
	h := buildHeader(cfg, len(src), uint32(max(len(src), 1)), header.SpecialNone)
	h.Memcpyed = true
	headerLen := h.HeaderLen()
	out := make([]byte, headerLen+len(src))
	if _, err := header.WriteHeader(h, out); err != nil {
		return nil, err
	}
	copy(out[headerLen:], src)
	h.CBytes = uint32(len(out))
	if _, err := header.WriteHeader(h, out); err != nil {
		return nil, err
	}
	return out, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func isAllZero(src []byte) bool {
	for _, b := range src {
		if b != 0 {
			return false
		}
	}
	return true
}

// Decompress reconstructs the original bytes of chunk into dst, which must
// be at least as large as the chunk's nbytes. maskout, if non-nil, is
// indexed by block number; a true entry skips that block's decode. post, if
// non-nil, runs once per decompressed block.
func Decompress(reg *codec.Registry, chunk []byte, dst []byte, nthreads int, maskout []bool, post filter.Callback) error {
	h, err := header.ReadHeader(chunk, true)
	if err != nil {
		return err
	}
	if int(h.NBytes) > len(dst) {
		return fmt.Errorf("chunk: %w: dst has %d bytes, need %d", errs.ErrReadBufferShort, len(dst), h.NBytes)
	}
	headerLen := h.HeaderLen()

	if h.SpecialType != header.SpecialNone {
		return decodeSpecial(h, chunk[headerLen:], dst[:h.NBytes])
	}
	if h.Memcpyed {
		copy(dst[:h.NBytes], chunk[headerLen:headerLen+int(h.NBytes)])
		return nil
	}

	lay := computeLayout(int(h.NBytes), h.BlockSize)
	bstartsLen := lay.nblocks * 4
	pos := headerLen + bstartsLen
	var dict []byte
	if h.HasDict {
		if len(chunk) < pos+4 {
			return fmt.Errorf("chunk: %w: truncated dictionary length", errs.ErrReadBufferShort)
		}
		dictLen := int(binary.LittleEndian.Uint32(chunk[pos : pos+4]))
		pos += 4
		if len(chunk) < pos+dictLen {
			return fmt.Errorf("chunk: %w: truncated dictionary", errs.ErrReadBufferShort)
		}
		dict = chunk[pos : pos+dictLen]
		pos += dictLen
	}
	bodyStart := pos

	bstarts := make([]int, lay.nblocks)
	for k := range bstarts {
		bstarts[k] = int(int32(binary.LittleEndian.Uint32(chunk[headerLen+4*k : headerLen+4*k+4])))
	}

	pipe := pipelineFor(Config{TypeSize: h.TypeSize, Delta: h.Delta}, h)
	blkCfg := block.Config{TypeSize: int(h.TypeSize), CodecID: codec.ID(h.CodecID), DontSplit: h.DontSplit, Dict: dict}

	if nthreads <= 0 {
		nthreads = 1
	}
	arenas := make([]*filter.Arena, nthreads)
	for i := range arenas {
		arenas[i] = filter.NewArena(int(lay.blockSize))
	}

	return pool.Static(context.Background(), nthreads, lay.nblocks, func(k, tid int) error {
		start, size := lay.blockBounds(k)
		blockEnd := int(h.CBytes) - bodyStart
		if k+1 < lay.nblocks {
			blockEnd = bstarts[k+1]
		}
		blockSrc := chunk[bodyStart+bstarts[k] : bodyStart+blockEnd]
		isLeftover := lay.isLeftover(k)
		masked := maskout != nil && k < len(maskout) && maskout[k]
		return block.Decompress(blkCfg, reg, pipe, arenas[tid], post, k, 0, tid, isLeftover, false, masked, blockSrc, size, dst[start:start+size])
	})
}
