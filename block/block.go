// Package block implements the per-block compress/decompress engine (C5):
// filter pipeline invocation, sub-stream splitting, run detection, codec
// dispatch with a tight output budget, and the mirrored decompress path
// including the zero-run/repeated-byte/raw-literal special tokens of §4.5.
package block

import (
	"encoding/binary"
	"fmt"

	"github.com/blox/blox/codec"
	"github.com/blox/blox/errs"
	"github.com/blox/blox/filter"
)

// runToken is the single valid token byte following a repeated-nonzero-byte
// length prefix. Per §9's open question, any other token value (bits 1-7
// set) is data corruption rather than being silently tolerated.
const runToken = 0x01

// Config carries the per-block parameters that come from the chunk's
// configuration rather than from the block's own content.
type Config struct {
	TypeSize  int
	CodecID   codec.ID
	CLevel    int
	DontSplit bool
	// Dict, if non-nil, is passed through to the codec as its encode/decode
	// ctx argument (C9's trained dictionary).
	Dict []byte
}

// nstreams returns how many equal sub-streams bsize should be split into,
// per §4.5 step 2: 1 when splitting is disabled, this is the leftover
// block, or dictionary-training is underway; otherwise TypeSize (capped to
// avoid degenerate splits for large typesizes).
func (c Config) nstreams(bsize int, isLeftover, training bool) int {
	if c.DontSplit || isLeftover || training || c.TypeSize <= 1 {
		return 1
	}
	ts := c.TypeSize
	const maxSplitTypeSize = 1024
	if ts > maxSplitTypeSize {
		ts = 1
	}
	if bsize%ts != 0 {
		return 1
	}
	return ts
}

// Compress fills dst with the compressed body for one block (filtered,
// split into sub-streams, each run-detected and codec-compressed or
// raw-literal-encoded) and returns the number of bytes written. dst must
// have at least enough room for the worst case (len(src) plus the per
// sub-stream 4-byte prefixes); Compress never writes more than len(dst).
func Compress(cfg Config, reg *codec.Registry, pipeline filter.Pipeline, arena *filter.Arena,
	pre filter.Callback, blockIndex, chunkIndex, tid int, isLeftover, training bool,
	src, dst []byte) (int, error) {

	filtered, err := pipeline.Forward(arena, src, pre, blockIndex, chunkIndex, tid)
	if err != nil {
		return 0, err
	}

	info, err := reg.Lookup(cfg.CodecID)
	if err != nil {
		return 0, err
	}

	nstreams := cfg.nstreams(len(filtered), isLeftover, training)
	if nstreams == 0 || len(filtered)%nstreams != 0 {
		nstreams = 1
	}
	neblock := len(filtered) / nstreams

	written := 0
	for s := 0; s < nstreams; s++ {
		sub := filtered[s*neblock : (s+1)*neblock]
		n, err := compressSubStream(info, cfg, sub, dst[written:])
		if err != nil {
			return 0, err
		}
		written += n
	}
	return written, nil
}

func compressSubStream(info *codec.Info, cfg Config, sub, budget []byte) (int, error) {
	if len(budget) < 4 {
		return 0, fmt.Errorf("block: %w: no room for length prefix", errs.ErrWriteBufferShort)
	}
	if runByte, isRun := detectRun(sub); isRun {
		if runByte == 0 {
			binary.LittleEndian.PutUint32(budget[0:4], 0)
			return 4, nil
		}
		if len(budget) < 5 {
			return 0, fmt.Errorf("block: %w: no room for run token", errs.ErrWriteBufferShort)
		}
		binary.LittleEndian.PutUint32(budget[0:4], uint32(int32(-int(runByte))))
		budget[4] = runToken
		return 5, nil
	}

	payloadBudget := budget[4:]
	if len(payloadBudget) > len(sub) {
		payloadBudget = payloadBudget[:len(sub)]
	}
	n := info.Encode(sub, payloadBudget, cfg.CLevel, cfg.Dict)
	switch {
	case n > 0:
		binary.LittleEndian.PutUint32(budget[0:4], uint32(int32(n)))
		return 4 + n, nil
	case n == 0:
		// Incompressible: fall back to a raw literal, if it fits.
		if len(budget) < 4+len(sub) {
			return 0, fmt.Errorf("block: %w: raw literal does not fit budget", errs.ErrIncompressible)
		}
		binary.LittleEndian.PutUint32(budget[0:4], uint32(int32(len(sub))))
		copy(budget[4:4+len(sub)], sub)
		return 4 + len(sub), nil
	default:
		return 0, fmt.Errorf("block: codec %s: %w", info.Name, errs.ErrDataCorruption)
	}
}

// detectRun reports whether sub is a run of a single repeated byte.
func detectRun(sub []byte) (b byte, ok bool) {
	if len(sub) == 0 {
		return 0, false
	}
	first := sub[0]
	for _, v := range sub[1:] {
		if v != first {
			return 0, false
		}
	}
	return first, true
}

// Decompress reconstructs one block of bsize bytes from its compressed body
// src into dst[:bsize]. maskout skips the block entirely, per §4.5 step 1.
// Sub-stream splitting must match what Compress used, so the caller passes
// the same isLeftover/training flags.
func Decompress(cfg Config, reg *codec.Registry, pipeline filter.Pipeline, arena *filter.Arena,
	post filter.Callback, blockIndex, chunkIndex, tid int, isLeftover, training, maskout bool,
	src []byte, bsize int, dst []byte) error {

	if maskout {
		return nil
	}

	info, err := reg.Lookup(cfg.CodecID)
	if err != nil {
		return err
	}

	nstreams := cfg.nstreams(bsize, isLeftover, training)
	if nstreams == 0 || bsize%nstreams != 0 {
		nstreams = 1
	}
	neblock := bsize / nstreams

	filtered := arena.DecodeScratch(bsize)
	pos := 0
	for s := 0; s < nstreams; s++ {
		n, err := decompressSubStream(info, cfg, src[pos:], neblock, filtered[s*neblock:(s+1)*neblock])
		if err != nil {
			return err
		}
		pos += n
	}

	out, err := pipeline.Reverse(arena, filtered, post, blockIndex, chunkIndex, tid)
	if err != nil {
		return err
	}
	if len(out) != len(dst) {
		return fmt.Errorf("block: %w: reverse pipeline produced %d bytes, want %d", errs.ErrDataCorruption, len(out), len(dst))
	}
	copy(dst, out)
	return nil
}

func decompressSubStream(info *codec.Info, cfg Config, src []byte, neblock int, dst []byte) (int, error) {
	if len(src) < 4 {
		return 0, fmt.Errorf("block: %w: missing sub-stream length prefix", errs.ErrReadBufferShort)
	}
	prefix := int32(binary.LittleEndian.Uint32(src[0:4]))
	switch {
	case prefix == 0:
		for i := range dst {
			dst[i] = 0
		}
		return 4, nil
	case prefix < 0:
		if len(src) < 5 {
			return 0, fmt.Errorf("block: %w: missing run token", errs.ErrReadBufferShort)
		}
		token := src[4]
		if token != runToken {
			return 0, fmt.Errorf("block: %w: reserved run token 0x%02x", errs.ErrDataCorruption, token)
		}
		v := byte(-prefix)
		for i := range dst {
			dst[i] = v
		}
		return 5, nil
	case int(prefix) == neblock:
		if len(src) < 4+neblock {
			return 0, fmt.Errorf("block: %w: raw literal truncated", errs.ErrReadBufferShort)
		}
		copy(dst, src[4:4+neblock])
		return 4 + neblock, nil
	default:
		if len(src) < 4+int(prefix) {
			return 0, fmt.Errorf("block: %w: compressed sub-stream truncated", errs.ErrReadBufferShort)
		}
		n := info.Decode(src[4:4+int(prefix)], dst, cfg.Dict)
		if n < 0 {
			return 0, fmt.Errorf("block: codec %s: %w", info.Name, errs.ErrDataCorruption)
		}
		if n != neblock {
			return 0, fmt.Errorf("block: %w: decoded %d bytes, want %d", errs.ErrDataCorruption, n, neblock)
		}
		return 4 + int(prefix), nil
	}
}
