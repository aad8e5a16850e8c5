package chunk

import (
	"encoding/binary"
	"fmt"

	"github.com/blox/blox/block"
	"github.com/blox/blox/codec"
	"github.com/blox/blox/errs"
	"github.com/blox/blox/filter"
	"github.com/blox/blox/header"
)

// GetItem decompresses only the blocks intersecting the element range
// [start, start+nitems) of chunk and writes the corresponding
// nitems*typesize bytes into dst (§4.9). Blocks outside the range are not
// decompressed; a special-value chunk is materialised in full before the
// range is copied out.
func GetItem(reg *codec.Registry, chunk []byte, start, nitems int, dst []byte) error {
	h, err := header.ReadHeader(chunk, true)
	if err != nil {
		return err
	}
	ts := int(h.TypeSize)
	if ts == 0 {
		ts = len(chunk) - h.HeaderLen() // SpecialValue recovers typesize from cbytes
	}
	nelem := int(h.NBytes) / maxInt(ts, 1)
	if start < 0 || nitems < 0 || start+nitems > nelem {
		return fmt.Errorf("chunk: %w: range [%d,%d) out of bounds for %d elements", errs.ErrInvalidParam, start, start+nitems, nelem)
	}
	need := nitems * ts
	if len(dst) < need {
		return fmt.Errorf("chunk: %w: dst has %d bytes, need %d", errs.ErrWriteBufferShort, len(dst), need)
	}

	headerLen := h.HeaderLen()
	if h.SpecialType != header.SpecialNone {
		full := make([]byte, int(h.NBytes))
		if err := decodeSpecial(h, chunk[headerLen:], full); err != nil {
			return err
		}
		copy(dst[:need], full[start*ts:start*ts+need])
		return nil
	}
	if h.Memcpyed {
		copy(dst[:need], chunk[headerLen+start*ts:headerLen+start*ts+need])
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
	blkCfg := block.Config{TypeSize: ts, CodecID: codec.ID(h.CodecID), DontSplit: h.DontSplit, Dict: dict}
	arena := filter.NewArena(int(lay.blockSize))

	rangeStart := start * ts
	rangeEnd := rangeStart + need
	for k := 0; k < lay.nblocks; k++ {
		blockStart, blockSize := lay.blockBounds(k)
		blockEnd := blockStart + blockSize
		if blockEnd <= rangeStart || blockStart >= rangeEnd {
			continue
		}
		blkBodyEnd := int(h.CBytes) - bodyStart
		if k+1 < lay.nblocks {
			blkBodyEnd = bstarts[k+1]
		}
		blockSrc := chunk[bodyStart+bstarts[k] : bodyStart+blkBodyEnd]

		scratch := make([]byte, blockSize)
		isLeftover := lay.isLeftover(k)
		if err := block.Decompress(blkCfg, reg, pipe, arena, nil, k, 0, 0, isLeftover, false, false, blockSrc, blockSize, scratch); err != nil {
			return err
		}

		loLocal := maxInt(rangeStart-blockStart, 0)
		hiLocal := minInt(rangeEnd-blockStart, blockSize)
		copy(dst[blockStart+loLocal-rangeStart:], scratch[loLocal:hiLocal])
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
