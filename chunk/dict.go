package chunk

import (
	"sort"

	"github.com/blox/blox/codec"
	"github.com/blox/blox/filter"
	"github.com/blox/blox/header"
)

// MaxDictSize caps a trained dictionary's size, mirroring blosc2's
// BLOSC2_MAXDICTSIZE-style ceiling.
const MaxDictSize = 112 * 1024

const ngramSize = 8

// trainDictionary implements C9: it runs the filter pipeline (but not the
// codec) over every block to collect the sample pool, partitions it into
// fragments, and builds a dictionary from the most frequent n-grams across
// those fragments. No library in the pack exposes a standalone COVER-style
// dictionary trainer (zstd's own CLI trainer is not part of
// klauspost/compress's API surface), so this sampler is hand-written; the
// dictionary it produces is then applied through the real zstd library
// dictionary support in codec/builtins.go.
func trainDictionary(cfg Config, reg *codec.Registry, lay layout, src []byte) ([]byte, error) {
	h := buildHeader(cfg, lay.nbytes, lay.blockSize, header.SpecialNone)
	pipe := pipelineFor(cfg, h)
	arena := filter.NewArena(int(lay.blockSize))

	samplePool := make([]byte, 0, lay.nbytes)
	for k := 0; k < lay.nblocks; k++ {
		start, size := lay.blockBounds(k)
		filtered, err := pipe.Forward(arena, src[start:start+size], cfg.Pre, k, 0, 0)
		if err != nil {
			return nil, err
		}
		samplePool = append(samplePool, filtered...)
	}

	numFragments := lay.nblocks * int(cfg.TypeSize)
	if numFragments < 8 {
		numFragments = 8
	}
	if numFragments > len(samplePool) {
		numFragments = len(samplePool)
	}
	if numFragments == 0 {
		return nil, nil
	}
	fragSize := len(samplePool) / numFragments
	if fragSize == 0 {
		fragSize = 1
	}

	dictCap := MaxDictSize
	if v := lay.nbytes / 20; v < dictCap {
		dictCap = v
	}
	if dictCap <= 0 {
		return nil, nil
	}

	return buildDictionary(samplePool, fragSize, dictCap), nil
}

type ngramCount struct {
	gram  string
	count int
}

// buildDictionary picks the most frequent fixed-size n-grams across
// fragments of samplePool (each fragSize bytes) and concatenates them,
// most frequent first, until dictCap bytes are reached.
func buildDictionary(samplePool []byte, fragSize, dictCap int) []byte {
	counts := make(map[string]int)
	for off := 0; off+fragSize <= len(samplePool); off += fragSize {
		frag := samplePool[off : off+fragSize]
		for i := 0; i+ngramSize <= len(frag); i += ngramSize {
			counts[string(frag[i:i+ngramSize])]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	ordered := make([]ngramCount, 0, len(counts))
	for g, c := range counts {
		ordered = append(ordered, ngramCount{gram: g, count: c})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].gram < ordered[j].gram
	})

	dict := make([]byte, 0, dictCap)
	for _, nc := range ordered {
		if len(dict)+len(nc.gram) > dictCap {
			break
		}
		dict = append(dict, nc.gram...)
	}
	return dict
}
