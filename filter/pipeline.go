package filter

import (
	"fmt"

	"github.com/blox/blox/errs"
	"github.com/blox/blox/header"
)

// Callback is the caller-installed pre-/post-filter hook of §4.3/§9: a
// small trait-like object invoked once before the pipeline on compression
// (prefilter) or once after it on decompression (postfilter).
type Callback interface {
	Run(blockInput, blockOutput []byte, blockIndex, chunkIndex, tid int, scratch []byte) error
}

// Arena holds the rotating scratch buffers a pipeline needs: the filter
// loop's current input/output plus a spare used for pre/postfilter hand-off,
// and a fourth slot (DecodeScratch) block/ uses to assemble decoded
// sub-streams before running Reverse over the whole block. Buffers grow on
// demand when blocksize increases and are otherwise reused across the blocks
// one worker handles; the chunk engine allocates fresh arenas for every
// chunk call, per §4.11/§5's "Thread-local: the four scratch buffers".
type Arena struct {
	bufs [4][]byte
}

// NewArena allocates an arena sized for blocksize bytes.
func NewArena(blocksize int) *Arena {
	a := &Arena{}
	a.Resize(blocksize)
	return a
}

// Resize grows each scratch buffer to at least blocksize bytes, leaving
// larger buffers untouched.
func (a *Arena) Resize(blocksize int) {
	for i := range a.bufs {
		if len(a.bufs[i]) < blocksize {
			a.bufs[i] = make([]byte, blocksize)
		}
	}
}

// slot returns a's scratch buffer i truncated to length n, growing it first
// if necessary.
func (a *Arena) slot(i, n int) []byte {
	if len(a.bufs[i]) < n {
		a.bufs[i] = make([]byte, n)
	}
	return a.bufs[i][:n]
}

// DecodeScratch returns the arena's fourth scratch slot, sized n. It is not
// touched by Forward/Reverse's own filter-stage buffers (slots 0-2), so a
// caller can fill it with decoded sub-streams and hand it to Reverse as src
// without aliasing the pipeline's internal buffers.
func (a *Arena) DecodeScratch(n int) []byte {
	return a.slot(3, n)
}

// Pipeline is a fixed-depth ordered filter list bound to one typesize.
type Pipeline struct {
	Filters  [header.NumFilterSlots]header.FilterSpec
	TypeSize int
}

// FromHeader builds a Pipeline from a decoded extended header. Non-extended
// headers produce the single-filter byte-shuffle/bit-shuffle/delta pipeline
// implied by their minimal flags.
func FromHeader(h *header.Header) Pipeline {
	p := Pipeline{TypeSize: int(h.TypeSize)}
	if h.Extended {
		p.Filters = h.Filters
		return p
	}
	slot := 0
	if h.BitShuffle {
		p.Filters[slot] = header.FilterSpec{ID: BitShuffleID}
		slot++
	} else if h.ByteShuffle {
		p.Filters[slot] = header.FilterSpec{ID: ByteShuffle}
		slot++
	}
	if h.Delta && slot < header.NumFilterSlots {
		p.Filters[slot] = header.FilterSpec{ID: Delta}
	}
	return p
}

// active returns the non-identity filters in pipeline order.
func (p *Pipeline) active() []header.FilterSpec {
	out := make([]header.FilterSpec, 0, header.NumFilterSlots)
	for _, f := range p.Filters {
		if f.ID != Identity {
			out = append(out, f)
		}
	}
	return out
}

// Forward runs the pipeline end-to-start... no: per §4.3 the pipeline is
// applied in declared order on compression (each stage's output feeds the
// next) and in reverse on decompression. prefilter, if non-nil, runs once
// before the first stage.
func (p *Pipeline) Forward(a *Arena, src []byte, pre Callback, blockIndex, chunkIndex, tid int) ([]byte, error) {
	cur := src
	if pre != nil {
		out := a.slot(2, len(src))
		if err := pre.Run(src, out, blockIndex, chunkIndex, tid, a.slot(0, len(src))); err != nil {
			return nil, fmt.Errorf("filter: prefilter: %w", err)
		}
		cur = out
	}
	slotIdx := 0
	for _, f := range p.active() {
		out := a.slot(slotIdx%2, len(cur))
		if err := forwardOne(f, p.TypeSize, cur, out); err != nil {
			return nil, err
		}
		cur = out
		slotIdx++
	}
	return cur, nil
}

// Reverse undoes Forward: filters run in reverse declared order, then the
// postfilter (if any) runs once.
func (p *Pipeline) Reverse(a *Arena, src []byte, post Callback, blockIndex, chunkIndex, tid int) ([]byte, error) {
	active := p.active()
	cur := src
	slotIdx := 0
	for i := len(active) - 1; i >= 0; i-- {
		f := active[i]
		out := a.slot(slotIdx%2, len(cur))
		if err := reverseOne(f, p.TypeSize, cur, out); err != nil {
			return nil, err
		}
		cur = out
		slotIdx++
	}
	if post != nil {
		out := a.slot(2, len(cur))
		if err := post.Run(cur, out, blockIndex, chunkIndex, tid, a.slot((slotIdx+1)%2, len(cur))); err != nil {
			return nil, fmt.Errorf("filter: postfilter: %w", err)
		}
		cur = out
	}
	return cur, nil
}

func forwardOne(f header.FilterSpec, typesize int, src, dst []byte) error {
	switch f.ID {
	case ByteShuffle:
		return Shuffle(dst, src, typesize)
	case BitShuffleID:
		return BitShuffle(dst, src, typesize)
	case Delta:
		return DeltaEncode(dst, src, typesize)
	case TruncPrec:
		return TruncatePrecision(dst, src, typesize, f.Meta)
	case Identity:
		copy(dst, src)
		return nil
	default:
		return fmt.Errorf("filter: %w: unregistered filter id %d (plugins are out of core scope)", errs.ErrFilterPipeline, f.ID)
	}
}

func reverseOne(f header.FilterSpec, typesize int, src, dst []byte) error {
	switch f.ID {
	case ByteShuffle:
		return Unshuffle(dst, src, typesize)
	case BitShuffleID:
		return BitUnshuffle(dst, src, typesize)
	case Delta:
		return DeltaDecode(dst, src, typesize)
	case TruncPrec:
		// Lossy: truncation is a no-op on the way back.
		copy(dst, src)
		return nil
	case Identity:
		copy(dst, src)
		return nil
	default:
		return fmt.Errorf("filter: %w: unregistered filter id %d (plugins are out of core scope)", errs.ErrFilterPipeline, f.ID)
	}
}
