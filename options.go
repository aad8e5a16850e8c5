// Package blox implements the public surface of the core (C10): a Context
// that owns configuration and a codec registry for one compression or
// decompression session (the worker pool and per-thread scratch arenas are
// created afresh by each Compress/Decompress/GetItem call and are not kept
// on the Context), plus a
// non-contextual convenience API backed by a single global context guarded
// by a mutex, mirroring the legacy global-context API the core specifies
// alongside the per-context one.
package blox

import (
	"github.com/blox/blox/chunk"
	"github.com/blox/blox/codec"
	"github.com/blox/blox/filter"
)

// Shuffle selects which shuffle filter, if any, occupies the pipeline's
// first slot.
type Shuffle = chunk.ShuffleMode

const (
	NoShuffle   = chunk.ShuffleNone
	ByteShuffle = chunk.ShuffleByte
	BitShuffle  = chunk.ShuffleBit
)

// SplitMode overrides the DONT_SPLIT decision independently of any other
// setting.
type SplitMode int

const (
	// SplitAuto lets the block engine decide per block (the default).
	SplitAuto SplitMode = iota
	SplitAlways
	SplitNever
	// SplitForwardCompat behaves like SplitNever but additionally forces a
	// minimal (non-extended) header when possible, for chunks meant to be
	// read by readers that predate the extended format.
	SplitForwardCompat
)

type options struct {
	typeSize  uint8
	clevel    int
	codecID   codec.ID
	shuffle   Shuffle
	delta     bool
	split     SplitMode
	blockSize uint32
	nthreads  int
	useDict   bool
	minimal   bool
	pre, post filter.Callback
}

func defaultOptions() options {
	return options{
		typeSize: 1,
		clevel:   5,
		codecID:  codec.LZLite,
		shuffle:  ByteShuffle,
		nthreads: 1,
		split:    SplitAuto,
	}
}

// Option configures a Context. Options are applied in order, so a later
// option overrides an earlier one of the same kind.
type Option func(*options)

// CLevel sets the compression level in [0,9]; 0 forces MEMCPYED.
func CLevel(level int) Option {
	return func(o *options) { o.clevel = level }
}

// Codec selects the backend codec used for every block.
func Codec(id codec.ID) Option {
	return func(o *options) { o.codecID = id }
}

// DoShuffle selects the shuffle filter occupying the pipeline's first slot.
func DoShuffle(s Shuffle) Option {
	return func(o *options) { o.shuffle = s }
}

// Delta enables the per-block delta filter.
func Delta(enabled bool) Option {
	return func(o *options) { o.delta = enabled }
}

// TypeSize sets the nominal element width used by shuffle and delta.
func TypeSize(n uint8) Option {
	return func(o *options) { o.typeSize = n }
}

// BlockSize overrides the automatic block-size heuristic; 0 restores it.
func BlockSize(n uint32) Option {
	return func(o *options) { o.blockSize = n }
}

// NThreads sets the worker-pool width. It takes effect at the context's
// next job; each Compress/Decompress call starts its own pool of this width.
func NThreads(n int) Option {
	return func(o *options) { o.nthreads = n }
}

// Split overrides the DONT_SPLIT decision.
func Split(mode SplitMode) Option {
	return func(o *options) { o.split = mode }
}

// UseDict enables dictionary training for dict-capable codecs.
func UseDict(enabled bool) Option {
	return func(o *options) { o.useDict = enabled }
}

// Minimal forces a 16-byte (BLOSC1_COMPAT) header on Compress: no
// dictionary, no ZERO detection, at most one shuffle filter plus delta.
// CompressNaN/CompressValue/CompressUninit still emit an extended header.
func Minimal(enabled bool) Option {
	return func(o *options) { o.minimal = enabled }
}

// Prefilter installs a callback run once before the filter pipeline during
// compression.
func Prefilter(cb filter.Callback) Option {
	return func(o *options) { o.pre = cb }
}

// Postfilter installs a callback run once after the filter pipeline during
// decompression.
func Postfilter(cb filter.Callback) Option {
	return func(o *options) { o.post = cb }
}

func (o options) dontSplit() bool {
	switch o.split {
	case SplitAlways:
		return false
	case SplitNever, SplitForwardCompat:
		return true
	default:
		return false
	}
}

func (o options) chunkConfig() chunk.Config {
	return chunk.Config{
		TypeSize:  o.typeSize,
		CLevel:    o.clevel,
		CodecID:   o.codecID,
		Shuffle:   o.shuffle,
		Delta:     o.delta,
		DontSplit: o.dontSplit(),
		BlockSize: o.blockSize,
		NThreads:  o.nthreads,
		Minimal:   o.minimal || o.split == SplitForwardCompat,
		UseDict:   o.useDict,
		Pre:       o.pre,
		Post:      o.post,
	}
}
