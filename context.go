package blox

import (
	"fmt"

	"github.com/blox/blox/chunk"
	"github.com/blox/blox/codec"
	"github.com/blox/blox/errs"
)

// Context holds configuration, the backing codec registry and the per-chunk
// parameters for one compression or decompression session (C10). Setters
// only record the change; it is validated and takes effect at the next
// Compress/Decompress/GetItem call. A Context is not safe for concurrent
// use by multiple goroutines; create one Context per goroutine that needs
// independent settings.
type Context struct {
	opts options
	reg  *codec.Registry

	maskout []bool
}

// NewContext returns a Context configured by opts, falling back to the
// library defaults (clevel 5, byte-shuffle, LZ-lite, nthreads 1) for
// anything not set.
func NewContext(opts ...Option) *Context {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &Context{opts: o, reg: codec.NewRegistry()}
}

// Set applies additional options to an existing context; later calls to
// Compress/Decompress/GetItem observe the change.
func (c *Context) Set(opts ...Option) {
	for _, fn := range opts {
		fn(&c.opts)
	}
}

// Registry returns the codec registry backing this context, so a caller
// can register a plugin codec before compressing.
func (c *Context) Registry() *codec.Registry {
	return c.reg
}

// SetBlockMaskout restricts the next Decompress call to skip the listed
// block indices; pass nil to clear it. The mask is consumed by Decompress
// and is not retained across calls other than through explicit re-setting,
// matching the "optionally clear the maskout after use" step of §4.6.
func (c *Context) SetBlockMaskout(mask []bool) {
	c.maskout = mask
}

// Compress produces a self-describing chunk for src under c's current
// configuration.
func (c *Context) Compress(src []byte) ([]byte, error) {
	if c.opts.typeSize == 0 {
		return nil, fmt.Errorf("blox: %w: typesize must be set before Compress", errs.ErrInvalidParam)
	}
	return chunk.Compress(c.opts.chunkConfig(), c.reg, src)
}

// Decompress reconstructs chunk into dst under c's current configuration,
// honouring any block mask set via SetBlockMaskout.
func (c *Context) Decompress(chunkBytes []byte, dst []byte) error {
	nthreads := c.opts.nthreads
	if nthreads <= 0 {
		nthreads = 1
	}
	err := chunk.Decompress(c.reg, chunkBytes, dst, nthreads, c.maskout, c.opts.post)
	c.maskout = nil
	return err
}

// GetItem decompresses only the blocks intersecting element range
// [start, start+nitems) of chunkBytes into dst.
func (c *Context) GetItem(chunkBytes []byte, start, nitems int, dst []byte) error {
	return chunk.GetItem(c.reg, chunkBytes, start, nitems, dst)
}

// CompressNaN, CompressValue and CompressUninit produce whole-chunk special
// encodings (§4.7); they bypass the normal block pipeline entirely.
func (c *Context) CompressNaN(nbytes int) ([]byte, error) {
	return chunk.CompressNaN(c.opts.chunkConfig(), nbytes)
}

func (c *Context) CompressValue(value []byte, n int) ([]byte, error) {
	return chunk.CompressValue(c.opts.chunkConfig(), value, n)
}

func (c *Context) CompressUninit(nbytes int) ([]byte, error) {
	return chunk.CompressUninit(c.opts.chunkConfig(), nbytes)
}
