// Package codec implements the codec registry (C4): a static table mapping
// codec codes to backend encode/decode functions and per-codec metadata,
// plus the plugin extension point named but left unimplemented by the core
// specification (dynamic loading of plugins is explicitly out of scope).
package codec

import (
	"fmt"

	"github.com/blox/blox/errs"
)

// Backend function-pointer contract §1: each backend provides exactly these
// two functions. Return-value conventions (§4.5):
//   Encode: >0 compressed size; 0 means incompressible; <0 is an error.
//   Decode: >=0 decompressed size; <0 is an error.
type EncodeFunc func(src []byte, dst []byte, level int, ctx interface{}) int
type DecodeFunc func(src []byte, dst []byte, ctx interface{}) int

// ID is a stable wire codec identifier. Values below UserStart are built in;
// values at or above it refer to a registered plugin (out of core scope).
type ID uint8

const (
	LZLite     ID = 0
	LZFast     ID = 1
	LZHC       ID = 2
	Deflate    ID = 3
	DictEntrop ID = 4

	UserStart ID = 128
)

// Info describes one registered codec's static metadata.
type Info struct {
	ID          ID
	Name        string
	FormatID    uint8 // 3 bits, packed into the header's codec-id field
	Version     uint8
	DictCapable bool
	Encode      EncodeFunc
	Decode      DecodeFunc
}

// Registry resolves codec codes to backend function pairs.
type Registry struct {
	byID map[ID]*Info
}

// NewRegistry returns a Registry pre-populated with the built-in codecs.
func NewRegistry() *Registry {
	r := &Registry{byID: make(map[ID]*Info)}
	for _, info := range builtins() {
		info := info
		r.byID[info.ID] = &info
	}
	return r
}

// Register adds or replaces a codec entry, e.g. for any id >= UserStart a
// caller wants to install (the plugin loading
// mechanism itself is outside core scope — this just takes the callback
// pair once a caller already has one).
func (r *Registry) Register(info Info) {
	info := info
	r.byID[info.ID] = &info
}

// Lookup resolves id to its registered Info.
func (r *Registry) Lookup(id ID) (*Info, error) {
	info, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("codec: %w: id %d", errs.ErrCodecUnsupported, id)
	}
	return info, nil
}

// Acceleration derives a codec's recommended speed/ratio dial from clevel,
// per §4.4. Codecs that don't use this simply ignore it.
func Acceleration(clevel int) int {
	if clevel <= 0 {
		return 10
	}
	// Lower clevel => more acceleration (bias towards speed).
	a := 10 - clevel
	if a < 1 {
		a = 1
	}
	return a
}
