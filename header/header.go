// Package header encodes and decodes the chunk header defined by the core
// chunk format: a 16-byte minimal header, extended to 32 bytes whenever both
// shuffle flag bits are set. All multi-byte fields are little-endian on the
// wire; ReadHeader swaps in place on big-endian hosts.
package header

import (
	"encoding/binary"
	"fmt"

	"github.com/blox/blox/errs"
)

// Wire-format limits and version markers.
const (
	// Version is the current chunk format version this package writes.
	Version = 2
	// VersionLZ is the current internal codec-format version this package writes.
	VersionLZ = 1

	MinLength      = 16 // minimal header
	ExtendedLength = 32 // minimal + extended tail

	MaxTypeSize   = 255
	MaxBlockSize  = 1 << 31 - 1
	MaxBufferSize = 1<<31 - 1

	// NumFilterSlots is the fixed depth of the filter pipeline.
	NumFilterSlots = 6

	// UserCodecsStart is the first codec id reserved for plugins (out of core scope).
	UserCodecsStart = 128
	// UserFiltersStart is the first filter id reserved for registered plugins.
	UserFiltersStart = 32
)

// Flags bit positions within the minimal header's flags byte.
const (
	FlagByteShuffle = 1 << 0
	FlagMemcpyed    = 1 << 1
	FlagBitShuffle  = 1 << 2
	FlagDelta       = 1 << 3
	FlagDontSplit   = 1 << 4
	// bits 5-7 carry the 3-bit codec id.
	codecShift = 5
	codecMask  = 0x7
)

// ExtFlags bit positions within the extended header's ext_flags byte.
const (
	ExtFlagBigEndian = 1 << 0
	ExtFlagDict      = 1 << 1
	ExtFlagLazy      = 1 << 3
	// bits 4-7 carry SpecialType.
	specialShift = 4
	specialMask  = 0xf
)

// SpecialType is the whole-chunk special-value encoding carried in ext_flags.
type SpecialType uint8

const (
	SpecialNone SpecialType = iota
	SpecialZero
	SpecialNaN
	SpecialValue
	SpecialUninit

	specialLastID = SpecialUninit
)

func (s SpecialType) String() string {
	switch s {
	case SpecialNone:
		return "none"
	case SpecialZero:
		return "zero"
	case SpecialNaN:
		return "nan"
	case SpecialValue:
		return "value"
	case SpecialUninit:
		return "uninit"
	default:
		return fmt.Sprintf("special(%d)", uint8(s))
	}
}

// FilterSpec is one {id, meta} slot in the filter pipeline.
type FilterSpec struct {
	ID   uint8
	Meta uint8
}

// Header is the decoded form of a chunk header, minimal or extended.
type Header struct {
	Version   uint8
	VersionLZ uint8

	ByteShuffle bool
	BitShuffle  bool
	Delta       bool
	Memcpyed    bool
	DontSplit   bool
	CodecID     uint8

	TypeSize  uint8
	NBytes    uint32
	BlockSize uint32
	CBytes    uint32

	// Extended fields; zero-valued unless Extended is true.
	Extended    bool
	Filters     [NumFilterSlots]FilterSpec
	UserCodec   uint8
	CodecMeta   uint8
	ExtFlags    uint8
	BigEndian   bool
	HasDict     bool
	Lazy        bool
	SpecialType SpecialType
}

// HeaderLen returns the on-wire length of h: MinLength or ExtendedLength.
func (h *Header) HeaderLen() int {
	if h.Extended {
		return ExtendedLength
	}
	return MinLength
}

// flagsByte packs the minimal header's flags byte.
func (h *Header) flagsByte() uint8 {
	var f uint8
	if h.ByteShuffle {
		f |= FlagByteShuffle
	}
	if h.Memcpyed {
		f |= FlagMemcpyed
	}
	if h.BitShuffle {
		f |= FlagBitShuffle
	}
	if h.Delta {
		f |= FlagDelta
	}
	if h.DontSplit {
		f |= FlagDontSplit
	}
	f |= (h.CodecID & codecMask) << codecShift
	return f
}

func (h *Header) extFlagsByte() uint8 {
	var f uint8
	if h.BigEndian {
		f |= ExtFlagBigEndian
	}
	if h.HasDict {
		f |= ExtFlagDict
	}
	if h.Lazy {
		f |= ExtFlagLazy
	}
	f |= (uint8(h.SpecialType) & specialMask) << specialShift
	return f
}

// WriteHeader packs h into dst, which must be at least h.HeaderLen() bytes,
// and returns the number of bytes written.
func WriteHeader(h *Header, dst []byte) (int, error) {
	n := h.HeaderLen()
	if len(dst) < n {
		return 0, fmt.Errorf("header: dst too small: have %d, need %d", len(dst), n)
	}
	dst[0] = h.Version
	dst[1] = h.VersionLZ
	dst[2] = h.flagsByte()
	dst[3] = h.TypeSize
	binary.LittleEndian.PutUint32(dst[4:8], h.NBytes)
	binary.LittleEndian.PutUint32(dst[8:12], h.BlockSize)
	binary.LittleEndian.PutUint32(dst[12:16], h.CBytes)
	if !h.Extended {
		return MinLength, nil
	}
	for i, f := range h.Filters {
		dst[16+i] = f.ID
	}
	dst[22] = h.UserCodec
	dst[23] = h.CodecMeta
	for i, f := range h.Filters {
		dst[24+i] = f.Meta
	}
	dst[30] = 0 // reserved
	dst[31] = h.extFlagsByte()
	return ExtendedLength, nil
}

// ReadHeader parses src as a chunk header. wantExtended controls whether the
// extended tail is read when the minimal flags indicate it is present; a
// caller that only needs the minimal fields (e.g. to decide how much more to
// read from a stream) passes false.
func ReadHeader(src []byte, wantExtended bool) (*Header, error) {
	if len(src) < MinLength {
		return nil, fmt.Errorf("header: %w: need at least %d bytes, got %d", errs.ErrReadBufferShort, MinLength, len(src))
	}
	h := &Header{}
	h.Version = src[0]
	h.VersionLZ = src[1]
	flags := src[2]
	h.ByteShuffle = flags&FlagByteShuffle != 0
	h.Memcpyed = flags&FlagMemcpyed != 0
	h.BitShuffle = flags&FlagBitShuffle != 0
	h.Delta = flags&FlagDelta != 0
	h.DontSplit = flags&FlagDontSplit != 0
	h.CodecID = (flags >> codecShift) & codecMask
	h.TypeSize = src[3]
	h.NBytes = binary.LittleEndian.Uint32(src[4:8])
	h.BlockSize = binary.LittleEndian.Uint32(src[8:12])
	h.CBytes = binary.LittleEndian.Uint32(src[12:16])

	if h.Version > Version {
		return nil, fmt.Errorf("header: %w: version %d > supported %d", errs.ErrVersionUnsupported, h.Version, Version)
	}
	if h.CBytes != 0 && h.CBytes < MinLength {
		return nil, fmt.Errorf("header: %w: cbytes %d < minimum header length", errs.ErrInvalidHeader, h.CBytes)
	}

	extendedPresent := h.ByteShuffle && h.BitShuffle
	if wantExtended && extendedPresent {
		if len(src) < ExtendedLength {
			return nil, fmt.Errorf("header: %w: extended header needs %d bytes, got %d", errs.ErrReadBufferShort, ExtendedLength, len(src))
		}
		if h.CBytes != 0 && h.CBytes < ExtendedLength {
			return nil, fmt.Errorf("header: %w: cbytes %d < extended header length", errs.ErrInvalidHeader, h.CBytes)
		}
		h.Extended = true
		for i := range h.Filters {
			h.Filters[i].ID = src[16+i]
		}
		h.UserCodec = src[22]
		h.CodecMeta = src[23]
		for i := range h.Filters {
			h.Filters[i].Meta = src[24+i]
		}
		if h.Version == versionAlpha {
			// Historical quirk: format version ALPHA did not zero the last
			// filter slot; the reader explicitly zeroes it.
			h.Filters[NumFilterSlots-1] = FilterSpec{}
		}
		extFlags := src[31]
		h.ExtFlags = extFlags
		h.BigEndian = extFlags&ExtFlagBigEndian != 0
		h.HasDict = extFlags&ExtFlagDict != 0
		h.Lazy = extFlags&ExtFlagLazy != 0
		h.SpecialType = SpecialType((extFlags >> specialShift) & specialMask)
		if h.SpecialType > specialLastID {
			return nil, fmt.Errorf("header: %w: unknown special type %d", errs.ErrInvalidHeader, h.SpecialType)
		}
	}

	if h.BlockSize == 0 && !(h.SpecialType != SpecialNone) {
		return nil, fmt.Errorf("header: %w: blocksize is zero", errs.ErrInvalidHeader)
	}
	if h.BlockSize > MaxBlockSize {
		return nil, fmt.Errorf("header: %w: blocksize %d exceeds maximum", errs.ErrInvalidHeader, h.BlockSize)
	}
	if h.TypeSize == 0 && h.SpecialType != SpecialValue {
		return nil, fmt.Errorf("header: %w: typesize is zero", errs.ErrInvalidHeader)
	}
	if h.SpecialType != SpecialNone && h.SpecialType != SpecialValue && h.TypeSize != 0 && h.NBytes%uint32(h.TypeSize) != 0 {
		return nil, fmt.Errorf("header: %w: nbytes %d not a multiple of typesize %d", errs.ErrInvalidHeader, h.NBytes, h.TypeSize)
	}
	return h, nil
}

// versionAlpha is the historical format version that omitted zeroing the
// last filter slot on write; see ReadHeader's ALPHA quirk handling.
const versionAlpha = 1

// HostBigEndian reports whether the current process is running on a
// big-endian host. Callers writing an extended header set h.BigEndian from
// this before calling WriteHeader.
func HostBigEndian() bool {
	var x uint16 = 1
	buf := [2]byte{}
	binary.NativeEndian.PutUint16(buf[:], x)
	return buf[0] == 0
}
