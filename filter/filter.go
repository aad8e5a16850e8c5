// Package filter implements the per-block filter primitives (byte-shuffle,
// bit-shuffle, delta, precision-truncation) and the rotating-buffer pipeline
// that chains them, per §4.2/§4.3 of the core specification.
package filter

import (
	"encoding/binary"
	"fmt"

	"github.com/blox/blox/errs"
)

// Stable wire identifiers for the built-in filters (§6). Anything at or
// above UserStart refers to a registered plugin, outside core scope.
const (
	Identity    uint8 = 0
	ByteShuffle uint8 = 1
	BitShuffleID uint8 = 2
	Delta       uint8 = 3
	TruncPrec   uint8 = 4

	UserStart uint8 = 32
)

// Shuffle rearranges src so that byte j of every typesize-wide element
// becomes contiguous, writing the result to dst. len(dst) must equal
// len(src). A trailing remainder (len(src) not a multiple of typesize) is
// copied through unshuffled.
func Shuffle(dst, src []byte, typesize int) error {
	if err := checkSameLen(dst, src); err != nil {
		return err
	}
	if typesize <= 1 {
		copy(dst, src)
		return nil
	}
	n := len(src)
	nelem := n / typesize
	for j := 0; j < typesize; j++ {
		base := j * nelem
		for i := 0; i < nelem; i++ {
			dst[base+i] = src[i*typesize+j]
		}
	}
	if rem := n - nelem*typesize; rem > 0 {
		copy(dst[nelem*typesize:], src[nelem*typesize:])
	}
	return nil
}

// Unshuffle reverses Shuffle.
func Unshuffle(dst, src []byte, typesize int) error {
	if err := checkSameLen(dst, src); err != nil {
		return err
	}
	if typesize <= 1 {
		copy(dst, src)
		return nil
	}
	n := len(src)
	nelem := n / typesize
	for j := 0; j < typesize; j++ {
		base := j * nelem
		for i := 0; i < nelem; i++ {
			dst[i*typesize+j] = src[base+i]
		}
	}
	if rem := n - nelem*typesize; rem > 0 {
		copy(dst[nelem*typesize:], src[nelem*typesize:])
	}
	return nil
}

// BitShuffle is the bit-plane analogue of Shuffle: bit b of byte-position p
// across every element is gathered into a contiguous run. len(src) must be
// a multiple of 8*typesize.
func BitShuffle(dst, src []byte, typesize int) error {
	if err := checkSameLen(dst, src); err != nil {
		return err
	}
	nbytes := len(src)
	if typesize <= 0 || nbytes%(8*typesize) != 0 {
		return fmt.Errorf("filter: %w: bitshuffle needs len multiple of 8*typesize(%d), got %d", errs.ErrFilterPipeline, typesize, nbytes)
	}
	for i := range dst {
		dst[i] = 0
	}
	nelem := nbytes / typesize
	planeBytes := nelem / 8
	for bit := 0; bit < 8*typesize; bit++ {
		byteIdx := bit / 8
		bitIdx := uint(bit % 8)
		planeBase := bit * planeBytes
		for e := 0; e < nelem; e++ {
			b := (src[e*typesize+byteIdx] >> bitIdx) & 1
			dst[planeBase+e/8] |= b << uint(e%8)
		}
	}
	return nil
}

// BitUnshuffle reverses BitShuffle.
func BitUnshuffle(dst, src []byte, typesize int) error {
	if err := checkSameLen(dst, src); err != nil {
		return err
	}
	nbytes := len(src)
	if typesize <= 0 || nbytes%(8*typesize) != 0 {
		return fmt.Errorf("filter: %w: bitunshuffle needs len multiple of 8*typesize(%d), got %d", errs.ErrFilterPipeline, typesize, nbytes)
	}
	for i := range dst {
		dst[i] = 0
	}
	nelem := nbytes / typesize
	planeBytes := nelem / 8
	for bit := 0; bit < 8*typesize; bit++ {
		byteIdx := bit / 8
		bitIdx := uint(bit % 8)
		planeBase := bit * planeBytes
		for e := 0; e < nelem; e++ {
			b := (src[planeBase+e/8] >> uint(e%8)) & 1
			dst[e*typesize+byteIdx] |= b << bitIdx
		}
	}
	return nil
}

// DeltaEncode replaces every element (after the first) with its difference
// from the preceding element; the first element is carried unchanged so
// DeltaDecode can reconstruct by prefix sum. len(src) must be a multiple of
// typesize.
func DeltaEncode(dst, src []byte, typesize int) error {
	if err := checkElementAligned(dst, src, typesize); err != nil {
		return err
	}
	n := len(src) / typesize
	if n == 0 {
		return nil
	}
	copy(dst[0:typesize], src[0:typesize])
	for i := 1; i < n; i++ {
		subBytesLE(dst[i*typesize:(i+1)*typesize], src[i*typesize:(i+1)*typesize], src[(i-1)*typesize:i*typesize])
	}
	return nil
}

// DeltaDecode reverses DeltaEncode via prefix sum from the stored first element.
func DeltaDecode(dst, src []byte, typesize int) error {
	if err := checkElementAligned(dst, src, typesize); err != nil {
		return err
	}
	n := len(src) / typesize
	if n == 0 {
		return nil
	}
	copy(dst[0:typesize], src[0:typesize])
	for i := 1; i < n; i++ {
		addBytesLE(dst[i*typesize:(i+1)*typesize], src[i*typesize:(i+1)*typesize], dst[(i-1)*typesize:i*typesize])
	}
	return nil
}

// TruncatePrecision zeros the low nbits significant bits of every IEEE-754
// element in src (typesize must be 4 or 8), writing the result to dst. This
// is lossy by design; its inverse on decode is the identity.
func TruncatePrecision(dst, src []byte, typesize int, nbits uint8) error {
	if err := checkSameLen(dst, src); err != nil {
		return err
	}
	copy(dst, src)
	switch typesize {
	case 4:
		if nbits >= 32 {
			nbits = 31
		}
		mask := ^uint32(0) << nbits
		for i := 0; i+4 <= len(dst); i += 4 {
			v := binary.LittleEndian.Uint32(dst[i : i+4])
			binary.LittleEndian.PutUint32(dst[i:i+4], v&mask)
		}
	case 8:
		if nbits >= 64 {
			nbits = 63
		}
		mask := ^uint64(0) << nbits
		for i := 0; i+8 <= len(dst); i += 8 {
			v := binary.LittleEndian.Uint64(dst[i : i+8])
			binary.LittleEndian.PutUint64(dst[i:i+8], v&mask)
		}
	default:
		return fmt.Errorf("filter: %w: truncate-precision requires typesize 4 or 8, got %d", errs.ErrFilterPipeline, typesize)
	}
	return nil
}

func checkSameLen(dst, src []byte) error {
	if len(dst) != len(src) {
		return fmt.Errorf("filter: %w: dst/src length mismatch: %d vs %d", errs.ErrFilterPipeline, len(dst), len(src))
	}
	return nil
}

func checkElementAligned(dst, src []byte, typesize int) error {
	if err := checkSameLen(dst, src); err != nil {
		return err
	}
	if typesize <= 0 || len(src)%typesize != 0 {
		return fmt.Errorf("filter: %w: length %d not a multiple of typesize %d", errs.ErrFilterPipeline, len(src), typesize)
	}
	return nil
}

// subBytesLE computes dst = a - b, interpreting a and b as equal-length
// little-endian unsigned integers, wrapping modulo 2^(8*len).
func subBytesLE(dst, a, b []byte) {
	var borrow int
	for i := 0; i < len(dst); i++ {
		d := int(a[i]) - int(b[i]) - borrow
		if d < 0 {
			d += 256
			borrow = 1
		} else {
			borrow = 0
		}
		dst[i] = byte(d)
	}
}

// addBytesLE computes dst = a + b, interpreting a and b as equal-length
// little-endian unsigned integers, wrapping modulo 2^(8*len).
func addBytesLE(dst, a, b []byte) {
	var carry int
	for i := 0; i < len(dst); i++ {
		s := int(a[i]) + int(b[i]) + carry
		if s >= 256 {
			s -= 256
			carry = 1
		} else {
			carry = 0
		}
		dst[i] = byte(s)
	}
}
