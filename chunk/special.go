package chunk

import (
	"fmt"
	"math"

	"github.com/blox/blox/errs"
	"github.com/blox/blox/header"
)

// compressSpecial emits a header-only chunk for special types whose body is
// empty (ZERO, UNINIT) or a single broadcast value (VALUE). NaN fill is
// produced by CompressNaN, which also goes through this helper.
func compressSpecial(cfg Config, nbytes int, special header.SpecialType, value []byte) ([]byte, error) {
	h := buildHeader(cfg, nbytes, 0, special)
	headerLen := h.HeaderLen()
	bodyLen := len(value)
	out := make([]byte, headerLen+bodyLen)
	if _, err := header.WriteHeader(h, out); err != nil {
		return nil, err
	}
	copy(out[headerLen:], value)
	h.CBytes = uint32(len(out))
	if _, err := header.WriteHeader(h, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CompressNaN emits a special chunk that decodes to nbytes/typesize IEEE-754
// NaN values. typesize must be 4 or 8.
func CompressNaN(cfg Config, nbytes int) ([]byte, error) {
	if cfg.TypeSize != 4 && cfg.TypeSize != 8 {
		return nil, fmt.Errorf("chunk: %w: NaN special requires typesize 4 or 8, got %d", errs.ErrInvalidParam, cfg.TypeSize)
	}
	if nbytes%int(cfg.TypeSize) != 0 {
		return nil, fmt.Errorf("chunk: %w: nbytes %d not a multiple of typesize %d", errs.ErrInvalidParam, nbytes, cfg.TypeSize)
	}
	return compressSpecial(cfg, nbytes, header.SpecialNaN, nil)
}

// CompressValue emits a special chunk that broadcasts value (exactly
// typesize bytes) n times.
func CompressValue(cfg Config, value []byte, n int) ([]byte, error) {
	if len(value) != int(cfg.TypeSize) {
		return nil, fmt.Errorf("chunk: %w: value is %d bytes, want typesize %d", errs.ErrInvalidParam, len(value), cfg.TypeSize)
	}
	return compressSpecial(cfg, n*len(value), header.SpecialValue, value)
}

// CompressUninit emits a special chunk whose decode leaves the destination
// untouched.
func CompressUninit(cfg Config, nbytes int) ([]byte, error) {
	if cfg.TypeSize != 0 && nbytes%int(cfg.TypeSize) != 0 {
		return nil, fmt.Errorf("chunk: %w: nbytes %d not a multiple of typesize %d", errs.ErrInvalidParam, nbytes, cfg.TypeSize)
	}
	return compressSpecial(cfg, nbytes, header.SpecialUninit, nil)
}

// decodeSpecial fills dst (exactly h.NBytes long) per h.SpecialType. body is
// the chunk's bytes following the header (empty, or the single broadcast
// value for SpecialValue).
func decodeSpecial(h *header.Header, body []byte, dst []byte) error {
	switch h.SpecialType {
	case header.SpecialZero:
		for i := range dst {
			dst[i] = 0
		}
		return nil
	case header.SpecialUninit:
		return nil
	case header.SpecialNaN:
		return fillNaN(dst, int(h.TypeSize))
	case header.SpecialValue:
		ts := int(h.TypeSize)
		if ts == 0 {
			ts = len(body)
		}
		if len(body) < ts {
			return fmt.Errorf("chunk: %w: special value body too short", errs.ErrInvalidHeader)
		}
		for off := 0; off+ts <= len(dst); off += ts {
			copy(dst[off:off+ts], body[:ts])
		}
		return nil
	default:
		return fmt.Errorf("chunk: %w: unhandled special type %s", errs.ErrDataCorruption, h.SpecialType)
	}
}

func fillNaN(dst []byte, typesize int) error {
	switch typesize {
	case 4:
		var buf [4]byte
		bits := math.Float32bits(float32(math.NaN()))
		buf[0] = byte(bits)
		buf[1] = byte(bits >> 8)
		buf[2] = byte(bits >> 16)
		buf[3] = byte(bits >> 24)
		for off := 0; off+4 <= len(dst); off += 4 {
			copy(dst[off:off+4], buf[:])
		}
		return nil
	case 8:
		var buf [8]byte
		bits := math.Float64bits(math.NaN())
		for i := 0; i < 8; i++ {
			buf[i] = byte(bits >> (8 * i))
		}
		for off := 0; off+8 <= len(dst); off += 8 {
			copy(dst[off:off+8], buf[:])
		}
		return nil
	default:
		return fmt.Errorf("chunk: %w: NaN special requires typesize 4 or 8, got %d", errs.ErrInvalidHeader, typesize)
	}
}
