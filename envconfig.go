package blox

import (
	"log"
	"os"
	"strconv"

	"github.com/blox/blox/codec"
)

// applyEnvOverrides reads the environment overrides documented in §6 for
// the non-contextual API and applies any that are set to ctx. An unknown or
// malformed value is logged and the existing setting is left untouched;
// this path never aborts.
func applyEnvOverrides(ctx *Context) {
	var opts []Option

	if v, ok := os.LookupEnv("CLEVEL"); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 9 {
			opts = append(opts, CLevel(n))
		} else {
			log.Printf("blox: ignoring invalid CLEVEL=%q", v)
		}
	}

	if v, ok := os.LookupEnv("SHUFFLE"); ok {
		switch v {
		case "NOSHUFFLE":
			opts = append(opts, DoShuffle(NoShuffle))
		case "SHUFFLE":
			opts = append(opts, DoShuffle(ByteShuffle))
		case "BITSHUFFLE":
			opts = append(opts, DoShuffle(BitShuffle))
		default:
			log.Printf("blox: ignoring unknown SHUFFLE=%q", v)
		}
	}

	if v, ok := os.LookupEnv("DELTA"); ok {
		switch v {
		case "0":
			opts = append(opts, Delta(false))
		case "1":
			opts = append(opts, Delta(true))
		default:
			log.Printf("blox: ignoring invalid DELTA=%q", v)
		}
	}

	if v, ok := os.LookupEnv("TYPESIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 255 {
			opts = append(opts, TypeSize(uint8(n)))
		} else {
			log.Printf("blox: ignoring invalid TYPESIZE=%q", v)
		}
	}

	if v, ok := os.LookupEnv("COMPRESSOR"); ok {
		if id, ok := codecByName(v); ok {
			opts = append(opts, Codec(id))
		} else {
			log.Printf("blox: ignoring unknown COMPRESSOR=%q", v)
		}
	}

	if v, ok := os.LookupEnv("BLOCKSIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts = append(opts, BlockSize(uint32(n)))
		} else {
			log.Printf("blox: ignoring invalid BLOCKSIZE=%q", v)
		}
	}

	if v, ok := os.LookupEnv("NTHREADS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts = append(opts, NThreads(n))
		} else {
			log.Printf("blox: ignoring invalid NTHREADS=%q", v)
		}
	}

	if v, ok := os.LookupEnv("SPLITMODE"); ok {
		switch v {
		case "ALWAYS":
			opts = append(opts, Split(SplitAlways))
		case "NEVER":
			opts = append(opts, Split(SplitNever))
		case "AUTO":
			opts = append(opts, Split(SplitAuto))
		case "FORWARD_COMPAT":
			opts = append(opts, Split(SplitForwardCompat))
		default:
			log.Printf("blox: ignoring unknown SPLITMODE=%q", v)
		}
	}

	if v, ok := os.LookupEnv("BLOSC1_COMPAT"); ok {
		switch v {
		case "0":
			opts = append(opts, Minimal(false))
		case "1":
			opts = append(opts, Minimal(true))
		default:
			log.Printf("blox: ignoring invalid BLOSC1_COMPAT=%q", v)
		}
	}

	if len(opts) > 0 {
		ctx.Set(opts...)
	}
}

// noLock reports whether NOLOCK is set truthily in the environment; the
// non-contextual API responds by giving the caller a private context
// instead of serialising on the shared mutex.
func noLock() bool {
	v, ok := os.LookupEnv("NOLOCK")
	return ok && v != "" && v != "0"
}

func codecByName(name string) (codec.ID, bool) {
	switch name {
	case "lz-lite", "LZ_LITE":
		return codec.LZLite, true
	case "lz-fast", "LZ_FAST":
		return codec.LZFast, true
	case "lz-hc", "LZ_HC":
		return codec.LZHC, true
	case "deflate", "DEFLATE":
		return codec.Deflate, true
	case "dict-entropy", "DICT_ENTROPY":
		return codec.DictEntrop, true
	default:
		return 0, false
	}
}
