package blox

import "sync"

// globalMu guards defaultCtx, mirroring the core's single mutex around its
// legacy thread-unsafe global context (§5): the non-contextual API below
// serialises on it so callers that never create their own Context still get
// safe concurrent use, at the cost of no concurrency between calls.
var (
	globalMu   sync.Mutex
	defaultCtx *Context
)

func global() *Context {
	if defaultCtx == nil {
		defaultCtx = NewContext()
		applyEnvOverrides(defaultCtx)
	}
	return defaultCtx
}

// SetGlobalOptions reconfigures the package-level default context used by
// Compress/Decompress/GetItem below.
func SetGlobalOptions(opts ...Option) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global().Set(opts...)
}

// Compress compresses src using the package-level default context. NOLOCK
// set in the environment bypasses the shared mutex by creating a fresh,
// independent context per call instead.
func Compress(src []byte) ([]byte, error) {
	if noLock() {
		ctx := NewContext()
		applyEnvOverrides(ctx)
		return ctx.Compress(src)
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	return global().Compress(src)
}

// Decompress decompresses chunk into dst using the package-level default
// context.
func Decompress(chunk []byte, dst []byte) error {
	if noLock() {
		ctx := NewContext()
		applyEnvOverrides(ctx)
		return ctx.Decompress(chunk, dst)
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	return global().Decompress(chunk, dst)
}

// GetItem retrieves an element range from chunk using the package-level
// default context.
func GetItem(chunk []byte, start, nitems int, dst []byte) error {
	if noLock() {
		ctx := NewContext()
		applyEnvOverrides(ctx)
		return ctx.GetItem(chunk, start, nitems, dst)
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	return global().GetItem(chunk, start, nitems, dst)
}
