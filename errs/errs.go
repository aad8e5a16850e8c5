// Package errs defines the error-kind sentinels shared across blox's
// internal packages (§7 of the core specification). Every error the core
// returns wraps exactly one of these with fmt.Errorf's %w so callers can
// classify failures with errors.Is regardless of which layer raised them.
package errs

import "errors"

var (
	ErrInvalidParam       = errors.New("invalid parameter")
	ErrInvalidHeader      = errors.New("invalid header")
	ErrVersionUnsupported = errors.New("unsupported version")
	ErrReadBufferShort    = errors.New("read buffer too short")
	ErrWriteBufferShort   = errors.New("write buffer too short")
	ErrDataCorruption     = errors.New("data corruption")
	ErrIncompressible     = errors.New("incompressible")
	ErrCodecUnsupported   = errors.New("unsupported codec")
	ErrCodecDict          = errors.New("codec dictionary error")
	ErrFilterPipeline     = errors.New("filter pipeline failed")
	ErrThreadCreate       = errors.New("failed to create worker")
	ErrAllocation         = errors.New("allocation failed")
)
