package blox

import "github.com/blox/blox/header"

// Header is the decoded form of a chunk header, re-exported so callers can
// inspect a chunk (its declared size, block size, codec, special type...)
// without importing the internal header package directly.
type Header = header.Header

// InspectHeader parses chunk's header without decompressing its body. It is
// the entry point a caller uses to learn how large a destination buffer
// Decompress will need.
func InspectHeader(chunk []byte) (*Header, error) {
	return header.ReadHeader(chunk, true)
}
