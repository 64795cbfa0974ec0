// Package mapper abstracts the byte source an archive is read from behind
// a small address-space interface, so the rest of squashfs never cares
// whether the bytes come from an mmap'd file, a static in-memory buffer, or
// a remote HTTP range server.
package mapper

import "errors"

// ErrOutOfBounds is returned when a requested window falls outside the
// mapped address space.
var ErrOutOfBounds = errors.New("mapper: address out of bounds")

// Mapper exposes a fixed-size, read-only address space and hands out
// Mappings over windows of it.
type Mapper interface {
	// Size returns the total addressable length, in bytes.
	Size() int64

	// Map returns a Mapping covering at least [address, address+length).
	// Implementations may return a larger window than requested (e.g. a
	// whole mmap'd page range); callers must slice Data() down themselves.
	Map(address, length int64) (Mapping, error)

	// Close releases any resources backing the whole address space (an
	// open file descriptor, an HTTP client, ...).
	Close() error
}

// Mapping is a window onto a Mapper's address space. Callers must call
// Release when done with it.
type Mapping interface {
	// Data returns the bytes covering the mapping's window.
	Data() []byte

	// Resize grows or shrinks the mapping's window in place where the
	// backend supports it cheaply (e.g. extending an mmap'd region);
	// backends that cannot resize in place return ErrOutOfBounds and the
	// caller must Release and re-Map.
	Resize(length int64) error

	// Release returns the mapping to its backend. Data must not be used
	// afterwards.
	Release()
}
