package matcher

import (
	"fmt"
	"unsafe"
)

const (
	// DefaultInitialBufferSize matches the 1 MiB the buffer starts with.
	DefaultInitialBufferSize = 1 << 20
	// DefaultMaxBufferSize caps growth; requests above it fail.
	DefaultMaxBufferSize = 64 << 20
)

// ScanBuffer is an engine-owned byte region that a host writes into directly.
// Capacity only ever grows. The active length is whatever the last
// EnsureCapacity call declared.
//
// Contract: a base pointer (or a Bytes slice) obtained before EnsureCapacity
// is invalid afterwards whenever Generation changed. Hosts must re-fetch it
// before writing. ScanBuffer is not safe for concurrent use.
type ScanBuffer struct {
	data       []byte // len = active length, cap = capacity
	max        int
	generation uint64
}

// NewScanBuffer allocates a buffer with the given initial capacity.
// Non-positive values fall back to the package defaults.
func NewScanBuffer(initial, max int) *ScanBuffer {
	if max <= 0 {
		max = DefaultMaxBufferSize
	}
	if initial <= 0 {
		initial = DefaultInitialBufferSize
	}
	if initial > max {
		initial = max
	}
	return &ScanBuffer{
		data: make([]byte, 0, initial),
		max:  max,
	}
}

// BasePointer returns the start of the buffer's storage. It stays valid until
// the next EnsureCapacity that reallocates.
func (b *ScanBuffer) BasePointer() unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(b.data))
}

// Bytes returns the active region as a writable view (no copy).
func (b *ScanBuffer) Bytes() []byte {
	return b.data
}

// EnsureCapacity guarantees room for n bytes and sets the active length to n.
// Growth doubles capacity (bounded by the maximum) and preserves existing
// bytes. It fails with ErrAllocationFailed, leaving the buffer untouched, if
// n exceeds the maximum.
func (b *ScanBuffer) EnsureCapacity(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative size %d", ErrOutOfRange, n)
	}
	if n > b.max {
		return fmt.Errorf("%w: %d bytes requested, limit %d", ErrAllocationFailed, n, b.max)
	}

	if n > cap(b.data) {
		newCap := cap(b.data) * 2
		if newCap < n {
			newCap = n
		}
		if newCap > b.max {
			newCap = b.max
		}
		grown := make([]byte, len(b.data), newCap)
		copy(grown, b.data)
		b.data = grown
		b.generation++
	}

	b.data = b.data[:n]
	return nil
}

// Len returns the active length.
func (b *ScanBuffer) Len() int {
	return len(b.data)
}

// Cap returns the allocated capacity.
func (b *ScanBuffer) Cap() int {
	return cap(b.data)
}

// Generation increments on every reallocation.
func (b *ScanBuffer) Generation() uint64 {
	return b.generation
}

// view returns the first n bytes, or ErrOutOfRange when n is outside the
// active region.
func (b *ScanBuffer) view(n int) ([]byte, error) {
	if n < 0 || n > len(b.data) {
		return nil, fmt.Errorf("%w: length %d, active %d", ErrOutOfRange, n, len(b.data))
	}
	return b.data[:n], nil
}
