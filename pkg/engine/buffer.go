package engine

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrBufferFull = errors.New("buffer is full")
	ErrBufferSize = errors.New("size must be a power of 2")
)

// RingBuffer is a fixed-size circular queue of log entries between ingestors
// and the pipeline. Any number of goroutines may Push and Pop concurrently:
// writers are serialized among themselves, as are readers, while a writer and
// a reader only meet through the head and tail counters.
type RingBuffer struct {
	data [][]byte
	head atomic.Uint64
	tail atomic.Uint64
	mask uint64
	size uint64

	pushMu sync.Mutex
	popMu  sync.Mutex

	dropped atomic.Uint64
}

// NewRingBuffer creates a ring buffer with the specified size (must be power of 2).
func NewRingBuffer(size uint64) (*RingBuffer, error) {
	if size == 0 || (size&(size-1)) != 0 {
		return nil, ErrBufferSize
	}
	return &RingBuffer{
		data: make([][]byte, size),
		mask: size - 1,
		size: size,
	}, nil
}

// Push enqueues an entry. When the ring is full the entry is dropped
// (tail drop) and ErrBufferFull is returned.
func (rb *RingBuffer) Push(item []byte) error {
	rb.pushMu.Lock()
	defer rb.pushMu.Unlock()

	head := rb.head.Load()
	tail := rb.tail.Load()

	if head-tail >= rb.size {
		rb.dropped.Add(1)
		return ErrBufferFull
	}

	rb.data[head&rb.mask] = item
	rb.head.Store(head + 1)
	return nil
}

// Pop dequeues the oldest entry, or returns nil when the ring is empty.
func (rb *RingBuffer) Pop() []byte {
	rb.popMu.Lock()
	defer rb.popMu.Unlock()

	tail := rb.tail.Load()
	head := rb.head.Load()

	if tail == head {
		return nil
	}

	slot := tail & rb.mask
	item := rb.data[slot]
	rb.data[slot] = nil
	rb.tail.Store(tail + 1)
	return item
}

// DroppedCount returns the number of entries dropped because the ring was full.
func (rb *RingBuffer) DroppedCount() uint64 {
	return rb.dropped.Load()
}

// Usage returns the number of entries currently queued.
func (rb *RingBuffer) Usage() uint64 {
	return rb.head.Load() - rb.tail.Load()
}

// Capacity returns the total size of the ring.
func (rb *RingBuffer) Capacity() uint64 {
	return rb.size
}
