// uartx/ringbuffer.go

package uartx

import "sync/atomic"

const bufferSize = 256

// RingBuffer is a single-producer/single-consumer byte queue. The producer
// (completion bridge) only writes head and the consumer (Read) only writes
// tail. Indices run freely and wrap modulo bufferSize on access.
type RingBuffer struct {
	buf  [bufferSize]byte
	head atomic.Uint32
	tail atomic.Uint32
}

// NewRingBuffer returns a new ring buffer.
func NewRingBuffer() *RingBuffer {
	return &RingBuffer{}
}

// Size returns the total capacity of the buffer in bytes.
func (rb *RingBuffer) Size() int {
	return bufferSize
}

// Used returns how many bytes in buffer have been used.
func (rb *RingBuffer) Used() int {
	return int(rb.head.Load() - rb.tail.Load())
}

// Put stores a byte in the buffer. If the buffer is already full, it returns
// false and the buffer is unchanged.
func (rb *RingBuffer) Put(val byte) bool {
	h := rb.head.Load()
	if h-rb.tail.Load() == bufferSize {
		return false
	}
	rb.buf[h%bufferSize] = val // 1) write data
	rb.head.Store(h + 1)       // 2) publish
	return true
}

// Get returns a byte from the buffer. If the buffer is empty, it returns (0, false).
func (rb *RingBuffer) Get() (byte, bool) {
	t := rb.tail.Load()
	if rb.head.Load() == t {
		return 0, false
	}
	v := rb.buf[t%bufferSize] // 1) read current element
	rb.tail.Store(t + 1)      // 2) publish consumption
	return v, true
}
