// Package capture acquires mono audio from an input device (or a recorded
// take) and keeps the most recent samples available for analysis.
package capture

import (
	"errors"
	"sync"
)

var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrDeviceUnavailable = errors.New("device unavailable")
)

// Device is an open capture handle.
type Device interface {
	// SampleRate is the native rate of the stream, fixed for its lifetime.
	SampleRate() int

	// Latest copies the newest len(dst) samples into dst, zero-filling what
	// has not been captured yet, and returns the total number of samples
	// captured so far. It never blocks waiting for audio.
	Latest(dst []float32) uint64

	// Close releases the device. It is safe to call more than once.
	Close() error
}

// Ring keeps the last Cap() samples written to it. Writes come from the
// host audio thread, reads from the analyzer.
type Ring struct {
	mu    sync.Mutex
	buf   []float32
	pos   int
	total uint64
}

func NewRing(size int) *Ring {
	if size < 1 {
		size = 1
	}
	return &Ring{buf: make([]float32, size)}
}

func (r *Ring) Cap() int {
	return len(r.buf)
}

func (r *Ring) Write(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(samples) > len(r.buf) {
		samples = samples[len(samples)-len(r.buf):]
	}

	n := copy(r.buf[r.pos:], samples)
	if n < len(samples) {
		copy(r.buf, samples[n:])
	}

	r.pos = (r.pos + len(samples)) % len(r.buf)
	r.total += uint64(len(samples))
}

func (r *Ring) Latest(dst []float32) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range dst {
		dst[i] = 0
	}

	// samples that actually exist, newest last
	avail := len(r.buf)
	if r.total < uint64(avail) {
		avail = int(r.total)
	}

	n := len(dst)
	if n > avail {
		n = avail
	}

	out := dst[len(dst)-n:]
	start := (r.pos - n + len(r.buf)) % len(r.buf)
	c := copy(out, r.buf[start:])
	if c < n {
		copy(out[c:], r.buf[:n-c])
	}

	return r.total
}
