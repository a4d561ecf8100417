// Package ring implements the lock-free single-producer/single-consumer
// audio sample ring described in spec §4.1. It bridges a decode thread
// (producer) to the audio thread (consumer): the audio thread must never
// block, so its read side is always non-blocking on underflow, while the
// producer may legitimately block when it runs far enough ahead that the
// ring fills up.
//
// The API mirrors the classic DirectSound two-phase buffer lock pattern
// (begin/end write, begin/end read) so that wrap-around never requires a
// copy: callers write or read directly into up to two contiguous regions
// of the backing array.
//
// Grounded on the wrap-handling logic in the teacher's
// audiocore/capture/circular_buffer.go (single contiguous write split into
// two copies across the wrap point) and the two-region request shape of
// audiocore/chunk_buffer_v2.go, adapted from a byte ring to a lock-free
// float-sample SPSC ring with explicit acquire/release ordering.
package ring

import (
	"sync"
	"sync/atomic"
)

// AudioRing is a fixed-capacity ring of interleaved float32 samples with
// exactly one producer and one consumer goroutine.
//
// The ring tracks two monotonically increasing cursors, writePos and
// readPos, counted in samples since construction (never wrapped); the
// number of samples currently buffered is always writePos-readPos, and
// physical offsets are cursor%capacity. This avoids needing a separate
// "count" field that both sides would need to agree on the sign of.
type AudioRing struct {
	data     []float32
	capacity uint64 // in samples; fixed at construction

	// writePos is only ever mutated by the producer; read with Load by
	// the consumer (acquire) and the producer itself (relaxed, i.e. a
	// plain field read since only the producer writes it).
	writePos atomic.Uint64

	// readPos is only ever mutated by the consumer; read with Load by
	// the producer (acquire) and the consumer itself.
	readPos atomic.Uint64

	// readCond is used by EndRead to wake a producer blocked in
	// BeginWrite waiting for free space.
	mu       sync.Mutex
	readCond *sync.Cond
}

// New creates an AudioRing able to hold capacitySamples interleaved
// samples (channels already folded in by the caller, e.g. channels *
// frames).
func New(capacitySamples int) *AudioRing {
	if capacitySamples <= 0 {
		capacitySamples = 1
	}
	r := &AudioRing{
		data:     make([]float32, capacitySamples),
		capacity: uint64(capacitySamples),
	}
	r.readCond = sync.NewCond(&r.mu)
	return r
}

// Capacity returns the ring's fixed capacity in samples.
func (r *AudioRing) Capacity() int {
	return int(r.capacity)
}

// Available reports how many samples are currently buffered and readable.
func (r *AudioRing) Available() int {
	w := r.writePos.Load()
	rd := r.readPos.Load()
	return int(w - rd)
}

// FreeSpace reports how many samples may currently be written without
// blocking.
func (r *AudioRing) FreeSpace() int {
	return int(r.capacity) - r.Available()
}

// WriteRegions is the two-phase result of BeginWrite: up to two
// contiguous regions to copy samples into. Region2 is non-empty only when
// the write request wraps past the end of the backing array.
type WriteRegions struct {
	Region1 []float32
	Region2 []float32
}

// Len returns the total number of samples spanned by both regions.
func (w WriteRegions) Len() int {
	return len(w.Region1) + len(w.Region2)
}

// BeginWrite reserves space for up to `requested` samples. If
// maxAvailable is true, it returns as many samples as currently fit (up
// to requested) without blocking — used by producers that want to drain
// whatever is available. If maxAvailable is false and there isn't enough
// free space for the full request, BeginWrite blocks until the consumer's
// EndRead signals more room, per spec §4.1 ("overflow on the producer
// blocks; the producer is expected to run ahead of the consumer").
//
// BeginWrite must only be called from the single producer goroutine.
func (r *AudioRing) BeginWrite(requested int, maxAvailable bool) WriteRegions {
	if requested <= 0 {
		return WriteRegions{}
	}

	for {
		free := r.FreeSpace()
		if free >= requested {
			return r.regionsFor(r.writePos.Load(), requested)
		}
		if maxAvailable {
			if free == 0 {
				return WriteRegions{}
			}
			return r.regionsFor(r.writePos.Load(), free)
		}

		r.mu.Lock()
		for r.FreeSpace() < requested {
			r.readCond.Wait()
		}
		r.mu.Unlock()
	}
}

// EndWrite publishes n samples written via the regions returned by the
// preceding BeginWrite, advancing the write cursor with release
// semantics so the consumer's acquire-load observes the new data.
func (r *AudioRing) EndWrite(n int) {
	if n <= 0 {
		return
	}
	r.writePos.Add(uint64(n))
}

// BeginRead returns up to `requested` samples currently available for
// reading. If maxAvailable is false (the audio thread's calling
// convention) and fewer than requested samples are buffered, BeginRead
// returns an empty WriteRegions immediately rather than blocking — the
// caller is expected to treat that as an underflow and emit silence for
// this tick, per spec §4.1/§8.
func (r *AudioRing) BeginRead(requested int, maxAvailable bool) WriteRegions {
	if requested <= 0 {
		return WriteRegions{}
	}
	available := r.Available()
	switch {
	case available >= requested:
		return r.regionsFor(r.readPos.Load(), requested)
	case maxAvailable && available > 0:
		return r.regionsFor(r.readPos.Load(), available)
	default:
		return WriteRegions{}
	}
}

// EndRead consumes n samples returned by the preceding BeginRead,
// advancing the read cursor and waking any producer blocked in
// BeginWrite.
func (r *AudioRing) EndRead(n int) {
	if n <= 0 {
		return
	}
	r.readPos.Add(uint64(n))

	r.mu.Lock()
	r.readCond.Broadcast()
	r.mu.Unlock()
}

// regionsFor computes the (up to) two contiguous slices starting at
// cursor (a monotonic position, not yet reduced mod capacity) spanning n
// samples.
func (r *AudioRing) regionsFor(cursor uint64, n int) WriteRegions {
	start := int(cursor % r.capacity)
	cap := int(r.capacity)

	if start+n <= cap {
		return WriteRegions{Region1: r.data[start : start+n]}
	}
	firstLen := cap - start
	return WriteRegions{
		Region1: r.data[start:cap],
		Region2: r.data[0 : n-firstLen],
	}
}

// WriteSamples is a convenience wrapper over BeginWrite/EndWrite for
// producers that don't need to avoid the copy: it blocks (unless
// maxAvailable) until all of samples has been written, splitting across
// the wrap point as needed.
func (r *AudioRing) WriteSamples(samples []float32, maxAvailable bool) int {
	regions := r.BeginWrite(len(samples), maxAvailable)
	n := regions.Len()
	if n == 0 {
		return 0
	}
	copy(regions.Region1, samples[:len(regions.Region1)])
	if len(regions.Region2) > 0 {
		copy(regions.Region2, samples[len(regions.Region1):n])
	}
	r.EndWrite(n)
	return n
}

// ReadSamples is a convenience wrapper over BeginRead/EndRead. It copies
// up to len(out) samples into out and returns how many were read; on
// underflow with maxAvailable=false it returns 0 and leaves out
// untouched, matching the audio thread's non-blocking calling
// convention.
func (r *AudioRing) ReadSamples(out []float32, maxAvailable bool) int {
	regions := r.BeginRead(len(out), maxAvailable)
	n := regions.Len()
	if n == 0 {
		return 0
	}
	copy(out[:len(regions.Region1)], regions.Region1)
	if len(regions.Region2) > 0 {
		copy(out[len(regions.Region1):n], regions.Region2)
	}
	r.EndRead(n)
	return n
}
