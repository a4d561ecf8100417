// Package blockpool implements the Block Buffer Cache (spec §4.4): a pool
// of fixed-shape scratch buffers shaped channels×BLOCK_SIZE, scoped to
// the lifetime of a single tick so generators, sources, and effects never
// allocate on the audio thread.
//
// Grounded on the teacher's internal/audiocore/buffer.go, which pools
// byte buffers in size tiers via refcounted Acquire/Release, and its
// resource_manager.go bounded-pool acquire/release shape (the same shape
// ctx/voicebank.go adapts for HRTF voices). This package adapts that to
// the fixed channel×frame arena the engine actually needs: rather than
// byte-size tiers, every pooled Block has the same backing capacity
// (MaxChannels*BlockSize float32s) and Acquire hands back a
// channel-sliced view sized to the caller's channel count, so there is
// exactly one tier and no size-class bucketing logic to get wrong. Per
// spec §4.4 ("allocations beyond the reserve are forbidden (asserted)"),
// the free list is a plain bounded slice with no automatic-allocation
// fallback — Acquire fails with a ResourceExhausted-class error instead
// of silently growing the pool, mirroring voiceBank.acquireHRTF's
// exhaustion handling.
package blockpool

import (
	"sync"
	"sync/atomic"

	"github.com/synthizer-project/synthizer/engine"
	"github.com/synthizer-project/synthizer/internal/errors"
)

// Block is a scratch buffer for one tick's worth of audio, shaped as up
// to MaxChannels independent per-channel slices of BlockSize float32
// samples each, all backed by a single contiguous allocation.
type Block struct {
	backing  []float32
	channels [][]float32
	refCount int32
	pool     *Pool
}

// Channel returns the scratch slice for channel index i. It panics if i
// is out of range for the channel count this Block was acquired with —
// callers are expected to only ever index channels they asked for.
func (b *Block) Channel(i int) []float32 {
	return b.channels[i]
}

// NumChannels reports how many channels this Block was acquired with.
func (b *Block) NumChannels() int {
	return len(b.channels)
}

// Channels returns the block's per-channel slices directly (no copy, no
// allocation) so a caller driving a tick can pass them straight to
// whatever expects a [][]float32 bus.
func (b *Block) Channels() [][]float32 {
	return b.channels
}

// Zero clears every sample in every channel of the block. Acquire
// already returns a zeroed block; callers only need this if they want to
// clear a block mid-use.
func (b *Block) Zero() {
	for i := range b.backing {
		b.backing[i] = 0
	}
}

// AddRef increments the block's reference count. Used when a block is
// fanned out to more than one consumer within a tick (e.g. a generator's
// output read by both a direct route and an effect send).
func (b *Block) AddRef() {
	atomic.AddInt32(&b.refCount, 1)
}

// Release decrements the reference count and, when it reaches zero,
// returns the block to its pool. Release never allocates and never
// blocks.
func (b *Block) Release() {
	if atomic.AddInt32(&b.refCount, -1) == 0 {
		b.pool.put(b)
	}
}

// Pool is a fixed-shape buffer pool bounded at construction time. The
// zero value is not usable; use NewPool.
type Pool struct {
	mu      sync.Mutex
	free    []*Block
	reserve int
}

// NewPool creates a Block pool pre-populated with reserve blocks. This is
// the pool's entire supply for the lifetime of the Context: Acquire never
// grows it, so every allocation happens here, before the audio thread
// starts ticking.
func NewPool(reserve int) *Pool {
	p := &Pool{reserve: reserve}
	for i := 0; i < reserve; i++ {
		p.free = append(p.free, p.newBlock())
	}
	return p
}

func (p *Pool) newBlock() *Block {
	backing := make([]float32, engine.MaxChannels*engine.BlockSize)
	channels := make([][]float32, engine.MaxChannels)
	for i := 0; i < engine.MaxChannels; i++ {
		channels[i] = backing[i*engine.BlockSize : (i+1)*engine.BlockSize]
	}
	return &Block{backing: backing, channels: channels}
}

// Acquire reserves a zeroed Block sized to numChannels. It returns a
// ResourceExhausted error if numChannels exceeds engine.MaxChannels, or
// if the pool's reserve is exhausted — per spec §4.4 the pool never
// grows past its construction-time reserve, so exhaustion on the audio
// thread is a reportable condition, not a silent heap allocation.
func (p *Pool) Acquire(numChannels int) (*Block, error) {
	if numChannels <= 0 || numChannels > engine.MaxChannels {
		return nil, errors.Newf("blockpool: requested %d channels, max is %d", numChannels, engine.MaxChannels).
			Component("blockpool").
			Category(errors.CategoryResource).
			Build()
	}

	p.mu.Lock()
	n := len(p.free)
	if n == 0 {
		p.mu.Unlock()
		return nil, errors.Newf("blockpool: reserve of %d blocks exhausted", p.reserve).
			Component("blockpool").
			Category(errors.CategoryResource).
			Build()
	}
	b := p.free[n-1]
	p.free = p.free[:n-1]
	p.mu.Unlock()

	b.refCount = 1
	b.pool = p
	b.channels = b.channels[:numChannels]
	for i := 0; i < numChannels; i++ {
		clear(b.channels[i])
	}
	return b, nil
}

func (p *Pool) put(b *Block) {
	b.channels = b.channels[:cap(b.channels)]
	b.pool = nil
	p.mu.Lock()
	p.free = append(p.free, b)
	p.mu.Unlock()
}

// Available reports the number of free blocks remaining in the reserve,
// for metrics.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
