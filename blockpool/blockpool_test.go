package blockpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synthizer-project/synthizer/engine"
)

func TestAcquireReturnsZeroedBlock(t *testing.T) {
	p := NewPool(2)
	b, err := p.Acquire(2)
	require.NoError(t, err)

	for c := 0; c < 2; c++ {
		for _, s := range b.Channel(c) {
			assert.Equal(t, float32(0), s)
		}
	}
}

func TestAcquireRejectsTooManyChannels(t *testing.T) {
	p := NewPool(1)
	_, err := p.Acquire(engine.MaxChannels + 1)
	assert.Error(t, err)
}

func TestReleaseRecyclesIntoPool(t *testing.T) {
	p := NewPool(1)
	b, err := p.Acquire(2)
	require.NoError(t, err)
	b.Channel(0)[0] = 42

	b.Release()

	b2, err := p.Acquire(engine.MaxChannels)
	require.NoError(t, err)
	assert.Equal(t, engine.MaxChannels, b2.NumChannels())
	// Acquire always zeroes, even if the underlying array was previously
	// dirtied and recycled.
	assert.Equal(t, float32(0), b2.Channel(0)[0])
}

func TestAcquireFailsWhenReserveExhausted(t *testing.T) {
	p := NewPool(1)
	_, err := p.Acquire(1)
	require.NoError(t, err)

	// The reserve's single block is still checked out; a second Acquire
	// must fail rather than silently growing the pool (spec §4.4).
	_, err = p.Acquire(1)
	assert.Error(t, err)
	assert.Equal(t, 0, p.Available())
}

func TestAddRefDefersRecycling(t *testing.T) {
	p := NewPool(1)
	b, err := p.Acquire(1)
	require.NoError(t, err)
	b.AddRef()

	b.Release() // refCount 2 -> 1, should not recycle yet
	b.Channel(0)[0] = 7
	assert.Equal(t, float32(7), b.Channel(0)[0])

	b.Release() // refCount 1 -> 0, recycles now
}
