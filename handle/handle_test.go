package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appErrors "github.com/synthizer-project/synthizer/internal/errors"
)

func TestCreateLookupRelease(t *testing.T) {
	var destroyed any
	tbl := NewTable(func(h Handle, obj any) {
		destroyed = obj
	})

	h := tbl.Create("payload")
	v, err := tbl.Lookup(h)
	require.NoError(t, err)
	assert.Equal(t, "payload", v)

	require.NoError(t, tbl.Release(h))
	assert.Equal(t, "payload", destroyed)

	_, err = tbl.Lookup(h)
	assert.Error(t, err)
	assert.True(t, appErrors.IsCategory(err, appErrors.CategoryHandle))
}

func TestAcquireKeepsObjectAliveUntilAllReleased(t *testing.T) {
	destroyedCount := 0
	tbl := NewTable(func(h Handle, obj any) {
		destroyedCount++
	})

	h := tbl.Create("payload")
	require.NoError(t, tbl.Acquire(h))

	require.NoError(t, tbl.Release(h))
	assert.Equal(t, 0, destroyedCount, "object must survive while a second reference is held")

	require.NoError(t, tbl.Release(h))
	assert.Equal(t, 1, destroyedCount)
}

func TestReleaseUnknownHandleErrors(t *testing.T) {
	tbl := NewTable(nil)
	err := tbl.Release(Handle(999))
	assert.Error(t, err)
}

func TestLenTracksLiveHandles(t *testing.T) {
	tbl := NewTable(nil)
	assert.Equal(t, 0, tbl.Len())

	h1 := tbl.Create(1)
	h2 := tbl.Create(2)
	assert.Equal(t, 2, tbl.Len())

	require.NoError(t, tbl.Release(h1))
	assert.Equal(t, 1, tbl.Len())

	require.NoError(t, tbl.Release(h2))
	assert.Equal(t, 0, tbl.Len())
}
