package cmdqueue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDrainRunsQueuedCommandsInOrder(t *testing.T) {
	q := NewCommandQueue()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		q.Push(func() { order = append(order, i) })
	}

	q.Drain()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestDrainIsIdempotentWhenEmpty(t *testing.T) {
	q := NewCommandQueue()
	q.Drain()
	q.Drain()
}

func TestLenTracksQueuedCommands(t *testing.T) {
	q := NewCommandQueue()
	assert.Equal(t, 0, q.Len())
	q.Push(func() {})
	q.Push(func() {})
	assert.Equal(t, 2, q.Len())
	q.Drain()
	assert.Equal(t, 0, q.Len())
}

func TestConcurrentPushersDrainedExactlyOnce(t *testing.T) {
	q := NewCommandQueue()
	var count int32
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Push(func() {
				mu.Lock()
				count++
				mu.Unlock()
			})
		}()
	}
	wg.Wait()
	q.Drain()

	assert.Equal(t, int32(100), count)
}

type fakeDestroyer struct {
	destroyed chan struct{}
}

func (f *fakeDestroyer) Destroy() {
	close(f.destroyed)
}

func TestDeletionQueueRunsDestroyOffCaller(t *testing.T) {
	dq := NewDeletionQueue(4)
	defer dq.Stop()

	d := &fakeDestroyer{destroyed: make(chan struct{})}
	dq.Push(d)

	select {
	case <-d.destroyed:
	case <-time.After(time.Second):
		t.Fatal("Destroy never ran")
	}
}

func TestDeletionQueueFallsBackToInlineWhenFull(t *testing.T) {
	dq := NewDeletionQueue(0)
	defer dq.Stop()

	d := &fakeDestroyer{destroyed: make(chan struct{})}
	dq.Push(d)

	select {
	case <-d.destroyed:
	default:
		t.Fatal("expected inline fallback destroy to have already run")
	}
}

func TestDeletionQueueStopDrainsPending(t *testing.T) {
	dq := NewDeletionQueue(8)
	var destroyedCount int32
	var mu sync.Mutex

	for i := 0; i < 4; i++ {
		d := &fakeDestroyer{destroyed: make(chan struct{})}
		go func(d *fakeDestroyer) {
			<-d.destroyed
			mu.Lock()
			destroyedCount++
			mu.Unlock()
		}(d)
		dq.Push(d)
	}

	dq.Stop()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return destroyedCount == 4
	}, time.Second, time.Millisecond)
}
