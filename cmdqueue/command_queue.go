// Package cmdqueue implements the Command Queue and deferred-deletion
// machinery described in spec §4.3: external threads hand the audio
// thread small units of work (add a route, swap a generator, apply a
// structural change that can't be expressed as a property write) through
// an RT-safe queue drained once per tick, and any destructor that would
// otherwise run on the audio thread is instead handed to a background
// deletion thread.
//
// Grounded on the teacher's internal/audiocore/manager.go, whose
// managerImpl coordinates Start/Stop lifecycle with a sync.WaitGroup and
// context.CancelFunc; this package reuses that lifecycle shape for the
// deletion worker goroutine while the command queue itself is a fresh
// MPSC structure (same shape as package property's, duplicated rather
// than shared to keep the two packages independent — property's queue
// carries typed property writes, this one carries opaque commands).
package cmdqueue

import (
	"sync"
	"sync/atomic"

	"github.com/synthizer-project/synthizer/handle"
)

// Command is a unit of work to run once, on the audio thread, at the
// next tick boundary.
type Command func()

type commandNode struct {
	next atomic.Pointer[commandNode]
	cmd  Command
}

// CommandQueue is an MPSC queue of Commands. Any number of external
// threads may Push concurrently; only the audio thread may call Drain.
type CommandQueue struct {
	head atomic.Pointer[commandNode]
	tail *commandNode
	size atomic.Int64
}

// NewCommandQueue creates an empty queue.
func NewCommandQueue() *CommandQueue {
	stub := &commandNode{}
	q := &CommandQueue{tail: stub}
	q.head.Store(stub)
	return q
}

// Push enqueues cmd. Never blocks, never allocates beyond the one node.
func (q *CommandQueue) Push(cmd Command) {
	n := &commandNode{cmd: cmd}
	prev := q.head.Swap(n)
	q.size.Add(1)
	prev.next.Store(n)
}

// Drain runs every command queued since the last Drain, in FIFO order.
// Must only be called from the audio thread, once per tick, before the
// tick's processing begins.
func (q *CommandQueue) Drain() {
	for {
		tail := q.tail
		next := tail.next.Load()
		if next == nil {
			return
		}
		q.tail = next
		q.size.Add(-1)
		next.cmd()
	}
}

// Len reports the approximate number of commands currently queued.
// Intended for metrics, not the hot path: it may be briefly stale
// relative to a concurrent Push.
func (q *CommandQueue) Len() int {
	return int(q.size.Load())
}

// DeletionQueue runs Destroy on a background goroutine for any object
// released from the audio thread or from a thread that cannot afford to
// run a destructor inline (it might deallocate, take locks, or block on
// I/O — all forbidden on the audio thread per spec §5). Unlike
// CommandQueue this is allowed to block: the worker goroutine has no
// real-time obligations.
type DeletionQueue struct {
	items  chan handle.Destroyer
	wg     sync.WaitGroup
	stopCh chan struct{}
	once   sync.Once
}

// NewDeletionQueue creates a deletion queue with the given backlog
// capacity and starts its worker goroutine.
func NewDeletionQueue(capacity int) *DeletionQueue {
	d := &DeletionQueue{
		items:  make(chan handle.Destroyer, capacity),
		stopCh: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *DeletionQueue) run() {
	defer d.wg.Done()
	for {
		select {
		case obj, ok := <-d.items:
			if !ok {
				return
			}
			obj.Destroy()
		case <-d.stopCh:
			// Drain whatever is already queued before exiting so no
			// pending destructor is silently skipped on shutdown.
			for {
				select {
				case obj, ok := <-d.items:
					if !ok {
						return
					}
					obj.Destroy()
				default:
					return
				}
			}
		}
	}
}

// Push hands obj to the deletion worker. Safe to call from any thread.
// It is non-blocking: if the backlog channel is full it falls back to
// running Destroy inline on the caller's goroutine, which is the right
// tradeoff for every caller except the audio thread itself — capacity
// should be sized generously enough (relative to expected release
// bursts per tick) that the audio thread never actually takes that path.
func (d *DeletionQueue) Push(obj handle.Destroyer) {
	if cap(d.items) == 0 {
		// A zero-capacity queue has no backlog, so it is always full.
		obj.Destroy()
		return
	}
	select {
	case d.items <- obj:
	default:
		obj.Destroy()
	}
}

// Len reports the number of objects currently queued for deletion.
// Intended for metrics, not the hot path.
func (d *DeletionQueue) Len() int {
	return len(d.items)
}

// Stop signals the worker to drain remaining items and exit, then waits
// for it to finish.
func (d *DeletionQueue) Stop() {
	d.once.Do(func() {
		close(d.stopCh)
	})
	d.wg.Wait()
}
