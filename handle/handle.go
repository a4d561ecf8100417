// Package handle implements the opaque, reference-counted handles used to
// refer to every externally visible engine object (Context, Source,
// Generator, Effect, Buffer, StreamHandle — spec §3).
//
// A Handle is a plain integer so it can cross the (illustrative) C ABI
// boundary described in spec §6 without embedding a pointer; the real
// object lives in a process-wide table guarded by a mutex. Handles own a
// reference count: both the audio thread and external threads may hold
// references concurrently. Release from an external thread never runs a
// destructor inline — it hands the object to the deferred-deletion queue
// (see package cmdqueue) so no destructor ever executes on a caller thread
// or the audio thread.
package handle

import (
	"sync"
	"sync/atomic"

	"github.com/synthizer-project/synthizer/internal/errors"
)

// Handle is an opaque reference to an engine object.
type Handle uint64

// Destroyer is implemented by objects that need cleanup when their last
// reference is released. Destroy must be safe to call from the
// background deletion thread; it must never be called inline from
// Release.
type Destroyer interface {
	Destroy()
}

// entry is the table's bookkeeping record for one live handle.
type entry struct {
	refCount int32
	object   any
}

// Table is a process- or Context-scoped handle table. The zero value is
// not usable; use NewTable.
type Table struct {
	mu      sync.RWMutex
	entries map[Handle]*entry
	next    uint64
	onZero  func(h Handle, object any)
}

// NewTable creates an empty handle table. onZero is invoked (outside the
// table's lock) whenever a handle's reference count drops to zero; the
// caller is expected to enqueue the object onto the deferred-deletion
// queue rather than destroy it inline.
func NewTable(onZero func(h Handle, object any)) *Table {
	return &Table{
		entries: make(map[Handle]*entry),
		onZero:  onZero,
	}
}

// Create allocates a new handle bound to object with an initial reference
// count of 1.
func (t *Table) Create(object any) Handle {
	id := Handle(atomic.AddUint64(&t.next, 1))

	t.mu.Lock()
	t.entries[id] = &entry{refCount: 1, object: object}
	t.mu.Unlock()

	return id
}

// Lookup returns the object bound to h, or an InvalidHandle error if h is
// unknown or already released.
func (t *Table) Lookup(h Handle) (any, error) {
	t.mu.RLock()
	e, ok := t.entries[h]
	t.mu.RUnlock()
	if !ok {
		return nil, errors.Newf("handle %d is invalid or has been released", h).
			Component("handle").
			Category(errors.CategoryHandle).
			Handle(uint64(h)).
			Build()
	}
	return e.object, nil
}

// Acquire increments the reference count of h. It is the caller's
// responsibility to ensure h was valid at the point Acquire was called
// (e.g. it was observed live during the current audio tick).
func (t *Table) Acquire(h Handle) error {
	t.mu.RLock()
	e, ok := t.entries[h]
	t.mu.RUnlock()
	if !ok {
		return errors.Newf("handle %d is invalid or has been released", h).
			Component("handle").
			Category(errors.CategoryHandle).
			Handle(uint64(h)).
			Build()
	}
	atomic.AddInt32(&e.refCount, 1)
	return nil
}

// Release decrements the reference count of h. When it reaches zero the
// handle is removed from the table and onZero is invoked with the bound
// object so the caller can schedule destruction off the calling thread.
// Release never blocks on destruction and never runs a destructor itself.
func (t *Table) Release(h Handle) error {
	t.mu.Lock()
	e, ok := t.entries[h]
	if !ok {
		t.mu.Unlock()
		return errors.Newf("handle %d is invalid or has been released", h).
			Component("handle").
			Category(errors.CategoryHandle).
			Handle(uint64(h)).
			Build()
	}

	remaining := atomic.AddInt32(&e.refCount, -1)
	if remaining == 0 {
		delete(t.entries, h)
	}
	t.mu.Unlock()

	if remaining == 0 && t.onZero != nil {
		t.onZero(h, e.object)
	}
	return nil
}

// Len reports the number of live handles. Intended for tests and metrics,
// not the hot path.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
