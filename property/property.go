// Package property implements the Property Protocol (spec §4.2): every
// externally visible object (Source, Generator, Effect, Context) exposes
// a set of typed properties. External threads read a cached
// "source-thread view" and write through an RT-safe queue; the audio
// thread owns the canonical value and applies queued writes once per
// tick, publishing a fresh snapshot for external readers at the tick
// boundary.
//
// The schema-driven (tag, kind, validator, default) table replaces the
// macro/CRTP-style per-property boilerplate spec §9 Design Notes calls
// out as the C++ original's approach; in Go the table is just data,
// registered once per object type.
//
// Grounded on the teacher's internal/audiocore processor property
// validation shape (e.g. a gain processor rejecting out-of-range values
// before accepting them) and internal/audiocore/manager.go's
// apply-on-next-tick command pattern; the concrete MPSC delivery queue
// (mpsc.go) is a structure this package shares with package cmdqueue,
// since both need the same "many writers, one RT-safe drainer" shape.
package property

import (
	"sync/atomic"

	"github.com/synthizer-project/synthizer/internal/errors"
)

// Tag identifies a property within a Schema, e.g. "gain", "azimuth",
// "position".
type Tag string

// Kind enumerates the value shapes properties may hold.
type Kind int

const (
	KindInt Kind = iota
	KindDouble
	KindDouble3
	KindDouble6
	KindObject
)

// Value is a tagged union over every property shape the engine needs.
// It is a plain value type (no heap allocation, no interface boxing) so
// that queueing and copying it is RT-safe.
type Value struct {
	Kind   Kind
	Int    int64
	Double float64
	Vec3   [3]float64
	Vec6   [6]float64
	Object uint64 // handle.Handle, kept as a plain uint64 to avoid an import cycle
}

// Validator checks a candidate value before it is accepted, returning a
// descriptive error (for example one with category CategoryProperty)
// if it should be rejected.
type Validator func(Value) error

// Descriptor is one row of a property schema.
type Descriptor struct {
	Tag      Tag
	Kind     Kind
	Default  Value
	Validate Validator
}

// Schema is an ordered, read-only table of property descriptors shared
// by every instance of one object type (e.g. every Source). Build once
// at package init time and reuse across instances; the slot index each
// tag resolves to is fixed for the schema's lifetime, which lets Set
// store values in plain slices instead of per-tick map allocation.
type Schema struct {
	descriptors []Descriptor
	slotOf      map[Tag]int
}

// NewSchema builds a Schema from descriptors. Panics on a duplicate tag,
// since that is a programming error in the object type's own
// registration, never a runtime condition.
func NewSchema(descriptors ...Descriptor) *Schema {
	s := &Schema{
		descriptors: append([]Descriptor(nil), descriptors...),
		slotOf:      make(map[Tag]int, len(descriptors)),
	}
	for i, d := range s.descriptors {
		if _, exists := s.slotOf[d.Tag]; exists {
			panic("property: duplicate tag " + string(d.Tag) + " in schema")
		}
		s.slotOf[d.Tag] = i
	}
	return s
}

func (s *Schema) slot(tag Tag) (int, *Descriptor, error) {
	i, ok := s.slotOf[tag]
	if !ok {
		return 0, nil, errors.Newf("unknown property %q", tag).
			Component("property").
			Category(errors.CategoryProperty).
			Context("tag", string(tag)).
			Build()
	}
	return i, &s.descriptors[i], nil
}

// snapshot is one fixed-size, pre-allocated row of values, indexed by
// schema slot.
type snapshot struct {
	values []Value
}

// Set is one object's live property state: a schema, the audio-thread's
// canonical values, a double-buffered published snapshot external
// readers see, and the MPSC queue external writers push through.
//
// The two published buffers are allocated once at construction and
// swapped by pointer at each Publish; this keeps the audio thread's
// per-tick publication allocation-free, satisfying the no-allocation
// invariant (spec §5) that a naive copy-a-fresh-map-every-tick design
// would violate.
type Set struct {
	schema    *Schema
	canonical []Value // mutated only by the audio thread
	published atomic.Pointer[snapshot]
	scratch   *snapshot // the buffer not currently pointed to by published
	queue     *mpscQueue
}

// NewSet creates a property Set initialized to schema's defaults.
func NewSet(schema *Schema) *Set {
	n := len(schema.descriptors)
	canonical := make([]Value, n)
	for i, d := range schema.descriptors {
		canonical[i] = d.Default
	}

	bufA := &snapshot{values: append([]Value(nil), canonical...)}
	bufB := &snapshot{values: make([]Value, n)}
	copy(bufB.values, canonical)

	s := &Set{
		schema:    schema,
		canonical: canonical,
		scratch:   bufB,
		queue:     newMPSCQueue(),
	}
	s.published.Store(bufA)
	return s
}

// Set queues an external write of value for tag. It validates the value
// against the schema immediately (so callers get a synchronous error for
// a clearly invalid value, e.g. wrong Kind) but the write itself only
// takes effect at the next tick boundary, after any writes already
// queued ahead of it (spec §9: "external writes always win at the next
// tick boundary").
//
// Set never blocks and never allocates beyond the single queued node.
func (s *Set) Set(tag Tag, value Value) error {
	_, d, err := s.schema.slot(tag)
	if err != nil {
		return err
	}
	if value.Kind != d.Kind {
		return errors.Newf("property %q expects kind %v, got %v", tag, d.Kind, value.Kind).
			Component("property").
			Category(errors.CategoryProperty).
			Context("tag", string(tag)).
			Build()
	}
	if d.Validate != nil {
		if err := d.Validate(value); err != nil {
			return err
		}
	}

	s.queue.push(&writeNode{tag: tag, value: value})
	return nil
}

// Get returns the most recently published snapshot's value for tag. Safe
// to call from any thread; it never blocks on the audio thread's drain.
func (s *Set) Get(tag Tag) (Value, error) {
	i, _, err := s.schema.slot(tag)
	if err != nil {
		return Value{}, err
	}
	snap := s.published.Load()
	return snap.values[i], nil
}

// SetCanonical is used by the audio thread itself to update a property
// it derives internally (e.g. playback_position advancing each tick, per
// spec §9's resolution of the audio-thread-origin write ordering
// question). It writes directly into the canonical slice; the update is
// visible to external readers once Publish runs at end of tick.
//
// Must only be called from the audio thread.
func (s *Set) SetCanonical(tag Tag, value Value) {
	i, _, err := s.schema.slot(tag)
	if err != nil {
		return
	}
	s.canonical[i] = value
}

// Canonical returns the audio thread's current value for tag. Must only
// be called from the audio thread.
func (s *Set) Canonical(tag Tag) Value {
	i, _, err := s.schema.slot(tag)
	if err != nil {
		return Value{}
	}
	return s.canonical[i]
}

// DrainTick applies every write queued since the last DrainTick to the
// canonical slice, in FIFO order, validating each again (a validator may
// be state-dependent). Must only be called once per tick from the audio
// thread, before the tick's processing begins.
func (s *Set) DrainTick() {
	for {
		n := s.queue.pop()
		if n == nil {
			return
		}
		i, d, err := s.schema.slot(n.tag)
		if err != nil {
			continue // property removed from schema since write was queued; drop it
		}
		if d.Validate != nil {
			if err := d.Validate(n.value); err != nil {
				continue // stale/invalid write, drop rather than fail the whole tick
			}
		}
		s.canonical[i] = n.value
	}
}

// Publish copies the canonical slice into the currently-unpublished
// scratch buffer and atomically swaps it in, all without allocating.
// Must be called once per tick from the audio thread, after DrainTick
// and after any SetCanonical calls for that tick (spec §9:
// audio-thread-origin updates publish after external writes for the
// same tick have already been applied).
func (s *Set) Publish() {
	copy(s.scratch.values, s.canonical)
	old := s.published.Swap(s.scratch)
	s.scratch = old
}
