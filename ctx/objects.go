package ctx

import (
	"github.com/synthizer-project/synthizer/blockpool"
	"github.com/synthizer-project/synthizer/effect"
	"github.com/synthizer-project/synthizer/generator"
	"github.com/synthizer-project/synthizer/handle"
	"github.com/synthizer-project/synthizer/panner"
	"github.com/synthizer-project/synthizer/property"
	"github.com/synthizer-project/synthizer/source"
)

// sourceEntry is the handle-table object backing a Source handle: the
// Source itself, its property Set, the HRTF voice it holds (if any), and
// the Generator handles it has taken a reference on via AttachGenerator.
//
// sourceEntry does not implement handle.Destroyer: everything it owns
// that needs cleanup (the pooled HRTF voice, the generator references) is
// released by the Command Queue closure that (*Context).Release pushes,
// which runs on the audio thread at the next tick, after Release has
// already dropped the Source's own handle reference, not by a background
// destructor.
type sourceEntry struct {
	h                  handle.Handle
	src                *source.Source
	props              *property.Set
	voice              *panner.HrtfPanner
	attachedGenerators []handle.Handle
	finishedPosted     bool
}

// effectEntry is the handle-table object backing an Effect handle: the
// Effect implementation plus the pooled input-bus Block the Router
// accumulates routed source signal into each tick.
type effectEntry struct {
	h     handle.Handle
	eff   effect.Effect
	input *blockpool.Block
}

// Destroy implements handle.Destroyer: returns the input bus to its pool.
// Never called inline from the audio thread — the deletion queue runs it.
func (e *effectEntry) Destroy() {
	e.input.Release()
}

// generatorEntry is the handle-table object backing a Generator handle.
// bufRef/bufTable are set only for a BufferGenerator, which holds a
// reference on the Buffer handle it plays so the buffer can't be released
// out from under it while attached.
type generatorEntry struct {
	h        handle.Handle
	gen      generator.Generator
	bufRef   handle.Handle
	bufTable *handle.Table
}

// Destroy implements handle.Destroyer. Delegates to the wrapped
// generator's own Destroy if it has one (StreamingGenerator's decode-loop
// teardown blocks, which is exactly why this only ever runs on the
// deletion queue's worker goroutine) and releases any held Buffer
// reference.
func (e *generatorEntry) Destroy() {
	if d, ok := e.gen.(handle.Destroyer); ok {
		d.Destroy()
	}
	if e.bufRef != 0 && e.bufTable != nil {
		_ = e.bufTable.Release(e.bufRef)
	}
}
