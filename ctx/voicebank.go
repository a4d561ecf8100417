package ctx

import (
	"log/slog"
	"sync"

	"github.com/synthizer-project/synthizer/panner"
)

// voiceBank is the Panner Bank (spec §4.7): a pool of HRTF voices
// pre-allocated at Context construction, handed out to sources on first
// 3D activation and returned on release. Stereo voices are not pooled —
// StereoPanner is a stateless value type, so every PannedSource simply
// owns its own — only the stateful, comparatively expensive HrtfPanner
// voices are bounded and shared.
//
// Grounded on the teacher's resource_manager.go-style bounded-pool
// acquire/release shape, adapted from handle lifetime bookkeeping to
// panner voice bookkeeping.
type voiceBank struct {
	table *panner.HRTFTable

	mu       sync.Mutex
	free     []*panner.HrtfPanner
	warnOnce sync.Once
	log      *slog.Logger
}

// newVoiceBank pre-allocates count HRTF voices against table.
func newVoiceBank(table *panner.HRTFTable, count int, log *slog.Logger) *voiceBank {
	b := &voiceBank{table: table, log: log}
	for i := 0; i < count; i++ {
		b.free = append(b.free, panner.NewHrtfPanner(table))
	}
	return b
}

// acquireHRTF hands out one pooled HrtfPanner voice, or false if the
// pool is exhausted. On exhaustion it logs once (spec §4.7: "If no voice
// is available, the source falls back to ... and logs once") — the
// caller (Context.CreateSource3D) is expected to fall back to a cheaper
// panner, in practice equal-power stereo panning of the same
// distance-attenuated signal.
func (b *voiceBank) acquireHRTF() (*panner.HrtfPanner, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.free) == 0 {
		b.warnOnce.Do(func() {
			if b.log != nil {
				b.log.Warn("hrtf voice pool exhausted; falling back to stereo panning for new 3D sources")
			}
		})
		return nil, false
	}
	v := b.free[len(b.free)-1]
	b.free = b.free[:len(b.free)-1]
	return v, true
}

// releaseHRTF returns v to the pool. Safe to call on nil.
func (b *voiceBank) releaseHRTF(v *panner.HrtfPanner) {
	if v == nil {
		return
	}
	b.mu.Lock()
	b.free = append(b.free, v)
	b.mu.Unlock()
}

// available reports the number of free HRTF voices, for metrics.
func (b *voiceBank) available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.free)
}
