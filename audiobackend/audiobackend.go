// Package audiobackend implements the AudioBackend seam (spec §6): the
// engine core never talks to an OS audio device directly, only to this
// interface, so the Context Scheduler stays testable without real audio
// hardware and so alternate backends (a test double, a different
// platform API) can be swapped in without touching the scheduler.
//
// Malgo grounds the concrete implementation on the teacher's
// internal/audiocore/sources/malgo package: a config struct, a
// device/context pair from the malgo binding, and a callback bridging
// the OS audio thread into the engine's own processing. The teacher's
// malgo source is a capture (input) device; this package mirrors its
// lifecycle (NewXxx validates config, Start/Stop own the malgo
// context+device pair, errors flow through internal/errors) for a
// playback (output) device instead, since the engine produces audio
// rather than consuming it.
package audiobackend

import (
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/synthizer-project/synthizer/internal/errors"
	"github.com/synthizer-project/synthizer/internal/logging"
)

// Backend is the interface the Context Scheduler consumes (spec §6).
// Implementations own exactly one underlying audio device.
type Backend interface {
	// Start opens the device at the given sample rate and channel count
	// and begins calling onBlockReady once per device period from
	// whatever thread the backend's own I/O callback runs on. The
	// scheduler treats each call as its sole permitted suspension point
	// (spec §5): it does no other blocking wait.
	Start(sampleRate, channels int, onBlockReady func()) error

	// Submit hands the scheduler's most recently produced block
	// (interleaved, frames*channels float32 samples) to the device for
	// playback. Called from the scheduler's own thread in response to
	// the most recent onBlockReady.
	Submit(frames []float32, nFrames int) error

	// Stop closes the device. Idempotent.
	Stop() error
}

// MalgoConfig configures a MalgoBackend's device selection.
type MalgoConfig struct {
	// DeviceID is only logged by Start; it does not select a device.
	// Playback always uses the platform default device.
	DeviceID string
	// PeriodSizeFrames requests a device period length; zero accepts
	// the backend's default.
	PeriodSizeFrames int
}

// MalgoBackend is a Backend implemented on github.com/gen2brain/malgo
// (the go.mod dependency this module already carries for cross-platform
// playback).
//
// Miniaudio's own data callback writes directly into its output buffer.
// The callback calls onBlockReady synchronously, so whatever that
// function does (for a Context, its whole tick: property drain, source
// mix, effect DSP, and the Submit that stages the block) runs inside the
// callback. The callback then copies the block Submit just staged, from
// a single mutex-guarded staging buffer, into the device buffer; there
// is no double buffering and no extra tick of latency. One staged block
// is copied per callback whatever frameCount is: a longer device period
// is zero-filled past the block, a shorter one truncates it.
type MalgoBackend struct {
	cfg MalgoConfig

	mu       sync.Mutex
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	channels int

	staged   []float32 // filled by Submit, read by the malgo data callback
	stagedMu sync.Mutex
}

// NewMalgoBackend creates an unopened backend; call Start to open the
// device.
func NewMalgoBackend(cfg MalgoConfig) *MalgoBackend {
	return &MalgoBackend{cfg: cfg}
}

// Start implements Backend.
func (b *MalgoBackend) Start(sampleRate, channels int, onBlockReady func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	log := logging.ForService("audiobackend")

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		log.Debug("malgo log", "msg", msg)
	})
	if err != nil {
		return errors.New(err).
			Component("audiobackend").
			Category(errors.CategoryInternal).
			Build()
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	if b.cfg.PeriodSizeFrames > 0 {
		deviceConfig.PeriodSizeInFrames = uint32(b.cfg.PeriodSizeFrames)
	}
	if b.cfg.DeviceID != "" {
		log.Debug("malgo: requested device id not addressable via default enumeration, using system default", "device_id", b.cfg.DeviceID)
	}

	b.channels = channels

	onSamples := func(output, _ []byte, frameCount uint32) {
		if onBlockReady != nil {
			onBlockReady()
		}
		b.stagedMu.Lock()
		n := copy(output, f32SliceToBytes(b.staged))
		b.stagedMu.Unlock()
		for i := n; i < len(output); i++ {
			output[i] = 0
		}
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		malgoCtx.Uninit()
		return errors.New(err).
			Component("audiobackend").
			Category(errors.CategoryInternal).
			Build()
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		malgoCtx.Uninit()
		return errors.New(err).
			Component("audiobackend").
			Category(errors.CategoryInternal).
			Build()
	}

	b.ctx = malgoCtx
	b.device = device
	log.Info("malgo playback device started", "sample_rate", sampleRate, "channels", channels)
	return nil
}

// Submit implements Backend: it stages frames (interleaved,
// nFrames*channels samples) for the next malgo data callback to copy
// out. Submit itself never blocks on the device; it only takes a short
// mutex shared with the callback's copy.
func (b *MalgoBackend) Submit(frames []float32, nFrames int) error {
	need := nFrames * b.channels
	if need > len(frames) {
		return errors.Newf("audiobackend: submit requested %d samples, only %d available", need, len(frames)).
			Component("audiobackend").
			Category(errors.CategoryValidation).
			Build()
	}
	b.stagedMu.Lock()
	if cap(b.staged) < need {
		b.staged = make([]float32, need)
	}
	b.staged = b.staged[:need]
	copy(b.staged, frames[:need])
	b.stagedMu.Unlock()
	return nil
}

// Stop implements Backend. Idempotent.
func (b *MalgoBackend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device != nil {
		b.device.Uninit()
		b.device = nil
	}
	if b.ctx != nil {
		if err := b.ctx.Uninit(); err != nil {
			b.ctx = nil
			return errors.New(err).
				Component("audiobackend").
				Category(errors.CategoryInternal).
				Build()
		}
		b.ctx = nil
	}
	return nil
}

// SyncBackend is a Backend with no real device behind it: Tick drives
// exactly one onBlockReady call synchronously on the caller's goroutine
// and records whatever the scheduler Submits in response. Intended for
// tests and for offline rendering (spec §8's scenario tests run the
// engine for a fixed number of frames without a sound card), the same
// role a test double plays against the teacher's AudioSource interface
// in its own unit tests.
type SyncBackend struct {
	channels     int
	onBlockReady func()
	lastFrames   []float32
	lastN        int
}

// NewSyncBackend creates an unstarted SyncBackend.
func NewSyncBackend() *SyncBackend {
	return &SyncBackend{}
}

// Start implements Backend: it just records channels and the callback;
// no goroutine or device is created. The caller drives ticks via Tick.
func (b *SyncBackend) Start(_, channels int, onBlockReady func()) error {
	b.channels = channels
	b.onBlockReady = onBlockReady
	return nil
}

// Tick invokes the scheduler's onBlockReady callback once, synchronously.
func (b *SyncBackend) Tick() {
	if b.onBlockReady != nil {
		b.onBlockReady()
	}
}

// Submit implements Backend: records the submitted block for LastBlock
// to return.
func (b *SyncBackend) Submit(frames []float32, nFrames int) error {
	need := nFrames * b.channels
	if cap(b.lastFrames) < need {
		b.lastFrames = make([]float32, need)
	}
	b.lastFrames = b.lastFrames[:need]
	copy(b.lastFrames, frames[:need])
	b.lastN = nFrames
	return nil
}

// Stop implements Backend; a no-op.
func (b *SyncBackend) Stop() error { return nil }

// LastBlock returns the most recently submitted interleaved block and
// its frame count.
func (b *SyncBackend) LastBlock() ([]float32, int) {
	return b.lastFrames, b.lastN
}

// f32SliceToBytes copies a []float32 into a newly allocated []byte in
// little-endian order, the same layout miniaudio's FormatF32
// buffers use on every platform this binding targets.
func f32SliceToBytes(s []float32) []byte {
	if len(s) == 0 {
		return nil
	}
	const bytesPerSample = 4
	b := make([]byte, len(s)*bytesPerSample)
	for i, v := range s {
		bits := math.Float32bits(v)
		b[i*4+0] = byte(bits)
		b[i*4+1] = byte(bits >> 8)
		b[i*4+2] = byte(bits >> 16)
		b[i*4+3] = byte(bits >> 24)
	}
	return b
}
