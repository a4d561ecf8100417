// Package ctx implements the Context Scheduler (spec §4.11): the single
// audio-thread tick loop that drains the Command Queue, ticks every
// Source, dispatches routed signal into Effects via the Router, ticks
// every Effect, and submits the resulting block to an AudioBackend. It
// also owns the handle table, the deferred-deletion queue, the event
// queue, and the Panner Bank (voiceBank) shared by every Source3D.
//
// It is a separate package from engine because engine (spec's
// BLOCK_SIZE/SAMPLE_RATE/MAX_CHANNELS constants) is imported by
// blockpool, and blockpool is in turn imported here — putting the
// scheduler in engine itself would create an import cycle
// (engine -> blockpool -> engine). ctx sits downstream of both.
package ctx

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/synthizer-project/synthizer/audiobackend"
	"github.com/synthizer-project/synthizer/blockpool"
	"github.com/synthizer-project/synthizer/cmdqueue"
	"github.com/synthizer-project/synthizer/decoder"
	"github.com/synthizer-project/synthizer/effect"
	"github.com/synthizer-project/synthizer/engine"
	"github.com/synthizer-project/synthizer/event"
	"github.com/synthizer-project/synthizer/generator"
	"github.com/synthizer-project/synthizer/handle"
	"github.com/synthizer-project/synthizer/internal/errors"
	"github.com/synthizer-project/synthizer/internal/logging"
	"github.com/synthizer-project/synthizer/internal/metrics"
	"github.com/synthizer-project/synthizer/panner"
	"github.com/synthizer-project/synthizer/property"
	"github.com/synthizer-project/synthizer/router"
	"github.com/synthizer-project/synthizer/source"
)

const (
	defaultHRTFVoices          = 32
	defaultBlockPoolReserve    = 64
	defaultDeletionQueueDepth  = 256
	defaultEventQueueDepth     = 256
	defaultHRTFAzimuthStepDeg  = 15
	defaultHRTFElevStepDeg     = 30
	defaultHRTFElevRangeDeg    = 90
)

// Context is one independent audio graph: its own handle table, its own
// tick loop, its own output device. Constructing more than one Context
// per process is supported (spec §4.11) — each owns every piece of state
// the tick loop touches, so two Contexts never share a lock on the hot
// path.
type Context struct {
	id string

	handles  *handle.Table
	cmdQueue *cmdqueue.CommandQueue
	deletion *cmdqueue.DeletionQueue
	events   *event.Queue
	pool     *blockpool.Pool
	router   *router.Router
	voices   *voiceBank
	resMon   *ResourceMonitor
	backend  audiobackend.Backend

	channels int
	master   *blockpool.Block

	sources []*sourceEntry
	effects []*effectEntry

	listenerProps *property.Set
	listenerPos   source.Vec3

	mixScratch        []float64
	interleaveScratch []float32

	shuttingDown atomic.Bool
	tickMu       sync.Mutex

	log *slog.Logger
}

// Config configures optional pieces of a new Context. The zero value is
// valid and selects every documented default.
type Config struct {
	// HRTFVoices sets the Panner Bank's pooled HRTF voice count (spec
	// §4.7). Zero selects defaultHRTFVoices.
	HRTFVoices int
	// BlockPoolReserve sets how many blockpool.Blocks are pre-warmed at
	// construction. Zero selects defaultBlockPoolReserve.
	BlockPoolReserve int
	// ResourceMonitor configures the background CPU/memory sampler. A
	// zero value still starts a monitor with library defaults; set
	// DisableResourceMonitor to skip it entirely (e.g. under test).
	ResourceMonitor ResourceMonitorConfig
	DisableResourceMonitor bool
}

// NewContext constructs a Context bound to backend, ready to produce
// audio at outputChannels channels once Start is called.
func NewContext(backend audiobackend.Backend, outputChannels int, cfg Config) (*Context, error) {
	if outputChannels <= 0 || outputChannels > engine.MaxChannels {
		return nil, errors.Newf("ctx: output channel count %d out of range [1,%d]", outputChannels, engine.MaxChannels).
			Component("ctx").
			Category(errors.CategoryValidation).
			Build()
	}

	log := logging.ForService("ctx")
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()
	log = log.With("context_id", id)

	hrtfVoices := cfg.HRTFVoices
	if hrtfVoices <= 0 {
		hrtfVoices = defaultHRTFVoices
	}
	reserve := cfg.BlockPoolReserve
	if reserve <= 0 {
		reserve = defaultBlockPoolReserve
	}

	pool := blockpool.NewPool(reserve)
	master, err := pool.Acquire(outputChannels)
	if err != nil {
		return nil, err
	}

	table := panner.NewProceduralTable(defaultHRTFAzimuthStepDeg, defaultHRTFElevStepDeg, defaultHRTFElevRangeDeg)

	c := &Context{
		id:                id,
		cmdQueue:          cmdqueue.NewCommandQueue(),
		deletion:          cmdqueue.NewDeletionQueue(defaultDeletionQueueDepth),
		events:            event.NewQueue(defaultEventQueueDepth),
		pool:              pool,
		router:            router.New(),
		voices:            newVoiceBank(table, hrtfVoices, log),
		backend:           backend,
		channels:          outputChannels,
		master:            master,
		listenerProps:     property.NewSet(listenerSchema),
		mixScratch:        make([]float64, engine.BlockSize),
		interleaveScratch: make([]float32, engine.MaxChannels*engine.BlockSize),
		log:               log,
	}
	c.handles = handle.NewTable(func(h handle.Handle, object any) {
		if d, ok := object.(handle.Destroyer); ok {
			c.deletion.Push(d)
		}
	})

	if !cfg.DisableResourceMonitor {
		c.resMon = NewResourceMonitor(cfg.ResourceMonitor, log)
	}

	return c, nil
}

// Start opens the audio backend and begins ticking. The backend's own
// I/O callback drives every subsequent call to tick; Start itself returns
// as soon as the device is open.
func (c *Context) Start() error {
	if c.resMon != nil {
		c.resMon.Start()
	}
	return c.backend.Start(engine.SampleRate, c.channels, c.tick)
}

// tick implements one full pass of the scheduler (spec §4.11): drain
// commands, tick every source (which folds its own routing contribution
// into each effect's input bus), advance and compact the router's fade
// state machines, tick every effect, interleave the result, and submit it
// to the backend. Invoked from whatever thread the backend's onBlockReady
// callback runs on; tickMu guards against a backend that might otherwise
// re-enter concurrently.
func (c *Context) tick() {
	if c.shuttingDown.Load() {
		return
	}
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	mcol := metrics.Get()

	c.cmdQueue.Drain()
	mcol.RecordCommandQueueDepth(c.cmdQueue.Len())

	c.master.Zero()
	masterBus := c.master.Channels()

	c.listenerProps.DrainTick()
	lp := c.listenerProps.Canonical(PropListenerPosition)
	c.listenerPos = source.Vec3{X: lp.Vec3[0], Y: lp.Vec3[1], Z: lp.Vec3[2]}
	c.listenerProps.Publish()

	for _, se := range c.sources {
		se.props.DrainTick()
		c.applySourceProps(se)

		se.src.Tick(c.mixScratch, c.listenerPos, masterBus)

		bus := se.src.RouteBus()
		if len(bus) > 0 {
			for _, rg := range c.router.RoutesForSource(uint64(se.h), engine.BlockSize) {
				if ee := c.findEffect(handle.Handle(rg.Effect)); ee != nil {
					router.MixIntoRamped(ee.input.Channels(), [][]float32{bus}, rg.StartGain, rg.EndGain)
				}
			}
		}

		c.pollSourceEvents(se)
		se.props.Publish()
	}

	c.router.Advance(engine.BlockSize)
	steady, fading := c.router.RouteCounts()
	mcol.RecordRouteCounts(steady, fading)
	c.router.Compact()

	for _, ee := range c.effects {
		ee.eff.Tick(ee.input.Channels(), masterBus)
	}

	frames := engine.BlockSize * c.channels
	interleaved := c.interleaveScratch[:frames]
	interleave(masterBus, interleaved)
	if err := c.backend.Submit(interleaved, engine.BlockSize); err != nil {
		c.log.Error("audio backend submit failed", "error", err)
	}

	mcol.RecordTick()
	mcol.RecordDeletionQueueDepth(c.deletion.Len())
}

func (c *Context) findEffect(h handle.Handle) *effectEntry {
	for _, ee := range c.effects {
		if ee.h == h {
			return ee
		}
	}
	return nil
}

func (c *Context) applySourceProps(se *sourceEntry) {
	se.src.Gain = se.props.Canonical(PropGain).Double
	switch se.src.Kind {
	case source.Panned:
		se.src.AzimuthDeg = se.props.Canonical(PropAzimuth).Double
		se.src.ElevationDeg = se.props.Canonical(PropElevation).Double
	case source.Source3DKind:
		pos := se.props.Canonical(PropPosition)
		se.src.Position = source.Vec3{X: pos.Vec3[0], Y: pos.Vec3[1], Z: pos.Vec3[2]}
	}
}

// pollSourceEvents posts Looped (spec §6) for every BufferGenerator that
// wrapped during this tick and Finished once every attached generator
// that can finish has finished and stays finished across ticks. Noise,
// sine-bank, and streaming generators never finish, so a source with any
// of those attached never posts Finished — matching spec §6's definition
// of Finished as end-of-data, which those generator kinds have no notion
// of.
func (c *Context) pollSourceEvents(se *sourceEntry) {
	sawBuffer := false
	allFinished := true
	for _, g := range se.src.Generators {
		bg, ok := g.(*generator.BufferGenerator)
		if !ok {
			allFinished = false
			continue
		}
		sawBuffer = true
		if bg.ConsumeLooped() {
			c.events.Post(event.Event{Kind: event.Looped, Handle: uint64(se.h)})
		}
		if !bg.Finished() {
			allFinished = false
		}
	}

	if sawBuffer && allFinished {
		if !se.finishedPosted {
			se.finishedPosted = true
			c.events.Post(event.Event{Kind: event.Finished, Handle: uint64(se.h)})
		}
	} else {
		se.finishedPosted = false
	}
}

// NextEvent polls the event queue (spec §6). Non-blocking; intended to be
// polled by a dedicated consumer thread/goroutine, never from the audio
// thread.
func (c *Context) NextEvent() (event.Event, bool) {
	return c.events.Next()
}

func interleave(bus [][]float32, out []float32) {
	n := len(bus)
	if n == 0 || len(bus[0]) == 0 {
		return
	}
	frames := len(bus[0])
	need := frames * n
	if need > len(out) {
		need = len(out)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < n; ch++ {
			idx := i*n + ch
			if idx >= need {
				return
			}
			out[idx] = bus[ch][i]
		}
	}
}

// Shutdown stops the audio backend and resource monitor and drains the
// deletion queue. Idempotent.
func (c *Context) Shutdown() error {
	if !c.shuttingDown.CompareAndSwap(false, true) {
		return nil
	}
	var firstErr error
	if err := c.backend.Stop(); err != nil {
		c.log.Error("audio backend stop failed", "error", err)
		firstErr = err
	}
	if c.resMon != nil {
		c.resMon.Stop()
	}
	c.deletion.Stop()
	c.master.Release()
	return firstErr
}

// --- Source lifecycle -------------------------------------------------

// CreateDirectSource creates a Source that routes its mixed generators
// straight to the output bus with no panning.
func (c *Context) CreateDirectSource() handle.Handle {
	se := &sourceEntry{src: source.NewDirect(), props: property.NewSet(sourceSchema)}
	h := c.handles.Create(se)
	se.h = h
	c.cmdQueue.Push(func() { c.sources = append(c.sources, se) })
	return h
}

// CreatePannedSource creates a Source panned to a fixed azimuth/elevation
// (set via the azimuth/elevation properties) using equal-power stereo
// panning.
func (c *Context) CreatePannedSource() handle.Handle {
	se := &sourceEntry{src: source.NewPanned(panner.NewStereoPanner()), props: property.NewSet(sourceSchema)}
	h := c.handles.Create(se)
	se.h = h
	c.cmdQueue.Push(func() { c.sources = append(c.sources, se) })
	return h
}

// CreateSource3D creates a Source whose pan direction and distance gain
// are derived each tick from its position property relative to the
// Context's listener position. It draws one voice from the Panner Bank
// for full HRTF spatialization; if the bank is exhausted it falls back to
// equal-power stereo panning of the same distance-attenuated signal and
// logs the fallback once (spec §4.7).
func (c *Context) CreateSource3D(dist source.DistanceParams) handle.Handle {
	se := &sourceEntry{props: property.NewSet(sourceSchema)}
	var p panner.Panner
	if voice, ok := c.voices.acquireHRTF(); ok {
		se.voice = voice
		p = voice
		voice.OnCacheEvent = func(hit bool) {
			if hit {
				metrics.Get().RecordPannerCacheHit()
			} else {
				metrics.Get().RecordPannerCacheMiss()
			}
		}
	} else {
		p = panner.NewStereoPanner()
	}
	se.src = source.NewSource3D(p, dist)
	h := c.handles.Create(se)
	se.h = h
	c.cmdQueue.Push(func() { c.sources = append(c.sources, se) })
	return h
}

// AttachGenerator attaches the Generator bound to genHandle to the Source
// bound to sourceHandle, taking a reference on the generator handle so it
// cannot be released out from under the source while attached.
func (c *Context) AttachGenerator(sourceHandle, genHandle handle.Handle) error {
	sObj, err := c.handles.Lookup(sourceHandle)
	if err != nil {
		return err
	}
	se, ok := sObj.(*sourceEntry)
	if !ok {
		return errors.Newf("handle %d is not a Source", sourceHandle).
			Component("ctx").Category(errors.CategoryNotSupported).Build()
	}
	gObj, err := c.handles.Lookup(genHandle)
	if err != nil {
		return err
	}
	ge, ok := gObj.(*generatorEntry)
	if !ok {
		return errors.Newf("handle %d is not a Generator", genHandle).
			Component("ctx").Category(errors.CategoryNotSupported).Build()
	}
	if err := c.handles.Acquire(genHandle); err != nil {
		return err
	}
	c.cmdQueue.Push(func() {
		se.src.AddGenerator(ge.gen)
		se.attachedGenerators = append(se.attachedGenerators, genHandle)
	})
	return nil
}

// Release releases the caller's reference on h. Sources and Effects are
// additionally spliced out of the scheduler's live lists via the Command
// Queue, so the audio thread never observes a half-torn-down object;
// Generators and Buffers need no such splice since nothing but their own
// handle-table entry and whatever attached them refers to them directly.
func (c *Context) Release(h handle.Handle) error {
	obj, err := c.handles.Lookup(h)
	if err != nil {
		return err
	}
	switch v := obj.(type) {
	case *sourceEntry:
		c.cmdQueue.Push(func() {
			c.removeSourceEntry(v)
			if v.voice != nil {
				c.voices.releaseHRTF(v.voice)
				v.voice = nil
			}
		})
	case *effectEntry:
		c.cmdQueue.Push(func() {
			c.removeEffectEntry(v)
		})
	}
	return c.handles.Release(h)
}

func (c *Context) removeSourceEntry(se *sourceEntry) {
	for i, s := range c.sources {
		if s == se {
			c.sources = append(c.sources[:i], c.sources[i+1:]...)
			break
		}
	}
	for _, gh := range se.attachedGenerators {
		_ = c.handles.Release(gh)
	}
	se.attachedGenerators = nil
}

func (c *Context) removeEffectEntry(ee *effectEntry) {
	for i, e := range c.effects {
		if e == ee {
			c.effects = append(c.effects[:i], c.effects[i+1:]...)
			break
		}
	}
}

// --- Effect lifecycle ---------------------------------------------------

// CreateEcho creates a fixed-tap delay-line Echo effect (spec §4.10)
// whose memory holds maxDelayFrames frames.
func (c *Context) CreateEcho(maxDelayFrames int) (handle.Handle, error) {
	return c.registerEffect(effect.NewEcho(maxDelayFrames))
}

// CreateFDNReverb creates a feedback-delay-network reverb (spec §4.10)
// with numLines delay lines, each between minFrames and maxFrames long,
// tuned by params.
func (c *Context) CreateFDNReverb(numLines, minFrames, maxFrames int, params effect.ReverbParams) (handle.Handle, error) {
	eff, err := effect.NewFDNReverb(numLines, minFrames, maxFrames, float64(engine.SampleRate), params, nil)
	if err != nil {
		return 0, err
	}
	return c.registerEffect(eff)
}

func (c *Context) registerEffect(eff effect.Effect) (handle.Handle, error) {
	input, err := c.pool.Acquire(eff.NumChannels())
	if err != nil {
		return 0, err
	}
	ee := &effectEntry{eff: eff, input: input}
	h := c.handles.Create(ee)
	ee.h = h
	c.cmdQueue.Push(func() { c.effects = append(c.effects, ee) })
	return h, nil
}

// --- Generator lifecycle -------------------------------------------------

// CreateBuffer registers fully-decoded planar PCM as a Buffer handle that
// any number of BufferGenerators can share read-only.
func (c *Context) CreateBuffer(channelData [][]float32, sampleRate int) (handle.Handle, error) {
	buf, err := generator.NewBuffer(channelData, sampleRate)
	if err != nil {
		return 0, err
	}
	return c.handles.Create(buf), nil
}

// CreateBufferGenerator creates a Generator playing the Buffer bound to
// bufferHandle, taking a reference on it so the buffer outlives the
// generator.
func (c *Context) CreateBufferGenerator(bufferHandle handle.Handle) (handle.Handle, error) {
	obj, err := c.handles.Lookup(bufferHandle)
	if err != nil {
		return 0, err
	}
	buf, ok := obj.(*generator.Buffer)
	if !ok {
		return 0, errors.Newf("handle %d is not a Buffer", bufferHandle).
			Component("ctx").Category(errors.CategoryNotSupported).Build()
	}
	if err := c.handles.Acquire(bufferHandle); err != nil {
		return 0, err
	}
	ge := &generatorEntry{gen: generator.NewBufferGenerator(buf), bufRef: bufferHandle, bufTable: c.handles}
	h := c.handles.Create(ge)
	ge.h = h
	return h, nil
}

// CreateNoiseGenerator creates a white/1-over-f/pink noise Generator.
func (c *Context) CreateNoiseGenerator(color generator.NoiseColor, seed int64) handle.Handle {
	ge := &generatorEntry{gen: generator.NewNoiseGenerator(color, seed)}
	h := c.handles.Create(ge)
	ge.h = h
	return h
}

// CreateSineBank creates an empty FastSineBank Generator. The Context
// has no method that adds voices to it, so attached to a Source it
// produces silence.
func (c *Context) CreateSineBank() handle.Handle {
	ge := &generatorEntry{gen: generator.NewFastSineBank()}
	h := c.handles.Create(ge)
	ge.h = h
	return h
}

// CreateStreamingGenerator creates a Generator that decodes stream on a
// background goroutine into a ring buffer of ringCapacityFrames frames.
func (c *Context) CreateStreamingGenerator(stream decoder.Stream, ringCapacityFrames int) handle.Handle {
	ge := &generatorEntry{gen: generator.NewStreamingGenerator(stream, ringCapacityFrames)}
	h := c.handles.Create(ge)
	ge.h = h
	return h
}

// --- Routing --------------------------------------------------------------

// ConfigRoute establishes or retargets a route from sourceHandle to
// effectHandle at gain, fading over fadeSeconds (spec §4.5).
func (c *Context) ConfigRoute(sourceHandle, effectHandle handle.Handle, gain, fadeSeconds float64) error {
	if _, err := c.handles.Lookup(sourceHandle); err != nil {
		return err
	}
	if _, err := c.handles.Lookup(effectHandle); err != nil {
		return err
	}
	fadeSamples := int(fadeSeconds * float64(engine.SampleRate))
	c.cmdQueue.Push(func() {
		c.router.AddRoute(uint64(sourceHandle), uint64(effectHandle), gain, fadeSamples)
	})
	return nil
}

// RemoveRoute begins fading out the route from sourceHandle to
// effectHandle over fadeSeconds.
func (c *Context) RemoveRoute(sourceHandle, effectHandle handle.Handle, fadeSeconds float64) error {
	fadeSamples := int(fadeSeconds * float64(engine.SampleRate))
	c.cmdQueue.Push(func() {
		if err := c.router.RemoveRoute(uint64(sourceHandle), uint64(effectHandle), fadeSamples); err != nil {
			c.log.Debug("remove route: no such route", "error", err)
		}
	})
	return nil
}

// --- Properties -----------------------------------------------------------

// SetSourceProperty queues an external write to a Source property (spec
// §4.2); it takes effect at the next tick boundary.
func (c *Context) SetSourceProperty(h handle.Handle, tag property.Tag, v property.Value) error {
	se, err := c.lookupSource(h)
	if err != nil {
		return err
	}
	return se.props.Set(tag, v)
}

// GetSourceProperty returns the most recently published value of a
// Source property.
func (c *Context) GetSourceProperty(h handle.Handle, tag property.Tag) (property.Value, error) {
	se, err := c.lookupSource(h)
	if err != nil {
		return property.Value{}, err
	}
	return se.props.Get(tag)
}

func (c *Context) lookupSource(h handle.Handle) (*sourceEntry, error) {
	obj, err := c.handles.Lookup(h)
	if err != nil {
		return nil, err
	}
	se, ok := obj.(*sourceEntry)
	if !ok {
		return nil, errors.Newf("handle %d is not a Source", h).
			Component("ctx").Category(errors.CategoryNotSupported).Build()
	}
	return se, nil
}

// SetListenerPosition queues an external write to the listener's world
// position, consumed by every Source3D starting the next tick.
func (c *Context) SetListenerPosition(x, y, z float64) error {
	return c.listenerProps.Set(PropListenerPosition, property.Value{Kind: property.KindDouble3, Vec3: [3]float64{x, y, z}})
}

// HandleCount reports the number of live handles. Intended for metrics
// and tests.
func (c *Context) HandleCount() int {
	return c.handles.Len()
}

// ID returns this Context's correlation ID, included on every log line it
// emits.
func (c *Context) ID() string {
	return c.id
}
