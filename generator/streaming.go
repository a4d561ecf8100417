package generator

import (
	"io"
	"sync/atomic"

	"github.com/synthizer-project/synthizer/decoder"
	"github.com/synthizer-project/synthizer/ring"
)

// StreamingGenerator plays a decoder.Stream via a background decode
// goroutine that feeds an interleaved ring.AudioRing; Tick (the audio
// thread) only ever does a non-blocking read from the ring, so a slow
// decoder (disk I/O, network) never stalls the audio thread — it
// underflows into silence instead, counted via Underflows.
type StreamingGenerator struct {
	stream   decoder.Stream
	channels int
	ring     *ring.AudioRing
	stopCh   chan struct{}
	doneCh   chan struct{}

	underflows atomic.Uint64
	eof        atomic.Bool

	scratch []float32 // reused across Tick calls once sized to the engine's block size
}

// NewStreamingGenerator starts a decode goroutine pulling from stream
// into a ring sized for ringCapacityFrames frames and returns a
// generator reading from it.
func NewStreamingGenerator(stream decoder.Stream, ringCapacityFrames int) *StreamingGenerator {
	channels := stream.Channels()
	g := &StreamingGenerator{
		stream:   stream,
		channels: channels,
		ring:     ring.New(ringCapacityFrames * channels),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go g.decodeLoop()
	return g
}

func (g *StreamingGenerator) decodeLoop() {
	defer close(g.doneCh)

	const chunkFrames = 1024
	planar := make([][]float32, g.channels)
	for c := range planar {
		planar[c] = make([]float32, chunkFrames)
	}
	interleaved := make([]float32, chunkFrames*g.channels)

	for {
		select {
		case <-g.stopCh:
			return
		default:
		}

		n, err := g.stream.Read(planar)
		if n > 0 {
			for i := 0; i < n; i++ {
				for c := 0; c < g.channels; c++ {
					interleaved[i*g.channels+c] = planar[c][i]
				}
			}
			// Block (maxAvailable=false): the decode thread is allowed
			// to wait for the audio thread to consume, unlike Tick.
			g.ring.WriteSamples(interleaved[:n*g.channels], false)
		}
		if err == io.EOF {
			g.eof.Store(true)
			return
		}
		if err != nil {
			g.eof.Store(true)
			return
		}
	}
}

// NumChannels implements Generator.
func (g *StreamingGenerator) NumChannels() int { return g.channels }

// Underflows reports the cumulative number of frames this generator
// produced as silence because the ring ran dry. Intended for metrics.
func (g *StreamingGenerator) Underflows() uint64 { return g.underflows.Load() }

// Tick implements Generator. It never blocks: if fewer frames are
// available than requested, the shortfall is emitted as silence and
// counted in Underflows.
func (g *StreamingGenerator) Tick(out [][]float32) {
	n := len(out[0])
	need := n * g.channels
	if cap(g.scratch) < need {
		g.scratch = make([]float32, need)
	}
	interleaved := g.scratch[:need]
	got := g.ring.ReadSamples(interleaved, false)
	gotFrames := got / g.channels

	for i := 0; i < n; i++ {
		if i < gotFrames {
			for c := 0; c < g.channels; c++ {
				out[c][i] = interleaved[i*g.channels+c]
			}
		} else {
			for c := 0; c < g.channels; c++ {
				out[c][i] = 0
			}
		}
	}
	if gotFrames < n {
		g.underflows.Add(uint64(n - gotFrames))
	}
}

// Close stops the decode goroutine and closes the underlying stream.
// Must not be called from the audio thread (it blocks waiting for the
// goroutine to exit and closes I/O) — route it through the
// deferred-deletion queue.
func (g *StreamingGenerator) Close() error {
	close(g.stopCh)
	<-g.doneCh
	return g.stream.Close()
}

// Destroy implements handle.Destroyer.
func (g *StreamingGenerator) Destroy() {
	_ = g.Close()
}
