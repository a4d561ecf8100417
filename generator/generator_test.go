package generator

import (
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func makeMonoBuffer(samples []float32) *Buffer {
	b, err := NewBuffer([][]float32{samples}, 44100)
	if err != nil {
		panic(err)
	}
	return b
}

func TestBufferGeneratorPlaysNativeRate(t *testing.T) {
	samples := []float32{0, 1, 2, 3, 4, 5, 6, 7}
	g := NewBufferGenerator(makeMonoBuffer(samples))

	out := [][]float32{make([]float32, 8)}
	g.Tick(out)

	for i, v := range out[0] {
		assert.InDelta(t, float32(i), v, 1e-4)
	}
}

func TestBufferGeneratorFinishesWithoutLooping(t *testing.T) {
	samples := []float32{1, 1, 1}
	g := NewBufferGenerator(makeMonoBuffer(samples))

	out := [][]float32{make([]float32, 6)}
	g.Tick(out)

	assert.True(t, g.Finished())
	for i := 3; i < 6; i++ {
		assert.Equal(t, float32(0), out[0][i])
	}
}

func TestBufferGeneratorLoops(t *testing.T) {
	samples := []float32{1, 2, 3, 4}
	g := NewBufferGenerator(makeMonoBuffer(samples))
	g.SetLooping(true)

	out := [][]float32{make([]float32, 8)}
	g.Tick(out)

	assert.False(t, g.Finished())
}

func TestBufferGeneratorSeek(t *testing.T) {
	samples := []float32{0, 1, 2, 3, 4}
	g := NewBufferGenerator(makeMonoBuffer(samples))
	g.Seek(3)

	out := [][]float32{make([]float32, 2)}
	g.Tick(out)
	assert.InDelta(t, float32(3), out[0][0], 1e-4)
}

func TestNoiseGeneratorWhiteIsBoundedAndReproducible(t *testing.T) {
	g1 := NewNoiseGenerator(White, 42)
	g2 := NewNoiseGenerator(White, 42)

	out1 := [][]float32{make([]float32, 64)}
	out2 := [][]float32{make([]float32, 64)}
	g1.Tick(out1)
	g2.Tick(out2)

	assert.Equal(t, out1[0], out2[0], "same seed must produce identical output")
	for _, v := range out1[0] {
		assert.LessOrEqual(t, math.Abs(float64(v)), 1.0)
	}
}

func TestNoiseGeneratorPinkDiffersFromWhite(t *testing.T) {
	white := NewNoiseGenerator(White, 1)
	pink := NewNoiseGenerator(Pink, 1)

	outW := [][]float32{make([]float32, 256)}
	outP := [][]float32{make([]float32, 256)}
	white.Tick(outW)
	pink.Tick(outP)

	assert.NotEqual(t, outW[0], outP[0])
}

func TestFastSineBankProducesPeriodicSignal(t *testing.T) {
	bank := NewFastSineBank()
	bank.AddVoice(100, 44100, 1.0)

	out := [][]float32{make([]float32, 882)}
	bank.Tick(out)

	for i, v := range out[0] {
		assert.False(t, math.IsNaN(float64(v)), "sample %d NaN", i)
		assert.LessOrEqual(t, math.Abs(float64(v)), 1.01)
	}

	// 100 Hz at 44100 Hz repeats every 441 samples.
	for i := 0; i < 441; i++ {
		assert.InDelta(t, out[0][i], out[0][i+441], 1e-3, "sample %d", i)
	}
}

func TestFastSineBankSumsMultipleVoices(t *testing.T) {
	bank := NewFastSineBank()
	bank.AddVoice(100, 44100, 0.5)
	bank.AddVoice(200, 44100, 0.5)

	out := [][]float32{make([]float32, 64)}
	bank.Tick(out)

	single := NewFastSineBank()
	single.AddVoice(100, 44100, 0.5)
	outSingle := [][]float32{make([]float32, 64)}
	single.Tick(outSingle)

	assert.NotEqual(t, out[0], outSingle[0])
}

type fakeStream struct {
	samples  [][]float32
	pos      int
	channels int
}

func (s *fakeStream) Read(out [][]float32) (int, error) {
	remaining := len(s.samples[0]) - s.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	n := len(out[0])
	if n > remaining {
		n = remaining
	}
	for c := 0; c < s.channels; c++ {
		copy(out[c][:n], s.samples[c][s.pos:s.pos+n])
	}
	s.pos += n
	if n < len(out[0]) {
		return n, io.EOF
	}
	return n, nil
}

func (s *fakeStream) Seek(frame int64) error { s.pos = int(frame); return nil }
func (s *fakeStream) SampleRate() int        { return 44100 }
func (s *fakeStream) Channels() int          { return s.channels }
func (s *fakeStream) Length() int64          { return int64(len(s.samples[0])) }
func (s *fakeStream) Close() error           { return nil }

func TestStreamingGeneratorReadsThroughRing(t *testing.T) {
	data := make([]float32, 4096)
	for i := range data {
		data[i] = float32(i % 7)
	}
	stream := &fakeStream{samples: [][]float32{data}, channels: 1}

	g := NewStreamingGenerator(stream, 8192)
	defer g.Close()

	out := [][]float32{make([]float32, 256)}
	require.Eventually(t, func() bool {
		g.Tick(out)
		for _, v := range out[0] {
			if v != 0 {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}

func TestStreamingGeneratorUnderflowsToSilence(t *testing.T) {
	stream := &fakeStream{samples: [][]float32{{}}, channels: 1}
	g := NewStreamingGenerator(stream, 256)
	defer g.Close()

	out := [][]float32{make([]float32, 64)}
	g.Tick(out)

	for _, v := range out[0] {
		assert.Equal(t, float32(0), v)
	}
	assert.Greater(t, g.Underflows(), uint64(0))
}
