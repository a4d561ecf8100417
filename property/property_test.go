package property

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *Schema {
	return NewSchema(
		Descriptor{Tag: "gain", Kind: KindDouble, Default: Value{Kind: KindDouble, Double: 1.0}, Validate: func(v Value) error {
			if v.Double < 0 {
				return assertErr("gain must be >= 0")
			}
			return nil
		}},
		Descriptor{Tag: "position", Kind: KindDouble3, Default: Value{Kind: KindDouble3}},
	)
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
func assertErr(s string) error    { return simpleErr(s) }

func TestDefaultsVisibleBeforeAnyWrite(t *testing.T) {
	s := NewSet(testSchema())
	v, err := s.Get("gain")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v.Double)
}

func TestSetTakesEffectOnlyAfterDrainAndPublish(t *testing.T) {
	s := NewSet(testSchema())
	require.NoError(t, s.Set("gain", Value{Kind: KindDouble, Double: 0.5}))

	v, _ := s.Get("gain")
	assert.Equal(t, 1.0, v.Double, "queued write must not be visible before the next tick boundary")

	s.DrainTick()
	s.Publish()

	v, _ = s.Get("gain")
	assert.Equal(t, 0.5, v.Double)
}

func TestSetRejectsWrongKind(t *testing.T) {
	s := NewSet(testSchema())
	err := s.Set("gain", Value{Kind: KindInt, Int: 1})
	assert.Error(t, err)
}

func TestSetRejectsUnknownTag(t *testing.T) {
	s := NewSet(testSchema())
	err := s.Set("nonexistent", Value{Kind: KindDouble})
	assert.Error(t, err)
}

func TestValidatorRejectsInvalidValueSynchronously(t *testing.T) {
	s := NewSet(testSchema())
	err := s.Set("gain", Value{Kind: KindDouble, Double: -1})
	assert.Error(t, err)
}

func TestLastWriteBeforeTickBoundaryWins(t *testing.T) {
	s := NewSet(testSchema())
	require.NoError(t, s.Set("gain", Value{Kind: KindDouble, Double: 0.5}))
	require.NoError(t, s.Set("gain", Value{Kind: KindDouble, Double: 0.75}))

	s.DrainTick()
	s.Publish()

	v, _ := s.Get("gain")
	assert.Equal(t, 0.75, v.Double)
}

func TestAudioThreadOriginUpdateVisibleAfterPublish(t *testing.T) {
	s := NewSet(testSchema())
	s.SetCanonical("gain", Value{Kind: KindDouble, Double: 0.25})
	s.Publish()

	v, _ := s.Get("gain")
	assert.Equal(t, 0.25, v.Double)
}

func TestConcurrentExternalWritesDoNotRace(t *testing.T) {
	s := NewSet(testSchema())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Set("gain", Value{Kind: KindDouble, Double: float64(i)})
		}(i)
	}
	wg.Wait()

	s.DrainTick()
	s.Publish()
	_, err := s.Get("gain")
	require.NoError(t, err)
}
