package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCollector builds a Collector against a private registry,
// bypassing the package-level sync.Once singleton so each test gets an
// isolated instance.
func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	reg := prometheus.NewRegistry()
	c := &Collector{
		enabled: true,
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "test", Name: "ticks_total",
		}),
		underflowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "test", Name: "underflows_total",
		}),
		activeRoutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "test", Name: "active_routes",
		}),
		fadingRoutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "test", Name: "fading_routes",
		}),
		pannerVoiceCacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "test", Name: "cache_hit",
		}),
		pannerVoiceCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "test", Name: "cache_miss",
		}),
		commandQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "test", Name: "cmd_depth",
		}),
		deletionQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "test", Name: "del_depth",
		}),
	}
	reg.MustRegister(
		c.ticksTotal, c.underflowsTotal, c.activeRoutes, c.fadingRoutes,
		c.pannerVoiceCacheHit, c.pannerVoiceCacheMiss, c.commandQueueDepth, c.deletionQueueDepth,
	)
	return c
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestRecordTickIncrementsCounter(t *testing.T) {
	c := newTestCollector(t)
	c.RecordTick()
	c.RecordTick()
	assert.Equal(t, 2.0, counterValue(t, c.ticksTotal))
}

func TestRecordUnderflowAddsFrames(t *testing.T) {
	c := newTestCollector(t)
	c.RecordUnderflow(64)
	c.RecordUnderflow(0)
	c.RecordUnderflow(-5)
	assert.Equal(t, 64.0, counterValue(t, c.underflowsTotal))
}

func TestRecordRouteCountsSetsGauges(t *testing.T) {
	c := newTestCollector(t)
	c.RecordRouteCounts(3, 1)
	assert.Equal(t, 3.0, gaugeValue(t, c.activeRoutes))
	assert.Equal(t, 1.0, gaugeValue(t, c.fadingRoutes))
}

func TestDisabledCollectorIsNoOp(t *testing.T) {
	c := &Collector{enabled: false}
	assert.NotPanics(t, func() {
		c.RecordTick()
		c.RecordUnderflow(100)
		c.RecordRouteCounts(1, 1)
		c.RecordPannerCacheHit()
		c.RecordPannerCacheMiss()
		c.RecordCommandQueueDepth(5)
		c.RecordDeletionQueueDepth(5)
	})
}

func TestGetReturnsDisabledWhenUninitialized(t *testing.T) {
	assert.False(t, Get().enabled)
}
