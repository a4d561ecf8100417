// Package metrics exposes the engine's prometheus collectors: tick rate,
// generator underflow counts, route fade activity, panner voice
// occupancy, and the depth of the command and deferred-deletion queues.
//
// Grounded on the teacher's internal/audiocore.MetricsCollector: a
// lazily-initialized global collector (InitMetrics/GetMetrics,
// sync.Once-guarded, atomic.Pointer-published) with an enabled/disabled
// switch so a caller that never calls InitMetrics pays no cost beyond a
// single pointer load and a no-op return, per-
// _examples/tphakala-birdnet-go/internal/audiocore/metrics.go. The
// teacher wraps its own prometheus vectors behind an
// internal/observability/metrics.AudioCoreMetrics type; this package
// inlines that step and registers client_golang collectors directly
// since there is no equivalent AudioCoreMetrics wrapper in this module.
package metrics

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/synthizer-project/synthizer/internal/logging"
)

// Collector holds the engine's prometheus collectors. Every recording
// method is a no-op when the collector is disabled, so callers (the
// Context's tick on the audio thread calls them every block, and the
// HRTF cache counters from inside Pan) never need to branch on whether
// metrics are enabled.
type Collector struct {
	enabled bool

	ticksTotal          prometheus.Counter
	underflowsTotal     prometheus.Counter
	activeRoutes        prometheus.Gauge
	fadingRoutes        prometheus.Gauge
	pannerVoiceCacheHit prometheus.Counter
	pannerVoiceCacheMiss prometheus.Counter
	commandQueueDepth   prometheus.Gauge
	deletionQueueDepth  prometheus.Gauge
}

var (
	global     atomic.Pointer[Collector]
	globalOnce sync.Once
	log        *slog.Logger
)

// InitMetrics registers the engine's collectors against reg and
// publishes the resulting Collector as the global instance. Calling it
// more than once is a no-op (mirrors the teacher's sync.Once guard).
func InitMetrics(reg prometheus.Registerer) {
	globalOnce.Do(func() {
		log = logging.ForService("engine")
		if log == nil {
			log = slog.Default()
		}
		log = log.With("component", "metrics")

		if reg == nil {
			global.Store(&Collector{enabled: false})
			log.Debug("metrics collector disabled")
			return
		}

		c := &Collector{
			enabled: true,
			ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "synthizer",
				Name:      "ticks_total",
				Help:      "Number of audio blocks processed by the context scheduler.",
			}),
			underflowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "synthizer",
				Name:      "generator_underflows_total",
				Help:      "Number of frames emitted as silence due to streaming generator underflow.",
			}),
			activeRoutes: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "synthizer",
				Name:      "routes_active",
				Help:      "Number of routes currently steady or fading.",
			}),
			fadingRoutes: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "synthizer",
				Name:      "routes_fading",
				Help:      "Number of routes currently ramping gain (fading in or out).",
			}),
			pannerVoiceCacheHit: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "synthizer",
				Name:      "panner_hrtf_cache_hits_total",
				Help:      "HRTF impulse interpolation cache hits.",
			}),
			pannerVoiceCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "synthizer",
				Name:      "panner_hrtf_cache_misses_total",
				Help:      "HRTF impulse interpolation cache misses.",
			}),
			commandQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "synthizer",
				Name:      "command_queue_depth",
				Help:      "Approximate number of commands queued for the next tick.",
			}),
			deletionQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "synthizer",
				Name:      "deletion_queue_depth",
				Help:      "Number of objects queued for background destruction.",
			}),
		}

		reg.MustRegister(
			c.ticksTotal,
			c.underflowsTotal,
			c.activeRoutes,
			c.fadingRoutes,
			c.pannerVoiceCacheHit,
			c.pannerVoiceCacheMiss,
			c.commandQueueDepth,
			c.deletionQueueDepth,
		)

		global.Store(c)
		log.Info("metrics collector initialized")
	})
}

// Get returns the global Collector, or a disabled no-op instance if
// InitMetrics has not been called.
func Get() *Collector {
	c := global.Load()
	if c == nil {
		return &Collector{enabled: false}
	}
	return c
}

// RecordTick increments the tick counter.
func (c *Collector) RecordTick() {
	if !c.enabled {
		return
	}
	c.ticksTotal.Inc()
}

// RecordUnderflow adds frames to the underflow counter.
func (c *Collector) RecordUnderflow(frames int) {
	if !c.enabled || frames <= 0 {
		return
	}
	c.underflowsTotal.Add(float64(frames))
}

// RecordRouteCounts sets the active and fading route gauges.
func (c *Collector) RecordRouteCounts(active, fading int) {
	if !c.enabled {
		return
	}
	c.activeRoutes.Set(float64(active))
	c.fadingRoutes.Set(float64(fading))
}

// RecordPannerCacheHit increments the HRTF cache hit counter.
func (c *Collector) RecordPannerCacheHit() {
	if !c.enabled {
		return
	}
	c.pannerVoiceCacheHit.Inc()
}

// RecordPannerCacheMiss increments the HRTF cache miss counter.
func (c *Collector) RecordPannerCacheMiss() {
	if !c.enabled {
		return
	}
	c.pannerVoiceCacheMiss.Inc()
}

// RecordCommandQueueDepth sets the command queue depth gauge.
func (c *Collector) RecordCommandQueueDepth(depth int) {
	if !c.enabled {
		return
	}
	c.commandQueueDepth.Set(float64(depth))
}

// RecordDeletionQueueDepth sets the deletion queue depth gauge.
func (c *Collector) RecordDeletionQueueDepth(depth int) {
	if !c.enabled {
		return
	}
	c.deletionQueueDepth.Set(float64(depth))
}
