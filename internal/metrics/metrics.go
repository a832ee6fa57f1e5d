// Package metrics exposes monitoring store activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tinytelemetry/apiwatch/internal/model"
	"github.com/tinytelemetry/apiwatch/internal/monitor"
)

const namespace = "apiwatch"

var healthStates = []model.Health{
	model.HealthHealthy,
	model.HealthDegraded,
	model.HealthRecovering,
	model.HealthDown,
}

// Source is the store surface the collector listens to.
type Source interface {
	OnChange(fn func(monitor.Event)) (unsubscribe func())
}

// Collector translates store change events into metric updates.
type Collector struct {
	CallsTotal     *prometheus.CounterVec
	CallErrors     *prometheus.CounterVec
	CallDuration   *prometheus.HistogramVec
	ThrottleEvents *prometheus.CounterVec
	ErrorLogLines  prometheus.Counter
	Snapshots      prometheus.Counter
	MemoryUsedMB   prometheus.Gauge
	MemoryPercent  prometheus.Gauge
	ProbeRTT       prometheus.Gauge
	Online         prometheus.Gauge
	ServerHealth   *prometheus.GaugeVec
	Recording      prometheus.Gauge
	Sessions       prometheus.Counter
}

// NewCollector registers all collectors with reg. A nil reg uses the
// default registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Collector{
		CallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_calls_total",
			Help:      "Tracked API calls by origin and method.",
		}, []string{"origin", "method"}),
		CallErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_call_errors_total",
			Help:      "Tracked API calls that settled with an error, by origin.",
		}, []string{"origin"}),
		CallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_call_duration_seconds",
			Help:      "Tracked API call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"origin"}),
		ThrottleEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttle_events_total",
			Help:      "Throttle threshold crossings by action.",
		}, []string{"action"}),
		ErrorLogLines: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "error_log_entries_total",
			Help:      "Lines appended to the monitoring error log.",
		}),
		Snapshots: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "snapshots_total",
			Help:      "System snapshots recorded.",
		}),
		MemoryUsedMB: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "memory_used_mb",
			Help:      "Heap in use at the latest snapshot, in MB.",
		}),
		MemoryPercent: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "memory_used_percent",
			Help:      "Host memory in use at the latest snapshot.",
		}),
		ProbeRTT: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "probe_rtt_seconds",
			Help:      "Latency of the latest health probe.",
		}),
		Online: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "network_online",
			Help:      "1 when a non-loopback interface was up at the latest snapshot.",
		}),
		ServerHealth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "server_health",
			Help:      "1 for the current probe health state, 0 otherwise.",
		}, []string{"state"}),
		Recording: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recording",
			Help:      "1 while monitoring is recording.",
		}),
		Sessions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Monitoring sessions started.",
		}),
	}
}

// Attach subscribes the collector to src.
func (c *Collector) Attach(src Source) (detach func()) {
	return src.OnChange(c.Observe)
}

// Observe applies one store event.
func (c *Collector) Observe(ev monitor.Event) {
	switch ev.Kind {
	case monitor.EventCallStart:
		if ev.Call != nil {
			c.CallsTotal.WithLabelValues(string(ev.Call.Origin), ev.Call.Method).Inc()
		}
	case monitor.EventCallEnd:
		if ev.Call == nil {
			return
		}
		origin := string(ev.Call.Origin)
		if ev.Call.Duration != nil {
			c.CallDuration.WithLabelValues(origin).Observe(ev.Call.Duration.Seconds())
		}
		if ev.Call.Error != "" {
			c.CallErrors.WithLabelValues(origin).Inc()
		}
	case monitor.EventThrottle:
		if ev.Throttle != nil {
			c.ThrottleEvents.WithLabelValues(string(ev.Throttle.Action)).Inc()
		}
	case monitor.EventError:
		c.ErrorLogLines.Inc()
	case monitor.EventSnapshot:
		if ev.Snapshot != nil {
			c.observeSnapshot(*ev.Snapshot)
		}
	case monitor.EventRecording:
		c.Recording.Set(boolGauge(ev.Recording))
	case monitor.EventSession:
		c.Sessions.Inc()
	}
}

func (c *Collector) observeSnapshot(snap model.SystemSnapshot) {
	c.Snapshots.Inc()
	c.MemoryUsedMB.Set(snap.MemoryUsedMB)
	c.MemoryPercent.Set(snap.MemoryPercent)
	c.ProbeRTT.Set(snap.RTT.Seconds())
	c.Online.Set(boolGauge(snap.Online))

	current := snap.ProbeHealth
	if current == "" {
		current = snap.Health
	}
	for _, state := range healthStates {
		c.ServerHealth.WithLabelValues(string(state)).Set(boolGauge(state == current))
	}
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
