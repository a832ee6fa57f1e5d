// Package sampler periodically probes server reachability and samples
// memory and connectivity, writing snapshots to the monitoring store.
package sampler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tinytelemetry/apiwatch/internal/model"
	"github.com/tinytelemetry/apiwatch/internal/monitor"
)

// Store is the store contract the sampler needs.
type Store interface {
	RecordSnapshot(snap model.SystemSnapshot)
	RecordError(message string)
	WindowCounts(since time.Time) (calls, errors int)
	OnChange(fn func(monitor.Event)) (unsubscribe func())
}

// Config holds sampler settings. Zero values take the model defaults.
type Config struct {
	BaseURL           string
	Client            *http.Client
	Interval          time.Duration
	ProbeTimeout      time.Duration
	SlowThreshold     time.Duration
	FailureThreshold  int
	MemoryWarnPercent float64
}

// Sampler runs health ticks on a fixed interval while started.
type Sampler struct {
	cfg    Config
	store  Store
	prober *Prober
	now    func() time.Time

	tickMu   sync.Mutex
	health   *HealthTracker
	lastTick time.Time
	memHigh  bool

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	trigger chan struct{}
	wg      sync.WaitGroup
}

// New creates a stopped sampler.
func New(store Store, cfg Config) *Sampler {
	if cfg.Interval <= 0 {
		cfg.Interval = model.DefaultSampleInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = model.DefaultProbeTimeout
	}
	if cfg.MemoryWarnPercent <= 0 {
		cfg.MemoryWarnPercent = model.DefaultMemoryWarnPercent
	}
	return &Sampler{
		cfg:     cfg,
		store:   store,
		prober:  NewProber(cfg.Client, cfg.BaseURL, cfg.ProbeTimeout),
		now:     time.Now,
		health:  NewHealthTracker(cfg.FailureThreshold, cfg.SlowThreshold),
		trigger: make(chan struct{}, 1),
	}
}

// Bind starts and stops the sampler whenever the store's recording flag
// changes. The returned func detaches it.
func (s *Sampler) Bind() (unbind func()) {
	return s.store.OnChange(func(ev monitor.Event) {
		if ev.Kind != monitor.EventRecording {
			return
		}
		if ev.Recording {
			s.Start()
		} else {
			s.Stop()
		}
	})
}

// Health returns the current four-state server health.
func (s *Sampler) Health() model.Health {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	return s.health.State()
}

// Running reports whether the periodic loop is active.
func (s *Sampler) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running
}

// Start launches the loop with an immediate first tick. Starting a running
// sampler is a no-op.
func (s *Sampler) Start() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	s.wg.Add(1)
	go s.loop(ctx, s.done)
	log.Info().Dur("interval", s.cfg.Interval).Msg("sampler: started")
}

// Stop cancels any in-flight probe and waits for the loop to exit.
// Collected snapshots are kept.
func (s *Sampler) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	close(s.done)
	s.wg.Wait()
	s.running = false
	log.Info().Msg("sampler: stopped")
}

// Trigger requests an immediate out-of-band tick. It does nothing while the
// sampler is stopped, and coalesces with a tick that is already pending.
func (s *Sampler) Trigger() {
	if !s.Running() {
		return
	}
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Sampler) loop(ctx context.Context, done <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ticker.C:
			s.Tick(ctx)
		case <-s.trigger:
			s.Tick(ctx)
		case <-done:
			return
		}
	}
}

// Tick runs one probe and resource sample and records a snapshot. Failures
// are logged to the store and never returned. A tick whose context is
// cancelled during the health check records nothing and leaves the health
// state as is; ok is false in that case.
func (s *Sampler) Tick(ctx context.Context) (snap model.SystemSnapshot, ok bool) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := s.now()
	since := s.lastTick
	if since.IsZero() {
		since = now.Add(-s.cfg.Interval)
	}

	probe := s.prober.Probe(ctx)
	if ctx.Err() != nil {
		log.Debug().Err(ctx.Err()).Msg("sampler: tick aborted")
		return model.SystemSnapshot{}, false
	}
	var tr Transition
	if probe.OK() {
		tr = s.health.Success(probe.Latency)
	} else {
		tr = s.health.Failure()
		s.store.RecordError(fmt.Sprintf("Health check failed (%d consecutive): %v", s.health.Failures(), probe.Err))
	}
	if tr.Changed() {
		s.store.RecordError(tr.String())
		log.Info().Str("from", string(tr.From)).Str("to", string(tr.To)).Msg("sampler: health changed")
	}

	mem := sampleMemory(ctx)
	if mem.HostKnown {
		high := mem.UsedPercent >= s.cfg.MemoryWarnPercent
		if high && !s.memHigh {
			s.store.RecordError(fmt.Sprintf("⚠️ High memory usage: %.1f%% of available memory", mem.UsedPercent))
		}
		s.memHigh = high
	}

	online, err := Online(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("sampler: connectivity unavailable")
		online = probe.OK()
	}

	calls, errs := s.store.WindowCounts(since)
	snap = model.SystemSnapshot{
		Timestamp:     now,
		MemoryUsedMB:  mem.HeapMB,
		MemoryPercent: mem.UsedPercent,
		RequestCount:  calls,
		ErrorCount:    errs,
		Health:        SnapshotHealth(s.health.State()),
		ProbeHealth:   s.health.State(),
		Online:        online,
		RTT:           probe.Latency,
	}
	s.store.RecordSnapshot(snap)
	s.lastTick = now
	return snap, true
}
