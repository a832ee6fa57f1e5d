package sampler

import (
	"fmt"
	"time"

	"github.com/tinytelemetry/apiwatch/internal/model"
)

// Transition is a health state change produced by one probe outcome.
type Transition struct {
	From model.Health
	To   model.Health
}

// Changed reports whether the state moved.
func (t Transition) Changed() bool { return t.From != t.To }

func (t Transition) String() string {
	return fmt.Sprintf("Server health changed: %s → %s", t.From, t.To)
}

// HealthTracker is the server health state machine driven by probe
// outcomes. It is not safe for concurrent use.
type HealthTracker struct {
	state     model.Health
	failures  int
	threshold int
	slow      time.Duration
}

// NewHealthTracker starts in the healthy state. threshold is the number of
// consecutive failures that mark the server down; slow is the latency above
// which a successful probe still counts as degraded.
func NewHealthTracker(threshold int, slow time.Duration) *HealthTracker {
	if threshold < 1 {
		threshold = model.DefaultFailureThreshold
	}
	if slow <= 0 {
		slow = model.DefaultSlowThreshold
	}
	return &HealthTracker{
		state:     model.HealthHealthy,
		threshold: threshold,
		slow:      slow,
	}
}

// State returns the current state.
func (h *HealthTracker) State() model.Health { return h.state }

// Failures returns the consecutive failure count.
func (h *HealthTracker) Failures() int { return h.failures }

// Failure records a failed probe.
func (h *HealthTracker) Failure() Transition {
	from := h.state
	h.failures++
	if h.failures >= h.threshold {
		h.state = model.HealthDown
	} else {
		h.state = model.HealthDegraded
	}
	return Transition{From: from, To: h.state}
}

// Success records a successful probe with the observed latency. A success
// after failures reports recovering for this tick; the next fast success
// reports healthy.
func (h *HealthTracker) Success(latency time.Duration) Transition {
	from := h.state
	switch {
	case h.failures > 0:
		h.state = model.HealthRecovering
	case latency > h.slow:
		h.state = model.HealthDegraded
	default:
		h.state = model.HealthHealthy
	}
	h.failures = 0
	return Transition{From: from, To: h.state}
}

// SnapshotHealth maps the four-state probe health onto the three-state
// snapshot classification.
func SnapshotHealth(state model.Health) model.Health {
	switch state {
	case model.HealthDown:
		return model.HealthDown
	case model.HealthDegraded, model.HealthRecovering:
		return model.HealthDegraded
	default:
		return model.HealthHealthy
	}
}
