// Package monitor holds the in-process event store for API call records,
// system snapshots, throttle events and the monitoring error log.
package monitor

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tinytelemetry/apiwatch/internal/model"
	"github.com/tinytelemetry/apiwatch/internal/ringbuf"
)

// LogTimeFormat is the timestamp layout used for error log entries.
const LogTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config holds store capacities and throttle settings. Zero values take
// the model defaults.
type Config struct {
	MaxCalls          int
	MaxSnapshots      int
	MaxThrottleEvents int
	MaxErrors         int
	ThrottleWindow    time.Duration
	ThrottleLimit     int

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

func (c Config) withDefaults() Config {
	if c.MaxCalls <= 0 {
		c.MaxCalls = model.DefaultMaxCalls
	}
	if c.MaxSnapshots <= 0 {
		c.MaxSnapshots = model.DefaultMaxSnapshots
	}
	if c.MaxThrottleEvents <= 0 {
		c.MaxThrottleEvents = model.DefaultMaxThrottleEvents
	}
	if c.MaxErrors <= 0 {
		c.MaxErrors = model.DefaultMaxErrors
	}
	if c.ThrottleWindow <= 0 {
		c.ThrottleWindow = model.DefaultThrottleWindow
	}
	if c.ThrottleLimit <= 0 {
		c.ThrottleLimit = model.DefaultThrottleLimit
	}
	if c.MaxCalls < c.ThrottleLimit {
		log.Warn().
			Int("max_calls", c.MaxCalls).
			Int("throttle_limit", c.ThrottleLimit).
			Msg("monitor: max-calls is below throttle-limit; throttle events will never fire")
	} else if c.MaxCalls < BlockedThreshold(c.ThrottleLimit) {
		log.Warn().
			Int("max_calls", c.MaxCalls).
			Int("blocked_threshold", BlockedThreshold(c.ThrottleLimit)).
			Msg("monitor: max-calls is below the blocked threshold; blocked events will never fire")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	return c
}

// CallResult carries the fields merged into a call when it settles.
// Nil pointers and an empty Error leave the stored value untouched.
type CallResult struct {
	Status   *int
	Duration *time.Duration
	Error    string
}

type logEntry struct {
	at   time.Time
	line string
}

// Store is the single source of truth for monitoring data. It is safe for
// concurrent use. Recording paths never fail: unknown ids are ignored and
// capacity overflow evicts the oldest entries.
type Store struct {
	cfg Config

	mu                 sync.RWMutex
	calls              *ringbuf.Ring[model.APICall]
	snapshots          *ringbuf.Ring[model.SystemSnapshot]
	throttles          *ringbuf.Ring[model.ThrottleEvent]
	errors             *ringbuf.Ring[logEntry]
	recording          bool
	recordingStartedAt time.Time
	session            model.Session

	subMu     sync.Mutex
	subs      []subscriber
	nextSubID int
}

// NewStore creates an empty store with a fresh session.
func NewStore(cfg Config) *Store {
	cfg = cfg.withDefaults()
	now := cfg.Now()
	return &Store{
		cfg:                cfg,
		calls:              ringbuf.New[model.APICall](cfg.MaxCalls),
		snapshots:          ringbuf.New[model.SystemSnapshot](cfg.MaxSnapshots),
		throttles:          ringbuf.New[model.ThrottleEvent](cfg.MaxThrottleEvents),
		errors:             ringbuf.New[logEntry](cfg.MaxErrors),
		recordingStartedAt: now,
		session:            model.Session{ID: cfg.NewID(), StartedAt: now},
	}
}

// Config returns the effective configuration.
func (s *Store) Config() Config { return s.cfg }

// RecordCallStart appends a new unsettled call and returns its id. It also
// runs throttle detection against the call's URL.
func (s *Store) RecordCallStart(url, method string, origin model.Origin) string {
	now := s.cfg.Now()
	call := model.APICall{
		ID:        s.cfg.NewID(),
		Timestamp: now,
		URL:       url,
		Method:    method,
		Origin:    origin,
	}

	s.mu.Lock()
	s.calls.Push(call)
	events := []Event{{Kind: EventCallStart, At: now, Call: &call}}
	if te, ok := s.checkThrottleLocked(url, now); ok {
		s.throttles.Push(te)
		msg := throttleMessage(method, te, s.cfg.ThrottleLimit)
		s.appendErrorLocked(now, msg)
		events = append(events,
			Event{Kind: EventThrottle, At: now, Throttle: &te},
			Event{Kind: EventError, At: now, Message: msg},
		)
	}
	s.mu.Unlock()

	s.notify(events...)
	return call.ID
}

// checkThrottleLocked counts same-URL calls inside the trailing window,
// including the one just appended, and reports a throttle event only at the
// call that crosses a threshold.
func (s *Store) checkThrottleLocked(url string, now time.Time) (model.ThrottleEvent, bool) {
	limit := s.cfg.ThrottleLimit
	cutoff := now.Add(-s.cfg.ThrottleWindow)

	hits := 0
	s.calls.Each(func(c *model.APICall) bool {
		if c.URL == url && !c.Timestamp.Before(cutoff) {
			hits++
		}
		return true
	})

	var action model.ThrottleAction
	switch hits {
	case BlockedThreshold(limit):
		action = model.ThrottleBlocked
	case limit:
		action = model.ThrottleThrottled
	default:
		return model.ThrottleEvent{}, false
	}

	return model.ThrottleEvent{
		Timestamp: now,
		Endpoint:  url,
		Hits:      hits,
		Window:    s.cfg.ThrottleWindow,
		Action:    action,
	}, true
}

// BlockedThreshold returns the hit count at which an endpoint is
// classified as blocked for the given throttle limit.
func BlockedThreshold(limit int) int {
	return int(math.Ceil(float64(limit) * model.BlockedFactor))
}

func throttleMessage(method string, te model.ThrottleEvent, limit int) string {
	marker := "⚠️"
	if te.Action == model.ThrottleBlocked {
		marker = "🚨"
	}
	return fmt.Sprintf("%s Rate limit %s: %s %s hit %d times in %s (limit %d)",
		marker, te.Action, method, te.Endpoint, te.Hits, te.Window, limit)
}

// RecordCallEnd merges the result into the call with the given id. Unknown
// ids are ignored; the store may have been cleared while the call was in
// flight.
func (s *Store) RecordCallEnd(id string, res CallResult) {
	var updated model.APICall
	found := false

	s.mu.Lock()
	s.calls.Reverse(func(c *model.APICall) bool {
		if c.ID != id {
			return true
		}
		if res.Status != nil {
			status := *res.Status
			c.Status = &status
		}
		if res.Duration != nil {
			d := *res.Duration
			if d < 0 {
				d = 0
			}
			c.Duration = &d
		}
		if res.Error != "" {
			c.Error = res.Error
		}
		updated = *c
		found = true
		return false
	})
	s.mu.Unlock()

	if found {
		s.notify(Event{Kind: EventCallEnd, At: s.cfg.Now(), Call: &updated})
	}
}

// RecordError appends a timestamp-prefixed message to the error log.
func (s *Store) RecordError(message string) {
	now := s.cfg.Now()
	s.mu.Lock()
	s.appendErrorLocked(now, message)
	s.mu.Unlock()
	s.notify(Event{Kind: EventError, At: now, Message: message})
}

func (s *Store) appendErrorLocked(at time.Time, message string) {
	s.errors.Push(logEntry{at: at, line: FormatLogLine(at, message)})
}

// FormatLogLine renders an error log entry.
func FormatLogLine(at time.Time, message string) string {
	return "[" + at.UTC().Format(LogTimeFormat) + "] " + message
}

// RecordSnapshot appends a sampler snapshot. A zero timestamp is stamped
// with the current time.
func (s *Store) RecordSnapshot(snap model.SystemSnapshot) {
	if snap.Timestamp.IsZero() {
		snap.Timestamp = s.cfg.Now()
	}
	s.mu.Lock()
	s.snapshots.Push(snap)
	s.mu.Unlock()
	s.notify(Event{Kind: EventSnapshot, At: snap.Timestamp, Snapshot: &snap})
}

// StartRecording turns recording on and stamps a new recording start time.
func (s *Store) StartRecording() {
	now := s.cfg.Now()
	s.mu.Lock()
	s.recording = true
	s.recordingStartedAt = now
	s.mu.Unlock()
	s.notify(Event{Kind: EventRecording, At: now, Recording: true})
}

// StopRecording turns recording off. Collected data is kept.
func (s *Store) StopRecording() {
	now := s.cfg.Now()
	s.mu.Lock()
	s.recording = false
	s.mu.Unlock()
	s.notify(Event{Kind: EventRecording, At: now, Recording: false})
}

// IsRecording reports whether recording is on.
func (s *Store) IsRecording() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recording
}

// RecordingStartedAt returns when recording was last started or reset.
func (s *Store) RecordingStartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recordingStartedAt
}

// ClearAll empties every collection and resets the recording start time.
// The session id is unchanged.
func (s *Store) ClearAll() {
	now := s.cfg.Now()
	s.mu.Lock()
	s.clearLocked(now)
	recording := s.recording
	s.mu.Unlock()
	s.notify(Event{Kind: EventCleared, At: now, Recording: recording})
}

func (s *Store) clearLocked(now time.Time) {
	s.calls.Clear()
	s.snapshots.Clear()
	s.throttles.Clear()
	s.errors.Clear()
	s.recordingStartedAt = now
}

// StartNewSession clears all data and starts a session with a fresh id.
func (s *Store) StartNewSession() model.Session {
	now := s.cfg.Now()
	session := model.Session{ID: s.cfg.NewID(), StartedAt: now}

	s.mu.Lock()
	s.clearLocked(now)
	s.session = session
	recording := s.recording
	s.mu.Unlock()

	s.notify(Event{Kind: EventSession, At: now, Session: &session, Recording: recording})
	return session
}

// Session returns the current session.
func (s *Store) Session() model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Calls returns a copy of the stored calls, oldest first.
func (s *Store) Calls() []model.APICall {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls.Items()
}

// Call returns the call with the given id.
func (s *Store) Call(id string) (model.APICall, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out model.APICall
	found := false
	s.calls.Reverse(func(c *model.APICall) bool {
		if c.ID == id {
			out, found = *c, true
			return false
		}
		return true
	})
	return out, found
}

// Snapshots returns a copy of the stored snapshots, oldest first.
func (s *Store) Snapshots() []model.SystemSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots.Items()
}

// ThrottleEvents returns a copy of the throttle events, oldest first.
func (s *Store) ThrottleEvents() []model.ThrottleEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.throttles.Items()
}

// Errors returns the error log lines, oldest first.
func (s *Store) Errors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, s.errors.Len())
	s.errors.Each(func(e *logEntry) bool {
		out = append(out, e.line)
		return true
	})
	return out
}

// WindowCounts returns the number of calls started at or after since and
// how many of those carry an error.
func (s *Store) WindowCounts(since time.Time) (calls, errors int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.calls.Each(func(c *model.APICall) bool {
		if !c.Timestamp.Before(since) {
			calls++
			if c.Error != "" {
				errors++
			}
		}
		return true
	})
	return calls, errors
}
