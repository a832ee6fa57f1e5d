package model

import (
	"encoding/json"
	"time"
)

// Origin classifies where an outbound call was headed.
type Origin string

const (
	OriginBackend  Origin = "first-party-backend"
	OriginInternal Origin = "internal"
	OriginExternal Origin = "external"
)

// Health is the coarse health classification stored on snapshots.
type Health string

const (
	HealthHealthy    Health = "healthy"
	HealthDegraded   Health = "degraded"
	HealthDown       Health = "down"
	HealthRecovering Health = "recovering"
)

// ThrottleAction classifies a throttle event.
type ThrottleAction string

const (
	ThrottleWarning   ThrottleAction = "warning"
	ThrottleThrottled ThrottleAction = "throttled"
	ThrottleBlocked   ThrottleAction = "blocked"
)

// APICall is one tracked outbound request. Status and Duration stay nil
// until the call settles.
type APICall struct {
	ID        string
	Timestamp time.Time
	URL       string
	Method    string
	Status    *int
	Duration  *time.Duration
	Error     string
	Origin    Origin
}

// Settled reports whether the call has been completed or failed.
func (c APICall) Settled() bool {
	return c.Status != nil || c.Duration != nil || c.Error != ""
}

type apiCallJSON struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	URL        string    `json:"url"`
	Method     string    `json:"method"`
	Status     *int      `json:"status,omitempty"`
	DurationMs *float64  `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
	Origin     Origin    `json:"origin"`
}

// MarshalJSON renders Duration as fractional milliseconds.
func (c APICall) MarshalJSON() ([]byte, error) {
	out := apiCallJSON{
		ID:        c.ID,
		Timestamp: c.Timestamp,
		URL:       c.URL,
		Method:    c.Method,
		Status:    c.Status,
		Error:     c.Error,
		Origin:    c.Origin,
	}
	if c.Duration != nil {
		ms := float64(*c.Duration) / float64(time.Millisecond)
		out.DurationMs = &ms
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *APICall) UnmarshalJSON(data []byte) error {
	var in apiCallJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = APICall{
		ID:        in.ID,
		Timestamp: in.Timestamp,
		URL:       in.URL,
		Method:    in.Method,
		Status:    in.Status,
		Error:     in.Error,
		Origin:    in.Origin,
	}
	if in.DurationMs != nil {
		d := time.Duration(*in.DurationMs * float64(time.Millisecond))
		c.Duration = &d
	}
	return nil
}

// SystemSnapshot is one sampler tick. Immutable after creation.
type SystemSnapshot struct {
	Timestamp     time.Time     `json:"timestamp"`
	MemoryUsedMB  float64       `json:"memory_used_mb"`
	MemoryPercent float64       `json:"memory_percent"`
	RequestCount  int           `json:"request_count"`
	ErrorCount    int           `json:"error_count"`
	Health        Health        `json:"health"`
	ProbeHealth   Health        `json:"probe_health"`
	Online        bool          `json:"online"`
	RTT           time.Duration `json:"rtt"`
}

// ThrottleEvent records an endpoint crossing the hit-rate threshold.
type ThrottleEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Endpoint  string         `json:"endpoint"`
	Hits      int            `json:"hits"`
	Window    time.Duration  `json:"window"`
	Action    ThrottleAction `json:"action"`
}

// Session is a logical recording window.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
}

// EndpointCount is a call count grouped by URL path.
type EndpointCount struct {
	Endpoint string `json:"endpoint"`
	Count    int    `json:"count"`
}

// MinuteBucket holds call and error counts for one minute.
type MinuteBucket struct {
	Minute time.Time `json:"minute"`
	Calls  int       `json:"calls"`
	Errors int       `json:"errors"`
}

// Analytics is derived read-only data over the store's current contents.
type Analytics struct {
	TotalCalls      int             `json:"total_calls"`
	CallsLastHour   int             `json:"calls_last_hour"`
	CallsLastMinute int             `json:"calls_last_minute"`
	AvgDuration     time.Duration   `json:"avg_duration"`
	ErrorCount      int             `json:"error_count"`
	ErrorRate       float64         `json:"error_rate"`
	ThrottleEvents  int             `json:"throttle_events"`
	TopEndpoints    []EndpointCount `json:"top_endpoints"`
	Health          Health          `json:"health"`
	PerMinute       []MinuteBucket  `json:"per_minute"`
}

// SessionStats summarizes the current session.
type SessionStats struct {
	SessionID  string        `json:"session_id"`
	StartedAt  time.Time     `json:"started_at"`
	Elapsed    time.Duration `json:"elapsed"`
	Calls      int           `json:"calls"`
	Errors     int           `json:"errors"`
	Recording  bool          `json:"recording"`
	RecordedAt time.Time     `json:"recording_started_at"`
}
