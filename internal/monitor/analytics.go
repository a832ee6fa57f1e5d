package monitor

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tinytelemetry/apiwatch/internal/model"
)

// perMinuteBuckets is the length of the Analytics.PerMinute series.
const perMinuteBuckets = 15

// Analytics computes derived statistics over the current data.
func (s *Store) Analytics() model.Analytics {
	now := s.cfg.Now()
	hourAgo := now.Add(-time.Hour)
	minuteAgo := now.Add(-time.Minute)
	seriesStart := now.Truncate(time.Minute).Add(-(perMinuteBuckets - 1) * time.Minute)

	out := model.Analytics{
		Health:    model.HealthHealthy,
		PerMinute: make([]model.MinuteBucket, perMinuteBuckets),
	}
	for i := range out.PerMinute {
		out.PerMinute[i].Minute = seriesStart.Add(time.Duration(i) * time.Minute)
	}

	counts := make(map[string]int)
	var order []string
	var totalDuration time.Duration
	durations := 0

	s.mu.RLock()
	s.calls.Each(func(c *model.APICall) bool {
		out.TotalCalls++
		if !c.Timestamp.Before(hourAgo) {
			out.CallsLastHour++
		}
		if !c.Timestamp.Before(minuteAgo) {
			out.CallsLastMinute++
		}
		if c.Duration != nil {
			totalDuration += *c.Duration
			durations++
		}
		if c.Error != "" {
			out.ErrorCount++
		}
		if !c.Timestamp.Before(seriesStart) {
			idx := int(c.Timestamp.Sub(seriesStart) / time.Minute)
			if idx >= 0 && idx < perMinuteBuckets {
				out.PerMinute[idx].Calls++
				if c.Error != "" {
					out.PerMinute[idx].Errors++
				}
			}
		}

		key := EndpointPath(c.URL)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
		return true
	})
	out.ThrottleEvents = s.throttles.Len()
	if last, ok := s.snapshots.Last(); ok && last.Health != "" {
		out.Health = last.Health
	}
	s.mu.RUnlock()

	if durations > 0 {
		out.AvgDuration = totalDuration / time.Duration(durations)
	}
	if out.TotalCalls > 0 {
		out.ErrorRate = float64(out.ErrorCount) / float64(out.TotalCalls)
	}
	out.TopEndpoints = topEndpoints(order, counts, model.TopEndpointLimit)
	return out
}

// topEndpoints sorts by count descending; the stable sort keeps first-seen
// order for ties.
func topEndpoints(order []string, counts map[string]int, limit int) []model.EndpointCount {
	top := make([]model.EndpointCount, 0, len(order))
	for _, key := range order {
		top = append(top, model.EndpointCount{Endpoint: key, Count: counts[key]})
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Count > top[j].Count
	})
	if len(top) > limit {
		top = top[:limit]
	}
	return top
}

// EndpointPath groups a URL by its path, dropping scheme, host, query and
// fragment. Unparseable input is cut at the first '?' or '#'.
func EndpointPath(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		if u.Path != "" {
			return u.Path
		}
		if u.Opaque != "" {
			return u.Opaque
		}
		return "/"
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}

// SessionStats reports counts for the current session.
func (s *Store) SessionStats() model.SessionStats {
	now := s.cfg.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	start := s.session.StartedAt
	stats := model.SessionStats{
		SessionID:  s.session.ID,
		StartedAt:  start,
		Elapsed:    now.Sub(start),
		Recording:  s.recording,
		RecordedAt: s.recordingStartedAt,
	}
	s.calls.Each(func(c *model.APICall) bool {
		if !c.Timestamp.Before(start) {
			stats.Calls++
		}
		return true
	})
	s.errors.Each(func(e *logEntry) bool {
		if !e.at.Before(start) {
			stats.Errors++
		}
		return true
	})
	return stats
}
