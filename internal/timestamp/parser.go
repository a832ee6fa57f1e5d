// Package timestamp finds and parses timestamps at the start of log lines.
package timestamp

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoRegex      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d{1,9})?(?:Z|[+-]\d{2}:?\d{2})?`)
	syslogRegex   = regexp.MustCompile(`^[A-Z][a-z]{2} [ \d]\d \d{2}:\d{2}:\d{2}`)
	timeOnlyRegex = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}(?:[.,]\d{1,9})?`)
	levelPrefix   = regexp.MustCompile(`(?i)^\[?(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL|CRITICAL)\]?:?\s+`)
)

var zonedLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z0700",
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Result is the outcome of ParseFromText.
type Result struct {
	Found     bool
	Timestamp time.Time
	// Remaining is the text after the timestamp, or the whole input when
	// no timestamp was found.
	Remaining string
}

// Parser extracts timestamps. Zone-less timestamps are read in Location;
// syslog and time-only stamps borrow the missing date parts from Now.
type Parser struct {
	Location *time.Location
	Now      func() time.Time
}

// NewParser returns a parser using local time.
func NewParser() *Parser {
	return &Parser{Location: time.Local, Now: time.Now}
}

// ParseFromText looks for a timestamp at the start of text, optionally
// wrapped in square brackets.
func (p *Parser) ParseFromText(text string) Result {
	trimmed := strings.TrimLeft(text, " \t")

	if strings.HasPrefix(trimmed, "[") {
		if end := strings.IndexByte(trimmed, ']'); end > 0 {
			if ts, ok := p.parseString(trimmed[1:end]); ok {
				return Result{Found: true, Timestamp: ts, Remaining: strings.TrimSpace(trimmed[end+1:])}
			}
		}
	}

	for _, re := range []*regexp.Regexp{isoRegex, syslogRegex, timeOnlyRegex} {
		loc := re.FindStringIndex(trimmed)
		if loc == nil {
			continue
		}
		rest := trimmed[loc[1]:]
		if rest != "" && rest[0] != ' ' && rest[0] != '\t' && rest[0] != ']' && rest[0] != ':' {
			continue
		}
		if ts, ok := p.parseString(trimmed[:loc[1]]); ok {
			rest = strings.TrimLeft(rest, "]: \t")
			return Result{Found: true, Timestamp: ts, Remaining: rest}
		}
	}
	return Result{Remaining: text}
}

// ParseTimestamp converts a string or numeric unix value to a time.
func (p *Parser) ParseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return parseUnixTimestamp(f), true
		}
		return p.parseString(s)
	case float64:
		return parseUnixTimestamp(t), true
	case int64:
		return parseUnixTimestamp(float64(t)), true
	case int:
		return parseUnixTimestamp(float64(t)), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return parseUnixTimestamp(f), true
	case time.Time:
		return t, !t.IsZero()
	}
	return time.Time{}, false
}

// ExtractLogMessage strips a leading timestamp and severity prefix.
func (p *Parser) ExtractLogMessage(text string) string {
	msg := p.ParseFromText(text).Remaining
	if loc := levelPrefix.FindStringIndex(msg); loc != nil {
		msg = msg[loc[1]:]
	}
	return strings.TrimSpace(msg)
}

func (p *Parser) parseString(s string) (time.Time, bool) {
	s = strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}

	switch {
	case isoRegex.MatchString(s):
		for _, layout := range zonedLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
		}
		for _, layout := range localLayouts {
			if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
				return ts, true
			}
		}
	case syslogRegex.MatchString(s):
		ts, err := time.ParseInLocation(time.Stamp, s, loc)
		if err == nil {
			return ts.AddDate(p.now().In(loc).Year(), 0, 0), true
		}
	case timeOnlyRegex.MatchString(s):
		ts, err := time.ParseInLocation("15:04:05", s, loc)
		if err == nil {
			y, m, d := p.now().In(loc).Date()
			return time.Date(y, m, d, ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), loc), true
		}
	}
	return time.Time{}, false
}

func (p *Parser) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// parseUnixTimestamp picks the unit from the magnitude: nanoseconds above
// 1e17, microseconds above 1e14, milliseconds above 1e11, else seconds.
func parseUnixTimestamp(v float64) time.Time {
	abs := math.Abs(v)
	switch {
	case abs > 1e17:
		return time.Unix(0, int64(v)).UTC()
	case abs > 1e14:
		return time.UnixMicro(int64(v)).UTC()
	case abs > 1e11:
		return time.UnixMilli(int64(v)).UTC()
	default:
		sec, frac := math.Modf(v)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
}
