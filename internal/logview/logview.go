// Package logview parses, filters and exports the monitoring error log.
package logview

import (
	"sort"
	"strings"
	"time"

	"github.com/tinytelemetry/apiwatch/internal/logparse"
	"github.com/tinytelemetry/apiwatch/internal/timestamp"
)

// ExportTimeFormat is the timestamp layout used in exported lines.
const ExportTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// LevelAll disables level filtering.
const LevelAll = "all"

// Entry is one parsed log record.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     logparse.Level `json:"level"`
	Message   string         `json:"message"`
	Raw       string         `json:"raw"`
}

// Parser turns raw log lines into entries.
type Parser struct {
	ts  *timestamp.Parser
	now func() time.Time
}

// NewParser creates a parser. Lines without a timestamp are stamped with
// now.
func NewParser(now func() time.Time) *Parser {
	if now == nil {
		now = time.Now
	}
	ts := timestamp.NewParser()
	ts.Now = now
	return &Parser{ts: ts, now: now}
}

// Parse never fails: a line that cannot be understood becomes an info
// entry stamped now with the raw text as its message.
func (p *Parser) Parse(line string) Entry {
	raw := strings.TrimRight(line, "\r\n")
	entry := Entry{Raw: raw, Level: logparse.LevelInfo}

	res := p.ts.ParseFromText(raw)
	if res.Found {
		entry.Timestamp = res.Timestamp
	} else {
		entry.Timestamp = p.now()
	}

	entry.Level = logparse.ExtractSeverityFromText(res.Remaining)
	entry.Message = p.ts.ExtractLogMessage(raw)
	if entry.Message == "" {
		entry.Message = raw
	}
	return entry
}

// ParseAll parses every non-blank line.
func (p *Parser) ParseAll(lines []string) []Entry {
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entries = append(entries, p.Parse(line))
	}
	return entries
}

// Collect merges local and remote lines into one time-ordered list. Equal
// timestamps keep local lines first.
func (p *Parser) Collect(local, remote []string) []Entry {
	entries := append(p.ParseAll(local), p.ParseAll(remote)...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries
}

// Query selects entries. Level is LevelAll, empty, or a single level.
type Query struct {
	Level  string
	Search string
}

// Filter returns the entries matching q in their original order.
func Filter(entries []Entry, q Query) []Entry {
	level := strings.ToLower(strings.TrimSpace(q.Level))
	search := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if level != "" && level != LevelAll && string(e.Level) != level {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Message), search) &&
			!strings.Contains(strings.ToLower(e.Raw), search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// CountByLevel tallies entries per level.
func CountByLevel(entries []Entry) map[logparse.Level]int {
	counts := make(map[logparse.Level]int, len(logparse.Levels))
	for _, e := range entries {
		counts[e.Level]++
	}
	return counts
}
