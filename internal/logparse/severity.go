// Package logparse infers severity levels from free-form log text.
package logparse

import (
	"regexp"
	"strings"
)

// Level is a log viewer severity.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
)

// Levels lists every level from most to least severe.
var Levels = []Level{LevelError, LevelWarn, LevelInfo, LevelDebug}

// SeverityRegex matches common severity keywords in log text.
var SeverityRegex = regexp.MustCompile(`(?i)\b(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL|CRITICAL|FAILED|FAILURE)\b`)

// Emoji markers checked before keywords. Order matters: the first marker
// found wins, and error markers are checked first.
var emojiMarkers = []struct {
	marker string
	level  Level
}{
	{"❌", LevelError},
	{"🚨", LevelError},
	{"💥", LevelError},
	{"⚠️", LevelWarn},
	{"⚠", LevelWarn},
	{"🔍", LevelDebug},
	{"🐛", LevelDebug},
	{"✅", LevelInfo},
	{"ℹ️", LevelInfo},
}

// NormalizeSeverity converts the many spellings of a level into one of the
// four viewer levels. Unknown input is info.
func NormalizeSeverity(severity string) Level {
	normalized := strings.ToUpper(strings.TrimSpace(severity))

	switch normalized {
	case "TRACE", "TRAC", "TRC", "DEBUG", "DEBU", "DBG", "DEB":
		return LevelDebug
	case "INFO", "INFORMATION", "INF":
		return LevelInfo
	case "WARN", "WARNING", "WRNG", "WRN":
		return LevelWarn
	case "ERROR", "ERR", "ERRO", "FATAL", "FATL", "FTL", "CRITICAL", "CRIT", "CRT", "PANIC", "PNC":
		return LevelError
	}
	if len(normalized) >= 4 {
		switch normalized[:4] {
		case "INFO":
			return LevelInfo
		case "WARN":
			return LevelWarn
		case "ERRO", "FATA", "CRIT":
			return LevelError
		case "DEBU", "TRAC":
			return LevelDebug
		}
	}
	return LevelInfo
}

// ParseLevel is like NormalizeSeverity but reports whether the input named
// a known level.
func ParseLevel(s string) (Level, bool) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelError, LevelWarn, LevelInfo, LevelDebug:
		return l, true
	}
	return LevelInfo, false
}

// ExtractSeverityFromText infers a level from emoji markers, then from the
// first severity keyword in the text.
func ExtractSeverityFromText(message string) Level {
	for _, m := range emojiMarkers {
		if strings.Contains(message, m.marker) {
			return m.level
		}
	}
	matches := SeverityRegex.FindStringSubmatch(message)
	if len(matches) > 1 {
		switch strings.ToUpper(matches[1]) {
		case "FAILED", "FAILURE":
			return LevelError
		default:
			return NormalizeSeverity(matches[1])
		}
	}
	return LevelInfo
}
