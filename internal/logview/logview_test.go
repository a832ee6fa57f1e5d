package logview

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinytelemetry/apiwatch/internal/logparse"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestParser() *Parser {
	return NewParser(func() time.Time { return fixedNow })
}

func TestParse(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name    string
		line    string
		ts      time.Time
		level   logparse.Level
		message string
	}{
		{
			name:    "store error line",
			line:    "[2025-06-01T11:59:00.500Z] API call failed: GET https://x.supabase.co/rest/v1/rooms - dial tcp: refused",
			ts:      time.Date(2025, 6, 1, 11, 59, 0, 500e6, time.UTC),
			level:   logparse.LevelError,
			message: "API call failed: GET https://x.supabase.co/rest/v1/rooms - dial tcp: refused",
		},
		{
			name:    "throttle warning",
			line:    "[2025-06-01T11:58:00.000Z] ⚠️ Rate limit throttled: GET /api/rooms hit 100 times in 1m0s (limit 100)",
			ts:      time.Date(2025, 6, 1, 11, 58, 0, 0, time.UTC),
			level:   logparse.LevelWarn,
			message: "⚠️ Rate limit throttled: GET /api/rooms hit 100 times in 1m0s (limit 100)",
		},
		{
			name:    "keyword level prefix is stripped",
			line:    "2025-06-01T10:00:00Z DEBUG: cache warm",
			ts:      time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
			level:   logparse.LevelDebug,
			message: "cache warm",
		},
		{
			name:    "malformed",
			line:    "garbage without a stamp",
			ts:      fixedNow,
			level:   logparse.LevelInfo,
			message: "garbage without a stamp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := p.Parse(tt.line)
			assert.True(t, tt.ts.Equal(e.Timestamp), "timestamp %v, want %v", e.Timestamp, tt.ts)
			assert.Equal(t, tt.level, e.Level)
			assert.Equal(t, tt.message, e.Message)
			assert.Equal(t, tt.line, e.Raw)
		})
	}
}

func TestCollectMergesByTime(t *testing.T) {
	p := newTestParser()
	local := []string{
		"[2025-06-01T11:00:02.000Z] ❌ second",
		"[2025-06-01T11:00:04.000Z] fourth",
	}
	remote := []string{
		"[2025-06-01T11:00:01.000Z] first",
		"",
		"[2025-06-01T11:00:03.000Z] third",
	}

	entries := p.Collect(local, remote)
	require.Len(t, entries, 4)
	var got []string
	for _, e := range entries {
		got = append(got, strings.TrimPrefix(e.Message, "❌ "))
	}
	assert.Equal(t, []string{"first", "second", "third", "fourth"}, got)
}

func TestFilter(t *testing.T) {
	p := newTestParser()
	entries := p.ParseAll([]string{
		"[2025-06-01T11:00:00.000Z] ❌ Booking API failed",
		"[2025-06-01T11:00:01.000Z] ⚠️ High memory usage",
		"[2025-06-01T11:00:02.000Z] ✅ Network connection restored",
		"[2025-06-01T11:00:03.000Z] 🔍 booking payload",
	})

	assert.Len(t, Filter(entries, Query{}), 4)
	assert.Len(t, Filter(entries, Query{Level: LevelAll}), 4)

	errs := Filter(entries, Query{Level: "error"})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "Booking API")

	booking := Filter(entries, Query{Search: "BOOKING"})
	assert.Len(t, booking, 2)

	both := Filter(entries, Query{Level: "debug", Search: "booking"})
	require.Len(t, both, 1)
	assert.Equal(t, logparse.LevelDebug, both[0].Level)

	assert.Empty(t, Filter(entries, Query{Level: "warn", Search: "network"}))

	counts := CountByLevel(entries)
	assert.Equal(t, 1, counts[logparse.LevelError])
	assert.Equal(t, 1, counts[logparse.LevelWarn])
	assert.Equal(t, 1, counts[logparse.LevelInfo])
	assert.Equal(t, 1, counts[logparse.LevelDebug])
}

func TestExport(t *testing.T) {
	entries := []Entry{
		{Timestamp: time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC), Level: logparse.LevelError, Message: "API call failed"},
		{Timestamp: time.Date(2025, 6, 1, 11, 0, 1, 0, time.UTC), Level: logparse.LevelWarn, Message: "⚠️ slow"},
	}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, entries))
	assert.Equal(t,
		"[2025-06-01T11:00:00.000Z] ERROR: API call failed\n"+
			"[2025-06-01T11:00:01.000Z] WARN: ⚠️ slow\n",
		buf.String())
}

func TestExportRoundTripsThroughParse(t *testing.T) {
	p := newTestParser()
	orig := p.Parse("[2025-06-01T11:00:00.000Z] ❌ Payment function failed")

	reparsed := p.Parse(FormatLine(orig))
	assert.True(t, orig.Timestamp.Equal(reparsed.Timestamp))
	assert.Equal(t, orig.Level, reparsed.Level)
	assert.Equal(t, orig.Message, reparsed.Message)
}

func TestExportFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", ExportFileName(fixedNow))
	entries := []Entry{{Timestamp: fixedNow, Level: logparse.LevelInfo, Message: "hello"}}

	require.NoError(t, ExportFile(path, entries))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[2025-06-01T12:00:00.000Z] INFO: hello\n", string(data))
	assert.Equal(t, "apiwatch-logs-20250601-120000.txt", filepath.Base(path))
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != LogsPath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("[2025-06-01T11:00:00.000Z] one\n\n[2025-06-01T11:00:01.000Z] two\n"))
	}))
	defer srv.Close()

	lines := NewFetcher(srv.Client(), srv.URL, time.Second).Fetch(context.Background())
	assert.Equal(t, []string{"[2025-06-01T11:00:00.000Z] one", "[2025-06-01T11:00:01.000Z] two"}, lines)
}

func TestFetchIsBestEffort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	assert.Nil(t, NewFetcher(srv.Client(), srv.URL, time.Second).Fetch(context.Background()))
	assert.Nil(t, NewFetcher(nil, "http://127.0.0.1:1", 200*time.Millisecond).Fetch(context.Background()))
	assert.Nil(t, NewFetcher(nil, "", 0).Fetch(context.Background()))

	var nilFetcher *Fetcher
	assert.Nil(t, nilFetcher.Fetch(context.Background()))
}
