package tui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tinytelemetry/apiwatch/internal/logview"
	"github.com/tinytelemetry/apiwatch/internal/model"
)

type fakeSource struct {
	mu        sync.Mutex
	recording bool
	calls     []string
	errorLog  []string
	analytics model.Analytics
	failWith  error
}

func (f *fakeSource) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeSource) called(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeSource) Analytics() (model.Analytics, error) {
	f.record("Analytics")
	return f.analytics, f.failWith
}

func (f *fakeSource) SessionStats() (model.SessionStats, error) {
	f.record("SessionStats")
	return model.SessionStats{SessionID: "0123456789abcdef", Recording: f.recording, Elapsed: 90 * time.Second}, nil
}

func (f *fakeSource) RecentCalls(limit int) ([]model.APICall, error) {
	f.record("RecentCalls")
	status := 200
	d := 42 * time.Millisecond
	return []model.APICall{{ID: "1", URL: "http://localhost/api/rooms", Method: "GET", Status: &status, Duration: &d}}, nil
}

func (f *fakeSource) Snapshots() ([]model.SystemSnapshot, error) { return nil, nil }

func (f *fakeSource) ThrottleEvents() ([]model.ThrottleEvent, error) {
	f.record("ThrottleEvents")
	return []model.ThrottleEvent{{Endpoint: "/api/rooms", Hits: 150, Action: model.ThrottleBlocked}}, nil
}

func (f *fakeSource) ErrorLog() ([]string, error) {
	f.record("ErrorLog")
	return f.errorLog, f.failWith
}

func (f *fakeSource) IsRecording() (bool, error) { return f.recording, nil }

func (f *fakeSource) StartRecording() error {
	f.record("StartRecording")
	f.recording = true
	return nil
}

func (f *fakeSource) StopRecording() error {
	f.record("StopRecording")
	f.recording = false
	return nil
}

func (f *fakeSource) ClearAll() error {
	f.record("ClearAll")
	return nil
}

func (f *fakeSource) StartNewSession() (model.Session, error) {
	f.record("StartNewSession")
	return model.Session{ID: "next"}, nil
}

func (f *fakeSource) TriggerSample() error {
	f.record("TriggerSample")
	return nil
}

// drain runs cmd and feeds every resulting message back into the app,
// skipping ticks and quit so the loop terminates.
func drain(t *testing.T, app *App, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 100 {
			t.Fatal("command queue did not settle")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil, TickMsg, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			_, next := app.Update(msg)
			queue = append(queue, next)
		}
	}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestApp(src *fakeSource, exportDir string) (*App, *DashboardPage, *LogsPage) {
	dash := NewDashboardPage(src, time.Millisecond)
	logs := NewLogsPage(src, nil, exportDir)
	app := NewApp(dash, logs)
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return app, dash, logs
}

func TestDashboard_InitStartsRecordingAndLoads(t *testing.T) {
	t.Parallel()

	src := &fakeSource{analytics: model.Analytics{TotalCalls: 3, Health: model.HealthHealthy}}
	app, dash, _ := newTestApp(src, t.TempDir())

	drain(t, app, app.Init())

	if got := src.called("StartRecording"); got != 1 {
		t.Fatalf("StartRecording calls = %d, want 1", got)
	}
	if !dash.loaded {
		t.Fatal("dashboard did not load data")
	}
	view := app.View()
	for _, want := range []string{"HEALTHY", "REC", "01234567", "/api/rooms", "blocked"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestDashboard_Keys(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	app, _, _ := newTestApp(src, t.TempDir())
	drain(t, app, app.Init())

	for _, k := range []string{"r", "c", "n", "s"} {
		_, cmd := app.Update(keyMsg(k))
		drain(t, app, cmd)
	}

	for _, name := range []string{"StopRecording", "ClearAll", "StartNewSession", "TriggerSample"} {
		if got := src.called(name); got != 1 {
			t.Fatalf("%s calls = %d, want 1", name, got)
		}
	}
	if src.recording {
		t.Fatal("recording still on after toggle")
	}
}

func TestDashboard_FocusTriggersSample(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	app, _, _ := newTestApp(src, t.TempDir())
	drain(t, app, app.Init())

	_, cmd := app.Update(tea.FocusMsg{})
	drain(t, app, cmd)

	if got := src.called("TriggerSample"); got != 1 {
		t.Fatalf("TriggerSample calls = %d, want 1", got)
	}
}

func TestDashboard_ErrorShown(t *testing.T) {
	t.Parallel()

	src := &fakeSource{failWith: errors.New("socket closed")}
	app, _, _ := newTestApp(src, t.TempDir())
	drain(t, app, app.Init())

	if view := app.View(); !strings.Contains(view, "socket closed") {
		t.Fatalf("view missing error:\n%s", view)
	}
}

func TestApp_NavigatesBetweenPages(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	app, _, _ := newTestApp(src, t.TempDir())
	drain(t, app, app.Init())

	_, cmd := app.Update(keyMsg("l"))
	drain(t, app, cmd)
	if got := app.ActivePage(); got != PageLogs {
		t.Fatalf("active page = %q, want %q", got, PageLogs)
	}

	_, cmd = app.Update(keyMsg("esc"))
	drain(t, app, cmd)
	if got := app.ActivePage(); got != PageDashboard {
		t.Fatalf("active page = %q, want %q", got, PageDashboard)
	}
}

func TestLogs_FilterSearchAndExport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := &fakeSource{errorLog: []string{
		"[2026-03-01T10:00:00.000Z] API call failed: GET /api/rooms - timeout",
		"[2026-03-01T10:00:01.000Z] ⚠️ High memory usage: 91.0% of available memory",
		"[2026-03-01T10:00:02.000Z] Network connection restored",
	}}
	app, _, logs := newTestApp(src, dir)
	drain(t, app, app.Init())

	_, cmd := app.Update(keyMsg("l"))
	drain(t, app, cmd)
	if got := len(logs.Visible()); got != 3 {
		t.Fatalf("visible = %d, want 3", got)
	}

	// all -> error
	_, cmd = app.Update(keyMsg("f"))
	drain(t, app, cmd)
	if got := logs.Level(); got != "error" {
		t.Fatalf("level = %q, want error", got)
	}
	if got := len(logs.Visible()); got != 1 {
		t.Fatalf("visible after level filter = %d, want 1", got)
	}

	// back to all, then search
	for i := 0; i < len(levelCycle)-1; i++ {
		app.Update(keyMsg("f"))
	}
	if got := logs.Level(); got != logview.LevelAll {
		t.Fatalf("level = %q, want all", got)
	}
	app.Update(keyMsg("/"))
	for _, r := range "MEMORY" {
		app.Update(keyMsg(string(r)))
	}
	app.Update(keyMsg("enter"))
	if got := len(logs.Visible()); got != 1 {
		t.Fatalf("visible after search = %d, want 1", got)
	}

	_, cmd = app.Update(keyMsg("e"))
	drain(t, app, cmd)

	matches, err := filepath.Glob(filepath.Join(dir, "apiwatch-logs-*.txt"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("export files = %v (err %v), want one", matches, err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	want := "[2026-03-01T10:00:01.000Z] WARN: ⚠️ High memory usage: 91.0% of available memory\n"
	if string(data) != want {
		t.Fatalf("export = %q, want %q", data, want)
	}
}

func TestLogs_EscCancelsSearch(t *testing.T) {
	t.Parallel()

	src := &fakeSource{errorLog: []string{"[2026-03-01T10:00:00.000Z] one", "[2026-03-01T10:00:01.000Z] two"}}
	app, _, logs := newTestApp(src, t.TempDir())
	drain(t, app, app.Init())
	_, cmd := app.Update(keyMsg("l"))
	drain(t, app, cmd)

	app.Update(keyMsg("/"))
	app.Update(keyMsg("x"))
	app.Update(keyMsg("esc"))

	if got := app.ActivePage(); got != PageLogs {
		t.Fatalf("esc while searching left the page: %q", got)
	}
	if got := len(logs.Visible()); got != 2 {
		t.Fatalf("visible = %d, want 2 after cancel", got)
	}
}

func TestLogs_PatternsFollowFilter(t *testing.T) {
	t.Parallel()

	src := &fakeSource{errorLog: []string{
		"[2026-03-01T10:00:00.000Z] API call failed: GET /api/rooms/1 - timeout",
		"[2026-03-01T10:00:01.000Z] API call failed: GET /api/rooms/2 - timeout",
		"[2026-03-01T10:00:02.000Z] API call failed: GET /api/rooms/3 - timeout",
		"[2026-03-01T10:00:03.000Z] Network connection restored",
	}}
	app, _, logs := newTestApp(src, t.TempDir())
	drain(t, app, app.Init())
	_, cmd := app.Update(keyMsg("l"))
	drain(t, app, cmd)

	app.Update(keyMsg("p"))
	if !logs.ShowingPatterns() {
		t.Fatal("p did not switch to the pattern view")
	}
	patterns := logs.Patterns(10)
	if len(patterns) != 2 {
		t.Fatalf("patterns = %+v, want 2", patterns)
	}
	if patterns[0].Count != 3 || !strings.Contains(patterns[0].Template, "<*>") {
		t.Fatalf("top pattern = %+v, want 3 failed calls with a wildcard", patterns[0])
	}
	if view := app.View(); !strings.Contains(view, "2 patterns from 4 entries") {
		t.Fatalf("view missing pattern summary:\n%s", view)
	}

	// search narrows the mined set
	app.Update(keyMsg("/"))
	for _, r := range "restored" {
		app.Update(keyMsg(string(r)))
	}
	app.Update(keyMsg("enter"))
	patterns = logs.Patterns(10)
	if len(patterns) != 1 || patterns[0].Count != 1 {
		t.Fatalf("patterns after search = %+v, want one with count 1", patterns)
	}

	app.Update(keyMsg("p"))
	if logs.ShowingPatterns() {
		t.Fatal("second p did not return to the entry list")
	}
}

func TestRenderPerMinuteChart_Empty(t *testing.T) {
	t.Parallel()

	if got := renderPerMinuteChart(nil, 40, 6); got == "" {
		t.Fatal("empty chart rendered nothing")
	}
	buckets := []model.MinuteBucket{{Calls: 3, Errors: 1}, {Calls: 5}}
	if got := renderPerMinuteChart(buckets, 40, 6); got == "" {
		t.Fatal("chart rendered nothing")
	}
}
