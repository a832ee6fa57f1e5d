package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/apiwatch/internal/logparse"
	"github.com/tinytelemetry/apiwatch/internal/logview"
	"github.com/tinytelemetry/apiwatch/internal/model"
)

// levelCycle is the order the level filter steps through.
var levelCycle = []string{
	logview.LevelAll,
	string(logparse.LevelError),
	string(logparse.LevelWarn),
	string(logparse.LevelInfo),
	string(logparse.LevelDebug),
}

// LogsPage is the log viewer: the store's error log merged with the
// server log, with level filter, search and export.
type LogsPage struct {
	source    model.MonitorSource
	fetcher   *logview.Fetcher
	parser    *logview.Parser
	exportDir string
	keys      KeyMap
	now       func() time.Time

	active    bool
	loading   bool
	entries   []logview.Entry
	filtered  []logview.Entry
	levelIdx  int
	search    textinput.Model
	searching bool
	prevQuery string

	patterns     *PatternMiner
	showPatterns bool

	// offset is the index of the first visible filtered entry.
	offset   int
	pageSize int
	follow   bool

	status string
	err    error
}

// NewLogsPage creates the log viewer. A nil fetcher skips server logs.
func NewLogsPage(source model.MonitorSource, fetcher *logview.Fetcher, exportDir string) *LogsPage {
	ti := textinput.New()
	ti.Placeholder = "search"
	ti.Prompt = "/ "
	ti.CharLimit = 200

	if exportDir == "" {
		exportDir = "."
	}
	return &LogsPage{
		source:    source,
		fetcher:   fetcher,
		parser:    logview.NewParser(time.Now),
		exportDir: exportDir,
		keys:      DefaultKeyMap(),
		now:       time.Now,
		search:    ti,
		patterns:  NewPatternMiner(),
		pageSize:  10,
		follow:    true,
	}
}

func (l *LogsPage) ID() string { return PageLogs }

func (l *LogsPage) Init() tea.Cmd {
	l.active = true
	return l.load()
}

// Level returns the current level filter.
func (l *LogsPage) Level() string { return levelCycle[l.levelIdx] }

// Visible returns the entries that pass the current filter.
func (l *LogsPage) Visible() []logview.Entry { return l.filtered }

// ShowingPatterns reports whether the pattern view replaces the entry list.
func (l *LogsPage) ShowingPatterns() bool { return l.showPatterns }

// Patterns returns up to n templates mined from the filtered entries.
func (l *LogsPage) Patterns(n int) []LogPattern { return l.patterns.GetTopPatterns(n) }

func (l *LogsPage) load() tea.Cmd {
	if l.loading {
		return nil
	}
	l.loading = true
	src, fetcher, parser := l.source, l.fetcher, l.parser
	return func() tea.Msg {
		local, err := src.ErrorLog()
		if err != nil {
			return logsLoadedMsg{err: err}
		}
		var remote []string
		if fetcher != nil {
			remote = fetcher.Fetch(context.Background())
		}
		return logsLoadedMsg{entries: parser.Collect(local, remote)}
	}
}

func (l *LogsPage) query() logview.Query {
	return logview.Query{Level: l.Level(), Search: l.search.Value()}
}

func (l *LogsPage) refilter() {
	l.filtered = logview.Filter(l.entries, l.query())
	l.clampOffset()
	if l.showPatterns {
		l.minePatterns()
	}
}

func (l *LogsPage) minePatterns() {
	l.patterns.Reset()
	for _, e := range l.filtered {
		l.patterns.AddLogMessage(e.Message)
	}
}

func (l *LogsPage) maxOffset() int {
	return max(len(l.filtered)-l.pageSize, 0)
}

func (l *LogsPage) clampOffset() {
	if l.follow {
		l.offset = l.maxOffset()
		return
	}
	l.offset = min(max(l.offset, 0), l.maxOffset())
}

func (l *LogsPage) scroll(delta int) {
	l.follow = false
	l.offset += delta
	l.clampOffset()
	if l.offset == l.maxOffset() {
		l.follow = true
	}
}

func (l *LogsPage) export() tea.Cmd {
	entries := append([]logview.Entry(nil), l.filtered...)
	path := filepath.Join(l.exportDir, logview.ExportFileName(l.now()))
	return func() tea.Msg {
		if err := logview.ExportFile(path, entries); err != nil {
			return exportDoneMsg{err: err}
		}
		return exportDoneMsg{path: path, count: len(entries)}
	}
}

func (l *LogsPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if l.searching {
			return l.handleSearchKey(msg), nil
		}
		return l.handleKey(msg)

	case TickMsg:
		if l.active {
			return l.load(), nil
		}
		return nil, nil

	case logsLoadedMsg:
		l.loading = false
		if msg.err != nil {
			l.err = msg.err
			return nil, nil
		}
		l.err = nil
		l.entries = msg.entries
		l.refilter()
		return nil, nil

	case exportDoneMsg:
		if msg.err != nil {
			l.err = msg.err
			return nil, nil
		}
		l.err = nil
		l.status = fmt.Sprintf("Exported %d lines to %s", msg.count, msg.path)
		return nil, nil
	}

	if l.searching {
		var cmd tea.Cmd
		l.search, cmd = l.search.Update(msg)
		return cmd, nil
	}
	return nil, nil
}

func (l *LogsPage) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, l.keys.ForceQuit):
		return tea.Quit
	case key.Matches(msg, l.keys.Apply):
		l.searching = false
		l.search.Blur()
		l.refilter()
		return nil
	case key.Matches(msg, l.keys.Escape):
		l.searching = false
		l.search.Blur()
		l.search.SetValue(l.prevQuery)
		l.refilter()
		return nil
	}

	var cmd tea.Cmd
	l.search, cmd = l.search.Update(msg)
	l.refilter()
	return cmd
}

func (l *LogsPage) handleKey(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	switch {
	case key.Matches(msg, l.keys.ForceQuit), key.Matches(msg, l.keys.Quit):
		return tea.Quit, nil
	case key.Matches(msg, l.keys.Escape):
		l.active = false
		return nil, navTo(PageDashboard)
	case key.Matches(msg, l.keys.CycleLevel):
		l.levelIdx = (l.levelIdx + 1) % len(levelCycle)
		l.refilter()
	case key.Matches(msg, l.keys.Search):
		l.searching = true
		l.prevQuery = l.search.Value()
		return l.search.Focus(), nil
	case key.Matches(msg, l.keys.Export):
		return l.export(), nil
	case key.Matches(msg, l.keys.Patterns):
		l.showPatterns = !l.showPatterns
		if l.showPatterns {
			l.minePatterns()
		}
	case key.Matches(msg, l.keys.Refresh):
		return l.load(), nil
	case key.Matches(msg, l.keys.Up):
		l.scroll(-1)
	case key.Matches(msg, l.keys.Down):
		l.scroll(1)
	case key.Matches(msg, l.keys.PageUp):
		l.scroll(-l.pageSize)
	case key.Matches(msg, l.keys.PageDown):
		l.scroll(l.pageSize)
	case key.Matches(msg, l.keys.Home):
		l.scroll(-len(l.filtered))
	case key.Matches(msg, l.keys.End):
		l.scroll(len(l.filtered))
	}
	return nil, nil
}

func (l *LogsPage) View(width, height int) string {
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	// header, search line, border and status
	l.pageSize = max(height-7, 1)
	l.clampOffset()

	return lipgloss.JoinVertical(lipgloss.Left,
		l.renderHeader(width),
		l.renderSearch(),
		sectionStyle.Width(width-4).Render(l.renderEntries(width-6)),
		l.renderStatus(),
	)
}

func (l *LogsPage) renderHeader(width int) string {
	counts := logview.CountByLevel(l.filtered)
	parts := []string{chartTitleStyle.Render("Logs"), badge(strings.ToUpper(l.Level()), ColorBlue)}
	for _, lvl := range logparse.Levels {
		style := lipgloss.NewStyle().Foreground(levelColor(lvl))
		parts = append(parts, style.Render(fmt.Sprintf("%s:%d", lvl, counts[lvl])))
	}
	parts = append(parts, mutedStyle.Render(fmt.Sprintf("%d/%d", len(l.filtered), len(l.entries))))
	return lipgloss.NewStyle().MaxWidth(width).Render(strings.Join(parts, "  "))
}

func (l *LogsPage) renderSearch() string {
	if l.searching || l.search.Value() != "" {
		return l.search.View()
	}
	return mutedStyle.Render("/ search")
}

func (l *LogsPage) renderEntries(width int) string {
	if l.showPatterns {
		return l.renderPatterns(width)
	}
	if len(l.filtered) == 0 {
		if l.loading && len(l.entries) == 0 {
			return mutedStyle.Render("Loading...")
		}
		return mutedStyle.Render("No log entries")
	}
	end := min(l.offset+l.pageSize, len(l.filtered))
	lines := make([]string, 0, end-l.offset)
	for _, e := range l.filtered[l.offset:end] {
		stamp := e.Timestamp.Local().Format("15:04:05.000")
		level := lipgloss.NewStyle().Foreground(levelColor(e.Level)).Render(fmt.Sprintf("%-5s", strings.ToUpper(string(e.Level))))
		prefix := stamp + " " + level + " "
		lines = append(lines, prefix+truncate(e.Message, width-len(stamp)-7))
	}
	return strings.Join(lines, "\n")
}

func (l *LogsPage) renderPatterns(width int) string {
	count, total := l.patterns.GetStats()
	if count == 0 {
		return mutedStyle.Render("No patterns")
	}
	lines := []string{labelStyle.Render(fmt.Sprintf("%d patterns from %d entries", count, total))}
	countStyle := lipgloss.NewStyle().Foreground(ColorYellow)
	for _, p := range l.patterns.GetTopPatterns(l.pageSize - 1) {
		prefix := fmt.Sprintf("%6d %5.1f%% ", p.Count, p.Percentage)
		lines = append(lines, countStyle.Render(prefix)+truncate(p.Template, width-len(prefix)))
	}
	return strings.Join(lines, "\n")
}

func (l *LogsPage) renderStatus() string {
	help := helpStyle.Render("f level · / search · p patterns · e export · R reload · esc back · q quit")
	switch {
	case l.err != nil:
		return errorTextStyle.Render("Error: "+l.err.Error()) + "  " + help
	case l.status != "":
		return statusBarStyle.Render(" "+l.status+" ") + "  " + help
	}
	return help
}
