package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
	"github.com/tinytelemetry/apiwatch/internal/model"
)

const (
	recentCallLimit   = 10
	recentThrottleMax = 5
)

// DashboardPage shows live monitoring data pulled from a MonitorSource.
// Recording starts when the page is first shown.
type DashboardPage struct {
	source   model.MonitorSource
	keys     KeyMap
	interval time.Duration

	started bool
	loaded  bool

	analytics model.Analytics
	stats     model.SessionStats
	calls     []model.APICall
	throttles []model.ThrottleEvent

	status string
	err    error
}

// NewDashboardPage creates the dashboard page.
func NewDashboardPage(source model.MonitorSource, interval time.Duration) *DashboardPage {
	if interval <= 0 {
		interval = model.DefaultUpdateInterval
	}
	return &DashboardPage{
		source:   source,
		keys:     DefaultKeyMap(),
		interval: interval,
	}
}

func (d *DashboardPage) ID() string { return PageDashboard }

func (d *DashboardPage) Init() tea.Cmd {
	if d.started {
		return d.fetch()
	}
	d.started = true
	return tea.Batch(
		d.action("Recording started", d.source.StartRecording),
		d.tick(),
	)
}

func (d *DashboardPage) tick() tea.Cmd {
	return tea.Tick(d.interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// fetch loads everything the view needs in one round of calls.
func (d *DashboardPage) fetch() tea.Cmd {
	src := d.source
	return func() tea.Msg {
		var msg dashboardDataMsg
		if msg.analytics, msg.err = src.Analytics(); msg.err != nil {
			return msg
		}
		if msg.stats, msg.err = src.SessionStats(); msg.err != nil {
			return msg
		}
		if msg.calls, msg.err = src.RecentCalls(recentCallLimit); msg.err != nil {
			return msg
		}
		msg.throttles, msg.err = src.ThrottleEvents()
		return msg
	}
}

// action runs fn and reports status, then the reply triggers a refetch.
func (d *DashboardPage) action(status string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: status}
	}
}

func (d *DashboardPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return d.handleKey(msg)

	case tea.FocusMsg:
		// Focus regained: sample now.
		return d.action("", d.source.TriggerSample), nil

	case TickMsg:
		return tea.Batch(d.fetch(), d.tick()), nil

	case dashboardDataMsg:
		if msg.err != nil {
			d.err = msg.err
			log.Debug().Err(msg.err).Msg("tui: dashboard refresh failed")
			return nil, nil
		}
		d.err = nil
		d.loaded = true
		d.analytics = msg.analytics
		d.stats = msg.stats
		d.calls = msg.calls
		d.throttles = msg.throttles
		return nil, nil

	case actionDoneMsg:
		if msg.err != nil {
			d.err = msg.err
			return nil, nil
		}
		if msg.status != "" {
			d.status = msg.status
		}
		return d.fetch(), nil
	}
	return nil, nil
}

func (d *DashboardPage) handleKey(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	switch {
	case key.Matches(msg, d.keys.ForceQuit), key.Matches(msg, d.keys.Quit):
		return tea.Quit, nil
	case key.Matches(msg, d.keys.ToggleRecording):
		if d.stats.Recording {
			return d.action("Recording stopped", d.source.StopRecording), nil
		}
		return d.action("Recording started", d.source.StartRecording), nil
	case key.Matches(msg, d.keys.Clear):
		return d.action("Cleared", d.source.ClearAll), nil
	case key.Matches(msg, d.keys.NewSession):
		return d.action("New session", func() error {
			_, err := d.source.StartNewSession()
			return err
		}), nil
	case key.Matches(msg, d.keys.Sample):
		return d.action("Sample requested", d.source.TriggerSample), nil
	case key.Matches(msg, d.keys.Logs):
		return nil, navTo(PageLogs)
	}
	return nil, nil
}

func (d *DashboardPage) View(width, height int) string {
	if width <= 0 {
		width = 80
	}
	if !d.loaded {
		if d.err != nil {
			return errorTextStyle.Render("Error: " + d.err.Error())
		}
		return renderLoadingPlaceholder(width, max(height, 1))
	}

	inner := width - 4
	sections := []string{
		d.renderHeader(width),
		d.renderCounters(width),
		sectionStyle.Width(inner).Render(
			chartTitleStyle.Render("Calls per minute") + "\n" +
				renderPerMinuteChart(d.analytics.PerMinute, inner-2, 6),
		),
	}

	half := max((width-2)/2-2, 20)
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top,
		sectionStyle.Width(half).Render(d.renderTopEndpoints(half-2)),
		sectionStyle.Width(half).Render(d.renderRecentCalls(half-2)),
	))
	sections = append(sections, sectionStyle.Width(inner).Render(d.renderThrottles(inner-2)))
	sections = append(sections, d.renderStatus(width))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (d *DashboardPage) renderHeader(width int) string {
	rec := badge("PAUSED", ColorGray)
	if d.stats.Recording {
		rec = badge("● REC", ColorRed)
	}
	health := badge(strings.ToUpper(string(d.analytics.Health)), healthColor(d.analytics.Health))
	session := mutedStyle.Render(fmt.Sprintf("session %s · %s", shortID(d.stats.SessionID), formatElapsed(d.stats.Elapsed)))
	title := chartTitleStyle.Render("apiwatch")
	return lipgloss.NewStyle().Width(width).Render(
		lipgloss.JoinHorizontal(lipgloss.Center, title, " ", health, " ", rec, "  ", session),
	)
}

func (d *DashboardPage) renderCounters(width int) string {
	a := d.analytics
	items := []string{
		counter("Total", fmt.Sprint(a.TotalCalls)),
		counter("Last min", fmt.Sprint(a.CallsLastMinute)),
		counter("Last hour", fmt.Sprint(a.CallsLastHour)),
		counter("Avg", formatDuration(a.AvgDuration)),
		counter("Errors", fmt.Sprintf("%d (%.1f%%)", a.ErrorCount, a.ErrorRate*100)),
		counter("Throttle", fmt.Sprint(a.ThrottleEvents)),
		counter("Session errors", fmt.Sprint(d.stats.Errors)),
	}
	return sectionStyle.Width(width - 4).Render(strings.Join(items, "   "))
}

func counter(label, value string) string {
	return labelStyle.Render(label+": ") + valueStyle.Render(value)
}

func (d *DashboardPage) renderTopEndpoints(width int) string {
	var b strings.Builder
	b.WriteString(chartTitleStyle.Render("Top endpoints"))
	if len(d.analytics.TopEndpoints) == 0 {
		b.WriteString("\n" + mutedStyle.Render("No calls yet"))
		return b.String()
	}
	for _, ep := range d.analytics.TopEndpoints {
		count := fmt.Sprintf("%5d ", ep.Count)
		b.WriteString("\n" + valueStyle.Render(count) + truncate(ep.Endpoint, width-len(count)))
	}
	return b.String()
}

func (d *DashboardPage) renderRecentCalls(width int) string {
	var b strings.Builder
	b.WriteString(chartTitleStyle.Render("Recent calls"))
	if len(d.calls) == 0 {
		b.WriteString("\n" + mutedStyle.Render("No calls yet"))
		return b.String()
	}
	for _, c := range d.calls {
		status := "..."
		if c.Status != nil {
			status = fmt.Sprint(*c.Status)
		} else if c.Error != "" {
			status = "ERR"
		}
		dur := "-"
		if c.Duration != nil {
			dur = formatDuration(*c.Duration)
		}
		prefix := fmt.Sprintf("%-6s %-3s %7s ", c.Method, status, dur)
		line := lipgloss.NewStyle().Foreground(statusColor(c)).Render(prefix) +
			truncate(c.URL, width-len(prefix))
		b.WriteString("\n" + line)
	}
	return b.String()
}

func (d *DashboardPage) renderThrottles(width int) string {
	var b strings.Builder
	b.WriteString(chartTitleStyle.Render("Throttle events"))
	if len(d.throttles) == 0 {
		b.WriteString("\n" + mutedStyle.Render("None"))
		return b.String()
	}
	start := max(len(d.throttles)-recentThrottleMax, 0)
	for i := len(d.throttles) - 1; i >= start; i-- {
		te := d.throttles[i]
		color := ColorOrange
		if te.Action == model.ThrottleBlocked {
			color = ColorRed
		}
		prefix := fmt.Sprintf("%s %-9s %4d hits ", te.Timestamp.Local().Format("15:04:05"), te.Action, te.Hits)
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(color).Render(prefix) + truncate(te.Endpoint, width-len(prefix)))
	}
	return b.String()
}

func (d *DashboardPage) renderStatus(width int) string {
	help := helpStyle.Render("r record · c clear · n new session · s sample · l logs · q quit")
	if d.err != nil {
		return errorTextStyle.Render("Error: "+d.err.Error()) + "  " + help
	}
	if d.status != "" {
		return statusBarStyle.Render(" "+d.status+" ") + "  " + help
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(help)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0ms"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func truncate(s string, width int) string {
	if width <= 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
