package tui

import (
	"time"

	"github.com/tinytelemetry/apiwatch/internal/logview"
	"github.com/tinytelemetry/apiwatch/internal/model"
)

// TickMsg is sent on every refresh interval.
type TickMsg time.Time

// pageMsg is implemented by replies that belong to one page.
type pageMsg interface {
	pageID() string
}

// dashboardDataMsg carries one refresh of dashboard data.
type dashboardDataMsg struct {
	analytics model.Analytics
	stats     model.SessionStats
	calls     []model.APICall
	throttles []model.ThrottleEvent
	err       error
}

func (dashboardDataMsg) pageID() string { return PageDashboard }

// actionDoneMsg reports the outcome of a control action.
type actionDoneMsg struct {
	status string
	err    error
}

func (actionDoneMsg) pageID() string { return PageDashboard }

// logsLoadedMsg carries the merged local and server log entries.
type logsLoadedMsg struct {
	entries []logview.Entry
	err     error
}

func (logsLoadedMsg) pageID() string { return PageLogs }

// exportDoneMsg reports where logs were exported.
type exportDoneMsg struct {
	path  string
	count int
	err   error
}

func (exportDoneMsg) pageID() string { return PageLogs }
