package tui

import tea "github.com/charmbracelet/bubbletea"

// Page IDs.
const (
	PageDashboard = "dashboard"
	PageLogs      = "logs"
)

// Page represents a top-level screen in the TUI (dashboard, log viewer).
type Page interface {
	ID() string
	Init() tea.Cmd
	Update(msg tea.Msg) (tea.Cmd, *PageNav)
	View(width, height int) string
}

// PageNav is returned from Update to request a page switch.
type PageNav struct {
	PageID string
}

func navTo(id string) *PageNav { return &PageNav{PageID: id} }
