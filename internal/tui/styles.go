package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/apiwatch/internal/logparse"
	"github.com/tinytelemetry/apiwatch/internal/model"
)

var (
	ColorNavy   = lipgloss.Color("#1B2A49")
	ColorBlue   = lipgloss.Color("39")
	ColorGreen  = lipgloss.Color("42")
	ColorYellow = lipgloss.Color("220")
	ColorOrange = lipgloss.Color("208")
	ColorRed    = lipgloss.Color("196")
	ColorGray   = lipgloss.Color("244")
	ColorWhite  = lipgloss.Color("255")
)

var (
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorNavy).
			Padding(0, 1)

	chartTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	helpStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Italic(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(ColorNavy).
			Foreground(ColorWhite)

	errorTextStyle = lipgloss.NewStyle().Foreground(ColorRed)
	mutedStyle     = lipgloss.NewStyle().Foreground(ColorGray)
	labelStyle     = lipgloss.NewStyle().Foreground(ColorGray)
	valueStyle     = lipgloss.NewStyle().Bold(true).Foreground(ColorWhite)
)

func badge(text string, bg lipgloss.Color) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("0")).
		Background(bg).
		Padding(0, 1).
		Render(text)
}

func healthColor(h model.Health) lipgloss.Color {
	switch h {
	case model.HealthHealthy:
		return ColorGreen
	case model.HealthDegraded:
		return ColorYellow
	case model.HealthRecovering:
		return ColorOrange
	case model.HealthDown:
		return ColorRed
	default:
		return ColorGray
	}
}

func levelColor(l logparse.Level) lipgloss.Color {
	switch l {
	case logparse.LevelError:
		return ColorRed
	case logparse.LevelWarn:
		return ColorOrange
	case logparse.LevelDebug:
		return ColorGray
	default:
		return ColorBlue
	}
}

func statusColor(call model.APICall) lipgloss.Color {
	switch {
	case call.Error != "":
		return ColorRed
	case call.Status == nil:
		return ColorGray
	case *call.Status >= 300:
		return ColorYellow
	default:
		return ColorGreen
	}
}
