package tui

import (
	"fmt"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/apiwatch/internal/model"
)

var (
	callBarStyle  = lipgloss.NewStyle().Foreground(ColorBlue).Background(ColorBlue)
	errorBarStyle = lipgloss.NewStyle().Foreground(ColorRed).Background(ColorRed)
)

// renderPerMinuteChart draws calls per minute as stacked bars, errors on
// the bottom.
func renderPerMinuteChart(buckets []model.MinuteBucket, width, height int) string {
	if len(buckets) == 0 || width < 4 || height < 3 {
		return mutedStyle.Render("No data")
	}

	maxCalls := 0
	for _, b := range buckets {
		if b.Calls > maxCalls {
			maxCalls = b.Calls
		}
	}
	if maxCalls == 0 {
		return mutedStyle.Render("No calls in the last " + fmt.Sprint(len(buckets)) + " minutes")
	}

	// Keep the newest buckets that fit, one column plus a gap each.
	fit := (width + 1) / 2
	if fit < len(buckets) {
		buckets = buckets[len(buckets)-fit:]
	}

	bc := barchart.New(width, height,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(1),
		barchart.WithNoAxis(),
	)
	for _, b := range buckets {
		ok := b.Calls - b.Errors
		if ok < 0 {
			ok = 0
		}
		bc.Push(barchart.BarData{
			Label: b.Minute.Local().Format("04"),
			Values: []barchart.BarValue{
				{Name: "errors", Value: float64(b.Errors), Style: errorBarStyle},
				{Name: "calls", Value: float64(ok), Style: callBarStyle},
			},
		})
	}
	bc.Draw()
	return bc.View()
}
