package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tinytelemetry/apiwatch/internal/logging"
	"github.com/tinytelemetry/apiwatch/internal/logview"
	"github.com/tinytelemetry/apiwatch/internal/socketrpc"
	"github.com/tinytelemetry/apiwatch/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var socketPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/apiwatch/config.yml)")
	flag.StringVar(&socketPath, "socket", "", "override socket path to connect to apiwatch service")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("apiwatch-tui - Monitoring Dashboard\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadCLIConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if socketPath != "" {
		cfg.SocketPath = socketPath
	}

	if err := runTUI(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cfg cliConfig) error {
	// The alternate screen owns the terminal, so logs go to a file or nowhere.
	logging.Init(logging.Config{
		Format:    "none",
		Level:     cfg.LogLevel,
		Component: "apiwatch-tui",
		FilePath:  cfg.LogFile,
	})
	defer logging.Shutdown()

	client, err := socketrpc.Dial(cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("cannot connect to apiwatch service at %s: %w\nIs the apiwatch service running? Start it with: apiwatch", cfg.SocketPath, err)
	}
	defer client.Close()

	fetcher := logview.NewFetcher(&http.Client{}, cfg.ProbeBaseURL, 5*time.Second)

	app := tui.NewApp(
		tui.NewDashboardPage(client, cfg.UpdateInterval),
		tui.NewLogsPage(client, fetcher, cfg.ExportDir),
	)

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithReportFocus())
	_, runErr := p.Run()

	// Recording belongs to the dashboard's lifetime.
	if err := client.StopRecording(); err != nil {
		log.Warn().Err(err).Msg("tui: stop recording on exit")
	}

	if runErr != nil {
		if strings.Contains(runErr.Error(), "TTY") || strings.Contains(runErr.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", runErr)
	}
	return nil
}
