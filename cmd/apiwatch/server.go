package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/tinytelemetry/apiwatch/internal/gateway"
	"github.com/tinytelemetry/apiwatch/internal/httpserver"
	"github.com/tinytelemetry/apiwatch/internal/interceptor"
	"github.com/tinytelemetry/apiwatch/internal/logging"
	"github.com/tinytelemetry/apiwatch/internal/metrics"
	"github.com/tinytelemetry/apiwatch/internal/monitor"
	"github.com/tinytelemetry/apiwatch/internal/sampler"
	"github.com/tinytelemetry/apiwatch/internal/socketrpc"
	"golang.org/x/sync/errgroup"
)

// service holds every running component so shutdown can unwind them in
// reverse order.
type service struct {
	store     *monitor.Store
	installer *interceptor.Installer
	sampler   *sampler.Sampler
	watcher   *sampler.ConnectivityWatcher
	api       *httpserver.Server
	sock      *socketrpc.Server
	cleanups  []func()
}

func (s *service) onClose(fn func()) { s.cleanups = append(s.cleanups, fn) }

func (s *service) close() {
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
	s.cleanups = nil
}

// newService wires the store, interceptor, sampler, metrics and both
// servers without starting the listeners.
func newService(cfg appConfig, reg *prometheus.Registry) (*service, error) {
	svc := &service{}

	svc.store = monitor.NewStore(monitor.Config{
		MaxCalls:          cfg.MaxCalls,
		MaxSnapshots:      cfg.MaxSnapshots,
		MaxThrottleEvents: cfg.MaxThrottleEvents,
		MaxErrors:         cfg.MaxErrors,
		ThrottleWindow:    cfg.ThrottleWindow,
		ThrottleLimit:     cfg.ThrottleLimit,
	})

	var registerer prometheus.Registerer
	if reg != nil {
		registerer = reg
	}
	collector := metrics.NewCollector(registerer)
	svc.onClose(collector.Attach(svc.store))

	// Outbound calls made through the default client are recorded, which
	// covers the gateway and any library code in this process.
	svc.installer = interceptor.NewInstaller(svc.store, interceptor.Options{
		Filter:     interceptor.Filter{},
		Classifier: interceptor.Classifier{BackendHosts: cfg.BackendHosts, SiteHosts: cfg.SiteHosts},
	})
	svc.installer.Install(http.DefaultClient)
	svc.onClose(func() { svc.installer.Uninstall() })

	var gw http.Handler
	if cfg.BackendURL != "" {
		g, err := gateway.New(cfg.BackendURL, http.DefaultClient.Transport)
		if err != nil {
			svc.close()
			return nil, fmt.Errorf("failed to initialize gateway: %w", err)
		}
		gw = g
	}

	// The probe client bypasses the interceptor.
	probeClient := &http.Client{Transport: http.DefaultTransport}
	svc.sampler = sampler.New(svc.store, sampler.Config{
		BaseURL:           cfg.ProbeBaseURL,
		Client:            probeClient,
		Interval:          cfg.SampleInterval,
		ProbeTimeout:      cfg.ProbeTimeout,
		SlowThreshold:     cfg.SlowThreshold,
		FailureThreshold:  cfg.FailureThreshold,
		MemoryWarnPercent: cfg.MemoryWarnPercent,
	})
	svc.onClose(svc.sampler.Stop)
	svc.onClose(svc.sampler.Bind())

	svc.watcher = sampler.NewConnectivityWatcher(cfg.ConnectivityInterval, svc.sampler.Trigger, svc.store.RecordError)

	var metricsHandler http.Handler
	if reg != nil {
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	} else {
		metricsHandler = promhttp.Handler()
	}

	svc.api = httpserver.NewServer(cfg.APIAddr, svc.store, httpserver.Options{
		Gateway: gw,
		Metrics: metricsHandler,
		Trigger: svc.sampler.Trigger,
	})
	svc.sock = socketrpc.NewServer(cfg.SocketPath, svc.store, svc.sampler.Trigger)
	return svc, nil
}

// start brings up listeners and background watchers.
func (s *service) start() error {
	if err := s.api.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	s.onClose(func() {
		if err := s.api.Stop(); err != nil {
			log.Warn().Err(err).Msg("server: API shutdown")
		}
	})

	if err := s.sock.Start(); err != nil {
		log.Warn().Err(err).Str("socket", s.sock.Path()).Msg("server: failed to start socket server")
	} else {
		s.onClose(s.sock.Stop)
	}

	s.watcher.Start()
	s.onClose(s.watcher.Stop)
	return nil
}

// runServer starts the monitoring service and blocks until a signal.
func runServer(cfg appConfig) error {
	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "apiwatch",
		FilePath:  cfg.LogFile,
	})
	defer logging.Shutdown()

	svc, err := newService(cfg, nil)
	if err != nil {
		return err
	}
	defer svc.close()

	if err := svc.start(); err != nil {
		return err
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	printStartupBanner(cfg)
	log.Info().
		Str("api", cfg.APIAddr).
		Str("socket", cfg.SocketPath).
		Dur("sample_interval", cfg.SampleInterval).
		Msg("apiwatch started")

	g, gctx := errgroup.WithContext(ctx)

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server: errgroup exited with error")
	}

	signal.Stop(sigCh)
	return nil
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func printStartupBanner(cfg appConfig) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	var lines []string
	lines = append(lines, "")
	lines = append(lines, "    "+cyan.Bold(true).Render("apiwatch")+" "+dim.Render("v"+version))
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator, "")

	lines = append(lines, bold.Render("    Endpoints"), "")
	lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	lines = append(lines, fmt.Sprintf("    %s  Metrics        %s", check, cyan.Render("http://"+cfg.APIAddr+"/metrics")))
	lines = append(lines, fmt.Sprintf("    %s  Unix Socket    %s", check, cyan.Render(shortenPath(cfg.SocketPath))))
	if cfg.BackendURL != "" {
		lines = append(lines, fmt.Sprintf("    %s  Gateway        %s", check, cyan.Render(cfg.BackendURL)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Gateway        %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Monitoring"), "")
	lines = append(lines, fmt.Sprintf("    %s  Health probe   %s every %s", check, dim.Render(cfg.ProbeBaseURL), cfg.SampleInterval))
	lines = append(lines, fmt.Sprintf("    %s  Throttle       %d calls / %s", check, cfg.ThrottleLimit, cfg.ThrottleWindow))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
