// Package httpserver serves the monitoring HTTP API.
package httpserver

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/tinytelemetry/apiwatch/internal/logview"
	"github.com/tinytelemetry/apiwatch/internal/model"
	"github.com/tinytelemetry/apiwatch/internal/monitor"
)

// Store is the store contract required by the HTTP API.
type Store interface {
	model.Monitor
	OnChange(fn func(monitor.Event)) (unsubscribe func())
}

// Options configures optional routes. Nil handlers leave their routes
// unregistered.
type Options struct {
	// Gateway serves the proxied backend paths.
	Gateway http.Handler
	// Metrics serves the Prometheus exposition.
	Metrics http.Handler
	// Trigger requests an immediate sampler tick.
	Trigger func()
}

// Server provides the monitoring HTTP API.
type Server struct {
	addr      string
	store     Store
	opts      Options
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
	now       func() time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, store Store, opts Options) *Server {
	if addr == "" {
		addr = "127.0.0.1:3000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		store:     store,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.HEAD("/api/health", s.handleHealth)
	r.GET("/api/logs", s.handleLogs)
	r.GET("/api/export", s.handleExport)
	r.GET("/api/analytics", s.handleAnalytics)
	r.GET("/api/session", s.handleSession)
	r.POST("/api/session", s.handleNewSession)
	r.GET("/api/calls", s.handleCalls)
	r.GET("/api/snapshots", s.handleSnapshots)
	r.GET("/api/throttle", s.handleThrottle)
	r.POST("/api/recording/start", s.handleRecording(true))
	r.POST("/api/recording/stop", s.handleRecording(false))
	r.POST("/api/clear", s.handleClear)
	r.POST("/api/sample", s.handleSample)
	r.GET("/api/stream", s.handleStream)

	if s.opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.opts.Metrics))
	}
	if s.opts.Gateway != nil {
		gw := gin.WrapH(s.opts.Gateway)
		r.Any("/rest/v1/*path", gw)
		r.Any("/functions/v1/*path", gw)
	}
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Router(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()
	log.Info().Str("addr", listener.Addr().String()).Msg("httpserver: listening")

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server and closes open streams.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).String(),
		"recording": s.store.IsRecording(),
	})
}

func (s *Server) handleLogs(c *gin.Context) {
	lines := s.store.Errors()
	body := strings.Join(lines, "\n")
	if len(lines) > 0 {
		body += "\n"
	}
	c.Header("Cache-Control", "no-cache")
	c.String(http.StatusOK, body)
}

func (s *Server) handleExport(c *gin.Context) {
	now := s.now()
	entries := logview.NewParser(s.now).ParseAll(s.store.Errors())
	entries = logview.Filter(entries, logview.Query{
		Level:  c.DefaultQuery("level", logview.LevelAll),
		Search: c.Query("search"),
	})

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+logview.ExportFileName(now)+`"`)
	c.Status(http.StatusOK)
	if err := logview.Export(c.Writer, entries); err != nil {
		log.Warn().Err(err).Msg("httpserver: export write failed")
	}
}

func (s *Server) handleAnalytics(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Analytics())
}

func (s *Server) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.SessionStats())
}

func (s *Server) handleNewSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.StartNewSession())
}

func (s *Server) handleCalls(c *gin.Context) {
	calls := s.store.Calls()
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		calls = Newest(calls, limit)
	}
	c.JSON(http.StatusOK, gin.H{
		"calls": calls,
		"count": len(calls),
	})
}

func (s *Server) handleSnapshots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"snapshots": s.store.Snapshots()})
}

func (s *Server) handleThrottle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": s.store.ThrottleEvents()})
}

func (s *Server) handleRecording(on bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if on {
			s.store.StartRecording()
		} else {
			s.store.StopRecording()
		}
		c.JSON(http.StatusOK, gin.H{"recording": s.store.IsRecording()})
	}
}

func (s *Server) handleClear(c *gin.Context) {
	s.store.ClearAll()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSample(c *gin.Context) {
	if s.opts.Trigger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sampler not configured"})
		return
	}
	s.opts.Trigger()
	c.Status(http.StatusAccepted)
}

// Newest returns the last n calls, newest first.
func Newest(calls []model.APICall, n int) []model.APICall {
	if n > len(calls) {
		n = len(calls)
	}
	out := make([]model.APICall, 0, n)
	for i := len(calls) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, calls[i])
	}
	return out
}
