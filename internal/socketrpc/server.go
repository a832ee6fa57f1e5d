package socketrpc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tinytelemetry/apiwatch/internal/model"
)

const (
	// scannerInitBufSize is the initial buffer size for the per-connection scanner (64 KB).
	scannerInitBufSize = 64 * 1024
	// scannerMaxTokenSize is the maximum token size the scanner will accept (10 MB).
	scannerMaxTokenSize = 10 * 1024 * 1024
)

// ErrNoSampler is returned by TriggerSample when no sampler is wired.
var ErrNoSampler = errors.New("sampler not configured")

// Server exposes the monitoring store over a Unix domain socket using
// JSON-RPC 2.0.
type Server struct {
	socketPath string
	store      model.Monitor
	trigger    func()
	listener   net.Listener
	wg         sync.WaitGroup
	quit       chan struct{}
	stopOnce   sync.Once

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// NewServer creates a new socket RPC server. trigger requests an immediate
// sampler tick and may be nil.
func NewServer(socketPath string, store model.Monitor, trigger func()) *Server {
	return &Server{
		socketPath: socketPath,
		store:      store,
		trigger:    trigger,
		quit:       make(chan struct{}),
		conns:      make(map[net.Conn]struct{}),
	}
}

// Path returns the socket path.
func (s *Server) Path() string { return s.socketPath }

// Start begins listening on the Unix socket and accepting connections.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("socketrpc: mkdir: %w", err)
	}

	// Remove stale socket if it exists.
	if _, err := os.Stat(s.socketPath); err == nil {
		conn, dialErr := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
		if dialErr != nil {
			os.Remove(s.socketPath)
		} else {
			conn.Close()
			return fmt.Errorf("socketrpc: another server is already listening on %s", s.socketPath)
		}
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("socketrpc: listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	log.Info().Str("socket", s.socketPath).Msg("socketrpc: listening")
	return nil
}

// Stop closes the listener and open connections, waits for handlers to
// exit, and removes the socket file. It is safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		if s.listener != nil {
			s.listener.Close()
		}
		s.connMu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.connMu.Unlock()
		s.wg.Wait()
		os.Remove(s.socketPath)
	})
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				log.Warn().Err(err).Msg("socketrpc: accept error")
				// Transient errors (e.g. fd limit) must not kill the loop.
				time.Sleep(10 * time.Millisecond)
				continue
			}
		}
		if !s.track(conn) {
			conn.Close()
			return
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	select {
	case <-s.quit:
		return false
	default:
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.connMu.Lock()
	delete(s.conns, conn)
	s.connMu.Unlock()
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		select {
		case <-s.quit:
			return
		default:
		}

		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			resp := Response{JSONRPC: "2.0", ID: 0, Error: &RPCError{Code: CodeParseError, Message: "parse error"}}
			encoder.Encode(resp)
			continue
		}

		resp := s.dispatch(req)
		if err := encoder.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	marshalResult := func(v interface{}, err error) Response {
		if err != nil {
			resp.Error = &RPCError{Code: CodeAppError, Message: err.Error()}
			return resp
		}
		data, merr := json.Marshal(v)
		if merr != nil {
			resp.Error = &RPCError{Code: CodeInternalError, Message: merr.Error()}
			return resp
		}
		resp.Result = data
		return resp
	}

	invalidParams := func(err error) Response {
		resp.Error = &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
		return resp
	}

	switch req.Method {
	case "Analytics":
		return marshalResult(s.store.Analytics(), nil)

	case "SessionStats":
		return marshalResult(s.store.SessionStats(), nil)

	case "RecentCalls":
		var p struct{ Limit int }
		// Allow empty/null params for defaults; only reject genuinely malformed JSON.
		if err := json.Unmarshal(req.Params, &p); err != nil && len(req.Params) > 0 {
			return invalidParams(err)
		}
		return marshalResult(recentCalls(s.store.Calls(), p.Limit), nil)

	case "Snapshots":
		return marshalResult(s.store.Snapshots(), nil)

	case "ThrottleEvents":
		return marshalResult(s.store.ThrottleEvents(), nil)

	case "ErrorLog":
		return marshalResult(s.store.Errors(), nil)

	case "IsRecording":
		return marshalResult(s.store.IsRecording(), nil)

	case "StartRecording":
		s.store.StartRecording()
		return marshalResult(s.store.IsRecording(), nil)

	case "StopRecording":
		s.store.StopRecording()
		return marshalResult(s.store.IsRecording(), nil)

	case "ClearAll":
		s.store.ClearAll()
		return marshalResult(true, nil)

	case "StartNewSession":
		return marshalResult(s.store.StartNewSession(), nil)

	case "TriggerSample":
		if s.trigger == nil {
			return marshalResult(nil, ErrNoSampler)
		}
		s.trigger()
		return marshalResult(true, nil)

	default:
		resp.Error = &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
		return resp
	}
}

// recentCalls returns up to limit calls, newest first.
func recentCalls(calls []model.APICall, limit int) []model.APICall {
	if limit <= 0 || limit > len(calls) {
		limit = len(calls)
	}
	out := make([]model.APICall, 0, limit)
	for i := len(calls) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, calls[i])
	}
	return out
}
