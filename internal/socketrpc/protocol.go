package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 Method Reference
//
// The socket RPC server exposes the monitoring store over a Unix domain
// socket. The client implements model.MonitorSource.
//
//   Method            Params           Result
//   ───────────────   ──────────────   ─────────────────────
//   Analytics         (none)           model.Analytics
//   SessionStats      (none)           model.SessionStats
//   RecentCalls       {Limit: int}     []model.APICall (newest first)
//   Snapshots         (none)           []model.SystemSnapshot
//   ThrottleEvents    (none)           []model.ThrottleEvent
//   ErrorLog          (none)           []string
//   IsRecording       (none)           bool
//   StartRecording    (none)           bool (recording state)
//   StopRecording     (none)           bool (recording state)
//   ClearAll          (none)           bool
//   StartNewSession   (none)           model.Session
//   TriggerSample     (none)           bool
//
// RecentCalls with Limit <= 0 returns every stored call.
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error

const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeAppError       = -32000
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// DefaultSocketPath returns the default Unix socket path.
// It prefers $XDG_RUNTIME_DIR/apiwatch/apiwatch.sock, falling back to
// ~/.local/state/apiwatch/apiwatch.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "apiwatch", "apiwatch.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/apiwatch.sock"
	}
	return filepath.Join(home, ".local", "state", "apiwatch", "apiwatch.sock")
}
