package socketrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tinytelemetry/apiwatch/internal/model"
)

var _ model.MonitorSource = (*Client)(nil)

// Client implements model.MonitorSource over a Unix domain socket using
// JSON-RPC 2.0.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
	timeout time.Duration
}

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	return &Client{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
		timeout: 10 * time.Second,
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call performs a JSON-RPC call and unmarshals the result into dest.
func (c *Client) call(method string, params interface{}, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	var paramsData json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("socketrpc: marshal params: %w", err)
		}
		paramsData = data
	}

	req := Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  paramsData,
	}

	c.conn.SetDeadline(time.Now().Add(c.timeout))
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("socketrpc: send: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("socketrpc: read: %w", err)
		}
		return fmt.Errorf("socketrpc: connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("socketrpc: unmarshal response: %w", err)
	}
	if resp.ID != id {
		return fmt.Errorf("socketrpc: response id %d does not match request %d", resp.ID, id)
	}

	if resp.Error != nil {
		return resp.Error
	}

	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

func (c *Client) Analytics() (model.Analytics, error) {
	var result model.Analytics
	err := c.call("Analytics", nil, &result)
	return result, err
}

func (c *Client) SessionStats() (model.SessionStats, error) {
	var result model.SessionStats
	err := c.call("SessionStats", nil, &result)
	return result, err
}

func (c *Client) RecentCalls(limit int) ([]model.APICall, error) {
	var result []model.APICall
	err := c.call("RecentCalls", map[string]interface{}{"Limit": limit}, &result)
	return result, err
}

func (c *Client) Snapshots() ([]model.SystemSnapshot, error) {
	var result []model.SystemSnapshot
	err := c.call("Snapshots", nil, &result)
	return result, err
}

func (c *Client) ThrottleEvents() ([]model.ThrottleEvent, error) {
	var result []model.ThrottleEvent
	err := c.call("ThrottleEvents", nil, &result)
	return result, err
}

func (c *Client) ErrorLog() ([]string, error) {
	var result []string
	err := c.call("ErrorLog", nil, &result)
	return result, err
}

func (c *Client) IsRecording() (bool, error) {
	var result bool
	err := c.call("IsRecording", nil, &result)
	return result, err
}

func (c *Client) StartRecording() error {
	return c.call("StartRecording", nil, nil)
}

func (c *Client) StopRecording() error {
	return c.call("StopRecording", nil, nil)
}

func (c *Client) ClearAll() error {
	return c.call("ClearAll", nil, nil)
}

func (c *Client) StartNewSession() (model.Session, error) {
	var result model.Session
	err := c.call("StartNewSession", nil, &result)
	return result, err
}

func (c *Client) TriggerSample() error {
	return c.call("TriggerSample", nil, nil)
}
