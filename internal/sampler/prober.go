package sampler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	healthPath   = "/api/health"
	fallbackPath = "/"
)

// ErrServerError is returned for probes answered with a 5xx status.
var ErrServerError = errors.New("server error response")

// ProbeResult is the outcome of one reachability probe.
type ProbeResult struct {
	Path    string
	Status  int
	Latency time.Duration
	Err     error
}

// OK reports whether the server was reachable.
func (r ProbeResult) OK() bool { return r.Err == nil }

// Prober checks server reachability with HEAD requests.
type Prober struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
	now     func() time.Time
}

// NewProber creates a prober against baseURL. A nil client uses a plain
// client so probes never pass through the interceptor.
func NewProber(client *http.Client, baseURL string, timeout time.Duration) *Prober {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Prober{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		now:     time.Now,
	}
}

// Probe tries the health path first and falls back to the root path only
// when the health request fails at the transport level. Any status below
// 500 counts as reachable.
func (p *Prober) Probe(ctx context.Context) ProbeResult {
	res := p.head(ctx, healthPath)
	if res.Err != nil && res.Status == 0 && ctx.Err() == nil {
		res = p.head(ctx, fallbackPath)
	}
	return res
}

func (p *Prober) head(ctx context.Context, path string) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res := ProbeResult{Path: path}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.baseURL+path, nil)
	if err != nil {
		res.Err = fmt.Errorf("build probe request: %w", err)
		return res
	}
	req.Header.Set("Cache-Control", "no-cache")

	start := p.now()
	resp, err := p.client.Do(req)
	res.Latency = p.now().Sub(start)
	if err != nil {
		res.Err = fmt.Errorf("probe %s: %w", path, err)
		return res
	}
	resp.Body.Close()

	res.Status = resp.StatusCode
	if resp.StatusCode >= http.StatusInternalServerError {
		res.Err = fmt.Errorf("probe %s: HTTP %d: %w", path, resp.StatusCode, ErrServerError)
	}
	return res
}
