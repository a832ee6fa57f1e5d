package logview

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// LogsPath is the server log endpoint.
const LogsPath = "/api/logs"

const maxLogLine = 1024 * 1024

// Fetcher pulls server-side log lines over HTTP.
type Fetcher struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
}

// NewFetcher creates a fetcher for baseURL.
func NewFetcher(client *http.Client, baseURL string, timeout time.Duration) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Fetcher{client: client, baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

// Fetch returns the server's log lines. Server logs are optional: any
// failure yields no lines.
func (f *Fetcher) Fetch(ctx context.Context) []string {
	if f == nil || f.baseURL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+LogsPath, nil)
	if err != nil {
		log.Debug().Err(err).Msg("logview: build logs request")
		return nil
	}
	resp, err := f.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("logview: server logs unavailable")
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Debug().Int("status", resp.StatusCode).Msg("logview: server logs unavailable")
		return nil
	}

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLine)
	for scanner.Scan() {
		if line := scanner.Text(); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Debug().Err(err).Msg("logview: read server logs")
	}
	return lines
}
