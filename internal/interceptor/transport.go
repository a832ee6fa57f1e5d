// Package interceptor records outbound HTTP calls into the monitoring store
// without changing what the caller observes.
package interceptor

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tinytelemetry/apiwatch/internal/model"
	"github.com/tinytelemetry/apiwatch/internal/monitor"
)

// Recorder is the narrow store contract the interceptor writes to.
type Recorder interface {
	RecordCallStart(url, method string, origin model.Origin) string
	RecordCallEnd(id string, res monitor.CallResult)
	RecordError(message string)
}

// Options configures a Transport.
type Options struct {
	Filter     Filter
	Classifier Classifier
	// Now is overridable for tests.
	Now func() time.Time
}

// Transport is an http.RoundTripper decorator that times every call and
// records the trackable ones.
type Transport struct {
	base       http.RoundTripper
	store      Recorder
	filter     Filter
	classifier Classifier
	now        func() time.Time
}

// Wrap decorates base. A nil base means http.DefaultTransport. Wrapping an
// existing *Transport returns it unchanged so calls are never double counted.
func Wrap(base http.RoundTripper, store Recorder, opts Options) *Transport {
	if t, ok := base.(*Transport); ok {
		return t
	}
	if base == nil {
		base = http.DefaultTransport
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Transport{
		base:       base,
		store:      store,
		filter:     opts.Filter,
		classifier: opts.Classifier,
		now:        now,
	}
}

// Base returns the wrapped transport.
func (t *Transport) Base() http.RoundTripper { return t.base }

// RoundTrip issues the request through the base transport. The response
// and error are returned exactly as the base transport produced them.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	rawURL := req.URL.String()
	tracked := t.filter.Trackable(rawURL)

	var id string
	if tracked {
		id = t.store.RecordCallStart(rawURL, req.Method, t.classifier.Classify(rawURL))
	}

	start := t.now()
	resp, err := t.base.RoundTrip(req)
	elapsed := t.now().Sub(start)

	if !tracked {
		return resp, err
	}

	if err != nil {
		t.store.RecordCallEnd(id, monitor.CallResult{Duration: &elapsed, Error: err.Error()})
		t.store.RecordError(fmt.Sprintf("API call failed: %s %s - %v", req.Method, rawURL, err))
		log.Debug().Err(err).Str("method", req.Method).Str("url", rawURL).Msg("interceptor: call failed")
		return resp, err
	}

	status := resp.StatusCode
	res := monitor.CallResult{Status: &status, Duration: &elapsed}
	if status < 200 || status >= 400 {
		res.Error = fmt.Sprintf("HTTP %d %s", status, http.StatusText(status))
	}
	t.store.RecordCallEnd(id, res)
	return resp, nil
}

// Installer wraps a client's transport at most once and can restore it.
type Installer struct {
	store Recorder
	opts  Options

	mu        sync.Mutex
	installed bool
	client    *http.Client
	original  http.RoundTripper
}

// NewInstaller creates an installer for the given store.
func NewInstaller(store Recorder, opts Options) *Installer {
	return &Installer{store: store, opts: opts}
}

// Install decorates client's transport. It reports false and changes
// nothing when this installer is already active or the client is already
// intercepted.
func (in *Installer) Install(client *http.Client) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.installed || client == nil {
		return false
	}
	if _, ok := client.Transport.(*Transport); ok {
		return false
	}

	in.original = client.Transport
	in.client = client
	client.Transport = Wrap(client.Transport, in.store, in.opts)
	in.installed = true
	return true
}

// Uninstall restores the original transport. It reports false when nothing
// was installed.
func (in *Installer) Uninstall() bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.installed {
		return false
	}
	in.client.Transport = in.original
	in.client = nil
	in.original = nil
	in.installed = false
	return true
}

// Installed reports whether the installer is active.
func (in *Installer) Installed() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.installed
}
