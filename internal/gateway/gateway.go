// Package gateway proxies the site's backend calls so the interceptor sees
// every one of them.
package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/rs/zerolog/log"
)

// ErrNoBackend is returned when no backend URL is configured.
var ErrNoBackend = errors.New("backend url not configured")

// Gateway is a reverse proxy to one backend.
type Gateway struct {
	target *url.URL
	proxy  *httputil.ReverseProxy
}

// New creates a gateway for backendURL whose outbound calls go through
// transport.
func New(backendURL string, transport http.RoundTripper) (*Gateway, error) {
	if backendURL == "" {
		return nil, ErrNoBackend
	}
	target, err := url.Parse(backendURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", backendURL)
	}

	g := &Gateway{target: target}
	g.proxy = &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.SetXForwarded()
		},
		Transport:    transport,
		ErrorHandler: g.handleError,
	}
	return g, nil
}

// Target returns the backend URL.
func (g *Gateway) Target() *url.URL { return g.target }

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.proxy.ServeHTTP(w, r)
}

func (g *Gateway) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if r.Context().Err() != nil {
		return
	}
	log.Warn().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("gateway: upstream call failed")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusBadGateway)
	fmt.Fprintf(w, `{"error":%q}`, "upstream unavailable")
}
