package interceptor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/tinytelemetry/apiwatch/internal/model"
)

// HealthPath is never tracked so that probes do not pollute the store.
const HealthPath = "/api/health"

var (
	restPathMarkers = []string{"/rest/v1/", "/functions/v1/"}

	staticAssetRegex = regexp.MustCompile(`(?i)\.(js|mjs|cjs|jsx|ts|tsx|css|map|png|jpe?g|gif|svg|webp|avif|ico|bmp|woff2?|ttf|otf|eot|mp4|webm|mp3|wav|pdf)$`)

	devInternals = []string{
		"/@vite/", "/@fs/", "/@id/", "/@react-refresh", "/__vite",
		"/node_modules/", "hot-update", "/sockjs-node", "/_next/static/",
		"/__webpack", "/.well-known/appspecific/",
	}

	cdnHosts = []string{
		"fonts.googleapis.com", "fonts.gstatic.com", "cdn.jsdelivr.net",
		"unpkg.com", "cdnjs.cloudflare.com", "images.unsplash.com",
		"www.googletagmanager.com", "www.google-analytics.com", "cdn.gpteng.co",
	}

	devSchemes = map[string]bool{
		"chrome-extension": true, "moz-extension": true, "safari-extension": true,
		"devtools": true, "data": true, "blob": true, "ws": true, "wss": true,
	}
)

// Filter decides which calls are worth recording. It is a signal-to-noise
// heuristic, not a security boundary.
type Filter struct {
	// ExtraDenyHosts are excluded in addition to the built-in CDN list.
	ExtraDenyHosts []string
}

// Trackable reports whether a call to rawURL should produce a record.
// Deny rules take precedence over allow rules.
func (f Filter) Trackable(rawURL string) bool {
	if f.denied(rawURL) {
		return false
	}
	p := urlPath(rawURL)
	for _, marker := range restPathMarkers {
		if strings.Contains(p, marker) {
			return true
		}
	}
	return strings.Contains(p, "/api/") && !isHealthPath(p)
}

func isHealthPath(p string) bool {
	return p == HealthPath || strings.HasPrefix(p, HealthPath+"/")
}

func (f Filter) denied(rawURL string) bool {
	if i := strings.Index(rawURL, ":"); i > 0 && devSchemes[strings.ToLower(rawURL[:i])] {
		return true
	}
	p := urlPath(rawURL)
	if staticAssetRegex.MatchString(p) {
		return true
	}
	for _, marker := range devInternals {
		if strings.Contains(p, marker) {
			return true
		}
	}
	host := urlHost(rawURL)
	if host == "" {
		return false
	}
	for _, h := range cdnHosts {
		if hostMatches(host, h) {
			return true
		}
	}
	for _, h := range f.ExtraDenyHosts {
		if hostMatches(host, h) {
			return true
		}
	}
	return false
}

// Classifier assigns an origin to a URL.
type Classifier struct {
	// BackendHosts are host suffixes of the first-party REST backend.
	BackendHosts []string
	// SiteHosts are hosts treated as same-origin.
	SiteHosts []string
}

// Classify returns the origin of rawURL. Anything not recognized, including
// malformed URLs, is external.
func (c Classifier) Classify(rawURL string) model.Origin {
	u, err := url.Parse(rawURL)
	if err != nil {
		return model.OriginExternal
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range c.BackendHosts {
		if host != "" && hostMatches(host, h) {
			return model.OriginBackend
		}
	}
	for _, marker := range restPathMarkers {
		if strings.Contains(u.Path, marker) {
			return model.OriginBackend
		}
	}
	if host == "" {
		return model.OriginInternal
	}
	for _, h := range c.SiteHosts {
		if hostMatches(host, h) {
			return model.OriginInternal
		}
	}
	return model.OriginExternal
}

func hostMatches(host, pattern string) bool {
	pattern = strings.ToLower(strings.TrimPrefix(pattern, "."))
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}

func urlPath(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return u.Path
	}
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

func urlHost(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return strings.ToLower(u.Hostname())
	}
	return ""
}
