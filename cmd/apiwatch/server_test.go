package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinytelemetry/apiwatch/internal/interceptor"
	"github.com/tinytelemetry/apiwatch/internal/model"
)

func testConfig(t *testing.T, backendURL string) appConfig {
	t.Helper()
	return appConfig{
		APIAddr:              "127.0.0.1:0",
		BackendURL:           backendURL,
		BackendHosts:         []string{"supabase.co"},
		SiteHosts:            []string{"localhost"},
		SocketPath:           filepath.Join(t.TempDir(), "apiwatch.sock"),
		SampleInterval:       time.Hour,
		ProbeTimeout:         time.Second,
		ProbeBaseURL:         "http://127.0.0.1:1",
		SlowThreshold:        time.Second,
		FailureThreshold:     3,
		MemoryWarnPercent:    99,
		ConnectivityInterval: time.Hour,
		ThrottleWindow:       time.Minute,
		ThrottleLimit:        100,
	}
}

// Not parallel: the service installs the interceptor on http.DefaultClient.
func TestService_GatewayCallsAreRecorded(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":1}]`)
	}))
	defer backend.Close()

	svc, err := newService(testConfig(t, backend.URL), prometheus.NewRegistry())
	require.NoError(t, err)
	defer svc.close()

	_, isInterceptor := http.DefaultClient.Transport.(*interceptor.Transport)
	require.True(t, isInterceptor, "default client not intercepted")

	router := svc.api.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rest/v1/rooms?select=*", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":1}]`, rec.Body.String())

	calls := svc.store.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, model.OriginBackend, calls[0].Origin)
	require.NotNil(t, calls[0].Status)
	assert.Equal(t, http.StatusOK, *calls[0].Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `apiwatch_api_calls_total{method="GET",origin="first-party-backend"} 1`),
		"metrics missing call counter:\n%s", rec.Body.String())
}

func TestService_CloseRestoresDefaultClient(t *testing.T) {
	original := http.DefaultClient.Transport

	svc, err := newService(testConfig(t, ""), prometheus.NewRegistry())
	require.NoError(t, err)
	svc.close()

	assert.Equal(t, original, http.DefaultClient.Transport)
}

func TestService_RecordingStartsSampler(t *testing.T) {
	svc, err := newService(testConfig(t, ""), prometheus.NewRegistry())
	require.NoError(t, err)
	defer svc.close()

	svc.store.StartRecording()
	assert.True(t, svc.sampler.Running())

	svc.store.StopRecording()
	assert.False(t, svc.sampler.Running())
}

func TestService_NoSamplingBeforeRecording(t *testing.T) {
	svc, err := newService(testConfig(t, ""), prometheus.NewRegistry())
	require.NoError(t, err)
	defer svc.close()

	require.NoError(t, svc.start())
	time.Sleep(50 * time.Millisecond)

	assert.False(t, svc.sampler.Running())
	assert.Empty(t, svc.store.Snapshots())
}

func TestService_BadBackendURL(t *testing.T) {
	original := http.DefaultClient.Transport

	_, err := newService(testConfig(t, "not a url"), prometheus.NewRegistry())
	require.Error(t, err)
	assert.Equal(t, original, http.DefaultClient.Transport)
}
