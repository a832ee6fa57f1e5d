package socketrpc_test

import (
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/tinytelemetry/apiwatch/internal/model"
	"github.com/tinytelemetry/apiwatch/internal/monitor"
	"github.com/tinytelemetry/apiwatch/internal/socketrpc"
)

func startTestServer(t *testing.T) (string, *socketrpc.Server, *monitor.Store, *int) {
	t.Helper()
	store := monitor.NewStore(monitor.Config{})
	triggered := 0
	sockPath := filepath.Join(t.TempDir(), "test.sock")
	srv := socketrpc.NewServer(sockPath, store, func() { triggered++ })
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	return sockPath, srv, store, &triggered
}

func TestRoundtrip(t *testing.T) {
	sockPath, srv, store, triggered := startTestServer(t)
	defer srv.Stop()

	id := store.RecordCallStart("https://x.supabase.co/rest/v1/rooms", http.MethodGet, model.OriginBackend)
	status := 200
	d := 40 * time.Millisecond
	store.RecordCallEnd(id, monitor.CallResult{Status: &status, Duration: &d})
	store.RecordCallStart("/api/bookings", http.MethodPost, model.OriginInternal)
	store.RecordError("boom")
	store.RecordSnapshot(model.SystemSnapshot{Health: model.HealthHealthy})

	client, err := socketrpc.Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	t.Run("Analytics", func(t *testing.T) {
		a, err := client.Analytics()
		if err != nil {
			t.Fatal(err)
		}
		if a.TotalCalls != 2 {
			t.Fatalf("total calls = %d, want 2", a.TotalCalls)
		}
	})

	t.Run("RecentCalls", func(t *testing.T) {
		calls, err := client.RecentCalls(1)
		if err != nil {
			t.Fatal(err)
		}
		if len(calls) != 1 || calls[0].URL != "/api/bookings" {
			t.Fatalf("unexpected calls: %v", calls)
		}
		all, err := client.RecentCalls(0)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 || all[1].Duration == nil || *all[1].Duration != d {
			t.Fatalf("unexpected calls: %v", all)
		}
	})

	t.Run("Snapshots", func(t *testing.T) {
		snaps, err := client.Snapshots()
		if err != nil {
			t.Fatal(err)
		}
		if len(snaps) != 1 || snaps[0].Health != model.HealthHealthy {
			t.Fatalf("unexpected snapshots: %v", snaps)
		}
	})

	t.Run("ErrorLog", func(t *testing.T) {
		lines, err := client.ErrorLog()
		if err != nil {
			t.Fatal(err)
		}
		if len(lines) != 1 {
			t.Fatalf("unexpected error log: %v", lines)
		}
	})

	t.Run("ThrottleEvents", func(t *testing.T) {
		events, err := client.ThrottleEvents()
		if err != nil {
			t.Fatal(err)
		}
		if len(events) != 0 {
			t.Fatalf("unexpected throttle events: %v", events)
		}
	})

	t.Run("Recording", func(t *testing.T) {
		if err := client.StartRecording(); err != nil {
			t.Fatal(err)
		}
		on, err := client.IsRecording()
		if err != nil || !on {
			t.Fatalf("IsRecording = %v, %v", on, err)
		}
		if err := client.StopRecording(); err != nil {
			t.Fatal(err)
		}
		if store.IsRecording() {
			t.Fatal("store still recording")
		}
	})

	t.Run("Session", func(t *testing.T) {
		before, err := client.SessionStats()
		if err != nil {
			t.Fatal(err)
		}
		session, err := client.StartNewSession()
		if err != nil {
			t.Fatal(err)
		}
		if session.ID == before.SessionID || session.ID != store.Session().ID {
			t.Fatalf("session id %q, before %q", session.ID, before.SessionID)
		}
	})

	t.Run("ClearAndTrigger", func(t *testing.T) {
		store.RecordError("again")
		if err := client.ClearAll(); err != nil {
			t.Fatal(err)
		}
		if len(store.Errors()) != 0 {
			t.Fatal("store not cleared")
		}
		if err := client.TriggerSample(); err != nil {
			t.Fatal(err)
		}
		if *triggered != 1 {
			t.Fatalf("triggered = %d, want 1", *triggered)
		}
	})
}

func TestApplicationErrorIsRPCError(t *testing.T) {
	store := monitor.NewStore(monitor.Config{})
	sockPath := filepath.Join(t.TempDir(), "nosampler.sock")
	srv := socketrpc.NewServer(sockPath, store, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop()

	client, err := socketrpc.Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	err = client.TriggerSample()
	var rpcErr *socketrpc.RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != socketrpc.CodeAppError {
		t.Fatalf("expected RPCError with app code, got %v", err)
	}
}

func TestSecondServerRefused(t *testing.T) {
	sockPath, srv, _, _ := startTestServer(t)
	defer srv.Stop()

	other := socketrpc.NewServer(sockPath, monitor.NewStore(monitor.Config{}), nil)
	if err := other.Start(); err == nil {
		other.Stop()
		t.Fatal("expected second server to be refused")
	}
}

func TestDialFailure(t *testing.T) {
	_, err := socketrpc.Dial(filepath.Join(t.TempDir(), "nonexistent.sock"))
	if err == nil {
		t.Fatal("expected error dialing nonexistent socket")
	}
}

func TestServerStopCleansSocket(t *testing.T) {
	sockPath, srv, _, _ := startTestServer(t)
	srv.Stop()

	if _, err := socketrpc.Dial(sockPath); err == nil {
		t.Fatal("expected dial to fail after server stop")
	}
}

func TestStopIdempotent(t *testing.T) {
	_, srv, _, _ := startTestServer(t)
	srv.Stop()
	srv.Stop()
}

func TestStopClosesConns(t *testing.T) {
	sockPath, srv, _, _ := startTestServer(t)
	client, err := socketrpc.Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	// Make sure the server has accepted the connection before stopping.
	if _, err := client.IsRecording(); err != nil {
		t.Fatalf("IsRecording: %v", err)
	}
	srv.Stop()

	done := make(chan error, 1)
	go func() {
		_, callErr := client.IsRecording()
		done <- callErr
	}()

	select {
	case callErr := <-done:
		if callErr == nil {
			t.Fatal("expected client call to fail after server stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client call hung after server stop")
	}
}
