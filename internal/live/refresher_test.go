package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestFetchDecodesFields(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"latitude": "48.1", "longitude": "16.3"})
	}))
	defer srv.Close()

	r := NewRefresher(testLogger(), time.Second)
	fields, err := r.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if fields["latitude"] != "48.1" {
		t.Fatalf("latitude = %v, want 48.1", fields["latitude"])
	}
}

func TestFetchRejectsErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewRefresher(testLogger(), time.Second)
	if _, err := r.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestStartPushesPeriodically(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"latitude": "1"})
	}))
	defer srv.Close()

	r := NewRefresher(testLogger(), 10*time.Millisecond)

	got := make(chan map[string]any, 16)
	session := r.Start(context.Background(), srv.URL, func(fields map[string]any) {
		got <- fields
	})
	defer session.Stop()

	select {
	case fields := <-got:
		if fields["latitude"] != "1" {
			t.Fatalf("latitude = %v, want 1", fields["latitude"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no push within deadline")
	}
}

func TestStopCancelsFutureFetches(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	r := NewRefresher(testLogger(), 5*time.Millisecond)
	session := r.Start(context.Background(), srv.URL, func(map[string]any) {})

	time.Sleep(30 * time.Millisecond)
	session.Stop()
	after := hits.Load()

	time.Sleep(30 * time.Millisecond)
	if hits.Load() != after {
		t.Fatalf("fetches continued after Stop: %d then %d", after, hits.Load())
	}

	// Stop is idempotent.
	session.Stop()
}

func TestStaleResponsesDropped(t *testing.T) {
	t.Parallel()

	// The first request stalls until a later one has completed, so its
	// response arrives out of order and must not be delivered.
	var mu sync.Mutex
	var served int
	firstRelease := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		served++
		n := served
		mu.Unlock()
		if n == 1 {
			<-firstRelease
		}
		if n == 3 {
			close(firstRelease)
		}
		json.NewEncoder(w).Encode(map[string]any{"seq": n})
	}))
	defer srv.Close()

	r := NewRefresher(testLogger(), 5*time.Millisecond)

	var pushes []float64
	var pmu sync.Mutex
	done := make(chan struct{})
	session := r.Start(context.Background(), srv.URL, func(fields map[string]any) {
		pmu.Lock()
		defer pmu.Unlock()
		if seq, ok := fields["seq"].(float64); ok {
			pushes = append(pushes, seq)
			if len(pushes) >= 3 {
				select {
				case <-done:
				default:
					close(done)
				}
			}
		}
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("not enough pushes within deadline")
	}
	session.Stop()

	pmu.Lock()
	defer pmu.Unlock()
	for i := 1; i < len(pushes); i++ {
		if pushes[i] < pushes[i-1] {
			t.Fatalf("stale push delivered: %v", pushes)
		}
	}
}
