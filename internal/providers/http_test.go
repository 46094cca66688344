package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stock-scenario-engine/internal/circuit"
)

func TestDualSourceFallsBackOnPrimaryFailure(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer primary.Close()

	var fallbackHits atomic.Int64
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackHits.Add(1)
		w.Write([]byte(`{"value": 42}`))
	}))
	defer fallback.Close()

	ds := newDualSource(primary.URL, "", fallback.URL, "", 5*time.Second, zerolog.Nop())

	var out struct {
		Value int `json:"value"`
	}
	if err := ds.getJSON(context.Background(), "/v1/test", &out); err != nil {
		t.Fatalf("getJSON: %v", err)
	}
	if out.Value != 42 {
		t.Errorf("value = %d, want 42", out.Value)
	}
	if fallbackHits.Load() != 1 {
		t.Errorf("fallback hits = %d, want 1", fallbackHits.Load())
	}
}

func TestDualSourceSkipsOpenBreaker(t *testing.T) {
	var primaryHits atomic.Int64
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryHits.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer fallback.Close()

	ds := newDualSource(primary.URL, "", fallback.URL, "", 5*time.Second, zerolog.Nop())

	threshold := circuit.DefaultBreakerConfig().MaxConsecutiveFails
	var out struct{}
	for i := 0; i < threshold+3; i++ {
		if err := ds.getJSON(context.Background(), "/v1/test", &out); err != nil {
			t.Fatalf("getJSON call %d: %v", i, err)
		}
	}

	// Once the breaker trips, the primary stops receiving traffic
	if got := primaryHits.Load(); got != int64(threshold) {
		t.Errorf("primary hits = %d, want %d", got, threshold)
	}
}

func TestDualSourceSendsBearerAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ds := newDualSource(srv.URL, "secret-key", "", "", 5*time.Second, zerolog.Nop())

	var out struct{}
	if err := ds.getJSON(context.Background(), "/v1/test", &out); err != nil {
		t.Fatalf("getJSON: %v", err)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
}

func TestDualSourceAllSourcesDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ds := newDualSource(srv.URL, "", "", "", 5*time.Second, zerolog.Nop())

	var out struct{}
	if err := ds.getJSON(context.Background(), "/v1/test", &out); err == nil {
		t.Fatal("expected an error when every source fails")
	}
}
