package scenario

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRefreshCycleWarmsWatchlist(t *testing.T) {
	gen := newTestGenerator(t, &fakePrices{bars: decliningBars(30, 100, -1)})

	var (
		mu   sync.Mutex
		seen []string
	)
	r := NewRefresher(gen, RefresherConfig{
		Watchlist: []string{"AAPL", "MSFT", "NVDA"},
		Interval:  time.Minute,
		Workers:   2,
	}, func(set *Set) {
		mu.Lock()
		seen = append(seen, set.Symbol)
		mu.Unlock()
	}, zerolog.Nop())

	r.refresh()

	result := r.LastResult()
	if result == nil {
		t.Fatal("expected a refresh result")
	}
	if result.Refreshed != 3 || result.Failed != 0 {
		t.Fatalf("refreshed = %d, failed = %d", result.Refreshed, result.Failed)
	}
	if len(seen) != 3 {
		t.Fatalf("onSet called %d times, want 3", len(seen))
	}
}

func TestRefreshCountsFailures(t *testing.T) {
	gen := newTestGenerator(t, &fakePrices{bars: decliningBars(5, 100, -1)})

	r := NewRefresher(gen, RefresherConfig{
		Watchlist: []string{"AAPL"},
		Workers:   1,
		Interval:  time.Minute,
	}, nil, zerolog.Nop())

	r.refresh()

	result := r.LastResult()
	if result.Failed != 1 || result.Refreshed != 0 {
		t.Fatalf("refreshed = %d, failed = %d", result.Refreshed, result.Failed)
	}
}
