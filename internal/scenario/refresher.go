package scenario

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RefresherConfig controls the background watchlist refresh loop.
type RefresherConfig struct {
	Watchlist []string
	Interval  time.Duration
	Workers   int
}

// RefreshResult summarizes a completed refresh cycle.
type RefreshResult struct {
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Refreshed int           `json:"refreshed"`
	Failed    int           `json:"failed"`
}

// Refresher keeps scenario sets for watchlist symbols warm so API reads hit
// the cache during market hours.
type Refresher struct {
	gen      *Generator
	cfg      RefresherConfig
	onSet    func(*Set) // invoked for every refreshed set; may be nil
	stopChan chan struct{}
	wg       sync.WaitGroup
	logger   zerolog.Logger

	mu         sync.RWMutex
	lastResult *RefreshResult
}

// NewRefresher creates a background refresher. onSet is called with each
// refreshed set, typically to broadcast it over WebSocket.
func NewRefresher(gen *Generator, cfg RefresherConfig, onSet func(*Set), logger zerolog.Logger) *Refresher {
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Refresher{
		gen:      gen,
		cfg:      cfg,
		onSet:    onSet,
		stopChan: make(chan struct{}),
		logger:   logger.With().Str("component", "refresher").Logger(),
	}
}

// Start begins the refresh loop. No-op when the watchlist is empty.
func (r *Refresher) Start() {
	if len(r.cfg.Watchlist) == 0 {
		r.logger.Info().Msg("Watchlist empty, refresher disabled")
		return
	}

	r.wg.Add(1)
	go r.runLoop()
	r.logger.Info().
		Int("symbols", len(r.cfg.Watchlist)).
		Dur("interval", r.cfg.Interval).
		Msg("Watchlist refresher started")
}

// Stop signals the loop to exit and waits for in-flight work.
func (r *Refresher) Stop() {
	close(r.stopChan)
	r.wg.Wait()
}

// LastResult returns the most recent cycle summary, or nil before the first run.
func (r *Refresher) LastResult() *RefreshResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastResult
}

func (r *Refresher) runLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.refresh()

	for {
		select {
		case <-ticker.C:
			r.refresh()
		case <-r.stopChan:
			r.logger.Info().Msg("Watchlist refresher stopped")
			return
		}
	}
}

func (r *Refresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	symbolChan := make(chan string, len(r.cfg.Watchlist))
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok, bad int
	)

	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range symbolChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				set, err := r.gen.GenerateScenarios(ctx, symbol, TimeframeToday, false)
				mu.Lock()
				if err != nil {
					bad++
				} else {
					ok++
				}
				mu.Unlock()
				if err != nil {
					r.logger.Warn().Err(err).Str("symbol", symbol).Msg("Refresh failed")
					continue
				}
				if r.onSet != nil {
					r.onSet(set)
				}
			}
		}()
	}

	for _, symbol := range r.cfg.Watchlist {
		select {
		case symbolChan <- symbol:
		case <-ctx.Done():
		}
	}
	close(symbolChan)
	wg.Wait()

	result := &RefreshResult{
		StartTime: start,
		Duration:  time.Since(start),
		Refreshed: ok,
		Failed:    bad,
	}

	r.mu.Lock()
	r.lastResult = result
	r.mu.Unlock()

	r.logger.Debug().
		Int("refreshed", ok).
		Int("failed", bad).
		Dur("took", result.Duration).
		Msg("Refresh cycle complete")
}
