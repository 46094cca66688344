// Package providers implements the external market data clients: price
// history and quotes with a dual-source fallback path, news feeds, the
// fear/greed mood index, regional basket quotes, and remote keyword
// tables. Every client degrades instead of failing hard; circuit
// breakers skip sources that keep erroring.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"stock-scenario-engine/internal/circuit"
)

// source is one HTTP data source guarded by a circuit breaker
type source struct {
	baseURL string
	apiKey  string
	breaker *circuit.Breaker
}

// dualSource tries the primary source first and falls back to the
// secondary. A source whose breaker is open is skipped outright.
type dualSource struct {
	sources    []*source
	httpClient *http.Client
	logger     zerolog.Logger
}

func newDualSource(primaryURL, primaryKey, fallbackURL, fallbackKey string, timeout time.Duration, logger zerolog.Logger) *dualSource {
	ds := &dualSource{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	ds.sources = append(ds.sources, &source{
		baseURL: primaryURL,
		apiKey:  primaryKey,
		breaker: circuit.NewBreaker("primary", nil),
	})
	if fallbackURL != "" {
		ds.sources = append(ds.sources, &source{
			baseURL: fallbackURL,
			apiKey:  fallbackKey,
			breaker: circuit.NewBreaker("fallback", nil),
		})
	}
	return ds
}

// getJSON fetches path from the first available source and decodes the
// response into dest. path is relative, starting with a slash.
func (ds *dualSource) getJSON(ctx context.Context, path string, dest interface{}) error {
	var lastErr error
	for _, src := range ds.sources {
		if ok, reason := src.breaker.Allow(); !ok {
			ds.logger.Debug().Str("reason", reason).Msg("source skipped by breaker")
			continue
		}

		err := ds.fetch(ctx, src, path, dest)
		if err == nil {
			src.breaker.RecordSuccess()
			return nil
		}
		src.breaker.RecordFailure()
		lastErr = err
		ds.logger.Warn().Err(err).Str("base", src.baseURL).Msg("source fetch failed")
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all sources unavailable")
	}
	return lastErr
}

func (ds *dualSource) fetch(ctx context.Context, src *source, path string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if src.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+src.apiKey)
	}

	resp, err := ds.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
