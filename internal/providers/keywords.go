package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stock-scenario-engine/internal/market"
)

// KeywordClient fetches remotely managed keyword weight tables so the
// sentiment vocabulary can be tuned without a redeploy.
type KeywordClient struct {
	ds     *dualSource
	logger zerolog.Logger
}

func NewKeywordClient(sourceURL string, timeout time.Duration, logger zerolog.Logger) *KeywordClient {
	componentLogger := logger.With().Str("component", "KeywordClient").Logger()
	return &KeywordClient{
		ds:     newDualSource(sourceURL, "", "", "", timeout, componentLogger),
		logger: componentLogger,
	}
}

// GetPriorityKeywords returns the remote keyword tables
func (c *KeywordClient) GetPriorityKeywords(ctx context.Context) (*market.KeywordTables, error) {
	var tables market.KeywordTables
	if err := c.ds.getJSON(ctx, "/v1/keywords", &tables); err != nil {
		return nil, fmt.Errorf("keyword tables fetch: %w", err)
	}
	return &tables, nil
}
