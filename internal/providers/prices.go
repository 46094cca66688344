package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"stock-scenario-engine/config"
	"stock-scenario-engine/internal/cache"
	"stock-scenario-engine/internal/market"
)

// candleDTO is the wire format for one daily bar
type candleDTO struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// quoteDTO is the wire format for a live quote
type quoteDTO struct {
	Symbol        string  `json:"symbol"`
	Current       float64 `json:"current"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	PreviousClose float64 `json:"previous_close"`
	Volume        float64 `json:"volume"`
	ChangePercent float64 `json:"change_percent"`
	Session       string  `json:"session"`
}

// PriceClient fetches bars and quotes over HTTP with a dual-source
// fallback. Quotes are held in a short memory cache so a burst of
// scenario requests does not hammer the feed.
type PriceClient struct {
	ds         *dualSource
	quoteCache *cache.Memory
	logger     zerolog.Logger
}

func NewPriceClient(cfg config.MarketDataConfig, logger zerolog.Logger) *PriceClient {
	componentLogger := logger.With().Str("component", "PriceClient").Logger()
	return &PriceClient{
		ds: newDualSource(
			cfg.PrimaryBaseURL, cfg.APIKey,
			cfg.FallbackBaseURL, cfg.FallbackAPIKey,
			time.Duration(cfg.RequestTimeout)*time.Second,
			componentLogger,
		),
		quoteCache: cache.NewMemory(cache.DefaultQuoteTTL),
		logger:     componentLogger,
	}
}

// GetPriceHistory returns daily bars ascending by date
func (c *PriceClient) GetPriceHistory(ctx context.Context, symbol string, lookbackDays int) ([]market.PriceBar, error) {
	path := fmt.Sprintf("/v1/history?symbol=%s&days=%d", url.QueryEscape(symbol), lookbackDays)

	var dtos []candleDTO
	if err := c.ds.getJSON(ctx, path, &dtos); err != nil {
		return nil, fmt.Errorf("price history %s: %w", symbol, err)
	}

	bars := make([]market.PriceBar, 0, len(dtos))
	for _, dto := range dtos {
		date, err := time.Parse("2006-01-02", dto.Date)
		if err != nil {
			c.logger.Warn().Str("date", dto.Date).Msg("skipping bar with unparseable date")
			continue
		}
		bars = append(bars, market.PriceBar{
			Date:     date,
			Open:     dto.Open,
			High:     dto.High,
			Low:      dto.Low,
			Close:    dto.Close,
			Volume:   dto.Volume,
			Interval: "1d",
		})
	}
	return bars, nil
}

// GetLiveQuote returns the current quote, served from the short cache
// when fresh
func (c *PriceClient) GetLiveQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	if cached, ok := c.quoteCache.Get(cache.QuoteKey(symbol)); ok {
		return cached.(*market.Quote), nil
	}

	var dto quoteDTO
	path := "/v1/quote?symbol=" + url.QueryEscape(symbol)
	if err := c.ds.getJSON(ctx, path, &dto); err != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, err)
	}

	quote := &market.Quote{
		Symbol:        dto.Symbol,
		Current:       dto.Current,
		Open:          dto.Open,
		High:          dto.High,
		Low:           dto.Low,
		PreviousClose: dto.PreviousClose,
		Volume:        dto.Volume,
		ChangePercent: dto.ChangePercent,
		Session:       sessionFromWire(dto.Session),
	}
	c.quoteCache.Set(cache.QuoteKey(symbol), quote)
	return quote, nil
}

func sessionFromWire(s string) market.SessionState {
	switch market.SessionState(s) {
	case market.SessionPreMarket, market.SessionOpen, market.SessionAfterHours, market.SessionClosed:
		return market.SessionState(s)
	default:
		return market.SessionClosed
	}
}
