package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"stock-scenario-engine/config"
	"stock-scenario-engine/internal/market"
)

// newsDTO is the wire format for one article
type newsDTO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"` // RFC 3339
}

// NewsClient fetches per-instrument and market-wide headlines
type NewsClient struct {
	ds     *dualSource
	logger zerolog.Logger
}

func NewNewsClient(cfg config.NewsConfig, logger zerolog.Logger) *NewsClient {
	componentLogger := logger.With().Str("component", "NewsClient").Logger()
	return &NewsClient{
		ds: newDualSource(
			cfg.BaseURL, cfg.APIKey, "", "",
			time.Duration(cfg.RequestTimeout)*time.Second,
			componentLogger,
		),
		logger: componentLogger,
	}
}

// GetRecentNews returns articles about one symbol within the lookback
func (c *NewsClient) GetRecentNews(ctx context.Context, symbol string, lookbackHours int) ([]market.NewsItem, error) {
	path := fmt.Sprintf("/v1/news?symbol=%s&hours=%d", url.QueryEscape(symbol), lookbackHours)
	return c.fetchItems(ctx, path)
}

// GetMarketNews returns the latest market-wide headlines
func (c *NewsClient) GetMarketNews(ctx context.Context, limit int) ([]market.NewsItem, error) {
	path := fmt.Sprintf("/v1/news/market?limit=%d", limit)
	return c.fetchItems(ctx, path)
}

func (c *NewsClient) fetchItems(ctx context.Context, path string) ([]market.NewsItem, error) {
	var dtos []newsDTO
	if err := c.ds.getJSON(ctx, path, &dtos); err != nil {
		return nil, fmt.Errorf("news fetch: %w", err)
	}

	items := make([]market.NewsItem, 0, len(dtos))
	for _, dto := range dtos {
		published, err := time.Parse(time.RFC3339, dto.PublishedAt)
		if err != nil {
			c.logger.Warn().Str("published_at", dto.PublishedAt).Msg("skipping article with unparseable timestamp")
			continue
		}
		items = append(items, market.NewsItem{
			Title:       dto.Title,
			Description: dto.Description,
			Source:      dto.Source,
			PublishedAt: published,
		})
	}
	return items, nil
}
