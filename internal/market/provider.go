package market

import (
	"context"
)

// Region identifies a regional market basket
type Region string

const (
	RegionAsia   Region = "asia"
	RegionEurope Region = "europe"
)

// PriceProvider supplies historical bars and live quotes
type PriceProvider interface {
	// GetPriceHistory returns daily bars ascending by date. Callers need
	// at least 90 bars for full indicator coverage; fewer than 20 bars
	// means the engine refuses to guess.
	GetPriceHistory(ctx context.Context, symbol string, lookbackDays int) ([]PriceBar, error)
	GetLiveQuote(ctx context.Context, symbol string) (*Quote, error)
}

// NewsProvider supplies per-instrument and market-wide news
type NewsProvider interface {
	GetRecentNews(ctx context.Context, symbol string, lookbackHours int) ([]NewsItem, error)
	GetMarketNews(ctx context.Context, limit int) ([]NewsItem, error)
}

// MoodProvider supplies the fear/greed style mood index
type MoodProvider interface {
	GetFearGreedIndex(ctx context.Context) (*FearGreedReading, error)
}

// BasketProvider supplies regional market basket changes
type BasketProvider interface {
	GetRegionalBasketChanges(ctx context.Context, region Region) (map[string]BasketMember, error)
}

// KeywordProvider supplies the priority keyword tables. Implementations
// may fail; the sentiment subsystem falls back to its hard-coded tables.
type KeywordProvider interface {
	GetPriorityKeywords(ctx context.Context) (*KeywordTables, error)
}
