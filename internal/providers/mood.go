package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stock-scenario-engine/config"
	"stock-scenario-engine/internal/market"
)

// fearGreedDTO is the wire format of the mood index feed
type fearGreedDTO struct {
	Value          int    `json:"value"`
	Classification string `json:"classification"`
}

// MoodClient fetches the fear/greed style mood index
type MoodClient struct {
	ds     *dualSource
	logger zerolog.Logger
}

func NewMoodClient(cfg config.MacroConfig, timeout time.Duration, logger zerolog.Logger) *MoodClient {
	componentLogger := logger.With().Str("component", "MoodClient").Logger()
	return &MoodClient{
		ds:     newDualSource(cfg.FearGreedURL, "", "", "", timeout, componentLogger),
		logger: componentLogger,
	}
}

// GetFearGreedIndex returns the current mood reading
func (c *MoodClient) GetFearGreedIndex(ctx context.Context) (*market.FearGreedReading, error) {
	var dto fearGreedDTO
	if err := c.ds.getJSON(ctx, "/v1/fear-greed", &dto); err != nil {
		return nil, fmt.Errorf("fear/greed fetch: %w", err)
	}
	if dto.Value < 0 || dto.Value > 100 {
		return nil, fmt.Errorf("fear/greed value %d out of range", dto.Value)
	}
	return &market.FearGreedReading{
		Value:          dto.Value,
		Classification: dto.Classification,
	}, nil
}

// quoter is the slice of the price provider the basket client needs
type quoter interface {
	GetLiveQuote(ctx context.Context, symbol string) (*market.Quote, error)
}

// basketDef maps index symbols to their basket weight
type basketDef map[string]float64

// Regional basket composition. Weights reflect rough market-cap shares
// within each region.
var regionalBaskets = map[market.Region]basketDef{
	market.RegionEurope: {
		"DAX":     0.30,
		"FTSE":    0.25,
		"CAC":     0.20,
		"FTSEMIB": 0.15,
		"IBEX":    0.10,
	},
	market.RegionAsia: {
		"NIKKEI": 0.35,
		"HSI":    0.30,
		"SENSEX": 0.20,
		"KOSPI":  0.15,
	},
}

// BasketClient resolves regional basket member changes by quoting each
// index. Members are fetched concurrently; a failed member carries its
// error and gets excluded from the weighted average downstream.
type BasketClient struct {
	quotes quoter
	logger zerolog.Logger
}

func NewBasketClient(quotes quoter, logger zerolog.Logger) *BasketClient {
	return &BasketClient{
		quotes: quotes,
		logger: logger.With().Str("component", "BasketClient").Logger(),
	}
}

// GetRegionalBasketChanges returns the daily change of every basket
// member for a region
func (c *BasketClient) GetRegionalBasketChanges(ctx context.Context, region market.Region) (map[string]market.BasketMember, error) {
	def, ok := regionalBaskets[region]
	if !ok {
		return nil, fmt.Errorf("unknown region %q", region)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	members := make(map[string]market.BasketMember, len(def))

	for symbol, weight := range def {
		wg.Add(1)
		go func(symbol string, weight float64) {
			defer wg.Done()

			member := market.BasketMember{Symbol: symbol, Weight: weight}
			quote, err := c.quotes.GetLiveQuote(ctx, symbol)
			if err != nil {
				member.Err = err.Error()
			} else {
				member.ChangePercent = quote.ChangePercent
			}

			mu.Lock()
			members[symbol] = member
			mu.Unlock()
		}(symbol, weight)
	}
	wg.Wait()

	return members, nil
}
