package providers

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"stock-scenario-engine/internal/market"
)

// MockProvider simulates every external feed for local development and
// demos. Prices follow a random walk seeded per symbol so repeated
// calls within a process stay coherent.
type MockProvider struct {
	mu     sync.Mutex
	prices map[string]float64
	rng    *rand.Rand
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		prices: map[string]float64{
			"AAPL":    190.0,
			"MSFT":    420.0,
			"NVDA":    880.0,
			"GOOG":    175.0,
			"AMZN":    185.0,
			"DAX":     18500.0,
			"CAC":     8100.0,
			"FTSE":    8300.0,
			"FTSEMIB": 34500.0,
			"IBEX":    11200.0,
			"NIKKEI":  39000.0,
			"HSI":     17800.0,
			"SENSEX":  73500.0,
			"KOSPI":   2700.0,
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockProvider) basePrice(symbol string) float64 {
	if p, ok := m.prices[symbol]; ok {
		return p
	}
	m.prices[symbol] = 50 + m.rng.Float64()*450
	return m.prices[symbol]
}

// GetPriceHistory generates a random-walk daily history ending at the
// symbol's current simulated price
func (m *MockProvider) GetPriceHistory(_ context.Context, symbol string, lookbackDays int) ([]market.PriceBar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	end := m.basePrice(symbol)
	bars := make([]market.PriceBar, lookbackDays)
	price := end * math.Pow(1.001, float64(-lookbackDays)) // gentle upward drift back-projected

	day := time.Now().AddDate(0, 0, -lookbackDays)
	for i := range bars {
		change := (m.rng.Float64() - 0.495) * 0.02
		open := price
		price *= 1 + change
		high := math.Max(open, price) * (1 + m.rng.Float64()*0.005)
		low := math.Min(open, price) * (1 - m.rng.Float64()*0.005)

		bars[i] = market.PriceBar{
			Date:     day.AddDate(0, 0, i),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    price,
			Volume:   1_000_000 + m.rng.Float64()*5_000_000,
			Interval: "1d",
		}
	}
	m.prices[symbol] = price
	return bars, nil
}

// GetLiveQuote returns a simulated live quote with a small random move
func (m *MockProvider) GetLiveQuote(_ context.Context, symbol string) (*market.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	price := m.basePrice(symbol)
	change := (m.rng.Float64() - 0.5) * 0.01
	current := price * (1 + change)
	m.prices[symbol] = current

	return &market.Quote{
		Symbol:        symbol,
		Current:       current,
		Open:          price,
		High:          current * 1.005,
		Low:           current * 0.995,
		PreviousClose: price,
		Volume:        2_000_000 + m.rng.Float64()*8_000_000,
		ChangePercent: change * 100,
		Session:       mockSession(time.Now()),
	}, nil
}

func mockSession(now time.Time) market.SessionState {
	hour := now.UTC().Hour()
	switch {
	case hour >= 14 && hour < 21: // 09:30-16:00 Eastern, roughly
		return market.SessionOpen
	case hour >= 9 && hour < 14:
		return market.SessionPreMarket
	case hour >= 21 && hour < 24:
		return market.SessionAfterHours
	default:
		return market.SessionClosed
	}
}

var mockHeadlines = []struct {
	title string
	desc  string
}{
	{"Quarterly earnings beat expectations", "Revenue growth driven by strong product demand and expanding margins."},
	{"Analyst upgrade lifts outlook", "Price target raised on record demand and a breakthrough product cycle."},
	{"Regulatory probe weighs on shares", "An ongoing investigation raises concern over potential fines."},
	{"Sector rally continues", "Broad gains as investors rotate into growth names."},
	{"Supply chain disruption flagged", "Component shortages and weak guidance cloud the near-term outlook."},
}

// GetRecentNews returns a few simulated articles for the symbol
func (m *MockProvider) GetRecentNews(_ context.Context, symbol string, lookbackHours int) ([]market.NewsItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 1 + m.rng.Intn(3)
	items := make([]market.NewsItem, count)
	for i := range items {
		h := mockHeadlines[m.rng.Intn(len(mockHeadlines))]
		items[i] = market.NewsItem{
			Title:       symbol + ": " + h.title,
			Description: h.desc,
			Source:      "mock-wire",
			PublishedAt: time.Now().Add(-time.Duration(m.rng.Intn(lookbackHours)) * time.Hour),
		}
	}
	return items, nil
}

// GetMarketNews returns simulated market-wide headlines
func (m *MockProvider) GetMarketNews(_ context.Context, limit int) ([]market.NewsItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit > len(mockHeadlines) {
		limit = len(mockHeadlines)
	}
	items := make([]market.NewsItem, limit)
	for i := range items {
		h := mockHeadlines[i]
		items[i] = market.NewsItem{
			Title:       h.title,
			Description: h.desc,
			Source:      "mock-wire",
			PublishedAt: time.Now().Add(-time.Duration(i+1) * time.Hour),
		}
	}
	return items, nil
}

// GetFearGreedIndex returns a simulated mood reading drifting around
// neutral
func (m *MockProvider) GetFearGreedIndex(_ context.Context) (*market.FearGreedReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value := 35 + m.rng.Intn(31) // 35-65, mildly emotional at most
	classification := "Neutral"
	if value < 45 {
		classification = "Fear"
	} else if value > 55 {
		classification = "Greed"
	}
	return &market.FearGreedReading{Value: value, Classification: classification}, nil
}

// GetRegionalBasketChanges returns simulated basket member changes
func (m *MockProvider) GetRegionalBasketChanges(_ context.Context, region market.Region) (map[string]market.BasketMember, error) {
	def, ok := regionalBaskets[region]
	if !ok {
		return map[string]market.BasketMember{}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	members := make(map[string]market.BasketMember, len(def))
	for symbol, weight := range def {
		members[symbol] = market.BasketMember{
			Symbol:        symbol,
			ChangePercent: (m.rng.Float64() - 0.5) * 3,
			Weight:        weight,
		}
	}
	return members, nil
}

// GetPriorityKeywords reports no remote tables so the sentiment
// fallback vocabulary is used
func (m *MockProvider) GetPriorityKeywords(_ context.Context) (*market.KeywordTables, error) {
	return nil, nil
}
