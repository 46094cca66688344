package sentiment

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stock-scenario-engine/internal/market"
)

// fallbackTables is the hard-coded keyword table used when the external
// keyword source is unavailable. Weights are integer impact scores;
// bullish positive, bearish negative.
func fallbackTables() *market.KeywordTables {
	return &market.KeywordTables{
		Bullish: map[string]int{
			"earnings beat":   2, "beat estimates": 2, "strong earnings": 2,
			"revenue growth":  2, "guidance raise": 2, "record revenue": 2,
			"record profit":   2, "upgrade": 2, "outperform": 2,
			"product launch":  1, "merger": 1, "acquisition": 1,
			"partnership":     1, "expansion": 1, "breakthrough": 1,
			"rally":           1, "surge": 1, "buyback": 1,
		},
		Bearish: map[string]int{
			"earnings miss":   -2, "miss estimates": -2, "weak earnings": -2,
			"guidance cut":    -2, "bankruptcy": -2, "downgrade": -2,
			"revenue decline": -2, "fraud": -2, "sanction": -2,
			"layoffs":         -1, "recall": -1, "lawsuit": -1,
			"scandal":         -2, "investigation": -1, "underperform": -2,
			"warning":         -1, "decline": -1, "loss": -1,
			"tariff":          -2, "ban": -2, "embargo": -2,
		},
	}
}

// urgentBearishKeywords are the high-impact geopolitical/regulatory terms
// that force the bearish override when seen in very recent news
var urgentBearishKeywords = []string{
	"tariff", "trade war", "ban", "sanction", "embargo",
	"export control", "trade restriction", "blacklist",
}

// highImportanceKeywords mark regulatory/solvency-class news
var highImportanceKeywords = []string{
	"sanction", "bankruptcy", "fraud", "sec investigation",
	"delisting", "default", "tariff", "embargo", "recall",
}

// mediumImportanceKeywords mark earnings/corporate-action-class news
var mediumImportanceKeywords = []string{
	"earnings", "merger", "acquisition", "guidance",
	"upgrade", "downgrade", "rating", "dividend", "buyback",
}

// KeywordService serves the priority keyword tables with a hard-coded
// fallback and an explicit invalidation/reload contract. Tables are
// read-mostly: loaded once, cached until Invalidate is called.
type KeywordService struct {
	provider market.KeywordProvider
	logger   zerolog.Logger

	mu       sync.RWMutex
	tables   *market.KeywordTables
	loadedAt time.Time
}

// NewKeywordService creates a keyword service. Provider may be nil, in
// which case only the fallback tables are ever served.
func NewKeywordService(provider market.KeywordProvider, logger zerolog.Logger) *KeywordService {
	return &KeywordService{
		provider: provider,
		logger:   logger.With().Str("component", "KeywordService").Logger(),
	}
}

// Tables returns the current keyword tables, loading them on first use.
// A provider failure degrades to the hard-coded fallback table.
func (s *KeywordService) Tables(ctx context.Context) *market.KeywordTables {
	s.mu.RLock()
	if s.tables != nil {
		defer s.mu.RUnlock()
		return s.tables
	}
	s.mu.RUnlock()

	return s.reload(ctx)
}

// Invalidate drops the cached tables so the next read reloads them
func (s *KeywordService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = nil
}

// LoadedAt reports when the current tables were loaded
func (s *KeywordService) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

func (s *KeywordService) reload(ctx context.Context) *market.KeywordTables {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tables != nil {
		return s.tables
	}

	if s.provider != nil {
		tables, err := s.provider.GetPriorityKeywords(ctx)
		if err == nil && tables != nil && (len(tables.Bearish) > 0 || len(tables.Bullish) > 0) {
			s.tables = tables
			s.loadedAt = time.Now()
			return s.tables
		}
		if err != nil {
			s.logger.Warn().Err(err).Msg("Keyword source unavailable, using fallback tables")
		}
	}

	s.tables = fallbackTables()
	s.loadedAt = time.Now()
	return s.tables
}
