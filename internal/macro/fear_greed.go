package macro

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stock-scenario-engine/internal/market"
)

// Fear/greed risk classifications, bucketed by distance from neutral 50
const (
	RiskExtreme  = "extreme"
	RiskElevated = "elevated"
	RiskModerate = "moderate"
	RiskNormal   = "normal"
)

const (
	neutralIndex   = 50
	fearGreedTTL   = time.Hour
	minConfidence  = 30
	maxConfidence  = 95
)

// MarketImpact is the bias/multiplier pair derived from the mood index
type MarketImpact struct {
	Multiplier float64 `json:"multiplier"` // 1.0 - 1.5
	Bias       float64 `json:"bias"`       // -1 to +1
	RiskLevel  string  `json:"risk_level"`
}

// FearGreedService caches the externally sourced mood index for about
// an hour and degrades to a neutral 50 when the feed is down.
type FearGreedService struct {
	provider market.MoodProvider
	logger   zerolog.Logger

	mu        sync.RWMutex
	cached    *market.FearGreedReading
	fetchedAt time.Time
	ttl       time.Duration
}

// NewFearGreedService creates the mood index service
func NewFearGreedService(provider market.MoodProvider, logger zerolog.Logger) *FearGreedService {
	return &FearGreedService{
		provider: provider,
		logger:   logger.With().Str("component", "FearGreedService").Logger(),
		ttl:      fearGreedTTL,
	}
}

// Get returns the current mood index reading, cached up to the TTL.
// Fetch failures fall back to the neutral reading and are logged, never
// surfaced as errors.
func (s *FearGreedService) Get(ctx context.Context) market.FearGreedReading {
	s.mu.RLock()
	if s.cached != nil && time.Since(s.fetchedAt) < s.ttl {
		defer s.mu.RUnlock()
		return *s.cached
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil && time.Since(s.fetchedAt) < s.ttl {
		return *s.cached
	}

	if s.provider != nil {
		reading, err := s.provider.GetFearGreedIndex(ctx)
		if err == nil && reading != nil && reading.Value >= 0 && reading.Value <= 100 {
			s.cached = reading
			s.fetchedAt = time.Now()
			return *reading
		}
		if err != nil {
			s.logger.Warn().Err(err).Msg("Fear/greed feed unavailable, using neutral fallback")
		}
	}

	// Serve a stale value over the neutral default if we have one
	if s.cached != nil {
		return *s.cached
	}
	return market.FearGreedReading{Value: neutralIndex, Classification: "Neutral"}
}

// Invalidate drops the cached reading
func (s *FearGreedService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
}

// Impact converts an index value to its market impact pair.
// multiplier = 1 + 0.5*|v-50|/50, bias = (v-50)/50.
func Impact(value int) MarketImpact {
	distance := math.Abs(float64(value - neutralIndex))
	impact := MarketImpact{
		Multiplier: 1 + 0.5*distance/50,
		Bias:       float64(value-neutralIndex) / 50,
	}

	switch {
	case distance > 40:
		impact.RiskLevel = RiskExtreme
	case distance > 30:
		impact.RiskLevel = RiskElevated
	case distance > 20:
		impact.RiskLevel = RiskModerate
	default:
		impact.RiskLevel = RiskNormal
	}
	return impact
}

// AdjustConfidence dampens a confidence score when the mood index sits
// far from neutral: extremes are unreliable regimes. Reduction ramps
// from 15 to 20 beyond distance 40 and from 5 to 10 beyond 25. The
// result is clamped to [30, 95].
func AdjustConfidence(base float64, value int) float64 {
	distance := math.Abs(float64(value - neutralIndex))

	adjusted := base
	switch {
	case distance > 40:
		adjusted -= 15 + 5*math.Min((distance-40)/10, 1)
	case distance > 25:
		adjusted -= 5 + 5*math.Min((distance-25)/15, 1)
	}

	return math.Max(minConfidence, math.Min(maxConfidence, adjusted))
}
