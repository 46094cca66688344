package macro

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"stock-scenario-engine/internal/market"
)

// Region impact caps: the maximum percent a regional basket may push a
// prediction, per spec of the regional influence model.
const (
	EuropeMaxImpact = 0.30
	AsiaMaxImpact   = 0.20

	// DefaultInfluenceScale is the tanh saturation scale for the
	// weighted average change (in percent).
	DefaultInfluenceScale = 2.0
)

// BasketResult is the scored influence of one regional basket
type BasketResult struct {
	Region        market.Region `json:"region"`
	AvgChange     float64       `json:"avg_change"` // weight-normalized percent
	Influence     float64       `json:"influence"`  // tanh-bounded [-1, 1]
	ImpactPercent float64       `json:"impact_percent"`
	ValidMarkets  []string      `json:"valid_markets"`
	FailedMarkets []string      `json:"failed_markets,omitempty"`
}

// BasketService converts regional market-basket changes into bounded
// influence scores. Individual member failures are excluded from the
// weighted average and tracked for transparency; a total failure scores
// a neutral zero.
type BasketService struct {
	provider market.BasketProvider
	logger   zerolog.Logger
	scale    float64
}

// NewBasketService creates a basket service. A non-positive scale falls
// back to the default saturation scale.
func NewBasketService(provider market.BasketProvider, scale float64, logger zerolog.Logger) *BasketService {
	if scale <= 0 {
		scale = DefaultInfluenceScale
	}
	return &BasketService{
		provider: provider,
		logger:   logger.With().Str("component", "BasketService").Logger(),
		scale:    scale,
	}
}

// Score fetches one regional basket and converts it to an influence
// score. Fetch failure of the whole basket degrades to neutral zero.
func (s *BasketService) Score(ctx context.Context, region market.Region) BasketResult {
	result := BasketResult{Region: region}

	if s.provider == nil {
		return result
	}

	members, err := s.provider.GetRegionalBasketChanges(ctx, region)
	if err != nil {
		s.logger.Warn().Err(err).Str("region", string(region)).
			Msg("Regional basket unavailable, scoring neutral")
		return result
	}

	weightSum := 0.0
	changeSum := 0.0
	for symbol, member := range members {
		if member.Err != "" {
			result.FailedMarkets = append(result.FailedMarkets, symbol)
			continue
		}
		weight := member.Weight
		if weight <= 0 {
			weight = 1.0
		}
		weightSum += weight
		changeSum += member.ChangePercent * weight
		result.ValidMarkets = append(result.ValidMarkets, symbol)
	}
	sort.Strings(result.ValidMarkets)
	sort.Strings(result.FailedMarkets)

	if weightSum == 0 {
		return result
	}

	result.AvgChange = changeSum / weightSum
	result.Influence = math.Tanh(result.AvgChange / s.scale)
	result.ImpactPercent = math.Abs(result.Influence) * maxImpactFor(region)
	return result
}

func maxImpactFor(region market.Region) float64 {
	switch region {
	case market.RegionEurope:
		return EuropeMaxImpact
	case market.RegionAsia:
		return AsiaMaxImpact
	default:
		return AsiaMaxImpact
	}
}
