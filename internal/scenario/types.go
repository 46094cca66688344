package scenario

import (
	"time"
)

// Type labels the mutually-exclusive-by-type scenario variants. At most
// one scenario of each type survives a generation cycle.
type Type string

const (
	TypeBullish        Type = "bullish"
	TypeBearish        Type = "bearish"
	TypeReversal       Type = "momentum_reversal"
	TypeAccumulation   Type = "accumulation_phase"
	TypeDistribution   Type = "distribution_phase"
	TypeHighConfidence Type = "ai_high_confidence"
)

// Suggested actions carried on a scenario
const (
	ActionStrongBuy  = "strong_buy"
	ActionBuy        = "buy"
	ActionHold       = "hold"
	ActionSell       = "sell"
	ActionStrongSell = "strong_sell"
	ActionWatch      = "watch"
)

// Scenario is one labeled, ranked, bounded prediction for an
// instrument/timeframe. Scenarios are created per generation cycle,
// deactivated when superseded, and frozen once the session closed with
// a recorded outcome.
type Scenario struct {
	ID                    string             `json:"id"`
	Type                  Type               `json:"type"`
	Name                  string             `json:"name"`
	ExpectedChangePercent float64            `json:"expected_change_percent"`
	ExpectedChangeMin     float64            `json:"expected_change_min"`
	ExpectedChangeMax     float64            `json:"expected_change_max"`
	TargetPrice           float64            `json:"target_price"`
	Confidence            float64            `json:"confidence"` // 30-95
	TriggerIndicators     map[string]float64 `json:"trigger_indicators"`
	TriggerReasons        []string           `json:"trigger_reasons"`
	SuggestedAction       string             `json:"suggested_action"`
	UrgentOverride        bool               `json:"urgent_override"`
	ValidUntil            time.Time          `json:"valid_until"`
}

// Set is one generation cycle's scenario set for an instrument and
// timeframe. Exactly one set per (symbol, timeframe) is active at a
// time; recording an outcome price freezes the set permanently.
type Set struct {
	ID           string     `json:"id"`
	Symbol       string     `json:"symbol"`
	Timeframe    string     `json:"timeframe"`
	Scenarios    []Scenario `json:"scenarios"`
	GeneratedAt  time.Time  `json:"generated_at"`
	Active       bool       `json:"active"`
	OutcomePrice *float64   `json:"outcome_price,omitempty"`
}

// Frozen reports whether this set has a settled outcome and must not be
// regenerated by non-forced requests.
func (s *Set) Frozen() bool {
	return s != nil && s.OutcomePrice != nil
}

// TimeframeToday is the intraday timeframe with the aggressive
// regeneration policy during live trading hours.
const TimeframeToday = "today"
