package fusion

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"stock-scenario-engine/internal/indicators"
	"stock-scenario-engine/internal/macro"
	"stock-scenario-engine/internal/sentiment"
)

// Directions of a fused prediction
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Weights are the static fusion weights. They must sum to 1.0; any
// other configuration is a programming error and fails construction.
type Weights struct {
	Technical float64 `json:"technical"`
	Sentiment float64 `json:"sentiment"`
	Volume    float64 `json:"volume"`
	Market    float64 `json:"market"`
	FearGreed float64 `json:"fear_greed"`
}

// DefaultWeights returns the production fusion weights
func DefaultWeights() Weights {
	return Weights{
		Technical: 0.35,
		Sentiment: 0.25,
		Volume:    0.15,
		Market:    0.15,
		FearGreed: 0.10,
	}
}

func (w Weights) sum() float64 {
	return w.Technical + w.Sentiment + w.Volume + w.Market + w.FearGreed
}

// Per-indicator weights for the technical composite
const (
	rsiWeight       = 0.5
	macdWeight      = 0.6
	maCrossWeight   = 0.7
	bollingerWeight = 0.4
	momentumWeight  = 0.5
)

// Inputs is everything the engine fuses for one instrument
type Inputs struct {
	Indicators     *indicators.IndicatorSet
	SentimentScore float64 // blended per-stock sentiment, -10..+10
	NewsCount      int
	MarketChange   float64 // daily percent change of the broad market
	FearGreed      int     // 0-100
	Urgent         sentiment.UrgentOverride
}

// FusedSignal is the bounded multi-signal combination. Every component
// is in [-1, 1]. Combined is the weighted sum, clamped to at most -0.7
// when the urgent-bearish override fired; the override itself stays
// visible on the struct.
type FusedSignal struct {
	Technical     float64                  `json:"technical"`
	Sentiment     float64                  `json:"sentiment"`
	Volume        float64                  `json:"volume"`
	Market        float64                  `json:"market"`
	FearGreed     float64                  `json:"fear_greed"`
	Combined      float64                  `json:"combined"`
	UrgentBearish bool                     `json:"urgent_bearish"`
	Override      sentiment.UrgentOverride `json:"override,omitempty"`
}

// Prediction is the sized price-range forecast derived from a fused signal
type Prediction struct {
	Direction       string  `json:"direction"`
	ChangePercent   float64 `json:"change_percent"`
	TargetPrice     float64 `json:"target_price"`
	PredictedLow    float64 `json:"predicted_low"`
	PredictedHigh   float64 `json:"predicted_high"`
	Confidence      float64 `json:"confidence"` // 30-95
	MoveMultiplier  float64 `json:"move_multiplier"`
}

// Engine combines technical, sentiment, volume, market and mood signals
// into one bounded composite and sizes a realistic price range from it.
type Engine struct {
	weights Weights
	logger  zerolog.Logger
}

// NewEngine creates a fusion engine. A weight table that does not sum
// to 1.0 is rejected loudly: it would silently corrupt every composite.
func NewEngine(weights Weights, logger zerolog.Logger) (*Engine, error) {
	if math.Abs(weights.sum()-1.0) > 1e-9 {
		return nil, fmt.Errorf("invalid fusion weights: sum %.4f, want 1.0", weights.sum())
	}
	return &Engine{
		weights: weights,
		logger:  logger.With().Str("component", "FusionEngine").Logger(),
	}, nil
}

// Fuse combines the inputs into a FusedSignal
func (e *Engine) Fuse(in Inputs) FusedSignal {
	ind := in.Indicators
	if ind == nil {
		ind = indicators.Compute(nil)
	}

	sentimentScore := e.dampenContradiction(in.SentimentScore, ind.Change1D)

	signal := FusedSignal{
		Technical: TechnicalComposite(ind),
		Sentiment: clamp(sentimentScore / 10),
		Volume:    volumeSignal(ind),
		Market:    clamp(in.MarketChange / 5),
		FearGreed: macro.Impact(in.FearGreed).Bias,
	}

	signal.Combined = signal.Technical*e.weights.Technical +
		signal.Sentiment*e.weights.Sentiment +
		signal.Volume*e.weights.Volume +
		signal.Market*e.weights.Market +
		signal.FearGreed*e.weights.FearGreed

	if in.Urgent.Active {
		signal.UrgentBearish = true
		signal.Override = in.Urgent
		if signal.Combined > -0.7 {
			signal.Combined = -0.7
		}
	}

	return signal
}

// dampenContradiction halves the sentiment component when the tape
// moved hard against it: a stock down over 2% with positive sentiment
// (or the mirror) means the news has not caught up with price.
func (e *Engine) dampenContradiction(sentimentScore, change1d float64) float64 {
	normalized := sentimentScore / 10
	if (change1d < -2.0 && normalized > 0.2) || (change1d > 2.0 && normalized < -0.2) {
		e.logger.Debug().
			Float64("change_1d", change1d).
			Float64("sentiment", sentimentScore).
			Msg("Price contradicts sentiment, halving sentiment influence")
		return sentimentScore * 0.5
	}
	return sentimentScore
}

// TechnicalComposite averages the directional contribution of each
// indicator, scaled by its fixed weight. Result is bounded [-1, 1].
func TechnicalComposite(ind *indicators.IndicatorSet) float64 {
	score := 0.0
	count := 0

	// RSI: oversold argues up, overbought argues down
	switch ind.RSI.Signal {
	case indicators.SignalOversoldBuy:
		score += ind.RSI.Strength * rsiWeight
	case indicators.SignalOverboughtSell:
		score -= ind.RSI.Strength * rsiWeight
	}
	count++

	// MACD: sign plus magnitude
	macdStrength := macdStrengthOf(ind)
	switch ind.MACD.Trend {
	case indicators.TrendStrongBullish:
		score += macdStrength * macdWeight
	case indicators.TrendBullish:
		score += macdStrength * macdWeight * 0.5
	case indicators.TrendStrongBearish:
		score -= macdStrength * macdWeight
	case indicators.TrendBearish:
		score -= macdStrength * macdWeight * 0.5
	}
	count++

	// Moving average cross
	if ind.GoldenCross {
		score += maCrossWeight
	} else if ind.DeathCross {
		score -= maCrossWeight
	}
	count++

	// Bollinger position
	switch ind.Bollinger.Signal {
	case indicators.BandOversold:
		score += bollingerWeight
	case indicators.BandBullish:
		score += bollingerWeight * 0.5
	case indicators.BandOverbought:
		score -= bollingerWeight
	case indicators.BandBearish:
		score -= bollingerWeight * 0.5
	}
	count++

	// Momentum, saturated around a 3% blended move
	score += math.Tanh(ind.Momentum/3) * momentumWeight
	count++

	return clamp(score / float64(count))
}

func macdStrengthOf(ind *indicators.IndicatorSet) float64 {
	if ind.Close <= 0 {
		return 0
	}
	return math.Min(math.Abs(ind.MACD.MACD)/ind.Close*100, 1)
}

// volumeSignal is zero for unremarkable volume; beyond a 1.2x ratio it
// scales with strength and takes the sign of the day's price change.
func volumeSignal(ind *indicators.IndicatorSet) float64 {
	ratio := ind.VolumeRatio
	if ratio <= 1.2 {
		return 0
	}

	strength := math.Min((ratio-1.2)/0.8, 1)
	if ratio > 1.5 {
		strength = math.Max(strength, 0.5)
	}

	if ind.Change1D < 0 {
		return -strength
	}
	return strength
}

func clamp(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
