package scenario

import (
	"fmt"
	"math"
	"time"

	"stock-scenario-engine/internal/fusion"
	"stock-scenario-engine/internal/indicators"
)

// Bearish hard triggers
const (
	momentumHardTrigger = -3.5 // blended momentum below this forces a bearish primary
	heavyDropPercent    = -4.0 // single-day drop earning the full drop weight
	heavyDropScore      = 4.0
)

// evalContext is the evidence one generation cycle evaluates rules on.
type evalContext struct {
	Indicators *indicators.IndicatorSet
	Signal     fusion.FusedSignal
	Prediction fusion.Prediction
	Sentiment  float64 // blended, -10..+10
	Now        time.Time
}

// candidate is a rule's raw output before target sizing and dedupe.
type candidate struct {
	Type       Type
	Name       string
	Direction  int     // +1 up, -1 down
	Score      float64 // 0-12 directional evidence
	Confidence float64 // 30-95
	Reasons    []string
	Action     string
}

// directionScores accumulates weighted directional evidence on the
// 0-12 scale. Each concern contributes a capped share: RSI distance,
// MACD trend, momentum (with the full heavy-drop weight for a >4%
// single-day fall), moving-average crosses, sentiment, and
// directional volume conviction.
func directionScores(ctx evalContext) (bull, bear float64, bullReasons, bearReasons []string) {
	ind := ctx.Indicators

	// RSI distance from neutral, up to 2.5 points
	if d := 50 - ind.RSI.Value; d > 0 {
		bull += math.Min(d/20, 2.5)
		if ind.RSI.Signal == indicators.SignalOversoldBuy {
			bullReasons = append(bullReasons, fmt.Sprintf("RSI oversold at %.1f", ind.RSI.Value))
		}
	} else if d < 0 {
		bear += math.Min(-d/20, 2.5)
		if ind.RSI.Signal == indicators.SignalOverboughtSell {
			bearReasons = append(bearReasons, fmt.Sprintf("RSI overbought at %.1f", ind.RSI.Value))
		}
	}

	// MACD trend, up to 2 points
	switch ind.MACD.Trend {
	case indicators.TrendStrongBullish:
		bull += 2
		bullReasons = append(bullReasons, "strong bullish MACD")
	case indicators.TrendBullish:
		bull++
	case indicators.TrendStrongBearish:
		bear += 2
		bearReasons = append(bearReasons, "strong bearish MACD")
	case indicators.TrendBearish:
		bear++
	}

	// Blended momentum, up to 3 points, plus the full drop weight for a
	// heavy single-day fall
	if ind.Momentum > 0 {
		bull += math.Min(ind.Momentum, 3)
	} else {
		bear += math.Min(-ind.Momentum, 3)
	}
	if ind.Change1D <= heavyDropPercent {
		bear += heavyDropScore
		bearReasons = append(bearReasons, fmt.Sprintf("heavy single-day drop %.1f%%", ind.Change1D))
	}

	// Moving-average crosses, 1.5 points
	if ind.GoldenCross {
		bull += 1.5
		bullReasons = append(bullReasons, "golden cross (SMA20 over SMA50)")
	}
	if ind.DeathCross {
		bear += 1.5
		bearReasons = append(bearReasons, "death cross (SMA20 under SMA50)")
	}

	// Blended sentiment, up to 1.5 points
	if ctx.Sentiment > 0 {
		bull += math.Min(ctx.Sentiment/3, 1.5)
		if ctx.Sentiment > 3 {
			bullReasons = append(bullReasons, fmt.Sprintf("positive sentiment %.1f", ctx.Sentiment))
		}
	} else if ctx.Sentiment < 0 {
		bear += math.Min(-ctx.Sentiment/3, 1.5)
		if ctx.Sentiment < -3 {
			bearReasons = append(bearReasons, fmt.Sprintf("negative sentiment %.1f", ctx.Sentiment))
		}
	}

	// Directional volume conviction, 1 point
	if ind.VolumeRatio > 1.5 {
		if ind.Change1D > 0 {
			bull++
			bullReasons = append(bullReasons, fmt.Sprintf("volume %.1fx average on an up day", ind.VolumeRatio))
		} else if ind.Change1D < 0 {
			bear++
			bearReasons = append(bearReasons, fmt.Sprintf("volume %.1fx average on a down day", ind.VolumeRatio))
		}
	}

	return bull, bear, bullReasons, bearReasons
}

// ruleFn evaluates one scenario family against the evidence. Evaluators
// run in a fixed order: duplicates by type are dropped, first wins.
// emitted holds the types produced by earlier rules in the cycle.
type ruleFn func(ctx evalContext, emitted map[Type]bool) []candidate

var ruleOrder = []ruleFn{
	highConfidenceRule,
	directionalRules,
	reversalRule,
	accumulationRule,
	distributionRule,
}

// seasonalBias is a small calendar prior in [-1, 1]: the historically
// strong turn-of-year months lean positive, September leans negative.
func seasonalBias(m time.Month) float64 {
	switch m {
	case time.January, time.April:
		return 0.2
	case time.November, time.December:
		return 0.3
	case time.September:
		return -0.4
	case time.October:
		return -0.2
	default:
		return 0
	}
}

// highConfidenceRule emits a composite scenario when the blended
// technical / pattern / sentiment / seasonal evidence crosses 50%.
func highConfidenceRule(ctx evalContext, _ map[Type]bool) []candidate {
	ind := ctx.Indicators

	pattern := 0.0
	if ind.Consolidation.Consolidating {
		pattern += 0.4
	}
	if ind.Divergence.Bullish || ind.Divergence.Bearish {
		pattern += 0.4
	}
	if ind.Bollinger.Squeeze {
		pattern += 0.2
	}

	seasonal := seasonalBias(ctx.Now.Month())

	blend := 0.35*math.Abs(ctx.Signal.Technical) +
		0.25*pattern +
		0.25*math.Abs(ctx.Sentiment)/10 +
		0.15*math.Abs(seasonal)
	if blend < 0.5 {
		return nil
	}

	direction := 1
	if ctx.Signal.Combined < 0 {
		direction = -1
	}
	action := ActionBuy
	if direction < 0 {
		action = ActionSell
	}
	return []candidate{{
		Type:       TypeHighConfidence,
		Name:       "AI High Confidence",
		Direction:  direction,
		Score:      blend * 12,
		Confidence: clampConfidence(50 + blend*40),
		Reasons:    []string{fmt.Sprintf("composite evidence blend %.0f%%", blend*100)},
		Action:     action,
	}}
}

// directionalRules emits the primary bullish or bearish scenario from
// the direction scores, and a weaker secondary in the opposite
// direction when the opposing evidence is non-trivial. A momentum
// collapse below the hard trigger forces the bearish primary
// regardless of the score comparison.
func directionalRules(ctx evalContext, _ map[Type]bool) []candidate {
	bull, bear, bullReasons, bearReasons := directionScores(ctx)

	hardBearish := ctx.Indicators.Momentum < momentumHardTrigger || ctx.Signal.UrgentBearish
	bearPrimary := hardBearish || bear > bull

	primaryScore, secondaryScore := bull, bear
	if bearPrimary {
		primaryScore, secondaryScore = bear, bull
	}

	var out []candidate
	primary := candidate{
		Score:      math.Min(primaryScore, 12),
		Confidence: clampConfidence(ctx.Prediction.Confidence + (primaryScore-secondaryScore)*2),
	}
	if bearPrimary {
		primary.Type = TypeBearish
		primary.Name = "Bearish Pressure"
		primary.Direction = -1
		primary.Reasons = bearReasons
		primary.Action = ActionSell
		if hardBearish {
			primary.Reasons = append(primary.Reasons, "momentum collapse")
			primary.Action = ActionStrongSell
		}
		if ctx.Signal.UrgentBearish {
			primary.Reasons = append(primary.Reasons, "urgent bearish news override")
		}
	} else {
		primary.Type = TypeBullish
		primary.Name = "Bullish Continuation"
		primary.Direction = 1
		primary.Reasons = bullReasons
		primary.Action = ActionBuy
		if primaryScore >= 8 {
			primary.Action = ActionStrongBuy
		}
	}
	out = append(out, primary)

	// Opposite-direction hedge for balance. Only a strong-drop context
	// with trivial opposing evidence suppresses it.
	if !(hardBearish && secondaryScore <= 1) {
		secondary := candidate{
			Score:      math.Min(secondaryScore, 12),
			Confidence: clampConfidence(ctx.Prediction.Confidence - 15),
			Action:     ActionWatch,
		}
		if bearPrimary {
			secondary.Type = TypeBullish
			secondary.Name = "Relief Bounce"
			secondary.Direction = 1
			secondary.Reasons = bullReasons
		} else {
			secondary.Type = TypeBearish
			secondary.Name = "Pullback Risk"
			secondary.Direction = -1
			secondary.Reasons = bearReasons
		}
		out = append(out, secondary)
	}
	return out
}

// reversalRule fires on an RSI extreme confirmed by a MACD sign flip or
// strong opposing sentiment. Direction opposes the extreme.
func reversalRule(ctx evalContext, _ map[Type]bool) []candidate {
	ind := ctx.Indicators

	var direction int
	switch ind.RSI.Signal {
	case indicators.SignalOversoldBuy:
		direction = 1
	case indicators.SignalOverboughtSell:
		direction = -1
	default:
		return nil
	}

	confirmed := ind.MACD.Crossover ||
		(direction > 0 && ctx.Sentiment > 3) ||
		(direction < 0 && ctx.Sentiment < -3)
	if !confirmed {
		return nil
	}

	reasons := []string{fmt.Sprintf("RSI extreme %.1f", ind.RSI.Value)}
	if ind.MACD.Crossover {
		reasons = append(reasons, "MACD crossover")
	}
	action := ActionBuy
	if direction < 0 {
		action = ActionSell
	}
	return []candidate{{
		Type:       TypeReversal,
		Name:       "Momentum Reversal",
		Direction:  direction,
		Score:      5 + ind.RSI.Strength*4,
		Confidence: clampConfidence(55 + ind.RSI.Strength*15),
		Reasons:    reasons,
		Action:     action,
	}}
}

// accumulationRule flags quiet institutional buying: a tight
// consolidation with growing volume, rising OBV, accumulation-side
// money flow, a Bollinger squeeze and a calm ATR. The composite
// high-confidence scenario supersedes it when already emitted.
func accumulationRule(ctx evalContext, emitted map[Type]bool) []candidate {
	ind := ctx.Indicators
	if emitted[TypeHighConfidence] {
		return nil
	}
	if !ind.Consolidation.Consolidating {
		return nil
	}
	if ind.VFI.Signal != indicators.FlowAccumulation || !ind.OBVRising || !ind.Bollinger.Squeeze {
		return nil
	}
	if ind.Consolidation.VolumeGrowth <= 1.0 || ind.ATR.Percent >= 3.0 {
		return nil
	}

	reasons := []string{
		fmt.Sprintf("consolidation range %.1f%%", ind.Consolidation.RangePercent),
		fmt.Sprintf("volume growth %.2fx", ind.Consolidation.VolumeGrowth),
		"rising OBV",
		"accumulation money flow",
		"Bollinger squeeze",
	}
	return []candidate{{
		Type:       TypeAccumulation,
		Name:       "Accumulation Phase",
		Direction:  1,
		Score:      6,
		Confidence: clampConfidence(58 + ind.Consolidation.VolumeGrowth*4),
		Reasons:    reasons,
		Action:     ActionBuy,
	}}
}

// distributionRule is the mirror: institutional selling under a
// fading tape. Bearish OBV divergence, distribution-side money flow
// and falling volume must all agree.
func distributionRule(ctx evalContext, _ map[Type]bool) []candidate {
	ind := ctx.Indicators
	if ind.VFI.Signal != indicators.FlowDistribution || !ind.Divergence.Bearish {
		return nil
	}
	if ind.Consolidation.VolumeGrowth >= 1.0 {
		return nil
	}

	reasons := []string{
		"bearish OBV divergence",
		"distribution money flow",
		fmt.Sprintf("volume fading %.2fx", ind.Consolidation.VolumeGrowth),
	}
	return []candidate{{
		Type:       TypeDistribution,
		Name:       "Distribution Phase",
		Direction:  -1,
		Score:      6,
		Confidence: clampConfidence(58),
		Reasons:    reasons,
		Action:     ActionSell,
	}}
}

// evaluate runs every rule in order and dedupes by type, first wins.
func evaluate(ctx evalContext) []candidate {
	seen := make(map[Type]bool)
	var out []candidate
	for _, rule := range ruleOrder {
		for _, c := range rule(ctx, seen) {
			if seen[c.Type] {
				continue
			}
			seen[c.Type] = true
			out = append(out, c)
		}
	}
	return out
}

func clampConfidence(v float64) float64 {
	return math.Max(30, math.Min(95, v))
}
