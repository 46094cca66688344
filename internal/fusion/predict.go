package fusion

import (
	"math"

	"stock-scenario-engine/internal/indicators"
	"stock-scenario-engine/internal/macro"
)

// Move multiplier bounds: |composite| maps linearly onto 0.5x-2.0x ATR
const (
	minMoveMultiplier  = 0.5
	moveMultiplierSpan = 1.5
)

// Predict sizes a price-range forecast from a fused signal. ATR is the
// primary scale; the fear/greed multiplier widens moves in emotional
// regimes and the volatility bucket caps the final percent.
func (e *Engine) Predict(signal FusedSignal, in Inputs, currentPrice float64) Prediction {
	ind := in.Indicators
	if ind == nil {
		ind = indicators.Compute(nil)
	}
	if currentPrice <= 0 {
		currentPrice = ind.Close
	}

	multiplier := minMoveMultiplier + math.Abs(signal.Combined)*moveMultiplierSpan

	atr := ind.ATR.Value
	if atr == 0 && currentPrice > 0 {
		// Cold-start scale from the default ATR percent
		atr = currentPrice * ind.ATR.Percent / 100
	}

	move := atr * multiplier
	if signal.Combined < 0 {
		move = -move
	}

	changePercent := 0.0
	if currentPrice > 0 {
		changePercent = move / currentPrice * 100
	}

	// Emotional regimes stretch the move
	impact := macro.Impact(in.FearGreed)
	changePercent *= impact.Multiplier

	// Volatility regime caps the final magnitude
	ceiling := ind.Volatility.MaxMovePercent()
	changePercent = math.Max(-ceiling, math.Min(ceiling, changePercent))

	if signal.UrgentBearish && changePercent > 0 {
		changePercent = -changePercent
	}

	direction := DirectionUp
	if changePercent < 0 || signal.UrgentBearish {
		direction = DirectionDown
	}

	low := currentPrice - 1.5*atr
	high := currentPrice + 1.5*atr
	if support := ind.Levels.NearestSupport(); support > 0 && low < support*0.98 {
		low = support * 0.98
	}
	if resistance := ind.Levels.NearestResistance(); resistance > 0 && high > resistance*1.02 {
		high = resistance * 1.02
	}

	confidence := e.Confidence(signal, in)

	return Prediction{
		Direction:      direction,
		ChangePercent:  changePercent,
		TargetPrice:    currentPrice * (1 + changePercent/100),
		PredictedLow:   low,
		PredictedHigh:  high,
		Confidence:     confidence,
		MoveMultiplier: multiplier,
	}
}

// Confidence scores how much the individual signals agree with the
// composite. Base 50, up to +20 from composite magnitude, up to +25
// from cross-signal agreement, small boosts for conviction volume,
// strong sentiment and news depth. Clamped to [30, 95], then dampened
// by the fear/greed regime, then boosted (+10, floor 50) when the
// urgent-bearish override fired.
func (e *Engine) Confidence(signal FusedSignal, in Inputs) float64 {
	ind := in.Indicators
	if ind == nil {
		ind = indicators.Compute(nil)
	}

	confidence := 50.0
	confidence += math.Abs(signal.Combined) * 20

	agree, total := agreementCount(signal, ind, in.SentimentScore)
	if total > 0 {
		confidence += float64(agree) / float64(total) * 25
	}

	if ind.VolumeRatio > 1.5 {
		confidence += 10
	}
	if math.Abs(in.SentimentScore) > 5 {
		confidence += 5
	}
	if in.NewsCount > 5 {
		confidence += 5
	}

	confidence = math.Max(30, math.Min(95, confidence))
	confidence = macro.AdjustConfidence(confidence, in.FearGreed)

	if signal.UrgentBearish {
		confidence = math.Max(50, math.Min(95, confidence+10))
	}

	return confidence
}

// agreementCount counts directional contributors whose sign matches the
// composite. Only indicators with strength above 0.3 vote; sentiment
// votes when its magnitude exceeds 2.
func agreementCount(signal FusedSignal, ind *indicators.IndicatorSet, sentimentScore float64) (agree, total int) {
	compositeUp := signal.Combined >= 0

	type vote struct {
		strength float64
		up       bool
	}
	votes := make([]vote, 0, 6)

	switch ind.RSI.Signal {
	case indicators.SignalOversoldBuy:
		votes = append(votes, vote{ind.RSI.Strength, true})
	case indicators.SignalOverboughtSell:
		votes = append(votes, vote{ind.RSI.Strength, false})
	}

	macdUp := ind.MACD.MACD >= 0
	votes = append(votes, vote{macdStrengthOf(ind), macdUp})

	if ind.GoldenCross {
		votes = append(votes, vote{1.0, true})
	} else if ind.DeathCross {
		votes = append(votes, vote{1.0, false})
	}

	switch ind.Bollinger.Signal {
	case indicators.BandOversold:
		votes = append(votes, vote{0.8, true})
	case indicators.BandOverbought:
		votes = append(votes, vote{0.8, false})
	}

	votes = append(votes, vote{math.Abs(math.Tanh(ind.Momentum / 3)), ind.Momentum >= 0})

	if math.Abs(sentimentScore) > 2 {
		votes = append(votes, vote{1.0, sentimentScore > 0})
	}

	for _, v := range votes {
		if v.strength <= 0.3 {
			continue
		}
		total++
		if v.up == compositeUp {
			agree++
		}
	}
	return agree, total
}
