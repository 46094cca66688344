package scenario

import (
	"testing"
	"time"

	"stock-scenario-engine/internal/fusion"
	"stock-scenario-engine/internal/indicators"
)

// accumulationSetup returns an indicator set where every accumulation
// condition holds: tight consolidation, growing volume, rising OBV,
// accumulation money flow, a squeeze and calm ATR.
func accumulationSetup() *indicators.IndicatorSet {
	ind := indicators.Compute(nil)
	ind.Consolidation = indicators.ConsolidationResult{
		Consolidating: true,
		RangePercent:  3.2,
		VolumeGrowth:  1.4,
	}
	ind.VFI = indicators.VFIResult{Value: 1.2, Signal: indicators.FlowAccumulation}
	ind.OBVRising = true
	ind.Bollinger.Squeeze = true
	ind.ATR.Percent = 1.8
	return ind
}

func TestAccumulationRequiresFullConfluence(t *testing.T) {
	base := evalContext{Indicators: accumulationSetup()}
	cands := accumulationRule(base, nil)
	if len(cands) != 1 || cands[0].Type != TypeAccumulation {
		t.Fatalf("full confluence yielded %v, want one accumulation_phase", cands)
	}
	if cands[0].Direction != 1 || cands[0].Action != ActionBuy {
		t.Fatalf("accumulation direction/action = %d/%q, want 1/buy", cands[0].Direction, cands[0].Action)
	}

	breaks := []struct {
		name   string
		mutate func(*indicators.IndicatorSet)
	}{
		{"no consolidation", func(ind *indicators.IndicatorSet) { ind.Consolidation.Consolidating = false }},
		{"neutral money flow", func(ind *indicators.IndicatorSet) { ind.VFI.Signal = indicators.FlowNeutral }},
		{"flat OBV", func(ind *indicators.IndicatorSet) { ind.OBVRising = false }},
		{"no squeeze", func(ind *indicators.IndicatorSet) { ind.Bollinger.Squeeze = false }},
		{"shrinking volume", func(ind *indicators.IndicatorSet) { ind.Consolidation.VolumeGrowth = 0.9 }},
		{"elevated ATR", func(ind *indicators.IndicatorSet) { ind.ATR.Percent = 3.5 }},
	}
	for _, tc := range breaks {
		t.Run(tc.name, func(t *testing.T) {
			ind := accumulationSetup()
			tc.mutate(ind)
			if got := accumulationRule(evalContext{Indicators: ind}, nil); got != nil {
				t.Fatalf("accumulation fired despite %s", tc.name)
			}
		})
	}
}

func TestAccumulationYieldsToHighConfidence(t *testing.T) {
	ctx := evalContext{Indicators: accumulationSetup()}
	emitted := map[Type]bool{TypeHighConfidence: true}
	if got := accumulationRule(ctx, emitted); got != nil {
		t.Fatal("accumulation must stand down once the composite scenario is emitted")
	}
}

func TestDistributionRequiresFadingVolume(t *testing.T) {
	ind := indicators.Compute(nil)
	ind.VFI = indicators.VFIResult{Value: -1.1, Signal: indicators.FlowDistribution}
	ind.Divergence.Bearish = true
	ind.Consolidation.VolumeGrowth = 0.7

	cands := distributionRule(evalContext{Indicators: ind}, nil)
	if len(cands) != 1 || cands[0].Type != TypeDistribution {
		t.Fatalf("distribution conditions yielded %v, want one distribution_phase", cands)
	}
	if cands[0].Direction != -1 || cands[0].Action != ActionSell {
		t.Fatalf("distribution direction/action = %d/%q, want -1/sell", cands[0].Direction, cands[0].Action)
	}

	ind.Consolidation.VolumeGrowth = 1.2
	if got := distributionRule(evalContext{Indicators: ind}, nil); got != nil {
		t.Fatal("distribution fired on rising volume")
	}

	ind.Consolidation.VolumeGrowth = 0.7
	ind.Divergence.Bearish = false
	if got := distributionRule(evalContext{Indicators: ind}, nil); got != nil {
		t.Fatal("distribution fired without a bearish OBV divergence")
	}
}

func TestReversalRequiresConfirmation(t *testing.T) {
	ind := indicators.Compute(nil)
	ind.RSI = indicators.RSIResult{Value: 24, Signal: indicators.SignalOversoldBuy, Strength: 0.2}

	if got := reversalRule(evalContext{Indicators: ind}, nil); got != nil {
		t.Fatal("bare RSI extreme fired without confirmation")
	}

	ind.MACD.Crossover = true
	cands := reversalRule(evalContext{Indicators: ind}, nil)
	if len(cands) != 1 || cands[0].Type != TypeReversal {
		t.Fatalf("confirmed oversold yielded %v, want one momentum_reversal", cands)
	}
	if cands[0].Direction != 1 || cands[0].Action != ActionBuy {
		t.Fatalf("oversold reversal direction/action = %d/%q, want 1/buy", cands[0].Direction, cands[0].Action)
	}
}

func TestReversalConfirmedBySentiment(t *testing.T) {
	ind := indicators.Compute(nil)
	ind.RSI = indicators.RSIResult{Value: 78, Signal: indicators.SignalOverboughtSell, Strength: 0.27}

	cands := reversalRule(evalContext{Indicators: ind, Sentiment: -4.5}, nil)
	if len(cands) != 1 || cands[0].Direction != -1 {
		t.Fatalf("overbought plus bearish sentiment yielded %v, want one downward reversal", cands)
	}
	if cands[0].Action != ActionSell {
		t.Fatalf("action = %q, want sell", cands[0].Action)
	}

	// Sentiment pointing with the extreme, not against it, confirms nothing.
	if got := reversalRule(evalContext{Indicators: ind, Sentiment: 4.5}, nil); got != nil {
		t.Fatal("overbought fired on bullish sentiment")
	}
}

func TestHighConfidenceBlendThreshold(t *testing.T) {
	ind := indicators.Compute(nil)
	ind.Consolidation.Consolidating = true
	ind.Divergence.Bullish = true
	ind.Bollinger.Squeeze = true

	ctx := evalContext{
		Indicators: ind,
		Signal:     fusion.FusedSignal{Technical: 0.9, Combined: 0.6},
		Sentiment:  8,
		Now:        time.Date(2026, 11, 16, 15, 0, 0, 0, time.UTC),
	}
	cands := highConfidenceRule(ctx, nil)
	if len(cands) != 1 || cands[0].Type != TypeHighConfidence {
		t.Fatalf("strong composite evidence yielded %v, want one ai_high_confidence", cands)
	}
	if cands[0].Direction != 1 || cands[0].Action != ActionBuy {
		t.Fatalf("direction/action = %d/%q, want 1/buy", cands[0].Direction, cands[0].Action)
	}

	weak := evalContext{
		Indicators: indicators.Compute(nil),
		Signal:     fusion.FusedSignal{Technical: 0.2, Combined: 0.1},
		Sentiment:  1,
		Now:        time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	}
	if got := highConfidenceRule(weak, nil); got != nil {
		t.Fatal("composite fired below the 50% blend threshold")
	}
}

func TestSecondaryEmittedOutsideHardDrop(t *testing.T) {
	ind := indicators.Compute(nil)
	ind.MACD.Trend = indicators.TrendBearish
	ind.Momentum = -2.0 // bearish, above the hard trigger

	cands := directionalRules(evalContext{
		Indicators: ind,
		Prediction: fusion.Prediction{Confidence: 55},
	}, nil)
	if len(cands) != 2 {
		t.Fatalf("got %d directional candidates, want primary plus hedge", len(cands))
	}
	if cands[1].Type != TypeBullish || cands[1].Action != ActionWatch {
		t.Fatalf("hedge = %s/%q, want bullish watch", cands[1].Type, cands[1].Action)
	}
}

func TestHardDropSuppressesTrivialSecondary(t *testing.T) {
	ind := indicators.Compute(nil)
	ind.MACD.Trend = indicators.TrendStrongBearish
	ind.Momentum = -4.2 // below the hard trigger

	cands := directionalRules(evalContext{
		Indicators: ind,
		Prediction: fusion.Prediction{Confidence: 55},
	}, nil)
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want the bearish primary only", len(cands))
	}

	// Non-trivial opposing evidence keeps the hedge even under a collapse.
	ind.GoldenCross = true
	cands = directionalRules(evalContext{
		Indicators: ind,
		Prediction: fusion.Prediction{Confidence: 55},
	}, nil)
	if len(cands) != 2 {
		t.Fatalf("got %d candidates, want the hedge back with real opposing evidence", len(cands))
	}
}
