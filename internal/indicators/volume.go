package indicators

import (
	"math"

	"stock-scenario-engine/internal/market"
)

// ============================================================================
// VWAP (Volume Weighted Average Price)
// ============================================================================

// VWAP calculates the volume weighted average of typical prices over
// the window. Zero total volume returns the last close.
func VWAP(bars []market.PriceBar) float64 {
	if len(bars) == 0 {
		return 0
	}

	pvSum := 0.0
	volSum := 0.0
	for _, b := range bars {
		typical := (b.High + b.Low + b.Close) / 3
		pvSum += typical * b.Volume
		volSum += b.Volume
	}
	if volSum == 0 {
		return bars[len(bars)-1].Close
	}
	return pvSum / volSum
}

// ============================================================================
// OBV (On-Balance Volume)
// ============================================================================

// OBV calculates the cumulative On-Balance Volume series. The absolute
// level is meaningless; divergence detection compares its direction.
func OBV(bars []market.PriceBar) []float64 {
	if len(bars) == 0 {
		return nil
	}

	obv := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			obv[i] = obv[i-1] + bars[i].Volume
		case bars[i].Close < bars[i-1].Close:
			obv[i] = obv[i-1] - bars[i].Volume
		default:
			obv[i] = obv[i-1]
		}
	}
	return obv
}

// ============================================================================
// VFI (Volume Flow Index)
// ============================================================================

// VFI signal classifications
const (
	FlowAccumulation = "accumulation"
	FlowDistribution = "distribution"
	FlowNeutral      = "neutral"
)

// VFIResult holds the Volume Flow Index value and its classification
type VFIResult struct {
	Value  float64 `json:"value"`
	Signal string  `json:"signal"`
}

// VolumeFlowIndex computes a volatility- and volume-adjusted money-flow
// signal over the last period bars. Typical-price moves smaller than a
// volatility cutoff are treated as noise; the remaining signed volume is
// normalized by average volume. Positive values indicate institutional
// accumulation, negative values distribution.
func VolumeFlowIndex(bars []market.PriceBar, period int) VFIResult {
	if len(bars) < period+1 {
		return VFIResult{Value: 0, Signal: FlowNeutral}
	}

	window := bars[len(bars)-period-1:]

	deltas := make([]float64, 0, period)
	for i := 1; i < len(window); i++ {
		prev := typicalPrice(window[i-1])
		cur := typicalPrice(window[i])
		if prev <= 0 || cur <= 0 {
			deltas = append(deltas, 0)
			continue
		}
		deltas = append(deltas, math.Log(cur/prev))
	}

	cutoff := 0.2 * stddev(deltas)

	avgVol := 0.0
	for i := 1; i < len(window); i++ {
		avgVol += window[i].Volume
	}
	avgVol /= float64(period)
	if avgVol == 0 {
		return VFIResult{Value: 0, Signal: FlowNeutral}
	}

	flow := 0.0
	for i, d := range deltas {
		vol := math.Min(window[i+1].Volume, avgVol*2.5) // cap volume spikes
		if d > cutoff {
			flow += vol
		} else if d < -cutoff {
			flow -= vol
		}
	}

	value := flow / avgVol

	signal := FlowNeutral
	if value > 2 {
		signal = FlowAccumulation
	} else if value < -2 {
		signal = FlowDistribution
	}
	return VFIResult{Value: value, Signal: signal}
}

func typicalPrice(b market.PriceBar) float64 {
	return (b.High + b.Low + b.Close) / 3
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)))
}

// ============================================================================
// VOLUME RATIO
// ============================================================================

// VolumeRatio compares the latest bar volume against the average of the
// preceding period bars. 1.0 means average activity.
func VolumeRatio(bars []market.PriceBar, period int) float64 {
	if len(bars) < 2 {
		return 1.0
	}
	if len(bars) < period+1 {
		period = len(bars) - 1
	}

	sum := 0.0
	for i := len(bars) - 1 - period; i < len(bars)-1; i++ {
		sum += bars[i].Volume
	}
	avg := sum / float64(period)
	if avg == 0 {
		return 1.0
	}
	return bars[len(bars)-1].Volume / avg
}

// ============================================================================
// CONSOLIDATION
// ============================================================================

// ConsolidationResult reports whether price is trading in a tight range
type ConsolidationResult struct {
	Consolidating bool    `json:"consolidating"`
	RangePercent  float64 `json:"range_percent"`
	VolumeGrowth  float64 `json:"volume_growth"` // recent avg vs prior avg
}

// DetectConsolidation flags a 10-day price range under 5% of the mid
// price and reports the volume growth ratio (last 5 days vs prior 5).
func DetectConsolidation(bars []market.PriceBar) ConsolidationResult {
	const window = 10
	if len(bars) < window {
		return ConsolidationResult{VolumeGrowth: 1.0}
	}

	recent := bars[len(bars)-window:]
	high := recent[0].High
	low := recent[0].Low
	for _, b := range recent {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}

	mid := (high + low) / 2
	rangePct := 0.0
	if mid > 0 {
		rangePct = (high - low) / mid * 100
	}

	priorVol := 0.0
	recentVol := 0.0
	for i := 0; i < 5; i++ {
		priorVol += recent[i].Volume
		recentVol += recent[i+5].Volume
	}
	growth := 1.0
	if priorVol > 0 {
		growth = recentVol / priorVol
	}

	return ConsolidationResult{
		Consolidating: rangePct < 5.0,
		RangePercent:  rangePct,
		VolumeGrowth:  growth,
	}
}

// ============================================================================
// OBV DIVERGENCE
// ============================================================================

// DivergenceResult reports OBV/price divergence over the lookback window
type DivergenceResult struct {
	Bullish bool `json:"bullish"` // price down >2%, OBV up
	Bearish bool `json:"bearish"` // price up >2%, OBV down
}

// DetectOBVDivergence compares the direction of price and OBV over the
// last lookback bars. Divergence hints at accumulation under a falling
// price or distribution under a rising one.
func DetectOBVDivergence(bars []market.PriceBar, lookback int) DivergenceResult {
	if len(bars) < lookback+1 {
		return DivergenceResult{}
	}

	window := bars[len(bars)-lookback-1:]
	base := window[0].Close
	if base == 0 {
		return DivergenceResult{}
	}
	priceChange := (window[len(window)-1].Close - base) / base * 100

	obv := OBV(window)
	obvChange := obv[len(obv)-1] - obv[0]

	return DivergenceResult{
		Bullish: priceChange < -2.0 && obvChange > 0,
		Bearish: priceChange > 2.0 && obvChange < 0,
	}
}
