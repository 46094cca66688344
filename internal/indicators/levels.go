package indicators

import (
	"sort"

	"stock-scenario-engine/internal/market"
)

// ============================================================================
// SUPPORT AND RESISTANCE
// ============================================================================

// Levels holds detected support and resistance levels near the current
// price. Support (when present) is always below the current price and
// resistance always above it.
type Levels struct {
	Support    []float64 `json:"support"`
	Resistance []float64 `json:"resistance"`
}

// NearestSupport returns the highest support level, or 0 when none exists
func (l Levels) NearestSupport() float64 {
	if len(l.Support) == 0 {
		return 0
	}
	return l.Support[len(l.Support)-1]
}

// NearestResistance returns the lowest resistance level, or 0 when none exists
func (l Levels) NearestResistance() float64 {
	if len(l.Resistance) == 0 {
		return 0
	}
	return l.Resistance[0]
}

// FindLevels detects support and resistance from local 5-point extrema,
// clusters levels within 2% of each other, and keeps only levels within
// 10% of the current price.
func FindLevels(bars []market.PriceBar, currentPrice float64) Levels {
	if len(bars) < 5 || currentPrice <= 0 {
		return Levels{}
	}

	var lows, highs []float64
	for i := 2; i < len(bars)-2; i++ {
		if isLocalMin(bars, i) {
			lows = append(lows, bars[i].Low)
		}
		if isLocalMax(bars, i) {
			highs = append(highs, bars[i].High)
		}
	}

	support := clusterLevels(lows)
	resistance := clusterLevels(highs)

	return Levels{
		Support:    filterLevels(support, currentPrice, true),
		Resistance: filterLevels(resistance, currentPrice, false),
	}
}

func isLocalMin(bars []market.PriceBar, i int) bool {
	low := bars[i].Low
	return low <= bars[i-2].Low && low <= bars[i-1].Low &&
		low <= bars[i+1].Low && low <= bars[i+2].Low
}

func isLocalMax(bars []market.PriceBar, i int) bool {
	high := bars[i].High
	return high >= bars[i-2].High && high >= bars[i-1].High &&
		high >= bars[i+1].High && high >= bars[i+2].High
}

// clusterLevels merges levels within 2% of each other into their average
func clusterLevels(levels []float64) []float64 {
	if len(levels) == 0 {
		return nil
	}
	sort.Float64s(levels)

	var clustered []float64
	clusterSum := levels[0]
	clusterCount := 1
	clusterBase := levels[0]

	for _, level := range levels[1:] {
		if clusterBase > 0 && (level-clusterBase)/clusterBase <= 0.02 {
			clusterSum += level
			clusterCount++
			continue
		}
		clustered = append(clustered, clusterSum/float64(clusterCount))
		clusterSum = level
		clusterCount = 1
		clusterBase = level
	}
	clustered = append(clustered, clusterSum/float64(clusterCount))
	return clustered
}

// filterLevels keeps levels within 10% of the current price on the
// correct side of it, sorted ascending
func filterLevels(levels []float64, currentPrice float64, below bool) []float64 {
	var out []float64
	for _, level := range levels {
		distance := (level - currentPrice) / currentPrice
		if distance < -0.10 || distance > 0.10 {
			continue
		}
		if below && level < currentPrice {
			out = append(out, level)
		} else if !below && level > currentPrice {
			out = append(out, level)
		}
	}
	sort.Float64s(out)
	return out
}
