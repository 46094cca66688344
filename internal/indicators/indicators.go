package indicators

import (
	"math"
)

// Every function in this package takes an ordered series (oldest to
// newest) plus a period and returns a computed value, or a documented
// neutral default when the input is shorter than the required window.
// Indicators never fail: a cold-start instrument still produces output.

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// SMA calculates the Simple Moving Average over the last period values
func SMA(values []float64, period int) float64 {
	if len(values) == 0 || period <= 0 {
		return 0
	}
	if len(values) < period {
		period = len(values)
	}

	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// EMA calculates the Exponential Moving Average. The seed is the simple
// average of the first period values. When fewer than period values are
// given, EMA degrades to the arithmetic mean of all of them.
func EMA(values []float64, period int) float64 {
	if len(values) == 0 || period <= 0 {
		return 0
	}
	if len(values) < period {
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	}

	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	ema := seed / float64(period)

	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = values[i]*k + ema*(1-k)
	}
	return ema
}

// ============================================================================
// RSI (Relative Strength Index)
// ============================================================================

// RSI signal classifications
const (
	SignalOversoldBuy    = "oversold_buy"
	SignalOverboughtSell = "overbought_sell"
	SignalNeutral        = "neutral"
)

// RSIResult holds the RSI value and its trading signal
type RSIResult struct {
	Value    float64 `json:"value"`
	Signal   string  `json:"signal"`
	Strength float64 `json:"strength"` // 0-1
}

// RSI calculates the Relative Strength Index over the last period deltas.
// Inputs shorter than period+1 return the neutral default of 50.
func RSI(closes []float64, period int) RSIResult {
	if len(closes) < period+1 {
		return RSIResult{Value: 50, Signal: SignalNeutral}
	}

	gains := 0.0
	losses := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	value := 100.0
	if avgLoss > 0 {
		rs := avgGain / avgLoss
		value = 100 - (100 / (1 + rs))
	}

	return classifyRSI(value)
}

func classifyRSI(value float64) RSIResult {
	switch {
	case value < 30:
		return RSIResult{Value: value, Signal: SignalOversoldBuy, Strength: (30 - value) / 30}
	case value > 70:
		return RSIResult{Value: value, Signal: SignalOverboughtSell, Strength: (value - 70) / 30}
	default:
		return RSIResult{Value: value, Signal: SignalNeutral}
	}
}

// ============================================================================
// MACD (Moving Average Convergence Divergence)
// ============================================================================

// MACD trend classifications
const (
	TrendStrongBullish = "strong_bullish"
	TrendBullish       = "bullish"
	TrendStrongBearish = "strong_bearish"
	TrendBearish       = "bearish"
)

// MACDResult holds the MACD line, signal line and histogram.
// The signal line is intentionally simplified to equal the MACD line
// (no 9-period smoothing history is retained), so the histogram is
// always zero on this path. Scenario rules rely on the line value and
// on Crossover, not on the histogram.
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
	Trend     string  `json:"trend"`
	Crossover bool    `json:"crossover"` // MACD line changed sign on the last bar
}

// MACD calculates EMA12 - EMA26 and classifies the trend by sign and
// magnitude relative to the current close (strong beyond 1% of price).
func MACD(closes []float64) MACDResult {
	if len(closes) < 2 {
		return MACDResult{Trend: TrendBullish}
	}

	line := EMA(closes, 12) - EMA(closes, 26)
	prev := EMA(closes[:len(closes)-1], 12) - EMA(closes[:len(closes)-1], 26)

	result := MACDResult{
		MACD:      line,
		Signal:    line,
		Histogram: 0,
		Crossover: (line > 0) != (prev > 0),
	}

	price := closes[len(closes)-1]
	ratio := 0.0
	if price > 0 {
		ratio = line / price * 100
	}

	switch {
	case ratio >= 1.0:
		result.Trend = TrendStrongBullish
	case ratio >= 0:
		result.Trend = TrendBullish
	case ratio <= -1.0:
		result.Trend = TrendStrongBearish
	default:
		result.Trend = TrendBearish
	}
	return result
}

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// Bollinger position classifications
const (
	BandOverbought = "overbought"
	BandOversold   = "oversold"
	BandBullish    = "bullish"
	BandBearish    = "bearish"
	BandMiddle     = "middle"
)

// BollingerResult holds Bollinger Band values and the position signal
type BollingerResult struct {
	Upper   float64 `json:"upper"`
	Middle  float64 `json:"middle"`
	Lower   float64 `json:"lower"`
	Width   float64 `json:"width"`
	Signal  string  `json:"signal"`
	Squeeze bool    `json:"squeeze"` // width < 0.10
}

// Bollinger calculates Bollinger Bands (SMA +/- k*stddev) and classifies
// the current close against the bands. Short input collapses the bands
// onto the current price with a middle signal.
func Bollinger(closes []float64, period int, k float64) BollingerResult {
	if len(closes) == 0 {
		return BollingerResult{Signal: BandMiddle}
	}
	price := closes[len(closes)-1]
	if len(closes) < period {
		return BollingerResult{Upper: price, Middle: price, Lower: price, Signal: BandMiddle}
	}

	middle := SMA(closes, period)
	variance := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		diff := closes[i] - middle
		variance += diff * diff
	}
	stddev := math.Sqrt(variance / float64(period))

	upper := middle + k*stddev
	lower := middle - k*stddev

	width := 0.0
	if middle > 0 {
		width = (upper - lower) / middle
	}

	signal := BandMiddle
	switch {
	case price > upper:
		signal = BandOverbought
	case price < lower:
		signal = BandOversold
	case price > middle:
		signal = BandBullish
	case price < middle:
		signal = BandBearish
	}

	return BollingerResult{
		Upper:   upper,
		Middle:  middle,
		Lower:   lower,
		Width:   width,
		Signal:  signal,
		Squeeze: width < 0.10,
	}
}

// ============================================================================
// ATR (Average True Range)
// ============================================================================

// ATRResult holds the ATR in price units and as percent of the last close.
// Percent is the primary scale for realistic price-range sizing.
type ATRResult struct {
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

// ATR calculates the Average True Range over the last period bars.
// Short input returns the neutral default of 0 with a 2.0% percent, so
// downstream range sizing still has a workable scale.
func ATR(highs, lows, closes []float64, period int) ATRResult {
	if len(closes) < period+1 || len(highs) != len(closes) || len(lows) != len(closes) {
		return ATRResult{Value: 0, Percent: 2.0}
	}

	trSum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		prevClose := closes[i-1]
		tr := math.Max(
			highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-prevClose), math.Abs(lows[i]-prevClose)),
		)
		trSum += tr
	}
	atr := trSum / float64(period)

	percent := 2.0
	if last := closes[len(closes)-1]; last > 0 {
		percent = atr / last * 100
	}
	return ATRResult{Value: atr, Percent: percent}
}

// ============================================================================
// MOMENTUM
// ============================================================================

// Momentum blends the 1-day and N-day percent change 70/30. It measures
// how hard price is currently moving, dominated by the latest session.
func Momentum(closes []float64, period int) float64 {
	oneDay := changePercent(closes, 1)
	nDay := changePercent(closes, period)
	return oneDay*0.7 + nDay*0.3
}

func changePercent(closes []float64, n int) float64 {
	if len(closes) < n+1 {
		return 0
	}
	past := closes[len(closes)-1-n]
	if past == 0 {
		return 0
	}
	return (closes[len(closes)-1] - past) / past * 100
}

// ============================================================================
// REALIZED VOLATILITY
// ============================================================================

// Volatility buckets
const (
	VolLow      = "low"
	VolMedium   = "medium"
	VolHigh     = "high"
	VolVeryHigh = "very_high"
)

// VolatilityResult holds annualized realized volatility and its bucket
type VolatilityResult struct {
	Annualized float64 `json:"annualized"` // percent
	Bucket     string  `json:"bucket"`
}

// RealizedVolatility computes the stddev of daily returns scaled by
// sqrt(252), expressed in percent, and buckets it. Fewer than 3 closes
// default to the medium bucket.
func RealizedVolatility(closes []float64) VolatilityResult {
	if len(closes) < 3 {
		return VolatilityResult{Annualized: 0, Bucket: VolMedium}
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	if len(returns) < 2 {
		return VolatilityResult{Annualized: 0, Bucket: VolMedium}
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stddev := math.Sqrt(variance / float64(len(returns)))

	annualized := stddev * math.Sqrt(252) * 100

	bucket := VolLow
	switch {
	case annualized >= 60:
		bucket = VolVeryHigh
	case annualized >= 35:
		bucket = VolHigh
	case annualized >= 20:
		bucket = VolMedium
	}
	return VolatilityResult{Annualized: annualized, Bucket: bucket}
}

// MaxMovePercent returns the volatility-dependent ceiling for predicted
// price changes: 3% for low volatility, 5% medium, 8% high or very high.
func (v VolatilityResult) MaxMovePercent() float64 {
	switch v.Bucket {
	case VolLow:
		return 3.0
	case VolMedium:
		return 5.0
	default:
		return 8.0
	}
}
