package indicators

import (
	"stock-scenario-engine/internal/market"
)

// Default periods used by the snapshot computation
const (
	DefaultRSIPeriod       = 14
	DefaultATRPeriod       = 14
	DefaultBollingerPeriod = 20
	DefaultBollingerK      = 2.0
	DefaultMomentumPeriod  = 5
	DefaultVFIPeriod       = 20
	DefaultVolumePeriod    = 20
	DefaultDivergenceBars  = 10
)

// IndicatorSet is a snapshot value object computed from a fixed window
// of price bars. It is deterministic: the same window always produces
// the same values. It is never persisted as mutable state.
type IndicatorSet struct {
	Close         float64             `json:"close"`
	Change1D      float64             `json:"change_1d"`
	ChangeND      float64             `json:"change_nd"`
	RSI           RSIResult           `json:"rsi"`
	SMA20         float64             `json:"sma_20"`
	SMA50         float64             `json:"sma_50"`
	EMA12         float64             `json:"ema_12"`
	EMA26         float64             `json:"ema_26"`
	GoldenCross   bool                `json:"golden_cross"`
	DeathCross    bool                `json:"death_cross"`
	MACD          MACDResult          `json:"macd"`
	Bollinger     BollingerResult     `json:"bollinger"`
	ATR           ATRResult           `json:"atr"`
	VWAP          float64             `json:"vwap"`
	OBV           float64             `json:"obv"`
	OBVRising     bool                `json:"obv_rising"`
	VFI           VFIResult           `json:"vfi"`
	Momentum      float64             `json:"momentum"`
	Volatility    VolatilityResult    `json:"volatility"`
	VolumeRatio   float64             `json:"volume_ratio"`
	Levels        Levels              `json:"levels"`
	Consolidation ConsolidationResult `json:"consolidation"`
	Divergence    DivergenceResult    `json:"divergence"`
	BarCount      int                 `json:"bar_count"`
}

// Compute builds an IndicatorSet from an ordered bar window (oldest to
// newest). It never fails: short windows produce the documented neutral
// defaults of each indicator.
func Compute(bars []market.PriceBar) *IndicatorSet {
	set := &IndicatorSet{BarCount: len(bars)}
	if len(bars) == 0 {
		set.RSI = RSIResult{Value: 50, Signal: SignalNeutral}
		set.ATR = ATRResult{Percent: 2.0}
		set.VolumeRatio = 1.0
		set.Volatility = VolatilityResult{Bucket: VolMedium}
		set.MACD = MACDResult{Trend: TrendBullish}
		set.Bollinger = BollingerResult{Signal: BandMiddle}
		set.Consolidation = ConsolidationResult{VolumeGrowth: 1.0}
		return set
	}

	closes := market.Closes(bars)
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
	}

	set.Close = closes[len(closes)-1]
	set.Change1D = market.ChangePercentOf(bars, 1)
	set.ChangeND = market.ChangePercentOf(bars, DefaultMomentumPeriod)

	set.RSI = RSI(closes, DefaultRSIPeriod)
	set.SMA20 = SMA(closes, 20)
	set.SMA50 = SMA(closes, 50)
	set.EMA12 = EMA(closes, 12)
	set.EMA26 = EMA(closes, 26)
	set.GoldenCross = set.EMA12 > set.EMA26 && set.SMA20 > set.SMA50
	set.DeathCross = set.EMA12 < set.EMA26 && set.SMA20 < set.SMA50
	set.MACD = MACD(closes)
	set.Bollinger = Bollinger(closes, DefaultBollingerPeriod, DefaultBollingerK)
	set.ATR = ATR(highs, lows, closes, DefaultATRPeriod)
	set.VWAP = VWAP(bars)

	obv := OBV(bars)
	if len(obv) > 0 {
		set.OBV = obv[len(obv)-1]
	}
	if len(obv) > DefaultDivergenceBars {
		set.OBVRising = obv[len(obv)-1] > obv[len(obv)-1-DefaultDivergenceBars]
	}
	set.VFI = VolumeFlowIndex(bars, DefaultVFIPeriod)
	set.Momentum = Momentum(closes, DefaultMomentumPeriod)
	set.Volatility = RealizedVolatility(closes)
	set.VolumeRatio = VolumeRatio(bars, DefaultVolumePeriod)
	set.Levels = FindLevels(bars, set.Close)
	set.Consolidation = DetectConsolidation(bars)
	set.Divergence = DetectOBVDivergence(bars, DefaultDivergenceBars)

	return set
}
