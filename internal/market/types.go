package market

import (
	"time"
)

// SessionState represents the trading-session state for a quote
type SessionState string

const (
	SessionPreMarket  SessionState = "pre_market"
	SessionOpen       SessionState = "open"
	SessionAfterHours SessionState = "after_hours"
	SessionClosed     SessionState = "closed"
)

// ImportanceTier classifies how market-moving a news item is
type ImportanceTier string

const (
	ImportanceNone   ImportanceTier = "none"
	ImportanceLow    ImportanceTier = "low"
	ImportanceMedium ImportanceTier = "medium"
	ImportanceHigh   ImportanceTier = "high"
)

// PriceBar represents one OHLCV bar for an instrument.
// Bars are ordered oldest to newest. Past bars are immutable; the
// bar for "today" is overwritten by intraday aggregation until the
// session closes.
type PriceBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	Interval string    `json:"interval"`
}

// Quote represents a live quote snapshot
type Quote struct {
	Symbol        string       `json:"symbol"`
	Current       float64      `json:"current"`
	Open          float64      `json:"open"`
	High          float64      `json:"high"`
	Low           float64      `json:"low"`
	PreviousClose float64      `json:"previous_close"`
	Volume        float64      `json:"volume"`
	ChangePercent float64      `json:"change_percent"`
	Session       SessionState `json:"session_state"`
}

// NewsItem represents a news article about an instrument or the market.
// Sentiment is nil until computed; once set it is only changed by an
// explicit recompute.
type NewsItem struct {
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Source          string         `json:"source"`
	PublishedAt     time.Time      `json:"published_at"`
	Sentiment       *float64       `json:"sentiment,omitempty"` // -10 to +10
	Importance      ImportanceTier `json:"importance"`
	MatchedKeywords []string       `json:"matched_keywords,omitempty"`
}

// FearGreedReading is a fear/greed style mood index value
type FearGreedReading struct {
	Value          int    `json:"value"` // 0-100
	Classification string `json:"classification"`
}

// BasketMember holds the daily change of one regional basket member.
// Failed fetches carry Err and are excluded from the weighted average.
type BasketMember struct {
	Symbol        string  `json:"symbol"`
	ChangePercent float64 `json:"change_percent"`
	Weight        float64 `json:"weight"`
	Err           string  `json:"error,omitempty"`
}

// KeywordTables maps news keywords to integer impact scores.
// Bullish scores are positive, bearish scores are negative.
type KeywordTables struct {
	Bearish map[string]int `json:"bearish"`
	Bullish map[string]int `json:"bullish"`
}

// StockClass tags used to pick the macro sentiment blend weight
type StockClass string

const (
	ClassSemiconductor StockClass = "semiconductor"
	ClassMegaCapTech   StockClass = "mega_cap_tech"
	ClassFinancial     StockClass = "financial"
)

// ChangePercentOf returns the percent change of the last close against
// the close n bars earlier. Returns 0 when there is not enough history.
func ChangePercentOf(bars []PriceBar, n int) float64 {
	if len(bars) < n+1 {
		return 0
	}
	last := bars[len(bars)-1].Close
	past := bars[len(bars)-1-n].Close
	if past == 0 {
		return 0
	}
	return (last - past) / past * 100
}

// Closes extracts the close series from a bar window
func Closes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
