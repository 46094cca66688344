package scenario

import (
	"math"
	"time"

	"stock-scenario-engine/internal/market"
)

const (
	// Regeneration windows. Intraday sets during live trading go stale
	// almost immediately; everything else is reusable for half an hour.
	liveCacheTTL = 15 * time.Second
	idleCacheTTL = 30 * time.Minute

	minTimeFactor    = 0.10
	closedTimeFactor = 0.15
)

// CacheTTL returns how long a freshly generated set stays reusable for
// the given timeframe and trading session.
func CacheTTL(timeframe string, session market.SessionState) time.Duration {
	if timeframe == TimeframeToday && session == market.SessionOpen {
		return liveCacheTTL
	}
	return idleCacheTTL
}

// marketClock resolves the trading-day window for time-factor scaling.
// The regular NYSE session runs 09:30-16:00 Eastern.
type marketClock struct {
	loc *time.Location
}

func newMarketClock() marketClock {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return marketClock{loc: loc}
}

// TimeFactor scales intraday magnitude expectations by how much of the
// trading day is left: sqrt of the remaining fraction, pinned to a
// floor so late-session scenarios still carry a nonzero range. Before
// the open the whole day is ahead (1.0); after the close a residual
// after-hours factor applies.
func (c marketClock) TimeFactor(now time.Time, session market.SessionState) float64 {
	switch session {
	case market.SessionPreMarket:
		return 1.0
	case market.SessionOpen:
		local := now.In(c.loc)
		open := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, c.loc)
		close_ := time.Date(local.Year(), local.Month(), local.Day(), 16, 0, 0, 0, c.loc)
		total := close_.Sub(open)
		remaining := close_.Sub(local)
		if remaining <= 0 {
			return closedTimeFactor
		}
		if remaining > total {
			return 1.0
		}
		factor := math.Sqrt(remaining.Seconds() / total.Seconds())
		if factor < minTimeFactor {
			factor = minTimeFactor
		}
		return factor
	default:
		return closedTimeFactor
	}
}

// validUntil is how long a scenario remains actionable past generation.
func validUntil(now time.Time, timeframe string, session market.SessionState) time.Time {
	if timeframe == TimeframeToday {
		local := now.In(time.UTC)
		// valid through the end of the current day
		return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 0, time.UTC)
	}
	_ = session
	return now.Add(7 * 24 * time.Hour)
}
