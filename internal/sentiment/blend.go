package sentiment

import (
	"strings"

	"stock-scenario-engine/internal/market"
)

// Macro blend weight bounds. The weight decides how much of the global
// market sentiment bleeds into a single stock's sentiment.
const (
	minBlendWeight  = 0.40
	maxBlendWeight  = 0.75
	baseBlendWeight = 0.40
)

// BlendWeight computes the macro sentiment blend weight for a stock
// based on its static class membership and detected macro tariff events.
// Semis and mega-cap tech move hardest with the macro tape (+0.15),
// financials somewhat (+0.10). A tariff event adds +0.20 when the urgent
// override fired, +0.15 when tariff terms merely appear in market news.
func BlendWeight(classes []string, urgentTariff bool, tariffInNews bool) float64 {
	w := baseBlendWeight

	for _, class := range classes {
		switch market.StockClass(class) {
		case market.ClassSemiconductor, market.ClassMegaCapTech:
			w += 0.15
		case market.ClassFinancial:
			w += 0.10
		}
	}

	if urgentTariff {
		w += 0.20
	} else if tariffInNews {
		w += 0.15
	}

	return clamp(w, minBlendWeight, maxBlendWeight)
}

// BlendScores linearly blends the per-stock sentiment with the macro
// sentiment using the given weight: stock*(1-w) + macro*w.
func BlendScores(stock, macro, weight float64) float64 {
	return stock*(1-weight) + macro*weight
}

var tariffTerms = []string{"tariff", "trade war", "trade restriction", "import dut"}

// TariffMentioned reports whether any market news item mentions a trade
// policy term. It raises the macro blend weight without triggering the
// urgent override.
func TariffMentioned(items []market.NewsItem) bool {
	for _, item := range items {
		text := strings.ToLower(item.Title + " " + item.Description)
		for _, term := range tariffTerms {
			if strings.Contains(text, term) {
				return true
			}
		}
	}
	return false
}
