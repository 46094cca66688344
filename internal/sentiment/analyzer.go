package sentiment

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stock-scenario-engine/internal/market"
)

// Score bounds for text sentiment
const (
	MinScore = -10.0
	MaxScore = 10.0
)

// UrgentOverride reports detection of high-impact bearish keywords in
// recent news. When Active, the fusion engine clamps the combined signal
// to at most -0.7 and forces the predicted direction down. The flag is
// carried on the output so callers can see that the override fired
// instead of having it silently folded into the composite number.
type UrgentOverride struct {
	Active   bool   `json:"active"`
	Keyword  string `json:"keyword,omitempty"`
	Headline string `json:"headline,omitempty"`
}

// Analyzer scores news text against weighted keyword tables. Scoring is
// deterministic and makes no external calls; tables come from the
// keyword service (with its hard-coded fallback).
type Analyzer struct {
	keywords *KeywordService
	logger   zerolog.Logger
}

// NewAnalyzer creates a sentiment analyzer backed by a keyword service
func NewAnalyzer(keywords *KeywordService, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		keywords: keywords,
		logger:   logger.With().Str("component", "SentimentAnalyzer").Logger(),
	}
}

// AnalyzeText scores text against the keyword tables. The raw weighted
// sum is normalized by half the match count and clamped to [-10, +10].
func (a *Analyzer) AnalyzeText(ctx context.Context, text string) (float64, []string) {
	tables := a.keywords.Tables(ctx)
	lower := strings.ToLower(text)

	sum := 0.0
	matches := 0
	var matched []string

	score := func(table map[string]int) {
		for keyword, weight := range table {
			occurrences := strings.Count(lower, keyword)
			if occurrences == 0 {
				continue
			}
			sum += float64(weight * occurrences)
			matches += occurrences
			matched = append(matched, keyword)
		}
	}
	score(tables.Bullish)
	score(tables.Bearish)

	if matches == 0 {
		return 0, nil
	}

	normalizer := math.Max(1, float64(matches)/2)
	return clamp(sum/normalizer, MinScore, MaxScore), matched
}

// EnsureScored lazily computes the sentiment of items that have none
// yet. Already-scored items keep their value; recompute only happens
// when force is set. Returns the same slice for convenience.
func (a *Analyzer) EnsureScored(ctx context.Context, items []market.NewsItem, force bool) []market.NewsItem {
	for i := range items {
		if items[i].Sentiment != nil && !force {
			continue
		}
		score, matched := a.AnalyzeText(ctx, items[i].Title+" "+items[i].Description)
		items[i].Sentiment = &score
		items[i].MatchedKeywords = matched
		items[i].Importance = a.ClassifyImportance(&items[i])
	}
	return items
}

// AggregateScore averages the scores of a news window. Items without a
// score are treated as neutral zero.
func (a *Analyzer) AggregateScore(items []market.NewsItem) float64 {
	if len(items) == 0 {
		return 0
	}
	sum := 0.0
	for _, item := range items {
		if item.Sentiment != nil {
			sum += *item.Sentiment
		}
	}
	return sum / float64(len(items))
}

// ClassifyImportance assigns an importance tier. Keyword tiers take
// precedence; otherwise the tier falls back to sentiment magnitude on
// the normalized [-1, 1] scale (>=0.85 high, >=0.4 medium).
func (a *Analyzer) ClassifyImportance(item *market.NewsItem) market.ImportanceTier {
	text := strings.ToLower(item.Title + " " + item.Description)

	for _, kw := range highImportanceKeywords {
		if strings.Contains(text, kw) {
			return market.ImportanceHigh
		}
	}
	for _, kw := range mediumImportanceKeywords {
		if strings.Contains(text, kw) {
			return market.ImportanceMedium
		}
	}

	if item.Sentiment == nil {
		return market.ImportanceNone
	}
	magnitude := math.Abs(*item.Sentiment) / MaxScore
	switch {
	case magnitude >= 0.85:
		return market.ImportanceHigh
	case magnitude >= 0.4:
		return market.ImportanceMedium
	default:
		return market.ImportanceLow
	}
}

// DetectUrgentBearish scans news published within the last 24 hours for
// the fixed urgent keyword set. The first match wins; this override
// takes precedence over every other signal.
func (a *Analyzer) DetectUrgentBearish(items []market.NewsItem, now time.Time) UrgentOverride {
	cutoff := now.Add(-24 * time.Hour)

	for _, item := range items {
		if item.PublishedAt.Before(cutoff) {
			continue
		}
		text := strings.ToLower(item.Title + " " + item.Description)
		for _, kw := range urgentBearishKeywords {
			if strings.Contains(text, kw) {
				a.logger.Warn().
					Str("keyword", kw).
					Str("headline", item.Title).
					Msg("Urgent bearish keyword detected, forcing bearish override")
				return UrgentOverride{Active: true, Keyword: kw, Headline: item.Title}
			}
		}
	}
	return UrgentOverride{}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
