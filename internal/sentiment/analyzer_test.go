package sentiment

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stock-scenario-engine/internal/market"
)

func testAnalyzer() *Analyzer {
	svc := NewKeywordService(nil, zerolog.Nop())
	return NewAnalyzer(svc, zerolog.Nop())
}

// TestAnalyzeTextBullish verifies positive scoring of bullish keywords
func TestAnalyzeTextBullish(t *testing.T) {
	a := testAnalyzer()
	score, matched := a.AnalyzeText(context.Background(), "Company posts record profit after earnings beat")

	if score <= 0 {
		t.Errorf("Expected positive score, got %f", score)
	}
	if len(matched) == 0 {
		t.Error("Expected matched keywords")
	}
}

// TestAnalyzeTextBearish verifies negative scoring of bearish keywords
func TestAnalyzeTextBearish(t *testing.T) {
	a := testAnalyzer()
	score, _ := a.AnalyzeText(context.Background(), "Regulator opens investigation, bankruptcy risk and layoffs loom")

	if score >= 0 {
		t.Errorf("Expected negative score, got %f", score)
	}
}

// TestAnalyzeTextNormalization verifies that the half-match-count
// normalizer saturates repeated matches at twice the average weight
func TestAnalyzeTextNormalization(t *testing.T) {
	a := testAnalyzer()
	text := ""
	for i := 0; i < 50; i++ {
		text += "bankruptcy fraud sanction "
	}
	score, _ := a.AnalyzeText(context.Background(), text)

	// 150 matches of weight -2: sum=-300, normalizer=75 => exactly -4
	if math.Abs(score-(-4.0)) > 1e-9 {
		t.Errorf("Expected saturated score -4, got %f", score)
	}
	if score < MinScore || score > MaxScore {
		t.Errorf("Score %f outside [-10, 10]", score)
	}
}

// TestClampBounds verifies the score clamp helper
func TestClampBounds(t *testing.T) {
	if got := clamp(-42, MinScore, MaxScore); got != MinScore {
		t.Errorf("Expected clamp at %f, got %f", MinScore, got)
	}
	if got := clamp(42, MinScore, MaxScore); got != MaxScore {
		t.Errorf("Expected clamp at %f, got %f", MaxScore, got)
	}
}

// TestAnalyzeTextNoMatch verifies neutral zero with no matched keywords
func TestAnalyzeTextNoMatch(t *testing.T) {
	a := testAnalyzer()
	score, matched := a.AnalyzeText(context.Background(), "The quick brown fox")

	if score != 0 {
		t.Errorf("Expected 0 for unmatched text, got %f", score)
	}
	if matched != nil {
		t.Errorf("Expected no matches, got %v", matched)
	}
}

// TestAnalyzeTextDeterministic verifies repeat calls agree
func TestAnalyzeTextDeterministic(t *testing.T) {
	a := testAnalyzer()
	text := "merger rally downgrade lawsuit revenue growth"
	first, _ := a.AnalyzeText(context.Background(), text)
	for i := 0; i < 5; i++ {
		again, _ := a.AnalyzeText(context.Background(), text)
		if again != first {
			t.Fatalf("Non-deterministic score: %f vs %f", first, again)
		}
	}
}

// TestEnsureScoredLazy verifies lazy scoring preserves existing values
func TestEnsureScoredLazy(t *testing.T) {
	a := testAnalyzer()
	preset := 3.5
	items := []market.NewsItem{
		{Title: "earnings beat expected", Sentiment: &preset},
		{Title: "bankruptcy filing imminent"},
	}

	scored := a.EnsureScored(context.Background(), items, false)

	if *scored[0].Sentiment != 3.5 {
		t.Errorf("Existing sentiment must not be recomputed, got %f", *scored[0].Sentiment)
	}
	if scored[1].Sentiment == nil {
		t.Fatal("Expected lazy sentiment computation for unscored item")
	}
	if *scored[1].Sentiment >= 0 {
		t.Errorf("Expected negative score for bankruptcy headline, got %f", *scored[1].Sentiment)
	}
	if scored[1].Importance != market.ImportanceHigh {
		t.Errorf("Expected high importance for bankruptcy, got %s", scored[1].Importance)
	}
}

// TestClassifyImportanceKeywordOverride verifies keyword tiers beat the
// magnitude fallback
func TestClassifyImportanceKeywordOverride(t *testing.T) {
	a := testAnalyzer()
	low := 0.5
	item := &market.NewsItem{Title: "New sanction package announced", Sentiment: &low}

	if tier := a.ClassifyImportance(item); tier != market.ImportanceHigh {
		t.Errorf("Expected high tier from sanction keyword, got %s", tier)
	}
}

// TestClassifyImportanceMagnitudeFallback verifies the |score| tiers
func TestClassifyImportanceMagnitudeFallback(t *testing.T) {
	a := testAnalyzer()
	tests := []struct {
		score float64
		want  market.ImportanceTier
	}{
		{9.0, market.ImportanceHigh},   // 0.90 normalized
		{5.0, market.ImportanceMedium}, // 0.50
		{1.0, market.ImportanceLow},    // 0.10
	}
	for _, tt := range tests {
		s := tt.score
		item := &market.NewsItem{Title: "generic headline", Sentiment: &s}
		if got := a.ClassifyImportance(item); got != tt.want {
			t.Errorf("score %f: expected %s, got %s", tt.score, tt.want, got)
		}
	}
}

// TestDetectUrgentBearishWithin24h verifies recent tariff news trips the
// override and stale news does not
func TestDetectUrgentBearishWithin24h(t *testing.T) {
	a := testAnalyzer()
	now := time.Now()

	recent := []market.NewsItem{
		{Title: "Government imposes new tariff on imports", PublishedAt: now.Add(-2 * time.Hour)},
	}
	override := a.DetectUrgentBearish(recent, now)
	if !override.Active {
		t.Fatal("Expected urgent override for recent tariff news")
	}
	if override.Keyword != "tariff" {
		t.Errorf("Expected tariff keyword, got %s", override.Keyword)
	}

	stale := []market.NewsItem{
		{Title: "Government imposes new tariff on imports", PublishedAt: now.Add(-30 * time.Hour)},
	}
	if a.DetectUrgentBearish(stale, now).Active {
		t.Error("Stale news must not trip the urgent override")
	}
}

// TestBlendWeightBounds verifies the [0.40, 0.75] clamp and class boosts
func TestBlendWeightBounds(t *testing.T) {
	if w := BlendWeight(nil, false, false); w != 0.40 {
		t.Errorf("Expected base weight 0.40, got %f", w)
	}
	if w := BlendWeight([]string{string(market.ClassSemiconductor)}, false, false); math.Abs(w-0.55) > 1e-9 {
		t.Errorf("Expected 0.55 for semiconductor, got %f", w)
	}
	if w := BlendWeight([]string{string(market.ClassFinancial)}, false, false); math.Abs(w-0.50) > 1e-9 {
		t.Errorf("Expected 0.50 for financial, got %f", w)
	}
	// Everything at once must clamp at the ceiling
	if w := BlendWeight([]string{"semiconductor", "mega_cap_tech", "financial"}, true, false); w != 0.75 {
		t.Errorf("Expected clamp at 0.75, got %f", w)
	}
}

// TestBlendScores verifies the linear blend formula
func TestBlendScores(t *testing.T) {
	got := BlendScores(4.0, -2.0, 0.5)
	if got != 1.0 {
		t.Errorf("Expected blended 1.0, got %f", got)
	}
}

type failingKeywordProvider struct{}

func (failingKeywordProvider) GetPriorityKeywords(ctx context.Context) (*market.KeywordTables, error) {
	return nil, errors.New("source down")
}

// TestKeywordServiceFallback verifies degradation to the hard-coded table
func TestKeywordServiceFallback(t *testing.T) {
	svc := NewKeywordService(failingKeywordProvider{}, zerolog.Nop())
	tables := svc.Tables(context.Background())

	if len(tables.Bearish) == 0 || len(tables.Bullish) == 0 {
		t.Fatal("Expected fallback tables when the source fails")
	}
	if tables.Bearish["tariff"] >= 0 {
		t.Error("Fallback bearish weights must be negative")
	}
}

type countingKeywordProvider struct {
	calls int
}

func (p *countingKeywordProvider) GetPriorityKeywords(ctx context.Context) (*market.KeywordTables, error) {
	p.calls++
	return &market.KeywordTables{Bullish: map[string]int{"rally": 1}, Bearish: map[string]int{"crash": -1}}, nil
}

// TestKeywordServiceCachesUntilInvalidated verifies explicit invalidation
func TestKeywordServiceCachesUntilInvalidated(t *testing.T) {
	p := &countingKeywordProvider{}
	svc := NewKeywordService(p, zerolog.Nop())

	svc.Tables(context.Background())
	svc.Tables(context.Background())
	if p.calls != 1 {
		t.Errorf("Expected one provider call before invalidation, got %d", p.calls)
	}

	svc.Invalidate()
	svc.Tables(context.Background())
	if p.calls != 2 {
		t.Errorf("Expected reload after invalidation, got %d calls", p.calls)
	}
}
