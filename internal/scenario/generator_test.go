package scenario

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stock-scenario-engine/internal/fusion"
	"stock-scenario-engine/internal/indicators"
	"stock-scenario-engine/internal/macro"
	"stock-scenario-engine/internal/market"
	"stock-scenario-engine/internal/sentiment"
)

type fakePrices struct {
	bars  []market.PriceBar
	quote *market.Quote
}

func (f *fakePrices) GetPriceHistory(_ context.Context, _ string, _ int) ([]market.PriceBar, error) {
	return f.bars, nil
}

func (f *fakePrices) GetLiveQuote(_ context.Context, _ string) (*market.Quote, error) {
	if f.quote == nil {
		return nil, errors.New("quote feed down")
	}
	return f.quote, nil
}

type fakeNews struct{}

func (fakeNews) GetRecentNews(_ context.Context, _ string, _ int) ([]market.NewsItem, error) {
	return nil, nil
}

func (fakeNews) GetMarketNews(_ context.Context, _ int) ([]market.NewsItem, error) {
	return nil, nil
}

func decliningBars(n int, start, dailyPct float64) []market.PriceBar {
	bars := make([]market.PriceBar, n)
	price := start
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		price *= 1 + dailyPct/100
		bars[i] = market.PriceBar{
			Date:   day.AddDate(0, 0, i),
			Open:   price * 1.005,
			High:   price * 1.01,
			Low:    price * 0.99,
			Close:  price,
			Volume: 1_000_000,
		}
	}
	return bars
}

func newTestGenerator(t *testing.T, prices *fakePrices) *Generator {
	t.Helper()
	logger := zerolog.Nop()

	engine, err := fusion.NewEngine(fusion.DefaultWeights(), logger)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	analyzer := sentiment.NewAnalyzer(sentiment.NewKeywordService(nil, logger), logger)

	gen := NewGenerator(Deps{
		Prices:    prices,
		News:      fakeNews{},
		Analyzer:  analyzer,
		FearGreed: macro.NewFearGreedService(nil, logger),
		Baskets:   macro.NewBasketService(nil, 0, logger),
		Engine:    engine,
		Store:     NewMemoryStore(),
	}, logger)
	gen.now = func() time.Time {
		return time.Date(2026, 2, 3, 21, 30, 0, 0, time.UTC) // after the close
	}
	return gen
}

func TestInsufficientHistoryRefused(t *testing.T) {
	gen := newTestGenerator(t, &fakePrices{bars: decliningBars(10, 100, -1)})

	_, err := gen.GenerateScenarios(context.Background(), "AAPL", TimeframeToday, false)
	var insufficient ErrInsufficientHistory
	if !errors.As(err, &insufficient) {
		t.Fatalf("want ErrInsufficientHistory, got %v", err)
	}
	if insufficient.Bars != 10 {
		t.Fatalf("Bars = %d, want 10", insufficient.Bars)
	}
}

func TestSteadyDeclineYieldsBearishPrimary(t *testing.T) {
	gen := newTestGenerator(t, &fakePrices{bars: decliningBars(25, 100, -1)})

	set, err := gen.GenerateScenarios(context.Background(), "AAPL", TimeframeToday, false)
	if err != nil {
		t.Fatalf("GenerateScenarios: %v", err)
	}
	if len(set.Scenarios) == 0 {
		t.Fatal("no scenarios generated")
	}

	var bearish *Scenario
	for i := range set.Scenarios {
		if set.Scenarios[i].Type == TypeBearish {
			bearish = &set.Scenarios[i]
			break
		}
	}
	if bearish == nil {
		t.Fatal("no bearish scenario for a 25-day steady decline")
	}
	if bearish.ExpectedChangePercent >= 0 {
		t.Fatalf("bearish expected change = %.2f, want negative", bearish.ExpectedChangePercent)
	}
	if bearish.SuggestedAction != ActionSell && bearish.SuggestedAction != ActionStrongSell {
		t.Fatalf("action = %q, want sell-side", bearish.SuggestedAction)
	}
	for _, s := range set.Scenarios {
		if s.Confidence < 30 || s.Confidence > 95 {
			t.Fatalf("%s confidence %.1f out of [30, 95]", s.Type, s.Confidence)
		}
	}
}

func TestScenarioTypesAreUnique(t *testing.T) {
	gen := newTestGenerator(t, &fakePrices{bars: decliningBars(40, 100, -0.8)})

	set, err := gen.GenerateScenarios(context.Background(), "AAPL", "week", false)
	if err != nil {
		t.Fatalf("GenerateScenarios: %v", err)
	}
	seen := make(map[Type]bool)
	for _, s := range set.Scenarios {
		if seen[s.Type] {
			t.Fatalf("duplicate scenario type %s", s.Type)
		}
		seen[s.Type] = true
	}
}

func TestCachedSetReusedWithinWindow(t *testing.T) {
	gen := newTestGenerator(t, &fakePrices{bars: decliningBars(30, 100, -0.5)})
	ctx := context.Background()

	first, err := gen.GenerateScenarios(ctx, "MSFT", "week", false)
	if err != nil {
		t.Fatalf("first generation: %v", err)
	}
	second, err := gen.GenerateScenarios(ctx, "MSFT", "week", false)
	if err != nil {
		t.Fatalf("second generation: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("expected the cached set inside the reuse window")
	}

	forced, err := gen.GenerateScenarios(ctx, "MSFT", "week", true)
	if err != nil {
		t.Fatalf("forced generation: %v", err)
	}
	if forced.ID == first.ID {
		t.Fatal("force did not bypass the cache")
	}
}

func TestRecordedOutcomeFreezesSet(t *testing.T) {
	gen := newTestGenerator(t, &fakePrices{bars: decliningBars(30, 100, -0.5)})
	ctx := context.Background()

	first, err := gen.GenerateScenarios(ctx, "NVDA", TimeframeToday, false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	settled, err := gen.RecordOutcome(ctx, "NVDA", TimeframeToday, 72.5)
	if err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}
	if settled.OutcomePrice == nil || *settled.OutcomePrice != 72.5 {
		t.Fatal("outcome price not recorded")
	}

	again, err := gen.GenerateScenarios(ctx, "NVDA", TimeframeToday, false)
	if err != nil {
		t.Fatalf("post-outcome generate: %v", err)
	}
	if again.ID != first.ID {
		t.Fatal("frozen set was regenerated without force")
	}
	if !again.Frozen() {
		t.Fatal("returned set lost its frozen state")
	}

	if _, err := gen.RecordOutcome(ctx, "NVDA", TimeframeToday, 71.0); !errors.Is(err, ErrOutcomeAlreadyRecorded) {
		t.Fatalf("second outcome: got %v, want ErrOutcomeAlreadyRecorded", err)
	}

	forced, err := gen.GenerateScenarios(ctx, "NVDA", TimeframeToday, true)
	if err != nil {
		t.Fatalf("forced post-outcome generate: %v", err)
	}
	if forced.ID == first.ID {
		t.Fatal("force did not supersede the frozen set")
	}
}

func TestMomentumCollapseForcesBearishPrimary(t *testing.T) {
	ind := indicators.Compute(nil)
	ind.Momentum = -4.0
	ind.RSI = indicators.RSIResult{Value: 25, Signal: indicators.SignalOversoldBuy, Strength: 0.17}
	ind.GoldenCross = true // bullish evidence that must not win

	cands := directionalRules(evalContext{
		Indicators: ind,
		Prediction: fusion.Prediction{Confidence: 60},
		Now:        time.Date(2026, 2, 3, 15, 0, 0, 0, time.UTC),
	}, nil)
	if len(cands) == 0 {
		t.Fatal("no directional candidates")
	}
	if cands[0].Type != TypeBearish {
		t.Fatalf("primary = %s, want bearish under momentum collapse", cands[0].Type)
	}
	if cands[0].Action != ActionStrongSell {
		t.Fatalf("action = %q, want strong_sell", cands[0].Action)
	}
}

func TestHeavyDropAddsFullWeight(t *testing.T) {
	ind := indicators.Compute(nil)
	ind.Change1D = -5.0

	_, bear, _, reasons := directionScores(evalContext{Indicators: ind})
	if bear < heavyDropScore {
		t.Fatalf("bear score = %.1f, want at least %.1f for a -5%% day", bear, heavyDropScore)
	}
	found := false
	for _, r := range reasons {
		if r != "" {
			found = true
		}
	}
	if !found {
		t.Fatal("heavy drop left no trigger reason")
	}
}

func TestCacheTTLBySession(t *testing.T) {
	if got := CacheTTL(TimeframeToday, market.SessionOpen); got != liveCacheTTL {
		t.Fatalf("today/open TTL = %v, want %v", got, liveCacheTTL)
	}
	if got := CacheTTL(TimeframeToday, market.SessionClosed); got != idleCacheTTL {
		t.Fatalf("today/closed TTL = %v, want %v", got, idleCacheTTL)
	}
	if got := CacheTTL("week", market.SessionOpen); got != idleCacheTTL {
		t.Fatalf("week/open TTL = %v, want %v", got, idleCacheTTL)
	}
}

func TestTimeFactorScaling(t *testing.T) {
	clock := newMarketClock()
	day := time.Date(2026, 2, 3, 0, 0, 0, 0, clock.loc)

	if got := clock.TimeFactor(day, market.SessionPreMarket); got != 1.0 {
		t.Fatalf("pre-market factor = %v, want 1.0", got)
	}
	if got := clock.TimeFactor(day, market.SessionClosed); got != closedTimeFactor {
		t.Fatalf("closed factor = %v, want %v", got, closedTimeFactor)
	}

	// Three-quarters through the session: sqrt(1/4) = 0.5
	at := time.Date(2026, 2, 3, 14, 22, 30, 0, clock.loc)
	got := clock.TimeFactor(at, market.SessionOpen)
	if got < 0.49 || got > 0.51 {
		t.Fatalf("late-session factor = %v, want ~0.5", got)
	}

	// Seconds before the close the floor holds
	nearClose := time.Date(2026, 2, 3, 15, 59, 59, 0, clock.loc)
	if got := clock.TimeFactor(nearClose, market.SessionOpen); got < minTimeFactor {
		t.Fatalf("near-close factor = %v, below floor %v", got, minTimeFactor)
	}
}
