package scenario

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stock-scenario-engine/internal/cache"
	"stock-scenario-engine/internal/fusion"
	"stock-scenario-engine/internal/indicators"
	"stock-scenario-engine/internal/macro"
	"stock-scenario-engine/internal/market"
	"stock-scenario-engine/internal/sentiment"
)

const (
	minBarsRequired = 20
	historyLookback = 120 // days of bars requested per cycle
	newsLookbackHrs = 48
	marketNewsLimit = 20
)

// ErrInsufficientHistory is returned when a symbol has too few price
// bars for the engine to produce anything trustworthy. The caller gets
// an explicit refusal, never a guess.
type ErrInsufficientHistory struct {
	Symbol string
	Bars   int
}

func (e ErrInsufficientHistory) Error() string {
	return fmt.Sprintf("insufficient history for %s: %d bars, need %d", e.Symbol, e.Bars, minBarsRequired)
}

// Deps wires the generator's collaborators.
type Deps struct {
	Prices    market.PriceProvider
	News      market.NewsProvider
	Analyzer  *sentiment.Analyzer
	FearGreed *macro.FearGreedService
	Baskets   *macro.BasketService
	Engine    *fusion.Engine
	Store     Store
	// Classes maps symbols to their stock-class tags for the macro
	// sentiment blend weight.
	Classes map[string][]string
	// Redis is an optional shared second-level cache for generated
	// sets, letting replicas reuse each other's work. May be nil.
	Redis *cache.CacheService
}

type cacheEntry struct {
	set     *Set
	expires time.Time
}

// Generator runs the full evidence-to-scenarios pipeline for one
// (symbol, timeframe) at a time. Concurrent requests for the same key
// serialize on a per-key mutex; different keys generate in parallel.
type Generator struct {
	deps   Deps
	clock  marketClock
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
	locks sync.Map // key -> *sync.Mutex
}

func NewGenerator(deps Deps, logger zerolog.Logger) *Generator {
	return &Generator{
		deps:   deps,
		clock:  newMarketClock(),
		logger: logger.With().Str("component", "ScenarioGenerator").Logger(),
		now:    time.Now,
		cache:  make(map[string]cacheEntry),
	}
}

func (g *Generator) keyLock(key string) *sync.Mutex {
	lock, _ := g.locks.LoadOrStore(key, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// GenerateScenarios produces (or returns the cached/frozen) scenario
// set for a symbol and timeframe. Frozen sets with a recorded outcome
// are returned as-is unless force is set; fresh cached sets short the
// pipeline inside their session-dependent window.
func (g *Generator) GenerateScenarios(ctx context.Context, symbol, timeframe string, force bool) (*Set, error) {
	key := storeKey(symbol, timeframe)
	lock := g.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	now := g.now()

	if active, err := g.deps.Store.GetActiveSet(ctx, symbol, timeframe); err == nil {
		if active.Frozen() && !force {
			return active, nil
		}
	}

	if !force {
		g.mu.Lock()
		entry, ok := g.cache[key]
		g.mu.Unlock()
		if ok && now.Before(entry.expires) {
			return entry.set, nil
		}
		if shared := g.sharedCached(ctx, symbol, timeframe); shared != nil {
			return shared, nil
		}
	}

	set, session, err := g.generate(ctx, symbol, timeframe, now)
	if err != nil {
		return nil, err
	}

	if err := g.deps.Store.SaveSet(ctx, set); err != nil {
		return nil, fmt.Errorf("save scenario set for %s: %w", symbol, err)
	}

	ttl := CacheTTL(timeframe, session)
	g.mu.Lock()
	g.cache[key] = cacheEntry{set: set, expires: now.Add(ttl)}
	g.mu.Unlock()

	if g.deps.Redis != nil {
		if err := g.deps.Redis.SetJSON(ctx, cache.ScenarioSetKey(symbol, timeframe), set, ttl); err != nil {
			g.logger.Debug().Err(err).Str("symbol", symbol).Msg("shared cache write skipped")
		}
	}

	g.logger.Info().
		Str("symbol", symbol).
		Str("timeframe", timeframe).
		Int("scenarios", len(set.Scenarios)).
		Msg("scenario set generated")
	return set, nil
}

// RecordOutcome settles the active set with a session close price and
// freezes it. Further non-forced generations return the frozen set.
func (g *Generator) RecordOutcome(ctx context.Context, symbol, timeframe string, closePrice float64) (*Set, error) {
	key := storeKey(symbol, timeframe)
	lock := g.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	set, err := g.deps.Store.RecordOutcome(ctx, symbol, timeframe, closePrice)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	delete(g.cache, key)
	g.mu.Unlock()
	if g.deps.Redis != nil {
		if err := g.deps.Redis.Delete(ctx, cache.ScenarioSetKey(symbol, timeframe)); err != nil {
			g.logger.Debug().Err(err).Str("symbol", symbol).Msg("shared cache delete skipped")
		}
	}
	return set, nil
}

// sharedCached checks the optional Redis cache for a set generated by
// another replica. A frozen set never lands here; outcomes delete the key.
func (g *Generator) sharedCached(ctx context.Context, symbol, timeframe string) *Set {
	if g.deps.Redis == nil {
		return nil
	}
	var set Set
	if err := g.deps.Redis.GetJSON(ctx, cache.ScenarioSetKey(symbol, timeframe), &set); err != nil {
		return nil
	}
	if set.ID == "" || len(set.Scenarios) == 0 {
		return nil
	}
	return &set
}

// signalSnapshot is the cached form of a fused-signal readout.
type signalSnapshot struct {
	Signal     fusion.FusedSignal `json:"signal"`
	Prediction fusion.Prediction  `json:"prediction"`
}

// FusedSignal runs the evidence pipeline without scenario building and
// returns the raw composite and sized prediction. Recent readouts are
// served from the shared cache to spare the provider round trips.
func (g *Generator) FusedSignal(ctx context.Context, symbol string) (fusion.FusedSignal, fusion.Prediction, error) {
	if g.deps.Redis != nil {
		var snap signalSnapshot
		if err := g.deps.Redis.GetJSON(ctx, cache.FusedSignalKey(symbol), &snap); err == nil {
			return snap.Signal, snap.Prediction, nil
		}
	}

	ev, _, err := g.gatherEvidence(ctx, symbol, g.now())
	if err != nil {
		return fusion.FusedSignal{}, fusion.Prediction{}, err
	}

	if g.deps.Redis != nil {
		snap := signalSnapshot{Signal: ev.Signal, Prediction: ev.Prediction}
		if err := g.deps.Redis.SetJSON(ctx, cache.FusedSignalKey(symbol), snap, cache.DefaultSignalTTL); err != nil {
			g.logger.Debug().Err(err).Str("symbol", symbol).Msg("signal cache write skipped")
		}
	}
	return ev.Signal, ev.Prediction, nil
}

// Indicators computes the raw indicator set for a symbol without
// running fusion or the scenario rules.
func (g *Generator) Indicators(ctx context.Context, symbol string) (*indicators.IndicatorSet, error) {
	bars, err := g.deps.Prices.GetPriceHistory(ctx, symbol, historyLookback)
	if err != nil {
		return nil, fmt.Errorf("price history for %s: %w", symbol, err)
	}
	if len(bars) < minBarsRequired {
		return nil, ErrInsufficientHistory{Symbol: symbol, Bars: len(bars)}
	}
	return indicators.Compute(bars), nil
}

// evidence is the fully assembled input state for one cycle.
type evidence struct {
	Indicators *indicators.IndicatorSet
	Signal     fusion.FusedSignal
	Prediction fusion.Prediction
	Sentiment  float64
	Price      float64
}

func (g *Generator) gatherEvidence(ctx context.Context, symbol string, now time.Time) (*evidence, market.SessionState, error) {
	bars, err := g.deps.Prices.GetPriceHistory(ctx, symbol, historyLookback)
	if err != nil {
		return nil, market.SessionClosed, fmt.Errorf("price history for %s: %w", symbol, err)
	}
	if len(bars) < minBarsRequired {
		return nil, market.SessionClosed, ErrInsufficientHistory{Symbol: symbol, Bars: len(bars)}
	}
	ind := indicators.Compute(bars)

	session := market.SessionClosed
	price := ind.Close
	quote, err := g.deps.Prices.GetLiveQuote(ctx, symbol)
	if err != nil {
		g.logger.Warn().Err(err).Str("symbol", symbol).Msg("live quote unavailable, using last close")
	} else {
		session = quote.Session
		if quote.Current > 0 {
			price = quote.Current
		}
	}

	stockNews := g.fetchNews(ctx, func(c context.Context) ([]market.NewsItem, error) {
		return g.deps.News.GetRecentNews(c, symbol, newsLookbackHrs)
	}, symbol)
	marketNews := g.fetchNews(ctx, func(c context.Context) ([]market.NewsItem, error) {
		return g.deps.News.GetMarketNews(c, marketNewsLimit)
	}, "market")

	stockNews = g.deps.Analyzer.EnsureScored(ctx, stockNews, false)
	marketNews = g.deps.Analyzer.EnsureScored(ctx, marketNews, false)

	stockScore := g.deps.Analyzer.AggregateScore(stockNews)
	macroScore := g.deps.Analyzer.AggregateScore(marketNews)

	urgent := g.deps.Analyzer.DetectUrgentBearish(append(append([]market.NewsItem(nil), stockNews...), marketNews...), now)
	tariffInNews := sentiment.TariffMentioned(marketNews)

	weight := sentiment.BlendWeight(g.deps.Classes[symbol], urgent.Active, tariffInNews)
	blended := sentiment.BlendScores(stockScore, macroScore, weight)

	fg := g.deps.FearGreed.Get(ctx)

	europe := g.deps.Baskets.Score(ctx, market.RegionEurope)
	asia := g.deps.Baskets.Score(ctx, market.RegionAsia)
	marketChange := europe.AvgChange*0.6 + asia.AvgChange*0.4

	in := fusion.Inputs{
		Indicators:     ind,
		SentimentScore: blended,
		NewsCount:      len(stockNews),
		MarketChange:   marketChange,
		FearGreed:      fg.Value,
		Urgent:         urgent,
	}
	signal := g.deps.Engine.Fuse(in)
	pred := g.deps.Engine.Predict(signal, in, price)

	return &evidence{
		Indicators: ind,
		Signal:     signal,
		Prediction: pred,
		Sentiment:  blended,
		Price:      price,
	}, session, nil
}

func (g *Generator) fetchNews(ctx context.Context, fetch func(context.Context) ([]market.NewsItem, error), scope string) []market.NewsItem {
	items, err := fetch(ctx)
	if err != nil {
		g.logger.Warn().Err(err).Str("scope", scope).Msg("news unavailable, proceeding without")
		return nil
	}
	return items
}

func (g *Generator) generate(ctx context.Context, symbol, timeframe string, now time.Time) (*Set, market.SessionState, error) {
	ev, session, err := g.gatherEvidence(ctx, symbol, now)
	if err != nil {
		return nil, session, err
	}

	ectx := evalContext{
		Indicators: ev.Indicators,
		Signal:     ev.Signal,
		Prediction: ev.Prediction,
		Sentiment:  ev.Sentiment,
		Now:        now,
	}
	candidates := evaluate(ectx)

	timeFactor := 1.0
	if timeframe == TimeframeToday {
		timeFactor = g.clock.TimeFactor(now, session)
	}

	scenarios := make([]Scenario, 0, len(candidates))
	for _, c := range candidates {
		scenarios = append(scenarios, g.buildScenario(c, ev, timeFactor, now, timeframe, session))
	}

	return &Set{
		ID:          uuid.New().String(),
		Symbol:      symbol,
		Timeframe:   timeframe,
		Scenarios:   scenarios,
		GeneratedAt: now,
		Active:      true,
	}, session, nil
}

// buildScenario sizes one candidate into a bounded price scenario. The
// prediction magnitude is the base; the candidate's evidence score
// scales it, the time factor shrinks intraday expectations as the
// session runs out, and the volatility regime caps the outer bound.
func (g *Generator) buildScenario(c candidate, ev *evidence, timeFactor float64, now time.Time, timeframe string, session market.SessionState) Scenario {
	ind := ev.Indicators

	base := math.Abs(ev.Prediction.ChangePercent)
	if base < 0.3 {
		base = math.Max(0.3, ind.ATR.Percent*0.5)
	}

	magnitude := base * (0.6 + 0.4*c.Score/12) * timeFactor
	ceiling := ind.Volatility.MaxMovePercent() * timeFactor
	if magnitude > ceiling {
		magnitude = ceiling
	}

	pct := magnitude * float64(c.Direction)
	minPct := pct * 0.4
	maxPct := pct * 1.6
	if math.Abs(maxPct) > ceiling {
		maxPct = ceiling * float64(c.Direction)
	}
	if c.Direction < 0 {
		minPct, maxPct = maxPct, minPct
	}

	return Scenario{
		ID:                    uuid.New().String(),
		Type:                  c.Type,
		Name:                  c.Name,
		ExpectedChangePercent: pct,
		ExpectedChangeMin:     minPct,
		ExpectedChangeMax:     maxPct,
		TargetPrice:           ev.Price * (1 + pct/100),
		Confidence:            c.Confidence,
		TriggerIndicators: map[string]float64{
			"rsi":          ind.RSI.Value,
			"macd":         ind.MACD.MACD,
			"momentum":     ind.Momentum,
			"volume_ratio": ind.VolumeRatio,
			"composite":    ev.Signal.Combined,
		},
		TriggerReasons:  c.Reasons,
		SuggestedAction: c.Action,
		UrgentOverride:  ev.Signal.UrgentBearish,
		ValidUntil:      validUntil(now, timeframe, session),
	}
}
