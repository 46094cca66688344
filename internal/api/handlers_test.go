package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stock-scenario-engine/config"
	"stock-scenario-engine/internal/fusion"
	"stock-scenario-engine/internal/macro"
	"stock-scenario-engine/internal/market"
	"stock-scenario-engine/internal/scenario"
	"stock-scenario-engine/internal/sentiment"
)

type stubPrices struct {
	bars []market.PriceBar
}

func (s *stubPrices) GetPriceHistory(_ context.Context, _ string, _ int) ([]market.PriceBar, error) {
	return s.bars, nil
}

func (s *stubPrices) GetLiveQuote(_ context.Context, _ string) (*market.Quote, error) {
	return nil, errors.New("quote feed down")
}

type stubNews struct{}

func (stubNews) GetRecentNews(_ context.Context, _ string, _ int) ([]market.NewsItem, error) {
	return nil, nil
}

func (stubNews) GetMarketNews(_ context.Context, _ int) ([]market.NewsItem, error) {
	return nil, nil
}

func trendBars(n int, start, dailyPct float64) []market.PriceBar {
	bars := make([]market.PriceBar, n)
	price := start
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		price *= 1 + dailyPct/100
		bars[i] = market.PriceBar{
			Date:   day.AddDate(0, 0, i),
			Open:   price * 0.995,
			High:   price * 1.01,
			Low:    price * 0.99,
			Close:  price,
			Volume: 1_000_000,
		}
	}
	return bars
}

func newTestServer(t *testing.T, bars []market.PriceBar) *Server {
	t.Helper()
	logger := zerolog.Nop()

	engine, err := fusion.NewEngine(fusion.DefaultWeights(), logger)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	keywords := sentiment.NewKeywordService(nil, logger)
	store := scenario.NewMemoryStore()

	gen := scenario.NewGenerator(scenario.Deps{
		Prices:    &stubPrices{bars: bars},
		News:      stubNews{},
		Analyzer:  sentiment.NewAnalyzer(keywords, logger),
		FearGreed: macro.NewFearGreedService(nil, logger),
		Baskets:   macro.NewBasketService(nil, 0, logger),
		Engine:    engine,
		Store:     store,
	}, logger)

	cfg := config.ServerConfig{Host: "127.0.0.1", Port: 0, AllowedOrigins: "*"}
	srv := NewServer(cfg, Deps{
		Generator: gen,
		Store:     store,
		Keywords:  keywords,
	}, logger)
	t.Cleanup(srv.hub.Close)
	return srv
}

func doRequest(srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestGetScenariosReturnsActiveSet(t *testing.T) {
	srv := newTestServer(t, trendBars(30, 100, 1))

	rec := doRequest(srv, http.MethodGet, "/api/scenarios/aapl", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool         `json:"success"`
		Data    scenario.Set `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success response")
	}
	if resp.Data.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", resp.Data.Symbol)
	}
	if len(resp.Data.Scenarios) == 0 {
		t.Fatal("expected at least one scenario")
	}
}

func TestGetScenariosWithShortHistory(t *testing.T) {
	srv := newTestServer(t, trendBars(5, 100, 1))

	rec := doRequest(srv, http.MethodGet, "/api/scenarios/MSFT", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestRecordOutcomeLifecycle(t *testing.T) {
	srv := newTestServer(t, trendBars(30, 100, 1))

	if rec := doRequest(srv, http.MethodGet, "/api/scenarios/NVDA", nil); rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d", rec.Code)
	}

	body := []byte(`{"close_price": 105.25}`)
	rec := doRequest(srv, http.MethodPost, "/api/scenarios/NVDA/outcome", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("outcome status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(srv, http.MethodPost, "/api/scenarios/NVDA/outcome", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second outcome status = %d, want 409", rec.Code)
	}
}

func TestRecordOutcomeWithoutActiveSet(t *testing.T) {
	srv := newTestServer(t, trendBars(30, 100, 1))

	rec := doRequest(srv, http.MethodPost, "/api/scenarios/TSLA/outcome", []byte(`{"close_price": 250}`))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRecordOutcomeRejectsBadBody(t *testing.T) {
	srv := newTestServer(t, trendBars(30, 100, 1))

	rec := doRequest(srv, http.MethodPost, "/api/scenarios/TSLA/outcome", []byte(`{"close_price": -5}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSignalEndpoint(t *testing.T) {
	srv := newTestServer(t, trendBars(30, 100, -1))

	rec := doRequest(srv, http.MethodGet, "/api/signal/AMD", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			Symbol     string            `json:"symbol"`
			Signal     fusion.FusedSignal `json:"signal"`
			Prediction fusion.Prediction  `json:"prediction"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Prediction.Confidence < 30 || resp.Data.Prediction.Confidence > 95 {
		t.Errorf("confidence %f outside range", resp.Data.Prediction.Confidence)
	}
}

func TestIndicatorsEndpoint(t *testing.T) {
	srv := newTestServer(t, trendBars(30, 100, 1))

	rec := doRequest(srv, http.MethodGet, "/api/indicators/AAPL", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			Symbol     string `json:"symbol"`
			Indicators struct {
				BarCount int     `json:"bar_count"`
				Close    float64 `json:"close"`
			} `json:"indicators"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Indicators.BarCount != 30 {
		t.Errorf("bar_count = %d, want 30", resp.Data.Indicators.BarCount)
	}
	if resp.Data.Indicators.Close <= 0 {
		t.Error("close should be positive")
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, trendBars(30, 100, 1))

	rec := doRequest(srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Checks["database"] != "memory" {
		t.Errorf("database check = %q, want memory", resp.Checks["database"])
	}
}

func TestAuthStatusDisabled(t *testing.T) {
	srv := newTestServer(t, trendBars(30, 100, 1))

	rec := doRequest(srv, http.MethodGet, "/api/auth/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Enabled {
		t.Error("auth should be disabled")
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.Allow("/api/test") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if rl.Allow("/api/test") {
		t.Error("fourth request should be limited")
	}
	if !rl.Allow("/api/other") {
		t.Error("separate endpoint should not be limited")
	}
}
