package providers

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"stock-scenario-engine/internal/market"
)

func TestRegionalBasketComposition(t *testing.T) {
	tests := []struct {
		region  market.Region
		members int
	}{
		{market.RegionEurope, 5},
		{market.RegionAsia, 4},
	}
	for _, tc := range tests {
		def := regionalBaskets[tc.region]
		if len(def) != tc.members {
			t.Errorf("%s basket has %d members, want %d", tc.region, len(def), tc.members)
		}
		total := 0.0
		for _, w := range def {
			total += w
		}
		if math.Abs(total-1.0) > 1e-9 {
			t.Errorf("%s basket weights sum to %.4f, want 1.0", tc.region, total)
		}
	}
}

type stubQuoter struct {
	changes map[string]float64
}

func (q *stubQuoter) GetLiveQuote(_ context.Context, symbol string) (*market.Quote, error) {
	change, ok := q.changes[symbol]
	if !ok {
		return nil, errors.New("symbol not quoted")
	}
	return &market.Quote{Symbol: symbol, ChangePercent: change}, nil
}

func TestBasketChangesCarryMemberErrors(t *testing.T) {
	q := &stubQuoter{changes: map[string]float64{
		"NIKKEI": 1.2,
		"HSI":    -0.4,
		"SENSEX": 0.8,
		// KOSPI missing: its member must carry the error
	}}
	c := NewBasketClient(q, zerolog.Nop())

	members, err := c.GetRegionalBasketChanges(context.Background(), market.RegionAsia)
	if err != nil {
		t.Fatalf("GetRegionalBasketChanges: %v", err)
	}
	if len(members) != 4 {
		t.Fatalf("got %d members, want 4", len(members))
	}
	if members["NIKKEI"].ChangePercent != 1.2 {
		t.Errorf("NIKKEI change = %.2f, want 1.2", members["NIKKEI"].ChangePercent)
	}
	if members["KOSPI"].Err == "" {
		t.Error("failed member should carry its error")
	}

	if _, err := c.GetRegionalBasketChanges(context.Background(), market.Region("atlantis")); err == nil {
		t.Error("unknown region must be refused")
	}
}
