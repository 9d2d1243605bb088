package betting_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/onlytrade/room-server/internal/betting"
)

func TestComputeOddsRanksByReturnDescending(t *testing.T) {
	returns := []betting.TraderReturn{
		{TraderID: "a", RetPct: 1.2},
		{TraderID: "b", RetPct: 5.0},
		{TraderID: "c", RetPct: -2.0},
	}
	entries := betting.ComputeOdds(returns, nil, 0.08)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].TraderID != "b" || entries[1].TraderID != "a" || entries[2].TraderID != "c" {
		t.Fatalf("unexpected ranking order: %+v", entries)
	}
}

func TestComputeOddsStaysWithinClampBounds(t *testing.T) {
	returns := []betting.TraderReturn{
		{TraderID: "a", RetPct: 100},
		{TraderID: "b", RetPct: -100},
	}
	entries := betting.ComputeOdds(returns, nil, 0.08)
	for _, e := range entries {
		if e.Odds < 1.05 || e.Odds > 30 {
			t.Errorf("odds %v out of clamp range for trader %s", e.Odds, e.TraderID)
		}
	}
}

func TestComputeOddsCrowdShareLowersOddsForHeavilyBackedTrader(t *testing.T) {
	returns := []betting.TraderReturn{
		{TraderID: "a", RetPct: 1.0},
		{TraderID: "b", RetPct: 1.0},
	}
	noStake := betting.ComputeOdds(returns, nil, 0.08)

	pool := map[string]decimal.Decimal{
		"a": decimal.NewFromInt(900),
		"b": decimal.NewFromInt(100),
	}
	withStake := betting.ComputeOdds(returns, pool, 0.08)

	oddsFor := func(entries []betting.Entry, id string) float64 {
		for _, e := range entries {
			if e.TraderID == id {
				return e.Odds
			}
		}
		t.Fatalf("trader %s missing from entries", id)
		return 0
	}

	baseline := oddsFor(noStake, "a")
	crowded := oddsFor(withStake, "a")
	if crowded >= baseline {
		t.Errorf("expected heavily-backed trader's odds to drop below baseline %.4f, got %.4f", baseline, crowded)
	}
}

func TestComputeOddsDefaultsHouseEdgeWhenNonPositive(t *testing.T) {
	returns := []betting.TraderReturn{{TraderID: "a", RetPct: 0}}
	a := betting.ComputeOdds(returns, nil, 0)
	b := betting.ComputeOdds(returns, nil, 0.08)
	if a[0].Odds != b[0].Odds {
		t.Errorf("expected zero house edge to fall back to default, got %.4f vs %.4f", a[0].Odds, b[0].Odds)
	}
}
