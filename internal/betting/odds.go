// Package betting implements the prediction-market ledger over trader
// daily returns: pools, odds, freeze-at-cutoff and close-time settlement.
package betting

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// TraderReturn is one lobby trader's daily return used for odds.
type TraderReturn struct {
	TraderID string
	RetPct   float64
}

// Entry is one published odds row.
type Entry struct {
	TraderID string
	RetPct   float64
	Odds     float64
}

const defaultHouseEdge = 0.08

// ComputeOdds implements the pari-mutuel odds formula:
//   perf_score = exp(clamp(ret_pct, -20, 20) / 8)
//   crowd_share = pool.amount / total_stake
//   weighted = perf_score * (1 + 0.75*crowd_share)
//   implied_prob = weighted / sum(weighted)
//   odds = clamp((1-house_edge) / max(0.02, implied_prob), 1.05, 30)
// poolAmounts maps trader_id -> staked amount (may be zero/absent).
func ComputeOdds(returns []TraderReturn, poolAmounts map[string]decimal.Decimal, houseEdge float64) []Entry {
	if houseEdge <= 0 {
		houseEdge = defaultHouseEdge
	}

	totalStake := 0.0
	for _, r := range returns {
		if amt, ok := poolAmounts[r.TraderID]; ok {
			totalStake += toFloat(amt)
		}
	}

	type scored struct {
		TraderID string
		RetPct   float64
		Weighted float64
	}
	scoredEntries := make([]scored, 0, len(returns))
	sumWeighted := 0.0
	for _, r := range returns {
		clamped := clamp(r.RetPct, -20, 20)
		perfScore := math.Exp(clamped / 8)

		crowdShare := 0.0
		if totalStake > 0 {
			if amt, ok := poolAmounts[r.TraderID]; ok {
				crowdShare = toFloat(amt) / totalStake
			}
		}
		weighted := perfScore * (1 + 0.75*crowdShare)
		scoredEntries = append(scoredEntries, scored{TraderID: r.TraderID, RetPct: r.RetPct, Weighted: weighted})
		sumWeighted += weighted
	}

	out := make([]Entry, 0, len(scoredEntries))
	for _, s := range scoredEntries {
		impliedProb := 0.0
		if sumWeighted > 0 {
			impliedProb = s.Weighted / sumWeighted
		}
		odds := clamp((1-houseEdge)/math.Max(0.02, impliedProb), 1.05, 30)
		out = append(out, Entry{TraderID: s.TraderID, RetPct: s.RetPct, Odds: odds})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].RetPct != out[j].RetPct {
			return out[i].RetPct > out[j].RetPct
		}
		return out[i].Odds > out[j].Odds
	})
	return out
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

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
