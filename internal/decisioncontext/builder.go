package decisioncontext

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/onlytrade/room-server/internal/marketdata"
	"github.com/onlytrade/room-server/internal/models"
)

// Readiness levels gate whether the LLM may be called at all.
type Readiness string

const (
	ReadinessOK    Readiness = "OK"
	ReadinessWARN  Readiness = "WARN"
	ReadinessERROR Readiness = "ERROR"
)

// Limits bundles the configured thresholds the builder enforces.
type Limits struct {
	CandidateSymbolLimit int
	StrictSymbolLoop     bool
	StrictLiveMode       bool
	FreshWarnMs          int64
	FreshErrorMs         int64
	MinIntraday          int
	MinDaily             int
	OpeningPhaseMaxLots  int
	OpeningPhaseMaxConf  float64
	OpeningPhaseWindowMs int64
	IsOpeningPhase       bool
}

// Candidate is one scored symbol in the ranked set.
type Candidate struct {
	Symbol   string
	Score    float64
	Features Features
}

// SessionSnapshot is the gate tag carried into the context.
type SessionSnapshot struct {
	SessionIsOpen bool
	LiveFreshOK   bool
}

// Context is what the LLM decider / deterministic fallback consumes.
type Context struct {
	TraderID        string
	CycleNumber     int
	Symbol          string
	Candidates      []Candidate
	Features        Features
	Readiness       Readiness
	ReadinessReason string
	Session         SessionSnapshot
	PositionShares  int64
	Limits          Limits
	SyntheticHold   *models.Decision
}

// Source abstracts the intraday/daily frame fetch so the builder does
// not depend on marketdata.Adapter's concrete error types directly.
type Source interface {
	GetFrames(ctx context.Context, symbol string, interval marketdata.Interval, limit int) (marketdata.Batch, error)
	MarketErroringOrStale(m marketdata.Market) bool
	LiveFileStatus(m marketdata.Market) (marketdata.Status, bool)
}

// Build assembles the Context for one trader/cycle. nowMs is the
// scheduler's current time, used to age the market's live file (its
// Status.LastMtimeMs) against Limits.FreshWarnMs/FreshErrorMs.
func Build(ctx context.Context, src Source, trader models.Trader, pool []string, cycleNumber int, positionsBySymbol map[string]int64, limits Limits, nowMs int64) Context {
	if len(pool) == 0 {
		pool = trader.StockPool
	}
	if limits.CandidateSymbolLimit > 0 && len(pool) > limits.CandidateSymbolLimit {
		pool = pool[:limits.CandidateSymbolLimit]
	}

	market := marketdata.MarketCNA
	if trader.ExchangeID == models.ExchangeUS {
		market = marketdata.MarketUS
	}

	filtered := make([]string, 0, len(pool))
	for _, sym := range pool {
		if limits.StrictLiveMode && src.MarketErroringOrStale(market) {
			continue
		}
		filtered = append(filtered, sym)
	}

	candidates := make([]Candidate, 0, len(filtered))
	featuresBySymbol := make(map[string]Features, len(filtered))
	for _, sym := range filtered {
		daily, err := src.GetFrames(ctx, sym, marketdata.Interval1d, 180)
		if err != nil {
			continue
		}
		f := ComputeFeatures(daily.Frames, positionsBySymbol[sym])
		featuresBySymbol[sym] = f
		candidates = append(candidates, Candidate{
			Symbol:   sym,
			Score:    Score(trader.TradingStyle, f),
			Features: f,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	selected := selectSymbol(trader.TraderID, cycleNumber, pool, filtered, candidates, limits.StrictSymbolLoop)

	c := Context{
		TraderID:       trader.TraderID,
		CycleNumber:    cycleNumber,
		Symbol:         selected,
		Candidates:     candidates,
		PositionShares: positionsBySymbol[selected],
		Limits:         limits,
	}
	if f, ok := featuresBySymbol[selected]; ok {
		c.Features = f
	}

	intraday, _ := src.GetFrames(ctx, selected, marketdata.Interval1m, 180)

	var freshAgeMs int64
	var freshKnown bool
	if st, ok := src.LiveFileStatus(market); ok && st.LastMtimeMs > 0 {
		freshAgeMs = nowMs - st.LastMtimeMs
		freshKnown = true
	}

	c.Readiness, c.ReadinessReason = evaluateReadiness(len(intraday.Frames), len(daily(src, ctx, selected)), freshAgeMs, freshKnown, limits)

	if c.Readiness == ReadinessERROR {
		c.SyntheticHold = &models.Decision{
			TraderID:   trader.TraderID,
			Symbol:     selected,
			Action:     models.ActionHold,
			Confidence: 0.51,
			Reasoning:  fmt.Sprintf("data readiness ERROR: %s", c.ReadinessReason),
			Source:     models.SourceReadinessGate,
		}
	}

	return c
}

func daily(src Source, ctx context.Context, symbol string) []marketdata.Frame {
	b, err := src.GetFrames(ctx, symbol, marketdata.Interval1d, 180)
	if err != nil {
		return nil
	}
	return b.Frames
}

// selectSymbol picks the symbol for one cycle: strict loop coverage when
// enabled and the loop pick survives the filter, otherwise the
// rank-score leader.
func selectSymbol(traderID string, cycleNumber int, fullPool, filtered []string, ranked []Candidate, strictLoop bool) string {
	if strictLoop && len(fullPool) > 0 {
		idx := int((hashStr(traderID) + uint64(cycleNumber)) % uint64(len(fullPool)))
		loopPick := fullPool[idx]
		for _, sym := range filtered {
			if sym == loopPick {
				return loopPick
			}
		}
	}
	if len(ranked) > 0 {
		return ranked[0].Symbol
	}
	if len(filtered) > 0 {
		return filtered[0]
	}
	if len(fullPool) > 0 {
		return fullPool[0]
	}
	return ""
}

func hashStr(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func evaluateReadiness(intradayCount, dailyCount int, freshAgeMs int64, freshKnown bool, limits Limits) (Readiness, string) {
	minIntraday := limits.MinIntraday
	if limits.IsOpeningPhase && limits.OpeningPhaseMaxLots > 0 {
		minIntraday = 1
	}

	level, reason := ReadinessOK, ""
	switch {
	case intradayCount == 0 || dailyCount == 0:
		level, reason = ReadinessERROR, "no frames available for selected symbol"
	case intradayCount < minIntraday || dailyCount < limits.MinDaily:
		if intradayCount < minIntraday/2 || dailyCount < limits.MinDaily/2 {
			level, reason = ReadinessERROR, fmt.Sprintf("insufficient frames: intraday=%d daily=%d", intradayCount, dailyCount)
		} else {
			level, reason = ReadinessWARN, fmt.Sprintf("marginal frames: intraday=%d daily=%d", intradayCount, dailyCount)
		}
	}

	if !freshKnown {
		return level, reason
	}

	switch {
	case limits.FreshErrorMs > 0 && freshAgeMs > limits.FreshErrorMs:
		return worseReadiness(level, ReadinessERROR), fmt.Sprintf("stale live data: age_ms=%d", freshAgeMs)
	case limits.FreshWarnMs > 0 && freshAgeMs > limits.FreshWarnMs:
		return worseReadiness(level, ReadinessWARN), fmt.Sprintf("live data aging: age_ms=%d", freshAgeMs)
	}
	return level, reason
}

func readinessRank(r Readiness) int {
	switch r {
	case ReadinessERROR:
		return 2
	case ReadinessWARN:
		return 1
	default:
		return 0
	}
}

func worseReadiness(a, b Readiness) Readiness {
	if readinessRank(b) > readinessRank(a) {
		return b
	}
	return a
}
