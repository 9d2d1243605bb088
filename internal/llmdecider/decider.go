// Package llmdecider turns a decisioncontext.Context into a concrete
// trading decision by prompting an LLM, falling back to a deterministic
// rule when the LLM is disabled, errors, times out, or returns
// unparsable JSON.
package llmdecider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/onlytrade/room-server/internal/decisioncontext"
	"github.com/onlytrade/room-server/internal/llm"
	"github.com/onlytrade/room-server/internal/models"
)

// Output is the raw shape the LLM must return.
type Output struct {
	Action     string  `json:"action"`
	Symbol     string  `json:"symbol"`
	Quantity   int64   `json:"quantity"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type Decider struct {
	client          *llm.OpenAIClient
	model           string
	timeout         time.Duration
	maxOutputTokens int
	devTokenSaver   bool
}

func New(client *llm.OpenAIClient, model string, timeoutMs, maxOutputTokens int, devTokenSaver bool) *Decider {
	return &Decider{
		client:          client,
		model:           model,
		timeout:         time.Duration(timeoutMs) * time.Millisecond,
		maxOutputTokens: maxOutputTokens,
		devTokenSaver:   devTokenSaver,
	}
}

// Decide produces a Decision for one (trader, cycle). The returned
// decision's Source distinguishes llm from deterministic_fallback.
func (d *Decider) Decide(ctx context.Context, traderID string, cycleNumber int, dctx decisioncontext.Context, portfolio PortfolioLimits) models.Decision {
	if dctx.SyntheticHold != nil {
		dec := *dctx.SyntheticHold
		dec.CycleNumber = cycleNumber
		return dec
	}

	if d.client == nil || !d.client.Enabled() {
		return fallbackHold(traderID, dctx, cycleNumber, "llm disabled")
	}

	out, err := d.callLLM(ctx, dctx)
	if err != nil {
		return fallbackHold(traderID, dctx, cycleNumber, err.Error())
	}

	dec := models.Decision{
		Timestamp:   time.Now(),
		CycleNumber: cycleNumber,
		TraderID:    traderID,
		Symbol:      dctx.Symbol,
		Action:      models.Action(out.Action),
		Quantity:    out.Quantity,
		Confidence:  clampConfidence(out.Confidence),
		Reasoning:   truncate(out.Reasoning, 200),
		Source:      models.SourceLLM,
		LLMMeta:     &models.LLMMeta{Model: d.model},
	}

	enforcePortfolioLimits(&dec, dctx, portfolio)
	return dec
}

// PortfolioLimits carries the caps the context builder computed.
type PortfolioLimits struct {
	MaxPositionCount          int
	CurrentPositionCount      int
	MaxSymbolConcentrationPct float64
	MinCashReservePct         float64
	TurnoverThrottlePct       float64
}

func enforcePortfolioLimits(dec *models.Decision, dctx decisioncontext.Context, p PortfolioLimits) {
	if dec.Action != models.ActionBuy && dec.Action != models.ActionShort {
		return
	}
	if p.MaxPositionCount > 0 && p.CurrentPositionCount >= p.MaxPositionCount && dctx.PositionShares == 0 {
		dec.Action = models.ActionHold
		dec.Reasoning = "max_position_count reached"
	}
}

func (d *Decider) callLLM(ctx context.Context, dctx decisioncontext.Context) (Output, error) {
	system := "You are a disciplined trading decision engine. Respond with a single JSON object: {action, symbol, quantity, confidence, reasoning}. action must be one of BUY, SELL, SHORT, HOLD."
	user := buildUserPrompt(dctx, d.devTokenSaver)

	maxTokens := d.maxOutputTokens
	if d.devTokenSaver && maxTokens > 120 {
		maxTokens = 120
	}

	raw, err := d.client.ChatJSON(ctx, d.model, system, user, maxTokens, d.timeout)
	if err != nil {
		return Output{}, fmt.Errorf("llm_timeout: %w", err)
	}

	var out Output
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Output{}, fmt.Errorf("llm_parse_error: %w", err)
	}
	return out, nil
}

func buildUserPrompt(dctx decisioncontext.Context, compact bool) string {
	f := dctx.Features
	if compact {
		return fmt.Sprintf("symbol=%s ret5=%.4f ret20=%.4f rsi=%.1f trend=%s pos=%d",
			dctx.Symbol, f.Ret5, f.Ret20, f.RSI14, f.Trend, dctx.PositionShares)
	}
	return fmt.Sprintf(
		"symbol=%s ret_5=%.4f ret_20=%.4f atr_14=%.4f vol_ratio_20=%.2f rsi_14=%.1f sma_20=%.2f sma_60=%.2f range_20d_pct=%.4f trend=%s position_shares=%d cycle=%d",
		dctx.Symbol, f.Ret5, f.Ret20, f.ATR14, f.VolRatio20, f.RSI14, f.SMA20, f.SMA60, f.Range20DPct, f.Trend, dctx.PositionShares, dctx.CycleNumber,
	)
}

// fallbackHold implements deterministic HOLD: rationale
// derived directly from features, no LLM call involved.
func fallbackHold(traderID string, dctx decisioncontext.Context, cycleNumber int, reason string) models.Decision {
	f := dctx.Features
	rationale := fmt.Sprintf("5m ret %+.1f%%, RSI %.0f -> hold (%s)", f.Ret5*100, f.RSI14, reason)
	return models.Decision{
		Timestamp:   time.Now(),
		CycleNumber: cycleNumber,
		TraderID:    traderID,
		Symbol:      dctx.Symbol,
		Action:      models.ActionHold,
		Confidence:  0.5,
		Reasoning:   truncate(rationale, 200),
		Source:      models.SourceFallback,
	}
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
