package decisioncontext_test

import (
	"testing"

	"github.com/onlytrade/room-server/internal/decisioncontext"
	"github.com/onlytrade/room-server/internal/models"
)

func TestScoreMeanReversionFavorsOversold(t *testing.T) {
	oversold := decisioncontext.Features{RSI14: 30, Trend: decisioncontext.TrendFlat}
	overbought := decisioncontext.Features{RSI14: 80, Trend: decisioncontext.TrendFlat}

	if decisioncontext.Score(models.StyleMeanReversion, oversold) <= decisioncontext.Score(models.StyleMeanReversion, overbought) {
		t.Error("mean reversion should score an oversold candidate higher than an overbought one")
	}
}

func TestScoreMomentumFavorsUptrend(t *testing.T) {
	uptrend := decisioncontext.Features{Ret20: 0.05, Trend: decisioncontext.TrendUp}
	downtrend := decisioncontext.Features{Ret20: 0.05, Trend: decisioncontext.TrendDown}

	if decisioncontext.Score(models.StyleMomentum, uptrend) <= decisioncontext.Score(models.StyleMomentum, downtrend) {
		t.Error("momentum trend should score an uptrend candidate higher than a downtrend one with identical returns")
	}
}

func TestScoreAddsHeldPositionBonus(t *testing.T) {
	flat := decisioncontext.Features{Trend: decisioncontext.TrendFlat}
	held := flat
	held.PositionShares = 100

	got := decisioncontext.Score(models.StyleMomentum, held) - decisioncontext.Score(models.StyleMomentum, flat)
	if got < 0.0499 || got > 0.0501 {
		t.Errorf("expected held-position bonus of exactly 0.05, got %v", got)
	}
}
