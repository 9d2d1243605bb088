package models_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/onlytrade/room-server/internal/models"
)

func TestTotalPnLIsEquityMinusInitialBalance(t *testing.T) {
	a := models.Account{
		InitialBalance: decimal.NewFromInt(100000),
		TotalEquity:    decimal.NewFromInt(105000),
	}
	if got := a.TotalPnL(); !got.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("TotalPnL = %s, want 5000", got)
	}
}

func TestTotalPnLPctReturnsZeroWhenInitialBalanceIsZero(t *testing.T) {
	a := models.Account{InitialBalance: decimal.Zero, TotalEquity: decimal.NewFromInt(500)}
	if got := a.TotalPnLPct(); !got.IsZero() {
		t.Errorf("expected zero pct with zero initial balance, got %s", got)
	}
}

func TestTotalPnLPctComputesPercentageGain(t *testing.T) {
	a := models.Account{
		InitialBalance: decimal.NewFromInt(100000),
		TotalEquity:    decimal.NewFromInt(110000),
	}
	if got := a.TotalPnLPct(); !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("TotalPnLPct = %s, want 10", got)
	}
}

func TestDailyPnLPctReturnsZeroWhenDailyStartEquityIsZero(t *testing.T) {
	a := models.Account{DailyStartEquity: decimal.Zero, TotalEquity: decimal.NewFromInt(500)}
	if got := a.DailyPnLPct(); !got.IsZero() {
		t.Errorf("expected zero pct with zero daily start equity, got %s", got)
	}
}

func TestDailyPnLPctComputesPercentageAgainstDailyStart(t *testing.T) {
	a := models.Account{
		DailyStartEquity: decimal.NewFromInt(100000),
		TotalEquity:      decimal.NewFromInt(99000),
	}
	if got := a.DailyPnLPct(); !got.Equal(decimal.NewFromInt(-1)) {
		t.Errorf("DailyPnLPct = %s, want -1", got)
	}
}

func TestHoldingMarketValueMultipliesSharesByMarkPrice(t *testing.T) {
	h := models.Holding{Shares: 300, MarkPrice: decimal.NewFromFloat(12.5)}
	want := decimal.NewFromFloat(3750)
	if got := h.MarketValue(); !got.Equal(want) {
		t.Errorf("MarketValue = %s, want %s", got, want)
	}
}
