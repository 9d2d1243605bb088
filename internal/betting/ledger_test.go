package betting_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/onlytrade/room-server/internal/betting"
)

func newTestManager(t *testing.T) *betting.Manager {
	t.Helper()
	store := betting.NewStore(filepath.Join(t.TempDir(), "ledger.json"))
	cutoffs := map[string]betting.CloseCutoff{
		"CN-A": {Location: time.UTC, CloseHour: 15, CloseMinute: 0},
	}
	mgr, err := betting.NewManager(store, 0.08, cutoffs)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return mgr
}

func TestPlaceBetMovesStakeBetweenTraders(t *testing.T) {
	mgr := newTestManager(t)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	available := map[string]bool{"trader-a": true, "trader-b": true}

	if _, err := mgr.PlaceBet("CN-A", "2026-01-01", "sess-1", "nick", "trader-a", 100, available, now); err != nil {
		t.Fatalf("first PlaceBet: %v", err)
	}
	state, err := mgr.PlaceBet("CN-A", "2026-01-01", "sess-1", "nick", "trader-b", 50, available, now)
	if err != nil {
		t.Fatalf("second PlaceBet: %v", err)
	}

	if pool, ok := state.Pools["trader-a"]; ok && !pool.Amount.Equal(decimal.Zero) {
		t.Errorf("expected trader-a pool to be emptied after re-bet, got %v", pool.Amount)
	}
	if pool, ok := state.Pools["trader-b"]; !ok || !pool.Amount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected trader-b pool to hold 50, got %+v", pool)
	}
}

func TestPlaceBetRejectsUnavailableTrader(t *testing.T) {
	mgr := newTestManager(t)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	available := map[string]bool{"trader-a": true}

	if _, err := mgr.PlaceBet("CN-A", "2026-01-01", "sess-1", "nick", "trader-x", 100, available, now); err == nil {
		t.Fatal("expected error for unavailable trader")
	}
}

func TestPlaceBetRejectedWithinFreezeWindow(t *testing.T) {
	mgr := newTestManager(t)
	frozen := time.Date(2026, 1, 1, 14, 45, 0, 0, time.UTC)
	available := map[string]bool{"trader-a": true}

	if _, err := mgr.PlaceBet("CN-A", "2026-01-01", "sess-1", "nick", "trader-a", 100, available, frozen); err == nil {
		t.Fatal("expected error placing a bet inside the freeze window")
	}
}

func TestIsFrozenCrossesCloseMinusThirty(t *testing.T) {
	mgr := newTestManager(t)
	before := time.Date(2026, 1, 1, 14, 29, 0, 0, time.UTC)
	atCutoff := time.Date(2026, 1, 1, 14, 30, 0, 0, time.UTC)

	if mgr.IsFrozen("CN-A", before) {
		t.Error("expected not frozen one minute before the cutoff")
	}
	if !mgr.IsFrozen("CN-A", atCutoff) {
		t.Error("expected frozen exactly at close_minute-30")
	}
}

func TestSettleAwardsCreditsToWinnersOnly(t *testing.T) {
	mgr := newTestManager(t)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	available := map[string]bool{"winner": true, "loser": true}

	if _, err := mgr.PlaceBet("CN-A", "2026-01-01", "sess-1", "nick", "winner", 100, available, now); err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if _, err := mgr.PlaceBet("CN-A", "2026-01-01", "sess-2", "nick2", "loser", 100, available, now); err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}

	returns := map[string]decimal.Decimal{
		"winner": decimal.NewFromFloat(8.0),
		"loser":  decimal.NewFromFloat(-2.0),
	}
	closeTime := time.Date(2026, 1, 1, 15, 1, 0, 0, time.UTC)
	if err := mgr.Settle("CN-A", "2026-01-01", returns, closeTime); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	winnerRec, ok := mgr.Credits("sess-1")
	if !ok || winnerRec.CreditPoints <= 0 {
		t.Errorf("expected winner to be awarded credits, got %+v", winnerRec)
	}
	loserRec, ok := mgr.Credits("sess-2")
	if !ok || loserRec.CreditPoints != 0 {
		t.Errorf("expected loser to be awarded no credits, got %+v", loserRec)
	}

	// Settling twice must not double-award.
	firstPoints := winnerRec.CreditPoints
	if err := mgr.Settle("CN-A", "2026-01-01", returns, closeTime); err != nil {
		t.Fatalf("second Settle: %v", err)
	}
	winnerRec, _ = mgr.Credits("sess-1")
	if winnerRec.CreditPoints != firstPoints {
		t.Errorf("expected settlement to be idempotent, credits changed from %d to %d", firstPoints, winnerRec.CreditPoints)
	}
}
