package agentmemory_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/onlytrade/room-server/internal/agentmemory"
	"github.com/onlytrade/room-server/internal/applog"
	"github.com/onlytrade/room-server/internal/models"
)

func TestLoadReturnsDefaultSnapshotWhenNoFileExists(t *testing.T) {
	s := agentmemory.NewStore(t.TempDir(), applog.New("test"))
	snap := s.Load("alice")
	if snap.TraderID != "alice" {
		t.Errorf("expected trader id alice, got %s", snap.TraderID)
	}
	if !snap.Account.TotalEquity.Equal(models.InitialBalance) {
		t.Errorf("expected default total equity to equal InitialBalance, got %s", snap.Account.TotalEquity)
	}
}

func TestRecordSnapshotPersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	s := agentmemory.NewStore(dir, applog.New("test"))

	account := models.Account{TraderID: "alice", TotalEquity: decimal.NewFromInt(105000), DailyStartEquity: models.InitialBalance}
	effect := agentmemory.BookEffect{
		Executed:        true,
		UpdatedAccount:  account,
		UpdatedHoldings: map[string]models.Holding{"AAPL": {TraderID: "alice", Symbol: "AAPL", Shares: 10}},
	}
	decision := models.Decision{TraderID: "alice", Action: models.ActionBuy, Symbol: "AAPL"}

	if err := s.RecordSnapshot("alice", decision, effect, "2026-07-31", time.Now()); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}

	reloaded := agentmemory.NewStore(dir, applog.New("test"))
	snap := reloaded.Load("alice")
	if len(snap.RecentActions) != 1 {
		t.Fatalf("expected 1 recorded action, got %d", len(snap.RecentActions))
	}
	if _, ok := snap.Holdings["AAPL"]; !ok {
		t.Error("expected AAPL holding to be persisted")
	}
	if !snap.Account.TotalEquity.Equal(decimal.NewFromInt(105000)) {
		t.Errorf("expected persisted total equity 105000, got %s", snap.Account.TotalEquity)
	}
}

func TestRecordSnapshotFinalizesJournalOnDayRollover(t *testing.T) {
	s := agentmemory.NewStore(t.TempDir(), applog.New("test"))

	account1 := models.Account{TraderID: "alice", TotalEquity: decimal.NewFromInt(101000), DailyStartEquity: models.InitialBalance, DailyKey: "2026-07-30"}
	if err := s.RecordSnapshot("alice", models.Decision{TraderID: "alice"}, agentmemory.BookEffect{UpdatedAccount: account1}, "2026-07-30", time.Now()); err != nil {
		t.Fatalf("RecordSnapshot day 1: %v", err)
	}

	account2 := models.Account{TraderID: "alice", TotalEquity: decimal.NewFromInt(103000), DailyStartEquity: decimal.NewFromInt(101000), DailyKey: "2026-07-30"}
	if err := s.RecordSnapshot("alice", models.Decision{TraderID: "alice"}, agentmemory.BookEffect{UpdatedAccount: account2}, "2026-07-31", time.Now()); err != nil {
		t.Fatalf("RecordSnapshot day 2: %v", err)
	}

	snap := s.Load("alice")
	if len(snap.Journal) != 1 {
		t.Fatalf("expected 1 finalized journal entry after rollover, got %d", len(snap.Journal))
	}
	if snap.Journal[0].TradingDay != "2026-07-30" {
		t.Errorf("expected the finalized entry to be for 2026-07-30, got %s", snap.Journal[0].TradingDay)
	}
}

func TestResetTraderOnlyClearsSelectedScopes(t *testing.T) {
	dir := t.TempDir()
	s := agentmemory.NewStore(dir, applog.New("test"))

	effect := agentmemory.BookEffect{
		UpdatedAccount:  models.Account{TraderID: "alice", TotalEquity: decimal.NewFromInt(99000)},
		UpdatedHoldings: map[string]models.Holding{"AAPL": {TraderID: "alice", Symbol: "AAPL", Shares: 5}},
	}
	if err := s.RecordSnapshot("alice", models.Decision{TraderID: "alice"}, effect, "2026-07-31", time.Now()); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}

	if err := s.ResetTrader("alice", agentmemory.ResetScope{ResetPositions: true}); err != nil {
		t.Fatalf("ResetTrader: %v", err)
	}

	snap := s.Load("alice")
	if len(snap.Holdings) != 0 {
		t.Error("expected ResetPositions to clear holdings")
	}
	if len(snap.RecentActions) != 1 {
		t.Error("expected ResetPositions to leave recent actions untouched")
	}
}
