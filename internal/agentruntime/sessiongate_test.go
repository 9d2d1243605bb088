package agentruntime_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/onlytrade/room-server/internal/agentruntime"
	"github.com/onlytrade/room-server/internal/applog"
	"github.com/onlytrade/room-server/internal/clock"
	"github.com/onlytrade/room-server/internal/marketdata"
)

type stubFreshChecker struct{ stale bool }

func (s stubFreshChecker) MarketErroringOrStale(m marketdata.Market) bool { return s.stale }

func TestCalendarClosedOnWeekend(t *testing.T) {
	sat := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	if phase := agentruntime.Calendar(marketdata.MarketCNA, sat); phase != agentruntime.PhaseClosed {
		t.Errorf("expected PhaseClosed on Saturday, got %s", phase)
	}
}

func TestCalendarCNAContinuousSessions(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	cases := []struct {
		name string
		hm   [2]int
		want agentruntime.SessionPhase
	}{
		{"pre-open", [2]int{9, 20}, agentruntime.PhasePreOpen},
		{"morning continuous", [2]int{10, 0}, agentruntime.PhaseContinuousAM},
		{"lunch", [2]int{12, 0}, agentruntime.PhaseLunch},
		{"afternoon continuous", [2]int{13, 30}, agentruntime.PhaseContinuousPM},
		{"close auction", [2]int{14, 58}, agentruntime.PhaseCloseAuction},
		{"after close", [2]int{15, 30}, agentruntime.PhaseClosed},
	}
	// 2026-08-03 is a Monday.
	for _, c := range cases {
		now := time.Date(2026, 8, 3, c.hm[0], c.hm[1], 0, 0, loc)
		if got := agentruntime.Calendar(marketdata.MarketCNA, now); got != c.want {
			t.Errorf("%s: expected %s, got %s", c.name, c.want, got)
		}
	}
}

func TestCalendarUSSingleContinuousSession(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	open := time.Date(2026, 8, 3, 10, 0, 0, 0, loc)
	if got := agentruntime.Calendar(marketdata.MarketUS, open); got != agentruntime.PhaseContinuousAM {
		t.Errorf("expected PhaseContinuousAM during US session, got %s", got)
	}
	closed := time.Date(2026, 8, 3, 20, 0, 0, 0, loc)
	if got := agentruntime.Calendar(marketdata.MarketUS, closed); got != agentruntime.PhaseClosed {
		t.Errorf("expected PhaseClosed after US session, got %s", got)
	}
}

func TestIsSessionOpen(t *testing.T) {
	open := []agentruntime.SessionPhase{
		agentruntime.PhasePreOpen, agentruntime.PhaseContinuousAM, agentruntime.PhaseLunch,
		agentruntime.PhaseContinuousPM, agentruntime.PhaseCloseAuction,
	}
	for _, p := range open {
		if !agentruntime.IsSessionOpen(p) {
			t.Errorf("expected %s to be an open phase", p)
		}
	}
	if agentruntime.IsSessionOpen(agentruntime.PhaseClosed) {
		t.Error("expected PhaseClosed to not be an open phase")
	}
}

func TestSessionGateStartRecomputesOnFakeClockTick(t *testing.T) {
	// A Monday 10:00 Shanghai time, well within the CN-A continuous
	// session, so SetActiveTraders should mark alice allowed once
	// recompute runs.
	loc, _ := time.LoadLocation("Asia/Shanghai")
	start := time.Date(2026, 8, 3, 10, 0, 0, 0, loc)
	fk := clock.NewFake(start)

	ks := agentruntime.NewKillSwitch(filepath.Join(t.TempDir(), "kill_switch.json"), nil)
	r := agentruntime.New(applog.New("test"), fk, 50, ks, agentruntime.Hooks{})

	gate := agentruntime.NewSessionGate(r, fk, stubFreshChecker{stale: false}, false,
		func(string) marketdata.Market { return marketdata.MarketCNA },
		func() []string { return []string{"alice"} })

	gate.Start(time.Second)
	defer gate.Stop()

	if got := r.GetStatus().ActiveTraders; got != 1 {
		t.Fatalf("expected recompute to mark alice active, got %d active traders", got)
	}

	snap := gate.SnapshotFor("alice")
	if !snap.SessionIsOpen {
		t.Fatal("expected session to be open at construction-time recompute")
	}

	fk.Advance(2 * time.Second)
	if !gate.SnapshotFor("alice").LiveFreshOK {
		t.Error("expected live data to be reported fresh")
	}
}
