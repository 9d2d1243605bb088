package agentruntime_test

import (
	"path/filepath"
	"testing"

	"github.com/onlytrade/room-server/internal/agentruntime"
)

func TestKillSwitchStartsInactiveWhenNoFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kill_switch.json")
	ks := agentruntime.NewKillSwitch(path, nil)
	if ks.Active() {
		t.Error("expected a fresh kill switch to start inactive")
	}
}

func TestKillSwitchActivateSetsStateAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kill_switch.json")
	ks := agentruntime.NewKillSwitch(path, nil)

	if err := ks.Activate("manual halt", "ops"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !ks.Active() {
		t.Fatal("expected kill switch to be active after Activate")
	}
	state := ks.State()
	if state.Reason != "manual halt" || state.ActivatedBy != "ops" {
		t.Errorf("unexpected state after activate: %+v", state)
	}
	if state.ActivatedAt == 0 {
		t.Error("expected ActivatedAt to be set")
	}

	reloaded := agentruntime.NewKillSwitch(path, nil)
	if !reloaded.Active() {
		t.Error("expected reloaded kill switch to read persisted active state")
	}
}

func TestKillSwitchDeactivateClearsActive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kill_switch.json")
	ks := agentruntime.NewKillSwitch(path, nil)
	if err := ks.Activate("manual halt", "ops"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := ks.Deactivate("ops2"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if ks.Active() {
		t.Error("expected kill switch to be inactive after Deactivate")
	}
	state := ks.State()
	if state.DeactivatedBy != "ops2" {
		t.Errorf("expected DeactivatedBy to be ops2, got %q", state.DeactivatedBy)
	}
}
