package config_test

import (
	"os"
	"testing"

	"github.com/onlytrade/room-server/internal/config"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadAppliesDefaultsWhenEnvUnset(t *testing.T) {
	clearEnv(t, "AGENT_RUNTIME_CYCLE_MS", "RUNTIME_DATA_MODE", "STRICT_LIVE_MODE", "BETS_HOUSE_EDGE")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AgentRuntimeCycleMs != 30000 {
		t.Errorf("expected default cycle of 30000ms, got %d", cfg.AgentRuntimeCycleMs)
	}
	if cfg.RuntimeDataMode != config.DataModeLiveFile {
		t.Errorf("expected default data mode live_file, got %s", cfg.RuntimeDataMode)
	}
	if cfg.StrictLiveMode {
		t.Error("expected strict live mode to default to false")
	}
	if cfg.BetsHouseEdge != 0.08 {
		t.Errorf("expected default house edge 0.08, got %v", cfg.BetsHouseEdge)
	}
}

func TestLoadReadsOverridesFromEnv(t *testing.T) {
	clearEnv(t, "RUNTIME_DATA_MODE", "STRICT_LIVE_MODE", "AGENT_DECISION_EVERY_BARS")
	os.Setenv("RUNTIME_DATA_MODE", "replay")
	os.Setenv("STRICT_LIVE_MODE", "true")
	os.Setenv("AGENT_DECISION_EVERY_BARS", "7")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RuntimeDataMode != config.DataModeReplay {
		t.Errorf("expected replay mode, got %s", cfg.RuntimeDataMode)
	}
	if !cfg.StrictLiveMode {
		t.Error("expected strict live mode true")
	}
	if cfg.AgentDecisionEveryBars != 7 {
		t.Errorf("expected decision every 7 bars, got %d", cfg.AgentDecisionEveryBars)
	}
}

func TestLoadIgnoresMalformedNumericEnvAndFallsBackToDefault(t *testing.T) {
	clearEnv(t, "AGENT_RUNTIME_CYCLE_MS")
	os.Setenv("AGENT_RUNTIME_CYCLE_MS", "not-a-number")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AgentRuntimeCycleMs != 30000 {
		t.Errorf("expected malformed value to fall back to default 30000, got %d", cfg.AgentRuntimeCycleMs)
	}
}

func TestCycleDurationConvertsMillisecondsToDuration(t *testing.T) {
	cfg := &config.Config{AgentRuntimeCycleMs: 1500}
	if got := cfg.CycleDuration().Milliseconds(); got != 1500 {
		t.Errorf("expected 1500ms, got %d", got)
	}
}
