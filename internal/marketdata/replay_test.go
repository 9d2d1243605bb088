package marketdata_test

import (
	"testing"

	"github.com/onlytrade/room-server/internal/marketdata"
)

func sampleFrames(n int) map[string]map[string][]marketdata.Frame {
	frames := make([]marketdata.Frame, n)
	for i := range frames {
		frames[i] = marketdata.Frame{WindowStartMs: int64(i)}
	}
	return map[string]map[string][]marketdata.Frame{
		"AAPL": {string(marketdata.Interval1m): frames},
	}
}

func TestReplayEngineStepAdvancesCursor(t *testing.T) {
	r := marketdata.NewReplayEngine(sampleFrames(5), 1, 1000, 0, false)
	cursor, _, _, _, _ := r.Status()
	if cursor != 0 {
		t.Fatalf("expected initial cursor 0, got %d", cursor)
	}
	r.Step()
	cursor, _, _, _, _ = r.Status()
	if cursor != 1 {
		t.Errorf("expected cursor 1 after one Step, got %d", cursor)
	}
}

func TestReplayEngineGetFramesReturnsUpToCursor(t *testing.T) {
	r := marketdata.NewReplayEngine(sampleFrames(5), 1, 1000, 0, false)
	r.Step()
	r.Step()

	got := r.GetFrames("AAPL", marketdata.Interval1m, 10)
	if len(got) != 3 {
		t.Fatalf("expected 3 frames visible at cursor=2, got %d", len(got))
	}
	if got[len(got)-1].WindowStartMs != 2 {
		t.Errorf("expected last visible frame to be index 2, got %d", got[len(got)-1].WindowStartMs)
	}
}

func TestReplayEngineGetFramesRespectsLimit(t *testing.T) {
	r := marketdata.NewReplayEngine(sampleFrames(10), 1, 1000, 0, false)
	for i := 0; i < 5; i++ {
		r.Step()
	}
	got := r.GetFrames("AAPL", marketdata.Interval1m, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 frames with limit=2, got %d", len(got))
	}
}

func TestReplayEngineSetCursorValidatesBounds(t *testing.T) {
	r := marketdata.NewReplayEngine(sampleFrames(5), 1, 1000, 0, false)
	if r.SetCursor(-1) {
		t.Error("expected negative cursor to be rejected")
	}
	if r.SetCursor(100) {
		t.Error("expected out-of-range cursor to be rejected")
	}
	if !r.SetCursor(3) {
		t.Fatal("expected in-range cursor to be accepted")
	}
	cursor, _, _, _, _ := r.Status()
	if cursor != 3 {
		t.Errorf("expected cursor 3, got %d", cursor)
	}
}

func TestReplayEngineWithoutLoopPausesAtEnd(t *testing.T) {
	r := marketdata.NewReplayEngine(sampleFrames(3), 1, 1000, 0, false)
	r.Step()
	r.Step()
	r.Step()
	r.Step()

	cursor, length, running, _, _ := r.Status()
	if running {
		t.Error("expected replay to auto-pause at the end when loop=false")
	}
	if cursor != length-1 {
		t.Errorf("expected cursor to stay at last index %d, got %d", length-1, cursor)
	}
}

func TestReplayEngineWithLoopWrapsToWarmup(t *testing.T) {
	r := marketdata.NewReplayEngine(sampleFrames(3), 1, 1000, 1, true)
	r.Step()
	r.Step()

	cursor, _, _, _, _ := r.Status()
	if cursor != 1 {
		t.Errorf("expected cursor to wrap back to warmup=1, got %d", cursor)
	}
}
