package roomevents_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onlytrade/room-server/internal/roomevents"
)

func TestPacketGateCoalescesConcurrentRequestsAtTheSameLimit(t *testing.T) {
	var calls int64
	release := make(chan struct{})
	gate := roomevents.NewPacketGate(func(ctx context.Context, limit int) (any, error) {
		atomic.AddInt64(&calls, 1)
		<-release
		return limit, nil
	})

	var wg sync.WaitGroup
	results := make([]any, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, _ := gate.Request(context.Background(), 10)
			results[i] = r
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("expected exactly 1 underlying build call, got %d", got)
	}
	for _, r := range results {
		if r != 10 {
			t.Errorf("expected every joiner to see the shared result 10, got %v", r)
		}
	}
}

func TestPacketGateHigherLimitBecomesNewPrimary(t *testing.T) {
	var seenLimits []int
	var mu sync.Mutex
	gate := roomevents.NewPacketGate(func(ctx context.Context, limit int) (any, error) {
		mu.Lock()
		seenLimits = append(seenLimits, limit)
		mu.Unlock()
		return limit, nil
	})

	first, _ := gate.Request(context.Background(), 10)
	second, _ := gate.Request(context.Background(), 50)

	if first != 10 || second != 50 {
		t.Errorf("expected sequential builds to return their own limits, got %v, %v", first, second)
	}
	if len(seenLimits) != 2 {
		t.Errorf("expected two separate builds when limit increases, got %v", seenLimits)
	}
}

func TestRequestSkipIfInFlightSkipsWhileBuildRunning(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gate := roomevents.NewPacketGate(func(ctx context.Context, limit int) (any, error) {
		close(started)
		<-release
		return limit, nil
	})

	go gate.Request(context.Background(), 10)
	<-started

	_, _, skipped := gate.RequestSkipIfInFlight(context.Background(), 10)
	if !skipped {
		t.Error("expected RequestSkipIfInFlight to skip while a build is in flight")
	}
	if gate.SkippedCount() != 1 {
		t.Errorf("expected skipped count 1, got %d", gate.SkippedCount())
	}
	close(release)
}
