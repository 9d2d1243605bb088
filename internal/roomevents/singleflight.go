package roomevents

import (
	"context"
	"sync"
)

// BuildFunc constructs a room packet parameterized by decisionLimit.
type BuildFunc func(ctx context.Context, decisionLimit int) (any, error)

type buildCall struct {
	decisionLimit int
	done          chan struct{}
	result        any
	err           error
}

// PacketGate coalesces concurrent packet builds for one room. Unlike
// golang.org/x/sync's key-based singleflight, joiners here are ranked by
// a monotone
// decisionLimit knob: a caller asking for more than the in-flight build
// covers must wait then become the new primary, never settle for a
// truncated result.
type PacketGate struct {
	mu     sync.Mutex
	active *buildCall
	build  BuildFunc

	skippedCount int64
}

func NewPacketGate(build BuildFunc) *PacketGate {
	return &PacketGate{build: build}
}

// Request joins an in-flight build if it already covers decisionLimit,
// otherwise waits for the current build (if any) and restarts as the
// new primary with the higher limit.
func (g *PacketGate) Request(ctx context.Context, decisionLimit int) (any, error) {
	for {
		g.mu.Lock()
		if g.active != nil {
			if g.active.decisionLimit >= decisionLimit {
				call := g.active
				g.mu.Unlock()
				<-call.done
				return call.result, call.err
			}
			call := g.active
			g.mu.Unlock()
			<-call.done
			continue // re-check: someone else may already have restarted with enough L
		}

		call := &buildCall{decisionLimit: decisionLimit, done: make(chan struct{})}
		g.active = call
		g.mu.Unlock()

		result, err := g.build(ctx, decisionLimit)
		call.result, call.err = result, err

		g.mu.Lock()
		if g.active == call {
			g.active = nil
		}
		g.mu.Unlock()
		close(call.done)
		return result, err
	}
}

// RequestSkipIfInFlight is used by the per-room packet timer
// (skipIfInFlight = true): it never joins an in-flight build, it just
// counts the skip and returns immediately.
func (g *PacketGate) RequestSkipIfInFlight(ctx context.Context, decisionLimit int) (result any, err error, skipped bool) {
	g.mu.Lock()
	if g.active != nil {
		g.skippedCount++
		g.mu.Unlock()
		return nil, nil, true
	}

	call := &buildCall{decisionLimit: decisionLimit, done: make(chan struct{})}
	g.active = call
	g.mu.Unlock()

	result, err = g.build(ctx, decisionLimit)
	call.result, call.err = result, err

	g.mu.Lock()
	if g.active == call {
		g.active = nil
	}
	g.mu.Unlock()
	close(call.done)
	return result, err, false
}

func (g *PacketGate) SkippedCount() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.skippedCount
}
