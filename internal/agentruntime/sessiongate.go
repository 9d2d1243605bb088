package agentruntime

import (
	"sync"
	"time"

	"github.com/onlytrade/room-server/internal/clock"
	"github.com/onlytrade/room-server/internal/marketdata"
)

// SessionPhase names one segment of a trading day's calendar.
type SessionPhase string

const (
	PhasePreOpen      SessionPhase = "pre_open"
	PhaseContinuousAM SessionPhase = "continuous_am"
	PhaseLunch        SessionPhase = "lunch"
	PhaseContinuousPM SessionPhase = "continuous_pm"
	PhaseCloseAuction SessionPhase = "close_auction"
	PhaseClosed       SessionPhase = "closed"
)

// Calendar resolves a market's current session phase from localized wall
// clock. Grounded on phase list for CN-A; US gets a
// simpler single continuous session.
func Calendar(market marketdata.Market, now time.Time) SessionPhase {
	loc := cnaLoc
	if market == marketdata.MarketUS {
		loc = usLoc
	}
	local := now.In(loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return PhaseClosed
	}
	minutes := local.Hour()*60 + local.Minute()

	if market == marketdata.MarketCNA {
		switch {
		case minutes >= 9*60+15 && minutes < 9*60+25:
			return PhasePreOpen
		case minutes >= 9*60+30 && minutes < 11*60+30:
			return PhaseContinuousAM
		case minutes >= 11*60+30 && minutes < 13*60:
			return PhaseLunch
		case minutes >= 13*60 && minutes < 14*60+57:
			return PhaseContinuousPM
		case minutes >= 14*60+57 && minutes < 15*60:
			return PhaseCloseAuction
		default:
			return PhaseClosed
		}
	}

	switch {
	case minutes >= 9*60+30 && minutes < 16*60:
		return PhaseContinuousAM
	default:
		return PhaseClosed
	}
}

func IsSessionOpen(phase SessionPhase) bool {
	switch phase {
	case PhasePreOpen, PhaseContinuousAM, PhaseLunch, PhaseContinuousPM, PhaseCloseAuction:
		return true
	default:
		return false
	}
}

var (
	cnaLoc = mustLoadLocation("Asia/Shanghai")
	usLoc  = mustLoadLocation("America/New_York")
)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LiveFreshChecker reports whether a market's live data is fresh enough
// to permit agent cycles.
type LiveFreshChecker interface {
	MarketErroringOrStale(m marketdata.Market) bool
}

// SessionGate periodically recomputes per-market openness and data
// freshness, pushing the filtered allow-list into the Runtime.
type SessionGate struct {
	mu                sync.Mutex
	runtime           *Runtime
	clk               clock.Clock
	checker           LiveFreshChecker
	requireFreshLive  bool
	marketOf          func(traderID string) marketdata.Market
	traderIDs         func() []string
	autoPausedAtMs    int64
	stop              chan struct{}
}

func NewSessionGate(runtime *Runtime, clk clock.Clock, checker LiveFreshChecker, requireFreshLive bool, marketOf func(string) marketdata.Market, traderIDs func() []string) *SessionGate {
	return &SessionGate{
		runtime:          runtime,
		clk:              clk,
		checker:          checker,
		requireFreshLive: requireFreshLive,
		marketOf:         marketOf,
		traderIDs:        traderIDs,
	}
}

func (g *SessionGate) Start(checkInterval time.Duration) {
	g.mu.Lock()
	if g.stop != nil {
		g.mu.Unlock()
		return
	}
	g.stop = make(chan struct{})
	stop := g.stop
	g.mu.Unlock()

	g.recompute()
	go func() {
		ticker := g.clk.NewTicker(checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				g.recompute()
			}
		}
	}()
}

func (g *SessionGate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stop != nil {
		close(g.stop)
		g.stop = nil
	}
}

func (g *SessionGate) recompute() {
	now := g.clk.Now()
	allowed := make(map[string]bool)
	for _, id := range g.traderIDs() {
		market := g.marketOf(id)
		phase := Calendar(market, now)
		sessionOpen := IsSessionOpen(phase)
		liveFresh := !g.checker.MarketErroringOrStale(market)

		allow := sessionOpen
		if g.requireFreshLive {
			allow = allow && liveFresh
		}
		allowed[id] = allow
	}
	g.runtime.SetActiveTraders(allowed)
}

// Snapshot is what the context builder tags onto each cycle.
type Snapshot struct {
	SessionIsOpen bool
	LiveFreshOK   bool
}

func (g *SessionGate) SnapshotFor(traderID string) Snapshot {
	market := g.marketOf(traderID)
	phase := Calendar(market, g.clk.Now())
	return Snapshot{
		SessionIsOpen: IsSessionOpen(phase),
		LiveFreshOK:   !g.checker.MarketErroringOrStale(market),
	}
}
