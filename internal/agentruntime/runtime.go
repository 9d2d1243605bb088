// Package agentruntime is the scheduler core: it drives one decision
// cycle per active trader, either on a wall-clock timer (live_file mode)
// or per N simulated bars (replay mode), and dispatches the resulting
// decision to the book and memory store.
package agentruntime

import (
	"context"
	"sync"
	"time"

	"github.com/onlytrade/room-server/internal/applog"
	"github.com/onlytrade/room-server/internal/clock"
	"github.com/onlytrade/room-server/internal/decisioncontext"
	"github.com/onlytrade/room-server/internal/metrics"
	"github.com/onlytrade/room-server/internal/models"
)

const decisionRingCap = 120

// Metrics are the runtime's cumulative cycle counters.
type Metrics struct {
	TotalCycles      int64 `json:"total_cycles"`
	SuccessfulCycles int64 `json:"successful_cycles"`
	FailedCycles     int64 `json:"failed_cycles"`
}

// Hooks are the side effects StepOnce triggers per trader, injected so
// this package stays free of book/memory/room-event import cycles.
type Hooks struct {
	// BuildContext assembles the decision context for one trader/cycle.
	BuildContext func(ctx context.Context, trader models.Trader, cycleNumber int) decisioncontext.Context
	// Decide turns a context into a concrete decision.
	Decide func(ctx context.Context, trader models.Trader, cycleNumber int, dctx decisioncontext.Context) models.Decision
	// ApplyAndRecord applies the decision to the book and persists the
	// trader's memory snapshot; it returns the (possibly order-rejected)
	// final decision to mirror into the ring/log.
	ApplyAndRecord func(trader models.Trader, decision models.Decision) models.Decision
	// OnDecision fires synchronously after ApplyAndRecord, for
	// room-events/chat narration hookup.
	OnDecision func(trader models.Trader, decision models.Decision)
}

// Runtime holds the scheduler's live state.
type Runtime struct {
	mu sync.Mutex

	log   *applog.Logger
	clk   clock.Clock
	hooks Hooks

	running      bool
	manualPause  bool
	killSwitch   *KillSwitch
	cycleMs      int
	inFlight     bool
	lastStartMs  int64
	lastDoneMs   int64

	traders   map[string]models.Trader
	active    map[string]bool // session-gate-permitted traders
	callCount map[string]int
	failCount map[string]int
	metrics   Metrics
	ring      map[string][]models.Decision
	cycleNum  map[string]int

	timer      *time.Timer
	stopTicker chan struct{}

	replayQueue chan replayStep
	queueWorker sync.Once
}

type replayStep struct{}

func New(log *applog.Logger, clk clock.Clock, cycleMs int, killSwitch *KillSwitch, hooks Hooks) *Runtime {
	return &Runtime{
		log:         log,
		clk:         clk,
		hooks:       hooks,
		cycleMs:     cycleMs,
		killSwitch:  killSwitch,
		traders:     make(map[string]models.Trader),
		active:      make(map[string]bool),
		callCount:   make(map[string]int),
		failCount:   make(map[string]int),
		ring:        make(map[string][]models.Decision),
		cycleNum:    make(map[string]int),
		replayQueue: make(chan replayStep, 1024),
	}
}

func (r *Runtime) RegisterTrader(t models.Trader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traders[t.TraderID] = t
	r.active[t.TraderID] = true
}

func (r *Runtime) UnregisterTrader(traderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.traders, traderID)
	delete(r.active, traderID)
	delete(r.callCount, traderID)
	delete(r.failCount, traderID)
	delete(r.ring, traderID)
	delete(r.cycleNum, traderID)
}

// SetActiveTraders is called by the Session Gate with the filtered set
// of traders currently permitted to run.
func (r *Runtime) SetActiveTraders(allowed map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wasEmpty := !r.anyActiveLocked()
	r.active = allowed
	nowEmpty := !r.anyActiveLocked()

	if nowEmpty && !wasEmpty {
		r.running = false
	} else if !nowEmpty && wasEmpty && !r.manualPause && !r.killSwitch.Active() {
		r.running = true
	}
}

func (r *Runtime) anyActiveLocked() bool {
	for _, ok := range r.active {
		if ok {
			return true
		}
	}
	return false
}

// StartLiveTimer begins the live_file wall-clock scheduling model.
func (r *Runtime) StartLiveTimer() {
	r.mu.Lock()
	if r.stopTicker != nil {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopTicker = make(chan struct{})
	stop := r.stopTicker
	r.mu.Unlock()

	go func() {
		for {
			r.mu.Lock()
			interval := time.Duration(r.cycleMs) * time.Millisecond
			r.mu.Unlock()

			select {
			case <-stop:
				return
			case <-r.clk.TimerAfter(interval):
				r.maybeStep()
			}
		}
	}()
}

func (r *Runtime) StopLiveTimer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopTicker != nil {
		close(r.stopTicker)
		r.stopTicker = nil
	}
}

func (r *Runtime) maybeStep() {
	r.mu.Lock()
	eligible := r.running && !r.inFlight && !r.killSwitch.Active()
	r.mu.Unlock()
	if !eligible {
		return
	}
	r.StepOnce(context.Background())
}

// EnqueueReplayStep is called by the replay engine's OnAdvance hook
// every N bars. Enqueue never
// blocks the replay tick; the queue is drained by one worker.
func (r *Runtime) EnqueueReplayStep() {
	r.queueWorker.Do(func() {
		go r.drainReplayQueue()
	})
	select {
	case r.replayQueue <- replayStep{}:
	default:
		r.log.Warn("replay decision queue full, dropping step")
	}
}

func (r *Runtime) drainReplayQueue() {
	for range r.replayQueue {
		r.mu.Lock()
		killed := r.killSwitch.Active()
		running := r.running
		r.mu.Unlock()
		if killed || !running {
			continue
		}
		r.StepOnce(context.Background())
	}
}

// StepOnce runs one sequential pass over every active trader. Two
// concurrent StepOnce calls are forbidden: the later call is dropped,
// never queued.
func (r *Runtime) StepOnce(ctx context.Context) {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return
	}
	r.inFlight = true
	r.lastStartMs = r.clk.Now().UnixMilli()
	traders := make([]models.Trader, 0, len(r.traders))
	for id, t := range r.traders {
		if r.active[id] {
			traders = append(traders, t)
		}
	}
	r.mu.Unlock()

	for _, trader := range traders {
		r.stepTrader(ctx, trader)
	}

	r.mu.Lock()
	r.inFlight = false
	r.lastDoneMs = r.clk.Now().UnixMilli()
	r.mu.Unlock()
}

func (r *Runtime) stepTrader(ctx context.Context, trader models.Trader) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic during trader cycle", nil, "trader_id", trader.TraderID, "panic", rec)
			r.mu.Lock()
			r.metrics.TotalCycles++
			r.metrics.FailedCycles++
			r.failCount[trader.TraderID]++
			r.mu.Unlock()
			metrics.CycleFailuresTotal.WithLabelValues(trader.TraderID).Inc()
		}
	}()

	r.mu.Lock()
	r.cycleNum[trader.TraderID]++
	cycleNumber := r.cycleNum[trader.TraderID]
	r.callCount[trader.TraderID]++
	r.metrics.TotalCycles++
	r.mu.Unlock()
	metrics.CyclesTotal.WithLabelValues(trader.TraderID).Inc()

	dctx := r.hooks.BuildContext(ctx, trader, cycleNumber)
	decision := r.hooks.Decide(ctx, trader, cycleNumber, dctx)
	final := r.hooks.ApplyAndRecord(trader, decision)

	r.mu.Lock()
	ring := append(r.ring[trader.TraderID], final)
	if len(ring) > decisionRingCap {
		ring = ring[len(ring)-decisionRingCap:]
	}
	r.ring[trader.TraderID] = ring
	r.metrics.SuccessfulCycles++
	r.mu.Unlock()

	metrics.DecisionsTotal.WithLabelValues(trader.TraderID, string(final.Action)).Inc()
	if final.Executed {
		metrics.OrdersExecutedTotal.WithLabelValues(trader.TraderID, string(final.Action)).Inc()
	}

	if r.hooks.OnDecision != nil {
		r.hooks.OnDecision(trader, final)
	}
}

// Pause sets manualPause and clears running. The live timer loop keeps
// ticking; its cycles are skipped while running is false.
func (r *Runtime) Pause() {
	r.mu.Lock()
	r.manualPause = true
	r.running = false
	r.mu.Unlock()
}

// Resume only succeeds if the Session Gate currently permits at least
// one trader.
func (r *Runtime) Resume() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.killSwitch.Active() {
		return false
	}
	if !r.anyActiveLocked() {
		return false
	}
	r.manualPause = false
	r.running = true
	return true
}

func (r *Runtime) SetCycleMs(ms int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycleMs = ms
}

// TraderCycleCounts returns, for every trader the runtime has ever stepped,
// the total cycle attempts and the failed (panicked) ones. Used by
// GET /api/statistics to fan the runtime's cumulative Metrics out per trader.
func (r *Runtime) TraderCycleCounts() (cycles, failures map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cycles = make(map[string]int, len(r.callCount))
	for id, n := range r.callCount {
		cycles[id] = n
	}
	failures = make(map[string]int, len(r.failCount))
	for id, n := range r.failCount {
		failures[id] = n
	}
	return cycles, failures
}

func (r *Runtime) RecentDecisions(traderID string, limit int) []models.Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	ring := r.ring[traderID]
	if limit <= 0 || limit > len(ring) {
		limit = len(ring)
	}
	return append([]models.Decision(nil), ring[len(ring)-limit:]...)
}

// Status is the snapshot returned by /api/agent/runtime/status.
type Status struct {
	Running        bool    `json:"running"`
	ManualPause    bool    `json:"manual_pause"`
	KillSwitch     bool    `json:"kill_switch_active"`
	CycleMs        int     `json:"cycle_ms"`
	InFlight       bool    `json:"in_flight"`
	LastStartMs    int64   `json:"last_cycle_started_ms"`
	LastDoneMs     int64   `json:"last_cycle_completed_ms"`
	Metrics        Metrics `json:"metrics"`
	ActiveTraders  int     `json:"active_traders"`
}

func (r *Runtime) GetStatus() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := 0
	for _, ok := range r.active {
		if ok {
			active++
		}
	}
	return Status{
		Running:       r.running,
		ManualPause:   r.manualPause,
		KillSwitch:    r.killSwitch.Active(),
		CycleMs:       r.cycleMs,
		InFlight:      r.inFlight,
		LastStartMs:   r.lastStartMs,
		LastDoneMs:    r.lastDoneMs,
		Metrics:       r.metrics,
		ActiveTraders: active,
	}
}
