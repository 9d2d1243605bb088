package chatservice

import (
	"context"
	"sync"
	"time"

	"github.com/onlytrade/room-server/internal/models"
)

// ProactiveConfig carries the CHAT_PROACTIVE_* cadence knobs.
type ProactiveConfig struct {
	TickMs            int
	RoomsPerInterval  int
	MinRoomIntervalMs int64
	ActivityWindowMs  int64
	DefaultIntervalMs int64
	BurstFreshMs      int64
	BurstMinPriority  int
	BurstIntervalMs   int64
	BurstDurationMs   int64
	CooldownMs        int64
}

type roomCadence struct {
	lastTickMs          int64
	lastProactiveEmitMs int64
	burstUntilMs        int64
	cooldownUntilMs     int64
}

// Proactive drives the unprompted per-room chat emitter: a round-robin
// cursor over all rooms, per-room cadence state, and news-burst escalation.
type Proactive struct {
	cfg ProactiveConfig

	gen     *Generator
	service *Service

	roomIDs         func() []string
	subscriberCount func(roomID string) int
	agentRunning    func(roomID string) bool
	lastActivityMs  func(roomID string) int64
	newsCue         func(roomID string) NewsCue

	mu     sync.Mutex
	state  map[string]*roomCadence
	cursor int
	stop   chan struct{}
}

func NewProactive(
	cfg ProactiveConfig,
	gen *Generator,
	service *Service,
	roomIDs func() []string,
	subscriberCount func(string) int,
	agentRunning func(string) bool,
	lastActivityMs func(string) int64,
	newsCue func(string) NewsCue,
) *Proactive {
	return &Proactive{
		cfg:             cfg,
		gen:             gen,
		service:         service,
		roomIDs:         roomIDs,
		subscriberCount: subscriberCount,
		agentRunning:    agentRunning,
		lastActivityMs:  lastActivityMs,
		newsCue:         newsCue,
		state:           make(map[string]*roomCadence),
	}
}

func (p *Proactive) Start() {
	p.mu.Lock()
	if p.stop != nil {
		p.mu.Unlock()
		return
	}
	p.stop = make(chan struct{})
	stop := p.stop
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(time.Duration(p.cfg.TickMs) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.tick()
			}
		}
	}()
}

func (p *Proactive) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}

func (p *Proactive) tick() {
	ids := p.roomIDs()
	if len(ids) == 0 {
		return
	}
	now := time.Now().UnixMilli()

	p.mu.Lock()
	start := p.cursor % len(ids)
	p.cursor = (p.cursor + p.cfg.RoomsPerInterval) % len(ids)
	p.mu.Unlock()

	for i := 0; i < p.cfg.RoomsPerInterval && i < len(ids); i++ {
		roomID := ids[(start+i)%len(ids)]
		p.maybeEmit(roomID, now)
	}
}

func (p *Proactive) maybeEmit(roomID string, now int64) {
	p.mu.Lock()
	st, ok := p.state[roomID]
	if !ok {
		st = &roomCadence{}
		p.state[roomID] = st
	}
	if now-st.lastTickMs < p.cfg.MinRoomIntervalMs {
		p.mu.Unlock()
		return
	}
	st.lastTickMs = now
	p.mu.Unlock()

	if p.agentRunning != nil && !p.agentRunning(roomID) {
		return
	}
	if p.subscriberCount(roomID) == 0 {
		age := now - p.lastActivityMs(roomID)
		if age > p.cfg.ActivityWindowMs {
			return
		}
	}

	cue := NewsCue{}
	if p.newsCue != nil {
		cue = p.newsCue(roomID)
	}

	p.mu.Lock()
	interval := p.cfg.DefaultIntervalMs
	if cue.Active && cue.AgeMs <= p.cfg.BurstFreshMs && cue.Priority >= p.cfg.BurstMinPriority && now >= st.cooldownUntilMs {
		if st.burstUntilMs == 0 {
			st.burstUntilMs = now + p.cfg.BurstDurationMs
		}
		if now <= st.burstUntilMs {
			interval = p.cfg.BurstIntervalMs
		} else {
			st.cooldownUntilMs = now + p.cfg.CooldownMs
			st.burstUntilMs = 0
		}
	}
	emit := now-st.lastProactiveEmitMs >= interval
	if emit {
		st.lastProactiveEmitMs = now
	}
	p.mu.Unlock()

	if !emit {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.gen.cfg.Timeout)
	reply := p.gen.GenerateProactive(ctx, roomID, cue)
	cancel()
	if reply.Text == "" {
		return
	}

	name := roomID
	if p.service.traderName != nil {
		if n := p.service.traderName(roomID); n != "" {
			name = n
		}
	}
	msg := models.ChatMessage{
		ID:               p.service.nextID(roomID),
		RoomID:           roomID,
		Visibility:       models.VisibilityPublic,
		SenderType:       models.SenderAgent,
		SenderID:         roomID,
		SenderName:       name,
		Text:             reply.Text,
		CreatedTsMs:      now,
		AgentMessageKind: models.KindProactive,
		GenerationSource: reply.Source,
		GenerationTone:   reply.Tone,
	}
	if err := p.service.store.Append(msg); err != nil {
		return
	}
	p.service.bus.Publish(roomID, "chat_public_append", msg)
}
