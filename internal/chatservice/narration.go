package chatservice

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/onlytrade/room-server/internal/models"
)

// NarrationConfig differentiates the minimum emission interval for hold
// vs non-hold decisions and for conservative vs non-conservative risk
// profiles.
type NarrationConfig struct {
	HoldIntervalMs         int64
	NonHoldIntervalMs      int64
	ConservativeMultiplier float64
}

// Narrator emits at most one chat message per room per decision cycle,
// summarizing the decision just dispatched.
type Narrator struct {
	service *Service
	cfg     NarrationConfig

	mu         sync.Mutex
	lastEmitMs map[string]int64
}

func NewNarrator(service *Service, cfg NarrationConfig) *Narrator {
	return &Narrator{service: service, cfg: cfg, lastEmitMs: make(map[string]int64)}
}

// OnDecision is wired as the Agent Runtime's decision hook.
func (n *Narrator) OnDecision(roomID string, decision models.Decision, risk models.RiskProfile, featureHint string) {
	now := time.Now().UnixMilli()

	interval := n.cfg.NonHoldIntervalMs
	if decision.Action == models.ActionHold {
		interval = n.cfg.HoldIntervalMs
	}
	if risk == models.RiskConservative {
		interval = int64(float64(interval) * n.cfg.ConservativeMultiplier)
	}

	n.mu.Lock()
	last := n.lastEmitMs[roomID]
	if now-last < interval {
		n.mu.Unlock()
		return
	}
	n.lastEmitMs[roomID] = now
	n.mu.Unlock()

	text := buildNarrationText(decision, featureHint)
	if text == "" {
		return
	}

	name := roomID
	if n.service.traderName != nil {
		if nm := n.service.traderName(roomID); nm != "" {
			name = nm
		}
	}
	msg := models.ChatMessage{
		ID:               n.service.nextID(roomID),
		RoomID:           roomID,
		Visibility:       models.VisibilityPublic,
		SenderType:       models.SenderAgent,
		SenderID:         roomID,
		SenderName:       name,
		Text:             text,
		CreatedTsMs:      now,
		AgentMessageKind: models.KindNarration,
		GenerationSource: narrationSource(decision),
		GenerationTone:   models.ToneNeutral,
	}
	if err := n.service.store.Append(msg); err != nil {
		return
	}
	n.service.bus.Publish(roomID, "chat_public_append", msg)
}

func narrationSource(decision models.Decision) models.GenerationSource {
	if strings.TrimSpace(decision.Reasoning) != "" {
		return models.GenerationLLM
	}
	return models.GenerationFallback
}

func buildNarrationText(decision models.Decision, featureHint string) string {
	if strings.TrimSpace(decision.Reasoning) != "" {
		return decision.Reasoning
	}
	return fmt.Sprintf("%s %s, confidence %.2f (%s)", decision.Action, decision.Symbol, decision.Confidence, featureHint)
}
