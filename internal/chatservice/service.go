package chatservice

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/onlytrade/room-server/internal/apperr"
	"github.com/onlytrade/room-server/internal/applog"
	"github.com/onlytrade/room-server/internal/models"
)

// Publisher is the subset of the Room Event Bus the chat service needs.
type Publisher interface {
	Publish(roomID, event string, data any)
}

// Config carries the CHAT_* environment knobs.
type Config struct {
	MaxTextLen        int
	RateLimitPerMin   int
	AgentReplyTimeout time.Duration
	PlainReplyRate    float64 // CHAT_PUBLIC_PLAIN_REPLY_RATE, see Generator
}

// Service is the chat append/reply/proactive/narration owner.
type Service struct {
	store *Store
	bus   Publisher
	gen   *Generator
	cfg   Config
	log   *applog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	seq      int64

	traderName func(traderID string) string
}

func New(store *Store, bus Publisher, gen *Generator, cfg Config, log *applog.Logger, traderName func(string) string) *Service {
	return &Service{
		store:      store,
		bus:        bus,
		gen:        gen,
		cfg:        cfg,
		log:        log,
		limiters:   make(map[string]*rate.Limiter),
		traderName: traderName,
	}
}

func (s *Service) limiterFor(roomID, session string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := roomID + "::" + session
	lim, ok := s.limiters[key]
	if !ok {
		perSec := float64(s.cfg.RateLimitPerMin) / 60.0
		lim = rate.NewLimiter(rate.Limit(perSec), s.cfg.RateLimitPerMin)
		s.limiters[key] = lim
	}
	return lim
}

func (s *Service) nextID(roomID string) string {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	return newMessageID(roomID, time.Now().UnixMilli(), seq)
}

// PostMessage validates, rate-limits, persists, schedules an agent
// reply for public user messages, and emits chat_public_append through
// the room bus.
func (s *Service) PostMessage(roomID, session, nickname string, visibility models.Visibility, senderType models.SenderType, text string) (models.ChatMessage, error) {
	if roomID == "" {
		return models.ChatMessage{}, apperr.Validation(apperr.CodeRoomIDRequired)
	}
	if text == "" {
		return models.ChatMessage{}, apperr.Validation(apperr.CodeTextRequired)
	}
	if len(text) > s.cfg.MaxTextLen {
		return models.ChatMessage{}, apperr.Validation("chat_text_too_long")
	}
	if !s.limiterFor(roomID, session).Allow() {
		return models.ChatMessage{}, apperr.Conflict(apperr.CodeRateLimited)
	}

	msg := models.ChatMessage{
		ID:            s.nextID(roomID),
		RoomID:        roomID,
		Visibility:    visibility,
		SenderType:    senderType,
		SenderID:      session,
		SenderName:    nickname,
		Text:          text,
		CreatedTsMs:   time.Now().UnixMilli(),
		UserSessionID: session,
		UserNickname:  nickname,
	}
	if err := s.store.Append(msg); err != nil {
		return models.ChatMessage{}, apperr.Internal("chat_append_failed", err)
	}

	if visibility == models.VisibilityPublic {
		s.bus.Publish(roomID, "chat_public_append", msg)
	}

	if visibility == models.VisibilityPublic && senderType == models.SenderUser {
		go s.replyAsync(roomID, text)
	}
	return msg, nil
}

func (s *Service) replyAsync(roomID, userText string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AgentReplyTimeout)
	defer cancel()

	reply := s.gen.GenerateReply(ctx, roomID, userText)
	if reply.Text == "" {
		return
	}

	name := roomID
	if s.traderName != nil {
		if n := s.traderName(roomID); n != "" {
			name = n
		}
	}

	msg := models.ChatMessage{
		ID:               s.nextID(roomID),
		RoomID:           roomID,
		Visibility:       models.VisibilityPublic,
		SenderType:       models.SenderAgent,
		SenderID:         roomID,
		SenderName:       name,
		Text:             reply.Text,
		CreatedTsMs:      time.Now().UnixMilli(),
		AgentMessageKind: models.KindReply,
		GenerationSource: reply.Source,
		GenerationTone:   reply.Tone,
	}
	if err := s.store.Append(msg); err != nil {
		if s.log != nil {
			s.log.Error("chat reply persist failed", err, "room_id", roomID)
		}
		return
	}
	s.bus.Publish(roomID, "chat_public_append", msg)
}

func (s *Service) ListPublic(roomID string, limit int, beforeTsMs int64) ([]models.ChatMessage, error) {
	return s.store.ListPublic(roomID, limit, beforeTsMs)
}

func (s *Service) ListPrivate(roomID, session string, limit int, beforeTsMs int64) ([]models.ChatMessage, error) {
	return s.store.ListPrivate(roomID, session, limit, beforeTsMs)
}

func NewSessionID() string {
	return uuid.NewString()
}
