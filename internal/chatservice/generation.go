package chatservice

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/onlytrade/room-server/internal/llm"
	"github.com/onlytrade/room-server/internal/models"
)

// GenConfig carries the LLM/fallback knobs for reply and proactive
// generation.
type GenConfig struct {
	LLMEnabled     bool
	MaxConcurrency int // default 2, global bound on in-flight LLM calls
	Model          string
	Timeout        time.Duration
	PlainReplyRate float64 // CHAT_PUBLIC_PLAIN_REPLY_RATE
}

type Reply struct {
	Text   string
	Source models.GenerationSource
	Tone   models.GenerationTone
}

// Generator produces chat text: LLM-first with a bounded global
// concurrency, deterministic-template fallback, opener/dedupe reroll,
// and an Asia/Shanghai time-of-day filter.
type Generator struct {
	client *llm.OpenAIClient
	cfg    GenConfig

	inFlight int32

	mu        sync.Mutex
	lastStems map[string][]string
	lastKeys  map[string][]string

	// randFloat draws the sample used against cfg.PlainReplyRate. Tests
	// override it for deterministic branch coverage.
	randFloat func() float64
}

func NewGenerator(client *llm.OpenAIClient, cfg GenConfig) *Generator {
	return &Generator{
		client:    client,
		cfg:       cfg,
		lastStems: make(map[string][]string),
		lastKeys:  make(map[string][]string),
		randFloat: rand.Float64,
	}
}

// GenerateReply answers a user's public message.
func (g *Generator) GenerateReply(ctx context.Context, roomID, userText string) Reply {
	system := "You are a trading-room AI participant replying briefly to a viewer's chat message. Keep it under 2 sentences, casual, in character."
	user := fmt.Sprintf("Viewer said: %q\nReply briefly.", userText)
	fallback := func() string { return g.fallbackReply(userText) }
	return g.generate(ctx, roomID, system, user, fallback)
}

// NewsCue is the news-burst signal handed to proactive generation.
type NewsCue struct {
	Title    string
	Category string
	Priority int
	AgeMs    int64
	Active   bool
}

// GenerateProactive produces an unprompted room comment, optionally
// anchored to a fresh news cue.
func (g *Generator) GenerateProactive(ctx context.Context, roomID string, cue NewsCue) Reply {
	system := "You are a trading-room AI participant making a short, casual, unprompted remark about the market or room."
	user := "Say something brief and in character about current conditions."
	if cue.Active {
		user = fmt.Sprintf("React briefly to this news: %q (%s)", cue.Title, cue.Category)
	}
	fallback := func() string { return g.fallbackProactive(cue) }
	return g.generate(ctx, roomID, system, user, fallback)
}

func (g *Generator) generate(ctx context.Context, roomID, system, user string, fallback func() string) Reply {
	var text string
	source := models.GenerationFallback

	// CHAT_PUBLIC_PLAIN_REPLY_RATE: skip the LLM entirely for this draw
	// and go straight to the deterministic template, independent of
	// whether the LLM is otherwise enabled and available.
	plainReply := g.cfg.PlainReplyRate > 0 && g.randFloat() < g.cfg.PlainReplyRate

	if !plainReply && g.cfg.LLMEnabled && g.client != nil && g.client.Enabled() && atomic.LoadInt32(&g.inFlight) < int32(g.cfg.MaxConcurrency) {
		atomic.AddInt32(&g.inFlight, 1)
		cctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		out, err := g.client.ChatJSON(cctx, g.cfg.Model, system, user, 200, g.cfg.Timeout)
		cancel()
		atomic.AddInt32(&g.inFlight, -1)
		if err == nil && out != "" {
			text = extractReplyText(out)
			if text != "" {
				source = models.GenerationLLM
			}
		}
	}

	if text == "" {
		text = fallback()
	}

	text = g.applyReroll(roomID, text, fallback)
	text = g.applyTimeOfDayFilter(text)

	return Reply{Text: text, Source: source, Tone: classifyTone(text)}
}

// applyReroll rejects texts whose opener stem repeats the last 8 emitted
// stems (up to 3 attempts) or whose dedup key repeats the last 8 emitted
// keys (one attempt).
func (g *Generator) applyReroll(roomID, text string, fallback func() string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	candidate := text
	for attempt := 0; attempt < 3; attempt++ {
		if !contains(g.lastStems[roomID], openerStem(candidate)) {
			break
		}
		candidate = fallback()
	}

	if contains(g.lastKeys[roomID], dedupeKey(candidate)) {
		candidate = fallback()
	}

	g.lastStems[roomID] = pushCap(g.lastStems[roomID], openerStem(candidate), 8)
	g.lastKeys[roomID] = pushCap(g.lastKeys[roomID], dedupeKey(candidate), 8)
	return candidate
}

func pushCap(s []string, v string, cap int) []string {
	s = append(s, v)
	if len(s) > cap {
		s = s[len(s)-cap:]
	}
	return s
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func openerStem(text string) string {
	fields := strings.Fields(text)
	n := 3
	if len(fields) < n {
		n = len(fields)
	}
	return strings.ToLower(strings.Join(fields[:n], " "))
}

func dedupeKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// applyTimeOfDayFilter rejects day-part-inconsistent phrasing (e.g. a
// "good night" closer during continuous_am) and swaps in a neutral,
// time-appropriate filler.
func (g *Generator) applyTimeOfDayFilter(text string) string {
	part := dayPart(time.Now())
	for phrase, allowed := range nightOnlyPhrases {
		if strings.Contains(text, phrase) && part != allowed {
			return timeAppropriateFallback(part)
		}
	}
	return text
}

type dayPartName string

const (
	partMorning   dayPartName = "morning"
	partAfternoon dayPartName = "afternoon"
	partEvening   dayPartName = "evening"
	partNight     dayPartName = "night"
)

func dayPart(t time.Time) dayPartName {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		loc = time.UTC
	}
	h := t.In(loc).Hour()
	switch {
	case h >= 5 && h < 12:
		return partMorning
	case h >= 12 && h < 18:
		return partAfternoon
	case h >= 18 && h < 22:
		return partEvening
	default:
		return partNight
	}
}

var nightOnlyPhrases = map[string]dayPartName{
	"晚安":       partNight,
	"good night": partNight,
	"早上好":      partMorning,
	"good morning": partMorning,
}

func timeAppropriateFallback(part dayPartName) string {
	switch part {
	case partMorning:
		return "Markets just opened, watching the tape."
	case partAfternoon:
		return "Still grinding through the session."
	case partEvening:
		return "Wrapping up for the day, reviewing the tape."
	default:
		return "Quiet hours, just keeping an eye on things."
	}
}

func classifyTone(text string) models.GenerationTone {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "risk") || strings.Contains(lower, "careful"):
		return models.ToneCautious
	case strings.Contains(lower, "!"):
		return models.ToneEnergetic
	case strings.Contains(lower, "watching") || strings.Contains(lower, "tracking"):
		return models.ToneFocused
	default:
		return models.ToneNeutral
	}
}

func extractReplyText(raw string) string {
	// The LLM is asked for a JSON object but a plain text reply is also
	// acceptable; callers only need the human-readable text.
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.Trim(trimmed, "\"")
	return trimmed
}

var fallbackOpeners = []string{
	"Honestly,", "Right now,", "From where I'm sitting,", "Noted —", "Fair point.",
}

func (g *Generator) fallbackReply(userText string) string {
	opener := fallbackOpeners[rand.Intn(len(fallbackOpeners))]
	return fmt.Sprintf("%s keeping it simple and sticking to the plan.", opener)
}

func (g *Generator) fallbackProactive(cue NewsCue) string {
	if cue.Active {
		return fmt.Sprintf("Keeping an eye on %s headlines.", cue.Category)
	}
	fillers := []string{
		"Tape's quiet, no changes for now.",
		"Still watching the same levels.",
		"Nothing new to report this cycle.",
	}
	return fillers[rand.Intn(len(fillers))]
}
