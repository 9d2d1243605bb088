package models

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type SenderType string

const (
	SenderUser  SenderType = "user"
	SenderAgent SenderType = "agent"
)

type AgentMessageKind string

const (
	KindReply     AgentMessageKind = "reply"
	KindProactive AgentMessageKind = "proactive"
	KindNarration AgentMessageKind = "narration"
)

type GenerationSource string

const (
	GenerationLLM      GenerationSource = "llm"
	GenerationFallback GenerationSource = "fallback"
)

type GenerationTone string

const (
	ToneCalm      GenerationTone = "calm"
	ToneFocused   GenerationTone = "focused"
	ToneEnergetic GenerationTone = "energetic"
	ToneCautious  GenerationTone = "cautious"
	ToneNeutral   GenerationTone = "neutral"
)

// ChatMessage is one append-only message in a room's public or private feed.
type ChatMessage struct {
	ID                string            `json:"id"`
	RoomID            string            `json:"room_id"`
	Visibility        Visibility        `json:"visibility"`
	SenderType        SenderType        `json:"sender_type"`
	SenderID          string            `json:"sender_id"`
	SenderName        string            `json:"sender_name"`
	Text              string            `json:"text"`
	CreatedTsMs       int64             `json:"created_ts_ms"`
	AgentMessageKind  AgentMessageKind  `json:"agent_message_kind,omitempty"`
	GenerationSource  GenerationSource  `json:"generation_source,omitempty"`
	GenerationTone    GenerationTone    `json:"generation_tone,omitempty"`
	UserSessionID     string            `json:"user_session_id,omitempty"`
	UserNickname      string            `json:"user_nickname,omitempty"`
}

const MaxChatTextLen = 600
