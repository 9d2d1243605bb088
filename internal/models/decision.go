package models

import "time"

type Action string

const (
	ActionBuy   Action = "BUY"
	ActionSell  Action = "SELL"
	ActionShort Action = "SHORT"
	ActionHold  Action = "HOLD"
)

// DecisionSource tags where a decision's action came from.
type DecisionSource string

const (
	SourceLLM           DecisionSource = "llm"
	SourceFallback       DecisionSource = "deterministic_fallback"
	SourceReadinessGate DecisionSource = "readiness_gate"
)

// LLMMeta carries the raw prompt/response trace for a decision, when the
// decision was produced (or attempted) by the LLM decider. All fields are
// optional: a synthesized/fallback decision leaves them empty rather than
// guessing — see Open Questions.
type LLMMeta struct {
	SystemPrompt string `json:"system_prompt,omitempty"`
	InputPrompt  string `json:"input_prompt,omitempty"`
	CoTTrace     string `json:"cot_trace,omitempty"`
	Model        string `json:"model,omitempty"`
}

// DecisionLeg is one concrete order within a decision (normally one leg;
// reserved for future multi-leg decisions).
type DecisionLeg struct {
	Symbol     string  `json:"symbol"`
	Action     Action  `json:"action"`
	Quantity   int64   `json:"quantity"`
	Price      float64 `json:"price"`
	Executed   bool    `json:"executed"`
	RejectCode string  `json:"reject_code,omitempty"`
}

// Decision is the immutable record produced each cycle for one trader.
type Decision struct {
	Timestamp    time.Time      `json:"timestamp"`
	CycleNumber  int            `json:"cycle_number"`
	TraderID     string         `json:"trader_id"`
	Symbol       string         `json:"symbol"`
	Action       Action         `json:"action"`
	Quantity     int64          `json:"quantity"`
	Confidence   float64        `json:"confidence"`
	Reasoning    string         `json:"reasoning"`
	Source       DecisionSource `json:"decision_source"`
	Executed     bool           `json:"executed"`
	LLMMeta      *LLMMeta       `json:"llm_meta,omitempty"`
	Decisions    []DecisionLeg  `json:"decisions,omitempty"`
	ExecutionLog []string       `json:"execution_log,omitempty"`
}

// HoldSemantics disambiguates a HOLD decision's meaning for auditing.
type HoldSemantics string

const (
	HoldNoPositionNoOrder  HoldSemantics = "no_position_no_order"
	HoldKeepExistingPos    HoldSemantics = "keep_existing_position"
)

// DecisionAudit parallels Decision with the gate/session/breadth context
// that produced it, for the decision-audit endpoints.
type DecisionAudit struct {
	Timestamp               time.Time     `json:"timestamp"`
	CycleNumber             int           `json:"cycle_number"`
	TraderID                string        `json:"trader_id"`
	Symbol                  string        `json:"symbol"`
	ReadinessLevel          string        `json:"readiness_level"`
	SessionIsOpen           bool          `json:"session_is_open"`
	LiveFreshOK             bool          `json:"live_fresh_ok"`
	NewsBurstActive         bool          `json:"news_burst_active"`
	BreadthScore            float64       `json:"breadth_score"`
	ForcedHold              bool          `json:"forced_hold"`
	OrderExecuted           bool          `json:"order_executed"`
	PositionSharesOnSymbol  int64         `json:"position_shares_on_symbol"`
	HoldSemantics           HoldSemantics `json:"hold_semantics,omitempty"`
	SavedTsMs               int64         `json:"saved_ts_ms"`
}
