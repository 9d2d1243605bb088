package models

import "github.com/shopspring/decimal"

type SettlementStatus string

const (
	SettlementPending SettlementStatus = "pending"
	SettlementSettled SettlementStatus = "settled"
)

// BetPool accumulates stake for one trader within one day state.
type BetPool struct {
	Amount  decimal.Decimal `json:"amount"`
	Tickets int             `json:"tickets"`
}

// UserBet is one viewer session's active bet for a given day.
type UserBet struct {
	TraderID    string          `json:"trader_id"`
	StakeAmount decimal.Decimal `json:"stake_amount"`
	PlacedTsMs  int64           `json:"placed_ts_ms"`
}

// SessionPayout records one session's settlement outcome.
type SessionPayout struct {
	TraderID      string          `json:"trader_id"`
	Won           bool            `json:"won"`
	StakeAmount   decimal.Decimal `json:"stake_amount"`
	SettledOdds   decimal.Decimal `json:"settled_odds"`
	CreditsAwarded int64          `json:"credits_awarded"`
}

// Settlement is attached to a DayState once settled.
type Settlement struct {
	SettledTsMs    int64                     `json:"settled_ts_ms"`
	WinningTraders []string                  `json:"winning_traders"`
	Payouts        map[string]SessionPayout  `json:"payouts"` // by user_session_id
}

// DayState is the betting ledger's unit of work: one market, one trading
// day (state_id = "<market>::<YYYY-MM-DD>").
type DayState struct {
	StateID               string                     `json:"state_id"`
	Market                string                     `json:"market"`
	DayKey                string                     `json:"day_key"`
	Pools                 map[string]*BetPool        `json:"pools"`                    // by trader_id
	UserBets              map[string]*UserBet        `json:"user_bets"`                // by user_session_id
	FreezeReturnsByTrader map[string]decimal.Decimal `json:"freeze_returns_by_trader,omitempty"`
	FreezeTsMs            int64                      `json:"freeze_ts_ms,omitempty"`
	SettlementStatus      SettlementStatus           `json:"settlement_status"`
	Settlement            *Settlement                `json:"settlement,omitempty"`
}

// CreditRecord is a viewer's persistent betting score, keyed by session id.
type CreditRecord struct {
	UserNickname  string `json:"user_nickname"`
	CreditPoints  int64  `json:"credit_points"`
	SettledBets   int64  `json:"settled_bets"`
	WinCount      int64  `json:"win_count"`
	LastAwardTsMs int64  `json:"last_award_ts_ms"`
	UpdatedTsMs   int64  `json:"updated_ts_ms"`
}

// Ledger is the whole persisted document: one file, tmp+rename writes.
type Ledger struct {
	SchemaVersion    string                   `json:"schema_version"`
	Days             map[string]*DayState     `json:"days"`
	CreditsBySession map[string]*CreditRecord `json:"credits_by_session"`
}

const LedgerSchemaVersion = "bets.ledger.v2"

func NewLedger() *Ledger {
	return &Ledger{
		SchemaVersion:    LedgerSchemaVersion,
		Days:             make(map[string]*DayState),
		CreditsBySession: make(map[string]*CreditRecord),
	}
}
