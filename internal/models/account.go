package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InitialBalance is the fixed starting cash every trader is seeded with.
var InitialBalance = decimal.NewFromInt(100000)

// Account is the per-trader ledger snapshot. Money fields use decimal.Decimal
// rather than float64 so BUY/SELL/fee arithmetic never drifts; values cross
// the JSON boundary as decimal strings.
type Account struct {
	TraderID         string          `json:"trader_id"`
	InitialBalance   decimal.Decimal `json:"initial_balance"`
	TotalEquity      decimal.Decimal `json:"total_equity"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	UnrealizedProfit decimal.Decimal `json:"unrealized_profit"`
	PositionCount    int             `json:"position_count"`
	DailyPnL         decimal.Decimal `json:"daily_pnl"`
	DailyStartEquity decimal.Decimal `json:"-"`
	DailyKey         string          `json:"-"`
}

// TotalPnL is derived, never stored.
func (a Account) TotalPnL() decimal.Decimal {
	return a.TotalEquity.Sub(a.InitialBalance)
}

// TotalPnLPct is derived, never stored. Returns 0 if InitialBalance is 0.
func (a Account) TotalPnLPct() decimal.Decimal {
	if a.InitialBalance.IsZero() {
		return decimal.Zero
	}
	return a.TotalPnL().Div(a.InitialBalance).Mul(decimal.NewFromInt(100))
}

// DailyPnLPct mirrors TotalPnLPct but against the equity recorded at the
// start of the current trading day; used for betting-ledger odds.
func (a Account) DailyPnLPct() decimal.Decimal {
	if a.DailyStartEquity.IsZero() {
		return decimal.Zero
	}
	return a.TotalEquity.Sub(a.DailyStartEquity).Div(a.DailyStartEquity).Mul(decimal.NewFromInt(100))
}

// OpenLot is one FIFO-consumable buy lot within a Holding.
type OpenLot struct {
	EntryOrderID      string          `json:"entry_order_id"`
	EntryTime         time.Time       `json:"entry_time"`
	EntryPrice        decimal.Decimal `json:"entry_price"`
	EntryQty          int64           `json:"entry_qty"`
	EntryFeeRemaining decimal.Decimal `json:"entry_fee_remaining"`
	TradingDay        string          `json:"trading_day"` // YYYY-MM-DD in market tz, for T+1
}

// Holding is the live position in one symbol for one trader.
type Holding struct {
	TraderID  string          `json:"trader_id"`
	Symbol    string          `json:"symbol"`
	Shares    int64           `json:"shares"`
	AvgCost   decimal.Decimal `json:"avg_cost"`
	MarkPrice decimal.Decimal `json:"mark_price"`
	OpenLots  []OpenLot       `json:"open_lot_list"`
}

// MarketValue is shares * mark price.
func (h Holding) MarketValue() decimal.Decimal {
	return h.MarkPrice.Mul(decimal.NewFromInt(h.Shares))
}

// ClosedTrade is a realized round-trip produced when a sell consumes one or
// more open lots.
type ClosedTrade struct {
	TraderID    string          `json:"trader_id"`
	Symbol      string          `json:"symbol"`
	Side        string          `json:"side"` // "long" (CN-A has no short)
	EntryTime   time.Time       `json:"entry_time"`
	ExitTime    time.Time       `json:"exit_time"`
	Quantity    int64           `json:"quantity"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	ExitPrice   decimal.Decimal `json:"exit_price"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Fee         decimal.Decimal `json:"fee"`
}

// TradeEvent is an append-only record of one executed order's effect on the
// account, used for the positions/history endpoint and the equity curve.
type TradeEvent struct {
	TraderID          string          `json:"trader_id"`
	Timestamp         time.Time       `json:"timestamp"`
	Symbol            string          `json:"symbol"`
	Action            string          `json:"action"`
	Quantity          int64           `json:"quantity"`
	Price             decimal.Decimal `json:"price"`
	Fee               decimal.Decimal `json:"fee"`
	CashAfter         decimal.Decimal `json:"cash_after"`
	TotalEquityAfter  decimal.Decimal `json:"total_equity_after"`
	PositionAfterQty  int64           `json:"position_after_qty"`
	PositionAfterAvg  decimal.Decimal `json:"position_after_avg_cost"`
	PositionAfterMark decimal.Decimal `json:"position_after_mark"`
}

// EquityPoint is one sample on the equity curve.
type EquityPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Equity    decimal.Decimal `json:"equity"`
}

// DailyJournalEntry finalizes one trading day once it rolls over.
type DailyJournalEntry struct {
	TradingDay   string          `json:"trading_day"`
	StartEquity  decimal.Decimal `json:"start_equity"`
	EndEquity    decimal.Decimal `json:"end_equity"`
	PnL          decimal.Decimal `json:"pnl"`
	PnLPct       decimal.Decimal `json:"pnl_pct"`
	TradesClosed int             `json:"trades_closed"`
}
