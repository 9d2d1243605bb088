// Package book applies an agent's decision to its simulated account and
// holdings: buys open a FIFO lot, sells consume lots FIFO and realize
// P&L, with a T+1 settlement block on CN-A symbols.
package book

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/onlytrade/room-server/internal/agentmemory"
	"github.com/onlytrade/room-server/internal/marketdata"
	"github.com/onlytrade/room-server/internal/models"
)

const t1BlockReason = "t_plus_one_block"

// Input bundles everything Apply needs besides the decision
// itself: current account/holdings state, the fill price, the trading
// day (market-local YYYY-MM-DD), and the market (for T+1).
type Input struct {
	Account        models.Account
	Holding        models.Holding // zero value if no position yet
	FillPrice      decimal.Decimal
	Now            time.Time
	TradingDay     string
	Market         marketdata.Market
	CommissionRate float64
	LotSize        int64
}

// Result is what the book application produced, consumed directly by
// agentmemory.RecordSnapshot as a BookEffect.
type Result struct {
	Effect     agentmemory.BookEffect
	RejectCode string
}

// Apply executes decision against in, returning the updated account and
// holding plus any trade/closed-trade records to append.
func Apply(decision models.Decision, in Input) Result {
	if in.LotSize <= 0 {
		in.LotSize = 1
	}

	switch decision.Action {
	case models.ActionBuy, models.ActionShort:
		return applyBuy(decision, in)
	case models.ActionSell:
		return applySell(decision, in)
	default:
		return Result{Effect: agentmemory.BookEffect{
			Executed:        false,
			UpdatedAccount:  in.Account,
			UpdatedHoldings: map[string]models.Holding{decision.Symbol: in.Holding},
		}}
	}
}

func applyBuy(decision models.Decision, in Input) Result {
	qty := roundToLot(decision.Quantity, in.LotSize)
	if qty <= 0 {
		return rejectNoChange(in, "invalid_quantity")
	}

	notional := in.FillPrice.Mul(decimal.NewFromInt(qty))
	fee := notional.Mul(decimal.NewFromFloat(in.CommissionRate))
	if fee.IsNegative() {
		fee = decimal.Zero
	}
	totalDebit := notional.Add(fee)

	if totalDebit.GreaterThan(in.Account.AvailableBalance) {
		return rejectNoChange(in, "insufficient_cash")
	}

	acct := in.Account
	acct.AvailableBalance = acct.AvailableBalance.Sub(totalDebit)

	holding := in.Holding
	holding.TraderID = acct.TraderID
	holding.Symbol = decision.Symbol
	holding.OpenLots = append(holding.OpenLots, models.OpenLot{
		EntryOrderID:      fmt.Sprintf("%s-%d", decision.Symbol, decision.CycleNumber),
		EntryTime:         in.Now,
		EntryPrice:        in.FillPrice,
		EntryQty:          qty,
		EntryFeeRemaining: fee,
		TradingDay:        in.TradingDay,
	})
	holding.Shares += qty
	holding.MarkPrice = in.FillPrice
	holding.AvgCost = weightedAvgCost(holding.OpenLots)

	acct.PositionCount = countOpenPositions(holding, acct.PositionCount, in.Holding.Shares)
	acct.TotalEquity = acct.AvailableBalance.Add(holding.MarketValue())

	event := models.TradeEvent{
		TraderID:          acct.TraderID,
		Timestamp:         in.Now,
		Symbol:            decision.Symbol,
		Action:            string(decision.Action),
		Quantity:          qty,
		Price:             in.FillPrice,
		Fee:               fee,
		CashAfter:         acct.AvailableBalance,
		TotalEquityAfter:  acct.TotalEquity,
		PositionAfterQty:  holding.Shares,
		PositionAfterAvg:  holding.AvgCost,
		PositionAfterMark: holding.MarkPrice,
	}

	return Result{Effect: agentmemory.BookEffect{
		Executed:        true,
		TradeEvent:      &event,
		UpdatedAccount:  acct,
		UpdatedHoldings: map[string]models.Holding{decision.Symbol: holding},
	}}
}

func applySell(decision models.Decision, in Input) Result {
	qty := roundToLot(decision.Quantity, in.LotSize)
	holding := in.Holding
	if qty <= 0 || qty > holding.Shares {
		return rejectNoChange(in, "invalid_quantity")
	}

	if in.Market == marketdata.MarketCNA && fifoTouchesTradingDay(holding.OpenLots, qty, in.TradingDay) {
		return rejectNoChange(in, t1BlockReason)
	}

	remaining := qty
	var realizedPnL decimal.Decimal
	var totalExitFeeShare decimal.Decimal
	var entryTimeForClose time.Time
	var entryPriceForClose decimal.Decimal
	consumed := int64(0)

	notionalExit := in.FillPrice.Mul(decimal.NewFromInt(qty))
	exitFee := notionalExit.Mul(decimal.NewFromFloat(in.CommissionRate))

	newLots := make([]models.OpenLot, 0, len(holding.OpenLots))
	for _, lot := range holding.OpenLots {
		if remaining <= 0 {
			newLots = append(newLots, lot)
			continue
		}
		if lot.EntryQty <= remaining {
			take := lot.EntryQty
			remaining -= take
			consumed += take

			entryFeeShare := lot.EntryFeeRemaining
			exitFeeShare := exitFee.Mul(decimal.NewFromInt(take)).Div(decimal.NewFromInt(qty))
			pnl := in.FillPrice.Sub(lot.EntryPrice).Mul(decimal.NewFromInt(take)).Sub(entryFeeShare).Sub(exitFeeShare)
			realizedPnL = realizedPnL.Add(pnl)
			totalExitFeeShare = totalExitFeeShare.Add(exitFeeShare)

			if entryTimeForClose.IsZero() || lot.EntryTime.Before(entryTimeForClose) {
				entryTimeForClose = lot.EntryTime
				entryPriceForClose = lot.EntryPrice
			}
			continue
		}

		take := remaining
		portion := decimal.NewFromInt(take).Div(decimal.NewFromInt(lot.EntryQty))
		entryFeeShare := lot.EntryFeeRemaining.Mul(portion)
		exitFeeShare := exitFee.Mul(decimal.NewFromInt(take)).Div(decimal.NewFromInt(qty))
		pnl := in.FillPrice.Sub(lot.EntryPrice).Mul(decimal.NewFromInt(take)).Sub(entryFeeShare).Sub(exitFeeShare)
		realizedPnL = realizedPnL.Add(pnl)
		totalExitFeeShare = totalExitFeeShare.Add(exitFeeShare)

		lot.EntryQty -= take
		lot.EntryFeeRemaining = lot.EntryFeeRemaining.Sub(entryFeeShare)
		newLots = append(newLots, lot)
		consumed += take
		remaining -= take

		if entryTimeForClose.IsZero() {
			entryTimeForClose = lot.EntryTime
			entryPriceForClose = lot.EntryPrice
		}
	}

	holding.OpenLots = newLots
	holding.Shares -= qty
	holding.MarkPrice = in.FillPrice
	holding.AvgCost = weightedAvgCost(holding.OpenLots)

	acct := in.Account
	acct.AvailableBalance = acct.AvailableBalance.Add(notionalExit.Sub(exitFee))
	if holding.Shares == 0 && acct.PositionCount > 0 {
		acct.PositionCount--
	}
	acct.TotalEquity = acct.AvailableBalance.Add(holding.MarketValue())

	closed := models.ClosedTrade{
		TraderID:    acct.TraderID,
		Symbol:      decision.Symbol,
		Side:        "long",
		EntryTime:   entryTimeForClose,
		ExitTime:    in.Now,
		Quantity:    consumed,
		EntryPrice:  entryPriceForClose,
		ExitPrice:   in.FillPrice,
		RealizedPnL: realizedPnL,
		Fee:         totalExitFeeShare,
	}

	event := models.TradeEvent{
		TraderID:          acct.TraderID,
		Timestamp:         in.Now,
		Symbol:            decision.Symbol,
		Action:            string(decision.Action),
		Quantity:          qty,
		Price:             in.FillPrice,
		Fee:               exitFee,
		CashAfter:         acct.AvailableBalance,
		TotalEquityAfter:  acct.TotalEquity,
		PositionAfterQty:  holding.Shares,
		PositionAfterAvg:  holding.AvgCost,
		PositionAfterMark: holding.MarkPrice,
	}

	return Result{Effect: agentmemory.BookEffect{
		Executed:        true,
		TradeEvent:      &event,
		ClosedTrade:     &closed,
		UpdatedAccount:  acct,
		UpdatedHoldings: map[string]models.Holding{decision.Symbol: holding},
	}}
}

// fifoTouchesTradingDay reports whether consuming qty shares oldest-lot-first
// would draw from any lot opened on tradingDay. A same-day lot sitting
// behind enough older, settled shares to cover qty never gets touched, so
// it must not block the sell.
func fifoTouchesTradingDay(lots []models.OpenLot, qty int64, tradingDay string) bool {
	remaining := qty
	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		take := lot.EntryQty
		if take > remaining {
			take = remaining
		}
		if take > 0 && lot.TradingDay == tradingDay {
			return true
		}
		remaining -= take
	}
	return false
}

func rejectNoChange(in Input, reason string) Result {
	return Result{
		RejectCode: reason,
		Effect: agentmemory.BookEffect{
			Executed:        false,
			UpdatedAccount:  in.Account,
			UpdatedHoldings: map[string]models.Holding{in.Holding.Symbol: in.Holding},
		},
	}
}

func roundToLot(qty int64, lotSize int64) int64 {
	if lotSize <= 1 {
		return qty
	}
	return (qty / lotSize) * lotSize
}

func weightedAvgCost(lots []models.OpenLot) decimal.Decimal {
	var totalQty int64
	var totalCost decimal.Decimal
	for _, l := range lots {
		totalQty += l.EntryQty
		totalCost = totalCost.Add(l.EntryPrice.Mul(decimal.NewFromInt(l.EntryQty)))
	}
	if totalQty == 0 {
		return decimal.Zero
	}
	return totalCost.Div(decimal.NewFromInt(totalQty))
}

func countOpenPositions(h models.Holding, prevCount int, prevShares int64) int {
	if prevShares == 0 && h.Shares > 0 {
		return prevCount + 1
	}
	return prevCount
}
