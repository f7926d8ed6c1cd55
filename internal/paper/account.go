// Package paper simulates a brokerage account so the full pipeline can run
// end to end without real money. Fills settle instantly and everything
// bought today is sellable today.
package paper

import (
	"errors"
	"sync"
	"time"

	"github.com/codeAPmind/tradingsystem/internal/execution"
	"github.com/codeAPmind/tradingsystem/internal/market"
	"github.com/codeAPmind/tradingsystem/internal/risk"
)

const epsilon = 1e-9

type holding struct {
	Qty     float64
	AvgCost float64
}

// Account tracks virtual cash, realized PnL, and per-ticker holdings.
type Account struct {
	mu           sync.Mutex
	startingCash float64
	cash         float64
	realizedPnL  float64
	holdings     map[string]holding
	recorder     FillRecorder
}

// FillRecorder captures simulated fills for later inspection.
type FillRecorder interface {
	Record(execution.Fill)
}

// HoldingSnapshot is a read-only view of one position.
type HoldingSnapshot struct {
	Qty         float64
	AvgCost     float64
	MarketValue float64
	Unrealized  float64
}

// Snapshot is a point-in-time view of the account, marked to market with
// the supplied prices.
type Snapshot struct {
	Cash        float64
	RealizedPnL float64
	Equity      float64
	Holdings    map[string]HoldingSnapshot
}

// NewAccount builds an account with the given bankroll. The recorder may be
// nil when nothing needs the trade log.
func NewAccount(startingCash float64, recorder FillRecorder) *Account {
	return &Account{
		startingCash: startingCash,
		cash:         startingCash,
		holdings:     make(map[string]holding),
		recorder:     recorder,
	}
}

// StartingCash returns the initial bankroll.
func (a *Account) StartingCash() float64 { return a.startingCash }

// MarketFill executes a market order at the given price, mutating balances
// and recording the fill. Tickers are normalized so "0700" and "HK.00700"
// hit the same position.
func (a *Account) MarketFill(ticker string, side execution.Side, qty, price float64) error {
	if qty <= 0 {
		return errors.New("quantity must be positive")
	}
	if price <= 0 {
		return errors.New("price must be positive")
	}
	_, canonical := market.Classify(ticker)

	a.mu.Lock()
	defer a.mu.Unlock()

	state := a.holdings[canonical]
	notional := qty * price

	switch side {
	case execution.Buy:
		if notional > a.cash+epsilon {
			return errors.New("insufficient cash for buy")
		}
		newQty := state.Qty + qty
		newAvg := ((state.AvgCost * state.Qty) + notional) / newQty
		a.cash -= notional
		a.holdings[canonical] = holding{Qty: newQty, AvgCost: newAvg}

	case execution.Sell:
		if state.Qty <= 0 || state.Qty+epsilon < qty {
			return errors.New("insufficient position to sell")
		}
		a.realizedPnL += (price - state.AvgCost) * qty
		a.cash += notional
		newQty := state.Qty - qty
		if newQty <= epsilon {
			delete(a.holdings, canonical)
		} else {
			a.holdings[canonical] = holding{Qty: newQty, AvgCost: state.AvgCost}
		}

	default:
		return errors.New("unknown order side")
	}

	if a.recorder != nil {
		a.recorder.Record(execution.Fill{
			Symbol: canonical,
			Side:   side,
			Qty:    qty,
			Price:  price,
			Ts:     time.Now().UTC(),
		})
	}
	return nil
}

// Snapshot returns balances marked with the supplied prices. Tickers with
// no known price contribute zero market value.
func (a *Account) Snapshot(prices map[string]float64) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]HoldingSnapshot, len(a.holdings))
	equity := a.cash
	for ticker, pos := range a.holdings {
		mark := prices[ticker]
		mv := pos.Qty * mark
		unreal := (mark - pos.AvgCost) * pos.Qty
		if mark == 0 {
			mv, unreal = 0, 0
		}
		out[ticker] = HoldingSnapshot{Qty: pos.Qty, AvgCost: pos.AvgCost, MarketValue: mv, Unrealized: unreal}
		equity += mv
	}
	return Snapshot{Cash: a.cash, RealizedPnL: a.realizedPnL, Equity: equity, Holdings: out}
}

// RiskView converts the account into the shapes the risk gate checks:
// aggregate balances plus per-ticker positions marked with prices. In paper
// mode everything held is sellable.
func (a *Account) RiskView(prices map[string]float64) (risk.Account, map[string]risk.Position) {
	snap := a.Snapshot(prices)

	positions := make(map[string]risk.Position, len(snap.Holdings))
	for ticker, h := range snap.Holdings {
		plRatio := 0.0
		if h.AvgCost > 0 && prices[ticker] > 0 {
			plRatio = prices[ticker]/h.AvgCost - 1
		}
		positions[ticker] = risk.Position{
			Ticker:      ticker,
			Qty:         h.Qty,
			CanSellQty:  h.Qty,
			CostPrice:   h.AvgCost,
			MarketValue: h.MarketValue,
			PLRatio:     plRatio,
		}
	}
	return risk.Account{TotalAssets: snap.Equity, Cash: snap.Cash}, positions
}

// Cash reports free cash.
func (a *Account) Cash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

// Position returns the held quantity for a ticker.
func (a *Account) Position(ticker string) float64 {
	_, canonical := market.Classify(ticker)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holdings[canonical].Qty
}

// RealizedPnL returns closed-trade profit and loss.
func (a *Account) RealizedPnL() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realizedPnL
}
