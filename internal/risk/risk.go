// Package risk is the final gate between an advised trade and the executor.
// Every proposed order runs through an ordered checklist; the first failed
// rule rejects the order with a human-readable reason.
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeAPmind/tradingsystem/internal/market"
	"github.com/codeAPmind/tradingsystem/internal/metrics"
	"github.com/codeAPmind/tradingsystem/internal/signal"
)

// Limits are the tunable guard rails. Notional caps are denominated in each
// market's local currency.
type Limits struct {
	MaxNotionalUS  float64 `yaml:"max_notional_us"`
	MaxNotionalHK  float64 `yaml:"max_notional_hk"`
	MaxNotionalCN  float64 `yaml:"max_notional_cn"`
	MaxDailyTrades int     `yaml:"max_daily_trades"`
	MaxTickerRatio float64 `yaml:"max_ticker_ratio"`
	MaxTotalRatio  float64 `yaml:"max_total_ratio"`
	StopLoss       float64 `yaml:"stop_loss"`
	TakeProfit     float64 `yaml:"take_profit"`
}

// DefaultLimits returns the deployed defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxNotionalUS:  50000,
		MaxNotionalHK:  400000,
		MaxNotionalCN:  300000,
		MaxDailyTrades: 20,
		MaxTickerRatio: 0.3,
		MaxTotalRatio:  0.9,
		StopLoss:       -0.05,
		TakeProfit:     0.10,
	}
}

// Account is the cash view the gate checks buys against.
type Account struct {
	TotalAssets float64
	Cash        float64
}

// Position is one holding as the broker reports it. CanSellQty is what is
// actually sellable today, which in CN settles T+1 and can lag Qty.
type Position struct {
	Ticker      string
	Qty         float64
	CanSellQty  float64
	CostPrice   float64
	MarketValue float64
	PLRatio     float64
}

// Result is the gate's verdict on one proposed order.
type Result struct {
	OK     bool
	Reason string
}

func reject(rule, reason string) Result {
	metrics.RiskRejectionsTotal.WithLabelValues(rule).Inc()
	return Result{OK: false, Reason: reason}
}

// DailyStats summarizes today's gate activity.
type DailyStats struct {
	Day         time.Time
	Trades      int
	BuyAmount   float64
	SellAmount  float64
	TotalAmount float64
	Rejected    int
}

// TradeRecord is one accepted order in the gate's ledger.
type TradeRecord struct {
	At       time.Time
	Ticker   string
	Side     signal.Type
	Qty      float64
	Price    float64
	Notional float64
}

// Gate applies Limits to proposed orders and tracks the per-day trade and
// amount budgets plus a ledger of accepted orders. The clock is injected so
// day rollover is testable.
type Gate struct {
	mu         sync.Mutex
	limits     Limits
	day        time.Time
	trades     int
	buyAmount  float64
	sellAmount float64
	rejected   int
	history    []TradeRecord
	now        func() time.Time
	log        zerolog.Logger
}

// NewGate builds a gate with the given limits.
func NewGate(limits Limits, log zerolog.Logger) *Gate {
	return &Gate{limits: limits, now: time.Now, log: log}
}

// SetNow overrides the gate's clock. Tests only.
func (g *Gate) SetNow(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// SetLimits replaces the limits at runtime.
func (g *Gate) SetLimits(l Limits) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limits = l
}

// Limits returns the active limits.
func (g *Gate) Limits() Limits {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limits
}

func (g *Gate) rolloverLocked() {
	today := g.now().UTC().Truncate(24 * time.Hour)
	if !today.Equal(g.day) {
		g.day = today
		g.trades = 0
		g.buyAmount = 0
		g.sellAmount = 0
		g.rejected = 0
	}
}

// Check runs the full rule pipeline for a proposed order and stops at the
// first violation. It does not mutate the daily counters; call
// RecordAccepted once the order is actually submitted.
func (g *Gate) Check(side signal.Type, ticker string, qty, price float64, acct Account, positions map[string]Position) Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked()

	if qty <= 0 || price <= 0 {
		res := reject("order_params", fmt.Sprintf("invalid order: qty %v price %v", qty, price))
		g.rejected++
		return res
	}

	notional := qty * price
	mkt, canonical := market.Classify(ticker)
	cur := market.Currency(mkt)

	var limit float64
	switch mkt {
	case market.HK:
		limit = g.limits.MaxNotionalHK
	case market.CN:
		limit = g.limits.MaxNotionalCN
	default:
		limit = g.limits.MaxNotionalUS
	}
	if notional > limit {
		g.rejected++
		return reject("market_cap", fmt.Sprintf("notional %s%.2f exceeds %s market cap %s%.2f",
			cur, notional, mkt, cur, limit))
	}

	if g.trades >= g.limits.MaxDailyTrades {
		g.rejected++
		return reject("daily_trades", fmt.Sprintf("daily trade limit %d reached", g.limits.MaxDailyTrades))
	}

	switch side {
	case signal.Buy:
		if notional > acct.Cash {
			g.rejected++
			return reject("cash", fmt.Sprintf("insufficient funds: need %s%.2f, cash %s%.2f",
				cur, notional, cur, acct.Cash))
		}
		if acct.TotalAssets > 0 {
			tickerValue := positions[canonical].MarketValue + notional
			if ratio := tickerValue / acct.TotalAssets; ratio > g.limits.MaxTickerRatio {
				g.rejected++
				return reject("ticker_exposure", fmt.Sprintf("%s exposure %.1f%% would exceed limit %.1f%%",
					canonical, ratio*100, g.limits.MaxTickerRatio*100))
			}
			var total float64
			for _, p := range positions {
				total += p.MarketValue
			}
			if ratio := (total + notional) / acct.TotalAssets; ratio > g.limits.MaxTotalRatio {
				g.rejected++
				return reject("total_exposure", fmt.Sprintf("total exposure %.1f%% would exceed limit %.1f%%",
					ratio*100, g.limits.MaxTotalRatio*100))
			}
		}
	case signal.Sell:
		pos, ok := positions[canonical]
		if !ok || pos.Qty <= 0 {
			g.rejected++
			return reject("no_position", fmt.Sprintf("no position in %s to sell", canonical))
		}
		if qty > pos.CanSellQty {
			g.rejected++
			return reject("sellable_qty", fmt.Sprintf("insufficient sellable quantity for %s: want %v, sellable %v",
				canonical, qty, pos.CanSellQty))
		}
	default:
		g.rejected++
		return reject("order_params", fmt.Sprintf("side %s is not tradable", side))
	}

	return Result{OK: true}
}

// RecordAccepted counts one submitted order against today's budgets and
// appends it to the ledger. The ledger survives day rollover; the daily
// counters do not.
func (g *Gate) RecordAccepted(side signal.Type, ticker string, qty, price float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked()

	notional := qty * price
	g.trades++
	if side == signal.Buy {
		g.buyAmount += notional
	} else {
		g.sellAmount += notional
	}
	_, canonical := market.Classify(ticker)
	g.history = append(g.history, TradeRecord{
		At:       g.now(),
		Ticker:   canonical,
		Side:     side,
		Qty:      qty,
		Price:    price,
		Notional: notional,
	})
}

// History returns a copy of the accepted-order ledger.
func (g *Gate) History() []TradeRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]TradeRecord, len(g.history))
	copy(out, g.history)
	return out
}

// CheckStopLossTakeProfit reports whether a held position breached the stop
// loss or take profit level, with the reason when it did.
func (g *Gate) CheckStopLossTakeProfit(pos Position) (bool, string) {
	g.mu.Lock()
	limits := g.limits
	g.mu.Unlock()

	if pos.PLRatio <= limits.StopLoss {
		return true, fmt.Sprintf("%s down %.1f%%, stop loss %.1f%% hit",
			pos.Ticker, pos.PLRatio*100, limits.StopLoss*100)
	}
	if pos.PLRatio >= limits.TakeProfit {
		return true, fmt.Sprintf("%s up %.1f%%, take profit %.1f%% hit",
			pos.Ticker, pos.PLRatio*100, limits.TakeProfit*100)
	}
	return false, ""
}

// Stats returns today's counters.
func (g *Gate) Stats() DailyStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked()
	return DailyStats{
		Day:         g.day,
		Trades:      g.trades,
		BuyAmount:   g.buyAmount,
		SellAmount:  g.sellAmount,
		TotalAmount: g.buyAmount + g.sellAmount,
		Rejected:    g.rejected,
	}
}
