// Package engine wires the data router, strategies, sizer, risk gate, and
// executor into the decision pipeline that scheduled jobs drive.
package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeAPmind/tradingsystem/internal/dataroute"
	"github.com/codeAPmind/tradingsystem/internal/execution"
	"github.com/codeAPmind/tradingsystem/internal/market"
	"github.com/codeAPmind/tradingsystem/internal/paper"
	"github.com/codeAPmind/tradingsystem/internal/risk"
	"github.com/codeAPmind/tradingsystem/internal/scheduler"
	"github.com/codeAPmind/tradingsystem/internal/signal"
	"github.com/codeAPmind/tradingsystem/internal/sizing"
	"github.com/codeAPmind/tradingsystem/internal/strategy"
)

// tradingDaysPerYear annualizes daily return volatility.
const tradingDaysPerYear = 252

// Pipeline runs one ticker through fetch, evaluate, size, gate, and submit.
type Pipeline struct {
	router   *dataroute.Router
	strat    *strategy.Engine
	sizer    *sizing.Sizer
	gate     *risk.Gate
	exec     execution.Executor
	account  *paper.Account
	lookback int
	now      func() time.Time
	log      zerolog.Logger
}

// Option configures a pipeline.
type Option func(*Pipeline)

// WithLookback sets how many calendar days of history each evaluation
// fetches.
func WithLookback(days int) Option {
	return func(p *Pipeline) {
		if days > 0 {
			p.lookback = days
		}
	}
}

// WithNow overrides the pipeline clock. Tests only.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New assembles a pipeline.
func New(router *dataroute.Router, strat *strategy.Engine, sizer *sizing.Sizer,
	gate *risk.Gate, exec execution.Executor, account *paper.Account,
	log zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		router:   router,
		strat:    strat,
		sizer:    sizer,
		gate:     gate,
		exec:     exec,
		account:  account,
		lookback: 400,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run is the scheduler entry point: fetch history, evaluate every strategy
// active for the job's ticker, and push actionable signals through sizing,
// risk, and execution. It returns all produced signals, traded or not.
func (p *Pipeline) Run(ctx context.Context, job scheduler.Job) ([]*signal.Signal, error) {
	_, ticker := market.Classify(job.Ticker)
	if _, ok := p.strat.Instance(ticker, job.Strategy); !ok {
		if err := p.strat.Activate(ticker, job.Strategy, job.Params); err != nil {
			return nil, err
		}
	}
	p.syncCompositeContext(ticker, job.Strategy)

	end := p.now()
	start := end.AddDate(0, 0, -p.lookback)
	bars, err := p.router.GetSeries(ctx, ticker, start, end, false)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ticker, err)
	}

	sigs := p.strat.Evaluate(ticker, bars)
	vol := annualVol(bars.Closes())

	for _, sig := range sigs {
		if !sig.Actionable() {
			continue
		}
		if err := p.Execute(sig, vol); err != nil {
			p.log.Warn().Err(err).Str("ticker", sig.Ticker).Str("type", string(sig.Type)).Msg("signal not executed")
		}
	}
	return sigs, nil
}

// Execute sizes a single actionable signal and pushes it through the risk
// gate to the executor. Rejections are not errors: the pipeline did its job
// by stopping the trade.
func (p *Pipeline) Execute(sig *signal.Signal, vol float64) error {
	if !sig.Actionable() {
		return nil
	}
	if sig.Price <= 0 {
		return fmt.Errorf("signal %s has no price", sig.ID)
	}

	prices := p.markPrices(sig)
	acct, positions := p.account.RiskView(prices)

	var qty float64
	switch sig.Type {
	case signal.Buy:
		fraction := p.sizer.SizeWithVolatility(sig.Strength(), vol)
		if fraction == 0 {
			p.log.Info().Str("ticker", sig.Ticker).Msg("sizer declined, no edge")
			return nil
		}
		qty = math.Floor(fraction * acct.TotalAssets / sig.Price)
	case signal.Sell:
		qty = positions[sig.Ticker].CanSellQty
	}
	if qty <= 0 {
		p.log.Info().Str("ticker", sig.Ticker).Str("type", string(sig.Type)).Msg("nothing to trade")
		return nil
	}

	res := p.gate.Check(sig.Type, sig.Ticker, qty, sig.Price, acct, positions)
	if !res.OK {
		p.log.Warn().Str("ticker", sig.Ticker).Str("reason", res.Reason).Msg("order rejected by risk gate")
		return nil
	}

	order := execution.NewOrder(sig.Ticker, execution.Side(sig.Type), qty, sig.Price)
	if err := p.exec.Submit(order); err != nil {
		return fmt.Errorf("submit %s: %w", order.ID, err)
	}
	p.gate.RecordAccepted(sig.Type, sig.Ticker, qty, sig.Price)

	if err := p.account.MarketFill(sig.Ticker, order.Side, qty, sig.Price); err != nil {
		return fmt.Errorf("fill %s: %w", order.ID, err)
	}
	p.log.Info().
		Str("order_id", order.ID).
		Str("ticker", sig.Ticker).
		Str("side", string(order.Side)).
		Float64("qty", qty).
		Float64("price", sig.Price).
		Msg("order executed")
	return nil
}

// ReviewPositions checks every holding against the stop-loss and
// take-profit levels and liquidates breaches at the current price.
func (p *Pipeline) ReviewPositions(ctx context.Context) error {
	snap := p.account.Snapshot(nil)
	for ticker := range snap.Holdings {
		price, err := p.router.CurrentPrice(ctx, ticker)
		if err != nil {
			p.log.Warn().Err(err).Str("ticker", ticker).Msg("no price for position review")
			continue
		}
		_, positions := p.account.RiskView(map[string]float64{ticker: price})
		pos := positions[ticker]
		hit, reason := p.gate.CheckStopLossTakeProfit(pos)
		if !hit {
			continue
		}
		p.log.Info().Str("ticker", ticker).Str("reason", reason).Msg("forced exit")
		sig := &signal.Signal{
			ID:     fmt.Sprintf("review-%s-%d", ticker, p.now().Unix()),
			Ticker: ticker,
			Type:   signal.Sell,
			Reason: reason,
			Price:  price,
			At:     p.now(),
		}
		if err := p.Execute(sig, 0); err != nil {
			return err
		}
	}
	return nil
}

// markPrices marks held tickers at cost so exposure checks have a value for
// everything, then overrides the evaluated ticker with its fresh price.
func (p *Pipeline) markPrices(sig *signal.Signal) map[string]float64 {
	snap := p.account.Snapshot(nil)
	prices := make(map[string]float64, len(snap.Holdings)+1)
	for ticker, h := range snap.Holdings {
		prices[ticker] = h.AvgCost
	}
	prices[sig.Ticker] = sig.Price
	return prices
}

// syncCompositeContext feeds position state to strategies that switch
// behavior on whether the ticker is held.
func (p *Pipeline) syncCompositeContext(ticker, name string) {
	st, ok := p.strat.Instance(ticker, name)
	if !ok {
		return
	}
	if comp, ok := st.(*strategy.Composite); ok {
		comp.SetPosition(p.account.Position(ticker) > 0)
	}
}

// annualVol estimates annualized volatility from daily close-to-close
// returns. Too little history returns 0, which disables the volatility
// adjustment.
func annualVol(closes []float64) float64 {
	if len(closes) < 21 {
		return 0
	}
	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] > 0 {
			rets = append(rets, closes[i]/closes[i-1]-1)
		}
	}
	if len(rets) < 20 {
		return 0
	}
	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	var variance float64
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(rets))
	return math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}
