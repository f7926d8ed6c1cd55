package strategy

import (
	"fmt"

	"github.com/codeAPmind/tradingsystem/internal/series"
	"github.com/codeAPmind/tradingsystem/internal/signal"
)

// rsiStrategy buys oversold and sells overbought closes.
type rsiStrategy struct {
	period     int
	overbought float64
	oversold   float64
	params     map[string]float64
}

func init() {
	Register("rsi", map[string]float64{
		"period":     14,
		"overbought": 70,
		"oversold":   30,
	}, newRSI)
}

func newRSI(params map[string]float64) (Strategy, error) {
	period, err := intParam("rsi", params, "period", 2)
	if err != nil {
		return nil, err
	}
	ob, os := params["overbought"], params["oversold"]
	if os >= ob {
		return nil, &ConfigError{Strategy: "rsi", Param: "oversold", Detail: fmt.Sprintf("must be below overbought (%v >= %v)", os, ob)}
	}
	if os < 0 || ob > 100 {
		return nil, &ConfigError{Strategy: "rsi", Param: "overbought", Detail: "levels must stay within [0, 100]"}
	}
	return &rsiStrategy{period: period, overbought: ob, oversold: os, params: params}, nil
}

func (r *rsiStrategy) Name() string { return "rsi" }

func (r *rsiStrategy) Evaluate(s series.Series) *signal.Signal {
	closes := s.Closes()
	rsi, ok := rsiLast(closes, r.period)
	if !ok {
		return nil
	}
	price := closes[len(closes)-1]

	sig := &signal.Signal{
		Type:       signal.Hold,
		Reason:     fmt.Sprintf("RSI %.1f between %.0f and %.0f", rsi, r.oversold, r.overbought),
		Price:      price,
		Params:     r.params,
		Indicators: map[string]float64{"rsi": rsi},
	}
	switch {
	case rsi < r.oversold:
		sig.Type = signal.Buy
		sig.Reason = fmt.Sprintf("RSI %.1f below oversold %.0f", rsi, r.oversold)
		sig.SuggestMin = price * 0.98
		sig.SuggestMax = price * 1.02
	case rsi > r.overbought:
		sig.Type = signal.Sell
		sig.Reason = fmt.Sprintf("RSI %.1f above overbought %.0f", rsi, r.overbought)
		sig.SuggestMin = price * 0.98
		sig.SuggestMax = price * 1.02
	}
	return sig
}
