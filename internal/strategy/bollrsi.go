package strategy

import (
	"fmt"

	"github.com/codeAPmind/tradingsystem/internal/series"
	"github.com/codeAPmind/tradingsystem/internal/signal"
)

// bollRSI requires both a Bollinger band touch and an RSI confirmation
// before acting. Either condition alone produces a HOLD with a reason that
// names the missing confirmation. Band proximity is measured as the distance
// to the band as a fraction of the full band width.
type bollRSI struct {
	bbPeriod   int
	devFactor  float64
	rsiPeriod  int
	oversold   float64
	overbought float64
	touchPct   float64
	params     map[string]float64
}

func init() {
	Register("boll_rsi", map[string]float64{
		"bb_period":      15,
		"bb_devfactor":   2.0,
		"rsi_period":     10,
		"rsi_oversold":   35,
		"rsi_overbought": 75,
		"bb_touch_pct":   0.01,
	}, newBollRSI)
}

func newBollRSI(params map[string]float64) (Strategy, error) {
	bbPeriod, err := intParam("boll_rsi", params, "bb_period", 2)
	if err != nil {
		return nil, err
	}
	rsiPeriod, err := intParam("boll_rsi", params, "rsi_period", 2)
	if err != nil {
		return nil, err
	}
	devFactor, err := positiveParam("boll_rsi", params, "bb_devfactor")
	if err != nil {
		return nil, err
	}
	if params["rsi_oversold"] >= params["rsi_overbought"] {
		return nil, &ConfigError{Strategy: "boll_rsi", Param: "rsi_oversold", Detail: "must be below rsi_overbought"}
	}
	return &bollRSI{
		bbPeriod:   bbPeriod,
		devFactor:  devFactor,
		rsiPeriod:  rsiPeriod,
		oversold:   params["rsi_oversold"],
		overbought: params["rsi_overbought"],
		touchPct:   params["bb_touch_pct"],
		params:     params,
	}, nil
}

func (b *bollRSI) Name() string { return "boll_rsi" }

func (b *bollRSI) minBars() int {
	n := b.bbPeriod
	if b.rsiPeriod > n {
		n = b.rsiPeriod
	}
	return n + 5
}

func (b *bollRSI) Evaluate(s series.Series) *signal.Signal {
	closes := s.Closes()
	if len(closes) < b.minBars() {
		return nil
	}

	mean, std, ok := meanStd(closes, b.bbPeriod)
	if !ok {
		return nil
	}
	rsi, ok := rsiLast(closes, b.rsiPeriod)
	if !ok {
		return nil
	}

	price := closes[len(closes)-1]
	upper := mean + b.devFactor*std
	lower := mean - b.devFactor*std
	width := upper - lower

	distToUpper := 1.0
	distToLower := 1.0
	if width > 0 {
		distToUpper = (upper - price) / width
		distToLower = (price - lower) / width
	}

	sig := &signal.Signal{
		Type:   signal.Hold,
		Price:  price,
		Params: b.params,
		Indicators: map[string]float64{
			"bb_upper": upper,
			"bb_mid":   mean,
			"bb_lower": lower,
			"bb_width": width,
			"rsi":      rsi,
		},
	}
	sig.SuggestMin = price * 0.99
	sig.SuggestMax = price * 1.01

	switch {
	case distToLower < b.touchPct && rsi < b.oversold:
		sig.Type = signal.Buy
		sig.Reason = fmt.Sprintf("close %.2f touched lower band %.2f with RSI %.1f below %.0f", price, lower, rsi, b.oversold)
		sig.SuggestMin = lower * 0.99
		sig.SuggestMax = lower * 1.01
	case distToLower < b.touchPct:
		sig.Reason = fmt.Sprintf("close %.2f near lower band but RSI %.1f not oversold", price, rsi)
	case distToUpper < b.touchPct && rsi > b.overbought:
		sig.Type = signal.Sell
		sig.Reason = fmt.Sprintf("close %.2f touched upper band %.2f with RSI %.1f above %.0f", price, upper, rsi, b.overbought)
		sig.SuggestMin = upper * 0.99
		sig.SuggestMax = upper * 1.01
	case distToUpper < b.touchPct:
		sig.Reason = fmt.Sprintf("close %.2f near upper band but RSI %.1f not overbought", price, rsi)
	case rsi < b.oversold:
		sig.Reason = fmt.Sprintf("RSI %.1f oversold but close %.2f not at lower band", rsi, price)
	case rsi > b.overbought:
		sig.Reason = fmt.Sprintf("RSI %.1f overbought but close %.2f not at upper band", rsi, price)
	default:
		sig.Reason = fmt.Sprintf("close %.2f inside bands with RSI %.1f neutral", price, rsi)
	}
	return sig
}
