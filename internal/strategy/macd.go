package strategy

import (
	"fmt"

	"github.com/codeAPmind/tradingsystem/internal/series"
	"github.com/codeAPmind/tradingsystem/internal/signal"
)

// macdStrategy fires only on the bar where the MACD histogram changes sign,
// so a sustained trend does not keep re-emitting the same advice.
type macdStrategy struct {
	fast      int
	slow      int
	smooth    int
	threshold float64
	params    map[string]float64
}

func init() {
	Register("macd", map[string]float64{
		"fast_period":   12,
		"slow_period":   26,
		"signal_period": 9,
		"threshold":     0,
	}, newMACD)
}

func newMACD(params map[string]float64) (Strategy, error) {
	fast, err := intParam("macd", params, "fast_period", 2)
	if err != nil {
		return nil, err
	}
	slow, err := intParam("macd", params, "slow_period", 2)
	if err != nil {
		return nil, err
	}
	smooth, err := intParam("macd", params, "signal_period", 1)
	if err != nil {
		return nil, err
	}
	if fast >= slow {
		return nil, &ConfigError{Strategy: "macd", Param: "fast_period", Detail: fmt.Sprintf("must be below slow_period (%d >= %d)", fast, slow)}
	}
	if params["threshold"] < 0 {
		return nil, &ConfigError{Strategy: "macd", Param: "threshold", Detail: "must not be negative"}
	}
	return &macdStrategy{fast: fast, slow: slow, smooth: smooth, threshold: params["threshold"], params: params}, nil
}

func (m *macdStrategy) Name() string { return "macd" }

func (m *macdStrategy) Evaluate(s series.Series) *signal.Signal {
	closes := s.Closes()
	if len(closes) < m.slow+m.smooth+1 {
		return nil
	}

	fast := ema(closes, m.fast)
	slow := ema(closes, m.slow)
	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = fast[i] - slow[i]
	}
	sigLine := ema(macdLine, m.smooth)

	last := len(closes) - 1
	hist := macdLine[last] - sigLine[last]
	prevHist := macdLine[last-1] - sigLine[last-1]
	price := closes[last]

	sig := &signal.Signal{
		Type:   signal.Hold,
		Reason: fmt.Sprintf("histogram %.4f, no crossing", hist),
		Price:  price,
		Params: m.params,
		Indicators: map[string]float64{
			"macd":      macdLine[last],
			"signal":    sigLine[last],
			"histogram": hist,
		},
	}
	switch {
	case macdLine[last] > sigLine[last] && prevHist <= 0 && hist > m.threshold:
		sig.Type = signal.Buy
		sig.Reason = fmt.Sprintf("MACD crossed above signal (histogram %.4f -> %.4f)", prevHist, hist)
		sig.SuggestMin = price * 0.98
		sig.SuggestMax = price * 1.02
	case macdLine[last] < sigLine[last] && prevHist >= 0 && hist < -m.threshold:
		sig.Type = signal.Sell
		sig.Reason = fmt.Sprintf("MACD crossed below signal (histogram %.4f -> %.4f)", prevHist, hist)
		sig.SuggestMin = price * 0.98
		sig.SuggestMax = price * 1.02
	}
	return sig
}
