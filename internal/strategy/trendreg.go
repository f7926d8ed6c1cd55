package strategy

import (
	"fmt"

	"github.com/codeAPmind/tradingsystem/internal/series"
	"github.com/codeAPmind/tradingsystem/internal/signal"
)

// trendReg compares a short-window time series forecast against a longer
// least-squares moving average. The TSF extrapolates its fitted line one
// step past the window; the LSMA is the longer fit's endpoint. A forecast
// pulling away from the slow fit by more than the threshold is the signal.
// Thresholds are percent-of-LSMA by default, absolute when buy_threshold
// is supplied instead.
type trendReg struct {
	tsfPeriod  int
	lsmaPeriod int
	buyThr     float64
	sellThr    float64
	pctMode    bool
	params     map[string]float64
}

func init() {
	Register("trend_regression", map[string]float64{
		"tsf_period":         9,
		"lsma_period":        20,
		"buy_threshold_pct":  0.5,
		"sell_threshold_pct": 0.5,
	}, newTrendReg)
}

func newTrendReg(params map[string]float64) (Strategy, error) {
	tsfPeriod, err := intParam("trend_regression", params, "tsf_period", 2)
	if err != nil {
		return nil, err
	}
	lsmaPeriod, err := intParam("trend_regression", params, "lsma_period", 2)
	if err != nil {
		return nil, err
	}

	t := &trendReg{tsfPeriod: tsfPeriod, lsmaPeriod: lsmaPeriod, params: params}
	if _, abs := params["buy_threshold"]; abs {
		t.buyThr = params["buy_threshold"]
		t.sellThr = params["sell_threshold"]
		if t.sellThr == 0 {
			t.sellThr = t.buyThr
		}
		if t.buyThr <= 0 {
			return nil, &ConfigError{Strategy: "trend_regression", Param: "buy_threshold", Detail: "must be > 0"}
		}
	} else {
		t.pctMode = true
		if t.buyThr, err = positiveParam("trend_regression", params, "buy_threshold_pct"); err != nil {
			return nil, err
		}
		if t.sellThr, err = positiveParam("trend_regression", params, "sell_threshold_pct"); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *trendReg) Name() string { return "trend_regression" }

func (t *trendReg) minBars() int {
	if t.tsfPeriod > t.lsmaPeriod {
		return t.tsfPeriod
	}
	return t.lsmaPeriod
}

func (t *trendReg) Evaluate(s series.Series) *signal.Signal {
	closes := s.Closes()
	if len(closes) < t.minBars() {
		return nil
	}

	tsfSlope, tsfIntercept := linreg(closes, t.tsfPeriod)
	tsf := tsfSlope*float64(t.tsfPeriod) + tsfIntercept

	lsmaSlope, lsmaIntercept := linreg(closes, t.lsmaPeriod)
	lsma := lsmaSlope*float64(t.lsmaPeriod-1) + lsmaIntercept

	price := closes[len(closes)-1]
	diff := tsf - lsma

	var buyGap, sellGap float64
	if t.pctMode {
		// threshold parameters are in percent units: 0.5 means 0.5% of LSMA
		buyGap = lsma * (t.buyThr / 100)
		sellGap = lsma * (t.sellThr / 100)
	} else {
		buyGap, sellGap = t.buyThr, t.sellThr
	}

	sig := &signal.Signal{
		Type:   signal.Hold,
		Reason: fmt.Sprintf("TSF %.2f within threshold of LSMA %.2f (diff %.2f)", tsf, lsma, diff),
		Price:  price,
		Params: t.params,
		Indicators: map[string]float64{
			"tsf":  tsf,
			"lsma": lsma,
			"diff": diff,
		},
	}

	switch {
	case diff > buyGap:
		sig.Type = signal.Buy
		sig.Reason = fmt.Sprintf("TSF %.2f above LSMA %.2f by %.2f (threshold %.2f)", tsf, lsma, diff, buyGap)
		sig.SuggestMin = price * 0.98
		sig.SuggestMax = price * 1.02
	case diff < -sellGap:
		sig.Type = signal.Sell
		sig.Reason = fmt.Sprintf("TSF %.2f below LSMA %.2f by %.2f (threshold %.2f)", tsf, lsma, -diff, sellGap)
		sig.SuggestMin = price * 0.98
		sig.SuggestMax = price * 1.02
	}
	return sig
}
