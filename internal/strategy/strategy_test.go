package strategy

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeAPmind/tradingsystem/internal/series"
	"github.com/codeAPmind/tradingsystem/internal/signal"
)

func barsFrom(closes []float64) series.Series {
	start := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make(series.Series, 0, len(closes))
	for i, c := range closes {
		out = append(out, series.Bar{
			Date: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000,
		})
	}
	return out
}

func rising(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func falling(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start - float64(i)*step
	}
	return out
}

func TestNewUnknownStrategy(t *testing.T) {
	if _, err := New("nope", nil); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestNewRejectsBadParams(t *testing.T) {
	cases := []struct {
		name   string
		params map[string]float64
	}{
		{"trend_regression", map[string]float64{"tsf_period": 1}},
		{"trend_regression", map[string]float64{"buy_threshold_pct": -0.5}},
		{"rsi", map[string]float64{"oversold": 80, "overbought": 70}},
		{"macd", map[string]float64{"fast_period": 30, "slow_period": 26}},
		{"boll_rsi", map[string]float64{"bb_devfactor": 0}},
		{"composite", map[string]float64{"exit_below": 0.6, "enter_above": 0.5}},
	}
	for _, tc := range cases {
		_, err := New(tc.name, tc.params)
		if err == nil {
			t.Fatalf("%s accepted bad params %v", tc.name, tc.params)
		}
		var cerr *ConfigError
		if !errors.As(err, &cerr) {
			t.Fatalf("%s: err = %v, want *ConfigError", tc.name, err)
		}
	}
}

func TestTrendRegressionUptrend(t *testing.T) {
	st, err := New("trend_regression", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sig := st.Evaluate(barsFrom(rising(30, 100, 2)))
	if sig == nil || sig.Type != signal.Buy {
		t.Fatalf("sig = %+v, want BUY", sig)
	}
	if sig.SuggestMin >= sig.SuggestMax {
		t.Fatalf("suggest band [%v, %v] inverted", sig.SuggestMin, sig.SuggestMax)
	}
	if sig.Indicators["tsf"] <= sig.Price {
		t.Fatalf("tsf %v should exceed price %v in an uptrend", sig.Indicators["tsf"], sig.Price)
	}
}

func TestTrendRegressionDowntrendAbsoluteMode(t *testing.T) {
	st, err := New("trend_regression", map[string]float64{"buy_threshold": 0.5, "sell_threshold": 0.5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sig := st.Evaluate(barsFrom(falling(30, 200, 2)))
	if sig == nil || sig.Type != signal.Sell {
		t.Fatalf("sig = %+v, want SELL", sig)
	}
}

func TestTrendRegressionFlatHolds(t *testing.T) {
	st, _ := New("trend_regression", nil)
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	sig := st.Evaluate(barsFrom(closes))
	if sig == nil || sig.Type != signal.Hold {
		t.Fatalf("sig = %+v, want HOLD", sig)
	}
}

func TestTrendRegressionShortHistory(t *testing.T) {
	st, _ := New("trend_regression", nil)
	if sig := st.Evaluate(barsFrom(rising(5, 100, 1))); sig != nil {
		t.Fatalf("sig = %+v, want nil for short history", sig)
	}
}

func TestRSIOversoldBuys(t *testing.T) {
	st, err := New("rsi", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sig := st.Evaluate(barsFrom(falling(30, 200, 3)))
	if sig == nil || sig.Type != signal.Buy {
		t.Fatalf("sig = %+v, want BUY on straight decline", sig)
	}
	if sig.Indicators["rsi"] > 30 {
		t.Fatalf("rsi = %v, want <= 30", sig.Indicators["rsi"])
	}
}

func TestRSIOverboughtSells(t *testing.T) {
	st, _ := New("rsi", nil)
	sig := st.Evaluate(barsFrom(rising(30, 100, 3)))
	if sig == nil || sig.Type != signal.Sell {
		t.Fatalf("sig = %+v, want SELL on straight climb", sig)
	}
}

func TestMACDCrossUp(t *testing.T) {
	st, err := New("macd", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// long decline followed by a sharp recovery forces the histogram to
	// flip sign near the end
	closes := falling(60, 300, 2)
	closes = append(closes, rising(15, closes[len(closes)-1], 6)...)

	var crossed *signal.Signal
	for n := 40; n <= len(closes); n++ {
		sig := st.Evaluate(barsFrom(closes[:n]))
		if sig != nil && sig.Type == signal.Buy {
			crossed = sig
			break
		}
	}
	if crossed == nil {
		t.Fatal("no BUY emitted across the recovery")
	}
	if crossed.Indicators["histogram"] <= 0 {
		t.Fatalf("histogram = %v, want > 0 at cross", crossed.Indicators["histogram"])
	}
}

func TestMACDNoRepeatWithinTrend(t *testing.T) {
	st, _ := New("macd", nil)
	sig := st.Evaluate(barsFrom(rising(80, 100, 1)))
	if sig == nil {
		t.Fatal("expected a signal with ample history")
	}
	if sig.Type != signal.Hold {
		t.Fatalf("sig = %+v, want HOLD deep inside an established trend", sig)
	}
}

func TestBollRSIRequiresBothConditions(t *testing.T) {
	st, err := New("boll_rsi", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// steady prices then a violent drop: band touch and oversold RSI line up
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	closes = append(closes, 95, 90, 84, 78, 72)
	sig := st.Evaluate(barsFrom(closes))
	if sig == nil || sig.Type != signal.Buy {
		t.Fatalf("sig = %+v, want BUY on band break with oversold RSI", sig)
	}
}

func TestBollRSIHoldExplainsMissingConfirmation(t *testing.T) {
	st, _ := New("boll_rsi", nil)
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i%3)
	}
	sig := st.Evaluate(barsFrom(closes))
	if sig == nil || sig.Type != signal.Hold {
		t.Fatalf("sig = %+v, want HOLD", sig)
	}
	if sig.Reason == "" {
		t.Fatal("HOLD must carry a reason")
	}
}

func TestBollRSIMinBars(t *testing.T) {
	st, _ := New("boll_rsi", nil)
	if sig := st.Evaluate(barsFrom(rising(15, 100, 1))); sig != nil {
		t.Fatalf("sig = %+v, want nil below minimum history", sig)
	}
}

func TestCompositeEntersOnStrongScore(t *testing.T) {
	st, err := New("composite", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	comp := st.(*Composite)
	comp.SetBenchmark(barsFrom(rising(40, 100, 0.1)))
	comp.SetSentiment(0.9)

	sig := comp.Evaluate(barsFrom(rising(40, 100, 2)))
	if sig == nil || sig.Type != signal.Buy {
		t.Fatalf("sig = %+v, want BUY", sig)
	}
	if m := sig.Indicators["magnitude"]; m <= 0.5 {
		t.Fatalf("magnitude = %v, want > 0.5", m)
	}
	if sig.Strength() != sig.Indicators["magnitude"] {
		t.Fatalf("Strength %v != magnitude %v", sig.Strength(), sig.Indicators["magnitude"])
	}
}

func TestCompositeSynergyNeedsPositiveSentiment(t *testing.T) {
	st, _ := New("composite", nil)
	comp := st.(*Composite)
	// flat benchmark keeps its RSI neutral, so relative strength maxes out
	comp.SetBenchmark(barsFrom(rising(40, 100, 0)))
	ticker := barsFrom(rising(40, 100, 2))

	comp.SetSentiment(0.5)
	neutral := comp.Evaluate(ticker).Indicators["magnitude"]
	comp.SetSentiment(0.9)
	bullish := comp.Evaluate(ticker).Indicators["magnitude"]

	// more than the 0.2-weighted sentiment delta alone: the synergy bonus
	// must kick in at 0.9 and stay off at neutral 0.5
	if bullish-neutral <= (0.9-0.5)*0.2+1e-9 {
		t.Fatalf("magnitude moved %v for the sentiment change, want the synergy bonus on top", bullish-neutral)
	}
}

func TestCompositeExitsWeakScoreWhenHeld(t *testing.T) {
	st, _ := New("composite", nil)
	comp := st.(*Composite)
	comp.SetBenchmark(barsFrom(rising(40, 100, 0.5)))
	comp.SetSentiment(0.0)
	comp.SetPosition(true)

	sig := comp.Evaluate(barsFrom(falling(40, 200, 2)))
	if sig == nil || sig.Type != signal.Sell {
		t.Fatalf("sig = %+v, want SELL when held with weak score", sig)
	}
}

func TestCompositeDefensiveExitOnBenchmarkWeakness(t *testing.T) {
	st, _ := New("composite", nil)
	comp := st.(*Composite)
	comp.SetBenchmark(barsFrom(falling(40, 300, 4)))
	comp.SetSentiment(0.9)
	comp.SetPosition(true)

	// the ticker itself still looks strong; the market regime forces the exit
	sig := comp.Evaluate(barsFrom(rising(40, 100, 2)))
	if sig == nil || sig.Type != signal.Sell {
		t.Fatalf("sig = %+v, want defensive SELL", sig)
	}
}

func TestCompositeFlatWeakScoreHolds(t *testing.T) {
	st, _ := New("composite", nil)
	comp := st.(*Composite)
	comp.SetSentiment(0.0)

	sig := comp.Evaluate(barsFrom(falling(40, 200, 2)))
	if sig == nil || sig.Type != signal.Hold {
		t.Fatalf("sig = %+v, want HOLD when flat", sig)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	for _, name := range []string{"trend_regression", "rsi", "macd", "boll_rsi"} {
		st, err := New(name, nil)
		if err != nil {
			t.Fatalf("New(%s): %v", name, err)
		}
		bars := barsFrom(rising(60, 100, 1.5))
		a, b := st.Evaluate(bars), st.Evaluate(bars)
		if a == nil || b == nil {
			t.Fatalf("%s returned nil on ample history", name)
		}
		if a.Type != b.Type || a.Reason != b.Reason {
			t.Fatalf("%s not deterministic: %v vs %v", name, a, b)
		}
	}
}

func TestEngineActivateEvaluate(t *testing.T) {
	eng := NewEngine(zerolog.Nop())
	if err := eng.Activate("AAPL", "trend_regression", nil); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := eng.Activate("AAPL", "rsi", nil); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	sigs := eng.Evaluate("AAPL", barsFrom(rising(40, 100, 2)))
	if len(sigs) != 2 {
		t.Fatalf("signals = %d, want 2", len(sigs))
	}
	for _, sig := range sigs {
		if sig.ID == "" || sig.Ticker != "AAPL" || sig.Strategy == "" || sig.At.IsZero() {
			t.Fatalf("signal not fully stamped: %+v", sig)
		}
	}
}

func TestEngineActivateBadParamsFailsFast(t *testing.T) {
	eng := NewEngine(zerolog.Nop())
	if err := eng.Activate("AAPL", "rsi", map[string]float64{"oversold": 90}); err == nil {
		t.Fatal("expected activation failure")
	}
	if got := len(eng.List()); got != 0 {
		t.Fatalf("activations = %d, want 0", got)
	}
}

func TestEngineDeactivate(t *testing.T) {
	eng := NewEngine(zerolog.Nop())
	if err := eng.Activate("00700", "macd", nil); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !eng.Deactivate("00700", "macd") {
		t.Fatal("Deactivate returned false for active binding")
	}
	if eng.Deactivate("00700", "macd") {
		t.Fatal("Deactivate returned true for missing binding")
	}
	if sigs := eng.Evaluate("00700", barsFrom(rising(60, 100, 1))); len(sigs) != 0 {
		t.Fatalf("signals after deactivate = %d, want 0", len(sigs))
	}
}
