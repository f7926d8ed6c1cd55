package strategy

import (
	"fmt"
	"math"
	"sync"

	"github.com/codeAPmind/tradingsystem/internal/series"
	"github.com/codeAPmind/tradingsystem/internal/signal"
)

// Composite blends a technical score, relative strength versus a benchmark,
// and an externally supplied sentiment reading into one conviction score.
// Unlike the single-indicator strategies it carries evaluation context that
// the caller refreshes between runs.
type Composite struct {
	mu        sync.Mutex
	benchmark series.Series
	sentiment float64
	held      bool

	lookback     int
	techWeight   float64
	rsWeight     float64
	sentWeight   float64
	enterAbove   float64
	exitBelow    float64
	rsiThreshold float64
	adxThreshold float64
	benchRSIExit float64
	params       map[string]float64
}

const (
	compRSIPeriod  = 14
	compMACDFast   = 12
	compMACDSlow   = 26
	compMACDSmooth = 9
	compADXPeriod  = 14
)

func init() {
	Register("composite", map[string]float64{
		"lookback":         20,
		"technical_weight": 0.5,
		"rs_weight":        0.3,
		"sentiment_weight": 0.2,
		"enter_above":      0.6,
		"exit_below":       0.3,
		"rsi_threshold":    45,
		"adx_threshold":    15,
		"bench_rsi_exit":   35,
		"bench_rsi_period": 14,
	}, newComposite)
}

func newComposite(params map[string]float64) (Strategy, error) {
	lookback, err := intParam("composite", params, "lookback", 5)
	if err != nil {
		return nil, err
	}
	total := params["technical_weight"] + params["rs_weight"] + params["sentiment_weight"]
	if total <= 0 {
		return nil, &ConfigError{Strategy: "composite", Param: "technical_weight", Detail: "weights must sum to a positive value"}
	}
	if params["exit_below"] >= params["enter_above"] {
		return nil, &ConfigError{Strategy: "composite", Param: "exit_below", Detail: "must be below enter_above"}
	}
	if t := params["rsi_threshold"]; t < 0 || t >= 100 {
		return nil, &ConfigError{Strategy: "composite", Param: "rsi_threshold", Detail: "must stay within [0, 100)"}
	}
	if t := params["adx_threshold"]; t < 0 || t >= 50 {
		return nil, &ConfigError{Strategy: "composite", Param: "adx_threshold", Detail: "must stay within [0, 50)"}
	}
	return &Composite{
		lookback:     lookback,
		techWeight:   params["technical_weight"],
		rsWeight:     params["rs_weight"],
		sentWeight:   params["sentiment_weight"],
		enterAbove:   params["enter_above"],
		exitBelow:    params["exit_below"],
		rsiThreshold: params["rsi_threshold"],
		adxThreshold: params["adx_threshold"],
		benchRSIExit: params["bench_rsi_exit"],
		sentiment:    0.5,
		params:       params,
	}, nil
}

func (c *Composite) Name() string { return "composite" }

// SetBenchmark supplies the index series used for relative strength and the
// defensive market-regime check.
func (c *Composite) SetBenchmark(s series.Series) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.benchmark = s
}

// SetSentiment records the latest sentiment reading in [0,1].
func (c *Composite) SetSentiment(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sentiment = clamp01(v)
}

// SetPosition tells the strategy whether the ticker is currently held, which
// switches it between entry and exit thresholds.
func (c *Composite) SetPosition(held bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held = held
}

func (c *Composite) Evaluate(s series.Series) *signal.Signal {
	c.mu.Lock()
	benchmark := c.benchmark
	sentiment := c.sentiment
	held := c.held
	c.mu.Unlock()

	closes := s.Closes()
	if len(closes) < c.lookback+1 {
		return nil
	}
	price := closes[len(closes)-1]

	tech := c.techScore(s)
	rs := c.relativeStrength(closes, benchmark)

	score := (c.techWeight*tech + c.rsWeight*rs + c.sentWeight*sentiment) /
		(c.techWeight + c.rsWeight + c.sentWeight)
	// sentiment sits on a [0,1] scale where 0.5 is neutral; the synergy gate
	// asks for clearly positive sentiment, not just neutrality
	if tech > 0.6 && rs > 0.6 && sentiment > 0.65 {
		score += 0.15 * tech * rs
	}
	score = clamp01(score)

	sig := &signal.Signal{
		Type:   signal.Hold,
		Price:  price,
		Params: c.params,
		Indicators: map[string]float64{
			"tech_score": tech,
			"rs_score":   rs,
			"sentiment":  sentiment,
			"magnitude":  score,
		},
	}

	if held {
		if benchRSI, ok := c.benchmarkRSI(benchmark); ok && benchRSI < c.benchRSIExit {
			sig.Type = signal.Sell
			sig.Reason = fmt.Sprintf("benchmark RSI %.1f below %.0f, defensive exit", benchRSI, c.benchRSIExit)
			return sig
		}
		if score < c.exitBelow {
			sig.Type = signal.Sell
			sig.Reason = fmt.Sprintf("composite score %.2f below exit threshold %.2f", score, c.exitBelow)
			return sig
		}
		sig.Reason = fmt.Sprintf("composite score %.2f, keep holding", score)
		return sig
	}

	if score > c.enterAbove {
		sig.Type = signal.Buy
		sig.Reason = fmt.Sprintf("composite score %.2f above entry threshold %.2f", score, c.enterAbove)
		sig.SuggestMin = price * 0.98
		sig.SuggestMax = price * 1.02
		return sig
	}
	sig.Reason = fmt.Sprintf("composite score %.2f below entry threshold %.2f", score, c.enterAbove)
	return sig
}

// techScore averages three sub-signals in [0,1]: RSI strength above a
// momentum threshold, MACD gap over its signal line, and ADX trend strength.
// A sub-signal that cannot be computed or fails its gate contributes zero.
func (c *Composite) techScore(s series.Series) float64 {
	closes := s.Closes()
	var rsiPart, macdPart, adxPart float64
	if rsi, ok := rsiLast(closes, compRSIPeriod); ok && rsi > c.rsiThreshold {
		rsiPart = math.Min((rsi-c.rsiThreshold)/(100-c.rsiThreshold), 1)
	}
	if macd, sigLine, ok := macdLast(closes, compMACDFast, compMACDSlow, compMACDSmooth); ok && macd > sigLine {
		macdPart = math.Min((macd-sigLine)/5.0, 1)
	}
	if adx, ok := adxLast(s, compADXPeriod); ok && adx > c.adxThreshold {
		adxPart = math.Min((adx-c.adxThreshold)/(50-c.adxThreshold), 1)
	}
	return (rsiPart + macdPart + adxPart) / 3
}

// relativeStrength maps the ratio of the ticker's RSI to the benchmark's
// onto [0,1], with 0.5 meaning in line with the index. An assumed ratio
// range of 0.5 to 2.0 sets the scale.
func (c *Composite) relativeStrength(closes []float64, benchmark series.Series) float64 {
	if len(benchmark) == 0 {
		return 0.5
	}
	tickerRSI, ok := rsiLast(closes, compRSIPeriod)
	if !ok {
		return 0.5
	}
	benchRSI, ok := rsiLast(benchmark.Closes(), compRSIPeriod)
	if !ok || benchRSI == 0 {
		return 0.5
	}
	return clamp01((tickerRSI/benchRSI - 0.5) / 1.5)
}

func (c *Composite) benchmarkRSI(benchmark series.Series) (float64, bool) {
	if len(benchmark) == 0 {
		return 0, false
	}
	period := int(c.params["bench_rsi_period"])
	if period < 2 {
		period = 14
	}
	return rsiLast(benchmark.Closes(), period)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
