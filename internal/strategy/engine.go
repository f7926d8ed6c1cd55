package strategy

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeAPmind/tradingsystem/internal/metrics"
	"github.com/codeAPmind/tradingsystem/internal/series"
	"github.com/codeAPmind/tradingsystem/internal/signal"
)

// Activation is one (ticker, strategy) binding held by the engine.
type Activation struct {
	Ticker   string
	Strategy string
	Params   map[string]float64
}

type activationKey struct {
	ticker   string
	strategy string
}

// Engine holds the active strategy instances per ticker and stamps every
// produced signal with identity and provenance fields.
type Engine struct {
	mu     sync.RWMutex
	active map[activationKey]Strategy
	params map[activationKey]map[string]float64
	log    zerolog.Logger
	now    func() time.Time
}

// NewEngine returns an empty engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		active: make(map[activationKey]Strategy),
		params: make(map[activationKey]map[string]float64),
		log:    log,
		now:    time.Now,
	}
}

// Activate instantiates the named strategy for a ticker. Bad parameters fail
// here, before any scheduled run, and re-activating replaces the instance.
func (e *Engine) Activate(ticker, name string, params map[string]float64) error {
	st, err := New(name, params)
	if err != nil {
		return fmt.Errorf("activate %s for %s: %w", name, ticker, err)
	}
	key := activationKey{ticker: ticker, strategy: name}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.active[key] = st
	e.params[key] = params
	e.log.Info().Str("ticker", ticker).Str("strategy", name).Msg("strategy activated")
	return nil
}

// Deactivate removes one binding and reports whether it existed.
func (e *Engine) Deactivate(ticker, name string) bool {
	key := activationKey{ticker: ticker, strategy: name}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.active[key]; !ok {
		return false
	}
	delete(e.active, key)
	delete(e.params, key)
	return true
}

// Instance returns the live strategy behind an activation, for callers that
// need to feed it context before evaluation.
func (e *Engine) Instance(ticker, name string) (Strategy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.active[activationKey{ticker: ticker, strategy: name}]
	return st, ok
}

// List returns the current activations sorted by ticker then strategy.
func (e *Engine) List() []Activation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Activation, 0, len(e.active))
	for key := range e.active {
		out = append(out, Activation{Ticker: key.ticker, Strategy: key.strategy, Params: e.params[key]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ticker != out[j].Ticker {
			return out[i].Ticker < out[j].Ticker
		}
		return out[i].Strategy < out[j].Strategy
	})
	return out
}

// Evaluate runs every strategy active for the ticker against the series and
// returns the fully stamped signals. Strategies that decline to answer (too
// little history) are skipped.
func (e *Engine) Evaluate(ticker string, s series.Series) []*signal.Signal {
	e.mu.RLock()
	type bound struct {
		name string
		st   Strategy
	}
	var run []bound
	for key, st := range e.active {
		if key.ticker == ticker {
			run = append(run, bound{name: key.strategy, st: st})
		}
	}
	e.mu.RUnlock()

	sort.Slice(run, func(i, j int) bool { return run[i].name < run[j].name })

	var out []*signal.Signal
	for _, b := range run {
		sig := b.st.Evaluate(s)
		if sig == nil {
			e.log.Debug().Str("ticker", ticker).Str("strategy", b.name).Msg("not enough history to evaluate")
			continue
		}
		sig.ID = uuid.NewString()
		sig.Ticker = ticker
		sig.Strategy = b.name
		sig.At = e.now()
		metrics.SignalsTotal.WithLabelValues(ticker, string(sig.Type)).Inc()
		out = append(out, sig)
	}
	return out
}
