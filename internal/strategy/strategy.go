// Package strategy holds the signal generators and the registry that
// instantiates them from configuration. A strategy is pure: the same bars in
// always produce the same advice out, which keeps scheduled evaluation and
// backfills interchangeable.
package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/codeAPmind/tradingsystem/internal/series"
	"github.com/codeAPmind/tradingsystem/internal/signal"
)

// Strategy evaluates a ticker's daily bars and returns advice. Evaluate
// returns nil when there is not enough history to decide anything.
type Strategy interface {
	Name() string
	Evaluate(s series.Series) *signal.Signal
}

// Factory builds a strategy from merged parameters. Factories must reject
// out-of-range values instead of silently clamping them.
type Factory func(params map[string]float64) (Strategy, error)

// ConfigError reports an invalid strategy parameter at construction time.
type ConfigError struct {
	Strategy string
	Param    string
	Detail   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("strategy %s: parameter %s: %s", e.Strategy, e.Param, e.Detail)
}

type registration struct {
	factory  Factory
	defaults map[string]float64
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]registration)
)

// Register makes a strategy constructable by name. Later registrations with
// the same name replace earlier ones.
func Register(name string, defaults map[string]float64, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = registration{factory: factory, defaults: defaults}
}

// New instantiates a registered strategy, overlaying params on the
// registered defaults. Unknown names and bad parameters both fail fast.
func New(name string, params map[string]float64) (Strategy, error) {
	registryMu.RLock()
	reg, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}

	merged := make(map[string]float64, len(reg.defaults)+len(params))
	for k, v := range reg.defaults {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return reg.factory(merged)
}

// Names lists the registered strategy names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func intParam(strategy string, params map[string]float64, key string, min int) (int, error) {
	v := int(params[key])
	if v < min {
		return 0, &ConfigError{Strategy: strategy, Param: key, Detail: fmt.Sprintf("must be >= %d, got %d", min, v)}
	}
	return v, nil
}

func positiveParam(strategy string, params map[string]float64, key string) (float64, error) {
	v := params[key]
	if v <= 0 {
		return 0, &ConfigError{Strategy: strategy, Param: key, Detail: fmt.Sprintf("must be > 0, got %v", v)}
	}
	return v, nil
}
