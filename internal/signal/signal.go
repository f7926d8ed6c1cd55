// Package signal standardizes the payloads shared between the strategy,
// sizing, risk, and notification layers.
package signal

import "time"

// Type is the recommendation a strategy evaluation produces.
type Type string

const (
	Buy  Type = "BUY"
	Sell Type = "SELL"
	Hold Type = "HOLD"
)

// Signal is an immutable recommendation for one ticker produced by exactly
// one strategy evaluation. Price is the last close of the evaluated series.
type Signal struct {
	ID         string             `json:"id"`
	Ticker     string             `json:"ticker"`
	Type       Type               `json:"type"`
	Reason     string             `json:"reason"`
	Price      float64            `json:"price"`
	SuggestMin float64            `json:"suggest_min"`
	SuggestMax float64            `json:"suggest_max"`
	Strategy   string             `json:"strategy"`
	Params     map[string]float64 `json:"params,omitempty"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
	At         time.Time          `json:"at"`
}

// Actionable reports whether the signal proposes a trade.
func (s *Signal) Actionable() bool {
	return s != nil && (s.Type == Buy || s.Type == Sell)
}

// Strength returns the signal magnitude in [0,1] used for position sizing.
// Strategies that compute a blended score expose it through the indicator
// map; everything else is treated as a middling-conviction signal.
func (s *Signal) Strength() float64 {
	if s == nil {
		return 0
	}
	if v, ok := s.Indicators["magnitude"]; ok {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}
	return 0.5
}
