// Package sizing turns signal conviction into a position fraction using a
// fractional Kelly criterion with adaptive win/loss statistics.
package sizing

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Config seeds the sizer before it has seen enough outcomes of its own.
type Config struct {
	WinRate     float64 `yaml:"win_rate"`
	AvgWin      float64 `yaml:"avg_win"`
	AvgLoss     float64 `yaml:"avg_loss"`
	Fraction    float64 `yaml:"fraction"`
	MinPosition float64 `yaml:"min_position"`
	MaxPosition float64 `yaml:"max_position"`
}

// DefaultConfig mirrors the deployed sizer seed.
func DefaultConfig() Config {
	return Config{
		WinRate:     0.55,
		AvgWin:      0.05,
		AvgLoss:     0.02,
		Fraction:    0.25,
		MinPosition: 0.01,
		MaxPosition: 0.20,
	}
}

// Validate rejects configurations that cannot produce a sane fraction.
func (c Config) Validate() error {
	if c.WinRate <= 0 || c.WinRate >= 1 {
		return fmt.Errorf("win_rate must be in (0,1), got %v", c.WinRate)
	}
	if c.AvgWin <= 0 || c.AvgLoss <= 0 {
		return fmt.Errorf("avg_win and avg_loss must be > 0")
	}
	if c.Fraction <= 0 || c.Fraction > 1 {
		return fmt.Errorf("fraction must be in (0,1], got %v", c.Fraction)
	}
	if c.MinPosition < 0 || c.MaxPosition <= c.MinPosition || c.MaxPosition > 1 {
		return fmt.Errorf("positions must satisfy 0 <= min < max <= 1")
	}
	return nil
}

// Stats is a read-only snapshot of the sizer's learned trade statistics.
type Stats struct {
	WinRate     float64 `json:"win_rate"`
	AvgWin      float64 `json:"avg_win"`
	AvgLoss     float64 `json:"avg_loss"`
	PayoffRatio float64 `json:"payoff_ratio"`
	TotalTrades int     `json:"total_trades"`
}

// Sizer computes Kelly position fractions. Outcome recording and sizing are
// safe to call from different goroutines.
type Sizer struct {
	mu       sync.Mutex
	cfg      Config
	outcomes []float64
	baseVol  float64
	log      zerolog.Logger
}

// minSamples is how many recorded outcomes the sizer wants before trusting
// its own statistics over the configured seed.
const minSamples = 5

// emaAlpha weights fresh statistics against the current estimate.
const emaAlpha = 0.3

// New builds a sizer from a validated config.
func New(cfg Config, log zerolog.Logger) (*Sizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sizing config: %w", err)
	}
	return &Sizer{cfg: cfg, baseVol: 0.30, log: log}, nil
}

// Size returns the fraction of total assets to commit for a signal of the
// given strength in [0,1]. A negative Kelly estimate sizes to zero; anything
// else lands inside [MinPosition, MaxPosition].
func (s *Sizer) Size(strength float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sizeLocked(strength)
}

// SizeWithVolatility scales the Kelly fraction by how calm or stormy the
// ticker is relative to a 30% annualized baseline. The multiplier is kept
// inside [0.5, 1.5].
func (s *Sizer) SizeWithVolatility(strength, annualVol float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.sizeLocked(strength)
	if base == 0 || annualVol <= 0 {
		return base
	}
	mult := s.baseVol / annualVol
	if mult < 0.5 {
		mult = 0.5
	} else if mult > 1.5 {
		mult = 1.5
	}
	sized := base * mult
	if sized < s.cfg.MinPosition {
		sized = s.cfg.MinPosition
	}
	if sized > s.cfg.MaxPosition {
		sized = s.cfg.MaxPosition
	}
	return sized
}

func (s *Sizer) sizeLocked(strength float64) float64 {
	if strength < 0 {
		strength = 0
	} else if strength > 1 {
		strength = 1
	}

	p := s.cfg.WinRate + (strength-0.5)*0.2
	if p < 0.3 {
		p = 0.3
	} else if p > 0.8 {
		p = 0.8
	}
	q := 1 - p
	b := s.cfg.AvgWin / s.cfg.AvgLoss

	kelly := (p*b - q) / b
	if kelly <= 0 {
		return 0
	}

	f := kelly * s.cfg.Fraction
	if f < s.cfg.MinPosition {
		f = s.cfg.MinPosition
	}
	if f > s.cfg.MaxPosition {
		f = s.cfg.MaxPosition
	}
	return f
}

// RecordOutcome stores a closed trade's fractional return and refreshes the
// learned statistics once enough samples exist.
func (s *Sizer) RecordOutcome(ret float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, ret)
	s.updateStatsLocked(len(s.outcomes))
}

// UpdateStats re-derives the win-rate and average win/loss from the last
// lookback outcomes, blended into the current estimates. Fewer than
// minSamples outcomes leave the config untouched.
func (s *Sizer) UpdateStats(lookback int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateStatsLocked(lookback)
}

func (s *Sizer) updateStatsLocked(lookback int) {
	if len(s.outcomes) < minSamples {
		return
	}
	if lookback <= 0 || lookback > len(s.outcomes) {
		lookback = len(s.outcomes)
	}
	window := s.outcomes[len(s.outcomes)-lookback:]

	var wins, winSum, lossSum float64
	var losses int
	for _, r := range window {
		if r > 0 {
			wins++
			winSum += r
		} else if r < 0 {
			losses++
			lossSum -= r
		}
	}
	total := wins + float64(losses)
	if total == 0 {
		return
	}

	s.cfg.WinRate = blend(s.cfg.WinRate, wins/total)
	if wins > 0 {
		s.cfg.AvgWin = blend(s.cfg.AvgWin, winSum/wins)
	}
	if losses > 0 {
		s.cfg.AvgLoss = blend(s.cfg.AvgLoss, lossSum/float64(losses))
	}
	s.log.Debug().
		Float64("win_rate", s.cfg.WinRate).
		Float64("avg_win", s.cfg.AvgWin).
		Float64("avg_loss", s.cfg.AvgLoss).
		Msg("sizer statistics updated")
}

func blend(current, fresh float64) float64 {
	return current*(1-emaAlpha) + fresh*emaAlpha
}

// Stats reports the sizer's current statistics.
func (s *Sizer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		WinRate:     s.cfg.WinRate,
		AvgWin:      s.cfg.AvgWin,
		AvgLoss:     s.cfg.AvgLoss,
		PayoffRatio: s.cfg.AvgWin / s.cfg.AvgLoss,
		TotalTrades: len(s.outcomes),
	}
}
