package provider

import (
	"context"
	"time"

	"github.com/codeAPmind/tradingsystem/internal/series"
)

// Stub emits deterministic synthetic bars (useful for tests/offline work).
// Each weekday in the requested range gets one bar walking up from Base by
// Step per day.
type Stub struct {
	Base float64
	Step float64
	Err  error // returned from Fetch when set

	Calls int
}

// NewStub builds a stub starting at 100.0 and climbing 1.0 per weekday.
func NewStub() *Stub { return &Stub{Base: 100, Step: 1} }

func (s *Stub) Name() string { return "stub" }

// Fetch generates bars for every weekday in [start, end].
func (s *Stub) Fetch(ctx context.Context, ticker string, start, end time.Time) (series.Series, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out series.Series
	px := s.Base
	for d := series.Day(start); !d.After(series.Day(end)); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, series.Bar{
			Date: d, Open: px, High: px + 0.5, Low: px - 0.5, Close: px, Volume: 10000,
		})
		px += s.Step
	}
	return out, nil
}
