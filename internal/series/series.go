// Package series defines the normalized daily price bars exchanged between
// data providers, the cache, and strategies.
package series

import (
	"math"
	"sort"
	"time"
)

// Bar is one calendar day of OHLCV data. Date carries no time component.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is an ordered-by-date, duplicate-free sequence of bars for one
// ticker. Dates are strictly increasing.
type Series []Bar

// Day truncates a timestamp to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Valid reports whether a bar has usable values: finite, non-negative
// prices and volume, and a positive close.
func (b Bar) Valid() bool {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return b.Close > 0 && !b.Date.IsZero()
}

// Clean normalizes provider output: invalid rows are dropped, dates are
// truncated to calendar days, the result is sorted ascending and deduped
// by date keeping the latest occurrence. An empty result means the input
// had nothing usable; the caller decides whether that is an error.
func Clean(raw Series) Series {
	byDate := make(map[time.Time]Bar, len(raw))
	for _, b := range raw {
		if !b.Valid() {
			continue
		}
		b.Date = Day(b.Date)
		byDate[b.Date] = b
	}
	out := make(Series, 0, len(byDate))
	for _, b := range byDate {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Merge combines two cleaned series, deduplicating by date with bars from
// b taking precedence over a.
func Merge(a, b Series) Series {
	merged := make(Series, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return Clean(merged)
}

// Slice returns the bars within [start, end], both truncated to days.
func (s Series) Slice(start, end time.Time) Series {
	start, end = Day(start), Day(end)
	out := make(Series, 0, len(s))
	for _, b := range s {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Closes returns the close column.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Last returns the most recent bar.
func (s Series) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// Bounds returns the first and last dates of the series.
func (s Series) Bounds() (time.Time, time.Time, bool) {
	if len(s) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s[0].Date, s[len(s)-1].Date, true
}
