// Package provider hosts the per-market data source adapters. Every adapter
// returns the same normalized daily series regardless of the vendor wire
// format, so routing never has to know which venue it is talking to.
package provider

import (
	"context"
	"time"

	"github.com/codeAPmind/tradingsystem/internal/series"
)

// Adapter fetches daily bars for one canonical ticker. Implementations must
// honor the context deadline and return bars in ascending date order without
// duplicates; the router re-validates regardless.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, ticker string, start, end time.Time) (series.Series, error)
}

// Quoter is implemented by adapters that can serve a realtime price without
// a history fetch.
type Quoter interface {
	Quote(ctx context.Context, ticker string) (float64, error)
}
