// Package dataroute resolves tickers to the correct market data adapter,
// serving from the local cache first and validating everything a provider
// hands back.
package dataroute

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeAPmind/tradingsystem/internal/cache"
	"github.com/codeAPmind/tradingsystem/internal/market"
	"github.com/codeAPmind/tradingsystem/internal/metrics"
	"github.com/codeAPmind/tradingsystem/internal/provider"
	"github.com/codeAPmind/tradingsystem/internal/series"
)

// DataError is the typed failure for any data acquisition problem. It names
// the market and ticker so a caller never has to guess which venue failed.
type DataError struct {
	Market market.Market
	Ticker string
	Op     string
	Err    error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Market, e.Ticker, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Market, e.Ticker, e.Op)
}

func (e *DataError) Unwrap() error { return e.Err }

// Router owns the adapter registry and the cache-first fetch flow. Adapters
// are looked up by market, never hard-selected, so a new venue only needs a
// Register call.
type Router struct {
	mu       sync.RWMutex
	adapters map[market.Market]provider.Adapter

	cache   *cache.Store
	timeout time.Duration
	log     zerolog.Logger
}

// Option configures Router construction parameters.
type Option func(*Router)

// WithTimeout bounds every provider call dispatched by the router.
func WithTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// New builds a router around a cache store.
func New(store *cache.Store, log zerolog.Logger, opts ...Option) *Router {
	r := &Router{
		adapters: make(map[market.Market]provider.Adapter),
		cache:    store,
		timeout:  15 * time.Second,
		log:      log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register installs the adapter for a market, replacing any previous one.
func (r *Router) Register(m market.Market, a provider.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[m] = a
}

func (r *Router) adapter(m market.Market) (provider.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[m]
	return a, ok
}

// GetSeries returns the daily bars for [start, end]. The cache is consulted
// first unless forceRefresh is set; a provider fetch is validated, stored,
// and trimmed to the request. Failures come back as *DataError and are
// never retried here - retry policy belongs to the caller.
func (r *Router) GetSeries(ctx context.Context, ticker string, start, end time.Time, forceRefresh bool) (series.Series, error) {
	mkt, canonical := market.Classify(ticker)
	start, end = series.Day(start), series.Day(end)

	if !forceRefresh && r.cache != nil {
		if cached, ok := r.cache.Lookup(canonical, start, end); ok {
			return cached, nil
		}
	}

	adapter, ok := r.adapter(mkt)
	if !ok {
		return nil, &DataError{Market: mkt, Ticker: canonical, Op: "no adapter registered"}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := adapter.Fetch(fetchCtx, canonical, start, end)
	if err != nil {
		metrics.ProviderFetchesTotal.WithLabelValues(string(mkt), "error").Inc()
		return nil, &DataError{Market: mkt, Ticker: canonical, Op: "fetch", Err: err}
	}

	cleaned := series.Clean(raw)
	if len(cleaned) == 0 {
		metrics.ProviderFetchesTotal.WithLabelValues(string(mkt), "empty").Inc()
		return nil, &DataError{Market: mkt, Ticker: canonical, Op: "empty series after validation"}
	}
	metrics.ProviderFetchesTotal.WithLabelValues(string(mkt), "ok").Inc()

	if r.cache != nil {
		if err := r.cache.Store(canonical, start, end, cleaned); err != nil {
			r.log.Warn().Err(err).Str("ticker", canonical).Msg("cache store failed")
		}
	}
	return cleaned.Slice(start, end), nil
}

// CurrentPrice returns the most recent traded price. Markets whose adapter
// can quote directly do so; everything else falls back to the last close of
// a trailing one-week fetch.
func (r *Router) CurrentPrice(ctx context.Context, ticker string) (float64, error) {
	mkt, canonical := market.Classify(ticker)

	if adapter, ok := r.adapter(mkt); ok {
		if quoter, ok := adapter.(provider.Quoter); ok {
			quoteCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			price, err := quoter.Quote(quoteCtx, canonical)
			if err == nil {
				return price, nil
			}
			r.log.Warn().Err(err).Str("ticker", canonical).Msg("realtime quote failed, falling back to history")
		}
	}

	end := time.Now()
	start := end.AddDate(0, 0, -7)
	s, err := r.GetSeries(ctx, canonical, start, end, true)
	if err != nil {
		return 0, err
	}
	last, ok := s.Last()
	if !ok {
		return 0, &DataError{Market: mkt, Ticker: canonical, Op: "no recent bars"}
	}
	return last.Close, nil
}
