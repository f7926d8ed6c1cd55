package dataroute

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeAPmind/tradingsystem/internal/cache"
	"github.com/codeAPmind/tradingsystem/internal/market"
	"github.com/codeAPmind/tradingsystem/internal/provider"
)

func testStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	return store
}

func dates() (time.Time, time.Time) {
	return time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)
}

func TestGetSeriesCacheFirst(t *testing.T) {
	stub := provider.NewStub()
	r := New(testStore(t), zerolog.Nop())
	r.Register(market.US, stub)

	start, end := dates()

	first, err := r.GetSeries(context.Background(), "AAPL", start, end, false)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if len(first) == 0 {
		t.Fatal("first fetch returned no bars")
	}
	if stub.Calls != 1 {
		t.Fatalf("calls = %d, want 1", stub.Calls)
	}

	second, err := r.GetSeries(context.Background(), "AAPL", start, end, false)
	if err != nil {
		t.Fatalf("cached fetch: %v", err)
	}
	if stub.Calls != 1 {
		t.Fatalf("cached fetch hit the provider, calls = %d", stub.Calls)
	}
	if len(second) != len(first) {
		t.Fatalf("cached len = %d, want %d", len(second), len(first))
	}
}

func TestGetSeriesForceRefresh(t *testing.T) {
	stub := provider.NewStub()
	r := New(testStore(t), zerolog.Nop())
	r.Register(market.US, stub)

	start, end := dates()
	if _, err := r.GetSeries(context.Background(), "MSFT", start, end, false); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := r.GetSeries(context.Background(), "MSFT", start, end, true); err != nil {
		t.Fatalf("forced fetch: %v", err)
	}
	if stub.Calls != 2 {
		t.Fatalf("calls = %d, want 2", stub.Calls)
	}
}

func TestGetSeriesRoutesByMarket(t *testing.T) {
	us := provider.NewStub()
	hk := provider.NewStub()
	r := New(testStore(t), zerolog.Nop())
	r.Register(market.US, us)
	r.Register(market.HK, hk)

	start, end := dates()
	if _, err := r.GetSeries(context.Background(), "00700", start, end, false); err != nil {
		t.Fatalf("HK fetch: %v", err)
	}
	if hk.Calls != 1 || us.Calls != 0 {
		t.Fatalf("hk calls = %d, us calls = %d", hk.Calls, us.Calls)
	}
}

func TestGetSeriesNoAdapter(t *testing.T) {
	r := New(testStore(t), zerolog.Nop())
	start, end := dates()

	_, err := r.GetSeries(context.Background(), "600519", start, end, false)
	var derr *DataError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want *DataError", err)
	}
	if derr.Market != market.CN || derr.Ticker != "600519" {
		t.Fatalf("DataError = %+v", derr)
	}
}

func TestGetSeriesProviderError(t *testing.T) {
	boom := errors.New("gateway down")
	stub := provider.NewStub()
	stub.Err = boom
	r := New(testStore(t), zerolog.Nop())
	r.Register(market.US, stub)

	start, end := dates()
	_, err := r.GetSeries(context.Background(), "TSLA", start, end, false)
	var derr *DataError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want *DataError", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("DataError does not unwrap to cause: %v", err)
	}
}

func TestCurrentPriceFallsBackToHistory(t *testing.T) {
	stub := provider.NewStub()
	r := New(testStore(t), zerolog.Nop())
	r.Register(market.US, stub)

	price, err := r.CurrentPrice(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("CurrentPrice: %v", err)
	}
	if price <= 0 {
		t.Fatalf("price = %v, want > 0", price)
	}
}
