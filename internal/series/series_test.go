package series

import (
	"math"
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCleanDropsInvalidAndSorts(t *testing.T) {
	raw := Series{
		{Date: day("2025-01-22"), Open: 102, High: 103, Low: 101, Close: 102.5, Volume: 900},
		{Date: day("2025-01-20"), Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000},
		{Date: day("2025-01-21"), Open: 101, High: math.NaN(), Low: 100, Close: 101.5, Volume: 1100},
		{Date: day("2025-01-23"), Open: 103, High: 104, Low: 102, Close: -1, Volume: 1200},
	}

	cleaned := Clean(raw)
	if len(cleaned) != 2 {
		t.Fatalf("expected 2 clean bars, got %d", len(cleaned))
	}
	if !cleaned[0].Date.Equal(day("2025-01-20")) || !cleaned[1].Date.Equal(day("2025-01-22")) {
		t.Fatalf("bars not sorted ascending: %v", cleaned)
	}
}

func TestCleanDeduplicatesKeepLatest(t *testing.T) {
	raw := Series{
		{Date: day("2025-01-20"), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000},
		{Date: day("2025-01-20"), Open: 100, High: 102, Low: 99, Close: 101, Volume: 1500},
	}
	cleaned := Clean(raw)
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 bar after dedupe, got %d", len(cleaned))
	}
	if cleaned[0].Close != 101 {
		t.Fatalf("expected latest close 101, got %.2f", cleaned[0].Close)
	}
}

func TestSliceTrimsToRange(t *testing.T) {
	s := Clean(Series{
		{Date: day("2025-01-20"), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Date: day("2025-01-21"), Open: 1, High: 1, Low: 1, Close: 2, Volume: 1},
		{Date: day("2025-01-22"), Open: 1, High: 1, Low: 1, Close: 3, Volume: 1},
	})
	got := s.Slice(day("2025-01-21"), day("2025-01-21"))
	if len(got) != 1 || got[0].Close != 2 {
		t.Fatalf("expected single bar with close 2, got %v", got)
	}
}

func TestMergePrefersNewer(t *testing.T) {
	older := Series{{Date: day("2025-01-20"), Open: 1, High: 2, Low: 1, Close: 1.5, Volume: 10}}
	newer := Series{{Date: day("2025-01-20"), Open: 1, High: 2, Low: 1, Close: 1.8, Volume: 12}}
	merged := Merge(older, newer)
	if len(merged) != 1 || merged[0].Close != 1.8 {
		t.Fatalf("expected newer bar to win, got %v", merged)
	}
}
