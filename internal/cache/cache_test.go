package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeAPmind/tradingsystem/internal/series"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func sampleSeries(start string, days int, base float64) series.Series {
	out := make(series.Series, 0, days)
	d := day(start)
	for i := 0; i < days; i++ {
		px := base + float64(i)
		out = append(out, series.Bar{
			Date: d.AddDate(0, 0, i),
			Open: px, High: px + 1, Low: px - 1, Close: px + 0.5, Volume: 1000,
		})
	}
	return out
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return s
}

func TestStoreLookupRoundTrip(t *testing.T) {
	s := newStore(t)
	data := sampleSeries("2025-01-02", 5, 100)

	if err := s.Store("TSLA", day("2025-01-02"), day("2025-01-06"), data); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	got, ok := s.Lookup("TSLA", day("2025-01-02"), day("2025-01-06"))
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 bars, got %d", len(got))
	}
	if got[0].Close != 100.5 || got[4].Close != 104.5 {
		t.Fatalf("round trip altered data: %+v", got)
	}
}

func TestLookupNarrowerRangeIsTrimmed(t *testing.T) {
	s := newStore(t)
	data := sampleSeries("2025-01-02", 5, 100)
	if err := s.Store("TSLA", day("2025-01-02"), day("2025-01-06"), data); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	got, ok := s.Lookup("TSLA", day("2025-01-03"), day("2025-01-04"))
	if !ok {
		t.Fatalf("expected hit on covered sub-range")
	}
	if len(got) != 2 {
		t.Fatalf("expected trimmed intersection of 2 bars, got %d", len(got))
	}
	if !got[0].Date.Equal(day("2025-01-03")) {
		t.Fatalf("unexpected first bar date %v", got[0].Date)
	}
}

func TestLookupUncoveredRangeMisses(t *testing.T) {
	s := newStore(t)
	data := sampleSeries("2025-01-02", 5, 100)
	if err := s.Store("TSLA", day("2025-01-02"), day("2025-01-06"), data); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	if _, ok := s.Lookup("TSLA", day("2025-01-02"), day("2025-01-10")); ok {
		t.Fatalf("expected miss for range beyond stored end")
	}
	if _, ok := s.Lookup("NVDA", day("2025-01-02"), day("2025-01-06")); ok {
		t.Fatalf("expected miss for unknown ticker")
	}
}

func TestStoreMergesOverlappingRanges(t *testing.T) {
	s := newStore(t)
	first := sampleSeries("2025-01-02", 5, 100)
	if err := s.Store("TSLA", day("2025-01-02"), day("2025-01-06"), first); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
	// Overlapping refetch with a revised close on the 6th.
	second := sampleSeries("2025-01-06", 3, 200)
	if err := s.Store("TSLA", day("2025-01-06"), day("2025-01-08"), second); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	got, ok := s.Lookup("TSLA", day("2025-01-02"), day("2025-01-08"))
	if !ok {
		t.Fatalf("expected hit on widened range")
	}
	if len(got) != 7 {
		t.Fatalf("expected 7 merged bars, got %d", len(got))
	}
	// Newer fetch wins on the overlapping date.
	for _, bar := range got {
		if bar.Date.Equal(day("2025-01-06")) && bar.Close != 200.5 {
			t.Fatalf("expected refetched close 200.5 on overlap, got %.2f", bar.Close)
		}
	}

	if entries := s.Entries(); len(entries) != 1 {
		t.Fatalf("expected 1 merged entry, got %d", len(entries))
	}
}

func TestStoreFailedWriteKeepsExistingEntries(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := s.Store("TSLA", day("2025-01-02"), day("2025-01-06"), sampleSeries("2025-01-02", 5, 100)); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	// a directory squatting on the widened entry's path makes the write fail
	if err := os.Mkdir(filepath.Join(dir, "TSLA_2025-01-02_2025-01-08.csv"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := s.Store("TSLA", day("2025-01-06"), day("2025-01-08"), sampleSeries("2025-01-06", 3, 200)); err == nil {
		t.Fatal("expected write error for the merged entry")
	}

	got, ok := s.Lookup("TSLA", day("2025-01-02"), day("2025-01-06"))
	if !ok || len(got) != 5 {
		t.Fatalf("original entry lost after failed merge: ok=%v len=%d", ok, len(got))
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := s.Store("HK.01797", day("2025-01-02"), day("2025-01-06"), sampleSeries("2025-01-02", 5, 20)); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	reopened, err := New(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	got, ok := reopened.Lookup("HK.01797", day("2025-01-03"), day("2025-01-05"))
	if !ok || len(got) != 3 {
		t.Fatalf("expected persisted hit with 3 bars, got ok=%v len=%d", ok, len(got))
	}
}

func TestClear(t *testing.T) {
	s := newStore(t)
	_ = s.Store("TSLA", day("2025-01-02"), day("2025-01-06"), sampleSeries("2025-01-02", 5, 100))
	_ = s.Store("NVDA", day("2025-01-02"), day("2025-01-06"), sampleSeries("2025-01-02", 5, 100))

	if removed := s.Clear("TSLA"); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, ok := s.Lookup("TSLA", day("2025-01-02"), day("2025-01-06")); ok {
		t.Fatalf("expected miss after clear")
	}
	if _, ok := s.Lookup("NVDA", day("2025-01-02"), day("2025-01-06")); !ok {
		t.Fatalf("clear removed the wrong ticker")
	}
}
