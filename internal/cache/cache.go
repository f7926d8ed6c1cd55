// Package cache is the local persistent store for daily price series. Each
// entry is one CSV file per (ticker, date range) plus a record in a shared
// metadata index, so cached data survives restarts and can be inspected
// with ordinary tools.
package cache

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeAPmind/tradingsystem/internal/metrics"
	"github.com/codeAPmind/tradingsystem/internal/series"
)

const (
	dateLayout   = "2006-01-02"
	metadataName = "metadata.json"
)

type entryMeta struct {
	Ticker   string    `json:"ticker"`
	Start    string    `json:"start"`
	End      string    `json:"end"`
	Rows     int       `json:"rows"`
	CachedAt time.Time `json:"cached_at"`
	File     string    `json:"file"`
}

// EntryInfo is a read-only view of one cached range.
type EntryInfo struct {
	Ticker   string
	Start    time.Time
	End      time.Time
	Rows     int
	CachedAt time.Time
}

// Store holds cached series on disk. Reads for one ticker may run
// concurrently; writes are serialized per ticker.
type Store struct {
	dir string
	log zerolog.Logger

	mu      sync.Mutex // guards meta and locks
	meta    map[string]entryMeta
	tickers map[string]*sync.RWMutex
}

// New opens (or creates) a cache directory and loads its metadata index.
// A corrupt index is discarded and rebuilt on the next store.
func New(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	s := &Store{
		dir:     dir,
		log:     log,
		meta:    make(map[string]entryMeta),
		tickers: make(map[string]*sync.RWMutex),
	}
	data, err := os.ReadFile(filepath.Join(dir, metadataName))
	if err == nil {
		if err := json.Unmarshal(data, &s.meta); err != nil {
			log.Warn().Err(err).Msg("cache metadata unreadable, starting empty")
			s.meta = make(map[string]entryMeta)
		}
	}
	return s, nil
}

func (s *Store) tickerLock(ticker string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock := s.tickers[ticker]
	if lock == nil {
		lock = &sync.RWMutex{}
		s.tickers[ticker] = lock
	}
	return lock
}

// Lookup returns the trimmed intersection of a stored entry with the
// requested range. It hits only when some stored range fully covers the
// request; partial coverage is a miss.
func (s *Store) Lookup(ticker string, start, end time.Time) (series.Series, bool) {
	start, end = series.Day(start), series.Day(end)
	lock := s.tickerLock(ticker)
	lock.RLock()
	defer lock.RUnlock()

	meta, ok := s.coveringEntry(ticker, start, end)
	if !ok {
		metrics.CacheMissesTotal.WithLabelValues(ticker).Inc()
		return nil, false
	}

	loaded, err := readCSV(filepath.Join(s.dir, meta.File))
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("cache file unreadable, dropping entry")
		s.dropEntry(meta)
		metrics.CacheMissesTotal.WithLabelValues(ticker).Inc()
		return nil, false
	}

	metrics.CacheHitsTotal.WithLabelValues(ticker).Inc()
	s.log.Debug().Str("ticker", ticker).Int("rows", len(loaded)).Msg("cache hit")
	return loaded.Slice(start, end), true
}

// Store merges a fetched series into the cache. Overlapping entries for the
// same ticker are folded into one widened entry, deduplicating by date with
// the newest fetch winning.
func (s *Store) Store(ticker string, start, end time.Time, data series.Series) error {
	if len(data) == 0 {
		return nil
	}
	start, end = series.Day(start), series.Day(end)
	lock := s.tickerLock(ticker)
	lock.Lock()
	defer lock.Unlock()

	merged := data
	var superseded []entryMeta
	for _, meta := range s.entriesFor(ticker) {
		ms, me, err := meta.rangeBounds()
		if err != nil || !overlaps(ms, me, start, end) {
			continue
		}
		existing, err := readCSV(filepath.Join(s.dir, meta.File))
		if err == nil {
			merged = series.Merge(existing, merged)
		}
		if ms.Before(start) {
			start = ms
		}
		if me.After(end) {
			end = me
		}
		superseded = append(superseded, meta)
	}

	meta := entryMeta{
		Ticker:   ticker,
		Start:    start.Format(dateLayout),
		End:      end.Format(dateLayout),
		Rows:     len(merged),
		CachedAt: time.Now().UTC(),
		File:     entryFilename(ticker, start, end),
	}
	// write the widened entry before removing anything it supersedes, so a
	// failed write leaves the old entries intact
	if err := writeCSV(filepath.Join(s.dir, meta.File), merged); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	for _, old := range superseded {
		if old.File != meta.File {
			s.dropEntry(old)
		}
	}

	s.mu.Lock()
	s.meta[entryKey(ticker, start, end)] = meta
	s.mu.Unlock()
	s.saveMetadata()

	s.log.Debug().Str("ticker", ticker).Int("rows", len(merged)).
		Str("start", meta.Start).Str("end", meta.End).Msg("cached series")
	return nil
}

// Clear removes all entries for a ticker (or every entry when ticker is
// empty) and returns how many were removed.
func (s *Store) Clear(ticker string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, meta := range s.meta {
		if ticker != "" && meta.Ticker != ticker {
			continue
		}
		_ = os.Remove(filepath.Join(s.dir, meta.File))
		delete(s.meta, key)
		removed++
	}
	if removed > 0 {
		s.saveMetadataLocked()
	}
	return removed
}

// Entries lists the cached ranges, sorted by ticker then start date.
func (s *Store) Entries() []EntryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EntryInfo, 0, len(s.meta))
	for _, meta := range s.meta {
		start, end, err := meta.rangeBounds()
		if err != nil {
			continue
		}
		out = append(out, EntryInfo{
			Ticker: meta.Ticker, Start: start, End: end,
			Rows: meta.Rows, CachedAt: meta.CachedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ticker != out[j].Ticker {
			return out[i].Ticker < out[j].Ticker
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// Size returns the total bytes used by cached CSV files.
func (s *Store) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, meta := range s.meta {
		if info, err := os.Stat(filepath.Join(s.dir, meta.File)); err == nil {
			total += info.Size()
		}
	}
	return total
}

func (s *Store) coveringEntry(ticker string, start, end time.Time) (entryMeta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, meta := range s.meta {
		if meta.Ticker != ticker {
			continue
		}
		ms, me, err := meta.rangeBounds()
		if err != nil {
			continue
		}
		if !ms.After(start) && !me.Before(end) {
			return meta, true
		}
	}
	return entryMeta{}, false
}

func (s *Store) entriesFor(ticker string) []entryMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entryMeta
	for _, meta := range s.meta {
		if meta.Ticker == ticker {
			out = append(out, meta)
		}
	}
	return out
}

func (s *Store) dropEntry(meta entryMeta) {
	_ = os.Remove(filepath.Join(s.dir, meta.File))
	s.mu.Lock()
	for key, m := range s.meta {
		if m.File == meta.File {
			delete(s.meta, key)
		}
	}
	s.mu.Unlock()
	s.saveMetadata()
}

func (s *Store) saveMetadata() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveMetadataLocked()
}

func (s *Store) saveMetadataLocked() {
	data, err := json.MarshalIndent(s.meta, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(filepath.Join(s.dir, metadataName), data, 0o644); err != nil {
		s.log.Warn().Err(err).Msg("save cache metadata failed")
	}
}

func (m entryMeta) rangeBounds() (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, m.Start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse(dateLayout, m.End)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

func entryKey(ticker string, start, end time.Time) string {
	return fmt.Sprintf("%s_%s_%s", ticker, start.Format(dateLayout), end.Format(dateLayout))
}

func entryFilename(ticker string, start, end time.Time) string {
	safe := strings.ReplaceAll(ticker, ".", "_")
	return fmt.Sprintf("%s_%s_%s.csv", safe, start.Format(dateLayout), end.Format(dateLayout))
}

func writeCSV(path string, data series.Series) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"date", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, bar := range data {
		row := []string{
			bar.Date.Format(dateLayout),
			formatFloat(bar.Open),
			formatFloat(bar.High),
			formatFloat(bar.Low),
			formatFloat(bar.Close),
			formatFloat(bar.Volume),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func readCSV(path string) (series.Series, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("cache file %s has no data rows", filepath.Base(path))
	}
	header := rows[0]
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"date", "open", "high", "low", "close", "volume"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("cache file %s missing column %q", filepath.Base(path), required)
		}
	}

	out := make(series.Series, 0, len(rows)-1)
	for _, row := range rows[1:] {
		date, err := time.Parse(dateLayout, row[col["date"]])
		if err != nil {
			continue
		}
		bar := series.Bar{Date: date}
		bar.Open, _ = strconv.ParseFloat(row[col["open"]], 64)
		bar.High, _ = strconv.ParseFloat(row[col["high"]], 64)
		bar.Low, _ = strconv.ParseFloat(row[col["low"]], 64)
		bar.Close, _ = strconv.ParseFloat(row[col["close"]], 64)
		bar.Volume, _ = strconv.ParseFloat(row[col["volume"]], 64)
		if bar.Valid() {
			out = append(out, bar)
		}
	}
	return out, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
