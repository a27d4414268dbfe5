package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stratscan/pkg/model"
)

// CacheManager wraps a Source with an in-memory map and an on-disk
// JSON cache so repeated scans do not refetch the same history.
// Series are sanitized once on the way in: sorted ascending, duplicate
// timestamps and malformed bars dropped.
type CacheManager struct {
	source Source
	dir    string
	maxAge time.Duration
	months int // history window requested from the source

	mu     sync.Mutex
	memory map[model.SeriesKey][]model.Candle

	logger zerolog.Logger
}

// cacheEntry is the on-disk JSON shape
type cacheEntry struct {
	Symbol    string          `json:"symbol"`
	Timeframe model.Timeframe `json:"timeframe"`
	FetchedAt time.Time       `json:"fetched_at"`
	Candles   []model.Candle  `json:"candles"`
}

// CacheStats summarizes the on-disk cache
type CacheStats struct {
	Files       int
	Fresh       int
	Stale       int
	TotalBytes  int64
	OldestFetch time.Time
	NewestFetch time.Time
}

// NewCacheManager creates a cache over source. Entries older than
// maxAge are refetched; monthsBack controls how much history each
// fetch requests.
func NewCacheManager(source Source, dir string, maxAge time.Duration, monthsBack int, logger zerolog.Logger) *CacheManager {
	if monthsBack < 1 {
		monthsBack = 6
	}
	return &CacheManager{
		source: source,
		dir:    dir,
		maxAge: maxAge,
		months: monthsBack,
		memory: make(map[model.SeriesKey][]model.Candle),
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

// GetBars returns the cached series for symbol/timeframe, fetching
// from the source when the cache is cold or expired
func (m *CacheManager) GetBars(ctx context.Context, symbol string, tf model.Timeframe) ([]model.Candle, error) {
	key := model.SeriesKey{Symbol: symbol, Timeframe: tf}

	m.mu.Lock()
	if candles, ok := m.memory[key]; ok {
		m.mu.Unlock()
		return candles, nil
	}
	m.mu.Unlock()

	if entry, err := m.readDisk(key); err == nil {
		if time.Since(entry.FetchedAt) <= m.maxAge {
			m.mu.Lock()
			m.memory[key] = entry.Candles
			m.mu.Unlock()
			return entry.Candles, nil
		}
	}

	return m.fetchAndStore(ctx, key)
}

// Refresh fetches the series from the source regardless of cache age
func (m *CacheManager) Refresh(ctx context.Context, symbol string, tf model.Timeframe) ([]model.Candle, error) {
	return m.fetchAndStore(ctx, model.SeriesKey{Symbol: symbol, Timeframe: tf})
}

// BatchFetch loads every symbol/timeframe combination, skipping pairs
// that fail with a logged warning. It returns an error only when the
// context is cancelled.
func (m *CacheManager) BatchFetch(ctx context.Context, symbols []string, timeframes []model.Timeframe, progress func(done, total int)) (map[model.SeriesKey][]model.Candle, error) {
	out := make(map[model.SeriesKey][]model.Candle, len(symbols)*len(timeframes))
	total := len(symbols) * len(timeframes)
	done := 0

	for _, sym := range symbols {
		for _, tf := range timeframes {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			candles, err := m.GetBars(ctx, sym, tf)
			if err != nil {
				m.logger.Warn().
					Str("symbol", sym).
					Str("timeframe", string(tf)).
					Err(err).
					Msg("Skipping series")
			} else if len(candles) > 0 {
				out[model.SeriesKey{Symbol: sym, Timeframe: tf}] = candles
			}

			done++
			if progress != nil {
				progress(done, total)
			}
		}
	}
	return out, nil
}

// Preload force-fetches every combination, ignoring cache age
func (m *CacheManager) Preload(ctx context.Context, symbols []string, timeframes []model.Timeframe, progress func(done, total int)) error {
	total := len(symbols) * len(timeframes)
	done := 0
	for _, sym := range symbols {
		for _, tf := range timeframes {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := m.Refresh(ctx, sym, tf); err != nil {
				m.logger.Warn().
					Str("symbol", sym).
					Str("timeframe", string(tf)).
					Err(err).
					Msg("Preload failed")
			}
			done++
			if progress != nil {
				progress(done, total)
			}
		}
	}
	return nil
}

// Stats walks the cache directory and reports freshness counts
func (m *CacheManager) Stats() (CacheStats, error) {
	var stats CacheStats

	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return stats, nil
	}
	if err != nil {
		return stats, err
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stats.Files++
		stats.TotalBytes += info.Size()

		entry, err := m.readFile(filepath.Join(m.dir, e.Name()))
		if err != nil {
			stats.Stale++
			continue
		}
		if time.Since(entry.FetchedAt) <= m.maxAge {
			stats.Fresh++
		} else {
			stats.Stale++
		}
		if stats.OldestFetch.IsZero() || entry.FetchedAt.Before(stats.OldestFetch) {
			stats.OldestFetch = entry.FetchedAt
		}
		if entry.FetchedAt.After(stats.NewestFetch) {
			stats.NewestFetch = entry.FetchedAt
		}
	}
	return stats, nil
}

// Clear removes every cache file and empties the memory cache. It
// returns the number of files removed.
func (m *CacheManager) Clear() (int, error) {
	m.mu.Lock()
	m.memory = make(map[model.SeriesKey][]model.Candle)
	m.mu.Unlock()

	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, e.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (m *CacheManager) fetchAndStore(ctx context.Context, key model.SeriesKey) ([]model.Candle, error) {
	to := time.Now()
	from := to.AddDate(0, -m.months, 0)

	raw, err := m.source.GetBars(ctx, key.Symbol, key.Timeframe, from, to)
	if err != nil {
		return nil, err
	}
	candles := Sanitize(raw)

	if err := m.writeDisk(key, candles); err != nil {
		m.logger.Warn().Str("series", key.String()).Err(err).Msg("Cache write failed")
	}

	m.mu.Lock()
	m.memory[key] = candles
	m.mu.Unlock()
	return candles, nil
}

// cachePath returns the file for a series, e.g. SPY_4hour.json
func (m *CacheManager) cachePath(key model.SeriesKey) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s_%s.json", strings.ToUpper(key.Symbol), key.Timeframe))
}

func (m *CacheManager) readDisk(key model.SeriesKey) (*cacheEntry, error) {
	return m.readFile(m.cachePath(key))
}

func (m *CacheManager) readFile(path string) (*cacheEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("corrupt cache file %s: %w", filepath.Base(path), err)
	}
	return &entry, nil
}

// writeDisk stores a series atomically via a temp file rename
func (m *CacheManager) writeDisk(key model.SeriesKey, candles []model.Candle) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return err
	}

	entry := cacheEntry{
		Symbol:    key.Symbol,
		Timeframe: key.Timeframe,
		FetchedAt: time.Now().UTC(),
		Candles:   candles,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	path := m.cachePath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Sanitize sorts bars ascending, removes duplicate timestamps (first
// occurrence wins) and drops bars with non-positive prices or an
// inverted high/low
func Sanitize(candles []model.Candle) []model.Candle {
	out := make([]model.Candle, 0, len(candles))
	for _, c := range candles {
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			continue
		}
		if c.High < c.Low {
			continue
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })

	deduped := out[:0]
	var prev time.Time
	for i, c := range out {
		if i > 0 && c.Time.Equal(prev) {
			continue
		}
		deduped = append(deduped, c)
		prev = c.Time
	}
	return deduped
}
