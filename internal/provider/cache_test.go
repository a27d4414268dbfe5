package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stratscan/pkg/model"
)

// stubSource serves a fixed series and counts upstream calls
type stubSource struct {
	bars  []model.Candle
	err   error
	calls int
}

func (s *stubSource) Name() string      { return "stub" }
func (s *stubSource) IsAvailable() bool { return true }
func (s *stubSource) RateLimit() int    { return 100 }

func (s *stubSource) GetBars(ctx context.Context, symbol string, tf model.Timeframe, from, to time.Time) ([]model.Candle, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.bars, nil
}

func TestSanitize(t *testing.T) {
	base := time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC)
	mk := func(day int, open, high, low, close float64) model.Candle {
		return model.Candle{Time: base.AddDate(0, 0, day), Open: open, High: high, Low: low, Close: close, Volume: 1}
	}

	input := []model.Candle{
		mk(2, 100, 110, 90, 105),
		mk(0, 100, 110, 90, 100),
		mk(1, 100, 90, 110, 100),  // inverted high/low
		mk(3, 0, 110, 90, 100),    // non-positive open
		mk(4, 100, 110, -5, 100),  // negative low
		mk(0, 200, 210, 190, 205), // duplicate timestamp
		mk(5, 100, 112, 95, 108),
	}

	out := Sanitize(input)
	if len(out) != 3 {
		t.Fatalf("Expected 3 surviving bars, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if !out[i].Time.After(out[i-1].Time) {
			t.Errorf("Bars not strictly ascending at %d", i)
		}
	}
	// First occurrence wins for the duplicated timestamp.
	if out[0].Open != 100 {
		t.Errorf("Expected first duplicate kept, got open %v", out[0].Open)
	}
}

func TestCacheFetchAndDiskRoundTrip(t *testing.T) {
	dir := t.TempDir()
	source := &stubSource{bars: sampleBars()}

	m := NewCacheManager(source, dir, time.Hour, 6, zerolog.Nop())
	first, err := m.GetBars(context.Background(), "spy", model.TF4Hour)
	if err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("Expected 3 bars, got %d", len(first))
	}
	if source.calls != 1 {
		t.Fatalf("Expected 1 upstream call, got %d", source.calls)
	}

	// Symbol is uppercased in the file name.
	if _, err := os.Stat(filepath.Join(dir, "SPY_4hour.json")); err != nil {
		t.Errorf("Expected cache file: %v", err)
	}

	// A fresh manager over the same directory hits disk, not the source.
	m2 := NewCacheManager(source, dir, time.Hour, 6, zerolog.Nop())
	second, err := m2.GetBars(context.Background(), "spy", model.TF4Hour)
	if err != nil {
		t.Fatalf("GetBars from disk failed: %v", err)
	}
	if source.calls != 1 {
		t.Errorf("Expected disk hit, got %d upstream calls", source.calls)
	}
	if len(second) != len(first) {
		t.Errorf("Expected %d bars from disk, got %d", len(first), len(second))
	}
	if !second[0].Time.Equal(first[0].Time) {
		t.Errorf("Disk round trip changed timestamps")
	}
}

func TestCacheMemoryHit(t *testing.T) {
	source := &stubSource{bars: sampleBars()}
	m := NewCacheManager(source, t.TempDir(), time.Hour, 6, zerolog.Nop())

	ctx := context.Background()
	if _, err := m.GetBars(ctx, "SPY", model.TFDaily); err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}
	if _, err := m.GetBars(ctx, "SPY", model.TFDaily); err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}
	if source.calls != 1 {
		t.Errorf("Expected 1 upstream call, got %d", source.calls)
	}
}

func TestCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	source := &stubSource{bars: sampleBars()}

	m := NewCacheManager(source, dir, time.Hour, 6, zerolog.Nop())
	if _, err := m.GetBars(context.Background(), "SPY", model.TFDaily); err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}

	// Zero max age treats every disk entry as expired.
	m2 := NewCacheManager(source, dir, 0, 6, zerolog.Nop())
	if _, err := m2.GetBars(context.Background(), "SPY", model.TFDaily); err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}
	if source.calls != 2 {
		t.Errorf("Expected expired entry to refetch, got %d calls", source.calls)
	}
}

func TestCacheRefresh(t *testing.T) {
	source := &stubSource{bars: sampleBars()}
	m := NewCacheManager(source, t.TempDir(), time.Hour, 6, zerolog.Nop())

	ctx := context.Background()
	if _, err := m.GetBars(ctx, "SPY", model.TFDaily); err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}
	if _, err := m.Refresh(ctx, "SPY", model.TFDaily); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if source.calls != 2 {
		t.Errorf("Expected refresh to bypass cache, got %d calls", source.calls)
	}
}

func TestCacheStatsAndClear(t *testing.T) {
	dir := t.TempDir()
	source := &stubSource{bars: sampleBars()}
	m := NewCacheManager(source, dir, time.Hour, 6, zerolog.Nop())

	ctx := context.Background()
	if _, err := m.GetBars(ctx, "SPY", model.TFDaily); err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}
	if _, err := m.GetBars(ctx, "QQQ", model.TFWeekly); err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}

	stats, err := m.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Files != 2 || stats.Fresh != 2 || stats.Stale != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.TotalBytes == 0 {
		t.Error("Expected non-zero cache size")
	}

	removed, err := m.Clear()
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 files removed, got %d", removed)
	}

	after, err := m.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if after.Files != 0 {
		t.Errorf("Expected empty cache, got %d files", after.Files)
	}

	// Memory is also cleared, so the next read goes upstream.
	if _, err := m.GetBars(ctx, "SPY", model.TFDaily); err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}
	if source.calls != 3 {
		t.Errorf("Expected refetch after clear, got %d calls", source.calls)
	}
}

func TestBatchFetchSkipsFailures(t *testing.T) {
	source := &stubSource{err: errors.New("boom")}
	m := NewCacheManager(source, t.TempDir(), time.Hour, 6, zerolog.Nop())

	var calls int
	out, err := m.BatchFetch(context.Background(), []string{"SPY", "QQQ"}, []model.Timeframe{model.TFDaily}, func(done, total int) {
		calls++
		if total != 2 {
			t.Errorf("Expected total 2, got %d", total)
		}
	})
	if err != nil {
		t.Fatalf("BatchFetch failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("Expected no series, got %d", len(out))
	}
	if calls != 2 {
		t.Errorf("Expected 2 progress calls, got %d", calls)
	}
}

func TestBatchFetchCancellation(t *testing.T) {
	source := &stubSource{bars: sampleBars()}
	m := NewCacheManager(source, t.TempDir(), time.Hour, 6, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.BatchFetch(ctx, []string{"SPY"}, []model.Timeframe{model.TFDaily}, nil); err == nil {
		t.Error("Expected error from cancelled context")
	}
}

func sampleBars() []model.Candle {
	base := time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC)
	out := make([]model.Candle, 3)
	for i := range out {
		out[i] = model.Candle{
			Time: base.AddDate(0, 0, i),
			Open: 100, High: 110, Low: 90, Close: 105,
			Volume: 1000,
		}
	}
	return out
}
