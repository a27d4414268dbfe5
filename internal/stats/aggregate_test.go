package stats

import (
	"math"
	"testing"
	"time"

	"stratscan/pkg/model"
)

func TestSummarizeBasic(t *testing.T) {
	events := []model.ReversalEvent{
		event("SPY", model.TF4Hour, "3-1-2u", 0),
		event("SPY", model.TF4Hour, "3-1-2u", 1),
		event("SPY", model.TF4Hour, "3-1-2u", 2),
	}
	results := []model.SimulationResult{res(1), res(-1), res(2)}

	opts := DefaultOptions()
	opts.MinSamples = 1
	summaries, err := Summarize(events, results, opts)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("Expected 1 summary, got %d", len(summaries))
	}

	s := summaries[0]
	if s.SampleCount != 3 {
		t.Errorf("Expected sample count 3, got %d", s.SampleCount)
	}
	if math.Abs(s.WinRate-2.0/3.0) > 1e-9 {
		t.Errorf("Expected win rate 2/3, got %v", s.WinRate)
	}
	if math.Abs(s.ExpectancyR-2.0/3.0) > 1e-9 {
		t.Errorf("Expected expectancy 2/3R, got %v", s.ExpectancyR)
	}
	if s.Setup[GroupByTimeframe] != "4hour" || s.Setup[GroupByPattern] != "3-1-2u" {
		t.Errorf("Unexpected setup fields: %v", s.Setup)
	}
}

// Undefined simulations stay out of the sample and the win rate but
// still count toward frequency.
func TestSummarizeExcludesUndefined(t *testing.T) {
	events := []model.ReversalEvent{
		event("SPY", model.TF4Hour, "3-1-2u", 0),
		event("SPY", model.TF4Hour, "3-1-2u", 1),
		event("SPY", model.TF4Hour, "3-1-2u", 2),
		event("SPY", model.TF4Hour, "3-1-2u", 3),
	}
	results := []model.SimulationResult{res(1), res(-1), res(2), res(math.NaN())}

	opts := DefaultOptions()
	opts.MinSamples = 1
	summaries, err := Summarize(events, results, opts)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	s := summaries[0]
	if s.SampleCount != 3 {
		t.Errorf("Expected sample count 3, got %d", s.SampleCount)
	}
	if math.Abs(s.WinRate-2.0/3.0) > 1e-9 {
		t.Errorf("Expected win rate 2/3, got %v", s.WinRate)
	}
	wantFreq := 4.0 / 52.0
	if math.Abs(s.FrequencyPerWeek-wantFreq) > 1e-9 {
		t.Errorf("Expected frequency %v, got %v", wantFreq, s.FrequencyPerWeek)
	}
}

func TestSummarizeMinSamples(t *testing.T) {
	events := []model.ReversalEvent{
		event("SPY", model.TF4Hour, "3-1-2u", 0),
		event("SPY", model.TF4Hour, "3-1-2u", 1),
	}
	results := []model.SimulationResult{res(1), res(2)}

	opts := DefaultOptions()
	opts.MinSamples = 3
	summaries, err := Summarize(events, results, opts)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("Expected thin setup to be dropped, got %d summaries", len(summaries))
	}
}

func TestSummarizeRanking(t *testing.T) {
	events := []model.ReversalEvent{
		event("SPY", model.TF4Hour, "3-1-2u", 0),
		event("SPY", model.TF4Hour, "3-1-2u", 1),
		event("SPY", model.TFDaily, "2d-1-2u", 0),
		event("SPY", model.TFDaily, "2d-1-2u", 1),
		event("SPY", model.TFWeekly, "2u-2d", 0),
		event("SPY", model.TFWeekly, "2u-2d", 1),
	}
	results := []model.SimulationResult{
		res(1), res(1), // 4hour: expectancy 1.0, win 100%
		res(3), res(-1), // daily: expectancy 1.0, win 50%
		res(2), res(1), // weekly: expectancy 1.5
	}

	opts := DefaultOptions()
	opts.MinSamples = 1
	summaries, err := Summarize(events, results, opts)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("Expected 3 summaries, got %d", len(summaries))
	}

	wantOrder := []string{"2u-2d", "3-1-2u", "2d-1-2u"}
	for i, want := range wantOrder {
		if got := summaries[i].Setup[GroupByPattern]; got != want {
			t.Errorf("Rank %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestSummarizeFrequencyWindow(t *testing.T) {
	// Three recent events plus one older than the lookback.
	events := []model.ReversalEvent{
		event("SPY", model.TF4Hour, "3-1-2u", 0),
		event("SPY", model.TF4Hour, "3-1-2u", 7),
		event("SPY", model.TF4Hour, "3-1-2u", 14),
		event("SPY", model.TF4Hour, "3-1-2u", 53*7),
	}
	results := []model.SimulationResult{res(1), res(1), res(1), res(1)}

	opts := DefaultOptions()
	opts.MinSamples = 1
	summaries, err := Summarize(events, results, opts)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	wantFreq := 3.0 / 52.0
	if math.Abs(summaries[0].FrequencyPerWeek-wantFreq) > 1e-9 {
		t.Errorf("Expected frequency %v, got %v", wantFreq, summaries[0].FrequencyPerWeek)
	}
}

func TestSummarizeMoveProfile(t *testing.T) {
	events := make([]model.ReversalEvent, 5)
	results := make([]model.SimulationResult, 5)
	for i := range events {
		ev := event("SPY", model.TF4Hour, "3-1-2u", i)
		ev.ForwardMoves = []float64{float64(i + 1)} // 1..5 at horizon 1
		events[i] = ev
		results[i] = res(1)
	}

	opts := DefaultOptions()
	opts.MinSamples = 1
	opts.Horizons = []int{1, 3}
	summaries, err := Summarize(events, results, opts)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	profile, ok := summaries[0].MoveProfile[1]
	if !ok {
		t.Fatal("Expected a move profile at horizon 1")
	}
	if math.Abs(profile.P25-2.0) > 1e-9 || math.Abs(profile.P50-3.0) > 1e-9 ||
		math.Abs(profile.P75-4.0) > 1e-9 || math.Abs(profile.P90-4.6) > 1e-9 {
		t.Errorf("Unexpected percentiles: %+v", profile)
	}

	// No event carries three forward moves, so horizon 3 is absent.
	if _, ok := summaries[0].MoveProfile[3]; ok {
		t.Error("Expected no profile at an uncovered horizon")
	}
}

func TestSummarizeGroupBySymbol(t *testing.T) {
	events := []model.ReversalEvent{
		event("SPY", model.TF4Hour, "3-1-2u", 0),
		event("QQQ", model.TF4Hour, "3-1-2u", 0),
	}
	results := []model.SimulationResult{res(1), res(2)}

	opts := DefaultOptions()
	opts.GroupBy = []string{GroupBySymbol}
	opts.MinSamples = 1
	summaries, err := Summarize(events, results, opts)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].Setup[GroupBySymbol] != "QQQ" {
		t.Errorf("Expected QQQ ranked first, got %s", summaries[0].Setup[GroupBySymbol])
	}
}

func TestSummarizeErrors(t *testing.T) {
	events := []model.ReversalEvent{event("SPY", model.TF4Hour, "3-1-2u", 0)}

	if _, err := Summarize(events, nil, DefaultOptions()); err == nil {
		t.Error("Expected error for misaligned inputs")
	}

	opts := DefaultOptions()
	opts.GroupBy = []string{"sector"}
	if _, err := Summarize(events, []model.SimulationResult{res(1)}, opts); err == nil {
		t.Error("Expected error for unknown group field")
	}
}

func TestPercentile(t *testing.T) {
	if !math.IsNaN(percentile(nil, 0.5)) {
		t.Error("Expected NaN for empty input")
	}
	if got := percentile([]float64{7}, 0.9); got != 7 {
		t.Errorf("Expected single value passthrough, got %v", got)
	}
	if got := percentile([]float64{1, 2, 3, 4}, 0.5); math.Abs(got-2.5) > 1e-9 {
		t.Errorf("Expected interpolated median 2.5, got %v", got)
	}
	if got := percentile([]float64{1, 2, 3, 4}, 0); got != 1 {
		t.Errorf("Expected minimum at q=0, got %v", got)
	}
	if got := percentile([]float64{1, 2, 3, 4}, 1); got != 4 {
		t.Errorf("Expected maximum at q=1, got %v", got)
	}
}

// event builds a reversal event daysAgo days before the newest one
func event(symbol string, tf model.Timeframe, pattern string, daysAgo int) model.ReversalEvent {
	base := time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC)
	return model.ReversalEvent{
		Symbol:          symbol,
		Timeframe:       tf,
		ReversalTime:    base.AddDate(0, 0, -daysAgo),
		Pattern:         pattern,
		EntryPrice:      100,
		HigherTFTrend:   model.LabelTwoUp,
		ConfluenceCount: 3,
	}
}

func res(meanR float64) model.SimulationResult {
	return model.SimulationResult{PerUnitR: []float64{meanR}, MeanR: meanR}
}
