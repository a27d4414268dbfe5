package strat

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stratscan/pkg/model"
)

func TestDetectEmitsOnConfluence(t *testing.T) {
	trigger := seriesFromLabels(t, "SPY", model.TF1Hour,
		model.LabelOutside, model.LabelInside, model.LabelTwoUp, model.LabelTwoUp, model.LabelTwoUp)
	higher := map[model.Timeframe]*LabelIndex{
		model.TFDaily:  trendIndex(t, model.TFDaily, model.LabelTwoUp),
		model.TFWeekly: trendIndex(t, model.TFWeekly, model.LabelTwoUp),
	}

	d := NewDetector(DetectConfig{MinHigherTFs: 2, LookaheadBars: 10}, zerolog.Nop())
	events := d.Detect(trigger, higher)

	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Pattern != "3-1-2u" {
		t.Errorf("Expected pattern 3-1-2u, got %s", ev.Pattern)
	}
	if ev.HigherTFTrend != model.LabelTwoUp {
		t.Errorf("Expected trend %s, got %s", model.LabelTwoUp, ev.HigherTFTrend)
	}
	if ev.ConfluenceCount != 2 {
		t.Errorf("Expected confluence 2, got %d", ev.ConfluenceCount)
	}
	// Pattern completes at index 3 of 5 bars (index 0 is the seed bar).
	if ev.BarsAgo != 2 {
		t.Errorf("Expected 2 bars ago, got %d", ev.BarsAgo)
	}
	if ev.EntryPrice != trigger.Candles[3].Close {
		t.Errorf("Expected entry %v, got %v", trigger.Candles[3].Close, ev.EntryPrice)
	}
	if len(ev.ForwardMoves) != 2 {
		t.Fatalf("Expected 2 forward moves, got %d", len(ev.ForwardMoves))
	}
	wantMove := (trigger.Candles[4].Close - ev.EntryPrice) / ev.EntryPrice * 100
	if math.Abs(ev.ForwardMoves[0]-wantMove) > 1e-9 {
		t.Errorf("Expected first forward move %v, got %v", wantMove, ev.ForwardMoves[0])
	}
}

func TestDetectBelowThresholdDrops(t *testing.T) {
	trigger := seriesFromLabels(t, "SPY", model.TF1Hour,
		model.LabelOutside, model.LabelInside, model.LabelTwoUp)
	higher := map[model.Timeframe]*LabelIndex{
		model.TFDaily: trendIndex(t, model.TFDaily, model.LabelTwoUp),
	}

	d := NewDetector(DetectConfig{MinHigherTFs: 2, LookaheadBars: 10}, zerolog.Nop())
	if events := d.Detect(trigger, higher); len(events) != 0 {
		t.Errorf("Expected no events below threshold, got %d", len(events))
	}
}

func TestDetectOpposingTrendDrops(t *testing.T) {
	trigger := seriesFromLabels(t, "SPY", model.TF1Hour,
		model.LabelOutside, model.LabelInside, model.LabelTwoUp)
	higher := map[model.Timeframe]*LabelIndex{
		model.TFDaily:  trendIndex(t, model.TFDaily, model.LabelTwoDown),
		model.TFWeekly: trendIndex(t, model.TFWeekly, model.LabelTwoDown),
	}

	d := NewDetector(DetectConfig{MinHigherTFs: 1, LookaheadBars: 10}, zerolog.Nop())
	if events := d.Detect(trigger, higher); len(events) != 0 {
		t.Errorf("Expected no events against the higher trend, got %d", len(events))
	}
}

// Adding a higher timeframe that agrees can only raise the confluence
// count and grow the event set.
func TestDetectConfluenceMonotonic(t *testing.T) {
	trigger := seriesFromLabels(t, "SPY", model.TF1Hour,
		model.LabelOutside, model.LabelInside, model.LabelTwoUp)
	one := map[model.Timeframe]*LabelIndex{
		model.TFDaily: trendIndex(t, model.TFDaily, model.LabelTwoUp),
	}
	two := map[model.Timeframe]*LabelIndex{
		model.TFDaily:  trendIndex(t, model.TFDaily, model.LabelTwoUp),
		model.TFWeekly: trendIndex(t, model.TFWeekly, model.LabelTwoUp),
	}

	d := NewDetector(DetectConfig{MinHigherTFs: 1, LookaheadBars: 10}, zerolog.Nop())
	before := d.Detect(trigger, one)
	after := d.Detect(trigger, two)

	if len(after) < len(before) {
		t.Fatalf("Event set shrank from %d to %d", len(before), len(after))
	}
	if len(before) != 1 || len(after) != 1 {
		t.Fatalf("Expected 1 event in both runs, got %d and %d", len(before), len(after))
	}
	if after[0].ConfluenceCount < before[0].ConfluenceCount {
		t.Errorf("Confluence dropped from %d to %d", before[0].ConfluenceCount, after[0].ConfluenceCount)
	}
}

func TestDetectShortSeries(t *testing.T) {
	trigger := seriesFromLabels(t, "SPY", model.TF1Hour, model.LabelTwoUp)
	d := NewDetector(DetectConfig{MinHigherTFs: 0, LookaheadBars: 10}, zerolog.Nop())
	if events := d.Detect(trigger, nil); events != nil {
		t.Errorf("Expected nil for a two-bar series, got %v", events)
	}
}

func TestForwardMovesWindow(t *testing.T) {
	candles := make([]model.Candle, 6)
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	for i := range candles {
		candles[i] = model.Candle{
			Time:  base.Add(time.Duration(i) * time.Hour),
			Open:  100, High: 110, Low: 90,
			Close: 100 + float64(i),
		}
	}

	moves := forwardMoves(candles, 2, 100, 2)
	if len(moves) != 2 {
		t.Fatalf("Expected 2 moves, got %d", len(moves))
	}
	if math.Abs(moves[0]-3.0) > 1e-9 || math.Abs(moves[1]-4.0) > 1e-9 {
		t.Errorf("Expected moves [3 4], got %v", moves)
	}

	// Window clipped at the end of the series.
	moves = forwardMoves(candles, 4, 100, 10)
	if len(moves) != 1 {
		t.Errorf("Expected 1 clipped move, got %d", len(moves))
	}

	if moves := forwardMoves(candles, 5, 100, 10); moves != nil {
		t.Errorf("Expected nil at the last bar, got %v", moves)
	}
}

// seriesFromLabels synthesizes hourly candles whose classification
// reproduces the given label sequence after an initial seed bar.
func seriesFromLabels(t *testing.T, symbol string, tf model.Timeframe, labels ...model.Label) *Series {
	t.Helper()

	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	candles := []model.Candle{{Time: base, Open: 100, High: 110, Low: 90, Close: 100, Volume: 1000}}

	for i, label := range labels {
		prev := candles[len(candles)-1]
		var high, low float64
		switch label {
		case model.LabelOutside:
			high, low = prev.High+2, prev.Low-2
		case model.LabelInside:
			high, low = prev.High-1, prev.Low+1
		case model.LabelTwoUp:
			high, low = prev.High+2, prev.Low+1
		case model.LabelTwoDown:
			high, low = prev.High-1, prev.Low-2
		default:
			t.Fatalf("Cannot synthesize label %s", label)
		}
		candles = append(candles, model.Candle{
			Time:   base.Add(time.Duration(i+1) * time.Hour),
			Open:   (high + low) / 2,
			High:   high,
			Low:    low,
			Close:  (high + low) / 2,
			Volume: 1000,
		})
	}

	s, err := NewSeries(symbol, tf, candles)
	if err != nil {
		t.Fatalf("NewSeries failed: %v", err)
	}
	for i, want := range labels {
		if got := s.Labels[i+1]; got != want {
			t.Fatalf("Synthesized bar %d: expected %s, got %s", i+1, want, got)
		}
	}
	return s
}

// trendIndex builds a two-bar index, ending well before the trigger
// series starts, whose final label is the given direction.
func trendIndex(t *testing.T, tf model.Timeframe, direction model.Label) *LabelIndex {
	t.Helper()

	base := time.Date(2025, 5, 1, 16, 0, 0, 0, time.UTC)
	first := model.Candle{Time: base, Open: 100, High: 110, Low: 90, Close: 100, Volume: 1000}
	second := model.Candle{Time: base.AddDate(0, 0, 1), Open: 100, Volume: 1000}
	switch direction {
	case model.LabelTwoUp:
		second.High, second.Low = 112, 91
	case model.LabelTwoDown:
		second.High, second.Low = 109, 88
	default:
		t.Fatalf("Cannot synthesize trend %s", direction)
	}
	second.Close = (second.High + second.Low) / 2

	s, err := NewSeries("TREND", tf, []model.Candle{first, second})
	if err != nil {
		t.Fatalf("NewSeries failed: %v", err)
	}
	if s.Labels[1] != direction {
		t.Fatalf("Expected trend label %s, got %s", direction, s.Labels[1])
	}
	return NewLabelIndex(s)
}
