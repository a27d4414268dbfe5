// Package strat implements Strat bar classification, point-in-time label
// alignment across timeframes, and reversal pattern detection.
package strat

import (
	"fmt"

	"stratscan/pkg/model"
)

// Classify assigns a Strat label to every bar by comparing its range
// against the preceding bar. The first bar has no predecessor and is
// labeled N/A. Bars must be in strictly ascending time order; a
// non-monotonic series is a data defect and fails the whole series.
func Classify(candles []model.Candle) ([]model.Label, error) {
	labels := make([]model.Label, len(candles))
	if len(candles) == 0 {
		return labels, nil
	}

	labels[0] = model.LabelUndefined
	for i := 1; i < len(candles); i++ {
		if !candles[i].Time.After(candles[i-1].Time) {
			return nil, fmt.Errorf("series not strictly ascending at index %d: %s then %s",
				i, candles[i-1].Time.Format("2006-01-02 15:04"), candles[i].Time.Format("2006-01-02 15:04"))
		}
		labels[i] = classifyPair(candles[i-1], candles[i])
	}

	return labels, nil
}

// classifyPair labels cur against prev. The four cases are mutually
// exclusive and cover every high/low combination.
func classifyPair(prev, cur model.Candle) model.Label {
	brokeHigh := cur.High > prev.High
	brokeLow := cur.Low < prev.Low

	switch {
	case brokeHigh && brokeLow:
		return model.LabelOutside
	case !brokeHigh && !brokeLow:
		return model.LabelInside
	case brokeHigh:
		return model.LabelTwoUp
	default:
		return model.LabelTwoDown
	}
}

// Series bundles one symbol/timeframe's bars with their labels.
type Series struct {
	Symbol    string
	Timeframe model.Timeframe
	Candles   []model.Candle
	Labels    []model.Label
}

// NewSeries classifies candles and returns them as a Series
func NewSeries(symbol string, tf model.Timeframe, candles []model.Candle) (*Series, error) {
	labels, err := Classify(candles)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", symbol, tf, err)
	}
	return &Series{
		Symbol:    symbol,
		Timeframe: tf,
		Candles:   candles,
		Labels:    labels,
	}, nil
}

// Len returns the number of bars in the series
func (s *Series) Len() int {
	return len(s.Candles)
}
