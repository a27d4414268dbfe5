package strat

import (
	"github.com/rs/zerolog"

	"stratscan/pkg/model"
)

// DetectConfig controls event detection on one trigger series
type DetectConfig struct {
	// MinHigherTFs is how many higher timeframes must share the
	// reversal direction before an event is emitted.
	MinHigherTFs int
	// LookaheadBars caps the forward-move window recorded per event.
	LookaheadBars int
}

// Detector walks a trigger series, matches reversal shapes, and keeps
// the matches whose direction is confirmed by enough higher timeframes.
type Detector struct {
	cfg    DetectConfig
	logger zerolog.Logger
}

// NewDetector creates a detector with the given configuration
func NewDetector(cfg DetectConfig, logger zerolog.Logger) *Detector {
	return &Detector{
		cfg:    cfg,
		logger: logger.With().Str("component", "detector").Logger(),
	}
}

// Detect scans one trigger series against the label indexes of its
// higher timeframes. Alignment is evaluated as of each trigger bar's
// timestamp, so no higher-timeframe bar is used before it has closed.
// Series shorter than three bars produce no events.
func (d *Detector) Detect(trigger *Series, higher map[model.Timeframe]*LabelIndex) []model.ReversalEvent {
	if trigger.Len() < 3 {
		d.logger.Debug().
			Str("symbol", trigger.Symbol).
			Str("timeframe", string(trigger.Timeframe)).
			Int("bars", trigger.Len()).
			Msg("Series too short, skipping")
		return nil
	}

	higherTFs := model.HigherTimeframes(trigger.Timeframe)
	last := trigger.Len() - 1

	var events []model.ReversalEvent
	for i := 2; i <= last; i++ {
		shape, ok := MatchAt(trigger.Labels, i)
		if !ok {
			continue
		}

		aligned := 0
		for _, tf := range higherTFs {
			ix, ok := higher[tf]
			if !ok {
				continue
			}
			label, ok := ix.AsOf(trigger.Candles[i].Time)
			if !ok {
				continue
			}
			if label == shape.Direction {
				aligned++
			}
		}
		if aligned < d.cfg.MinHigherTFs {
			continue
		}

		entry := trigger.Candles[i].Close
		events = append(events, model.ReversalEvent{
			Symbol:          trigger.Symbol,
			Timeframe:       trigger.Timeframe,
			ReversalTime:    trigger.Candles[i].Time,
			Pattern:         shape.Name,
			EntryPrice:      entry,
			HigherTFTrend:   shape.Direction,
			ConfluenceCount: aligned,
			BarsAgo:         last - i,
			ForwardMoves:    forwardMoves(trigger.Candles, i, entry, d.cfg.LookaheadBars),
		})
	}

	if len(events) > 0 {
		d.logger.Debug().
			Str("symbol", trigger.Symbol).
			Str("timeframe", string(trigger.Timeframe)).
			Int("events", len(events)).
			Msg("Reversals detected")
	}
	return events
}

// forwardMoves records percent close-vs-entry for up to lookahead bars
// strictly after index i
func forwardMoves(candles []model.Candle, i int, entry float64, lookahead int) []float64 {
	if entry <= 0 || lookahead <= 0 {
		return nil
	}
	end := i + lookahead
	if end > len(candles)-1 {
		end = len(candles) - 1
	}
	if end <= i {
		return nil
	}

	moves := make([]float64, 0, end-i)
	for k := i + 1; k <= end; k++ {
		moves = append(moves, (candles[k].Close-entry)/entry*100)
	}
	return moves
}
