// Package stats aggregates simulated reversal events into per-setup
// summaries: hit rates, R expectancy, occurrence frequency and the
// forward-move distribution.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"stratscan/pkg/model"
)

// Grouping field names accepted in Options.GroupBy.
const (
	GroupByTimeframe = "timeframe"
	GroupByPattern   = "pattern"
	GroupBySymbol    = "symbol"
)

// Options control how events are grouped and summarized
type Options struct {
	// GroupBy names the event fields that define one setup.
	GroupBy []string
	// Horizons are the forward-move offsets (in bars) profiled per
	// setup.
	Horizons []int
	// LookbackWeeks is the window for frequency-per-week, measured
	// back from the most recent event in the run.
	LookbackWeeks int
	// MinSamples drops setups with fewer defined simulations.
	MinSamples int
}

// DefaultOptions groups by timeframe and pattern over a one-year
// lookback
func DefaultOptions() Options {
	return Options{
		GroupBy:       []string{GroupByTimeframe, GroupByPattern},
		Horizons:      []int{1, 3, 5, 10},
		LookbackWeeks: 52,
		MinSamples:    10,
	}
}

// Validate checks grouping fields and horizon values
func (o Options) Validate() error {
	if len(o.GroupBy) == 0 {
		return fmt.Errorf("group_by must name at least one field")
	}
	for _, field := range o.GroupBy {
		if _, err := fieldValue(model.ReversalEvent{}, field); err != nil {
			return err
		}
	}
	for _, h := range o.Horizons {
		if h < 1 {
			return fmt.Errorf("horizon must be at least 1 bar, got %d", h)
		}
	}
	if o.LookbackWeeks < 1 {
		return fmt.Errorf("lookback_weeks must be at least 1, got %d", o.LookbackWeeks)
	}
	return nil
}

type group struct {
	key    string
	setup  map[string]string
	meanRs []float64 // defined simulations only
	wins   int
	total  int // all events in the group
	recent int // events inside the lookback window
	moves  map[int][]float64
}

// Summarize folds events and their simulation results into one
// summary per setup, ranked best first. events and results must be
// parallel slices; a defined result counts toward the sample, a NaN
// result keeps its event in the frequency and move columns only.
func Summarize(events []model.ReversalEvent, results []model.SimulationResult, opts Options) ([]model.SetupSummary, error) {
	if len(events) != len(results) {
		return nil, fmt.Errorf("events and results misaligned: %d vs %d", len(events), len(results))
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	minSamples := opts.MinSamples
	if minSamples < 1 {
		minSamples = 1
	}

	// Frequency is anchored to the newest event across the whole
	// run, so a stale data set does not zero every setup.
	var latest time.Time
	for _, ev := range events {
		if ev.ReversalTime.After(latest) {
			latest = ev.ReversalTime
		}
	}
	cutoff := latest.Add(-time.Duration(opts.LookbackWeeks) * 7 * 24 * time.Hour)

	groups := make(map[string]*group)
	for i, ev := range events {
		key, setup, err := groupKey(ev, opts.GroupBy)
		if err != nil {
			return nil, err
		}
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, setup: setup, moves: make(map[int][]float64)}
			groups[key] = g
		}

		g.total++
		if !ev.ReversalTime.Before(cutoff) {
			g.recent++
		}
		if results[i].Defined() {
			g.meanRs = append(g.meanRs, results[i].MeanR)
			if results[i].MeanR > 0 {
				g.wins++
			}
		}
		for _, h := range opts.Horizons {
			if len(ev.ForwardMoves) >= h {
				g.moves[h] = append(g.moves[h], ev.ForwardMoves[h-1])
			}
		}
	}

	weeks := float64(opts.LookbackWeeks)
	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		if len(g.meanRs) >= minSamples {
			ordered = append(ordered, g)
		}
	}

	summaries := make([]model.SetupSummary, 0, len(ordered))
	for _, g := range ordered {
		sum := 0.0
		for _, r := range g.meanRs {
			sum += r
		}
		profile := make(map[int]model.MovePercentiles, len(g.moves))
		for h, vals := range g.moves {
			sort.Float64s(vals)
			profile[h] = model.MovePercentiles{
				P25: percentile(vals, 0.25),
				P50: percentile(vals, 0.50),
				P75: percentile(vals, 0.75),
				P90: percentile(vals, 0.90),
			}
		}
		summaries = append(summaries, model.SetupSummary{
			Setup:            g.setup,
			SampleCount:      len(g.meanRs),
			FrequencyPerWeek: float64(g.recent) / weeks,
			WinRate:          float64(g.wins) / float64(len(g.meanRs)),
			ExpectancyR:      sum / float64(len(g.meanRs)),
			MoveProfile:      profile,
		})
	}

	keys := make([]string, len(summaries))
	for i, g := range ordered {
		keys[i] = g.key
	}
	sort.Sort(&ranked{summaries: summaries, keys: keys})
	return summaries, nil
}

// ranked orders summaries by expectancy, then win rate, then sample
// count, with the group key as a deterministic final tiebreak.
type ranked struct {
	summaries []model.SetupSummary
	keys      []string
}

func (r *ranked) Len() int { return len(r.summaries) }

func (r *ranked) Swap(i, j int) {
	r.summaries[i], r.summaries[j] = r.summaries[j], r.summaries[i]
	r.keys[i], r.keys[j] = r.keys[j], r.keys[i]
}

func (r *ranked) Less(i, j int) bool {
	a, b := r.summaries[i], r.summaries[j]
	if a.ExpectancyR != b.ExpectancyR {
		return a.ExpectancyR > b.ExpectancyR
	}
	if a.WinRate != b.WinRate {
		return a.WinRate > b.WinRate
	}
	if a.SampleCount != b.SampleCount {
		return a.SampleCount > b.SampleCount
	}
	return r.keys[i] < r.keys[j]
}

func groupKey(ev model.ReversalEvent, fields []string) (string, map[string]string, error) {
	setup := make(map[string]string, len(fields))
	parts := make([]string, len(fields))
	for i, field := range fields {
		val, err := fieldValue(ev, field)
		if err != nil {
			return "", nil, err
		}
		setup[field] = val
		parts[i] = val
	}
	return strings.Join(parts, "|"), setup, nil
}

func fieldValue(ev model.ReversalEvent, field string) (string, error) {
	switch field {
	case GroupByTimeframe:
		return string(ev.Timeframe), nil
	case GroupByPattern:
		return ev.Pattern, nil
	case GroupBySymbol:
		return ev.Symbol, nil
	}
	return "", fmt.Errorf("unknown group field %q", field)
}

// percentile interpolates linearly between the two nearest ranks of an
// ascending slice. q is in [0, 1].
func percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
