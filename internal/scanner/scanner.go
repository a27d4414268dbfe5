// Package scanner orchestrates the scan pipeline: fetch bars, classify
// every series, detect confirmed reversals, replay them under the risk
// model, and aggregate the results per setup.
package scanner

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stratscan/internal/sim"
	"stratscan/internal/stats"
	"stratscan/internal/strat"
	"stratscan/pkg/model"
)

// ProgressCallback is called with progress updates
type ProgressCallback func(done, total int)

// BarSource supplies bar series for symbol/timeframe pairs
type BarSource interface {
	BatchFetch(ctx context.Context, symbols []string, timeframes []model.Timeframe, progress func(done, total int)) (map[model.SeriesKey][]model.Candle, error)
}

// Config holds pipeline settings
type Config struct {
	Workers       int
	MinHigherTFs  int
	LookaheadBars int
	// MaxStaleness bounds how old a higher-timeframe bar may be when
	// aligned to a trigger bar. Zero accepts any closed bar.
	MaxStaleness time.Duration
	Side         sim.Side
	Risk         sim.RiskModel
	Sim          sim.Options
	Stats        stats.Options
}

// Runner executes scans
type Runner struct {
	bars          BarSource
	cfg           Config
	logger        zerolog.Logger
	progressFunc  ProgressCallback
	fetchProgress ProgressCallback
}

// NewRunner creates a runner over the given bar source
func NewRunner(bars BarSource, cfg Config, logger zerolog.Logger) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Runner{
		bars:   bars,
		cfg:    cfg,
		logger: logger.With().Str("component", "scanner").Logger(),
	}
}

// SetProgressCallback sets the callback for detection progress
func (r *Runner) SetProgressCallback(fn ProgressCallback) {
	r.progressFunc = fn
}

// SetFetchProgressCallback sets the callback for fetch progress
func (r *Runner) SetFetchProgressCallback(fn ProgressCallback) {
	r.fetchProgress = fn
}

// detectUnit is one (symbol, trigger timeframe) work item
type detectUnit struct {
	symbol  string
	trigger model.Timeframe
}

// Run executes the full pipeline for the given symbols and trigger
// timeframes. The largest supported timeframe never triggers; it only
// provides trend context. Context bars above the smallest requested
// timeframe are fetched automatically.
func (r *Runner) Run(ctx context.Context, symbols []string, timeframes []model.Timeframe) (*model.ScanResult, error) {
	started := time.Now()
	runID := uuid.NewString()
	log := r.logger.With().Str("run_id", runID).Logger()

	triggers, fetchTFs := resolveTimeframes(timeframes)
	log.Info().
		Int("symbols", len(symbols)).
		Int("trigger_timeframes", len(triggers)).
		Msg("Scan starting")

	result := &model.ScanResult{
		RunID:       runID,
		StartedAt:   started,
		SymbolCount: len(symbols),
		Events:      []model.ReversalEvent{},
		Results:     []model.SimulationResult{},
		Summaries:   []model.SetupSummary{},
	}
	if len(symbols) == 0 || len(triggers) == 0 {
		result.ScanTime = time.Since(started)
		return result, nil
	}

	fetchStart := time.Now()
	series, err := r.bars.BatchFetch(ctx, symbols, fetchTFs, r.fetchProgress)
	if err != nil {
		return nil, err
	}
	result.FetchTime = time.Since(fetchStart)
	result.SeriesCount = len(series)

	classified, err := r.classifyAll(ctx, series)
	if err != nil {
		return nil, err
	}

	events, err := r.detectAll(ctx, symbols, triggers, classified)
	if err != nil {
		return nil, err
	}
	// Deterministic event order regardless of worker interleaving.
	sort.Slice(events, func(i, j int) bool {
		if events[i].Symbol != events[j].Symbol {
			return events[i].Symbol < events[j].Symbol
		}
		if events[i].Timeframe != events[j].Timeframe {
			return events[i].Timeframe.Rank() < events[j].Timeframe.Rank()
		}
		return events[i].ReversalTime.Before(events[j].ReversalTime)
	})

	results := r.simulateAll(ctx, events, classified)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summaries, err := stats.Summarize(events, results, r.cfg.Stats)
	if err != nil {
		return nil, err
	}

	if events == nil {
		events = []model.ReversalEvent{}
	}
	if summaries == nil {
		summaries = []model.SetupSummary{}
	}
	result.Events = events
	result.Results = results
	result.Summaries = summaries
	result.ScanTime = time.Since(started)

	log.Info().
		Int("series", result.SeriesCount).
		Int("events", len(events)).
		Int("setups", len(summaries)).
		Dur("elapsed", result.ScanTime).
		Msg("Scan complete")
	return result, nil
}

// classifyAll labels every fetched series in parallel. A series that
// fails classification aborts the run: the cache layer sorts and
// dedupes, so a non-monotonic series here means corrupt data.
func (r *Runner) classifyAll(ctx context.Context, series map[model.SeriesKey][]model.Candle) (map[model.SeriesKey]*strat.Series, error) {
	type classifyResult struct {
		key model.SeriesKey
		s   *strat.Series
		err error
	}

	jobChan := make(chan model.SeriesKey, len(series))
	resultChan := make(chan classifyResult, len(series))
	for key := range series {
		jobChan <- key
	}
	close(jobChan)

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range jobChan {
				select {
				case <-ctx.Done():
					return
				default:
					s, err := strat.NewSeries(key.Symbol, key.Timeframe, series[key])
					resultChan <- classifyResult{key: key, s: s, err: err}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	classified := make(map[model.SeriesKey]*strat.Series, len(series))
	for res := range resultChan {
		if res.err != nil {
			return nil, res.err
		}
		classified[res.key] = res.s
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return classified, nil
}

// detectAll runs one detection job per (symbol, trigger timeframe)
// against shared read-only label indexes.
func (r *Runner) detectAll(ctx context.Context, symbols []string, triggers []model.Timeframe, classified map[model.SeriesKey]*strat.Series) ([]model.ReversalEvent, error) {
	indexes := make(map[model.SeriesKey]*strat.LabelIndex, len(classified))
	for key, s := range classified {
		ix := strat.NewLabelIndex(s)
		ix.MaxStaleness = r.cfg.MaxStaleness
		indexes[key] = ix
	}

	var units []detectUnit
	for _, sym := range symbols {
		for _, tf := range triggers {
			if _, ok := classified[model.SeriesKey{Symbol: sym, Timeframe: tf}]; ok {
				units = append(units, detectUnit{symbol: sym, trigger: tf})
			}
		}
	}
	total := len(units)

	jobChan := make(chan detectUnit, total)
	resultChan := make(chan []model.ReversalEvent, total)
	for _, u := range units {
		jobChan <- u
	}
	close(jobChan)

	var doneCount int64
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			detector := strat.NewDetector(strat.DetectConfig{
				MinHigherTFs:  r.cfg.MinHigherTFs,
				LookaheadBars: r.cfg.LookaheadBars,
			}, r.logger)

			for unit := range jobChan {
				select {
				case <-ctx.Done():
					return
				default:
					trigger := classified[model.SeriesKey{Symbol: unit.symbol, Timeframe: unit.trigger}]
					higher := make(map[model.Timeframe]*strat.LabelIndex)
					for _, tf := range model.HigherTimeframes(unit.trigger) {
						if ix, ok := indexes[model.SeriesKey{Symbol: unit.symbol, Timeframe: tf}]; ok {
							higher[tf] = ix
						}
					}
					resultChan <- detector.Detect(trigger, higher)

					count := atomic.AddInt64(&doneCount, 1)
					if r.progressFunc != nil {
						r.progressFunc(int(count), total)
					}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var events []model.ReversalEvent
	for batch := range resultChan {
		events = append(events, batch...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// simulateAll replays every event over its forward window. Workers
// write disjoint slots of a pre-sized slice, so results line up with
// events by index without any locking.
func (r *Runner) simulateAll(ctx context.Context, events []model.ReversalEvent, classified map[model.SeriesKey]*strat.Series) []model.SimulationResult {
	results := make([]model.SimulationResult, len(events))
	if len(events) == 0 {
		return results
	}

	jobChan := make(chan int, len(events))
	for i := range events {
		jobChan <- i
	}
	close(jobChan)

	var wg sync.WaitGroup
	for w := 0; w < r.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobChan {
				select {
				case <-ctx.Done():
					return
				default:
					ev := events[i]
					window := forwardWindow(classified[model.SeriesKey{Symbol: ev.Symbol, Timeframe: ev.Timeframe}], ev.ReversalTime, r.cfg.LookaheadBars)
					sign := r.cfg.Side.Sign(ev.HigherTFTrend)
					results[i] = sim.Simulate(ev.EntryPrice, sign, window, r.cfg.Risk, r.cfg.Sim)
				}
			}
		}()
	}
	wg.Wait()
	return results
}

// forwardWindow returns up to lookahead bars strictly after t
func forwardWindow(s *strat.Series, t time.Time, lookahead int) []model.Candle {
	if s == nil || lookahead <= 0 {
		return nil
	}
	start := sort.Search(len(s.Candles), func(i int) bool {
		return s.Candles[i].Time.After(t)
	})
	end := start + lookahead
	if end > len(s.Candles) {
		end = len(s.Candles)
	}
	if start >= end {
		return nil
	}
	return s.Candles[start:end]
}

// resolveTimeframes splits the request into trigger timeframes and the
// full fetch set including higher-timeframe context
func resolveTimeframes(requested []model.Timeframe) (triggers, fetch []model.Timeframe) {
	highest := model.TimeframeOrder[len(model.TimeframeOrder)-1]
	minRank := len(model.TimeframeOrder)
	seen := make(map[model.Timeframe]bool)
	for _, tf := range requested {
		if !tf.Valid() || seen[tf] {
			continue
		}
		seen[tf] = true
		if tf != highest {
			triggers = append(triggers, tf)
		}
		if tf.Rank() < minRank {
			minRank = tf.Rank()
		}
	}
	if len(seen) == 0 {
		return nil, nil
	}

	sort.Slice(triggers, func(i, j int) bool { return triggers[i].Rank() < triggers[j].Rank() })
	fetch = append(fetch, model.TimeframeOrder[minRank:]...)
	return triggers, fetch
}
