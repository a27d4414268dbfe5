package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"stratscan/pkg/model"
)

// Entry binds a cron spec (standard 5-field, evaluated in Eastern
// Time) to the timeframes it scans
type Entry struct {
	Spec        string            `yaml:"spec"`
	Timeframes  []model.Timeframe `yaml:"timeframes"`
	RequireOpen bool              `yaml:"require_open"`
}

// DefaultEntries returns the built-in scan calendar: higher timeframes
// before the open, intraday timeframes at each hour's 45-minute mark
// during the session, 4-hour at its two daily closes, weekly at the
// Friday close.
func DefaultEntries() []Entry {
	return []Entry{
		{
			Spec:       "45 8 * * 1-5",
			Timeframes: []model.Timeframe{model.TFDaily, model.TFWeekly, model.TFMonthly},
		},
		{
			Spec:        "45 9-15 * * 1-5",
			Timeframes:  []model.Timeframe{model.TF30Min, model.TF1Hour, model.TF2Hour},
			RequireOpen: true,
		},
		{
			Spec:       "45 11,15 * * 1-5",
			Timeframes: []model.Timeframe{model.TF4Hour},
		},
		{
			Spec:       "45 15 * * 5",
			Timeframes: []model.Timeframe{model.TFWeekly},
		},
	}
}

// ScanFunc runs one scan over the given trigger timeframes
type ScanFunc func(ctx context.Context, timeframes []model.Timeframe)

// Scheduler fires scans on a cron calendar. Overlapping entries are
// deduplicated per timeframe so a symbol set is never scanned twice
// within the same minute.
type Scheduler struct {
	entries []Entry
	scan    ScanFunc
	cron    *cron.Cron
	logger  zerolog.Logger

	ctx context.Context

	mu       sync.Mutex
	lastScan map[model.Timeframe]time.Time
}

// NewScheduler validates the entries and prepares the cron runner
func NewScheduler(entries []Entry, scan ScanFunc, logger zerolog.Logger) (*Scheduler, error) {
	if len(entries) == 0 {
		entries = DefaultEntries()
	}
	s := &Scheduler{
		entries:  entries,
		scan:     scan,
		cron:     cron.New(cron.WithLocation(GetETLocation())),
		logger:   logger.With().Str("component", "scheduler").Logger(),
		lastScan: make(map[model.Timeframe]time.Time),
	}

	for i := range entries {
		entry := entries[i]
		if len(entry.Timeframes) == 0 {
			return nil, fmt.Errorf("schedule entry %q has no timeframes", entry.Spec)
		}
		for _, tf := range entry.Timeframes {
			if !tf.Valid() {
				return nil, fmt.Errorf("schedule entry %q: unknown timeframe %q", entry.Spec, tf)
			}
		}
		if _, err := s.cron.AddFunc(entry.Spec, func() {
			s.runEntry(entry)
		}); err != nil {
			return nil, fmt.Errorf("invalid cron spec %q: %w", entry.Spec, err)
		}
	}

	return s, nil
}

// Run starts the cron calendar and blocks until ctx is cancelled.
// In-flight scans are allowed to finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx

	status := GetMarketStatus(DefaultMarketSchedule())
	next := s.NextRuns(1)

	logEvt := s.logger.Info().
		Int("entries", len(s.entries)).
		Str("market", status.Reason)
	if len(next) > 0 {
		logEvt = logEvt.Time("next_run", next[0].At)
	}
	logEvt.Msg("Scheduler started")

	s.cron.Start()
	<-ctx.Done()

	s.logger.Info().Msg("Scheduler stopping, waiting for running scans")
	<-s.cron.Stop().Done()
	return ctx.Err()
}

func (s *Scheduler) runEntry(entry Entry) {
	due := s.dueTimeframes(entry)
	if len(due) == 0 {
		return
	}

	s.logger.Info().
		Str("spec", entry.Spec).
		Interface("timeframes", due).
		Msg("Scheduled scan due")
	s.scan(s.ctx, due)
}

// dueTimeframes applies the market-open gate and the per-timeframe
// dedup window, and records the timeframes it hands out
func (s *Scheduler) dueTimeframes(entry Entry) []model.Timeframe {
	if entry.RequireOpen && !IsMarketOpen() {
		s.logger.Debug().Str("spec", entry.Spec).Msg("Market closed, skipping entry")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var due []model.Timeframe
	for _, tf := range entry.Timeframes {
		if last, ok := s.lastScan[tf]; ok && now.Sub(last) < time.Minute {
			continue
		}
		s.lastScan[tf] = now
		due = append(due, tf)
	}
	return due
}

// UpcomingRun is one future firing of the calendar
type UpcomingRun struct {
	At         time.Time
	Spec       string
	Timeframes []model.Timeframe
}

// NextRuns returns the next n firings across all entries in time
// order, for dry-run display
func (s *Scheduler) NextRuns(n int) []UpcomingRun {
	now := time.Now().In(GetETLocation())

	var runs []UpcomingRun
	for _, entry := range s.entries {
		sched, err := cron.ParseStandard(entry.Spec)
		if err != nil {
			continue
		}
		t := now
		for i := 0; i < n; i++ {
			t = sched.Next(t)
			if t.IsZero() {
				break
			}
			runs = append(runs, UpcomingRun{At: t, Spec: entry.Spec, Timeframes: entry.Timeframes})
		}
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].At.Before(runs[j].At) })
	if len(runs) > n {
		runs = runs[:n]
	}
	return runs
}
