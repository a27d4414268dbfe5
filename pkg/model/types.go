package model

import (
	"fmt"
	"time"
)

// Candle represents a single candlestick (OHLCV data)
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Stock represents basic stock information
type Stock struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"` // NYSE, NASDAQ
}

// Label classifies a bar against its predecessor using Strat notation
type Label string

const (
	LabelInside    Label = "1"   // range contained within previous bar
	LabelTwoUp     Label = "2u"  // broke previous high only
	LabelTwoDown   Label = "2d"  // broke previous low only
	LabelOutside   Label = "3"   // broke both previous extremes
	LabelUndefined Label = "N/A" // first bar of a series, no predecessor
)

// Directional reports whether the label carries a direction (2u or 2d)
func (l Label) Directional() bool {
	return l == LabelTwoUp || l == LabelTwoDown
}

// Timeframe identifies a bar aggregation interval
type Timeframe string

const (
	TF30Min   Timeframe = "30min"
	TF1Hour   Timeframe = "1hour"
	TF2Hour   Timeframe = "2hour"
	TF4Hour   Timeframe = "4hour"
	TFDaily   Timeframe = "daily"
	TFWeekly  Timeframe = "weekly"
	TFMonthly Timeframe = "monthly"
)

// TimeframeOrder lists all supported timeframes from smallest to largest
var TimeframeOrder = []Timeframe{TF30Min, TF1Hour, TF2Hour, TF4Hour, TFDaily, TFWeekly, TFMonthly}

var timeframeNames = map[Timeframe]string{
	TF30Min:   "30 Min",
	TF1Hour:   "1 Hour",
	TF2Hour:   "2 Hour",
	TF4Hour:   "4 Hour",
	TFDaily:   "Daily",
	TFWeekly:  "Weekly",
	TFMonthly: "Monthly",
}

var timeframeDurations = map[Timeframe]time.Duration{
	TF30Min:   30 * time.Minute,
	TF1Hour:   time.Hour,
	TF2Hour:   2 * time.Hour,
	TF4Hour:   4 * time.Hour,
	TFDaily:   24 * time.Hour,
	TFWeekly:  7 * 24 * time.Hour,
	TFMonthly: 30 * 24 * time.Hour,
}

// Rank returns the position in TimeframeOrder, or -1 for unknown timeframes
func (tf Timeframe) Rank() int {
	for i, t := range TimeframeOrder {
		if t == tf {
			return i
		}
	}
	return -1
}

// Valid reports whether the timeframe is one of the supported intervals
func (tf Timeframe) Valid() bool {
	return tf.Rank() >= 0
}

// HigherThan reports whether tf aggregates more time per bar than other
func (tf Timeframe) HigherThan(other Timeframe) bool {
	return tf.Rank() > other.Rank()
}

// DisplayName returns a human-readable name ("4hour" -> "4 Hour")
func (tf Timeframe) DisplayName() string {
	if name, ok := timeframeNames[tf]; ok {
		return name
	}
	return string(tf)
}

// Duration returns the nominal span of one bar (calendar approximation
// for weekly and monthly)
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

// ParseTimeframe converts a string into a Timeframe
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if !tf.Valid() {
		return "", fmt.Errorf("unknown timeframe %q (want one of %v)", s, TimeframeOrder)
	}
	return tf, nil
}

// HigherTimeframes returns all timeframes strictly above tf, smallest first
func HigherTimeframes(tf Timeframe) []Timeframe {
	rank := tf.Rank()
	if rank < 0 {
		return nil
	}
	return TimeframeOrder[rank+1:]
}

// SeriesKey identifies one fetched bar series
type SeriesKey struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
}

func (k SeriesKey) String() string {
	return k.Symbol + "/" + string(k.Timeframe)
}

// ReversalEvent represents one detected reversal with full-timeframe
// continuity behind it. Events are immutable once emitted.
type ReversalEvent struct {
	Symbol          string    `json:"symbol"`
	Timeframe       Timeframe `json:"timeframe"`
	ReversalTime    time.Time `json:"reversal_time"`
	Pattern         string    `json:"pattern"` // e.g. "3-1-2u"
	EntryPrice      float64   `json:"entry_price"`
	HigherTFTrend   Label     `json:"higher_tf_trend"`
	ConfluenceCount int       `json:"confluence_count"`
	BarsAgo         int       `json:"bars_ago"`
	// ForwardMoves holds percent close-vs-entry for each bar after the
	// reversal; index 0 is one bar ahead.
	ForwardMoves []float64 `json:"forward_moves,omitempty"`
}

// Direction returns +1 for an upward reversal pattern, -1 for downward
func (e ReversalEvent) Direction() int {
	if e.HigherTFTrend == LabelTwoDown {
		return -1
	}
	return 1
}

// SimulationResult holds the per-unit outcome of one replayed trade.
// Values are in R multiples; MeanR is NaN for degenerate inputs.
type SimulationResult struct {
	PerUnitR []float64 `json:"per_unit_r"`
	MeanR    float64   `json:"mean_r"`
}

// Defined reports whether the simulation produced a usable result
func (r SimulationResult) Defined() bool {
	return r.MeanR == r.MeanR // false only for NaN
}

// MovePercentiles describes the forward-move distribution at one horizon
type MovePercentiles struct {
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

// SetupSummary aggregates all events sharing one setup grouping
type SetupSummary struct {
	Setup            map[string]string       `json:"setup"`
	SampleCount      int                     `json:"sample_count"`
	FrequencyPerWeek float64                 `json:"frequency_per_week"`
	WinRate          float64                 `json:"win_rate"`
	ExpectancyR      float64                 `json:"expectancy_R"`
	MoveProfile      map[int]MovePercentiles `json:"move_profile,omitempty"`
}

// ScanResult represents the final output of one scan run
type ScanResult struct {
	RunID       string             `json:"run_id"`
	StartedAt   time.Time          `json:"started_at"`
	SymbolCount int                `json:"symbol_count"`
	SeriesCount int                `json:"series_count"`
	Events      []ReversalEvent    `json:"events"`
	Results     []SimulationResult `json:"results"`
	Summaries   []SetupSummary     `json:"summaries"`
	FetchTime   time.Duration      `json:"fetch_time"`
	ScanTime    time.Duration      `json:"scan_time"`
}
