// Package export writes scan output in the three interchange shapes:
// a detailed per-event CSV, a per-setup summary CSV, and a machine
// readable JSON insights document.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"stratscan/internal/sim"
	"stratscan/pkg/model"
)

// WriteDetailedCSV writes one row per reversal event with its price
// levels, simulated outcome, and forward moves. results must be
// parallel to events. An undefined MeanR is written as an empty cell.
func WriteDetailedCSV(w io.Writer, events []model.ReversalEvent, results []model.SimulationResult, risk sim.RiskModel, side sim.Side) error {
	if len(results) != len(events) {
		return fmt.Errorf("results length %d does not match events length %d", len(results), len(events))
	}

	maxFwd := 0
	for _, ev := range events {
		if len(ev.ForwardMoves) > maxFwd {
			maxFwd = len(ev.ForwardMoves)
		}
	}

	header := []string{
		"Symbol", "Timeframe", "Pattern", "Reversal Time",
		"Entry Price", "Stop Price", "T1", "T2",
		"Higher TF Trend", "FTFC Count", "Bars Ago", "Mean R",
	}
	for k := 1; k <= maxFwd; k++ {
		header = append(header, fmt.Sprintf("Fwd_%d_PercMoveFromEntry", k))
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, ev := range events {
		levels := risk.LevelsFor(ev.EntryPrice, side.Sign(ev.HigherTFTrend))

		row := []string{
			ev.Symbol,
			string(ev.Timeframe),
			ev.Pattern,
			ev.ReversalTime.UTC().Format(time.RFC3339),
			formatFloat(ev.EntryPrice),
			formatFloat(levels.Stop),
			formatFloat(levels.Target1),
			formatFloat(levels.Target2),
			string(ev.HigherTFTrend),
			strconv.Itoa(ev.ConfluenceCount),
			strconv.Itoa(ev.BarsAgo),
			formatFloat(results[i].MeanR),
		}
		for k := 0; k < maxFwd; k++ {
			if k < len(ev.ForwardMoves) {
				row = append(row, formatFloat(ev.ForwardMoves[k]))
			} else {
				row = append(row, "")
			}
		}

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteSummaryCSV writes one row per setup: the grouping fields in
// groupBy order, the core stats, and the move-profile percentiles for
// every horizon present in the data
func WriteSummaryCSV(w io.Writer, summaries []model.SetupSummary, groupBy []string) error {
	horizons := profiledHorizons(summaries)

	header := append([]string{}, groupBy...)
	header = append(header, "sample_count", "frequency_per_week", "win_rate", "expectancy_R")
	for _, h := range horizons {
		prefix := fmt.Sprintf("Fwd_%d", h)
		header = append(header, prefix+"_p25", prefix+"_p50", prefix+"_p75", prefix+"_p90")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, s := range summaries {
		row := make([]string, 0, len(header))
		for _, field := range groupBy {
			row = append(row, s.Setup[field])
		}
		row = append(row,
			strconv.Itoa(s.SampleCount),
			formatFloat(s.FrequencyPerWeek),
			formatFloat(s.WinRate),
			formatFloat(s.ExpectancyR),
		)
		for _, h := range horizons {
			if p, ok := s.MoveProfile[h]; ok {
				row = append(row, formatFloat(p.P25), formatFloat(p.P50), formatFloat(p.P75), formatFloat(p.P90))
			} else {
				row = append(row, "", "", "", "")
			}
		}

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Meta identifies the run an insights document came from
type Meta struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Side        string    `json:"side"`
	Precision   string    `json:"precision"`
}

// InsightsDocument is the machine-readable companion to the CSVs,
// meant for downstream tooling rather than spreadsheets
type InsightsDocument struct {
	Meta   Meta                 `json:"meta"`
	Risk   sim.RiskModel        `json:"risk_model"`
	Setups []model.SetupSummary `json:"setups"`
}

// BuildInsights assembles the document for a finished run
func BuildInsights(runID string, side sim.Side, precision sim.Precision, risk sim.RiskModel, summaries []model.SetupSummary) InsightsDocument {
	if summaries == nil {
		summaries = []model.SetupSummary{}
	}
	return InsightsDocument{
		Meta: Meta{
			RunID:       runID,
			GeneratedAt: time.Now().UTC(),
			Side:        string(side),
			Precision:   string(precision),
		},
		Risk:   risk,
		Setups: summaries,
	}
}

// WriteInsightsJSON writes the document with two-space indentation
func WriteInsightsJSON(w io.Writer, doc InsightsDocument) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

// profiledHorizons returns the sorted union of horizons that appear in
// any summary's move profile
func profiledHorizons(summaries []model.SetupSummary) []int {
	seen := make(map[int]bool)
	for _, s := range summaries {
		for h := range s.MoveProfile {
			seen[h] = true
		}
	}
	horizons := make([]int, 0, len(seen))
	for h := range seen {
		horizons = append(horizons, h)
	}
	sort.Ints(horizons)
	return horizons
}

// formatFloat renders v for a CSV cell, NaN as empty
func formatFloat(v float64) string {
	if v != v {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
