// Package alert turns scan output into mobile-sized notifications:
// events are gated on confluence, recency, and historical edge, then
// formatted and pushed through a notifier.
package alert

import (
	"sort"

	"stratscan/internal/sim"
	"stratscan/pkg/model"
)

// Thresholds gate which events become alerts
type Thresholds struct {
	MinExpectancyR float64 `yaml:"min_expectancy_r" json:"min_expectancy_r"`
	MinWinRate     float64 `yaml:"min_win_rate" json:"min_win_rate"`
	MinConfluence  int     `yaml:"min_confluence" json:"min_confluence"`
	MaxBarsAgo     int     `yaml:"max_bars_ago" json:"max_bars_ago"`
	MaxAlerts      int     `yaml:"max_alerts" json:"max_alerts"`
}

// DefaultThresholds returns the stock alert gates
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinExpectancyR: 0.3,
		MinWinRate:     0.50,
		MinConfluence:  3,
		MaxBarsAgo:     5,
		MaxAlerts:      10,
	}
}

// Alert is one event that cleared every gate, carrying the price
// levels and the historical stats that justified it
type Alert struct {
	Event            model.ReversalEvent `json:"event"`
	Levels           sim.Levels          `json:"levels"`
	ExpectancyR      float64             `json:"expectancy_R"`
	WinRate          float64             `json:"win_rate"`
	FrequencyPerWeek float64             `json:"frequency_per_week"`
}

// Filter gates events on confluence and recency, joins them with the
// summary stats for their setup, keeps those whose history clears the
// expectancy and win-rate thresholds, and returns the best first. An
// event whose setup has no summary (too few samples) is dropped.
func Filter(events []model.ReversalEvent, summaries []model.SetupSummary, risk sim.RiskModel, side sim.Side, th Thresholds) []Alert {
	var alerts []Alert

	for _, ev := range events {
		if ev.ConfluenceCount < th.MinConfluence {
			continue
		}
		if ev.BarsAgo > th.MaxBarsAgo {
			continue
		}

		summary, ok := summaryFor(ev, summaries)
		if !ok {
			continue
		}
		if summary.ExpectancyR < th.MinExpectancyR {
			continue
		}
		if summary.WinRate < th.MinWinRate {
			continue
		}

		sign := side.Sign(ev.HigherTFTrend)
		alerts = append(alerts, Alert{
			Event:            ev,
			Levels:           risk.LevelsFor(ev.EntryPrice, sign),
			ExpectancyR:      summary.ExpectancyR,
			WinRate:          summary.WinRate,
			FrequencyPerWeek: summary.FrequencyPerWeek,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].ExpectancyR > alerts[j].ExpectancyR
	})

	if th.MaxAlerts > 0 && len(alerts) > th.MaxAlerts {
		alerts = alerts[:th.MaxAlerts]
	}
	return alerts
}

// summaryFor finds the summary whose setup fields all match the event
func summaryFor(ev model.ReversalEvent, summaries []model.SetupSummary) (model.SetupSummary, bool) {
	for _, s := range summaries {
		if len(s.Setup) == 0 {
			continue
		}
		if setupMatches(ev, s.Setup) {
			return s, true
		}
	}
	return model.SetupSummary{}, false
}

func setupMatches(ev model.ReversalEvent, setup map[string]string) bool {
	for field, want := range setup {
		var got string
		switch field {
		case "timeframe":
			got = string(ev.Timeframe)
		case "pattern":
			got = ev.Pattern
		case "symbol":
			got = ev.Symbol
		default:
			return false
		}
		if got != want {
			return false
		}
	}
	return true
}
