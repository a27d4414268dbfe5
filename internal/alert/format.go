package alert

import (
	"fmt"
	"strings"
)

// FormatAlert renders one alert as a four-line message:
//
//	SPY 4hour 3-1-2u @ $450.25
//	Entry: 450.25 | Stop: 427.74 (-5.0%)
//	T1: 472.76 (+5.0%) | T2: 495.27 (+10.0%)
//	Exp: 0.65R | Win: 68% | FTFC: 4
func FormatAlert(a Alert) string {
	entry := a.Event.EntryPrice

	pct := func(level float64) float64 {
		if entry <= 0 {
			return 0
		}
		return (level - entry) / entry * 100
	}

	lines := []string{
		fmt.Sprintf("%s %s %s @ $%.2f", a.Event.Symbol, a.Event.Timeframe, a.Event.Pattern, entry),
		fmt.Sprintf("Entry: %.2f | Stop: %.2f (%+.1f%%)", entry, a.Levels.Stop, pct(a.Levels.Stop)),
		fmt.Sprintf("T1: %.2f (%+.1f%%) | T2: %.2f (%+.1f%%)",
			a.Levels.Target1, pct(a.Levels.Target1), a.Levels.Target2, pct(a.Levels.Target2)),
		fmt.Sprintf("Exp: %.2fR | Win: %.0f%% | FTFC: %d",
			a.ExpectancyR, a.WinRate*100, a.Event.ConfluenceCount),
	}

	return strings.Join(lines, "\n")
}

// FormatBatch renders a batch of alerts as one numbered message under
// a header naming what was scanned
func FormatBatch(label string, alerts []Alert) string {
	if len(alerts) == 0 {
		return fmt.Sprintf("No new %s setups found.", label)
	}

	lines := []string{fmt.Sprintf("=== FTFC Alerts: %s (%d setups) ===", label, len(alerts)), ""}

	for i, a := range alerts {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, FormatAlert(a)))
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}
