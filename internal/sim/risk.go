// Package sim replays detected reversals forward bar by bar under a
// fixed risk model and reports per-unit outcomes in R multiples.
package sim

import "fmt"

// RiskModel defines position sizing and exit policy for a simulated
// trade. It is a value type: build it once per run and pass it by
// value so no simulation can mutate another's parameters.
type RiskModel struct {
	// StopPct is the stop distance as a fraction of entry price. The
	// risk unit R is entry * StopPct.
	StopPct float64 `json:"stop_pct" yaml:"stop_pct"`
	// Contracts is the number of units traded; the first two scale
	// out at the targets and the last trails.
	Contracts int `json:"contracts" yaml:"contracts"`
	// ScaleOutR holds the two profit targets in R multiples.
	ScaleOutR [2]float64 `json:"scale_out_R" yaml:"scale_out_r"`
	// TrailingAfterR is kept for configuration compatibility; the
	// trailing stop activates when the second target fills.
	TrailingAfterR float64 `json:"trailing_after_R" yaml:"trailing_after_r"`
	// TrailingGapR is the trailing stop distance in R multiples
	// behind the best favorable extreme.
	TrailingGapR float64 `json:"trailing_gap_R" yaml:"trailing_gap_r"`
}

// DefaultRiskModel returns the standard 5% stop, three-unit model
// scaling out at +1R and +2R with a 1R trailing gap
func DefaultRiskModel() RiskModel {
	return RiskModel{
		StopPct:        0.05,
		Contracts:      3,
		ScaleOutR:      [2]float64{1.0, 2.0},
		TrailingAfterR: 2.0,
		TrailingGapR:   1.0,
	}
}

// Validate checks the model for internally consistent parameters
func (r RiskModel) Validate() error {
	if r.StopPct <= 0 || r.StopPct >= 1 {
		return fmt.Errorf("stop_pct must be in (0, 1), got %v", r.StopPct)
	}
	if r.Contracts < 2 {
		return fmt.Errorf("contracts must be at least 2, got %d", r.Contracts)
	}
	if r.ScaleOutR[0] <= 0 {
		return fmt.Errorf("first scale-out target must be positive, got %v", r.ScaleOutR[0])
	}
	if r.ScaleOutR[1] <= r.ScaleOutR[0] {
		return fmt.Errorf("second scale-out target %v must exceed first %v", r.ScaleOutR[1], r.ScaleOutR[0])
	}
	if r.TrailingGapR <= 0 {
		return fmt.Errorf("trailing_gap_R must be positive, got %v", r.TrailingGapR)
	}
	return nil
}

// Levels holds the absolute price levels implied by an entry
type Levels struct {
	Risk    float64 `json:"risk"` // dollar value of 1R
	Stop    float64 `json:"stop"`
	Target1 float64 `json:"target1"`
	Target2 float64 `json:"target2"`
}

// LevelsFor computes stop and target prices for an entry. sign is +1
// for long, -1 for short.
func (r RiskModel) LevelsFor(entry float64, sign int) Levels {
	s := 1.0
	if sign < 0 {
		s = -1.0
	}
	risk := entry * r.StopPct
	return Levels{
		Risk:    risk,
		Stop:    entry - s*risk,
		Target1: entry + s*r.ScaleOutR[0]*risk,
		Target2: entry + s*r.ScaleOutR[1]*risk,
	}
}
