package sim

import (
	"fmt"
	"math"

	"stratscan/pkg/model"
)

// Precision selects which bar prices drive touch detection
type Precision string

const (
	// PrecisionOHLC uses bar extremes: High for favorable touches of
	// a long, Low for adverse, mirrored for shorts.
	PrecisionOHLC Precision = "ohlc"
	// PrecisionClose uses the close as both extremes, for series
	// where intrabar extremes are unreliable.
	PrecisionClose Precision = "close"
)

// Boundary selects the touch comparison convention
type Boundary string

const (
	// BoundaryInclusive fills when price reaches the level exactly.
	BoundaryInclusive Boundary = "inclusive"
	// BoundaryExclusive requires price to trade through the level.
	BoundaryExclusive Boundary = "exclusive"
)

// Side selects trade direction for simulation
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
	// SideAuto follows the reversal direction: up patterns long,
	// down patterns short.
	SideAuto Side = "auto"
)

// ParseSide validates a side string
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideLong, SideShort, SideAuto:
		return Side(s), nil
	}
	return "", fmt.Errorf("unknown side %q (want long, short or auto)", s)
}

// ParsePrecision validates a precision string
func ParsePrecision(s string) (Precision, error) {
	switch Precision(s) {
	case PrecisionOHLC, PrecisionClose:
		return Precision(s), nil
	}
	return "", fmt.Errorf("unknown precision %q (want ohlc or close)", s)
}

// ParseBoundary validates a boundary string
func ParseBoundary(s string) (Boundary, error) {
	switch Boundary(s) {
	case BoundaryInclusive, BoundaryExclusive:
		return Boundary(s), nil
	}
	return "", fmt.Errorf("unknown boundary %q (want inclusive or exclusive)", s)
}

// Sign resolves the side to +1 or -1 for the given trend label
func (s Side) Sign(trend model.Label) int {
	switch s {
	case SideLong:
		return 1
	case SideShort:
		return -1
	}
	if trend == model.LabelTwoDown {
		return -1
	}
	return 1
}

// Options are simulation settings fixed for a whole run
type Options struct {
	Precision Precision `json:"precision"`
	Boundary  Boundary  `json:"boundary"`
}

// DefaultOptions returns OHLC precision with inclusive touches
func DefaultOptions() Options {
	return Options{Precision: PrecisionOHLC, Boundary: BoundaryInclusive}
}

// Simulate replays window bar by bar from an entry at the given price.
//
// Exit policy: unit 0 exits at the first target, unit 1 at the second,
// and the last unit trails once the second target fills. Within a bar
// the stop is evaluated first and closes every open unit at -1R. A
// trailing exit closes the last unit at the R implied by the trailing
// stop level. Units still open when the window ends exit at the R
// implied by the final close.
//
// The result's MeanR averages only units that actually exited; a NaN
// slot for a unit that never traded (possible only when Contracts
// exceeds the three-role layout) is excluded. Degenerate input (non
// positive or non-finite entry, empty window) yields NaN everywhere.
//
// Simulate is a pure function: same inputs, same output, safe for
// concurrent use.
func Simulate(entry float64, sign int, window []model.Candle, risk RiskModel, opts Options) model.SimulationResult {
	perUnit := make([]float64, risk.Contracts)
	for i := range perUnit {
		perUnit[i] = math.NaN()
	}

	if math.IsNaN(entry) || math.IsInf(entry, 0) || entry <= 0 || len(window) == 0 || risk.Contracts < 1 {
		return model.SimulationResult{PerUnitR: perUnit, MeanR: math.NaN()}
	}

	s := 1.0
	if sign < 0 {
		s = -1.0
	}

	riskAmt := entry * risk.StopPct
	stop := entry - s*riskAmt
	target1 := entry + s*risk.ScaleOutR[0]*riskAmt
	target2 := entry + s*risk.ScaleOutR[1]*riskAmt

	last := risk.Contracts - 1
	trailing := false
	extreme := entry // best favorable price seen since entry

	for _, bar := range window {
		favorable, adverse := bar.High, bar.Low
		if s < 0 {
			favorable, adverse = bar.Low, bar.High
		}
		if opts.Precision == PrecisionClose {
			favorable, adverse = bar.Close, bar.Close
		}

		// Stop first: it closes everything still open at -1R.
		if reached(adverse, stop, -s, opts.Boundary) {
			for i := range perUnit {
				if math.IsNaN(perUnit[i]) {
					perUnit[i] = -1.0
				}
			}
			return finish(perUnit)
		}

		// Targets are independent: a bar that reaches the second
		// target has necessarily reached the first.
		if math.IsNaN(perUnit[0]) && reached(favorable, target1, s, opts.Boundary) {
			perUnit[0] = risk.ScaleOutR[0]
		}
		if last >= 1 && math.IsNaN(perUnit[1]) && reached(favorable, target2, s, opts.Boundary) {
			perUnit[1] = risk.ScaleOutR[1]
			trailing = true
		}

		// The trailing stop ratchets with the favorable extreme and
		// is live in the same bar that activated it.
		if trailing && math.IsNaN(perUnit[last]) {
			if s > 0 && favorable > extreme {
				extreme = favorable
			} else if s < 0 && favorable < extreme {
				extreme = favorable
			}
			trailStop := extreme - s*risk.TrailingGapR*riskAmt
			if reached(adverse, trailStop, -s, opts.Boundary) {
				perUnit[last] = s * (trailStop - entry) / riskAmt
				return finish(perUnit)
			}
		}
	}

	// Window exhausted: everything still open exits at the final close.
	exitR := s * (window[len(window)-1].Close - entry) / riskAmt
	for i := range perUnit {
		if math.IsNaN(perUnit[i]) {
			perUnit[i] = exitR
		}
	}
	return finish(perUnit)
}

// reached reports whether price has attained level in direction dir:
// +1 means at or above, -1 at or below. Exclusive boundaries demand a
// strict cross.
func reached(price, level, dir float64, b Boundary) bool {
	if dir > 0 {
		if b == BoundaryExclusive {
			return price > level
		}
		return price >= level
	}
	if b == BoundaryExclusive {
		return price < level
	}
	return price <= level
}

// finish averages the filled units into MeanR
func finish(perUnit []float64) model.SimulationResult {
	sum, n := 0.0, 0
	for _, r := range perUnit {
		if !math.IsNaN(r) {
			sum += r
			n++
		}
	}
	mean := math.NaN()
	if n > 0 {
		mean = sum / float64(n)
	}
	return model.SimulationResult{PerUnitR: perUnit, MeanR: mean}
}
