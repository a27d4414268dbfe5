package strat

import (
	"sort"
	"time"

	"stratscan/pkg/model"
)

// LabelIndex answers "what was this timeframe's label as of time T"
// without looking ahead. It holds the series times in ascending order
// and resolves queries with a binary search, so a full scan over N
// trigger bars costs O(N log M) per higher timeframe.
type LabelIndex struct {
	times  []time.Time
	labels []model.Label

	// MaxStaleness, when positive, rejects bars older than this
	// relative to the query time. Zero disables the check.
	MaxStaleness time.Duration
}

// NewLabelIndex builds an index over an already classified series
func NewLabelIndex(s *Series) *LabelIndex {
	ix := &LabelIndex{
		times:  make([]time.Time, len(s.Candles)),
		labels: s.Labels,
	}
	for i, c := range s.Candles {
		ix.times[i] = c.Time
	}
	return ix
}

// AsOf returns the label of the latest bar whose timestamp is at or
// before t. It reports false when no bar has closed yet, or when the
// latest bar is older than MaxStaleness.
func (ix *LabelIndex) AsOf(t time.Time) (model.Label, bool) {
	i := sort.Search(len(ix.times), func(i int) bool {
		return ix.times[i].After(t)
	})
	if i == 0 {
		return model.LabelUndefined, false
	}

	pos := i - 1
	if ix.MaxStaleness > 0 && t.Sub(ix.times[pos]) > ix.MaxStaleness {
		return model.LabelUndefined, false
	}
	return ix.labels[pos], true
}

// Len returns the number of indexed bars
func (ix *LabelIndex) Len() int {
	return len(ix.times)
}
