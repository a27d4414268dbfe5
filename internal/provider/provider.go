// Package provider fetches OHLC bar series from market data APIs and
// caches them on disk.
package provider

import (
	"context"
	"time"

	"stratscan/pkg/model"
)

// Source defines the interface for bar data sources
type Source interface {
	// Name returns the source name
	Name() string

	// GetBars fetches the bar series for a symbol and timeframe over
	// [from, to], oldest first
	GetBars(ctx context.Context, symbol string, tf model.Timeframe, from, to time.Time) ([]model.Candle, error)

	// IsAvailable checks if the source is usable (has valid API key)
	IsAvailable() bool

	// RateLimit returns the request limit per minute
	RateLimit() int
}

// SourceError represents a source-specific error
type SourceError struct {
	Source    string
	Err       error
	Retryable bool
}

func (e *SourceError) Error() string {
	return e.Source + ": " + e.Err.Error()
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
