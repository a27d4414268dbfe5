package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"stratscan/internal/ratelimit"
	"stratscan/pkg/model"
)

const (
	polygonBaseURL    = "https://api.polygon.io/v2/aggs/ticker"
	polygonMaxRetries = 3
	polygonPageLimit  = 50000
)

// polygonRange maps a timeframe to Polygon's multiplier/timespan pair
type polygonRange struct {
	multiplier int
	timespan   string
}

var polygonRanges = map[model.Timeframe]polygonRange{
	model.TF30Min:   {30, "minute"},
	model.TF1Hour:   {1, "hour"},
	model.TF2Hour:   {2, "hour"},
	model.TF4Hour:   {4, "hour"},
	model.TFDaily:   {1, "day"},
	model.TFWeekly:  {1, "week"},
	model.TFMonthly: {1, "month"},
}

// PolygonSource implements the Source interface for Polygon.io
// aggregate bars
type PolygonSource struct {
	client    *http.Client
	limiter   *ratelimit.Limiter
	apiKey    string
	rateLimit int
	logger    zerolog.Logger
}

// NewPolygonSource creates a Polygon source. ratePerMin should match
// the account tier (5 for the free tier).
func NewPolygonSource(apiKey string, ratePerMin int, logger zerolog.Logger) *PolygonSource {
	if ratePerMin < 1 {
		ratePerMin = 5
	}
	return &PolygonSource{
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   ratelimit.NewLimiter("polygon", ratePerMin),
		apiKey:    apiKey,
		rateLimit: ratePerMin,
		logger:    logger.With().Str("component", "polygon").Logger(),
	}
}

// Name returns the source name
func (p *PolygonSource) Name() string {
	return "polygon"
}

// IsAvailable checks whether an API key is configured
func (p *PolygonSource) IsAvailable() bool {
	return p.apiKey != ""
}

// RateLimit returns the request limit per minute
func (p *PolygonSource) RateLimit() int {
	return p.rateLimit
}

// polygonResponse represents the aggregates API response
type polygonResponse struct {
	Ticker       string `json:"ticker"`
	Status       string `json:"status"`
	ResultsCount int    `json:"resultsCount"`
	Results      []struct {
		Timestamp int64   `json:"t"` // epoch milliseconds
		Open      float64 `json:"o"`
		High      float64 `json:"h"`
		Low       float64 `json:"l"`
		Close     float64 `json:"c"`
		Volume    float64 `json:"v"`
	} `json:"results"`
	Error string `json:"error"`
}

// GetBars fetches bars for a symbol and timeframe, retrying transient
// failures with exponential backoff
func (p *PolygonSource) GetBars(ctx context.Context, symbol string, tf model.Timeframe, from, to time.Time) ([]model.Candle, error) {
	rng, ok := polygonRanges[tf]
	if !ok {
		return nil, &SourceError{Source: p.Name(), Err: fmt.Errorf("unsupported timeframe %s", tf), Retryable: false}
	}

	var lastErr error
	for attempt := 0; attempt < polygonMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			p.logger.Warn().
				Str("symbol", symbol).
				Str("timeframe", string(tf)).
				Dur("backoff", backoff).
				Err(lastErr).
				Msg("Retrying fetch")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		candles, err := p.fetchOnce(ctx, symbol, rng, from, to)
		if err == nil {
			return candles, nil
		}
		lastErr = err

		var srcErr *SourceError
		if errors.As(err, &srcErr) && !srcErr.Retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (p *PolygonSource) fetchOnce(ctx context.Context, symbol string, rng polygonRange, from, to time.Time) ([]model.Candle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/range/%d/%s/%s/%s?adjusted=true&sort=asc&limit=%d&apiKey=%s",
		polygonBaseURL, symbol, rng.multiplier, rng.timespan,
		from.Format("2006-01-02"), to.Format("2006-01-02"), polygonPageLimit, p.apiKey)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &SourceError{Source: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.limiter.SignalRateLimited()
		return nil, &SourceError{Source: p.Name(), Err: fmt.Errorf("rate limited"), Retryable: true}
	}

	if resp.StatusCode >= 500 {
		return nil, &SourceError{Source: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &SourceError{Source: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: false}
	}

	p.limiter.ResetBackoff()

	var data polygonResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if data.Error != "" {
		return nil, &SourceError{Source: p.Name(), Err: fmt.Errorf("%s", data.Error), Retryable: false}
	}

	// DELAYED is the free tier's status for otherwise valid data.
	if data.Status != "OK" && data.Status != "DELAYED" {
		return nil, &SourceError{Source: p.Name(), Err: fmt.Errorf("status %q", data.Status), Retryable: false}
	}

	if len(data.Results) == 0 {
		return nil, &SourceError{Source: p.Name(), Err: fmt.Errorf("no data available"), Retryable: false}
	}

	candles := make([]model.Candle, 0, len(data.Results))
	for _, r := range data.Results {
		candles = append(candles, model.Candle{
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: int64(r.Volume),
		})
	}
	return candles, nil
}
