// Package config loads the application configuration from YAML with
// environment overrides for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"stratscan/internal/alert"
	"stratscan/internal/schedule"
	"stratscan/internal/sim"
	"stratscan/internal/stats"
	"stratscan/pkg/model"
)

// Config represents the application configuration
type Config struct {
	Polygon  PolygonConfig  `yaml:"polygon"`
	Cache    CacheConfig    `yaml:"cache"`
	Scan     ScanConfig     `yaml:"scan"`
	Risk     sim.RiskModel  `yaml:"risk"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Log      LogConfig      `yaml:"log"`
}

// PolygonConfig holds data provider settings
type PolygonConfig struct {
	APIKey    string `yaml:"api_key"`
	RateLimit int    `yaml:"rate_limit"` // requests per minute
}

// CacheConfig holds bar cache settings
type CacheConfig struct {
	Dir      string `yaml:"dir"`
	TTLHours int    `yaml:"ttl_hours"`
}

// TTL returns the cache expiry as a duration
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// ScanConfig holds pipeline settings
type ScanConfig struct {
	Universe      string            `yaml:"universe"`
	Symbols       []string          `yaml:"symbols"`
	Timeframes    []model.Timeframe `yaml:"timeframes"`
	Workers       int               `yaml:"workers"`
	MinConfluence int               `yaml:"min_confluence"`
	LookaheadBars int               `yaml:"lookahead_bars"`
	HistoryMonths int               `yaml:"history_months"`
}

// AnalysisConfig holds aggregation and simulation settings
type AnalysisConfig struct {
	GroupBy       []string `yaml:"group_by"`
	Horizons      []int    `yaml:"horizons"`
	LookbackWeeks int      `yaml:"lookback_weeks"`
	MinSamples    int      `yaml:"min_samples"`
	TopN          int      `yaml:"top_n"`
	Side          string   `yaml:"side"`
	Precision     string   `yaml:"precision"`
	Boundary      string   `yaml:"boundary"`
}

// AlertsConfig holds notification settings
type AlertsConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Thresholds alert.Thresholds `yaml:"thresholds"`
	Telegram   TelegramConfig   `yaml:"telegram"`
}

// TelegramConfig holds Telegram bot credentials
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// ScheduleConfig holds the scan calendar
type ScheduleConfig struct {
	Entries []schedule.Entry `yaml:"entries"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Polygon: PolygonConfig{
			APIKey:    os.Getenv("POLYGON_API_KEY"),
			RateLimit: 100, // free tier allows 5
		},
		Cache: CacheConfig{
			Dir:      "data_cache",
			TTLHours: 24,
		},
		Scan: ScanConfig{
			Universe:      "default",
			Timeframes:    []model.Timeframe{model.TF1Hour, model.TF4Hour, model.TFDaily, model.TFWeekly},
			Workers:       8,
			MinConfluence: 3,
			LookaheadBars: 10,
			HistoryMonths: 6,
		},
		Risk: sim.DefaultRiskModel(),
		Analysis: AnalysisConfig{
			GroupBy:       []string{stats.GroupByTimeframe, stats.GroupByPattern},
			Horizons:      []int{1, 3, 5, 10},
			LookbackWeeks: 52,
			MinSamples:    10,
			TopN:          10,
			Side:          string(sim.SideLong),
			Precision:     string(sim.PrecisionOHLC),
			Boundary:      string(sim.BoundaryInclusive),
		},
		Alerts: AlertsConfig{
			Enabled:    false,
			Thresholds: alert.DefaultThresholds(),
			Telegram: TelegramConfig{
				BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
				ChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
			},
		},
		Schedule: ScheduleConfig{
			Entries: schedule.DefaultEntries(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if file doesn't exist
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Override with environment variables if set
	if key := os.Getenv("POLYGON_API_KEY"); key != "" {
		cfg.Polygon.APIKey = key
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Alerts.Telegram.BotToken = token
	}
	if chat := os.Getenv("TELEGRAM_CHAT_ID"); chat != "" {
		cfg.Alerts.Telegram.ChatID = chat
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Polygon.APIKey == "" {
		return fmt.Errorf("polygon API key is required (set POLYGON_API_KEY or polygon.api_key)")
	}
	if c.Polygon.RateLimit < 1 {
		return fmt.Errorf("polygon rate_limit must be at least 1")
	}
	if c.Cache.TTLHours < 1 {
		return fmt.Errorf("cache ttl_hours must be at least 1")
	}
	if c.Scan.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.Scan.MinConfluence < 0 {
		return fmt.Errorf("min_confluence cannot be negative")
	}
	if c.Scan.LookaheadBars < 1 {
		return fmt.Errorf("lookahead_bars must be at least 1")
	}
	if c.Scan.HistoryMonths < 1 {
		return fmt.Errorf("history_months must be at least 1")
	}
	for _, tf := range c.Scan.Timeframes {
		if !tf.Valid() {
			return fmt.Errorf("unknown timeframe %q", tf)
		}
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if _, err := sim.ParseSide(c.Analysis.Side); err != nil {
		return err
	}
	if _, err := sim.ParsePrecision(c.Analysis.Precision); err != nil {
		return err
	}
	if _, err := sim.ParseBoundary(c.Analysis.Boundary); err != nil {
		return err
	}
	for _, h := range c.Analysis.Horizons {
		if h < 1 {
			return fmt.Errorf("horizons must be at least 1 bar, got %d", h)
		}
	}
	return nil
}

// StatsOptions assembles the aggregation options from the analysis
// section
func (c *Config) StatsOptions() stats.Options {
	return stats.Options{
		GroupBy:       c.Analysis.GroupBy,
		Horizons:      c.Analysis.Horizons,
		LookbackWeeks: c.Analysis.LookbackWeeks,
		MinSamples:    c.Analysis.MinSamples,
	}
}

// SimOptions assembles the simulation options from the analysis
// section. Call Validate first; unknown values fall back to defaults.
func (c *Config) SimOptions() sim.Options {
	opts := sim.DefaultOptions()
	if p, err := sim.ParsePrecision(c.Analysis.Precision); err == nil {
		opts.Precision = p
	}
	if b, err := sim.ParseBoundary(c.Analysis.Boundary); err == nil {
		opts.Boundary = b
	}
	return opts
}

// Side resolves the configured trade direction policy
func (c *Config) Side() sim.Side {
	if s, err := sim.ParseSide(c.Analysis.Side); err == nil {
		return s
	}
	return sim.SideLong
}
