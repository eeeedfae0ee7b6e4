// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"quantsignals/internal/backtest"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Data describes where price bars and news come from and how aggressively
// to retry the upstreams.
type Data struct {
	Provider          string `yaml:"provider"` // "stub" or "live"
	StreamBaseURL     string `yaml:"stream_base_url"`
	StreamInterval    string `yaml:"stream_interval"`
	NewsLookbackHours int    `yaml:"news_lookback_hours"`
	MaxAttempts       int    `yaml:"max_attempts"`
	RetryBaseMs       int    `yaml:"retry_base_ms"`
	CallTimeoutMs     int    `yaml:"call_timeout_ms"`
}

// NewsLookback returns the configured lookback window, defaulting to 24h.
func (d Data) NewsLookback() time.Duration {
	if d.NewsLookbackHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(d.NewsLookbackHours) * time.Hour
}

// Risk encodes guard-rails applied to every signal before execution.
type Risk struct {
	MaxPositionFraction  float64 `yaml:"max_position_fraction"`
	MaxDailyLossFraction float64 `yaml:"max_daily_loss_fraction"`
	StopLossFraction     float64 `yaml:"stop_loss_fraction"`
	DuplicateWindowHours int     `yaml:"duplicate_window_hours"`
}

// Breaker tunes the circuit breaker shared by all upstream calls.
type Breaker struct {
	FailureThreshold int `yaml:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs"`
}

// Backtest wraps a single run definition plus the output paths for its
// artifacts.
type Backtest struct {
	Run        backtest.Config `yaml:"run"`
	TradesPath string          `yaml:"trades_path"`
}

// Store points at the SQLite database file.
type Store struct {
	Path string `yaml:"path"`
}

// Signals configures the periodic generation job.
type Signals struct {
	Symbols      []string `yaml:"symbols"`
	IntervalSecs int      `yaml:"interval_secs"`
	LookbackDays int      `yaml:"lookback_days"`
}

// Interval returns the generation cadence, defaulting to 60s.
func (s Signals) Interval() time.Duration {
	if s.IntervalSecs <= 0 {
		return time.Minute
	}
	return time.Duration(s.IntervalSecs) * time.Second
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Data     Data     `yaml:"data"`
	Risk     Risk     `yaml:"risk"`
	Breaker  Breaker  `yaml:"breaker"`
	Backtest Backtest `yaml:"backtest"`
	Store    Store    `yaml:"store"`
	Signals  Signals  `yaml:"signals"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
