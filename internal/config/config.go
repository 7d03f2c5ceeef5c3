// Package config loads and validates pdfpull configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Input       string            `mapstructure:"input"`
	OutputDir   string            `mapstructure:"output_dir"`
	FailedFile  string            `mapstructure:"failed_file"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Resume      ResumeConfig      `mapstructure:"resume"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Scrape      ScrapeConfig      `mapstructure:"scrape"`
	Status      StatusConfig      `mapstructure:"status"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// FetchConfig governs the download engine behavior.
type FetchConfig struct {
	Concurrency      int      `mapstructure:"concurrency"`
	TimeoutSeconds   int      `mapstructure:"timeout_seconds"`
	Retries          int      `mapstructure:"retries"`
	MinDelayMs       int      `mapstructure:"min_delay_ms"`
	MaxDelayMs       int      `mapstructure:"max_delay_ms"`
	BlockPauseSec    int      `mapstructure:"block_pause_seconds"`
	BlockMarkers     []string `mapstructure:"block_markers"`
	GlobalRPS        float64  `mapstructure:"global_rps"`
	Validate         bool     `mapstructure:"validate"`
	CorruptThreshold int      `mapstructure:"corrupt_threshold"`
	BackoffBaseSec   int      `mapstructure:"backoff_base_seconds"`
	BackoffMaxSec    int      `mapstructure:"backoff_max_seconds"`
	UserAgents       []string `mapstructure:"user_agents"`
	ProgressMs       int      `mapstructure:"progress_interval_ms"`
}

// ResumeMode selects how existing output is treated on re-runs.
type ResumeMode string

// Supported resume modes.
const (
	ResumeOff    ResumeMode = "off"
	ResumeFast   ResumeMode = "fast"
	ResumeStrict ResumeMode = "strict"
)

// ResumeConfig controls the completed-URL ledger and skip verification.
type ResumeConfig struct {
	Mode       ResumeMode `mapstructure:"mode"`
	Provider   string     `mapstructure:"provider"`
	File       string     `mapstructure:"file"`
	DSN        string     `mapstructure:"dsn"`
	FlushEvery int        `mapstructure:"flush_every"`
}

// CredentialsConfig defines where session cookies come from.
type CredentialsConfig struct {
	Cookies      string `mapstructure:"cookies"`
	CookieFile   string `mapstructure:"cookie_file"`
	StorageState string `mapstructure:"storage_state"`
	RefreshURL   string `mapstructure:"refresh_url"`
	Headless     bool   `mapstructure:"headless"`
}

// ScrapeConfig governs PDF link discovery over paginated listings.
type ScrapeConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	StartPage      int    `mapstructure:"start_page"`
	EndPage        int    `mapstructure:"end_page"`
	OutFile        string `mapstructure:"out_file"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StatusConfig controls the operational HTTP endpoint.
type StatusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PDFPULL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input", "pdf-links.txt")
	v.SetDefault("output_dir", "downloads")
	v.SetDefault("failed_file", "failed.txt")

	// Concurrency is intentionally low: bursting a defended server is the
	// fastest way to get the whole run blocked.
	v.SetDefault("fetch.concurrency", 5)
	v.SetDefault("fetch.timeout_seconds", 60)
	v.SetDefault("fetch.retries", 5)
	v.SetDefault("fetch.min_delay_ms", 1000)
	v.SetDefault("fetch.max_delay_ms", 3000)
	v.SetDefault("fetch.block_pause_seconds", 1200)
	v.SetDefault("fetch.block_markers", []string{"Access Denied"})
	v.SetDefault("fetch.global_rps", 0.0)
	v.SetDefault("fetch.validate", true)
	v.SetDefault("fetch.corrupt_threshold", 5)
	v.SetDefault("fetch.backoff_base_seconds", 5)
	v.SetDefault("fetch.backoff_max_seconds", 60)
	v.SetDefault("fetch.progress_interval_ms", 500)

	v.SetDefault("resume.mode", string(ResumeStrict))
	v.SetDefault("resume.provider", "file")
	v.SetDefault("resume.file", "completed.txt")
	v.SetDefault("resume.flush_every", 50)

	v.SetDefault("credentials.headless", false)

	v.SetDefault("scrape.start_page", 0)
	v.SetDefault("scrape.end_page", 0)
	v.SetDefault("scrape.out_file", "pdf-links.txt")
	v.SetDefault("scrape.timeout_seconds", 30)

	v.SetDefault("status.enabled", false)
	v.SetDefault("status.port", 8080)

	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must be set")
	}
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.Retries < 0 {
		return fmt.Errorf("fetch.retries must be >= 0")
	}
	if c.Fetch.MinDelayMs < 0 {
		return fmt.Errorf("fetch.min_delay_ms must be >= 0")
	}
	if c.Fetch.MaxDelayMs < c.Fetch.MinDelayMs {
		return fmt.Errorf("fetch.max_delay_ms must be >= fetch.min_delay_ms")
	}
	if c.Fetch.BlockPauseSec < 60 {
		return fmt.Errorf("fetch.block_pause_seconds must be >= 60")
	}
	if c.Fetch.CorruptThreshold <= 0 {
		return fmt.Errorf("fetch.corrupt_threshold must be > 0")
	}
	switch c.Resume.Mode {
	case ResumeOff, ResumeFast, ResumeStrict:
	default:
		return fmt.Errorf("resume.mode must be one of off, fast, strict")
	}
	switch c.Resume.Provider {
	case "file", "postgres":
	default:
		return fmt.Errorf("resume.provider must be file or postgres")
	}
	if c.Resume.Provider == "postgres" && c.Resume.DSN == "" {
		return fmt.Errorf("resume.dsn must be set when resume.provider is postgres")
	}
	if c.Resume.FlushEvery <= 0 {
		return fmt.Errorf("resume.flush_every must be > 0")
	}
	if c.Status.Enabled && c.Status.Port <= 0 {
		return fmt.Errorf("status.port must be > 0 when status is enabled")
	}
	return nil
}

// RequestTimeout converts the per-request timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// MinDelay returns the lower bound of the per-host request spacing.
func (c Config) MinDelay() time.Duration {
	return time.Duration(c.Fetch.MinDelayMs) * time.Millisecond
}

// MaxDelay returns the upper bound of the per-host request spacing.
func (c Config) MaxDelay() time.Duration {
	return time.Duration(c.Fetch.MaxDelayMs) * time.Millisecond
}

// BlockPause returns the global cooldown applied after a hard block signal.
func (c Config) BlockPause() time.Duration {
	return time.Duration(c.Fetch.BlockPauseSec) * time.Second
}
