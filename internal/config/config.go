// Package config defines the top-level configuration for the cardhawk
// pipeline and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by CARDHAWK_* environment variables.
type Config struct {
	Marketplace MarketplaceConfig `toml:"marketplace"`
	Browser     BrowserConfig     `toml:"browser"`
	Scrape      ScrapeConfig      `toml:"scrape"`
	Analyzer    AnalyzerConfig    `toml:"analyzer"`
	Correlate   CorrelateConfig   `toml:"correlate"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Output      OutputConfig      `toml:"output"`
	Notify      NotifyConfig      `toml:"notify"`
	LogLevel    string            `toml:"log_level"`
}

// MarketplaceConfig identifies the source marketplace and the searches to run.
type MarketplaceConfig struct {
	BaseURL     string   `toml:"base_url"`
	SearchTerms []string `toml:"search_terms"`
	MaxPages    int      `toml:"max_pages"`
}

// BrowserConfig holds browser-automation parameters.
type BrowserConfig struct {
	Headless         bool     `toml:"headless"`
	NavTimeout       duration `toml:"nav_timeout"`
	PageReadyTimeout duration `toml:"page_ready_timeout"`
}

// ScrapeConfig holds retry, backoff, and pacing parameters for the
// acquisition engine.
type ScrapeConfig struct {
	MaxRetries  int      `toml:"max_retries"`
	MinDelay    duration `toml:"min_delay"`
	MaxDelay    duration `toml:"max_delay"`
	BackoffBase duration `toml:"backoff_base"`
	BackoffMax  duration `toml:"backoff_max"`
}

// AnalyzerConfig holds AI-classification parameters.
type AnalyzerConfig struct {
	ApiKey               string   `toml:"api_key"`
	BaseURL              string   `toml:"base_url"`
	Model                string   `toml:"model"`
	Workers              int      `toml:"workers"`
	SimilarityThreshold  float64  `toml:"similarity_threshold"`
	HighConfidenceCutoff float64  `toml:"high_confidence_cutoff"`
	RequestTimeout       duration `toml:"request_timeout"`
}

// CorrelateConfig holds price-correlation parameters. Rates maps a source
// currency code to the number of target-currency units per source unit; the
// target currency itself must map to 1.
type CorrelateConfig struct {
	StalenessBound  duration           `toml:"staleness_bound"`
	FeeEstimate     float64            `toml:"fee_estimate"` // in target currency
	TargetCurrency  string             `toml:"target_currency"`
	Rates           map[string]float64 `toml:"rates"`
	ConfidenceFloor float64            `toml:"confidence_floor"`
}

// PostgresConfig holds PostgreSQL connection parameters for the card catalog,
// reference price store, and opportunity history.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr          string   `toml:"addr"`
	Password      string   `toml:"password"`
	DB            int      `toml:"db"`
	PoolSize      int      `toml:"pool_size"`
	MaxRetries    int      `toml:"max_retries"`
	TLSEnabled    bool     `toml:"tls_enabled"`
	BurnTTL       duration `toml:"burn_ttl"`
	PriceCacheTTL duration `toml:"price_cache_ttl"`
}

// S3Config holds S3-compatible object storage parameters for raw-page and
// run-output archival.
type S3Config struct {
	Endpoint        string `toml:"endpoint"`
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	AccessKey       string `toml:"access_key"`
	SecretKey       string `toml:"secret_key"`
	UseSSL          bool   `toml:"use_ssl"`
	ForcePathStyle  bool   `toml:"force_path_style"`
	ArchiveRawPages bool   `toml:"archive_raw_pages"`
}

// OutputConfig holds local output sink parameters.
type OutputConfig struct {
	Dir     string   `toml:"dir"`
	Formats []string `toml:"formats"` // "jsonl", "csv"
}

// NotifyConfig holds notification channel credentials. HotMargin is the
// per-opportunity margin, in the target currency, above which an immediate
// alert is sent; zero disables hot alerts.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	HotMargin         float64  `toml:"hot_margin"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Marketplace: MarketplaceConfig{
			BaseURL:     "https://buyee.jp",
			SearchTerms: []string{"遊戯王 アジア"},
			MaxPages:    5,
		},
		Browser: BrowserConfig{
			Headless:         true,
			NavTimeout:       duration{30 * time.Second},
			PageReadyTimeout: duration{20 * time.Second},
		},
		Scrape: ScrapeConfig{
			MaxRetries:  3,
			MinDelay:    duration{3 * time.Second},
			MaxDelay:    duration{7 * time.Second},
			BackoffBase: duration{2 * time.Second},
			BackoffMax:  duration{5 * time.Minute},
		},
		Analyzer: AnalyzerConfig{
			BaseURL:              "https://api.openai.com/v1",
			Model:                "gpt-4o",
			Workers:              3,
			SimilarityThreshold:  0.6,
			HighConfidenceCutoff: 0.8,
			RequestTimeout:       duration{60 * time.Second},
		},
		Correlate: CorrelateConfig{
			StalenessBound: duration{30 * 24 * time.Hour},
			FeeEstimate:    500,
			TargetCurrency: "JPY",
			Rates: map[string]float64{
				"JPY": 1,
				"USD": 150,
			},
			ConfidenceFloor: 0.5,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "cardhawk",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			DB:            0,
			PoolSize:      10,
			MaxRetries:    3,
			TLSEnabled:    false,
			BurnTTL:       duration{6 * time.Hour},
			PriceCacheTTL: duration{15 * time.Minute},
		},
		S3: S3Config{
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "cardhawk-data",
			UseSSL:          false,
			ForcePathStyle:  true,
			ArchiveRawPages: true,
		},
		Output: OutputConfig{
			Dir:     "results",
			Formats: []string{"jsonl", "csv"},
		},
		Notify: NotifyConfig{
			Events:    []string{"run_complete", "hot_opportunity", "error"},
			HotMargin: 3000,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validFormats = map[string]bool{
	"jsonl": true,
	"csv":   true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Marketplace
	if c.Marketplace.BaseURL == "" {
		errs = append(errs, "marketplace: base_url must not be empty")
	}
	if len(c.Marketplace.SearchTerms) == 0 {
		errs = append(errs, "marketplace: at least one search term is required")
	}
	if c.Marketplace.MaxPages < 1 {
		errs = append(errs, "marketplace: max_pages must be >= 1")
	}

	// Scrape
	if c.Scrape.MaxRetries < 0 {
		errs = append(errs, "scrape: max_retries must be >= 0")
	}
	if c.Scrape.MinDelay.Duration <= 0 {
		errs = append(errs, "scrape: min_delay must be > 0")
	}
	if c.Scrape.MaxDelay.Duration < c.Scrape.MinDelay.Duration {
		errs = append(errs, "scrape: max_delay must be >= min_delay")
	}
	if c.Scrape.BackoffBase.Duration <= 0 {
		errs = append(errs, "scrape: backoff_base must be > 0")
	}

	// Analyzer
	if c.Analyzer.ApiKey == "" {
		errs = append(errs, "analyzer: api_key is required")
	}
	if c.Analyzer.Model == "" {
		errs = append(errs, "analyzer: model must not be empty")
	}
	if c.Analyzer.Workers < 1 {
		errs = append(errs, "analyzer: workers must be >= 1")
	}
	if c.Analyzer.SimilarityThreshold <= 0 || c.Analyzer.SimilarityThreshold > 1 {
		errs = append(errs, "analyzer: similarity_threshold must be in (0,1]")
	}
	if c.Analyzer.HighConfidenceCutoff <= 0 || c.Analyzer.HighConfidenceCutoff > 1 {
		errs = append(errs, "analyzer: high_confidence_cutoff must be in (0,1]")
	}

	// Correlate
	if c.Correlate.StalenessBound.Duration <= 0 {
		errs = append(errs, "correlate: staleness_bound must be > 0")
	}
	if c.Correlate.FeeEstimate < 0 {
		errs = append(errs, "correlate: fee_estimate must be >= 0")
	}
	if c.Correlate.TargetCurrency == "" {
		errs = append(errs, "correlate: target_currency must not be empty")
	}
	if rate, ok := c.Correlate.Rates[c.Correlate.TargetCurrency]; ok && rate != 1 {
		errs = append(errs, fmt.Sprintf("correlate: rate for target currency %s must be 1, got %g", c.Correlate.TargetCurrency, rate))
	}
	if c.Correlate.ConfidenceFloor < 0 || c.Correlate.ConfidenceFloor > 1 {
		errs = append(errs, "correlate: confidence_floor must be in [0,1]")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}
	if c.Redis.BurnTTL.Duration <= 0 {
		errs = append(errs, "redis: burn_ttl must be > 0")
	}

	// S3
	if c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty")
	}
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Notify
	if c.Notify.HotMargin < 0 {
		errs = append(errs, "notify: hot_margin must be >= 0")
	}

	// Output
	if c.Output.Dir == "" {
		errs = append(errs, "output: dir must not be empty")
	}
	for _, f := range c.Output.Formats {
		if !validFormats[strings.ToLower(f)] {
			errs = append(errs, fmt.Sprintf("output: unknown format %q (valid: jsonl, csv)", f))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
