package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CARDHAWK_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CARDHAWK_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Marketplace ──
	setStr(&cfg.Marketplace.BaseURL, "CARDHAWK_MARKETPLACE_BASE_URL")
	setStringSlice(&cfg.Marketplace.SearchTerms, "CARDHAWK_MARKETPLACE_SEARCH_TERMS")
	setInt(&cfg.Marketplace.MaxPages, "CARDHAWK_MARKETPLACE_MAX_PAGES")

	// ── Browser ──
	setBool(&cfg.Browser.Headless, "CARDHAWK_BROWSER_HEADLESS")
	setDuration(&cfg.Browser.NavTimeout, "CARDHAWK_BROWSER_NAV_TIMEOUT")
	setDuration(&cfg.Browser.PageReadyTimeout, "CARDHAWK_BROWSER_PAGE_READY_TIMEOUT")

	// ── Scrape ──
	setInt(&cfg.Scrape.MaxRetries, "CARDHAWK_SCRAPE_MAX_RETRIES")
	setDuration(&cfg.Scrape.MinDelay, "CARDHAWK_SCRAPE_MIN_DELAY")
	setDuration(&cfg.Scrape.MaxDelay, "CARDHAWK_SCRAPE_MAX_DELAY")
	setDuration(&cfg.Scrape.BackoffBase, "CARDHAWK_SCRAPE_BACKOFF_BASE")
	setDuration(&cfg.Scrape.BackoffMax, "CARDHAWK_SCRAPE_BACKOFF_MAX")

	// ── Analyzer ──
	setStr(&cfg.Analyzer.ApiKey, "CARDHAWK_ANALYZER_API_KEY")
	setStr(&cfg.Analyzer.ApiKey, "OPENAI_API_KEY") // compatibility alias
	setStr(&cfg.Analyzer.BaseURL, "CARDHAWK_ANALYZER_BASE_URL")
	setStr(&cfg.Analyzer.Model, "CARDHAWK_ANALYZER_MODEL")
	setInt(&cfg.Analyzer.Workers, "CARDHAWK_ANALYZER_WORKERS")
	setFloat64(&cfg.Analyzer.SimilarityThreshold, "CARDHAWK_ANALYZER_SIMILARITY_THRESHOLD")
	setFloat64(&cfg.Analyzer.HighConfidenceCutoff, "CARDHAWK_ANALYZER_HIGH_CONFIDENCE_CUTOFF")
	setDuration(&cfg.Analyzer.RequestTimeout, "CARDHAWK_ANALYZER_REQUEST_TIMEOUT")

	// ── Correlate ──
	setDuration(&cfg.Correlate.StalenessBound, "CARDHAWK_CORRELATE_STALENESS_BOUND")
	setFloat64(&cfg.Correlate.FeeEstimate, "CARDHAWK_CORRELATE_FEE_ESTIMATE")
	setStr(&cfg.Correlate.TargetCurrency, "CARDHAWK_CORRELATE_TARGET_CURRENCY")
	setFloat64(&cfg.Correlate.ConfidenceFloor, "CARDHAWK_CORRELATE_CONFIDENCE_FLOOR")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "CARDHAWK_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "CARDHAWK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CARDHAWK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CARDHAWK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CARDHAWK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CARDHAWK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CARDHAWK_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CARDHAWK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CARDHAWK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CARDHAWK_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "CARDHAWK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CARDHAWK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CARDHAWK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CARDHAWK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CARDHAWK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CARDHAWK_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.BurnTTL, "CARDHAWK_REDIS_BURN_TTL")
	setDuration(&cfg.Redis.PriceCacheTTL, "CARDHAWK_REDIS_PRICE_CACHE_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "CARDHAWK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CARDHAWK_S3_REGION")
	setStr(&cfg.S3.Bucket, "CARDHAWK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CARDHAWK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CARDHAWK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CARDHAWK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CARDHAWK_S3_FORCE_PATH_STYLE")
	setBool(&cfg.S3.ArchiveRawPages, "CARDHAWK_S3_ARCHIVE_RAW_PAGES")

	// ── Output ──
	setStr(&cfg.Output.Dir, "CARDHAWK_OUTPUT_DIR")
	setStringSlice(&cfg.Output.Formats, "CARDHAWK_OUTPUT_FORMATS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CARDHAWK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CARDHAWK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CARDHAWK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CARDHAWK_NOTIFY_EVENTS")
	setFloat64(&cfg.Notify.HotMargin, "CARDHAWK_NOTIFY_HOT_MARGIN")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "CARDHAWK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
