package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cardhawk/internal/acquire"
	"cardhawk/internal/analyze"
	s3blob "cardhawk/internal/blob/s3"
	"cardhawk/internal/browser"
	"cardhawk/internal/cache/redis"
	"cardhawk/internal/config"
	"cardhawk/internal/correlate"
	"cardhawk/internal/domain"
	"cardhawk/internal/export"
	"cardhawk/internal/notify"
	"cardhawk/internal/parse"
	"cardhawk/internal/pipeline"
	"cardhawk/internal/platform/openai"
	"cardhawk/internal/session"
	"cardhawk/internal/store/postgres"
)

// Dependencies bundles everything the application needs to execute a run. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Pipeline *pipeline.Pipeline
	RunLock  *redis.RunLock
	Notifier *notify.Notifier

	// Stores, exposed for catalog and price seeding.
	Catalog   *postgres.CatalogStore
	RefPrices *postgres.PriceStore
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL: card catalog, reference prices, opportunity history ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Catalog = postgres.NewCatalogStore(pool)
	deps.RefPrices = postgres.NewPriceStore(pool)
	oppStore := postgres.NewOpportunityStore(pool)

	// --- Redis: burned identities, price cache, run lock ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	burned := redis.NewBurnedCache(redisClient, cfg.Redis.BurnTTL.Duration)
	prices := redis.NewPriceCache(redisClient, deps.RefPrices, cfg.Redis.PriceCacheTTL.Duration)
	deps.RunLock = redis.NewRunLock(redisClient)

	// --- S3: raw page snapshots and run output archive ---
	var archiver pipeline.Archiver
	s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       cfg.S3.Endpoint,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		UseSSL:         cfg.S3.UseSSL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: s3: %w", err)
	}
	closers = append(closers, func() { _ = s3Client.Close() })
	archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client))

	// --- Acquisition ---
	chrome := browser.New(browser.Options{
		Headless:         cfg.Browser.Headless,
		NavTimeout:       cfg.Browser.NavTimeout.Duration,
		PageReadyTimeout: cfg.Browser.PageReadyTimeout.Duration,
	}, logger)
	closers = append(closers, func() { _ = chrome.Close() })

	seed := time.Now().UnixNano()
	sessions := session.NewManager(session.DefaultPool(), burned, logger, seed)
	parser := parse.NewParser(cfg.Marketplace.BaseURL, logger)
	engine := acquire.NewEngine(acquire.Config{
		BaseURL:     cfg.Marketplace.BaseURL,
		MaxRetries:  cfg.Scrape.MaxRetries,
		MinDelay:    cfg.Scrape.MinDelay.Duration,
		MaxDelay:    cfg.Scrape.MaxDelay.Duration,
		BackoffBase: cfg.Scrape.BackoffBase.Duration,
		BackoffMax:  cfg.Scrape.BackoffMax.Duration,
	}, chrome, sessions, parser, logger, seed)

	// --- Analysis ---
	classifier := openai.NewClient(
		cfg.Analyzer.BaseURL,
		cfg.Analyzer.ApiKey,
		cfg.Analyzer.Model,
		cfg.Analyzer.RequestTimeout.Duration,
	)
	analyzer := analyze.New(analyze.Config{
		Workers:              cfg.Analyzer.Workers,
		SimilarityThreshold:  cfg.Analyzer.SimilarityThreshold,
		HighConfidenceCutoff: cfg.Analyzer.HighConfidenceCutoff,
	}, classifier, deps.Catalog, logger)

	// --- Correlation ---
	rates := make(map[domain.Currency]float64, len(cfg.Correlate.Rates))
	for code, rate := range cfg.Correlate.Rates {
		rates[domain.Currency(code)] = rate
	}
	correlator := correlate.New(correlate.Config{
		StalenessBound:  cfg.Correlate.StalenessBound.Duration,
		FeeEstimate:     cfg.Correlate.FeeEstimate,
		TargetCurrency:  domain.Currency(cfg.Correlate.TargetCurrency),
		Rates:           rates,
		ConfidenceFloor: cfg.Correlate.ConfidenceFloor,
	}, prices, logger)

	// --- Output sinks ---
	var sinks []domain.Sink
	for _, format := range cfg.Output.Formats {
		switch format {
		case "jsonl":
			sinks = append(sinks, export.NewJSONLSink(cfg.Output.Dir))
		case "csv":
			sinks = append(sinks, export.NewCSVSink(cfg.Output.Dir))
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	deps.Pipeline = pipeline.New(pipeline.Config{
		SearchTerms:     cfg.Marketplace.SearchTerms,
		MaxPages:        cfg.Marketplace.MaxPages,
		ArchiveRawPages: cfg.S3.ArchiveRawPages,
		HotMargin:       cfg.Notify.HotMargin,
	}, pipeline.Deps{
		Engine:        engine,
		Parser:        parser,
		Analyzer:      analyzer,
		Correlator:    correlator,
		Opportunities: oppStore,
		Sinks:         sinks,
		Archiver:      archiver,
		Notifier:      deps.Notifier,
	}, logger)

	return deps, cleanup, nil
}
