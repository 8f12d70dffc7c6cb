// Package app wires configuration into a ready-to-run site auditor. Both the
// API server and the CLI build their dependencies through it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/user/site-auditor/internal/adapter/browser"
	"github.com/user/site-auditor/internal/adapter/logging"
	"github.com/user/site-auditor/internal/adapter/memory"
	"github.com/user/site-auditor/internal/adapter/postgres"
	"github.com/user/site-auditor/internal/adapter/proxy"
	"github.com/user/site-auditor/internal/adapter/ratelimit"
	redis_adapter "github.com/user/site-auditor/internal/adapter/redis"
	"github.com/user/site-auditor/internal/adapter/web"
	"github.com/user/site-auditor/internal/repository"
	"github.com/user/site-auditor/internal/usecase"
	"github.com/user/site-auditor/pkg/config"
	"github.com/user/site-auditor/pkg/metrics"
	"github.com/user/site-auditor/pkg/textmatch"
	"go.uber.org/zap"
)

// App holds the wired auditor and the optional backing stores.
type App struct {
	Auditor *usecase.SiteAuditor
	Metrics *metrics.Metrics

	// Runs, Queue and Recent fall back to process memory without Postgres
	// and Redis.
	Runs   repository.AuditRunRepository
	Queue  repository.AuditQueue
	Recent repository.RecentAuditRepository
	Events repository.EventReader
	// Collector receives every event when no durable event store is set.
	Collector *memory.Collector
	// Checks pings each configured backing service.
	Checks map[string]func(ctx context.Context) error

	closers []func() error
}

// Build connects to the configured services and assembles the auditor.
func Build(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Metrics:   metrics.New(reg),
		Checks:    make(map[string]func(ctx context.Context) error),
		Collector: memory.NewCollector(),
	}
	sinks := []repository.ReportSink{logging.NewSink(logger)}

	var (
		cache       repository.StatusCache = memory.NewStatusCache()
		brokenLinks repository.BrokenLinkRepository
	)
	a.Runs = memory.NewAuditRunRepo()
	a.Queue = memory.NewAuditQueue()
	a.Recent = memory.NewRecentAuditRepo()
	a.Events = a.Collector

	if cfg.Postgres.URL != "" {
		dbpool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { dbpool.Close(); return nil })
		if err := dbpool.Ping(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("PostgreSQL connection pool established")

		events := postgres.NewAuditEventRepo(dbpool)
		a.Runs = postgres.NewAuditRunRepo(dbpool)
		a.Events = events
		brokenLinks = postgres.NewBrokenLinkRepo(dbpool)
		sinks = append(sinks, events)
		a.Checks["postgres"] = dbpool.Ping
	} else {
		sinks = append(sinks, a.Collector)
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, rdb.Close)
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("Redis connection established")

		cache = redis_adapter.NewStatusCache(rdb)
		a.Queue = redis_adapter.NewQueueRepo(rdb)
		a.Recent = redis_adapter.NewRecentAuditRepo(rdb)
		if cfg.Redis.Stream != "" {
			sinks = append(sinks, redis_adapter.NewEventStream(rdb, cfg.Redis.Stream))
		}
		a.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	agents := proxy.NewManager(cfg.Status.Proxies, cfg.Crawl.UserAgent)
	limiter, err := ratelimit.New(cfg.Status.RequestRate, cfg.Status.PerHostRate)
	if err != nil {
		a.Close()
		return nil, err
	}
	fetcher := web.NewFetcher(web.Options{
		Timeout:      cfg.Sitemap.Timeout,
		MaxBodyBytes: cfg.Crawl.MaxBodyBytes,
		PerHostRate:  cfg.Status.PerHostRate,
		Agents:       agents,
	}, logger)

	validators := make([]*usecase.StatusValidator, cfg.Crawl.Workers)
	for i := range validators {
		validators[i] = usecase.NewStatusValidator(usecase.StatusOptions{
			HeadTimeout:      cfg.Status.HeadTimeout,
			GetTimeout:       cfg.Status.GetTimeout,
			Retries:          cfg.Status.Retries,
			RetryBackoff:     cfg.Status.RetryBackoff,
			HeadHostileHosts: cfg.Status.HeadHostileHosts,
			CacheTTL:         cfg.Redis.StatusTTL,
			Proxy:            agents.ProxyFunc(),
		}, limiter, agents, cache, a.Metrics, logger)
	}

	var (
		browsers repository.BrowserFactory
		links    repository.LinkExtractor = fetcher
	)
	if cfg.Crawl.Renderer == "browser" {
		factory := browser.NewFactory(browser.Options{
			Headless:        cfg.Browser.Headless,
			ExecPath:        cfg.Browser.ExecPath,
			UserAgent:       agents.UserAgent(),
			SettleDelay:     cfg.Browser.SettleDelay,
			PageLoadTimeout: cfg.Browser.PageLoadTimeout,
		}, logger)
		browsers = factory
		extractor := browser.NewLinkExtractor(factory)
		a.closers = append(a.closers, extractor.Close)
		links = extractor
	}

	crawlOpts := usecase.CrawlOptions{
		MaxPages:    cfg.Crawl.MaxPages,
		SkipMarkers: cfg.Crawl.SkipMarkers,
	}
	if cfg.Crawl.RespectRobots {
		guard := web.NewRobotsGuard(fetcher.Client(), agents.UserAgent())
		crawlOpts.Allow = guard.Allowed
	}

	parser := web.Parser{}
	a.Auditor = usecase.NewSiteAuditor(usecase.AuditDeps{
		Crawler: usecase.NewCrawler(validators, links, crawlOpts, a.Metrics, logger),
		Sitemaps: usecase.NewSitemapResolver(fetcher, parser, usecase.SitemapOptions{
			Timeout:     cfg.Sitemap.Timeout,
			MaxDepth:    cfg.Sitemap.MaxDepth,
			Concurrency: cfg.Sitemap.Concurrency,
		}, a.Metrics, logger),
		Validators: validators,
		Facts: usecase.NewFactChecker(
			textmatch.NewMatcher(cfg.Match.FuzzyThreshold, cfg.Match.PartialThreshold), parser, logger),
		CTAs: usecase.NewCTAValidator(usecase.CTAOptions{
			StaleRetries: cfg.Browser.StaleRetries,
			StaleDelay:   cfg.Browser.StaleDelay,
		}, a.Metrics, logger),
		Browsers:    browsers,
		Pages:       fetcher,
		BrokenLinks: brokenLinks,
		Sinks:       sinks,
	}, usecase.AuditOptions{
		Mode:               cfg.Audit.Mode,
		MaxPages:           cfg.Crawl.MaxPages,
		MaxRenderPages:     cfg.Audit.MaxRenderPages,
		FactsEveryPage:     cfg.Audit.FactsEveryPage,
		ValidateCTAs:       cfg.Audit.ValidateCTAs,
		CheckExternalLinks: cfg.Audit.CheckExternalLinks,
		PageResetRetries:   cfg.Browser.PageResetRetries,
		SiteConcurrency:    cfg.Audit.SiteConcurrency,
		SkipMarkers:        cfg.Crawl.SkipMarkers,
	}, a.Metrics, logger)

	logger.Info("auditor ready",
		zap.String("renderer", cfg.Crawl.Renderer),
		zap.String("mode", cfg.Audit.Mode),
		zap.Int("workers", cfg.Crawl.Workers),
		zap.Bool("postgres", cfg.Postgres.URL != ""),
		zap.Bool("redis", cfg.Redis.Addr != ""))
	return a, nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
