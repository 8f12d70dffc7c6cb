// Command auditor audits one or more websites from the command line and
// exits non-zero when any check fails.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/user/site-auditor/internal/app"
	"github.com/user/site-auditor/internal/repository"
	"github.com/user/site-auditor/pkg/config"
	"github.com/user/site-auditor/pkg/logger"
	"go.uber.org/zap"
)

// errChecksFailed signals a completed run with at least one failed check.
var errChecksFailed = errors.New("audit found failures")

func main() {
	err := run()
	switch {
	case err == nil:
	case errors.Is(err, errChecksFailed):
		os.Exit(1)
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func run() error {
	flags := pflag.NewFlagSet("auditor", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to a YAML, JSON or TOML config file")
	factsPath := flags.String("facts", "", "CSV or XLSX brief with one site per row")
	site := flags.String("site", "", "audit a single website")
	sitemap := flags.String("sitemap", "", "sitemap URL for --site")
	flags.Int("max-pages", 0, "page cap per site (0 keeps the configured value)")
	flags.String("mode", "", "discovery mode: auto, sitemap, crawl or both")
	flags.String("renderer", "", "page renderer: http or browser")
	flags.Int("workers", 0, "status validator workers per site")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	targets, err := buildTargets(*factsPath, *site, *sitemap, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.Build(ctx, cfg, prometheus.NewRegistry(), log)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Warn("failed to close dependencies", zap.Error(err))
		}
	}()

	log.Info("auditing sites", zap.Int("count", len(targets)))
	var extra []repository.ReportSink
	if application.Events != application.Collector {
		// Build only feeds the collector when no event store is configured.
		extra = append(extra, application.Collector)
	}
	summaries := application.Auditor.AuditBatch(ctx, targets, extra...)

	printSummaries(os.Stdout, summaries)
	fmt.Fprintln(os.Stdout)
	printFailures(os.Stdout, application.Collector.Failures())

	if anyFailed(summaries) {
		return errChecksFailed
	}
	return nil
}
