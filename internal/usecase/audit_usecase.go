package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/internal/repository"
	"github.com/user/site-auditor/pkg/metrics"
	"github.com/user/site-auditor/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Discovery modes.
const (
	ModeAuto    = "auto"
	ModeSitemap = "sitemap"
	ModeCrawl   = "crawl"
	ModeBoth    = "both"
)

var (
	ErrInvalidTarget = errors.New("site target has no valid website")
	ErrNoBrowser     = errors.New("rendering browser unavailable")
)

// AuditOptions configures a site audit.
type AuditOptions struct {
	Mode               string
	MaxPages           int
	MaxRenderPages     int
	FactsEveryPage     bool
	ValidateCTAs       bool
	CheckExternalLinks bool
	PageResetRetries   int
	SiteConcurrency    int
	SkipMarkers        []string
}

// AuditDeps are the collaborators of a SiteAuditor. Browsers, Pages,
// BrokenLinks and Sinks are optional.
type AuditDeps struct {
	Crawler    *Crawler
	Sitemaps   *SitemapResolver
	Validators []*StatusValidator
	Facts      *FactChecker
	CTAs       *CTAValidator
	// Browsers renders pages; without it facts are checked on static HTML
	// fetched through Pages and CTA validation is skipped.
	Browsers    repository.BrowserFactory
	Pages       repository.ContentFetcher
	BrokenLinks repository.BrokenLinkRepository
	Sinks       []repository.ReportSink
}

// SiteAuditor runs the full audit pipeline for one site at a time: discovery,
// status validation, then rendering-driven fact and CTA checks.
type SiteAuditor struct {
	deps    AuditDeps
	opts    AuditOptions
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewSiteAuditor creates an auditor.
func NewSiteAuditor(deps AuditDeps, opts AuditOptions, m *metrics.Metrics, logger *zap.Logger) *SiteAuditor {
	if opts.Mode == "" {
		opts.Mode = ModeAuto
	}
	if opts.SiteConcurrency < 1 {
		opts.SiteConcurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteAuditor{deps: deps, opts: opts, metrics: m, logger: logger}
}

// siteRun carries the state of one site audit through its phases.
type siteRun struct {
	runID  string
	target entity.SiteTarget
	home   string
	agg    *Aggregator
	logger *zap.Logger

	results     map[string]entity.ValidationResult
	reachable   []string
	discovered  int
	visited     int
	skipped     int
	orphans     int
	interrupted bool
	sections    map[entity.CTASection]int
}

// AuditSite audits one site and returns its summary. Extra sinks receive the
// run's events in addition to the configured ones. An error is returned with
// a non-nil summary when the site could not be rendered at all.
func (a *SiteAuditor) AuditSite(ctx context.Context, runID string, target entity.SiteTarget, extra ...repository.ReportSink) (*entity.SiteSummary, error) {
	site := utils.MustParseSite(target.Website)
	if site == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, target.Website)
	}
	home, err := utils.Normalize(nil, site.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	sinks := append(append([]repository.ReportSink{}, a.deps.Sinks...), extra...)
	run := &siteRun{
		runID:    runID,
		target:   target,
		home:     home,
		agg:      NewAggregator(runID, home, sinks, a.metrics, a.logger),
		logger:   a.logger.With(zap.String("run_id", runID), zap.String("site", home)),
		results:  make(map[string]entity.ValidationResult),
		sections: make(map[entity.CTASection]int),
	}
	run.logger.Info("site audit started", zap.String("mode", a.opts.Mode))

	a.discover(ctx, run)
	a.recordBrokenLinks(ctx, run)
	renderErr := a.render(ctx, run)

	summary := run.agg.Close()
	summary.Discovered = run.discovered
	summary.Visited = run.visited
	summary.Skipped = run.skipped
	summary.Orphans = run.orphans
	summary.Interrupted = run.interrupted || ctx.Err() != nil
	for _, res := range run.results {
		switch {
		case res.Recovered:
			summary.Recovered++
		case !res.OK() && !res.Interrupted:
			summary.Broken++
		}
	}
	for section, n := range run.sections {
		summary.CTASections[section] += n
	}

	outcome := "passed"
	switch {
	case renderErr != nil:
		outcome = "error"
	case summary.HasFailures():
		outcome = "failed"
	}
	a.metrics.IncSiteAudited(outcome)
	run.logger.Info("site audit finished",
		zap.String("outcome", outcome),
		zap.Int("visited", summary.Visited),
		zap.Int("broken", summary.Broken),
		zap.Int("fail", summary.Totals[entity.StatusFail]),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)))
	return summary, renderErr
}

// AuditBatch audits targets concurrently, bounded by the site concurrency.
// A site that fails does not stop the others; its summary carries the
// failure. Summaries are returned in target order.
func (a *SiteAuditor) AuditBatch(ctx context.Context, targets []entity.SiteTarget, extra ...repository.ReportSink) []*entity.SiteSummary {
	summaries := make([]*entity.SiteSummary, len(targets))
	g := new(errgroup.Group)
	g.SetLimit(a.opts.SiteConcurrency)
	for i, target := range targets {
		g.Go(func() error {
			runID := utils.NewRunID()
			summary, err := a.AuditSite(ctx, runID, target, extra...)
			if err != nil {
				a.logger.Error("site audit failed", zap.String("site", target.Website), zap.Error(err))
			}
			if summary == nil {
				summary = entity.NewSiteSummary(runID, target.Website)
				summary.Totals[entity.StatusFail]++
				summary.FinishedAt = time.Now()
			}
			summaries[i] = summary
			return nil
		})
	}
	_ = g.Wait()
	return summaries
}

func (a *SiteAuditor) mode(target entity.SiteTarget) string {
	if a.opts.Mode == ModeAuto {
		if target.SitemapURL != "" {
			return ModeSitemap
		}
		return ModeCrawl
	}
	return a.opts.Mode
}

func (a *SiteAuditor) maxPages(target entity.SiteTarget) int {
	if target.MaxPages > 0 {
		return target.MaxPages
	}
	return a.opts.MaxPages
}

func (a *SiteAuditor) discover(ctx context.Context, run *siteRun) {
	mode := a.mode(run.target)
	var sitemapURLs []string
	crawled := make(map[string]struct{})

	if mode == ModeCrawl || mode == ModeBoth {
		crawler := a.deps.Crawler
		if limit := a.maxPages(run.target); limit != crawler.opts.MaxPages {
			opts := crawler.opts
			opts.MaxPages = limit
			crawler = NewCrawler(crawler.validators, crawler.links, opts, crawler.metrics, crawler.logger)
		}
		report, err := crawler.Crawl(ctx, run.home, run.target.Auth, nil, run.agg)
		if err != nil {
			emit(ctx, run.agg, run.logger, newEvent(run.home, entity.CheckCrawl, run.home, entity.StatusFail, "crawl failed: "+err.Error()))
		} else {
			run.interrupted = run.interrupted || report.Interrupted
			run.skipped += len(report.Skipped)
			run.discovered += len(report.Visited)
			run.visited += len(report.Visited)
			for _, u := range report.Visited {
				crawled[u] = struct{}{}
				if res, ok := report.Results[u]; ok {
					run.results[u] = res
				}
			}
			run.reachable = append(run.reachable, report.Reachable()...)
			if a.opts.CheckExternalLinks && len(report.External) > 0 {
				a.validateList(ctx, run, report.External, false)
			}
		}
	}

	if mode == ModeSitemap || mode == ModeBoth {
		entry := run.target.SitemapURL
		if entry == "" {
			entry = strings.TrimSuffix(run.home, "/") + "/sitemap.xml"
		}
		res := a.deps.Sitemaps.Resolve(ctx, entry, run.target.Auth)
		for _, f := range res.Failures {
			emit(ctx, run.agg, run.logger, newEvent("", entity.CheckSitemap, f.URL, entity.StatusWarning, "sitemap branch skipped: "+f.Err.Error()))
		}
		if len(res.URLs) == 0 {
			emit(ctx, run.agg, run.logger, newEvent("", entity.CheckSitemap, entry, entity.StatusWarning, "sitemap named no pages"))
		} else {
			emit(ctx, run.agg, run.logger, newEvent("", entity.CheckSitemap, entry, entity.StatusInfo,
				fmt.Sprintf("%d pages in %d sitemap documents", len(res.URLs), len(res.Documents))))
		}
		sitemapURLs = res.URLs
	}

	if len(sitemapURLs) == 0 {
		return
	}
	site := utils.MustParseSite(run.home)
	var pending []string
	for _, raw := range sitemapURLs {
		if utils.IsTemplateURL(raw, a.opts.SkipMarkers...) {
			run.skipped++
			emit(ctx, run.agg, run.logger, newEvent("", entity.CheckSitemap, raw, entity.StatusInfo, "skipped template URL"))
			continue
		}
		u := raw
		if link := utils.Classify(raw, site); link.Normalized != "" {
			u = link.Normalized
		}
		if _, ok := crawled[u]; ok {
			continue
		}
		if mode == ModeBoth && len(crawled) > 0 {
			run.orphans++
			emit(ctx, run.agg, run.logger, newEvent(u, entity.CheckCrawl, u, entity.StatusInfo, "orphan page: in sitemap but not linked from the site"))
		}
		pending = append(pending, u)
	}
	pending = dedupe(pending)
	if limit := a.maxPages(run.target); mode == ModeSitemap && limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	run.discovered += len(pending)
	a.validateList(ctx, run, pending, true)
}

// validateList checks urls through the worker pool. Pages that pass are
// queued for rendering when pages is set.
func (a *SiteAuditor) validateList(ctx context.Context, run *siteRun, urls []string, pages bool) {
	results := ValidateAll(ctx, urls, a.deps.Validators, NewCredentials(run.home, run.target.Auth))
	for _, res := range results {
		page := res.URL
		if !pages {
			page = ""
		}
		emit(ctx, run.agg, run.logger, statusEvent(page, res))
		if res.Interrupted {
			run.interrupted = true
		}
		run.results[res.URL] = res
		if !pages {
			continue
		}
		run.visited++
		if res.OK() {
			run.reachable = append(run.reachable, res.URL)
		}
	}
}

func (a *SiteAuditor) recordBrokenLinks(ctx context.Context, run *siteRun) {
	repo := a.deps.BrokenLinks
	if repo == nil {
		return
	}
	now := time.Now()
	for u, res := range run.results {
		if res.Interrupted {
			continue
		}
		var err error
		if res.OK() {
			err = repo.Delete(ctx, run.home, u)
		} else {
			err = repo.SaveOrUpdate(ctx, &entity.BrokenLink{
				Site:      run.home,
				URL:       u,
				Status:    res.Status,
				Reason:    res.Reason,
				Message:   res.Message,
				FirstSeen: now,
				LastSeen:  now,
			})
		}
		if err != nil {
			run.logger.Warn("broken link bookkeeping failed", zap.String("url", u), zap.Error(err))
		}
	}
}

// renderPages orders reachable pages home first and applies the render cap.
func (a *SiteAuditor) renderPages(run *siteRun) []string {
	pages := dedupe(run.reachable)
	for i, p := range pages {
		if p == run.home && i > 0 {
			pages = append([]string{p}, append(pages[:i:i], pages[i+1:]...)...)
			break
		}
	}
	if a.opts.MaxRenderPages > 0 && len(pages) > a.opts.MaxRenderPages {
		pages = pages[:a.opts.MaxRenderPages]
	}
	return pages
}

func (a *SiteAuditor) render(ctx context.Context, run *siteRun) error {
	pages := a.renderPages(run)
	if len(pages) == 0 || ctx.Err() != nil {
		return nil
	}
	if a.deps.Browsers == nil {
		a.renderStatic(ctx, run, pages)
		return nil
	}

	b, err := a.deps.Browsers.Acquire(ctx, run.target.Auth)
	if err != nil {
		emit(ctx, run.agg, run.logger, newEvent(run.home, entity.CheckBrowser, run.home, entity.StatusFail, "browser unavailable: "+err.Error()))
		return fmt.Errorf("%w: %v", ErrNoBrowser, err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			run.logger.Warn("browser close failed", zap.Error(err))
		}
	}()

	for i, page := range pages {
		if ctx.Err() != nil {
			run.interrupted = true
			return nil
		}
		if err := a.load(ctx, b, page); err != nil {
			emit(ctx, run.agg, run.logger, newEvent(page, entity.CheckBrowser, page, entity.StatusWarning, "page did not load: "+err.Error()))
			continue
		}
		if a.deps.Facts != nil && (i == 0 || a.opts.FactsEveryPage) {
			html, err := b.HTML(ctx)
			if err != nil {
				emit(ctx, run.agg, run.logger, newEvent(page, entity.CheckBrowser, page, entity.StatusWarning, "page content unavailable: "+err.Error()))
			} else if _, err := a.deps.Facts.Check(ctx, page, html, run.target.Facts, run.agg); err != nil {
				emit(ctx, run.agg, run.logger, newEvent(page, entity.CheckFact, page, entity.StatusWarning, err.Error()))
			}
		}
		if a.opts.ValidateCTAs && a.deps.CTAs != nil {
			summary, err := a.deps.CTAs.ValidatePage(ctx, b, page, run.agg)
			for section, n := range summary.Sections {
				run.sections[section] += n
			}
			if err != nil && ctx.Err() == nil {
				emit(ctx, run.agg, run.logger, newEvent(page, entity.CheckBrowser, page, entity.StatusWarning, "CTA validation stopped: "+err.Error()))
				if resetErr := b.Reset(ctx); resetErr != nil {
					run.logger.Warn("browser reset failed", zap.Error(resetErr))
				}
			}
		}
	}
	return nil
}

// load navigates to page, resetting the tab between attempts.
func (a *SiteAuditor) load(ctx context.Context, b repository.Browser, page string) error {
	var err error
	for attempt := 0; attempt <= a.opts.PageResetRetries; attempt++ {
		if attempt > 0 {
			a.logger.Debug("resetting browser tab", zap.String("page", page), zap.Int("attempt", attempt))
			if resetErr := b.Reset(ctx); resetErr != nil {
				return fmt.Errorf("reset: %w", resetErr)
			}
		}
		if err = b.Navigate(ctx, page); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("after %d attempts: %w", a.opts.PageResetRetries+1, err)
}

func (a *SiteAuditor) renderStatic(ctx context.Context, run *siteRun, pages []string) {
	if a.opts.ValidateCTAs {
		emit(ctx, run.agg, run.logger, newEvent(run.home, entity.CheckCTA, run.home, entity.StatusInfo, "CTA validation needs the browser renderer"))
	}
	if a.deps.Facts == nil || a.deps.Pages == nil {
		return
	}
	if !a.opts.FactsEveryPage {
		pages = pages[:1]
	}
	for _, page := range pages {
		body, err := a.deps.Pages.Fetch(ctx, page, run.target.Auth)
		if err != nil {
			emit(ctx, run.agg, run.logger, newEvent(page, entity.CheckFact, page, entity.StatusWarning, "page content unavailable: "+err.Error()))
			continue
		}
		if _, err := a.deps.Facts.Check(ctx, page, string(body), run.target.Facts, run.agg); err != nil {
			emit(ctx, run.agg, run.logger, newEvent(page, entity.CheckFact, page, entity.StatusWarning, err.Error()))
		}
	}
}
