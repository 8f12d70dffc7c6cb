package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/internal/repository"
	"github.com/user/site-auditor/pkg/metrics"
	"github.com/user/site-auditor/pkg/utils"
	"go.uber.org/zap"
)

var (
	ErrInvalidSeed  = errors.New("seed is not an absolute http(s) url")
	ErrNoValidators = errors.New("at least one status validator is required")
)

// CrawlOptions configures a crawl.
type CrawlOptions struct {
	// MaxPages stops dispatching after this many pages; 0 is unbounded.
	MaxPages    int
	SkipMarkers []string
	// Allow optionally filters pages before they are fetched (robots.txt).
	Allow func(ctx context.Context, url string) bool
}

// CrawlReport is the outcome of one crawl.
type CrawlReport struct {
	// Visited lists pages in dispatch order.
	Visited      []string
	Results      map[string]entity.ValidationResult
	Skipped      []string
	Disallowed   []string
	External     []string
	NonNavigable []entity.URL
	Interrupted  bool
}

// Reachable returns visited pages whose status check succeeded, in dispatch
// order.
func (r *CrawlReport) Reachable() []string {
	var out []string
	for _, u := range r.Visited {
		if res, ok := r.Results[u]; ok && res.OK() {
			out = append(out, u)
		}
	}
	return out
}

type pageVisit struct {
	url        string
	result     entity.ValidationResult
	links      []string
	err        error
	disallowed bool
}

// Crawler walks a site breadth-first. Fetching happens on a pool of workers,
// one per status validator; the frontier and the report stream are owned by
// the single goroutine running Crawl.
type Crawler struct {
	validators []*StatusValidator
	links      repository.LinkExtractor
	opts       CrawlOptions
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewCrawler creates a crawler with len(validators) workers.
func NewCrawler(validators []*StatusValidator, links repository.LinkExtractor, opts CrawlOptions, m *metrics.Metrics, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		validators: validators,
		links:      links,
		opts:       opts,
		metrics:    m,
		logger:     logger,
	}
}

// Crawl visits every page reachable from seed for which isInternal holds,
// each at most once, in FIFO order. A nil isInternal accepts internal pages.
// auth, when set, is sent with every request to the seed's host.
// Cancelling ctx stops dispatching; pages already in flight are still
// reported and the report is marked interrupted.
func (c *Crawler) Crawl(ctx context.Context, seed string, auth *entity.BasicAuth, isInternal func(entity.URL) bool, sink repository.ReportSink) (*CrawlReport, error) {
	if len(c.validators) == 0 {
		return nil, ErrNoValidators
	}
	site := utils.MustParseSite(seed)
	if site == nil || (site.Scheme != "http" && site.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}
	start, err := utils.Normalize(nil, seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if isInternal == nil {
		isInternal = func(u entity.URL) bool { return u.Kind == entity.KindPage }
	}
	creds := NewCredentials(start, auth)

	report := &CrawlReport{Results: make(map[string]entity.ValidationResult)}
	state := NewCrawlState()
	state.Enqueue(start)
	c.metrics.AddFrontier(1)

	jobs := make(chan string)
	results := make(chan pageVisit, len(c.validators))
	for _, v := range c.validators {
		go func(v *StatusValidator) {
			for u := range jobs {
				results <- c.visit(ctx, v, u, creds)
			}
		}(v)
	}
	defer close(jobs)

	noted := make(map[string]struct{})
	note := func(key string) bool {
		if _, ok := noted[key]; ok {
			return false
		}
		noted[key] = struct{}{}
		return true
	}

	done := ctx.Done()
	inflight := 0
	stopped := false
	stop := func() {
		stopped = true
		report.Interrupted = true
		done = nil
		c.logger.Info("crawl cancelled, draining in-flight pages",
			zap.String("seed", start), zap.Int("in_flight", inflight))
	}
	for {
		if !stopped && ctx.Err() != nil {
			stop()
		}
		var next string
		var out chan<- string
		budgetLeft := c.opts.MaxPages <= 0 || len(report.Visited) < c.opts.MaxPages
		if !stopped && budgetLeft && inflight < len(c.validators) {
			if u, ok := state.Peek(); ok {
				next, out = u, jobs
			}
		}
		if out == nil && inflight == 0 {
			break
		}

		select {
		case out <- next:
			state.Next()
			state.MarkVisited(next)
			report.Visited = append(report.Visited, next)
			inflight++
			c.metrics.AddFrontier(-1)
		case pv := <-results:
			inflight--
			c.absorb(ctx, site, pv, state, report, isInternal, note, sink)
		case <-done:
			stop()
		}
	}

	if rest := state.Len(); rest > 0 {
		c.metrics.AddFrontier(-float64(rest))
	}
	c.logger.Info("crawl finished",
		zap.String("seed", start),
		zap.Int("visited", len(report.Visited)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("queued", state.Len()),
		zap.Bool("interrupted", report.Interrupted))
	return report, nil
}

func (c *Crawler) visit(ctx context.Context, v *StatusValidator, u string, creds *Credentials) pageVisit {
	if c.opts.Allow != nil && !c.opts.Allow(ctx, u) {
		return pageVisit{url: u, disallowed: true}
	}
	pv := pageVisit{url: u, result: v.Resolve(ctx, u, creds)}
	if pv.result.OK() && c.links != nil && ctx.Err() == nil {
		pv.links, pv.err = c.links.ExtractLinks(ctx, u, creds.For(u))
	}
	return pv
}

// absorb records one finished page and expands its links into the frontier.
func (c *Crawler) absorb(ctx context.Context, site *url.URL, pv pageVisit, state *CrawlState, report *CrawlReport,
	isInternal func(entity.URL) bool, note func(string) bool, sink repository.ReportSink) {
	if pv.disallowed {
		report.Disallowed = append(report.Disallowed, pv.url)
		emit(ctx, sink, c.logger, newEvent(pv.url, entity.CheckCrawl, pv.url, entity.StatusInfo, "disallowed by robots.txt"))
		return
	}

	report.Results[pv.url] = pv.result
	c.metrics.IncPagesCrawled()
	emit(ctx, sink, c.logger, statusEvent(pv.url, pv.result))
	if pv.err != nil {
		c.logger.Warn("link extraction failed", zap.String("url", pv.url), zap.Error(pv.err))
		emit(ctx, sink, c.logger, newEvent(pv.url, entity.CheckCrawl, pv.url, entity.StatusWarning,
			"link extraction failed: "+pv.err.Error()))
		return
	}

	for _, raw := range pv.links {
		if utils.IsTemplateURL(raw, c.opts.SkipMarkers...) {
			if note("skip:" + raw) {
				report.Skipped = append(report.Skipped, raw)
				c.metrics.IncSkipped()
				emit(ctx, sink, c.logger, newEvent(pv.url, entity.CheckCrawl, raw, entity.StatusInfo, "skipped template URL"))
			}
			continue
		}
		link := utils.Classify(raw, site)
		switch {
		case link.Kind == entity.KindInvalid || link.Kind == entity.KindAnchor:
		case isInternal(link):
			if state.Enqueue(link.Normalized) {
				c.metrics.AddFrontier(1)
			}
		case link.Kind == entity.KindExternal:
			if note("ext:" + link.Normalized) {
				report.External = append(report.External, link.Normalized)
			}
		case !link.IsNavigable():
			if note("nn:" + link.Normalized) {
				report.NonNavigable = append(report.NonNavigable, link)
			}
		}
	}
}
