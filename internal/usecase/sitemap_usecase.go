package usecase

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/internal/repository"
	"github.com/user/site-auditor/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxSitemapBytes = 64 << 20

var (
	ErrSitemapDepth = errors.New("sitemap index nesting too deep")
	ErrSitemapEmpty = errors.New("sitemap is empty")

	locPattern = regexp.MustCompile(`(?is)<loc>\s*(.*?)\s*</loc>`)
)

type sitemapIndex struct {
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

type sitemapEntry struct {
	Location string `xml:"loc"`
}

type urlSet struct {
	URLs []urlEntry `xml:"url"`
}

type urlEntry struct {
	Location string `xml:"loc"`
}

// SitemapOptions bounds sitemap resolution.
type SitemapOptions struct {
	Timeout     time.Duration
	MaxDepth    int
	Concurrency int
}

// SitemapFailure is a branch of a sitemap tree that produced no URLs.
type SitemapFailure struct {
	URL string
	Err error
}

// SitemapResult is the flattened content of a sitemap tree.
type SitemapResult struct {
	// URLs are page URLs in document order with duplicates removed.
	URLs []string
	// Documents lists every sitemap document that was fetched.
	Documents []string
	Failures  []SitemapFailure
}

// SitemapResolver expands sitemap indexes, url sets, gzip feeds and HTML
// sitemap pages into a flat list of page URLs.
type SitemapResolver struct {
	fetcher repository.ContentFetcher
	parser  repository.DocumentParser
	opts    SitemapOptions
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewSitemapResolver creates a resolver. parser handles HTML sitemap pages.
func NewSitemapResolver(fetcher repository.ContentFetcher, parser repository.DocumentParser, opts SitemapOptions, m *metrics.Metrics, logger *zap.Logger) *SitemapResolver {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 5
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SitemapResolver{fetcher: fetcher, parser: parser, opts: opts, metrics: m, logger: logger}
}

type sitemapWalk struct {
	auth *entity.BasicAuth

	mu       sync.Mutex
	seen     map[string]struct{}
	docs     []string
	failures []SitemapFailure
}

func (w *sitemapWalk) claim(u string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[u]; ok {
		return false
	}
	w.seen[u] = struct{}{}
	w.docs = append(w.docs, u)
	return true
}

func (w *sitemapWalk) fail(u string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures = append(w.failures, SitemapFailure{URL: u, Err: err})
}

// Resolve returns every page URL named by the sitemap at entry. A failing
// branch contributes nothing and is listed in Failures; it never aborts its
// siblings. Each sitemap document is fetched at most once, so self-referencing
// indexes terminate.
func (r *SitemapResolver) Resolve(ctx context.Context, entry string, auth *entity.BasicAuth) *SitemapResult {
	walk := &sitemapWalk{auth: auth, seen: make(map[string]struct{})}
	urls := r.expand(ctx, walk, strings.TrimSpace(entry), 0)

	res := &SitemapResult{URLs: dedupe(urls), Documents: walk.docs, Failures: walk.failures}
	r.metrics.AddSitemapURLs(len(res.URLs))
	r.logger.Info("sitemap resolved",
		zap.String("sitemap", entry),
		zap.Int("urls", len(res.URLs)),
		zap.Int("documents", len(res.Documents)),
		zap.Int("failures", len(res.Failures)))
	return res
}

func (r *SitemapResolver) expand(ctx context.Context, walk *sitemapWalk, u string, depth int) []string {
	if u == "" || !walk.claim(u) {
		return nil
	}
	body, err := r.fetch(ctx, u, walk.auth)
	if err != nil {
		r.logger.Warn("sitemap fetch failed", zap.String("sitemap", u), zap.Error(err))
		walk.fail(u, err)
		return nil
	}

	lower := bytes.ToLower(body)
	switch {
	case bytes.Contains(lower, []byte("<sitemapindex")):
		if depth >= r.opts.MaxDepth {
			walk.fail(u, ErrSitemapDepth)
			return nil
		}
		children := parseIndex(body)
		r.logger.Debug("sitemap index", zap.String("sitemap", u), zap.Int("children", len(children)))
		branches := make([][]string, len(children))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.opts.Concurrency)
		for i, child := range children {
			g.Go(func() error {
				branches[i] = r.expand(gctx, walk, child, depth+1)
				return nil
			})
		}
		_ = g.Wait()
		var out []string
		for _, b := range branches {
			out = append(out, b...)
		}
		return out

	case bytes.Contains(lower, []byte("<urlset")):
		return parseURLSet(body)

	default:
		if r.parser == nil {
			walk.fail(u, fmt.Errorf("no sitemap markup in %s", u))
			return nil
		}
		links, err := r.parser.Anchors(u, body)
		if err != nil {
			r.logger.Warn("html sitemap parse failed", zap.String("sitemap", u), zap.Error(err))
			walk.fail(u, err)
			return nil
		}
		return httpOnly(links)
	}
}

func (r *SitemapResolver) fetch(ctx context.Context, u string, auth *entity.BasicAuth) ([]byte, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	body, err := r.fetcher.Fetch(ctx, u, auth)
	if err != nil {
		return nil, err
	}
	if isGzip(body) {
		if body, err = gunzip(body); err != nil {
			return nil, fmt.Errorf("decompress %s: %w", u, err)
		}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrSitemapEmpty
	}
	return body, nil
}

// isGzip sniffs the gzip magic number. Feeds served with a gzip
// Content-Encoding arrive already decoded, so the .gz suffix alone is not
// trusted.
func isGzip(body []byte) bool {
	return len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b
}

func gunzip(body []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, maxSitemapBytes+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxSitemapBytes {
		return nil, fmt.Errorf("decompressed sitemap exceeds %d bytes", maxSitemapBytes)
	}
	return out, nil
}

func parseIndex(body []byte) []string {
	var idx sitemapIndex
	if err := xml.Unmarshal(body, &idx); err == nil && len(idx.Sitemaps) > 0 {
		out := make([]string, 0, len(idx.Sitemaps))
		for _, s := range idx.Sitemaps {
			out = append(out, strings.TrimSpace(s.Location))
		}
		return httpOnly(out)
	}
	return scanLocs(body)
}

func parseURLSet(body []byte) []string {
	var set urlSet
	if err := xml.Unmarshal(body, &set); err == nil && len(set.URLs) > 0 {
		out := make([]string, 0, len(set.URLs))
		for _, u := range set.URLs {
			out = append(out, strings.TrimSpace(u.Location))
		}
		return httpOnly(out)
	}
	return scanLocs(body)
}

// scanLocs pulls <loc> values out of markup that is not well-formed XML.
func scanLocs(body []byte) []string {
	var out []string
	for _, m := range locPattern.FindAllSubmatch(body, -1) {
		loc := strings.TrimSpace(string(m[1]))
		loc = strings.TrimSuffix(strings.TrimPrefix(loc, "<![CDATA["), "]]>")
		out = append(out, html.UnescapeString(strings.TrimSpace(loc)))
	}
	return httpOnly(out)
}

func httpOnly(urls []string) []string {
	out := urls[:0]
	for _, u := range urls {
		lower := strings.ToLower(u)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			out = append(out, u)
		}
	}
	return out
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
