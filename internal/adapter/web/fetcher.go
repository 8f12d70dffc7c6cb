package web

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/user/site-auditor/internal/adapter/proxy"
	"github.com/user/site-auditor/internal/adapter/ratelimit"
	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/pkg/utils"
	"go.uber.org/zap"
)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Code)
}

// Options controls HTTP fetching behaviour.
type Options struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	PerHostRate  float64
	Agents       *proxy.Manager
}

// Fetcher downloads documents over plain HTTP. It serves the sitemap
// resolver and the static link extractor used by the crawl frontier.
type Fetcher struct {
	client       *http.Client
	agents       *proxy.Manager
	limiter      *ratelimit.HostLimiter
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewFetcher constructs a fetcher using the provided options.
func NewFetcher(opts Options, logger *zap.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	transport := &http.Transport{
		Proxy:                 opts.Agents.ProxyFunc(),
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
		// Bodies are decoded by readBody so brotli is handled too.
		DisableCompression: true,
	}
	return &Fetcher{
		client:       &http.Client{Timeout: opts.Timeout, Transport: transport},
		agents:       opts.Agents,
		limiter:      ratelimit.NewHostLimiter(opts.PerHostRate),
		maxBodyBytes: opts.MaxBodyBytes,
		logger:       logger,
	}
}

// Client exposes the underlying HTTP client for reuse (robots.txt fetches).
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// Fetch returns the decoded body of rawURL. Any status other than 2xx is an
// error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, auth *entity.BasicAuth) ([]byte, error) {
	doc, err := f.get(ctx, rawURL, auth)
	if err != nil {
		return nil, err
	}
	return doc.body, nil
}

// document is a fetched body with the URL it was finally served from.
type document struct {
	body        []byte
	contentType string
	finalURL    string
}

func (f *Fetcher) get(ctx context.Context, rawURL string, auth *entity.BasicAuth) (*document, error) {
	if err := f.limiter.Wait(ctx, utils.Host(rawURL)); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.agents.UserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if auth != nil && auth.Username != "" {
		req.SetBasicAuth(auth.Username, auth.Password)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http fetch failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	body, err := f.readBody(resp)
	if err != nil {
		return nil, err
	}
	doc := &document{body: body, contentType: resp.Header.Get("Content-Type"), finalURL: rawURL}
	if resp.Request != nil && resp.Request.URL != nil {
		doc.finalURL = resp.Request.URL.String()
	}
	return doc, nil
}

func (f *Fetcher) readBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, errors.New("empty response body")
	}

	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	}

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds limit of %d bytes", f.maxBodyBytes)
	}
	return body, nil
}

// ExtractLinks fetches pageURL and returns the absolute targets of its
// anchors, resolved against the URL the page was served from after
// redirects. Non-HTML responses yield no links.
func (f *Fetcher) ExtractLinks(ctx context.Context, pageURL string, auth *entity.BasicAuth) ([]string, error) {
	doc, err := f.get(ctx, pageURL, auth)
	if err != nil {
		return nil, err
	}
	if doc.contentType != "" && !strings.Contains(strings.ToLower(doc.contentType), "html") {
		f.logger.Debug("skipping link extraction for non-html page",
			zap.String("url", pageURL), zap.String("content_type", doc.contentType))
		return nil, nil
	}
	return ExtractAnchors(doc.finalURL, doc.body)
}
