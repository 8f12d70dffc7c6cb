package usecase

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/internal/repository"
	"github.com/user/site-auditor/pkg/metrics"
	"github.com/user/site-auditor/pkg/utils"
	"go.uber.org/zap"
)

const (
	headUserAgent = "Mozilla/5.0 (compatible; site-auditor/1.0)"
	maxDrainBytes = 64 << 10
)

// RateLimiter paces outgoing requests per host.
type RateLimiter interface {
	Wait(ctx context.Context, host string) error
}

// UserAgentSource supplies browser-like identification for full fetches.
type UserAgentSource interface {
	UserAgent() string
}

// StatusOptions configures the reachability cascade.
type StatusOptions struct {
	HeadTimeout      time.Duration
	GetTimeout       time.Duration
	Retries          int
	RetryBackoff     time.Duration
	HeadHostileHosts []string
	CacheTTL         time.Duration
	Proxy            func(*http.Request) (*url.URL, error)
}

// StatusValidator resolves whether URLs are reachable. Each validator owns
// its HTTP client; the limiter, cache and agent source may be shared.
type StatusValidator struct {
	client  *http.Client
	opts    StatusOptions
	hostile map[string]struct{}
	limiter RateLimiter
	agents  UserAgentSource
	cache   repository.StatusCache
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewStatusValidator creates a validator with its own transport. limiter,
// agents and cache are optional.
func NewStatusValidator(opts StatusOptions, limiter RateLimiter, agents UserAgentSource, cache repository.StatusCache, m *metrics.Metrics, logger *zap.Logger) *StatusValidator {
	if opts.HeadTimeout <= 0 {
		opts.HeadTimeout = 5 * time.Second
	}
	if opts.GetTimeout <= 0 {
		opts.GetTimeout = 10 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	transport := &http.Transport{
		Proxy:                 opts.Proxy,
		DialContext:           (&net.Dialer{Timeout: opts.HeadTimeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   opts.HeadTimeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	hostile := make(map[string]struct{}, len(opts.HeadHostileHosts))
	for _, h := range opts.HeadHostileHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hostile[h] = struct{}{}
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusValidator{
		client:  &http.Client{Transport: transport},
		opts:    opts,
		hostile: hostile,
		limiter: limiter,
		agents:  agents,
		cache:   cache,
		metrics: m,
		logger:  logger,
	}
}

// Resolve checks rawURL with a lightweight HEAD request and escalates to a
// full GET when that fails. A GET success after a HEAD failure is marked
// recovered. Hosts known to reject HEAD go straight to GET. creds may be
// nil; results fetched with credentials bypass the cache.
func (v *StatusValidator) Resolve(ctx context.Context, rawURL string, creds *Credentials) entity.ValidationResult {
	auth := creds.For(rawURL)
	useCache := v.cache != nil && auth == nil
	if useCache {
		cached, ok, err := v.cache.Get(ctx, rawURL)
		if err != nil {
			v.logger.Debug("status cache lookup failed", zap.String("url", rawURL), zap.Error(err))
		} else if ok {
			return cached
		}
	}

	start := time.Now()
	var res entity.ValidationResult
	if v.isHeadHostile(rawURL) {
		res = v.attempt(ctx, http.MethodGet, rawURL, auth, v.opts.GetTimeout)
	} else {
		res = v.attempt(ctx, http.MethodHead, rawURL, auth, v.opts.HeadTimeout)
		if !res.OK() && ctx.Err() == nil {
			first := res
			res = v.attempt(ctx, http.MethodGet, rawURL, auth, v.opts.GetTimeout)
			res.Attempts += first.Attempts
			if res.OK() {
				res.Recovered = true
				res.Message = fmt.Sprintf("recovered by GET after HEAD %s", describe(first))
			}
		}
	}
	res.URL = rawURL
	res.Interrupted = !res.OK() && ctx.Err() != nil
	res.CheckedAt = start
	res.Duration = time.Since(start)

	outcome := "broken"
	switch {
	case res.Recovered:
		outcome = "recovered"
	case res.OK():
		outcome = "ok"
	}
	v.metrics.ObserveLinkCheck(outcome, string(res.Reason), res.Method, res.Duration.Seconds())

	if useCache && ctx.Err() == nil && v.opts.CacheTTL > 0 {
		if err := v.cache.Set(ctx, res, v.opts.CacheTTL); err != nil {
			v.logger.Debug("status cache store failed", zap.String("url", rawURL), zap.Error(err))
		}
	}
	return res
}

// attempt runs one strategy, retrying transient network failures.
func (v *StatusValidator) attempt(ctx context.Context, method, rawURL string, auth *entity.BasicAuth, timeout time.Duration) entity.ValidationResult {
	var res entity.ValidationResult
	for try := 0; try <= v.opts.Retries; try++ {
		if try > 0 {
			if err := sleepContext(ctx, v.opts.RetryBackoff); err != nil {
				break
			}
			v.logger.Debug("retrying status check",
				zap.String("url", rawURL), zap.String("method", method), zap.String("reason", string(res.Reason)))
		}
		res = v.do(ctx, method, rawURL, auth, timeout)
		res.Attempts = try + 1
		if res.OK() || !res.Transient() {
			break
		}
	}
	return res
}

func (v *StatusValidator) do(ctx context.Context, method, rawURL string, auth *entity.BasicAuth, timeout time.Duration) entity.ValidationResult {
	res := entity.ValidationResult{Method: method}
	if v.limiter != nil {
		if err := v.limiter.Wait(ctx, utils.Host(rawURL)); err != nil {
			return failure(res, limiterError(ctx, err))
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, nil)
	if err != nil {
		return failure(res, err)
	}
	if method == http.MethodGet {
		agent := headUserAgent
		if v.agents != nil {
			agent = v.agents.UserAgent()
		}
		req.Header.Set("User-Agent", agent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	} else {
		req.Header.Set("User-Agent", headUserAgent)
	}
	if auth != nil {
		req.SetBasicAuth(auth.Username, auth.Password)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return failure(res, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	res.Status = resp.StatusCode
	res.Message = resp.Status
	res.Reason = entity.ReasonOK
	if !entity.IsSuccessStatus(resp.StatusCode) {
		res.Reason = entity.ReasonHTTPError
	}
	return res
}

func (v *StatusValidator) isHeadHostile(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	if _, ok := v.hostile[strings.ToLower(u.Hostname())]; ok {
		return true
	}
	// xmlrpc endpoints answer HEAD with 405
	return strings.HasSuffix(strings.ToLower(u.Path), "/xmlrpc.php")
}

// limiterError reports a wait refused because the run is ending or its
// deadline would pass as a deadline error.
func limiterError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if _, ok := ctx.Deadline(); ok || ctx.Err() != nil {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

func failure(res entity.ValidationResult, err error) entity.ValidationResult {
	res.Reason = ClassifyError(err)
	res.Status = entity.SentinelStatus(res.Reason)
	res.Message = err.Error()
	return res
}

func describe(r entity.ValidationResult) string {
	if r.Status > 0 {
		return fmt.Sprintf("returned %d", r.Status)
	}
	return "failed: " + string(r.Reason)
}

// ClassifyError maps a transport error onto a stable reason code.
func ClassifyError(err error) entity.ReasonCode {
	if err == nil {
		return entity.ReasonOK
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return entity.ReasonTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return entity.ReasonTimeout
		}
		return entity.ReasonDNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return entity.ReasonTimeout
	}

	var (
		verifyErr  *tls.CertificateVerificationError
		authErr    x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
		recordErr  tls.RecordHeaderError
		alertErr   tls.AlertError
	)
	if errors.As(err, &verifyErr) || errors.As(err, &authErr) || errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr) || errors.As(err, &recordErr) || errors.As(err, &alertErr) {
		return entity.ReasonTLS
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return entity.ReasonRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return entity.ReasonReset
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return entity.ReasonClosed
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "tls:") || strings.Contains(msg, "x509:"):
		return entity.ReasonTLS
	case strings.Contains(msg, "connection refused"):
		return entity.ReasonRefused
	case strings.Contains(msg, "connection reset"):
		return entity.ReasonReset
	case strings.Contains(msg, "server closed") || strings.Contains(msg, "eof"):
		return entity.ReasonClosed
	}
	return entity.ReasonGeneric
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ValidateAll resolves urls with one goroutine per validator and returns the
// results in input order. Once ctx is done no further URL is dispatched;
// undispatched entries come back as generic failures marked not checked.
func ValidateAll(ctx context.Context, urls []string, validators []*StatusValidator, creds *Credentials) []entity.ValidationResult {
	results := make([]entity.ValidationResult, len(urls))
	if len(urls) == 0 || len(validators) == 0 {
		return results
	}

	jobs := make(chan int)
	done := make(chan struct{})
	for _, v := range validators {
		go func(v *StatusValidator) {
			defer func() { done <- struct{}{} }()
			for i := range jobs {
				results[i] = v.Resolve(ctx, urls[i], creds)
			}
		}(v)
	}

	dispatched := 0
dispatch:
	for ; dispatched < len(urls); dispatched++ {
		select {
		case jobs <- dispatched:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	for range validators {
		<-done
	}

	for i := dispatched; i < len(urls); i++ {
		results[i] = entity.ValidationResult{
			URL:         urls[i],
			Status:      entity.StatusGeneric,
			Reason:      entity.ReasonGeneric,
			Message:     "not checked: run cancelled",
			Interrupted: true,
		}
	}
	return results
}
