package usecase

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/site-auditor/internal/adapter/memory"
	"github.com/user/site-auditor/internal/entity"
	"go.uber.org/zap"
)

func newTestValidator(opts StatusOptions) *StatusValidator {
	if opts.HeadTimeout == 0 {
		opts.HeadTimeout = 2 * time.Second
	}
	if opts.GetTimeout == 0 {
		opts.GetTimeout = 2 * time.Second
	}
	return NewStatusValidator(opts, nil, nil, nil, nil, zap.NewNop())
}

func TestResolveHeadSuccess(t *testing.T) {
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gets.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := newTestValidator(StatusOptions{}).Resolve(context.Background(), srv.URL+"/ok", nil)
	assert.True(t, res.OK())
	assert.False(t, res.Recovered)
	assert.Equal(t, http.MethodHead, res.Method)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, entity.ReasonOK, res.Reason)
	assert.Zero(t, gets.Load())
}

func TestResolveRecoversWithGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	res := newTestValidator(StatusOptions{}).Resolve(context.Background(), srv.URL, nil)
	assert.True(t, res.Recovered)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, http.MethodGet, res.Method)
	assert.Equal(t, 2, res.Attempts)
	assert.Contains(t, res.Message, "403")
}

func TestResolveRecoversAfterHeadTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := newTestValidator(StatusOptions{HeadTimeout: 50 * time.Millisecond}).Resolve(context.Background(), srv.URL, nil)
	assert.True(t, res.Recovered)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, res.Message, string(entity.ReasonTimeout))
}

func TestResolveHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	res := newTestValidator(StatusOptions{Retries: 1}).Resolve(context.Background(), srv.URL+"/missing", nil)
	assert.False(t, res.OK())
	assert.False(t, res.Recovered)
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Equal(t, entity.ReasonHTTPError, res.Reason)
	// 404 is not transient, so neither strategy retries.
	assert.Equal(t, 2, res.Attempts)
}

func TestResolveTimeoutBothStrategies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	v := newTestValidator(StatusOptions{HeadTimeout: 40 * time.Millisecond, GetTimeout: 40 * time.Millisecond})
	res := v.Resolve(context.Background(), srv.URL, nil)
	assert.Equal(t, entity.StatusTimeout, res.Status)
	assert.Equal(t, entity.ReasonTimeout, res.Reason)
	assert.False(t, res.Recovered)
}

func TestResolveConnectionRefusedRetries(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	v := newTestValidator(StatusOptions{Retries: 1, RetryBackoff: 5 * time.Millisecond})
	res := v.Resolve(context.Background(), addr, nil)
	assert.Equal(t, entity.ReasonRefused, res.Reason)
	assert.Equal(t, entity.StatusRefused, res.Status)
	assert.Equal(t, 4, res.Attempts)
}

func TestResolveSkipsHeadForHostileHosts(t *testing.T) {
	var heads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			heads.Add(1)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := newTestValidator(StatusOptions{HeadHostileHosts: []string{"127.0.0.1"}})
	res := v.Resolve(context.Background(), srv.URL+"/font.woff2", nil)
	assert.True(t, res.OK())
	assert.False(t, res.Recovered)
	assert.Equal(t, http.MethodGet, res.Method)
	assert.Zero(t, heads.Load())
}

func TestResolveUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cache := memory.NewStatusCache()
	v := NewStatusValidator(StatusOptions{CacheTTL: time.Minute}, nil, nil, cache, nil, zap.NewNop())
	first := v.Resolve(context.Background(), srv.URL, nil)
	second := v.Resolve(context.Background(), srv.URL, nil)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, int32(1), hits.Load())
}

type countingLimiter struct{ calls atomic.Int32 }

func (l *countingLimiter) Wait(ctx context.Context, _ string) error {
	l.calls.Add(1)
	return ctx.Err()
}

func TestResolveWaitsOnLimiter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	limiter := &countingLimiter{}
	v := NewStatusValidator(StatusOptions{}, limiter, nil, nil, nil, zap.NewNop())
	v.Resolve(context.Background(), srv.URL, nil)
	assert.Equal(t, int32(1), limiter.calls.Load())
}

func TestClassifyError(t *testing.T) {
	syscallErr := func(errno syscall.Errno) error {
		return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", errno)}
	}
	tests := []struct {
		name string
		err  error
		want entity.ReasonCode
	}{
		{"nil", nil, entity.ReasonOK},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), entity.ReasonTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "nowhere.invalid", IsNotFound: true}, entity.ReasonDNS},
		{"dns timeout", &net.DNSError{Err: "i/o timeout", Name: "slow.example", IsTimeout: true}, entity.ReasonTimeout},
		{"unknown authority", fmt.Errorf("get: %w", x509.UnknownAuthorityError{}), entity.ReasonTLS},
		{"tls message", errors.New("remote error: tls: handshake failure"), entity.ReasonTLS},
		{"refused", syscallErr(syscall.ECONNREFUSED), entity.ReasonRefused},
		{"reset", syscallErr(syscall.ECONNRESET), entity.ReasonReset},
		{"eof", fmt.Errorf("read: %w", io.EOF), entity.ReasonClosed},
		{"unexpected eof", io.ErrUnexpectedEOF, entity.ReasonClosed},
		{"generic", errors.New("unsupported protocol scheme"), entity.ReasonGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestValidateAllKeepsInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	urls := []string{srv.URL + "/a", srv.URL + "/gone", srv.URL + "/b", srv.URL + "/c"}
	validators := []*StatusValidator{newTestValidator(StatusOptions{}), newTestValidator(StatusOptions{})}
	results := ValidateAll(context.Background(), urls, validators, nil)
	require.Len(t, results, len(urls))
	for i, res := range results {
		assert.Equal(t, urls[i], res.URL)
	}
	assert.Equal(t, http.StatusGone, results[1].Status)
	assert.True(t, results[3].OK())
}

func TestValidateAllStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	urls := []string{"http://127.0.0.1:1/a", "http://127.0.0.1:1/b"}
	results := ValidateAll(ctx, urls, []*StatusValidator{newTestValidator(StatusOptions{})}, nil)
	require.Len(t, results, 2)
	for i, res := range results {
		assert.Equal(t, urls[i], res.URL)
		assert.False(t, res.OK())
	}
}

func authServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if user, pass, ok := r.BasicAuth(); !ok || user != "u" || pass != "p" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveSendsSiteCredentials(t *testing.T) {
	var hits atomic.Int32
	srv := authServer(t, &hits)
	auth := &entity.BasicAuth{Username: "u", Password: "p"}

	cache := memory.NewStatusCache()
	v := NewStatusValidator(StatusOptions{CacheTTL: time.Minute}, nil, nil, cache, nil, zap.NewNop())

	res := v.Resolve(context.Background(), srv.URL+"/private", NewCredentials(srv.URL, auth))
	assert.True(t, res.OK())
	assert.Equal(t, http.MethodHead, res.Method)

	// Credentials scoped to another host are not sent.
	res = v.Resolve(context.Background(), srv.URL+"/private", NewCredentials("https://other.example", auth))
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.False(t, res.OK())

	// Authenticated results do not go through the cache.
	before := hits.Load()
	res = v.Resolve(context.Background(), srv.URL+"/private", NewCredentials(srv.URL, auth))
	assert.True(t, res.OK())
	assert.Greater(t, hits.Load(), before)
}

func TestValidateAllWithCredentials(t *testing.T) {
	var hits atomic.Int32
	srv := authServer(t, &hits)
	creds := NewCredentials(srv.URL+"/", &entity.BasicAuth{Username: "u", Password: "p"})

	results := ValidateAll(context.Background(), []string{srv.URL + "/", srv.URL + "/about"}, validators(2), creds)
	for _, res := range results {
		assert.True(t, res.OK(), res.URL)
	}
}

func TestCredentialsScope(t *testing.T) {
	assert.Nil(t, NewCredentials("https://example.com", nil))
	assert.Nil(t, NewCredentials("https://example.com", &entity.BasicAuth{}))

	var none *Credentials
	assert.Nil(t, none.For("https://example.com/"))

	auth := &entity.BasicAuth{Username: "u", Password: "p"}
	c := NewCredentials("https://Example.com/", auth)
	assert.Equal(t, auth, c.For("https://example.com/about"))
	assert.Nil(t, c.For("https://cdn.example.com/app.js"))
	assert.Nil(t, c.For("https://twitter.com/x"))
}

func TestResolveXMLRPCWithQueryUsesGet(t *testing.T) {
	var heads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			heads.Add(1)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := newTestValidator(StatusOptions{}).Resolve(context.Background(), srv.URL+"/xmlrpc.php?rsd", nil)
	assert.True(t, res.OK())
	assert.False(t, res.Recovered)
	assert.Equal(t, http.MethodGet, res.Method)
	assert.Zero(t, heads.Load())
}

type refusingLimiter struct{ err error }

func (l refusingLimiter) Wait(context.Context, string) error { return l.err }

func TestResolveLimiterDeadlineIsTimeout(t *testing.T) {
	limiter := refusingLimiter{err: errors.New("rate: Wait(n=1) would exceed context deadline")}
	v := NewStatusValidator(StatusOptions{}, limiter, nil, nil, nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	res := v.Resolve(ctx, "http://127.0.0.1:1/", nil)
	assert.Equal(t, entity.ReasonTimeout, res.Reason)
	assert.Equal(t, entity.StatusTimeout, res.Status)

	// Without a deadline the limiter error stays generic.
	res = v.Resolve(context.Background(), "http://127.0.0.1:1/", nil)
	assert.Equal(t, entity.ReasonGeneric, res.Reason)
}
