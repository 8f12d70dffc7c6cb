package usecase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/site-auditor/internal/entity"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu     sync.Mutex
	events []entity.ReportEvent
}

func (s *recordingSink) Emit(_ context.Context, e entity.ReportEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) byCheck(check entity.CheckKind) []entity.ReportEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.ReportEvent
	for _, e := range s.events {
		if e.Check == check {
			out = append(out, e)
		}
	}
	return out
}

// graphLinks serves a fixed link graph; paths are relative to base.
type graphLinks struct {
	base  string
	graph map[string][]string
	mu    sync.Mutex
	calls map[string]int
}

func (g *graphLinks) ExtractLinks(_ context.Context, pageURL string, _ *entity.BasicAuth) ([]string, error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]int)
	}
	g.calls[pageURL]++
	g.mu.Unlock()

	path := strings.TrimPrefix(pageURL, g.base)
	var out []string
	for _, l := range g.graph[path] {
		if strings.HasPrefix(l, "/") {
			l = g.base + l
		}
		out = append(out, l)
	}
	return out, nil
}

func okServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func validators(n int) []*StatusValidator {
	out := make([]*StatusValidator, n)
	for i := range out {
		out[i] = newTestValidator(StatusOptions{})
	}
	return out
}

func TestCrawlVisitsInternalPagesOnce(t *testing.T) {
	srv := okServer(t)
	links := &graphLinks{base: srv.URL, graph: map[string][]string{
		"/":      {"/about", "https://twitter.com/x", "mailto:info@example.com", "#top"},
		"/about": {"/", "/about/", "/about#team", "tel:5550100"},
	}}
	sink := &recordingSink{}

	c := NewCrawler(validators(3), links, CrawlOptions{}, nil, zap.NewNop())
	report, err := c.Crawl(context.Background(), srv.URL+"/", nil, nil, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{srv.URL + "/", srv.URL + "/about"}, report.Visited)
	assert.Equal(t, []string{"https://twitter.com/x"}, report.External)
	require.Len(t, report.NonNavigable, 2)
	assert.Equal(t, entity.KindEmail, report.NonNavigable[0].Kind)
	assert.Equal(t, entity.KindTelephone, report.NonNavigable[1].Kind)
	assert.False(t, report.Interrupted)
	for page, n := range links.calls {
		assert.Equal(t, 1, n, page)
	}
	assert.Len(t, sink.byCheck(entity.CheckStatus), 2)
}

func TestCrawlSkipsTemplateURLs(t *testing.T) {
	srv := okServer(t)
	links := &graphLinks{base: srv.URL, graph: map[string][]string{
		"/": {"/products/[slug]", "/x/{{name}}", "/promo-AUD_BRAND", "/contact", "/products/[slug]"},
	}}
	sink := &recordingSink{}

	c := NewCrawler(validators(2), links, CrawlOptions{}, nil, zap.NewNop())
	report, err := c.Crawl(context.Background(), srv.URL, nil, nil, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{srv.URL + "/", srv.URL + "/contact"}, report.Visited)
	assert.Len(t, report.Skipped, 3)
	skips := sink.byCheck(entity.CheckCrawl)
	require.Len(t, skips, 3)
	for _, e := range skips {
		assert.Equal(t, entity.StatusInfo, e.Status)
	}
}

func TestCrawlBoundedStopsAtMaxPages(t *testing.T) {
	srv := okServer(t)
	graph := map[string][]string{"/": {"/a", "/b", "/c", "/d"}, "/a": {"/e", "/f"}}
	links := &graphLinks{base: srv.URL, graph: graph}

	c := NewCrawler(validators(1), links, CrawlOptions{MaxPages: 3}, nil, zap.NewNop())
	report, err := c.Crawl(context.Background(), srv.URL+"/", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/", srv.URL + "/a", srv.URL + "/b"}, report.Visited)
}

func TestCrawlDoesNotExpandBrokenPages(t *testing.T) {
	srv := okServer(t)
	links := &graphLinks{base: srv.URL, graph: map[string][]string{
		"/":       {"/broken"},
		"/broken": {"/hidden"},
	}}
	sink := &recordingSink{}

	c := NewCrawler(validators(2), links, CrawlOptions{}, nil, zap.NewNop())
	report, err := c.Crawl(context.Background(), srv.URL+"/", nil, nil, sink)
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/", srv.URL + "/broken"}, report.Visited)
	assert.Equal(t, []string{srv.URL + "/"}, report.Reachable())

	var fails int
	for _, e := range sink.byCheck(entity.CheckStatus) {
		if e.Status == entity.StatusFail {
			fails++
			assert.Equal(t, srv.URL+"/broken", e.Target)
		}
	}
	assert.Equal(t, 1, fails)
}

func TestCrawlRespectsAllowFilter(t *testing.T) {
	srv := okServer(t)
	links := &graphLinks{base: srv.URL, graph: map[string][]string{"/": {"/private", "/public"}}}
	opts := CrawlOptions{Allow: func(_ context.Context, u string) bool { return !strings.Contains(u, "/private") }}

	c := NewCrawler(validators(1), links, opts, nil, zap.NewNop())
	report, err := c.Crawl(context.Background(), srv.URL+"/", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/private"}, report.Disallowed)
	assert.NotContains(t, report.Results, srv.URL+"/private")
	assert.Contains(t, report.Results, srv.URL+"/public")
}

func TestCrawlStopsDispatchingOnCancel(t *testing.T) {
	srv := okServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	links := &cancellingLinks{cancel: cancel, base: srv.URL}

	c := NewCrawler(validators(1), links, CrawlOptions{}, nil, zap.NewNop())
	report, err := c.Crawl(ctx, srv.URL+"/", nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, report.Interrupted)
	assert.Equal(t, []string{srv.URL + "/"}, report.Visited)
	assert.Contains(t, report.Results, srv.URL+"/")
}

// cancellingLinks cancels the run while the first page is in flight.
type cancellingLinks struct {
	cancel context.CancelFunc
	base   string
}

func (l *cancellingLinks) ExtractLinks(_ context.Context, _ string, _ *entity.BasicAuth) ([]string, error) {
	l.cancel()
	return []string{l.base + "/next", l.base + "/later"}, nil
}

func TestCrawlRejectsBadSeed(t *testing.T) {
	c := NewCrawler(validators(1), nil, CrawlOptions{}, nil, zap.NewNop())
	_, err := c.Crawl(context.Background(), "mailto:someone@example.com", nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidSeed)

	_, err = NewCrawler(nil, nil, CrawlOptions{}, nil, nil).Crawl(context.Background(), "https://example.com", nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoValidators)
}

func TestCrawlState(t *testing.T) {
	s := NewCrawlState()
	assert.True(t, s.Enqueue("a"))
	assert.True(t, s.Enqueue("b"))
	assert.False(t, s.Enqueue("a"))
	assert.Equal(t, 2, s.Len())

	u, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, "a", u)
	s.MarkVisited(u)
	assert.False(t, s.Enqueue("a"))
	assert.True(t, s.Visited("a"))
	assert.True(t, s.Seen("b"))
	assert.False(t, s.Visited("b"))

	u, _ = s.Next()
	assert.Equal(t, "b", u)
	_, ok = s.Next()
	assert.False(t, ok)
	assert.Equal(t, 1, s.VisitedCount())
}
