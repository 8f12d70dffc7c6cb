package web

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsGuard caches robots.txt per host. Hosts whose robots.txt cannot be
// read are treated as allowing everything.
type RobotsGuard struct {
	client *http.Client
	agent  string

	mu    sync.Mutex
	rules map[string]*robotstxt.RobotsData
}

// NewRobotsGuard returns a guard fetching with client as agent.
func NewRobotsGuard(client *http.Client, agent string) *RobotsGuard {
	if client == nil {
		client = http.DefaultClient
	}
	return &RobotsGuard{client: client, agent: agent, rules: make(map[string]*robotstxt.RobotsData)}
}

// Allowed reports whether rawURL may be crawled.
func (g *RobotsGuard) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	rules := g.rulesFor(ctx, u)
	if rules == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return rules.TestAgent(path, g.agent)
}

func (g *RobotsGuard) rulesFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := strings.ToLower(u.Scheme + "://" + u.Host)

	g.mu.Lock()
	rules, ok := g.rules[key]
	g.mu.Unlock()
	if ok {
		return rules
	}

	rules = g.fetch(ctx, key+"/robots.txt")
	g.mu.Lock()
	g.rules[key] = rules
	g.mu.Unlock()
	return rules
}

func (g *RobotsGuard) fetch(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", g.agent)
	resp, err := g.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil
	}
	rules, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil
	}
	return rules
}
