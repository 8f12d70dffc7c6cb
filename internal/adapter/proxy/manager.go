package proxy

import (
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

var browserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36",
}

// Manager handles the rotation of proxies and browser user agents.
type Manager struct {
	proxies    []*url.URL
	userAgents []string
	mu         sync.Mutex
	proxyIndex int
}

// NewManager builds a manager. A non-empty preferred agent replaces the
// built-in browser list; unparsable proxies are dropped.
func NewManager(proxies []string, preferredAgent string) *Manager {
	m := &Manager{userAgents: browserAgents}
	if a := strings.TrimSpace(preferredAgent); a != "" {
		m.userAgents = []string{a}
	}
	for _, p := range proxies {
		u, err := url.Parse(strings.TrimSpace(p))
		if err != nil || u.Host == "" {
			continue
		}
		m.proxies = append(m.proxies, u)
	}
	return m
}

// NextProxy returns a proxy URL, rotating sequentially, or nil for direct.
func (m *Manager) NextProxy() *url.URL {
	if m == nil || len(m.proxies) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.proxies[m.proxyIndex]
	m.proxyIndex = (m.proxyIndex + 1) % len(m.proxies)
	return p
}

// ProxyFunc adapts NextProxy for http.Transport.Proxy.
func (m *Manager) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		if p := m.NextProxy(); p != nil {
			return p, nil
		}
		return http.ProxyFromEnvironment(req)
	}
}

// UserAgent returns a browser-like user agent string.
func (m *Manager) UserAgent() string {
	if m == nil || len(m.userAgents) == 0 {
		return browserAgents[0]
	}
	return m.userAgents[rand.IntN(len(m.userAgents))]
}
