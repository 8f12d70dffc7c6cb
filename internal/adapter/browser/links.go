package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/internal/repository"
)

// LinkExtractor expands crawl pages with a rendered browser tab so links
// injected by client-side scripts are found. Calls are serialized; one
// session is started on first use per set of credentials.
type LinkExtractor struct {
	factory repository.BrowserFactory

	mu       sync.Mutex
	sessions map[entity.BasicAuth]repository.Browser
}

func NewLinkExtractor(factory repository.BrowserFactory) *LinkExtractor {
	return &LinkExtractor{
		factory:  factory,
		sessions: make(map[entity.BasicAuth]repository.Browser),
	}
}

// ExtractLinks implements repository.LinkExtractor.
func (e *LinkExtractor) ExtractLinks(ctx context.Context, pageURL string, auth *entity.BasicAuth) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var key entity.BasicAuth
	if auth != nil {
		key = *auth
	}
	session, ok := e.sessions[key]
	if !ok {
		s, err := e.factory.Acquire(ctx, auth)
		if err != nil {
			return nil, fmt.Errorf("start link browser: %w", err)
		}
		e.sessions[key] = s
		session = s
	}
	if err := session.Navigate(ctx, pageURL); err != nil {
		if resetErr := session.Reset(ctx); resetErr != nil {
			return nil, fmt.Errorf("%w (reset: %v)", err, resetErr)
		}
		return nil, err
	}
	return session.Links(ctx)
}

// Close releases every started session.
func (e *LinkExtractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for key, s := range e.sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(e.sessions, key)
	}
	return errors.Join(errs...)
}
