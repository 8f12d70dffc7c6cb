package repository

import (
	"context"

	"github.com/user/site-auditor/internal/entity"
)

// Browser is a rendering session bound to one site. It is not safe for
// concurrent use; callers drive it from a single goroutine.
type Browser interface {
	// Navigate loads url and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// Location returns the current document URL.
	Location(ctx context.Context) (string, error)
	// HTML returns the rendered outer HTML of the document.
	HTML(ctx context.Context) (string, error)
	// ScrollToBottom scrolls the page to trigger lazily rendered content.
	ScrollToBottom(ctx context.Context) error
	// Links returns the absolute href of every anchor on the page.
	Links(ctx context.Context) ([]string, error)
	// CountCTAs returns the number of interactive elements on the page.
	CountCTAs(ctx context.Context) (int, error)
	// CTAAt re-queries the live element list and returns the element at index.
	CTAAt(ctx context.Context, index int) entity.CTALookup
	// ClickCTA clicks the element at index in the live element list.
	ClickCTA(ctx context.Context, index int) error
	// Reset discards the current tab and opens a fresh one.
	Reset(ctx context.Context) error
	// Close releases the session.
	Close() error
}

// BrowserFactory hands out one Browser per site.
type BrowserFactory interface {
	Acquire(ctx context.Context, auth *entity.BasicAuth) (Browser, error)
}
