package repository

import (
	"context"

	"github.com/user/site-auditor/internal/entity"
)

// ContentFetcher retrieves raw document bodies.
type ContentFetcher interface {
	// Fetch returns the decoded body of url. Transport content encodings are
	// removed; file-level compression such as .xml.gz is left to the caller.
	Fetch(ctx context.Context, url string, auth *entity.BasicAuth) ([]byte, error)
}

// LinkExtractor expands a page into the links it contains. auth is nil for
// public sites.
type LinkExtractor interface {
	ExtractLinks(ctx context.Context, pageURL string, auth *entity.BasicAuth) ([]string, error)
}
