package repository

import (
	"context"

	"github.com/user/site-auditor/internal/entity"
)

// BrokenLinkRepository tracks links that failed validation.
type BrokenLinkRepository interface {
	// SaveOrUpdate records a failure, incrementing occurrences on conflict.
	SaveOrUpdate(ctx context.Context, link *entity.BrokenLink) error
	// FindBySite lists the known broken links of a site.
	FindBySite(ctx context.Context, site string, limit int) ([]*entity.BrokenLink, error)
	// Delete removes a link once it resolves again.
	Delete(ctx context.Context, site, url string) error
}
