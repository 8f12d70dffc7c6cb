package repository

import (
	"context"
	"time"

	"github.com/user/site-auditor/internal/entity"
)

// StatusCache shares reachability results between sites of one batch.
type StatusCache interface {
	// Get returns the cached result and whether it was present.
	Get(ctx context.Context, url string) (entity.ValidationResult, bool, error)
	// Set stores a result for ttl.
	Set(ctx context.Context, result entity.ValidationResult, ttl time.Duration) error
}
