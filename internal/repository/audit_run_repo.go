package repository

import (
	"context"

	"github.com/user/site-auditor/internal/entity"
)

// AuditRunRepository stores audit runs and their summaries.
type AuditRunRepository interface {
	// Save inserts or updates a run.
	Save(ctx context.Context, run *entity.AuditRun) error
	// FindByID returns the run with id, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*entity.AuditRun, error)
}
