package repository

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by lookups that match no record.
	ErrNotFound = errors.New("record not found")
	// ErrQueueEmpty is returned by Pop when no run is waiting.
	ErrQueueEmpty = errors.New("queue is empty")
)

// AuditQueue holds submitted run IDs until a worker picks them up.
type AuditQueue interface {
	Push(ctx context.Context, runID string) error
	// Pop removes the oldest run ID or returns ErrQueueEmpty.
	Pop(ctx context.Context) (string, error)
	Size(ctx context.Context) (int64, error)
}

// RecentAuditRepository remembers which sites were audited recently so that
// repeated submissions can be refused.
type RecentAuditRepository interface {
	MarkAudited(ctx context.Context, site string, expiry time.Duration) error
	IsAudited(ctx context.Context, site string) (bool, error)
	RemoveAudited(ctx context.Context, site string) error
}
