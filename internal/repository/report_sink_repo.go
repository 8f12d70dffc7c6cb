package repository

import (
	"context"

	"github.com/user/site-auditor/internal/entity"
)

// ReportSink receives structured check results.
type ReportSink interface {
	Emit(ctx context.Context, event entity.ReportEvent) error
}

// EventReader lists the stored events of a run.
type EventReader interface {
	FindByRun(ctx context.Context, runID string) ([]entity.ReportEvent, error)
}
