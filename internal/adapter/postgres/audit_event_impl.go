package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/site-auditor/internal/entity"
)

// AuditEventRepoImpl stores report events; it is used as a report sink.
type AuditEventRepoImpl struct {
	db *pgxpool.Pool
}

// NewAuditEventRepo creates a new instance of AuditEventRepoImpl.
func NewAuditEventRepo(db *pgxpool.Pool) *AuditEventRepoImpl {
	return &AuditEventRepoImpl{db: db}
}

// Emit implements repository.ReportSink.
func (r *AuditEventRepoImpl) Emit(ctx context.Context, event entity.ReportEvent) error {
	query := `
		INSERT INTO audit_events (run_id, site, page, check_kind, target, status, message, matched_mode, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err := r.db.Exec(ctx, query,
		event.RunID,
		event.Site,
		event.Page,
		string(event.Check),
		event.Target,
		string(event.Status),
		event.Message,
		string(event.MatchedMode),
		event.At,
	)
	return err
}

// FindByRun lists the events of a run in the order they were stored.
func (r *AuditEventRepoImpl) FindByRun(ctx context.Context, runID string) ([]entity.ReportEvent, error) {
	query := `
		SELECT run_id, site, page, check_kind, target, status, message, matched_mode, created_at
		FROM audit_events
		WHERE run_id = $1
		ORDER BY id ASC;
	`
	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []entity.ReportEvent
	for rows.Next() {
		var (
			ev                  entity.ReportEvent
			check, status, mode string
		)
		if err := rows.Scan(&ev.RunID, &ev.Site, &ev.Page, &check, &ev.Target, &status, &ev.Message, &mode, &ev.At); err != nil {
			return nil, err
		}
		ev.Check = entity.CheckKind(check)
		ev.Status = entity.EventStatus(status)
		ev.MatchedMode = entity.MatchMode(mode)
		events = append(events, ev)
	}
	return events, rows.Err()
}
