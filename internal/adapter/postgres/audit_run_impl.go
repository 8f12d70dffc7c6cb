package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/internal/repository"
)

// AuditRunRepoImpl implements repository.AuditRunRepository on PostgreSQL.
// Target and summary are stored as JSONB.
type AuditRunRepoImpl struct {
	db *pgxpool.Pool
}

// NewAuditRunRepo creates a new instance of AuditRunRepoImpl.
func NewAuditRunRepo(db *pgxpool.Pool) *AuditRunRepoImpl {
	return &AuditRunRepoImpl{db: db}
}

// Save stores or updates a run.
func (r *AuditRunRepoImpl) Save(ctx context.Context, run *entity.AuditRun) error {
	targetJSON, err := json.Marshal(run.Target)
	if err != nil {
		return err
	}
	var summaryJSON []byte
	if run.Summary != nil {
		if summaryJSON, err = json.Marshal(run.Summary); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO audit_runs (id, site, target, state, summary, error, submitted_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			summary = EXCLUDED.summary,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at;
	`
	_, err = r.db.Exec(ctx, query,
		run.ID,
		run.Target.Website,
		targetJSON,
		string(run.State),
		summaryJSON,
		run.Error,
		run.SubmittedAt,
		run.FinishedAt,
	)
	return err
}

// FindByID retrieves a run, or repository.ErrNotFound.
func (r *AuditRunRepoImpl) FindByID(ctx context.Context, id string) (*entity.AuditRun, error) {
	query := `
		SELECT id, target, state, summary, error, submitted_at, finished_at
		FROM audit_runs
		WHERE id = $1;
	`
	var (
		run         entity.AuditRun
		targetJSON  []byte
		summaryJSON []byte
		state       string
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&run.ID,
		&targetJSON,
		&state,
		&summaryJSON,
		&run.Error,
		&run.SubmittedAt,
		&run.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	run.State = entity.RunState(state)

	if err := json.Unmarshal(targetJSON, &run.Target); err != nil {
		return nil, err
	}
	if len(summaryJSON) > 0 {
		run.Summary = &entity.SiteSummary{}
		if err := json.Unmarshal(summaryJSON, run.Summary); err != nil {
			return nil, err
		}
	}
	return &run, nil
}
