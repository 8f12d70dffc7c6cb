package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/site-auditor/internal/entity"
)

// BrokenLinkRepoImpl implements repository.BrokenLinkRepository on PostgreSQL.
type BrokenLinkRepoImpl struct {
	db *pgxpool.Pool
}

// NewBrokenLinkRepo creates a new instance of BrokenLinkRepoImpl.
func NewBrokenLinkRepo(db *pgxpool.Pool) *BrokenLinkRepoImpl {
	return &BrokenLinkRepoImpl{db: db}
}

// SaveOrUpdate creates or updates the record of a broken link.
// It increments occurrences on conflict and keeps first_seen.
func (r *BrokenLinkRepoImpl) SaveOrUpdate(ctx context.Context, link *entity.BrokenLink) error {
	query := `
		INSERT INTO broken_links (site, url, status, reason, message, first_seen, last_seen, occurrences)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
		ON CONFLICT (site, url) DO UPDATE SET
			status = EXCLUDED.status,
			reason = EXCLUDED.reason,
			message = EXCLUDED.message,
			last_seen = EXCLUDED.last_seen,
			occurrences = broken_links.occurrences + 1;
	`
	_, err := r.db.Exec(ctx, query,
		link.Site,
		link.URL,
		link.Status,
		string(link.Reason),
		link.Message,
		link.FirstSeen,
		link.LastSeen,
	)
	return err
}

// FindBySite lists the broken links of a site, most recently seen first.
func (r *BrokenLinkRepoImpl) FindBySite(ctx context.Context, site string, limit int) ([]*entity.BrokenLink, error) {
	query := `
		SELECT id, site, url, status, reason, message, first_seen, last_seen, occurrences
		FROM broken_links
		WHERE site = $1
		ORDER BY last_seen DESC
		LIMIT $2;
	`
	rows, err := r.db.Query(ctx, query, site, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*entity.BrokenLink
	for rows.Next() {
		var (
			bl     entity.BrokenLink
			reason string
		)
		if err := rows.Scan(
			&bl.ID,
			&bl.Site,
			&bl.URL,
			&bl.Status,
			&reason,
			&bl.Message,
			&bl.FirstSeen,
			&bl.LastSeen,
			&bl.Occurrences,
		); err != nil {
			return nil, err
		}
		bl.Reason = entity.ReasonCode(reason)
		links = append(links, &bl)
	}
	return links, rows.Err()
}

// Delete removes a link record once the link resolves again.
func (r *BrokenLinkRepoImpl) Delete(ctx context.Context, site, url string) error {
	query := `DELETE FROM broken_links WHERE site = $1 AND url = $2;`
	_, err := r.db.Exec(ctx, query, site, url)
	return err
}
