package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/iatidata/sector-harvester/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ActivityArchiveRepository keeps harvested activities in PostgreSQL as JSONB.
type ActivityArchiveRepository struct {
	pool *pgxpool.Pool
}

// NewActivityArchiveRepository creates a new ActivityArchiveRepository.
func NewActivityArchiveRepository(pool *pgxpool.Pool) *ActivityArchiveRepository {
	return &ActivityArchiveRepository{pool: pool}
}

// Save UPSERTs the activity; a later copy of the same identifier replaces the earlier one.
func (r *ActivityArchiveRepository) Save(ctx context.Context, runID, identifier string, a *model.Activity) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO iati_activities (iati_identifier, activity, run_id, harvested_at)
		 VALUES ($1, $2::jsonb, $3, NOW())
		 ON CONFLICT (iati_identifier) DO UPDATE
		 SET activity = EXCLUDED.activity, run_id = EXCLUDED.run_id, harvested_at = NOW()`,
		strings.TrimSpace(identifier), string(a.Raw), runID,
	)
	return err
}

// Clean deletes every archived activity and returns the number of rows removed.
func (r *ActivityArchiveRepository) Clean(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM iati_activities`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// List returns archived identifiers ordered ascending, plus the total count.
func (r *ActivityArchiveRepository) List(ctx context.Context, limit, offset int) ([]string, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM iati_activities`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT iati_identifier FROM iati_activities ORDER BY iati_identifier ASC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, 0, err
		}
		ids = append(ids, id)
	}
	return ids, total, rows.Err()
}

// Get retrieves an archived activity by identifier.
func (r *ActivityArchiveRepository) Get(ctx context.Context, identifier string) (*model.StoredActivity, error) {
	s := &model.StoredActivity{}
	err := r.pool.QueryRow(ctx,
		`SELECT iati_identifier, activity, harvested_at FROM iati_activities WHERE iati_identifier = $1`,
		strings.TrimSpace(identifier),
	).Scan(&s.IATIIdentifier, &s.Activity, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrActivityNotFound
		}
		return nil, err
	}
	return s, nil
}
