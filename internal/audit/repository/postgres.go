package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/fekuna/omnipos-order-service/internal/model"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Append(ctx context.Context, entry *model.ActivityLog) error {
	query := `
        INSERT INTO activity_logs (
            id, actor_id, branch_id, action, resource_type, resource_id, details, created_at
        )
        VALUES (
            :id, :actor_id, :branch_id, :action, :resource_type, :resource_id, :details, :created_at
        )
    `
	_, err := r.DB.NamedExecContext(ctx, query, entry)
	return errors.Wrap(err, "insert activity log")
}

// History lists the records of one resource, oldest first.
func (r *PGRepository) History(ctx context.Context, resourceType, resourceID string) ([]model.ActivityLog, error) {
	var entries []model.ActivityLog
	query := `SELECT * FROM activity_logs WHERE resource_type = $1 AND resource_id = $2 ORDER BY created_at ASC`
	if err := r.DB.SelectContext(ctx, &entries, query, resourceType, resourceID); err != nil {
		return nil, errors.Wrap(err, "select activity logs")
	}
	return entries, nil
}
