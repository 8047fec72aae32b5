package repositories

import (
	"context"

	"github.com/BradenHooton/mithaq/internal/database"
	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// BanCascadeRepository records progress of ban cascades.
type BanCascadeRepository struct {
	pool *pgxpool.Pool
}

func NewBanCascadeRepository(db *database.DB) *BanCascadeRepository {
	return &BanCascadeRepository{pool: db.Pool}
}

// Start opens (or reopens) the cascade marker of a member.
func (r *BanCascadeRepository) Start(ctx context.Context, memberID string) error {
	query := `
		INSERT INTO ban_cascades (member_id, started_at, completed_at, steps_completed, last_error)
		VALUES ($1, NOW(), NULL, '{}', NULL)
		ON CONFLICT (member_id) DO UPDATE
		SET started_at = NOW(), completed_at = NULL, steps_completed = '{}', last_error = NULL
	`

	_, err := r.pool.Exec(ctx, query, memberID)
	return database.MapPostgresError(err)
}

// MarkStep records a successfully completed step.
func (r *BanCascadeRepository) MarkStep(ctx context.Context, memberID, step string) error {
	query := `
		UPDATE ban_cascades
		SET steps_completed = array_append(array_remove(steps_completed, $2), $2)
		WHERE member_id = $1
	`

	_, err := r.pool.Exec(ctx, query, memberID, step)
	return database.MapPostgresError(err)
}

// RecordError stores the last failure of a cascade.
func (r *BanCascadeRepository) RecordError(ctx context.Context, memberID, message string) error {
	_, err := r.pool.Exec(ctx, `UPDATE ban_cascades SET last_error = $2 WHERE member_id = $1`, memberID, message)
	return database.MapPostgresError(err)
}

// Complete sets the completion marker.
func (r *BanCascadeRepository) Complete(ctx context.Context, memberID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE ban_cascades SET completed_at = NOW(), last_error = NULL WHERE member_id = $1`, memberID)
	return database.MapPostgresError(err)
}

func (r *BanCascadeRepository) Get(ctx context.Context, memberID string) (*models.BanCascade, error) {
	query := `
		SELECT member_id, started_at, completed_at, steps_completed, last_error
		FROM ban_cascades WHERE member_id = $1
	`

	var bc models.BanCascade
	err := r.pool.QueryRow(ctx, query, memberID).Scan(
		&bc.MemberID, &bc.StartedAt, &bc.CompletedAt, pq.Array(&bc.StepsCompleted), &bc.LastError,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &bc, nil
}
