package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/mithaq/internal/database"
	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LikeRepository struct {
	pool *pgxpool.Pool
}

func NewLikeRepository(db *database.DB) *LikeRepository {
	return &LikeRepository{pool: db.Pool}
}

const likeColumns = `id, from_id, to_id, mutual_match, approved_by_wali, created_at`

func scanLikeRow(scanner rowScanner) (*models.Like, error) {
	var l models.Like

	if err := scanner.Scan(&l.ID, &l.FromID, &l.ToID, &l.MutualMatch, &l.ApprovedByWali, &l.CreatedAt); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &l, nil
}

func scanLikeRows(rows pgx.Rows) ([]*models.Like, error) {
	defer rows.Close()

	likes := make([]*models.Like, 0)
	for rows.Next() {
		l, err := scanLikeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan like: %w", err)
		}
		likes = append(likes, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return likes, nil
}

// Create inserts a like, returning the existing row when the direction is already liked.
func (r *LikeRepository) Create(ctx context.Context, fromID, toID string, mutual bool) (*models.Like, bool, error) {
	insert := `
		INSERT INTO likes (id, from_id, to_id, mutual_match)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (from_id, to_id) DO NOTHING
		RETURNING ` + likeColumns

	l, err := scanLikeRow(r.pool.QueryRow(ctx, insert, uuid.New().String(), fromID, toID, mutual))
	if err == nil {
		return l, true, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, err
	}

	l, err = r.GetByPair(ctx, fromID, toID)
	if err != nil {
		return nil, false, err
	}
	return l, false, nil
}

func (r *LikeRepository) GetByID(ctx context.Context, id string) (*models.Like, error) {
	query := `SELECT ` + likeColumns + ` FROM likes WHERE id = $1`
	return scanLikeRow(r.pool.QueryRow(ctx, query, id))
}

// GetByPair returns the like from fromID to toID.
func (r *LikeRepository) GetByPair(ctx context.Context, fromID, toID string) (*models.Like, error) {
	query := `SELECT ` + likeColumns + ` FROM likes WHERE from_id = $1 AND to_id = $2`
	return scanLikeRow(r.pool.QueryRow(ctx, query, fromID, toID))
}

// ListAwaitingGuardian returns likes received by a member that have no guardian decision.
func (r *LikeRepository) ListAwaitingGuardian(ctx context.Context, toID string) ([]*models.Like, error) {
	query := `
		SELECT ` + likeColumns + `
		FROM likes
		WHERE to_id = $1 AND approved_by_wali IS NULL AND mutual_match = FALSE
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, toID)
	if err != nil {
		return nil, fmt.Errorf("failed to query likes: %w", err)
	}

	return scanLikeRows(rows)
}

// SetMutual marks a like as part of a mutual match.
func (r *LikeRepository) SetMutual(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `UPDATE likes SET mutual_match = TRUE WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Approve marks a like as guardian-approved and mutual, and creates the
// reciprocal like unless one already exists. It reports whether a row was created.
func (r *LikeRepository) Approve(ctx context.Context, id string) (*models.Like, bool, error) {
	var approved *models.Like
	var created bool

	err := database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		update := `
			UPDATE likes SET mutual_match = TRUE, approved_by_wali = TRUE
			WHERE id = $1
			RETURNING ` + likeColumns

		l, err := scanLikeRow(tx.QueryRow(ctx, update, id))
		if err != nil {
			return err
		}

		insert := `
			INSERT INTO likes (id, from_id, to_id, mutual_match, approved_by_wali)
			VALUES ($1, $2, $3, TRUE, TRUE)
			ON CONFLICT (from_id, to_id) DO NOTHING
		`
		result, err := tx.Exec(ctx, insert, uuid.New().String(), l.ToID, l.FromID)
		if err != nil {
			return database.MapPostgresError(err)
		}

		created = result.RowsAffected() == 1
		if !created {
			// The reciprocal predates the approval and joins the match.
			reciprocal := `UPDATE likes SET mutual_match = TRUE WHERE from_id = $1 AND to_id = $2`
			if _, err := tx.Exec(ctx, reciprocal, l.ToID, l.FromID); err != nil {
				return database.MapPostgresError(err)
			}
		}

		approved = l
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return approved, created, nil
}

func (r *LikeRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM likes WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteByMember removes every like sent or received by a member.
func (r *LikeRepository) DeleteByMember(ctx context.Context, memberID string) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM likes WHERE from_id = $1 OR to_id = $1`, memberID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
