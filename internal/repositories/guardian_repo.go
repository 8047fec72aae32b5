package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/mithaq/internal/database"
	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GuardianRepository stores guardian records.
type GuardianRepository struct {
	pool *pgxpool.Pool
}

func NewGuardianRepository(db *database.DB) *GuardianRepository {
	return &GuardianRepository{pool: db.Pool}
}

const guardianColumns = `id, user_id, name, email, relationship, type, status, has_access_to_dashboard,
	platform_service_paid, notify_on_new_message, totp_secret_encrypted, totp_nonce, totp_last_used_at,
	reviewed_by, reviewed_at, created_at, updated_at`

func scanGuardianRow(scanner rowScanner) (*models.Guardian, error) {
	var g models.Guardian
	var gType, status string

	err := scanner.Scan(
		&g.ID, &g.UserID, &g.Name, &g.Email, &g.Relationship, &gType, &status,
		&g.HasAccessToDashboard, &g.PlatformServicePaid, &g.NotifyOnNewMessage,
		&g.TOTPSecretEncrypted, &g.TOTPNonce, &g.TOTPLastUsedAt,
		&g.ReviewedBy, &g.ReviewedAt, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	g.Type = models.GuardianType(gType)
	g.Status = models.GuardianStatus(status)
	return &g, nil
}

func scanGuardianRows(rows pgx.Rows) ([]*models.Guardian, error) {
	defer rows.Close()

	guardians := make([]*models.Guardian, 0)
	for rows.Next() {
		g, err := scanGuardianRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan guardian: %w", err)
		}
		guardians = append(guardians, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return guardians, nil
}

func (r *GuardianRepository) Create(ctx context.Context, g *models.Guardian) (*models.Guardian, error) {
	g.ID = uuid.New().String()
	if g.Status == "" {
		g.Status = models.GuardianStatusPending
	}

	query := `
		INSERT INTO guardians (id, user_id, name, email, relationship, type, status, notify_on_new_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + guardianColumns

	return scanGuardianRow(r.pool.QueryRow(ctx, query,
		g.ID, g.UserID, g.Name, g.Email, g.Relationship, string(g.Type), string(g.Status), g.NotifyOnNewMessage,
	))
}

func (r *GuardianRepository) GetByID(ctx context.Context, id string) (*models.Guardian, error) {
	query := `SELECT ` + guardianColumns + ` FROM guardians WHERE id = $1`
	return scanGuardianRow(r.pool.QueryRow(ctx, query, id))
}

// ListByUser returns every guardian record of a member, newest first.
func (r *GuardianRepository) ListByUser(ctx context.Context, userID string) ([]*models.Guardian, error) {
	query := `SELECT ` + guardianColumns + ` FROM guardians WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query guardians: %w", err)
	}

	return scanGuardianRows(rows)
}

// FindActive returns the most recently approved guardian of a member, or
// models.ErrNotFound when none is approved.
func (r *GuardianRepository) FindActive(ctx context.Context, userID string) (*models.Guardian, error) {
	query := `
		SELECT ` + guardianColumns + `
		FROM guardians
		WHERE user_id = $1 AND status = 'approved'
		ORDER BY reviewed_at DESC NULLS LAST, created_at DESC
		LIMIT 1
	`
	return scanGuardianRow(r.pool.QueryRow(ctx, query, userID))
}

// ExistsOpenWithEmail reports whether a pending or approved record with the
// same email already exists for the member.
func (r *GuardianRepository) ExistsOpenWithEmail(ctx context.Context, userID, email string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM guardians
			WHERE user_id = $1 AND lower(email) = lower($2) AND status IN ('pending', 'approved')
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check guardian email: %w", err)
	}
	return exists, nil
}

// GuardianReview holds the decision recorded by an administrator.
type GuardianReview struct {
	Status               models.GuardianStatus
	HasAccessToDashboard bool
	PlatformServicePaid  bool
	NotifyOnNewMessage   bool
	ReviewedBy           string
}

func (r *GuardianRepository) Review(ctx context.Context, id string, review GuardianReview) (*models.Guardian, error) {
	query := `
		UPDATE guardians
		SET status = $2, has_access_to_dashboard = $3, platform_service_paid = $4,
		    notify_on_new_message = $5, reviewed_by = $6, reviewed_at = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + guardianColumns

	return scanGuardianRow(r.pool.QueryRow(ctx, query,
		id, string(review.Status), review.HasAccessToDashboard, review.PlatformServicePaid,
		review.NotifyOnNewMessage, review.ReviewedBy,
	))
}

func (r *GuardianRepository) UpdateNotifyOnNewMessage(ctx context.Context, id string, notify bool) (*models.Guardian, error) {
	query := `
		UPDATE guardians SET notify_on_new_message = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + guardianColumns

	return scanGuardianRow(r.pool.QueryRow(ctx, query, id, notify))
}

// SetAuthenticator stores an encrypted authenticator secret, replacing any previous one.
func (r *GuardianRepository) SetAuthenticator(ctx context.Context, id string, encryptedSecret, nonce []byte) error {
	query := `
		UPDATE guardians
		SET totp_secret_encrypted = $2, totp_nonce = $3, totp_last_used_at = NULL, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, encryptedSecret, nonce)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// MarkAuthenticatorUsed records the last accepted code time for replay protection.
func (r *GuardianRepository) MarkAuthenticatorUsed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE guardians SET totp_last_used_at = $2 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
