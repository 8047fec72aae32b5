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

type MemberRepository struct {
	pool *pgxpool.Pool
}

func NewMemberRepository(db *database.DB) *MemberRepository {
	return &MemberRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const memberColumns = `id, email, password_hash, name, gender, role, is_active, is_banned, banned_at, suspend_until, suspension_reason, created_at, updated_at`

// scanMemberRow populates a Member model from a database row
func scanMemberRow(scanner rowScanner) (*models.Member, error) {
	var m models.Member
	var gender, role string

	err := scanner.Scan(
		&m.ID, &m.Email, &m.PasswordHash, &m.Name, &gender, &role,
		&m.IsActive, &m.IsBanned, &m.BannedAt, &m.SuspendUntil, &m.SuspensionReason,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	m.Gender = models.Gender(gender)
	m.Role = models.Role(role)
	return &m, nil
}

func scanMemberRows(rows pgx.Rows) ([]*models.Member, error) {
	defer rows.Close()

	members := make([]*models.Member, 0)
	for rows.Next() {
		m, err := scanMemberRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return members, nil
}

func (r *MemberRepository) GetByID(ctx context.Context, id string) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	return scanMemberRow(r.pool.QueryRow(ctx, query, id))
}

func (r *MemberRepository) GetByEmail(ctx context.Context, email string) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE email = $1`
	return scanMemberRow(r.pool.QueryRow(ctx, query, email))
}

func (r *MemberRepository) Create(ctx context.Context, m *models.Member) (*models.Member, error) {
	m.ID = uuid.New().String()

	if m.Role == "" {
		m.Role = models.RoleSeeker
	}

	now := time.Now()
	query := `
		INSERT INTO members (id, email, password_hash, name, gender, role, is_active, is_banned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, FALSE, $7, $7)
		RETURNING ` + memberColumns

	return scanMemberRow(r.pool.QueryRow(ctx, query,
		m.ID, m.Email, m.PasswordHash, m.Name, string(m.Gender), string(m.Role), now,
	))
}

// Suspend deactivates a member until the given time.
func (r *MemberRepository) Suspend(ctx context.Context, id string, until time.Time, reason string) (*models.Member, error) {
	query := `
		UPDATE members
		SET is_active = FALSE, suspend_until = $2, suspension_reason = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + memberColumns

	return scanMemberRow(r.pool.QueryRow(ctx, query, id, until, reason))
}

// Ban permanently deactivates a member.
func (r *MemberRepository) Ban(ctx context.Context, id string, reason string, at time.Time) (*models.Member, error) {
	query := `
		UPDATE members
		SET is_active = FALSE, is_banned = TRUE, banned_at = COALESCE(banned_at, $2),
		    suspension_reason = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + memberColumns

	return scanMemberRow(r.pool.QueryRow(ctx, query, id, at, reason))
}

// Reactivate clears suspension and ban flags.
func (r *MemberRepository) Reactivate(ctx context.Context, id string) (*models.Member, error) {
	query := `
		UPDATE members
		SET is_active = TRUE, is_banned = FALSE, banned_at = NULL, suspend_until = NULL,
		    suspension_reason = '', updated_at = NOW()
		WHERE id = $1
		RETURNING ` + memberColumns

	return scanMemberRow(r.pool.QueryRow(ctx, query, id))
}

// ListExpiredSuspensions returns suspended, non-banned members whose suspension has elapsed.
func (r *MemberRepository) ListExpiredSuspensions(ctx context.Context, now time.Time, limit int) ([]*models.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE is_active = FALSE AND is_banned = FALSE AND suspend_until IS NOT NULL AND suspend_until <= $1
		ORDER BY suspend_until
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired suspensions: %w", err)
	}

	return scanMemberRows(rows)
}

// LiftSuspension reactivates a member whose suspension has elapsed. It
// returns models.ErrNotFound when the member was banned or re-suspended meanwhile.
func (r *MemberRepository) LiftSuspension(ctx context.Context, id string, now time.Time) (*models.Member, error) {
	query := `
		UPDATE members
		SET is_active = TRUE, suspend_until = NULL, suspension_reason = '', updated_at = NOW()
		WHERE id = $1 AND is_banned = FALSE AND is_active = FALSE AND suspend_until <= $2
		RETURNING ` + memberColumns

	return scanMemberRow(r.pool.QueryRow(ctx, query, id, now))
}

// AddWarning appends a warning to the member's record.
func (r *MemberRepository) AddWarning(ctx context.Context, w *models.Warning) (*models.Warning, error) {
	w.ID = uuid.New().String()

	var issuedBy *string
	if w.IssuedBy != "" {
		issuedBy = &w.IssuedBy
	}

	query := `
		INSERT INTO member_warnings (id, member_id, reason, issued_by)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	if err := r.pool.QueryRow(ctx, query, w.ID, w.MemberID, w.Reason, issuedBy).Scan(&w.CreatedAt); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return w, nil
}

// ListWarnings returns a member's warnings, oldest first.
func (r *MemberRepository) ListWarnings(ctx context.Context, memberID string) ([]models.Warning, error) {
	query := `
		SELECT id, member_id, reason, COALESCE(issued_by::text, ''), created_at
		FROM member_warnings
		WHERE member_id = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to query warnings: %w", err)
	}
	defer rows.Close()

	warnings := make([]models.Warning, 0)
	for rows.Next() {
		var w models.Warning
		if err := rows.Scan(&w.ID, &w.MemberID, &w.Reason, &w.IssuedBy, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan warning: %w", err)
		}
		warnings = append(warnings, w)
	}

	return warnings, rows.Err()
}
