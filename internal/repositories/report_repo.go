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
	"github.com/lib/pq"
)

type ReportRepository struct {
	pool *pgxpool.Pool
}

func NewReportRepository(db *database.DB) *ReportRepository {
	return &ReportRepository{pool: db.Pool}
}

const reportColumns = `id, reporter_id, reported_user_id, type, description, evidence, status, severity,
	resolution, action_taken, reviewed_by, reviewed_at, created_at, updated_at`

func scanReportRow(scanner rowScanner) (*models.Report, error) {
	var rep models.Report
	var status, severity, action string

	err := scanner.Scan(
		&rep.ID, &rep.ReporterID, &rep.ReportedUserID, &rep.Type, &rep.Description,
		pq.Array(&rep.Evidence), &status, &severity, &rep.Resolution, &action,
		&rep.ReviewedBy, &rep.ReviewedAt, &rep.CreatedAt, &rep.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	rep.Status = models.ReportStatus(status)
	rep.Severity = models.ReportSeverity(severity)
	rep.ActionTaken = models.ReportAction(action)
	if rep.Evidence == nil {
		rep.Evidence = []string{}
	}
	return &rep, nil
}

func scanReportRows(rows pgx.Rows) ([]*models.Report, error) {
	defer rows.Close()

	reports := make([]*models.Report, 0)
	for rows.Next() {
		rep, err := scanReportRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, rep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return reports, nil
}

func (r *ReportRepository) Create(ctx context.Context, rep *models.Report) (*models.Report, error) {
	rep.ID = uuid.New().String()
	rep.Status = models.ReportStatusPending
	rep.ActionTaken = models.ActionNone
	if rep.Severity == "" {
		rep.Severity = models.SeverityLow
	}
	if rep.Evidence == nil {
		rep.Evidence = []string{}
	}

	query := `
		INSERT INTO reports (id, reporter_id, reported_user_id, type, description, evidence, status, severity, action_taken)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + reportColumns

	return scanReportRow(r.pool.QueryRow(ctx, query,
		rep.ID, rep.ReporterID, rep.ReportedUserID, rep.Type, rep.Description, pq.Array(rep.Evidence),
		string(rep.Status), string(rep.Severity), string(rep.ActionTaken),
	))
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	return scanReportRow(r.pool.QueryRow(ctx, query, id))
}

// List returns reports newest first, optionally filtered by status.
func (r *ReportRepository) List(ctx context.Context, status models.ReportStatus, limit, offset int) ([]*models.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}

	return scanReportRows(rows)
}

// ReportTransition describes a status change. Nil fields keep their value.
type ReportTransition struct {
	From        []models.ReportStatus
	To          models.ReportStatus
	Severity    *models.ReportSeverity
	Resolution  *string
	ActionTaken *models.ReportAction
	ReviewedBy  string
}

// Transition applies t only while the report is in one of t.From. It returns
// models.ErrInvalidState when the report exists in another status.
func (r *ReportRepository) Transition(ctx context.Context, id string, t ReportTransition) (*models.Report, error) {
	from := make([]string, len(t.From))
	for i, s := range t.From {
		from[i] = string(s)
	}

	var severity, action *string
	if t.Severity != nil {
		s := string(*t.Severity)
		severity = &s
	}
	if t.ActionTaken != nil {
		a := string(*t.ActionTaken)
		action = &a
	}

	query := `
		UPDATE reports
		SET status = $2,
		    severity = COALESCE($3, severity),
		    resolution = COALESCE($4, resolution),
		    action_taken = COALESCE($5, action_taken),
		    reviewed_by = $6,
		    reviewed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = ANY($7)
		RETURNING ` + reportColumns

	rep, err := scanReportRow(r.pool.QueryRow(ctx, query,
		id, string(t.To), severity, t.Resolution, action, t.ReviewedBy, from,
	))
	if err == nil {
		return rep, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, models.ErrInvalidState
}
