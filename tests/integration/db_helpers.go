//go:build integration

package integration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BradenHooton/mithaq/internal/database"
	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/BradenHooton/mithaq/migrations"
	"github.com/BradenHooton/mithaq/pkg/auth"
)

// TestDB manages a PostgreSQL testcontainer with the schema applied
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase starts PostgreSQL, runs the embedded migrations and
// returns a ready TestDB
func SetupTestDatabase(ctx context.Context, logger *slog.Logger) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("mithaq"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := database.Migrate(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         &database.DB{Pool: pool},
	}, nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates every table for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"moderation_audit_logs",
		"ban_cascades",
		"likes",
		"reports",
		"messages",
		"conversations",
		"guardians",
		"member_warnings",
		"members",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// SeedMember inserts a member directly, bypassing registration
func SeedMember(ctx context.Context, pool *pgxpool.Pool, email, password string, gender models.Gender, role models.Role) (string, error) {
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO members (id, email, password_hash, name, gender, role, is_active, is_banned, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, TRUE, FALSE, NOW(), NOW())
		RETURNING id
	`

	var id string
	if err := pool.QueryRow(ctx, query, email, hashedPassword, "Seeded Member", string(gender), string(role)).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to insert member: %w", err)
	}
	return id, nil
}

// SeedApprovedGuardian inserts an approved family guardian for a member
func SeedApprovedGuardian(ctx context.Context, pool *pgxpool.Pool, memberID, email string) (string, error) {
	query := `
		INSERT INTO guardians (id, user_id, name, email, relationship, type, status, has_access_to_dashboard, notify_on_new_message, reviewed_at, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, 'Seeded Guardian', $2, 'father', 'family', 'approved', TRUE, TRUE, NOW(), NOW(), NOW())
		RETURNING id
	`

	var id string
	if err := pool.QueryRow(ctx, query, memberID, email).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to insert guardian: %w", err)
	}
	return id, nil
}

// CountRows returns the number of rows in table matching where
func CountRows(ctx context.Context, pool *pgxpool.Pool, table, where string, args ...any) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, where)
	if err := pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
