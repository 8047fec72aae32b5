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

type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(db *database.DB) *ConversationRepository {
	return &ConversationRepository{pool: db.Pool}
}

const conversationColumns = `id, participant_low, participant_high, last_message, last_message_at, is_approved_by_wali, created_at, updated_at`

func scanConversationRow(scanner rowScanner) (*models.Conversation, error) {
	var c models.Conversation

	err := scanner.Scan(
		&c.ID, &c.ParticipantLow, &c.ParticipantHigh, &c.LastMessage, &c.LastMessageAt,
		&c.IsApprovedByWali, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &c, nil
}

func scanConversationRows(rows pgx.Rows) ([]*models.Conversation, error) {
	defer rows.Close()

	conversations := make([]*models.Conversation, 0)
	for rows.Next() {
		c, err := scanConversationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return conversations, nil
}

// GetOrCreate returns the conversation of an unordered member pair, creating
// it when absent. approvedByWali is only used for a new row.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, memberA, memberB string, approvedByWali bool) (*models.Conversation, bool, error) {
	low, high := models.CanonicalPair(memberA, memberB)

	insert := `
		INSERT INTO conversations (id, participant_low, participant_high, is_approved_by_wali)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (participant_low, participant_high) DO NOTHING
		RETURNING ` + conversationColumns

	conv, err := scanConversationRow(r.pool.QueryRow(ctx, insert, uuid.New().String(), low, high, approvedByWali))
	if err == nil {
		return conv, true, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, err
	}

	// Row already existed.
	conv, err = r.GetByPair(ctx, low, high)
	if err != nil {
		return nil, false, err
	}
	return conv, false, nil
}

// GetByPair looks up a conversation by participants in either order.
func (r *ConversationRepository) GetByPair(ctx context.Context, memberA, memberB string) (*models.Conversation, error) {
	low, high := models.CanonicalPair(memberA, memberB)

	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE participant_low = $1 AND participant_high = $2`
	return scanConversationRow(r.pool.QueryRow(ctx, query, low, high))
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return scanConversationRow(r.pool.QueryRow(ctx, query, id))
}

// ListByMember returns a member's conversations, most recent activity first.
func (r *ConversationRepository) ListByMember(ctx context.Context, memberID string, limit, offset int) ([]*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE participant_low = $1 OR participant_high = $1
		ORDER BY COALESCE(last_message_at, created_at) DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, memberID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}

	return scanConversationRows(rows)
}

// RefreshLastMessage recomputes the preview from the newest message, applying
// the redaction placeholders.
func (r *ConversationRepository) RefreshLastMessage(ctx context.Context, id string) error {
	query := `
		UPDATE conversations c
		SET last_message = COALESCE((
			SELECT CASE
				WHEN m.is_blocked AND m.block_reason = $4 THEN $3
				WHEN m.is_blocked THEN $2
				ELSE m.text
			END
			FROM messages m
			WHERE m.conversation_id = c.id
			ORDER BY m.created_at DESC
			LIMIT 1
		), ''),
		updated_at = NOW()
		WHERE c.id = $1
	`

	result, err := r.pool.Exec(ctx, query, id,
		models.BlockedMessagePlaceholder, models.DeletedMessagePlaceholder, models.BlockReasonDeletedBySender)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteByParticipant removes every conversation of a member. Messages go with
// them through ON DELETE CASCADE.
func (r *ConversationRepository) DeleteByParticipant(ctx context.Context, memberID string) (int64, error) {
	query := `DELETE FROM conversations WHERE participant_low = $1 OR participant_high = $1`

	result, err := r.pool.Exec(ctx, query, memberID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
