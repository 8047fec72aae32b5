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

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(db *database.DB) *MessageRepository {
	return &MessageRepository{pool: db.Pool}
}

const messageColumns = `id, conversation_id, sender_id, text, is_blocked, block_reason, is_read, read_at, created_at`

func scanMessageRow(scanner rowScanner) (*models.Message, error) {
	var m models.Message

	err := scanner.Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.IsBlocked, &m.BlockReason,
		&m.IsRead, &m.ReadAt, &m.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &m, nil
}

func scanMessageRows(rows pgx.Rows) ([]*models.Message, error) {
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		m, err := scanMessageRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return messages, nil
}

// PriorCountCheck inspects how many messages the sender already has in the
// conversation and returns an error to abort the append.
type PriorCountCheck func(priorCount int) error

// Append stores a message and updates the conversation preview in one
// transaction. Appends by the same sender to the same conversation are
// serialized with an advisory lock, so check sees an exact prior count.
func (r *MessageRepository) Append(ctx context.Context, msg *models.Message, preview string, check PriorCountCheck) (*models.Message, error) {
	msg.ID = uuid.New().String()

	var stored *models.Message
	err := database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		lockKey := msg.ConversationID + ":" + msg.SenderID
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
			return fmt.Errorf("failed to acquire sender lock: %w", err)
		}

		if check != nil {
			var prior int
			countQuery := `SELECT COUNT(*) FROM messages WHERE conversation_id = $1 AND sender_id = $2`
			if err := tx.QueryRow(ctx, countQuery, msg.ConversationID, msg.SenderID).Scan(&prior); err != nil {
				return fmt.Errorf("failed to count prior messages: %w", err)
			}
			if err := check(prior); err != nil {
				return err
			}
		}

		insert := `
			INSERT INTO messages (id, conversation_id, sender_id, text, is_blocked, block_reason)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING ` + messageColumns

		m, err := scanMessageRow(tx.QueryRow(ctx, insert,
			msg.ID, msg.ConversationID, msg.SenderID, msg.Text, msg.IsBlocked, msg.BlockReason,
		))
		if err != nil {
			return err
		}

		update := `
			UPDATE conversations
			SET last_message = $2, last_message_at = $3, updated_at = NOW()
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, update, m.ConversationID, preview, m.CreatedAt); err != nil {
			return database.MapPostgresError(err)
		}

		stored = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stored, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	return scanMessageRow(r.pool.QueryRow(ctx, query, id))
}

// ListByConversation returns a page of messages, newest first.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	return scanMessageRows(rows)
}

// MarkRead flags every unread message not sent by readerID as read.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, readerID string, at time.Time) (int64, error) {
	query := `
		UPDATE messages SET is_read = TRUE, read_at = $3
		WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE
	`

	result, err := r.pool.Exec(ctx, query, conversationID, readerID, at)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// SetBlocked toggles the moderation flag of a message.
func (r *MessageRepository) SetBlocked(ctx context.Context, id string, blocked bool, reason *string) (*models.Message, error) {
	if !blocked {
		reason = nil
	}

	query := `
		UPDATE messages SET is_blocked = $2, block_reason = $3
		WHERE id = $1
		RETURNING ` + messageColumns

	return scanMessageRow(r.pool.QueryRow(ctx, query, id, blocked, reason))
}

// SoftDelete replaces a message's text with the deletion placeholder.
func (r *MessageRepository) SoftDelete(ctx context.Context, id string) (*models.Message, error) {
	query := `
		UPDATE messages SET text = $2, is_blocked = TRUE, block_reason = $3
		WHERE id = $1
		RETURNING ` + messageColumns

	return scanMessageRow(r.pool.QueryRow(ctx, query, id,
		models.DeletedMessagePlaceholder, models.BlockReasonDeletedBySender))
}

// DeleteBySender removes every message written by a member.
func (r *MessageRepository) DeleteBySender(ctx context.Context, senderID string) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE sender_id = $1`, senderID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// DeleteInConversationsOf removes every message in conversations the member takes part in.
func (r *MessageRepository) DeleteInConversationsOf(ctx context.Context, memberID string) (int64, error) {
	query := `
		DELETE FROM messages
		WHERE conversation_id IN (
			SELECT id FROM conversations WHERE participant_low = $1 OR participant_high = $1
		)
	`

	result, err := r.pool.Exec(ctx, query, memberID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
