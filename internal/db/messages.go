package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/poolmind/poolmind/internal/models"
)

// InsertMessage appends a message to its conversation and touches the
// conversation's updated_at. Both writes happen in one transaction so a
// conversation can never record activity for a message that was not stored.
func (p *Postgres) InsertMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	stored := *msg
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin insert message: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertQuery = `INSERT INTO messages (id, conversation_id, role, content, pool_data, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, insertQuery,
		stored.ID,
		stored.ConversationID,
		stored.Role,
		stored.Content,
		nullableJSON(stored.PoolData),
		nullableJSON(stored.Metadata),
		stored.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	const touchQuery = `UPDATE conversations SET updated_at = $2 WHERE id = $1`
	if _, err := tx.Exec(ctx, touchQuery, stored.ConversationID, stored.CreatedAt); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit insert message: %w", err)
	}

	return &stored, nil
}

// ListMessages returns a page of msgs in creation order plus the total count
// for the conversation.
func (p *Postgres) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, int, error) {
	var total int
	const countQuery = `SELECT COUNT(*) FROM messages WHERE conversation_id = $1`
	if err := p.Pool.QueryRow(ctx, countQuery, conversationID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	const query = `SELECT id, conversation_id, role, content, pool_data, metadata, created_at
FROM messages WHERE conversation_id = $1
ORDER BY created_at ASC LIMIT $2 OFFSET $3`

	rows, err := p.Pool.Query(ctx, query, conversationID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0, limit)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.PoolData, &msg.Metadata, &msg.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, total, nil
}

// nullableJSON maps empty raw JSON to NULL so jsonb columns stay NULL rather
// than storing empty strings pgx cannot encode.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
