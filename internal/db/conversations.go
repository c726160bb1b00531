package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/poolmind/poolmind/internal/models"
)

var ErrConversationNotFound = errors.New("db: conversation not found")

// CreateConversation inserts a new conversation owned by walletAddress.
func (p *Postgres) CreateConversation(ctx context.Context, walletAddress, title string) (*models.Conversation, error) {
	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:            uuid.NewString(),
		WalletAddress: walletAddress,
		Title:         title,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	const query = `INSERT INTO conversations (id, wallet_address, title, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := p.Pool.Exec(ctx, query, conv.ID, conv.WalletAddress, conv.Title, conv.CreatedAt, conv.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	return conv, nil
}

// GetConversation fetches a conversation by id. Returns ErrConversationNotFound
// when no row exists; ownership is checked by the caller.
func (p *Postgres) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	const query = `SELECT id, wallet_address, title, created_at, updated_at FROM conversations WHERE id = $1`
	err := p.Pool.QueryRow(ctx, query, id).Scan(
		&conv.ID,
		&conv.WalletAddress,
		&conv.Title,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}

	return &conv, nil
}

// ListConversations returns walletAddress's conversations, most recently
// updated first.
func (p *Postgres) ListConversations(ctx context.Context, walletAddress string, limit, offset int) ([]models.Conversation, error) {
	const query = `SELECT id, wallet_address, title, created_at, updated_at
FROM conversations WHERE wallet_address = $1
ORDER BY updated_at DESC LIMIT $2 OFFSET $3`

	rows, err := p.Pool.Query(ctx, query, walletAddress, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0, limit)
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.WalletAddress, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return conversations, nil
}
