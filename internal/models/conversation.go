package models

import "time"

// Conversation is a chat session owned by a single wallet address. Only the
// owning wallet may read it or append messages to it.
type Conversation struct {
	ID            string
	WalletAddress string
	Title         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
