package models

import (
	"encoding/json"
	"time"
)

// Message roles accepted on create.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single chat entry. Messages are immutable once inserted;
// ordering within a conversation is by CreatedAt ascending.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	PoolData       json.RawMessage
	Metadata       json.RawMessage
	CreatedAt      time.Time
}

// ValidRole reports whether role is one of the accepted message roles.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}
