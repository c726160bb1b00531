package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/poolmind/poolmind/internal/apierrors"
	"github.com/poolmind/poolmind/internal/db"
	"github.com/poolmind/poolmind/internal/models"
)

type createMessageRequest struct {
	Role     string          `json:"role"`
	Content  string          `json:"content"`
	PoolData json.RawMessage `json:"poolData"`
	Metadata json.RawMessage `json:"metadata"`
}

// resolveOwnedConversation enforces the check order the message routes share:
// the conversation must exist (404) before the caller's wallet is compared to
// the owner (403). Body parsing always happens after both.
func (h *Handler) resolveOwnedConversation(c *gin.Context) (*models.Conversation, bool) {
	conv, err := h.store.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrConversationNotFound) {
			writeAPIError(c, apierrors.NotFound("conversation not found"))
			return nil, false
		}
		h.writeInternal(c, "failed to load conversation", err)
		return nil, false
	}

	wallet := strings.TrimSpace(c.Query("walletAddress"))
	if wallet == "" {
		writeAPIError(c, apierrors.Validation("walletAddress", "walletAddress is required"))
		return nil, false
	}
	if wallet != conv.WalletAddress {
		writeAPIError(c, apierrors.Unauthorized("wallet does not own this conversation"))
		return nil, false
	}

	return conv, true
}

func (h *Handler) handleCreateMessage(c *gin.Context) {
	conv, ok := h.resolveOwnedConversation(c)
	if !ok {
		return
	}

	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAPIError(c, apierrors.Validation("body", "invalid JSON payload"))
		return
	}

	role := strings.TrimSpace(req.Role)
	if !models.ValidRole(role) {
		writeAPIError(c, apierrors.Validation("role", "role must be one of user, assistant, system"))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeAPIError(c, apierrors.Validation("content", "content is required"))
		return
	}

	msg, err := h.store.InsertMessage(c.Request.Context(), &models.Message{
		ConversationID: conv.ID,
		Role:           role,
		Content:        req.Content,
		PoolData:       req.PoolData,
		Metadata:       req.Metadata,
	})
	if err != nil {
		h.writeInternal(c, "failed to create message", err)
		return
	}

	respondData(c, http.StatusCreated, messageJSON(msg))
}

func (h *Handler) handleListMessages(c *gin.Context) {
	conv, ok := h.resolveOwnedConversation(c)
	if !ok {
		return
	}

	limit, offset, apiErr := parsePagination(c)
	if apiErr != nil {
		writeAPIError(c, apiErr)
		return
	}

	messages, total, err := h.store.ListMessages(c.Request.Context(), conv.ID, limit, offset)
	if err != nil {
		h.writeInternal(c, "failed to list messages", err)
		return
	}

	items := make([]gin.H, 0, len(messages))
	for i := range messages {
		items = append(items, messageJSON(&messages[i]))
	}

	respondData(c, http.StatusOK, gin.H{
		"messages": items,
		"pagination": gin.H{
			"limit":   limit,
			"offset":  offset,
			"total":   total,
			"hasMore": offset+len(messages) < total,
		},
	})
}
