package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/poolmind/poolmind/internal/apierrors"
)

type createConversationRequest struct {
	WalletAddress string `json:"walletAddress"`
	Title         string `json:"title"`
}

func (h *Handler) handleCreateConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAPIError(c, apierrors.Validation("body", "invalid JSON payload"))
		return
	}

	wallet := strings.TrimSpace(req.WalletAddress)
	if wallet == "" {
		writeAPIError(c, apierrors.Validation("walletAddress", "walletAddress is required"))
		return
	}

	conv, err := h.store.CreateConversation(c.Request.Context(), wallet, strings.TrimSpace(req.Title))
	if err != nil {
		h.writeInternal(c, "failed to create conversation", err)
		return
	}

	respondData(c, http.StatusCreated, conversationJSON(conv))
}

func (h *Handler) handleListConversations(c *gin.Context) {
	wallet := strings.TrimSpace(c.Query("walletAddress"))
	if wallet == "" {
		writeAPIError(c, apierrors.Validation("walletAddress", "walletAddress is required"))
		return
	}

	limit, offset, apiErr := parsePagination(c)
	if apiErr != nil {
		writeAPIError(c, apiErr)
		return
	}

	conversations, err := h.store.ListConversations(c.Request.Context(), wallet, limit, offset)
	if err != nil {
		h.writeInternal(c, "failed to list conversations", err)
		return
	}

	items := make([]gin.H, 0, len(conversations))
	for i := range conversations {
		items = append(items, conversationJSON(&conversations[i]))
	}

	respondData(c, http.StatusOK, gin.H{"conversations": items})
}

// parsePagination reads limit/offset query params. Limit defaults to 100 and
// is clamped to 200; a malformed value is a validation error rather than a
// silent default.
func parsePagination(c *gin.Context) (limit, offset int, apiErr *apierrors.APIError) {
	limit = defaultPageLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return 0, 0, apierrors.Validation("limit", "limit must be a positive integer")
		}
		limit = parsed
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	if raw := strings.TrimSpace(c.Query("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return 0, 0, apierrors.Validation("offset", "offset must be a non-negative integer")
		}
		offset = parsed
	}

	return limit, offset, nil
}
