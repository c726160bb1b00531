package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/poolmind/poolmind/internal/apierrors"
	"github.com/poolmind/poolmind/internal/db"
	"github.com/poolmind/poolmind/internal/intent"
	"github.com/poolmind/poolmind/internal/models"
)

const chatCreditCost = 1

type chatRequest struct {
	WalletAddress  string       `json:"walletAddress"`
	ConversationID string       `json:"conversationId"`
	Content        string       `json:"content"`
	PoolAddress    string       `json:"poolAddress"`
	Intents        intent.Flags `json:"intents"`
}

type chatResponse struct {
	Reply          string `json:"reply"`
	Handler        string `json:"handler"`
	ConversationID string `json:"conversationId,omitempty"`
	MessageID      string `json:"messageId,omitempty"`
	Warning        string `json:"warning,omitempty"`
}

func (h *Handler) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAPIError(c, apierrors.Validation("body", "invalid JSON payload"))
		return
	}

	resp, apiErr := h.processChat(c.Request.Context(), &req)
	if apiErr != nil {
		writeAPIError(c, apiErr)
		return
	}

	respondData(c, http.StatusOK, resp)
}

// processChat runs the shared chat pipeline: validate, resolve the attached
// conversation, verify access, route to one intent handler, then persist the
// exchange. Used by both the HTTP and websocket endpoints.
func (h *Handler) processChat(ctx context.Context, req *chatRequest) (*chatResponse, *apierrors.APIError) {
	wallet := strings.TrimSpace(req.WalletAddress)
	if wallet == "" {
		return nil, apierrors.Validation("walletAddress", "walletAddress is required")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apierrors.Validation("content", "content is required")
	}

	// Resolve the attached conversation before touching credits so a bad
	// conversationId does not cost the caller a deduction.
	var conv *models.Conversation
	if convID := strings.TrimSpace(req.ConversationID); convID != "" {
		var err error
		conv, err = h.store.GetConversation(ctx, convID)
		if err != nil {
			if errors.Is(err, db.ErrConversationNotFound) {
				return nil, apierrors.NotFound("conversation not found")
			}
			h.logger.Errorw("load conversation failed", "conversation", convID, "error", err)
			return nil, apierrors.Internal("failed to load conversation")
		}
		if conv.WalletAddress != wallet {
			return nil, apierrors.Unauthorized("wallet does not own this conversation")
		}
	}

	access, err := h.credits.VerifyAccess(ctx, wallet, chatCreditCost, "chat")
	if err != nil {
		h.logger.Errorw("verify access failed", "wallet", wallet, "error", err)
		return nil, apierrors.Internal("failed to verify access")
	}
	if !access.HasAccess {
		return nil, apierrors.Unauthorized(access.Reason)
	}

	if conv != nil {
		if _, err := h.store.InsertMessage(ctx, &models.Message{
			ConversationID: conv.ID,
			Role:           models.RoleUser,
			Content:        content,
		}); err != nil {
			h.logger.Errorw("persist user message failed", "conversation", conv.ID, "error", err)
			return nil, apierrors.Internal("failed to persist message")
		}
	}

	routed, err := h.router.Route(ctx, req.Intents, intent.Request{
		WalletAddress: wallet,
		Content:       content,
		PoolAddress:   strings.TrimSpace(req.PoolAddress),
	})
	if err != nil {
		h.logger.Errorw("intent routing failed", "wallet", wallet, "error", err)
		return nil, apierrors.Internal("assistant is unavailable")
	}

	resp := &chatResponse{
		Reply:   routed.Reply,
		Handler: routed.Handler,
		Warning: access.Warning,
	}

	if conv != nil {
		stored, err := h.store.InsertMessage(ctx, &models.Message{
			ConversationID: conv.ID,
			Role:           models.RoleAssistant,
			Content:        routed.Reply,
			PoolData:       routed.PoolData,
		})
		if err != nil {
			h.logger.Errorw("persist assistant message failed", "conversation", conv.ID, "error", err)
			return nil, apierrors.Internal("failed to persist message")
		}
		resp.ConversationID = conv.ID
		resp.MessageID = stored.ID
	}

	return resp, nil
}

var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type chatSocketError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// handleChatSocket streams the chat pipeline over a websocket: one JSON
// request frame in, one JSON response (or error) frame out.
func (h *Handler) handleChatSocket(c *gin.Context) {
	conn, err := chatUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warnw("websocket read failed", "error", err)
			}
			return
		}

		resp, apiErr := h.processChat(ctx, &req)
		if apiErr != nil {
			if err := conn.WriteJSON(chatSocketError{Error: apiErr.Code, Message: apiErr.Message}); err != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}
