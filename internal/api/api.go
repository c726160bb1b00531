// Package api exposes the HTTP surface: wallet-scoped conversations and
// messages, the credit purchase flow, and the chat assistant endpoints.
package api

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/poolmind/poolmind/internal/apierrors"
	"github.com/poolmind/poolmind/internal/intent"
	"github.com/poolmind/poolmind/internal/mcp"
	"github.com/poolmind/poolmind/internal/models"
	"github.com/poolmind/poolmind/internal/services"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 200
)

// Store is the persistence surface the handlers need. *db.Postgres satisfies
// it; tests plug in an in-memory fake.
type Store interface {
	CreateConversation(ctx context.Context, walletAddress, title string) (*models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context, walletAddress string, limit, offset int) ([]models.Conversation, error)
	InsertMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, int, error)
}

// AccessService covers the credit/subscription operations backed by the MCP
// ledger.
type AccessService interface {
	CheckAccess(ctx context.Context, walletAddress string) (*services.AccessStatus, error)
	VerifyAccess(ctx context.Context, walletAddress string, requireCredits int64, action string) (*services.AccessResult, error)
	Purchase(ctx context.Context, walletAddress string, pkg models.CreditPackage, signature string) (*mcp.PurchaseResult, error)
}

// PaymentVerifier confirms purchase transaction signatures.
type PaymentVerifier interface {
	Verify(ctx context.Context, signature string) error
}

type Handler struct {
	store    Store
	credits  AccessService
	verifier PaymentVerifier
	router   *intent.Router
	logger   *zap.SugaredLogger
}

func NewHandler(store Store, credits AccessService, verifier PaymentVerifier, router *intent.Router, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		store:    store,
		credits:  credits,
		verifier: verifier,
		router:   router,
		logger:   logger,
	}
}

// RegisterRoutes mounts the API under /api. Middleware (rate limiting) runs
// before every handler in the group.
func (h *Handler) RegisterRoutes(router *gin.Engine, middleware ...gin.HandlerFunc) {
	apiGroup := router.Group("/api")
	apiGroup.Use(middleware...)

	apiGroup.POST("/conversations", h.handleCreateConversation)
	apiGroup.GET("/conversations", h.handleListConversations)
	apiGroup.POST("/conversations/:id/messages", h.handleCreateMessage)
	apiGroup.GET("/conversations/:id/messages", h.handleListMessages)

	apiGroup.POST("/credits/purchase", h.validatePurchase, h.requirePayment, h.handlePurchase)
	apiGroup.GET("/credits/balance", h.handleBalance)

	apiGroup.POST("/chat", h.handleChat)
	apiGroup.GET("/chat/ws", h.handleChatSocket)
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"data": data, "success": true})
}

func writeAPIError(c *gin.Context, apiErr *apierrors.APIError) {
	c.JSON(apiErr.Status, apiErr)
}

// writeInternal logs the real error and returns the taxonomy's generic
// internal message so callers never see wrapped details.
func (h *Handler) writeInternal(c *gin.Context, message string, err error) {
	h.logger.Errorw(message, "path", c.Request.URL.Path, "error", err)
	writeAPIError(c, apierrors.Internal(message))
}

func conversationJSON(conv *models.Conversation) gin.H {
	return gin.H{
		"id":            conv.ID,
		"walletAddress": conv.WalletAddress,
		"title":         conv.Title,
		"createdAt":     conv.CreatedAt,
		"updatedAt":     conv.UpdatedAt,
	}
}

func messageJSON(msg *models.Message) gin.H {
	out := gin.H{
		"id":             msg.ID,
		"conversationId": msg.ConversationID,
		"role":           msg.Role,
		"content":        msg.Content,
		"createdAt":      msg.CreatedAt,
	}
	if len(msg.PoolData) > 0 {
		out["poolData"] = json.RawMessage(msg.PoolData)
	}
	if len(msg.Metadata) > 0 {
		out["metadata"] = json.RawMessage(msg.Metadata)
	}
	return out
}
