package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/poolmind/poolmind/internal/models"
	"github.com/poolmind/poolmind/internal/services"
)

func TestChatInsufficientCredits(t *testing.T) {
	router, _, credits, _ := setupTestRouter(t)
	credits.accessResult = &services.AccessResult{HasAccess: false, Reason: services.ReasonInsufficientCredits}

	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/api/chat", gin.H{
		"walletAddress": "W",
		"content":       "show me pools",
	})
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	var resp struct {
		Message string `json:"message"`
	}
	decodeBody(t, rec.Body.Bytes(), &resp)
	if resp.Message != services.ReasonInsufficientCredits {
		t.Fatalf("expected insufficient_credits reason, got %q", resp.Message)
	}
}

func TestChatPersistsExchange(t *testing.T) {
	router, store, credits, _ := setupTestRouter(t)
	credits.accessResult = &services.AccessResult{HasAccess: true, Warning: services.WarningDeductionFailed}
	conv := seedConversation(t, store, "W")

	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/api/chat", gin.H{
		"walletAddress":  "W",
		"conversationId": conv.ID,
		"content":        "hello there",
	})
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			Reply   string `json:"reply"`
			Handler string `json:"handler"`
			Warning string `json:"warning"`
		} `json:"data"`
	}
	decodeBody(t, rec.Body.Bytes(), &resp)

	if resp.Data.Reply != "echo: hello there" {
		t.Fatalf("unexpected reply %q", resp.Data.Reply)
	}
	if resp.Data.Handler != "general_chat" {
		t.Fatalf("expected general_chat handler, got %q", resp.Data.Handler)
	}
	if resp.Data.Warning != services.WarningDeductionFailed {
		t.Fatalf("expected fail-open warning to surface, got %q", resp.Data.Warning)
	}

	stored := store.messages[conv.ID]
	if len(stored) != 2 {
		t.Fatalf("expected user+assistant messages persisted, got %d", len(stored))
	}
	if stored[0].Role != models.RoleUser || stored[1].Role != models.RoleAssistant {
		t.Fatalf("unexpected roles: %s, %s", stored[0].Role, stored[1].Role)
	}
}

func TestChatOtherWalletsConversationIs403(t *testing.T) {
	router, store, credits, _ := setupTestRouter(t)
	conv := seedConversation(t, store, "W")

	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/api/chat", gin.H{
		"walletAddress":  "W2",
		"conversationId": conv.ID,
		"content":        "hi",
	})
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if credits.verifyCalls != 0 {
		t.Fatalf("no credit should be deducted for a conversation the wallet does not own, got %d calls", credits.verifyCalls)
	}
}

func TestChatUnknownConversationCostsNoCredit(t *testing.T) {
	router, _, credits, _ := setupTestRouter(t)

	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/api/chat", gin.H{
		"walletAddress":  "W",
		"conversationId": "missing",
		"content":        "hi",
	})
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if credits.verifyCalls != 0 {
		t.Fatalf("no credit should be deducted for an unknown conversation, got %d calls", credits.verifyCalls)
	}
}

func TestChatSocketRoundTrip(t *testing.T) {
	router, _, credits, _ := setupTestRouter(t)
	credits.accessResult = &services.AccessResult{HasAccess: true}

	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(gin.H{"walletAddress": "W", "content": "hello"}); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	var resp struct {
		Reply   string `json:"reply"`
		Handler string `json:"handler"`
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if resp.Reply != "echo: hello" || resp.Handler != "general_chat" {
		t.Fatalf("unexpected socket response: %+v", resp)
	}

	// A bad frame gets an error frame back on the same connection.
	if err := conn.WriteJSON(gin.H{"content": "no wallet"}); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	var errResp struct {
		Error string `json:"error"`
	}
	if err := conn.ReadJSON(&errResp); err != nil {
		t.Fatalf("read error frame: %v", err)
	}
	if errResp.Error != "validation_error" {
		t.Fatalf("expected validation_error frame, got %+v", errResp)
	}
}

func TestChatRoutesByIntent(t *testing.T) {
	router, _, _, _ := setupTestRouter(t)

	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/api/chat", gin.H{
		"walletAddress": "W",
		"content":       "metrics please",
		"intents":       gin.H{"poolMetrics": true},
	})
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data struct {
			Handler string `json:"handler"`
		} `json:"data"`
	}
	decodeBody(t, rec.Body.Bytes(), &resp)
	if resp.Data.Handler != "pool_metrics" {
		t.Fatalf("expected pool_metrics handler, got %q", resp.Data.Handler)
	}
}
