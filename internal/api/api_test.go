package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/poolmind/poolmind/internal/db"
	"github.com/poolmind/poolmind/internal/intent"
	"github.com/poolmind/poolmind/internal/mcp"
	"github.com/poolmind/poolmind/internal/models"
	"github.com/poolmind/poolmind/internal/services"
)

// fakeStore is an in-memory Store used by the handler tests.
type fakeStore struct {
	conversations map[string]*models.Conversation
	messages      map[string][]models.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]models.Message),
	}
}

func (s *fakeStore) CreateConversation(_ context.Context, walletAddress, title string) (*models.Conversation, error) {
	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:            uuid.NewString(),
		WalletAddress: walletAddress,
		Title:         title,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.conversations[conv.ID] = conv
	return conv, nil
}

func (s *fakeStore) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	conv, ok := s.conversations[id]
	if !ok {
		return nil, db.ErrConversationNotFound
	}
	return conv, nil
}

func (s *fakeStore) ListConversations(_ context.Context, walletAddress string, limit, offset int) ([]models.Conversation, error) {
	owned := make([]models.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.WalletAddress == walletAddress {
			owned = append(owned, *conv)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].UpdatedAt.After(owned[j].UpdatedAt) })
	if offset >= len(owned) {
		return nil, nil
	}
	end := offset + limit
	if end > len(owned) {
		end = len(owned)
	}
	return owned[offset:end], nil
}

func (s *fakeStore) InsertMessage(_ context.Context, msg *models.Message) (*models.Message, error) {
	stored := *msg
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.messages[stored.ConversationID] = append(s.messages[stored.ConversationID], stored)
	if conv, ok := s.conversations[stored.ConversationID]; ok {
		conv.UpdatedAt = stored.CreatedAt
	}
	return &stored, nil
}

func (s *fakeStore) ListMessages(_ context.Context, conversationID string, limit, offset int) ([]models.Message, int, error) {
	all := s.messages[conversationID]
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// fakeCredits scripts the access service responses.
type fakeCredits struct {
	status        *services.AccessStatus
	accessResult  *services.AccessResult
	purchaseErr   error
	purchaseCalls int
	verifyCalls   int
}

func (f *fakeCredits) CheckAccess(context.Context, string) (*services.AccessStatus, error) {
	if f.status == nil {
		return &services.AccessStatus{HasAccess: true, CreditsBalance: 100}, nil
	}
	return f.status, nil
}

func (f *fakeCredits) VerifyAccess(context.Context, string, int64, string) (*services.AccessResult, error) {
	f.verifyCalls++
	if f.accessResult == nil {
		return &services.AccessResult{HasAccess: true}, nil
	}
	return f.accessResult, nil
}

func (f *fakeCredits) Purchase(_ context.Context, _ string, pkg models.CreditPackage, _ string) (*mcp.PurchaseResult, error) {
	f.purchaseCalls++
	if f.purchaseErr != nil {
		return nil, f.purchaseErr
	}
	return &mcp.PurchaseResult{Success: true, CreditsAdded: pkg.Credits, NewBalance: pkg.Credits}, nil
}

type fakeVerifier struct {
	err   error
	calls int
}

func (f *fakeVerifier) Verify(context.Context, string) error {
	f.calls++
	return f.err
}

func echoRouter() *intent.Router {
	echo := func(ctx context.Context, req intent.Request) (*intent.Response, error) {
		return &intent.Response{Reply: "echo: " + req.Content}, nil
	}
	return intent.NewRouter(intent.Handlers{GeneralChat: echo, PoolMetrics: echo})
}

func setupTestRouter(t *testing.T) (*gin.Engine, *fakeStore, *fakeCredits, *fakeVerifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newFakeStore()
	credits := &fakeCredits{}
	verifier := &fakeVerifier{}

	handler := NewHandler(store, credits, verifier, echoRouter(), zap.NewNop().Sugar())
	router := gin.New()
	handler.RegisterRoutes(router)

	return router, store, credits, verifier
}

func newJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}

	req, err := http.NewRequest(method, path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, data []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func seedConversation(t *testing.T, store *fakeStore, wallet string) *models.Conversation {
	t.Helper()
	conv, err := store.CreateConversation(context.Background(), wallet, "test")
	if err != nil {
		t.Fatalf("failed to seed conversation: %v", err)
	}
	return conv
}

func TestCreateMessageUnknownConversationIs404(t *testing.T) {
	router, _, _, _ := setupTestRouter(t)

	// No walletAddress and a garbage body: the missing conversation must win.
	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/api/conversations/nope/messages", gin.H{"bogus": true})
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestCreateMessageWalletMismatchIs403(t *testing.T) {
	router, store, _, _ := setupTestRouter(t)
	conv := seedConversation(t, store, "W")

	// A perfectly valid body must still be rejected on ownership.
	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost,
		"/api/conversations/"+conv.ID+"/messages?walletAddress=W2",
		gin.H{"role": "user", "content": "hi"})
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
	if len(store.messages[conv.ID]) != 0 {
		t.Fatalf("expected no message persisted, got %d", len(store.messages[conv.ID]))
	}
}

func TestCreateMessagePersists(t *testing.T) {
	router, store, _, _ := setupTestRouter(t)
	conv := seedConversation(t, store, "W")

	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost,
		"/api/conversations/"+conv.ID+"/messages?walletAddress=W",
		gin.H{"role": "user", "content": "hi", "metadata": gin.H{"source": "test"}})
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			ID      string `json:"id"`
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"data"`
		Success bool `json:"success"`
	}
	decodeBody(t, rec.Body.Bytes(), &resp)
	if !resp.Success || resp.Data.ID == "" {
		t.Fatalf("expected persisted message id, got %+v", resp)
	}
	if resp.Data.Content != "hi" {
		t.Fatalf("expected content 'hi', got %q", resp.Data.Content)
	}

	// A second read with the wrong wallet must still be forbidden.
	rec = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/conversations/"+conv.ID+"/messages?walletAddress=W2", nil)
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for wrong wallet read, got %d", rec.Code)
	}
}

func TestCreateMessageValidation(t *testing.T) {
	router, store, _, _ := setupTestRouter(t)
	conv := seedConversation(t, store, "W")

	cases := []struct {
		name  string
		body  gin.H
		field string
	}{
		{"bad role", gin.H{"role": "robot", "content": "hi"}, "role"},
		{"empty content", gin.H{"role": "user", "content": "  "}, "content"},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := newJSONRequest(t, http.MethodPost,
			"/api/conversations/"+conv.ID+"/messages?walletAddress=W", tc.body)
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", tc.name, rec.Code)
		}
		var resp struct {
			Field string `json:"field"`
		}
		decodeBody(t, rec.Body.Bytes(), &resp)
		if resp.Field != tc.field {
			t.Fatalf("%s: expected field %q, got %q", tc.name, tc.field, resp.Field)
		}
	}
}

func TestListMessagesPagination(t *testing.T) {
	router, store, _, _ := setupTestRouter(t)
	conv := seedConversation(t, store, "W")

	const total = 7
	for i := 0; i < total; i++ {
		if _, err := store.InsertMessage(context.Background(), &models.Message{
			ConversationID: conv.ID,
			Role:           models.RoleUser,
			Content:        fmt.Sprintf("msg-%d", i),
		}); err != nil {
			t.Fatalf("failed to seed message %d: %v", i, err)
		}
	}

	cases := []struct {
		limit, offset int
		wantCount     int
		wantHasMore   bool
	}{
		{3, 0, 3, true},
		{3, 3, 3, true},
		{3, 6, 1, false},
		{100, 0, 7, false},
		{2, 100, 0, false},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		path := fmt.Sprintf("/api/conversations/%s/messages?walletAddress=W&limit=%d&offset=%d", conv.ID, tc.limit, tc.offset)
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("limit=%d offset=%d: expected 200, got %d", tc.limit, tc.offset, rec.Code)
		}

		var resp struct {
			Data struct {
				Messages   []json.RawMessage `json:"messages"`
				Pagination struct {
					Total   int  `json:"total"`
					HasMore bool `json:"hasMore"`
				} `json:"pagination"`
			} `json:"data"`
		}
		decodeBody(t, rec.Body.Bytes(), &resp)

		if len(resp.Data.Messages) != tc.wantCount {
			t.Fatalf("limit=%d offset=%d: expected %d messages, got %d", tc.limit, tc.offset, tc.wantCount, len(resp.Data.Messages))
		}
		if resp.Data.Pagination.Total != total {
			t.Fatalf("expected total %d, got %d", total, resp.Data.Pagination.Total)
		}
		if resp.Data.Pagination.HasMore != tc.wantHasMore {
			t.Fatalf("limit=%d offset=%d: expected hasMore=%v", tc.limit, tc.offset, tc.wantHasMore)
		}
	}
}

func TestListMessagesLimitClamp(t *testing.T) {
	router, store, _, _ := setupTestRouter(t)
	conv := seedConversation(t, store, "W")

	rec := httptest.NewRecorder()
	path := "/api/conversations/" + conv.ID + "/messages?walletAddress=W&limit=5000"
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data struct {
			Pagination struct {
				Limit int `json:"limit"`
			} `json:"pagination"`
		} `json:"data"`
	}
	decodeBody(t, rec.Body.Bytes(), &resp)
	if resp.Data.Pagination.Limit != maxPageLimit {
		t.Fatalf("expected limit clamped to %d, got %d", maxPageLimit, resp.Data.Pagination.Limit)
	}
}

func TestCreateAndListConversations(t *testing.T) {
	router, _, _, _ := setupTestRouter(t)

	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/api/conversations", gin.H{"walletAddress": "W", "title": "pools"})
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/conversations?walletAddress=W", nil)
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data struct {
			Conversations []struct {
				Title string `json:"title"`
			} `json:"conversations"`
		} `json:"data"`
	}
	decodeBody(t, rec.Body.Bytes(), &resp)
	if len(resp.Data.Conversations) != 1 || resp.Data.Conversations[0].Title != "pools" {
		t.Fatalf("unexpected conversations list: %+v", resp.Data)
	}
}
