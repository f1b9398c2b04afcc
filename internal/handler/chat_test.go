package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/germed/backend/internal/model"
	"github.com/germed/backend/internal/service"
)

type stubMessageRepo struct {
	inserted []model.ChatMessage
}

func (f *stubMessageRepo) InsertMessage(ctx context.Context, userID, role, content string) (int64, error) {
	f.inserted = append(f.inserted, model.ChatMessage{UserID: userID, Role: role, Content: content})
	return int64(len(f.inserted)), nil
}

func (f *stubMessageRepo) GetRecentMessages(ctx context.Context, userID string, limit int) ([]model.ChatMessage, error) {
	return nil, nil
}

type stubDocSearcher struct {
	matches []model.DocumentMatch
}

func (f *stubDocSearcher) SearchDocuments(ctx context.Context, vector []float32, limit int) ([]model.DocumentMatch, error) {
	return f.matches, nil
}

type stubAIClient struct {
	answer string
}

func (f *stubAIClient) EmbedText(ctx context.Context, text string) ([]float32, string, error) {
	return []float32{0.1, 0.2}, "test-embedding", nil
}

func (f *stubAIClient) GenerateAnswer(ctx context.Context, prompt string) (string, error) {
	return f.answer, nil
}

// fakeAuth injects an identity the way AuthMiddleware would, without
// involving real tokens.
func fakeAuth(user *model.AuthUser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set(authUserKey, user)
		}
		c.Next()
	}
}

func setupChatRouter(t *testing.T, user *model.AuthUser) (*gin.Engine, *stubMessageRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	messages := &stubMessageRepo{}
	svc := service.NewChatService(
		messages,
		&stubDocSearcher{matches: []model.DocumentMatch{{ID: 1, Title: "Dosage", Content: "500mg twice daily", Score: 0.92}}},
		&stubAIClient{answer: "Take 500mg twice daily."},
		zap.NewNop(),
	)

	r := gin.New()
	r.POST("/v1/chat", fakeAuth(user), NewChatHandler(svc).Chat)
	return r, messages
}

func chatRequest(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestChatEndpoint(t *testing.T) {
	r, messages := setupChatRouter(t, &model.AuthUser{ID: "user_1", Email: "a@x.com"})

	w := chatRequest(r, `{"message":"What is the dosage?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var resp model.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "Take 500mg twice daily." {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Title != "Dosage" {
		t.Fatalf("unexpected sources: %v", resp.Sources)
	}
	if len(messages.inserted) != 2 {
		t.Fatalf("expected question and answer persisted, got %d messages", len(messages.inserted))
	}
}

func TestChatEndpointRequiresAuth(t *testing.T) {
	r, _ := setupChatRouter(t, nil)
	w := chatRequest(r, `{"message":"hello"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestChatEndpointRejectsEmptyMessage(t *testing.T) {
	r, _ := setupChatRouter(t, &model.AuthUser{ID: "user_1"})
	for _, body := range []string{`{}`, `{"message":""}`, `not json`} {
		w := chatRequest(r, body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, w.Code)
		}
	}
}
