package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/germed/backend/internal/model"
)

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []model.ChatMessage
}

func (f *fakeMessageRepo) InsertMessage(ctx context.Context, userID, role, content string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, model.ChatMessage{
		ID:        int64(len(f.messages) + 1),
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	})
	return int64(len(f.messages)), nil
}

func (f *fakeMessageRepo) GetRecentMessages(ctx context.Context, userID string, limit int) ([]model.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ChatMessage
	for _, m := range f.messages {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type fakeDocSearcher struct {
	matches []model.DocumentMatch
}

func (f *fakeDocSearcher) SearchDocuments(ctx context.Context, vector []float32, limit int) ([]model.DocumentMatch, error) {
	return f.matches, nil
}

type fakeAIClient struct {
	lastPrompt string
	answer     string
	err        error
}

func (f *fakeAIClient) EmbedText(ctx context.Context, text string) ([]float32, string, error) {
	return []float32{0.1, 0.2}, "text-embedding-004", nil
}

func (f *fakeAIClient) GenerateAnswer(ctx context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func TestChatAnswersWithRetrievedContext(t *testing.T) {
	messages := &fakeMessageRepo{}
	docs := &fakeDocSearcher{matches: []model.DocumentMatch{
		{ID: 1, Title: "Opening hours", Content: "The clinic opens at 9am.", Score: 0.92},
	}}
	ai := &fakeAIClient{answer: "The clinic opens at 9am."}
	svc := NewChatService(messages, docs, ai, zap.NewNop())

	user := &model.AuthUser{ID: "user_1", Email: "a@x.com"}
	resp, err := svc.Chat(context.Background(), user, model.ChatRequest{Message: "When do you open?"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Answer != "The clinic opens at 9am." {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("expected one source, got %d", len(resp.Sources))
	}
	if !strings.Contains(ai.lastPrompt, "The clinic opens at 9am.") {
		t.Fatalf("prompt should carry retrieved context:\n%s", ai.lastPrompt)
	}
	if !strings.Contains(ai.lastPrompt, "When do you open?") {
		t.Fatalf("prompt should carry the question:\n%s", ai.lastPrompt)
	}

	history, _ := messages.GetRecentMessages(context.Background(), "user_1", 10)
	if len(history) != 2 {
		t.Fatalf("expected user+assistant messages persisted, got %d", len(history))
	}
	if history[0].Role != model.RoleUser || history[1].Role != model.RoleAssistant {
		t.Fatalf("unexpected history roles: %+v", history)
	}
}

func TestChatCarriesHistoryIntoPrompt(t *testing.T) {
	messages := &fakeMessageRepo{}
	_, _ = messages.InsertMessage(context.Background(), "user_1", model.RoleUser, "Do you take walk-ins?")
	_, _ = messages.InsertMessage(context.Background(), "user_1", model.RoleAssistant, "Yes, before noon.")

	ai := &fakeAIClient{answer: "ok"}
	svc := NewChatService(messages, &fakeDocSearcher{}, ai, zap.NewNop())

	user := &model.AuthUser{ID: "user_1"}
	if _, err := svc.Chat(context.Background(), user, model.ChatRequest{Message: "And on Sundays?"}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.Contains(ai.lastPrompt, "Do you take walk-ins?") {
		t.Fatalf("prompt should carry chat history:\n%s", ai.lastPrompt)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	svc := NewChatService(&fakeMessageRepo{}, &fakeDocSearcher{}, &fakeAIClient{}, zap.NewNop())
	user := &model.AuthUser{ID: "user_1"}

	if _, err := svc.Chat(context.Background(), user, model.ChatRequest{Message: "   "}); !errors.Is(err, ErrInvalidChatRequest) {
		t.Fatalf("expected ErrInvalidChatRequest, got %v", err)
	}
}

func TestChatPropagatesGenerationFailure(t *testing.T) {
	ai := &fakeAIClient{err: errors.New("provider down")}
	svc := NewChatService(&fakeMessageRepo{}, &fakeDocSearcher{}, ai, zap.NewNop())
	user := &model.AuthUser{ID: "user_1"}

	if _, err := svc.Chat(context.Background(), user, model.ChatRequest{Message: "hello"}); err == nil {
		t.Fatalf("expected error from provider")
	}
}
