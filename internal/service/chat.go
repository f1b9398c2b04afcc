package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/germed/backend/internal/model"
)

var ErrInvalidChatRequest = errors.New("invalid chat request")

const (
	historyLimit   = 5
	retrievalLimit = 4
)

type MessageRepo interface {
	InsertMessage(ctx context.Context, userID, role, content string) (int64, error)
	GetRecentMessages(ctx context.Context, userID string, limit int) ([]model.ChatMessage, error)
}

type DocumentSearcher interface {
	SearchDocuments(ctx context.Context, vector []float32, limit int) ([]model.DocumentMatch, error)
}

type AIClient interface {
	EmbedText(ctx context.Context, text string) ([]float32, string, error)
	GenerateAnswer(ctx context.Context, prompt string) (string, error)
}

// ChatService answers user questions with retrieval-augmented generation.
// Embeddings, similarity search and inference are all provider-side; this
// service only orchestrates the calls and persists the exchange.
type ChatService struct {
	messages MessageRepo
	docs     DocumentSearcher
	ai       AIClient
	log      *zap.Logger
}

func NewChatService(messages MessageRepo, docs DocumentSearcher, ai AIClient, log *zap.Logger) *ChatService {
	return &ChatService{
		messages: messages,
		docs:     docs,
		ai:       ai,
		log:      log,
	}
}

func (s *ChatService) Chat(ctx context.Context, user *model.AuthUser, req model.ChatRequest) (*model.ChatResponse, error) {
	question := strings.TrimSpace(req.Message)
	if question == "" {
		return nil, ErrInvalidChatRequest
	}

	history, err := s.messages.GetRecentMessages(ctx, user.ID, historyLimit)
	if err != nil {
		return nil, err
	}

	vector, _, err := s.ai.EmbedText(ctx, question)
	if err != nil {
		return nil, err
	}

	matches, err := s.docs.SearchDocuments(ctx, vector, retrievalLimit)
	if err != nil {
		return nil, err
	}

	answer, err := s.ai.GenerateAnswer(ctx, buildPrompt(history, matches, question))
	if err != nil {
		return nil, err
	}

	// History is best effort; a failed write should not lose the answer.
	if _, err := s.messages.InsertMessage(ctx, user.ID, model.RoleUser, question); err != nil {
		s.log.Warn("failed to save user message", zap.String("user_id", user.ID), zap.Error(err))
	}
	if _, err := s.messages.InsertMessage(ctx, user.ID, model.RoleAssistant, answer); err != nil {
		s.log.Warn("failed to save assistant message", zap.String("user_id", user.ID), zap.Error(err))
	}

	return &model.ChatResponse{
		Status:  "success",
		Answer:  answer,
		Sources: matches,
	}, nil
}

func buildPrompt(history []model.ChatMessage, matches []model.DocumentMatch, question string) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant. Answer using the provided context when relevant.\n")

	if len(matches) > 0 {
		b.WriteString("\nContext:\n")
		for _, m := range matches {
			b.WriteString("- ")
			if m.Title != "" {
				b.WriteString(m.Title)
				b.WriteString(": ")
			}
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}

	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, m := range history {
			b.WriteString(m.Role)
			b.WriteString(": ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nuser: ")
	b.WriteString(question)
	return b.String()
}
