package service

import (
	"context"
	"fmt"
	"strings"
)

type DocumentRepo interface {
	InsertDocument(ctx context.Context, title, content, embedModel string, vector []float32) (int64, error)
}

// DocumentService ingests retrievable content: embed, then store.
type DocumentService struct {
	repo DocumentRepo
	ai   AIClient
}

func NewDocumentService(repo DocumentRepo, ai AIClient) *DocumentService {
	return &DocumentService{repo: repo, ai: ai}
}

func (s *DocumentService) CreateDocument(ctx context.Context, title, content string) (int64, string, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if content == "" {
		return 0, "", fmt.Errorf("content is required")
	}

	vector, embedModel, err := s.ai.EmbedText(ctx, content)
	if err != nil {
		return 0, embedModel, err
	}

	id, err := s.repo.InsertDocument(ctx, title, content, embedModel, vector)
	return id, embedModel, err
}
