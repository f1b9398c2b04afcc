package client

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/germed/backend/internal/config"
)

// GenAIClient wraps the managed embedding and generation APIs. Everything
// model-related happens on the provider side; this client only moves bytes.
type GenAIClient struct {
	client     *genai.Client
	chatModel  string
	embedModel string
}

func NewGenAIClient(ctx context.Context, cfg config.GenAIConfig) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing AI_API_KEY")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, err
	}
	return &GenAIClient{
		client:     client,
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbeddingModel,
	}, nil
}

func (c *GenAIClient) EmbedText(ctx context.Context, text string) ([]float32, string, error) {
	res, err := c.client.Models.EmbedContent(ctx, c.embedModel, genai.Text(text), nil)
	if err != nil {
		return nil, c.embedModel, err
	}
	if res == nil || len(res.Embeddings) == 0 || res.Embeddings[0] == nil {
		return nil, c.embedModel, fmt.Errorf("empty embedding result")
	}
	return res.Embeddings[0].Values, c.embedModel, nil
}

func (c *GenAIClient) GenerateAnswer(ctx context.Context, prompt string) (string, error) {
	res, err := c.client.Models.GenerateContent(ctx, c.chatModel, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	answer := res.Text()
	if answer == "" {
		return "", fmt.Errorf("empty generation result")
	}
	return answer, nil
}
