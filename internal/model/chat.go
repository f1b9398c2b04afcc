package model

import "time"

type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

type ChatResponse struct {
	Status  string          `json:"status"`
	Answer  string          `json:"answer"`
	Sources []DocumentMatch `json:"sources,omitempty"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	ID        int64
	UserID    string
	Role      string
	Content   string
	CreatedAt time.Time
}
