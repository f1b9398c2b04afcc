package db

import (
	"context"

	"github.com/germed/backend/internal/model"
)

func (db *Postgres) InsertMessage(ctx context.Context, userID, role, content string) (int64, error) {
	query := `
		INSERT INTO chat_messages (user_id, role, content, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id
	`
	var id int64
	err := db.Pool.QueryRow(ctx, query, userID, role, content).Scan(&id)
	return id, err
}

// GetRecentMessages returns the latest messages for a user in
// chronological order, ready to feed into the LLM as history.
func (db *Postgres) GetRecentMessages(ctx context.Context, userID string, limit int) ([]model.ChatMessage, error) {
	query := `
		SELECT id, user_id, role, content, created_at
		FROM (
			SELECT id, user_id, role, content, created_at
			FROM chat_messages
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`
	rows, err := db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if messages == nil {
		messages = []model.ChatMessage{}
	}
	return messages, rows.Err()
}
