package db

import (
	"context"

	"github.com/pgvector/pgvector-go"

	"github.com/germed/backend/internal/model"
)

func (db *Postgres) InsertDocument(ctx context.Context, title, content, embedModel string, vector []float32) (int64, error) {
	query := `
		INSERT INTO documents (title, content, embedding, model)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var id int64
	err := db.Pool.QueryRow(ctx, query, title, content, pgvector.NewVector(vector), embedModel).Scan(&id)
	return id, err
}

// SearchDocuments returns the top-k documents by cosine similarity.
func (db *Postgres) SearchDocuments(ctx context.Context, vector []float32, limit int) ([]model.DocumentMatch, error) {
	query := `
		SELECT id, title, content, 1 - (embedding <=> $1) AS score
		FROM documents
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := db.Pool.Query(ctx, query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []model.DocumentMatch
	for rows.Next() {
		var m model.DocumentMatch
		if err := rows.Scan(&m.ID, &m.Title, &m.Content, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if matches == nil {
		matches = []model.DocumentMatch{}
	}
	return matches, rows.Err()
}
