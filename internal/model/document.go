package model

type DocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type DocumentResponse struct {
	Status     string `json:"status"`
	DocumentID int64  `json:"document_id"`
	Model      string `json:"model"`
}

// DocumentMatch is a retrieval hit returned by the vector search.
type DocumentMatch struct {
	ID      int64   `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}
