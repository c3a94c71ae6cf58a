package search

import "context"

type Query struct {
	Text           string
	OrganizationID string
	Limit          int
	Threshold      float64
}

type Result struct {
	Content    string  `json:"content"`
	DocumentID string  `json:"document_id"`
	Similarity float64 `json:"similarity"`
}

// Searcher is the organization-scoped semantic retrieval backend.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, error)
}
