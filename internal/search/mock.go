package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/aidesk/backend/internal/utils"
)

// MockSearcher fabricates deterministic hits keyed off the query text so the
// pipeline can run without a live retrieval backend.
type MockSearcher struct{}

func (m MockSearcher) Search(ctx context.Context, q Query) ([]Result, error) {
	h := utils.HashStringToUint64(q.Text)
	limit := q.Limit
	if limit <= 0 || limit > 3 {
		limit = 3
	}

	slug := strings.Join(strings.Fields(strings.ToLower(q.Text)), "-")
	out := make([]Result, 0, limit)
	for i := 0; i < limit; i++ {
		sim := 0.92 - float64((h+uint64(i)*13)%25)/100
		if sim < q.Threshold {
			continue
		}
		out = append(out, Result{
			Content:    fmt.Sprintf("Help article about %s (section %d)", q.Text, i+1),
			DocumentID: fmt.Sprintf("doc-%s-%d", slug, (h+uint64(i))%7),
			Similarity: sim,
		})
	}
	return out, nil
}
