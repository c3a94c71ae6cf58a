package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

type HTTPSearcher struct {
	BaseURL string
	Client  *http.Client
}

type requestBody struct {
	Query               string  `json:"query"`
	OrganizationID      string  `json:"organization_id"`
	Limit               int     `json:"limit"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

type responseBody struct {
	Results []struct {
		Content    string  `json:"content"`
		DocumentID string  `json:"document_id"`
		Similarity float64 `json:"similarity"`
	} `json:"results"`
}

func (h HTTPSearcher) Search(ctx context.Context, q Query) ([]Result, error) {
	if h.Client == nil {
		h.Client = &http.Client{Timeout: 15 * time.Second}
	}

	payload := requestBody{
		Query:               q.Text,
		OrganizationID:      q.OrganizationID,
		Limit:               q.Limit,
		SimilarityThreshold: q.Threshold,
	}
	b, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/search", bytes.NewBuffer(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New("search service error")
	}

	var r responseBody
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(r.Results))
	for _, item := range r.Results {
		out = append(out, Result{
			Content:    item.Content,
			DocumentID: item.DocumentID,
			Similarity: item.Similarity,
		})
	}
	return out, nil
}
