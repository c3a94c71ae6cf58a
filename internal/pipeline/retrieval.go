package pipeline

import (
	"context"
	"sort"
	"strings"

	"github.com/aidesk/backend/internal/models"
	"github.com/aidesk/backend/internal/oracle"
	"github.com/aidesk/backend/internal/search"
)

const searchPhrasesPrompt = `You are a search query generator for a support
knowledge base. Extract 2-3 short search phrases (2-4 words each) that capture
the core topics of the customer inquiry.`

// NoRelevantResults is recorded on the session when the merged result set is
// empty; downstream stages proceed with empty context.
const NoRelevantResults = "no_relevant_results"

const maxPhrases = 3

// Retrieve turns an inquiry into deduplicated, ranked context snippets.
// Per-phrase searches run one at a time to bound load on the retrieval
// backend. Output documentId values are unique and similarity is
// non-increasing.
func (p *Pipeline) Retrieve(ctx context.Context, inquiryText, organizationID string) ([]models.ContextSnippet, string, error) {
	if strings.TrimSpace(inquiryText) == "" {
		return nil, "", ValidationError{Msg: "inquiry_text is required"}
	}
	if strings.TrimSpace(organizationID) == "" {
		return nil, "", ValidationError{Msg: "organization_id is required"}
	}

	raw, err := p.Oracle.Generate(ctx, oracle.Request{
		System: searchPhrasesPrompt,
		Schema: oracle.SchemaSearchPhrases,
		User:   inquiryText,
	})
	if err != nil {
		return nil, "", UpstreamOracleError{Schema: oracle.SchemaSearchPhrases, Err: err}
	}
	parsed, err := oracle.ParseSearchPhrases(raw)
	if err != nil {
		return nil, "", UpstreamOracleError{Schema: oracle.SchemaSearchPhrases, Err: err}
	}
	phrases := NormalizePhrases(parsed.Phrases)

	var groups [][]search.Result
	for _, phrase := range phrases {
		results, err := p.Search.Search(ctx, search.Query{
			Text:           phrase,
			OrganizationID: organizationID,
			Limit:          p.SearchLimit,
			Threshold:      p.SearchThreshold,
		})
		if err != nil {
			return nil, "", RetrievalError{Phrase: phrase, Err: err}
		}
		p.Logger.Debug().Str("phrase", phrase).Int("hits", len(results)).Msg("semantic search")
		groups = append(groups, results)
	}

	snippets := MergeSnippets(groups...)
	if len(snippets) == 0 {
		return nil, NoRelevantResults, nil
	}
	return snippets, "", nil
}

// NormalizePhrases clamps oracle output to at most maxPhrases phrases of 2-4
// words each. Longer phrases are truncated rather than dropped; single-word
// phrases are kept as-is since they still make usable queries.
func NormalizePhrases(phrases []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, phrase := range phrases {
		words := strings.Fields(strings.ToLower(strings.TrimSpace(phrase)))
		if len(words) == 0 {
			continue
		}
		if len(words) > 4 {
			words = words[:4]
		}
		p := strings.Join(words, " ")
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
		if len(out) == maxPhrases {
			break
		}
	}
	return out
}

// MergeSnippets merges per-phrase result groups, deduplicating by documentId
// while keeping the maximum similarity, and sorts descending by similarity
// (ties broken by documentId for a stable order).
func MergeSnippets(groups ...[]search.Result) []models.ContextSnippet {
	best := map[string]search.Result{}
	for _, group := range groups {
		for _, r := range group {
			if r.DocumentID == "" {
				continue
			}
			if cur, ok := best[r.DocumentID]; !ok || r.Similarity > cur.Similarity {
				best[r.DocumentID] = r
			}
		}
	}

	out := make([]models.ContextSnippet, 0, len(best))
	for _, r := range best {
		out = append(out, models.ContextSnippet{
			Content:    r.Content,
			DocumentID: r.DocumentID,
			Similarity: r.Similarity,
			IsRelevant: true,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity == out[j].Similarity {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].Similarity > out[j].Similarity
	})
	return out
}
