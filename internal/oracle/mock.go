package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// MockClient produces deterministic, keyword-driven structured output so the
// pipeline can run end to end without a live inference endpoint.
type MockClient struct{}

func (m MockClient) Generate(ctx context.Context, req Request) ([]byte, error) {
	switch req.Schema {
	case SchemaLanguageDetection:
		return m.languageDetection(req.User)
	case SchemaValidityCheck:
		return m.validityCheck(req.User)
	case SchemaErrorResponse:
		return json.Marshal(ErrorResponse{
			Response: "Thanks for reaching out. Unfortunately we cannot help with this request through support. If you believe this is a mistake, please reply with more detail.",
		})
	case SchemaSearchPhrases:
		return m.searchPhrases(req.User)
	case SchemaPriority:
		return m.priority(req.User)
	case SchemaTags:
		return m.tags(req.User)
	case SchemaAssignment:
		return json.Marshal(AssignmentResult{
			NeedsAssignment: false,
			Reasoning:       "Assignment determination uses a fixed policy in this release.",
		})
	case SchemaResponseSynthesis:
		return json.Marshal(SynthesisResult{
			Response:  "Thanks for contacting support. Based on our documentation, here is what we suggest to resolve your issue.",
			Reasoning: "Combined the inquiry with retrieved context.",
			NextSteps: []string{"Try the suggested fix", "Reply if the problem persists"},
		})
	case SchemaConversationAnalysis:
		return m.conversationAnalysis(req.User)
	default:
		return nil, fmt.Errorf("mock oracle: unknown schema %q", req.Schema)
	}
}

func (m MockClient) languageDetection(text string) ([]byte, error) {
	out := LanguageDetection{LanguageCode: "en", Confidence: 0.95, ScriptAnalysis: "latin"}
	for _, r := range text {
		if unicode.Is(unicode.Cyrillic, r) {
			out.LanguageCode = "ru"
			out.ScriptAnalysis = "cyrillic"
			out.Translation.Needed = true
			out.Translation.Text = text
			break
		}
	}
	return json.Marshal(out)
}

func (m MockClient) validityCheck(text string) ([]byte, error) {
	lower := strings.ToLower(text)
	out := ValidityCheck{IsValid: true, Category: "valid_inquiry", Confidence: 0.9, Reason: "Looks like a genuine support request"}
	switch {
	case len(strings.Fields(text)) < 2:
		out = ValidityCheck{Category: "unclear", Confidence: 0.7, Reason: "Too short to understand"}
	case strings.Contains(lower, "buy now") || strings.Contains(lower, "crypto giveaway"):
		out = ValidityCheck{Category: "spam", Confidence: 0.95, Reason: "Promotional content"}
	}
	return json.Marshal(out)
}

func (m MockClient) searchPhrases(text string) ([]byte, error) {
	words := significantWords(text)
	var phrases []string
	for i := 0; i+1 < len(words) && len(phrases) < 3; i += 2 {
		phrases = append(phrases, words[i]+" "+words[i+1])
	}
	if len(phrases) == 0 && len(words) > 0 {
		phrases = append(phrases, strings.Join(words, " "))
	}
	if len(phrases) == 0 {
		phrases = append(phrases, "general question")
	}
	return json.Marshal(SearchPhrases{Phrases: phrases})
}

func (m MockClient) priority(text string) ([]byte, error) {
	lower := strings.ToLower(text)
	out := PriorityResult{Priority: "medium", Reasoning: "Standard request"}
	switch {
	case strings.Contains(lower, "outage") || strings.Contains(lower, "security") || strings.Contains(lower, "data loss"):
		out = PriorityResult{Priority: "urgent", Reasoning: "Potential outage or security impact"}
	case strings.Contains(lower, "urgent") || strings.Contains(lower, "not working") || strings.Contains(lower, "blocked"):
		out = PriorityResult{Priority: "high", Reasoning: "Customer reports a blocking problem"}
	case strings.Contains(lower, "typo") || strings.Contains(lower, "cosmetic"):
		out = PriorityResult{Priority: "low", Reasoning: "Cosmetic issue"}
	}
	return json.Marshal(out)
}

func (m MockClient) tags(text string) ([]byte, error) {
	words := significantWords(text)
	var tags []string
	if len(words) >= 2 {
		tags = append(tags, words[0]+"-"+words[1])
	}
	if len(words) >= 3 {
		tags = append(tags, words[2])
	}
	if len(tags) == 0 {
		tags = []string{"general"}
	}
	return json.Marshal(TagsResult{Tags: tags, Reasoning: "Derived from the dominant topic of the inquiry"})
}

func (m MockClient) conversationAnalysis(text string) ([]byte, error) {
	lower := strings.ToLower(text)
	out := ConversationAnalysis{Action: "continue_conversation", Reasoning: "Conversation still in progress"}
	switch {
	case strings.Contains(lower, "thanks") || strings.Contains(lower, "solved") || strings.Contains(lower, "works now"):
		rating := 4
		out = ConversationAnalysis{IsSolved: true, Action: "close_ticket", SatisfactionRating: &rating, Reasoning: "Customer confirmed resolution"}
	case strings.Contains(lower, "human") || strings.Contains(lower, "agent") || strings.Contains(lower, "speak to someone"):
		out = ConversationAnalysis{NeedsHuman: true, Action: "assign_human", Reasoning: "Customer asked for a person"}
	}
	return json.Marshal(out)
}

func significantWords(text string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len(w) > 3 {
			out = append(out, w)
		}
	}
	return out
}
