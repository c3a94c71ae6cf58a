package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aidesk/backend/internal/models"
)

// Typed decode of oracle output. Every Parse* function either returns a fully
// validated result or an error; callers treat any error as a hard upstream
// failure, never as a value to pass through.

type LanguageDetection struct {
	LanguageCode   string   `json:"languageCode"`
	Confidence     float64  `json:"confidence"`
	CommonWords    []string `json:"commonWords"`
	ScriptAnalysis string   `json:"scriptAnalysis"`
	Translation    struct {
		Needed bool   `json:"needed"`
		Text   string `json:"text"`
	} `json:"translation"`
}

type ValidityCheck struct {
	IsValid           bool    `json:"isValid"`
	Reason            string  `json:"reason"`
	Category          string  `json:"category"`
	Confidence        float64 `json:"confidence"`
	SuggestedResponse string  `json:"suggestedResponse"`
}

type ErrorResponse struct {
	Response string `json:"response"`
}

type SearchPhrases struct {
	Phrases []string `json:"phrases"`
}

type PriorityResult struct {
	Priority  string `json:"priority"`
	Reasoning string `json:"reasoning"`
}

type TagsResult struct {
	Tags      []string `json:"tags"`
	Reasoning string   `json:"reasoning"`
}

type AssignmentResult struct {
	NeedsAssignment bool   `json:"needsAssignment"`
	Reasoning       string `json:"reasoning"`
}

type SynthesisResult struct {
	Response  string   `json:"response"`
	Reasoning string   `json:"reasoning"`
	NextSteps []string `json:"nextSteps"`
}

type ConversationAnalysis struct {
	IsSolved           bool   `json:"isSolved"`
	NeedsHuman         bool   `json:"needsHuman"`
	Action             string `json:"action"`
	SatisfactionRating *int   `json:"satisfactionRating"`
	Reasoning          string `json:"reasoning"`
}

func decode(raw []byte, schema string, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%s: malformed output: %w", schema, err)
	}
	return nil
}

func ParseLanguageDetection(raw []byte) (LanguageDetection, error) {
	var out LanguageDetection
	if err := decode(raw, SchemaLanguageDetection, &out); err != nil {
		return out, err
	}
	if strings.TrimSpace(out.LanguageCode) == "" {
		return out, fmt.Errorf("%s: languageCode is empty", SchemaLanguageDetection)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return out, fmt.Errorf("%s: confidence %v out of range", SchemaLanguageDetection, out.Confidence)
	}
	if !out.Translation.Needed && out.Translation.Text != "" {
		return out, fmt.Errorf("%s: translation text present but not needed", SchemaLanguageDetection)
	}
	out.LanguageCode = strings.ToLower(strings.TrimSpace(out.LanguageCode))
	return out, nil
}

func ParseValidityCheck(raw []byte) (ValidityCheck, error) {
	var out ValidityCheck
	if err := decode(raw, SchemaValidityCheck, &out); err != nil {
		return out, err
	}
	out.Category = strings.ToLower(strings.TrimSpace(out.Category))
	if !models.ValidCategory(out.Category) {
		return out, fmt.Errorf("%s: unknown category %q", SchemaValidityCheck, out.Category)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return out, fmt.Errorf("%s: confidence %v out of range", SchemaValidityCheck, out.Confidence)
	}
	return out, nil
}

func ParseErrorResponse(raw []byte) (ErrorResponse, error) {
	var out ErrorResponse
	if err := decode(raw, SchemaErrorResponse, &out); err != nil {
		return out, err
	}
	if strings.TrimSpace(out.Response) == "" {
		return out, fmt.Errorf("%s: response is empty", SchemaErrorResponse)
	}
	return out, nil
}

func ParseSearchPhrases(raw []byte) (SearchPhrases, error) {
	var out SearchPhrases
	if err := decode(raw, SchemaSearchPhrases, &out); err != nil {
		return out, err
	}
	if len(out.Phrases) == 0 {
		return out, fmt.Errorf("%s: no phrases returned", SchemaSearchPhrases)
	}
	return out, nil
}

func ParsePriority(raw []byte) (PriorityResult, error) {
	var out PriorityResult
	if err := decode(raw, SchemaPriority, &out); err != nil {
		return out, err
	}
	out.Priority = strings.ToLower(strings.TrimSpace(out.Priority))
	if !models.ValidPriority(out.Priority) {
		return out, fmt.Errorf("%s: unknown priority %q", SchemaPriority, out.Priority)
	}
	return out, nil
}

func ParseTags(raw []byte) (TagsResult, error) {
	var out TagsResult
	if err := decode(raw, SchemaTags, &out); err != nil {
		return out, err
	}
	if len(out.Tags) == 0 {
		return out, fmt.Errorf("%s: no tags returned", SchemaTags)
	}
	return out, nil
}

func ParseAssignment(raw []byte) (AssignmentResult, error) {
	var out AssignmentResult
	if err := decode(raw, SchemaAssignment, &out); err != nil {
		return out, err
	}
	return out, nil
}

func ParseSynthesis(raw []byte) (SynthesisResult, error) {
	var out SynthesisResult
	if err := decode(raw, SchemaResponseSynthesis, &out); err != nil {
		return out, err
	}
	if strings.TrimSpace(out.Response) == "" {
		return out, fmt.Errorf("%s: response is empty", SchemaResponseSynthesis)
	}
	return out, nil
}

func ParseConversationAnalysis(raw []byte) (ConversationAnalysis, error) {
	var out ConversationAnalysis
	if err := decode(raw, SchemaConversationAnalysis, &out); err != nil {
		return out, err
	}
	out.Action = strings.ToLower(strings.TrimSpace(out.Action))
	switch out.Action {
	case "close_ticket", "assign_human", "continue_conversation":
	default:
		return out, fmt.Errorf("%s: unknown action %q", SchemaConversationAnalysis, out.Action)
	}
	if out.SatisfactionRating != nil && (*out.SatisfactionRating < 1 || *out.SatisfactionRating > 5) {
		return out, fmt.Errorf("%s: satisfactionRating %d out of range", SchemaConversationAnalysis, *out.SatisfactionRating)
	}
	return out, nil
}
