package oracle

import "context"

// Schema names the structured output contract a generation must decode against.
const (
	SchemaLanguageDetection    = "language-detection"
	SchemaValidityCheck        = "validity-check"
	SchemaErrorResponse        = "error-response"
	SchemaSearchPhrases        = "search-phrases"
	SchemaPriority             = "priority"
	SchemaTags                 = "tags"
	SchemaAssignment           = "assignment"
	SchemaResponseSynthesis    = "response-synthesis"
	SchemaConversationAnalysis = "conversation-analysis"
)

type Request struct {
	System string
	Schema string
	User   string
}

// Client is the generative reasoning endpoint, consumed as a black box that
// maps (instructions, schema, content) to a raw JSON document. Decoding the
// document against the named schema is the caller's job (see schemas.go).
type Client interface {
	Generate(ctx context.Context, req Request) ([]byte, error)
}
