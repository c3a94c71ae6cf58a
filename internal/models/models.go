package models

import "time"

const (
	SessionStatusPending    = "pending"
	SessionStatusProcessing = "processing"
	SessionStatusCompleted  = "completed"
	SessionStatusError      = "error"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

const (
	TicketStatusOpen   = "open"
	TicketStatusClosed = "closed"
)

const (
	SenderCustomer = "customer"
	SenderAI       = "ai"
	SenderSystem   = "system"
)

const (
	CategoryValidInquiry = "valid_inquiry"
	CategorySpam         = "spam"
	CategoryHarassment   = "harassment"
	CategoryOffTopic     = "off_topic"
	CategoryUnclear      = "unclear"
)

const (
	ActionCloseTicket          = "close_ticket"
	ActionAssignHuman          = "assign_human"
	ActionContinueConversation = "continue_conversation"
)

type Translation struct {
	Needed bool   `json:"needed"`
	Text   string `json:"text,omitempty"`
}

type LanguageInfo struct {
	Code        string      `json:"code"`
	Confidence  float64     `json:"confidence"`
	Translation Translation `json:"translation"`
}

type ValidityInfo struct {
	IsValid    bool    `json:"is_valid"`
	Reason     string  `json:"reason"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// ContextSnippet is one deduplicated semantic-search hit held on the session.
type ContextSnippet struct {
	Content    string  `json:"content"`
	DocumentID string  `json:"document_id"`
	Similarity float64 `json:"similarity"`
	IsRelevant bool    `json:"is_relevant"`
}

// ProcessingResults is filled one sub-decision at a time; zero fields mean the
// corresponding checkpoint has not been written yet.
type ProcessingResults struct {
	Priority            string   `json:"priority,omitempty"`
	PriorityReasoning   string   `json:"priority_reasoning,omitempty"`
	Tags                []string `json:"tags,omitempty"`
	TagReasoning        string   `json:"tag_reasoning,omitempty"`
	NeedsAssignment     *bool    `json:"needs_assignment,omitempty"`
	AssignmentReasoning string   `json:"assignment_reasoning,omitempty"`
}

type ResponseResult struct {
	Response  string   `json:"response"`
	Reasoning string   `json:"reasoning"`
	NextSteps []string `json:"next_steps"`
}

type SessionError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AnalysisSession is the per-inquiry coordination record. Status moves
// pending -> processing -> completed|error; terminal records are never
// mutated again. Sessions are retained as an audit trail, never deleted.
type AnalysisSession struct {
	ID             string            `json:"id"`
	TicketID       *string           `json:"ticket_id"`
	OrganizationID string            `json:"organization_id"`
	Status         string            `json:"status"`
	InquiryText    string            `json:"inquiry_text"`
	Language       *LanguageInfo     `json:"language,omitempty"`
	Validity       *ValidityInfo     `json:"validity,omitempty"`
	VectorResults  []ContextSnippet  `json:"vector_results,omitempty"`
	RetrievalNote  string            `json:"retrieval_note,omitempty"`
	Processing     ProcessingResults `json:"processing_results"`
	Response       *ResponseResult   `json:"response_result,omitempty"`
	Error          *SessionError     `json:"error,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func (s *AnalysisSession) Terminal() bool {
	return s.Status == SessionStatusCompleted || s.Status == SessionStatusError
}

type TriageDecision struct {
	Priority        string   `json:"priority"`
	Tags            []string `json:"tags"`
	NeedsAssignment bool     `json:"needs_assignment"`
}

type Ticket struct {
	ID                 string    `json:"id"`
	OrganizationID     string    `json:"organization_id"`
	Subject            string    `json:"subject"`
	CustomerEmail      string    `json:"customer_email"`
	CustomerName       string    `json:"customer_name"`
	Status             string    `json:"status"`
	Priority           string    `json:"priority"`
	AssignedTo         *string   `json:"assigned_to"`
	AIEnabled          bool      `json:"ai_enabled"`
	SatisfactionRating *int      `json:"satisfaction_rating"`
	Tags               []string  `json:"tags,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TicketUpdate carries partial ticket mutations; nil fields are left untouched.
type TicketUpdate struct {
	Status             *string
	Priority           *string
	AssignedTo         *string
	AIEnabled          *bool
	SatisfactionRating *int
}

type TicketMessage struct {
	ID             string         `json:"id"`
	TicketID       string         `json:"ticket_id"`
	OrganizationID string         `json:"organization_id"`
	Content        string         `json:"content"`
	SenderType     string         `json:"sender_type"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type Employee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type ReevaluationResult struct {
	IsSolved           bool   `json:"is_solved"`
	NeedsHuman         bool   `json:"needs_human"`
	Action             string `json:"action"`
	SatisfactionRating *int   `json:"satisfaction_rating,omitempty"`
	Reasoning          string `json:"reasoning"`
}

func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func ValidCategory(c string) bool {
	switch c {
	case CategoryValidInquiry, CategorySpam, CategoryHarassment, CategoryOffTopic, CategoryUnclear:
		return true
	}
	return false
}
