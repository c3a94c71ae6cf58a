package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aidesk/backend/internal/models"
	"github.com/aidesk/backend/internal/oracle"
	"github.com/aidesk/backend/internal/search"
)

// fakeStore is an in-memory Deps implementation. UpdateSession stores a copy
// so tests can distinguish persisted state from the live session object.
type fakeStore struct {
	sessions  map[string]models.AnalysisSession
	tickets   map[string]models.Ticket
	tags      map[string][]string
	messages  map[string][]models.TicketMessage
	employees []models.Employee

	updateCount  int
	failUpdateAt int // fail the Nth UpdateSession call once (1-based)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: map[string]models.AnalysisSession{},
		tickets:  map[string]models.Ticket{},
		tags:     map[string][]string{},
		messages: map[string][]models.TicketMessage{},
	}
}

func (f *fakeStore) CreateSession(ctx context.Context, sess *models.AnalysisSession) error {
	f.sessions[sess.ID] = *sess
	return nil
}

func (f *fakeStore) UpdateSession(ctx context.Context, sess *models.AnalysisSession) error {
	f.updateCount++
	if f.failUpdateAt > 0 && f.updateCount == f.failUpdateAt {
		return fmt.Errorf("simulated session write failure")
	}
	if _, ok := f.sessions[sess.ID]; !ok {
		return fmt.Errorf("session %s not found", sess.ID)
	}
	f.sessions[sess.ID] = *sess
	return nil
}

func (f *fakeStore) GetSession(ctx context.Context, id string) (*models.AnalysisSession, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return &sess, nil
}

func (f *fakeStore) GetSessionByTicket(ctx context.Context, ticketID string) (*models.AnalysisSession, error) {
	for _, sess := range f.sessions {
		if sess.TicketID != nil && *sess.TicketID == ticketID {
			out := sess
			return &out, nil
		}
	}
	return nil, fmt.Errorf("no session for ticket %s", ticketID)
}

func (f *fakeStore) CreateTicket(ctx context.Context, t *models.Ticket) error {
	f.tickets[t.ID] = *t
	return nil
}

func (f *fakeStore) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %s not found", id)
	}
	t.Tags = f.tags[id]
	return &t, nil
}

func (f *fakeStore) UpdateTicket(ctx context.Context, id string, upd models.TicketUpdate) error {
	t, ok := f.tickets[id]
	if !ok {
		return fmt.Errorf("ticket %s not found", id)
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.AssignedTo != nil {
		t.AssignedTo = upd.AssignedTo
	}
	if upd.AIEnabled != nil {
		t.AIEnabled = *upd.AIEnabled
	}
	if upd.SatisfactionRating != nil {
		t.SatisfactionRating = upd.SatisfactionRating
	}
	f.tickets[id] = t
	return nil
}

func (f *fakeStore) ReplaceTicketTags(ctx context.Context, ticketID string, tags []string) error {
	f.tags[ticketID] = append([]string(nil), tags...)
	return nil
}

func (f *fakeStore) CreateTicketMessage(ctx context.Context, msg *models.TicketMessage) error {
	f.messages[msg.TicketID] = append(f.messages[msg.TicketID], *msg)
	return nil
}

func (f *fakeStore) ListTicketMessages(ctx context.Context, ticketID string) ([]models.TicketMessage, error) {
	return f.messages[ticketID], nil
}

func (f *fakeStore) ListActiveEmployees(ctx context.Context, organizationID string) ([]models.Employee, error) {
	return f.employees, nil
}

func (f *fakeStore) messagesBySender(ticketID, senderType string) []models.TicketMessage {
	var out []models.TicketMessage
	for _, msg := range f.messages[ticketID] {
		if msg.SenderType == senderType {
			out = append(out, msg)
		}
	}
	return out
}

func (f *fakeStore) onlyTicket() models.Ticket {
	for _, t := range f.tickets {
		t.Tags = f.tags[t.ID]
		return t
	}
	return models.Ticket{}
}

// stubOracle returns canned values per schema, marshaled on demand.
type stubOracle struct {
	responses map[string]any
	errs      map[string]error
	calls     []string
}

func (o *stubOracle) Generate(ctx context.Context, req oracle.Request) ([]byte, error) {
	o.calls = append(o.calls, req.Schema)
	if err := o.errs[req.Schema]; err != nil {
		return nil, err
	}
	v, ok := o.responses[req.Schema]
	if !ok {
		return nil, fmt.Errorf("no stub response for schema %s", req.Schema)
	}
	return json.Marshal(v)
}

type stubSearcher struct {
	byQuery map[string][]search.Result
	err     error
	queries []string
}

func (s *stubSearcher) Search(ctx context.Context, q search.Query) ([]search.Result, error) {
	s.queries = append(s.queries, q.Text)
	if s.err != nil {
		return nil, s.err
	}
	return s.byQuery[q.Text], nil
}

func newTestPipeline(store Deps, o oracle.Client, s search.Searcher) *Pipeline {
	p := New(store, o, s, zerolog.Nop())
	return p
}

func validOracleDefaults() map[string]any {
	return map[string]any{
		oracle.SchemaLanguageDetection: oracle.LanguageDetection{
			LanguageCode: "en",
			Confidence:   0.97,
		},
		oracle.SchemaValidityCheck: oracle.ValidityCheck{
			IsValid:    true,
			Reason:     "Genuine support request",
			Category:   "valid_inquiry",
			Confidence: 0.92,
		},
		oracle.SchemaSearchPhrases: oracle.SearchPhrases{
			Phrases: []string{"password reset", "reset link broken"},
		},
		oracle.SchemaPriority: oracle.PriorityResult{
			Priority:  "high",
			Reasoning: "Customer is blocked",
		},
		oracle.SchemaTags: oracle.TagsResult{
			Tags:      []string{"password-reset", "login"},
			Reasoning: "Topic tags",
		},
		oracle.SchemaResponseSynthesis: oracle.SynthesisResult{
			Response:  "Here is how to fix your password reset link.",
			Reasoning: "Used the knowledge base context",
			NextSteps: []string{"Request a new link", "Clear the browser cache"},
		},
	}
}
