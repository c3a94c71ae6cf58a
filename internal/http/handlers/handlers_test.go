package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/aidesk/backend/internal/models"
	"github.com/aidesk/backend/internal/oracle"
	"github.com/aidesk/backend/internal/pipeline"
	"github.com/aidesk/backend/internal/search"
)

type memStore struct {
	mu       sync.Mutex
	sessions map[string]models.AnalysisSession
	tickets  map[string]models.Ticket
	messages map[string][]models.TicketMessage
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[string]models.AnalysisSession{},
		tickets:  map[string]models.Ticket{},
		messages: map[string][]models.TicketMessage{},
	}
}

func (m *memStore) CreateSession(ctx context.Context, sess *models.AnalysisSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = *sess
	return nil
}

func (m *memStore) UpdateSession(ctx context.Context, sess *models.AnalysisSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = *sess
	return nil
}

func (m *memStore) GetSession(ctx context.Context, id string) (*models.AnalysisSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return &sess, nil
}

func (m *memStore) GetSessionByTicket(ctx context.Context, ticketID string) (*models.AnalysisSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sess := range m.sessions {
		if sess.TicketID != nil && *sess.TicketID == ticketID {
			out := sess
			return &out, nil
		}
	}
	return nil, fmt.Errorf("no session for ticket %s", ticketID)
}

func (m *memStore) CreateTicket(ctx context.Context, t *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[t.ID] = *t
	return nil
}

func (m *memStore) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %s not found", id)
	}
	return &t, nil
}

func (m *memStore) UpdateTicket(ctx context.Context, id string, upd models.TicketUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return fmt.Errorf("ticket %s not found", id)
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	m.tickets[id] = t
	return nil
}

func (m *memStore) ReplaceTicketTags(ctx context.Context, ticketID string, tags []string) error {
	return nil
}

func (m *memStore) CreateTicketMessage(ctx context.Context, msg *models.TicketMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.TicketID] = append(m.messages[msg.TicketID], *msg)
	return nil
}

func (m *memStore) ListTicketMessages(ctx context.Context, ticketID string) ([]models.TicketMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[ticketID], nil
}

func (m *memStore) ListActiveEmployees(ctx context.Context, organizationID string) ([]models.Employee, error) {
	return nil, nil
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return fmt.Errorf("connection refused") }

func newTestHandler(store *memStore) *Handler {
	gin.SetMode(gin.TestMode)
	return &Handler{
		Pipeline:  pipeline.New(store, oracle.MockClient{}, search.MockSearcher{}, zerolog.Nop()),
		Validator: validator.New(),
		Logger:    zerolog.Nop(),
	}
}

func perform(t *testing.T, handler gin.HandlerFunc, method, route, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)
	r.Handle(method, route, handler)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(newMemStore())

	w := perform(t, h.Healthz, http.MethodGet, "/healthz", "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	h.DB = failingPinger{}
	w = perform(t, h.Healthz, http.MethodGet, "/healthz", "/healthz", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestIntakeRejectsBadPayload(t *testing.T) {
	h := newTestHandler(newMemStore())

	w := perform(t, h.Intake, http.MethodPost, "/api/intake", "/api/intake", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "INVALID_REQUEST") {
		t.Errorf("body = %s, want INVALID_REQUEST code", w.Body.String())
	}

	w = perform(t, h.Intake, http.MethodPost, "/api/intake", "/api/intake", `{"inquiry_text":"help","customer_email":"not-an-email","customer_name":"Sam","organization_id":"org-1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "VALIDATION_ERROR") {
		t.Errorf("body = %s, want VALIDATION_ERROR code", w.Body.String())
	}
}

func TestIntakeAcceptedInquiry(t *testing.T) {
	h := newTestHandler(newMemStore())

	body := `{"inquiry_text":"My password reset link is not working, urgent!","customer_email":"sam@example.com","customer_name":"Sam","organization_id":"org-1"}`
	w := perform(t, h.Intake, http.MethodPost, "/api/intake", "/api/intake", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var sess models.AnalysisSession
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if sess.TicketID == nil {
		t.Fatal("accepted inquiry returned no ticket")
	}
	if sess.Language == nil || sess.Language.Code != "en" {
		t.Errorf("language = %+v, want en", sess.Language)
	}
	if sess.Validity == nil || !sess.Validity.IsValid {
		t.Errorf("validity = %+v, want valid", sess.Validity)
	}
}

// The background continuation works on its own copy of the session, so the
// serialized intake response always shows intake-time state while the copy
// advances through retrieval, triage, and synthesis via the store.
func TestIntakeResponseIsolatedFromContinuation(t *testing.T) {
	store := newMemStore()
	h := newTestHandler(store)

	body := `{"inquiry_text":"My password reset link is not working, urgent!","customer_email":"sam@example.com","customer_name":"Sam","organization_id":"org-1"}`
	w := perform(t, h.Intake, http.MethodPost, "/api/intake", "/api/intake", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var sess models.AnalysisSession
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if sess.Status != models.SessionStatusProcessing {
		t.Errorf("response status = %q, want %q", sess.Status, models.SessionStatusProcessing)
	}
	if sess.Response != nil {
		t.Errorf("response_result = %+v, want unset at intake time", sess.Response)
	}
	if sess.Processing.Priority != "" || sess.Processing.NeedsAssignment != nil {
		t.Errorf("processing_results = %+v, want empty at intake time", sess.Processing)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		persisted, err := store.GetSession(context.Background(), sess.ID)
		if err == nil && persisted.Terminal() {
			if persisted.Status != models.SessionStatusCompleted {
				t.Fatalf("persisted status = %q, error = %+v", persisted.Status, persisted.Error)
			}
			if persisted.Processing.Priority == "" {
				t.Error("continuation finished without a triage priority")
			}
			if persisted.Response == nil {
				t.Error("continuation finished without a response result")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("continuation did not reach a terminal state")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionDetails(t *testing.T) {
	store := newMemStore()
	store.sessions["sess-1"] = models.AnalysisSession{
		ID:             "sess-1",
		OrganizationID: "org-1",
		Status:         models.SessionStatusCompleted,
	}
	h := newTestHandler(store)

	const route = "/api/sessions/:id"
	w := perform(t, h.SessionDetails, http.MethodGet, route, "/api/sessions/sess-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	w = perform(t, h.SessionDetails, http.MethodGet, route, "/api/sessions/missing", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	w = perform(t, h.SessionDetails, http.MethodGet, route, "/api/sessions/sess-1?organization_id=org-2", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestTriageUnknownSession(t *testing.T) {
	h := newTestHandler(newMemStore())

	w := perform(t, h.Triage, http.MethodPost, "/api/triage", "/api/triage", `{"session_id":"missing","organization_id":"org-1"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestRespondWrongOrganization(t *testing.T) {
	store := newMemStore()
	store.sessions["sess-1"] = models.AnalysisSession{
		ID:             "sess-1",
		OrganizationID: "org-1",
		Status:         models.SessionStatusProcessing,
	}
	h := newTestHandler(store)

	w := perform(t, h.Respond, http.MethodPost, "/api/respond", "/api/respond", `{"session_id":"sess-1","organization_id":"org-2"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}
