package pipeline

import (
	"context"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/aidesk/backend/internal/models"
	"github.com/aidesk/backend/internal/oracle"
	"github.com/aidesk/backend/internal/search"
)

// Collaborator boundaries. *db.Store satisfies all of them; tests inject fakes.

type SessionStore interface {
	CreateSession(ctx context.Context, sess *models.AnalysisSession) error
	UpdateSession(ctx context.Context, sess *models.AnalysisSession) error
	GetSession(ctx context.Context, id string) (*models.AnalysisSession, error)
	GetSessionByTicket(ctx context.Context, ticketID string) (*models.AnalysisSession, error)
}

type TicketService interface {
	CreateTicket(ctx context.Context, t *models.Ticket) error
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	UpdateTicket(ctx context.Context, id string, upd models.TicketUpdate) error
	ReplaceTicketTags(ctx context.Context, ticketID string, tags []string) error
}

type MessageService interface {
	CreateTicketMessage(ctx context.Context, msg *models.TicketMessage) error
	ListTicketMessages(ctx context.Context, ticketID string) ([]models.TicketMessage, error)
}

type ContextProvider interface {
	ListActiveEmployees(ctx context.Context, organizationID string) ([]models.Employee, error)
}

type Pipeline struct {
	Sessions SessionStore
	Tickets  TicketService
	Messages MessageService
	Context  ContextProvider
	Oracle   oracle.Client
	Search   search.Searcher
	Logger   zerolog.Logger

	SearchLimit     int
	SearchThreshold float64

	// Rand drives the placeholder uniform-random assignment policy; nil uses
	// the global source.
	Rand *rand.Rand
}

type Deps interface {
	SessionStore
	TicketService
	MessageService
	ContextProvider
}

func New(store Deps, oracleClient oracle.Client, searcher search.Searcher, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		Sessions:        store,
		Tickets:         store,
		Messages:        store,
		Context:         store,
		Oracle:          oracleClient,
		Search:          searcher,
		Logger:          logger,
		SearchLimit:     5,
		SearchThreshold: 0.6,
	}
}

// ContinueProcessing runs the post-intake stages sequentially for an accepted
// inquiry. Failures are recorded on the session only; the customer already got
// an acknowledgment from intake.
func (p *Pipeline) ContinueProcessing(ctx context.Context, sess *models.AnalysisSession) {
	snippets, note, err := p.Retrieve(ctx, sess.InquiryText, sess.OrganizationID)
	if err != nil {
		p.failSession(ctx, sess, "retrieval_failed", err)
		return
	}
	sess.VectorResults = snippets
	sess.RetrievalNote = note
	if err := p.checkpoint(ctx, sess); err != nil {
		p.Logger.Error().Err(err).Str("session_id", sess.ID).Msg("retrieval checkpoint failed")
		return
	}

	if _, err := p.Triage(ctx, sess); err != nil {
		p.Logger.Error().Err(err).Str("session_id", sess.ID).Msg("triage failed")
		return
	}

	if _, err := p.Synthesize(ctx, sess); err != nil {
		p.Logger.Error().Err(err).Str("session_id", sess.ID).Msg("response synthesis failed")
	}
}

// checkpoint persists the session's current state. One atomic update, no
// optimistic-concurrency check: callers ensure at most one in-flight pipeline
// per ticket.
func (p *Pipeline) checkpoint(ctx context.Context, sess *models.AnalysisSession) error {
	if err := p.Sessions.UpdateSession(ctx, sess); err != nil {
		return PersistenceError{Op: "session update", Err: err}
	}
	return nil
}

// failSession marks the session errored while leaving already-checkpointed
// results visible. Terminal sessions are never mutated again.
func (p *Pipeline) failSession(ctx context.Context, sess *models.AnalysisSession, errType string, cause error) {
	if sess.Terminal() {
		return
	}
	sess.Status = models.SessionStatusError
	sess.Error = &models.SessionError{Type: errType, Message: cause.Error()}
	if err := p.Sessions.UpdateSession(ctx, sess); err != nil {
		p.Logger.Error().Err(err).Str("session_id", sess.ID).Msg("failed to persist session error")
	}
}

func (p *Pipeline) intn(n int) int {
	if p.Rand != nil {
		return p.Rand.Intn(n)
	}
	return rand.Intn(n)
}
