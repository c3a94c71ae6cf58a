package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidesk/backend/internal/models"
	"github.com/aidesk/backend/internal/oracle"
)

// conversationFixture seeds a ticket mid-conversation with a fresh customer
// message awaiting re-evaluation.
func conversationFixture(store *fakeStore) (ticketID, messageID string) {
	ticketID = "ticket-1"
	store.tickets[ticketID] = models.Ticket{
		ID:             ticketID,
		OrganizationID: "org-1",
		Status:         models.TicketStatusOpen,
		Priority:       models.PriorityHigh,
		AIEnabled:      true,
	}
	now := time.Now().UTC()
	store.messages[ticketID] = []models.TicketMessage{
		{ID: "msg-1", TicketID: ticketID, OrganizationID: "org-1", SenderType: models.SenderCustomer, Content: "My password reset link is not working", CreatedAt: now.Add(-2 * time.Minute)},
		{ID: "msg-2", TicketID: ticketID, OrganizationID: "org-1", SenderType: models.SenderAI, Content: "Please request a new link from the login page.", CreatedAt: now.Add(-time.Minute)},
		{ID: "msg-3", TicketID: ticketID, OrganizationID: "org-1", SenderType: models.SenderCustomer, Content: "That worked, thanks!", CreatedAt: now},
	}
	store.employees = []models.Employee{
		{ID: "emp-1", Name: "Alex", Role: "support"},
		{ID: "emp-2", Name: "Brook", Role: "support"},
		{ID: "emp-3", Name: "Casey", Role: "support"},
	}
	return ticketID, "msg-3"
}

func reevalResponses(analysis oracle.ConversationAnalysis) map[string]any {
	responses := validOracleDefaults()
	responses[oracle.SchemaConversationAnalysis] = analysis
	return responses
}

func TestReevaluateCloseTicket(t *testing.T) {
	store := newFakeStore()
	ticketID, messageID := conversationFixture(store)
	rating := 4
	p := newTestPipeline(store, &stubOracle{responses: reevalResponses(oracle.ConversationAnalysis{
		IsSolved:           true,
		Action:             models.ActionCloseTicket,
		SatisfactionRating: &rating,
		Reasoning:          "Customer confirmed resolution",
	})}, &stubSearcher{})

	before := len(store.messages[ticketID])
	result, err := p.Reevaluate(context.Background(), ticketID, "org-1", messageID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionCloseTicket, result.Action)
	assert.True(t, result.IsSolved)

	ticket, err := store.GetTicket(context.Background(), ticketID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusClosed, ticket.Status)
	require.NotNil(t, ticket.SatisfactionRating)
	assert.Equal(t, 4, *ticket.SatisfactionRating)

	// Exactly one closing message, from the AI.
	assert.Len(t, store.messages[ticketID], before+1)
	last := store.messages[ticketID][len(store.messages[ticketID])-1]
	assert.Equal(t, models.SenderAI, last.SenderType)
	assert.Equal(t, models.ActionCloseTicket, last.Metadata["action"])
}

func TestReevaluateAssignHuman(t *testing.T) {
	store := newFakeStore()
	ticketID, messageID := conversationFixture(store)
	p := newTestPipeline(store, &stubOracle{responses: reevalResponses(oracle.ConversationAnalysis{
		NeedsHuman: true,
		Action:     models.ActionAssignHuman,
		Reasoning:  "Customer asked for a person",
	})}, &stubSearcher{})
	p.Rand = rand.New(rand.NewSource(7))

	before := len(store.messages[ticketID])
	result, err := p.Reevaluate(context.Background(), ticketID, "org-1", messageID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionAssignHuman, result.Action)

	ticket, err := store.GetTicket(context.Background(), ticketID)
	require.NoError(t, err)
	require.NotNil(t, ticket.AssignedTo)
	assert.Contains(t, []string{"emp-1", "emp-2", "emp-3"}, *ticket.AssignedTo)
	assert.False(t, ticket.AIEnabled)

	assert.Len(t, store.messages[ticketID], before+1)
	last := store.messages[ticketID][len(store.messages[ticketID])-1]
	assert.Equal(t, models.SenderSystem, last.SenderType)
}

func TestReevaluateAssignHumanEmptyRoster(t *testing.T) {
	store := newFakeStore()
	ticketID, messageID := conversationFixture(store)
	store.employees = nil
	p := newTestPipeline(store, &stubOracle{responses: reevalResponses(oracle.ConversationAnalysis{
		NeedsHuman: true,
		Action:     models.ActionAssignHuman,
		Reasoning:  "Customer asked for a person",
	})}, &stubSearcher{})

	_, err := p.Reevaluate(context.Background(), ticketID, "org-1", messageID)
	var cerr ConsistencyError
	require.True(t, errors.As(err, &cerr))

	ticket, getErr := store.GetTicket(context.Background(), ticketID)
	require.NoError(t, getErr)
	assert.Nil(t, ticket.AssignedTo)
	assert.True(t, ticket.AIEnabled)
}

func TestReevaluateContinueConversation(t *testing.T) {
	store := newFakeStore()
	ticketID, messageID := conversationFixture(store)
	p := newTestPipeline(store, &stubOracle{responses: reevalResponses(oracle.ConversationAnalysis{
		Action:    models.ActionContinueConversation,
		Reasoning: "Conversation still in progress",
	})}, &stubSearcher{})

	before := len(store.messages[ticketID])
	result, err := p.Reevaluate(context.Background(), ticketID, "org-1", messageID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionContinueConversation, result.Action)

	// No side effects at all.
	assert.Len(t, store.messages[ticketID], before)
	ticket, err := store.GetTicket(context.Background(), ticketID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusOpen, ticket.Status)
	assert.True(t, ticket.AIEnabled)
}

func TestReevaluateRefusesDisabledTicket(t *testing.T) {
	store := newFakeStore()
	ticketID, messageID := conversationFixture(store)
	ticket := store.tickets[ticketID]
	ticket.AIEnabled = false
	store.tickets[ticketID] = ticket

	o := &stubOracle{responses: validOracleDefaults()}
	p := newTestPipeline(store, o, &stubSearcher{})

	_, err := p.Reevaluate(context.Background(), ticketID, "org-1", messageID)
	var cerr ConsistencyError
	require.True(t, errors.As(err, &cerr))
	assert.Empty(t, o.calls)
}

func TestReevaluateOrganizationMismatch(t *testing.T) {
	store := newFakeStore()
	ticketID, messageID := conversationFixture(store)
	p := newTestPipeline(store, &stubOracle{responses: validOracleDefaults()}, &stubSearcher{})

	_, err := p.Reevaluate(context.Background(), ticketID, "org-2", messageID)
	var aerr AuthorizationError
	require.True(t, errors.As(err, &aerr))
}

func TestReevaluateUnknownTicket(t *testing.T) {
	p := newTestPipeline(newFakeStore(), &stubOracle{responses: validOracleDefaults()}, &stubSearcher{})

	_, err := p.Reevaluate(context.Background(), "missing", "org-1", "msg-1")
	var verr ValidationError
	require.True(t, errors.As(err, &verr))
}
