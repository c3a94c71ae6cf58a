package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidesk/backend/internal/models"
	"github.com/aidesk/backend/internal/oracle"
	"github.com/aidesk/backend/internal/search"
)

// Runs the full accepted-inquiry flow against the deterministic mock clients,
// the same wiring the server uses when no live endpoints are configured.
func TestPipelineEndToEndWithMocks(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, oracle.MockClient{}, search.MockSearcher{})

	sess, err := p.Analyze(context.Background(), IntakeRequest{
		InquiryText:    "My password reset link is not working, urgent!",
		CustomerEmail:  "sam@example.com",
		CustomerName:   "Sam",
		OrganizationID: "org-1",
	})
	require.NoError(t, err)
	require.NotNil(t, sess.TicketID)
	assert.Equal(t, "en", sess.Language.Code)
	assert.False(t, sess.Language.Translation.Needed)
	assert.True(t, sess.Validity.IsValid)

	p.ContinueProcessing(context.Background(), sess)

	persisted, err := store.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, persisted.Status)
	assert.Nil(t, persisted.Error)

	assert.Equal(t, models.PriorityHigh, persisted.Processing.Priority)
	require.NotEmpty(t, persisted.Processing.Tags)
	for _, tag := range persisted.Processing.Tags {
		assert.Regexp(t, `^[a-z0-9]+(-[a-z0-9]+)*$`, tag)
	}
	require.NotNil(t, persisted.Processing.NeedsAssignment)
	assert.False(t, *persisted.Processing.NeedsAssignment)

	assert.NotEmpty(t, persisted.VectorResults)
	for _, snip := range persisted.VectorResults {
		assert.True(t, snip.IsRelevant)
	}
	require.NotNil(t, persisted.Response)
	assert.NotEmpty(t, persisted.Response.Response)

	ticket, err := store.GetTicket(context.Background(), *sess.TicketID)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, ticket.Priority)
	assert.Equal(t, persisted.Processing.Tags, ticket.Tags)

	assert.Len(t, store.messagesBySender(ticket.ID, models.SenderCustomer), 1)
	assert.Len(t, store.messagesBySender(ticket.ID, models.SenderAI), 1)
}

// A spam inquiry ends the flow at intake with a rejection response and no
// ticket.
func TestPipelineEndToEndRejection(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, oracle.MockClient{}, search.MockSearcher{})

	sess, err := p.Analyze(context.Background(), IntakeRequest{
		InquiryText:    "Buy now and join our crypto giveaway!!!",
		CustomerEmail:  "spam@example.com",
		OrganizationID: "org-1",
	})
	require.NoError(t, err)

	assert.Nil(t, sess.TicketID)
	assert.Equal(t, models.SessionStatusCompleted, sess.Status)
	require.NotNil(t, sess.Validity)
	assert.False(t, sess.Validity.IsValid)
	assert.Equal(t, "spam", sess.Validity.Category)
	require.NotNil(t, sess.Response)
	assert.NotEmpty(t, sess.Response.Response)
	assert.Empty(t, store.tickets)
}
