package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aidesk/backend/internal/models"
	"github.com/aidesk/backend/internal/oracle"
)

const (
	conversationPrompt = `You are reviewing an ongoing support conversation after
a new customer message. Choose exactly one action:
- close_ticket: the customer's problem is solved or the customer wants to stop;
  optionally estimate a satisfaction rating from 1 to 5
- assign_human: the customer needs or asked for a person, or the AI cannot help
- continue_conversation: keep the AI conversation going
Explain your reasoning.`

	actionExplanationPrompt = `You are a support assistant. Write a short,
customer-facing message explaining the action just taken on their ticket.`
)

// Reevaluate decides, after a new inbound customer message, whether to close
// the ticket, hand it to a human, or keep the conversation going. Tickets with
// AI responses disabled (already assigned to a human) are refused outright.
func (p *Pipeline) Reevaluate(ctx context.Context, ticketID, organizationID, messageID string) (*models.ReevaluationResult, error) {
	if strings.TrimSpace(ticketID) == "" || strings.TrimSpace(organizationID) == "" {
		return nil, ValidationError{Msg: "ticket_id and organization_id are required"}
	}

	ticket, err := p.Tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, ValidationError{Msg: fmt.Sprintf("ticket %s not found", ticketID)}
	}
	if ticket.OrganizationID != organizationID {
		return nil, AuthorizationError{Msg: "ticket belongs to a different organization"}
	}
	if !ticket.AIEnabled {
		return nil, ConsistencyError{Msg: fmt.Sprintf("AI responses are disabled for ticket %s", ticketID)}
	}

	history, err := p.Messages.ListTicketMessages(ctx, ticketID)
	if err != nil {
		return nil, PersistenceError{Op: "message history load", Err: err}
	}

	// The prior session is context, not a requirement; a ticket created
	// outside the intake flow has none.
	sess, err := p.Sessions.GetSessionByTicket(ctx, ticketID)
	if err != nil {
		sess = nil
	}

	roster, err := p.Context.ListActiveEmployees(ctx, organizationID)
	if err != nil {
		return nil, PersistenceError{Op: "employee roster load", Err: err}
	}

	raw, err := p.Oracle.Generate(ctx, oracle.Request{
		System: conversationPrompt,
		Schema: oracle.SchemaConversationAnalysis,
		User:   conversationInput(ticket, history, sess, messageID, len(roster)),
	})
	if err != nil {
		return nil, UpstreamOracleError{Schema: oracle.SchemaConversationAnalysis, Err: err}
	}
	parsed, err := oracle.ParseConversationAnalysis(raw)
	if err != nil {
		return nil, UpstreamOracleError{Schema: oracle.SchemaConversationAnalysis, Err: err}
	}

	result := &models.ReevaluationResult{
		IsSolved:           parsed.IsSolved,
		NeedsHuman:         parsed.NeedsHuman,
		Action:             parsed.Action,
		SatisfactionRating: parsed.SatisfactionRating,
		Reasoning:          parsed.Reasoning,
	}

	switch parsed.Action {
	case models.ActionCloseTicket:
		closed := models.TicketStatusClosed
		upd := models.TicketUpdate{Status: &closed, SatisfactionRating: parsed.SatisfactionRating}
		if err := p.Tickets.UpdateTicket(ctx, ticketID, upd); err != nil {
			return nil, PersistenceError{Op: "ticket close", Err: err}
		}
		if err := p.postActionMessage(ctx, ticket, models.SenderAI, parsed.Action, parsed.Reasoning); err != nil {
			return nil, err
		}

	case models.ActionAssignHuman:
		if len(roster) == 0 {
			return nil, ConsistencyError{Msg: "no active employees to assign"}
		}
		// Placeholder policy: uniform random pick, not load-aware.
		assignee := roster[p.intn(len(roster))]
		disabled := false
		upd := models.TicketUpdate{AssignedTo: &assignee.ID, AIEnabled: &disabled}
		if err := p.Tickets.UpdateTicket(ctx, ticketID, upd); err != nil {
			return nil, PersistenceError{Op: "ticket assignment", Err: err}
		}
		if err := p.postActionMessage(ctx, ticket, models.SenderSystem, parsed.Action, parsed.Reasoning); err != nil {
			return nil, err
		}

	case models.ActionContinueConversation:
		// No side effects; the normal AI response flow keeps going.
	}

	return result, nil
}

func (p *Pipeline) postActionMessage(ctx context.Context, ticket *models.Ticket, senderType, action, reasoning string) error {
	raw, err := p.Oracle.Generate(ctx, oracle.Request{
		System: actionExplanationPrompt,
		Schema: oracle.SchemaResponseSynthesis,
		User:   fmt.Sprintf("Action taken: %s\nInternal reasoning: %s", action, reasoning),
	})
	if err != nil {
		return UpstreamOracleError{Schema: oracle.SchemaResponseSynthesis, Err: err}
	}
	parsed, err := oracle.ParseSynthesis(raw)
	if err != nil {
		return UpstreamOracleError{Schema: oracle.SchemaResponseSynthesis, Err: err}
	}

	msg := &models.TicketMessage{
		ID:             uuid.NewString(),
		TicketID:       ticket.ID,
		OrganizationID: ticket.OrganizationID,
		Content:        parsed.Response,
		SenderType:     senderType,
		Metadata:       map[string]any{"action": action},
		CreatedAt:      time.Now().UTC(),
	}
	if err := p.Messages.CreateTicketMessage(ctx, msg); err != nil {
		return PersistenceError{Op: "action message create", Err: err}
	}
	return nil
}

func conversationInput(ticket *models.Ticket, history []models.TicketMessage, sess *models.AnalysisSession, newMessageID string, rosterSize int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket %s (priority %s, status %s). %d employees available.\n", ticket.ID, ticket.Priority, ticket.Status, rosterSize)
	if sess != nil && sess.Processing.Priority != "" {
		fmt.Fprintf(&b, "Initial triage priority: %s\n", sess.Processing.Priority)
	}
	b.WriteString("\nConversation:\n")
	for _, msg := range history {
		marker := ""
		if msg.ID == newMessageID {
			marker = " (new)"
		}
		fmt.Fprintf(&b, "[%s]%s %s\n", msg.SenderType, marker, msg.Content)
	}
	return b.String()
}
