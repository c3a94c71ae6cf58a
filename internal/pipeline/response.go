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

const synthesisPrompt = `You are a customer support assistant writing the first
reply to an inquiry. Match your tone to the stated priority (urgent issues get
a direct, action-first reply). When context snippets from the knowledge base
are supplied, base your answer on them and say so. Provide concrete next steps.`

// Synthesize produces and posts the final AI response and completes the
// session. It is the sole writer of the completed status and gates on it, so a
// duplicate invocation returns the stored result without posting a second
// message.
func (p *Pipeline) Synthesize(ctx context.Context, sess *models.AnalysisSession) (*models.ResponseResult, error) {
	if sess.Status == models.SessionStatusCompleted {
		return sess.Response, nil
	}
	if sess.Status == models.SessionStatusError {
		return nil, ConsistencyError{Msg: fmt.Sprintf("session %s is in error state", sess.ID)}
	}
	if sess.Validity == nil || !sess.Validity.IsValid {
		return nil, ConsistencyError{Msg: "session has not passed intake validation"}
	}

	raw, err := p.Oracle.Generate(ctx, oracle.Request{
		System: synthesisPrompt,
		Schema: oracle.SchemaResponseSynthesis,
		User:   synthesisInput(sess),
	})
	if err != nil {
		oerr := UpstreamOracleError{Schema: oracle.SchemaResponseSynthesis, Err: err}
		p.failSession(ctx, sess, "response_synthesis_failed", oerr)
		return nil, oerr
	}
	parsed, err := oracle.ParseSynthesis(raw)
	if err != nil {
		oerr := UpstreamOracleError{Schema: oracle.SchemaResponseSynthesis, Err: err}
		p.failSession(ctx, sess, "response_synthesis_failed", oerr)
		return nil, oerr
	}

	result := &models.ResponseResult{
		Response:  parsed.Response,
		Reasoning: parsed.Reasoning,
		NextSteps: parsed.NextSteps,
	}

	if sess.TicketID != nil {
		msg := &models.TicketMessage{
			ID:             uuid.NewString(),
			TicketID:       *sess.TicketID,
			OrganizationID: sess.OrganizationID,
			Content:        result.Response,
			SenderType:     models.SenderAI,
			Metadata: map[string]any{
				"reasoning":  result.Reasoning,
				"next_steps": result.NextSteps,
			},
			CreatedAt: time.Now().UTC(),
		}
		if err := p.Messages.CreateTicketMessage(ctx, msg); err != nil {
			perr := PersistenceError{Op: "response message create", Err: err}
			p.failSession(ctx, sess, "response_synthesis_failed", perr)
			return nil, perr
		}
	}

	sess.Response = result
	sess.Status = models.SessionStatusCompleted
	if err := p.checkpoint(ctx, sess); err != nil {
		return nil, err
	}
	return result, nil
}

func synthesisInput(sess *models.AnalysisSession) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Inquiry:\n%s\n", sess.InquiryText)
	if sess.Processing.Priority != "" {
		fmt.Fprintf(&b, "\nPriority: %s\n", sess.Processing.Priority)
	}
	if len(sess.Processing.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(sess.Processing.Tags, ", "))
	}
	if len(sess.VectorResults) > 0 {
		b.WriteString("\nContext snippets:\n")
		for i, s := range sess.VectorResults {
			fmt.Fprintf(&b, "%d. [%s, similarity %.2f] %s\n", i+1, s.DocumentID, s.Similarity, s.Content)
		}
	} else {
		b.WriteString("\nNo knowledge base context was found for this inquiry.\n")
	}
	return b.String()
}
