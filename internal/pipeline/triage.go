package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/aidesk/backend/internal/models"
	"github.com/aidesk/backend/internal/oracle"
)

const (
	priorityPrompt = `You are a support triage analyst. Classify the priority of
the inquiry:
- low: cosmetic or minor issues
- medium: standard requests and non-critical bugs
- high: business-blocking problems
- urgent: outage, security incident, or data loss
Explain your reasoning briefly.`

	tagsPrompt = `You are a support triage analyst. Produce 1-3 short tags for
the inquiry. Each tag is lowercase, hyphenated, at most 30 characters.
Explain your reasoning briefly.`

	maxTags      = 3
	maxTagLength = 30
)

const assignmentStubReasoning = "Assignment determination uses a fixed policy in this release; AI handles the first response."

// Triage derives priority, tags, and assignment need for an accepted inquiry,
// checkpointing after each sub-decision so a mid-stage failure preserves
// completed results. Priority and tags are mirrored onto the ticket when one
// exists.
func (p *Pipeline) Triage(ctx context.Context, sess *models.AnalysisSession) (models.TriageDecision, error) {
	var decision models.TriageDecision

	if sess.Terminal() {
		return decision, ConsistencyError{Msg: fmt.Sprintf("session %s is already %s", sess.ID, sess.Status)}
	}
	if sess.Validity == nil || !sess.Validity.IsValid {
		return decision, ConsistencyError{Msg: "session has not passed intake validation"}
	}

	priority, err := p.classifyPriority(ctx, sess)
	if err != nil {
		p.failSession(ctx, sess, "triage_failed", err)
		return decision, err
	}
	sess.Processing.Priority = priority.Priority
	sess.Processing.PriorityReasoning = priority.Reasoning
	if err := p.checkpoint(ctx, sess); err != nil {
		sess.Processing.Priority = ""
		sess.Processing.PriorityReasoning = ""
		p.failSession(ctx, sess, "triage_failed", err)
		return decision, err
	}

	tags, err := p.generateTags(ctx, sess)
	if err != nil {
		p.failSession(ctx, sess, "triage_failed", err)
		return decision, err
	}
	sess.Processing.Tags = NormalizeTags(tags.Tags)
	sess.Processing.TagReasoning = tags.Reasoning
	if err := p.checkpoint(ctx, sess); err != nil {
		sess.Processing.Tags = nil
		sess.Processing.TagReasoning = ""
		p.failSession(ctx, sess, "triage_failed", err)
		return decision, err
	}

	// Fixed policy for now: the AI answers first, nobody is pre-assigned.
	needsAssignment := false
	sess.Processing.NeedsAssignment = &needsAssignment
	sess.Processing.AssignmentReasoning = assignmentStubReasoning
	if err := p.checkpoint(ctx, sess); err != nil {
		// The assignment sub-decision did not land; the persisted record must
		// reflect the last successful checkpoint only.
		sess.Processing.NeedsAssignment = nil
		sess.Processing.AssignmentReasoning = ""
		p.failSession(ctx, sess, "triage_failed", err)
		return decision, err
	}

	decision = models.TriageDecision{
		Priority:        sess.Processing.Priority,
		Tags:            sess.Processing.Tags,
		NeedsAssignment: needsAssignment,
	}

	if sess.TicketID != nil {
		if err := p.Tickets.UpdateTicket(ctx, *sess.TicketID, models.TicketUpdate{Priority: &decision.Priority}); err != nil {
			perr := PersistenceError{Op: "ticket priority update", Err: err}
			p.failSession(ctx, sess, "triage_failed", perr)
			return decision, perr
		}
		if err := p.Tickets.ReplaceTicketTags(ctx, *sess.TicketID, decision.Tags); err != nil {
			perr := PersistenceError{Op: "ticket tag replace", Err: err}
			p.failSession(ctx, sess, "triage_failed", perr)
			return decision, perr
		}
	}

	return decision, nil
}

func (p *Pipeline) classifyPriority(ctx context.Context, sess *models.AnalysisSession) (oracle.PriorityResult, error) {
	raw, err := p.Oracle.Generate(ctx, oracle.Request{
		System: priorityPrompt,
		Schema: oracle.SchemaPriority,
		User:   sess.InquiryText,
	})
	if err != nil {
		return oracle.PriorityResult{}, UpstreamOracleError{Schema: oracle.SchemaPriority, Err: err}
	}
	parsed, err := oracle.ParsePriority(raw)
	if err != nil {
		return oracle.PriorityResult{}, UpstreamOracleError{Schema: oracle.SchemaPriority, Err: err}
	}
	return parsed, nil
}

func (p *Pipeline) generateTags(ctx context.Context, sess *models.AnalysisSession) (oracle.TagsResult, error) {
	raw, err := p.Oracle.Generate(ctx, oracle.Request{
		System: tagsPrompt,
		Schema: oracle.SchemaTags,
		User:   sess.InquiryText,
	})
	if err != nil {
		return oracle.TagsResult{}, UpstreamOracleError{Schema: oracle.SchemaTags, Err: err}
	}
	parsed, err := oracle.ParseTags(raw)
	if err != nil {
		return oracle.TagsResult{}, UpstreamOracleError{Schema: oracle.SchemaTags, Err: err}
	}
	return parsed, nil
}

// NormalizeTags enforces the tag contract on oracle output: lowercase,
// hyphenated, at most 30 characters, 1-3 unique tags.
func NormalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, tag := range tags {
		t := normalizeTag(tag)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	if len(out) == 0 {
		out = []string{"general"}
	}
	return out
}

func normalizeTag(tag string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(tag)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '_' || r == '-':
			b.WriteRune('-')
		}
	}
	t := strings.Trim(b.String(), "-")
	for strings.Contains(t, "--") {
		t = strings.ReplaceAll(t, "--", "-")
	}
	if len(t) > maxTagLength {
		t = strings.Trim(t[:maxTagLength], "-")
	}
	return t
}
