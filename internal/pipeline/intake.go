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
	languageDetectionPrompt = `You are a language analyst for a customer support desk.
Detect the language of the customer inquiry. Report the ISO 639-1 language code,
your confidence, the common words and script you based the decision on, and
whether an English translation is needed for downstream processing. Include the
translation text only when it is needed.`

	validityCheckPrompt = `You are a support intake screener.
Decide whether the inquiry is a genuine support request. Classify it as one of:
valid_inquiry, spam, harassment, off_topic, unclear. Give a short reason and
your confidence. Optionally suggest a response for invalid inquiries.`

	rejectionPrompt = `You are a support desk assistant.
Write a short, polite, tone-appropriate message telling the customer why their
message cannot be handled by support. Do not be preachy.`
)

type IntakeRequest struct {
	InquiryText    string
	CustomerEmail  string
	CustomerName   string
	OrganizationID string
}

// Analyze screens an inquiry for language and validity. Accepted inquiries get
// a ticket and continue downstream; rejected ones get an oracle-written
// rejection and a terminal session with no ticket.
func (p *Pipeline) Analyze(ctx context.Context, req IntakeRequest) (*models.AnalysisSession, error) {
	if strings.TrimSpace(req.InquiryText) == "" {
		return nil, ValidationError{Msg: "inquiry_text is required"}
	}
	if strings.TrimSpace(req.OrganizationID) == "" {
		return nil, ValidationError{Msg: "organization_id is required"}
	}

	now := time.Now().UTC()
	sess := &models.AnalysisSession{
		ID:             uuid.NewString(),
		OrganizationID: req.OrganizationID,
		Status:         models.SessionStatusPending,
		InquiryText:    req.InquiryText,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.Sessions.CreateSession(ctx, sess); err != nil {
		return nil, PersistenceError{Op: "session create", Err: err}
	}

	sess.Status = models.SessionStatusProcessing
	if err := p.checkpoint(ctx, sess); err != nil {
		return sess, err
	}

	lang, err := p.detectLanguage(ctx, req.InquiryText)
	if err != nil {
		p.failSession(ctx, sess, "language_detection_failed", err)
		return sess, err
	}
	sess.Language = lang
	if err := p.checkpoint(ctx, sess); err != nil {
		return sess, err
	}

	validity, err := p.checkValidity(ctx, req.InquiryText, lang)
	if err != nil {
		p.failSession(ctx, sess, "validity_check_failed", err)
		return sess, err
	}
	sess.Validity = validity
	if err := p.checkpoint(ctx, sess); err != nil {
		return sess, err
	}

	if !validity.IsValid {
		rejection, err := p.buildRejection(ctx, req.InquiryText, lang, validity)
		if err != nil {
			p.failSession(ctx, sess, "error_response_failed", err)
			return sess, err
		}
		sess.Response = &models.ResponseResult{
			Response:  rejection,
			Reasoning: validity.Reason,
		}
		sess.Status = models.SessionStatusCompleted
		if err := p.checkpoint(ctx, sess); err != nil {
			return sess, err
		}
		return sess, nil
	}

	ticket := &models.Ticket{
		ID:             uuid.NewString(),
		OrganizationID: req.OrganizationID,
		Subject:        ticketSubject(req.InquiryText),
		CustomerEmail:  req.CustomerEmail,
		CustomerName:   req.CustomerName,
		Status:         models.TicketStatusOpen,
		Priority:       models.PriorityMedium,
		AIEnabled:      true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.Tickets.CreateTicket(ctx, ticket); err != nil {
		perr := PersistenceError{Op: "ticket create", Err: err}
		p.failSession(ctx, sess, "ticket_creation_failed", perr)
		return sess, perr
	}
	sess.TicketID = &ticket.ID
	if err := p.checkpoint(ctx, sess); err != nil {
		return sess, err
	}

	// Record the inbound message so re-evaluation sees the full history.
	msg := &models.TicketMessage{
		ID:             uuid.NewString(),
		TicketID:       ticket.ID,
		OrganizationID: req.OrganizationID,
		Content:        req.InquiryText,
		SenderType:     models.SenderCustomer,
		CreatedAt:      time.Now().UTC(),
	}
	if err := p.Messages.CreateTicketMessage(ctx, msg); err != nil {
		p.Logger.Error().Err(err).Str("ticket_id", ticket.ID).Msg("failed to store inbound message")
	}

	return sess, nil
}

func (p *Pipeline) detectLanguage(ctx context.Context, text string) (*models.LanguageInfo, error) {
	raw, err := p.Oracle.Generate(ctx, oracle.Request{
		System: languageDetectionPrompt,
		Schema: oracle.SchemaLanguageDetection,
		User:   text,
	})
	if err != nil {
		return nil, UpstreamOracleError{Schema: oracle.SchemaLanguageDetection, Err: err}
	}
	parsed, err := oracle.ParseLanguageDetection(raw)
	if err != nil {
		return nil, UpstreamOracleError{Schema: oracle.SchemaLanguageDetection, Err: err}
	}
	return &models.LanguageInfo{
		Code:       parsed.LanguageCode,
		Confidence: parsed.Confidence,
		Translation: models.Translation{
			Needed: parsed.Translation.Needed,
			Text:   parsed.Translation.Text,
		},
	}, nil
}

func (p *Pipeline) checkValidity(ctx context.Context, text string, lang *models.LanguageInfo) (*models.ValidityInfo, error) {
	user := fmt.Sprintf("Language: %s (confidence %.2f)\n\nInquiry:\n%s", lang.Code, lang.Confidence, text)
	if lang.Translation.Needed && lang.Translation.Text != "" {
		user += "\n\nEnglish translation:\n" + lang.Translation.Text
	}
	raw, err := p.Oracle.Generate(ctx, oracle.Request{
		System: validityCheckPrompt,
		Schema: oracle.SchemaValidityCheck,
		User:   user,
	})
	if err != nil {
		return nil, UpstreamOracleError{Schema: oracle.SchemaValidityCheck, Err: err}
	}
	parsed, err := oracle.ParseValidityCheck(raw)
	if err != nil {
		return nil, UpstreamOracleError{Schema: oracle.SchemaValidityCheck, Err: err}
	}
	return &models.ValidityInfo{
		IsValid:    parsed.IsValid,
		Reason:     parsed.Reason,
		Category:   parsed.Category,
		Confidence: parsed.Confidence,
	}, nil
}

func (p *Pipeline) buildRejection(ctx context.Context, text string, lang *models.LanguageInfo, validity *models.ValidityInfo) (string, error) {
	user := fmt.Sprintf("Rejection category: %s\nReason: %s\n\nOriginal message:\n%s", validity.Category, validity.Reason, text)
	if lang.Translation.Needed {
		user += fmt.Sprintf("\n\nWrite the rejection in the customer's language (%s).", lang.Code)
	}
	raw, err := p.Oracle.Generate(ctx, oracle.Request{
		System: rejectionPrompt,
		Schema: oracle.SchemaErrorResponse,
		User:   user,
	})
	if err != nil {
		return "", UpstreamOracleError{Schema: oracle.SchemaErrorResponse, Err: err}
	}
	parsed, err := oracle.ParseErrorResponse(raw)
	if err != nil {
		return "", UpstreamOracleError{Schema: oracle.SchemaErrorResponse, Err: err}
	}
	return parsed.Response, nil
}

func ticketSubject(inquiry string) string {
	subject := strings.Join(strings.Fields(inquiry), " ")
	if len(subject) > 80 {
		subject = subject[:77] + "..."
	}
	return subject
}
