package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/aidesk/backend/internal/models"
	"github.com/aidesk/backend/internal/pipeline"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Pipeline  *pipeline.Pipeline
	DB        Pinger
	Validator *validator.Validate
	Logger    zerolog.Logger
}

// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	if h.DB != nil {
		if err := h.DB.Ping(c.Request.Context()); err != nil {
			writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type IntakeRequest struct {
	InquiryText    string `json:"inquiry_text" validate:"required"`
	CustomerEmail  string `json:"customer_email" validate:"required,email"`
	CustomerName   string `json:"customer_name" validate:"required"`
	OrganizationID string `json:"organization_id" validate:"required"`
}

// @Summary Analyze an inquiry
// @Description Screens language and validity; accepted inquiries get a ticket and continue through the pipeline in the background
// @Tags intake
// @Accept json
// @Produce json
// @Param request body IntakeRequest true "Inquiry"
// @Success 200 {object} models.AnalysisSession
// @Failure 400 {object} map[string]any
// @Failure 500 {object} map[string]any
// @Router /api/intake [post]
func (h *Handler) Intake(c *gin.Context) {
	var req IntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	sess, err := h.Pipeline.Analyze(c.Request.Context(), pipeline.IntakeRequest{
		InquiryText:    req.InquiryText,
		CustomerEmail:  req.CustomerEmail,
		CustomerName:   req.CustomerName,
		OrganizationID: req.OrganizationID,
	})
	if err != nil {
		h.writePipelineError(c, err)
		return
	}

	// Accepted inquiries continue through retrieval, triage, and synthesis
	// after the customer already has an acknowledgment. One sequential
	// invocation per inquiry, detached from the request context. The goroutine
	// gets its own copy so serializing the response below never reads fields
	// the continuation is writing; downstream stages fill slice and pointer
	// fields that are still nil at this point.
	if sess.TicketID != nil && !sess.Terminal() {
		cont := *sess
		go h.Pipeline.ContinueProcessing(context.Background(), &cont)
	}

	c.JSON(http.StatusOK, sess)
}

type RetrieveRequest struct {
	InquiryText    string `json:"inquiry_text" validate:"required"`
	OrganizationID string `json:"organization_id" validate:"required"`
	TicketID       string `json:"ticket_id"`
}

// @Summary Retrieve context snippets
// @Tags retrieval
// @Accept json
// @Produce json
// @Param request body RetrieveRequest true "Query"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/retrieve [post]
func (h *Handler) Retrieve(c *gin.Context) {
	var req RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	snippets, note, err := h.Pipeline.Retrieve(c.Request.Context(), req.InquiryText, req.OrganizationID)
	if err != nil {
		h.writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snippets": snippets, "note": note})
}

type StageRequest struct {
	SessionID      string `json:"session_id" validate:"required"`
	OrganizationID string `json:"organization_id" validate:"required"`
}

// @Summary Triage a session
// @Description Derives priority, tags, and assignment need, mirroring them onto the ticket
// @Tags triage
// @Accept json
// @Produce json
// @Param request body StageRequest true "Session"
// @Success 200 {object} models.TriageDecision
// @Failure 400 {object} map[string]any
// @Router /api/triage [post]
func (h *Handler) Triage(c *gin.Context) {
	sess, ok := h.loadStageSession(c)
	if !ok {
		return
	}
	decision, err := h.Pipeline.Triage(c.Request.Context(), sess)
	if err != nil {
		h.writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

// @Summary Synthesize the AI response
// @Tags response
// @Accept json
// @Produce json
// @Param request body StageRequest true "Session"
// @Success 200 {object} models.ResponseResult
// @Failure 400 {object} map[string]any
// @Router /api/respond [post]
func (h *Handler) Respond(c *gin.Context) {
	sess, ok := h.loadStageSession(c)
	if !ok {
		return
	}
	result, err := h.Pipeline.Synthesize(c.Request.Context(), sess)
	if err != nil {
		h.writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type ReevaluateRequest struct {
	TicketID       string `json:"ticket_id" validate:"required"`
	OrganizationID string `json:"organization_id" validate:"required"`
	MessageID      string `json:"message_id" validate:"required"`
}

// @Summary Re-evaluate a conversation
// @Description Decides whether to close the ticket, assign a human, or continue
// @Tags reevaluation
// @Accept json
// @Produce json
// @Param request body ReevaluateRequest true "Trigger"
// @Success 200 {object} models.ReevaluationResult
// @Failure 400 {object} map[string]any
// @Router /api/reevaluate [post]
func (h *Handler) Reevaluate(c *gin.Context) {
	var req ReevaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	result, err := h.Pipeline.Reevaluate(c.Request.Context(), req.TicketID, req.OrganizationID, req.MessageID)
	if err != nil {
		h.writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Get a session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.AnalysisSession
// @Failure 404 {object} map[string]any
// @Router /api/sessions/{id} [get]
func (h *Handler) SessionDetails(c *gin.Context) {
	sess, err := h.Pipeline.Sessions.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Session not found", nil)
		return
	}
	if org := c.Query("organization_id"); org != "" && org != sess.OrganizationID {
		writeError(c, http.StatusForbidden, "FORBIDDEN", "Session belongs to a different organization", nil)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) loadStageSession(c *gin.Context) (*models.AnalysisSession, bool) {
	var req StageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return nil, false
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return nil, false
	}

	loaded, err := h.Pipeline.Sessions.GetSession(c.Request.Context(), req.SessionID)
	if err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Session not found", nil)
		return nil, false
	}
	if loaded.OrganizationID != req.OrganizationID {
		writeError(c, http.StatusForbidden, "FORBIDDEN", "Session belongs to a different organization", nil)
		return nil, false
	}
	return loaded, true
}

func (h *Handler) writePipelineError(c *gin.Context, err error) {
	var (
		validationErr  pipeline.ValidationError
		authErr        pipeline.AuthorizationError
		consistencyErr pipeline.ConsistencyError
		oracleErr      pipeline.UpstreamOracleError
		retrievalErr   pipeline.RetrievalError
		persistErr     pipeline.PersistenceError
	)
	switch {
	case errors.As(err, &validationErr):
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Msg, nil)
	case errors.As(err, &authErr):
		writeError(c, http.StatusForbidden, "FORBIDDEN", authErr.Msg, nil)
	case errors.As(err, &consistencyErr):
		writeError(c, http.StatusBadRequest, "INVALID_STATE", consistencyErr.Msg, nil)
	case errors.As(err, &oracleErr):
		h.Logger.Error().Err(err).Msg("oracle failure")
		writeError(c, http.StatusInternalServerError, "ORACLE_ERROR", "Generative inference failed", err.Error())
	case errors.As(err, &retrievalErr):
		h.Logger.Error().Err(err).Msg("retrieval failure")
		writeError(c, http.StatusInternalServerError, "RETRIEVAL_ERROR", "Semantic search failed", err.Error())
	case errors.As(err, &persistErr):
		h.Logger.Error().Err(err).Msg("persistence failure")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Persistence failed", err.Error())
	default:
		h.Logger.Error().Err(err).Msg("pipeline failure")
		writeError(c, http.StatusInternalServerError, "PIPELINE_ERROR", "Pipeline failed", err.Error())
	}
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
