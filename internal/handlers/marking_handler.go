package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brightclass/exam-service/internal/services"
	"github.com/brightclass/exam-service/internal/validator"
)

// MarkingHandler exposes auto-marking and manual overrides over HTTP.
type MarkingHandler struct {
	BaseHandler
	service   services.MarkingService
	validator *validator.Validator
}

func NewMarkingHandler(service services.MarkingService, validator *validator.Validator, logger *slog.Logger) *MarkingHandler {
	return &MarkingHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
		validator:   validator,
	}
}

// AutoMark scores a submitted session question by question.
// POST /api/v1/marking/sessions/:id/auto
func (h *MarkingHandler) AutoMark(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	sessionID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.service.AutoMark(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "session marked", Data: resp})
}

// OverrideAnswerScore replaces one answer's awarded marks with a manual
// score. Overrides survive later auto-marking runs.
// PUT /api/v1/marking/sessions/:id/answers/:question_id
func (h *MarkingHandler) OverrideAnswerScore(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	sessionID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	questionID, ok := h.parseIDParam(c, "question_id")
	if !ok {
		return
	}

	var req services.OverrideAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body", Details: err.Error()})
		return
	}

	resp, err := h.service.OverrideAnswerScore(c.Request.Context(), sessionID, questionID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "answer score overridden", Data: resp})
}

// GetMarkingDetail returns the per-answer marking breakdown of a session.
// GET /api/v1/marking/sessions/:id
func (h *MarkingHandler) GetMarkingDetail(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	sessionID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.service.GetMarkingDetail(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Data: resp})
}
