package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/brightclass/exam-service/internal/services"
	"github.com/brightclass/exam-service/internal/validator"
)

// ResultHandler exposes result consolidation and publication over HTTP.
type ResultHandler struct {
	BaseHandler
	service   services.ResultService
	validator *validator.Validator
}

func NewResultHandler(service services.ResultService, validator *validator.Validator, logger *slog.Logger) *ResultHandler {
	return &ResultHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
		validator:   validator,
	}
}

// PostScore publishes one marked session onto the student's term result.
// Returns 201 when the term result row was created by this publish.
// POST /api/v1/results/sessions/:id/publish
func (h *ResultHandler) PostScore(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	sessionID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.PostScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body", Details: err.Error()})
		return
	}

	resp, err := h.service.PostScoreToResult(c.Request.Context(), sessionID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	c.JSON(status, SuccessResponse{Message: "score published", Data: resp})
}

// RepublishScore re-posts an already published session after corrections.
// POST /api/v1/results/sessions/:id/republish
func (h *ResultHandler) RepublishScore(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	sessionID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.PostScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body", Details: err.Error()})
		return
	}

	resp, err := h.service.RepublishScore(c.Request.Context(), sessionID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "score republished", Data: resp})
}

// BulkPublish posts every marked, unpublished session of an exam. Partial
// failure returns 207 with the per-student error list.
// POST /api/v1/results/exams/:id/publish
func (h *ResultHandler) BulkPublish(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	examID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.PostScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body", Details: err.Error()})
		return
	}

	resp, err := h.service.BulkPublish(c.Request.Context(), examID, &req, userID)
	if err != nil {
		// An empty cohort is a normal outcome for an idempotent publish,
		// not a client error.
		if errors.Is(err, services.ErrNothingToPublish) {
			c.JSON(http.StatusOK, SuccessResponse{
				Message: "no marked sessions awaiting publication",
				Data:    services.BulkPublishResponse{ExamID: examID},
			})
			return
		}
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusOK
	if resp.Failed > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, SuccessResponse{Message: "bulk publish finished", Data: resp})
}

// GetStudentResult returns one student's consolidated term result.
// GET /api/v1/results/students/:student_id?term=1&session=2025/2026
func (h *ResultHandler) GetStudentResult(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	studentID := c.Param("student_id")
	if studentID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid student_id parameter"})
		return
	}

	term, err := strconv.Atoi(c.Query("term"))
	if err != nil || term < 1 || term > 3 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "term must be 1, 2 or 3"})
		return
	}

	session := c.Query("session")
	if session == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "session query parameter required"})
		return
	}

	resp, err := h.service.GetStudentResult(c.Request.Context(), studentID, term, session, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Data: resp})
}

// GetMyResult is the student-facing shortcut for the caller's own result.
// GET /api/v1/results/me?term=1&session=2025/2026
func (h *ResultHandler) GetMyResult(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	term, err := strconv.Atoi(c.Query("term"))
	if err != nil || term < 1 || term > 3 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "term must be 1, 2 or 3"})
		return
	}

	session := c.Query("session")
	if session == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "session query parameter required"})
		return
	}

	resp, err := h.service.GetStudentResult(c.Request.Context(), userID, term, session, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Data: resp})
}

// ExportScores streams an exam's marked scores as an xlsx workbook.
// GET /api/v1/results/exams/:id/export
func (h *ResultHandler) ExportScores(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	examID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	data, err := h.service.ExportScores(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("exam-%d-scores.xlsx", examID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
