package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brightclass/exam-service/internal/services"
	"github.com/brightclass/exam-service/internal/validator"
)

// SessionHandler exposes the exam session lifecycle over HTTP.
type SessionHandler struct {
	BaseHandler
	service   services.SessionService
	validator *validator.Validator
}

func NewSessionHandler(service services.SessionService, validator *validator.Validator, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
		validator:   validator,
	}
}

// StartSession creates (or returns) the caller's session for an exam.
// POST /api/v1/sessions/start
func (h *SessionHandler) StartSession(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req services.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body", Details: err.Error()})
		return
	}

	resp, err := h.service.Start(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{Message: "session ready", Data: resp})
}

// BeginSession moves a ready session into in_progress and starts the clock.
// POST /api/v1/sessions/:id/begin
func (h *SessionHandler) BeginSession(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	sessionID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.service.Begin(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "session started", Data: resp})
}

// PauseSession suspends the clock on an in-progress session.
// POST /api/v1/sessions/:id/pause
func (h *SessionHandler) PauseSession(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	sessionID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.service.Pause(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "session paused", Data: resp})
}

// ResumeSession restarts the clock with the banked remaining time.
// POST /api/v1/sessions/:id/resume
func (h *SessionHandler) ResumeSession(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	sessionID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.service.Resume(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "session resumed", Data: resp})
}

// SubmitAnswer records or replaces an answer on a live session.
// POST /api/v1/sessions/:id/answers
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	sessionID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body", Details: err.Error()})
		return
	}

	if err := h.service.SubmitAnswer(c.Request.Context(), sessionID, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "answer saved"})
}

// FinalizeSession submits the session for marking.
// POST /api/v1/sessions/:id/finalize
func (h *SessionHandler) FinalizeSession(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	sessionID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.service.Finalize(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "session submitted", Data: resp})
}

// GetSession returns the session with its question set and saved answers.
// GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	sessionID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.service.GetSession(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Data: resp})
}

// GetTimeRemaining reports the live countdown for a session.
// GET /api/v1/sessions/:id/time-remaining
func (h *SessionHandler) GetTimeRemaining(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	sessionID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.service.GetTimeRemaining(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Data: resp})
}

// AdjustTime grants or revokes seconds on a live session. Staff only.
// POST /api/v1/sessions/:id/adjust-time
func (h *SessionHandler) AdjustTime(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	sessionID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.AdjustTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body", Details: err.Error()})
		return
	}

	resp, err := h.service.AdjustTime(c.Request.Context(), sessionID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "time adjusted", Data: resp})
}

// EndExam force-submits every open session of an exam. Staff only.
// POST /api/v1/exams/:id/end
func (h *SessionHandler) EndExam(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	examID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.service.EndExam(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "exam ended", Data: resp})
}

// SendAnnouncement broadcasts a proctor message to an exam's sessions.
// POST /api/v1/exams/:id/announcements
func (h *SessionHandler) SendAnnouncement(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	examID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body", Details: err.Error()})
		return
	}

	if err := h.service.SendAnnouncement(c.Request.Context(), examID, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "announcement sent"})
}
