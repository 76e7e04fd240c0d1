package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brightclass/exam-service/internal/models"
	"github.com/brightclass/exam-service/internal/repositories"
	"github.com/brightclass/exam-service/internal/repositories/casdoor"
	"github.com/brightclass/exam-service/internal/services"
	"github.com/brightclass/exam-service/internal/validator"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
	markingHandler *MarkingHandler
	resultHandler  *ResultHandler
	authMiddleware *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger *slog.Logger,
	casdoorConfig casdoor.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(serviceManager.Session(), validator, logger),
		markingHandler: NewMarkingHandler(serviceManager.Marking(), validator, logger),
		resultHandler:  NewResultHandler(serviceManager.Result(), validator, logger),
		authMiddleware: NewCasdoorAuthMiddleware(casdoorConfig, userRepo),
	}
}

// SetupRoutes wires every API route onto the router.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	staffOnly := hm.authMiddleware.RequireRoleMiddleware(
		models.RoleTeacher, models.RoleProctor, models.RoleSchoolAdmin)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Session lifecycle - students drive their own sessions
		sessions := v1.Group("/sessions")
		{
			sessions.POST("/start", hm.sessionHandler.StartSession)
			sessions.POST("/:id/begin", hm.sessionHandler.BeginSession)
			sessions.POST("/:id/pause", hm.sessionHandler.PauseSession)
			sessions.POST("/:id/resume", hm.sessionHandler.ResumeSession)
			sessions.POST("/:id/answers", hm.sessionHandler.SubmitAnswer)
			sessions.POST("/:id/finalize", hm.sessionHandler.FinalizeSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.GET("/:id/time-remaining", hm.sessionHandler.GetTimeRemaining)

			// Proctor controls
			sessions.POST("/:id/adjust-time", staffOnly, hm.sessionHandler.AdjustTime)
		}

		// Exam-wide proctor operations
		exams := v1.Group("/exams")
		{
			exams.POST("/:id/end", staffOnly, hm.sessionHandler.EndExam)
			exams.POST("/:id/announcements", staffOnly, hm.sessionHandler.SendAnnouncement)
		}

		// Marking - staff only
		marking := v1.Group("/marking")
		marking.Use(staffOnly)
		{
			marking.POST("/sessions/:id/auto", hm.markingHandler.AutoMark)
			marking.PUT("/sessions/:id/answers/:question_id", hm.markingHandler.OverrideAnswerScore)
			marking.GET("/sessions/:id", hm.markingHandler.GetMarkingDetail)
		}

		// Result consolidation
		results := v1.Group("/results")
		{
			results.POST("/sessions/:id/publish", staffOnly, hm.resultHandler.PostScore)
			results.POST("/sessions/:id/republish", staffOnly, hm.resultHandler.RepublishScore)
			results.POST("/exams/:id/publish", staffOnly, hm.resultHandler.BulkPublish)
			results.GET("/exams/:id/export", staffOnly, hm.resultHandler.ExportScores)
			results.GET("/students/:student_id", staffOnly, hm.resultHandler.GetStudentResult)

			// Students read their own result
			results.GET("/me", hm.resultHandler.GetMyResult)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "exam-service",
		})
	})
}
