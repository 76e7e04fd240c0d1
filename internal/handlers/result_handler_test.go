package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/brightclass/exam-service/internal/services"
	"github.com/brightclass/exam-service/internal/validator"
)

func testDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubResultService returns canned responses so handler tests can focus on
// status code mapping.
type stubResultService struct {
	bulkResp *services.BulkPublishResponse
	bulkErr  error
}

func (s *stubResultService) PostScoreToResult(ctx context.Context, sessionID uint, req *services.PostScoreRequest, userID string) (*services.PostScoreResponse, error) {
	return nil, nil
}

func (s *stubResultService) BulkPublish(ctx context.Context, examID uint, req *services.PostScoreRequest, userID string) (*services.BulkPublishResponse, error) {
	return s.bulkResp, s.bulkErr
}

func (s *stubResultService) RepublishScore(ctx context.Context, sessionID uint, req *services.PostScoreRequest, userID string) (*services.PostScoreResponse, error) {
	return nil, nil
}

func (s *stubResultService) GetStudentResult(ctx context.Context, studentID string, term int, session string, userID string) (*services.ResultResponse, error) {
	return nil, nil
}

func (s *stubResultService) ExportScores(ctx context.Context, examID uint, userID string) ([]byte, error) {
	return nil, nil
}

func newBulkPublishRouter(svc services.ResultService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewResultHandler(svc, validator.New(), testDiscardLogger())

	r := gin.New()
	r.POST("/results/exams/:id/publish", func(c *gin.Context) {
		c.Set("user_id", "teacher-1")
		handler.BulkPublish(c)
	})
	return r
}

func TestResultHandler_BulkPublish(t *testing.T) {
	t.Run("empty cohort reports success", func(t *testing.T) {
		svc := &stubResultService{bulkErr: services.ErrNothingToPublish}
		router := newBulkPublishRouter(svc)

		req := httptest.NewRequest(http.MethodPost, "/results/exams/1/publish", strings.NewReader(`{"ca_score": 20}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200; body = %s", w.Code, w.Body.String())
		}

		var body SuccessResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if body.Message == "" {
			t.Error("expected an explanatory message for the empty cohort")
		}
	})

	t.Run("partial failure reports multi-status", func(t *testing.T) {
		svc := &stubResultService{bulkResp: &services.BulkPublishResponse{
			ExamID:    1,
			Published: 3,
			Failed:    1,
			Errors:    []services.BulkPublishError{{StudentID: "student-2", Reason: "connection reset"}},
		}}
		router := newBulkPublishRouter(svc)

		req := httptest.NewRequest(http.MethodPost, "/results/exams/1/publish", strings.NewReader(`{"ca_score": 20}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusMultiStatus {
			t.Fatalf("status = %d, want 207; body = %s", w.Code, w.Body.String())
		}
	})
}
