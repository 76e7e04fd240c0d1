package services

import (
	"context"
	"time"

	"github.com/brightclass/exam-service/internal/models"
)

// ===== REQUEST DTOS =====

type StartSessionRequest struct {
	ExamID uint `json:"exam_id" validate:"required"`
}

type SubmitAnswerRequest struct {
	QuestionID     uint   `json:"question_id" validate:"required"`
	AnswerText     string `json:"answer_text"`
	SelectedOption *int   `json:"selected_option"`
}

type AdjustTimeRequest struct {
	// Extra seconds granted (positive) or revoked (negative)
	DeltaSeconds int    `json:"delta_seconds" validate:"required"`
	Reason       string `json:"reason" validate:"required,max=500"`
}

type AnnouncementRequest struct {
	Message string `json:"message" validate:"required,max=1000"`
}

type OverrideAnswerRequest struct {
	Marks  float64 `json:"marks" validate:"min=0"`
	Reason string  `json:"reason" validate:"required,max=500"`
}

type PostScoreRequest struct {
	// Continuous-assessment component recorded outside the exam itself
	CAScore float64 `json:"ca_score" validate:"min=0"`
}

// ===== RESPONSE DTOS =====

type SessionResponse struct {
	ID            uint                    `json:"id"`
	ExamID        uint                    `json:"exam_id"`
	StudentID     string                  `json:"student_id"`
	Status        models.SubmissionStatus `json:"status"`
	StartedAt     *time.Time              `json:"started_at,omitempty"`
	EndsAt        *time.Time              `json:"ends_at,omitempty"`
	TimeRemaining int                     `json:"time_remaining"`
	PauseCount    int                     `json:"pause_count"`
	MaxPauses     int                     `json:"max_pauses"`
}

// SessionDetailResponse adds the question set, with answer keys stripped.
type SessionDetailResponse struct {
	SessionResponse
	ExamTitle string             `json:"exam_title"`
	Questions []QuestionResponse `json:"questions"`
	Answers   []AnswerResponse   `json:"answers"`
}

type QuestionResponse struct {
	ID      uint                `json:"id"`
	Type    models.QuestionType `json:"type"`
	Text    string              `json:"text"`
	Marks   float64             `json:"marks"`
	Order   int                 `json:"order"`
	Options []string            `json:"options,omitempty"`
}

type AnswerResponse struct {
	QuestionID     uint    `json:"question_id"`
	AnswerText     string  `json:"answer_text,omitempty"`
	SelectedOption *int    `json:"selected_option,omitempty"`
	AwardedMarks   float64 `json:"awarded_marks"`
	IsOverridden   bool    `json:"is_overridden"`
}

type TimeRemainingResponse struct {
	SessionID     uint                    `json:"session_id"`
	Status        models.SubmissionStatus `json:"status"`
	TimeRemaining int                     `json:"time_remaining"`
	EndsAt        *time.Time              `json:"ends_at,omitempty"`
}

type EndExamResponse struct {
	ExamID         uint   `json:"exam_id"`
	ForcedSessions []uint `json:"forced_sessions"`
}

type MarkingResponse struct {
	SubmissionID uint                    `json:"submission_id"`
	Status       models.SubmissionStatus `json:"status"`
	TotalScore   float64                 `json:"total_score"`
	MarkedAt     *time.Time              `json:"marked_at,omitempty"`
	MarkedBy     models.MarkedBy         `json:"marked_by,omitempty"`
	Answers      []AnswerResponse        `json:"answers,omitempty"`
}

type PostScoreResponse struct {
	// Created is true when this publish created the term result row
	Created   bool    `json:"created"`
	StudentID string  `json:"student_id"`
	SubjectID string  `json:"subject_id"`
	Term      int     `json:"term"`
	Session   string  `json:"session"`
	CAScore   float64 `json:"ca_score"`
	ExamScore float64 `json:"exam_score"`
	Total     float64 `json:"total"`
	Average   float64 `json:"average"`
}

type BulkPublishResponse struct {
	ExamID    uint               `json:"exam_id"`
	Published int                `json:"published"`
	Failed    int                `json:"failed"`
	Errors    []BulkPublishError `json:"errors,omitempty"`
}

type BulkPublishError struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

type ResultResponse struct {
	StudentID string              `json:"student_id"`
	Term      int                 `json:"term"`
	Session   string              `json:"session"`
	Average   float64             `json:"average"`
	Position  int                 `json:"position"`
	Items     []ScoreItemResponse `json:"items"`
}

type ScoreItemResponse struct {
	SubjectID string  `json:"subject_id"`
	CAScore   float64 `json:"ca_score"`
	ExamScore float64 `json:"exam_score"`
	Total     float64 `json:"total"`
}

// ===== SERVICE INTERFACES =====

// SessionService drives the exam session state machine.
type SessionService interface {
	// Start creates (or returns) the student's session for an exam in the
	// ready state. Starting twice is idempotent.
	Start(ctx context.Context, req *StartSessionRequest, studentID string) (*SessionResponse, error)

	// Begin moves a ready session into in_progress and starts the clock.
	Begin(ctx context.Context, sessionID uint, studentID string) (*SessionDetailResponse, error)

	Pause(ctx context.Context, sessionID uint, userID string) (*SessionResponse, error)
	Resume(ctx context.Context, sessionID uint, userID string) (*SessionResponse, error)

	SubmitAnswer(ctx context.Context, sessionID uint, req *SubmitAnswerRequest, studentID string) error

	// Finalize submits the session. Exactly one concurrent caller wins;
	// the rest see ErrSessionNotFound.
	Finalize(ctx context.Context, sessionID uint, userID string) (*SessionResponse, error)

	GetSession(ctx context.Context, sessionID uint, userID string) (*SessionDetailResponse, error)
	GetTimeRemaining(ctx context.Context, sessionID uint, userID string) (*TimeRemainingResponse, error)

	// AdjustTime grants or revokes seconds on a live session (staff only).
	AdjustTime(ctx context.Context, sessionID uint, req *AdjustTimeRequest, userID string) (*SessionResponse, error)

	// EndExam force-submits every open session of an exam (staff only).
	EndExam(ctx context.Context, examID uint, userID string) (*EndExamResponse, error)

	SendAnnouncement(ctx context.Context, examID uint, req *AnnouncementRequest, userID string) error
}

// MarkingService scores submitted sessions.
type MarkingService interface {
	// AutoMark scores every answer by question type and moves the session
	// to marked. Overridden answers keep their awarded marks.
	AutoMark(ctx context.Context, sessionID uint, userID string) (*MarkingResponse, error)

	OverrideAnswerScore(ctx context.Context, sessionID, questionID uint, req *OverrideAnswerRequest, userID string) (*MarkingResponse, error)

	GetMarkingDetail(ctx context.Context, sessionID uint, userID string) (*MarkingResponse, error)
}

// ResultService consolidates marked scores into term results.
type ResultService interface {
	// PostScoreToResult writes one subject score onto the student's term
	// result, creating the result row on first publish.
	PostScoreToResult(ctx context.Context, sessionID uint, req *PostScoreRequest, userID string) (*PostScoreResponse, error)

	// BulkPublish posts every marked, unpublished session of an exam,
	// collecting per-student failures instead of aborting.
	BulkPublish(ctx context.Context, examID uint, req *PostScoreRequest, userID string) (*BulkPublishResponse, error)

	// RepublishScore re-posts one already published session, for
	// corrections after an override.
	RepublishScore(ctx context.Context, sessionID uint, req *PostScoreRequest, userID string) (*PostScoreResponse, error)

	GetStudentResult(ctx context.Context, studentID string, term int, session string, userID string) (*ResultResponse, error)

	// ExportScores renders an exam's marked scores as an xlsx workbook.
	ExportScores(ctx context.Context, examID uint, userID string) ([]byte, error)
}
