package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/brightclass/exam-service/internal/events"
	"github.com/brightclass/exam-service/internal/models"
	"github.com/brightclass/exam-service/internal/repositories"
	"github.com/brightclass/exam-service/internal/validator"
)

// finalizeGraceWindow is how far past the deadline a finalize request is
// still treated as on time. Clients submit right at zero and the request
// spends real time in flight.
const finalizeGraceWindow = 30 * time.Second

type sessionService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewSessionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) SessionService {
	return &sessionService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
	}
}

// ===== CORE SESSION OPERATIONS =====

func (s *sessionService) Start(ctx context.Context, req *StartSessionRequest, studentID string) (*SessionResponse, error) {
	s.logger.Info("Starting exam session",
		"exam_id", req.ExamID,
		"student_id", studentID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, req.ExamID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	student, err := s.repo.User().GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student.SchoolID != exam.SchoolID {
		return nil, NewPermissionError(studentID, req.ExamID, "exam", "start", "different school")
	}
	// The exam is scheduled for one classroom; students elsewhere in the
	// school must not see it.
	if exam.ClassroomID != "" && (student.ClassroomID == nil || *student.ClassroomID != exam.ClassroomID) {
		return nil, NewPermissionError(studentID, req.ExamID, "exam", "start", "different classroom")
	}

	// Starting twice returns the existing session unchanged
	existing, err := s.repo.Submission().GetByExamAndStudent(ctx, nil, req.ExamID, studentID)
	if err == nil {
		return s.toSessionResponse(existing, exam), nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check existing session: %w", err)
	}

	submission := &models.Submission{
		ExamID:    req.ExamID,
		StudentID: studentID,
		Status:    models.SubmissionReady,
	}

	if err := s.repo.Submission().Create(ctx, nil, submission); err != nil {
		// A concurrent start won the insert; the unique index on
		// (exam_id, student_id) is the real arbiter here.
		if repositories.IsConflictError(err) {
			existing, ferr := s.repo.Submission().GetByExamAndStudent(ctx, nil, req.ExamID, studentID)
			if ferr != nil {
				return nil, fmt.Errorf("failed to fetch session after conflict: %w", ferr)
			}
			return s.toSessionResponse(existing, exam), nil
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("Exam session created",
		"session_id", submission.ID,
		"exam_id", req.ExamID,
		"student_id", studentID)

	return s.toSessionResponse(submission, exam), nil
}

func (s *sessionService) Begin(ctx context.Context, sessionID uint, studentID string) (*SessionDetailResponse, error) {
	submission, err := s.getOwnedSession(ctx, sessionID, studentID, "begin")
	if err != nil {
		return nil, err
	}

	if verr := s.validator.ValidateStatusTransition(submission.Status, models.SubmissionInProgress); verr != nil {
		if submission.Status == models.SubmissionPaused {
			return nil, ErrSessionNotActive
		}
		return nil, NewConflictError("session", fmt.Sprintf("cannot begin from %s", submission.Status))
	}

	now := time.Now()
	if verr := s.validator.ValidateSessionBegin(&submission.Exam, now); verr != nil {
		if submission.Exam.HasEnded(now) {
			return nil, ErrExamWindowClosed
		}
		return nil, ErrExamWindowNotOpen
	}

	endsAt := now.Add(time.Duration(submission.Exam.Duration) * time.Minute)
	submission.Status = models.SubmissionInProgress
	submission.StartedAt = &now
	submission.EndsAt = &endsAt

	if err := s.repo.Submission().Update(ctx, nil, submission); err != nil {
		return nil, fmt.Errorf("failed to begin session: %w", err)
	}

	s.publishSessionEvent(ctx, events.EventSessionStarted, submission)

	s.logger.Info("Exam session begun",
		"session_id", sessionID,
		"ends_at", endsAt)

	return s.buildSessionDetail(ctx, submission.ID)
}

func (s *sessionService) Pause(ctx context.Context, sessionID uint, userID string) (*SessionResponse, error) {
	submission, err := s.getAccessibleSession(ctx, sessionID, userID, "pause")
	if err != nil {
		return nil, err
	}

	if submission.Status != models.SubmissionInProgress {
		return nil, ErrSessionNotActive
	}

	if verr := s.validator.ValidatePause(submission, submission.Exam.MaxPauses); verr != nil {
		return nil, ErrMaxPausesReached
	}

	// Bank what is left on the clock; the session keeps exactly this much
	// when it resumes.
	now := time.Now()
	submission.TimeRemainingOnPause = submission.RemainingSeconds(now)
	submission.Status = models.SubmissionPaused
	submission.PauseCount++

	if err := s.repo.Submission().Update(ctx, nil, submission); err != nil {
		return nil, fmt.Errorf("failed to pause session: %w", err)
	}

	s.publishSessionEvent(ctx, events.EventSessionPaused, submission)

	s.logger.Info("Exam session paused",
		"session_id", sessionID,
		"banked_seconds", submission.TimeRemainingOnPause,
		"pause_count", submission.PauseCount)

	return s.toSessionResponse(submission, &submission.Exam), nil
}

func (s *sessionService) Resume(ctx context.Context, sessionID uint, userID string) (*SessionResponse, error) {
	submission, err := s.getAccessibleSession(ctx, sessionID, userID, "resume")
	if err != nil {
		return nil, err
	}

	if submission.Status != models.SubmissionPaused {
		return nil, ErrSessionNotPaused
	}

	// Restore the banked remainder from this instant
	now := time.Now()
	endsAt := now.Add(time.Duration(submission.TimeRemainingOnPause) * time.Second)
	submission.EndsAt = &endsAt
	submission.TimeRemainingOnPause = 0
	submission.Status = models.SubmissionInProgress

	if err := s.repo.Submission().Update(ctx, nil, submission); err != nil {
		return nil, fmt.Errorf("failed to resume session: %w", err)
	}

	s.publishSessionEvent(ctx, events.EventSessionResumed, submission)

	s.logger.Info("Exam session resumed",
		"session_id", sessionID,
		"ends_at", endsAt)

	return s.toSessionResponse(submission, &submission.Exam), nil
}

func (s *sessionService) SubmitAnswer(ctx context.Context, sessionID uint, req *SubmitAnswerRequest, studentID string) error {
	if err := s.validator.Validate(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	submission, err := s.getOwnedSession(ctx, sessionID, studentID, "answer")
	if err != nil {
		return err
	}

	if submission.Status != models.SubmissionInProgress {
		return ErrSessionNotActive
	}

	if submission.RemainingSeconds(time.Now()) == 0 {
		return ErrSessionExpired
	}

	question, err := s.repo.Question().GetByID(ctx, nil, req.QuestionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to get question: %w", err)
	}
	if question.ExamID != submission.ExamID {
		return NewValidationError("question_id", "does not belong to this exam")
	}

	answer := &models.Answer{
		SubmissionID:   sessionID,
		QuestionID:     req.QuestionID,
		AnswerText:     req.AnswerText,
		SelectedOption: req.SelectedOption,
	}

	// Upsert only touches the answer content, so marks awarded by an
	// earlier override survive a re-save.
	if err := s.repo.Submission().UpsertAnswer(ctx, nil, answer); err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}

	return nil
}

func (s *sessionService) Finalize(ctx context.Context, sessionID uint, userID string) (*SessionResponse, error) {
	submission, err := s.getAccessibleSession(ctx, sessionID, userID, "finalize")
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if submission.EndsAt != nil && now.After(submission.EndsAt.Add(finalizeGraceWindow)) {
		s.logger.Warn("Late finalize accepted past grace window",
			"session_id", sessionID,
			"ends_at", submission.EndsAt,
			"late_by", now.Sub(*submission.EndsAt).String())
	}

	rows, err := s.repo.Submission().FinalizeIfInProgress(ctx, nil, sessionID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize session: %w", err)
	}
	if rows == 0 {
		// Either never existed or another caller already submitted it.
		// Both collapse to not-found so a duplicate cannot distinguish
		// the cases.
		return nil, ErrSessionNotFound
	}

	submission.Status = models.SubmissionSubmitted
	submission.EndsAt = &now
	submission.TimeRemainingOnPause = 0

	s.publishSessionEvent(ctx, events.EventSessionFinalized, submission)

	s.logger.Info("Exam session finalized",
		"session_id", sessionID,
		"student_id", submission.StudentID)

	return s.toSessionResponse(submission, &submission.Exam), nil
}

// ===== READ OPERATIONS =====

func (s *sessionService) GetSession(ctx context.Context, sessionID uint, userID string) (*SessionDetailResponse, error) {
	if _, err := s.getAccessibleSession(ctx, sessionID, userID, "read"); err != nil {
		return nil, err
	}
	return s.buildSessionDetail(ctx, sessionID)
}

func (s *sessionService) GetTimeRemaining(ctx context.Context, sessionID uint, userID string) (*TimeRemainingResponse, error) {
	submission, err := s.getAccessibleSession(ctx, sessionID, userID, "read")
	if err != nil {
		return nil, err
	}

	resp := &TimeRemainingResponse{
		SessionID: sessionID,
		Status:    submission.Status,
		EndsAt:    submission.EndsAt,
	}

	switch submission.Status {
	case models.SubmissionInProgress:
		resp.TimeRemaining = submission.RemainingSeconds(time.Now())
	case models.SubmissionPaused:
		resp.TimeRemaining = submission.TimeRemainingOnPause
	}

	return resp, nil
}

// ===== PROCTOR / ADMIN OPERATIONS =====

func (s *sessionService) AdjustTime(ctx context.Context, sessionID uint, req *AdjustTimeRequest, userID string) (*SessionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if err := s.requireStaff(ctx, userID, sessionID, "session", "adjust_time"); err != nil {
		return nil, err
	}

	submission, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch submission.Status {
	case models.SubmissionInProgress:
		endsAt := submission.EndsAt.Add(time.Duration(req.DeltaSeconds) * time.Second)
		submission.EndsAt = &endsAt
	case models.SubmissionPaused:
		banked := submission.TimeRemainingOnPause + req.DeltaSeconds
		if banked < 0 {
			banked = 0
		}
		submission.TimeRemainingOnPause = banked
	default:
		return nil, ErrSessionNotActive
	}

	if err := s.repo.Submission().Update(ctx, nil, submission); err != nil {
		return nil, fmt.Errorf("failed to adjust time: %w", err)
	}

	s.logger.Info("Session time adjusted",
		"session_id", sessionID,
		"delta_seconds", req.DeltaSeconds,
		"adjusted_by", userID,
		"reason", req.Reason)

	return s.toSessionResponse(submission, &submission.Exam), nil
}

func (s *sessionService) EndExam(ctx context.Context, examID uint, userID string) (*EndExamResponse, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsStaff() {
		return nil, NewPermissionError(userID, examID, "exam", "end", "staff role required")
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if user.Role != models.RoleGlobalAdmin && user.SchoolID != exam.SchoolID {
		return nil, NewPermissionError(userID, examID, "exam", "end", "different school")
	}

	// Teachers and proctors may only close an exam once its scheduled end
	// has passed; admins can cut it short.
	if !user.IsAdmin() && !exam.HasEnded(time.Now()) {
		return nil, NewPermissionError(userID, examID, "exam", "end", "exam has not reached its scheduled end")
	}

	forced, err := s.repo.Submission().ForceSubmitInProgress(ctx, nil, examID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to end exam: %w", err)
	}

	if err := s.eventPublisher.Publish(ctx, events.EventExamEnded, events.ExamEndedEvent{
		ExamID:         examID,
		ForcedSessions: forced,
	}); err != nil {
		s.logger.Error("Failed to publish exam ended event", "exam_id", examID, "error", err)
	}

	s.logger.Info("Exam ended",
		"exam_id", examID,
		"forced_sessions", len(forced),
		"ended_by", userID)

	return &EndExamResponse{
		ExamID:         examID,
		ForcedSessions: forced,
	}, nil
}

func (s *sessionService) SendAnnouncement(ctx context.Context, examID uint, req *AnnouncementRequest, userID string) error {
	if err := s.validator.Validate(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if err := s.requireStaff(ctx, userID, examID, "exam", "announce"); err != nil {
		return err
	}

	if _, err := s.repo.Exam().GetByID(ctx, nil, examID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to get exam: %w", err)
	}

	if err := s.eventPublisher.Publish(ctx, events.EventExamAnnouncement, events.AnnouncementEvent{
		ExamID:  examID,
		Message: req.Message,
		SentBy:  userID,
	}); err != nil {
		return fmt.Errorf("failed to publish announcement: %w", err)
	}

	s.logger.Info("Exam announcement sent", "exam_id", examID, "sent_by", userID)
	return nil
}
