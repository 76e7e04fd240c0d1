package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brightclass/exam-service/internal/events"
	"github.com/brightclass/exam-service/internal/models"
	"github.com/brightclass/exam-service/internal/repositories"
)

// ===== SESSION LOOKUP HELPERS =====

func (s *sessionService) getSession(ctx context.Context, sessionID uint) (*models.Submission, error) {
	submission, err := s.repo.Submission().GetByID(ctx, nil, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return submission, nil
}

// getOwnedSession loads a session and verifies the caller is the student
// who owns it.
func (s *sessionService) getOwnedSession(ctx context.Context, sessionID uint, studentID, action string) (*models.Submission, error) {
	submission, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if submission.StudentID != studentID {
		return nil, NewPermissionError(studentID, sessionID, "session", action, "not owned by student")
	}

	return submission, nil
}

// getAccessibleSession loads a session for either its owner or staff of the
// same school.
func (s *sessionService) getAccessibleSession(ctx context.Context, sessionID uint, userID, action string) (*models.Submission, error) {
	submission, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if submission.StudentID == userID {
		return submission, nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.IsStaff() || user.SchoolID != submission.Exam.SchoolID {
		return nil, NewPermissionError(userID, sessionID, "session", action, "not owner or school staff")
	}

	return submission, nil
}

func (s *sessionService) requireStaff(ctx context.Context, userID string, resourceID uint, resource, action string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if !user.IsStaff() {
		return NewPermissionError(userID, resourceID, resource, action, "staff role required")
	}

	return nil
}

// ===== RESPONSE BUILDERS =====

func (s *sessionService) toSessionResponse(submission *models.Submission, exam *models.Exam) *SessionResponse {
	resp := &SessionResponse{
		ID:         submission.ID,
		ExamID:     submission.ExamID,
		StudentID:  submission.StudentID,
		Status:     submission.Status,
		StartedAt:  submission.StartedAt,
		EndsAt:     submission.EndsAt,
		PauseCount: submission.PauseCount,
	}

	if exam != nil {
		resp.MaxPauses = exam.MaxPauses
	}

	switch submission.Status {
	case models.SubmissionInProgress:
		resp.TimeRemaining = submission.RemainingSeconds(time.Now())
	case models.SubmissionPaused:
		resp.TimeRemaining = submission.TimeRemainingOnPause
	}

	return resp
}

func (s *sessionService) buildSessionDetail(ctx context.Context, sessionID uint) (*SessionDetailResponse, error) {
	submission, err := s.repo.Submission().GetByIDWithAnswers(ctx, nil, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session detail: %w", err)
	}

	questions, err := s.repo.Question().ListByExam(ctx, nil, submission.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}

	detail := &SessionDetailResponse{
		SessionResponse: *s.toSessionResponse(submission, &submission.Exam),
		ExamTitle:       submission.Exam.Title,
		Questions:       make([]QuestionResponse, 0, len(questions)),
		Answers:         make([]AnswerResponse, 0, len(submission.Answers)),
	}

	for _, q := range questions {
		detail.Questions = append(detail.Questions, sanitizeQuestion(&q))
	}

	for _, a := range submission.Answers {
		detail.Answers = append(detail.Answers, AnswerResponse{
			QuestionID:     a.QuestionID,
			AnswerText:     a.AnswerText,
			SelectedOption: a.SelectedOption,
			AwardedMarks:   a.AwardedMarks,
			IsOverridden:   a.IsOverridden,
		})
	}

	return detail, nil
}

// sanitizeQuestion strips everything a student must not see. Objective
// options are kept, the correct index and all grading keys are not.
func sanitizeQuestion(q *models.Question) QuestionResponse {
	resp := QuestionResponse{
		ID:    q.ID,
		Type:  q.Type,
		Text:  q.Text,
		Marks: q.Marks,
		Order: q.Order,
	}

	if q.Type == models.Objective && len(q.AnswerKey) > 0 {
		var key models.ObjectiveKey
		if err := json.Unmarshal(q.AnswerKey, &key); err == nil {
			resp.Options = key.Options
		}
	}

	return resp
}

// ===== EVENTS =====

func (s *sessionService) publishSessionEvent(ctx context.Context, eventType string, submission *models.Submission) {
	remaining := 0
	switch submission.Status {
	case models.SubmissionInProgress:
		remaining = submission.RemainingSeconds(time.Now())
	case models.SubmissionPaused:
		remaining = submission.TimeRemainingOnPause
	}

	err := s.eventPublisher.Publish(ctx, eventType, events.SessionEvent{
		SubmissionID:  submission.ID,
		ExamID:        submission.ExamID,
		StudentID:     submission.StudentID,
		Status:        string(submission.Status),
		TimeRemaining: remaining,
	})
	if err != nil {
		s.logger.Error("Failed to publish session event",
			"event_type", eventType,
			"session_id", submission.ID,
			"error", err)
	}
}
