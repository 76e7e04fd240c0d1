package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/brightclass/exam-service/internal/events"
	"github.com/brightclass/exam-service/internal/models"
	"github.com/brightclass/exam-service/internal/repositories"
	"github.com/brightclass/exam-service/internal/validator"
)

type resultService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewResultService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) ResultService {
	return &resultService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
	}
}

// ===== SINGLE PUBLISH =====

func (s *resultService) PostScoreToResult(ctx context.Context, sessionID uint, req *PostScoreRequest, userID string) (*PostScoreResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	user, err := s.requireStaff(ctx, userID, sessionID, "result", "post")
	if err != nil {
		return nil, err
	}

	submission, exam, err := s.getMarkedSubmission(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.checkPublishScope(user, exam, sessionID, "post"); err != nil {
		return nil, err
	}

	if submission.IsPublished {
		return nil, NewConflictError("result", "score already published for this session")
	}

	resp, err := s.postScore(ctx, submission, exam, req.CAScore, nil)
	if err != nil {
		return nil, err
	}

	s.publishScoreEvent(ctx, submission, exam, resp)

	s.logger.Info("Score posted to result",
		"session_id", sessionID,
		"student_id", submission.StudentID,
		"subject_id", exam.SubjectID,
		"total", resp.Total,
		"created", resp.Created)

	return resp, nil
}

func (s *resultService) RepublishScore(ctx context.Context, sessionID uint, req *PostScoreRequest, userID string) (*PostScoreResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	user, err := s.requireStaff(ctx, userID, sessionID, "result", "republish")
	if err != nil {
		return nil, err
	}

	submission, exam, err := s.getMarkedSubmission(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.checkPublishScope(user, exam, sessionID, "republish"); err != nil {
		return nil, err
	}

	// Republishing rewrites a score students may already have seen, so it
	// takes more than an ordinary staff role.
	if !user.IsAdmin() && exam.CreatedBy != user.ID {
		return nil, NewPermissionError(userID, sessionID, "result", "republish", "admin or exam creator required")
	}

	if !submission.IsPublished {
		return nil, NewConflictError("result", "session has never been published")
	}

	resp, err := s.postScore(ctx, submission, exam, req.CAScore, nil)
	if err != nil {
		return nil, err
	}

	s.publishScoreEvent(ctx, submission, exam, resp)

	s.logger.Info("Score republished",
		"session_id", sessionID,
		"student_id", submission.StudentID,
		"total", resp.Total)

	return resp, nil
}

// ===== BULK PUBLISH =====

func (s *resultService) BulkPublish(ctx context.Context, examID uint, req *PostScoreRequest, userID string) (*BulkPublishResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	user, err := s.requireStaff(ctx, userID, examID, "result", "bulk_publish")
	if err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if err := s.checkPublishScope(user, exam, examID, "bulk_publish"); err != nil {
		return nil, err
	}

	unpublished := false
	submissions, err := s.listMarkedSessions(ctx, examID, &unpublished)
	if err != nil {
		return nil, err
	}
	if len(submissions) == 0 {
		return nil, ErrNothingToPublish
	}

	// One batched lookup for the whole cohort's existing result rows
	// instead of a per-student existence query.
	studentIDs := make([]string, 0, len(submissions))
	for i := range submissions {
		studentIDs = append(studentIDs, submissions[i].StudentID)
	}
	existingRows, err := s.repo.Result().GetByStudents(ctx, nil, studentIDs, exam.Term, exam.Session)
	if err != nil {
		return nil, fmt.Errorf("failed to prefetch results: %w", err)
	}
	existing := make(map[string]*models.Result, len(existingRows))
	for i := range existingRows {
		existing[existingRows[i].StudentID] = &existingRows[i]
	}

	resp := &BulkPublishResponse{ExamID: examID}
	publishedStudents := make([]string, 0, len(submissions))

	// Per-student failures are collected, one bad row must not sink the
	// rest of the cohort.
	for i := range submissions {
		submission := &submissions[i]

		if _, perr := s.postScore(ctx, submission, exam, req.CAScore, existing[submission.StudentID]); perr != nil {
			resp.Failed++
			resp.Errors = append(resp.Errors, BulkPublishError{
				StudentID: submission.StudentID,
				Reason:    perr.Error(),
			})
			s.logger.Error("Bulk publish failed for student",
				"exam_id", examID,
				"student_id", submission.StudentID,
				"error", perr)
			continue
		}

		resp.Published++
		publishedStudents = append(publishedStudents, submission.StudentID)
	}

	if len(publishedStudents) > 0 {
		if err := s.eventPublisher.Publish(ctx, events.EventResultPublished, events.ResultPublishedEvent{
			ExamID:     examID,
			StudentIDs: publishedStudents,
			Term:       exam.Term,
			Session:    exam.Session,
		}); err != nil {
			s.logger.Error("Failed to publish bulk result event", "exam_id", examID, "error", err)
		}
	}

	s.logger.Info("Bulk publish finished",
		"exam_id", examID,
		"published", resp.Published,
		"failed", resp.Failed)

	return resp, nil
}

// ===== READ =====

func (s *resultService) GetStudentResult(ctx context.Context, studentID string, term int, session string, userID string) (*ResultResponse, error) {
	// Students may only read their own result; staff may read any in
	// their school.
	var staff *models.User
	if userID != studentID {
		var err error
		staff, err = s.requireStaff(ctx, userID, 0, "result", "read")
		if err != nil {
			return nil, err
		}
	}

	result, err := s.repo.Result().GetByStudent(ctx, nil, studentID, term, session)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	if staff != nil && staff.Role != models.RoleGlobalAdmin && staff.SchoolID != result.SchoolID {
		return nil, NewPermissionError(userID, 0, "result", "read", "different school")
	}

	resp := &ResultResponse{
		StudentID: result.StudentID,
		Term:      result.Term,
		Session:   result.Session,
		Average:   result.Average,
		Position:  result.Position,
		Items:     make([]ScoreItemResponse, 0, len(result.Items)),
	}

	for _, item := range result.Items {
		resp.Items = append(resp.Items, ScoreItemResponse{
			SubjectID: item.SubjectID,
			CAScore:   item.CAScore,
			ExamScore: item.ExamScore,
			Total:     item.Total,
		})
	}

	return resp, nil
}
