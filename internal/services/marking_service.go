package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/brightclass/exam-service/internal/events"
	"github.com/brightclass/exam-service/internal/models"
	"github.com/brightclass/exam-service/internal/repositories"
	"github.com/brightclass/exam-service/internal/validator"
)

type markingService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewMarkingService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) MarkingService {
	return &markingService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
	}
}

// ===== AUTO MARKING =====

func (s *markingService) AutoMark(ctx context.Context, sessionID uint, userID string) (*MarkingResponse, error) {
	s.logger.Info("Auto-marking session",
		"session_id", sessionID,
		"marked_by", userID)

	if err := s.requireStaff(ctx, userID, sessionID, "session", "mark"); err != nil {
		return nil, err
	}

	submission, err := s.repo.Submission().GetByIDWithAnswers(ctx, nil, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	// Marking only applies to submitted sessions. Anything else, including
	// an already marked session, comes back untouched; an override is the
	// only way to change a marked score.
	if submission.Status != models.SubmissionSubmitted {
		return s.toMarkingResponse(submission), nil
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		total := 0.0
		for i := range submission.Answers {
			answer := &submission.Answers[i]

			// A manual override is authoritative, automark must not
			// touch it
			if answer.IsOverridden {
				total += answer.AwardedMarks
				continue
			}

			marks, merr := MarkAnswer(answer, &answer.Question)
			if merr != nil {
				if !errors.Is(merr, errUnknownQuestionType) {
					return fmt.Errorf("failed to mark question %d: %w", answer.QuestionID, merr)
				}
				// A type without a marker earns zero, it must not sink
				// the rest of the session
				s.logger.Warn("No marker for question type, awarding zero",
					"session_id", submission.ID,
					"question_id", answer.QuestionID,
					"question_type", string(answer.Question.Type))
				marks = 0
			}

			answer.AwardedMarks = marks
			if uerr := txRepo.Submission().UpdateAnswer(ctx, nil, answer); uerr != nil {
				return fmt.Errorf("failed to store marks for question %d: %w", answer.QuestionID, uerr)
			}
			total += marks
		}

		now := time.Now()
		submission.TotalScore = total
		submission.Status = models.SubmissionMarked
		submission.MarkedAt = &now
		submission.MarkedBy = models.MarkedAuto

		return txRepo.Submission().Update(ctx, nil, submission)
	})
	if err != nil {
		return nil, fmt.Errorf("auto-mark transaction failed: %w", err)
	}

	s.publishMarkedEvent(ctx, submission)

	s.logger.Info("Session auto-marked",
		"session_id", sessionID,
		"total_score", submission.TotalScore,
		"answers", len(submission.Answers))

	return s.toMarkingResponse(submission), nil
}

// ===== MANUAL OVERRIDE =====

func (s *markingService) OverrideAnswerScore(ctx context.Context, sessionID, questionID uint, req *OverrideAnswerRequest, userID string) (*MarkingResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if err := s.requireStaff(ctx, userID, sessionID, "answer", "override"); err != nil {
		return nil, err
	}

	submission, err := s.repo.Submission().GetByIDWithAnswers(ctx, nil, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	// Overrides correct marks that already exist; the session must have
	// been through the marking engine first.
	if submission.Status != models.SubmissionMarked {
		return nil, ErrSessionNotMarked
	}

	answer, err := s.repo.Submission().GetAnswer(ctx, nil, sessionID, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAnswerNotFound
		}
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}

	if verr := s.validator.ValidateOverride(req.Marks, &answer.Question); verr != nil {
		return nil, NewValidationError("marks", verr.Error())
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		answer.AwardedMarks = req.Marks
		answer.IsOverridden = true
		answer.OverrideReason = &req.Reason

		if uerr := txRepo.Submission().UpdateAnswer(ctx, nil, answer); uerr != nil {
			return fmt.Errorf("failed to store override: %w", uerr)
		}

		// Total is always a full recompute over every answer, never an
		// incremental delta on the old total.
		total := 0.0
		for i := range submission.Answers {
			if submission.Answers[i].QuestionID == questionID {
				total += req.Marks
			} else {
				total += submission.Answers[i].AwardedMarks
			}
		}

		submission.TotalScore = total
		submission.MarkedBy = models.MarkedManual

		return txRepo.Submission().Update(ctx, nil, submission)
	})
	if err != nil {
		return nil, fmt.Errorf("override transaction failed: %w", err)
	}

	s.logger.Info("Answer score overridden",
		"session_id", sessionID,
		"question_id", questionID,
		"marks", req.Marks,
		"overridden_by", userID)

	return s.GetMarkingDetail(ctx, sessionID, userID)
}

// ===== READ =====

func (s *markingService) GetMarkingDetail(ctx context.Context, sessionID uint, userID string) (*MarkingResponse, error) {
	if err := s.requireStaff(ctx, userID, sessionID, "session", "read_marks"); err != nil {
		return nil, err
	}

	submission, err := s.repo.Submission().GetByIDWithAnswers(ctx, nil, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return s.toMarkingResponse(submission), nil
}

// ===== HELPERS =====

func (s *markingService) requireStaff(ctx context.Context, userID string, resourceID uint, resource, action string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if !user.IsStaff() {
		return NewPermissionError(userID, resourceID, resource, action, "staff role required")
	}

	return nil
}

func (s *markingService) toMarkingResponse(submission *models.Submission) *MarkingResponse {
	resp := &MarkingResponse{
		SubmissionID: submission.ID,
		Status:       submission.Status,
		TotalScore:   submission.TotalScore,
		MarkedAt:     submission.MarkedAt,
		MarkedBy:     submission.MarkedBy,
		Answers:      make([]AnswerResponse, 0, len(submission.Answers)),
	}

	for _, a := range submission.Answers {
		resp.Answers = append(resp.Answers, AnswerResponse{
			QuestionID:     a.QuestionID,
			AnswerText:     a.AnswerText,
			SelectedOption: a.SelectedOption,
			AwardedMarks:   a.AwardedMarks,
			IsOverridden:   a.IsOverridden,
		})
	}

	return resp
}

func (s *markingService) publishMarkedEvent(ctx context.Context, submission *models.Submission) {
	err := s.eventPublisher.Publish(ctx, events.EventSubmissionMarked, events.SubmissionMarkedEvent{
		SubmissionID: submission.ID,
		ExamID:       submission.ExamID,
		StudentID:    submission.StudentID,
		TotalScore:   submission.TotalScore,
		MarkedBy:     string(submission.MarkedBy),
	})
	if err != nil {
		s.logger.Error("Failed to publish marked event",
			"session_id", submission.ID,
			"error", err)
	}
}
