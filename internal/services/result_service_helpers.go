package services

import (
	"context"
	"fmt"

	"github.com/brightclass/exam-service/internal/events"
	"github.com/brightclass/exam-service/internal/models"
	"github.com/brightclass/exam-service/internal/repositories"
)

func (s *resultService) requireStaff(ctx context.Context, userID string, resourceID uint, resource, action string) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.IsStaff() {
		return nil, NewPermissionError(userID, resourceID, resource, action, "staff role required")
	}

	return user, nil
}

// checkPublishScope verifies an exam's scores may be consolidated by this
// caller: same tenant, and a subject to post the score against. Global
// admins cross the tenant boundary.
func (s *resultService) checkPublishScope(user *models.User, exam *models.Exam, resourceID uint, action string) error {
	if user.Role != models.RoleGlobalAdmin && user.SchoolID != exam.SchoolID {
		return NewPermissionError(user.ID, resourceID, "result", action, "different school")
	}
	if exam.SubjectID == "" {
		return NewValidationError("subject_id", "exam has no subject to post the score against")
	}
	return nil
}

const listPageSize = 200

// listMarkedSessions pages through every marked session for an exam. Cohorts
// routinely exceed one page, so stopping at the first would silently drop
// students.
func (s *resultService) listMarkedSessions(ctx context.Context, examID uint, published *bool) ([]models.Submission, error) {
	var all []models.Submission
	for page := 1; ; page++ {
		batch, _, err := s.repo.Submission().List(ctx, nil, repositories.SubmissionFilters{
			ExamID:    examID,
			Status:    models.SubmissionMarked,
			Published: published,
			PageSize:  listPageSize,
			Page:      page,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list marked sessions: %w", err)
		}
		all = append(all, batch...)
		if len(batch) < listPageSize {
			return all, nil
		}
	}
}

func (s *resultService) getMarkedSubmission(ctx context.Context, sessionID uint) (*models.Submission, *models.Exam, error) {
	submission, err := s.repo.Submission().GetByID(ctx, nil, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	if submission.Status != models.SubmissionMarked {
		return nil, nil, NewConflictError("result", "session has not been marked")
	}

	return submission, &submission.Exam, nil
}

// postScore writes one subject score onto the student's term result and
// flags the session published, as one transaction when the backend supports
// it and as best-effort sequencing when it does not. A prefetched result row
// saves the per-student existence lookup during bulk publishes; pass nil to
// look it up here.
func (s *resultService) postScore(ctx context.Context, submission *models.Submission, exam *models.Exam, caScore float64, prefetched *models.Result) (*PostScoreResponse, error) {
	if s.repo.TransactionsSupported() {
		var resp *PostScoreResponse
		err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
			var terr error
			resp, terr = s.postScoreWith(ctx, txRepo, submission, exam, caScore, prefetched)
			return terr
		})
		if err != nil {
			return nil, err
		}
		return resp, nil
	}

	s.logger.Warn("Posting score without transaction support",
		"session_id", submission.ID,
		"student_id", submission.StudentID)
	return s.postScoreWith(ctx, s.repo, submission, exam, caScore, prefetched)
}

func (s *resultService) postScoreWith(ctx context.Context, repo repositories.Repository, submission *models.Submission, exam *models.Exam, caScore float64, prefetched *models.Result) (*PostScoreResponse, error) {
	created := false

	result := prefetched
	if result == nil {
		var err error
		result, err = repo.Result().GetByStudent(ctx, nil, submission.StudentID, exam.Term, exam.Session)
		if err != nil {
			if !repositories.IsNotFoundError(err) {
				return nil, fmt.Errorf("failed to get result: %w", err)
			}

			result = &models.Result{
				SchoolID:  exam.SchoolID,
				StudentID: submission.StudentID,
				Term:      exam.Term,
				Session:   exam.Session,
			}
			if cerr := repo.Result().Create(ctx, nil, result); cerr != nil {
				return nil, fmt.Errorf("failed to create result: %w", cerr)
			}
			created = true
		}
	}

	item := &models.ScoreItem{
		ResultID:  result.ID,
		SubjectID: exam.SubjectID,
		CAScore:   caScore,
		ExamScore: submission.TotalScore,
	}
	item.ComputeTotal()

	if err := repo.Result().UpsertScoreItem(ctx, nil, item); err != nil {
		return nil, fmt.Errorf("failed to upsert score item: %w", err)
	}

	// Reload the item set so the average covers the row just written
	fresh, err := repo.Result().GetByStudent(ctx, nil, submission.StudentID, exam.Term, exam.Session)
	if err != nil {
		return nil, fmt.Errorf("failed to reload result: %w", err)
	}

	fresh.RecomputeAverage()
	if err := repo.Result().Update(ctx, nil, fresh); err != nil {
		return nil, fmt.Errorf("failed to update result: %w", err)
	}

	if err := repo.Result().UpdatePositions(ctx, nil, exam.SchoolID, exam.Term, exam.Session); err != nil {
		return nil, fmt.Errorf("failed to update positions: %w", err)
	}

	// The publish flag commits or rolls back with the score itself; a
	// posted score must never stay eligible for a second publish.
	if err := repo.Submission().SetPublishedBatch(ctx, nil, []uint{submission.ID}); err != nil {
		return nil, fmt.Errorf("failed to flag session published: %w", err)
	}

	return &PostScoreResponse{
		Created:   created,
		StudentID: submission.StudentID,
		SubjectID: exam.SubjectID,
		Term:      exam.Term,
		Session:   exam.Session,
		CAScore:   item.CAScore,
		ExamScore: item.ExamScore,
		Total:     item.Total,
		Average:   fresh.Average,
	}, nil
}

func (s *resultService) publishScoreEvent(ctx context.Context, submission *models.Submission, exam *models.Exam, resp *PostScoreResponse) {
	err := s.eventPublisher.Publish(ctx, events.EventScorePosted, events.ScorePostedEvent{
		StudentID: submission.StudentID,
		SubjectID: exam.SubjectID,
		Term:      exam.Term,
		Session:   exam.Session,
		Total:     resp.Total,
		Created:   resp.Created,
	})
	if err != nil {
		s.logger.Error("Failed to publish score event",
			"session_id", submission.ID,
			"error", err)
	}
}
