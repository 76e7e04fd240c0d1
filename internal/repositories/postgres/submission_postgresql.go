package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/brightclass/exam-service/internal/cache"
	"github.com/brightclass/exam-service/internal/models"
	"github.com/brightclass/exam-service/internal/repositories"
)

type SubmissionPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewSubmissionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (s *SubmissionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	db := s.getDB(tx)
	return db.WithContext(ctx).Create(submission).Error
}

func (s *SubmissionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error) {
	db := s.getDB(tx)

	var submission models.Submission
	if err := db.WithContext(ctx).Preload("Exam").First(&submission, id).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error) {
	db := s.getDB(tx)

	var submission models.Submission
	err := db.WithContext(ctx).
		Preload("Exam").
		Preload("Answers").
		Preload("Answers.Question").
		First(&submission, id).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) GetByExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.Submission, error) {
	db := s.getDB(tx)

	var submission models.Submission
	err := db.WithContext(ctx).
		Preload("Exam").
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		First(&submission).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.SubmissionFilters) ([]models.Submission, int64, error) {
	db := s.getDB(tx)

	query := db.WithContext(ctx).Model(&models.Submission{})
	query = s.helpers.ApplySubmissionFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var submissions []models.Submission
	query = s.helpers.ApplyPagination(query.Order("created_at DESC"), filters.Page, filters.PageSize)
	if err := query.Find(&submissions).Error; err != nil {
		return nil, 0, err
	}

	return submissions, total, nil
}

func (s *SubmissionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	db := s.getDB(tx)

	if err := db.WithContext(ctx).Save(submission).Error; err != nil {
		return err
	}

	cache.InvalidateSessionCache(ctx, s.cacheManager, submission.ID, submission.StudentID)
	return nil
}

// FinalizeIfInProgress is the single compare-and-set that decides which
// caller finalizes a session. The WHERE clause only matches running rows,
// so a paused session or a concurrent duplicate sees zero rows affected and
// must treat the session as gone.
func (s *SubmissionPostgreSQL) FinalizeIfInProgress(ctx context.Context, tx *gorm.DB, id uint, submittedAt time.Time) (int64, error) {
	db := s.getDB(tx)

	result := db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, models.SubmissionInProgress).
		Updates(map[string]interface{}{
			"status":     models.SubmissionSubmitted,
			"ends_at":    submittedAt,
			"updated_at": submittedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected > 0 {
		cache.SafeDelete(ctx, s.cacheManager.Session,
			fmt.Sprintf("id:%d", id),
			fmt.Sprintf("time:%d", id))
	}

	return result.RowsAffected, nil
}

func (s *SubmissionPostgreSQL) ForceSubmitInProgress(ctx context.Context, tx *gorm.DB, examID uint, submittedAt time.Time) ([]uint, error) {
	db := s.getDB(tx)

	var ids []uint
	err := db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("exam_id = ? AND status IN ?", examID,
			[]models.SubmissionStatus{models.SubmissionInProgress, models.SubmissionPaused}).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	err = db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":     models.SubmissionSubmitted,
			"ends_at":    submittedAt,
			"updated_at": submittedAt,
		}).Error
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		cache.SafeDelete(ctx, s.cacheManager.Session,
			fmt.Sprintf("id:%d", id),
			fmt.Sprintf("time:%d", id))
	}

	return ids, nil
}

// UpsertAnswer writes the latest answer for (submission, question); repeated
// saves of the same question replace the previous content.
func (s *SubmissionPostgreSQL) UpsertAnswer(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	db := s.getDB(tx)

	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "submission_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"answer_text", "selected_option", "updated_at",
			}),
		}).
		Create(answer).Error
}

func (s *SubmissionPostgreSQL) GetAnswer(ctx context.Context, tx *gorm.DB, submissionID, questionID uint) (*models.Answer, error) {
	db := s.getDB(tx)

	var answer models.Answer
	err := db.WithContext(ctx).
		Preload("Question").
		Where("submission_id = ? AND question_id = ?", submissionID, questionID).
		First(&answer).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (s *SubmissionPostgreSQL) UpdateAnswer(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	db := s.getDB(tx)
	return db.WithContext(ctx).Save(answer).Error
}

// SetPublishedBatch flags submissions as published in ID batches so the
// statement stays bounded for large cohorts.
func (s *SubmissionPostgreSQL) SetPublishedBatch(ctx context.Context, tx *gorm.DB, submissionIDs []uint) error {
	if len(submissionIDs) == 0 {
		return nil
	}

	db := s.getDB(tx)

	const batchSize = 500
	for i := 0; i < len(submissionIDs); i += batchSize {
		end := i + batchSize
		if end > len(submissionIDs) {
			end = len(submissionIDs)
		}
		err := db.WithContext(ctx).
			Model(&models.Submission{}).
			Where("id IN ?", submissionIDs[i:end]).
			Update("is_published", true).Error
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *SubmissionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}
