package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/brightclass/exam-service/internal/cache"
	"github.com/brightclass/exam-service/internal/models"
	"github.com/brightclass/exam-service/internal/repositories"
)

type ExamPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewExamPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := e.getDB(tx)

	// Skip the cache inside a transaction, reads there must see tx state
	if tx == nil && !inTransaction(e.db) {
		var exam models.Exam
		cacheKey := fmt.Sprintf("id:%d", id)
		err := e.cacheManager.Exam.CacheOrExecute(ctx, cacheKey, &exam, cache.ExamCacheConfig.TTL, func() (interface{}, error) {
			var fetched models.Exam
			if err := db.WithContext(ctx).First(&fetched, id).Error; err != nil {
				return nil, err
			}
			return &fetched, nil
		})
		if err != nil {
			return nil, err
		}
		return &exam, nil
	}

	var exam models.Exam
	if err := db.WithContext(ctx).First(&exam, id).Error; err != nil {
		return nil, err
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := e.getDB(tx)

	var exam models.Exam
	err := db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.\"order\" ASC, questions.id ASC")
		}).
		First(&exam, id).Error
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) ListByClassroom(ctx context.Context, tx *gorm.DB, schoolID, classroomID string) ([]models.Exam, error) {
	db := e.getDB(tx)

	var exams []models.Exam
	err := db.WithContext(ctx).
		Where("school_id = ? AND classroom_id = ?", schoolID, classroomID).
		Order("created_at DESC").
		Find(&exams).Error
	return exams, err
}

// ListEndedWithOpenSessions finds exams whose window has closed but that
// still carry active or paused sessions, for the sweeper to force-submit.
func (e *ExamPostgreSQL) ListEndedWithOpenSessions(ctx context.Context, tx *gorm.DB, now time.Time) ([]models.Exam, error) {
	db := e.getDB(tx)

	var exams []models.Exam
	err := db.WithContext(ctx).
		Where("end_at IS NOT NULL AND end_at <= ?", now).
		Where("id IN (?)", db.Session(&gorm.Session{NewDB: true}).
			Model(&models.Submission{}).
			Select("exam_id").
			Where("status IN ?", []models.SubmissionStatus{models.SubmissionInProgress, models.SubmissionPaused})).
		Find(&exams).Error
	return exams, err
}

func (e *ExamPostgreSQL) UpdateSchedule(ctx context.Context, tx *gorm.DB, id uint, startAt, endAt *time.Time) error {
	db := e.getDB(tx)

	err := db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"start_at": startAt,
			"end_at":   endAt,
		}).Error
	if err != nil {
		return err
	}

	cache.InvalidateExamCache(ctx, e.cacheManager, id)
	return nil
}

func (e *ExamPostgreSQL) UpdateTotalMarks(ctx context.Context, tx *gorm.DB, id uint, total float64) error {
	db := e.getDB(tx)

	err := db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", id).
		Update("total_marks", total).Error
	if err != nil {
		return err
	}

	cache.InvalidateExamCache(ctx, e.cacheManager, id)
	return nil
}

func (e *ExamPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return e.db
}
