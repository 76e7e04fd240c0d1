package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/brightclass/exam-service/internal/cache"
	"github.com/brightclass/exam-service/internal/models"
	"github.com/brightclass/exam-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	db := q.getDB(tx)

	var question models.Question
	if err := db.WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]models.Question, error) {
	db := q.getDB(tx)

	if tx == nil && !inTransaction(q.db) {
		var questions []models.Question
		cacheKey := fmt.Sprintf("questions:%d", examID)
		err := q.cacheManager.Exam.CacheOrExecute(ctx, cacheKey, &questions, cache.ExamCacheConfig.TTL, func() (interface{}, error) {
			var fetched []models.Question
			if err := db.WithContext(ctx).
				Where("exam_id = ?", examID).
				Order("\"order\" ASC, id ASC").
				Find(&fetched).Error; err != nil {
				return nil, err
			}
			return fetched, nil
		})
		if err != nil {
			return nil, err
		}
		return questions, nil
	}

	var questions []models.Question
	err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("\"order\" ASC, id ASC").
		Find(&questions).Error
	return questions, err
}

func (q *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}
