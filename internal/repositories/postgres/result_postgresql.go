package postgres

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/brightclass/exam-service/internal/cache"
	"github.com/brightclass/exam-service/internal/models"
	"github.com/brightclass/exam-service/internal/repositories"
)

type ResultPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewResultPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ResultRepository {
	return &ResultPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (r *ResultPostgreSQL) GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, term int, session string) (*models.Result, error) {
	db := r.getDB(tx)

	// Cache-aside only outside transactions; a tx-bound read must see the
	// rows the transaction itself wrote.
	if tx == nil && !inTransaction(r.db) {
		var result models.Result
		cacheKey := cache.ResultCacheKey(studentID, term, session)
		err := r.cacheManager.Result.CacheOrExecute(ctx, cacheKey, &result, cache.ResultCacheConfig.TTL, func() (interface{}, error) {
			var fetched models.Result
			if err := db.WithContext(ctx).
				Preload("Items").
				Where("student_id = ? AND term = ? AND session = ?", studentID, term, session).
				First(&fetched).Error; err != nil {
				return nil, err
			}
			return &fetched, nil
		})
		if err != nil {
			return nil, err
		}
		return &result, nil
	}

	var result models.Result
	err := db.WithContext(ctx).
		Preload("Items").
		Where("student_id = ? AND term = ? AND session = ?", studentID, term, session).
		First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *ResultPostgreSQL) GetByStudents(ctx context.Context, tx *gorm.DB, studentIDs []string, term int, session string) ([]models.Result, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}

	db := r.getDB(tx)

	var results []models.Result
	err := db.WithContext(ctx).
		Preload("Items").
		Where("student_id IN ? AND term = ? AND session = ?", studentIDs, term, session).
		Find(&results).Error
	return results, err
}

func (r *ResultPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ResultFilters) ([]models.Result, int64, error) {
	db := r.getDB(tx)

	query := db.WithContext(ctx).Model(&models.Result{})
	query = r.helpers.ApplyResultFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []models.Result
	query = r.helpers.ApplyPagination(query.Preload("Items").Order("average DESC"), filters.Page, filters.PageSize)
	if err := query.Find(&results).Error; err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

func (r *ResultPostgreSQL) Create(ctx context.Context, tx *gorm.DB, result *models.Result) error {
	db := r.getDB(tx)
	return db.WithContext(ctx).Create(result).Error
}

func (r *ResultPostgreSQL) Update(ctx context.Context, tx *gorm.DB, result *models.Result) error {
	db := r.getDB(tx)

	if err := db.WithContext(ctx).Save(result).Error; err != nil {
		return err
	}

	cache.InvalidateResultCache(ctx, r.cacheManager, result.StudentID, result.Term, result.Session)
	return nil
}

// UpsertScoreItem writes one subject's score on a result, replacing the
// previous entry for the same subject if one exists.
func (r *ResultPostgreSQL) UpsertScoreItem(ctx context.Context, tx *gorm.DB, item *models.ScoreItem) error {
	db := r.getDB(tx)

	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "result_id"}, {Name: "subject_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"ca_score", "exam_score", "total", "updated_at",
			}),
		}).
		Create(item).Error
}

// UpdatePositions re-ranks every result in a (school, term, session) cohort
// by average. Ties share a position, standard competition style.
func (r *ResultPostgreSQL) UpdatePositions(ctx context.Context, tx *gorm.DB, schoolID string, term int, session string) error {
	db := r.getDB(tx)

	return db.WithContext(ctx).Exec(`
		UPDATE results SET position = ranked.rank
		FROM (
			SELECT id, RANK() OVER (ORDER BY average DESC) AS rank
			FROM results
			WHERE school_id = ? AND term = ? AND session = ?
		) AS ranked
		WHERE results.id = ranked.id`,
		schoolID, term, session).Error
}

func (r *ResultPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
