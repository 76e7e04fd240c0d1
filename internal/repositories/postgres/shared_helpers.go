package postgres

import (
	"gorm.io/gorm"

	"github.com/brightclass/exam-service/internal/repositories"
)

// SharedHelpers contains query-building helpers common to the sub-repositories
type SharedHelpers struct {
	db *gorm.DB
}

// inTransaction reports whether db is already transaction-bound, as the
// sub-repository copies built by WithTransaction are. Cache-aside must not
// run on such a handle: reads have to see the transaction's own writes, and
// nothing uncommitted may leak into redis.
func inTransaction(db *gorm.DB) bool {
	if db == nil || db.Statement == nil {
		return false
	}
	_, ok := db.Statement.ConnPool.(gorm.TxCommitter)
	return ok
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// ApplySubmissionFilters applies common filters to submission queries
func (h *SharedHelpers) ApplySubmissionFilters(query *gorm.DB, filters repositories.SubmissionFilters) *gorm.DB {
	if filters.ExamID != 0 {
		query = query.Where("exam_id = ?", filters.ExamID)
	}
	if filters.StudentID != "" {
		query = query.Where("student_id = ?", filters.StudentID)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.Published != nil {
		query = query.Where("is_published = ?", *filters.Published)
	}
	return query
}

// ApplyResultFilters applies common filters to result queries
func (h *SharedHelpers) ApplyResultFilters(query *gorm.DB, filters repositories.ResultFilters) *gorm.DB {
	if filters.SchoolID != "" {
		query = query.Where("school_id = ?", filters.SchoolID)
	}
	if filters.StudentID != "" {
		query = query.Where("student_id = ?", filters.StudentID)
	}
	if filters.Term != 0 {
		query = query.Where("term = ?", filters.Term)
	}
	if filters.Session != "" {
		query = query.Where("session = ?", filters.Session)
	}
	return query
}

// ApplyPagination applies page-based pagination with a bounded page size
func (h *SharedHelpers) ApplyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}
	if page < 1 {
		page = 1
	}
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}
