package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateSessionCache drops every cached view of one submission
func InvalidateSessionCache(ctx context.Context, cm *CacheManager, submissionID uint, studentID string) {
	SafeDelete(ctx, cm.Session,
		fmt.Sprintf("id:%d", submissionID),
		fmt.Sprintf("time:%d", submissionID))
	SafeInvalidatePattern(ctx, cm.Session, fmt.Sprintf("student:%s:*", studentID))
}

// InvalidateResultCache drops the cached consolidated result of one student
func InvalidateResultCache(ctx context.Context, cm *CacheManager, studentID string, term int, session string) {
	SafeDelete(ctx, cm.Result,
		fmt.Sprintf("student:%s:%d:%s", studentID, term, session))
	SafeInvalidatePattern(ctx, cm.Result, fmt.Sprintf("student:%s:*", studentID))
}

// InvalidateExamCache drops cached exam definitions after a schedule change
func InvalidateExamCache(ctx context.Context, cm *CacheManager, examID uint) {
	SafeDelete(ctx, cm.Exam,
		fmt.Sprintf("id:%d", examID),
		fmt.Sprintf("questions:%d", examID))
}

// ResultCacheKey builds the per-student result cache key used by publish
// and read paths alike, so both sides agree on the layout.
func ResultCacheKey(studentID string, term int, session string) string {
	return fmt.Sprintf("student:%s:%d:%s", studentID, term, session)
}
