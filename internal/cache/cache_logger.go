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

// InvalidateExam drops both engines' cached results for one exam. Called when
// an upstream snapshot update lands. Best-effort: failures are logged and the
// remaining entries expire by TTL.
func (cm *CacheManager) InvalidateExam(ctx context.Context, examID string) {
	for _, helper := range []*CacheHelper{cm.Analysis, cm.Flagging} {
		SafeDelete(ctx, helper, fmt.Sprintf("exam:%s", examID))
		SafeInvalidatePattern(ctx, helper, fmt.Sprintf("exam:%s:*", examID))
	}
}
