// Package cache holds the Redis write-through layer for in-flight attempt
// progress. Postgres stays the source of truth; the cache only makes page
// reloads and clock streams cheap, with a DB fallback on every miss.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gradewise/gradewise-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// ProgressCache caches attempt start times and autosaved answers in Redis.
type ProgressCache struct {
	rdb *redis.Client
}

// NewProgressCache creates a new ProgressCache.
func NewProgressCache(rdb *redis.Client) *ProgressCache {
	return &ProgressCache{rdb: rdb}
}

// SetStartTime stores an attempt's start timestamp as a Unix value.
func (c *ProgressCache) SetStartTime(ctx context.Context, attemptID uuid.UUID, start time.Time) error {
	return c.rdb.Set(ctx, config.CacheKey.AttemptStartKey(attemptID.String()), start.Unix(), 0).Err()
}

// GetStartTime retrieves a cached start timestamp. The second return value
// is false on a cache miss; callers fall back to Postgres and self-heal.
func (c *ProgressCache) GetStartTime(ctx context.Context, attemptID uuid.UUID) (time.Time, bool, error) {
	val, err := c.rdb.Get(ctx, config.CacheKey.AttemptStartKey(attemptID.String())).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get start time: %w", err)
	}
	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid start time format in cache: %w", err)
	}
	return time.Unix(unix, 0), true, nil
}

// SaveAnswers mirrors autosaved answers into a hash keyed by question id.
func (c *ProgressCache) SaveAnswers(ctx context.Context, attemptID uuid.UUID, answers map[string]string) error {
	if len(answers) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(answers))
	for k, v := range answers {
		fields[k] = v
	}
	return c.rdb.HSet(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String()), fields).Err()
}

// GetAnswers retrieves the autosaved answer hash for an attempt.
func (c *ProgressCache) GetAnswers(ctx context.Context, attemptID uuid.UUID) (map[string]string, error) {
	return c.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String())).Result()
}

// SetAssessmentPaper caches a rendered student paper with a short TTL so
// authoring changes propagate without an explicit invalidation path.
func (c *ProgressCache) SetAssessmentPaper(ctx context.Context, assessmentID uuid.UUID, payload []byte) error {
	return c.rdb.Set(ctx, config.CacheKey.AssessmentPayloadKey(assessmentID.String()), payload, 10*time.Minute).Err()
}

// GetAssessmentPaper retrieves a cached paper. Second return is false on miss.
func (c *ProgressCache) GetAssessmentPaper(ctx context.Context, assessmentID uuid.UUID) ([]byte, bool, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.AssessmentPayloadKey(assessmentID.String())).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get paper: %w", err)
	}
	return raw, true, nil
}

// Clear drops all cached progress for an attempt. Called after submission
// and expiry; the attempt row already carries the final state.
func (c *ProgressCache) Clear(ctx context.Context, attemptID uuid.UUID) error {
	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.AttemptStartKey(attemptID.String()))
	pipe.Del(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String()))
	_, err := pipe.Exec(ctx)
	return err
}
