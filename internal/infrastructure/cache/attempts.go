package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/accesswatch/accesswatch-backend/internal/service/detection"
)

// Counts are cached briefly: long enough to absorb the burst of profile
// lookups during a sweep, short enough that the sliding window stays
// honest.
const attemptCountTTL = 30 * time.Second

// AttemptCounter is a read-through cache over a failed-attempt counter.
// Keys include the window start rounded to the minute, so a sweep's
// repeated lookups for the same user hit the cache while different windows
// stay separate.
type AttemptCounter struct {
	client *Client
	source detection.FailedAttemptCounter
	logger *zap.Logger
}

// NewAttemptCounter wraps source with a Redis cache.
func NewAttemptCounter(client *Client, source detection.FailedAttemptCounter, logger *zap.Logger) *AttemptCounter {
	return &AttemptCounter{client: client, source: source, logger: logger}
}

// CountFailedAttempts implements detection.FailedAttemptCounter. Cache
// failures degrade to the underlying source, never to an error.
func (c *AttemptCounter) CountFailedAttempts(ctx context.Context, userID string, simulation bool, since time.Time) (int, error) {
	key := attemptKey(userID, simulation, since)

	val, err := c.client.Redis().Get(ctx, key).Result()
	if err == nil {
		if count, convErr := strconv.Atoi(val); convErr == nil {
			return count, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn("attempt count cache read failed",
			zap.String("key", key),
			zap.Error(err))
	}

	count, err := c.source.CountFailedAttempts(ctx, userID, simulation, since)
	if err != nil {
		return 0, err
	}

	if err := c.client.Redis().Set(ctx, key, strconv.Itoa(count), attemptCountTTL).Err(); err != nil {
		c.logger.Warn("attempt count cache write failed",
			zap.String("key", key),
			zap.Error(err))
	}
	return count, nil
}

func attemptKey(userID string, simulation bool, since time.Time) string {
	return fmt.Sprintf("attempts:%t:%s:%d", simulation, userID, since.UTC().Truncate(time.Minute).Unix())
}
