package reportstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dominica-news/feedback/pkg/config"
	"github.com/dominica-news/feedback/pkg/errors"
)

const (
	recentReportsKey = "feedback:reports:recent"
	recentReportsCap = 100
	dailyCountTTL    = 48 * time.Hour
)

// Cache keeps a short ring of recent error reports and daily counters
// in Redis for the stats endpoint and readiness checks.
type Cache struct {
	client *redis.Client
	config *config.RedisConfig
}

// NewCache connects the Redis-backed report cache.
func NewCache(cfg *config.RedisConfig) (*Cache, error) {
	if cfg == nil {
		return nil, errors.NewValidationError("redis configuration is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.NewInternalError("failed to connect to redis").WithCause(err)
	}

	return &Cache{client: client, config: cfg}, nil
}

// Close releases the Redis connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Health checks the Redis connection.
func (c *Cache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Record pushes one report onto the recent ring and bumps the day's
// counter.
func (c *Cache) Record(ctx context.Context, report *StoredReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return errors.NewInternalError("failed to encode report for cache").WithCause(err)
	}

	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, recentReportsKey, data)
	pipe.LTrim(ctx, recentReportsKey, 0, recentReportsCap-1)

	dayKey := dailyCountKey(report.CreatedAt)
	pipe.Incr(ctx, dayKey)
	pipe.Expire(ctx, dayKey, dailyCountTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewInternalError("failed to record report in cache").WithCause(err)
	}
	return nil
}

// Recent returns up to limit cached reports, newest first.
func (c *Cache) Recent(ctx context.Context, limit int) ([]StoredReport, error) {
	if limit <= 0 || limit > recentReportsCap {
		limit = recentReportsCap
	}

	raw, err := c.client.LRange(ctx, recentReportsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, errors.NewInternalError("failed to read recent reports").WithCause(err)
	}

	reports := make([]StoredReport, 0, len(raw))
	for _, item := range raw {
		var report StoredReport
		if err := json.Unmarshal([]byte(item), &report); err != nil {
			// A single corrupt entry should not sink the whole read
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// CountToday returns the number of reports recorded today.
func (c *Cache) CountToday(ctx context.Context) (int64, error) {
	count, err := c.client.Get(ctx, dailyCountKey(time.Now())).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errors.NewInternalError("failed to read daily report count").WithCause(err)
	}
	return count, nil
}

func dailyCountKey(t time.Time) string {
	return fmt.Sprintf("feedback:reports:count:%s", t.UTC().Format("2006-01-02"))
}
