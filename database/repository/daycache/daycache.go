package daycache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pawboard/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const dayKeyPrefix = "board:day:"

// Source is the store a DayCache reads through to.
type Source interface {
	FetchDay(ctx context.Context, date string) (models.DaySchedule, error)
}

// DayCache keeps each fetched day as JSON in redis for ttl. Redis failures
// fall back to the source; the cache is never authoritative.
type DayCache struct {
	client *redis.Client
	source Source
	ttl    time.Duration
	logger *zap.Logger
}

func NewDayCache(client *redis.Client, source Source, ttl time.Duration, logger *zap.Logger) *DayCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DayCache{client: client, source: source, ttl: ttl, logger: logger.Named("daycache")}
}

func dayKey(date string) string {
	return dayKeyPrefix + date
}

func (c *DayCache) FetchDay(ctx context.Context, date string) (models.DaySchedule, error) {
	data, err := c.client.Get(ctx, dayKey(date)).Bytes()
	switch {
	case err == nil:
		var day models.DaySchedule
		if err := json.Unmarshal(data, &day); err == nil {
			return day, nil
		}
		c.logger.Warn("Dropping undecodable cached day", zap.String("date", date))
	case err != redis.Nil:
		c.logger.Warn("Day cache read failed", zap.String("date", date), zap.Error(err))
	}

	day, err := c.source.FetchDay(ctx, date)
	if err != nil {
		return models.DaySchedule{}, err
	}
	if err := c.set(ctx, date, day); err != nil {
		c.logger.Warn("Day cache write failed", zap.String("date", date), zap.Error(err))
	}
	return day, nil
}

func (c *DayCache) set(ctx context.Context, date string, day models.DaySchedule) error {
	b, err := json.Marshal(day)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, dayKey(date), b, c.ttl).Err()
}

func (c *DayCache) InvalidateDay(ctx context.Context, date string) error {
	if err := c.client.Del(ctx, dayKey(date)).Err(); err != nil {
		return fmt.Errorf("failed to drop cached day %s: %w", date, err)
	}
	return nil
}

// Publish drops every cached day named by the tags ("schedule:<date>",
// "grooming:<date>", ...). It lets the cache sit among the board's tag
// publishers.
func (c *DayCache) Publish(ctx context.Context, tags ...string) error {
	dates := datesFromTags(tags)
	if len(dates) == 0 {
		return nil
	}
	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = dayKey(d)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to drop cached days: %w", err)
	}
	return nil
}

func datesFromTags(tags []string) []string {
	seen := make(map[string]bool)
	var dates []string
	for _, t := range tags {
		i := strings.IndexByte(t, ':')
		if i < 0 || i == len(t)-1 {
			continue
		}
		if date := t[i+1:]; !seen[date] {
			seen[date] = true
			dates = append(dates, date)
		}
	}
	return dates
}
