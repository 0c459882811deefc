package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pawboard/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InvalidationChannel is the redis channel boards exchange invalidated tags on.
const InvalidationChannel = "pawboard:invalidate"

// ScheduleTag covers every entry of a day.
func ScheduleTag(date string) string {
	return "schedule:" + date
}

// DomainTag covers one domain's bookings of a day.
func DomainTag(d models.Domain, date string) string {
	return string(d) + ":" + date
}

// DayTags lists every tag that covers date.
func DayTags(date string) []string {
	tags := []string{ScheduleTag(date)}
	for _, d := range models.Domains {
		tags = append(tags, DomainTag(d, date))
	}
	return tags
}

func coversDay(tags []string, date string) bool {
	for _, t := range tags {
		i := strings.IndexByte(t, ':')
		if i < 0 {
			continue
		}
		if t[i+1:] == date {
			return true
		}
	}
	return false
}

// commitTags names the caches a confirmed change makes stale. A reschedule
// onto another day makes that day stale too.
func commitTags(loc *time.Location, date string, subs []models.SubMutation) []string {
	seen := make(map[string]bool)
	var tags []string
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}
	add(ScheduleTag(date))
	for _, sub := range subs {
		add(DomainTag(sub.Domain, date))
		if sub.Change.Action == models.ActionReschedule && !sub.Change.StartAt.IsZero() {
			moved := sub.Change.StartAt.In(loc).Format(models.DateLayout)
			if moved != date {
				add(ScheduleTag(moved))
				add(DomainTag(sub.Domain, moved))
			}
		}
	}
	return tags
}

// Publishers fans tags out to several publishers, attempting all of them.
type Publishers []TagPublisher

func (ps Publishers) Publish(ctx context.Context, tags ...string) error {
	var errs []error
	for _, p := range ps {
		if err := p.Publish(ctx, tags...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type tagMessage struct {
	Origin string   `json:"origin"`
	Tags   []string `json:"tags"`
}

// RedisTagBus publishes invalidated tags over redis pub/sub so every board
// process showing the same day refreshes.
type RedisTagBus struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *zap.Logger
}

func NewRedisTagBus(client *redis.Client, logger *zap.Logger) *RedisTagBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisTagBus{
		client:  client,
		channel: InvalidationChannel,
		origin:  uuid.New().String(),
		logger:  logger.Named("tagbus"),
	}
}

func (t *RedisTagBus) Publish(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	payload, err := json.Marshal(tagMessage{Origin: t.origin, Tags: tags})
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	if err := t.client.Publish(ctx, t.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish tags: %w", err)
	}
	return nil
}

// Subscribe delivers tags published by other processes until ctx ends.
func (t *RedisTagBus) Subscribe(ctx context.Context, handle func(tags []string)) error {
	sub := t.client.Subscribe(ctx, t.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", t.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m tagMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				t.logger.Warn("Dropping malformed invalidation", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			if m.Origin == t.origin {
				continue
			}
			handle(m.Tags)
		}
	}
}
