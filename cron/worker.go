package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pawboard/config"
	"pawboard/models"
	"pawboard/services/notification"
	"pawboard/services/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// QueueRedisOpt is the asynq connection shared by the reminder client and worker.
func QueueRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// InitReminderWorker runs the async worker in background and returns the
// server so the caller can shut it down.
func InitReminderWorker(notifSvc notification.NotificationService, logger *zap.Logger) *asynq.Server {
	logger = logger.Named("worker")
	srv := asynq.NewServer(
		QueueRedisOpt(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				tasks.QueueDefault: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeVisitReminder, deliveryHandler(notifSvc, logger))
	mux.Handle(tasks.TypeScheduleChanged, deliveryHandler(notifSvc, logger))

	go monitorRedisConnection(logger)

	go func() {
		logger.Info("Starting async worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := srv.Run(mux)
			if err == nil {
				break
			}
			logger.Error("Worker failed to start", zap.Int("attempt", attempts), zap.Error(err))
			if attempts == maxAttempts {
				logger.Fatal("Max retry attempts reached")
			}
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
	}()
	return srv
}

func deliveryHandler(notifSvc notification.NotificationService, logger *zap.Logger) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
		var p models.ReminderPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("Invalid task payload", zap.String("type", task.Type()), zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		logger.Info("Delivering notice",
			zap.String("type", task.Type()),
			zap.String("entryId", p.EntryID),
			zap.String("title", p.Title))
		if err := notifSvc.SendClientNotification(ctx, p); err != nil {
			logger.Warn("Failed to deliver notice", zap.String("entryId", p.EntryID), zap.Error(err))
			return err
		}
		return nil
	})
}

// monitorRedisConnection pings the queue database periodically to surface
// failures at runtime.
func monitorRedisConnection(logger *zap.Logger) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})

	ctx := context.Background()
	for {
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Queue redis connection lost", zap.Error(err))
		}
		time.Sleep(10 * time.Second)
	}
}
