// File: utils/cache.go
package utils

import (
	"context"
	"log"
	"time"

	"pawboard/config"

	"github.com/go-redis/redis/v8"
)

var (
	// CacheClient backs the day cache, the tag bus and client notices.
	CacheClient *redis.Client
	// QueueClient points at the asynq database, used for health checks.
	QueueClient *redis.Client
)

func newRedisClient(db int, name string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis (%s): %v", name, err)
	}
	return client
}

// InitCache initializes the generic Redis cache client.
func InitCache() {
	CacheClient = newRedisClient(config.AppConfig.RedisCacheDB, "Cache")
}

// GetCacheClient returns the generic cache client.
func GetCacheClient() *redis.Client {
	if CacheClient == nil {
		InitCache()
	}
	return CacheClient
}

// GetQueueClient returns a client on the reminder queue database.
func GetQueueClient() *redis.Client {
	if QueueClient == nil {
		QueueClient = newRedisClient(config.AppConfig.RedisQueueDB, "Queue")
	}
	return QueueClient
}
