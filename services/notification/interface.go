package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pawboard/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const clientChannelPrefix = "pawboard:client:"

// NotificationService delivers reminders and change notices to clients.
type NotificationService interface {
	SendClientNotification(ctx context.Context, payload models.ReminderPayload) error
}

// DefaultNotificationService publishes notices on a per-client redis channel
// that the client-facing apps subscribe to.
type DefaultNotificationService struct {
	client *redis.Client
	logger *zap.Logger
}

func NewDefaultNotificationService(client *redis.Client, logger *zap.Logger) (*DefaultNotificationService, error) {
	if client == nil {
		return nil, fmt.Errorf("notification service initialization error: redis client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultNotificationService{client: client, logger: logger.Named("notification")}, nil
}

func ClientChannel(clientID string) string {
	return clientChannelPrefix + clientID
}

func (s *DefaultNotificationService) SendClientNotification(ctx context.Context, payload models.ReminderPayload) error {
	if payload.ClientID == "" {
		return fmt.Errorf("SendClientNotification: entry %s has no client", payload.EntryID)
	}
	n := models.Notification{
		ID:        uuid.New().String(),
		ClientID:  payload.ClientID,
		Type:      payload.Reason,
		Title:     payload.Title,
		Body:      payload.Body,
		Data:      payload,
		CreatedAt: time.Now(),
	}
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("SendClientNotification: %w", err)
	}
	receivers, err := s.client.Publish(ctx, ClientChannel(payload.ClientID), b).Result()
	if err != nil {
		return fmt.Errorf("SendClientNotification: failed to publish: %w", err)
	}
	s.logger.Info("Client notified",
		zap.String("notificationId", n.ID),
		zap.String("clientId", payload.ClientID),
		zap.String("reason", payload.Reason),
		zap.Int64("receivers", receivers))
	return nil
}
