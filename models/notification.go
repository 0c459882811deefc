package models

import "time"

// Notification is the envelope published to a client's channel.
type Notification struct {
	ID        string          `json:"id"`
	ClientID  string          `json:"clientId"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Data      ReminderPayload `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
}
