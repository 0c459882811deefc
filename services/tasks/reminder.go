package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"pawboard/models"

	"github.com/hibiken/asynq"
)

const (
	TypeVisitReminder   = "reminder:visit"
	TypeScheduleChanged = "notify:schedule_changed"

	// QueueDefault is where every task is queued and where reminders are
	// looked up again to be dropped.
	QueueDefault = "default"
)

// VisitReminderTaskID names the reminder for entryID firing at fireAt.
func VisitReminderTaskID(entryID string, fireAt time.Time) string {
	return fmt.Sprintf("visit:%s:%d", entryID, fireAt.Unix())
}

// NewVisitReminderTask schedules a reminder for fireAt. The task id is derived
// from the entry and fire time so re-approving a visit does not queue it twice.
func NewVisitReminderTask(payload models.ReminderPayload, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	payload.Reason = models.ReasonVisitReminder
	payload.FireDate = fireAt.UTC().Format(time.RFC3339)
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeVisitReminder, b)
	opts := []asynq.Option{
		asynq.ProcessAt(fireAt),
		asynq.TaskID(VisitReminderTaskID(payload.EntryID, fireAt)),
		asynq.MaxRetry(3),
	}
	return task, opts, nil
}

// NewScheduleChangedTask notifies the client right away that a visit moved or
// was called off.
func NewScheduleChangedTask(payload models.ReminderPayload) (*asynq.Task, []asynq.Option, error) {
	payload.Reason = models.ReasonScheduleChanged
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeScheduleChanged, b)
	return task, []asynq.Option{asynq.MaxRetry(5)}, nil
}
