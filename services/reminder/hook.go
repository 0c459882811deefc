package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pawboard/models"
	"pawboard/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Enqueuer is the part of *asynq.Client the hook needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskRemover is the part of *asynq.Inspector the hook needs to drop
// reminders that no longer apply.
type TaskRemover interface {
	DeleteTask(queue, id string) error
}

// Hook queues client reminders and change notices once a board mutation has
// been confirmed. Reminders is optional; without it moved or cancelled visits
// keep their old reminder.
type Hook struct {
	Queue     Enqueuer
	Reminders TaskRemover
	Lead      time.Duration
	Location  *time.Location
	Logger    *zap.Logger
	Now       func() time.Time
}

func NewHook(queue Enqueuer, reminders TaskRemover, lead time.Duration, loc *time.Location, logger *zap.Logger) *Hook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hook{Queue: queue, Reminders: reminders, Lead: lead, Location: loc, Logger: logger.Named("reminder"), Now: time.Now}
}

func (h *Hook) AfterCommit(ctx context.Context, entry models.ScheduleEntry, m models.PendingMutation) error {
	payload := models.ReminderPayload{
		EntryID:    entry.ID,
		ClientID:   entry.ClientID,
		SubjectID:  entry.SubjectID,
		BookingIDs: entry.BookingIDs(),
	}

	switch m.Kind {
	case models.MutationReschedule:
		h.dropReminder(m.PreviousSnapshot)
		payload.Title = "Your visit was moved"
		payload.Body = fmt.Sprintf("%s is now booked %s.", entry.DisplayLabel, h.when(entry))
		if err := h.notifyNow(ctx, payload); err != nil {
			return err
		}
		if entry.Status == models.StatusApproved {
			return h.remind(ctx, entry, payload)
		}
		return nil

	case models.MutationDelete:
		h.dropReminder(m.PreviousSnapshot)
		payload.Title = "Your visit was removed"
		payload.Body = fmt.Sprintf("%s on %s was removed from the schedule.", entry.DisplayLabel, h.when(entry))
		return h.notifyNow(ctx, payload)
	}

	for _, sub := range m.SubMutations {
		if sub.Change.Status == models.StatusCancelled {
			h.dropReminder(m.PreviousSnapshot)
			payload.Title = "Your visit was cancelled"
			payload.Body = fmt.Sprintf("The %s part of %s on %s was cancelled.", sub.Domain, entry.DisplayLabel, h.when(entry))
			return h.notifyNow(ctx, payload)
		}
	}
	if entry.Status == models.StatusApproved {
		return h.remind(ctx, entry, payload)
	}
	return nil
}

func (h *Hook) remind(ctx context.Context, entry models.ScheduleEntry, payload models.ReminderPayload) error {
	fireAt := entry.StartAt.Add(-h.Lead)
	if !fireAt.After(h.now()) {
		return nil
	}
	payload.Title = "Visit reminder"
	payload.Body = fmt.Sprintf("%s is booked %s.", entry.DisplayLabel, h.when(entry))
	task, opts, err := tasks.NewVisitReminderTask(payload, fireAt)
	if err != nil {
		return fmt.Errorf("failed to build reminder task: %w", err)
	}
	return h.enqueue(ctx, task, opts)
}

// dropReminder deletes the reminder queued for the entry as it stood before
// the change. A reminder that already fired or was never queued is fine.
func (h *Hook) dropReminder(prev models.ScheduleEntry) {
	if h.Reminders == nil || prev.ID == "" || prev.StartAt.IsZero() {
		return
	}
	id := tasks.VisitReminderTaskID(prev.ID, prev.StartAt.Add(-h.Lead))
	err := h.Reminders.DeleteTask(tasks.QueueDefault, id)
	switch {
	case err == nil:
		h.logger().Info("Reminder dropped", zap.String("taskId", id))
	case errors.Is(err, asynq.ErrTaskNotFound), errors.Is(err, asynq.ErrQueueNotFound):
	default:
		h.logger().Warn("Failed to drop reminder", zap.String("taskId", id), zap.Error(err))
	}
}

func (h *Hook) notifyNow(ctx context.Context, payload models.ReminderPayload) error {
	task, opts, err := tasks.NewScheduleChangedTask(payload)
	if err != nil {
		return fmt.Errorf("failed to build notice task: %w", err)
	}
	return h.enqueue(ctx, task, opts)
}

func (h *Hook) enqueue(ctx context.Context, task *asynq.Task, opts []asynq.Option) error {
	info, err := h.Queue.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}
	h.logger().Info("Task queued", zap.String("type", task.Type()), zap.String("taskId", info.ID))
	return nil
}

func (h *Hook) when(entry models.ScheduleEntry) string {
	loc := h.Location
	if loc == nil {
		loc = time.Local
	}
	return entry.StartAt.In(loc).Format("Mon 2 Jan 15:04")
}

func (h *Hook) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func (h *Hook) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
