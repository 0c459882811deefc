package reminder

import (
	"context"
	"testing"
	"time"

	"pawboard/models"
	"pawboard/services/tasks"

	"github.com/hibiken/asynq"
)

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type()}, nil
}

type fakeReminders struct {
	deleted []string
	err     error
}

func (r *fakeReminders) DeleteTask(queue, id string) error {
	r.deleted = append(r.deleted, queue+"/"+id)
	return r.err
}

var now = time.Date(2025, time.May, 1, 6, 0, 0, 0, time.UTC)

func newHook(q *fakeQueue) *Hook {
	h := NewHook(q, nil, time.Hour, time.UTC, nil)
	h.Now = func() time.Time { return now }
	return h
}

func entryAt(hour int, status models.BookingStatus) models.ScheduleEntry {
	start := time.Date(2025, time.May, 1, hour, 0, 0, 0, time.UTC)
	return models.ScheduleEntry{
		ID:           "G1",
		Kind:         models.KindGrooming,
		StartAt:      start,
		EndAt:        start.Add(time.Hour),
		Status:       status,
		DisplayLabel: "Rex (grooming)",
		Parts:        []models.EntryPart{{Domain: models.DomainGrooming, BookingID: "G1", Status: status}},
	}
}

func statusMutation(status models.BookingStatus) models.PendingMutation {
	return models.PendingMutation{
		Kind: models.MutationStatusChange,
		SubMutations: []models.SubMutation{{
			Domain:    models.DomainGrooming,
			BookingID: "G1",
			Change:    models.BookingChange{Status: status},
		}},
	}
}

func TestApprovalQueuesReminder(t *testing.T) {
	q := &fakeQueue{}
	if err := newHook(q).AfterCommit(context.Background(), entryAt(10, models.StatusApproved), statusMutation(models.StatusApproved)); err != nil {
		t.Fatalf("hook: %v", err)
	}
	if len(q.tasks) != 1 || q.tasks[0].Type() != tasks.TypeVisitReminder {
		t.Fatalf("queued %v", q.tasks)
	}
}

func TestReminderSkippedWhenTooLate(t *testing.T) {
	q := &fakeQueue{}
	// visit at 06:30 with one hour lead already passed
	e := entryAt(6, models.StatusApproved)
	e.StartAt = e.StartAt.Add(30 * time.Minute)
	if err := newHook(q).AfterCommit(context.Background(), e, statusMutation(models.StatusApproved)); err != nil {
		t.Fatalf("hook: %v", err)
	}
	if len(q.tasks) != 0 {
		t.Errorf("queued %d tasks", len(q.tasks))
	}
}

func TestCancellationNotifiesImmediately(t *testing.T) {
	q := &fakeQueue{}
	if err := newHook(q).AfterCommit(context.Background(), entryAt(10, models.StatusCancelled), statusMutation(models.StatusCancelled)); err != nil {
		t.Fatalf("hook: %v", err)
	}
	if len(q.tasks) != 1 || q.tasks[0].Type() != tasks.TypeScheduleChanged {
		t.Fatalf("queued %v", q.tasks)
	}
}

func TestPendingApprovalQueuesNothing(t *testing.T) {
	q := &fakeQueue{}
	// merged visit where only one half was approved
	e := entryAt(10, models.StatusPending)
	if err := newHook(q).AfterCommit(context.Background(), e, statusMutation(models.StatusApproved)); err != nil {
		t.Fatalf("hook: %v", err)
	}
	if len(q.tasks) != 0 {
		t.Errorf("queued %d tasks", len(q.tasks))
	}
}

func TestRescheduleNotifiesAndRequeues(t *testing.T) {
	q := &fakeQueue{}
	m := models.PendingMutation{Kind: models.MutationReschedule}
	if err := newHook(q).AfterCommit(context.Background(), entryAt(12, models.StatusApproved), m); err != nil {
		t.Fatalf("hook: %v", err)
	}
	if len(q.tasks) != 2 {
		t.Fatalf("queued %d tasks, want notice and reminder", len(q.tasks))
	}
}

func TestDuplicateReminderIsNotAnError(t *testing.T) {
	q := &fakeQueue{err: asynq.ErrTaskIDConflict}
	if err := newHook(q).AfterCommit(context.Background(), entryAt(10, models.StatusApproved), statusMutation(models.StatusApproved)); err != nil {
		t.Fatalf("conflict should be swallowed: %v", err)
	}
}

// reminderFor is the id the hook gives the reminder of entryAt(hour, ...).
func reminderFor(hour int) string {
	return tasks.QueueDefault + "/" + tasks.VisitReminderTaskID("G1", time.Date(2025, time.May, 1, hour-1, 0, 0, 0, time.UTC))
}

func TestCancellationDropsQueuedReminder(t *testing.T) {
	q, r := &fakeQueue{}, &fakeReminders{}
	h := newHook(q)
	h.Reminders = r
	m := statusMutation(models.StatusCancelled)
	m.PreviousSnapshot = entryAt(10, models.StatusApproved)

	if err := h.AfterCommit(context.Background(), entryAt(10, models.StatusCancelled), m); err != nil {
		t.Fatalf("hook: %v", err)
	}
	if len(r.deleted) != 1 || r.deleted[0] != reminderFor(10) {
		t.Errorf("deleted %v, want %s", r.deleted, reminderFor(10))
	}
	if len(q.tasks) != 1 || q.tasks[0].Type() != tasks.TypeScheduleChanged {
		t.Errorf("queued %v", q.tasks)
	}
}

func TestRescheduleReplacesReminder(t *testing.T) {
	q, r := &fakeQueue{}, &fakeReminders{}
	h := newHook(q)
	h.Reminders = r
	m := models.PendingMutation{Kind: models.MutationReschedule, PreviousSnapshot: entryAt(10, models.StatusApproved)}

	if err := h.AfterCommit(context.Background(), entryAt(12, models.StatusApproved), m); err != nil {
		t.Fatalf("hook: %v", err)
	}
	if len(r.deleted) != 1 || r.deleted[0] != reminderFor(10) {
		t.Errorf("deleted %v, want the 10:00 reminder", r.deleted)
	}
	if len(q.tasks) != 2 || q.tasks[1].Type() != tasks.TypeVisitReminder {
		t.Errorf("queued %v, want notice then new reminder", q.tasks)
	}
}

func TestDeleteWithoutQueuedReminder(t *testing.T) {
	q, r := &fakeQueue{}, &fakeReminders{err: asynq.ErrTaskNotFound}
	h := newHook(q)
	h.Reminders = r
	m := models.PendingMutation{Kind: models.MutationDelete, PreviousSnapshot: entryAt(10, models.StatusPending)}

	if err := h.AfterCommit(context.Background(), entryAt(10, models.StatusPending), m); err != nil {
		t.Fatalf("missing reminder should not fail the hook: %v", err)
	}
	if len(r.deleted) != 1 {
		t.Errorf("deleted %v", r.deleted)
	}
	if len(q.tasks) != 1 {
		t.Errorf("removal notice not queued: %v", q.tasks)
	}
}

func TestApprovalLeavesRemindersAlone(t *testing.T) {
	q, r := &fakeQueue{}, &fakeReminders{}
	h := newHook(q)
	h.Reminders = r
	m := statusMutation(models.StatusApproved)
	m.PreviousSnapshot = entryAt(10, models.StatusPending)

	if err := h.AfterCommit(context.Background(), entryAt(10, models.StatusApproved), m); err != nil {
		t.Fatalf("hook: %v", err)
	}
	if len(r.deleted) != 0 {
		t.Errorf("approval deleted %v", r.deleted)
	}
}
