package board

import (
	"context"
	"time"

	"pawboard/models"
	"pawboard/services/timeline"
)

// DayFetcher loads both domains' bookings for one calendar day.
type DayFetcher interface {
	FetchDay(ctx context.Context, date string) (models.DaySchedule, error)
}

// DayInvalidator is implemented by fetchers that keep their own read-through
// cache. A refresh drops that cache before fetching again.
type DayInvalidator interface {
	InvalidateDay(ctx context.Context, date string) error
}

// Mutator applies one change to one booking in its own store. Constituents are
// always mutated one call each; there is no cross-store batch.
type Mutator interface {
	Apply(ctx context.Context, domain models.Domain, bookingID string, change models.BookingChange) (*models.ServiceBooking, error)
}

// CommitHook runs side effects (reminders, notifications) once a mutation has
// been confirmed by the remote store.
type CommitHook interface {
	AfterCommit(ctx context.Context, entry models.ScheduleEntry, mutation models.PendingMutation) error
}

// TagPublisher fans invalidated cache tags out to other boards.
type TagPublisher interface {
	Publish(ctx context.Context, tags ...string) error
}

// Dependencies are the collaborators a Board is wired with.
type Dependencies struct {
	Fetcher   DayFetcher
	Mutator   Mutator
	Hook      CommitHook   // optional
	Publisher TagPublisher // optional
}

// Config holds the facility-wide board settings.
type Config struct {
	Location        *time.Location
	DayStartHour    int
	DayEndHour      int
	IntervalMinutes int
	MinRowHeightPx  float64
	Zoom            timeline.Zoom
	// RefreshOnCommit also re-fetches the day after a confirmed reschedule.
	// Status changes, deletes and bulk actions always do.
	RefreshOnCommit bool
}

// Intent is a single-entity user action keyed by entry id. Domain picks the
// constituent of a merged entry; it is required for those.
type Intent struct {
	EntryID string
	Action  models.Action
	Domain  models.Domain
	StartAt time.Time // reschedule only
	EndAt   time.Time // reschedule only
}

// BulkIntent applies one action to every constituent of an entry.
type BulkIntent struct {
	EntryID string
	Action  models.Action
}

type EventType string

const (
	EventDayLoaded         EventType = "day_loaded"
	EventRefreshed         EventType = "refreshed"
	EventRefreshFailed     EventType = "refresh_failed"
	EventInvalidated       EventType = "invalidated"
	EventEntryChanged      EventType = "entry_changed"
	EventMutationCommitted EventType = "mutation_committed"
	EventMutationFailed    EventType = "mutation_failed"
	EventBulkSettled       EventType = "bulk_settled"
	EventInteraction       EventType = "interaction"
)

// Event is emitted on the board's event channel. Message carries the
// user-facing text for failures.
type Event struct {
	Type       EventType
	Date       string
	EntryID    string
	MutationID string
	Message    string
	Err        error
	Bulk       BulkResult
}
