package board

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pawboard/models"
	"pawboard/services/merge"
	"pawboard/services/timeline"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const eventBuffer = 64

// Board is the single source of truth for one displayed day. Every read and
// every optimistic write of the schedule cache goes through it.
//
// pending is keyed by entry id and belongs to the loaded day. inflight maps
// booking id to mutation id and outlives Load.
type Board struct {
	deps   Dependencies
	cfg    Config
	logger *zap.Logger

	mu          sync.Mutex
	date        string
	layout      timeline.Config
	entries     []models.ScheduleEntry
	index       map[string]int
	bookings    map[string]models.ServiceBooking
	rejected    []merge.Rejection
	pending     map[string]*models.PendingMutation
	inflight    map[string]string
	generation  uint64
	stale       bool
	loadedAt    time.Time
	interaction *Interaction

	state   *EntryState
	refresh singleflight.Group
	eventCh chan Event
	wg      sync.WaitGroup
}

func NewBoard(deps Dependencies, cfg Config, logger *zap.Logger) *Board {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Zoom == "" {
		cfg.Zoom = timeline.ZoomComfortable
	}
	return &Board{
		deps:     deps,
		cfg:      cfg,
		logger:   logger.Named("board"),
		index:    make(map[string]int),
		bookings: make(map[string]models.ServiceBooking),
		pending:  make(map[string]*models.PendingMutation),
		inflight: make(map[string]string),
		state:    NewEntryState(),
		eventCh:  make(chan Event, eventBuffer),
	}
}

// Events delivers board notifications. Events are dropped when nobody reads.
func (b *Board) Events() <-chan Event {
	return b.eventCh
}

// State is the per-entry UI state container.
func (b *Board) State() *EntryState {
	return b.state
}

// Load switches the board to date. In-flight mutations of the previous day
// settle without touching the new day's cache, but their bookings stay locked
// until they do.
func (b *Board) Load(ctx context.Context, date string) error {
	layout, err := b.dayConfig(date)
	if err != nil {
		return err
	}
	day, err := b.deps.Fetcher.FetchDay(ctx, date)
	if err != nil {
		return fmt.Errorf("failed to load board for %s: %w", date, err)
	}

	b.mu.Lock()
	b.generation++
	b.date = date
	b.layout = layout
	b.pending = make(map[string]*models.PendingMutation)
	b.interaction = nil
	b.entries = nil
	b.applyDayLocked(day)
	b.mu.Unlock()

	b.state.Reset()
	b.emit(Event{Type: EventDayLoaded, Date: date})
	b.logger.Info("Day loaded", zap.String("date", date), zap.Int("entries", len(b.Entries())))
	return nil
}

// Refresh re-fetches the current day, bypassing any read-through cache.
// Concurrent refreshes of the same day share one fetch.
func (b *Board) Refresh(ctx context.Context) error {
	b.mu.Lock()
	date, gen := b.date, b.generation
	b.mu.Unlock()
	if date == "" {
		return ErrNoDayLoaded
	}

	_, err, _ := b.refresh.Do(date, func() (interface{}, error) {
		if inv, ok := b.deps.Fetcher.(DayInvalidator); ok {
			if err := inv.InvalidateDay(ctx, date); err != nil {
				b.logger.Warn("Failed to drop cached day", zap.String("date", date), zap.Error(err))
			}
		}
		day, err := b.deps.Fetcher.FetchDay(ctx, date)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if gen != b.generation {
			return nil, nil
		}
		b.applyDayLocked(day)
		return nil, nil
	})
	if err != nil {
		b.emit(Event{Type: EventRefreshFailed, Date: date, Err: err, Message: "Could not reload the schedule."})
		return fmt.Errorf("failed to refresh board for %s: %w", date, err)
	}
	b.emit(Event{Type: EventRefreshed, Date: date})
	return nil
}

// Invalidate marks the day stale when any tag covers it and schedules a
// refresh. It reports whether the board was affected.
func (b *Board) Invalidate(tags ...string) bool {
	b.mu.Lock()
	date := b.date
	hit := date != "" && coversDay(tags, date)
	if hit {
		b.stale = true
	}
	b.mu.Unlock()
	if !hit {
		return false
	}
	b.emit(Event{Type: EventInvalidated, Date: date})
	b.refreshAsync()
	return true
}

func (b *Board) refreshAsync() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.Refresh(context.Background()); err != nil {
			b.logger.Error("Background refresh failed", zap.Error(err))
		}
	}()
}

// Drain blocks until background settles and refreshes have finished.
func (b *Board) Drain() {
	b.wg.Wait()
}

// Date is the currently displayed day.
func (b *Board) Date() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.date
}

// Stale reports whether an invalidation is waiting for its refresh.
func (b *Board) Stale() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stale
}

// SetZoom changes the vertical scale of subsequent placements.
func (b *Board) SetZoom(z timeline.Zoom) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg.Zoom = z
	b.layout.Zoom = z
}

// Entries returns a copy of the cached, ordered entries.
func (b *Board) Entries() []models.ScheduleEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.ScheduleEntry, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.Clone()
	}
	return out
}

// Rejected lists the bookings the last merge could not place.
func (b *Board) Rejected() []merge.Rejection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]merge.Rejection(nil), b.rejected...)
}

// Pending reports whether entryID has a mutation in flight.
func (b *Board) Pending(entryID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i, ok := b.index[entryID]; ok {
		return b.busyLocked(b.entries[i])
	}
	_, ok := b.pending[entryID]
	return ok
}

// Placements lays out the day, substituting the drag preview if one is active.
func (b *Board) Placements() []models.Placement {
	b.mu.Lock()
	entries := make([]models.ScheduleEntry, len(b.entries))
	copy(entries, b.entries)
	layout := b.layout
	var shadow *timeline.Shadow
	if b.interaction != nil {
		s := b.interaction.entryShadow
		shadow = &s
	}
	b.mu.Unlock()

	if shadow != nil {
		return timeline.LayoutWithShadow(entries, *shadow, layout)
	}
	return timeline.Layout(entries, layout)
}

// Layout is the scale the placements are computed with.
func (b *Board) Layout() timeline.Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.layout
}

// Resolve finds the entry behind an id. It accepts entry ids, constituent
// booking ids and legacy composite ids.
func (b *Board) Resolve(id string) (models.ScheduleEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.resolveLocked(id)
	if !ok {
		return models.ScheduleEntry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return b.entries[i].Clone(), nil
}

// Booking returns the raw cached booking for a booking id.
func (b *Board) Booking(bookingID string) (models.ServiceBooking, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bk, ok := b.bookings[bookingID]
	return bk, ok
}

func (b *Board) resolveLocked(id string) (int, bool) {
	if i, ok := b.index[id]; ok {
		return i, true
	}
	if g, d, ok := merge.DecodeLegacyID(id); ok {
		if i, found := b.index[g]; found {
			return i, true
		}
		id = d
	}
	for i, e := range b.entries {
		if e.GroomingBookingID == id || e.GardenBookingID == id {
			return i, true
		}
	}
	return -1, false
}

// applyDayLocked replaces the cache with a freshly merged day. Entries with a
// mutation in flight keep their optimistic value until it settles.
func (b *Board) applyDayLocked(day models.DaySchedule) {
	res := merge.Merge(day.Grooming, day.Garden, merge.Options{Location: b.cfg.Location, Logger: b.logger})
	entries := res.Entries

	if len(b.pending) > 0 {
		current := make(map[string]models.ScheduleEntry, len(b.pending))
		for id := range b.pending {
			if i, ok := b.index[id]; ok {
				current[id] = b.entries[i]
			}
		}
		kept := entries[:0]
		for _, e := range entries {
			if _, busy := b.pending[e.ID]; busy {
				continue
			}
			kept = append(kept, e)
		}
		entries = kept
		for _, e := range current {
			entries = append(entries, e)
		}
		merge.SortEntries(entries)
	}

	b.entries = entries
	b.reindexLocked()
	b.bookings = merge.Index(day)
	b.rejected = res.Rejected
	b.stale = false
	b.loadedAt = time.Now()
	b.state.Retain(b.index)
}

func (b *Board) reindexLocked() {
	b.index = make(map[string]int, len(b.entries))
	for i, e := range b.entries {
		b.index[e.ID] = i
	}
}

// replaceLocked swaps in e for the entry with the same id, or inserts it, and
// keeps the cache ordered.
func (b *Board) replaceLocked(e models.ScheduleEntry) {
	if i, ok := b.index[e.ID]; ok {
		b.entries[i] = e
	} else {
		b.entries = append(b.entries, e)
	}
	merge.SortEntries(b.entries)
	b.reindexLocked()
}

func (b *Board) removeLocked(id string) {
	i, ok := b.index[id]
	if !ok {
		return
	}
	b.entries = append(b.entries[:i:i], b.entries[i+1:]...)
	b.reindexLocked()
}

func (b *Board) dayConfig(date string) (timeline.Config, error) {
	layout, err := timeline.DayConfig(date, b.cfg.Location, b.cfg.DayStartHour, b.cfg.DayEndHour)
	if err != nil {
		return timeline.Config{}, err
	}
	layout.Zoom = b.cfg.Zoom
	if b.cfg.IntervalMinutes > 0 {
		layout.IntervalMinutes = b.cfg.IntervalMinutes
	}
	if b.cfg.MinRowHeightPx > 0 {
		layout.MinRowHeightPx = b.cfg.MinRowHeightPx
	}
	return layout, nil
}

func (b *Board) emit(ev Event) {
	select {
	case b.eventCh <- ev:
	default:
	}
}
