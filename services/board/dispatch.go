package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pawboard/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ticket tracks one dispatched mutation until the remote store answers.
type Ticket struct {
	Mutation models.PendingMutation
	done     chan struct{}
	err      error
}

func newTicket(pm models.PendingMutation) *Ticket {
	return &Ticket{Mutation: pm, done: make(chan struct{})}
}

func (t *Ticket) finish(err error) {
	t.err = err
	close(t.done)
}

// Done is closed once the mutation has been confirmed or rolled back.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Err is the settle result; only meaningful after Done is closed.
func (t *Ticket) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the mutation settles or ctx ends. Giving up waiting does
// not cancel the mutation.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch applies a single-entity action optimistically and sends it to the
// owning store. The cache reflects the change before Dispatch returns; a
// rejected change restores the exact prior entry.
func (b *Board) Dispatch(ctx context.Context, in Intent) (*Ticket, error) {
	if in.Action.IsBulk() {
		return nil, ErrBulkAction
	}

	b.mu.Lock()
	if b.date == "" {
		b.mu.Unlock()
		return nil, ErrNoDayLoaded
	}
	i, ok := b.resolveLocked(in.EntryID)
	if !ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, in.EntryID)
	}
	current := b.entries[i]
	if b.busyLocked(current) {
		b.mu.Unlock()
		return nil, ErrMutationInFlight
	}
	sub, err := subMutationFor(current, in)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}

	pm := &models.PendingMutation{
		ID:               uuid.New().String(),
		TargetEntryID:    current.ID,
		PreviousSnapshot: current.Clone(),
		PreviousIndex:    i,
		Kind:             in.Action.MutationKind(),
		SubMutations:     []models.SubMutation{sub},
		Generation:       b.generation,
		CreatedAt:        time.Now(),
	}
	next, removed := applySub(current.Clone(), sub)
	if removed {
		b.removeLocked(current.ID)
	} else {
		b.replaceLocked(next)
	}
	b.trackLocked(pm)
	ticket := newTicket(*pm)
	b.mu.Unlock()

	b.emit(Event{Type: EventEntryChanged, Date: b.Date(), EntryID: pm.TargetEntryID, MutationID: pm.ID})
	b.logger.Debug("Mutation dispatched",
		zap.String("mutationId", pm.ID),
		zap.String("entryId", pm.TargetEntryID),
		zap.String("action", string(in.Action)),
		zap.String("domain", string(sub.Domain)))

	b.wg.Add(1)
	go b.settle(context.WithoutCancel(ctx), pm, in.Action, ticket)
	return ticket, nil
}

func (b *Board) settle(ctx context.Context, pm *models.PendingMutation, action models.Action, ticket *Ticket) {
	defer b.wg.Done()
	sub := pm.SubMutations[0]
	snap, err := b.deps.Mutator.Apply(ctx, sub.Domain, sub.BookingID, sub.Change)
	if err != nil {
		merr := &MutationError{
			EntryID:    pm.TargetEntryID,
			MutationID: pm.ID,
			Domain:     sub.Domain,
			BookingID:  sub.BookingID,
			Action:     action,
			Err:        err,
		}
		b.rollback(pm, merr)
		ticket.finish(merr)
		return
	}
	b.commit(ctx, pm, []models.SubMutation{sub}, []*models.ServiceBooking{snap})
	ticket.finish(nil)
}

// rollback restores the snapshot taken at dispatch time. Only the booking lock
// is released if the board has moved to another day since.
func (b *Board) rollback(pm *models.PendingMutation, merr *MutationError) {
	b.logger.Error("Mutation rejected, rolling back",
		zap.String("mutationId", pm.ID),
		zap.String("entryId", pm.TargetEntryID),
		zap.Error(merr))

	b.mu.Lock()
	b.releaseLocked(pm)
	if pm.Generation != b.generation {
		b.mu.Unlock()
		return
	}
	delete(b.pending, pm.TargetEntryID)
	b.replaceLocked(pm.PreviousSnapshot.Clone())
	date := b.date
	b.mu.Unlock()

	b.emit(Event{
		Type:       EventMutationFailed,
		Date:       date,
		EntryID:    pm.TargetEntryID,
		MutationID: pm.ID,
		Message:    merr.UserMessage(),
		Err:        merr,
	})
	if errors.Is(merr, models.ErrBookingConflict) || errors.Is(merr, models.ErrBookingNotFound) {
		b.refreshAsync()
	}
}

// commit folds server-assigned fields of the confirmed subs into the cache,
// runs the commit hook and invalidates the tags the change affects.
func (b *Board) commit(ctx context.Context, pm *models.PendingMutation, subs []models.SubMutation, snaps []*models.ServiceBooking) {
	b.mu.Lock()
	b.releaseLocked(pm)
	current := b.generation == pm.Generation
	entry := pm.PreviousSnapshot.Clone()
	date := b.date
	if current {
		delete(b.pending, pm.TargetEntryID)
		if i, ok := b.index[pm.TargetEntryID]; ok {
			e := b.entries[i]
			for k, sub := range subs {
				if snap := snaps[k]; snap != nil {
					if part := e.Part(sub.Domain); part != nil {
						part.UpdatedAt = snap.UpdatedAt
						if snap.ResourceID != "" {
							part.ResourceID = snap.ResourceID
						}
					}
				}
			}
			entry = e.Clone()
		}
		for k, sub := range subs {
			if sub.Change.Action == models.ActionDelete {
				delete(b.bookings, sub.BookingID)
			} else if snap := snaps[k]; snap != nil {
				bk := *snap
				bk.Domain = sub.Domain
				b.bookings[sub.BookingID] = bk
			}
		}
	}
	b.mu.Unlock()

	if current {
		b.emit(Event{Type: EventMutationCommitted, Date: date, EntryID: pm.TargetEntryID, MutationID: pm.ID})
	}
	b.logger.Info("Mutation committed",
		zap.String("mutationId", pm.ID),
		zap.String("entryId", pm.TargetEntryID),
		zap.String("kind", string(pm.Kind)))

	if b.deps.Hook != nil {
		confirmed := *pm
		confirmed.SubMutations = subs
		if err := b.deps.Hook.AfterCommit(ctx, entry, confirmed); err != nil {
			b.logger.Warn("Commit hook failed", zap.String("mutationId", pm.ID), zap.Error(err))
		}
	}

	tags := commitTags(b.cfg.Location, pm.PreviousSnapshot.StartAt.In(b.cfg.Location).Format(models.DateLayout), subs)
	if b.deps.Publisher != nil {
		if err := b.deps.Publisher.Publish(ctx, tags...); err != nil {
			b.logger.Warn("Failed to publish invalidation", zap.Strings("tags", tags), zap.Error(err))
		}
	}
	// Status changes, deletes and bulk commits always reload; reschedules only
	// when configured.
	if current && (pm.Kind != models.MutationReschedule || b.cfg.RefreshOnCommit) {
		b.Invalidate(tags...)
	}
}

// busyLocked reports whether e, or any booking behind it, has a mutation in
// flight. Bookings dispatched before a day switch still count.
func (b *Board) busyLocked(e models.ScheduleEntry) bool {
	if _, ok := b.pending[e.ID]; ok {
		return true
	}
	for _, p := range e.Parts {
		if _, ok := b.inflight[p.BookingID]; ok {
			return true
		}
	}
	return false
}

func (b *Board) trackLocked(pm *models.PendingMutation) {
	b.pending[pm.TargetEntryID] = pm
	for _, p := range pm.PreviousSnapshot.Parts {
		b.inflight[p.BookingID] = pm.ID
	}
}

// releaseLocked drops the booking locks pm holds, whatever day is displayed.
func (b *Board) releaseLocked(pm *models.PendingMutation) {
	for _, p := range pm.PreviousSnapshot.Parts {
		if b.inflight[p.BookingID] == pm.ID {
			delete(b.inflight, p.BookingID)
		}
	}
}

// subMutationFor picks the constituent an intent addresses and builds its
// change. Merged entries need an explicit domain.
func subMutationFor(e models.ScheduleEntry, in Intent) (models.SubMutation, error) {
	domain := in.Domain
	if domain == "" {
		if e.Kind == models.KindBoth {
			return models.SubMutation{}, ErrConstituentRequired
		}
		domain = e.Parts[0].Domain
	}
	part := e.Part(domain)
	if part == nil {
		return models.SubMutation{}, fmt.Errorf("%w: no %s booking on entry %s", ErrEntryNotFound, domain, e.ID)
	}

	change := models.BookingChange{Action: in.Action}
	switch in.Action {
	case models.ActionApprove, models.ActionDecline, models.ActionCancel:
		change.Status, _ = in.Action.TargetStatus()
	case models.ActionReschedule:
		if in.StartAt.IsZero() || !in.StartAt.Before(in.EndAt) {
			return models.SubMutation{}, ErrInvalidReschedule
		}
		change.StartAt, change.EndAt = in.StartAt, in.EndAt
	case models.ActionDelete:
	default:
		return models.SubMutation{}, fmt.Errorf("unsupported action %q", in.Action)
	}
	return models.SubMutation{Domain: domain, BookingID: part.BookingID, Change: change}, nil
}

// applySub applies one constituent change to an entry. It reports true when
// the entry has no constituents left and must leave the board.
func applySub(e models.ScheduleEntry, sub models.SubMutation) (models.ScheduleEntry, bool) {
	switch sub.Change.Action {
	case models.ActionDelete:
		e.RemovePart(sub.Domain)
		if len(e.Parts) == 0 {
			return e, true
		}
	case models.ActionReschedule:
		if p := e.Part(sub.Domain); p != nil {
			p.StartAt, p.EndAt = sub.Change.StartAt, sub.Change.EndAt
		}
	default:
		if p := e.Part(sub.Domain); p != nil && sub.Change.Status != "" {
			p.Status = sub.Change.Status
		}
	}
	e.Recompute()
	return e, false
}
