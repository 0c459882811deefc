package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pawboard/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type BulkOutcome string

const (
	OutcomeFullSuccess    BulkOutcome = "full_success"
	OutcomePartialFailure BulkOutcome = "partial_failure"
	OutcomeFullFailure    BulkOutcome = "full_failure"
)

// BulkResult is one of FullSuccess, PartialFailure or FullFailure.
type BulkResult interface {
	Outcome() BulkOutcome
	Message() string
	isBulkResult()
}

// SideResult is the settle result of one constituent.
type SideResult struct {
	Domain    models.Domain `json:"domain"`
	BookingID string        `json:"bookingId"`
	Err       error         `json:"-"`
}

type FullSuccess struct {
	EntryID   string
	Action    models.Action
	Succeeded []SideResult
}

// PartialFailure leaves the succeeded side committed. Nothing is compensated;
// the failed side has to be retried by hand.
type PartialFailure struct {
	EntryID   string
	Action    models.Action
	Succeeded []SideResult
	Failed    []SideResult
}

type FullFailure struct {
	EntryID string
	Action  models.Action
	Failed  []SideResult
}

func (FullSuccess) Outcome() BulkOutcome    { return OutcomeFullSuccess }
func (PartialFailure) Outcome() BulkOutcome { return OutcomePartialFailure }
func (FullFailure) Outcome() BulkOutcome    { return OutcomeFullFailure }

func (FullSuccess) isBulkResult()    {}
func (PartialFailure) isBulkResult() {}
func (FullFailure) isBulkResult()    {}

func (r FullSuccess) Message() string {
	return fmt.Sprintf("Bulk %s succeeded for %s.", verb(r.Action), domainList(r.Succeeded))
}

func (r PartialFailure) Message() string {
	return fmt.Sprintf("Bulk %s succeeded for %s but failed for %s (%v). Retry %s on its own.",
		verb(r.Action), domainList(r.Succeeded), domainList(r.Failed), r.Failed[0].Err, domainList(r.Failed))
}

func (r FullFailure) Message() string {
	return fmt.Sprintf("Could not %s %s (%v). Nothing was changed.", verb(r.Action), domainList(r.Failed), r.Failed[0].Err)
}

func domainList(sides []SideResult) string {
	names := make([]string, len(sides))
	for i, s := range sides {
		names[i] = string(s.Domain)
	}
	return strings.Join(names, " and ")
}

// Bulk applies a bulk action to every constituent of an entry. The calls run
// concurrently and the cache is only patched once both have settled, with the
// sides that succeeded. The entry is locked against other mutations meanwhile.
func (b *Board) Bulk(ctx context.Context, in BulkIntent) (BulkResult, error) {
	if !in.Action.IsBulk() {
		return nil, ErrNotBulk
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
	single := in.Action.Single()
	subs := make([]models.SubMutation, 0, len(current.Parts))
	for _, p := range current.Parts {
		change := models.BookingChange{Action: single}
		change.Status, _ = single.TargetStatus()
		subs = append(subs, models.SubMutation{Domain: p.Domain, BookingID: p.BookingID, Change: change})
	}
	pm := &models.PendingMutation{
		ID:               uuid.New().String(),
		TargetEntryID:    current.ID,
		PreviousSnapshot: current.Clone(),
		PreviousIndex:    i,
		Kind:             in.Action.MutationKind(),
		SubMutations:     subs,
		Generation:       b.generation,
		CreatedAt:        time.Now(),
	}
	b.trackLocked(pm)
	b.mu.Unlock()

	remote := context.WithoutCancel(ctx)
	snaps := make([]*models.ServiceBooking, len(subs))
	errs := make([]error, len(subs))
	var g errgroup.Group
	for k, sub := range subs {
		k, sub := k, sub
		g.Go(func() error {
			snaps[k], errs[k] = b.deps.Mutator.Apply(remote, sub.Domain, sub.BookingID, sub.Change)
			return nil
		})
	}
	_ = g.Wait()

	var (
		succeeded, failed []SideResult
		okSubs            []models.SubMutation
		okSnaps           []*models.ServiceBooking
	)
	for k, sub := range subs {
		side := SideResult{Domain: sub.Domain, BookingID: sub.BookingID, Err: errs[k]}
		if errs[k] != nil {
			failed = append(failed, side)
			b.logger.Error("Bulk side failed",
				zap.String("mutationId", pm.ID),
				zap.String("domain", string(sub.Domain)),
				zap.String("bookingId", sub.BookingID),
				zap.Error(errs[k]))
			continue
		}
		succeeded = append(succeeded, side)
		okSubs = append(okSubs, sub)
		okSnaps = append(okSnaps, snaps[k])
	}

	var result BulkResult
	switch {
	case len(failed) == 0:
		result = FullSuccess{EntryID: pm.TargetEntryID, Action: in.Action, Succeeded: succeeded}
	case len(succeeded) == 0:
		result = FullFailure{EntryID: pm.TargetEntryID, Action: in.Action, Failed: failed}
	default:
		result = PartialFailure{EntryID: pm.TargetEntryID, Action: in.Action, Succeeded: succeeded, Failed: failed}
	}

	b.mu.Lock()
	if pm.Generation == b.generation {
		if j, ok := b.index[pm.TargetEntryID]; ok && len(okSubs) > 0 {
			e := b.entries[j].Clone()
			removed := false
			for _, sub := range okSubs {
				e, removed = applySub(e, sub)
			}
			if removed {
				b.removeLocked(e.ID)
			} else {
				b.replaceLocked(e)
			}
		}
	}
	date := b.date
	b.mu.Unlock()

	if len(okSubs) > 0 {
		b.commit(remote, pm, okSubs, okSnaps)
	} else {
		b.mu.Lock()
		b.releaseLocked(pm)
		if pm.Generation == b.generation {
			delete(b.pending, pm.TargetEntryID)
		}
		b.mu.Unlock()
	}
	b.emit(Event{
		Type:       EventBulkSettled,
		Date:       date,
		EntryID:    pm.TargetEntryID,
		MutationID: pm.ID,
		Message:    result.Message(),
		Bulk:       result,
	})
	return result, nil
}
