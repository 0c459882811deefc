package board

import (
	"context"
	"fmt"
	"time"

	"pawboard/models"
	"pawboard/services/timeline"
)

type InteractionMode string

const (
	ModeResize InteractionMode = "resize"
	ModeMove   InteractionMode = "move"
)

func ParseInteractionMode(raw string) (InteractionMode, error) {
	switch m := InteractionMode(raw); m {
	case ModeResize, ModeMove:
		return m, nil
	}
	return "", fmt.Errorf("unknown interaction mode %q", raw)
}

// Interaction is an in-progress drag or resize. Shadow is the preview of the
// constituent being dragged; the cached entry is left alone until commit.
type Interaction struct {
	EntryID string          `json:"entryId"`
	Domain  models.Domain   `json:"domain"`
	Mode    InteractionMode `json:"mode"`
	Shadow  timeline.Shadow `json:"shadow"`
	Started time.Time       `json:"started"`

	entryShadow timeline.Shadow
}

// BeginInteraction starts a drag or resize of one constituent. Only one can be
// active per board, and never on an entry with a mutation in flight.
func (b *Board) BeginInteraction(entryID string, domain models.Domain, mode InteractionMode) (Interaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.interaction != nil {
		return Interaction{}, ErrInteractionActive
	}
	i, ok := b.resolveLocked(entryID)
	if !ok {
		return Interaction{}, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}
	e := b.entries[i]
	if b.busyLocked(e) {
		return Interaction{}, ErrMutationInFlight
	}
	if domain == "" {
		if e.Kind == models.KindBoth {
			return Interaction{}, ErrConstituentRequired
		}
		domain = e.Parts[0].Domain
	}
	part := e.Part(domain)
	if part == nil {
		return Interaction{}, fmt.Errorf("%w: no %s booking on entry %s", ErrEntryNotFound, domain, e.ID)
	}

	it := &Interaction{
		EntryID:     e.ID,
		Domain:      domain,
		Mode:        mode,
		Shadow:      timeline.Shadow{EntryID: e.ID, StartAt: part.StartAt, EndAt: part.EndAt},
		Started:     time.Now(),
		entryShadow: timeline.Shadow{EntryID: e.ID, StartAt: e.StartAt, EndAt: e.EndAt},
	}
	b.interaction = it
	b.emit(Event{Type: EventInteraction, Date: b.date, EntryID: e.ID})
	return *it, nil
}

func (b *Board) BeginResize(entryID string, domain models.Domain) (Interaction, error) {
	return b.BeginInteraction(entryID, domain, ModeResize)
}

func (b *Board) BeginMove(entryID string, domain models.Domain) (Interaction, error) {
	return b.BeginInteraction(entryID, domain, ModeMove)
}

// Track moves the preview to follow the pointer and returns the previewed
// layout. For a resize the pointer is the new end, for a move the new start.
func (b *Board) Track(pointer time.Time) ([]models.Placement, error) {
	b.mu.Lock()
	it := b.interaction
	if it == nil {
		b.mu.Unlock()
		return nil, ErrNoInteraction
	}
	i, ok := b.index[it.EntryID]
	if !ok {
		b.interaction = nil
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, it.EntryID)
	}
	e := b.entries[i]
	part := e.Part(it.Domain)
	if part == nil {
		b.interaction = nil
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: no %s booking on entry %s", ErrEntryNotFound, it.Domain, e.ID)
	}

	// the shadow is computed on the dragged constituent alone
	single := models.ScheduleEntry{ID: e.ID, StartAt: part.StartAt, EndAt: part.EndAt}
	if it.Mode == ModeResize {
		it.Shadow = timeline.ResizeShadow(single, pointer, b.layout)
	} else {
		it.Shadow = timeline.MoveShadow(single, pointer, b.layout)
	}
	preview := e.Clone()
	if p := preview.Part(it.Domain); p != nil {
		p.StartAt, p.EndAt = it.Shadow.StartAt, it.Shadow.EndAt
	}
	preview.Recompute()
	it.entryShadow = timeline.Shadow{EntryID: e.ID, StartAt: preview.StartAt, EndAt: preview.EndAt}
	b.mu.Unlock()

	return b.Placements(), nil
}

// TrackOffset is Track with a pixel offset from the top of the day.
func (b *Board) TrackOffset(px float64) ([]models.Placement, error) {
	return b.Track(b.Layout().TimeAt(px))
}

// Interaction returns the active drag or resize, if any.
func (b *Board) Interaction() (Interaction, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.interaction == nil {
		return Interaction{}, false
	}
	return *b.interaction, true
}

// CancelInteraction drops the preview without any remote call.
func (b *Board) CancelInteraction() error {
	b.mu.Lock()
	it := b.interaction
	b.interaction = nil
	date := b.date
	b.mu.Unlock()
	if it == nil {
		return ErrNoInteraction
	}
	b.emit(Event{Type: EventInteraction, Date: date, EntryID: it.EntryID})
	return nil
}

// CommitInteraction turns the preview into a reschedule. A preview equal to
// the current interval ends the interaction with no change and a nil ticket.
func (b *Board) CommitInteraction(ctx context.Context) (*Ticket, error) {
	b.mu.Lock()
	it := b.interaction
	b.interaction = nil
	var unchanged bool
	if it != nil {
		if i, ok := b.index[it.EntryID]; ok {
			if p := b.entries[i].Part(it.Domain); p != nil {
				unchanged = p.StartAt.Equal(it.Shadow.StartAt) && p.EndAt.Equal(it.Shadow.EndAt)
			}
		}
	}
	b.mu.Unlock()

	if it == nil {
		return nil, ErrNoInteraction
	}
	if unchanged {
		return nil, nil
	}
	return b.Dispatch(ctx, Intent{
		EntryID: it.EntryID,
		Action:  models.ActionReschedule,
		Domain:  it.Domain,
		StartAt: it.Shadow.StartAt,
		EndAt:   it.Shadow.EndAt,
	})
}
