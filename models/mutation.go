package models

import (
	"fmt"
	"strings"
	"time"
)

// Action is a user intent dispatched from the board.
type Action string

const (
	ActionApprove    Action = "approve"
	ActionDecline    Action = "decline"
	ActionCancel     Action = "cancel"
	ActionDelete     Action = "delete"
	ActionReschedule Action = "reschedule"

	ActionBulkApprove Action = "bulk-approve"
	ActionBulkCancel  Action = "bulk-cancel"
	ActionBulkDelete  Action = "bulk-delete"
)

func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	switch a {
	case ActionApprove, ActionDecline, ActionCancel, ActionDelete, ActionReschedule,
		ActionBulkApprove, ActionBulkCancel, ActionBulkDelete:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", raw)
}

// IsBulk reports whether the action applies to every constituent of an entry.
func (a Action) IsBulk() bool {
	switch a {
	case ActionBulkApprove, ActionBulkCancel, ActionBulkDelete:
		return true
	}
	return false
}

// Single maps a bulk action onto the per-booking action it fans out to.
func (a Action) Single() Action {
	switch a {
	case ActionBulkApprove:
		return ActionApprove
	case ActionBulkCancel:
		return ActionCancel
	case ActionBulkDelete:
		return ActionDelete
	}
	return a
}

// TargetStatus is the status a status-changing action writes.
func (a Action) TargetStatus() (BookingStatus, bool) {
	switch a.Single() {
	case ActionApprove:
		return StatusApproved, true
	case ActionDecline, ActionCancel:
		return StatusCancelled, true
	}
	return "", false
}

// MutationKind classifies a pending mutation for rollback handling.
type MutationKind string

const (
	MutationStatusChange MutationKind = "status-change"
	MutationReschedule   MutationKind = "reschedule"
	MutationDelete       MutationKind = "delete"
)

func (a Action) MutationKind() MutationKind {
	switch a.Single() {
	case ActionDelete:
		return MutationDelete
	case ActionReschedule:
		return MutationReschedule
	}
	return MutationStatusChange
}

// SubMutation is the change addressed to one constituent booking.
type SubMutation struct {
	Domain    Domain        `json:"domain"`
	BookingID string        `json:"bookingId"`
	Change    BookingChange `json:"change"`
}

// PendingMutation is an in-flight optimistic change. Only the mutation
// coordinator holds these.
type PendingMutation struct {
	ID               string        `json:"id"`
	TargetEntryID    string        `json:"targetEntryId"`
	PreviousSnapshot ScheduleEntry `json:"previousSnapshot"`
	PreviousIndex    int           `json:"previousIndex"`
	Kind             MutationKind  `json:"kind"`
	SubMutations     []SubMutation `json:"subMutations"`
	Generation       uint64        `json:"generation"`
	CreatedAt        time.Time     `json:"createdAt"`
}
