package board

import (
	"errors"
	"fmt"

	"pawboard/models"
)

var (
	ErrNoDayLoaded         = errors.New("no day loaded on the board")
	ErrEntryNotFound       = errors.New("schedule entry not found")
	ErrMutationInFlight    = errors.New("a change for this entry is still in flight")
	ErrConstituentRequired = errors.New("merged visit: choose grooming or garden")
	ErrInvalidReschedule   = errors.New("reschedule needs a start before its end")
	ErrBulkAction          = errors.New("bulk actions go through Bulk")
	ErrNotBulk             = errors.New("action is not a bulk action")
	ErrInteractionActive   = errors.New("another drag or resize is in progress")
	ErrNoInteraction       = errors.New("no drag or resize in progress")
)

// MutationError is returned for a change the remote store refused.
type MutationError struct {
	EntryID    string
	MutationID string
	Domain     models.Domain
	BookingID  string
	Action     models.Action
	Err        error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s %s booking %s: %v", e.Action, e.Domain, e.BookingID, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// UserMessage phrases the failure for the person at the board.
func (e *MutationError) UserMessage() string {
	what := fmt.Sprintf("the %s booking", e.Domain)
	switch {
	case errors.Is(e.Err, models.ErrBookingNotFound):
		return fmt.Sprintf("Could not %s %s: it no longer exists.", verb(e.Action), what)
	case errors.Is(e.Err, models.ErrBookingConflict):
		return fmt.Sprintf("Could not %s %s: it was changed elsewhere. The board will reload.", verb(e.Action), what)
	case errors.Is(e.Err, models.ErrChangeRejected):
		return fmt.Sprintf("Could not %s %s: %v", verb(e.Action), what, e.Err)
	}
	return fmt.Sprintf("Could not %s %s. Your change was undone, please try again.", verb(e.Action), what)
}

func verb(a models.Action) string {
	switch a.Single() {
	case models.ActionApprove:
		return "approve"
	case models.ActionDecline:
		return "decline"
	case models.ActionCancel:
		return "cancel"
	case models.ActionDelete:
		return "delete"
	case models.ActionReschedule:
		return "reschedule"
	}
	return string(a)
}
