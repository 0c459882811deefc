package models

import "errors"

// Errors remote stores wrap so the board can phrase failures for users.
var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrBookingConflict = errors.New("booking was changed by someone else")
	ErrChangeRejected  = errors.New("change rejected by the booking store")
)
