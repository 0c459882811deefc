package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Domain identifies which of the two independently stored services a booking belongs to.
type Domain string

const (
	DomainGrooming Domain = "grooming"
	DomainGarden   Domain = "garden"
)

// Domains lists both service domains in their canonical order (grooming is primary).
var Domains = []Domain{DomainGrooming, DomainGarden}

func ParseDomain(raw string) (Domain, error) {
	switch Domain(strings.ToLower(strings.TrimSpace(raw))) {
	case DomainGrooming:
		return DomainGrooming, nil
	case DomainGarden:
		return DomainGarden, nil
	case "":
		return "", nil
	}
	return "", fmt.Errorf("unknown service domain %q", raw)
}

// BookingStatus is the closed set of statuses a booking can hold.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusApproved  BookingStatus = "approved"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

// ErrUnknownStatus marks a stored status outside the closed enum. It is a data quality error.
var ErrUnknownStatus = errors.New("unknown booking status")

// ParseBookingStatus maps a stored status string onto the enum. "scheduled" is
// the legacy spelling of approved.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return StatusPending, nil
	case "approved", "scheduled":
		return StatusApproved, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	case "completed":
		return StatusCompleted, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// ServiceBooking is a single persisted reservation in one service domain.
type ServiceBooking struct {
	ID          string        `bson:"id" json:"id" db:"id"`
	Domain      Domain        `bson:"domain" json:"domain" db:"-"`
	ClientID    string        `bson:"client_id" json:"clientId" db:"client_id"`
	ClientName  string        `bson:"client_name,omitempty" json:"clientName,omitempty" db:"client_name"`
	SubjectID   string        `bson:"subject_id" json:"subjectId" db:"subject_id"`                        // the animal being serviced
	SubjectName string        `bson:"subject_name,omitempty" json:"subjectName,omitempty" db:"subject_name"` // display only
	StartAt     time.Time     `bson:"start_at" json:"startAt" db:"start_at"`
	EndAt       time.Time     `bson:"end_at" json:"endAt" db:"end_at"` // exclusive
	Status      BookingStatus `bson:"status" json:"status" db:"status"`
	ResourceID  string        `bson:"resource_id,omitempty" json:"resourceId,omitempty" db:"-"` // grooming station
	Notes       string        `bson:"notes,omitempty" json:"notes,omitempty" db:"notes"`
	AddOns      []string      `bson:"add_ons,omitempty" json:"addOns,omitempty" db:"-"`
	UpdatedAt   time.Time     `bson:"updated_at" json:"updatedAt" db:"updated_at"`
}

// Validate reports whether the booking can be placed on the board at all.
func (b ServiceBooking) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return errors.New("booking id is empty")
	}
	if b.StartAt.IsZero() || b.EndAt.IsZero() {
		return fmt.Errorf("booking %s has no time range", b.ID)
	}
	if !b.EndAt.After(b.StartAt) {
		return fmt.Errorf("booking %s ends before it starts", b.ID)
	}
	if !b.Status.Valid() {
		return fmt.Errorf("booking %s: %w: %q", b.ID, ErrUnknownStatus, string(b.Status))
	}
	return nil
}

// HasSubject reports whether the subject reference can be trusted for correlation.
func (b ServiceBooking) HasSubject() bool {
	return strings.TrimSpace(b.SubjectID) != ""
}

// ServiceDate returns the calendar day of the booking in the facility location.
func (b ServiceBooking) ServiceDate(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return b.StartAt.In(loc).Format(DateLayout)
}

// DateLayout is the board's calendar day format.
const DateLayout = "2006-01-02"

// DaySchedule is the raw result of a day-scoped fetch across both domains.
type DaySchedule struct {
	Date     string           `json:"date"`
	Grooming []ServiceBooking `json:"grooming"`
	Garden   []ServiceBooking `json:"garden"`
}

// BookingChange is the per-booking change sent to a remote store.
type BookingChange struct {
	Action  Action        `json:"action"`
	Status  BookingStatus `json:"status,omitempty"`
	StartAt time.Time     `json:"startAt,omitempty"`
	EndAt   time.Time     `json:"endAt,omitempty"`
}
