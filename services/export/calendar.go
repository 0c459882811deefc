package export

import (
	"fmt"
	"strings"
	"time"

	"pawboard/models"

	ical "github.com/arran4/golang-ical"
)

const productID = "-//pawboard//day board//EN"

// DayCalendar renders the entries of one day as a VCALENDAR. Every constituent
// of a merged visit becomes its own VEVENT so calendar clients show the
// grooming and garden halves with their own times and status.
func DayCalendar(date string, entries []models.ScheduleEntry, loc *time.Location, stamp time.Time) *ical.Calendar {
	if loc == nil {
		loc = time.Local
	}
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Board " + date)
	cal.SetXWRTimezone(loc.String())

	for _, e := range entries {
		for _, p := range e.Parts {
			ev := cal.AddEvent(eventUID(p))
			ev.SetDtStampTime(stamp.UTC())
			ev.SetStartAt(p.StartAt.In(loc))
			ev.SetEndAt(p.EndAt.In(loc))
			ev.SetSummary(summary(e, p))
			ev.SetDescription(description(e, p))
			ev.SetStatus(objectStatus(p.Status))
			if !p.UpdatedAt.IsZero() {
				ev.SetModifiedAt(p.UpdatedAt.UTC())
			}
			if p.ResourceID != "" {
				ev.SetLocation(p.ResourceID)
			}
		}
	}
	return cal
}

// Serialize is DayCalendar rendered to text/calendar.
func Serialize(date string, entries []models.ScheduleEntry, loc *time.Location, stamp time.Time) string {
	return DayCalendar(date, entries, loc, stamp).Serialize()
}

func eventUID(p models.EntryPart) string {
	return fmt.Sprintf("%s-%s@pawboard", p.Domain, p.BookingID)
}

func summary(e models.ScheduleEntry, p models.EntryPart) string {
	if e.Kind == models.KindBoth {
		return fmt.Sprintf("%s [%s]", e.DisplayLabel, p.Domain)
	}
	return e.DisplayLabel
}

func description(e models.ScheduleEntry, p models.EntryPart) string {
	lines := []string{
		"Entry: " + e.ID,
		"Booking: " + p.BookingID,
		"Status: " + string(p.Status),
	}
	if e.ClientID != "" {
		lines = append(lines, "Client: "+e.ClientID)
	}
	return strings.Join(lines, "\n")
}

func objectStatus(s models.BookingStatus) ical.ObjectStatus {
	switch s {
	case models.StatusApproved, models.StatusCompleted:
		return ical.ObjectStatusConfirmed
	case models.StatusCancelled:
		return ical.ObjectStatusCancelled
	default:
		return ical.ObjectStatusTentative
	}
}
