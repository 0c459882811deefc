package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"pawboard/models"

	ical "github.com/arran4/golang-ical"
)

func mergedEntry() models.ScheduleEntry {
	day := func(h int) time.Time { return time.Date(2025, time.May, 1, h, 0, 0, 0, time.UTC) }
	e := models.ScheduleEntry{
		ID:           "G1",
		DisplayLabel: "Rex",
		ClientID:     "c1",
		Parts: []models.EntryPart{
			{Domain: models.DomainGrooming, BookingID: "G1", StartAt: day(10), EndAt: day(11), Status: models.StatusApproved},
			{Domain: models.DomainGarden, BookingID: "D1", StartAt: day(9), EndAt: day(17), Status: models.StatusPending},
		},
	}
	e.Recompute()
	return e
}

func TestDayCalendarOneEventPerPart(t *testing.T) {
	out := Serialize("2025-05-01", []models.ScheduleEntry{mergedEntry()}, time.UTC, time.Date(2025, time.May, 1, 6, 0, 0, 0, time.UTC))

	cal, err := ical.ParseCalendar(bytes.NewReader([]byte(out)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	events := cal.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	uids := map[string]string{}
	for _, ev := range events {
		uid := ev.GetProperty(ical.ComponentPropertyUniqueId).Value
		uids[uid] = ev.GetProperty(ical.ComponentPropertyStatus).Value
	}
	if uids["grooming-G1@pawboard"] != string(ical.ObjectStatusConfirmed) {
		t.Errorf("grooming status = %q", uids["grooming-G1@pawboard"])
	}
	if uids["garden-D1@pawboard"] != string(ical.ObjectStatusTentative) {
		t.Errorf("garden status = %q", uids["garden-D1@pawboard"])
	}
	if !strings.Contains(out, "Rex [garden]") {
		t.Errorf("merged summary missing domain:\n%s", out)
	}
}

func TestDayCalendarEmptyDay(t *testing.T) {
	cal := DayCalendar("2025-05-01", nil, nil, time.Now())
	if len(cal.Events()) != 0 {
		t.Errorf("expected no events")
	}
}
