package models

import "time"

// EntryKind tells whether an entry stands for one booking or a merged visit.
type EntryKind string

const (
	KindGrooming EntryKind = "grooming"
	KindGarden   EntryKind = "garden"
	KindBoth     EntryKind = "both"
)

// EntryPart is one constituent booking of a schedule entry.
type EntryPart struct {
	Domain     Domain        `json:"domain"`
	BookingID  string        `json:"bookingId"`
	StartAt    time.Time     `json:"startAt"`
	EndAt      time.Time     `json:"endAt"`
	Status     BookingStatus `json:"status"`
	ResourceID string        `json:"resourceId,omitempty"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// ScheduleEntry is the render-ready projection of one or two bookings. It is
// recomputed from bookings on every refresh and never persisted.
type ScheduleEntry struct {
	ID                string        `json:"id"`
	Kind              EntryKind     `json:"kind"`
	StartAt           time.Time     `json:"startAt"`
	EndAt             time.Time     `json:"endAt"`
	GroomingBookingID string        `json:"groomingBookingId,omitempty"`
	GardenBookingID   string        `json:"gardenBookingId,omitempty"`
	Status            BookingStatus `json:"status"`
	DisplayLabel      string        `json:"displayLabel"`
	SubjectID         string        `json:"subjectId,omitempty"`
	ClientID          string        `json:"clientId,omitempty"`
	Parts             []EntryPart   `json:"parts"` // grooming first
}

// PartFromBooking copies the fields of a booking an entry keeps per constituent.
func PartFromBooking(b ServiceBooking) EntryPart {
	return EntryPart{
		Domain:     b.Domain,
		BookingID:  b.ID,
		StartAt:    b.StartAt,
		EndAt:      b.EndAt,
		Status:     b.Status,
		ResourceID: b.ResourceID,
		UpdatedAt:  b.UpdatedAt,
	}
}

// Part returns the constituent of the given domain, or nil.
func (e *ScheduleEntry) Part(d Domain) *EntryPart {
	for i := range e.Parts {
		if e.Parts[i].Domain == d {
			return &e.Parts[i]
		}
	}
	return nil
}

// RemovePart drops the constituent of the given domain and reports whether it existed.
func (e *ScheduleEntry) RemovePart(d Domain) bool {
	for i := range e.Parts {
		if e.Parts[i].Domain == d {
			e.Parts = append(e.Parts[:i:i], e.Parts[i+1:]...)
			return true
		}
	}
	return false
}

// Recompute derives kind, constituent ids, the union interval and the aggregate
// status from Parts. ID is left alone so an entry keeps its identity while a
// mutation is in flight.
func (e *ScheduleEntry) Recompute() {
	e.GroomingBookingID, e.GardenBookingID = "", ""
	for _, p := range e.Parts {
		switch p.Domain {
		case DomainGrooming:
			e.GroomingBookingID = p.BookingID
		case DomainGarden:
			e.GardenBookingID = p.BookingID
		}
	}
	switch {
	case e.GroomingBookingID != "" && e.GardenBookingID != "":
		e.Kind = KindBoth
	case e.GardenBookingID != "":
		e.Kind = KindGarden
	default:
		e.Kind = KindGrooming
	}
	if len(e.Parts) == 0 {
		return
	}
	e.StartAt, e.EndAt = e.Parts[0].StartAt, e.Parts[0].EndAt
	for _, p := range e.Parts[1:] {
		if p.StartAt.Before(e.StartAt) {
			e.StartAt = p.StartAt
		}
		if p.EndAt.After(e.EndAt) {
			e.EndAt = p.EndAt
		}
	}
	e.Status = AggregateStatus(e.Parts)
}

// AggregateStatus folds constituent statuses: cancelled if any part is
// cancelled, approved only once every part is approved (or done), completed
// once every part is completed, pending otherwise.
func AggregateStatus(parts []EntryPart) BookingStatus {
	if len(parts) == 0 {
		return StatusPending
	}
	if len(parts) == 1 {
		return parts[0].Status
	}
	allDone, allConfirmed := true, true
	for _, p := range parts {
		switch p.Status {
		case StatusCancelled:
			return StatusCancelled
		case StatusCompleted:
		case StatusApproved:
			allDone = false
		default:
			allDone, allConfirmed = false, false
		}
	}
	switch {
	case allDone:
		return StatusCompleted
	case allConfirmed:
		return StatusApproved
	}
	return StatusPending
}

// Clone returns a deep copy safe to keep as a rollback snapshot.
func (e ScheduleEntry) Clone() ScheduleEntry {
	out := e
	if e.Parts != nil {
		out.Parts = make([]EntryPart, len(e.Parts))
		copy(out.Parts, e.Parts)
	}
	return out
}

// BookingIDs lists constituent booking ids in part order.
func (e ScheduleEntry) BookingIDs() []string {
	ids := make([]string, 0, len(e.Parts))
	for _, p := range e.Parts {
		ids = append(ids, p.BookingID)
	}
	return ids
}

// TimelineSlot is the view-only placement of an entry on the vertical timeline.
type TimelineSlot struct {
	TopOffsetPx float64 `json:"topOffsetPx"`
	HeightPx    float64 `json:"heightPx"`
	Lane        int     `json:"lane"`
	LaneCount   int     `json:"laneCount"`
}

// Placement pairs an entry with its slot for one render.
type Placement struct {
	Entry ScheduleEntry `json:"entry"`
	Slot  TimelineSlot  `json:"slot"`
}
