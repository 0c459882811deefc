package merge

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"pawboard/models"

	"go.uber.org/zap"
)

// Options controls how a day's bookings are correlated.
type Options struct {
	// Location is the facility timezone used to derive service dates.
	Location *time.Location
	Logger   *zap.Logger
}

// Rejection records a booking that could not be placed on the board.
type Rejection struct {
	Domain    models.Domain `json:"domain"`
	BookingID string        `json:"bookingId"`
	Reason    string        `json:"reason"`
}

// Result is the merged, ordered view of one day.
type Result struct {
	Entries  []models.ScheduleEntry `json:"entries"`
	Rejected []Rejection            `json:"rejected,omitempty"`
}

type visitKey struct {
	subject string
	date    string
}

// Merge correlates grooming and garden bookings into schedule entries. A
// grooming and a garden booking for the same subject on the same service date
// become one "both" entry; extra bookings of a kind for that subject/date stay
// singleton. Malformed bookings are dropped and logged, never fatal.
func Merge(grooming, garden []models.ServiceBooking, opts Options) Result {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	var res Result
	groomOK := accept(grooming, models.DomainGrooming, &res, logger)
	gardenOK := accept(garden, models.DomainGarden, &res, logger)

	groomByKey := make(map[visitKey][]models.ServiceBooking)
	gardenByKey := make(map[visitKey][]models.ServiceBooking)
	var singles []models.ServiceBooking

	for _, b := range groomOK {
		if !b.HasSubject() {
			singles = append(singles, b)
			continue
		}
		k := visitKey{subject: strings.TrimSpace(b.SubjectID), date: b.ServiceDate(loc)}
		groomByKey[k] = append(groomByKey[k], b)
	}
	for _, b := range gardenOK {
		if !b.HasSubject() {
			singles = append(singles, b)
			continue
		}
		k := visitKey{subject: strings.TrimSpace(b.SubjectID), date: b.ServiceDate(loc)}
		gardenByKey[k] = append(gardenByKey[k], b)
	}

	entries := make([]models.ScheduleEntry, 0, len(groomOK)+len(gardenOK))
	for k, gs := range groomByKey {
		sortBookings(gs)
		ds := gardenByKey[k]
		if len(ds) == 0 {
			for _, g := range gs {
				entries = append(entries, single(g))
			}
			continue
		}
		sortBookings(ds)
		entries = append(entries, Combine(gs[0], ds[0]))
		for _, g := range gs[1:] {
			entries = append(entries, single(g))
		}
		for _, d := range ds[1:] {
			entries = append(entries, single(d))
		}
		delete(gardenByKey, k)
	}
	for _, ds := range gardenByKey {
		for _, d := range ds {
			entries = append(entries, single(d))
		}
	}
	for _, b := range singles {
		entries = append(entries, single(b))
	}

	SortEntries(entries)
	res.Entries = entries
	return res
}

func accept(in []models.ServiceBooking, domain models.Domain, res *Result, logger *zap.Logger) []models.ServiceBooking {
	out := make([]models.ServiceBooking, 0, len(in))
	for _, b := range in {
		b.Domain = domain
		if err := b.Validate(); err != nil {
			res.Rejected = append(res.Rejected, Rejection{Domain: domain, BookingID: b.ID, Reason: err.Error()})
			logger.Warn("merge: excluding malformed booking",
				zap.String("domain", string(domain)),
				zap.String("bookingId", b.ID),
				zap.Error(err),
			)
			continue
		}
		out = append(out, b)
	}
	return out
}

// Combine builds the "both" entry for a correlated grooming/garden pair. The
// grooming id is the entry's public id.
func Combine(g, d models.ServiceBooking) models.ScheduleEntry {
	g.Domain, d.Domain = models.DomainGrooming, models.DomainGarden
	e := models.ScheduleEntry{
		ID:        CompositeID(g.ID, d.ID),
		SubjectID: g.SubjectID,
		ClientID:  firstNonEmpty(g.ClientID, d.ClientID),
		Parts:     []models.EntryPart{models.PartFromBooking(g), models.PartFromBooking(d)},
	}
	e.Recompute()
	e.DisplayLabel = label(firstNonEmpty(g.SubjectName, d.SubjectName, g.SubjectID), models.KindBoth)
	return e
}

func single(b models.ServiceBooking) models.ScheduleEntry {
	e := models.ScheduleEntry{
		ID:        b.ID,
		SubjectID: b.SubjectID,
		ClientID:  b.ClientID,
		Parts:     []models.EntryPart{models.PartFromBooking(b)},
	}
	e.Recompute()
	e.DisplayLabel = label(firstNonEmpty(b.SubjectName, b.SubjectID, b.ID), e.Kind)
	return e
}

func label(subject string, kind models.EntryKind) string {
	switch kind {
	case models.KindBoth:
		return fmt.Sprintf("%s (grooming + garden)", subject)
	case models.KindGarden:
		return fmt.Sprintf("%s (garden)", subject)
	}
	return fmt.Sprintf("%s (grooming)", subject)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func sortBookings(bs []models.ServiceBooking) {
	sort.SliceStable(bs, func(i, j int) bool {
		if !bs[i].StartAt.Equal(bs[j].StartAt) {
			return bs[i].StartAt.Before(bs[j].StartAt)
		}
		if !bs[i].EndAt.Equal(bs[j].EndAt) {
			return bs[i].EndAt.Before(bs[j].EndAt)
		}
		return bs[i].ID < bs[j].ID
	})
}

// SortEntries orders entries by start, then end, then id.
func SortEntries(es []models.ScheduleEntry) {
	sort.SliceStable(es, func(i, j int) bool {
		if !es[i].StartAt.Equal(es[j].StartAt) {
			return es[i].StartAt.Before(es[j].StartAt)
		}
		if !es[i].EndAt.Equal(es[j].EndAt) {
			return es[i].EndAt.Before(es[j].EndAt)
		}
		return es[i].ID < es[j].ID
	})
}

// Index maps booking ids to bookings for both domains of a day.
func Index(day models.DaySchedule) map[string]models.ServiceBooking {
	idx := make(map[string]models.ServiceBooking, len(day.Grooming)+len(day.Garden))
	for _, b := range day.Grooming {
		b.Domain = models.DomainGrooming
		idx[b.ID] = b
	}
	for _, b := range day.Garden {
		b.Domain = models.DomainGarden
		idx[b.ID] = b
	}
	return idx
}
