package timeline

import (
	"math"
	"sort"
	"time"

	"pawboard/models"
)

// Layout places entries on the vertical timeline and assigns overlap lanes.
//
// Entries are visited by start (then end, then id). Each takes the lowest lane
// whose previous occupant has ended at or before its start, opening a new lane
// otherwise. LaneCount is shared by every entry of a connected overlap cluster
// and equals the highest lane used in it plus one.
func Layout(entries []models.ScheduleEntry, cfg Config) []models.Placement {
	order := make([]models.ScheduleEntry, len(entries))
	copy(order, entries)
	sortForLayout(order)

	placements := make([]models.Placement, len(order))
	var (
		laneEnds     []time.Time
		clusterStart int
		clusterEnd   time.Time
		maxLane      = -1
	)
	flush := func(upto int) {
		for i := clusterStart; i < upto; i++ {
			placements[i].Slot.LaneCount = maxLane + 1
		}
	}

	for i, e := range order {
		if i > 0 && !e.StartAt.Before(clusterEnd) {
			flush(i)
			clusterStart = i
			maxLane = -1
			laneEnds = laneEnds[:0]
		}

		lane := -1
		for l, end := range laneEnds {
			if !end.After(e.StartAt) {
				lane = l
				break
			}
		}
		if lane < 0 {
			lane = len(laneEnds)
			laneEnds = append(laneEnds, e.EndAt)
		} else {
			laneEnds[lane] = e.EndAt
		}
		if lane > maxLane {
			maxLane = lane
		}
		if i == clusterStart || e.EndAt.After(clusterEnd) {
			clusterEnd = e.EndAt
		}

		placements[i] = models.Placement{Entry: e, Slot: slotFor(e.StartAt, e.EndAt, cfg, lane)}
	}
	flush(len(order))
	return placements
}

// LayoutWithShadow lays out the day with one entry's interval replaced by a
// preview interval. The entries slice itself is not modified.
func LayoutWithShadow(entries []models.ScheduleEntry, shadow Shadow, cfg Config) []models.Placement {
	preview := make([]models.ScheduleEntry, len(entries))
	copy(preview, entries)
	for i := range preview {
		if preview[i].ID == shadow.EntryID {
			preview[i].StartAt = shadow.StartAt
			preview[i].EndAt = shadow.EndAt
		}
	}
	return Layout(preview, cfg)
}

func slotFor(start, end time.Time, cfg Config, lane int) models.TimelineSlot {
	top := cfg.OffsetFor(start)
	bottom := cfg.OffsetFor(end)
	if !cfg.DayStart.IsZero() {
		top = math.Max(0, top)
	}
	if !cfg.DayEnd.IsZero() {
		limit := cfg.DayHeightPx()
		top = math.Min(top, limit)
		bottom = math.Min(bottom, limit)
	}
	return models.TimelineSlot{
		TopOffsetPx: top,
		HeightPx:    math.Max(cfg.minRowHeight(), bottom-top),
		Lane:        lane,
	}
}

func sortForLayout(es []models.ScheduleEntry) {
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

// MaxDepth returns the largest number of entries active at one instant.
func MaxDepth(entries []models.ScheduleEntry) int {
	type edge struct {
		at    time.Time
		delta int
	}
	edges := make([]edge, 0, 2*len(entries))
	for _, e := range entries {
		edges = append(edges, edge{e.StartAt, 1}, edge{e.EndAt, -1})
	}
	// ends sort before starts at the same instant: intervals are half-open
	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].at.Equal(edges[j].at) {
			return edges[i].at.Before(edges[j].at)
		}
		return edges[i].delta < edges[j].delta
	})
	depth, deepest := 0, 0
	for _, e := range edges {
		depth += e.delta
		if depth > deepest {
			deepest = depth
		}
	}
	return deepest
}
