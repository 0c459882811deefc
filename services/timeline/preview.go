package timeline

import (
	"math"
	"time"

	"pawboard/models"
)

// Shadow is the preview interval of an entry during a drag or resize. It is
// never written back to the entry; only a committed reschedule does that.
type Shadow struct {
	EntryID string    `json:"entryId"`
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
}

// ResizeShadow keeps the entry's start and snaps the pointer-tracked end to the
// nearest interval. The duration never drops below one interval and the end
// never passes the day window; out-of-range pointers are clamped, not rejected.
func ResizeShadow(e models.ScheduleEntry, pointerEnd time.Time, cfg Config) Shadow {
	interval := cfg.Interval()
	steps := math.Round(float64(pointerEnd.Sub(e.StartAt)) / float64(interval))
	if steps < 1 {
		steps = 1
	}
	end := e.StartAt.Add(time.Duration(steps) * interval)
	if !cfg.DayEnd.IsZero() && end.After(cfg.DayEnd) {
		end = cfg.DayEnd
		if end.Sub(e.StartAt) < interval {
			end = e.StartAt.Add(interval)
		}
	}
	return Shadow{EntryID: e.ID, StartAt: e.StartAt, EndAt: end}
}

// MoveShadow snaps the pointer-tracked start onto the interval grid, keeps the
// entry's duration and clamps the result inside the day window.
func MoveShadow(e models.ScheduleEntry, pointerStart time.Time, cfg Config) Shadow {
	interval := cfg.Interval()
	duration := e.EndAt.Sub(e.StartAt)

	var start time.Time
	if cfg.DayStart.IsZero() {
		start = pointerStart.Round(interval)
	} else {
		steps := math.Round(float64(pointerStart.Sub(cfg.DayStart)) / float64(interval))
		start = cfg.DayStart.Add(time.Duration(steps) * interval)
		if !cfg.DayEnd.IsZero() && start.Add(duration).After(cfg.DayEnd) {
			start = cfg.DayEnd.Add(-duration)
		}
		if start.Before(cfg.DayStart) {
			start = cfg.DayStart
		}
	}
	return Shadow{EntryID: e.ID, StartAt: start, EndAt: start.Add(duration)}
}
