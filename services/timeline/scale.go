package timeline

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Zoom is a discrete timeline scale. Levels are fixed so interval grid lines
// always land on whole pixels.
type Zoom string

const (
	ZoomCompact     Zoom = "compact"
	ZoomComfortable Zoom = "comfortable"
	ZoomDetailed    Zoom = "detailed"
)

var pixelsPerMinute = map[Zoom]float64{
	ZoomCompact:     1,
	ZoomComfortable: 2,
	ZoomDetailed:    4,
}

func ParseZoom(raw string) (Zoom, error) {
	z := Zoom(strings.ToLower(strings.TrimSpace(raw)))
	if z == "" {
		return ZoomComfortable, nil
	}
	if _, ok := pixelsPerMinute[z]; !ok {
		return "", fmt.Errorf("unknown zoom level %q", raw)
	}
	return z, nil
}

// ErrInvalidDate is returned for a board date or day window that cannot be laid out.
var ErrInvalidDate = errors.New("invalid board day")

// Config describes the visible day window and its scale.
type Config struct {
	DayStart        time.Time
	DayEnd          time.Time
	Zoom            Zoom
	IntervalMinutes int
	MinRowHeightPx  float64
}

const (
	defaultIntervalMinutes = 15
	defaultMinRowHeightPx  = 24
)

// DayConfig builds the window [startHour, endHour) of the given date in loc.
func DayConfig(date string, loc *time.Location, startHour, endHour int) (Config, error) {
	if loc == nil {
		loc = time.Local
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return Config{}, fmt.Errorf("%w: date %q: %v", ErrInvalidDate, date, err)
	}
	if endHour <= startHour {
		return Config{}, fmt.Errorf("%w: window [%d,%d) is empty", ErrInvalidDate, startHour, endHour)
	}
	return Config{
		DayStart:        day.Add(time.Duration(startHour) * time.Hour),
		DayEnd:          day.Add(time.Duration(endHour) * time.Hour),
		Zoom:            ZoomComfortable,
		IntervalMinutes: defaultIntervalMinutes,
		MinRowHeightPx:  defaultMinRowHeightPx,
	}, nil
}

func (c Config) PixelsPerMinute() float64 {
	if ppm, ok := pixelsPerMinute[c.Zoom]; ok {
		return ppm
	}
	return pixelsPerMinute[ZoomComfortable]
}

// Interval is the snapping granularity.
func (c Config) Interval() time.Duration {
	if c.IntervalMinutes <= 0 {
		return defaultIntervalMinutes * time.Minute
	}
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c Config) minRowHeight() float64 {
	if c.MinRowHeightPx <= 0 {
		return defaultMinRowHeightPx
	}
	return c.MinRowHeightPx
}

func (c Config) DayHeightPx() float64 {
	return c.DayEnd.Sub(c.DayStart).Minutes() * c.PixelsPerMinute()
}

// OffsetFor maps an instant to its vertical pixel offset from the day start.
func (c Config) OffsetFor(t time.Time) float64 {
	return t.Sub(c.DayStart).Minutes() * c.PixelsPerMinute()
}

// TimeAt maps a pixel offset back to an instant, truncated to the minute.
func (c Config) TimeAt(px float64) time.Time {
	minutes := math.Floor(px / c.PixelsPerMinute())
	return c.DayStart.Add(time.Duration(minutes) * time.Minute)
}
