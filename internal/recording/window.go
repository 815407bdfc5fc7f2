package recording

import "time"

// MonitoringWindow is the daily time-of-day interval during which motion
// triggers recording and notification. A window with Start > End wraps past
// midnight: [Start,24) plus [0,End). Immutable after configuration load.
type MonitoringWindow struct {
	Start int // hour in [0,24)
	End   int // hour in [0,24)
}

// Contains reports whether the given instant falls inside the window
func (w MonitoringWindow) Contains(t time.Time) bool {
	return w.ContainsHour(t.Hour())
}

// ContainsHour reports whether the given hour falls inside the window
func (w MonitoringWindow) ContainsHour(hour int) bool {
	if w.Start > w.End { // crosses midnight
		return hour >= w.Start || hour < w.End
	}
	return hour >= w.Start && hour < w.End
}
