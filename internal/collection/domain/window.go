package collection

import "time"

// DefaultInterval is the polling interval when no schedule is active.
const DefaultInterval = 300 * time.Second

// IsWithinWindow reports whether collection is permitted at now.
// A nil schedule always permits collection. Both window ends are inclusive.
func IsWithinWindow(now time.Time, cfg *ScheduleConfig) bool {
	if cfg == nil {
		return true
	}
	tod := TimeOfDayOf(now)
	return cfg.StartTime <= tod && tod <= cfg.EndTime
}

// ComputeNextRun returns the next tick instant after now.
//
// If now is already past today's window the candidate is not corrected here;
// callers finishing a tick outside the window must use NextWindowOpening.
func ComputeNextRun(now time.Time, cfg *ScheduleConfig) time.Time {
	if cfg == nil {
		return now.Add(DefaultInterval)
	}
	candidate := now.Add(cfg.Interval())
	switch {
	case TimeOfDayOf(candidate) > cfg.EndTime:
		return cfg.StartTime.On(now.AddDate(0, 0, 1))
	case TimeOfDayOf(now) < cfg.StartTime:
		return cfg.StartTime.On(now)
	default:
		return candidate
	}
}

// NextWindowOpening returns the next window start for an instant outside the window:
// tomorrow's start when now is past the end, otherwise today's start.
func NextWindowOpening(now time.Time, cfg *ScheduleConfig) time.Time {
	if cfg == nil {
		return now
	}
	if TimeOfDayOf(now) > cfg.EndTime {
		return cfg.StartTime.On(now.AddDate(0, 0, 1))
	}
	return cfg.StartTime.On(now)
}
