package collection

import (
	"context"
	"fmt"
	"time"
)

const maxIntervalSeconds = 24 * 60 * 60

// TimeOfDay is an offset from local midnight.
type TimeOfDay time.Duration

// NewTimeOfDay builds a time of day from clock fields.
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second)
}

// ParseTimeOfDay parses "15:04" or "15:04:05".
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return NewTimeOfDay(t.Clock()), nil
		}
	}
	return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrConfigInvalid, value)
}

// TimeOfDayOf returns the wall clock offset of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	hour, minute, second := t.Clock()
	return NewTimeOfDay(hour, minute, second) + TimeOfDay(t.Nanosecond())
}

// On returns the instant at this time of day on the calendar date of day.
func (d TimeOfDay) On(day time.Time) time.Time {
	year, month, date := day.Date()
	offset := time.Duration(d)
	hour := int(offset / time.Hour)
	minute := int(offset % time.Hour / time.Minute)
	second := int(offset % time.Minute / time.Second)
	return time.Date(year, month, date, hour, minute, second, int(offset%time.Second), day.Location())
}

func (d TimeOfDay) String() string {
	t := d.On(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	if t.Second() != 0 {
		return t.Format("15:04:05")
	}
	return t.Format("15:04")
}

// MarshalText encodes the time of day as HH:MM.
func (d TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes HH:MM or HH:MM:SS.
func (d *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ScheduleConfig is a same-day collection window with a polling interval.
// Windows crossing midnight are not supported: EndTime must be after StartTime.
type ScheduleConfig struct {
	StartTime       TimeOfDay `json:"start_time"`
	EndTime         TimeOfDay `json:"end_time"`
	IntervalSeconds int       `json:"interval_seconds"`
}

// NewScheduleConfig parses and validates a schedule.
func NewScheduleConfig(startTime, endTime string, intervalSeconds int) (ScheduleConfig, error) {
	start, err := ParseTimeOfDay(startTime)
	if err != nil {
		return ScheduleConfig{}, err
	}
	end, err := ParseTimeOfDay(endTime)
	if err != nil {
		return ScheduleConfig{}, err
	}
	cfg := ScheduleConfig{StartTime: start, EndTime: end, IntervalSeconds: intervalSeconds}
	if err := cfg.Validate(); err != nil {
		return ScheduleConfig{}, err
	}
	return cfg, nil
}

// Validate checks interval bounds and window ordering.
func (c ScheduleConfig) Validate() error {
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %d", ErrConfigInvalid, c.IntervalSeconds)
	}
	if c.IntervalSeconds > maxIntervalSeconds {
		return fmt.Errorf("%w: interval must be at most %d seconds, got %d", ErrConfigInvalid, maxIntervalSeconds, c.IntervalSeconds)
	}
	day := TimeOfDay(24 * time.Hour)
	if c.StartTime < 0 || c.StartTime >= day || c.EndTime < 0 || c.EndTime >= day {
		return fmt.Errorf("%w: window must lie within one day", ErrConfigInvalid)
	}
	if c.EndTime <= c.StartTime {
		return fmt.Errorf("%w: end_time %s must be after start_time %s", ErrConfigInvalid, c.EndTime, c.StartTime)
	}
	return nil
}

// Interval returns the polling interval.
func (c ScheduleConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// ScheduleRepository persists the active schedule record.
type ScheduleRepository interface {
	// Activate deactivates any active schedule and stores cfg as active.
	Activate(ctx context.Context, cfg ScheduleConfig, createdBy string) error
	// Deactivate marks the active schedule inactive.
	Deactivate(ctx context.Context) error
	// LoadActive returns the active schedule, or nil when there is none.
	LoadActive(ctx context.Context) (*ScheduleConfig, error)
}
