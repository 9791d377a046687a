package application

import "time"

// Clock abstracts wall time and cancellable sleeps for the engine loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct {
	loc *time.Location
}

// SystemClock returns a clock reporting wall time in loc (UTC when nil).
func SystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
