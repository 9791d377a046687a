package collection

import "time"

// EngineState is a snapshot of the collection engine.
type EngineState struct {
	IsRunning      bool
	LastRunAt      *time.Time
	NextRunAt      *time.Time
	ActiveSchedule *ScheduleConfig
}

// Clone returns a deep copy so callers cannot mutate engine state.
func (s EngineState) Clone() EngineState {
	out := EngineState{IsRunning: s.IsRunning}
	if s.LastRunAt != nil {
		t := *s.LastRunAt
		out.LastRunAt = &t
	}
	if s.NextRunAt != nil {
		t := *s.NextRunAt
		out.NextRunAt = &t
	}
	if s.ActiveSchedule != nil {
		cfg := *s.ActiveSchedule
		out.ActiveSchedule = &cfg
	}
	return out
}
