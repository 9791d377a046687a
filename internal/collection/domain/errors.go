package collection

import (
	"errors"
	"fmt"
)

var (
	// ErrStateConflict is the parent of engine lifecycle conflicts.
	ErrStateConflict = errors.New("collection: state conflict")
	// ErrAlreadyRunning is returned by Start while the engine runs.
	ErrAlreadyRunning = fmt.Errorf("%w: already running", ErrStateConflict)
	// ErrNotRunning is returned by Stop while the engine is stopped.
	ErrNotRunning = fmt.Errorf("%w: not running", ErrStateConflict)
	// ErrConfigInvalid is returned for unusable schedules.
	ErrConfigInvalid = errors.New("collection: invalid schedule")
)
