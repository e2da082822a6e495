package scheduler

import "errors"

var (
	// ErrInvalidTrigger is returned by AddJob when the trigger's
	// parameters are out of range or unparseable.
	ErrInvalidTrigger = errors.New("invalid trigger")

	// ErrJobNotFound is returned by RunNow for an unknown job id.
	// Remove/Pause/Resume report the same condition as a false result
	// instead, since a job already being gone is a normal race.
	ErrJobNotFound = errors.New("job not found")

	// ErrRunInFlight is returned by RunNow when the job already has a
	// queued or running execution; overlapping runs are never allowed.
	ErrRunInFlight = errors.New("job already has an execution in flight")
)
