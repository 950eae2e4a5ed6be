package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when submitting a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue cannot take another job
	ErrJobQueueFull = errors.New("job queue is full")
)
