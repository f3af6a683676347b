package jobs

import "fmt"

// NotFoundError is returned for an unknown job id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("job not found: %s", e.ID)
}

// BusyError is returned when a job already has a task in flight.
type BusyError struct {
	JobID string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("job %s already has a task in progress", e.JobID)
}
