package domain

import "fmt"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Step names recorded in processing metadata.
const (
	StepUpload = "upload"
)

// StartStep returns the step recorded when a generator begins work.
func StartStep(generator string) string {
	return generator + ":start"
}

// Job is the last-known state of one generation request as persisted in the
// status store.
type Job struct {
	ID       string
	Status   JobStatus
	Metadata map[string]any
}

// Lifecycle guards the status sequence of a single request:
// processing -> ... -> completed|failed, never back.
type Lifecycle struct {
	jobID  string
	status JobStatus
}

func NewLifecycle(jobID string) *Lifecycle {
	return &Lifecycle{jobID: jobID}
}

func (l *Lifecycle) JobID() string { return l.jobID }

// Status returns the current status, empty until the first Advance.
func (l *Lifecycle) Status() JobStatus { return l.status }

// Advance moves the lifecycle to the given status.
func (l *Lifecycle) Advance(to JobStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if l.status.IsTerminal() {
		return fmt.Errorf("%w: job %s already %s", ErrInvalidTransition, l.jobID, l.status)
	}
	if l.status == "" && to != JobStatusProcessing {
		return fmt.Errorf("%w: job %s must start as %s", ErrInvalidTransition, l.jobID, JobStatusProcessing)
	}
	l.status = to
	return nil
}
