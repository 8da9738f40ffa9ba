package queue

import (
	"fmt"
	"path/filepath"
)

// Status is a job status reported verbatim by the queue service. The set of
// statuses is open: only Enqueued and Running have special meaning, every
// other reported value is terminal.
type Status string

const (
	// StatusUnknown indicates the service's listing did not contain the job.
	// It's the zero value and is never reported by the service itself.
	StatusUnknown Status = ""

	// StatusEnqueued indicates the job is waiting to be scheduled.
	StatusEnqueued Status = "Enqueued"

	// StatusRunning indicates the job is executing and may be producing output.
	StatusRunning Status = "Running"
)

// String implements the Stringer interface for Status.
func (s Status) String() string {
	if s == StatusUnknown {
		return "Unknown"
	}

	return string(s)
}

// Terminal reports whether the job will not resume, i.e. the status is a
// concrete status other than Enqueued or Running.
func (s Status) Terminal() bool {
	return s != StatusUnknown && s != StatusEnqueued && s != StatusRunning
}

// JobHandle identifies a submitted job and the output files it produces. It's
// immutable once created.
type JobHandle struct {
	ID         string
	Name       string
	StdoutPath string
	StderrPath string
}

// NewJobHandle creates a JobHandle for the job with the given id whose output
// files are written to dir. An empty name defaults to task_<id>.
func NewJobHandle(id, name, dir string) JobHandle {
	if name == "" {
		name = DefaultName(id)
	}

	return JobHandle{
		ID:         id,
		Name:       name,
		StdoutPath: filepath.Join(dir, name+".stdout"),
		StderrPath: filepath.Join(dir, name+".stderr"),
	}
}

// DefaultName returns the name the queue service gives a job submitted
// without one.
func DefaultName(id string) string {
	return fmt.Sprintf("task_%s", id)
}
