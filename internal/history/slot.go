package history

import (
	"github.com/fawad-mazhar/statusboard/internal/statecolor"
)

// Slot is one remembered observation of an execution inside a window
type Slot struct {
	ExecutionID string           `json:"executionId"`
	Color       statecolor.Color `json:"color"`
	Tooltip     string           `json:"tooltip"`
}

// EntityKey identifies a tracked entity. A key with an empty Task is the
// job-level entity; otherwise it is the task Task of job Job.
type EntityKey struct {
	Job  string `json:"job"`
	Task string `json:"task,omitempty"`
}

// JobKey returns the key of the job-level entity
func JobKey(job string) EntityKey {
	return EntityKey{Job: job}
}

// TaskKey returns the key of a task within a job
func TaskKey(job, task string) EntityKey {
	return EntityKey{Job: job, Task: task}
}

// IsTask reports whether the key names a task rather than a job.
func (k EntityKey) IsTask() bool {
	return k.Task != ""
}

func (k EntityKey) String() string {
	if k.IsTask() {
		return k.Job + "/" + k.Task
	}
	return k.Job
}
