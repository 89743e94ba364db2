// internal/models/job.go
package models

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrMissingExecutionID = errors.New("snapshot has no execution id")
	ErrMissingJobName     = errors.New("snapshot has no job name")
)

// ExecutionSnapshot is one observation of a job run. The same execution is
// reported repeatedly as its state evolves; ID is stable across those reports.
type ExecutionSnapshot struct {
	ID          string         `json:"id"`
	JobName     string         `json:"job"`
	State       LifecycleState `json:"state"`
	SubmittedAt time.Time      `json:"startTs"`
	Tasks       []TaskSnapshot `json:"tasks"`
}

// Validate checks the fields the dashboard cannot do without
func (e *ExecutionSnapshot) Validate() error {
	if e.ID == "" {
		return ErrMissingExecutionID
	}
	if e.JobName == "" {
		return ErrMissingJobName
	}
	return nil
}

// ToJSON converts the snapshot to JSON
func (e *ExecutionSnapshot) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON populates the snapshot from JSON
func (e *ExecutionSnapshot) FromJSON(data []byte) error {
	return json.Unmarshal(data, e)
}

// JobLayout describes a job as the page scaffold needs it: the task names, the
// dependency graph between them and the schedule badge state.
type JobLayout struct {
	Name     string              `json:"job" yaml:"name"`
	Tasks    []string            `json:"tasks" yaml:"tasks"`
	Graph    map[string][]string `json:"dag" yaml:"graph"` // key: task name, value: downstream task names
	Schedule string              `json:"schedule" yaml:"schedule"`
	Active   bool                `json:"active" yaml:"active"`
}
