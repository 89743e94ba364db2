// internal/models/task.go
package models

import (
	"time"
)

// TaskSnapshot is the observed state of one task inside an execution snapshot
type TaskSnapshot struct {
	Name      string         `json:"name"`
	State     LifecycleState `json:"state"`
	StartedAt *time.Time     `json:"startTs,omitempty"`
}

// HasStarted reports whether the task carries a usable start time.
// Producers send the zero time ("0001-01-01T00:00:00Z") for tasks that never ran.
func (t TaskSnapshot) HasStarted() bool {
	return t.StartedAt != nil && t.StartedAt.Year() > 1
}
