// internal/models/status.go
package models

import (
	"strings"
)

// LifecycleState is the state of a job or task execution as reported by the scheduler.
// Producers have historically disagreed on casing, so values are compared after Normalize.
type LifecycleState string

const (
	StateNotStarted LifecycleState = "notstarted"
	StateRunning    LifecycleState = "running"
	StateUpForRetry LifecycleState = "upforretry"
	StateSuccessful LifecycleState = "successful"
	StateSkipped    LifecycleState = "skipped"
	StateFailed     LifecycleState = "failed"
)

// LifecycleStates lists every known state in lifecycle order.
var LifecycleStates = []LifecycleState{
	StateNotStarted,
	StateRunning,
	StateUpForRetry,
	StateSuccessful,
	StateSkipped,
	StateFailed,
}

var stateSeparators = strings.NewReplacer("_", "", "-", "", " ", "")

// Normalize returns the canonical form of s: lower case, without separators.
// "UpForRetry", "up_for_retry" and "UPFORRETRY" all normalize to StateUpForRetry.
func (s LifecycleState) Normalize() LifecycleState {
	return LifecycleState(stateSeparators.Replace(strings.ToLower(strings.TrimSpace(string(s)))))
}

// Known reports whether s normalizes to one of the enumerated states.
func (s LifecycleState) Known() bool {
	n := s.Normalize()
	for _, known := range LifecycleStates {
		if n == known {
			return true
		}
	}
	return false
}
