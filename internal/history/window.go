// Package history keeps a bounded, ordered record of the most recent
// executions observed for every tracked job and task.
package history

import (
	"errors"
	"fmt"
)

// ErrInvalidCapacity is returned when a window is asked to hold fewer than one slot.
var ErrInvalidCapacity = errors.New("capacity must be at least 1")

type entry[T comparable] struct {
	executionID string
	value       T
}

// UpsertResult describes what an Upsert did to the window
type UpsertResult struct {
	Position int  // index of the slot after the upsert, oldest first
	WasNew   bool // the execution had no slot before
	Changed  bool // the window content differs from before the upsert
}

// Window is a fixed-capacity, insertion-ordered buffer holding at most one
// value per execution id. Existing executions are replaced in place; new ones
// are appended, evicting the oldest when the window is full.
type Window[T comparable] struct {
	capacity int
	entries  []entry[T]
}

// NewWindow creates an empty window
func NewWindow[T comparable](capacity int) (*Window[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("failed to create window: %w", ErrInvalidCapacity)
	}
	return &Window[T]{
		capacity: capacity,
		entries:  make([]entry[T], 0, capacity),
	}, nil
}

// Upsert records value for executionID.
func (w *Window[T]) Upsert(executionID string, value T) UpsertResult {
	for i := range w.entries {
		if w.entries[i].executionID == executionID {
			changed := w.entries[i].value != value
			w.entries[i].value = value
			return UpsertResult{Position: i, Changed: changed}
		}
	}

	if len(w.entries) >= w.capacity {
		copy(w.entries, w.entries[1:])
		w.entries = w.entries[:len(w.entries)-1]
	}
	w.entries = append(w.entries, entry[T]{executionID: executionID, value: value})

	return UpsertResult{Position: len(w.entries) - 1, WasNew: true, Changed: true}
}

// Get returns the value recorded for executionID.
func (w *Window[T]) Get(executionID string) (T, bool) {
	for _, e := range w.entries {
		if e.executionID == executionID {
			return e.value, true
		}
	}
	var zero T
	return zero, false
}

// Snapshot returns a copy of the window content, oldest first.
func (w *Window[T]) Snapshot() []T {
	out := make([]T, len(w.entries))
	for i, e := range w.entries {
		out[i] = e.value
	}
	return out
}

// ExecutionIDs returns the execution ids in the window, oldest first.
func (w *Window[T]) ExecutionIDs() []string {
	out := make([]string, len(w.entries))
	for i, e := range w.entries {
		out[i] = e.executionID
	}
	return out
}

func (w *Window[T]) Len() int {
	return len(w.entries)
}

func (w *Window[T]) Capacity() int {
	return w.capacity
}

// Clear empties the window.
func (w *Window[T]) Clear() {
	w.entries = make([]entry[T], 0, w.capacity)
}

// Resize changes the capacity and clears the window. Previously held slots are
// not carried over; the window refills from the next observation onwards.
func (w *Window[T]) Resize(capacity int) error {
	if capacity < 1 {
		return fmt.Errorf("failed to resize window: %w", ErrInvalidCapacity)
	}
	w.capacity = capacity
	w.Clear()
	return nil
}
