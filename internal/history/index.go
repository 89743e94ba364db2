package history

import (
	"fmt"
)

// DefaultCapacity is the number of executions shown per entity unless the
// operator picks another value.
const DefaultCapacity = 10

// Index owns one window per entity. Windows are created on first mention and
// live as long as the index; keys are kept in the order they were first seen.
type Index struct {
	capacity int
	windows  map[EntityKey]*Window[Slot]
	keys     []EntityKey
}

// NewIndex creates an empty index whose windows hold capacity slots
func NewIndex(capacity int) (*Index, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("failed to create index: %w", ErrInvalidCapacity)
	}
	return &Index{
		capacity: capacity,
		windows:  make(map[EntityKey]*Window[Slot]),
	}, nil
}

// WindowFor returns the window for key, creating it if needed.
func (x *Index) WindowFor(key EntityKey) *Window[Slot] {
	if w, ok := x.windows[key]; ok {
		return w
	}
	// capacity was validated when it was set
	w, _ := NewWindow[Slot](x.capacity)
	x.windows[key] = w
	x.keys = append(x.keys, key)
	return w
}

// Lookup returns the window for key without creating one.
func (x *Index) Lookup(key EntityKey) (*Window[Slot], bool) {
	w, ok := x.windows[key]
	return w, ok
}

// AllKeys returns every tracked key in first-seen order.
func (x *Index) AllKeys() []EntityKey {
	out := make([]EntityKey, len(x.keys))
	copy(out, x.keys)
	return out
}

func (x *Index) Capacity() int {
	return x.capacity
}

// SetCapacity changes the capacity of every window, current and future, and
// clears all of them.
func (x *Index) SetCapacity(capacity int) error {
	if capacity < 1 {
		return fmt.Errorf("failed to set capacity: %w", ErrInvalidCapacity)
	}
	x.capacity = capacity
	for _, key := range x.keys {
		if err := x.windows[key].Resize(capacity); err != nil {
			return err
		}
	}
	return nil
}
