// Package statecolor maps execution lifecycle states to display colors.
package statecolor

import (
	lru "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"

	"github.com/fawad-mazhar/statusboard/internal/metrics"
	"github.com/fawad-mazhar/statusboard/internal/models"
)

// Color is a CSS/hex color understood by every presentation surface.
type Color string

const (
	NotStarted Color = "#ffffff"
	Running    Color = "#dffbe3"
	UpForRetry Color = "#ffc620"
	Successful Color = "#39c84e"
	Skipped    Color = "#abbefb"
	Failed     Color = "#ff4020"

	// Fallback is used for states outside the enumerated set.
	Fallback = NotStarted
)

const unknownStateCacheSize = 256

var palette = map[models.LifecycleState]Color{
	models.StateNotStarted: NotStarted,
	models.StateRunning:    Running,
	models.StateUpForRetry: UpForRetry,
	models.StateSuccessful: Successful,
	models.StateSkipped:    Skipped,
	models.StateFailed:     Failed,
}

// Resolver is a total mapping from lifecycle state to color. Unknown states
// resolve to Fallback and are reported once per distinct value.
type Resolver struct {
	reported *lru.Cache
	logger   *log.Entry
}

// NewResolver creates a resolver that logs unknown states through logger
func NewResolver(logger *log.Entry) *Resolver {
	reported, err := lru.New(unknownStateCacheSize)
	if err != nil {
		panic(err)
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Resolver{
		reported: reported,
		logger:   logger.WithField("component", "statecolor"),
	}
}

// Resolve returns the color for state.
func (r *Resolver) Resolve(state models.LifecycleState) Color {
	normalized := state.Normalize()
	if color, ok := palette[normalized]; ok {
		return color
	}

	metrics.RecordUnknownState()
	if seen, _ := r.reported.ContainsOrAdd(normalized, struct{}{}); !seen {
		r.logger.WithField("state", string(state)).Warn("Unknown lifecycle state, using fallback color")
	}
	return Fallback
}
