// Package render applies reconciler instructions to a presentation surface.
package render

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/fawad-mazhar/statusboard/internal/history"
	"github.com/fawad-mazhar/statusboard/internal/metrics"
	"github.com/fawad-mazhar/statusboard/internal/reconciler"
	"github.com/fawad-mazhar/statusboard/internal/surface"
)

// Surface is the set of addressable elements the renderer writes to
type Surface interface {
	ReplaceStrip(id string, cells []surface.Cell) error
	SetText(id, text string) error
	SetBadge(id string, active bool) error
}

// GraphOverlay locates task nodes of the dependency graph
type GraphOverlay interface {
	FindNode(task string) (surface.NodeHandle, bool)
}

// WindowSource gives read access to the history windows
type WindowSource interface {
	Lookup(key history.EntityKey) (*history.Window[history.Slot], bool)
}

// Renderer turns instructions into surface mutations for one view. Every
// mutation rewrites its target completely, so applying an instruction twice
// leaves the surface as it was after the first time.
type Renderer struct {
	view     surface.View
	windows  WindowSource
	surface  Surface
	graph    GraphOverlay
	location *time.Location
	logger   *log.Entry
}

// Options configures a Renderer
type Options struct {
	View     surface.View
	Windows  WindowSource
	Surface  Surface
	Graph    GraphOverlay
	Location *time.Location
	Logger   *log.Entry
}

// New creates a renderer
func New(opts Options) *Renderer {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = log.NewEntry(log.StandardLogger())
	}
	return &Renderer{
		view:     opts.View,
		windows:  opts.Windows,
		surface:  opts.Surface,
		graph:    opts.Graph,
		location: opts.Location,
		logger:   opts.Logger.WithField("component", "renderer"),
	}
}

// Accepts reports whether the view of the renderer cares about instruction.
func (r *Renderer) Accepts(instruction reconciler.Instruction) bool {
	switch r.view.Kind {
	case surface.ViewIndex:
		switch instruction.Op {
		case reconciler.OpRenderJobStrip, reconciler.OpUpdateLastRun, reconciler.OpUpdateActiveBadge:
			return true
		}
	case surface.ViewJob:
		if instruction.Job != r.view.Job {
			return false
		}
		// shares its element id with the job's last run
		if instruction.Op == reconciler.OpUpdateTaskLastStart && instruction.Task == instruction.Job {
			return false
		}
		switch instruction.Op {
		case reconciler.OpRenderTaskStrip, reconciler.OpUpdateTaskLastStart,
			reconciler.OpUpdateLastRun, reconciler.OpUpdateActiveBadge:
			return true
		}
	case surface.ViewDiagram:
		if instruction.Job != r.view.Job {
			return false
		}
		switch instruction.Op {
		case reconciler.OpUpdateLastRun, reconciler.OpRecolorGraphNode:
			return true
		}
	}
	return false
}

// Apply executes instructions in order. A missing target skips that
// instruction only; the misses are logged and returned together.
func (r *Renderer) Apply(instructions []reconciler.Instruction) error {
	var result *multierror.Error
	for _, instruction := range instructions {
		if !r.Accepts(instruction) {
			continue
		}
		if err := r.apply(instruction); err != nil {
			metrics.RecordRenderMiss()
			r.logger.WithFields(log.Fields{
				"op":   instruction.Op.String(),
				"job":  instruction.Job,
				"task": instruction.Task,
			}).WithError(err).Debug("Skipping render instruction")
			result = multierror.Append(result, err)
		}
	}
	if result != nil {
		r.logger.Warnf("%d render instruction(s) skipped", len(result.Errors))
	}
	return result.ErrorOrNil()
}

func (r *Renderer) apply(instruction reconciler.Instruction) error {
	switch instruction.Op {
	case reconciler.OpRenderJobStrip, reconciler.OpRenderTaskStrip:
		return r.renderStrip(instruction.Key())
	case reconciler.OpUpdateLastRun:
		return r.surface.SetText(surface.LastStartID(instruction.Job), reconciler.FormatTimestamp(instruction.Timestamp, r.location))
	case reconciler.OpUpdateTaskLastStart:
		return r.surface.SetText(surface.LastStartID(instruction.Task), reconciler.FormatTimestamp(instruction.Timestamp, r.location))
	case reconciler.OpUpdateActiveBadge:
		return r.surface.SetBadge(surface.BadgeID(instruction.Job), instruction.Active)
	case reconciler.OpRecolorGraphNode:
		if r.graph == nil {
			return fmt.Errorf("%w: no graph overlay", surface.ErrMissingTarget)
		}
		node, ok := r.graph.FindNode(instruction.Task)
		if !ok {
			return fmt.Errorf("%w: node %q, the graph may still be loading", surface.ErrMissingTarget, surface.NodeID(instruction.Task))
		}
		return node.Recolor(instruction.Color)
	default:
		return fmt.Errorf("unknown render op %d", instruction.Op)
	}
}

// renderStrip rebuilds the whole strip of key from its window and swaps it in.
func (r *Renderer) renderStrip(key history.EntityKey) error {
	var slots []history.Slot
	if w, ok := r.windows.Lookup(key); ok {
		slots = w.Snapshot()
	}

	cells := make([]surface.Cell, len(slots))
	for i, slot := range slots {
		cells[i] = surface.Cell{
			ID:      slot.ExecutionID,
			Color:   slot.Color,
			Tooltip: slot.Tooltip,
		}
	}
	return r.surface.ReplaceStrip(surface.StripID(key), cells)
}

// IsMissingTarget reports whether err only carries missing-target misses.
func IsMissingTarget(err error) bool {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			if !errors.Is(e, surface.ErrMissingTarget) {
				return false
			}
		}
		return len(merr.Errors) > 0
	}
	return errors.Is(err, surface.ErrMissingTarget)
}
