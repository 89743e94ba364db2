// Package reconciler folds execution snapshots into the per-entity history
// windows and works out which parts of the presentation surface must change.
package reconciler

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fawad-mazhar/statusboard/internal/history"
	"github.com/fawad-mazhar/statusboard/internal/models"
	"github.com/fawad-mazhar/statusboard/internal/statecolor"
)

var (
	// ErrDecode wraps messages that are not a JSON execution snapshot.
	ErrDecode = errors.New("failed to decode snapshot")
	// ErrMalformedSnapshot wraps snapshots missing their job name or execution id.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
)

// Reconciler owns the entity index. It is not safe for concurrent use: all
// calls must come from the single ingest loop.
type Reconciler struct {
	index    *history.Index
	colors   *statecolor.Resolver
	location *time.Location
	lastRun  map[string]time.Time
	logger   *log.Entry
}

// Options configures a Reconciler
type Options struct {
	Capacity int
	Location *time.Location
	Logger   *log.Entry
}

// New creates a reconciler with an empty index
func New(opts Options) (*Reconciler, error) {
	if opts.Capacity == 0 {
		opts.Capacity = history.DefaultCapacity
	}
	index, err := history.NewIndex(opts.Capacity)
	if err != nil {
		return nil, err
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = log.NewEntry(log.StandardLogger())
	}
	logger := opts.Logger.WithField("component", "reconciler")

	return &Reconciler{
		index:    index,
		colors:   statecolor.NewResolver(opts.Logger),
		location: opts.Location,
		lastRun:  make(map[string]time.Time),
		logger:   logger,
	}, nil
}

// Index exposes the windows so the renderer can read them.
func (r *Reconciler) Index() *history.Index {
	return r.index
}

// Location is the time zone used for tooltips and timestamps
func (r *Reconciler) Location() *time.Location {
	return r.location
}

// LastRun returns the latest submission time seen for job.
func (r *Reconciler) LastRun(job string) (time.Time, bool) {
	ts, ok := r.lastRun[job]
	return ts, ok
}

// Decode parses one stream message into a snapshot and validates it.
func Decode(payload []byte) (*models.ExecutionSnapshot, error) {
	var snapshot models.ExecutionSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	return &snapshot, nil
}

// Ingest decodes payload and reconciles it.
func (r *Reconciler) Ingest(payload []byte) ([]Instruction, error) {
	snapshot, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	return r.Reconcile(snapshot)
}

// Reconcile folds snapshot into the index and returns the instructions that
// bring the surface in line with it, in application order: job strip, task
// strips, then last-run and graph updates when snapshot is the most recently
// submitted execution of its job.
func (r *Reconciler) Reconcile(snapshot *models.ExecutionSnapshot) ([]Instruction, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrMalformedSnapshot)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	logger := r.logger.WithFields(log.Fields{
		"job":       snapshot.JobName,
		"execution": snapshot.ID,
	})

	var instructions []Instruction

	jobSlot := history.Slot{
		ExecutionID: snapshot.ID,
		Color:       r.colors.Resolve(snapshot.State),
		Tooltip:     tooltip(snapshot.ID, snapshot.SubmittedAt, r.location),
	}
	if res := r.index.WindowFor(history.JobKey(snapshot.JobName)).Upsert(snapshot.ID, jobSlot); res.Changed {
		instructions = append(instructions, RenderJobStrip(snapshot.JobName))
	}

	taskColors := make([]statecolor.Color, len(snapshot.Tasks))
	for i, task := range snapshot.Tasks {
		if task.Name == "" {
			logger.Warn("Skipping task without a name")
			continue
		}
		taskColors[i] = r.colors.Resolve(task.State)
		slot := history.Slot{
			ExecutionID: fmt.Sprintf("%s-%s", snapshot.ID, task.Name),
			Color:       taskColors[i],
			Tooltip:     tooltip(snapshot.ID, snapshot.SubmittedAt, r.location),
		}
		if res := r.index.WindowFor(history.TaskKey(snapshot.JobName, task.Name)).Upsert(snapshot.ID, slot); res.Changed {
			instructions = append(instructions, RenderTaskStrip(snapshot.JobName, task.Name))
		}
	}

	if !r.advanceLastRun(snapshot.JobName, snapshot.SubmittedAt) {
		logger.Debug("Snapshot is older than the latest execution, leaving last run and graph untouched")
		return instructions, nil
	}

	instructions = append(instructions, UpdateLastRunTimestamp(snapshot.JobName, snapshot.SubmittedAt))
	for i, task := range snapshot.Tasks {
		if task.Name == "" {
			continue
		}
		instructions = append(instructions, RecolorGraphNode(snapshot.JobName, task.Name, taskColors[i]))
		var started time.Time
		if task.HasStarted() {
			started = *task.StartedAt
		}
		instructions = append(instructions, UpdateTaskLastStart(snapshot.JobName, task.Name, started))
	}

	return instructions, nil
}

// advanceLastRun records submittedAt as the job's last run unless an execution
// submitted later has already been seen. Re-reports of the latest execution
// keep it current.
func (r *Reconciler) advanceLastRun(job string, submittedAt time.Time) bool {
	latest, seen := r.lastRun[job]
	if seen && submittedAt.Before(latest) {
		return false
	}
	r.lastRun[job] = submittedAt
	return true
}

// SetActive returns the instruction for a schedule toggle of job.
func (r *Reconciler) SetActive(job string, active bool) []Instruction {
	return []Instruction{UpdateActiveBadge(job, active)}
}

// SetCapacity resizes and clears every window, then asks for every known
// strip to be redrawn (empty). History already evicted is not replayed.
func (r *Reconciler) SetCapacity(capacity int) ([]Instruction, error) {
	if err := r.index.SetCapacity(capacity); err != nil {
		return nil, err
	}
	r.logger.WithField("capacity", capacity).Info("Display capacity changed, history cleared")
	return r.RenderAll(), nil
}

// RenderAll returns a strip instruction for every tracked entity.
func (r *Reconciler) RenderAll() []Instruction {
	keys := r.index.AllKeys()
	instructions := make([]Instruction, 0, len(keys))
	for _, key := range keys {
		if key.IsTask() {
			instructions = append(instructions, RenderTaskStrip(key.Job, key.Task))
		} else {
			instructions = append(instructions, RenderJobStrip(key.Job))
		}
	}
	return instructions
}
