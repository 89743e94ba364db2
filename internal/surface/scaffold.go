package surface

import (
	"fmt"

	"github.com/fawad-mazhar/statusboard/internal/history"
	"github.com/fawad-mazhar/statusboard/internal/models"
)

// ViewKind selects which presentation context a board is built for
type ViewKind string

const (
	ViewIndex   ViewKind = "index"
	ViewJob     ViewKind = "job"
	ViewDiagram ViewKind = "diagram"
)

// View is a presentation context. Job is empty for the index view.
type View struct {
	Kind ViewKind `json:"kind"`
	Job  string   `json:"job,omitempty"`
}

// Validate checks that the view kind is known and names a job when it needs one
func (v View) Validate() error {
	switch v.Kind {
	case ViewIndex:
		return nil
	case ViewJob, ViewDiagram:
		if v.Job == "" {
			return fmt.Errorf("%s view requires a job name", v.Kind)
		}
		return nil
	default:
		return fmt.Errorf("unknown view %q", v.Kind)
	}
}

// StripID is the element id of the strip of key: the job name for job
// entities, the task name for task entities.
func StripID(key history.EntityKey) string {
	if key.IsTask() {
		return key.Task
	}
	return key.Job
}

// LastStartID is the element id of the last-start text of a job or task.
// Jobs and tasks share the namespace: in the job view, a task named like its
// job has no last-start text of its own and the job's last run is shown.
func LastStartID(name string) string {
	return "last-start-" + name
}

// BadgeID is the element id of the schedule badge of a job
func BadgeID(job string) string {
	return "schedule-badge-" + job
}

// NodeID is the element id of the graph node of a task
func NodeID(task string) string {
	return "node-" + task
}

// BadgeClass is the presentation class of a schedule badge
func BadgeClass(active bool) string {
	return fmt.Sprintf("schedule-badge-active-%t", active)
}

// Scaffold builds the initial board of view from the job layouts so that every
// element the renderer addresses exists before the first message arrives.
func Scaffold(view View, layouts []models.JobLayout) (*Board, error) {
	if err := view.Validate(); err != nil {
		return nil, err
	}

	board := NewBoard()
	if view.Kind == ViewIndex {
		for _, layout := range layouts {
			board.AddStrip(StripID(history.JobKey(layout.Name)), layout.Name)
			board.AddText(LastStartID(layout.Name), "Last run")
			board.AddBadge(BadgeID(layout.Name), layout.Schedule, layout.Active)
		}
		return board, nil
	}

	var layout *models.JobLayout
	for i := range layouts {
		if layouts[i].Name == view.Job {
			layout = &layouts[i]
			break
		}
	}
	if layout == nil {
		return nil, fmt.Errorf("no layout for job %q", view.Job)
	}

	board.AddText(LastStartID(layout.Name), "Last run")
	switch view.Kind {
	case ViewJob:
		board.AddBadge(BadgeID(layout.Name), layout.Schedule, layout.Active)
		for _, task := range layout.Tasks {
			board.AddStrip(StripID(history.TaskKey(layout.Name, task)), task)
			if task != layout.Name {
				board.AddText(LastStartID(task), "Last start")
			}
		}
	case ViewDiagram:
		board.Graph().Load(*layout)
	}
	return board, nil
}
