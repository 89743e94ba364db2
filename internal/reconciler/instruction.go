package reconciler

import (
	"time"

	"github.com/fawad-mazhar/statusboard/internal/history"
	"github.com/fawad-mazhar/statusboard/internal/statecolor"
)

// Op is the kind of visual mutation an Instruction asks for
type Op int

const (
	OpRenderJobStrip Op = iota
	OpRenderTaskStrip
	OpUpdateLastRun
	OpRecolorGraphNode
	OpUpdateTaskLastStart
	OpUpdateActiveBadge
)

func (o Op) String() string {
	switch o {
	case OpRenderJobStrip:
		return "render_job_strip"
	case OpRenderTaskStrip:
		return "render_task_strip"
	case OpUpdateLastRun:
		return "update_last_run"
	case OpRecolorGraphNode:
		return "recolor_graph_node"
	case OpUpdateTaskLastStart:
		return "update_task_last_start"
	case OpUpdateActiveBadge:
		return "update_active_badge"
	default:
		return "unknown"
	}
}

// Instruction is one idempotent mutation of the presentation surface. Only the
// fields relevant to Op are set.
type Instruction struct {
	Op        Op
	Job       string
	Task      string
	Color     statecolor.Color
	Timestamp time.Time
	Active    bool
}

// Key returns the entity the instruction refers to.
func (i Instruction) Key() history.EntityKey {
	if i.Task != "" {
		return history.TaskKey(i.Job, i.Task)
	}
	return history.JobKey(i.Job)
}

func RenderJobStrip(job string) Instruction {
	return Instruction{Op: OpRenderJobStrip, Job: job}
}

func RenderTaskStrip(job, task string) Instruction {
	return Instruction{Op: OpRenderTaskStrip, Job: job, Task: task}
}

func UpdateLastRunTimestamp(job string, ts time.Time) Instruction {
	return Instruction{Op: OpUpdateLastRun, Job: job, Timestamp: ts}
}

func RecolorGraphNode(job, task string, color statecolor.Color) Instruction {
	return Instruction{Op: OpRecolorGraphNode, Job: job, Task: task, Color: color}
}

// UpdateTaskLastStart carries a zero Timestamp when the task has not started.
func UpdateTaskLastStart(job, task string, ts time.Time) Instruction {
	return Instruction{Op: OpUpdateTaskLastStart, Job: job, Task: task, Timestamp: ts}
}

func UpdateActiveBadge(job string, active bool) Instruction {
	return Instruction{Op: OpUpdateActiveBadge, Job: job, Active: active}
}
