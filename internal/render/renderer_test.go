package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawad-mazhar/statusboard/internal/models"
	"github.com/fawad-mazhar/statusboard/internal/reconciler"
	"github.com/fawad-mazhar/statusboard/internal/statecolor"
	"github.com/fawad-mazhar/statusboard/internal/surface"
)

var (
	baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	jobLayout = models.JobLayout{
		Name:     "J",
		Tasks:    []string{"t", "u"},
		Graph:    map[string][]string{"t": {"u"}},
		Schedule: "@daily",
	}
)

type fixture struct {
	reconciler *reconciler.Reconciler
	board      *surface.Board
	renderer   *Renderer
}

func newFixture(t *testing.T, view surface.View, capacity int) *fixture {
	rec, err := reconciler.New(reconciler.Options{Capacity: capacity})
	require.NoError(t, err)
	board, err := surface.Scaffold(view, []models.JobLayout{jobLayout, {Name: "K", Tasks: []string{"t"}}})
	require.NoError(t, err)

	return &fixture{
		reconciler: rec,
		board:      board,
		renderer: New(Options{
			View:    view,
			Windows: rec.Index(),
			Surface: board,
			Graph:   board.Graph(),
		}),
	}
}

func (f *fixture) ingest(t *testing.T, s *models.ExecutionSnapshot) error {
	instructions, err := f.reconciler.Reconcile(s)
	require.NoError(t, err)
	return f.renderer.Apply(instructions)
}

func execution(id string, submitted int, state models.LifecycleState, tasks ...models.TaskSnapshot) *models.ExecutionSnapshot {
	return &models.ExecutionSnapshot{
		ID:          id,
		JobName:     "J",
		State:       state,
		SubmittedAt: baseTime.Add(time.Duration(submitted) * time.Second),
		Tasks:       tasks,
	}
}

func colors(cells []surface.Cell) []statecolor.Color {
	out := make([]statecolor.Color, len(cells))
	for i, c := range cells {
		out[i] = c.Color
	}
	return out
}

func TestIndexView_StripKeepsLastExecutions(t *testing.T) {
	f := newFixture(t, surface.View{Kind: surface.ViewIndex}, 3)

	require.NoError(t, f.ingest(t, execution("e1", 1, models.StateRunning)))
	require.NoError(t, f.ingest(t, execution("e2", 2, models.StateSuccessful)))
	require.NoError(t, f.ingest(t, execution("e3", 3, models.StateFailed)))
	require.NoError(t, f.ingest(t, execution("e4", 4, models.StateSuccessful)))

	cells, ok := f.board.Strip("J")
	require.True(t, ok)
	assert.Equal(t, []statecolor.Color{statecolor.Successful, statecolor.Failed, statecolor.Successful}, colors(cells))
	assert.Equal(t, "e2", cells[0].ID)
	assert.Equal(t, "e4", cells[2].ID)
	assert.Equal(t, "ID: e4\nStarted: Mar 1, 2024, 12:00:04 PM", cells[2].Tooltip)

	text, _ := f.board.Text("last-start-J")
	assert.Equal(t, "Mar 1, 2024, 12:00:04 PM", text)
}

func TestIndexView_DuplicateDelivery(t *testing.T) {
	f := newFixture(t, surface.View{Kind: surface.ViewIndex}, 3)

	require.NoError(t, f.ingest(t, execution("e1", 1, models.StateRunning)))
	require.NoError(t, f.ingest(t, execution("e1", 1, models.StateSuccessful)))

	cells, _ := f.board.Strip("J")
	require.Len(t, cells, 1)
	assert.Equal(t, statecolor.Successful, cells[0].Color)
}

func TestIndexView_LastRunIsMonotonic(t *testing.T) {
	f := newFixture(t, surface.View{Kind: surface.ViewIndex}, 3)

	require.NoError(t, f.ingest(t, execution("e1", 10, models.StateRunning)))
	require.NoError(t, f.ingest(t, execution("e2", 30, models.StateRunning)))
	require.NoError(t, f.ingest(t, execution("e3", 20, models.StateRunning)))

	text, _ := f.board.Text("last-start-J")
	assert.Equal(t, "Mar 1, 2024, 12:00:30 PM", text)
}

func TestJobView_TaskStripsAndLastStart(t *testing.T) {
	f := newFixture(t, surface.View{Kind: surface.ViewJob, Job: "J"}, 3)
	started := baseTime.Add(90 * time.Second)

	require.NoError(t, f.ingest(t, execution("e1", 1, models.StateRunning,
		models.TaskSnapshot{Name: "t", State: "Successful", StartedAt: &started},
		models.TaskSnapshot{Name: "u", State: "running"},
	)))

	cells, ok := f.board.Strip("t")
	require.True(t, ok)
	assert.Equal(t, []surface.Cell{{ID: "e1-t", Color: statecolor.Successful, Tooltip: "ID: e1\nStarted: Mar 1, 2024, 12:00:01 PM"}}, cells)

	text, _ := f.board.Text("last-start-t")
	assert.Equal(t, "Mar 1, 2024, 12:01:30 PM", text)
	text, _ = f.board.Text("last-start-u")
	assert.Equal(t, "", text)

	// the job-level strip is not part of this view
	_, ok = f.board.Strip("J")
	assert.False(t, ok)
}

func TestJobView_TaskNamedLikeJobKeepsLastRun(t *testing.T) {
	view := surface.View{Kind: surface.ViewJob, Job: "J"}
	rec, err := reconciler.New(reconciler.Options{Capacity: 3})
	require.NoError(t, err)
	board, err := surface.Scaffold(view, []models.JobLayout{{Name: "J", Tasks: []string{"J", "t"}}})
	require.NoError(t, err)
	f := &fixture{
		reconciler: rec,
		board:      board,
		renderer:   New(Options{View: view, Windows: rec.Index(), Surface: board, Graph: board.Graph()}),
	}

	started := baseTime.Add(90 * time.Second)
	require.NoError(t, f.ingest(t, execution("e1", 1, models.StateRunning,
		models.TaskSnapshot{Name: "J", State: "running", StartedAt: &started},
		models.TaskSnapshot{Name: "t", State: "running", StartedAt: &started},
	)))

	text, ok := f.board.Text("last-start-J")
	require.True(t, ok)
	assert.Equal(t, "Mar 1, 2024, 12:00:01 PM", text)
	text, _ = f.board.Text("last-start-t")
	assert.Equal(t, "Mar 1, 2024, 12:01:30 PM", text)

	cells, ok := f.board.Strip("J")
	require.True(t, ok)
	assert.Equal(t, []statecolor.Color{statecolor.Running}, colors(cells))
}

func TestJobView_IgnoresOtherJobs(t *testing.T) {
	f := newFixture(t, surface.View{Kind: surface.ViewJob, Job: "J"}, 3)

	other := execution("k1", 1, models.StateFailed, models.TaskSnapshot{Name: "t", State: models.StateFailed})
	other.JobName = "K"
	require.NoError(t, f.ingest(t, other))

	cells, _ := f.board.Strip("t")
	assert.Empty(t, cells)
}

func TestDiagramView_GraphShowsLatestExecution(t *testing.T) {
	f := newFixture(t, surface.View{Kind: surface.ViewDiagram, Job: "J"}, 3)

	require.NoError(t, f.ingest(t, execution("e2", 2, models.StateSuccessful, models.TaskSnapshot{Name: "t", State: models.StateSuccessful})))
	require.NoError(t, f.ingest(t, execution("e1", 1, models.StateFailed, models.TaskSnapshot{Name: "t", State: models.StateFailed})))

	node := f.board.Graph().Nodes()[0]
	assert.Equal(t, "t", node.Task)
	assert.Equal(t, statecolor.Successful, node.Stroke)
}

func TestDiagramView_MissingNodeIsSkipped(t *testing.T) {
	f := newFixture(t, surface.View{Kind: surface.ViewDiagram, Job: "J"}, 3)

	err := f.ingest(t, execution("e1", 1, models.StateRunning,
		models.TaskSnapshot{Name: "ghost", State: models.StateRunning},
		models.TaskSnapshot{Name: "u", State: models.StateFailed},
	))
	require.Error(t, err)
	assert.True(t, IsMissingTarget(err))

	// the instructions after the miss were still applied
	nodes := f.board.Graph().Nodes()
	assert.Equal(t, statecolor.Failed, nodes[1].Stroke)
	text, _ := f.board.Text("last-start-J")
	assert.NotEmpty(t, text)
}

func TestApply_IsIdempotent(t *testing.T) {
	f := newFixture(t, surface.View{Kind: surface.ViewJob, Job: "J"}, 3)
	instructions, err := f.reconciler.Reconcile(execution("e1", 1, models.StateRunning,
		models.TaskSnapshot{Name: "t", State: models.StateRunning},
	))
	require.NoError(t, err)

	require.NoError(t, f.renderer.Apply(instructions))
	version := f.board.Version()
	require.NoError(t, f.renderer.Apply(instructions))

	assert.Equal(t, version, f.board.Version())
}

func TestApply_AfterTeardown(t *testing.T) {
	f := newFixture(t, surface.View{Kind: surface.ViewIndex}, 3)
	f.board.Teardown()

	err := f.ingest(t, execution("e1", 1, models.StateRunning))
	require.Error(t, err)
	assert.True(t, IsMissingTarget(err))
}

func TestApply_ActiveBadge(t *testing.T) {
	f := newFixture(t, surface.View{Kind: surface.ViewIndex}, 3)

	require.NoError(t, f.renderer.Apply(f.reconciler.SetActive("J", true)))

	active, ok := f.board.Badge("schedule-badge-J")
	require.True(t, ok)
	assert.True(t, active)
}

func TestApply_CapacityChangeEmptiesStrips(t *testing.T) {
	f := newFixture(t, surface.View{Kind: surface.ViewIndex}, 3)
	require.NoError(t, f.ingest(t, execution("e1", 1, models.StateRunning)))

	instructions, err := f.reconciler.SetCapacity(2)
	require.NoError(t, err)
	require.NoError(t, f.renderer.Apply(instructions))

	cells, ok := f.board.Strip("J")
	require.True(t, ok)
	assert.Empty(t, cells)

	require.NoError(t, f.ingest(t, execution("e2", 2, models.StateRunning)))
	require.NoError(t, f.ingest(t, execution("e3", 3, models.StateRunning)))
	require.NoError(t, f.ingest(t, execution("e4", 4, models.StateRunning)))
	cells, _ = f.board.Strip("J")
	assert.Len(t, cells, 2)
}

func TestAccepts(t *testing.T) {
	index := New(Options{View: surface.View{Kind: surface.ViewIndex}})
	job := New(Options{View: surface.View{Kind: surface.ViewJob, Job: "J"}})
	diagram := New(Options{View: surface.View{Kind: surface.ViewDiagram, Job: "J"}})

	assert.True(t, index.Accepts(reconciler.RenderJobStrip("K")))
	assert.False(t, index.Accepts(reconciler.RenderTaskStrip("J", "t")))
	assert.True(t, job.Accepts(reconciler.RenderTaskStrip("J", "t")))
	assert.False(t, job.Accepts(reconciler.RenderTaskStrip("K", "t")))
	assert.False(t, job.Accepts(reconciler.RecolorGraphNode("J", "t", statecolor.Running)))
	assert.True(t, diagram.Accepts(reconciler.RecolorGraphNode("J", "t", statecolor.Running)))
	assert.False(t, diagram.Accepts(reconciler.RenderJobStrip("J")))
}
