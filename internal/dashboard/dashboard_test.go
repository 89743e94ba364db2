package dashboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawad-mazhar/statusboard/internal/history"
	"github.com/fawad-mazhar/statusboard/internal/models"
	"github.com/fawad-mazhar/statusboard/internal/reconciler"
	"github.com/fawad-mazhar/statusboard/internal/statecolor"
	"github.com/fawad-mazhar/statusboard/internal/stream"
	"github.com/fawad-mazhar/statusboard/internal/surface"
)

var layouts = []models.JobLayout{
	{Name: "etl", Tasks: []string{"extract", "load"}, Graph: map[string][]string{"extract": {"load"}}},
}

// chanSource delivers whatever is sent on messages and signals delivered once
// the handler returned
type chanSource struct {
	messages  chan []byte
	delivered chan struct{}
	err       error
}

func (c *chanSource) Name() string { return "chan" }

func (c *chanSource) Run(ctx context.Context, handle stream.Handler) error {
	if c.err != nil {
		return c.err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-c.messages:
			handle(msg)
			c.delivered <- struct{}{}
		}
	}
}

type memoryStore struct {
	mu       sync.Mutex
	capacity int
}

func (m *memoryStore) PutCapacity(capacity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capacity = capacity
	return nil
}

type fixture struct {
	dashboard *Dashboard
	source    *chanSource
	store     *memoryStore
	cancel    context.CancelFunc
	stopped   chan struct{}
}

func start(t *testing.T, view surface.View, opts Options) *fixture {
	t.Helper()
	board, err := surface.Scaffold(view, layouts)
	require.NoError(t, err)
	rec, err := reconciler.New(reconciler.Options{Capacity: 3})
	require.NoError(t, err)

	f := &fixture{
		source:  &chanSource{messages: make(chan []byte), delivered: make(chan struct{})},
		store:   &memoryStore{},
		stopped: make(chan struct{}),
	}
	opts.View = view
	opts.Board = board
	opts.Reconciler = rec
	opts.Store = f.store
	f.dashboard, err = New(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() {
		defer close(f.stopped)
		f.dashboard.Run(ctx, f.source)
	}()
	t.Cleanup(cancel)
	return f
}

func (f *fixture) deliver(payload []byte) {
	f.source.messages <- payload
	<-f.source.delivered
}

func snapshot(id string, second int, state string, tasks string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"job":"etl","state":%q,"startTs":"2024-03-01T12:00:%02dZ","tasks":[%s]}`, id, state, second, tasks))
}

// settle waits until every queued message has been processed
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	_, err := f.dashboard.Capacity(context.Background())
	require.NoError(t, err)
}

func stripColors(t *testing.T, board *surface.Board, id string) []statecolor.Color {
	t.Helper()
	cells, ok := board.Strip(id)
	require.True(t, ok)
	colors := make([]statecolor.Color, len(cells))
	for i, c := range cells {
		colors[i] = c.Color
	}
	return colors
}

func TestDashboard_StreamToBoard(t *testing.T) {
	f := start(t, surface.View{Kind: surface.ViewIndex}, Options{})

	f.deliver(snapshot("e1", 1, "running", ""))
	f.deliver(snapshot("e2", 2, "successful", ""))
	f.deliver(snapshot("e3", 3, "failed", ""))
	f.deliver(snapshot("e4", 4, "successful", ""))
	f.settle(t)

	assert.Equal(t, []statecolor.Color{statecolor.Successful, statecolor.Failed, statecolor.Successful},
		stripColors(t, f.dashboard.Board(), "etl"))
	text, _ := f.dashboard.Board().Text("last-start-etl")
	assert.Equal(t, "Mar 1, 2024, 12:00:04 PM", text)
}

func TestDashboard_DropsBadMessages(t *testing.T) {
	logger, hook := test.NewNullLogger()
	f := start(t, surface.View{Kind: surface.ViewIndex}, Options{Logger: logger.WithField("test", t.Name())})

	require.NoError(t, f.dashboard.Ingest(context.Background(), []byte("not json")))
	require.NoError(t, f.dashboard.Ingest(context.Background(), []byte(`{"id":"e1","state":"running"}`)))
	require.NoError(t, f.dashboard.Ingest(context.Background(), snapshot("e2", 2, "running", "")))
	f.settle(t)

	assert.Equal(t, []statecolor.Color{statecolor.Running}, stripColors(t, f.dashboard.Board(), "etl"))

	var dropped []error
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Dropping snapshot message" {
			dropped = append(dropped, entry.Data["error"].(error))
		}
	}
	require.Len(t, dropped, 2)
	assert.True(t, errors.Is(dropped[0], reconciler.ErrDecode))
	assert.True(t, errors.Is(dropped[1], reconciler.ErrMalformedSnapshot))
}

func TestDashboard_SetCapacity(t *testing.T) {
	f := start(t, surface.View{Kind: surface.ViewJob, Job: "etl"}, Options{})
	ctx := context.Background()

	require.NoError(t, f.dashboard.Ingest(ctx, snapshot("e1", 1, "running", `{"name":"extract","state":"running"}`)))
	f.settle(t)
	assert.Len(t, stripColors(t, f.dashboard.Board(), "extract"), 1)

	require.NoError(t, f.dashboard.SetCapacity(ctx, 2))
	assert.Empty(t, stripColors(t, f.dashboard.Board(), "extract"))
	capacity, err := f.dashboard.Capacity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, capacity)
	assert.Equal(t, 2, f.store.capacity)

	err = f.dashboard.SetCapacity(ctx, 0)
	assert.True(t, errors.Is(err, history.ErrInvalidCapacity))
	assert.Equal(t, 2, f.store.capacity)
}

func TestDashboard_SetActive(t *testing.T) {
	f := start(t, surface.View{Kind: surface.ViewIndex}, Options{})

	require.NoError(t, f.dashboard.SetActive(context.Background(), "etl", true))

	active, ok := f.dashboard.Board().Badge("schedule-badge-etl")
	require.True(t, ok)
	assert.True(t, active)
}

func TestDashboard_PrintsOnChange(t *testing.T) {
	var out bytes.Buffer
	f := start(t, surface.View{Kind: surface.ViewIndex}, Options{Print: &out})

	require.NoError(t, f.dashboard.Ingest(context.Background(), snapshot("e1", 1, "running", "")))
	f.settle(t)
	printed := out.Len()
	assert.Contains(t, out.String(), "etl")

	// an identical re-delivery changes nothing and prints nothing
	require.NoError(t, f.dashboard.Ingest(context.Background(), snapshot("e1", 1, "running", "")))
	f.settle(t)
	assert.Equal(t, printed, out.Len())
}

func TestDashboard_Shutdown(t *testing.T) {
	f := start(t, surface.View{Kind: surface.ViewIndex}, Options{})
	f.settle(t)

	require.NoError(t, f.dashboard.Shutdown(time.Second))
	assert.True(t, f.dashboard.IsShutdown())
	<-f.stopped

	_, ok := f.dashboard.Board().Strip("etl")
	assert.False(t, ok)
	assert.ErrorIs(t, f.dashboard.Ingest(context.Background(), snapshot("e1", 1, "running", "")), ErrStopped)
	assert.ErrorIs(t, f.dashboard.SetActive(context.Background(), "etl", true), ErrStopped)
}

func TestDashboard_KeepsRunningWhenSourceStops(t *testing.T) {
	board, err := surface.Scaffold(surface.View{Kind: surface.ViewIndex}, layouts)
	require.NoError(t, err)
	rec, err := reconciler.New(reconciler.Options{})
	require.NoError(t, err)
	logger, hook := test.NewNullLogger()
	d, err := New(Options{View: surface.View{Kind: surface.ViewIndex}, Board: board, Reconciler: rec, Logger: logger.WithField("test", t.Name())})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		d.Run(ctx, &chanSource{err: errors.New("connection refused")})
	}()

	require.Eventually(t, func() bool {
		for _, entry := range hook.AllEntries() {
			if entry.Message == "Stream source stopped, only pushed snapshots will be shown" {
				return true
			}
		}
		return false
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, d.Ingest(ctx, snapshot("e1", 1, "failed", "")))
	_, err = d.Capacity(ctx)
	require.NoError(t, err)
	assert.Equal(t, []statecolor.Color{statecolor.Failed}, stripColors(t, d.Board(), "etl"))

	select {
	case <-stopped:
		t.Fatal("dashboard stopped with its source")
	default:
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("dashboard did not stop after cancel")
	}
}

func TestDashboard_CapacityChangeRefillsFromPolledSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"executions":[%s,%s]}`, snapshot("e1", 1, "successful", ""), snapshot("e2", 2, "failed", ""))
	}))
	defer server.Close()

	source, err := stream.NewPollSource(stream.PollOptions{URL: server.URL, Interval: 10 * time.Millisecond})
	require.NoError(t, err)

	view := surface.View{Kind: surface.ViewIndex}
	board, err := surface.Scaffold(view, layouts)
	require.NoError(t, err)
	rec, err := reconciler.New(reconciler.Options{Capacity: 3})
	require.NoError(t, err)
	d, err := New(Options{View: view, Board: board, Reconciler: rec})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx, source)

	full := []statecolor.Color{statecolor.Successful, statecolor.Failed}
	stripLen := func() int {
		cells, _ := board.Strip("etl")
		return len(cells)
	}
	require.Eventually(t, func() bool { return stripLen() == 2 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, full, stripColors(t, board, "etl"))

	require.NoError(t, d.SetCapacity(ctx, 5))
	require.Eventually(t, func() bool { return stripLen() == 2 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, full, stripColors(t, board, "etl"))
}

func TestNew_Validates(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	rec, err := reconciler.New(reconciler.Options{})
	require.NoError(t, err)
	_, err = New(Options{View: surface.View{Kind: surface.ViewJob}, Board: surface.NewBoard(), Reconciler: rec})
	assert.Error(t, err)
}
