// Package dashboard runs the ingest loop: every stream message and every
// operator command is processed by one goroutine, one at a time, so the history
// windows are never touched concurrently.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/fawad-mazhar/statusboard/internal/metrics"
	"github.com/fawad-mazhar/statusboard/internal/reconciler"
	"github.com/fawad-mazhar/statusboard/internal/render"
	"github.com/fawad-mazhar/statusboard/internal/stream"
	"github.com/fawad-mazhar/statusboard/internal/surface"
)

var ErrStopped = errors.New("dashboard is stopped")

// CapacityStore remembers the operator's capacity choice
type CapacityStore interface {
	PutCapacity(capacity int) error
}

// Options configures a Dashboard
type Options struct {
	View       surface.View
	Board      *surface.Board
	Reconciler *reconciler.Reconciler
	Store      CapacityStore // optional
	Print      io.Writer     // optional, receives the rendered board after each change
	InboxSize  int
	Logger     *log.Entry
}

type command struct {
	name   string
	apply  func() ([]reconciler.Instruction, error)
	result chan error
}

// item is one unit of work for the ingest loop: a stream message or a command
type item struct {
	payload []byte
	cmd     *command
}

type Dashboard struct {
	id           string
	board        *surface.Board
	reconciler   *reconciler.Reconciler
	renderer     *render.Renderer
	store        CapacityStore
	source       stream.Source
	print        io.Writer
	inbox        chan item
	stopChan     chan struct{}
	stopOnce     sync.Once
	done         chan struct{}
	isShutdown   bool
	shutdownLock sync.RWMutex
	logger       *log.Entry
}

func New(opts Options) (*Dashboard, error) {
	if opts.Board == nil || opts.Reconciler == nil {
		return nil, fmt.Errorf("dashboard requires a board and a reconciler")
	}
	if err := opts.View.Validate(); err != nil {
		return nil, err
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 256
	}
	if opts.Logger == nil {
		opts.Logger = log.NewEntry(log.StandardLogger())
	}

	id := uuid.New().String()
	logger := opts.Logger.WithField("dashboard", id)

	return &Dashboard{
		id:         id,
		board:      opts.Board,
		reconciler: opts.Reconciler,
		renderer: render.New(render.Options{
			View:     opts.View,
			Windows:  opts.Reconciler.Index(),
			Surface:  opts.Board,
			Graph:    opts.Board.Graph(),
			Location: opts.Reconciler.Location(),
			Logger:   logger,
		}),
		store:    opts.Store,
		print:    opts.Print,
		inbox:    make(chan item, opts.InboxSize),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger,
	}, nil
}

// ID identifies this dashboard instance
func (d *Dashboard) ID() string {
	return d.id
}

// Board returns the surface the dashboard renders to
func (d *Dashboard) Board() *surface.Board {
	return d.board
}

// Run processes messages from source, plus anything passed to Ingest, until
// ctx is cancelled or Shutdown is called. source may be nil. Sources reconnect
// on their own; if one stops anyway, the loop keeps serving Ingest and
// commands.
func (d *Dashboard) Run(ctx context.Context, source stream.Source) {
	defer close(d.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.source = source
	sourceDone := make(chan error, 1)
	if source != nil {
		d.logger.WithField("source", source.Name()).Info("Starting dashboard")
		go func() {
			sourceDone <- source.Run(ctx, func(payload []byte) {
				select {
				case d.inbox <- item{payload: payload}:
				case <-ctx.Done():
				}
			})
		}()
	} else {
		d.logger.Info("Starting dashboard without a stream source")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopChan:
			return
		case next := <-d.inbox:
			if next.cmd != nil {
				next.cmd.result <- d.execute(next.cmd)
			} else {
				d.ingest(next.payload)
			}
		case err := <-sourceDone:
			sourceDone = nil
			entry := d.logger.WithField("source", source.Name())
			if err != nil {
				entry = entry.WithError(err)
			}
			entry.Error("Stream source stopped, only pushed snapshots will be shown")
		}
	}
}

// Ingest queues one raw snapshot message for the ingest loop
func (d *Dashboard) Ingest(ctx context.Context, payload []byte) error {
	return d.enqueue(ctx, item{payload: payload})
}

// enqueue adds next to the inbox behind everything queued before it
func (d *Dashboard) enqueue(ctx context.Context, next item) error {
	select {
	case <-d.stopChan:
		return ErrStopped
	case <-d.done:
		return ErrStopped
	default:
	}

	select {
	case d.inbox <- next:
		return nil
	case <-d.stopChan:
		return ErrStopped
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dashboard) ingest(payload []byte) {
	instructions, err := d.reconciler.Ingest(payload)
	if err != nil {
		reason := "decode"
		if errors.Is(err, reconciler.ErrMalformedSnapshot) {
			reason = "malformed"
		}
		metrics.RecordMessageDropped(reason)
		d.logger.WithError(err).Warn("Dropping snapshot message")
		return
	}
	d.apply(instructions)
}

func (d *Dashboard) apply(instructions []reconciler.Instruction) {
	if len(instructions) == 0 {
		return
	}
	for _, instruction := range instructions {
		metrics.RecordInstruction(instruction.Op.String())
	}

	before := d.board.Version()
	if err := d.renderer.Apply(instructions); err != nil && !render.IsMissingTarget(err) {
		d.logger.WithError(err).Error("Failed to apply render instructions")
	}

	if d.print != nil && d.board.Version() != before {
		fmt.Fprintln(d.print, d.board.Render())
	}
}

func (d *Dashboard) execute(cmd *command) error {
	instructions, err := cmd.apply()
	if err != nil {
		d.logger.WithError(err).WithField("command", cmd.name).Warn("Command rejected")
		return err
	}
	d.apply(instructions)
	return nil
}

// submit queues cmd behind pending messages and waits for its outcome
func (d *Dashboard) submit(ctx context.Context, cmd command) error {
	cmd.result = make(chan error, 1)
	if err := d.enqueue(ctx, item{cmd: &cmd}); err != nil {
		return err
	}
	select {
	case err := <-cmd.result:
		return err
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetCapacity changes how many executions every strip shows. All history is
// cleared and the strips are redrawn empty; sources that skip redeliveries
// are reset so they refill the strips. The new capacity is remembered.
func (d *Dashboard) SetCapacity(ctx context.Context, capacity int) error {
	return d.submit(ctx, command{
		name: "set-capacity",
		apply: func() ([]reconciler.Instruction, error) {
			instructions, err := d.reconciler.SetCapacity(capacity)
			if err != nil {
				return nil, err
			}
			if resetter, ok := d.source.(stream.Resetter); ok {
				resetter.Reset()
			}
			if d.store != nil {
				if err := d.store.PutCapacity(capacity); err != nil {
					d.logger.WithError(err).Warn("Failed to persist display capacity")
				}
			}
			return instructions, nil
		},
	})
}

// Capacity returns the current window capacity
func (d *Dashboard) Capacity(ctx context.Context) (int, error) {
	var capacity int
	err := d.submit(ctx, command{
		name: "capacity",
		apply: func() ([]reconciler.Instruction, error) {
			capacity = d.reconciler.Index().Capacity()
			return nil, nil
		},
	})
	return capacity, err
}

// SetActive shows the schedule state of job on its badge
func (d *Dashboard) SetActive(ctx context.Context, job string, active bool) error {
	return d.submit(ctx, command{
		name: "set-active",
		apply: func() ([]reconciler.Instruction, error) {
			return d.reconciler.SetActive(job, active), nil
		},
	})
}

// Shutdown stops the ingest loop and waits for it to exit. The board is torn
// down afterwards, so late writers only ever see missing targets.
func (d *Dashboard) Shutdown(timeout time.Duration) error {
	d.shutdownLock.Lock()
	d.isShutdown = true
	d.shutdownLock.Unlock()

	d.stopOnce.Do(func() { close(d.stopChan) })

	select {
	case <-d.done:
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timed out after %v", timeout)
	}

	d.board.Teardown()
	d.logger.Info("Dashboard stopped")
	return nil
}

// IsShutdown returns the current shutdown status
func (d *Dashboard) IsShutdown() bool {
	d.shutdownLock.RLock()
	defer d.shutdownLock.RUnlock()
	return d.isShutdown
}
