// Package surface is the presentation surface the dashboard draws on: named
// indicator strips, text nodes, schedule badges and the task graph overlay.
package surface

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/fawad-mazhar/statusboard/internal/statecolor"
)

// ErrMissingTarget is returned when an element addressed by id does not exist,
// either because the scaffold never created it or because the board was torn down.
var ErrMissingTarget = errors.New("presentation target not found")

// Cell is one colored indicator inside a strip
type Cell struct {
	ID      string           `json:"id"`
	Color   statecolor.Color `json:"color"`
	Tooltip string           `json:"tooltip"`
}

// ElementKind tells strips, text nodes and badges apart
type ElementKind string

const (
	KindStrip ElementKind = "strip"
	KindText  ElementKind = "text"
	KindBadge ElementKind = "badge"
)

type element struct {
	kind   ElementKind
	label  string
	cells  []Cell
	text   string
	active bool
}

// Board holds the addressable elements of one view. It is safe for concurrent
// use: the ingest loop writes while HTTP handlers read.
type Board struct {
	ids      []string
	elements map[string]*element
	graph    *Graph
	version  uint64
	mutex    sync.RWMutex
}

// NewBoard creates an empty board with an empty graph overlay
func NewBoard() *Board {
	return &Board{
		elements: make(map[string]*element),
		graph:    NewGraph(),
	}
}

// Graph returns the graph overlay of the board
func (b *Board) Graph() *Graph {
	return b.graph
}

func (b *Board) add(id string, el *element) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, exists := b.elements[id]; !exists {
		b.ids = append(b.ids, id)
	}
	b.elements[id] = el
	b.version++
}

// AddStrip creates an empty strip addressable by id
func (b *Board) AddStrip(id, label string) {
	b.add(id, &element{kind: KindStrip, label: label})
}

// AddText creates an empty text node addressable by id
func (b *Board) AddText(id, label string) {
	b.add(id, &element{kind: KindText, label: label})
}

// AddBadge creates a schedule badge addressable by id
func (b *Board) AddBadge(id, label string, active bool) {
	b.add(id, &element{kind: KindBadge, label: label, active: active})
}

func (b *Board) lookup(id string, kind ElementKind) (*element, error) {
	el, ok := b.elements[id]
	if !ok || el.kind != kind {
		return nil, fmt.Errorf("%w: %s %q", ErrMissingTarget, kind, id)
	}
	return el, nil
}

// ReplaceStrip swaps the content of strip id for cells in one step. The new
// cells are copied before the swap, so readers see either the old or the new
// strip, never a partial one.
func (b *Board) ReplaceStrip(id string, cells []Cell) error {
	next := make([]Cell, len(cells))
	copy(next, cells)

	b.mutex.Lock()
	defer b.mutex.Unlock()

	el, err := b.lookup(id, KindStrip)
	if err != nil {
		return err
	}
	if slices.Equal(el.cells, next) {
		return nil
	}
	el.cells = next
	b.version++
	return nil
}

// SetText replaces the content of text node id
func (b *Board) SetText(id, text string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	el, err := b.lookup(id, KindText)
	if err != nil {
		return err
	}
	if el.text == text {
		return nil
	}
	el.text = text
	b.version++
	return nil
}

// SetBadge switches badge id between active and inactive
func (b *Board) SetBadge(id string, active bool) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	el, err := b.lookup(id, KindBadge)
	if err != nil {
		return err
	}
	if el.active == active {
		return nil
	}
	el.active = active
	b.version++
	return nil
}

// Strip returns a copy of the cells of strip id.
func (b *Board) Strip(id string) ([]Cell, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	el, err := b.lookup(id, KindStrip)
	if err != nil {
		return nil, false
	}
	out := make([]Cell, len(el.cells))
	copy(out, el.cells)
	return out, true
}

// Text returns the content of text node id.
func (b *Board) Text(id string) (string, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	el, err := b.lookup(id, KindText)
	if err != nil {
		return "", false
	}
	return el.text, true
}

// Badge returns whether badge id shows the job as active.
func (b *Board) Badge(id string) (bool, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	el, err := b.lookup(id, KindBadge)
	if err != nil {
		return false, false
	}
	return el.active, true
}

// Version increases every time a visible element changes. Writes that leave
// an element as it was do not bump it.
func (b *Board) Version() uint64 {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.version + b.graph.Version()
}

// Teardown removes every element, as when the viewer navigates away.
// Subsequent writes fail with ErrMissingTarget.
func (b *Board) Teardown() {
	b.mutex.Lock()
	b.ids = nil
	b.elements = make(map[string]*element)
	b.version++
	b.mutex.Unlock()

	b.graph.Teardown()
}

// ElementView is the serialisable form of one element
type ElementView struct {
	ID     string      `json:"id"`
	Kind   ElementKind `json:"kind"`
	Label  string      `json:"label"`
	Cells  []Cell      `json:"cells,omitempty"`
	Text   string      `json:"text,omitempty"`
	Active *bool       `json:"active,omitempty"`
}

// BoardView is a point-in-time copy of the whole board
type BoardView struct {
	Version  uint64        `json:"version"`
	Elements []ElementView `json:"elements"`
	Nodes    []Node        `json:"nodes"`
}

// View copies the board content in element creation order.
func (b *Board) View() BoardView {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	view := BoardView{
		Version:  b.version + b.graph.Version(),
		Elements: make([]ElementView, 0, len(b.ids)),
		Nodes:    b.graph.Nodes(),
	}
	for _, id := range b.ids {
		el := b.elements[id]
		ev := ElementView{ID: id, Kind: el.kind, Label: el.label}
		switch el.kind {
		case KindStrip:
			ev.Cells = make([]Cell, len(el.cells))
			copy(ev.Cells, el.cells)
		case KindText:
			ev.Text = el.text
		case KindBadge:
			active := el.active
			ev.Active = &active
		}
		view.Elements = append(view.Elements, ev)
	}
	return view
}
