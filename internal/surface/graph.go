package surface

import (
	"fmt"
	"sync"

	"github.com/fawad-mazhar/statusboard/internal/models"
	"github.com/fawad-mazhar/statusboard/internal/statecolor"
)

// Node is one task of the dependency graph overlay
type Node struct {
	ID         string           `json:"id"`
	Task       string           `json:"task"`
	Stroke     statecolor.Color `json:"stroke,omitempty"`
	Downstream []string         `json:"downstream,omitempty"`
}

// Graph is the dependency graph overlay of a job. Nodes only exist once a
// layout has been loaded; until then every lookup misses.
type Graph struct {
	nodes   map[string]*Node
	order   []string
	version uint64
	mutex   sync.RWMutex
}

// NodeHandle addresses a node found in the graph
type NodeHandle struct {
	graph *Graph
	task  string
}

// NewGraph creates an empty graph overlay
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
	}
}

// Load replaces the overlay with the tasks and edges of layout. Tasks only
// mentioned as graph edges get a node too.
func (g *Graph) Load(layout models.JobLayout) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.nodes = make(map[string]*Node)
	g.order = nil
	addNode := func(task string) *Node {
		if n, ok := g.nodes[task]; ok {
			return n
		}
		n := &Node{ID: NodeID(task), Task: task}
		g.nodes[task] = n
		g.order = append(g.order, task)
		return n
	}

	for _, task := range layout.Tasks {
		addNode(task)
	}
	for _, task := range layout.Tasks {
		for _, downstream := range layout.Graph[task] {
			addNode(downstream)
			n := g.nodes[task]
			n.Downstream = append(n.Downstream, downstream)
		}
	}
	g.version++
}

// FindNode returns a handle on the node of task.
func (g *Graph) FindNode(task string) (NodeHandle, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	if _, ok := g.nodes[task]; !ok {
		return NodeHandle{}, false
	}
	return NodeHandle{graph: g, task: task}, true
}

// Recolor sets the stroke of the node. It fails if the node disappeared since
// it was found.
func (h NodeHandle) Recolor(color statecolor.Color) error {
	if h.graph == nil {
		return fmt.Errorf("%w: empty node handle", ErrMissingTarget)
	}
	g := h.graph
	g.mutex.Lock()
	defer g.mutex.Unlock()

	n, ok := g.nodes[h.task]
	if !ok {
		return fmt.Errorf("%w: node %q", ErrMissingTarget, NodeID(h.task))
	}
	if n.Stroke == color {
		return nil
	}
	n.Stroke = color
	g.version++
	return nil
}

// Nodes returns a copy of the nodes in load order.
func (g *Graph) Nodes() []Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	out := make([]Node, 0, len(g.order))
	for _, task := range g.order {
		n := *g.nodes[task]
		n.Downstream = append([]string(nil), n.Downstream...)
		out = append(out, n)
	}
	return out
}

func (g *Graph) Version() uint64 {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.version
}

// Teardown drops every node
func (g *Graph) Teardown() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.nodes = make(map[string]*Node)
	g.order = nil
	g.version++
}

// Layers groups nodes into waves: a node lands in the first wave in which
// all of its upstream nodes have been placed. Nodes caught in a cycle end up
// together in a last wave.
func Layers(nodes []Node) [][]Node {
	upstream := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		for _, d := range n.Downstream {
			upstream[d] = append(upstream[d], n.Task)
		}
	}

	placed := make(map[string]bool, len(nodes))
	isReady := func(task string) bool {
		for _, dep := range upstream[task] {
			if !placed[dep] {
				return false
			}
		}
		return true
	}

	var layers [][]Node
	remaining := nodes
	for len(remaining) > 0 {
		var ready, blocked []Node
		for _, n := range remaining {
			if isReady(n.Task) {
				ready = append(ready, n)
			} else {
				blocked = append(blocked, n)
			}
		}
		if len(ready) == 0 {
			layers = append(layers, blocked)
			break
		}
		for _, n := range ready {
			placed[n.Task] = true
		}
		layers = append(layers, ready)
		remaining = blocked
	}
	return layers
}

// Layers returns the nodes of the overlay grouped into dependency waves
func (g *Graph) Layers() [][]Node {
	return Layers(g.Nodes())
}
