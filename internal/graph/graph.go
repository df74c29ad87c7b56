// Package graph defines the computation graph that network builders append to.
//
// The graph is an arena: nodes are addressed by a dense integer id and stored
// in the order they were appended. Because a node can only reference ids that
// already exist, the arena is acyclic by construction and its id order is a
// valid execution order.
//
// # Ownership Model
//
// The graph owns every node. Builders only append; nodes are never mutated or
// removed. Node returns copies, so callers cannot alter stored nodes.
//
// # Naming
//
// Every node carries a name that is registered once for its id and never
// reused. The registry belongs to a single Graph, so two graphs built at the
// same time never observe each other's names.
//
// # Thread Safety
//
// A Graph is NOT safe for concurrent appends. After construction it may be
// read from multiple goroutines.
package graph

import (
	"fmt"
	"slices"
)

// NodeID addresses a node inside its graph.
type NodeID int

// Node is one immutable point in the graph.
type Node struct {
	ID     NodeID
	Name   string
	Op     Op
	Inputs []NodeID
	Attrs  Attrs
	Shape  Shape
}

// Graph is an append-only arena of nodes.
type Graph struct {
	nodes []Node
	names map[string]NodeID
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{names: make(map[string]NodeID)}
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id NodeID) (Node, bool) {
	if id < 0 || int(id) >= len(g.nodes) {
		return Node{}, false
	}
	n := g.nodes[id]
	n.Inputs = slices.Clone(n.Inputs)
	n.Shape = n.Shape.Clone()
	return n, true
}

// MustNode is like Node but panics on unknown ids. Only for ids returned by this graph.
func (g *Graph) MustNode(id NodeID) Node {
	n, ok := g.Node(id)
	if !ok {
		panic(fmt.Sprintf("graph: unknown node id %d", id))
	}
	return n
}

// Lookup returns the id registered for name.
func (g *Graph) Lookup(name string) (NodeID, bool) {
	id, ok := g.names[name]
	return id, ok
}

// Shape returns the inferred output shape of id.
func (g *Graph) Shape(id NodeID) (Shape, bool) {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil, false
	}
	return g.nodes[id].Shape.Clone(), true
}

// Nodes returns copies of all nodes in id order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	for i := range g.nodes {
		out[i], _ = g.Node(NodeID(i))
	}
	return out
}

// Input appends an input placeholder of the given NCHW shape.
func (g *Graph) Input(name string, shape Shape) (NodeID, error) {
	if shape.Rank() != 4 {
		return 0, &ShapeError{Name: name, Op: OpInput, Inputs: []Shape{shape}, Reason: "input must be NCHW"}
	}
	for _, d := range shape {
		if d <= 0 {
			return 0, &ShapeError{Name: name, Op: OpInput, Inputs: []Shape{shape}, Reason: "dimensions must be positive"}
		}
	}
	return g.append(Node{Name: name, Op: OpInput, Shape: shape.Clone()})
}

// Add appends a node computing op over inputs. The output shape is inferred
// from the input shapes; a failure is returned as *ShapeError.
func (g *Graph) Add(op Op, name string, attrs Attrs, inputs ...NodeID) (NodeID, error) {
	if op == OpInput {
		return 0, fmt.Errorf("graph: use Input to add %q", name)
	}
	shapes := make([]Shape, len(inputs))
	for i, in := range inputs {
		s, ok := g.Shape(in)
		if !ok {
			return 0, fmt.Errorf("%w: %q references id %d", ErrNodeNotFound, name, in)
		}
		shapes[i] = s
	}
	out, reason := inferShape(op, attrs, shapes)
	if reason != "" {
		return 0, &ShapeError{Name: name, Op: op, Inputs: shapes, Reason: reason}
	}
	return g.append(Node{Name: name, Op: op, Inputs: slices.Clone(inputs), Attrs: attrs, Shape: out})
}

func (g *Graph) append(n Node) (NodeID, error) {
	if n.Name == "" {
		return 0, ErrEmptyName
	}
	if _, taken := g.names[n.Name]; taken {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateName, n.Name)
	}
	n.ID = NodeID(len(g.nodes))
	g.nodes = append(g.nodes, n)
	g.names[n.Name] = n.ID
	return n.ID, nil
}

// Consumers returns the ids of the nodes reading id, in id order.
func (g *Graph) Consumers(id NodeID) []NodeID {
	var out []NodeID
	for _, n := range g.nodes {
		if slices.Contains(n.Inputs, id) {
			out = append(out, n.ID)
		}
	}
	return out
}

// Outputs returns the nodes nobody consumes.
func (g *Graph) Outputs() []NodeID {
	used := make([]bool, len(g.nodes))
	for _, n := range g.nodes {
		for _, in := range n.Inputs {
			used[in] = true
		}
	}
	var out []NodeID
	for i, u := range used {
		if !u {
			out = append(out, NodeID(i))
		}
	}
	return out
}

// Validate checks graph consistency: dense ids, unique names and inputs that
// precede their consumers.
func (g *Graph) Validate() error {
	if len(g.nodes) == 0 {
		return fmt.Errorf("graph has no nodes")
	}
	if len(g.names) != len(g.nodes) {
		return fmt.Errorf("%w: %d names for %d nodes", ErrDuplicateName, len(g.names), len(g.nodes))
	}
	for i, n := range g.nodes {
		if n.ID != NodeID(i) {
			return fmt.Errorf("node %q has id %d at index %d", n.Name, n.ID, i)
		}
		if g.names[n.Name] != n.ID {
			return fmt.Errorf("%w: %q", ErrDuplicateName, n.Name)
		}
		for _, in := range n.Inputs {
			if in < 0 || in >= n.ID {
				return fmt.Errorf("%w: node %q reads id %d", ErrNodeNotFound, n.Name, in)
			}
		}
	}
	return nil
}

// TopologicalOrder returns an execution order using Kahn's algorithm. Ties
// are broken by id so the order is deterministic.
func (g *Graph) TopologicalOrder() ([]NodeID, error) {
	inDegree := make([]int, len(g.nodes))
	adj := make([][]NodeID, len(g.nodes))
	for _, n := range g.nodes {
		for _, in := range n.Inputs {
			if in < 0 || int(in) >= len(g.nodes) {
				return nil, fmt.Errorf("%w: node %q reads id %d", ErrNodeNotFound, n.Name, in)
			}
			adj[in] = append(adj[in], n.ID)
			inDegree[n.ID]++
		}
	}

	queue := make([]NodeID, 0, len(g.nodes))
	for id, d := range inDegree {
		if d == 0 {
			queue = append(queue, NodeID(id))
		}
	}

	order := make([]NodeID, 0, len(g.nodes))
	for len(queue) > 0 {
		slices.Sort(queue)
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)
		for _, next := range adj[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if len(order) != len(g.nodes) {
		return nil, ErrCycle
	}
	return order, nil
}

// Scope generates node names sharing a prefix.
type Scope struct {
	prefix string
}

// NewScope returns a scope naming nodes prefix_<local>.
func NewScope(prefix string) Scope { return Scope{prefix: prefix} }

// Name returns the full node name for local.
func (s Scope) Name(local string) string {
	if s.prefix == "" {
		return local
	}
	return s.prefix + "_" + local
}

// Sub returns a nested scope.
func (s Scope) Sub(prefix string) Scope { return Scope{prefix: s.Name(prefix)} }

// Prefix returns the scope prefix.
func (s Scope) Prefix() string { return s.prefix }
