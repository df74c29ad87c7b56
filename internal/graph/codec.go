package graph

import (
	"encoding/json"
	"fmt"
)

// DescriptionVersion is bumped whenever the JSON layout changes.
const DescriptionVersion = 1

// Description is the serialized form of a graph.
type Description struct {
	Version int        `json:"version"`
	Nodes   []NodeDesc `json:"nodes"`
}

// NodeDesc is the serialized form of a node.
type NodeDesc struct {
	ID     NodeID   `json:"id"`
	Name   string   `json:"name"`
	Op     string   `json:"op"`
	Inputs []NodeID `json:"inputs,omitempty"`
	Attrs  Attrs    `json:"attrs"`
	Shape  Shape    `json:"shape"`
}

// Describe returns the serializable description of g.
func (g *Graph) Describe() Description {
	d := Description{Version: DescriptionVersion, Nodes: make([]NodeDesc, len(g.nodes))}
	for i, n := range g.Nodes() {
		d.Nodes[i] = NodeDesc{ID: n.ID, Name: n.Name, Op: n.Op.String(), Inputs: n.Inputs, Attrs: n.Attrs, Shape: n.Shape}
	}
	return d
}

// MarshalJSON encodes the graph description.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Describe())
}

// Decode rebuilds a graph from its JSON description. Every node is replayed
// through Input/Add, so shapes are re-inferred and checked against the
// recorded ones.
func Decode(data []byte) (*Graph, error) {
	var d Description
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to decode graph description: %w", err)
	}
	if d.Version != DescriptionVersion {
		return nil, fmt.Errorf("unsupported description version: expected %d, got %d", DescriptionVersion, d.Version)
	}

	g := New()
	for i, nd := range d.Nodes {
		if nd.ID != NodeID(i) {
			return nil, fmt.Errorf("node %q has id %d at index %d", nd.Name, nd.ID, i)
		}
		op, err := ParseOp(nd.Op)
		if err != nil {
			return nil, err
		}
		var id NodeID
		if op == OpInput {
			id, err = g.Input(nd.Name, nd.Shape)
		} else {
			id, err = g.Add(op, nd.Name, nd.Attrs, nd.Inputs...)
		}
		if err != nil {
			return nil, err
		}
		if got := g.nodes[id].Shape; !got.Equal(nd.Shape) {
			return nil, fmt.Errorf("node %q: recorded shape %v, inferred %v", nd.Name, nd.Shape, got)
		}
	}
	return g, nil
}
