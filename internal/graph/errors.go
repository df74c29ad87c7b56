package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph construction.
var (
	// ErrDuplicateName is returned when a node name is already registered in the graph.
	ErrDuplicateName = errors.New("duplicate node name")

	// ErrEmptyName is returned when a node is appended without a name.
	ErrEmptyName = errors.New("empty node name")

	// ErrNodeNotFound is returned when an input references an id outside the arena.
	ErrNodeNotFound = errors.New("node not found")

	// ErrCycle is returned when a decoded description is not a DAG.
	ErrCycle = errors.New("graph contains a cycle")
)

// ShapeError reports an operation whose output shape cannot be materialized
// from the shapes of its inputs.
type ShapeError struct {
	Name   string
	Op     Op
	Inputs []Shape
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape inference failed for %s (%s) with inputs %v: %s", e.Name, e.Op, e.Inputs, e.Reason)
}
