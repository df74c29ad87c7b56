package arch

import "github.com/hailam/chessnet/internal/graph"

// Sink tags.
const (
	PolicyTag = "policy"
	ValueTag  = "value"
)

// LossKind names the loss wired to a sink.
type LossKind string

const (
	SoftmaxClassification LossKind = "softmax-classification"
	ScaledRegression      LossKind = "scaled-regression"
)

// Loss annotates a sink with its training objective.
type Loss struct {
	Kind      LossKind `json:"kind"`
	GradScale float64  `json:"grad_scale"`
}

// Sink is one of the two network outputs.
type Sink struct {
	Tag string
	// Node is the loss node used during training.
	Node graph.NodeID
	// Output is the pre-loss node read during inference.
	Output graph.NodeID
	Loss   Loss
}

// Network is a built policy/value graph. It is immutable once returned by Build.
type Network struct {
	Graph  *graph.Graph
	Input  Input
	Config Config
	Data   graph.NodeID
	Trunk  graph.NodeID
	Policy Sink
	Value  Sink
}

// Sinks returns the policy and value sinks.
func (n *Network) Sinks() []Sink {
	return []Sink{n.Policy, n.Value}
}

// Sink returns the sink with the given tag.
func (n *Network) Sink(tag string) (Sink, bool) {
	switch tag {
	case PolicyTag:
		return n.Policy, true
	case ValueTag:
		return n.Value, true
	}
	return Sink{}, false
}

// PolicySize returns the length of the policy logits vector.
func (n *Network) PolicySize() int {
	s, _ := n.Graph.Shape(n.Policy.Output)
	return s[1]
}
