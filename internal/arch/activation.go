package arch

import (
	"github.com/hailam/chessnet/internal/graph"
)

// Activation selects a non-linearity.
type Activation uint8

const (
	ReLU Activation = iota
	Sigmoid
	SoftReLU
	SoftSign
	Tanh
	LeakyReLU
	HardSigmoid
)

// LeakySlope is the fixed negative slope of LeakyReLU.
const LeakySlope = 0.2

var activationNames = map[string]Activation{
	"relu":         ReLU,
	"sigmoid":      Sigmoid,
	"softrelu":     SoftReLU,
	"softplus":     SoftReLU,
	"softsign":     SoftSign,
	"tanh":         Tanh,
	"lrelu":        LeakyReLU,
	"leaky":        LeakyReLU,
	"hard_sigmoid": HardSigmoid,
	"hard-sigmoid": HardSigmoid,
}

// ParseActivation maps a configured activation name to its kind.
func ParseActivation(name string) (Activation, error) {
	a, ok := activationNames[name]
	if !ok {
		return 0, &UnsupportedActivationError{Kind: name}
	}
	return a, nil
}

func (a Activation) String() string {
	switch a {
	case ReLU:
		return "relu"
	case Sigmoid:
		return "sigmoid"
	case SoftReLU:
		return "softrelu"
	case SoftSign:
		return "softsign"
	case Tanh:
		return "tanh"
	case LeakyReLU:
		return "lrelu"
	case HardSigmoid:
		return "hard_sigmoid"
	}
	return "unknown"
}

// Activate appends the activation a applied to x. The result has the shape
// of x and is registered under name.
func Activate(g *graph.Graph, x graph.NodeID, a Activation, name string) (graph.NodeID, error) {
	switch a {
	case ReLU, Sigmoid, SoftReLU, SoftSign, Tanh:
		return g.Add(graph.OpActivation, name, graph.Attrs{Act: a.String()}, x)
	case LeakyReLU:
		return g.Add(graph.OpLeakyReLU, name, graph.Attrs{Slope: LeakySlope}, x)
	case HardSigmoid:
		// clip(x + 3, 0, 6) / 6
		shifted, err := g.Add(graph.OpPlusScalar, name+"_shift", graph.Attrs{Scalar: 3}, x)
		if err != nil {
			return 0, err
		}
		clipped, err := g.Add(graph.OpClip, name+"_clip", graph.Attrs{Min: 0, Max: 6}, shifted)
		if err != nil {
			return 0, err
		}
		return g.Add(graph.OpDivScalar, name, graph.Attrs{Scalar: 6}, clipped)
	}
	return 0, &UnsupportedActivationError{Kind: a.String()}
}
