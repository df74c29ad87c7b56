package arch

import (
	"fmt"

	"github.com/hailam/chessnet/internal/graph"
)

// GateOptions configures a squeeze-excitation channel gate.
type GateOptions struct {
	// Ratio divides the channel count for the bottleneck; the result is truncated.
	Ratio int
	Act   Activation
	// HardSigmoid selects the piecewise-linear gate instead of the logistic one.
	HardSigmoid bool
}

// ChannelGate rescales every channel of x by a factor in [0, 1] computed
// from the globally pooled input. The output has the shape of x.
func ChannelGate(g *graph.Graph, x graph.NodeID, opts GateOptions, scope graph.Scope) (graph.NodeID, error) {
	shape, ok := g.Shape(x)
	if !ok {
		return 0, fmt.Errorf("%w: gate input id %d", graph.ErrNodeNotFound, x)
	}
	if shape.Rank() != 4 {
		return 0, configErrorf("channel gate needs NCHW input, got %v", shape)
	}
	channels := shape[1]
	if opts.Ratio <= 0 || channels/opts.Ratio == 0 {
		return 0, configErrorf("squeeze ratio %d invalid for %d channels", opts.Ratio, channels)
	}

	pool, err := g.Add(graph.OpGlobalAvgPool, scope.Name("pool0"), graph.Attrs{}, x)
	if err != nil {
		return 0, err
	}
	flat, err := g.Add(graph.OpFlatten, scope.Name("flatten0"), graph.Attrs{}, pool)
	if err != nil {
		return 0, err
	}
	squeeze, err := g.Add(graph.OpFullyConnected, scope.Name("fc0"), graph.Attrs{Units: channels / opts.Ratio}, flat)
	if err != nil {
		return 0, err
	}
	squeeze, err = Activate(g, squeeze, opts.Act, scope.Name("act0"))
	if err != nil {
		return 0, err
	}
	excite, err := g.Add(graph.OpFullyConnected, scope.Name("fc1"), graph.Attrs{Units: channels}, squeeze)
	if err != nil {
		return 0, err
	}
	gateAct := Sigmoid
	if opts.HardSigmoid {
		gateAct = HardSigmoid
	}
	gate, err := Activate(g, excite, gateAct, scope.Name("act1"))
	if err != nil {
		return 0, err
	}
	return g.Add(graph.OpChannelScale, scope.Name("scale"), graph.Attrs{}, x, gate)
}
