package arch

import "github.com/hailam/chessnet/internal/graph"

// BatchNormEps is the epsilon of every batch normalization node.
const BatchNormEps = 1e-3

// Stem converts the raw input planes into the trunk: 3x3 convolution without
// bias, batch normalization and activation.
func Stem(g *graph.Graph, data graph.NodeID, channels int, act Activation) (graph.NodeID, error) {
	scope := graph.NewScope("stem")
	body, err := g.Add(graph.OpConvolution, scope.Name("conv0"),
		graph.Attrs{Kernel: 3, Pad: 1, Filters: channels, NoBias: true}, data)
	if err != nil {
		return 0, err
	}
	body, err = g.Add(graph.OpBatchNorm, scope.Name("bn0"), graph.Attrs{Eps: BatchNormEps}, body)
	if err != nil {
		return 0, err
	}
	return Activate(g, body, act, scope.Name("act0"))
}
