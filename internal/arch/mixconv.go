package arch

import (
	"fmt"

	"github.com/hailam/chessnet/internal/graph"
)

// MixConv applies a different kernel size to each of len(kernels) equal
// channel groups of x and concatenates the results. With a single kernel it
// is a plain convolution. Padding keeps the spatial size; the output has the
// channel count of x.
func MixConv(g *graph.Graph, x graph.NodeID, kernels []int, scope graph.Scope) (graph.NodeID, error) {
	shape, ok := g.Shape(x)
	if !ok {
		return 0, fmt.Errorf("%w: mix conv input id %d", graph.ErrNodeNotFound, x)
	}
	if shape.Rank() != 4 {
		return 0, configErrorf("mixed convolution needs NCHW input, got %v", shape)
	}
	channels := shape[1]
	if err := checkKernels(channels, kernels); err != nil {
		return 0, err
	}

	if len(kernels) == 1 {
		k := kernels[0]
		return g.Add(graph.OpConvolution, scope.Name(fmt.Sprintf("conv3_k%d", k)),
			graph.Attrs{Kernel: k, Pad: k / 2, Filters: channels, NoBias: true}, x)
	}

	group := channels / len(kernels)
	convs := make([]graph.NodeID, len(kernels))
	for i, k := range kernels {
		part, err := g.Add(graph.OpSliceChannels, scope.Name(fmt.Sprintf("split%d", i)),
			graph.Attrs{Begin: i * group, End: (i + 1) * group}, x)
		if err != nil {
			return 0, err
		}
		// the group index keeps names unique when a kernel size repeats
		convs[i], err = g.Add(graph.OpConvolution, scope.Name(fmt.Sprintf("conv%d_k%d", i, k)),
			graph.Attrs{Kernel: k, Pad: k / 2, Filters: group, NoBias: true}, part)
		if err != nil {
			return 0, err
		}
	}
	return g.Add(graph.OpConcat, scope.Name("concat"), graph.Attrs{}, convs...)
}
