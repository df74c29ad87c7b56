package arch

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hailam/chessnet/internal/engine"
	"github.com/hailam/chessnet/internal/graph"
)

// planes returns a tensor of board-like values in [0, 1).
func planes(shape graph.Shape, seed uint64) *engine.Tensor {
	r := rand.New(rand.NewPCG(seed, 99))
	t := engine.NewTensor(shape)
	for i := range t.Data {
		t.Data[i] = float32(r.Float64())
	}
	return t
}

// evaluate runs g with a random feed for its "data" input.
func evaluate(t *testing.T, g *graph.Graph, seed uint64) *engine.Result {
	t.Helper()
	id, ok := g.Lookup(DataName)
	require.True(t, ok, "graph has no %q input", DataName)
	shape, _ := g.Shape(id)

	e, err := engine.New(g, engine.WithSeed(seed))
	require.NoError(t, err)
	res, err := e.Run(map[string]*engine.Tensor{DataName: planes(shape, seed)})
	require.NoError(t, err)
	return res
}

func inputGraph(t *testing.T, shape graph.Shape) (*graph.Graph, graph.NodeID) {
	t.Helper()
	g := graph.New()
	data, err := g.Input(DataName, shape)
	require.NoError(t, err)
	return g, data
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Channels = 16
	cfg.ValueChannels = 4
	cfg.ValueFCSize = 32
	cfg.PolicyChannels = 4
	cfg.Labels = 100
	return cfg
}
