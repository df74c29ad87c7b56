package arch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/chessnet/internal/graph"
)

func policyHead(t *testing.T, trunk graph.Shape, cfg Config) (*graph.Graph, Sink) {
	t.Helper()
	g, data := inputGraph(t, trunk)
	b, err := NewBuilder(g, cfg)
	require.NoError(t, err)
	sink, err := b.PolicyHead(data)
	require.NoError(t, err)
	return g, sink
}

func TestPolicyHead_LogitCount(t *testing.T) {
	tests := []struct {
		name     string
		encoding MoveEncoding
		gated    bool
		h, w     int
		want     int
	}{
		{"plane 8x8", FromPlane, false, 8, 8, 8 * 8 * 4},
		{"plane gated", FromPlane, true, 8, 8, 8 * 8 * 4},
		{"plane 5x6", FromPlane, false, 5, 6, 5 * 6 * 4},
		{"labels", FromLabelSet, false, 8, 8, 100},
		{"labels gated", FromLabelSet, true, 4, 4, 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := smallConfig()
			cfg.MoveEncoding = tc.encoding
			cfg.UseSEPolicy = tc.gated
			g, sink := policyHead(t, graph.Shape{2, 16, tc.h, tc.w}, cfg)

			got, _ := g.Shape(sink.Output)
			assert.Equal(t, graph.Shape{2, tc.want}, got)
			sinkShape, _ := g.Shape(sink.Node)
			assert.Equal(t, got, sinkShape)

			probs := evaluate(t, g, 5).Value(sink.Node)
			for n := 0; n < 2; n++ {
				var sum float64
				for _, p := range probs.Row(n) {
					sum += float64(p)
				}
				assert.InDelta(t, 1.0, sum, 1e-4)
			}
		})
	}
}

func TestPolicyHead_ReferencePlaneMap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PolicyChannels = 4
	g, sink := policyHead(t, graph.Shape{1, 256, 8, 8}, cfg)

	got, _ := g.Shape(sink.Output)
	assert.Equal(t, graph.Shape{1, 256}, got)
	assert.Equal(t, SoftmaxClassification, sink.Loss.Kind)
	assert.Equal(t, DefaultGradScalePolicy, g.MustNode(sink.Node).Attrs.GradScale)
	_, ok := g.Lookup("policy_fc0")
	assert.False(t, ok, "plane encoding has no fully connected layer")
}

func TestPolicyHead_LabelCountIgnoresPlanes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MoveEncoding = FromLabelSet
	cfg.Labels = 1858
	cfg.Channels = 32
	for _, planes := range []int{34, 39, 112} {
		net, err := Build(Input{Batch: 1, Planes: planes, Height: 8, Width: 8}, cfg)
		require.NoError(t, err)
		assert.Equal(t, 1858, net.PolicySize(), "planes=%d", planes)
	}
}

func TestPolicyHead_BiasFlag(t *testing.T) {
	for _, noBias := range []bool{false, true} {
		cfg := smallConfig()
		cfg.PolicyNoBias = noBias
		g, _ := policyHead(t, graph.Shape{1, 16, 8, 8}, cfg)
		conv, ok := g.Lookup("policy_conv1")
		require.True(t, ok)
		assert.Equal(t, noBias, g.MustNode(conv).Attrs.NoBias)
		assert.Equal(t, 4, g.MustNode(conv).Attrs.Filters)
	}
}

func TestPolicyHead_GateNodes(t *testing.T) {
	cfg := smallConfig()
	cfg.UseSEPolicy = true
	g, _ := policyHead(t, graph.Shape{1, 16, 8, 8}, cfg)

	scale, ok := g.Lookup("policy_se_scale")
	require.True(t, ok)
	assert.Equal(t, graph.OpChannelScale, g.MustNode(scale).Op)
	squeeze, _ := g.Lookup("policy_se_fc0")
	assert.Equal(t, 16/PolicySqueezeRatio, g.MustNode(squeeze).Attrs.Units)
	gate, _ := g.Lookup("policy_se_act1")
	assert.Equal(t, graph.OpDivScalar, g.MustNode(gate).Op, "policy gate uses hard sigmoid")

	conv, _ := g.Lookup("policy_conv1")
	assert.Equal(t, scale, g.MustNode(conv).Inputs[0])
}
