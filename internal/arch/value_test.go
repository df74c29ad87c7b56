package arch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/chessnet/internal/graph"
)

// valueHead builds a value head directly on a trunk-shaped input.
func valueHead(t *testing.T, trunk graph.Shape, cfg Config) (*graph.Graph, Sink) {
	t.Helper()
	g, data := inputGraph(t, trunk)
	b, err := NewBuilder(g, cfg)
	require.NoError(t, err)
	sink, err := b.ValueHead(data)
	require.NoError(t, err)
	return g, sink
}

func TestValueHead_ScalarInOpenInterval(t *testing.T) {
	variants := map[string]func(*Config){
		"plain":        func(*Config) {},
		"mixed":        func(c *Config) { c.UseMixConv = true },
		"pooled":       func(c *Config) { c.UseSEValue = true },
		"pooled+mixed": func(c *Config) { c.UseSEValue, c.UseMixConv = true, true },
	}
	for name, apply := range variants {
		t.Run(name, func(t *testing.T) {
			cfg := smallConfig()
			apply(&cfg)
			g, sink := valueHead(t, graph.Shape{3, 16, 8, 8}, cfg)

			got, _ := g.Shape(sink.Output)
			assert.Equal(t, graph.Shape{3, 1}, got)
			assert.Equal(t, graph.OpActivation, g.MustNode(sink.Output).Op)
			assert.Equal(t, graph.ActTanh, g.MustNode(sink.Output).Attrs.Act)

			v := evaluate(t, g, 7).Value(sink.Output)
			assert.Greater(t, v.Min(), float32(-1))
			assert.Less(t, v.Max(), float32(1))
		})
	}
}

func TestValueHead_PoolingWidensFeatures(t *testing.T) {
	width := func(cfg Config) int {
		g, _ := valueHead(t, graph.Shape{1, 16, 8, 8}, cfg)
		fc, ok := g.Lookup("value_fc0")
		require.True(t, ok)
		s, _ := g.Shape(g.MustNode(fc).Inputs[0])
		return s[1]
	}
	for _, mixed := range []bool{false, true} {
		cfg := smallConfig()
		cfg.UseMixConv = mixed
		plain := width(cfg)
		cfg.UseSEValue = true
		assert.Equal(t, plain+16, width(cfg), "mixed=%v", mixed)
	}
}

func TestValueHead_MixConvFeedsFlatten(t *testing.T) {
	cfg := smallConfig()
	cfg.UseMixConv = true
	g, _ := valueHead(t, graph.Shape{1, 16, 8, 8}, cfg)

	flat, ok := g.Lookup("value_flatten1")
	require.True(t, ok)
	act := g.MustNode(g.MustNode(flat).Inputs[0])
	assert.Equal(t, "value_mix_act1", act.Name)
	_, ok = g.Lookup("value_mix_conv0_concat")
	assert.True(t, ok)
}

func TestValueHead_ReferenceTrunk(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ValueChannels = 4
	cfg.ValueKernelSize = 1
	cfg.ValueFCSize = 256
	g, sink := valueHead(t, graph.Shape{1, 256, 8, 8}, cfg)

	conv, _ := g.Lookup("value_conv0")
	assert.Equal(t, graph.Attrs{Kernel: 1, Pad: 0, Filters: 4, NoBias: true}, g.MustNode(conv).Attrs)

	v := evaluate(t, g, 11).Value(sink.Output)
	require.Equal(t, graph.Shape{1, 1}, v.Shape)
	assert.Greater(t, v.Data[0], float32(-1))
	assert.Less(t, v.Data[0], float32(1))

	assert.Equal(t, ScaledRegression, sink.Loss.Kind)
	assert.Equal(t, DefaultGradScaleValue, g.MustNode(sink.Node).Attrs.GradScale)
}
