package arch

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hailam/chessnet/internal/graph"
)

var crazyhouse = Input{Batch: 1, Planes: 34, Height: 8, Width: 8}

func TestBuild_DefaultNetwork(t *testing.T) {
	net, err := Build(crazyhouse, DefaultConfig())
	require.NoError(t, err)

	g := net.Graph
	trunk, _ := g.Shape(net.Trunk)
	assert.Equal(t, graph.Shape{1, 256, 8, 8}, trunk)
	assert.Equal(t, "stem_act0", g.MustNode(net.Trunk).Name)
	assert.Equal(t, 8*8*81, net.PolicySize())

	// the raw input feeds the stem only
	assert.Equal(t, []graph.NodeID{mustLookup(t, g, "stem_conv0")}, g.Consumers(net.Data))
	assert.ElementsMatch(t, []graph.NodeID{net.Policy.Node, net.Value.Node}, g.Outputs())

	res := evaluate(t, g, 1)
	v := res.Value(net.Value.Output)
	assert.Equal(t, graph.Shape{1, 1}, v.Shape)
	assert.Greater(t, v.Data[0], float32(-1))
	assert.Less(t, v.Data[0], float32(1))
	assert.Equal(t, graph.Shape{1, 8 * 8 * 81}, res.Value(net.Policy.Node).Shape)
}

func TestBuild_Sinks(t *testing.T) {
	cfg := smallConfig()
	cfg.GradScaleValue = 0.05
	cfg.GradScalePolicy = 0.5
	net, err := Build(crazyhouse, cfg)
	require.NoError(t, err)

	require.Len(t, net.Sinks(), 2)
	policy, ok := net.Sink(PolicyTag)
	require.True(t, ok)
	assert.Equal(t, Loss{Kind: SoftmaxClassification, GradScale: 0.5}, policy.Loss)
	assert.Equal(t, graph.OpSoftmaxOutput, net.Graph.MustNode(policy.Node).Op)
	assert.Equal(t, PolicyTag, net.Graph.MustNode(policy.Node).Name)

	value, ok := net.Sink(ValueTag)
	require.True(t, ok)
	assert.Equal(t, Loss{Kind: ScaledRegression, GradScale: 0.05}, value.Loss)
	assert.Equal(t, graph.OpLinearRegressionOutput, net.Graph.MustNode(value.Node).Op)
	assert.Equal(t, 0.05, net.Graph.MustNode(value.Node).Attrs.GradScale)

	_, ok = net.Sink("wdl")
	assert.False(t, ok)
}

func TestBuild_AllVariantsHaveUniqueNames(t *testing.T) {
	for _, encoding := range []MoveEncoding{FromPlane, FromLabelSet} {
		for mask := 0; mask < 8; mask++ {
			cfg := smallConfig()
			cfg.MoveEncoding = encoding
			cfg.UseSEValue = mask&1 != 0
			cfg.UseSEPolicy = mask&2 != 0
			cfg.UseMixConv = mask&4 != 0
			net, err := Build(crazyhouse, cfg)
			require.NoError(t, err, "%s mask %d", encoding, mask)

			seen := make(map[string]bool)
			for _, n := range net.Graph.Nodes() {
				assert.False(t, seen[n.Name], "duplicate node %q", n.Name)
				seen[n.Name] = true
			}
			require.NoError(t, net.Graph.Validate())
		}
	}
}

func TestBuild_InvalidConfig(t *testing.T) {
	tests := map[string]struct {
		in     Input
		mutate func(*Config)
		target error
	}{
		"zero labels": {crazyhouse, func(c *Config) { c.MoveEncoding, c.Labels = FromLabelSet, 0 }, ErrInvalidConfig},
		"zero planes": {crazyhouse, func(c *Config) { c.PolicyChannels = 0 }, ErrInvalidConfig},
		"mix groups":  {crazyhouse, func(c *Config) { c.UseMixConv, c.ValueChannels = true, 6 }, ErrInvalidConfig},
		"gate ratio":  {crazyhouse, func(c *Config) { c.UseSEPolicy, c.Channels = true, 3 }, ErrInvalidConfig},
		"encoding":    {crazyhouse, func(c *Config) { c.MoveEncoding = "from_square" }, ErrInvalidConfig},
		"channels":    {crazyhouse, func(c *Config) { c.Channels = 0 }, ErrInvalidConfig},
		"batch":       {Input{Planes: 34, Height: 8, Width: 8}, func(*Config) {}, ErrInvalidConfig},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := smallConfig()
			tc.mutate(&cfg)
			net, err := Build(tc.in, cfg)
			require.ErrorIs(t, err, tc.target)
			assert.Nil(t, net)
		})
	}

	cfg := smallConfig()
	cfg.ActType = "swish"
	net, err := Build(crazyhouse, cfg)
	var uae *UnsupportedActivationError
	require.ErrorAs(t, err, &uae)
	assert.Nil(t, net)
	assert.False(t, errors.Is(err, ErrInvalidConfig))
}

func TestBuild_ShapeErrorIsReturnedUnwrapped(t *testing.T) {
	g, data := inputGraph(t, graph.Shape{1, 16, 8, 8})
	flat, err := g.Add(graph.OpFlatten, "flat", graph.Attrs{}, data)
	require.NoError(t, err)
	b, err := NewBuilder(g, smallConfig())
	require.NoError(t, err)

	_, err = b.ValueHead(flat)
	var se *graph.ShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "value_conv0", se.Name)
	assert.Equal(t, graph.OpConvolution, se.Op)
}

func TestBuild_Deterministic(t *testing.T) {
	cfg := smallConfig()
	cfg.UseMixConv, cfg.UseSEPolicy = true, true
	a, err := Build(crazyhouse, cfg)
	require.NoError(t, err)
	b, err := Build(crazyhouse, cfg)
	require.NoError(t, err)
	if diff := cmp.Diff(a.Graph.Describe(), b.Graph.Describe()); diff != "" {
		t.Errorf("rebuild differs (-first +second):\n%s", diff)
	}
}

func TestBuild_Concurrent(t *testing.T) {
	configs := make([]Config, 8)
	for i := range configs {
		cfg := smallConfig()
		cfg.Channels = 8 * (i + 1)
		cfg.UseSEPolicy = i%2 == 0
		cfg.UseSEValue = i%3 == 0
		if i%2 == 1 {
			cfg.MoveEncoding = FromLabelSet
		}
		configs[i] = cfg
	}
	want := make([]graph.Description, len(configs))
	for i, cfg := range configs {
		net, err := Build(crazyhouse, cfg)
		require.NoError(t, err)
		want[i] = net.Graph.Describe()
	}

	got := make([]graph.Description, len(configs))
	errs := make([]error, len(configs))
	var wg sync.WaitGroup
	for i, cfg := range configs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			net, err := Build(crazyhouse, cfg)
			if err != nil {
				errs[i] = err
				return
			}
			got[i] = net.Graph.Describe()
		}()
	}
	wg.Wait()
	for i := range configs {
		require.NoError(t, errs[i])
		if diff := cmp.Diff(want[i], got[i]); diff != "" {
			t.Errorf("config %d differs (-sequential +concurrent):\n%s", i, diff)
		}
	}
}

func TestBuild_DoesNotAliasConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.UseMixConv = true
	net, err := Build(crazyhouse, cfg)
	require.NoError(t, err)
	cfg.MixConvKernels[0] = 11
	assert.Equal(t, DefaultMixConvKernels, net.Config.MixConvKernels)
}

func TestBuild_LogsTruncatedGate(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := smallConfig()
	cfg.Channels = 18
	cfg.UseSEPolicy = true
	_, err := Build(crazyhouse, cfg, WithLogger(zap.New(core)))
	require.NoError(t, err)

	warn := logs.FilterMessage("policy gate bottleneck truncated").All()
	require.Len(t, warn, 1)
	assert.Equal(t, zapcore.WarnLevel, warn[0].Level)
	assert.Equal(t, int64(4), warn[0].ContextMap()["units"])
	assert.Equal(t, 1, logs.FilterMessage("network built").Len())

	logs.TakeAll()
	cfg.Channels = 16
	_, err = Build(crazyhouse, cfg, WithLogger(zap.New(core)))
	require.NoError(t, err)
	assert.Zero(t, logs.FilterMessage("policy gate bottleneck truncated").Len())
}

func mustLookup(t *testing.T, g *graph.Graph, name string) graph.NodeID {
	t.Helper()
	id, ok := g.Lookup(name)
	require.True(t, ok, name)
	return id
}
