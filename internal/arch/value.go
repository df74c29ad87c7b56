package arch

import (
	"go.uber.org/zap"

	"github.com/hailam/chessnet/internal/graph"
)

// ValueHead builds the scalar evaluation branch on top of trunk. The returned
// sink's Output is the tanh node, bounded to (-1, 1).
func (b *Builder) ValueHead(trunk graph.NodeID) (Sink, error) {
	g, cfg, act := b.g, b.plan.cfg, b.plan.act
	scope := graph.NewScope(ValueTag)

	k := cfg.ValueKernelSize
	out, err := g.Add(graph.OpConvolution, scope.Name("conv0"),
		graph.Attrs{Kernel: k, Pad: k / 2, Filters: cfg.ValueChannels, NoBias: true}, trunk)
	if err != nil {
		return Sink{}, err
	}
	if out, err = g.Add(graph.OpBatchNorm, scope.Name("bn0"), graph.Attrs{Eps: BatchNormEps}, out); err != nil {
		return Sink{}, err
	}
	if out, err = Activate(g, out, act, scope.Name("act0")); err != nil {
		return Sink{}, err
	}

	if b.plan.value.mixed() {
		if out, err = MixConv(g, out, cfg.MixConvKernels, scope.Sub("mix_conv0")); err != nil {
			return Sink{}, err
		}
		if out, err = g.Add(graph.OpBatchNorm, scope.Name("mix_bn1"), graph.Attrs{Eps: BatchNormEps}, out); err != nil {
			return Sink{}, err
		}
		if out, err = Activate(g, out, act, scope.Name("mix_act1")); err != nil {
			return Sink{}, err
		}
	}

	features, err := g.Add(graph.OpFlatten, scope.Name("flatten1"), graph.Attrs{}, out)
	if err != nil {
		return Sink{}, err
	}
	if b.plan.value.pooled() {
		pool, err := g.Add(graph.OpGlobalAvgPool, scope.Name("pool0"), graph.Attrs{}, trunk)
		if err != nil {
			return Sink{}, err
		}
		pooled, err := g.Add(graph.OpFlatten, scope.Name("flatten0"), graph.Attrs{}, pool)
		if err != nil {
			return Sink{}, err
		}
		if features, err = g.Add(graph.OpConcat, scope.Name("concat"), graph.Attrs{}, features, pooled); err != nil {
			return Sink{}, err
		}
	}
	b.log.Debug("value features",
		zap.Stringer("variant", b.plan.value), zap.Stringer("shape", mustShape(g, features)))

	hidden, err := g.Add(graph.OpFullyConnected, scope.Name("fc0"), graph.Attrs{Units: cfg.ValueFCSize}, features)
	if err != nil {
		return Sink{}, err
	}
	if hidden, err = Activate(g, hidden, act, scope.Name("act1")); err != nil {
		return Sink{}, err
	}
	scalar, err := g.Add(graph.OpFullyConnected, scope.Name("fc1"), graph.Attrs{Units: 1}, hidden)
	if err != nil {
		return Sink{}, err
	}
	value, err := Activate(g, scalar, Tanh, scope.Name("out"))
	if err != nil {
		return Sink{}, err
	}

	loss := Loss{Kind: ScaledRegression, GradScale: cfg.GradScaleValue}
	sink, err := g.Add(graph.OpLinearRegressionOutput, ValueTag, graph.Attrs{GradScale: loss.GradScale}, value)
	if err != nil {
		return Sink{}, err
	}
	return Sink{Tag: ValueTag, Node: sink, Output: value, Loss: loss}, nil
}
