package arch

import (
	"go.uber.org/zap"

	"github.com/hailam/chessnet/internal/graph"
)

// PolicyHead builds the move-logits branch on top of trunk. The returned
// sink's Output holds the raw logits; the sink node itself applies softmax.
func (b *Builder) PolicyHead(trunk graph.NodeID) (Sink, error) {
	g, cfg, act := b.g, b.plan.cfg, b.plan.act
	scope := graph.NewScope(PolicyTag)

	trunkShape := mustShape(g, trunk)
	out, err := g.Add(graph.OpConvolution, scope.Name("conv0"),
		graph.Attrs{Kernel: 3, Pad: 1, Filters: trunkShape[1], NoBias: true}, trunk)
	if err != nil {
		return Sink{}, err
	}
	if out, err = g.Add(graph.OpBatchNorm, scope.Name("bn0"), graph.Attrs{Eps: BatchNormEps}, out); err != nil {
		return Sink{}, err
	}
	if out, err = Activate(g, out, act, scope.Name("act0")); err != nil {
		return Sink{}, err
	}

	if b.plan.policy.gated() {
		if b.plan.gateTruncated {
			b.log.Warn("policy gate bottleneck truncated",
				zap.Int("channels", trunkShape[1]), zap.Int("ratio", PolicySqueezeRatio),
				zap.Int("units", trunkShape[1]/PolicySqueezeRatio))
		}
		opts := GateOptions{Ratio: PolicySqueezeRatio, Act: act, HardSigmoid: true}
		if out, err = ChannelGate(g, out, opts, scope.Sub("se")); err != nil {
			return Sink{}, err
		}
	}

	var logits graph.NodeID
	if b.plan.policy.fromPlane() {
		planes, err := g.Add(graph.OpConvolution, scope.Name("conv1"),
			graph.Attrs{Kernel: 3, Pad: 1, Filters: cfg.PolicyChannels, NoBias: cfg.PolicyNoBias}, out)
		if err != nil {
			return Sink{}, err
		}
		if logits, err = g.Add(graph.OpFlatten, scope.Name("out"), graph.Attrs{}, planes); err != nil {
			return Sink{}, err
		}
	} else {
		flat, err := g.Add(graph.OpFlatten, scope.Name("flatten0"), graph.Attrs{}, out)
		if err != nil {
			return Sink{}, err
		}
		if logits, err = g.Add(graph.OpFullyConnected, scope.Name("out"), graph.Attrs{Units: cfg.Labels}, flat); err != nil {
			return Sink{}, err
		}
	}
	b.log.Debug("policy logits",
		zap.Stringer("variant", b.plan.policy), zap.Stringer("shape", mustShape(g, logits)))

	loss := Loss{Kind: SoftmaxClassification, GradScale: cfg.GradScalePolicy}
	sink, err := g.Add(graph.OpSoftmaxOutput, PolicyTag, graph.Attrs{GradScale: loss.GradScale}, logits)
	if err != nil {
		return Sink{}, err
	}
	return Sink{Tag: PolicyTag, Node: sink, Output: logits, Loss: loss}, nil
}
