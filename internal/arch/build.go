// Package arch assembles policy/value network graphs for chess variants.
//
// A network consists of a stem turning the encoded board planes into the
// trunk, and two heads reading the trunk:
//
//	data -> stem -> trunk -> value head  -> tanh -> "value"  (scaled regression)
//	                      -> policy head -> logits -> "policy" (softmax classification)
//
// Optional blocks (squeeze-excitation on either head, a mixed-kernel
// convolution in the value head) and the move encoding are resolved from
// Config once, before the first node is appended. An invalid configuration
// therefore never yields a partial graph.
//
// # Usage
//
//	net, err := arch.Build(arch.Input{Batch: 1, Planes: 34, Height: 8, Width: 8}, arch.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(net.PolicySize())
package arch

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hailam/chessnet/internal/graph"
)

// DataName is the name of the input node.
const DataName = "data"

type options struct {
	log *zap.Logger
}

// Option customizes Build and NewBuilder.
type Option func(*options)

// WithLogger sets the logger receiving construction events.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// Builder appends network blocks to a graph for one resolved configuration.
type Builder struct {
	g    *graph.Graph
	plan plan
	log  *zap.Logger
}

// NewBuilder resolves cfg and returns a builder appending to g. All
// configuration errors are reported here.
func NewBuilder(g *graph.Graph, cfg Config, opts ...Option) (*Builder, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	p, err := resolve(cfg)
	if err != nil {
		return nil, err
	}
	return &Builder{g: g, plan: p, log: o.log}, nil
}

// Stem appends the stem on data.
func (b *Builder) Stem(data graph.NodeID) (graph.NodeID, error) {
	return Stem(b.g, data, b.plan.cfg.Channels, b.plan.act)
}

// Build constructs a fresh network for in and cfg. Each call owns its graph,
// so Build may run concurrently with different configurations.
func Build(in Input, cfg Config, opts ...Option) (*Network, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: input: %w", ErrInvalidConfig, err)
	}
	g := graph.New()
	b, err := NewBuilder(g, cfg, opts...)
	if err != nil {
		return nil, err
	}

	data, err := g.Input(DataName, in.Shape())
	if err != nil {
		return nil, err
	}
	trunk, err := b.Stem(data)
	if err != nil {
		return nil, err
	}
	value, err := b.ValueHead(trunk)
	if err != nil {
		return nil, err
	}
	policy, err := b.PolicyHead(trunk)
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	b.log.Info("network built",
		zap.Int("nodes", g.Len()),
		zap.Stringer("value_variant", b.plan.value),
		zap.Stringer("policy_variant", b.plan.policy),
		zap.Int("policy_size", mustShape(g, policy.Output)[1]))

	return &Network{
		Graph:  g,
		Input:  in,
		Config: b.plan.cfg,
		Data:   data,
		Trunk:  trunk,
		Policy: policy,
		Value:  value,
	}, nil
}

func mustShape(g *graph.Graph, id graph.NodeID) graph.Shape {
	s, _ := g.Shape(id)
	return s
}
