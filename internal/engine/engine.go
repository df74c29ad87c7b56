// Package engine is a reference executor for network graphs.
//
// It evaluates a graph in inference mode on the CPU so that built networks
// can be checked numerically without an external tensor runtime. Parameters
// are synthetic and deterministic: every convolution and fully connected node
// draws Xavier-uniform weights from a generator seeded with (seed, node id),
// biases are zero, and batch normalization uses unit statistics. Learned
// weights are never loaded.
package engine

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/hailam/chessnet/internal/graph"
)

// DefaultSeed seeds parameter generation when WithSeed is not given.
const DefaultSeed = 12345

var (
	// ErrMissingFeed is returned when an input node has no tensor in the feeds.
	ErrMissingFeed = errors.New("missing feed for input")
	// ErrShapeMismatch is returned when a feed does not match its input node.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// Option configures an Engine.
type Option func(*Engine)

// WithSeed sets the parameter seed.
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.seed = seed }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

type params struct {
	// convolution weights, [filters][channels][k][k]
	kernel []float32
	bias   []float32
	// fully connected weights, units x features
	dense     *mat.Dense
	denseBias []float64
}

// Engine evaluates one graph. Separate engines may run concurrently; a
// single engine is not safe for concurrent Run calls.
type Engine struct {
	g      *graph.Graph
	order  []graph.NodeID
	params map[graph.NodeID]*params
	seed   uint64
	log    *zap.Logger
}

// New prepares g for execution and generates its parameters.
func New(g *graph.Graph, opts ...Option) (*Engine, error) {
	e := &Engine{g: g, params: make(map[graph.NodeID]*params), seed: DefaultSeed, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	e.order = order

	for _, id := range order {
		n := g.MustNode(id)
		switch n.Op {
		case graph.OpConvolution:
			e.params[id] = e.convParams(n)
		case graph.OpFullyConnected:
			e.params[id] = e.denseParams(n)
		}
	}
	return e, nil
}

func (e *Engine) rng(id graph.NodeID) *rand.Rand {
	return rand.New(rand.NewPCG(e.seed, uint64(id)))
}

func xavier(r *rand.Rand, fanIn, fanOut int) float64 {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	return (2*r.Float64() - 1) * limit
}

func (e *Engine) convParams(n graph.Node) *params {
	in := e.g.MustNode(n.Inputs[0]).Shape
	k, f, c := n.Attrs.Kernel, n.Attrs.Filters, in[1]
	r := e.rng(n.ID)
	p := &params{kernel: make([]float32, f*c*k*k), bias: make([]float32, f)}
	for i := range p.kernel {
		p.kernel[i] = float32(xavier(r, c*k*k, f*k*k))
	}
	return p
}

func (e *Engine) denseParams(n graph.Node) *params {
	features := e.g.MustNode(n.Inputs[0]).Shape.PerSample()
	units := n.Attrs.Units
	r := e.rng(n.ID)
	w := make([]float64, units*features)
	for i := range w {
		w[i] = xavier(r, features, units)
	}
	return &params{dense: mat.NewDense(units, features, w), denseBias: make([]float64, units)}
}

// Result holds the value of every node after a Run.
type Result struct {
	g      *graph.Graph
	values []*Tensor
}

// Value returns the tensor computed for id.
func (r *Result) Value(id graph.NodeID) *Tensor {
	return r.values[id]
}

// Get returns the tensor computed for the named node.
func (r *Result) Get(name string) (*Tensor, bool) {
	id, ok := r.g.Lookup(name)
	if !ok {
		return nil, false
	}
	return r.values[id], true
}

// Run evaluates every node. feeds maps input node names to tensors.
func (e *Engine) Run(feeds map[string]*Tensor) (*Result, error) {
	start := time.Now()
	res := &Result{g: e.g, values: make([]*Tensor, e.g.Len())}

	for _, id := range e.order {
		n := e.g.MustNode(id)
		if n.Op == graph.OpInput {
			t, ok := feeds[n.Name]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrMissingFeed, n.Name)
			}
			if !t.Shape.Equal(n.Shape) {
				return nil, fmt.Errorf("%w: %q expects %v, got %v", ErrShapeMismatch, n.Name, n.Shape, t.Shape)
			}
			res.values[id] = t
			continue
		}

		in := make([]*Tensor, len(n.Inputs))
		for i, src := range n.Inputs {
			in[i] = res.values[src]
		}
		out, err := e.eval(n, in)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
		res.values[id] = out
	}

	e.log.Debug("graph evaluated", zap.Int("nodes", len(e.order)), zap.Duration("elapsed", time.Since(start)))
	return res, nil
}
