package graph

// ParamCount returns the number of learnable parameters owned by id.
func (g *Graph) ParamCount(id NodeID) int {
	n, ok := g.Node(id)
	if !ok || len(n.Inputs) == 0 {
		return 0
	}
	in := g.nodes[n.Inputs[0]].Shape
	switch n.Op {
	case OpConvolution:
		p := n.Attrs.Filters * in[1] * n.Attrs.Kernel * n.Attrs.Kernel
		if !n.Attrs.NoBias {
			p += n.Attrs.Filters
		}
		return p
	case OpBatchNorm:
		// gamma and beta; running statistics are not learned
		return 2 * in[1]
	case OpFullyConnected:
		return n.Attrs.Units*in.PerSample() + n.Attrs.Units
	}
	return 0
}

// SummaryRow describes one node for a layer table.
type SummaryRow struct {
	Name   string
	Op     Op
	Shape  Shape
	Params int
	Inputs []string
}

// Summary lists every node with its output shape and parameter count, and
// returns the total parameter count.
func (g *Graph) Summary() ([]SummaryRow, int) {
	rows := make([]SummaryRow, 0, len(g.nodes))
	total := 0
	for _, n := range g.nodes {
		inputs := make([]string, len(n.Inputs))
		for i, in := range n.Inputs {
			inputs[i] = g.nodes[in].Name
		}
		p := g.ParamCount(n.ID)
		total += p
		rows = append(rows, SummaryRow{Name: n.Name, Op: n.Op, Shape: n.Shape.Clone(), Params: p, Inputs: inputs})
	}
	return rows, total
}
