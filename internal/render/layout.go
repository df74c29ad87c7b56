package render

import "github.com/hailam/chessnet/internal/graph"

const (
	boxWidth  = 190.0
	boxHeight = 40.0
	gapX      = 24.0
	gapY      = 34.0
	margin    = 20.0
)

type box struct {
	node   graph.Node
	row    int
	x, y   float64
	detail string
}

type edge struct{ from, to int }

// layout places every node on the row of its longest path from an input.
// Within a row nodes keep their id order.
type layout struct {
	boxes         []box
	edges         []edge
	width, height float64
}

func newLayout(g *graph.Graph) layout {
	nodes := g.Nodes()
	depth := make([]int, len(nodes))
	rows := 0
	for i, n := range nodes {
		for _, in := range n.Inputs {
			depth[i] = max(depth[i], depth[in]+1)
		}
		rows = max(rows, depth[i]+1)
	}

	perRow := make([]int, rows)
	l := layout{boxes: make([]box, len(nodes))}
	widest := 0
	for i, n := range nodes {
		col := perRow[depth[i]]
		perRow[depth[i]]++
		widest = max(widest, perRow[depth[i]])
		l.boxes[i] = box{
			node:   n,
			row:    depth[i],
			x:      margin + float64(col)*(boxWidth+gapX),
			y:      margin + float64(depth[i])*(boxHeight+gapY),
			detail: n.Op.String() + " " + n.Shape.String(),
		}
		for _, in := range n.Inputs {
			l.edges = append(l.edges, edge{from: int(in), to: i})
		}
	}
	l.width = 2*margin + float64(widest)*boxWidth + float64(max(widest-1, 0))*gapX
	l.height = 2*margin + float64(rows)*boxHeight + float64(max(rows-1, 0))*gapY
	return l
}

// fill returns the box colour for an op family.
func fill(op graph.Op) string {
	switch op {
	case graph.OpInput:
		return "#d9d9d9"
	case graph.OpConvolution:
		return "#9ecae1"
	case graph.OpBatchNorm:
		return "#c7e9c0"
	case graph.OpActivation, graph.OpLeakyReLU, graph.OpPlusScalar, graph.OpClip, graph.OpDivScalar:
		return "#fdd0a2"
	case graph.OpFullyConnected:
		return "#bcbddc"
	case graph.OpLinearRegressionOutput, graph.OpSoftmaxOutput:
		return "#fc9272"
	default:
		return "#f0f0f0"
	}
}
