package graph

import "fmt"

// inferShape computes the output shape of op applied to inputs. The returned
// string is empty on success and holds the reason otherwise.
func inferShape(op Op, a Attrs, in []Shape) (Shape, string) {
	switch want := op.arity(); {
	case want == -1 && len(in) < 2:
		return nil, fmt.Sprintf("%s needs at least 2 inputs, got %d", op, len(in))
	case want >= 0 && len(in) != want:
		return nil, fmt.Sprintf("%s needs %d inputs, got %d", op, want, len(in))
	}

	switch op {
	case OpConvolution:
		x := in[0]
		if x.Rank() != 4 {
			return nil, "convolution input must be NCHW"
		}
		if a.Filters <= 0 || a.Kernel <= 0 || a.Pad < 0 {
			return nil, fmt.Sprintf("invalid filters=%d kernel=%d pad=%d", a.Filters, a.Kernel, a.Pad)
		}
		h := x[2] + 2*a.Pad - a.Kernel + 1
		w := x[3] + 2*a.Pad - a.Kernel + 1
		if h <= 0 || w <= 0 {
			return nil, fmt.Sprintf("kernel %d larger than padded input %dx%d", a.Kernel, x[2], x[3])
		}
		return Shape{x[0], a.Filters, h, w}, ""

	case OpBatchNorm:
		if in[0].Rank() < 2 {
			return nil, "batch norm needs a channel axis"
		}
		return in[0].Clone(), ""

	case OpActivation:
		if !validPrimitiveAct(a.Act) {
			return nil, fmt.Sprintf("unknown activation %q", a.Act)
		}
		return in[0].Clone(), ""

	case OpLeakyReLU, OpPlusScalar:
		return in[0].Clone(), ""

	case OpClip:
		if a.Min > a.Max {
			return nil, fmt.Sprintf("clip bounds inverted: [%g, %g]", a.Min, a.Max)
		}
		return in[0].Clone(), ""

	case OpDivScalar:
		if a.Scalar == 0 {
			return nil, "division by zero"
		}
		return in[0].Clone(), ""

	case OpGlobalAvgPool:
		x := in[0]
		if x.Rank() != 4 {
			return nil, "pooling input must be NCHW"
		}
		return Shape{x[0], x[1], 1, 1}, ""

	case OpFlatten:
		x := in[0]
		if x.Rank() < 2 {
			return nil, "flatten needs a batch axis and at least one feature axis"
		}
		return Shape{x[0], x.PerSample()}, ""

	case OpFullyConnected:
		x := in[0]
		if a.Units <= 0 {
			return nil, fmt.Sprintf("invalid units %d", a.Units)
		}
		if x.Rank() < 2 {
			return nil, "fully connected input needs a batch axis"
		}
		return Shape{x[0], a.Units}, ""

	case OpSliceChannels:
		x := in[0]
		if x.Rank() < 2 {
			return nil, "slice needs a channel axis"
		}
		if a.Begin < 0 || a.End > x[1] || a.Begin >= a.End {
			return nil, fmt.Sprintf("slice [%d, %d) out of range for %d channels", a.Begin, a.End, x[1])
		}
		out := x.Clone()
		out[1] = a.End - a.Begin
		return out, ""

	case OpConcat:
		out := in[0].Clone()
		for _, s := range in[1:] {
			if s.Rank() != out.Rank() || out.Rank() < 2 {
				return nil, "concat inputs must share a rank of at least 2"
			}
			for d := range s {
				if d != 1 && s[d] != out[d] {
					return nil, fmt.Sprintf("concat inputs differ on axis %d", d)
				}
			}
			out[1] += s[1]
		}
		return out, ""

	case OpChannelScale:
		x, g := in[0], in[1]
		if x.Rank() != 4 {
			return nil, "channel scale data must be NCHW"
		}
		if g.Rank() != 2 || g[0] != x[0] || g[1] != x[1] {
			return nil, fmt.Sprintf("gate %v does not match data %v channels", g, x)
		}
		return x.Clone(), ""

	case OpLinearRegressionOutput:
		return in[0].Clone(), ""

	case OpSoftmaxOutput:
		if in[0].Rank() != 2 {
			return nil, "softmax output needs flat logits"
		}
		return in[0].Clone(), ""
	}
	return nil, fmt.Sprintf("unsupported op %s", op)
}
