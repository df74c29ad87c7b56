package engine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/hailam/chessnet/internal/graph"
)

func (e *Engine) eval(n graph.Node, in []*Tensor) (*Tensor, error) {
	a := n.Attrs
	switch n.Op {
	case graph.OpConvolution:
		return convolve(in[0], e.params[n.ID], a, n.Shape), nil
	case graph.OpBatchNorm:
		// unit running statistics, gamma 1, beta 0
		scale := 1 / math.Sqrt(1+a.Eps)
		return mapElems(in[0], func(x float64) float64 { return x * scale }), nil
	case graph.OpActivation:
		f, ok := activations[a.Act]
		if !ok {
			return nil, fmt.Errorf("unknown activation %q", a.Act)
		}
		return mapElems(in[0], f), nil
	case graph.OpLeakyReLU:
		return mapElems(in[0], func(x float64) float64 {
			if x < 0 {
				return a.Slope * x
			}
			return x
		}), nil
	case graph.OpPlusScalar:
		return mapElems(in[0], func(x float64) float64 { return x + a.Scalar }), nil
	case graph.OpClip:
		return mapElems(in[0], func(x float64) float64 { return math.Min(math.Max(x, a.Min), a.Max) }), nil
	case graph.OpDivScalar:
		return mapElems(in[0], func(x float64) float64 { return x / a.Scalar }), nil
	case graph.OpGlobalAvgPool:
		return globalAvgPool(in[0]), nil
	case graph.OpFlatten:
		return &Tensor{Shape: n.Shape.Clone(), Data: in[0].Data}, nil
	case graph.OpFullyConnected:
		return dense(in[0], e.params[n.ID], n.Shape), nil
	case graph.OpSliceChannels:
		return sliceChannels(in[0], a.Begin, a.End, n.Shape), nil
	case graph.OpConcat:
		return concat(in, n.Shape), nil
	case graph.OpChannelScale:
		return channelScale(in[0], in[1]), nil
	case graph.OpLinearRegressionOutput:
		return in[0], nil
	case graph.OpSoftmaxOutput:
		return softmax(in[0]), nil
	}
	return nil, fmt.Errorf("unsupported op %s", n.Op)
}

var activations = map[string]func(float64) float64{
	graph.ActReLU:     func(x float64) float64 { return math.Max(x, 0) },
	graph.ActSigmoid:  func(x float64) float64 { return 1 / (1 + math.Exp(-x)) },
	graph.ActSoftReLU: func(x float64) float64 { return math.Log1p(math.Exp(x)) },
	graph.ActSoftSign: func(x float64) float64 { return x / (1 + math.Abs(x)) },
	graph.ActTanh:     math.Tanh,
}

func mapElems(x *Tensor, f func(float64) float64) *Tensor {
	out := NewTensor(x.Shape)
	for i, v := range x.Data {
		out.Data[i] = float32(f(float64(v)))
	}
	return out
}

func convolve(x *Tensor, p *params, a graph.Attrs, shape graph.Shape) *Tensor {
	out := NewTensor(shape)
	batch, channels, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	filters, oh, ow := shape[1], shape[2], shape[3]
	k, pad := a.Kernel, a.Pad

	acc := make([]float64, oh*ow)
	for b := 0; b < batch; b++ {
		for f := 0; f < filters; f++ {
			clear(acc)
			for c := 0; c < channels; c++ {
				plane := x.Data[(b*channels+c)*h*w : (b*channels+c+1)*h*w]
				weights := p.kernel[(f*channels+c)*k*k : (f*channels+c+1)*k*k]
				for ky := 0; ky < k; ky++ {
					for kx := 0; kx < k; kx++ {
						wgt := float64(weights[ky*k+kx])
						for oy := 0; oy < oh; oy++ {
							iy := oy + ky - pad
							if iy < 0 || iy >= h {
								continue
							}
							for ox := 0; ox < ow; ox++ {
								ix := ox + kx - pad
								if ix < 0 || ix >= w {
									continue
								}
								acc[oy*ow+ox] += wgt * float64(plane[iy*w+ix])
							}
						}
					}
				}
			}
			dst := out.Data[(b*filters+f)*oh*ow : (b*filters+f+1)*oh*ow]
			bias := float64(p.bias[f])
			if a.NoBias {
				bias = 0
			}
			for i, v := range acc {
				dst[i] = float32(v + bias)
			}
		}
	}
	return out
}

func dense(x *Tensor, p *params, shape graph.Shape) *Tensor {
	batch, features := x.Shape[0], x.Shape.PerSample()
	in := make([]float64, len(x.Data))
	for i, v := range x.Data {
		in[i] = float64(v)
	}
	var prod mat.Dense
	prod.Mul(mat.NewDense(batch, features, in), p.dense.T())

	out := NewTensor(shape)
	units := shape[1]
	for b := 0; b < batch; b++ {
		for u := 0; u < units; u++ {
			out.Data[b*units+u] = float32(prod.At(b, u) + p.denseBias[u])
		}
	}
	return out
}

func globalAvgPool(x *Tensor) *Tensor {
	batch, channels, hw := x.Shape[0], x.Shape[1], x.Shape[2]*x.Shape[3]
	out := NewTensor(graph.Shape{batch, channels, 1, 1})
	for i := 0; i < batch*channels; i++ {
		var sum float64
		for _, v := range x.Data[i*hw : (i+1)*hw] {
			sum += float64(v)
		}
		out.Data[i] = float32(sum / float64(hw))
	}
	return out
}

func sliceChannels(x *Tensor, begin, end int, shape graph.Shape) *Tensor {
	out := NewTensor(shape)
	spatial := x.Shape.PerSample() / x.Shape[1]
	width := (end - begin) * spatial
	for b := 0; b < x.Shape[0]; b++ {
		src := x.Row(b)[begin*spatial : end*spatial]
		copy(out.Data[b*width:(b+1)*width], src)
	}
	return out
}

// concat joins inputs along axis 1; per sample this is a concatenation of rows.
func concat(in []*Tensor, shape graph.Shape) *Tensor {
	out := NewTensor(shape)
	per := shape.PerSample()
	for b := 0; b < shape[0]; b++ {
		offset := b * per
		for _, t := range in {
			offset += copy(out.Data[offset:], t.Row(b))
		}
	}
	return out
}

// channelScale multiplies every (n, c) plane of x by gate[n, c].
func channelScale(x, gate *Tensor) *Tensor {
	out := NewTensor(x.Shape)
	hw := x.Shape[2] * x.Shape[3]
	for i, g := range gate.Data {
		for j := i * hw; j < (i+1)*hw; j++ {
			out.Data[j] = x.Data[j] * g
		}
	}
	return out
}

func softmax(x *Tensor) *Tensor {
	out := NewTensor(x.Shape)
	for b := 0; b < x.Shape[0]; b++ {
		row, dst := x.Row(b), out.Row(b)
		hi := float64(row[0])
		for _, v := range row {
			hi = math.Max(hi, float64(v))
		}
		var sum float64
		exps := make([]float64, len(row))
		for i, v := range row {
			exps[i] = math.Exp(float64(v) - hi)
			sum += exps[i]
		}
		for i := range row {
			dst[i] = float32(exps[i] / sum)
		}
	}
	return out
}
