package graph

import "fmt"

// Op is the primitive operation that produces a node.
type Op uint8

const (
	OpInput Op = iota
	OpConvolution
	OpBatchNorm
	OpActivation
	OpLeakyReLU
	OpPlusScalar
	OpClip
	OpDivScalar
	OpGlobalAvgPool
	OpFlatten
	OpFullyConnected
	OpSliceChannels
	OpConcat
	OpChannelScale
	OpLinearRegressionOutput
	OpSoftmaxOutput

	numOps
)

var opNames = [numOps]string{
	OpInput:                  "input",
	OpConvolution:            "convolution",
	OpBatchNorm:              "batch_norm",
	OpActivation:             "activation",
	OpLeakyReLU:              "leaky_relu",
	OpPlusScalar:             "plus_scalar",
	OpClip:                   "clip",
	OpDivScalar:              "div_scalar",
	OpGlobalAvgPool:          "global_avg_pool",
	OpFlatten:                "flatten",
	OpFullyConnected:         "fully_connected",
	OpSliceChannels:          "slice_channels",
	OpConcat:                 "concat",
	OpChannelScale:           "channel_scale",
	OpLinearRegressionOutput: "linear_regression_output",
	OpSoftmaxOutput:          "softmax_output",
}

func (o Op) String() string {
	if o < numOps {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// ParseOp returns the Op with the given name.
func ParseOp(name string) (Op, error) {
	for i, n := range opNames {
		if n == name {
			return Op(i), nil
		}
	}
	return 0, fmt.Errorf("unknown op %q", name)
}

// IsLoss reports whether the op is a loss-wiring output.
func (o Op) IsLoss() bool {
	return o == OpLinearRegressionOutput || o == OpSoftmaxOutput
}

// arity returns the number of inputs the op takes; -1 means two or more.
func (o Op) arity() int {
	switch o {
	case OpInput:
		return 0
	case OpConcat:
		return -1
	case OpChannelScale:
		return 2
	default:
		return 1
	}
}

// Attrs holds the static attributes of a node. Only the fields relevant to
// the node's op are set.
type Attrs struct {
	Kernel  int     `json:"kernel,omitempty"`
	Pad     int     `json:"pad,omitempty"`
	Filters int     `json:"filters,omitempty"`
	NoBias  bool    `json:"no_bias,omitempty"`
	Act     string  `json:"act,omitempty"`
	Slope   float64 `json:"slope,omitempty"`
	Min     float64 `json:"min,omitempty"`
	Max     float64 `json:"max,omitempty"`
	Scalar  float64 `json:"scalar,omitempty"`
	Units   int     `json:"units,omitempty"`
	Begin   int     `json:"begin,omitempty"`
	End     int     `json:"end,omitempty"`
	Eps     float64 `json:"eps,omitempty"`

	// GradScale re-weights the gradient of a loss output.
	GradScale float64 `json:"grad_scale,omitempty"`
}

// Primitive activation names accepted by OpActivation.
const (
	ActReLU     = "relu"
	ActSigmoid  = "sigmoid"
	ActSoftReLU = "softrelu"
	ActSoftSign = "softsign"
	ActTanh     = "tanh"
)

func validPrimitiveAct(name string) bool {
	switch name {
	case ActReLU, ActSigmoid, ActSoftReLU, ActSoftSign, ActTanh:
		return true
	}
	return false
}
