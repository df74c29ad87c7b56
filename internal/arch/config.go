package arch

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/hailam/chessnet/internal/graph"
)

// MoveEncoding selects how the policy head represents moves.
type MoveEncoding string

const (
	// FromPlane reads one logit per (move plane, square) from a convolution.
	FromPlane MoveEncoding = "from_plane"
	// FromLabelSet projects onto a fixed list of move labels.
	FromLabelSet MoveEncoding = "from_label_set"
)

// Default head hyperparameters.
const (
	DefaultChannels        = 256
	DefaultValueChannels   = 8
	DefaultValueKernelSize = 1
	DefaultValueFCSize     = 256
	DefaultGradScaleValue  = 0.01
	DefaultGradScalePolicy = 1.0

	// PolicySqueezeRatio is the channel reduction of the policy gate.
	PolicySqueezeRatio = 4
)

// DefaultMixConvKernels are the kernel sizes of the value head refinement.
var DefaultMixConvKernels = []int{3, 5, 7, 9}

// Config describes one network architecture. It is read-only during Build.
type Config struct {
	// Channels is the trunk width produced by the stem.
	Channels int    `mapstructure:"channels" yaml:"channels" json:"channels" validate:"gt=0"`
	ActType  string `mapstructure:"act_type" yaml:"act_type" json:"act_type" validate:"required"`

	ValueChannels   int `mapstructure:"value_channels" yaml:"value_channels" json:"value_channels" validate:"gt=0"`
	ValueKernelSize int `mapstructure:"value_kernel_size" yaml:"value_kernel_size" json:"value_kernel_size" validate:"gt=0"`
	ValueFCSize     int `mapstructure:"value_fc_size" yaml:"value_fc_size" json:"value_fc_size" validate:"gt=0"`

	// PolicyChannels is the number of move planes in FromPlane mode.
	PolicyChannels int          `mapstructure:"policy_channels" yaml:"policy_channels" json:"policy_channels" validate:"gte=0"`
	MoveEncoding   MoveEncoding `mapstructure:"move_encoding" yaml:"move_encoding" json:"move_encoding" validate:"oneof=from_plane from_label_set"`
	// Labels is the number of move labels in FromLabelSet mode.
	Labels int `mapstructure:"labels" yaml:"labels" json:"labels" validate:"gte=0"`

	UseSEValue  bool `mapstructure:"use_se_value" yaml:"use_se_value" json:"use_se_value"`
	UseSEPolicy bool `mapstructure:"use_se_policy" yaml:"use_se_policy" json:"use_se_policy"`

	UseMixConv     bool  `mapstructure:"use_mix_conv" yaml:"use_mix_conv" json:"use_mix_conv"`
	MixConvKernels []int `mapstructure:"mix_conv_kernels" yaml:"mix_conv_kernels" json:"mix_conv_kernels" validate:"dive,gt=0"`

	GradScaleValue  float64 `mapstructure:"grad_scale_value" yaml:"grad_scale_value" json:"grad_scale_value" validate:"gt=0"`
	GradScalePolicy float64 `mapstructure:"grad_scale_policy" yaml:"grad_scale_policy" json:"grad_scale_policy" validate:"gt=0"`

	// PolicyNoBias drops the bias of the last policy convolution.
	PolicyNoBias bool `mapstructure:"policy_no_bias" yaml:"policy_no_bias" json:"policy_no_bias"`
}

// DefaultConfig returns the crazyhouse policy-map architecture.
func DefaultConfig() Config {
	return Config{
		Channels:        DefaultChannels,
		ActType:         "relu",
		ValueChannels:   DefaultValueChannels,
		ValueKernelSize: DefaultValueKernelSize,
		ValueFCSize:     DefaultValueFCSize,
		PolicyChannels:  81,
		MoveEncoding:    FromPlane,
		Labels:          2272,
		MixConvKernels:  slices.Clone(DefaultMixConvKernels),
		GradScaleValue:  DefaultGradScaleValue,
		GradScalePolicy: DefaultGradScalePolicy,
	}
}

// Input describes the encoded board tensor fed to the network.
type Input struct {
	Batch  int `json:"batch" validate:"gt=0"`
	Planes int `json:"planes" validate:"gt=0"`
	Height int `json:"height" validate:"gt=0"`
	Width  int `json:"width" validate:"gt=0"`
}

// Shape returns the NCHW input shape.
func (in Input) Shape() graph.Shape {
	return graph.Shape{in.Batch, in.Planes, in.Height, in.Width}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration. Activation problems are reported as
// *UnsupportedActivationError, everything else wraps ErrInvalidConfig.
func (c Config) Validate() error {
	_, err := resolve(c)
	return err
}

// valueVariant is the resolved shape of the value head.
type valueVariant uint8

const (
	valuePlain valueVariant = iota
	valueMixed
	valuePooled
	valuePooledMixed
)

func (v valueVariant) mixed() bool  { return v == valueMixed || v == valuePooledMixed }
func (v valueVariant) pooled() bool { return v == valuePooled || v == valuePooledMixed }

func (v valueVariant) String() string {
	return [...]string{"plain", "mixed", "pooled", "pooled+mixed"}[v]
}

// policyVariant is the resolved shape of the policy head.
type policyVariant uint8

const (
	policyPlane policyVariant = iota
	policyPlaneGated
	policyLabels
	policyLabelsGated
)

func (p policyVariant) gated() bool     { return p == policyPlaneGated || p == policyLabelsGated }
func (p policyVariant) fromPlane() bool { return p == policyPlane || p == policyPlaneGated }

func (p policyVariant) String() string {
	return [...]string{"plane", "plane+gate", "labels", "labels+gate"}[p]
}

// plan is a fully checked configuration. Builders only ever see a plan, so
// every flag is resolved before the first node is appended.
type plan struct {
	cfg    Config
	act    Activation
	value  valueVariant
	policy policyVariant

	// gateTruncated is set when Channels is not a multiple of PolicySqueezeRatio.
	gateTruncated bool
}

func resolve(c Config) (plan, error) {
	if err := validate.Struct(c); err != nil {
		return plan{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	act, err := ParseActivation(c.ActType)
	if err != nil {
		return plan{}, err
	}
	c.MixConvKernels = slices.Clone(c.MixConvKernels)
	p := plan{cfg: c, act: act}

	if c.UseMixConv {
		if err := checkKernels(c.ValueChannels, c.MixConvKernels); err != nil {
			return plan{}, err
		}
	}
	switch {
	case c.UseSEValue && c.UseMixConv:
		p.value = valuePooledMixed
	case c.UseSEValue:
		p.value = valuePooled
	case c.UseMixConv:
		p.value = valueMixed
	default:
		p.value = valuePlain
	}

	switch c.MoveEncoding {
	case FromPlane:
		if c.PolicyChannels == 0 {
			return plan{}, configErrorf("policy_channels must be positive for %s", FromPlane)
		}
		p.policy = policyPlane
	case FromLabelSet:
		if c.Labels == 0 {
			return plan{}, configErrorf("labels must be positive for %s", FromLabelSet)
		}
		p.policy = policyLabels
	}
	if c.UseSEPolicy {
		if c.Channels/PolicySqueezeRatio == 0 {
			return plan{}, configErrorf("channels %d too small for squeeze ratio %d", c.Channels, PolicySqueezeRatio)
		}
		p.gateTruncated = c.Channels%PolicySqueezeRatio != 0
		if p.policy == policyPlane {
			p.policy = policyPlaneGated
		} else {
			p.policy = policyLabelsGated
		}
	}
	return p, nil
}

func checkKernels(channels int, kernels []int) error {
	if len(kernels) == 0 {
		return configErrorf("mixed convolution needs at least one kernel")
	}
	for _, k := range kernels {
		if k <= 0 || k%2 == 0 {
			return configErrorf("mixed convolution kernel %d must be odd and positive", k)
		}
	}
	if channels%len(kernels) != 0 {
		return configErrorf("%d channels not divisible into %d kernel groups", channels, len(kernels))
	}
	return nil
}
