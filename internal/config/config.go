// Package config loads network architectures from YAML files and the
// environment.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/hailam/chessnet/internal/arch"
)

// EnvPrefix prefixes environment overrides, e.g. CHESSNET_CHANNELS=128.
const EnvPrefix = "CHESSNET"

// New returns a viper instance using base as the defaults and carrying the
// environment bindings.
func New(base arch.Config) *viper.Viper {
	v := viper.New()
	d := base
	v.SetDefault("channels", d.Channels)
	v.SetDefault("act_type", d.ActType)
	v.SetDefault("value_channels", d.ValueChannels)
	v.SetDefault("value_kernel_size", d.ValueKernelSize)
	v.SetDefault("value_fc_size", d.ValueFCSize)
	v.SetDefault("policy_channels", d.PolicyChannels)
	v.SetDefault("move_encoding", string(d.MoveEncoding))
	v.SetDefault("labels", d.Labels)
	v.SetDefault("use_se_value", d.UseSEValue)
	v.SetDefault("use_se_policy", d.UseSEPolicy)
	v.SetDefault("use_mix_conv", d.UseMixConv)
	v.SetDefault("mix_conv_kernels", d.MixConvKernels)
	v.SetDefault("grad_scale_value", d.GradScaleValue)
	v.SetDefault("grad_scale_policy", d.GradScalePolicy)
	v.SetDefault("policy_no_bias", d.PolicyNoBias)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the architecture from path on top of base. An empty path
// yields base with environment overrides applied. The result is validated.
func Load(path string, base arch.Config) (arch.Config, error) {
	v := New(base)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return arch.Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}
	return Decode(v)
}

// Decode unmarshals and validates the architecture held by v.
func Decode(v *viper.Viper) (arch.Config, error) {
	var cfg arch.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return arch.Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return arch.Config{}, err
	}
	return cfg, nil
}
