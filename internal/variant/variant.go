// Package variant holds the board encodings of the supported chess variants.
package variant

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hailam/chessnet/internal/arch"
)

// ErrUnknownVariant is returned by Lookup for names without a preset.
var ErrUnknownVariant = errors.New("unknown variant")

// Variant describes how positions of one variant are encoded.
type Variant struct {
	Name   string
	Planes int
	Height int
	Width  int
	// Labels is the size of the flat move label list.
	Labels int
	// PolicyMapChannels is the number of move planes of the policy map encoding.
	PolicyMapChannels int
}

var (
	// Chess is standard chess.
	Chess = Variant{Name: "chess", Planes: 39, Height: 8, Width: 8, Labels: 1858, PolicyMapChannels: 76}
	// Crazyhouse adds pocket pieces and drop moves.
	Crazyhouse = Variant{Name: "crazyhouse", Planes: 34, Height: 8, Width: 8, Labels: 2272, PolicyMapChannels: 81}
)

var presets = []Variant{Chess, Crazyhouse}

// Lookup returns the preset called name, ignoring case.
func Lookup(name string) (Variant, error) {
	for _, v := range presets {
		if strings.EqualFold(v.Name, name) {
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
}

// Names returns the preset names in sorted order.
func Names() []string {
	names := make([]string, len(presets))
	for i, v := range presets {
		names[i] = v.Name
	}
	slices.Sort(names)
	return names
}

// Input returns the network input for a batch of positions.
func (v Variant) Input(batch int) arch.Input {
	return arch.Input{Batch: batch, Planes: v.Planes, Height: v.Height, Width: v.Width}
}

// Apply sets the move encoding sizes of cfg for this variant.
func (v Variant) Apply(cfg arch.Config) arch.Config {
	cfg.PolicyChannels = v.PolicyMapChannels
	cfg.Labels = v.Labels
	return cfg
}

// PolicySize returns the logits count the variant needs under enc.
func (v Variant) PolicySize(enc arch.MoveEncoding) int {
	if enc == arch.FromLabelSet {
		return v.Labels
	}
	return v.Height * v.Width * v.PolicyMapChannels
}
