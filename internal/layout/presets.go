package layout

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Presets holds the tunable layout constants. Defaults match the values the
// dashboard has always shipped with; a deployment can override any subset via
// a YAML file.
type Presets struct {
	// Horizontal distance between node cells within a tier row.
	HSpacing float64 `yaml:"h_spacing"`
	// Vertical distance between tier rows inside a region.
	VSpacing float64 `yaml:"v_spacing"`
	// Space reserved at the top of a region for its label.
	HeaderHeight float64 `yaml:"header_height"`
	// Inner padding between a region border and its node cells.
	Padding float64 `yaml:"padding"`
	// Gap between packed regions, and the outer margin of the packing area.
	GroupGap float64 `yaml:"group_gap"`
	// Horizontal margin used by the flat (no locations) layout.
	FlatMargin float64 `yaml:"flat_margin"`
	// Ordered tier keywords; the first case-insensitive substring match of a
	// device type wins, so "distribution-switch" lands in "distribution".
	TierKeywords []string `yaml:"tier_keywords"`
}

func DefaultPresets() Presets {
	return Presets{
		HSpacing:     120,
		VSpacing:     100,
		HeaderHeight: 32,
		Padding:      24,
		GroupGap:     40,
		FlatMargin:   60,
		TierKeywords: defaultTierKeywords(),
	}
}

func defaultTierKeywords() []string {
	return []string{
		"spine",
		"core",
		"router",
		"firewall",
		"leaf",
		"distribution",
		"switch",
		"tor",
		"access",
		"server",
	}
}

// LoadPresets reads a YAML presets file and overlays it on the defaults.
// Zero values in the file keep their defaults, so a file can override a
// single constant.
func LoadPresets(path string) (Presets, error) {
	p := DefaultPresets()

	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read presets: %w", err)
	}

	var override Presets
	if err := yaml.Unmarshal(b, &override); err != nil {
		return p, fmt.Errorf("parse presets: %w", err)
	}

	if override.HSpacing > 0 {
		p.HSpacing = override.HSpacing
	}
	if override.VSpacing > 0 {
		p.VSpacing = override.VSpacing
	}
	if override.HeaderHeight > 0 {
		p.HeaderHeight = override.HeaderHeight
	}
	if override.Padding > 0 {
		p.Padding = override.Padding
	}
	if override.GroupGap > 0 {
		p.GroupGap = override.GroupGap
	}
	if override.FlatMargin > 0 {
		p.FlatMargin = override.FlatMargin
	}
	if len(override.TierKeywords) > 0 {
		p.TierKeywords = override.TierKeywords
	}

	return p, nil
}
