// Package config loads the architecture description and elaboration
// options consumed by the resolvers.
package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// HardBlock describes the native port dimensions of a memory macro
type HardBlock struct {
	// AddrWidth is the number of address bits of the macro
	AddrWidth int `json:"addrWidth"`

	// DataWidth is the number of data bits of the macro
	DataWidth int `json:"dataWidth"`
}

// MemoryConfig controls memory splitting and padding
type MemoryConfig struct {
	// SinglePort is the single-port RAM macro, nil when the target has none
	SinglePort *HardBlock `json:"singlePort,omitempty"`

	// DualPort is the dual-port RAM macro, nil when the target has none
	DualPort *HardBlock `json:"dualPort,omitempty"`

	// SplitDepth is the largest address width left unsplit.
	// Zero means the hard block's address width.
	SplitDepth int `json:"splitDepth,omitempty"`

	// SplitWidth is the data width of each instance after width splitting.
	// Zero means the hard block's data width; without a hard block no
	// width split is requested.
	SplitWidth int `json:"splitWidth,omitempty"`

	// SoftLogicCutoff is the largest address width lowered to flip-flops
	// when no hard block is available
	SoftLogicCutoff int `json:"softLogicCutoff,omitempty"`
}

// AdderConfig controls the adder lowering path
type AdderConfig struct {
	// HardWidth is the width of the native adder block; zero lowers adders
	// to ripple-carry primitives
	HardWidth int `json:"hardWidth,omitempty"`

	// FixedFootprint pads the last chunk of a split adder to HardWidth
	FixedFootprint bool `json:"fixedFootprint,omitempty"`

	// MinHardWidth keeps adders narrower than this in soft logic
	MinHardWidth int `json:"minHardWidth,omitempty"`
}

// MultiplierConfig controls the multiplier lowering path
type MultiplierConfig struct {
	// Hard keeps MULTIPLY nodes for a native multiplier block
	Hard bool `json:"hard,omitempty"`
}

// ElaborationConfig holds driver limits and diagnostics switches
type ElaborationConfig struct {
	// MaxSweeps bounds the number of elaboration sweeps
	MaxSweeps int `json:"maxSweeps,omitempty"`

	// MaxPowerSelectBits bounds the exponent width of a variable power
	MaxPowerSelectBits int `json:"maxPowerSelectBits,omitempty"`

	// WarnOnPad logs a resource warning for every constant-padded port
	WarnOnPad bool `json:"warnOnPad,omitempty"`
}

// Config is the architecture description and elaboration options
type Config struct {
	Name        string            `json:"name,omitempty"`
	Memory      MemoryConfig      `json:"memory"`
	Adder       AdderConfig       `json:"adder"`
	Multiplier  MultiplierConfig  `json:"multiplier"`
	Elaboration ElaborationConfig `json:"elaboration"`
}

// Default returns the configuration of a target without hard blocks
func Default() *Config {
	return &Config{
		Name: "soft",
		Memory: MemoryConfig{
			SoftLogicCutoff: 10,
		},
		Elaboration: ElaborationConfig{
			MaxSweeps:          64,
			MaxPowerSelectBits: 6,
		},
	}
}

// Load reads a JSON architecture file, validates it against the schema
// and applies it over the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading architecture file")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Parse validates JSON configuration bytes and applies them over the defaults
func Parse(data []byte) (*Config, error) {
	v, err := NewValidator()
	if err != nil {
		return nil, err
	}
	if err := v.ValidateJSON(data); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "decoding architecture")
	}
	return cfg, nil
}

// MemoryBlock returns the hard block for a memory kind, or nil
func (c *Config) MemoryBlock(dualPort bool) *HardBlock {
	if dualPort {
		return c.Memory.DualPort
	}
	return c.Memory.SinglePort
}

// MemorySplitDepth returns the address width above which a memory is
// split by depth, or zero for no limit
func (c *Config) MemorySplitDepth(dualPort bool) int {
	if c.Memory.SplitDepth > 0 {
		return c.Memory.SplitDepth
	}
	if hb := c.MemoryBlock(dualPort); hb != nil {
		return hb.AddrWidth
	}
	return 0
}

// MemorySplitWidth returns the data width of width-split instances, or
// zero when no width split is requested
func (c *Config) MemorySplitWidth(dualPort bool) int {
	if c.Memory.SplitWidth > 0 {
		return c.Memory.SplitWidth
	}
	if hb := c.MemoryBlock(dualPort); hb != nil {
		return hb.DataWidth
	}
	return 0
}
