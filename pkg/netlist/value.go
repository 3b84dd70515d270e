package netlist

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// LogicValue represents the possible values carried by a net
type LogicValue int

const (
	X    LogicValue = iota // Unknown or don't care
	Zero                   // Logic 0
	One                    // Logic 1
)

// String returns a string representation of the logic value
func (v LogicValue) String() string {
	switch v {
	case X:
		return "X"
	case Zero:
		return "0"
	case One:
		return "1"
	default:
		return "?"
	}
}

// Not returns the complement of the value, X stays X
func (v LogicValue) Not() LogicValue {
	switch v {
	case Zero:
		return One
	case One:
		return Zero
	default:
		return X
	}
}

// FromBool converts a boolean to a logic value
func FromBool(b bool) LogicValue {
	if b {
		return One
	}
	return Zero
}

// Sensitivity describes when a clock or control signal is active
type Sensitivity int

const (
	Unspecified Sensitivity = iota
	RisingEdge
	FallingEdge
	ActiveHigh
	ActiveLow
)

// String returns a string representation of the sensitivity
func (s Sensitivity) String() string {
	switch s {
	case RisingEdge:
		return "rising"
	case FallingEdge:
		return "falling"
	case ActiveHigh:
		return "high"
	case ActiveLow:
		return "low"
	default:
		return "unspecified"
	}
}

// ParseSensitivity converts a textual sensitivity to its value
func ParseSensitivity(s string) (Sensitivity, error) {
	switch s {
	case "rising", "re", "posedge":
		return RisingEdge, nil
	case "falling", "fe", "negedge":
		return FallingEdge, nil
	case "high", "ah", "1":
		return ActiveHigh, nil
	case "low", "al", "0":
		return ActiveLow, nil
	default:
		return Unspecified, errors.Errorf("unknown sensitivity %q", s)
	}
}

// IsEdge returns true for edge sensitivities
func (s Sensitivity) IsEdge() bool {
	return s == RisingEdge || s == FallingEdge
}

// Inverted returns true if the signal must be complemented to become
// rising edge or active high
func (s Sensitivity) Inverted() bool {
	return s == FallingEdge || s == ActiveLow
}

// Attributes holds the per-node configuration record
type Attributes struct {
	ClkEdge        Sensitivity // Clock edge of flip-flops
	EnPolarity     Sensitivity // Enable polarity of flip-flops and latches
	SRstPolarity   Sensitivity // Synchronous reset polarity
	ARstPolarity   Sensitivity // Asynchronous reset polarity
	SetPolarity    Sensitivity
	ClrPolarity    Sensitivity
	SRstValue      uint256.Int // Synchronous reset value
	ARstValue      uint256.Int // Asynchronous reset value
	SignedA        bool
	SignedB        bool
}

// Polarity returns the sensitivity, defaulting unspecified to active high
func Polarity(s Sensitivity) Sensitivity {
	if s == Unspecified {
		return ActiveHigh
	}
	return s
}

// Edge returns the clock edge, defaulting unspecified to rising
func Edge(s Sensitivity) Sensitivity {
	if s == Unspecified {
		return RisingEdge
	}
	return s
}

// Loc is the source location a node was elaborated from
type Loc struct {
	File   string
	Line   int
	Column int
}

// String returns file:line:column, or "unknown location"
func (l Loc) String() string {
	if l.File == "" && l.Line == 0 {
		return "unknown location"
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// ValueBit returns bit i of a wide constant
func ValueBit(v *uint256.Int, i int) bool {
	if i < 0 || i >= 256 {
		return false
	}
	return v[i/64]>>(uint(i)%64)&1 == 1
}

// SetValueBit sets bit i of a wide constant; bits past 255 are dropped
func SetValueBit(v *uint256.Int, i int) {
	if i >= 0 && i < 256 {
		v[i/64] |= 1 << (uint(i) % 64)
	}
}
