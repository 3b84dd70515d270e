package netlist

import (
	"strconv"
	"strings"
)

// Op represents the operator kind of a node
type Op int

const (
	// Sources and sinks
	OpInput Op = iota
	OpOutput
	OpGnd
	OpVcc
	OpPad

	// Primitive single-bit gates
	OpBuf
	OpNot
	OpAnd
	OpOr
	OpNand
	OpNor
	OpXor
	OpXnor
	OpMux2
	OpFF
	OpFullSub
	OpAdderFunc
	OpCarryFunc

	// Hard blocks
	OpHardAdder
	OpMemory

	// Compound bitwise operators
	OpBitwiseNot
	OpBitwiseAnd
	OpBitwiseOr
	OpBitwiseNand
	OpBitwiseNor
	OpBitwiseXor
	OpBitwiseXnor

	// Compound logical operators
	OpLogicalNot
	OpLogicalAnd
	OpLogicalOr
	OpLogicalNand
	OpLogicalNor
	OpLogicalXor
	OpLogicalXnor
	OpLogicalEqual
	OpNotEqual
	OpCaseEqual
	OpCaseNotEqual

	// Shifts
	OpShiftLeft
	OpShiftRight
	OpArithShiftLeft
	OpArithShiftRight

	// Arithmetic
	OpAdd
	OpMinus
	OpMultiply
	OpDivide
	OpModulo
	OpPower

	// Selection
	OpMultiPortMux
	OpPmux

	// Flip-flops
	OpDFF
	OpADFF
	OpSDFF
	OpDFFE
	OpADFFE
	OpSDFFE
	OpSDFFCE
	OpDFFSR
	OpDFFSRE

	// Latches
	OpDLatch
	OpADLatch
	OpDLatchSR

	opCount
)

var opNames = [...]string{
	OpInput:           "INPUT",
	OpOutput:          "OUTPUT",
	OpGnd:             "GND",
	OpVcc:             "VCC",
	OpPad:             "PAD",
	OpBuf:             "BUF",
	OpNot:             "NOT",
	OpAnd:             "AND",
	OpOr:              "OR",
	OpNand:            "NAND",
	OpNor:             "NOR",
	OpXor:             "XOR",
	OpXnor:            "XNOR",
	OpMux2:            "MUX2",
	OpFF:              "FF",
	OpFullSub:         "FULLSUB",
	OpAdderFunc:       "ADDER_FUNC",
	OpCarryFunc:       "CARRY_FUNC",
	OpHardAdder:       "HARD_ADDER",
	OpMemory:          "MEMORY",
	OpBitwiseNot:      "BITWISE_NOT",
	OpBitwiseAnd:      "BITWISE_AND",
	OpBitwiseOr:       "BITWISE_OR",
	OpBitwiseNand:     "BITWISE_NAND",
	OpBitwiseNor:      "BITWISE_NOR",
	OpBitwiseXor:      "BITWISE_XOR",
	OpBitwiseXnor:     "BITWISE_XNOR",
	OpLogicalNot:      "LOGICAL_NOT",
	OpLogicalAnd:      "LOGICAL_AND",
	OpLogicalOr:       "LOGICAL_OR",
	OpLogicalNand:     "LOGICAL_NAND",
	OpLogicalNor:      "LOGICAL_NOR",
	OpLogicalXor:      "LOGICAL_XOR",
	OpLogicalXnor:     "LOGICAL_XNOR",
	OpLogicalEqual:    "LOGICAL_EQUAL",
	OpNotEqual:        "NOT_EQUAL",
	OpCaseEqual:       "CASE_EQUAL",
	OpCaseNotEqual:    "CASE_NOT_EQUAL",
	OpShiftLeft:       "SL",
	OpShiftRight:      "SR",
	OpArithShiftLeft:  "ASL",
	OpArithShiftRight: "ASR",
	OpAdd:             "ADD",
	OpMinus:           "MINUS",
	OpMultiply:        "MULTIPLY",
	OpDivide:          "DIVIDE",
	OpModulo:          "MODULO",
	OpPower:           "POWER",
	OpMultiPortMux:    "MULTI_PORT_MUX",
	OpPmux:            "PMUX",
	OpDFF:             "DFF",
	OpADFF:            "ADFF",
	OpSDFF:            "SDFF",
	OpDFFE:            "DFFE",
	OpADFFE:           "ADFFE",
	OpSDFFE:           "SDFFE",
	OpSDFFCE:          "SDFFCE",
	OpDFFSR:           "DFFSR",
	OpDFFSRE:          "DFFSRE",
	OpDLatch:          "DLATCH",
	OpADLatch:         "ADLATCH",
	OpDLatchSR:        "DLATCHSR",
}

// String returns a string representation of the operator kind
func (op Op) String() string {
	if op < 0 || op >= opCount {
		return "UNKNOWN"
	}
	return opNames[op]
}

// ParseOp converts an operator name to its kind
func ParseOp(name string) (Op, bool) {
	name = strings.ToUpper(name)
	switch name {
	case "INV":
		return OpNot, true
	case "MUX":
		return OpMultiPortMux, true
	}
	for op, n := range opNames {
		if n == name {
			return Op(op), true
		}
	}
	return 0, false
}

// IsConstant returns true for the constant driver kinds
func (op Op) IsConstant() bool {
	return op == OpGnd || op == OpVcc || op == OpPad
}

// IsPrimitive returns true if the kind is consumed as-is by technology mapping
func (op Op) IsPrimitive() bool {
	return op <= OpCarryFunc
}

// IsHardBlock returns true for fixed-function technology blocks
func (op Op) IsHardBlock() bool {
	return op == OpHardAdder || op == OpMemory
}

// IsCompound returns true if the kind needs a resolver before mapping
func (op Op) IsCompound() bool {
	return op >= OpBitwiseNot && op < opCount
}

// IsSequential returns true if the node holds state across clock events
func (op Op) IsSequential() bool {
	switch op {
	case OpFF, OpMemory:
		return true
	}
	return op.IsFlipFlop() || op.IsLatch()
}

// IsFlipFlop returns true for the compound flip-flop family
func (op Op) IsFlipFlop() bool {
	return op >= OpDFF && op <= OpDFFSRE
}

// IsLatch returns true for the compound latch family
func (op Op) IsLatch() bool {
	return op >= OpDLatch && op <= OpDLatchSR
}

// IsBitwise returns true for the compound bitwise family
func (op Op) IsBitwise() bool {
	return op >= OpBitwiseNot && op <= OpBitwiseXnor
}

// IsLogical returns true for the compound logical family
func (op Op) IsLogical() bool {
	return op >= OpLogicalNot && op <= OpNotEqual
}

// IsShift returns true for the shift family
func (op Op) IsShift() bool {
	return op >= OpShiftLeft && op <= OpArithShiftRight
}

// Primitive returns the single-bit gate kind matching a bitwise or logical operator
func (op Op) Primitive() Op {
	switch op {
	case OpBitwiseNot, OpLogicalNot:
		return OpNot
	case OpBitwiseAnd, OpLogicalAnd:
		return OpAnd
	case OpBitwiseOr, OpLogicalOr:
		return OpOr
	case OpBitwiseNand, OpLogicalNand:
		return OpNand
	case OpBitwiseNor, OpLogicalNor:
		return OpNor
	case OpBitwiseXor, OpLogicalXor:
		return OpXor
	case OpBitwiseXnor, OpLogicalXnor:
		return OpXnor
	}
	return op
}

// Uninverted returns the non-inverting counterpart of an inverting gate kind
func (op Op) Uninverted() Op {
	switch op {
	case OpNand:
		return OpAnd
	case OpNor:
		return OpOr
	case OpXnor:
		return OpXor
	}
	return op
}

// portNames lists the default input port names of a kind, used by the
// text reader for positional operands and by the builder for primitives
var portNames = map[Op][]string{
	OpMux2:            {"S", "I0", "I1"},
	OpFF:              {"D", "CLK"},
	OpFullSub:         {"X", "Y", "BIN"},
	OpAdderFunc:       {"A", "B", "CIN"},
	OpCarryFunc:       {"A", "B", "CIN"},
	OpHardAdder:       {"a", "b", "cin"},
	OpCaseEqual:       {"A", "B"},
	OpCaseNotEqual:    {"A", "B"},
	OpShiftLeft:       {"A", "B"},
	OpShiftRight:      {"A", "B"},
	OpArithShiftLeft:  {"A", "B"},
	OpArithShiftRight: {"A", "B"},
	OpAdd:             {"A", "B"},
	OpMinus:           {"A", "B"},
	OpMultiply:        {"A", "B"},
	OpDivide:          {"A", "B"},
	OpModulo:          {"A", "B"},
	OpPower:           {"A", "B"},
	OpPmux:            {"A", "B", "S"},
	OpDFF:             {"CLK", "D"},
	OpADFF:            {"ARST", "CLK", "D"},
	OpSDFF:            {"CLK", "D", "SRST"},
	OpDFFE:            {"CLK", "D", "EN"},
	OpADFFE:           {"ARST", "CLK", "D", "EN"},
	OpSDFFE:           {"CLK", "D", "EN", "SRST"},
	OpSDFFCE:          {"CLK", "D", "EN", "SRST"},
	OpDFFSR:           {"CLK", "CLR", "D", "SET"},
	OpDFFSRE:          {"CLK", "CLR", "D", "EN", "SET"},
	OpDLatch:          {"EN", "D"},
	OpADLatch:         {"ARST", "EN", "D"},
	OpDLatchSR:        {"CLR", "D", "EN", "SET"},
	OpMemory:          {"addr", "data", "we", "clk"},
}

// PortNames returns the default input port names of a kind. Kinds with a
// variable port list (gates, bitwise and logical operators, muxes) get
// generated names.
func (op Op) PortNames(count int) []string {
	if names, ok := portNames[op]; ok && len(names) >= count {
		return names[:count]
	}
	names := make([]string, count)
	for i := range names {
		switch {
		case op == OpMultiPortMux && i == 0:
			names[i] = "S"
		case op == OpMultiPortMux:
			names[i] = "I" + strconv.Itoa(i-1)
		case count <= 2:
			names[i] = string(rune('A' + i))
		default:
			names[i] = "I" + strconv.Itoa(i)
		}
	}
	return names
}

// OutputNames returns the default output port names of a kind
func (op Op) OutputNames(count int) []string {
	switch {
	case op == OpFullSub && count == 2:
		return []string{"DIFF", "BOUT"}
	case op == OpHardAdder && count == 2:
		return []string{"sumout", "cout"}
	case op == OpMemory && count == 1:
		return []string{"out"}
	case op.IsFlipFlop() || op.IsLatch() || op == OpFF:
		if count == 1 {
			return []string{"Q"}
		}
	}
	names := make([]string, count)
	for i := range names {
		if i == 0 {
			names[i] = "Y"
		} else {
			names[i] = "Y" + strconv.Itoa(i)
		}
	}
	return names
}
