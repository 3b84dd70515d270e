package sim

import (
	"math/bits"

	"github.com/pkg/errors"

	"github.com/fyerfyer/hdl-elab/pkg/netlist"
)

// checkSupported rejects nodes the simulator has no model for
func checkSupported(n *netlist.Node) error {
	if n.Kind.IsFlipFlop() || n.Kind.IsLatch() {
		return errors.Errorf("no simulation model for unlowered %s", n.Kind)
	}
	if n.Kind.IsPrimitive() {
		return nil
	}
	for _, p := range n.InputPorts {
		if p.Width > 64 {
			return errors.Errorf("port %s is %d bits wide, the behavioral model stops at 64", p.Name, p.Width)
		}
	}
	for _, p := range n.OutputPorts {
		if p.Width > 64 {
			return errors.Errorf("port %s is %d bits wide, the behavioral model stops at 64", p.Name, p.Width)
		}
	}
	if n.Kind == netlist.OpMemory {
		for _, name := range []string{"addr", "addr1"} {
			if i := n.InputPort(name); i >= 0 && n.InputPorts[i].Width > 24 {
				return errors.Errorf("memory address of %d bits is too deep to model", n.InputPorts[i].Width)
			}
		}
	}
	return nil
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(width) - 1
}

// extend widens a value of width bits to `to` bits, replicating the sign
// bit when signed
func extend(v uint64, width, to int, signed bool) uint64 {
	if signed && width > 0 && width < 64 && v>>uint(width-1)&1 == 1 {
		v |= ^mask(width)
	}
	return v & mask(to)
}

// port reads an input port as an unsigned value
func (s *Simulator) port(n *netlist.Node, index int) (uint64, bool) {
	off := n.InputOffset(index)
	var v uint64
	for i := 0; i < n.InputPorts[index].Width; i++ {
		switch s.input(n, off+i) {
		case netlist.One:
			v |= 1 << uint(i)
		case netlist.X:
			return 0, false
		}
	}
	return v, true
}

// namedPort reads a named input port
func (s *Simulator) namedPort(n *netlist.Node, name string) (uint64, bool) {
	i := n.InputPort(name)
	if i < 0 {
		return 0, false
	}
	return s.port(n, i)
}

// spell converts a value into width logic values, or width X values
func spell(v uint64, width int, known bool) []netlist.LogicValue {
	out := make([]netlist.LogicValue, width)
	for i := range out {
		switch {
		case !known:
			out[i] = netlist.X
		case i < 64 && v>>uint(i)&1 == 1:
			out[i] = netlist.One
		default:
			out[i] = netlist.Zero
		}
	}
	return out
}

// evaluateBehavior computes a compound combinational node directly from its
// operator semantics
func (s *Simulator) evaluateBehavior(n *netlist.Node) []netlist.LogicValue {
	width := len(n.Outputs)
	k := n.Kind

	switch {
	case k.IsBitwise():
		return s.evaluateBitwise(n)
	case k == netlist.OpHardAdder:
		return s.evaluateHardAdder(n)
	case k == netlist.OpMultiPortMux:
		return s.evaluateMultiPortMux(n)
	case k == netlist.OpPmux:
		return s.evaluatePmux(n)
	}

	a, aok := s.port(n, 0)
	wa := n.InputPorts[0].Width
	var b uint64
	bok, wb := true, 0
	if len(n.InputPorts) > 1 {
		b, bok = s.port(n, 1)
		wb = n.InputPorts[1].Width
	}
	if !aok || !bok {
		return spell(0, width, false)
	}
	ea := extend(a, wa, width, n.Attr.SignedA)
	eb := extend(b, wb, width, n.Attr.SignedB)

	switch {
	case k.IsLogical() || k == netlist.OpCaseEqual || k == netlist.OpCaseNotEqual:
		return spell(logical(k, a, b, wa, wb, n.Attr), width, true)
	case k.IsShift():
		span := width
		if wa > span {
			span = wa
		}
		sa := extend(a, wa, span, n.Attr.SignedA)
		return spell(shift(k, sa, b, span, n.Attr.SignedA), width, true)
	}

	switch k {
	case netlist.OpAdd:
		return spell(ea+eb, width, true)
	case netlist.OpMinus:
		return spell(ea-eb, width, true)
	case netlist.OpMultiply:
		return spell(ea*eb, width, true)
	case netlist.OpDivide, netlist.OpModulo:
		if b == 0 {
			return spell(0, width, false)
		}
		if k == netlist.OpDivide {
			return spell(a/b, width, true)
		}
		return spell(a%b, width, true)
	case netlist.OpPower:
		result, base := uint64(1), a
		for e := b; e > 0; e >>= 1 {
			if e&1 == 1 {
				result *= base
			}
			base *= base
		}
		return spell(result, width, true)
	}
	return spell(0, width, false)
}

// evaluateBitwise evaluates the bitwise family: one operand reduces, more
// operands combine bit by bit after extension to the output width
func (s *Simulator) evaluateBitwise(n *netlist.Node) []netlist.LogicValue {
	width := len(n.Outputs)
	prim := n.Kind.Primitive()
	inner := prim.Uninverted()

	raw := make([]uint64, len(n.InputPorts))
	ext := make([]uint64, len(n.InputPorts))
	for i := range n.InputPorts {
		v, ok := s.port(n, i)
		if !ok {
			return spell(0, width, false)
		}
		signed := n.Attr.SignedB
		if i == 0 {
			signed = n.Attr.SignedA
		}
		raw[i] = v
		ext[i] = extend(v, n.InputPorts[i].Width, width, signed)
	}

	if n.Kind == netlist.OpBitwiseNot {
		return spell(^ext[0]&mask(width), width, true)
	}
	if len(raw) == 1 {
		var r bool
		switch inner {
		case netlist.OpAnd:
			r = raw[0] == mask(n.InputPorts[0].Width)
		case netlist.OpOr:
			r = raw[0] != 0
		case netlist.OpXor:
			r = bits.OnesCount64(raw[0])%2 == 1
		}
		if prim != inner {
			r = !r
		}
		return spell(boolValue(r), width, true)
	}

	r := ext[0]
	for _, v := range ext[1:] {
		switch inner {
		case netlist.OpAnd:
			r &= v
		case netlist.OpOr:
			r |= v
		case netlist.OpXor:
			r ^= v
		}
	}
	if prim != inner {
		r = ^r
	}
	return spell(r&mask(width), width, true)
}

func boolValue(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// logical evaluates the logical and equality families; only bit 0 is set
func logical(k netlist.Op, a, b uint64, wa, wb int, attr netlist.Attributes) uint64 {
	ta, tb := a != 0, b != 0
	var r bool
	switch k {
	case netlist.OpLogicalNot:
		r = !ta
	case netlist.OpLogicalAnd:
		r = ta && tb
	case netlist.OpLogicalOr:
		r = ta || tb
	case netlist.OpLogicalNand:
		r = !(ta && tb)
	case netlist.OpLogicalNor:
		r = !(ta || tb)
	case netlist.OpLogicalXor:
		r = ta != tb
	case netlist.OpLogicalXnor:
		r = ta == tb
	case netlist.OpLogicalEqual, netlist.OpNotEqual, netlist.OpCaseEqual, netlist.OpCaseNotEqual:
		w := wa
		if wb > w {
			w = wb
		}
		r = extend(a, wa, w, attr.SignedA) == extend(b, wb, w, attr.SignedB)
		if k == netlist.OpNotEqual || k == netlist.OpCaseNotEqual {
			r = !r
		}
	}
	return boolValue(r)
}

// shift evaluates shifts of an operand already widened to width
func shift(k netlist.Op, a, amount uint64, width int, signed bool) uint64 {
	fill := uint64(0)
	if k == netlist.OpArithShiftRight && signed && a>>uint(width-1)&1 == 1 {
		fill = mask(width)
	}
	if amount >= uint64(width) {
		if k == netlist.OpShiftLeft || k == netlist.OpArithShiftLeft {
			return 0
		}
		return fill
	}
	switch k {
	case netlist.OpShiftLeft, netlist.OpArithShiftLeft:
		return a << amount & mask(width)
	case netlist.OpShiftRight:
		return a >> amount
	default:
		return (a>>amount | fill<<(uint64(width)-amount)) & mask(width)
	}
}

// evaluateHardAdder computes sumout and cout of a hard adder block
func (s *Simulator) evaluateHardAdder(n *netlist.Node) []netlist.LogicValue {
	a, aok := s.namedPort(n, "a")
	b, bok := s.namedPort(n, "b")
	c, cok := s.namedPort(n, "cin")
	w := n.InputPorts[n.InputPort("a")].Width
	outW := len(n.Outputs)
	if !aok || !bok || !cok {
		return spell(0, outW, false)
	}
	sum := a + b + c
	out := spell(sum&mask(w), w, true)
	return append(out, spell(sum>>uint(w)&1, outW-w, true)...)
}

// evaluateMultiPortMux selects data port S+1
func (s *Simulator) evaluateMultiPortMux(n *netlist.Node) []netlist.LogicValue {
	width := len(n.Outputs)
	sel, ok := s.port(n, 0)
	if !ok || int(sel)+1 >= len(n.InputPorts) {
		return spell(0, width, false)
	}
	v, ok := s.port(n, int(sel)+1)
	return spell(v, width, ok)
}

// evaluatePmux returns A for an empty selector, slice i of B for a one-hot
// selector and X otherwise
func (s *Simulator) evaluatePmux(n *netlist.Node) []netlist.LogicValue {
	width := len(n.Outputs)
	sel, ok := s.namedPort(n, "S")
	if !ok {
		return spell(0, width, false)
	}
	switch bits.OnesCount64(sel) {
	case 0:
		v, ok := s.namedPort(n, "A")
		return spell(v, width, ok)
	case 1:
		i := bits.TrailingZeros64(sel)
		bi := n.InputPort("B")
		off := n.InputOffset(bi) + i*width
		out := make([]netlist.LogicValue, width)
		for j := range out {
			out[j] = s.input(n, off+j)
		}
		return out
	}
	return spell(0, width, false)
}
