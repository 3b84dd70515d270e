package sim

import (
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
)

// evaluatePrimitive computes the outputs of a single-bit gate
func (s *Simulator) evaluatePrimitive(n *netlist.Node) []netlist.LogicValue {
	in := s.inputs(n)
	switch n.Kind {
	case netlist.OpGnd:
		return []netlist.LogicValue{netlist.Zero}
	case netlist.OpVcc:
		return []netlist.LogicValue{netlist.One}
	case netlist.OpPad:
		return []netlist.LogicValue{netlist.X}
	case netlist.OpBuf:
		return []netlist.LogicValue{evaluateBUF(in)}
	case netlist.OpNot:
		return []netlist.LogicValue{evaluateBUF(in).Not()}
	case netlist.OpAnd:
		return []netlist.LogicValue{evaluateAND(in)}
	case netlist.OpNand:
		return []netlist.LogicValue{evaluateAND(in).Not()}
	case netlist.OpOr:
		return []netlist.LogicValue{evaluateOR(in)}
	case netlist.OpNor:
		return []netlist.LogicValue{evaluateOR(in).Not()}
	case netlist.OpXor:
		return []netlist.LogicValue{evaluateXOR(in)}
	case netlist.OpXnor:
		return []netlist.LogicValue{evaluateXOR(in).Not()}
	case netlist.OpMux2:
		return []netlist.LogicValue{evaluateMUX2(in)}
	case netlist.OpFullSub:
		diff, bout := evaluateFULLSUB(in)
		return []netlist.LogicValue{diff, bout}
	case netlist.OpAdderFunc:
		return []netlist.LogicValue{evaluateXOR(in)}
	case netlist.OpCarryFunc:
		return []netlist.LogicValue{evaluateMajority(in)}
	}
	out := make([]netlist.LogicValue, len(n.Outputs))
	for i := range out {
		out[i] = netlist.X
	}
	return out
}

func evaluateBUF(in []netlist.LogicValue) netlist.LogicValue {
	if len(in) != 1 {
		return netlist.X
	}
	return in[0]
}

func evaluateAND(in []netlist.LogicValue) netlist.LogicValue {
	result := netlist.One
	for _, v := range in {
		switch v {
		case netlist.Zero:
			return netlist.Zero // Short-circuit for AND gate
		case netlist.X:
			result = netlist.X
		}
	}
	return result
}

func evaluateOR(in []netlist.LogicValue) netlist.LogicValue {
	result := netlist.Zero
	for _, v := range in {
		switch v {
		case netlist.One:
			return netlist.One // Short-circuit for OR gate
		case netlist.X:
			result = netlist.X
		}
	}
	return result
}

func evaluateXOR(in []netlist.LogicValue) netlist.LogicValue {
	parity := false
	for _, v := range in {
		switch v {
		case netlist.X:
			return netlist.X
		case netlist.One:
			parity = !parity
		}
	}
	return netlist.FromBool(parity)
}

// evaluateMUX2 reads S, I0, I1; an unknown select still yields a value
// when both data inputs agree
func evaluateMUX2(in []netlist.LogicValue) netlist.LogicValue {
	if len(in) != 3 {
		return netlist.X
	}
	switch in[0] {
	case netlist.Zero:
		return in[1]
	case netlist.One:
		return in[2]
	}
	if in[1] == in[2] {
		return in[1]
	}
	return netlist.X
}

// evaluateFULLSUB computes x - y - bin
func evaluateFULLSUB(in []netlist.LogicValue) (diff, bout netlist.LogicValue) {
	if len(in) != 3 {
		return netlist.X, netlist.X
	}
	for _, v := range in {
		if v == netlist.X {
			return netlist.X, netlist.X
		}
	}
	x, y, b := in[0] == netlist.One, in[1] == netlist.One, in[2] == netlist.One
	diff = netlist.FromBool(x != y != b)
	bout = netlist.FromBool((!x && y) || (!x && b) || (y && b))
	return diff, bout
}

func evaluateMajority(in []netlist.LogicValue) netlist.LogicValue {
	ones, zeros := 0, 0
	for _, v := range in {
		switch v {
		case netlist.One:
			ones++
		case netlist.Zero:
			zeros++
		}
	}
	switch {
	case ones*2 > len(in):
		return netlist.One
	case zeros*2 > len(in):
		return netlist.Zero
	}
	return netlist.X
}
