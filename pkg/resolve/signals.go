package resolve

import (
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
)

// extend resizes a signal list to width. Narrow lists grow with copies of
// their sign bit when signed, zeros otherwise; wide lists lose their top
// bits.
func extend(b *netlist.Builder, sig netlist.Signals, width int, signed bool) netlist.Signals {
	if len(sig) >= width {
		b.ReleaseAll(sig[width:])
		return sig[:width:width]
	}
	out := append(netlist.Signals(nil), sig...)
	for len(out) < width {
		if signed && len(sig) > 0 {
			out = append(out, b.Copy(sig[len(sig)-1]))
		} else {
			out = append(out, b.Zero())
		}
	}
	return out
}

// fanout returns n pins reading the net of pin, consuming pin as the last one
func fanout(b *netlist.Builder, pin netlist.PinID, n int) netlist.Signals {
	out := make(netlist.Signals, n)
	for i := 0; i < n-1; i++ {
		out[i] = b.Copy(pin)
	}
	if n > 0 {
		out[n-1] = pin
	} else {
		b.Release(pin)
	}
	return out
}

// reduce builds a balanced tree of 2-input gates over sig. Adjacent
// signals are paired and an odd one is carried up unchanged; inverting
// kinds use their plain counterpart below the root.
func reduce(b *netlist.Builder, kind netlist.Op, sig netlist.Signals) netlist.PinID {
	inner := kind.Uninverted()
	switch len(sig) {
	case 0:
		return b.Constant(netlist.FromBool(kind == netlist.OpAnd || kind == netlist.OpNor || kind == netlist.OpXnor))
	case 1:
		if kind != inner {
			return b.Not(sig[0])
		}
		return sig[0]
	}

	level := sig
	for len(level) > 2 {
		var next netlist.Signals
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, b.Gate(inner, level[i], level[i+1]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}
	return b.Gate(kind, level[0], level[1])
}

// orReduce returns a pin that is 1 when any bit of sig is 1
func orReduce(b *netlist.Builder, sig netlist.Signals) netlist.PinID {
	return reduce(b, netlist.OpOr, sig)
}

// legalize returns a pin that is 1 while ctrl is in its active state. The
// control is compared against a polarity constant so every control path
// has the same shape.
func legalize(b *netlist.Builder, ctrl netlist.PinID, polarity netlist.Sensitivity) netlist.PinID {
	return b.Xnor(ctrl, b.Constant(netlist.FromBool(!netlist.Polarity(polarity).Inverted())))
}

// legalizeClock returns a rising-edge clock for a clock of any edge
func legalizeClock(b *netlist.Builder, clk netlist.PinID, edge netlist.Sensitivity) netlist.PinID {
	if netlist.Edge(edge) == netlist.FallingEdge {
		return b.Not(clk)
	}
	return clk
}

// constantValue reads a list of constant pins as an unsigned value. ok is
// false if any pin is not a 0 or 1 constant.
func constantValue(nl *netlist.Netlist, sig netlist.Signals) (value []bool, ok bool) {
	value = make([]bool, len(sig))
	for i, pin := range sig {
		v, isConst := nl.PinValue(pin)
		if !isConst || v == netlist.X {
			return nil, false
		}
		value[i] = v == netlist.One
	}
	return value, true
}

// smallValue converts constant bits to an integer, saturating at limit
func smallValue(bits []bool, limit uint64) uint64 {
	var v uint64
	for i, bit := range bits {
		if !bit {
			continue
		}
		if i >= 63 || v+(1<<uint(i)) > limit {
			return limit
		}
		v += 1 << uint(i)
	}
	return v
}
