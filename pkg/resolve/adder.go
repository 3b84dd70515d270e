package resolve

import (
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
)

// lowerAdder bit-blasts ADD and MINUS. MINUS is A + NOT(B) + 1. With a
// hard adder configured the sum is built from chained hard blocks.
func (r *Resolver) lowerAdder(b *netlist.Builder, n *netlist.Node) error {
	if len(n.InputPorts) != 2 {
		return r.Netlist.Contract(n.ID, "%s wants 2 operands, got %d", n.Kind, len(n.InputPorts))
	}
	width := n.OutputWidth()
	a := extend(b, b.Take(n.ID, 0), width, n.Attr.SignedA)
	c := extend(b, b.Take(n.ID, 1), width, n.Attr.SignedB)

	carry := netlist.Zero
	if n.Kind == netlist.OpMinus {
		for i, pin := range c {
			c[i] = b.Not(pin)
		}
		carry = netlist.One
	}

	cfg := r.Config.Adder
	if cfg.HardWidth > 0 && width >= cfg.MinHardWidth {
		r.finish(b, n, r.hardAdders(b, n, a, c, carry))
		return nil
	}
	r.finish(b, n, ripple(b, a, c, carry))
	return nil
}

// ripple consumes two equal-width lists and returns their sum modulo
// 2^width. Bit 0 folds the constant carry-in into XOR/AND (carry 0) or
// XNOR/OR (carry 1); later bits use ADDER_FUNC/CARRY_FUNC pairs.
func ripple(b *netlist.Builder, x, y netlist.Signals, carry netlist.LogicValue) netlist.Signals {
	sum := make(netlist.Signals, len(x))
	c := netlist.NoPin
	for i := range x {
		last := i == len(x)-1
		switch {
		case i == 0 && last:
			if carry == netlist.One {
				sum[i] = b.Xnor(x[i], y[i])
			} else {
				sum[i] = b.Xor(x[i], y[i])
			}
		case i == 0:
			if carry == netlist.One {
				sum[i] = b.Xnor(b.Copy(x[i]), b.Copy(y[i]))
				c = b.Or(x[i], y[i])
			} else {
				sum[i] = b.Xor(b.Copy(x[i]), b.Copy(y[i]))
				c = b.And(x[i], y[i])
			}
		case last:
			sum[i] = b.Gate(netlist.OpAdderFunc, x[i], y[i], c)
		default:
			sum[i] = b.Gate(netlist.OpAdderFunc, b.Copy(x[i]), b.Copy(y[i]), b.Copy(c))
			c = b.Gate(netlist.OpCarryFunc, x[i], y[i], c)
		}
	}
	return sum
}

// hardAdders splits a sum into chunks of the native adder width chained
// through their carries. The last chunk is padded to the full footprint
// when the target requires it; padded sum bits are left unconnected.
func (r *Resolver) hardAdders(b *netlist.Builder, n *netlist.Node, a, c netlist.Signals, carry netlist.LogicValue) netlist.Signals {
	cfg := r.Config.Adder
	width := len(a)
	cin := b.Constant(carry)
	var sum netlist.Signals

	for lo := 0; lo < width; lo += cfg.HardWidth {
		hi := lo + cfg.HardWidth
		if hi > width {
			hi = width
		}
		chunk := hi - lo
		if cfg.FixedFootprint {
			chunk = cfg.HardWidth
		}
		id := b.Node(netlist.OpHardAdder,
			[]netlist.Port{{Name: "a", Width: chunk}, {Name: "b", Width: chunk}, {Name: "cin", Width: 1}},
			[]netlist.Port{{Name: "sumout", Width: chunk}, {Name: "cout", Width: 1}})
		for i := 0; i < chunk; i++ {
			if lo+i < hi {
				b.Attach(id, i, a[lo+i])
				b.Attach(id, chunk+i, c[lo+i])
			} else {
				b.Attach(id, i, b.Zero())
				b.Attach(id, chunk+i, b.Zero())
			}
		}
		b.Attach(id, 2*chunk, cin)
		for i := 0; i < hi-lo; i++ {
			sum = append(sum, b.Wire(id, i))
		}
		if pad := chunk - (hi - lo); pad > 0 {
			r.Logger.Resource("%s: last adder chunk padded by %d bits", n.Name, pad)
		}
		if hi < width {
			cin = b.Wire(id, chunk)
		}
	}
	return sum
}
