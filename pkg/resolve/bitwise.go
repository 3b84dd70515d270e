package resolve

import (
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
)

// lowerBitwise decodes the bitwise family. A single operand with a non-NOT
// kind is a reduction; two or more operands are combined bit by bit after
// extension to the output width.
func (r *Resolver) lowerBitwise(b *netlist.Builder, n *netlist.Node) error {
	width := n.OutputWidth()
	prim := n.Kind.Primitive()

	if n.Kind == netlist.OpBitwiseNot {
		a := extend(b, b.Take(n.ID, 0), width, n.Attr.SignedA)
		out := make(netlist.Signals, len(a))
		for i, pin := range a {
			out[i] = b.Not(pin)
		}
		r.finish(b, n, out)
		return nil
	}

	if len(n.InputPorts) == 1 {
		root := reduce(b, prim, b.Take(n.ID, 0))
		r.finish(b, n, netlist.Signals{root})
		return nil
	}

	operands := make([]netlist.Signals, len(n.InputPorts))
	for i := range operands {
		signed := n.Attr.SignedB
		if i == 0 {
			signed = n.Attr.SignedA
		}
		operands[i] = extend(b, b.Take(n.ID, i), width, signed)
	}
	out := make(netlist.Signals, width)
	for bit := range out {
		column := make(netlist.Signals, len(operands))
		for i, op := range operands {
			column[i] = op[bit]
		}
		out[bit] = reduce(b, prim, column)
	}
	r.finish(b, n, out)
	return nil
}

// lowerCaseEquality compares two equal-width operands with one XNOR per bit
// and a linear AND chain seeded with logic 1
func (r *Resolver) lowerCaseEquality(b *netlist.Builder, n *netlist.Node) error {
	if len(n.InputPorts) != 2 {
		return r.Netlist.Contract(n.ID, "%s wants 2 operands, got %d", n.Kind, len(n.InputPorts))
	}
	if n.InputPorts[0].Width != n.InputPorts[1].Width {
		return r.Netlist.Contract(n.ID, "operand widths differ (%d and %d)", n.InputPorts[0].Width, n.InputPorts[1].Width)
	}
	a := b.Take(n.ID, 0)
	bb := b.Take(n.ID, 1)

	result := equalChain(b, a, bb)
	if n.Kind == netlist.OpCaseNotEqual {
		result = b.Not(result)
	}
	r.finish(b, n, netlist.Signals{result})
	return nil
}

// equalChain consumes two equal-width lists and returns a pin that is 1 when
// they match bit for bit
func equalChain(b *netlist.Builder, a, c netlist.Signals) netlist.PinID {
	acc := b.One()
	for i := range a {
		acc = b.And(acc, b.Xnor(a[i], c[i]))
	}
	return acc
}
