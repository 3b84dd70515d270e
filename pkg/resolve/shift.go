package resolve

import (
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
)

// lowerShift widens the shifted operand to at least the output width,
// rewires it for a constant amount or builds a barrel shifter, then keeps
// the low output bits. Bits above the output still shift down into it.
func (r *Resolver) lowerShift(b *netlist.Builder, n *netlist.Node) error {
	if len(n.InputPorts) != 2 {
		return r.Netlist.Contract(n.ID, "%s wants an operand and an amount, got %d ports", n.Kind, len(n.InputPorts))
	}
	width := n.OutputWidth()
	signed := n.Attr.SignedA
	a := b.Take(n.ID, 0)
	span := width
	if len(a) > span {
		span = len(a)
	}
	a = extend(b, a, span, signed)
	amount := b.Take(n.ID, 1)

	if bits, ok := constantValue(r.Netlist, amount); ok {
		k := int(smallValue(bits, uint64(span)))
		b.ReleaseAll(amount)
		out := make(netlist.Signals, width)
		for j := range out {
			out[j] = shiftedBit(b, n.Kind, a, j, k, signed)
		}
		b.ReleaseAll(a)
		r.Logger.Resolver("%s: constant shift by %d", n.Name, k)
		r.finish(b, n, out)
		return nil
	}

	cur := a
	for stage, sel := range amount {
		k := 1 << uint(stage)
		if stage >= 30 {
			k = span
		}
		sels := fanout(b, sel, span)
		next := make(netlist.Signals, span)
		for j := range next {
			next[j] = b.Mux2(sels[j], b.Copy(cur[j]), shiftedBit(b, n.Kind, cur, j, k, signed))
		}
		b.ReleaseAll(cur)
		cur = next
	}
	r.finish(b, n, extend(b, cur, width, false))
	return nil
}

// shiftedBit returns a new pin carrying bit j of a shifted by k
func shiftedBit(b *netlist.Builder, kind netlist.Op, a netlist.Signals, j, k int, signed bool) netlist.PinID {
	width := len(a)
	switch kind {
	case netlist.OpShiftLeft, netlist.OpArithShiftLeft:
		if j-k >= 0 {
			return b.Copy(a[j-k])
		}
		return b.Zero()
	default:
		if j+k < width {
			return b.Copy(a[j+k])
		}
		if kind == netlist.OpArithShiftRight && signed {
			return b.Copy(a[width-1])
		}
		return b.Zero()
	}
}
