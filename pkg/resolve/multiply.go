package resolve

import (
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
)

// lowerMultiply builds an array multiplier: AND partial products summed
// row by row with ripple adders, truncated to the output width. Operands
// are extended to the output width first, so signed operands wrap
// correctly.
func (r *Resolver) lowerMultiply(b *netlist.Builder, n *netlist.Node) error {
	if len(n.InputPorts) != 2 {
		return r.Netlist.Contract(n.ID, "%s wants 2 operands, got %d", n.Kind, len(n.InputPorts))
	}
	width := n.OutputWidth()
	a := extend(b, b.Take(n.ID, 0), width, n.Attr.SignedA)
	c := extend(b, b.Take(n.ID, 1), width, n.Attr.SignedB)

	// Row 0 is the partial product of a and c[0]
	acc := make(netlist.Signals, width)
	for j := range acc {
		acc[j] = b.And(b.Copy(a[j]), b.Copy(c[0]))
	}

	for i := 1; i < width; i++ {
		row := make(netlist.Signals, width-i)
		for j := range row {
			row[j] = b.And(b.Copy(a[j]), b.Copy(c[i]))
		}
		high := ripple(b, acc[i:], row, netlist.Zero)
		acc = append(acc[:i:i], high...)
	}

	b.ReleaseAll(a)
	b.ReleaseAll(c)
	r.finish(b, n, acc)
	return nil
}
