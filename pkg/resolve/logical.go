package resolve

import (
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
)

// lowerLogical reduces every operand to its truth value and combines the
// truth values with one gate. Only bit 0 of the result carries the value.
func (r *Resolver) lowerLogical(b *netlist.Builder, n *netlist.Node) error {
	want := 2
	if n.Kind == netlist.OpLogicalNot {
		want = 1
	}
	if len(n.InputPorts) != want {
		return r.Netlist.Contract(n.ID, "%s wants %d operands, got %d", n.Kind, want, len(n.InputPorts))
	}

	truth := make(netlist.Signals, want)
	for i := range truth {
		truth[i] = orReduce(b, b.Take(n.ID, i))
	}

	var result netlist.PinID
	if n.Kind == netlist.OpLogicalNot {
		result = b.Not(truth[0])
	} else {
		result = b.Gate(n.Kind.Primitive(), truth[0], truth[1])
	}
	r.finish(b, n, netlist.Signals{result})
	return nil
}

// lowerEquality extends both operands to a common width, honoring their
// signedness, and compares them bit by bit
func (r *Resolver) lowerEquality(b *netlist.Builder, n *netlist.Node) error {
	if len(n.InputPorts) != 2 {
		return r.Netlist.Contract(n.ID, "%s wants 2 operands, got %d", n.Kind, len(n.InputPorts))
	}
	width := n.InputPorts[0].Width
	if w := n.InputPorts[1].Width; w > width {
		width = w
	}
	a := extend(b, b.Take(n.ID, 0), width, n.Attr.SignedA)
	c := extend(b, b.Take(n.ID, 1), width, n.Attr.SignedB)

	result := equalChain(b, a, c)
	if n.Kind == netlist.OpNotEqual {
		result = b.Not(result)
	}
	r.finish(b, n, netlist.Signals{result})
	return nil
}
