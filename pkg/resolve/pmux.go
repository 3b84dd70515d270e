package resolve

import (
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
)

// lowerPmux lowers a parallel-case mux: one-hot selector S, default A and
// bus B of len(S) slices. Level i keeps the previous result unless S[i] is
// set, in which case it takes slice i, or pad when an earlier selector bit
// already fired.
func (r *Resolver) lowerPmux(b *netlist.Builder, n *netlist.Node) error {
	if err := r.requirePorts(n, "A", "B", "S"); err != nil {
		return err
	}
	width := n.OutputWidth()
	ai, bi, si := n.InputPort("A"), n.InputPort("B"), n.InputPort("S")
	cases := n.InputPorts[si].Width
	if n.InputPorts[ai].Width != width || n.InputPorts[bi].Width != cases*width {
		return r.Netlist.Contract(n.ID, "A is %d bits and B %d bits for %d cases of %d bits",
			n.InputPorts[ai].Width, n.InputPorts[bi].Width, cases, width)
	}

	result := b.TakeNamed(n.ID, "A")
	bus := b.TakeNamed(n.ID, "B")
	sel := b.TakeNamed(n.ID, "S")

	// fired[i] is 1 when any of S[0..i-1] is 1
	fired := make(netlist.Signals, cases)
	for i := 1; i < cases; i++ {
		if i == 1 {
			fired[i] = b.Copy(sel[0])
		} else {
			fired[i] = b.Or(b.Copy(fired[i-1]), b.Copy(sel[i-1]))
		}
	}

	for i := 0; i < cases; i++ {
		sels := fanout(b, sel[i], width)
		var guards netlist.Signals
		if i > 0 {
			guards = fanout(b, fired[i], width)
		}
		for j := 0; j < width; j++ {
			slice := bus[i*width+j]
			if i > 0 {
				slice = b.Mux2(guards[j], slice, b.Pad())
			}
			result[j] = b.Mux2(sels[j], result[j], slice)
		}
	}
	r.finish(b, n, result)
	return nil
}
