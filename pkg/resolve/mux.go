package resolve

import (
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
)

// maxSelectBits bounds the selector of a mux tree
const maxSelectBits = 20

// lowerMux lowers a multi-port mux with selector port S and data ports
// I0..In-1. A multi-bit mux is split into single-bit muxes that the next
// sweep turns into MUX2 trees.
func (r *Resolver) lowerMux(b *netlist.Builder, n *netlist.Node) error {
	if len(n.InputPorts) < 2 {
		return r.Netlist.Contract(n.ID, "mux wants a selector and data ports, got %d ports", len(n.InputPorts))
	}
	width := n.OutputWidth()
	if w := n.InputPorts[0].Width; w > maxSelectBits {
		return r.Netlist.Contract(n.ID, "selector of %d bits exceeds %d", w, maxSelectBits)
	}
	for i, p := range n.InputPorts[1:] {
		if p.Width != width {
			return r.Netlist.Contract(n.ID, "data port %d is %d bits, output is %d", i, p.Width, width)
		}
	}
	if width > 1 {
		r.splitMux(b, n)
		return nil
	}

	sel := b.Take(n.ID, 0)
	data := make(netlist.Signals, len(n.InputPorts)-1)
	for i := range data {
		data[i] = b.Take(n.ID, i+1)[0]
	}
	r.finish(b, n, netlist.Signals{muxTree(b, sel, data)})
	return nil
}

// splitMux replaces an N-bit mux by N single-bit muxes. Every replica but
// the last reads copies of the selector; the last takes the original pins.
func (r *Resolver) splitMux(b *netlist.Builder, n *netlist.Node) {
	width := n.OutputWidth()
	ports := len(n.InputPorts)
	sel := b.Take(n.ID, 0)
	data := make([]netlist.Signals, ports-1)
	for i := range data {
		data[i] = b.Take(n.ID, i+1)
	}

	widths := make([]int, ports)
	widths[0] = len(sel)
	for i := 1; i < ports; i++ {
		widths[i] = 1
	}
	out := make(netlist.Signals, width)
	for bit := 0; bit < width; bit++ {
		id := b.MakeGate(netlist.OpMultiPortMux, 1, widths...)
		if bit == width-1 {
			b.AttachAll(id, 0, sel)
		} else {
			b.AttachAll(id, 0, b.CopyAll(sel))
		}
		for i, d := range data {
			b.Attach(id, len(sel)+i, d[bit])
		}
		out[bit] = b.Wire(id, 0)
	}
	r.Logger.Resolver("%s: split into %d single-bit muxes", n.Name, width)
	r.finish(b, n, out)
}

// muxTree builds a tree of MUX2 primitives. Level k pairs adjacent inputs
// under selector bit k; inputs missing from a full 2^len(sel) set are
// padded, inputs beyond it are unreachable and released.
func muxTree(b *netlist.Builder, sel, data netlist.Signals) netlist.PinID {
	full := 1 << uint(len(sel))
	for len(data) > full {
		b.Release(data[len(data)-1])
		data = data[:len(data)-1]
	}
	for len(data) < full {
		data = append(data, b.Pad())
	}

	for _, s := range sel {
		selects := fanout(b, s, len(data)/2)
		next := make(netlist.Signals, len(data)/2)
		for j := range next {
			next[j] = b.Mux2(selects[j], data[2*j], data[2*j+1])
		}
		data = next
	}
	return data[0]
}
