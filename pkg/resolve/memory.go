package resolve

import (
	"github.com/pkg/errors"

	"github.com/fyerfyer/hdl-elab/pkg/netlist"
)

// memoryPort names the ports of one access port of a memory
type memoryPort struct {
	addr, data, we, out string
}

var (
	singlePort = []memoryPort{{"addr", "data", "we", "out"}}
	dualPort   = []memoryPort{{"addr1", "data1", "we1", "out1"}, {"addr2", "data2", "we2", "out2"}}
)

// memoryShape describes a memory node after its ports were checked
type memoryShape struct {
	ports     []memoryPort
	dual      bool
	addrWidth int
	dataWidth int
}

// shapeOf checks that a memory has every port its kind needs, so a
// misconfigured memory is reported before anything is rewired
func (r *Resolver) shapeOf(n *netlist.Node) (memoryShape, error) {
	s := memoryShape{ports: singlePort}
	if n.InputPort("addr1") >= 0 || n.InputPort("addr2") >= 0 {
		s.ports, s.dual = dualPort, true
	}
	for _, p := range s.ports {
		for _, name := range []string{p.addr, p.data, p.we} {
			if n.InputPort(name) < 0 {
				return s, r.Netlist.MissingPort(n.ID, name)
			}
		}
		if n.OutputPort(p.out) < 0 {
			return s, r.Netlist.MissingPort(n.ID, p.out)
		}
	}
	if n.InputPort("clk") < 0 {
		return s, r.Netlist.MissingPort(n.ID, "clk")
	}

	first := s.ports[0]
	s.addrWidth = n.InputPorts[n.InputPort(first.addr)].Width
	s.dataWidth = n.InputPorts[n.InputPort(first.data)].Width
	for _, p := range s.ports {
		if w := n.InputPorts[n.InputPort(p.addr)].Width; w != s.addrWidth {
			return s, r.Netlist.Contract(n.ID, "port %s is %d bits, %s is %d", p.addr, w, first.addr, s.addrWidth)
		}
		if w := n.InputPorts[n.InputPort(p.data)].Width; w != s.dataWidth {
			return s, r.Netlist.Contract(n.ID, "port %s is %d bits, %s is %d", p.data, w, first.data, s.dataWidth)
		}
		if w := n.OutputPorts[n.OutputPort(p.out)].Width; w != s.dataWidth {
			return s, r.Netlist.Contract(n.ID, "port %s is %d bits, %s is %d", p.out, w, first.data, s.dataWidth)
		}
		if w := n.InputPorts[n.InputPort(p.we)].Width; w != 1 {
			return s, r.Netlist.Contract(n.ID, "write enable %s is %d bits", p.we, w)
		}
	}
	return s, nil
}

// newMemory creates a memory node with the port layout of shape
func newMemory(b *netlist.Builder, s memoryShape, addrWidth, dataWidth int) netlist.NodeID {
	var in, out []netlist.Port
	for _, p := range s.ports {
		in = append(in,
			netlist.Port{Name: p.addr, Width: addrWidth},
			netlist.Port{Name: p.data, Width: dataWidth},
			netlist.Port{Name: p.we, Width: 1})
		out = append(out, netlist.Port{Name: p.out, Width: dataWidth})
	}
	in = append(in, netlist.Port{Name: "clk", Width: 1})
	return b.Node(netlist.OpMemory, in, out)
}

// attachNamed attaches pins to a named input port of a new node
func attachNamed(b *netlist.Builder, id netlist.NodeID, name string, pins netlist.Signals) {
	n := b.Netlist().Node(id)
	if n == nil {
		return
	}
	b.AttachAll(id, n.InputOffset(n.InputPort(name)), pins)
}

// outputSlot returns the first output slot of a named port
func outputSlot(nl *netlist.Netlist, id netlist.NodeID, name string) int {
	n := nl.Node(id)
	if n == nil {
		return 0
	}
	return n.OutputOffset(n.OutputPort(name))
}

// LowerMemory applies one step of memory legalization: a depth split, a
// width split, padding to the hard block or lowering to soft logic. It
// returns the new memory nodes that may need further steps.
func (r *Resolver) LowerMemory(id netlist.NodeID, mark netlist.Mark) ([]netlist.NodeID, error) {
	n := r.Netlist.Node(id)
	if n == nil || n.Kind != netlist.OpMemory {
		return nil, r.Netlist.Contract(id, "not a memory")
	}
	s, err := r.shapeOf(n)
	if err != nil {
		return nil, err
	}
	name := n.Name
	b := r.Netlist.NewBuilder(id, mark)
	hb := r.Config.MemoryBlock(s.dual)

	var next []netlist.NodeID
	switch {
	case hb == nil && !s.dual && s.addrWidth <= r.Config.Memory.SoftLogicCutoff:
		r.Logger.Memory("%s: %dx%d lowered to soft logic", name, 1<<uint(s.addrWidth), s.dataWidth)
		r.softMemory(b, n, s)

	case hb == nil:
		r.Logger.Resource("%s: no hard block for a %d-bit address memory, kept as is", name, s.addrWidth)
		return nil, nil

	case r.Config.MemorySplitDepth(s.dual) > 0 && s.addrWidth > r.Config.MemorySplitDepth(s.dual):
		r.Logger.Memory("%s: depth split at %d address bits", name, s.addrWidth)
		next = r.splitDepth(b, n, s)

	case r.Config.MemorySplitWidth(s.dual) > 0 && s.dataWidth > r.Config.MemorySplitWidth(s.dual):
		r.Logger.Memory("%s: width split of %d bits into %d-bit chunks", name, s.dataWidth, r.Config.MemorySplitWidth(s.dual))
		next = r.splitWidth(b, n, s, r.Config.MemorySplitWidth(s.dual))

	case s.addrWidth > hb.AddrWidth || s.dataWidth > hb.DataWidth:
		return nil, r.Netlist.Contract(id, "%dx%d memory does not fit the %dx%d hard block",
			s.addrWidth, s.dataWidth, hb.AddrWidth, hb.DataWidth)

	case s.addrWidth < hb.AddrWidth || s.dataWidth < hb.DataWidth:
		r.Logger.Resource("%s: padded from %dx%d to the %dx%d hard block", name,
			s.addrWidth, s.dataWidth, hb.AddrWidth, hb.DataWidth)
		r.padMemory(b, n, s, hb.AddrWidth, hb.DataWidth)

	default:
		return nil, nil
	}

	if err := b.Err(); err != nil {
		return nil, errors.Wrapf(err, "splitting memory %s", name)
	}
	return next, nil
}

// splitDepth removes the top address bit. Each half sees the low address
// bits; its write enable is gated by the top bit (true or complemented).
// The top bit is registered on the memory clock and selects the half
// whose registered read data reaches the output.
func (r *Resolver) splitDepth(b *netlist.Builder, n *netlist.Node, s memoryShape) []netlist.NodeID {
	low, high := newMemory(b, s, s.addrWidth-1, s.dataWidth), newMemory(b, s, s.addrWidth-1, s.dataWidth)
	clk := b.TakeNamed(n.ID, "clk")[0]

	for _, p := range s.ports {
		addr := b.TakeNamed(n.ID, p.addr)
		tops := fanout(b, addr[s.addrWidth-1], 3)
		lowAddr := addr[:s.addrWidth-1]
		data := b.TakeNamed(n.ID, p.data)
		we := b.TakeNamed(n.ID, p.we)[0]

		attachNamed(b, high, p.addr, b.CopyAll(lowAddr))
		attachNamed(b, low, p.addr, lowAddr)
		attachNamed(b, high, p.data, b.CopyAll(data))
		attachNamed(b, low, p.data, data)
		attachNamed(b, low, p.we, netlist.Signals{b.And(b.Copy(we), b.Not(tops[0]))})
		attachNamed(b, high, p.we, netlist.Signals{b.And(we, tops[1])})

		reg := fanout(b, b.FF(tops[2], b.Copy(clk), netlist.RisingEdge), s.dataWidth)
		outs := b.Outputs(n.ID, n.OutputPort(p.out))
		lo, hi := outputSlot(r.Netlist, low, p.out), outputSlot(r.Netlist, high, p.out)
		for j, out := range outs {
			sel := b.Mux2(reg[j], b.Wire(low, lo+j), b.Wire(high, hi+j))
			if out == netlist.NoPin {
				b.Release(sel)
				continue
			}
			b.Drive(out, sel)
		}
	}

	attachNamed(b, high, "clk", netlist.Signals{b.Copy(clk)})
	attachNamed(b, low, "clk", netlist.Signals{clk})
	b.Free(n.ID)
	return []netlist.NodeID{low, high}
}

// splitWidth cuts the data path into chunks. The first chunk keeps the
// original address, write-enable and clock pins; the others read copies.
// Output pins move to the chunk that now drives them.
func (r *Resolver) splitWidth(b *netlist.Builder, n *netlist.Node, s memoryShape, chunk int) []netlist.NodeID {
	type shared struct {
		addr netlist.Signals
		we   netlist.Signals
		data netlist.Signals
		outs []netlist.PinID
	}
	ports := make([]shared, len(s.ports))
	for i, p := range s.ports {
		ports[i] = shared{
			addr: b.TakeNamed(n.ID, p.addr),
			we:   b.TakeNamed(n.ID, p.we),
			data: b.TakeNamed(n.ID, p.data),
			outs: b.Outputs(n.ID, n.OutputPort(p.out)),
		}
	}
	clk := b.TakeNamed(n.ID, "clk")

	var parts []netlist.NodeID
	for lo := 0; lo < s.dataWidth; lo += chunk {
		hi := lo + chunk
		if hi > s.dataWidth {
			hi = s.dataWidth
		}
		first := lo == 0
		id := newMemory(b, s, s.addrWidth, hi-lo)
		pick := func(pins netlist.Signals) netlist.Signals {
			if first {
				return pins
			}
			return b.CopyAll(pins)
		}
		// Copies are taken before the originals are attached below
		for i, p := range s.ports {
			if !first {
				attachNamed(b, id, p.addr, pick(ports[i].addr))
				attachNamed(b, id, p.we, pick(ports[i].we))
			}
			attachNamed(b, id, p.data, ports[i].data[lo:hi])
			base := outputSlot(r.Netlist, id, p.out)
			for j, out := range ports[i].outs[lo:hi] {
				if out != netlist.NoPin {
					b.Remap(out, id, base+j)
				}
			}
		}
		if !first {
			attachNamed(b, id, "clk", pick(clk))
		}
		parts = append(parts, id)
	}

	for i, p := range s.ports {
		attachNamed(b, parts[0], p.addr, ports[i].addr)
		attachNamed(b, parts[0], p.we, ports[i].we)
	}
	attachNamed(b, parts[0], "clk", clk)
	b.Free(n.ID)
	return parts
}

// padMemory rebuilds a memory at the hard block's dimensions. Extra
// address and data inputs read zero; extra outputs stay unconnected.
func (r *Resolver) padMemory(b *netlist.Builder, n *netlist.Node, s memoryShape, addrWidth, dataWidth int) {
	id := newMemory(b, s, addrWidth, dataWidth)
	for _, p := range s.ports {
		attachNamed(b, id, p.addr, pad(b, b.TakeNamed(n.ID, p.addr), addrWidth))
		attachNamed(b, id, p.data, pad(b, b.TakeNamed(n.ID, p.data), dataWidth))
		attachNamed(b, id, p.we, b.TakeNamed(n.ID, p.we))
		base := outputSlot(r.Netlist, id, p.out)
		for j, out := range b.Outputs(n.ID, n.OutputPort(p.out)) {
			if out != netlist.NoPin {
				b.Remap(out, id, base+j)
			}
		}
	}
	attachNamed(b, id, "clk", b.TakeNamed(n.ID, "clk"))
	b.Free(n.ID)
}

// pad appends zero pins up to width
func pad(b *netlist.Builder, sig netlist.Signals, width int) netlist.Signals {
	for len(sig) < width {
		sig = append(sig, b.Zero())
	}
	return sig
}

// softMemory lowers a single-port memory to flip-flops: one cell per bit
// with a hold mux, an address decoder gating the write enable per word and
// a read mux whose result is registered on the clock, so a read during a
// write returns the old word.
func (r *Resolver) softMemory(b *netlist.Builder, n *netlist.Node, s memoryShape) {
	p := s.ports[0]
	addr := b.TakeNamed(n.ID, p.addr)
	data := b.TakeNamed(n.ID, p.data)
	we := b.TakeNamed(n.ID, p.we)[0]
	clk := b.TakeNamed(n.ID, "clk")[0]
	outs := b.Outputs(n.ID, n.OutputPort(p.out))

	inverted := make(netlist.Signals, len(addr))
	for i, a := range addr {
		inverted[i] = b.Not(b.Copy(a))
	}

	depth := 1 << uint(s.addrWidth)
	widths := make([]int, depth+1)
	widths[0] = s.addrWidth
	for k := 1; k <= depth; k++ {
		widths[k] = s.dataWidth
	}
	read := b.MakeGate(netlist.OpMultiPortMux, s.dataWidth, widths...)
	b.AttachAll(read, 0, b.CopyAll(addr))

	for k := 0; k < depth; k++ {
		literals := make(netlist.Signals, s.addrWidth)
		for i := range literals {
			if k>>uint(i)&1 == 1 {
				literals[i] = b.Copy(addr[i])
			} else {
				literals[i] = b.Copy(inverted[i])
			}
		}
		write := fanout(b, b.And(b.Copy(we), reduce(b, netlist.OpAnd, literals)), s.dataWidth)
		for j := 0; j < s.dataWidth; j++ {
			cell := b.FlipFlop(b.Copy(clk), netlist.RisingEdge)
			b.Attach(cell, 0, b.Mux2(write[j], b.Wire(cell, 0), b.Copy(data[j])))
			b.Attach(read, s.addrWidth+k*s.dataWidth+j, b.Wire(cell, 0))
		}
	}

	for j, out := range outs {
		reg := b.FlipFlop(b.Copy(clk), netlist.RisingEdge)
		driveOutput(b, out, reg)
		b.Attach(reg, 0, b.Wire(read, j))
	}

	b.ReleaseAll(addr)
	b.ReleaseAll(inverted)
	b.ReleaseAll(data)
	b.Release(we)
	b.Release(clk)
	b.Free(n.ID)
}
