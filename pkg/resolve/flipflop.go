package resolve

import (
	"github.com/holiman/uint256"

	"github.com/fyerfyer/hdl-elab/pkg/netlist"
)

// control is a legalized single-bit control shared by every bit of a
// flip-flop, or a per-bit control bus
type control struct {
	pins netlist.Signals
}

// bit returns the control pin for output bit i, copying a shared control
// for every bit but the last
func (c *control) bit(b *netlist.Builder, i, width int) netlist.PinID {
	if c == nil {
		return netlist.NoPin
	}
	if len(c.pins) == 1 {
		if i == width-1 {
			return c.pins[0]
		}
		return b.Copy(c.pins[0])
	}
	return c.pins[i]
}

// checkControls verifies every control port is one bit or one bit per
// output, before anything is detached from the node
func (r *Resolver) checkControls(n *netlist.Node, width int) error {
	for _, name := range requiredPorts[n.Kind] {
		if name == "CLK" || name == "D" {
			continue
		}
		if w := n.InputPorts[n.InputPort(name)].Width; w != 1 && w != width {
			return r.Netlist.Contract(n.ID, "control %s is %d bits for %d outputs", name, w, width)
		}
	}
	return nil
}

// takeControl detaches a control port and legalizes every bit to active
// high. It returns nil for controls the kind does not have.
func takeControl(b *netlist.Builder, n *netlist.Node, name string, polarity netlist.Sensitivity) *control {
	port := n.InputPort(name)
	if port < 0 || !contains(requiredPorts[n.Kind], name) {
		return nil
	}
	pins := b.Take(n.ID, port)
	for i, pin := range pins {
		pins[i] = legalize(b, pin, polarity)
	}
	return &control{pins: pins}
}

// requiredPorts lists the input ports of each flip-flop and latch kind
var requiredPorts = map[netlist.Op][]string{
	netlist.OpDFF:      {"CLK", "D"},
	netlist.OpADFF:     {"CLK", "D", "ARST"},
	netlist.OpSDFF:     {"CLK", "D", "SRST"},
	netlist.OpDFFE:     {"CLK", "D", "EN"},
	netlist.OpADFFE:    {"CLK", "D", "EN", "ARST"},
	netlist.OpSDFFE:    {"CLK", "D", "EN", "SRST"},
	netlist.OpSDFFCE:   {"CLK", "D", "EN", "SRST"},
	netlist.OpDFFSR:    {"CLK", "D", "SET", "CLR"},
	netlist.OpDFFSRE:   {"CLK", "D", "EN", "SET", "CLR"},
	netlist.OpDLatch:   {"EN", "D"},
	netlist.OpADLatch:  {"EN", "D", "ARST"},
	netlist.OpDLatchSR: {"EN", "D", "SET", "CLR"},
}

// lowerFlipFlop lowers the flip-flop family to one rising-edge primitive
// flip-flop per output bit. The next-state logic is a MUX2 chain over
// legalized controls:
//
//	DFF     D
//	ADFF    ARST ? ARST_VALUE : D
//	SDFF    SRST ? SRST_VALUE : D
//	DFFE    EN ? D : Q
//	ADFFE   ARST ? ARST_VALUE : (EN ? D : Q)
//	SDFFE   SRST ? SRST_VALUE : (EN ? D : Q)
//	SDFFCE  EN ? (SRST ? SRST_VALUE : D) : Q
//	DFFSR   CLR ? 0 : (SET ? 1 : D)
//	DFFSRE  CLR ? 0 : (SET ? 1 : (EN ? D : Q))
//
// An asynchronous reset also overrides Q between edges: Q reads ARST_VALUE
// while ARST is active and until the clock edge after it was released.
func (r *Resolver) lowerFlipFlop(b *netlist.Builder, n *netlist.Node) error {
	if err := r.requirePorts(n, requiredPorts[n.Kind]...); err != nil {
		return err
	}
	width := n.OutputWidth()
	if w := n.InputPorts[n.InputPort("D")].Width; w != width {
		return r.Netlist.Contract(n.ID, "D is %d bits, Q is %d", w, width)
	}
	if w := n.InputPorts[n.InputPort("CLK")].Width; w != 1 {
		return r.Netlist.Contract(n.ID, "clock is %d bits", w)
	}
	if err := r.checkControls(n, width); err != nil {
		return err
	}

	attr := n.Attr
	clk := legalizeClock(b, b.TakeNamed(n.ID, "CLK")[0], attr.ClkEdge)
	d := b.TakeNamed(n.ID, "D")
	en := takeControl(b, n, "EN", attr.EnPolarity)
	srst := takeControl(b, n, "SRST", attr.SRstPolarity)
	arst := takeControl(b, n, "ARST", attr.ARstPolarity)
	set := takeControl(b, n, "SET", attr.SetPolarity)
	clr := takeControl(b, n, "CLR", attr.ClrPolarity)

	outs := b.AllOutputs(n.ID)
	clocks := width
	if arst != nil {
		clocks = 2 * width
	}
	clks := fanout(b, clk, clocks)
	for i := 0; i < width; i++ {
		ff := b.FlipFlop(clks[i], netlist.RisingEdge)
		q := ff
		if arst != nil {
			q = b.Make3Port(netlist.OpMux2, 1, 1, 1, 1)
		}
		driveOutput(b, outs[i], q)
		next := d[i]

		switch n.Kind {
		case netlist.OpSDFFCE:
			next = b.Mux2(srst.bit(b, i, width), next, b.Constant(bitOf(&attr.SRstValue, i)))
			next = b.Mux2(en.bit(b, i, width), b.Wire(q, 0), next)
		default:
			if en != nil {
				next = b.Mux2(en.bit(b, i, width), b.Wire(q, 0), next)
			}
			if set != nil {
				next = b.Mux2(set.bit(b, i, width), next, b.One())
			}
			if clr != nil {
				next = b.Mux2(clr.bit(b, i, width), next, b.Zero())
			}
			if srst != nil {
				next = b.Mux2(srst.bit(b, i, width), next, b.Constant(bitOf(&attr.SRstValue, i)))
			}
			if arst != nil {
				value := bitOf(&attr.ARstValue, i)
				rst := arst.bit(b, i, width)
				next = b.Mux2(b.Copy(rst), next, b.Constant(value))
				pending := resetPending(b, b.Copy(rst), clks[width+i])
				b.Attach(q, 0, b.Or(rst, pending))
				b.Attach(q, 1, b.Wire(ff, 0))
				b.Attach(q, 2, b.Constant(value))
			}
		}

		b.Attach(ff, 0, next)
	}
	b.Free(n.ID)
	return nil
}

// resetPending returns a pin that is 1 from a rising edge of rst until the
// next rising edge of clk. One flip-flop per clock passes a token to the
// other; the flag is set while they disagree.
func resetPending(b *netlist.Builder, rst, clk netlist.PinID) netlist.PinID {
	armed := b.FlipFlop(rst, netlist.RisingEdge)
	seen := b.FlipFlop(clk, netlist.RisingEdge)
	b.Attach(armed, 0, b.Not(b.Wire(seen, 0)))
	b.Attach(seen, 0, b.Wire(armed, 0))
	return b.Xor(b.Wire(armed, 0), b.Wire(seen, 0))
}

// driveOutput makes a new node drive an output of the replaced node before
// any feedback is tapped, so the original net is reused without a buffer
func driveOutput(b *netlist.Builder, out netlist.PinID, id netlist.NodeID) {
	if out != netlist.NoPin {
		b.Drive(out, b.Wire(id, 0))
	}
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// bitOf returns bit i of a reset value as a logic value
func bitOf(v *uint256.Int, i int) netlist.LogicValue {
	return netlist.FromBool(netlist.ValueBit(v, i))
}
