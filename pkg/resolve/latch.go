package resolve

import (
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
)

// lowerLatch lowers the latch family to active-high level-sensitive
// primitive flip-flops:
//
//	DLATCH    trigger EN             data D
//	ADLATCH   trigger EN | ARST      data ARST ? ARST_VALUE : D
//	DLATCHSR  trigger EN | SET | CLR data CLR ? 0 : (SET ? 1 : D), per bit
func (r *Resolver) lowerLatch(b *netlist.Builder, n *netlist.Node) error {
	if err := r.requirePorts(n, requiredPorts[n.Kind]...); err != nil {
		return err
	}
	width := n.OutputWidth()
	if w := n.InputPorts[n.InputPort("D")].Width; w != width {
		return r.Netlist.Contract(n.ID, "D is %d bits, Q is %d", w, width)
	}
	if w := n.InputPorts[n.InputPort("EN")].Width; w != 1 {
		return r.Netlist.Contract(n.ID, "enable is %d bits", w)
	}

	if err := r.checkControls(n, width); err != nil {
		return err
	}

	attr := n.Attr
	d := b.TakeNamed(n.ID, "D")
	en := takeControl(b, n, "EN", attr.EnPolarity)
	arst := takeControl(b, n, "ARST", attr.ARstPolarity)
	set := takeControl(b, n, "SET", attr.SetPolarity)
	clr := takeControl(b, n, "CLR", attr.ClrPolarity)

	outs := b.AllOutputs(n.ID)
	for i := 0; i < width; i++ {
		trigger := en.bit(b, i, width)
		next := d[i]
		if arst != nil {
			rst := arst.bit(b, i, width)
			trigger = b.Or(trigger, b.Copy(rst))
			next = b.Mux2(rst, next, b.Constant(bitOf(&attr.ARstValue, i)))
		}
		if set != nil {
			s := set.bit(b, i, width)
			trigger = b.Or(trigger, b.Copy(s))
			next = b.Mux2(s, next, b.One())
		}
		if clr != nil {
			c := clr.bit(b, i, width)
			trigger = b.Or(trigger, b.Copy(c))
			next = b.Mux2(c, next, b.Zero())
		}

		ff := b.FlipFlop(trigger, netlist.ActiveHigh)
		driveOutput(b, outs[i], ff)
		b.Attach(ff, 0, next)
	}
	b.Free(n.ID)
	return nil
}
