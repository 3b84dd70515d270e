package resolve

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/fyerfyer/hdl-elab/pkg/netlist"
)

// lowerPower lowers base ** exponent. Two constants fold; a constant
// exponent becomes a chain of MULTIPLY nodes; anything else computes every
// power the exponent can select and picks one with a multi-port mux. The
// new MULTIPLY and mux nodes are lowered by the next sweep.
func (r *Resolver) lowerPower(b *netlist.Builder, n *netlist.Node) error {
	if len(n.InputPorts) != 2 {
		return r.Netlist.Contract(n.ID, "%s wants a base and an exponent, got %d ports", n.Kind, len(n.InputPorts))
	}
	width := n.OutputWidth()
	limit := r.Config.Elaboration.MaxPowerSelectBits
	wexp := n.InputPorts[1].Width

	baseBits, baseConst := constantValue(r.Netlist, n.InputPins(0))
	expBits, expConst := constantValue(r.Netlist, n.InputPins(1))

	var e uint64
	if expConst {
		e = smallValue(expBits, 1<<uint(limit)+1)
		if !baseConst && e > 1<<uint(limit) {
			return r.Netlist.NodeError(n.ID, errors.Wrapf(netlist.ErrContract, "constant exponent %d exceeds the power chain bound %d", e, 1<<uint(limit)))
		}
	} else if wexp > limit {
		return r.Netlist.NodeError(n.ID, errors.Wrapf(netlist.ErrContract, "exponent of %d bits exceeds the selector bound of %d", wexp, limit))
	}

	base := b.Take(n.ID, 0)
	exp := b.Take(n.ID, 1)

	switch {
	case baseConst && expConst:
		v := fold(baseBits, expBits)
		b.ReleaseAll(base)
		b.ReleaseAll(exp)
		r.Logger.Resolver("%s: folded to %s", n.Name, v.Hex())
		r.finish(b, n, b.Value(v, width))

	case expConst:
		b.ReleaseAll(exp)
		switch e {
		case 0:
			b.ReleaseAll(base)
			r.finish(b, n, b.Value(uint256.NewInt(1), width))
		case 1:
			r.finish(b, n, extend(b, base, width, false))
		default:
			acc := b.CopyAll(base)
			for i := uint64(2); i <= e; i++ {
				acc = r.multiplyBy(b, acc, b.CopyAll(base), width)
			}
			b.ReleaseAll(base)
			r.finish(b, n, acc)
		}

	default:
		count := 1 << uint(wexp)
		powers := make([]netlist.Signals, count)
		powers[0] = b.Value(uint256.NewInt(1), width)
		if count > 1 {
			powers[1] = extend(b, b.CopyAll(base), width, false)
		}
		for k := 2; k < count; k++ {
			powers[k] = r.multiplyBy(b, b.CopyAll(powers[k-1]), b.CopyAll(base), width)
		}
		b.ReleaseAll(base)

		widths := make([]int, count+1)
		widths[0] = wexp
		for k := 1; k <= count; k++ {
			widths[k] = width
		}
		mux := b.MakeGate(netlist.OpMultiPortMux, width, widths...)
		b.AttachAll(mux, 0, exp)
		for k, p := range powers {
			b.AttachAll(mux, wexp+k*width, p)
		}
		out := make(netlist.Signals, width)
		for i := range out {
			out[i] = b.Wire(mux, i)
		}
		r.finish(b, n, out)
	}
	return nil
}

// multiplyBy creates a MULTIPLY node of x and y truncated to width and
// returns its output pins
func (r *Resolver) multiplyBy(b *netlist.Builder, x, y netlist.Signals, width int) netlist.Signals {
	id := b.Make2Port(netlist.OpMultiply, len(x), len(y), width)
	b.AttachAll(id, 0, x)
	b.AttachAll(id, len(x), y)
	out := make(netlist.Signals, width)
	for i := range out {
		out[i] = b.Wire(id, i)
	}
	return out
}

// fold computes a constant power modulo 2^256
func fold(baseBits, expBits []bool) *uint256.Int {
	base, exp := new(uint256.Int), new(uint256.Int)
	for i, bit := range baseBits {
		if bit {
			netlist.SetValueBit(base, i)
		}
	}
	for i, bit := range expBits {
		if bit {
			netlist.SetValueBit(exp, i)
		}
	}
	return new(uint256.Int).Exp(base, exp)
}
