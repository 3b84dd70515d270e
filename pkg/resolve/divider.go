package resolve

import (
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
)

// lowerDivider builds a restoring cellular-array divider for DIVIDE and
// MODULO. The array is n = max(divisor, dividend) bits wide and the
// dividend is zero-padded to 2n-1 bits, so every quotient bit fits.
//
// Row 0 holds n cells, later rows n+1. A cell subtracts the divisor bit
// from its window bit with a full subtractor and selects the difference
// when the row quotient bit is set. The row quotient bit is the inverted
// borrow out of the leftmost cell.
func (r *Resolver) lowerDivider(b *netlist.Builder, n *netlist.Node) error {
	if len(n.InputPorts) != 2 {
		return r.Netlist.Contract(n.ID, "%s wants a dividend and a divisor, got %d ports", n.Kind, len(n.InputPorts))
	}
	wa, wb := n.InputPorts[0].Width, n.InputPorts[1].Width
	size := wa
	if wb > size {
		size = wb
	}
	dividend := extend(b, b.Take(n.ID, 0), 2*size-1, false)
	divisor := extend(b, b.Take(n.ID, 1), size, false)

	// The first window is the top n dividend bits
	window := append(netlist.Signals(nil), dividend[size-1:]...)
	quotient := make(netlist.Signals, size)

	for row := 0; row < size; row++ {
		cells := len(window)
		y := b.CopyAll(divisor)
		for len(y) < cells {
			y = append(y, b.Zero())
		}

		diff := make(netlist.Signals, cells)
		borrow := b.Zero()
		for j := 0; j < cells; j++ {
			diff[j], borrow = b.FullSub(b.Copy(window[j]), y[j], borrow)
		}
		q := b.Not(borrow)

		// Only the low n selected bits can be non-zero: the remainder is
		// smaller than the divisor
		selected := make(netlist.Signals, size)
		qs := fanout(b, b.Copy(q), size)
		for j := range selected {
			selected[j] = b.Mux2(qs[j], window[j], diff[j])
		}
		for j := size; j < cells; j++ {
			b.Release(window[j])
			b.Release(diff[j])
		}
		quotient[size-1-row] = q

		if row < size-1 {
			window = append(netlist.Signals{dividend[size-2-row]}, selected...)
		} else {
			window = selected
		}
	}
	b.ReleaseAll(divisor)

	if n.Kind == netlist.OpModulo {
		b.ReleaseAll(quotient)
		r.finish(b, n, window)
		return nil
	}
	b.ReleaseAll(window)
	r.finish(b, n, quotient)
	return nil
}
