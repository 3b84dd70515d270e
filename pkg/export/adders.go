package export

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/fyerfyer/hdl-elab/pkg/netlist"
)

// AdderShape is the port widths of one hard adder model
type AdderShape struct {
	A, B, Cin, Sumout, Cout int
}

// AdderShapes returns the distinct port shapes of the hard adders of a
// netlist in first-use order
func AdderShapes(nl *netlist.Netlist) []AdderShape {
	seen := make(map[AdderShape]bool)
	var shapes []AdderShape
	for _, id := range nl.NodesOfKind(netlist.OpHardAdder) {
		n := nl.Node(id)
		var s AdderShape
		for _, p := range n.InputPorts {
			switch p.Name {
			case "a":
				s.A = p.Width
			case "b":
				s.B = p.Width
			case "cin":
				s.Cin = p.Width
			}
		}
		for _, p := range n.OutputPorts {
			switch p.Name {
			case "sumout":
				s.Sumout = p.Width
			case "cout":
				s.Cout = p.Width
			}
		}
		if !seen[s] {
			seen[s] = true
			shapes = append(shapes, s)
		}
	}
	return shapes
}

// WriteAdderModels writes a .blackbox model named adder for every distinct
// hard adder shape in the netlist. Nothing is written without hard adders.
func WriteAdderModels(w io.Writer, nl *netlist.Netlist) error {
	out := &lineWriter{w: bufio.NewWriter(w)}
	for _, s := range AdderShapes(nl) {
		out.line(".model adder")
		out.start(".inputs")
		for i := 0; i < s.A; i++ {
			out.item(fmt.Sprintf("a[%d]", i))
		}
		for i := 0; i < s.B; i++ {
			out.item(fmt.Sprintf("b[%d]", i))
		}
		for i := 0; i < s.Cin; i++ {
			out.item(fmt.Sprintf("cin[%d]", i))
		}
		out.end()
		out.start(".outputs")
		for i := 0; i < s.Cout; i++ {
			out.item(fmt.Sprintf("cout[%d]", i))
		}
		for i := 0; i < s.Sumout; i++ {
			out.item(fmt.Sprintf("sumout[%d]", i))
		}
		out.end()
		out.line(".blackbox")
		out.line(".end")
		out.line("")
	}
	return errors.Wrap(out.w.Flush(), "writing adder models")
}
