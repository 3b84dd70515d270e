// Package export writes elaborated netlists for downstream tools: BLIF for
// packing and placement flows, AIGER for model checkers, and the blackbox
// models of the hard blocks the BLIF instantiates.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/fyerfyer/hdl-elab/pkg/netlist"
	"github.com/fyerfyer/hdl-elab/pkg/utils"
)

// LineWidth is the column at which long BLIF lines are continued
const LineWidth = 78

// ErrNotLowered reports a node with no BLIF primitive or hard block model
var ErrNotLowered = errors.New("node has no BLIF model")

// lineWriter writes BLIF statements, continuing lines past LineWidth
type lineWriter struct {
	w   *bufio.Writer
	col int
}

func (l *lineWriter) start(keyword string) {
	l.w.WriteString(keyword)
	l.col = len(keyword)
}

func (l *lineWriter) item(s string) {
	if l.col > 0 && l.col+1+len(s)+2 > LineWidth {
		l.w.WriteString(" \\\n")
		l.col = 0
	}
	l.w.WriteString(" ")
	l.w.WriteString(s)
	l.col += 1 + len(s)
}

func (l *lineWriter) end() {
	l.w.WriteString("\n")
	l.col = 0
}

func (l *lineWriter) line(format string, args ...interface{}) {
	fmt.Fprintf(l.w, format, args...)
	l.w.WriteString("\n")
	l.col = 0
}

// bitName names one bit of a bus the way nets are named
func bitName(name string, bit, width int) string {
	if width == 1 {
		return name
	}
	return fmt.Sprintf("%s[%d]", name, bit)
}

// BLIFWriter writes a lowered netlist as a BLIF model
type BLIFWriter struct {
	Logger *utils.Logger

	nl    *netlist.Netlist
	names map[netlist.NetID]string
	used  map[string]bool
	outs  []outputBit
}

// outputBit is one bit of a primary output
type outputBit struct {
	name string
	net  netlist.NetID
}

// NewBLIFWriter creates a BLIF writer
func NewBLIFWriter(logger *utils.Logger) *BLIFWriter {
	if logger == nil {
		logger = utils.DefaultLogger
	}
	return &BLIFWriter{Logger: logger}
}

// WriteBLIF writes a netlist as BLIF with the default logger
func WriteBLIF(w io.Writer, nl *netlist.Netlist) error {
	return NewBLIFWriter(nil).Write(w, nl)
}

// Write writes the model. Primitive gates become .names covers, FF nodes
// become .latch lines and hard blocks become .subckt instances. Any other
// node is reported as ErrNotLowered before anything is written.
func (bw *BLIFWriter) Write(w io.Writer, nl *netlist.Netlist) error {
	for _, id := range nl.Nodes() {
		n := nl.Node(id)
		if n.Kind.IsPrimitive() || n.Kind == netlist.OpInput || n.Kind == netlist.OpOutput ||
			n.Kind.IsConstant() || n.Kind.IsHardBlock() || n.Kind == netlist.OpMultiply {
			continue
		}
		return nl.NodeError(id, ErrNotLowered)
	}

	bw.nl = nl
	bw.assignNames()
	out := &lineWriter{w: bufio.NewWriter(w)}

	out.line("# Generated by hdl-elab")
	out.line(".model %s", nl.Name)
	out.start(".inputs")
	for _, id := range nl.Inputs {
		for slot := range nl.Node(id).Outputs {
			if net := nl.OutputNet(id, slot); net != netlist.NoNet {
				out.item(bw.names[net])
			}
		}
	}
	out.end()
	out.start(".outputs")
	for _, o := range bw.outs {
		out.item(o.name)
	}
	out.end()
	out.line("")

	gates, latches, blocks := 0, 0, 0
	for _, id := range nl.Nodes() {
		n := nl.Node(id)
		switch {
		case n.Kind == netlist.OpInput || n.Kind == netlist.OpOutput:
		case n.Kind.IsConstant():
			bw.writeConstant(out, n)
		case n.Kind == netlist.OpFF:
			bw.writeLatch(out, n)
			latches++
		case n.Kind.IsPrimitive():
			bw.writeGate(out, n)
			gates++
		default:
			bw.writeSubckt(out, n)
			blocks++
		}
	}

	// Outputs whose name differs from the net they read get a buffer
	for _, o := range bw.outs {
		if bw.names[o.net] != o.name {
			out.line(".names %s %s", bw.names[o.net], o.name)
			out.line("1 1")
		}
	}
	out.line(".end")
	bw.Logger.Debug("Wrote BLIF model %s: %d gates, %d latches, %d blocks", nl.Name, gates, latches, blocks)
	return errors.Wrap(out.w.Flush(), "writing BLIF")
}

// assignNames gives every net a unique BLIF name. Primary input nets and
// output names are claimed first so they appear unchanged.
func (bw *BLIFWriter) assignNames() {
	nl := bw.nl
	bw.names = make(map[netlist.NetID]string)
	bw.used = make(map[string]bool)
	bw.outs = nil

	for _, id := range nl.Inputs {
		for slot := range nl.Node(id).Outputs {
			if net := nl.OutputNet(id, slot); net != netlist.NoNet {
				bw.claim(net, nl.Net(net).Name)
			}
		}
	}
	for _, id := range nl.Outputs {
		n := nl.Node(id)
		for slot := range n.Inputs {
			o := outputBit{name: bitName(n.Name, slot, len(n.Inputs)), net: nl.InputNet(id, slot)}
			if o.net == netlist.NoNet {
				o.net = nl.ConstantNet(netlist.X)
			}
			if _, named := bw.names[o.net]; !named && !bw.used[o.name] && nl.Net(o.net).Name == o.name {
				bw.claim(o.net, o.name)
			}
			bw.used[o.name] = true
			bw.outs = append(bw.outs, o)
		}
	}
	for _, net := range nl.Nets() {
		if _, named := bw.names[net]; !named {
			bw.claim(net, nl.Net(net).Name)
		}
	}
}

func (bw *BLIFWriter) claim(net netlist.NetID, name string) {
	name = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '#' || r == '=' || r == '\\' {
			return '_'
		}
		return r
	}, name)
	unique := name
	for i := 1; bw.used[unique]; i++ {
		unique = fmt.Sprintf("%s~%d", name, i)
	}
	bw.used[unique] = true
	bw.names[net] = unique
}

func (bw *BLIFWriter) inputName(n *netlist.Node, slot int) string {
	if net := bw.nl.InputNet(n.ID, slot); net != netlist.NoNet {
		return bw.names[net]
	}
	return bw.names[bw.nl.ConstantNet(netlist.X)]
}

// writeConstant writes the cover of a constant net; pad reads as zero
func (bw *BLIFWriter) writeConstant(out *lineWriter, n *netlist.Node) {
	net := bw.nl.OutputNet(n.ID, 0)
	if net == netlist.NoNet {
		return
	}
	out.line(".names %s", bw.names[net])
	if n.Kind == netlist.OpVcc {
		out.line("1")
	}
}

// writeLatch writes a flip-flop; every register powers up at zero
func (bw *BLIFWriter) writeLatch(out *lineWriter, n *netlist.Node) {
	q := bw.nl.OutputNet(n.ID, 0)
	if q == netlist.NoNet {
		return
	}
	var kind string
	switch netlist.Edge(n.Attr.ClkEdge) {
	case netlist.FallingEdge:
		kind = "fe"
	case netlist.ActiveHigh:
		kind = "ah"
	case netlist.ActiveLow:
		kind = "al"
	default:
		kind = "re"
	}
	out.line(".latch %s %s %s %s 0", bw.inputName(n, 0), bw.names[q], kind, bw.inputName(n, 1))
}

// writeGate writes the single-output cover of a primitive gate. FULLSUB
// gets one cover per output.
func (bw *BLIFWriter) writeGate(out *lineWriter, n *netlist.Node) {
	inputs := make([]string, len(n.Inputs))
	for slot := range inputs {
		inputs[slot] = bw.inputName(n, slot)
	}
	for slot := range n.Outputs {
		net := bw.nl.OutputNet(n.ID, slot)
		if net == netlist.NoNet {
			continue
		}
		out.start(".names")
		for _, in := range inputs {
			out.item(in)
		}
		out.item(bw.names[net])
		out.end()
		for _, row := range cover(n.Kind, slot, len(inputs)) {
			out.line("%s 1", row)
		}
	}
}

// cover returns the on-set rows of a primitive output
func cover(kind netlist.Op, slot, width int) []string {
	fill := func(c byte) []byte {
		row := make([]byte, width)
		for i := range row {
			row[i] = c
		}
		return row
	}
	oneHot := func(c byte) []string {
		rows := make([]string, width)
		for i := range rows {
			row := fill('-')
			row[i] = c
			rows[i] = string(row)
		}
		return rows
	}
	parity := func(odd bool) []string {
		var rows []string
		for m := 0; m < 1<<uint(width); m++ {
			row := fill('0')
			ones := 0
			for i := range row {
				if m>>uint(i)&1 == 1 {
					row[i] = '1'
					ones++
				}
			}
			if (ones%2 == 1) == odd {
				rows = append(rows, string(row))
			}
		}
		return rows
	}

	switch kind {
	case netlist.OpBuf:
		return []string{"1"}
	case netlist.OpNot:
		return []string{"0"}
	case netlist.OpAnd:
		return []string{string(fill('1'))}
	case netlist.OpNand:
		return oneHot('0')
	case netlist.OpOr:
		return oneHot('1')
	case netlist.OpNor:
		return []string{string(fill('0'))}
	case netlist.OpXor, netlist.OpAdderFunc:
		return parity(true)
	case netlist.OpXnor:
		return parity(false)
	case netlist.OpMux2:
		return []string{"01-", "1-1"}
	case netlist.OpCarryFunc:
		return []string{"11-", "1-1", "-11"}
	case netlist.OpFullSub:
		if slot == 0 {
			return parity(true)
		}
		return []string{"01-", "0-1", "-11"}
	}
	return nil
}

// subcktModel returns the model name a hard block instantiates
func subcktModel(n *netlist.Node) string {
	switch {
	case n.Kind == netlist.OpHardAdder:
		return "adder"
	case n.Kind == netlist.OpMultiply:
		return "multiply"
	case n.InputPort("addr1") >= 0:
		return "dual_port_ram"
	default:
		return "single_port_ram"
	}
}

// writeSubckt writes a hard block instance with formal=actual bindings
func (bw *BLIFWriter) writeSubckt(out *lineWriter, n *netlist.Node) {
	out.start(".subckt " + subcktModel(n))
	for i, p := range n.InputPorts {
		off := n.InputOffset(i)
		for bit := 0; bit < p.Width; bit++ {
			out.item(formal(n.Kind, p, bit) + "=" + bw.inputName(n, off+bit))
		}
	}
	for i, p := range n.OutputPorts {
		off := n.OutputOffset(i)
		for bit := 0; bit < p.Width; bit++ {
			if net := bw.nl.OutputNet(n.ID, off+bit); net != netlist.NoNet {
				out.item(formal(n.Kind, p, bit) + "=" + bw.names[net])
			}
		}
	}
	out.end()
}

// formal names one pin of a block port. Adder pins are always indexed;
// memory and multiplier pins are indexed only on multi-bit ports.
func formal(kind netlist.Op, p netlist.Port, bit int) string {
	name := strings.ToLower(p.Name)
	if kind == netlist.OpHardAdder {
		return fmt.Sprintf("%s[%d]", name, bit)
	}
	return bitName(name, bit, p.Width)
}
