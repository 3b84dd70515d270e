package netlist

import (
	"github.com/holiman/uint256"
)

// Builder is the gate factory used while one node is being replaced. New
// nodes are named after the replaced node, inherit its provenance and carry
// the mark of the running sweep. The first failed mutation is remembered
// and every later call becomes a no-op, so a resolver checks Err once.
type Builder struct {
	nl      *Netlist
	parent  string
	loc     Loc
	mark    Mark
	err     error
	created []NodeID
}

// NewBuilder creates a gate factory for nodes replacing from
func (nl *Netlist) NewBuilder(from NodeID, mark Mark) *Builder {
	b := &Builder{nl: nl, mark: mark}
	if n := nl.Node(from); n != nil {
		b.parent = n.Name
		b.loc = n.Loc
	}
	return b
}

// Netlist returns the netlist being built
func (b *Builder) Netlist() *Netlist {
	return b.nl
}

// Err returns the first error met by the builder
func (b *Builder) Err() error {
	return b.err
}

// Fail records err unless an earlier error is already recorded
func (b *Builder) Fail(err error) {
	if b.err == nil && err != nil {
		b.err = err
	}
}

// Created returns the nodes made by this builder
func (b *Builder) Created() []NodeID {
	return b.created
}

// Node creates a node of any kind with the given ports
func (b *Builder) Node(kind Op, inputs, outputs []Port) NodeID {
	if b.err != nil {
		return NoNode
	}
	id := b.nl.AddNode(kind, b.nl.UniqueName(b.parent, kind), inputs, outputs)
	n := b.nl.nodes[id]
	n.Loc = b.loc
	n.Mark = b.mark
	b.created = append(b.created, id)
	return id
}

// ports builds single-width ports named after a kind
func ports(names []string, widths []int) []Port {
	ps := make([]Port, len(widths))
	for i, w := range widths {
		ps[i] = Port{Name: names[i], Width: w}
	}
	return ps
}

// MakeGate creates a node with len(widths) input ports and one output port
func (b *Builder) MakeGate(kind Op, outWidth int, widths ...int) NodeID {
	return b.Node(kind, ports(kind.PortNames(len(widths)), widths), ports(kind.OutputNames(1), []int{outWidth}))
}

// Make1Port creates a one-input-port gate
func (b *Builder) Make1Port(kind Op, width, outWidth int) NodeID {
	return b.MakeGate(kind, outWidth, width)
}

// Make2Port creates a two-input-port gate
func (b *Builder) Make2Port(kind Op, widthA, widthB, outWidth int) NodeID {
	return b.MakeGate(kind, outWidth, widthA, widthB)
}

// Make3Port creates a three-input-port gate
func (b *Builder) Make3Port(kind Op, widthA, widthB, widthC, outWidth int) NodeID {
	return b.MakeGate(kind, outWidth, widthA, widthB, widthC)
}

// Attach moves a floating pin into an input slot
func (b *Builder) Attach(id NodeID, slot int, pin PinID) {
	if b.err != nil {
		return
	}
	b.Fail(b.nl.AttachInput(id, slot, pin))
}

// AttachAll moves floating pins into consecutive input slots
func (b *Builder) AttachAll(id NodeID, offset int, pins Signals) {
	for i, pin := range pins {
		b.Attach(id, offset+i, pin)
	}
}

// Remap moves an attached pin into a slot of another node
func (b *Builder) Remap(pin PinID, id NodeID, slot int) {
	if b.err != nil {
		return
	}
	b.Fail(b.nl.Remap(pin, id, slot))
}

// Wire returns a floating fanout pin reading an output slot
func (b *Builder) Wire(id NodeID, slot int) PinID {
	if b.err != nil {
		return NoPin
	}
	pin, err := b.nl.Tap(id, slot)
	b.Fail(err)
	return pin
}

// Gate creates a single-output primitive with one 1-bit port per input and
// returns a fanout pin of its output
func (b *Builder) Gate(kind Op, inputs ...PinID) PinID {
	widths := make([]int, len(inputs))
	for i := range widths {
		widths[i] = 1
	}
	id := b.MakeGate(kind, 1, widths...)
	b.AttachAll(id, 0, inputs)
	return b.Wire(id, 0)
}

// Not creates an inverter
func (b *Builder) Not(a PinID) PinID { return b.Gate(OpNot, a) }

// Buf creates a buffer
func (b *Builder) Buf(a PinID) PinID { return b.Gate(OpBuf, a) }

// And creates a 2-input AND
func (b *Builder) And(x, y PinID) PinID { return b.Gate(OpAnd, x, y) }

// Or creates a 2-input OR
func (b *Builder) Or(x, y PinID) PinID { return b.Gate(OpOr, x, y) }

// Xor creates a 2-input XOR
func (b *Builder) Xor(x, y PinID) PinID { return b.Gate(OpXor, x, y) }

// Xnor creates a 2-input XNOR
func (b *Builder) Xnor(x, y PinID) PinID { return b.Gate(OpXnor, x, y) }

// Mux2 creates a 2-input multiplexer returning i1 when s is 1
func (b *Builder) Mux2(s, i0, i1 PinID) PinID { return b.Gate(OpMux2, s, i0, i1) }

// FullSub creates a full subtractor computing x - y - bin
func (b *Builder) FullSub(x, y, bin PinID) (diff, bout PinID) {
	id := b.Node(OpFullSub, ports(OpFullSub.PortNames(3), []int{1, 1, 1}), ports(OpFullSub.OutputNames(2), []int{1, 1}))
	b.AttachAll(id, 0, Signals{x, y, bin})
	return b.Wire(id, 0), b.Wire(id, 1)
}

// FlipFlop creates a primitive flip-flop with its data slot left empty, so
// feedback through its own output can be wired before the data path
func (b *Builder) FlipFlop(clk PinID, sens Sensitivity) NodeID {
	id := b.Make2Port(OpFF, 1, 1, 1)
	if id != NoNode {
		b.nl.nodes[id].Attr.ClkEdge = sens
	}
	b.Attach(id, 1, clk)
	return id
}

// FF creates a primitive flip-flop and returns a fanout pin of its output
func (b *Builder) FF(d, clk PinID, sens Sensitivity) PinID {
	id := b.FlipFlop(clk, sens)
	b.Attach(id, 0, d)
	return b.Wire(id, 0)
}

// Zero returns a new fanout pin on the logic-0 net
func (b *Builder) Zero() PinID {
	if b.err != nil {
		return NoPin
	}
	return b.nl.ZeroPin()
}

// One returns a new fanout pin on the logic-1 net
func (b *Builder) One() PinID {
	if b.err != nil {
		return NoPin
	}
	return b.nl.OnePin()
}

// Pad returns a new fanout pin on the don't-care net
func (b *Builder) Pad() PinID {
	if b.err != nil {
		return NoPin
	}
	return b.nl.PadPin()
}

// Constant returns a new fanout pin carrying v
func (b *Builder) Constant(v LogicValue) PinID {
	switch v {
	case Zero:
		return b.Zero()
	case One:
		return b.One()
	}
	return b.Pad()
}

// Value returns width constant pins spelling value, least significant first
func (b *Builder) Value(value *uint256.Int, width int) Signals {
	out := make(Signals, width)
	for i := range out {
		if ValueBit(value, i) {
			out[i] = b.One()
		} else {
			out[i] = b.Zero()
		}
	}
	return out
}

// Copy returns a new fanout pin reading the same net as pin
func (b *Builder) Copy(pin PinID) PinID {
	if b.err != nil {
		return NoPin
	}
	cp, err := b.nl.CopyPin(pin)
	b.Fail(err)
	return cp
}

// CopyAll copies every pin of a list
func (b *Builder) CopyAll(s Signals) Signals {
	out := make(Signals, len(s))
	for i, pin := range s {
		out[i] = b.Copy(pin)
	}
	return out
}

// Release frees a floating pin that is no longer needed
func (b *Builder) Release(pin PinID) {
	if b.err != nil {
		return
	}
	b.Fail(b.nl.Release(pin))
}

// ReleaseAll frees every pin of a list
func (b *Builder) ReleaseAll(s Signals) {
	for _, pin := range s {
		b.Release(pin)
	}
}

// Take detaches the pins of an input port from a node and returns them as
// floating signals; empty slots are a contract violation
func (b *Builder) Take(id NodeID, port int) Signals {
	if b.err != nil {
		return nil
	}
	n := b.nl.Node(id)
	if n == nil || port < 0 || port >= len(n.InputPorts) {
		b.Fail(b.nl.Contract(id, "no input port %d", port))
		return nil
	}
	pins := n.InputPins(port)
	for i, pin := range pins {
		if pin == NoPin {
			b.Fail(b.nl.Contract(id, "input %s[%d] is unconnected", n.InputPorts[port].Name, i))
			return nil
		}
		b.Fail(b.nl.Detach(pin))
	}
	return Signals(pins)
}

// TakeNamed detaches the pins of a named input port
func (b *Builder) TakeNamed(id NodeID, name string) Signals {
	n := b.nl.Node(id)
	if n == nil {
		b.Fail(b.nl.Contract(id, "node is gone"))
		return nil
	}
	port := n.InputPort(name)
	if port < 0 {
		b.Fail(b.nl.MissingPort(id, name))
		return nil
	}
	return b.Take(id, port)
}

// Drive makes a floating signal drive everything an output pin of the
// replaced node used to drive, then frees both pins. The original net is
// kept so outside references to it stay valid.
func (b *Builder) Drive(out, sig PinID) {
	if b.err != nil {
		return
	}
	b.Fail(b.drive(out, sig))
}

func (b *Builder) drive(out, sig PinID) error {
	nl := b.nl
	op, sp := nl.Pin(out), nl.Pin(sig)
	if op == nil || sp == nil {
		return contractf("drive with freed pin (#%d, #%d)", out, sig)
	}
	if op.Role != OutputPin || sp.Role != InputPin || !sp.Floating() {
		return ownershipf("drive wants an output pin and a floating signal (#%d, #%d)", out, sig)
	}
	origNet := op.Net
	if origNet != NoNet && origNet == sp.Net {
		n := nl.Node(op.Node)
		if n != nil {
			return nl.NodeError(n.ID, ErrCombinationalLoop)
		}
		return ErrCombinationalLoop
	}

	// Free the replaced output pin
	if !op.Floating() {
		if err := nl.Detach(out); err != nil {
			return err
		}
	}
	if origNet != NoNet {
		if err := nl.Unhook(out); err != nil {
			return err
		}
	}
	nl.pins[out] = nil

	sigNet := sp.Net
	if err := nl.Unhook(sig); err != nil {
		return err
	}
	nl.pins[sig] = nil

	if origNet == NoNet {
		// Nothing read the output
		nl.freeNetIfEmpty(sigNet)
		return nil
	}

	// A private wire is merged into the original net; a shared or
	// constant net is buffered onto it
	if b.private(sigNet) {
		return nl.Join(origNet, sigNet)
	}
	buf := b.Make1Port(OpBuf, 1, 1)
	in := nl.NewPin(InputPin)
	nl.mustNot(nl.AttachInput(buf, 0, in))
	nl.mustNot(nl.AddFanout(sigNet, in))
	drv := nl.NewPin(OutputPin)
	nl.mustNot(nl.AttachOutput(buf, 0, drv))
	return nl.SetDriver(origNet, drv)
}

// private returns true if a net has no readers left and is driven by a
// node this builder made
func (b *Builder) private(id NetID) bool {
	net := b.nl.Net(id)
	if net == nil || b.nl.IsConstantNet(id) || len(net.Fanouts) != 0 || net.Driver == NoPin {
		return false
	}
	driver := b.nl.pins[net.Driver].Node
	for _, c := range b.created {
		if c == driver {
			return true
		}
	}
	return false
}

// DriveAll drives the output pins with the signals. Extra signals are
// released; outputs without a signal are driven by fill. It returns the
// number of filled outputs.
func (b *Builder) DriveAll(outs []PinID, sigs Signals, fill LogicValue) int {
	filled := 0
	for i, out := range outs {
		if out == NoPin {
			if i < len(sigs) {
				b.Release(sigs[i])
			}
			continue
		}
		if i < len(sigs) {
			b.Drive(out, sigs[i])
			continue
		}
		b.Drive(out, b.Constant(fill))
		filled++
	}
	for i := len(outs); i < len(sigs); i++ {
		b.Release(sigs[i])
	}
	return filled
}

// Outputs returns the output slots of a node port
func (b *Builder) Outputs(id NodeID, port int) []PinID {
	n := b.nl.Node(id)
	if n == nil || port < 0 || port >= len(n.OutputPorts) {
		b.Fail(b.nl.Contract(id, "no output port %d", port))
		return nil
	}
	return n.OutputPins(port)
}

// AllOutputs returns every output slot of a node
func (b *Builder) AllOutputs(id NodeID) []PinID {
	n := b.nl.Node(id)
	if n == nil {
		b.Fail(b.nl.Contract(id, "node is gone"))
		return nil
	}
	return append([]PinID(nil), n.Outputs...)
}

// Free destroys the replaced node and anything its slots still hold
func (b *Builder) Free(id NodeID) {
	if b.err != nil {
		return
	}
	b.Fail(b.nl.FreeNode(id))
}
