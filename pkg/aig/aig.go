// Package aig translates elaborated netlists into and-inverter graphs.
// Primitive flip-flops become latches that power up at zero. A time step
// is one clock edge: a latch loads D in steps where its clock reads its
// active level and holds otherwise.
package aig

import (
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
	"github.com/pkg/errors"

	"github.com/fyerfyer/hdl-elab/pkg/netlist"
	"github.com/fyerfyer/hdl-elab/pkg/utils"
)

// ErrUnsupported reports a node the graph has no model for
var ErrUnsupported = errors.New("no and-inverter model")

// Signal is a named bus of literals
type Signal struct {
	Name string
	Lits []z.Lit
}

// Circuit holds one or more netlists in a single sequential system.
// Netlists added to the same circuit share primary inputs by name.
type Circuit struct {
	S          *logic.S
	Inputs     []Signal
	Outputs    []Signal
	LatchNames []string // Name of each latch, parallel to S.Latches
	Logger     *utils.Logger

	inputs map[string]int
}

// New creates an empty circuit
func New(logger *utils.Logger) *Circuit {
	if logger == nil {
		logger = utils.DefaultLogger
	}
	return &Circuit{S: logic.NewS(), Logger: logger, inputs: make(map[string]int)}
}

// Build translates a single netlist; its outputs become the circuit outputs
func Build(nl *netlist.Netlist, logger *utils.Logger) (*Circuit, error) {
	c := New(logger)
	outs, err := c.Add(nl)
	if err != nil {
		return nil, err
	}
	c.Outputs = outs
	return c, nil
}

// Latches returns the latch literals of the system in creation order
func (c *Circuit) Latches() []z.Lit {
	return c.S.Latches
}

// translation is the state of adding one netlist
type translation struct {
	c       *Circuit
	nl      *netlist.Netlist
	nets    map[netlist.NetID]z.Lit
	nodes   map[netlist.NodeID][]z.Lit
	latches map[netlist.NodeID]z.Lit
	active  map[netlist.NodeID]bool
}

// Add translates a netlist into the circuit and returns its primary
// outputs. Primary inputs already known by name are reused.
func (c *Circuit) Add(nl *netlist.Netlist) ([]Signal, error) {
	t := &translation{
		c:       c,
		nl:      nl,
		nets:    make(map[netlist.NetID]z.Lit),
		nodes:   make(map[netlist.NodeID][]z.Lit),
		latches: make(map[netlist.NodeID]z.Lit),
		active:  make(map[netlist.NodeID]bool),
	}

	for _, id := range nl.Inputs {
		n := nl.Node(id)
		lits, err := c.input(n.Name, len(n.Outputs))
		if err != nil {
			return nil, err
		}
		for slot, lit := range lits {
			if net := nl.OutputNet(id, slot); net != netlist.NoNet {
				t.nets[net] = lit
			}
		}
	}

	// Latches exist before any logic so feedback paths can read them
	ffs := nl.NodesOfKind(netlist.OpFF)
	for _, id := range ffs {
		n := nl.Node(id)
		if edge := netlist.Edge(n.Attr.ClkEdge); !edge.IsEdge() {
			return nil, nl.NodeError(id, errors.Wrap(ErrUnsupported, "level-sensitive flip-flop"))
		}
		t.latches[id] = c.S.Latch(c.S.F)
		name := n.Name
		if net := nl.OutputNet(id, 0); net != netlist.NoNet {
			name = nl.Net(net).Name
		}
		c.LatchNames = append(c.LatchNames, name)
	}
	for _, id := range ffs {
		n := nl.Node(id)
		d, err := t.input(n, 0)
		if err != nil {
			return nil, err
		}
		clk, err := t.input(n, 1)
		if err != nil {
			return nil, err
		}
		if netlist.Edge(n.Attr.ClkEdge) == netlist.FallingEdge {
			clk = clk.Not()
		}
		latch := t.latches[id]
		c.S.SetNext(latch, c.S.Choice(clk, d, latch))
	}

	var outs []Signal
	for _, id := range nl.Outputs {
		n := nl.Node(id)
		sig := Signal{Name: n.Name, Lits: make([]z.Lit, len(n.Inputs))}
		for slot := range n.Inputs {
			lit, err := t.input(n, slot)
			if err != nil {
				return nil, err
			}
			sig.Lits[slot] = lit
		}
		outs = append(outs, sig)
	}
	c.Logger.Debug("Translated %s: %d inputs, %d latches, %d outputs", nl.Name, len(c.Inputs), len(ffs), len(outs))
	return outs, nil
}

// input returns the literals of a named primary input, creating them the
// first time the name is seen
func (c *Circuit) input(name string, width int) ([]z.Lit, error) {
	if i, ok := c.inputs[name]; ok {
		if w := len(c.Inputs[i].Lits); w != width {
			return nil, errors.Errorf("input %s is %d bits here and %d bits elsewhere", name, width, w)
		}
		return c.Inputs[i].Lits, nil
	}
	lits := make([]z.Lit, width)
	for i := range lits {
		lits[i] = c.S.Lit()
	}
	c.inputs[name] = len(c.Inputs)
	c.Inputs = append(c.Inputs, Signal{Name: name, Lits: lits})
	return lits, nil
}

// input returns the literal read by an input slot of a node
func (t *translation) input(n *netlist.Node, slot int) (z.Lit, error) {
	net := t.nl.InputNet(n.ID, slot)
	if net == netlist.NoNet {
		return z.LitNull, t.nl.NodeError(n.ID, errors.Wrapf(netlist.ErrContract, "input slot %d is not connected", slot))
	}
	return t.net(net)
}

// net returns the literal of a net, translating its driver on first use
func (t *translation) net(id netlist.NetID) (z.Lit, error) {
	if lit, ok := t.nets[id]; ok {
		return lit, nil
	}
	driver := t.nl.DriverNode(id)
	if driver == netlist.NoNode {
		return z.LitNull, errors.Wrapf(netlist.ErrContract, "net %s has no driver", t.nl.Net(id).Name)
	}
	outs, err := t.node(driver)
	if err != nil {
		return z.LitNull, err
	}
	n := t.nl.Node(driver)
	for slot := range n.Outputs {
		if net := t.nl.OutputNet(driver, slot); net != netlist.NoNet && slot < len(outs) {
			t.nets[net] = outs[slot]
		}
	}
	lit, ok := t.nets[id]
	if !ok {
		return z.LitNull, errors.Wrapf(netlist.ErrContract, "net %s is not driven by %s", t.nl.Net(id).Name, n.Name)
	}
	return lit, nil
}

// node translates one node and returns a literal per output slot
func (t *translation) node(id netlist.NodeID) ([]z.Lit, error) {
	if outs, ok := t.nodes[id]; ok {
		return outs, nil
	}
	if latch, ok := t.latches[id]; ok {
		return []z.Lit{latch}, nil
	}
	if t.active[id] {
		return nil, t.nl.NodeError(id, netlist.ErrCombinationalLoop)
	}
	t.active[id] = true
	defer delete(t.active, id)

	n := t.nl.Node(id)
	s := t.c.S
	switch n.Kind {
	case netlist.OpGnd, netlist.OpPad:
		return t.done(id, s.F), nil
	case netlist.OpVcc:
		return t.done(id, s.T), nil
	}

	in := make([]z.Lit, len(n.Inputs))
	for slot := range in {
		lit, err := t.input(n, slot)
		if err != nil {
			return nil, err
		}
		in[slot] = lit
	}

	switch n.Kind {
	case netlist.OpBuf:
		return t.done(id, in[0]), nil
	case netlist.OpNot:
		return t.done(id, in[0].Not()), nil
	case netlist.OpAnd:
		return t.done(id, s.Ands(in...)), nil
	case netlist.OpNand:
		return t.done(id, s.Ands(in...).Not()), nil
	case netlist.OpOr:
		return t.done(id, s.Ors(in...)), nil
	case netlist.OpNor:
		return t.done(id, s.Ors(in...).Not()), nil
	case netlist.OpXor, netlist.OpAdderFunc:
		return t.done(id, xors(s, in)), nil
	case netlist.OpXnor:
		return t.done(id, xors(s, in).Not()), nil
	case netlist.OpMux2:
		return t.done(id, s.Choice(in[0], in[2], in[1])), nil
	case netlist.OpCarryFunc:
		return t.done(id, majority(s, in[0], in[1], in[2])), nil
	case netlist.OpFullSub:
		x, y, bin := in[0], in[1], in[2]
		return t.done(id, s.Xor(s.Xor(x, y), bin), majority(s, x.Not(), y, bin)), nil
	case netlist.OpHardAdder:
		return t.done(id, hardAdder(s, n, in)...), nil
	}
	return nil, t.nl.NodeError(id, errors.Wrap(ErrUnsupported, n.Kind.String()))
}

func (t *translation) done(id netlist.NodeID, outs ...z.Lit) []z.Lit {
	t.nodes[id] = outs
	return outs
}

func xors(s *logic.S, in []z.Lit) z.Lit {
	acc := s.F
	for _, m := range in {
		acc = s.Xor(acc, m)
	}
	return acc
}

func majority(s *logic.S, a, b, c z.Lit) z.Lit {
	return s.Ors(s.And(a, b), s.And(a, c), s.And(b, c))
}

// hardAdder ripples a, b and cin of a hard adder block into sumout and cout
func hardAdder(s *logic.S, n *netlist.Node, in []z.Lit) []z.Lit {
	width := n.InputPorts[n.InputPort("a")].Width
	a := in[n.InputOffset(n.InputPort("a")):][:width]
	b := in[n.InputOffset(n.InputPort("b")):][:width]
	carry := in[n.InputOffset(n.InputPort("cin"))]

	outs := make([]z.Lit, len(n.Outputs))
	for i := 0; i < width; i++ {
		outs[i] = s.Xor(s.Xor(a[i], b[i]), carry)
		carry = majority(s, a[i], b[i], carry)
	}
	for i := width; i < len(outs); i++ {
		outs[i] = carry
	}
	return outs
}
