// Package sim is a three-valued event-free simulator for netlists, used to
// check that lowered networks behave like the operators they replace.
package sim

import (
	"github.com/pkg/errors"

	"github.com/fyerfyer/hdl-elab/pkg/netlist"
	"github.com/fyerfyer/hdl-elab/pkg/utils"
)

// ErrUnstable reports a netlist that never settles, such as a ring oscillator
var ErrUnstable = errors.New("netlist did not settle")

// Simulator evaluates a netlist to a fixed point after every stimulus
type Simulator struct {
	Netlist       *netlist.Netlist
	Logger        *utils.Logger
	MaxIterations int

	values map[netlist.NetID]netlist.LogicValue
	order  []netlist.NodeID // Combinational nodes, topologically sorted
	seq    []netlist.NodeID // Flip-flops and memories
	state  map[netlist.NodeID]*seqState
}

// New prepares a simulator; the netlist must not change afterwards
func New(nl *netlist.Netlist, logger *utils.Logger) (*Simulator, error) {
	if logger == nil {
		logger = utils.DefaultLogger
	}
	topo := netlist.NewTopology(nl)
	if err := topo.ComputeLevels(); err != nil {
		return nil, errors.Wrap(err, "levelizing netlist for simulation")
	}

	s := &Simulator{
		Netlist:       nl,
		Logger:        logger,
		MaxIterations: 256,
		values:        make(map[netlist.NetID]netlist.LogicValue),
		order:         topo.Order,
		state:         make(map[netlist.NodeID]*seqState),
	}

	for _, id := range nl.Nodes() {
		n := nl.Node(id)
		if err := checkSupported(n); err != nil {
			return nil, nl.NodeError(id, err)
		}
		if n.Kind.IsSequential() {
			s.seq = append(s.seq, id)
			s.state[id] = newSeqState(n)
		}
	}
	for _, id := range nl.Nets() {
		if v, ok := nl.NetValue(id); ok {
			s.values[id] = v
		}
	}

	// Registers power up at zero
	for _, id := range s.seq {
		s.driveState(id)
	}
	return s, nil
}

// Get returns the value of a net
func (s *Simulator) Get(net netlist.NetID) netlist.LogicValue {
	if v, ok := s.values[net]; ok {
		return v
	}
	return netlist.X
}

// Set forces the value of a net, normally a primary input
func (s *Simulator) Set(net netlist.NetID, v netlist.LogicValue) {
	s.values[net] = v
}

// SetBus drives a bus with an unsigned value, least significant net first
func (s *Simulator) SetBus(nets []netlist.NetID, value uint64) {
	for i, net := range nets {
		s.Set(net, netlist.FromBool(i < 64 && value>>uint(i)&1 == 1))
	}
}

// Bus reads a bus as an unsigned value; ok is false if any bit is X
func (s *Simulator) Bus(nets []netlist.NetID) (value uint64, ok bool) {
	for i, net := range nets {
		switch s.Get(net) {
		case netlist.One:
			if i < 64 {
				value |= 1 << uint(i)
			}
		case netlist.X:
			return 0, false
		}
	}
	return value, true
}

// SetInput drives a named primary input
func (s *Simulator) SetInput(name string, value uint64) error {
	nets, ok := s.Netlist.PrimaryInput(name)
	if !ok {
		return errors.Errorf("no primary input %q", name)
	}
	s.SetBus(nets, value)
	return nil
}

// Output reads a named primary output
func (s *Simulator) Output(name string) (uint64, bool, error) {
	nets, ok := s.Netlist.PrimaryOutput(name)
	if !ok {
		return 0, false, errors.Errorf("no primary output %q", name)
	}
	v, known := s.Bus(nets)
	return v, known, nil
}

// Settle evaluates the netlist until no net changes. Edge-triggered
// elements sample their inputs together and then update together.
func (s *Simulator) Settle() error {
	for i := 0; i < s.MaxIterations; i++ {
		changed := s.evaluateCombinational()
		if s.evaluateSequential() {
			changed = true
		}
		if !changed {
			return nil
		}
	}
	return errors.Wrapf(ErrUnstable, "after %d iterations", s.MaxIterations)
}

// Clock applies a full low-high cycle on a named input
func (s *Simulator) Clock(name string) error {
	if err := s.SetInput(name, 0); err != nil {
		return err
	}
	if err := s.Settle(); err != nil {
		return err
	}
	if err := s.SetInput(name, 1); err != nil {
		return err
	}
	return s.Settle()
}

// evaluateCombinational runs one pass over the combinational nodes in
// topological order
func (s *Simulator) evaluateCombinational() bool {
	changed := false
	for _, id := range s.order {
		n := s.Netlist.Node(id)
		if len(n.Outputs) == 0 {
			continue
		}
		outs := s.evaluate(n)
		for slot, v := range outs {
			net := s.Netlist.OutputNet(id, slot)
			if net == netlist.NoNet {
				continue
			}
			if s.Get(net) != v {
				s.values[net] = v
				changed = true
			}
		}
	}
	return changed
}

// input returns the value read by an input slot
func (s *Simulator) input(n *netlist.Node, slot int) netlist.LogicValue {
	return s.Get(s.Netlist.InputNet(n.ID, slot))
}

// inputs returns the values read by every input slot
func (s *Simulator) inputs(n *netlist.Node) []netlist.LogicValue {
	vals := make([]netlist.LogicValue, len(n.Inputs))
	for i := range vals {
		vals[i] = s.input(n, i)
	}
	return vals
}

// evaluate computes the output values of a combinational node
func (s *Simulator) evaluate(n *netlist.Node) []netlist.LogicValue {
	if n.Kind.IsPrimitive() {
		return s.evaluatePrimitive(n)
	}
	return s.evaluateBehavior(n)
}
