package sim

import (
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
)

// seqState is the stored state of a flip-flop or a memory
type seqState struct {
	clk netlist.LogicValue   // Clock value seen at the previous evaluation
	q   []netlist.LogicValue // Output register
	mem map[uint64]uint64    // Memory contents, absent words read as zero
}

func newSeqState(n *netlist.Node) *seqState {
	st := &seqState{clk: netlist.X, q: make([]netlist.LogicValue, len(n.Outputs))}
	for i := range st.q {
		st.q[i] = netlist.Zero
	}
	if n.Kind == netlist.OpMemory {
		st.mem = make(map[uint64]uint64)
	}
	return st
}

// driveState copies the output register of a sequential node onto its nets
func (s *Simulator) driveState(id netlist.NodeID) bool {
	changed := false
	for slot, v := range s.state[id].q {
		net := s.Netlist.OutputNet(id, slot)
		if net == netlist.NoNet {
			continue
		}
		if s.Get(net) != v {
			s.values[net] = v
			changed = true
		}
	}
	return changed
}

// clockInput returns the slot of the clock of a sequential node
func clockInput(n *netlist.Node) int {
	if n.Kind == netlist.OpMemory {
		return n.InputOffset(n.InputPort("clk"))
	}
	return 1
}

// fired reports whether an edge-triggered node sees its active edge
func fired(edge netlist.Sensitivity, prev, cur netlist.LogicValue) bool {
	if edge == netlist.FallingEdge {
		return prev == netlist.One && cur == netlist.Zero
	}
	return prev == netlist.Zero && cur == netlist.One
}

// evaluateSequential samples every element whose clock fired, then updates
// all of them together. Level-sensitive flip-flops follow D while enabled.
func (s *Simulator) evaluateSequential() bool {
	type update struct {
		id netlist.NodeID
		q  []netlist.LogicValue
	}
	var updates []update
	var writes []netlist.NodeID

	for _, id := range s.seq {
		n := s.Netlist.Node(id)
		st := s.state[id]
		clk := s.input(n, clockInput(n))
		prev := st.clk
		st.clk = clk

		if n.Kind == netlist.OpMemory {
			if fired(netlist.RisingEdge, prev, clk) {
				updates = append(updates, update{id, s.readMemory(n, st)})
				writes = append(writes, id)
			}
			continue
		}

		edge := netlist.Edge(n.Attr.ClkEdge)
		switch {
		case edge.IsEdge():
			if fired(edge, prev, clk) {
				updates = append(updates, update{id, []netlist.LogicValue{s.input(n, 0)}})
			}
		case (edge == netlist.ActiveHigh && clk == netlist.One) || (edge == netlist.ActiveLow && clk == netlist.Zero):
			updates = append(updates, update{id, []netlist.LogicValue{s.input(n, 0)}})
		}
	}

	for _, id := range writes {
		s.writeMemory(s.Netlist.Node(id), s.state[id])
	}
	changed := false
	for _, u := range updates {
		copy(s.state[u.id].q, u.q)
		if s.driveState(u.id) {
			changed = true
		}
	}
	return changed
}

// memoryPorts returns the address, data and write-enable port names of each
// memory port
func memoryPorts(n *netlist.Node) [][3]string {
	if n.InputPort("addr1") >= 0 {
		return [][3]string{{"addr1", "data1", "we1"}, {"addr2", "data2", "we2"}}
	}
	return [][3]string{{"addr", "data", "we"}}
}

// readMemory returns the words addressed before the edge
func (s *Simulator) readMemory(n *netlist.Node, st *seqState) []netlist.LogicValue {
	var out []netlist.LogicValue
	ports := memoryPorts(n)
	width := len(n.Outputs) / len(ports)
	for _, p := range ports {
		addr, ok := s.namedPort(n, p[0])
		out = append(out, spell(st.mem[addr], width, ok)...)
	}
	return out
}

// writeMemory stores data on every port whose write enable is high; a word
// written through an unknown address is lost
func (s *Simulator) writeMemory(n *netlist.Node, st *seqState) {
	for _, p := range memoryPorts(n) {
		we, ok := s.namedPort(n, p[2])
		if !ok || we == 0 {
			continue
		}
		addr, aok := s.namedPort(n, p[0])
		data, dok := s.namedPort(n, p[1])
		if !aok {
			s.Logger.Warning("memory %s written at an unknown address", n.Name)
			continue
		}
		if !dok {
			data = 0
		}
		st.mem[addr] = data
	}
}
