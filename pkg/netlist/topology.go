package netlist

import (
	"sort"

	"github.com/pkg/errors"
)

// Topology contains levelization information about a netlist
type Topology struct {
	Netlist      *Netlist
	LevelMap     map[NodeID]int // Level of each combinational node
	MaxLevel     int            // Maximum level in the netlist
	Order        []NodeID       // Combinational nodes in topological order
	FanoutPoints []NetID        // Nets that fan out to more than one node
}

// NewTopology creates a new topology analyzer for the given netlist
func NewTopology(nl *Netlist) *Topology {
	return &Topology{
		Netlist:  nl,
		LevelMap: make(map[NodeID]int),
	}
}

// Analyze levelizes the netlist and finds fanout points
func (t *Topology) Analyze() error {
	if err := t.ComputeLevels(); err != nil {
		return err
	}
	t.IdentifyFanoutPoints()
	return nil
}

// isSource returns true for nodes whose outputs start a combinational cone
func isSource(n *Node) bool {
	return n.Kind == OpInput || n.Kind.IsConstant() || n.Kind.IsSequential()
}

// ComputeLevels assigns a level to each combinational node. Primary inputs,
// constants and sequential outputs are level 0; a node sits one level above
// its deepest combinational driver. Nodes left over form a loop.
func (t *Topology) ComputeLevels() error {
	nl := t.Netlist
	t.LevelMap = make(map[NodeID]int)
	t.Order = t.Order[:0]
	t.MaxLevel = 0

	pending := make(map[NodeID]int)
	var queue []NodeID
	for _, id := range nl.Nodes() {
		n := nl.nodes[id]
		if isSource(n) {
			continue
		}
		count := 0
		for slot := range n.Inputs {
			d := nl.Node(nl.DriverNode(nl.InputNet(id, slot)))
			if d != nil && !isSource(d) {
				count++
			}
		}
		pending[id] = count
		if count == 0 {
			t.LevelMap[id] = 1
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		t.Order = append(t.Order, id)
		level := t.LevelMap[id]
		if level > t.MaxLevel {
			t.MaxLevel = level
		}
		for slot := range nl.nodes[id].Outputs {
			for _, f := range nl.FanoutNodes(nl.OutputNet(id, slot)) {
				if _, comb := pending[f]; !comb {
					continue
				}
				if level+1 > t.LevelMap[f] {
					t.LevelMap[f] = level + 1
				}
				pending[f]--
				if pending[f] == 0 {
					queue = append(queue, f)
				}
			}
		}
	}

	if len(t.Order) != len(pending) {
		stuck := t.unlevelled(pending)
		return nl.NodeError(stuck[0], errors.Wrapf(ErrCombinationalLoop, "%d nodes could not be levelized", len(stuck)))
	}
	return nil
}

// unlevelled returns the nodes the levelization never reached
func (t *Topology) unlevelled(pending map[NodeID]int) []NodeID {
	var stuck []NodeID
	for id, count := range pending {
		if count > 0 {
			stuck = append(stuck, id)
		}
	}
	sort.Slice(stuck, func(i, j int) bool { return stuck[i] < stuck[j] })
	return stuck
}

// IdentifyFanoutPoints identifies all nets read by more than one node
func (t *Topology) IdentifyFanoutPoints() {
	t.FanoutPoints = t.FanoutPoints[:0]
	for _, id := range t.Netlist.Nets() {
		if len(t.Netlist.nets[id].Fanouts) > 1 && !t.Netlist.IsConstantNet(id) {
			t.FanoutPoints = append(t.FanoutPoints, id)
		}
	}
}

// FindPathBetween finds a chain of nets from start to end through
// combinational nodes, or nil
func (t *Topology) FindPathBetween(start, end NetID) []NetID {
	nl := t.Netlist
	visited := make(map[NetID]bool)
	queue := [][]NetID{{start}}

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]

		current := path[len(path)-1]
		if current == end {
			return path
		}
		if visited[current] {
			continue
		}
		visited[current] = true

		for _, id := range nl.FanoutNodes(current) {
			n := nl.nodes[id]
			if n.Kind.IsSequential() {
				continue
			}
			for slot := range n.Outputs {
				out := nl.OutputNet(id, slot)
				if out == NoNet || visited[out] {
					continue
				}
				next := make([]NetID, len(path), len(path)+1)
				copy(next, path)
				queue = append(queue, append(next, out))
			}
		}
	}
	return nil
}
