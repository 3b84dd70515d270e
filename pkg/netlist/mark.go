package netlist

// Mark is a generation stamp recorded on nodes visited or created during
// one elaboration sweep
type Mark uint64

// Generation hands out strictly increasing marks. It belongs to the
// driver of a pass, never to the netlist.
type Generation struct {
	current Mark
}

// Next starts a new generation and returns its mark
func (g *Generation) Next() Mark {
	g.current++
	return g.current
}

// Current returns the mark of the running generation
func (g *Generation) Current() Mark {
	return g.current
}

// Visited returns true if the node carries the given mark
func (nl *Netlist) Visited(id NodeID, mark Mark) bool {
	n := nl.Node(id)
	return n != nil && n.Mark == mark
}

// Visit stamps a node with a mark, returning false if it already carried it
func (nl *Netlist) Visit(id NodeID, mark Mark) bool {
	n := nl.Node(id)
	if n == nil || n.Mark == mark {
		return false
	}
	n.Mark = mark
	return true
}
