// Package resolve lowers compound operator nodes into networks of
// primitive single-bit gates. Each resolver consumes one node, builds its
// replacement with a netlist.Builder and rewires every outside reference.
package resolve

import (
	"github.com/pkg/errors"

	"github.com/fyerfyer/hdl-elab/pkg/config"
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
	"github.com/fyerfyer/hdl-elab/pkg/utils"
)

// lowerFunc replaces one node; the node is still live when it is called
type lowerFunc func(r *Resolver, b *netlist.Builder, n *netlist.Node) error

// Resolver dispatches compound nodes to their lowering
type Resolver struct {
	Netlist *netlist.Netlist
	Config  *config.Config
	Logger  *utils.Logger

	table map[netlist.Op]lowerFunc
}

// NewResolver creates a resolver for a netlist
func NewResolver(nl *netlist.Netlist, cfg *config.Config, logger *utils.Logger) *Resolver {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = utils.DefaultLogger
	}
	r := &Resolver{Netlist: nl, Config: cfg, Logger: logger, table: make(map[netlist.Op]lowerFunc)}

	for op := netlist.OpBitwiseNot; op <= netlist.OpBitwiseXnor; op++ {
		r.table[op] = (*Resolver).lowerBitwise
	}
	for op := netlist.OpLogicalNot; op <= netlist.OpLogicalXnor; op++ {
		r.table[op] = (*Resolver).lowerLogical
	}
	r.table[netlist.OpLogicalEqual] = (*Resolver).lowerEquality
	r.table[netlist.OpNotEqual] = (*Resolver).lowerEquality
	r.table[netlist.OpCaseEqual] = (*Resolver).lowerCaseEquality
	r.table[netlist.OpCaseNotEqual] = (*Resolver).lowerCaseEquality
	for op := netlist.OpShiftLeft; op <= netlist.OpArithShiftRight; op++ {
		r.table[op] = (*Resolver).lowerShift
	}
	r.table[netlist.OpAdd] = (*Resolver).lowerAdder
	r.table[netlist.OpMinus] = (*Resolver).lowerAdder
	r.table[netlist.OpMultiply] = (*Resolver).lowerMultiply
	r.table[netlist.OpDivide] = (*Resolver).lowerDivider
	r.table[netlist.OpModulo] = (*Resolver).lowerDivider
	r.table[netlist.OpPower] = (*Resolver).lowerPower
	r.table[netlist.OpMultiPortMux] = (*Resolver).lowerMux
	r.table[netlist.OpPmux] = (*Resolver).lowerPmux
	for op := netlist.OpDFF; op <= netlist.OpDFFSRE; op++ {
		r.table[op] = (*Resolver).lowerFlipFlop
	}
	for op := netlist.OpDLatch; op <= netlist.OpDLatchSR; op++ {
		r.table[op] = (*Resolver).lowerLatch
	}
	return r
}

// Keeps returns true for compound nodes the target implements natively
func (r *Resolver) Keeps(n *netlist.Node) bool {
	return n.Kind == netlist.OpMultiply && r.Config.Multiplier.Hard
}

// Pending returns true if a node still needs lowering
func (r *Resolver) Pending(n *netlist.Node) bool {
	return n.Kind.IsCompound() && !r.Keeps(n)
}

// Resolve lowers one node visited by the sweep holding mark. Nodes created
// in its place carry the same mark.
func (r *Resolver) Resolve(id netlist.NodeID, mark netlist.Mark) error {
	n := r.Netlist.Node(id)
	if n == nil {
		return errors.Wrapf(netlist.ErrFreed, "node #%d", id)
	}
	if n.Mark != mark {
		return r.Netlist.Contract(id, "%s carries mark %d, not the sweep mark %d", n.Kind, n.Mark, mark)
	}
	lower, ok := r.table[n.Kind]
	if !ok {
		return r.Netlist.Contract(id, "no resolver for %s", n.Kind)
	}
	name, kind := n.Name, n.Kind

	b := r.Netlist.NewBuilder(id, mark)
	if err := lower(r, b, n); err != nil {
		return errors.Wrapf(err, "lowering %s", name)
	}
	if err := b.Err(); err != nil {
		return errors.Wrapf(err, "lowering %s", name)
	}
	r.Logger.Resolver("%s %s -> %d nodes", kind, name, len(b.Created()))
	for _, c := range b.Created() {
		if cn := r.Netlist.Node(c); cn != nil {
			r.Logger.Netlist("+ %s", cn)
		}
	}
	return nil
}

// requirePorts fails before any mutation when a node lacks a port
func (r *Resolver) requirePorts(n *netlist.Node, names ...string) error {
	for _, name := range names {
		if n.InputPort(name) < 0 {
			return r.Netlist.MissingPort(n.ID, name)
		}
	}
	return nil
}

// finish drives the outputs of n with sigs, pads the rest with zero and
// frees the node
func (r *Resolver) finish(b *netlist.Builder, n *netlist.Node, sigs netlist.Signals) {
	if filled := b.DriveAll(b.AllOutputs(n.ID), sigs, netlist.Zero); filled > 0 && r.Config.Elaboration.WarnOnPad {
		r.Logger.Resource("%s: %d output bits padded with zero", n.Name, filled)
	}
	b.Free(n.ID)
}
