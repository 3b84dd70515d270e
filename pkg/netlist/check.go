package netlist

import (
	"github.com/pkg/errors"
)

// Check verifies the ownership invariants of the whole graph: every live
// pin sits in exactly the slot and net that claim it, no pin floats, every
// input slot of a live node is connected and every read net has a driver.
func (nl *Netlist) Check() error {
	for _, p := range nl.pins {
		if p == nil {
			continue
		}
		if p.Floating() {
			return ownershipf("pin #%d floats (net #%d)", p.ID, p.Net)
		}
		n := nl.Node(p.Node)
		if n == nil {
			return ownershipf("pin #%d held by freed node #%d", p.ID, p.Node)
		}
		slots := n.slots(p.Role)
		if p.Slot < 0 || p.Slot >= len(slots) || slots[p.Slot] != p.ID {
			return nl.NodeError(n.ID, ownershipf("pin #%d claims %s slot %d", p.ID, p.Role, p.Slot))
		}
		if p.Net == NoNet {
			if p.Role == InputPin {
				return nl.NodeError(n.ID, ownershipf("input pin #%d reads no net", p.ID))
			}
			continue
		}
		net := nl.Net(p.Net)
		if net == nil {
			return nl.NodeError(n.ID, ownershipf("pin #%d on freed net #%d", p.ID, p.Net))
		}
		if p.Role == OutputPin && net.Driver != p.ID {
			return nl.NodeError(n.ID, ownershipf("pin #%d claims to drive %s", p.ID, net.Name))
		}
		if p.Role == InputPin && !containsPin(net.Fanouts, p.ID) {
			return nl.NodeError(n.ID, ownershipf("pin #%d claims to read %s", p.ID, net.Name))
		}
	}

	for _, n := range nl.nodes {
		if n == nil {
			continue
		}
		for slot, pin := range n.Inputs {
			if pin == NoPin {
				return nl.Contract(n.ID, "input slot %d is unconnected", slot)
			}
			if p := nl.Pin(pin); p == nil || p.Node != n.ID || p.Slot != slot {
				return nl.NodeError(n.ID, ownershipf("input slot %d holds foreign pin #%d", slot, pin))
			}
		}
		for slot, pin := range n.Outputs {
			if pin == NoPin {
				continue
			}
			if p := nl.Pin(pin); p == nil || p.Node != n.ID || p.Slot != slot {
				return nl.NodeError(n.ID, ownershipf("output slot %d holds foreign pin #%d", slot, pin))
			}
		}
	}

	for _, net := range nl.nets {
		if net == nil {
			continue
		}
		if net.Driver == NoPin && len(net.Fanouts) > 0 {
			return errors.Wrapf(ErrOwnership, "net %s is read but has no driver", net.Name)
		}
		if net.Driver != NoPin {
			if p := nl.Pin(net.Driver); p == nil || p.Net != net.ID || p.Role != OutputPin {
				return errors.Wrapf(ErrOwnership, "net %s has a stale driver #%d", net.Name, net.Driver)
			}
		}
		for _, f := range net.Fanouts {
			if p := nl.Pin(f); p == nil || p.Net != net.ID || p.Role != InputPin {
				return errors.Wrapf(ErrOwnership, "net %s has a stale fanout #%d", net.Name, f)
			}
		}
	}
	return nil
}

func containsPin(pins []PinID, id PinID) bool {
	for _, p := range pins {
		if p == id {
			return true
		}
	}
	return false
}
