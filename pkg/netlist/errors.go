package netlist

import (
	"github.com/pkg/errors"
)

var (
	// ErrContract reports a resolver or mutation called against its preconditions
	ErrContract = errors.New("contract violation")
	// ErrCombinationalLoop reports a net joined onto itself
	ErrCombinationalLoop = errors.New("combinational loop")
	// ErrMissingPort reports a node lacking a port its resolver requires
	ErrMissingPort = errors.New("missing required port")
	// ErrOwnership reports a pin attached to the wrong owner
	ErrOwnership = errors.New("pin ownership")
	// ErrFreed reports a handle that no longer refers to a live object
	ErrFreed = errors.New("freed handle")
)

// contractf wraps ErrContract with a formatted message
func contractf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrContract, format, args...)
}

// ownershipf wraps ErrOwnership with a formatted message
func ownershipf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrOwnership, format, args...)
}

// NodeError annotates err with the name, kind and provenance of a node
func (nl *Netlist) NodeError(id NodeID, err error) error {
	if err == nil {
		return nil
	}
	n := nl.Node(id)
	if n == nil {
		return errors.Wrapf(err, "node #%d", id)
	}
	return errors.Wrapf(err, "%s %s (%s)", n.Kind, n.Name, n.Loc)
}

// Contract returns ErrContract annotated with a node and message
func (nl *Netlist) Contract(id NodeID, format string, args ...interface{}) error {
	return nl.NodeError(id, contractf(format, args...))
}

// MissingPort returns ErrMissingPort annotated with a node and port name
func (nl *Netlist) MissingPort(id NodeID, port string) error {
	return nl.NodeError(id, errors.Wrapf(ErrMissingPort, "port %q", port))
}
