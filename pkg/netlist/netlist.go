package netlist

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// NodeID, PinID and NetID are stable handles into the netlist arena.
// A freed handle is never handed out again.
type (
	NodeID int
	PinID  int
	NetID  int
)

const (
	NoNode NodeID = -1
	NoPin  PinID  = -1
	NoNet  NetID  = -1
)

// Role tells whether a pin drives or reads its net
type Role int

const (
	InputPin Role = iota
	OutputPin
)

// String returns a string representation of the role
func (r Role) String() string {
	if r == OutputPin {
		return "output"
	}
	return "input"
}

// Pin is a single-bit connection endpoint
type Pin struct {
	ID   PinID
	Role Role
	Node NodeID // Owning node, NoNode while floating
	Slot int    // Index into the owner's Inputs or Outputs
	Net  NetID  // Net the pin drives or reads, NoNet when unhooked
}

// Floating returns true if the pin is not held by any node slot
func (p *Pin) Floating() bool {
	return p.Node == NoNode
}

// Port is a named, fixed-width group of pin slots
type Port struct {
	Name  string
	Width int
}

// Node is an operator instance
type Node struct {
	ID          NodeID
	Name        string
	Kind        Op
	InputPorts  []Port
	OutputPorts []Port
	Inputs      []PinID // Flattened input slots, port by port
	Outputs     []PinID // Flattened output slots, port by port
	Mark        Mark    // Generation in which the node was last visited or created
	Attr        Attributes
	Loc         Loc
}

// InputPort returns the index of the named input port, or -1
func (n *Node) InputPort(name string) int {
	for i, p := range n.InputPorts {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// OutputPort returns the index of the named output port, or -1
func (n *Node) OutputPort(name string) int {
	for i, p := range n.OutputPorts {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// InputOffset returns the first slot of an input port
func (n *Node) InputOffset(port int) int {
	off := 0
	for i := 0; i < port; i++ {
		off += n.InputPorts[i].Width
	}
	return off
}

// OutputOffset returns the first slot of an output port
func (n *Node) OutputOffset(port int) int {
	off := 0
	for i := 0; i < port; i++ {
		off += n.OutputPorts[i].Width
	}
	return off
}

// InputPins returns a copy of the slots of an input port
func (n *Node) InputPins(port int) []PinID {
	off := n.InputOffset(port)
	pins := make([]PinID, n.InputPorts[port].Width)
	copy(pins, n.Inputs[off:off+len(pins)])
	return pins
}

// OutputPins returns a copy of the slots of an output port
func (n *Node) OutputPins(port int) []PinID {
	off := n.OutputOffset(port)
	pins := make([]PinID, n.OutputPorts[port].Width)
	copy(pins, n.Outputs[off:off+len(pins)])
	return pins
}

// OutputWidth returns the total number of output slots
func (n *Node) OutputWidth() int {
	return len(n.Outputs)
}

// String returns a string representation of the node
func (n *Node) String() string {
	return fmt.Sprintf("%s(%s)", n.Name, n.Kind)
}

// Net is a broadcast connection with at most one driver
type Net struct {
	ID      NetID
	Name    string
	Driver  PinID
	Fanouts []PinID
}

// Netlist is the arena owning every node, pin and net of a design
type Netlist struct {
	Name    string
	Inputs  []NodeID // Primary input nodes
	Outputs []NodeID // Primary output nodes

	nodes []*Node
	pins  []*Pin
	nets  []*Net

	zero, one, pad NetID
	seq            int
}

// New creates an empty netlist with its constant nets
func New(name string) *Netlist {
	nl := &Netlist{Name: name}
	nl.zero = nl.constantNet(OpGnd, "gnd")
	nl.one = nl.constantNet(OpVcc, "vcc")
	nl.pad = nl.constantNet(OpPad, "unconn")
	return nl
}

// constantNet creates a constant driver node and its net
func (nl *Netlist) constantNet(kind Op, name string) NetID {
	id := nl.AddNode(kind, name, nil, []Port{{Name: "Y", Width: 1}})
	net := nl.NewNet(name)
	pin := nl.NewPin(OutputPin)
	nl.mustNot(nl.AttachOutput(id, 0, pin))
	nl.mustNot(nl.SetDriver(net, pin))
	return net
}

// mustNot panics on errors that can only come from a bug in this package
func (nl *Netlist) mustNot(err error) {
	if err != nil {
		panic(err)
	}
}

// Node returns a live node or nil
func (nl *Netlist) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(nl.nodes) {
		return nil
	}
	return nl.nodes[id]
}

// Pin returns a live pin or nil
func (nl *Netlist) Pin(id PinID) *Pin {
	if id < 0 || int(id) >= len(nl.pins) {
		return nil
	}
	return nl.pins[id]
}

// Net returns a live net or nil
func (nl *Netlist) Net(id NetID) *Net {
	if id < 0 || int(id) >= len(nl.nets) {
		return nil
	}
	return nl.nets[id]
}

// Nodes returns the handles of all live nodes in creation order
func (nl *Netlist) Nodes() []NodeID {
	ids := make([]NodeID, 0, len(nl.nodes))
	for _, n := range nl.nodes {
		if n != nil {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Nets returns the handles of all live nets in creation order
func (nl *Netlist) Nets() []NetID {
	ids := make([]NetID, 0, len(nl.nets))
	for _, n := range nl.nets {
		if n != nil {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// NodesOfKind returns the live nodes of the given kinds
func (nl *Netlist) NodesOfKind(kinds ...Op) []NodeID {
	var ids []NodeID
	for _, n := range nl.nodes {
		if n == nil {
			continue
		}
		for _, k := range kinds {
			if n.Kind == k {
				ids = append(ids, n.ID)
				break
			}
		}
	}
	return ids
}

// CountByKind returns the number of live nodes per kind
func (nl *Netlist) CountByKind() map[Op]int {
	counts := make(map[Op]int)
	for _, n := range nl.nodes {
		if n != nil {
			counts[n.Kind]++
		}
	}
	return counts
}

// UniqueName returns a fresh name derived from a parent name and a kind
func (nl *Netlist) UniqueName(parent string, kind Op) string {
	nl.seq++
	if parent == "" {
		return fmt.Sprintf("%s~%d", kind, nl.seq)
	}
	return fmt.Sprintf("%s^%s~%d", parent, kind, nl.seq)
}

// AddNode creates a node with empty slots for the given ports
func (nl *Netlist) AddNode(kind Op, name string, inputs, outputs []Port) NodeID {
	id := NodeID(len(nl.nodes))
	if name == "" {
		name = nl.UniqueName("", kind)
	}
	n := &Node{
		ID:          id,
		Name:        name,
		Kind:        kind,
		InputPorts:  append([]Port(nil), inputs...),
		OutputPorts: append([]Port(nil), outputs...),
	}
	n.Inputs = emptySlots(inputs)
	n.Outputs = emptySlots(outputs)
	nl.nodes = append(nl.nodes, n)
	return id
}

func emptySlots(ports []Port) []PinID {
	width := 0
	for _, p := range ports {
		width += p.Width
	}
	slots := make([]PinID, width)
	for i := range slots {
		slots[i] = NoPin
	}
	return slots
}

// NewPin allocates a floating, unhooked pin
func (nl *Netlist) NewPin(role Role) PinID {
	id := PinID(len(nl.pins))
	nl.pins = append(nl.pins, &Pin{ID: id, Role: role, Node: NoNode, Slot: -1, Net: NoNet})
	return id
}

// NewNet allocates an empty net
func (nl *Netlist) NewNet(name string) NetID {
	id := NetID(len(nl.nets))
	if name == "" {
		name = fmt.Sprintf("n%d", id)
	}
	nl.nets = append(nl.nets, &Net{ID: id, Name: name, Driver: NoPin})
	return id
}

// slots returns the slot array of a node matching a pin role
func (n *Node) slots(role Role) []PinID {
	if role == OutputPin {
		return n.Outputs
	}
	return n.Inputs
}

// attach places a floating pin into an empty node slot
func (nl *Netlist) attach(id NodeID, slot int, pinID PinID, role Role) error {
	n := nl.Node(id)
	if n == nil {
		return errors.Wrapf(ErrFreed, "node #%d", id)
	}
	p := nl.Pin(pinID)
	if p == nil {
		return errors.Wrapf(ErrFreed, "pin #%d", pinID)
	}
	if p.Role != role {
		return ownershipf("pin #%d is an %s pin, slot wants %s", pinID, p.Role, role)
	}
	if !p.Floating() {
		return ownershipf("pin #%d already held by node #%d", pinID, p.Node)
	}
	slots := n.slots(role)
	if slot < 0 || slot >= len(slots) {
		return nl.Contract(id, "%s slot %d out of range (width %d)", role, slot, len(slots))
	}
	if slots[slot] != NoPin {
		return nl.NodeError(id, ownershipf("%s slot %d already holds pin #%d", role, slot, slots[slot]))
	}
	slots[slot] = pinID
	p.Node = id
	p.Slot = slot
	return nil
}

// AttachInput places a floating input pin into an empty input slot
func (nl *Netlist) AttachInput(id NodeID, slot int, pin PinID) error {
	return nl.attach(id, slot, pin, InputPin)
}

// AttachOutput places a floating output pin into an empty output slot
func (nl *Netlist) AttachOutput(id NodeID, slot int, pin PinID) error {
	return nl.attach(id, slot, pin, OutputPin)
}

// Detach removes a pin from its node slot, leaving its net membership intact
func (nl *Netlist) Detach(pinID PinID) error {
	p := nl.Pin(pinID)
	if p == nil {
		return errors.Wrapf(ErrFreed, "pin #%d", pinID)
	}
	if p.Floating() {
		return ownershipf("pin #%d is not attached", pinID)
	}
	n := nl.Node(p.Node)
	slots := n.slots(p.Role)
	if slots[p.Slot] != pinID {
		return ownershipf("pin #%d does not own slot %d of %s", pinID, p.Slot, n.Name)
	}
	slots[p.Slot] = NoPin
	p.Node = NoNode
	p.Slot = -1
	return nil
}

// AddFanout hooks an unhooked input pin onto a net
func (nl *Netlist) AddFanout(netID NetID, pinID PinID) error {
	net := nl.Net(netID)
	if net == nil {
		return errors.Wrapf(ErrFreed, "net #%d", netID)
	}
	p := nl.Pin(pinID)
	if p == nil {
		return errors.Wrapf(ErrFreed, "pin #%d", pinID)
	}
	if p.Role != InputPin {
		return ownershipf("pin #%d cannot be a fanout of %s: it is an output", pinID, net.Name)
	}
	if p.Net != NoNet {
		return ownershipf("pin #%d already reads net #%d", pinID, p.Net)
	}
	net.Fanouts = append(net.Fanouts, pinID)
	p.Net = netID
	return nil
}

// SetDriver hooks an unhooked output pin as the driver of a net
func (nl *Netlist) SetDriver(netID NetID, pinID PinID) error {
	net := nl.Net(netID)
	if net == nil {
		return errors.Wrapf(ErrFreed, "net #%d", netID)
	}
	p := nl.Pin(pinID)
	if p == nil {
		return errors.Wrapf(ErrFreed, "pin #%d", pinID)
	}
	if p.Role != OutputPin {
		return ownershipf("pin #%d cannot drive %s: it is an input", pinID, net.Name)
	}
	if p.Net != NoNet {
		return ownershipf("pin #%d already drives net #%d", pinID, p.Net)
	}
	if net.Driver != NoPin {
		return ownershipf("net %s already driven by pin #%d", net.Name, net.Driver)
	}
	net.Driver = pinID
	p.Net = netID
	return nil
}

// Unhook removes a pin from its net, leaving its slot intact
func (nl *Netlist) Unhook(pinID PinID) error {
	p := nl.Pin(pinID)
	if p == nil {
		return errors.Wrapf(ErrFreed, "pin #%d", pinID)
	}
	net := nl.Net(p.Net)
	if net == nil {
		return ownershipf("pin #%d is not on a net", pinID)
	}
	if p.Role == OutputPin {
		net.Driver = NoPin
	} else {
		for i, f := range net.Fanouts {
			if f == pinID {
				net.Fanouts = append(net.Fanouts[:i], net.Fanouts[i+1:]...)
				break
			}
		}
	}
	p.Net = NoNet
	return nil
}

// Remap moves an attached pin to an empty slot of another node in one step
func (nl *Netlist) Remap(pinID PinID, id NodeID, slot int) error {
	p := nl.Pin(pinID)
	if p == nil {
		return errors.Wrapf(ErrFreed, "pin #%d", pinID)
	}
	n := nl.Node(id)
	if n == nil {
		return errors.Wrapf(ErrFreed, "node #%d", id)
	}
	slots := n.slots(p.Role)
	if slot < 0 || slot >= len(slots) {
		return nl.Contract(id, "%s slot %d out of range (width %d)", p.Role, slot, len(slots))
	}
	if slots[slot] != NoPin {
		return nl.NodeError(id, ownershipf("%s slot %d already holds pin #%d", p.Role, slot, slots[slot]))
	}
	if !p.Floating() {
		if err := nl.Detach(pinID); err != nil {
			return err
		}
	}
	return nl.attach(id, slot, pinID, p.Role)
}

// Connect wires an output slot of src to an input slot of dst, creating the
// source net when the slot is still unconnected
func (nl *Netlist) Connect(src NodeID, srcSlot int, dst NodeID, dstSlot int) error {
	fanout, err := nl.Tap(src, srcSlot)
	if err != nil {
		return err
	}
	if err := nl.AttachInput(dst, dstSlot, fanout); err != nil {
		nl.Release(fanout)
		return err
	}
	return nil
}

// NewInternalWire allocates an output pin for an empty output slot, a net
// driven by it and one floating fanout pin on that net
func (nl *Netlist) NewInternalWire(id NodeID, slot int) (PinID, error) {
	n := nl.Node(id)
	if n == nil {
		return NoPin, errors.Wrapf(ErrFreed, "node #%d", id)
	}
	if slot < 0 || slot >= len(n.Outputs) {
		return NoPin, nl.Contract(id, "output slot %d out of range (width %d)", slot, len(n.Outputs))
	}
	if n.Outputs[slot] != NoPin {
		return NoPin, nl.NodeError(id, ownershipf("output slot %d already driven", slot))
	}
	driver := nl.NewPin(OutputPin)
	if err := nl.attach(id, slot, driver, OutputPin); err != nil {
		return NoPin, err
	}
	net := nl.NewNet(fmt.Sprintf("%s~%d", n.Name, slot))
	nl.mustNot(nl.SetDriver(net, driver))
	fanout := nl.NewPin(InputPin)
	nl.mustNot(nl.AddFanout(net, fanout))
	return fanout, nil
}

// Tap returns a new floating fanout pin on the net of an output slot,
// creating the wire first if the slot is empty
func (nl *Netlist) Tap(id NodeID, slot int) (PinID, error) {
	n := nl.Node(id)
	if n == nil {
		return NoPin, errors.Wrapf(ErrFreed, "node #%d", id)
	}
	if slot < 0 || slot >= len(n.Outputs) {
		return NoPin, nl.Contract(id, "output slot %d out of range (width %d)", slot, len(n.Outputs))
	}
	driver := n.Outputs[slot]
	if driver == NoPin {
		return nl.NewInternalWire(id, slot)
	}
	p := nl.pins[driver]
	if p.Net == NoNet {
		net := nl.NewNet(fmt.Sprintf("%s~%d", n.Name, slot))
		nl.mustNot(nl.SetDriver(net, driver))
	}
	fanout := nl.NewPin(InputPin)
	nl.mustNot(nl.AddFanout(p.Net, fanout))
	return fanout, nil
}

// CopyPin returns a new floating fanout pin reading the same net as pin
func (nl *Netlist) CopyPin(pinID PinID) (PinID, error) {
	p := nl.Pin(pinID)
	if p == nil {
		return NoPin, errors.Wrapf(ErrFreed, "pin #%d", pinID)
	}
	if p.Net == NoNet {
		return NoPin, ownershipf("pin #%d is not on a net, nothing to copy", pinID)
	}
	cp := nl.NewPin(InputPin)
	nl.mustNot(nl.AddFanout(p.Net, cp))
	return cp, nil
}

// Release frees a floating pin, removing it from its net
func (nl *Netlist) Release(pinID PinID) error {
	p := nl.Pin(pinID)
	if p == nil {
		return errors.Wrapf(ErrFreed, "pin #%d", pinID)
	}
	if !p.Floating() {
		return ownershipf("pin #%d is still held by node #%d", pinID, p.Node)
	}
	nl.freePin(pinID)
	return nil
}

// freePin unhooks and frees a pin whose slot was already cleared; the net
// goes too once nothing references it
func (nl *Netlist) freePin(pinID PinID) {
	p := nl.pins[pinID]
	netID := p.Net
	if netID != NoNet {
		nl.mustNot(nl.Unhook(pinID))
		nl.freeNetIfEmpty(netID)
	}
	nl.pins[pinID] = nil
}

// freeNetIfEmpty frees a non-constant net with neither driver nor fanouts
func (nl *Netlist) freeNetIfEmpty(netID NetID) {
	if nl.IsConstantNet(netID) {
		return
	}
	net := nl.nets[netID]
	if net != nil && net.Driver == NoPin && len(net.Fanouts) == 0 {
		nl.nets[netID] = nil
	}
}

// FreeNode destroys a node together with every pin still held by its slots
func (nl *Netlist) FreeNode(id NodeID) error {
	n := nl.Node(id)
	if n == nil {
		return errors.Wrapf(ErrFreed, "node #%d", id)
	}
	for _, slots := range [][]PinID{n.Inputs, n.Outputs} {
		for i, pin := range slots {
			if pin == NoPin {
				continue
			}
			slots[i] = NoPin
			nl.pins[pin].Node = NoNode
			nl.freePin(pin)
		}
	}
	nl.nodes[id] = nil
	return nil
}

// Join merges net other into net into: the driver and fanouts of other
// move over and other is freed
func (nl *Netlist) Join(into, other NetID) error {
	if into == other {
		return errors.Wrapf(ErrCombinationalLoop, "net #%d joined onto itself", into)
	}
	a, b := nl.Net(into), nl.Net(other)
	if a == nil {
		return errors.Wrapf(ErrFreed, "net #%d", into)
	}
	if b == nil {
		return errors.Wrapf(ErrFreed, "net #%d", other)
	}
	if nl.IsConstantNet(other) {
		return contractf("constant net %s cannot be merged away", b.Name)
	}
	if a.Driver != NoPin && b.Driver != NoPin {
		return ownershipf("nets %s and %s both have drivers", a.Name, b.Name)
	}

	// A combinational node reading the net it drives is a loop
	driver := a.Driver
	if driver == NoPin {
		driver = b.Driver
	}
	if driver != NoPin {
		dn := nl.Node(nl.pins[driver].Node)
		if dn != nil && !dn.Kind.IsSequential() {
			for _, f := range append(append([]PinID(nil), a.Fanouts...), b.Fanouts...) {
				if nl.pins[f].Node == dn.ID {
					return nl.NodeError(dn.ID, errors.Wrapf(ErrCombinationalLoop, "joining %s and %s", a.Name, b.Name))
				}
			}
		}
	}

	if b.Driver != NoPin {
		a.Driver = b.Driver
		nl.pins[b.Driver].Net = into
	}
	for _, f := range b.Fanouts {
		nl.pins[f].Net = into
	}
	a.Fanouts = append(a.Fanouts, b.Fanouts...)
	nl.nets[other] = nil
	return nil
}

// ConstantNet returns the constant net carrying a value, pad for X
func (nl *Netlist) ConstantNet(v LogicValue) NetID {
	switch v {
	case Zero:
		return nl.zero
	case One:
		return nl.one
	default:
		return nl.pad
	}
}

// IsConstantNet returns true for the zero, one and pad nets
func (nl *Netlist) IsConstantNet(id NetID) bool {
	return id == nl.zero || id == nl.one || id == nl.pad
}

// NetValue returns the constant value of a net, if it is a constant net
func (nl *Netlist) NetValue(id NetID) (LogicValue, bool) {
	switch id {
	case nl.zero:
		return Zero, true
	case nl.one:
		return One, true
	case nl.pad:
		return X, true
	}
	return X, false
}

// PinValue returns the constant value read by a pin, if any
func (nl *Netlist) PinValue(id PinID) (LogicValue, bool) {
	p := nl.Pin(id)
	if p == nil {
		return X, false
	}
	return nl.NetValue(p.Net)
}

// constantPin hands out a fresh floating fanout pin on a constant net
func (nl *Netlist) constantPin(net NetID) PinID {
	pin := nl.NewPin(InputPin)
	nl.mustNot(nl.AddFanout(net, pin))
	return pin
}

// ZeroPin returns a new floating fanout pin on the logic-0 net
func (nl *Netlist) ZeroPin() PinID { return nl.constantPin(nl.zero) }

// OnePin returns a new floating fanout pin on the logic-1 net
func (nl *Netlist) OnePin() PinID { return nl.constantPin(nl.one) }

// PadPin returns a new floating fanout pin on the don't-care net
func (nl *Netlist) PadPin() PinID { return nl.constantPin(nl.pad) }

// DriverNode returns the node driving a net, or NoNode
func (nl *Netlist) DriverNode(id NetID) NodeID {
	net := nl.Net(id)
	if net == nil || net.Driver == NoPin {
		return NoNode
	}
	return nl.pins[net.Driver].Node
}

// FanoutNodes returns the nodes reading a net, in fanout order
func (nl *Netlist) FanoutNodes(id NetID) []NodeID {
	net := nl.Net(id)
	if net == nil {
		return nil
	}
	nodes := make([]NodeID, 0, len(net.Fanouts))
	for _, f := range net.Fanouts {
		if n := nl.pins[f].Node; n != NoNode {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// InputNet returns the net read by an input slot, or NoNet
func (nl *Netlist) InputNet(id NodeID, slot int) NetID {
	n := nl.Node(id)
	if n == nil || slot < 0 || slot >= len(n.Inputs) || n.Inputs[slot] == NoPin {
		return NoNet
	}
	return nl.pins[n.Inputs[slot]].Net
}

// OutputNet returns the net driven by an output slot, or NoNet
func (nl *Netlist) OutputNet(id NodeID, slot int) NetID {
	n := nl.Node(id)
	if n == nil || slot < 0 || slot >= len(n.Outputs) || n.Outputs[slot] == NoPin {
		return NoNet
	}
	return nl.pins[n.Outputs[slot]].Net
}

// ConnectNet attaches a new fanout pin of net to an input slot
func (nl *Netlist) ConnectNet(net NetID, id NodeID, slot int) error {
	if nl.Net(net) == nil {
		return errors.Wrapf(ErrFreed, "net #%d", net)
	}
	pin := nl.NewPin(InputPin)
	if err := nl.AttachInput(id, slot, pin); err != nil {
		nl.pins[pin] = nil
		return err
	}
	return nl.AddFanout(net, pin)
}

// ConnectBus attaches the nets of a bus to consecutive input slots
func (nl *Netlist) ConnectBus(nets []NetID, id NodeID, offset int) error {
	for i, net := range nets {
		if err := nl.ConnectNet(net, id, offset+i); err != nil {
			return err
		}
	}
	return nil
}

// DriveNet creates a named net driven by an output slot
func (nl *Netlist) DriveNet(id NodeID, slot int, name string) (NetID, error) {
	pin := nl.NewPin(OutputPin)
	if err := nl.AttachOutput(id, slot, pin); err != nil {
		nl.pins[pin] = nil
		return NoNet, err
	}
	net := nl.NewNet(name)
	nl.mustNot(nl.SetDriver(net, pin))
	return net, nil
}

// DriveBus creates named nets for consecutive output slots
func (nl *Netlist) DriveBus(id NodeID, offset, width int, name string) ([]NetID, error) {
	nets := make([]NetID, width)
	for i := range nets {
		net, err := nl.DriveNet(id, offset+i, busName(name, i, width))
		if err != nil {
			return nil, err
		}
		nets[i] = net
	}
	return nets, nil
}

func busName(name string, bit, width int) string {
	if width == 1 {
		return name
	}
	return fmt.Sprintf("%s[%d]", name, bit)
}

// AddPrimaryInput creates an input node of the given width and returns its nets
func (nl *Netlist) AddPrimaryInput(name string, width int) []NetID {
	id := nl.AddNode(OpInput, name, nil, []Port{{Name: name, Width: width}})
	nl.Inputs = append(nl.Inputs, id)
	nets, err := nl.DriveBus(id, 0, width, name)
	nl.mustNot(err)
	return nets
}

// AddPrimaryOutput creates an output node reading the given nets
func (nl *Netlist) AddPrimaryOutput(name string, nets []NetID) (NodeID, error) {
	id := nl.AddNode(OpOutput, name, []Port{{Name: name, Width: len(nets)}}, nil)
	nl.Outputs = append(nl.Outputs, id)
	if err := nl.ConnectBus(nets, id, 0); err != nil {
		return id, err
	}
	return id, nil
}

// PrimaryInput returns the nets of a named primary input
func (nl *Netlist) PrimaryInput(name string) ([]NetID, bool) {
	for _, id := range nl.Inputs {
		if n := nl.Node(id); n != nil && n.Name == name {
			nets := make([]NetID, len(n.Outputs))
			for i := range n.Outputs {
				nets[i] = nl.OutputNet(id, i)
			}
			return nets, true
		}
	}
	return nil, false
}

// PrimaryOutput returns the nets read by a named primary output
func (nl *Netlist) PrimaryOutput(name string) ([]NetID, bool) {
	for _, id := range nl.Outputs {
		if n := nl.Node(id); n != nil && n.Name == name {
			nets := make([]NetID, len(n.Inputs))
			for i := range n.Inputs {
				nets[i] = nl.InputNet(id, i)
			}
			return nets, true
		}
	}
	return nil, false
}

// String returns a short summary of the netlist
func (nl *Netlist) String() string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Netlist: %s\n", nl.Name))
	counts := nl.CountByKind()
	kinds := make([]Op, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		builder.WriteString(fmt.Sprintf("  %-16s %d\n", k, counts[k]))
	}
	return builder.String()
}

// Bus is a named group of nets feeding one input port
type Bus struct {
	Name string
	Nets []NetID
}

// Instantiate creates a node whose input ports read the given buses and
// whose output ports drive new nets named after the node and port. It
// returns the output nets port by port.
func (nl *Netlist) Instantiate(kind Op, name string, inputs []Bus, outputs []Port) (NodeID, [][]NetID, error) {
	in := make([]Port, len(inputs))
	for i, bus := range inputs {
		in[i] = Port{Name: bus.Name, Width: len(bus.Nets)}
	}
	id := nl.AddNode(kind, name, in, outputs)
	n := nl.nodes[id]
	for i, bus := range inputs {
		if err := nl.ConnectBus(bus.Nets, id, n.InputOffset(i)); err != nil {
			return id, nil, err
		}
	}
	outs := make([][]NetID, len(outputs))
	for i, p := range outputs {
		nets, err := nl.DriveBus(id, n.OutputOffset(i), p.Width, n.Name+"."+p.Name)
		if err != nil {
			return id, nil, err
		}
		outs[i] = nets
	}
	return id, outs, nil
}
