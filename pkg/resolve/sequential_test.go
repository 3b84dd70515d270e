package resolve

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/fyerfyer/hdl-elab/pkg/netlist"
	"github.com/fyerfyer/hdl-elab/pkg/utils"
)

// storage creates a design with one flip-flop or latch whose ports are
// primary inputs named after them in lower case
func storage(kind netlist.Op, width int, attr netlist.Attributes, wide map[string]bool) design {
	return func(t *testing.T, nl *netlist.Netlist) {
		t.Helper()
		var buses []netlist.Bus
		for _, name := range requiredPorts[kind] {
			w := 1
			if name == "D" || wide[name] {
				w = width
			}
			buses = append(buses, netlist.Bus{Name: name, Nets: nl.AddPrimaryInput(strings.ToLower(name), w)})
		}
		id, outs, err := nl.Instantiate(kind, "dut", buses, []netlist.Port{{Name: "Q", Width: width}})
		if err != nil {
			t.Fatalf("Failed to instantiate %s: %v", kind, err)
		}
		nl.Node(id).Attr = attr
		if _, err := nl.AddPrimaryOutput("q", outs[0]); err != nil {
			t.Fatalf("Failed to add output: %v", err)
		}
	}
}

// stimulus is one step of raw input values, keyed by port name
type stimulus map[string]uint64

// active returns the bits of a control that are asserted under polarity
func (s stimulus) active(name string, polarity netlist.Sensitivity, width int) uint64 {
	v := s[name]
	if netlist.Polarity(polarity).Inverted() {
		v = ^v
	}
	return spread(v, width, false)
}

func mask(width int) uint64 {
	return uint64(1)<<uint(width) - 1
}

// spread widens a single-bit control to every output bit
func spread(v uint64, width int, wide bool) uint64 {
	if wide {
		return v & mask(width)
	}
	if v&1 == 1 {
		return mask(width)
	}
	return 0
}

// nextState is the reference next-state function of an edge-triggered
// flip-flop, controls applied from the innermost (enable) outwards
func nextState(kind netlist.Op, attr netlist.Attributes, q uint64, in stimulus, width int, wide map[string]bool) uint64 {
	ctrl := func(name string, polarity netlist.Sensitivity) uint64 {
		v := in[name]
		if netlist.Polarity(polarity).Inverted() {
			v = ^v
		}
		return spread(v, width, wide[name])
	}
	has := func(name string) bool {
		for _, p := range requiredPorts[kind] {
			if p == name {
				return true
			}
		}
		return false
	}
	choose := func(sel, a, b uint64) uint64 {
		return a&^sel | b&sel
	}
	srstValue := attr.SRstValue.Uint64() & mask(width)
	arstValue := attr.ARstValue.Uint64() & mask(width)
	d := in["D"] & mask(width)

	if kind == netlist.OpSDFFCE {
		next := choose(ctrl("SRST", attr.SRstPolarity), d, srstValue)
		return choose(ctrl("EN", attr.EnPolarity), q, next)
	}
	next := d
	if has("EN") {
		next = choose(ctrl("EN", attr.EnPolarity), q, next)
	}
	if has("SET") {
		next = choose(ctrl("SET", attr.SetPolarity), next, mask(width))
	}
	if has("CLR") {
		next = choose(ctrl("CLR", attr.ClrPolarity), next, 0)
	}
	if has("SRST") {
		next = choose(ctrl("SRST", attr.SRstPolarity), next, srstValue)
	}
	if has("ARST") {
		next = choose(ctrl("ARST", attr.ARstPolarity), next, arstValue)
	}
	return next
}

var flipFlops = []netlist.Op{
	netlist.OpDFF, netlist.OpADFF, netlist.OpSDFF, netlist.OpDFFE, netlist.OpADFFE,
	netlist.OpSDFFE, netlist.OpSDFFCE, netlist.OpDFFSR, netlist.OpDFFSRE,
}

func flipFlopAttributes(inverted bool) netlist.Attributes {
	attr := netlist.Attributes{
		SRstValue: *uint256.NewInt(2),
		ARstValue: *uint256.NewInt(1),
	}
	if inverted {
		attr.ClkEdge = netlist.FallingEdge
		attr.EnPolarity = netlist.ActiveLow
		attr.SRstPolarity = netlist.ActiveLow
		attr.ARstPolarity = netlist.ActiveLow
		attr.SetPolarity = netlist.ActiveLow
		attr.ClrPolarity = netlist.ActiveLow
	}
	return attr
}

// runFlipFlop drives a lowered flip-flop with random inputs and compares
// every clock edge against the reference next-state function
func runFlipFlop(t *testing.T, kind netlist.Op, attr netlist.Attributes, wide map[string]bool) {
	t.Helper()
	const width = 2
	nl, _ := lowered(t, storage(kind, width, attr, wide), nil)
	want := width
	if contains(requiredPorts[kind], "ARST") {
		// Each bit also tracks a reset released between edges
		want = 3 * width
	}
	if n := nl.CountByKind()[netlist.OpFF]; n != want {
		t.Errorf("Expected %d primitive flip-flops, got %d", want, n)
	}
	s := newSim(t, nl)
	rng := rand.New(rand.NewSource(int64(kind)))
	edge := netlist.Edge(attr.ClkEdge)

	var q uint64
	for step := 0; step < 200; step++ {
		in := stimulus{}
		for _, name := range requiredPorts[kind] {
			if name == "CLK" {
				continue
			}
			// Bias controls towards their inactive level so data gets through
			v := rng.Uint64()
			if name != "D" && !wide[name] && rng.Intn(3) > 0 {
				v = 0
				if name == "EN" {
					v = 1
				}
				if netlist.Polarity(polarityOf(attr, name)).Inverted() {
					v ^= 1
				}
			}
			in[name] = v
			s.SetInput(strings.ToLower(name), v)
		}
		pulse(t, s, "clk", edge)
		q = nextState(kind, attr, q, in, width, wide)

		got, ok, _ := s.Output("q")
		if !ok || got != q {
			t.Fatalf("Step %d with %v: expected q=%d, got %d (known=%v)", step, in, q, got, ok)
		}
	}
}

func polarityOf(attr netlist.Attributes, name string) netlist.Sensitivity {
	switch name {
	case "EN":
		return attr.EnPolarity
	case "SRST":
		return attr.SRstPolarity
	case "ARST":
		return attr.ARstPolarity
	case "SET":
		return attr.SetPolarity
	case "CLR":
		return attr.ClrPolarity
	}
	return netlist.Unspecified
}

func TestFlipFlops(t *testing.T) {
	for _, kind := range flipFlops {
		t.Run(kind.String(), func(t *testing.T) {
			runFlipFlop(t, kind, flipFlopAttributes(false), nil)
		})
		t.Run(kind.String()+"/inverted", func(t *testing.T) {
			runFlipFlop(t, kind, flipFlopAttributes(true), nil)
		})
	}
}

func TestFlipFlopPerBitControls(t *testing.T) {
	runFlipFlop(t, netlist.OpDFFE, flipFlopAttributes(false), map[string]bool{"EN": true})
	runFlipFlop(t, netlist.OpDFFSR, flipFlopAttributes(true), map[string]bool{"SET": true, "CLR": true})
}

// TestAsyncResetBetweenEdges asserts ARST while the clock is idle. Q takes
// the reset value at once and keeps it until an edge loads D again.
func TestAsyncResetBetweenEdges(t *testing.T) {
	for _, kind := range []netlist.Op{netlist.OpADFF, netlist.OpADFFE} {
		for _, inverted := range []bool{false, true} {
			attr := flipFlopAttributes(inverted)
			edge := netlist.Edge(attr.ClkEdge)
			nl, _ := lowered(t, storage(kind, 2, attr, nil), nil)
			s := newSim(t, nl)
			enabled := contains(requiredPorts[kind], "EN")

			level := func(name string, active bool) uint64 {
				v := uint64(0)
				if active {
					v = 1
				}
				if netlist.Polarity(polarityOf(attr, name)).Inverted() {
					v ^= 1
				}
				return v
			}
			expect := func(when string, want uint64) {
				t.Helper()
				if err := s.Settle(); err != nil {
					t.Fatalf("Settle failed: %v", err)
				}
				if got, ok, _ := s.Output("q"); !ok || got != want {
					t.Errorf("%s (inverted=%v) %s: expected q=%d, got %d (known=%v)", kind, inverted, when, want, got, ok)
				}
			}

			s.SetInput("arst", level("ARST", false))
			if enabled {
				s.SetInput("en", level("EN", true))
			}
			s.SetInput("d", 2)
			pulse(t, s, "clk", edge)
			expect("after loading D", 2)

			s.SetInput("arst", level("ARST", true))
			expect("while reset is asserted", 1)
			s.SetInput("arst", level("ARST", false))
			expect("after reset is released", 1)

			if enabled {
				s.SetInput("en", level("EN", false))
				pulse(t, s, "clk", edge)
				expect("after a disabled edge", 1)
				s.SetInput("en", level("EN", true))
			}
			pulse(t, s, "clk", edge)
			expect("after the next edge", 2)
		}
	}
}

// TestControlWidthLeavesNodeIntact checks that a control of the wrong width
// is rejected before any pin is detached
func TestControlWidthLeavesNodeIntact(t *testing.T) {
	tests := []struct {
		kind netlist.Op
		bad  string
	}{
		{netlist.OpDFFE, "EN"},
		{netlist.OpADFFE, "ARST"},
		{netlist.OpDLatchSR, "SET"},
	}
	for _, tt := range tests {
		build := func(t *testing.T, nl *netlist.Netlist) {
			var buses []netlist.Bus
			for _, name := range requiredPorts[tt.kind] {
				w := 1
				switch name {
				case "D":
					w = 2
				case tt.bad:
					w = 3
				}
				buses = append(buses, netlist.Bus{Name: name, Nets: nl.AddPrimaryInput(strings.ToLower(name), w)})
			}
			_, outs, err := nl.Instantiate(tt.kind, "dut", buses, []netlist.Port{{Name: "Q", Width: 2}})
			if err != nil {
				t.Fatalf("Failed to instantiate %s: %v", tt.kind, err)
			}
			if _, err := nl.AddPrimaryOutput("q", outs[0]); err != nil {
				t.Fatalf("Failed to add output: %v", err)
			}
		}
		nl := instance(t, build)
		before := len(nl.Nodes())
		err := NewElaborator(nl, nil, utils.Discard()).Run()
		if !errors.Is(err, netlist.ErrContract) {
			t.Errorf("%s: expected a contract violation, got %v", tt.kind, err)
			continue
		}
		if after := len(nl.Nodes()); after != before {
			t.Errorf("%s: expected the netlist to be untouched, node count went from %d to %d", tt.kind, before, after)
		}
		dut := nl.NodesOfKind(tt.kind)
		if len(dut) != 1 {
			t.Fatalf("%s: expected the node to survive, got %d", tt.kind, len(dut))
		}
		for slot, pin := range nl.Node(dut[0]).Inputs {
			if pin == netlist.NoPin {
				t.Errorf("%s: expected input slot %d to stay connected", tt.kind, slot)
			}
		}
		if err := nl.Check(); err != nil {
			t.Errorf("%s: expected a consistent netlist, got %v", tt.kind, err)
		}
	}
}

func TestFlipFlopMissingPort(t *testing.T) {
	build := func(t *testing.T, nl *netlist.Netlist) {
		buses := []netlist.Bus{
			{Name: "CLK", Nets: nl.AddPrimaryInput("clk", 1)},
			{Name: "D", Nets: nl.AddPrimaryInput("d", 1)},
		}
		_, outs, err := nl.Instantiate(netlist.OpADFF, "dut", buses, []netlist.Port{{Name: "Q", Width: 1}})
		if err != nil {
			t.Fatalf("Failed to instantiate: %v", err)
		}
		if _, err := nl.AddPrimaryOutput("q", outs[0]); err != nil {
			t.Fatalf("Failed to add output: %v", err)
		}
	}
	nl := instance(t, build)
	before := len(nl.Nodes())
	err := NewElaborator(nl, nil, utils.Discard()).Run()
	if !errors.Is(err, netlist.ErrMissingPort) {
		t.Fatalf("Expected a missing port error, got %v", err)
	}
	if after := len(nl.Nodes()); after != before {
		t.Errorf("Expected the netlist to be untouched, node count went from %d to %d", before, after)
	}
}

// latchState is the reference behavior of a latch: transparent while any
// of its triggers is active, holding otherwise
func latchState(kind netlist.Op, attr netlist.Attributes, q uint64, in stimulus, width int) uint64 {
	trigger := in.active("EN", attr.EnPolarity, width)
	next := in["D"] & mask(width)
	switch kind {
	case netlist.OpADLatch:
		arst := in.active("ARST", attr.ARstPolarity, width)
		trigger |= arst
		next = next&^arst | attr.ARstValue.Uint64()&arst
	case netlist.OpDLatchSR:
		set := in.active("SET", attr.SetPolarity, width)
		clr := in.active("CLR", attr.ClrPolarity, width)
		trigger |= set | clr
		next = (next | set) &^ clr
	}
	return q&^trigger | next&trigger
}

func TestLatches(t *testing.T) {
	const width = 2
	for _, kind := range []netlist.Op{netlist.OpDLatch, netlist.OpADLatch, netlist.OpDLatchSR} {
		for _, inverted := range []bool{false, true} {
			attr := flipFlopAttributes(inverted)
			attr.ClkEdge = netlist.Unspecified
			nl, _ := lowered(t, storage(kind, width, attr, nil), nil)
			for _, id := range nl.NodesOfKind(netlist.OpFF) {
				if edge := nl.Node(id).Attr.ClkEdge; edge != netlist.ActiveHigh {
					t.Errorf("%s: expected active-high level flip-flops, got %s", kind, edge)
				}
			}

			s := newSim(t, nl)
			rng := rand.New(rand.NewSource(int64(kind)))
			var q uint64
			for step := 0; step < 200; step++ {
				in := stimulus{}
				for _, name := range requiredPorts[kind] {
					in[name] = rng.Uint64() & 3
					if name != "D" {
						in[name] &= 1
					}
					s.SetInput(strings.ToLower(name), in[name])
				}
				if err := s.Settle(); err != nil {
					t.Fatalf("Settle failed: %v", err)
				}
				q = latchState(kind, attr, q, in, width)
				got, ok, _ := s.Output("q")
				if !ok || got != q {
					t.Fatalf("%s step %d with %v: expected q=%d, got %d (known=%v)", kind, step, in, q, got, ok)
				}
			}
		}
	}
}
