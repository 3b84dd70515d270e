package resolve

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/fyerfyer/hdl-elab/pkg/config"
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
	"github.com/fyerfyer/hdl-elab/pkg/utils"
)

func TestElaboratorSweeps(t *testing.T) {
	_, e := lowered(t, operator(netlist.OpPower, []int{3, 2}, 6, netlist.Attributes{}), nil)
	stats := e.Stats()

	// POWER, then its MULTIPLY chain and mux, then the split muxes
	if stats.Sweeps != 3 {
		t.Errorf("Expected 3 sweeps, got %d", stats.Sweeps)
	}
	if stats.Resolved[netlist.OpPower] != 1 {
		t.Errorf("Expected 1 POWER lowered, got %d", stats.Resolved[netlist.OpPower])
	}
	if stats.Resolved[netlist.OpMultiply] != 2 {
		t.Errorf("Expected 2 MULTIPLY lowered, got %d", stats.Resolved[netlist.OpMultiply])
	}
	if stats.Resolved[netlist.OpMultiPortMux] != 7 {
		t.Errorf("Expected 7 muxes lowered, got %d", stats.Resolved[netlist.OpMultiPortMux])
	}
}

func TestElaboratorSweepLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Elaboration.MaxSweeps = 2

	nl := instance(t, operator(netlist.OpPower, []int{3, 2}, 6, netlist.Attributes{}))
	err := NewElaborator(nl, cfg, utils.Discard()).Run()
	if !errors.Is(err, ErrSweepLimit) {
		t.Errorf("Expected the sweep limit error, got %v", err)
	}
}

func TestResolvedNodesCarryMark(t *testing.T) {
	nl := instance(t, operator(netlist.OpMultiPortMux, []int{1, 2, 2}, 2, netlist.Attributes{}))
	r := NewResolver(nl, nil, utils.Discard())
	id := nl.NodesOfKind(netlist.OpMultiPortMux)[0]

	var gen netlist.Generation
	mark := gen.Next()
	nl.Visit(id, mark)
	if err := r.Resolve(id, mark); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if nl.Node(id) != nil {
		t.Errorf("Expected the resolved node to be freed")
	}
	muxes := nl.NodesOfKind(netlist.OpMultiPortMux)
	if len(muxes) != 2 {
		t.Fatalf("Expected 2 single-bit muxes, got %d", len(muxes))
	}
	for _, m := range muxes {
		if !nl.Visited(m, mark) {
			t.Errorf("Expected %s to carry the sweep mark", nl.Node(m).Name)
		}
	}
	if err := nl.Check(); err != nil {
		t.Errorf("Expected a consistent netlist, got %v", err)
	}
}

func TestResolveFreedNode(t *testing.T) {
	nl := instance(t, operator(netlist.OpBitwiseAnd, []int{2, 2}, 2, netlist.Attributes{}))
	r := NewResolver(nl, nil, utils.Discard())
	id := nl.NodesOfKind(netlist.OpBitwiseAnd)[0]
	nl.Visit(id, 1)
	if err := r.Resolve(id, 1); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if err := r.Resolve(id, 2); !errors.Is(err, netlist.ErrFreed) {
		t.Errorf("Expected a freed handle error, got %v", err)
	}
}

func TestResolveUnvisitedNode(t *testing.T) {
	nl := instance(t, operator(netlist.OpBitwiseAnd, []int{2, 2}, 2, netlist.Attributes{}))
	r := NewResolver(nl, nil, utils.Discard())
	id := nl.NodesOfKind(netlist.OpBitwiseAnd)[0]
	before := len(nl.Nodes())

	var gen netlist.Generation
	stale := gen.Next()
	nl.Visit(id, stale)
	current := gen.Next()
	if current != gen.Current() {
		t.Fatalf("Expected the current generation to be %d, got %d", current, gen.Current())
	}
	if err := r.Resolve(id, current); !errors.Is(err, netlist.ErrContract) {
		t.Errorf("Expected a contract violation for a node from an earlier sweep, got %v", err)
	}
	if nl.Node(id) == nil || len(nl.Nodes()) != before {
		t.Errorf("Expected the node to be left in place")
	}

	nl.Visit(id, current)
	if err := r.Resolve(id, current); err != nil {
		t.Errorf("Expected the visited node to resolve, got %v", err)
	}
}

// TestMixedDesign elaborates an accumulator: a registered sum with enable
// and synchronous reset, its output compared through several cycles
func TestMixedDesign(t *testing.T) {
	const width = 4
	build := func(t *testing.T, nl *netlist.Netlist) {
		clk := nl.AddPrimaryInput("clk", 1)
		en := nl.AddPrimaryInput("en", 1)
		rst := nl.AddPrimaryInput("rst", 1)
		x := nl.AddPrimaryInput("x", width)

		// The adder reads placeholder nets that the register output is
		// joined into once it exists
		acc := make([]netlist.NetID, width)
		for i := range acc {
			acc[i] = nl.NewNet("")
		}
		_, sum, err := nl.Instantiate(netlist.OpAdd, "sum",
			[]netlist.Bus{{Name: "A", Nets: acc}, {Name: "B", Nets: x}},
			[]netlist.Port{{Name: "Y", Width: width}})
		if err != nil {
			t.Fatalf("Failed to instantiate adder: %v", err)
		}
		_, q, err := nl.Instantiate(netlist.OpSDFFE, "reg",
			[]netlist.Bus{{Name: "CLK", Nets: clk}, {Name: "D", Nets: sum[0]}, {Name: "EN", Nets: en}, {Name: "SRST", Nets: rst}},
			[]netlist.Port{{Name: "Q", Width: width}})
		if err != nil {
			t.Fatalf("Failed to instantiate register: %v", err)
		}
		for i := range acc {
			if err := nl.Join(acc[i], q[0][i]); err != nil {
				t.Fatalf("Failed to close the feedback loop: %v", err)
			}
		}
		if _, err := nl.AddPrimaryOutput("acc", acc); err != nil {
			t.Fatalf("Failed to add output: %v", err)
		}
	}

	nl, _ := lowered(t, build, nil)
	s := newSim(t, nl)
	steps := []struct {
		en, rst, x, want uint64
	}{
		{1, 1, 0, 0},
		{1, 0, 3, 3},
		{1, 0, 5, 8},
		{0, 0, 7, 8},
		{1, 0, 9, 1},
		{1, 1, 4, 0},
		{1, 0, 4, 4},
	}
	for i, st := range steps {
		s.SetInput("en", st.en)
		s.SetInput("rst", st.rst)
		s.SetInput("x", st.x)
		if err := s.Clock("clk"); err != nil {
			t.Fatalf("Clock failed: %v", err)
		}
		if got, ok, _ := s.Output("acc"); !ok || got != st.want {
			t.Errorf("Step %d: expected acc=%d, got %d (known=%v)", i, st.want, got, ok)
		}
	}
}
