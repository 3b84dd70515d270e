package netlist

import (
	"testing"

	"github.com/pkg/errors"
)

// buildReconvergent creates y = OR(n1, NOT(n1)) with n1 = AND(a, b)
func buildReconvergent(t *testing.T) (*Netlist, []NodeID, []NetID) {
	t.Helper()
	nl := New("reconvergent")
	a := nl.AddPrimaryInput("a", 1)
	b := nl.AddPrimaryInput("b", 1)
	g1, n1, err := nl.Instantiate(OpAnd, "g1", []Bus{{"A", a}, {"B", b}}, []Port{{"Y", 1}})
	if err != nil {
		t.Fatalf("Failed to instantiate g1: %v", err)
	}
	g2, n2, err := nl.Instantiate(OpNot, "g2", []Bus{{"A", n1[0]}}, []Port{{"Y", 1}})
	if err != nil {
		t.Fatalf("Failed to instantiate g2: %v", err)
	}
	g3, y, err := nl.Instantiate(OpOr, "g3", []Bus{{"A", n1[0]}, {"B", n2[0]}}, []Port{{"Y", 1}})
	if err != nil {
		t.Fatalf("Failed to instantiate g3: %v", err)
	}
	if _, err := nl.AddPrimaryOutput("y", y[0]); err != nil {
		t.Fatalf("Failed to add output: %v", err)
	}
	return nl, []NodeID{g1, g2, g3}, []NetID{a[0], n1[0][0], y[0][0]}
}

func TestTopologyLevels(t *testing.T) {
	nl, gates, _ := buildReconvergent(t)
	topo := NewTopology(nl)
	if err := topo.Analyze(); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	for i, id := range gates {
		if got := topo.LevelMap[id]; got != i+1 {
			t.Errorf("Expected %s at level %d, got %d", nl.Node(id).Name, i+1, got)
		}
	}
	// The output node sits above the last gate
	if topo.MaxLevel != 4 {
		t.Errorf("Expected max level 4, got %d", topo.MaxLevel)
	}
	pos := make(map[NodeID]int)
	for i, id := range topo.Order {
		pos[id] = i
	}
	if pos[gates[0]] > pos[gates[1]] || pos[gates[1]] > pos[gates[2]] {
		t.Errorf("Expected gates in topological order, got %v", topo.Order)
	}
}

func TestFanoutPoints(t *testing.T) {
	nl, _, nets := buildReconvergent(t)
	topo := NewTopology(nl)
	if err := topo.Analyze(); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(topo.FanoutPoints) != 1 || topo.FanoutPoints[0] != nets[1] {
		t.Errorf("Expected the AND output as the only fanout point, got %v", topo.FanoutPoints)
	}
}

func TestFindPathBetween(t *testing.T) {
	nl, _, nets := buildReconvergent(t)
	topo := NewTopology(nl)

	path := topo.FindPathBetween(nets[0], nets[2])
	if len(path) != 3 || path[0] != nets[0] || path[1] != nets[1] || path[2] != nets[2] {
		t.Errorf("Expected the shortest path a -> n1 -> y, got %v", path)
	}
	if path := topo.FindPathBetween(nets[2], nets[0]); path != nil {
		t.Errorf("Expected no path against the signal flow, got %v", path)
	}
}

func TestLevelsRejectLoop(t *testing.T) {
	nl := New("loop")
	a := nl.AddPrimaryInput("a", 1)
	back := nl.NewNet("back")
	_, n1, err := nl.Instantiate(OpAnd, "g1", []Bus{{"A", a}, {"B", []NetID{back}}}, []Port{{"Y", 1}})
	if err != nil {
		t.Fatalf("Failed to instantiate g1: %v", err)
	}
	_, n2, err := nl.Instantiate(OpNot, "g2", []Bus{{"A", n1[0]}}, []Port{{"Y", 1}})
	if err != nil {
		t.Fatalf("Failed to instantiate g2: %v", err)
	}
	// Closing the loop through two gates passes the single-node check in Join
	if err := nl.Join(back, n2[0][0]); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	err = NewTopology(nl).ComputeLevels()
	if !errors.Is(err, ErrCombinationalLoop) {
		t.Errorf("Expected a combinational loop error, got %v", err)
	}
}
