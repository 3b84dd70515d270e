package resolve

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/fyerfyer/hdl-elab/pkg/config"
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
	"github.com/fyerfyer/hdl-elab/pkg/sim"
	"github.com/fyerfyer/hdl-elab/pkg/utils"
)

// design adds primary IOs and the nodes under test to an empty netlist
type design func(t *testing.T, nl *netlist.Netlist)

// operator creates a design with one node of kind reading primary inputs
// in0, in1, ... and driving primary output y
func operator(kind netlist.Op, widths []int, wy int, attr netlist.Attributes) design {
	return func(t *testing.T, nl *netlist.Netlist) {
		t.Helper()
		names := kind.PortNames(len(widths))
		buses := make([]netlist.Bus, len(widths))
		for i, w := range widths {
			buses[i] = netlist.Bus{Name: names[i], Nets: nl.AddPrimaryInput(fmt.Sprintf("in%d", i), w)}
		}
		id, outs, err := nl.Instantiate(kind, "dut", buses, []netlist.Port{{Name: "Y", Width: wy}})
		if err != nil {
			t.Fatalf("Failed to instantiate %s: %v", kind, err)
		}
		nl.Node(id).Attr = attr
		if _, err := nl.AddPrimaryOutput("y", outs[0]); err != nil {
			t.Fatalf("Failed to add output: %v", err)
		}
	}
}

// instance builds a fresh netlist from a design
func instance(t *testing.T, build design) *netlist.Netlist {
	t.Helper()
	nl := netlist.New("dut")
	build(t, nl)
	return nl
}

// lowered builds a design and elaborates it, checking the graph after
// every sweep
func lowered(t *testing.T, build design, cfg *config.Config) (*netlist.Netlist, *Elaborator) {
	t.Helper()
	nl := instance(t, build)
	e := NewElaborator(nl, cfg, utils.Discard())
	e.Verify = true
	if err := e.Run(); err != nil {
		t.Fatalf("Elaboration failed: %v", err)
	}
	for _, id := range nl.Nodes() {
		if n := nl.Node(id); e.Resolver.Pending(n) {
			t.Fatalf("Expected no compound nodes after elaboration, found %s", n)
		}
	}
	return nl, e
}

type port struct {
	name  string
	width int
}

func inputsOf(nl *netlist.Netlist) []port {
	var ports []port
	for _, id := range nl.Inputs {
		n := nl.Node(id)
		ports = append(ports, port{n.Name, n.OutputWidth()})
	}
	return ports
}

func outputsOf(nl *netlist.Netlist) []string {
	var names []string
	for _, id := range nl.Outputs {
		names = append(names, nl.Node(id).Name)
	}
	return names
}

func newSim(t *testing.T, nl *netlist.Netlist) *sim.Simulator {
	t.Helper()
	s, err := sim.New(nl, utils.Discard())
	if err != nil {
		t.Fatalf("Failed to create simulator: %v", err)
	}
	return s
}

// compareCombinational drives the reference and the lowered netlist with
// the same vectors and compares every output the reference knows. Small
// input spaces are covered exhaustively, larger ones by random vectors.
func compareCombinational(t *testing.T, build design, cfg *config.Config) *netlist.Netlist {
	t.Helper()
	ref := instance(t, build)
	dut, _ := lowered(t, build, cfg)
	rs, ds := newSim(t, ref), newSim(t, dut)

	inputs := inputsOf(ref)
	total := 0
	for _, in := range inputs {
		total += in.width
	}
	count := 1 << uint(total)
	exhaustive := total <= 14
	if !exhaustive {
		count = 4000
	}
	rng := rand.New(rand.NewSource(int64(total)))

	failures := 0
	for vector := 0; vector < count && failures < 5; vector++ {
		var desc []string
		offset := 0
		for _, in := range inputs {
			mask := uint64(1)<<uint(in.width) - 1
			v := rng.Uint64() & mask
			if exhaustive {
				v = uint64(vector) >> uint(offset) & mask
			}
			offset += in.width
			rs.SetInput(in.name, v)
			ds.SetInput(in.name, v)
			desc = append(desc, fmt.Sprintf("%s=%d", in.name, v))
		}
		if err := rs.Settle(); err != nil {
			t.Fatalf("Reference did not settle: %v", err)
		}
		if err := ds.Settle(); err != nil {
			t.Fatalf("Lowered netlist did not settle: %v", err)
		}
		for _, name := range outputsOf(ref) {
			want, known, _ := rs.Output(name)
			if !known {
				continue
			}
			got, ok, _ := ds.Output(name)
			if !ok || got != want {
				t.Errorf("For %s: expected %s=%d, got %d (known=%v)", strings.Join(desc, " "), name, want, got, ok)
				failures++
			}
		}
	}
	return dut
}

// pulse applies one active edge of the given kind to a clock input
func pulse(t *testing.T, s *sim.Simulator, name string, edge netlist.Sensitivity) {
	t.Helper()
	idle, active := uint64(0), uint64(1)
	if edge == netlist.FallingEdge {
		idle, active = 1, 0
	}
	s.SetInput(name, idle)
	if err := s.Settle(); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	s.SetInput(name, active)
	if err := s.Settle(); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
}
