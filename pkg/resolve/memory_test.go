package resolve

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"

	"github.com/fyerfyer/hdl-elab/pkg/config"
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
	"github.com/fyerfyer/hdl-elab/pkg/utils"
)

// ram creates a design with one memory; every port is a primary input or
// output of the same name
func ram(addrWidth, dataWidth int, dual bool) design {
	return func(t *testing.T, nl *netlist.Netlist) {
		t.Helper()
		ports := singlePort
		if dual {
			ports = dualPort
		}
		var buses []netlist.Bus
		var outs []netlist.Port
		for _, p := range ports {
			buses = append(buses,
				netlist.Bus{Name: p.addr, Nets: nl.AddPrimaryInput(p.addr, addrWidth)},
				netlist.Bus{Name: p.data, Nets: nl.AddPrimaryInput(p.data, dataWidth)},
				netlist.Bus{Name: p.we, Nets: nl.AddPrimaryInput(p.we, 1)})
			outs = append(outs, netlist.Port{Name: p.out, Width: dataWidth})
		}
		buses = append(buses, netlist.Bus{Name: "clk", Nets: nl.AddPrimaryInput("clk", 1)})

		_, nets, err := nl.Instantiate(netlist.OpMemory, "ram", buses, outs)
		if err != nil {
			t.Fatalf("Failed to instantiate memory: %v", err)
		}
		for i, p := range ports {
			if _, err := nl.AddPrimaryOutput(p.out, nets[i]); err != nil {
				t.Fatalf("Failed to add output: %v", err)
			}
		}
	}
}

// compareTrace clocks the unsplit memory and its legalized form with the
// same random accesses and compares the read data after every edge
func compareTrace(t *testing.T, build design, cfg *config.Config) *netlist.Netlist {
	t.Helper()
	ref := instance(t, build)
	dut, _ := lowered(t, build, cfg)
	rs, ds := newSim(t, ref), newSim(t, dut)
	rng := rand.New(rand.NewSource(3))

	for step := 0; step < 300; step++ {
		for _, in := range inputsOf(ref) {
			if in.name == "clk" {
				continue
			}
			v := rng.Uint64() & (uint64(1)<<uint(in.width) - 1)
			rs.SetInput(in.name, v)
			ds.SetInput(in.name, v)
		}
		if err := rs.Clock("clk"); err != nil {
			t.Fatalf("Reference clock failed: %v", err)
		}
		if err := ds.Clock("clk"); err != nil {
			t.Fatalf("Clock failed: %v", err)
		}
		for _, name := range outputsOf(ref) {
			want, _, _ := rs.Output(name)
			got, ok, _ := ds.Output(name)
			if !ok || got != want {
				t.Fatalf("Step %d: expected %s=%d, got %d (known=%v)", step, name, want, got, ok)
			}
		}
	}
	return dut
}

func memoryShapes(nl *netlist.Netlist) [][2]int {
	var shapes [][2]int
	for _, id := range nl.NodesOfKind(netlist.OpMemory) {
		n := nl.Node(id)
		addr := n.InputPorts[0].Width
		data := n.InputPorts[1].Width
		shapes = append(shapes, [2]int{addr, data})
	}
	return shapes
}

func TestMemoryDepthSplit(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.SinglePort = &config.HardBlock{AddrWidth: 2, DataWidth: 3}

	nl := compareTrace(t, ram(4, 3, false), cfg)
	shapes := memoryShapes(nl)
	if len(shapes) != 4 {
		t.Fatalf("Expected 4 memories, got %d", len(shapes))
	}
	for _, s := range shapes {
		if s != [2]int{2, 3} {
			t.Errorf("Expected 2x3 memories, got %dx%d", s[0], s[1])
		}
	}
}

func TestMemoryWidthSplit(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.SinglePort = &config.HardBlock{AddrWidth: 3, DataWidth: 2}

	nl := compareTrace(t, ram(3, 5, false), cfg)
	shapes := memoryShapes(nl)
	if len(shapes) != 3 {
		t.Fatalf("Expected 3 memories, got %d", len(shapes))
	}
	for _, s := range shapes {
		if s != [2]int{3, 2} {
			t.Errorf("Expected every chunk padded to 3x2, got %dx%d", s[0], s[1])
		}
	}
}

func TestMemoryPadded(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.SinglePort = &config.HardBlock{AddrWidth: 4, DataWidth: 4}

	nl := compareTrace(t, ram(2, 3, false), cfg)
	shapes := memoryShapes(nl)
	if len(shapes) != 1 || shapes[0] != [2]int{4, 4} {
		t.Errorf("Expected one 4x4 memory, got %v", shapes)
	}
}

func TestDualPortMemorySplit(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.DualPort = &config.HardBlock{AddrWidth: 2, DataWidth: 2}

	nl := compareTrace(t, ram(3, 3, true), cfg)
	shapes := memoryShapes(nl)
	if len(shapes) != 4 {
		t.Fatalf("Expected 4 memories, got %d", len(shapes))
	}
	for _, s := range shapes {
		if s != [2]int{2, 2} {
			t.Errorf("Expected 2x2 memories, got %dx%d", s[0], s[1])
		}
	}
}

func TestSoftMemory(t *testing.T) {
	nl := compareTrace(t, ram(2, 3, false), config.Default())
	counts := nl.CountByKind()
	if counts[netlist.OpMemory] != 0 {
		t.Errorf("Expected no memory left, got %d", counts[netlist.OpMemory])
	}
	// Four 3-bit words plus the 3-bit read register
	if counts[netlist.OpFF] != 15 {
		t.Errorf("Expected 15 flip-flops, got %d", counts[netlist.OpFF])
	}
}

func TestMemoryKeptWithoutHardBlock(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.SoftLogicCutoff = 2

	nl, _ := lowered(t, ram(3, 2, false), cfg)
	if n := nl.CountByKind()[netlist.OpMemory]; n != 1 {
		t.Errorf("Expected the memory to be kept, got %d memories", n)
	}
}

func TestMemoryTooLarge(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.SinglePort = &config.HardBlock{AddrWidth: 2, DataWidth: 2}
	cfg.Memory.SplitDepth = 4

	nl := instance(t, ram(3, 2, false))
	err := NewElaborator(nl, cfg, utils.Discard()).Run()
	if !errors.Is(err, netlist.ErrContract) {
		t.Errorf("Expected a contract error, got %v", err)
	}
}

func TestMemoryMissingPort(t *testing.T) {
	build := func(t *testing.T, nl *netlist.Netlist) {
		buses := []netlist.Bus{
			{Name: "addr", Nets: nl.AddPrimaryInput("addr", 3)},
			{Name: "data", Nets: nl.AddPrimaryInput("data", 2)},
			{Name: "clk", Nets: nl.AddPrimaryInput("clk", 1)},
		}
		_, outs, err := nl.Instantiate(netlist.OpMemory, "ram", buses, []netlist.Port{{Name: "out", Width: 2}})
		if err != nil {
			t.Fatalf("Failed to instantiate: %v", err)
		}
		if _, err := nl.AddPrimaryOutput("out", outs[0]); err != nil {
			t.Fatalf("Failed to add output: %v", err)
		}
	}
	cfg := config.Default()
	cfg.Memory.SinglePort = &config.HardBlock{AddrWidth: 2, DataWidth: 2}

	nl := instance(t, build)
	before := len(nl.Nodes())
	err := NewElaborator(nl, cfg, utils.Discard()).Run()
	if !errors.Is(err, netlist.ErrMissingPort) {
		t.Fatalf("Expected a missing port error, got %v", err)
	}
	if after := len(nl.Nodes()); after != before {
		t.Errorf("Expected the netlist to be untouched, node count went from %d to %d", before, after)
	}
}
