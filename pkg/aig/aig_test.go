package aig

import (
	"testing"

	"github.com/go-air/gini/z"
	"github.com/pkg/errors"

	"github.com/fyerfyer/hdl-elab/pkg/netlist"
	"github.com/fyerfyer/hdl-elab/pkg/resolve"
	"github.com/fyerfyer/hdl-elab/pkg/utils"
)

func buildOperator(t *testing.T, kind netlist.Op, wa, wb, wy int) *netlist.Netlist {
	t.Helper()
	nl := netlist.New("dut")
	buses := []netlist.Bus{
		{Name: "A", Nets: nl.AddPrimaryInput("a", wa)},
		{Name: "B", Nets: nl.AddPrimaryInput("b", wb)},
	}
	_, outs, err := nl.Instantiate(kind, "op", buses, []netlist.Port{{Name: "Y", Width: wy}})
	if err != nil {
		t.Fatalf("Failed to instantiate %s: %v", kind, err)
	}
	if _, err := nl.AddPrimaryOutput("y", outs[0]); err != nil {
		t.Fatalf("Failed to add output: %v", err)
	}
	return nl
}

func elaborate(t *testing.T, nl *netlist.Netlist) {
	t.Helper()
	if err := resolve.NewElaborator(nl, nil, utils.Discard()).Run(); err != nil {
		t.Fatalf("Elaboration failed: %v", err)
	}
}

// evaluate sets the circuit inputs and returns the value of a bus
func evaluate(c *Circuit, inputs map[string]uint64, out []z.Lit) uint64 {
	vs := make([]bool, c.S.Len())
	for _, in := range c.Inputs {
		for i, m := range in.Lits {
			vs[m.Var()] = inputs[in.Name]>>uint(i)&1 == 1
		}
	}
	c.S.Eval(vs)
	var v uint64
	for i, m := range out {
		bit := vs[m.Var()]
		if !m.IsPos() {
			bit = !bit
		}
		if bit {
			v |= 1 << uint(i)
		}
	}
	return v
}

func TestAdderGraph(t *testing.T) {
	nl := buildOperator(t, netlist.OpAdd, 3, 3, 4)
	elaborate(t, nl)

	c, err := Build(nl, utils.Discard())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(c.Inputs) != 2 || len(c.Outputs) != 1 {
		t.Fatalf("Expected 2 inputs and 1 output, got %d and %d", len(c.Inputs), len(c.Outputs))
	}
	for a := uint64(0); a < 8; a++ {
		for b := uint64(0); b < 8; b++ {
			got := evaluate(c, map[string]uint64{"a": a, "b": b}, c.Outputs[0].Lits)
			if got != a+b {
				t.Errorf("Expected %d+%d = %d, got %d", a, b, a+b, got)
			}
		}
	}
}

func TestDividerGraph(t *testing.T) {
	nl := buildOperator(t, netlist.OpModulo, 3, 2, 3)
	elaborate(t, nl)

	c, err := Build(nl, utils.Discard())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for a := uint64(0); a < 8; a++ {
		for b := uint64(1); b < 4; b++ {
			got := evaluate(c, map[string]uint64{"a": a, "b": b}, c.Outputs[0].Lits)
			if got != a%b {
				t.Errorf("Expected %d %% %d = %d, got %d", a, b, a%b, got)
			}
		}
	}
}

// buildRegister creates an elaborated 3-bit DFF reading clk and d
func buildRegister(t *testing.T) *netlist.Netlist {
	t.Helper()
	nl := netlist.New("reg")
	buses := []netlist.Bus{
		{Name: "CLK", Nets: nl.AddPrimaryInput("clk", 1)},
		{Name: "D", Nets: nl.AddPrimaryInput("d", 3)},
	}
	_, outs, err := nl.Instantiate(netlist.OpDFF, "r", buses, []netlist.Port{{Name: "Q", Width: 3}})
	if err != nil {
		t.Fatalf("Failed to instantiate: %v", err)
	}
	if _, err := nl.AddPrimaryOutput("q", outs[0]); err != nil {
		t.Fatalf("Failed to add output: %v", err)
	}
	elaborate(t, nl)
	return nl
}

func TestFlipFlopsBecomeLatches(t *testing.T) {
	nl := buildRegister(t)
	c, err := Build(nl, utils.Discard())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if n := len(c.Latches()); n != 3 {
		t.Fatalf("Expected 3 latches, got %d", n)
	}
	for _, m := range c.Latches() {
		if c.S.Init(m) != c.S.F {
			t.Errorf("Expected latches to power up at zero")
		}
	}
	for i, m := range c.Outputs[0].Lits {
		if m != c.Latches()[i] {
			t.Errorf("Expected output bit %d to read latch %d", i, i)
		}
	}
}

// TestLatchesFollowClock checks that a latch loads D only in steps where
// its clock is at the active level
func TestLatchesFollowClock(t *testing.T) {
	c, err := Build(buildRegister(t), utils.Discard())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	next := make([]z.Lit, len(c.Latches()))
	for i, m := range c.Latches() {
		next[i] = c.S.Next(m)
	}
	if v := evaluate(c, map[string]uint64{"clk": 0, "d": 5}, next); v != 0 {
		t.Errorf("Expected the latches to hold 0 with the clock low, got %d", v)
	}
	if v := evaluate(c, map[string]uint64{"clk": 1, "d": 5}, next); v != 5 {
		t.Errorf("Expected the latches to load 5 with the clock high, got %d", v)
	}
}

func TestUnloweredNodeRejected(t *testing.T) {
	nl := buildOperator(t, netlist.OpMultiply, 2, 2, 4)
	_, err := Build(nl, utils.Discard())
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected an unsupported node error, got %v", err)
	}
}

func TestSharedInputs(t *testing.T) {
	first := buildOperator(t, netlist.OpBitwiseXor, 2, 2, 2)
	second := buildOperator(t, netlist.OpBitwiseAnd, 2, 2, 2)
	elaborate(t, first)
	elaborate(t, second)

	c := New(utils.Discard())
	if _, err := c.Add(first); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := c.Add(second); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(c.Inputs) != 2 {
		t.Errorf("Expected inputs to be shared by name, got %d inputs", len(c.Inputs))
	}

	wide := buildOperator(t, netlist.OpBitwiseOr, 3, 2, 3)
	elaborate(t, wide)
	if _, err := c.Add(wide); err == nil {
		t.Errorf("Expected an error for an input with a different width")
	}
}
