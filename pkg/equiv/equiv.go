// Package equiv checks two elaborated netlists for equivalence with a SAT
// miter over a bounded number of clock cycles.
package equiv

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
	"github.com/pkg/errors"

	"github.com/fyerfyer/hdl-elab/pkg/aig"
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
	"github.com/fyerfyer/hdl-elab/pkg/utils"
)

// Trace is one input assignment per cycle, keyed by primary input name
type Trace []map[string]uint64

// String formats the trace one cycle per line
func (t Trace) String() string {
	var sb strings.Builder
	for cycle, values := range t {
		names := make([]string, 0, len(values))
		for name := range values {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(&sb, "cycle %d:", cycle)
		for _, name := range names {
			fmt.Fprintf(&sb, " %s=%d", name, values[name])
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Result is the outcome of an equivalence check
type Result struct {
	Equivalent bool
	Frames     int
	Output     string // First output seen to differ
	Cycle      int    // Cycle at which it differs
	Trace      Trace  // Inputs reaching the difference
}

// Checker compares netlists
type Checker struct {
	Frames int // Clock cycles unrolled; 1 checks combinational equivalence
	Logger *utils.Logger
}

// NewChecker creates a checker unrolling the given number of cycles
func NewChecker(frames int, logger *utils.Logger) *Checker {
	if frames < 1 {
		frames = 1
	}
	if logger == nil {
		logger = utils.DefaultLogger
	}
	return &Checker{Frames: frames, Logger: logger}
}

type pair struct {
	name   string
	bit    int
	aLit   z.Lit
	bLit   z.Lit
	differ z.Lit
}

// Check builds both netlists over shared primary inputs and asks the
// solver for an input sequence that makes any output bit differ within
// the unrolled cycles. Outputs are matched by name and width.
func (c *Checker) Check(a, b *netlist.Netlist) (*Result, error) {
	circuit := aig.New(c.Logger)
	outA, err := circuit.Add(a)
	if err != nil {
		return nil, errors.Wrapf(err, "translating %s", a.Name)
	}
	outB, err := circuit.Add(b)
	if err != nil {
		return nil, errors.Wrapf(err, "translating %s", b.Name)
	}

	byName := make(map[string]aig.Signal, len(outB))
	for _, sig := range outB {
		byName[sig.Name] = sig
	}
	var pairs []pair
	for _, sig := range outA {
		other, ok := byName[sig.Name]
		if !ok {
			return nil, errors.Errorf("output %s exists only in %s", sig.Name, a.Name)
		}
		if len(other.Lits) != len(sig.Lits) {
			return nil, errors.Errorf("output %s is %d bits in %s and %d bits in %s",
				sig.Name, len(sig.Lits), a.Name, len(other.Lits), b.Name)
		}
		for i := range sig.Lits {
			pairs = append(pairs, pair{name: sig.Name, bit: i, aLit: sig.Lits[i], bLit: other.Lits[i]})
		}
		delete(byName, sig.Name)
	}
	if len(byName) > 0 {
		extra := make([]string, 0, len(byName))
		for name := range byName {
			extra = append(extra, name)
		}
		sort.Strings(extra)
		return nil, errors.Errorf("output %s exists only in %s", extra[0], b.Name)
	}

	roll := logic.NewRoll(circuit.S)
	// Input literals of every frame are created before the miter so the
	// counterexample can be read back for all of them
	inputs := make([][][]z.Lit, c.Frames)
	for d := range inputs {
		inputs[d] = make([][]z.Lit, len(circuit.Inputs))
		for i, in := range circuit.Inputs {
			for _, m := range in.Lits {
				inputs[d][i] = append(inputs[d][i], roll.At(m, d))
			}
		}
	}

	frames := make([][]pair, c.Frames)
	var differ []z.Lit
	for d := range frames {
		for _, p := range pairs {
			p.differ = roll.C.Xor(roll.At(p.aLit, d), roll.At(p.bLit, d))
			frames[d] = append(frames[d], p)
			differ = append(differ, p.differ)
		}
	}
	miter := roll.C.Ors(differ...)
	c.Logger.Debug("Miter over %d output bits and %d cycles, %d nodes", len(pairs), c.Frames, roll.C.Len())

	result := &Result{Frames: c.Frames}
	if miter == roll.C.F {
		result.Equivalent = true
		return result, nil
	}

	g := gini.New()
	roll.C.ToCnfFrom(g, miter)
	g.Assume(miter)
	switch g.Solve() {
	case -1:
		result.Equivalent = true
		return result, nil
	case 1:
	default:
		return nil, errors.New("solver gave up")
	}

	value := func(m z.Lit) bool {
		if m == roll.C.T {
			return true
		}
		if m == roll.C.F || m.Var() > g.MaxVar() {
			return false
		}
		return g.Value(m)
	}
	for d := range frames {
		values := make(map[string]uint64, len(circuit.Inputs))
		for i, in := range circuit.Inputs {
			var v uint64
			for bit, m := range inputs[d][i] {
				if bit < 64 && value(m) {
					v |= 1 << uint(bit)
				}
			}
			values[in.Name] = v
		}
		result.Trace = append(result.Trace, values)
	}
	for d, ps := range frames {
		for _, p := range ps {
			if value(p.differ) {
				result.Output = fmt.Sprintf("%s[%d]", p.name, p.bit)
				result.Cycle = d
				result.Trace = result.Trace[:d+1]
				return result, nil
			}
		}
	}
	return result, nil
}
