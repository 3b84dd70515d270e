package export

import (
	"io"

	"github.com/go-air/gini/logic/aiger"
	"github.com/go-air/gini/z"
	"github.com/pkg/errors"

	"github.com/fyerfyer/hdl-elab/pkg/aig"
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
	"github.com/fyerfyer/hdl-elab/pkg/utils"
)

// MakeAIGER translates a netlist into an AIGER object with named inputs,
// outputs and latches. One input or output is created per bus bit.
func MakeAIGER(nl *netlist.Netlist, logger *utils.Logger) (*aiger.T, error) {
	c, err := aig.Build(nl, logger)
	if err != nil {
		return nil, err
	}

	var outs []z.Lit
	var outNames []string
	for _, sig := range c.Outputs {
		for bit, m := range sig.Lits {
			outs = append(outs, m)
			outNames = append(outNames, bitName(sig.Name, bit, len(sig.Lits)))
		}
	}
	g := aiger.MakeFor(c.S, outs...)

	index := 0
	for _, sig := range c.Inputs {
		for bit := range sig.Lits {
			if err := g.NameInput(index, bitName(sig.Name, bit, len(sig.Lits))); err != nil {
				return nil, errors.Wrapf(err, "naming input %s", sig.Name)
			}
			index++
		}
	}
	for i, name := range outNames {
		if err := g.NameOutput(i, name); err != nil {
			return nil, errors.Wrapf(err, "naming output %s", name)
		}
	}
	for i, name := range c.LatchNames {
		if err := g.NameLatch(i, name); err != nil {
			return nil, errors.Wrapf(err, "naming latch %s", name)
		}
	}
	return g, nil
}

// WriteAIGER writes the and-inverter graph of a netlist in the ASCII
// (aag) or binary (aig) AIGER format
func WriteAIGER(w io.Writer, nl *netlist.Netlist, binary bool, logger *utils.Logger) error {
	g, err := MakeAIGER(nl, logger)
	if err != nil {
		return err
	}
	if binary {
		return errors.Wrap(g.WriteBinary(w), "writing AIGER")
	}
	return errors.Wrap(g.WriteAscii(w), "writing AIGER")
}
