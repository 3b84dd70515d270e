package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/fyerfyer/hdl-elab/pkg/netlist"
)

// Regular expressions for parsing the netlist format
var (
	modelRegex  = regexp.MustCompile(`^MODEL\((\S+)\)$`)
	inputRegex  = regexp.MustCompile(`^INPUT\(([A-Za-z_][\w$.]*)(?:\[(\d+)\])?\)$`)
	outputRegex = regexp.MustCompile(`^OUTPUT\(([A-Za-z_][\w$.]*)(?:\s*=\s*(.+))?\)$`)
	nodeRegex   = regexp.MustCompile(`^(.+?)\s*=\s*(\w+)\((.*)\)\s*(?:\{(.*)\})?$`)
	targetRegex = regexp.MustCompile(`^(?:(\w+)\s*=\s*)?([A-Za-z_][\w$.]*)(?:\[(\d+)\])?$`)
	namedRegex  = regexp.MustCompile(`^(\w+)\s*=\s*(.+)$`)
	busRegex    = regexp.MustCompile(`^([A-Za-z_][\w$.]*)(?:\[(\d+)(?::(\d+))?\])?$`)
	numberRegex = regexp.MustCompile(`^(\d+)'([bBdDhH])([0-9a-fA-FxX_]+)$`)
)

// statement is one non-empty source line
type statement struct {
	line int
	text string
}

// target is one bus driven by a node
type target struct {
	port  string
	name  string
	width int
}

// netlistParser holds the state of reading one netlist
type netlistParser struct {
	file  string
	nl    *netlist.Netlist
	buses map[string][]netlist.NetID
	lines map[string]int // Line declaring each bus
}

// ParseNetlistFile reads a netlist description and returns the netlist.
// The netlist is named after the file unless a MODEL line names it.
//
// The format is line based; '#' starts a comment:
//
//	INPUT(a[4])
//	OUTPUT(y)
//	OUTPUT(low = y[1:0])
//	y[5] = ADD(A=a, B={1'b0, b[2:0]})
//	q[4] = SDFFE(CLK=clk, D=y[3:0], EN=en, SRST=rst) {clk=rising, srst_value=0x3}
//	out1=r1[8], out2=r2[8] = MEMORY(addr1=a1, addr2=a2, ...)
//
// Buses may be referenced before the line that drives them.
func ParseNetlistFile(filename string) (*netlist.Netlist, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return ParseNetlist(file, filename)
}

// ParseNetlist reads a netlist description from r. The file name is used
// in error locations and node provenance.
func ParseNetlist(r io.Reader, filename string) (*netlist.Netlist, error) {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	p := &netlistParser{
		file:  filename,
		nl:    netlist.New(name),
		buses: make(map[string][]netlist.NetID),
		lines: make(map[string]int),
	}

	var stmts []statement
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		if text = strings.TrimSpace(text); text != "" {
			stmts = append(stmts, statement{line: n, text: text})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading file")
	}

	// First pass: declare every bus so nodes can read buses driven later
	for _, st := range stmts {
		if err := p.declare(st); err != nil {
			return nil, err
		}
	}

	// Second pass: create nodes and outputs
	for _, st := range stmts {
		var err error
		switch {
		case outputRegex.MatchString(st.text):
			err = p.output(st)
		case nodeRegex.MatchString(st.text):
			err = p.node(st)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := p.nl.Check(); err != nil {
		return nil, errors.Wrap(err, filename)
	}
	return p.nl, nil
}

// errorf returns an error located at a line of the file
func (p *netlistParser) errorf(line int, format string, args ...interface{}) error {
	return errors.Errorf("%s:%d: %s", p.file, line, fmt.Sprintf(format, args...))
}

// wrap locates an error at a line of the file
func (p *netlistParser) wrap(err error, line int) error {
	return errors.Wrapf(err, "%s:%d", p.file, line)
}

func (p *netlistParser) define(name string, nets []netlist.NetID, line int) error {
	if prev, exists := p.lines[name]; exists {
		return p.errorf(line, "bus %s already declared at line %d", name, prev)
	}
	p.buses[name] = nets
	p.lines[name] = line
	return nil
}

func (p *netlistParser) declare(st statement) error {
	if matches := modelRegex.FindStringSubmatch(st.text); matches != nil {
		p.nl.Name = matches[1]
		return nil
	}

	if matches := inputRegex.FindStringSubmatch(st.text); matches != nil {
		width, err := p.width(matches[2], st.line)
		if err != nil {
			return err
		}
		if _, exists := p.lines[matches[1]]; exists {
			return p.errorf(st.line, "bus %s already declared at line %d", matches[1], p.lines[matches[1]])
		}
		return p.define(matches[1], p.nl.AddPrimaryInput(matches[1], width), st.line)
	}

	if outputRegex.MatchString(st.text) {
		return nil
	}

	matches := nodeRegex.FindStringSubmatch(st.text)
	if matches == nil {
		return p.errorf(st.line, "unrecognized statement %q", st.text)
	}
	targets, err := p.targets(matches[1], st.line)
	if err != nil {
		return err
	}
	for _, t := range targets {
		nets := make([]netlist.NetID, t.width)
		for i := range nets {
			if t.width == 1 {
				nets[i] = p.nl.NewNet(t.name)
			} else {
				nets[i] = p.nl.NewNet(fmt.Sprintf("%s[%d]", t.name, i))
			}
		}
		if err := p.define(t.name, nets, st.line); err != nil {
			return err
		}
	}
	return nil
}

func (p *netlistParser) width(text string, line int) (int, error) {
	if text == "" {
		return 1, nil
	}
	width, err := strconv.Atoi(text)
	if err != nil || width < 1 {
		return 0, p.errorf(line, "invalid width %q", text)
	}
	return width, nil
}

// targets parses the driven buses on the left of a node statement
func (p *netlistParser) targets(text string, line int) ([]target, error) {
	var targets []target
	for _, item := range splitTopLevel(text) {
		matches := targetRegex.FindStringSubmatch(item)
		if matches == nil {
			return nil, p.errorf(line, "invalid output %q", item)
		}
		width, err := p.width(matches[3], line)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target{port: matches[1], name: matches[2], width: width})
	}
	return targets, nil
}

// node instantiates a node statement and joins its outputs onto the
// declared buses
func (p *netlistParser) node(st statement) error {
	matches := nodeRegex.FindStringSubmatch(st.text)
	kind, ok := netlist.ParseOp(matches[2])
	if !ok || kind == netlist.OpInput || kind == netlist.OpOutput {
		return p.errorf(st.line, "unknown operator %s", matches[2])
	}

	targets, err := p.targets(matches[1], st.line)
	if err != nil {
		return err
	}
	outNames := kind.OutputNames(len(targets))
	outputs := make([]netlist.Port, len(targets))
	for i, t := range targets {
		outputs[i] = netlist.Port{Name: outNames[i], Width: t.width}
		if t.port != "" {
			outputs[i].Name = t.port
		}
	}

	inputs, err := p.arguments(kind, matches[3], st.line)
	if err != nil {
		return err
	}
	attr, err := p.attributes(matches[4], st.line)
	if err != nil {
		return err
	}

	id, outs, err := p.nl.Instantiate(kind, targets[0].name, inputs, outputs)
	if err != nil {
		return p.wrap(err, st.line)
	}
	n := p.nl.Node(id)
	n.Attr = attr
	n.Loc = netlist.Loc{File: p.file, Line: st.line}

	for i, t := range targets {
		for bit, net := range p.buses[t.name] {
			if err := p.nl.Join(net, outs[i][bit]); err != nil {
				return p.wrap(err, st.line)
			}
		}
	}
	return nil
}

// arguments parses the input buses of a node, either all positional or
// all named
func (p *netlistParser) arguments(kind netlist.Op, text string, line int) ([]netlist.Bus, error) {
	items := splitTopLevel(text)
	if len(items) == 0 {
		return nil, nil
	}
	names := kind.PortNames(len(items))
	buses := make([]netlist.Bus, len(items))
	named := 0
	for i, item := range items {
		buses[i].Name = names[i]
		if matches := namedRegex.FindStringSubmatch(item); matches != nil {
			buses[i].Name = matches[1]
			item = matches[2]
			named++
		}
		nets, err := p.expr(item, line)
		if err != nil {
			return nil, err
		}
		buses[i].Nets = nets
	}
	if named != 0 && named != len(items) {
		return nil, p.errorf(line, "mixed named and positional ports")
	}
	return buses, nil
}

// expr parses a bus expression: a name, a bit or slice of a name, a sized
// constant or a {msb, ..., lsb} concatenation
func (p *netlistParser) expr(text string, line int) ([]netlist.NetID, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		parts := splitTopLevel(text[1 : len(text)-1])
		var nets []netlist.NetID
		for i := len(parts) - 1; i >= 0; i-- {
			part, err := p.expr(parts[i], line)
			if err != nil {
				return nil, err
			}
			nets = append(nets, part...)
		}
		if len(nets) == 0 {
			return nil, p.errorf(line, "empty concatenation")
		}
		return nets, nil
	}

	switch text {
	case "0":
		return []netlist.NetID{p.nl.ConstantNet(netlist.Zero)}, nil
	case "1":
		return []netlist.NetID{p.nl.ConstantNet(netlist.One)}, nil
	case "x", "X":
		return []netlist.NetID{p.nl.ConstantNet(netlist.X)}, nil
	}

	if matches := numberRegex.FindStringSubmatch(text); matches != nil {
		return p.constant(matches[1], matches[2], matches[3], line)
	}

	matches := busRegex.FindStringSubmatch(text)
	if matches == nil {
		return nil, p.errorf(line, "invalid expression %q", text)
	}
	nets, ok := p.buses[matches[1]]
	if !ok {
		return nil, p.errorf(line, "undeclared bus %s", matches[1])
	}
	if matches[2] == "" {
		return nets, nil
	}
	hi, _ := strconv.Atoi(matches[2])
	lo := hi
	if matches[3] != "" {
		lo, _ = strconv.Atoi(matches[3])
	}
	if lo > hi || hi >= len(nets) {
		return nil, p.errorf(line, "slice [%s] out of range for %s[%d]", strings.TrimPrefix(text, matches[1]), matches[1], len(nets))
	}
	return nets[lo : hi+1], nil
}

// constant expands a sized literal into constant nets, LSB first
func (p *netlistParser) constant(size, base, digits string, line int) ([]netlist.NetID, error) {
	width, err := p.width(size, line)
	if err != nil {
		return nil, err
	}
	digits = strings.ReplaceAll(digits, "_", "")
	nets := make([]netlist.NetID, width)

	if base == "b" || base == "B" {
		for i := range nets {
			v := netlist.Zero
			if j := len(digits) - 1 - i; j >= 0 {
				switch digits[j] {
				case '0':
				case '1':
					v = netlist.One
				case 'x', 'X':
					v = netlist.X
				default:
					return nil, p.errorf(line, "invalid binary digit %q", digits[j])
				}
			}
			nets[i] = p.nl.ConstantNet(v)
		}
		return nets, nil
	}

	value, err := parseNumber(digits, strings.ToLower(base) == "h")
	if err != nil {
		return nil, p.wrap(err, line)
	}
	for i := range nets {
		nets[i] = p.nl.ConstantNet(netlist.FromBool(netlist.ValueBit(value, i)))
	}
	return nets, nil
}

// parseNumber parses decimal or hexadecimal digits into a wide value
func parseNumber(digits string, hex bool) (*uint256.Int, error) {
	value := new(uint256.Int)
	if !hex {
		if err := value.SetFromDecimal(digits); err != nil {
			return nil, errors.Wrapf(err, "invalid number %q", digits)
		}
		return value, nil
	}
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		trimmed = "0"
	}
	if err := value.SetFromHex("0x" + trimmed); err != nil {
		return nil, errors.Wrapf(err, "invalid number %q", digits)
	}
	return value, nil
}

// attributes parses the {key=value, flag} block of a node statement
func (p *netlistParser) attributes(text string, line int) (netlist.Attributes, error) {
	var attr netlist.Attributes
	for _, item := range splitTopLevel(text) {
		key, value, _ := strings.Cut(item, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		var sens *netlist.Sensitivity
		switch strings.ToLower(key) {
		case "clk":
			sens = &attr.ClkEdge
		case "en":
			sens = &attr.EnPolarity
		case "srst":
			sens = &attr.SRstPolarity
		case "arst":
			sens = &attr.ARstPolarity
		case "set":
			sens = &attr.SetPolarity
		case "clr":
			sens = &attr.ClrPolarity
		case "srst_value", "arst_value":
			hex := strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X")
			if hex {
				value = value[2:]
			}
			v, err := parseNumber(value, hex)
			if err != nil {
				return attr, p.wrap(err, line)
			}
			if strings.EqualFold(key, "srst_value") {
				attr.SRstValue = *v
			} else {
				attr.ARstValue = *v
			}
			continue
		case "signed":
			attr.SignedA, attr.SignedB = true, true
			continue
		case "signed_a":
			attr.SignedA = true
			continue
		case "signed_b":
			attr.SignedB = true
			continue
		default:
			return attr, p.errorf(line, "unknown attribute %s", key)
		}

		s, err := netlist.ParseSensitivity(strings.ToLower(value))
		if err != nil {
			return attr, p.wrap(err, line)
		}
		*sens = s
	}
	return attr, nil
}

// output creates a primary output reading a bus or an expression
func (p *netlistParser) output(st statement) error {
	matches := outputRegex.FindStringSubmatch(st.text)
	expr := matches[1]
	if matches[2] != "" {
		expr = matches[2]
	}
	nets, err := p.expr(expr, st.line)
	if err != nil {
		return err
	}
	if _, err := p.nl.AddPrimaryOutput(matches[1], nets); err != nil {
		return p.wrap(err, st.line)
	}
	return nil
}

// splitTopLevel splits on commas outside braces and drops empty items
func splitTopLevel(text string) []string {
	var items []string
	depth, start := 0, 0
	flush := func(end int) {
		if item := strings.TrimSpace(text[start:end]); item != "" {
			items = append(items, item)
		}
	}
	for i, r := range text {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(text))
	return items
}

// WriteVectors writes one input assignment per line, inputs in name order
func WriteVectors(w io.Writer, vectors []map[string]uint64) error {
	writer := bufio.NewWriter(w)

	var names []string
	if len(vectors) > 0 {
		for name := range vectors[0] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	fmt.Fprintf(writer, "# Format: %s\n", strings.Join(names, " "))
	for i, vector := range vectors {
		fmt.Fprintf(writer, "# Cycle %d\n", i)
		for j, name := range names {
			if j > 0 {
				writer.WriteString(" ")
			}
			writer.WriteString(strconv.FormatUint(vector[name], 10))
		}
		writer.WriteString("\n")
	}
	return writer.Flush()
}
