package resolve

import (
	"github.com/pkg/errors"

	"github.com/fyerfyer/hdl-elab/pkg/config"
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
	"github.com/fyerfyer/hdl-elab/pkg/utils"
)

// ErrSweepLimit reports compound nodes left after the configured number of sweeps
var ErrSweepLimit = errors.New("sweep limit reached")

// Stats summarizes one elaboration run
type Stats struct {
	Sweeps   int
	Resolved map[netlist.Op]int // Lowered nodes by original kind
	Memories int                // Memory legalization steps
	Kept     int                // Compound nodes left for native blocks
}

// Elaborator drives the resolvers over a netlist until only primitives,
// hard blocks and natively kept operators remain
type Elaborator struct {
	Netlist  *netlist.Netlist
	Config   *config.Config
	Logger   *utils.Logger
	Resolver *Resolver
	Verify   bool // Run Netlist.Check after every sweep

	gen   netlist.Generation
	stats Stats
}

// NewElaborator creates an elaborator for a netlist
func NewElaborator(nl *netlist.Netlist, cfg *config.Config, logger *utils.Logger) *Elaborator {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = utils.DefaultLogger
	}
	return &Elaborator{
		Netlist:  nl,
		Config:   cfg,
		Logger:   logger,
		Resolver: NewResolver(nl, cfg, logger),
		stats:    Stats{Resolved: make(map[netlist.Op]int)},
	}
}

// Stats returns the summary of the last run
func (e *Elaborator) Stats() Stats {
	return e.stats
}

// Run legalizes memories, then sweeps the netlist. Each sweep takes a new
// mark; nodes created during a sweep carry it and wait for the next one.
func (e *Elaborator) Run() error {
	e.Logger.Info("Elaborating %s", e.Netlist.Name)
	e.Logger.Netlist("%s: %d nodes, %d nets", e.Netlist.Name, len(e.Netlist.Nodes()), len(e.Netlist.Nets()))
	if err := e.legalizeMemories(); err != nil {
		return err
	}

	for {
		pending := e.pending()
		if pending == 0 {
			break
		}
		if e.stats.Sweeps >= e.Config.Elaboration.MaxSweeps {
			return errors.Wrapf(ErrSweepLimit, "%d compound nodes left after %d sweeps", pending, e.stats.Sweeps)
		}
		if err := e.sweep(); err != nil {
			return err
		}
	}

	for _, id := range e.Netlist.Nodes() {
		if n := e.Netlist.Node(id); n.Kind.IsCompound() {
			e.stats.Kept++
		}
	}
	if err := e.Netlist.Check(); err != nil {
		return errors.Wrap(err, "checking elaborated netlist")
	}
	e.Logger.Netlist("%s: %d nodes, %d nets at generation %d", e.Netlist.Name, len(e.Netlist.Nodes()), len(e.Netlist.Nets()), e.gen.Current())
	e.Logger.Info("Elaboration finished after %d sweeps", e.stats.Sweeps)
	return nil
}

// pending counts the compound nodes still to lower
func (e *Elaborator) pending() int {
	count := 0
	for _, id := range e.Netlist.Nodes() {
		if e.Resolver.Pending(e.Netlist.Node(id)) {
			count++
		}
	}
	return count
}

// sweep visits every node once and lowers the compound ones that existed
// before the sweep started
func (e *Elaborator) sweep() error {
	mark := e.gen.Next()
	e.stats.Sweeps++
	e.Logger.Sweep("sweep %d (mark %d)", e.stats.Sweeps, mark)
	e.Logger.Indent()
	defer e.Logger.Outdent()

	resolved := 0
	for _, id := range e.Netlist.Nodes() {
		n := e.Netlist.Node(id)
		if n == nil || !e.Netlist.Visit(id, mark) {
			continue
		}
		if !e.Resolver.Pending(n) {
			continue
		}
		kind := n.Kind
		if err := e.Resolver.Resolve(id, mark); err != nil {
			return err
		}
		e.stats.Resolved[kind]++
		resolved++
	}

	if e.Verify {
		if err := e.Netlist.Check(); err != nil {
			return errors.Wrapf(err, "after sweep %d", e.stats.Sweeps)
		}
	}
	e.Logger.Sweep("sweep %d lowered %d nodes", e.stats.Sweeps, resolved)
	return nil
}

// legalizeMemories splits, pads or lowers every memory until each one fits
// the target
func (e *Elaborator) legalizeMemories() error {
	mark := e.gen.Next()
	work := e.Netlist.NodesOfKind(netlist.OpMemory)
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		next, err := e.Resolver.LowerMemory(id, mark)
		if err != nil {
			return err
		}
		if e.Netlist.Node(id) == nil {
			e.stats.Memories++
		}
		work = append(work, next...)
	}
	return nil
}
