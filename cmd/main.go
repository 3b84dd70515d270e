package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fyerfyer/hdl-elab/pkg/config"
	"github.com/fyerfyer/hdl-elab/pkg/equiv"
	"github.com/fyerfyer/hdl-elab/pkg/export"
	"github.com/fyerfyer/hdl-elab/pkg/netlist"
	"github.com/fyerfyer/hdl-elab/pkg/resolve"
	"github.com/fyerfyer/hdl-elab/pkg/utils"
)

func main() {
	// Parse command-line arguments
	netlistFile := flag.String("netlist", "", "Netlist file to elaborate")
	archFile := flag.String("arch", "", "Architecture file in JSON (default: soft logic only)")
	blifFile := flag.String("blif", "", "Output file for the elaborated BLIF")
	aigerFile := flag.String("aiger", "", "Output file for the AIGER graph")
	binary := flag.Bool("binary", false, "Write AIGER in binary format")
	addersFile := flag.String("adders", "", "Output file for the hard adder blackbox models")
	check := flag.Int("check", 0, "Check equivalence against a soft elaboration over this many cycles")
	traceFile := flag.String("trace", "counterexample.txt", "Output file for a failing check's inputs")
	verbose := flag.Bool("verbose", false, "Verbose output")
	logFile := flag.String("log", "", "Log file (default: stdout)")
	flag.Parse()

	// Configure logger
	logLevel := utils.InfoLevel
	if *verbose {
		logLevel = utils.DebugLevel
	}

	var logger *utils.Logger
	var err error

	if *logFile != "" {
		logger, err = utils.NewFileLogger(logLevel, *logFile)
		if err != nil {
			fmt.Printf("Error creating log file: %v\n", err)
			os.Exit(1)
		}
	} else {
		logger = utils.NewLogger(logLevel)
	}

	// Check required arguments
	if *netlistFile == "" {
		fmt.Println("Error: Netlist file is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.Default()
	if *archFile != "" {
		logger.Info("Loading architecture from %s", *archFile)
		cfg, err = config.Load(*archFile)
		if err != nil {
			logger.Error("Failed to load architecture: %v", err)
			os.Exit(1)
		}
	}

	logger.Info("Parsing netlist from %s", *netlistFile)
	nl, err := utils.ParseNetlistFile(*netlistFile)
	if err != nil {
		logger.Error("Failed to parse netlist: %v", err)
		os.Exit(1)
	}

	e := resolve.NewElaborator(nl, cfg, logger)
	if err := e.Run(); err != nil {
		logger.Error("Elaboration failed: %v", err)
		os.Exit(1)
	}

	if *blifFile != "" {
		if err := writeFile(*blifFile, func(w io.Writer) error {
			return export.NewBLIFWriter(logger).Write(w, nl)
		}); err != nil {
			logger.Error("Error writing BLIF: %v", err)
			os.Exit(1)
		}
		logger.Info("Wrote BLIF to %s", *blifFile)
	}

	if *addersFile != "" {
		if err := writeFile(*addersFile, func(w io.Writer) error {
			return export.WriteAdderModels(w, nl)
		}); err != nil {
			logger.Error("Error writing adder models: %v", err)
			os.Exit(1)
		}
		logger.Info("Wrote %d adder models to %s", len(export.AdderShapes(nl)), *addersFile)
	}

	if *aigerFile != "" {
		if err := writeFile(*aigerFile, func(w io.Writer) error {
			return export.WriteAIGER(w, nl, *binary, logger)
		}); err != nil {
			logger.Error("Error writing AIGER: %v", err)
			os.Exit(1)
		}
		logger.Info("Wrote AIGER to %s", *aigerFile)
	}

	if *check > 0 {
		if !runCheck(*netlistFile, nl, *check, *traceFile, logger) {
			os.Exit(1)
		}
	}

	// Print summary
	stats := e.Stats()
	logger.Info("Elaboration complete")
	logger.Info("Netlist: %s", nl.Name)
	logger.Info("Sweeps: %d", stats.Sweeps)
	logger.Info("Memory legalizations: %d", stats.Memories)
	logger.Info("Nodes kept for hard blocks: %d", stats.Kept)
	topo := netlist.NewTopology(nl)
	if err := topo.Analyze(); err != nil {
		logger.Error("Failed to levelize netlist: %v", err)
		os.Exit(1)
	}
	logger.Info("Logic depth: %d", topo.MaxLevel)
	logger.Info("Fanout points: %d", len(topo.FanoutPoints))
	counts := nl.CountByKind()
	kinds := make([]netlist.Op, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		logger.Info("  %-16s %d", k, counts[k])
	}
}

// runCheck elaborates the netlist again for soft logic only and compares
// it with the elaborated one
func runCheck(file string, nl *netlist.Netlist, frames int, traceFile string, logger *utils.Logger) bool {
	reference, err := utils.ParseNetlistFile(file)
	if err != nil {
		logger.Error("Failed to parse netlist: %v", err)
		return false
	}
	if err := resolve.NewElaborator(reference, config.Default(), logger).Run(); err != nil {
		logger.Error("Reference elaboration failed: %v", err)
		return false
	}

	logger.Info("Checking equivalence over %d cycles", frames)
	result, err := equiv.NewChecker(frames, logger).Check(reference, nl)
	if err != nil {
		logger.Error("Equivalence check failed: %v", err)
		return false
	}
	if result.Equivalent {
		logger.Info("Elaborated netlist matches soft logic")
		return true
	}

	logger.Error("Output %s differs in cycle %d", result.Output, result.Cycle)
	if err := writeFile(traceFile, func(w io.Writer) error {
		return utils.WriteVectors(w, result.Trace)
	}); err != nil {
		logger.Error("Error writing trace: %v", err)
	} else {
		logger.Info("Wrote counterexample to %s", traceFile)
	}
	return false
}

func writeFile(name string, write func(io.Writer) error) error {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
