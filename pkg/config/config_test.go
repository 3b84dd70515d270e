package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefault tests the soft-logic defaults
func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.MemoryBlock(false) != nil || cfg.MemoryBlock(true) != nil {
		t.Errorf("Expected no memory hard blocks by default")
	}
	if cfg.MemorySplitDepth(false) != 0 {
		t.Errorf("Expected no depth limit by default, got %d", cfg.MemorySplitDepth(false))
	}
	if cfg.Elaboration.MaxSweeps <= 0 {
		t.Errorf("Expected a positive sweep limit, got %d", cfg.Elaboration.MaxSweeps)
	}
}

// TestParse tests decoding a valid architecture
func TestParse(t *testing.T) {
	data := []byte(`{
		"name": "k6_N10",
		"memory": {"singlePort": {"addrWidth": 9, "dataWidth": 8}, "splitWidth": 2},
		"adder": {"hardWidth": 4, "fixedFootprint": true},
		"elaboration": {"warnOnPad": true}
	}`)

	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Name != "k6_N10" {
		t.Errorf("Expected name k6_N10, got %s", cfg.Name)
	}
	if got := cfg.MemorySplitDepth(false); got != 9 {
		t.Errorf("Expected split depth from the hard block (9), got %d", got)
	}
	if got := cfg.MemorySplitWidth(false); got != 2 {
		t.Errorf("Expected explicit split width 2, got %d", got)
	}
	if cfg.Adder.HardWidth != 4 || !cfg.Adder.FixedFootprint {
		t.Errorf("Expected 4-bit fixed hard adder, got %+v", cfg.Adder)
	}
	if cfg.Elaboration.MaxSweeps != Default().Elaboration.MaxSweeps {
		t.Errorf("Expected default sweep limit to survive, got %d", cfg.Elaboration.MaxSweeps)
	}
}

// TestParseRejectsSchemaViolations tests the CUE schema guard
func TestParseRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"unknown field":   `{"memroy": {}}`,
		"negative width":  `{"memory": {"singlePort": {"addrWidth": -1, "dataWidth": 8}}}`,
		"missing width":   `{"memory": {"dualPort": {"addrWidth": 4}}}`,
		"wrong type":      `{"adder": {"hardWidth": "four"}}`,
		"selector bound":  `{"elaboration": {"maxPowerSelectBits": 40}}`,
		"not json at all": `{"memory": `,
	}
	for name, data := range cases {
		if _, err := Parse([]byte(data)); err == nil {
			t.Errorf("%s: expected validation error, got none", name)
		}
	}
}

// TestLoad tests reading from a file
func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arch.json")
	if err := os.WriteFile(path, []byte(`{"multiplier": {"hard": true}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Multiplier.Hard {
		t.Errorf("Expected hard multipliers")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Errorf("Expected error for a missing file")
	}
}
