package mps

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mps.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadOptionsAppliesDefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, "arena_size: 1048576\narena_grain_size: 8192\nrank: 1\n")
	opts, err := LoadOptions(path)
	if err != nil {
		t.Fatalf("LoadOptions: %v", err)
	}
	if opts.ArenaSize != 1048576 || opts.ArenaGrainSize != 8192 {
		t.Fatalf("opts = %+v, want overridden arena size/grain", opts)
	}
	if opts.Rank != RankEXACT {
		t.Fatalf("Rank = %v, want RankEXACT (yaml value 1)", opts.Rank)
	}
}

func TestLoadOptionsRejectsNonPowerOfTwoGrainSize(t *testing.T) {
	path := writeConfig(t, "arena_size: 1048576\narena_grain_size: 4097\n")
	if _, err := LoadOptions(path); err == nil {
		t.Fatal("a non-power-of-two grain size should be rejected")
	}
}

func TestLoadOptionsRejectsZeroArenaSize(t *testing.T) {
	path := writeConfig(t, "arena_size: 0\narena_grain_size: 4096\n")
	if _, err := LoadOptions(path); err == nil {
		t.Fatal("a zero arena size should be rejected")
	}
}

func TestLoadOptionsRejectsMortalityRateOutOfRange(t *testing.T) {
	path := writeConfig(t, "arena_size: 1048576\narena_grain_size: 4096\nchain:\n  - capacity_kb: 256\n    mortality_rate: 1.5\n")
	if _, err := LoadOptions(path); err == nil {
		t.Fatal("a mortality_rate outside [0,1] should be rejected")
	}
}

func TestLoadOptionsMissingFile(t *testing.T) {
	if _, err := LoadOptions(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("loading a nonexistent config file should return an error")
	}
}

func TestOptionsArenaOptionsAndGenDescs(t *testing.T) {
	path := writeConfig(t, "arena_size: 2097152\narena_grain_size: 4096\nchain:\n  - capacity_kb: 128\n    mortality_rate: 0.5\n  - capacity_kb: 512\n    mortality_rate: 0.2\n")
	opts, err := LoadOptions(path)
	if err != nil {
		t.Fatalf("LoadOptions: %v", err)
	}
	ao := opts.ArenaOptions()
	if ao.Size != 2097152 || ao.GrainSize != 4096 {
		t.Fatalf("ArenaOptions() = %+v", ao)
	}
	chain := opts.GenDescs()
	if len(chain) != 2 {
		t.Fatalf("GenDescs() len = %d, want 2", len(chain))
	}
	if chain[0].CapacityBytes != 128<<10 || chain[0].MortalityRate != 0.5 {
		t.Fatalf("chain[0] = %+v", chain[0])
	}
	if chain[1].CapacityBytes != 512<<10 || chain[1].MortalityRate != 0.2 {
		t.Fatalf("chain[1] = %+v", chain[1])
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.ArenaSize != 64<<20 || opts.ArenaGrainSize != 4096 || opts.Rank != RankEXACT {
		t.Fatalf("DefaultOptions() = %+v", opts)
	}
}
