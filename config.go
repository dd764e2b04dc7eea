package mps

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// config.go is the one place in this module that uses Go's error
// interface: it sits entirely outside the collection critical path
// (the Res taxonomy governs every collector-engine operation), and is
// ordinary client setup read once at startup.

// SplatPattern is the pattern POOL_DEBUG_OPTIONS writes over a freed
// object "splat pattern, free-check".
type SplatPattern []byte

// PoolDebugOptions mirrors POOL_DEBUG_OPTIONS: a splat
// pattern written over reclaimed memory, and whether to verify it is
// still intact just before reuse (catching use-after-free).
type PoolDebugOptions struct {
	Splat     SplatPattern `yaml:"splat"`
	FreeCheck bool         `yaml:"free_check"`
}

// GenConfig is one entry of the CHAIN configuration option.
type GenConfig struct {
	CapacityKB    uintptr `yaml:"capacity_kb"`
	MortalityRate float64 `yaml:"mortality_rate"`
}

// Options is the full set of recognized configuration options: arena
// size and grain size, the generation chain, rank, and per-pool debug
// options. The object format is not one of them; a Format reaches a
// pool only through PoolOptions.Format.
type Options struct {
	ArenaSize      uintptr `yaml:"arena_size"`
	ArenaGrainSize uintptr `yaml:"arena_grain_size"`

	Chain []GenConfig `yaml:"chain"`
	Gen   int         `yaml:"gen"`

	PoolDebug PoolDebugOptions `yaml:"pool_debug_options"`

	// AWLFindDependent isn't loadable from YAML (it's a callback); a
	// client that wants it sets the field after LoadOptions returns.
	AWLFindDependent func(obj Addr) Addr `yaml:"-"`

	AMSSupportAmbiguous bool `yaml:"ams_support_ambiguous"`

	Rank    Rank    `yaml:"rank"`
	RankSet RankSet `yaml:"rank_set"`
}

// DefaultOptions mirrors the constants this module otherwise falls
// back to when no configuration file is supplied.
func DefaultOptions() Options {
	return Options{
		ArenaSize:      64 << 20,
		ArenaGrainSize: 4096,
		Rank:           RankEXACT,
	}
}

// LoadOptions reads and validates a YAML configuration document.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("mps: reading config %q: %w", path, err)
	}
	opts := DefaultOptions()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("mps: parsing config %q: %w", path, err)
	}
	if opts.ArenaGrainSize == 0 || (opts.ArenaGrainSize&(opts.ArenaGrainSize-1)) != 0 {
		return Options{}, fmt.Errorf("mps: config %q: arena_grain_size must be a power of two", path)
	}
	if opts.ArenaSize == 0 {
		return Options{}, fmt.Errorf("mps: config %q: arena_size must be non-zero", path)
	}
	for i, g := range opts.Chain {
		if g.MortalityRate < 0 || g.MortalityRate > 1 {
			return Options{}, fmt.Errorf("mps: config %q: chain[%d].mortality_rate out of [0,1]", path, i)
		}
	}
	return opts, nil
}

// ArenaOptions derives the arena-creation options named by this config.
func (o Options) ArenaOptions() ArenaOptions {
	return ArenaOptions{Size: o.ArenaSize, GrainSize: o.ArenaGrainSize}
}

// GenDescs converts the configured generation chain into the GenDesc
// list PoolCreate expects.
func (o Options) GenDescs() []*GenDesc {
	chain := make([]*GenDesc, len(o.Chain))
	for i, g := range o.Chain {
		chain[i] = &GenDesc{CapacityBytes: g.CapacityKB << 10, MortalityRate: g.MortalityRate}
	}
	return chain
}
