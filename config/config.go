// Package config provides configuration loading and access for experiments.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all experiment configuration parameters.
type Config struct {
	Physics     PhysicsConfig     `yaml:"physics"`
	Material    MaterialConfig    `yaml:"material"`
	Criticality CriticalityConfig `yaml:"criticality"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Body        BodyConfig        `yaml:"body"`
	Evolution   EvolutionConfig   `yaml:"evolution"`
	Task        TaskConfig        `yaml:"task"`
	Controller  ControllerConfig  `yaml:"controller"`
	Output      OutputConfig      `yaml:"output"`
	Storage     StorageConfig     `yaml:"storage"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// PhysicsConfig holds the mass-spring engine parameters.
type PhysicsConfig struct {
	DT         float64 `yaml:"dt"`          // Seconds per observable step
	Substeps   int     `yaml:"substeps"`    // Integration substeps per DT
	Gravity    float64 `yaml:"gravity"`     // Downward acceleration (positive)
	DropHeight float64 `yaml:"drop_height"` // Initial gap between body and ground
	MaxSpeed   float64 `yaml:"max_speed"`   // Node speed above this is reported as unstable
}

// MaterialConfig holds the voxel material template.
type MaterialConfig struct {
	SideLength        float64 `yaml:"side_length"`
	Mass              float64 `yaml:"mass"`
	SpringF           float64 `yaml:"spring_f"`             // Natural frequency (Hz) of voxel springs
	SpringD           float64 `yaml:"spring_d"`             // Damping ratio of voxel springs
	LinearDamping     float64 `yaml:"linear_damping"`       // Velocity damping per second
	Friction          float64 `yaml:"friction"`             // Ground friction coefficient [0,1]
	AreaRatioMaxDelta float64 `yaml:"area_ratio_max_delta"` // Max actuation as a fraction of side length
}

// CriticalityConfig holds avalanche detection parameters.
type CriticalityConfig struct {
	FinalT        float64 `yaml:"final_t"`        // Horizon of each pulse run (seconds)
	SettleT       float64 `yaml:"settle_t"`       // Unactuated time before the pulse (seconds)
	PulseDuration float64 `yaml:"pulse_duration"` // Up+down pulse length (seconds)
	Threshold     float64 `yaml:"threshold"`      // Area-ratio delta that marks a voxel active
	BinSize       int     `yaml:"bin_size"`       // Temporal extent bucket width
	Workers       int     `yaml:"workers"`        // Cell-level parallelism (1 = sequential)
}

// ScoringConfig selects the fitness formula variant.
type ScoringConfig struct {
	Formula  string `yaml:"formula"`   // canonical, mean_r2, duplicated_ks
	LogBase  string `yaml:"log_base"`  // e or 10
	KS       string `yaml:"ks"`        // cumulative or two_sample
	SortedKS bool   `yaml:"sorted_ks"` // Sort sequences before the cumulative scan
}

// BodyConfig holds body genome decoding parameters.
type BodyConfig struct {
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	Mapper         string  `yaml:"mapper"`          // bitmask or gaussian
	Voxels         int     `yaml:"voxels"`          // Cell count for randomly grown bodies
	Gaussians      int     `yaml:"gaussians"`       // Kernel count for the gaussian mapper
	FieldThreshold float64 `yaml:"field_threshold"` // Presence threshold for the gaussian mapper
}

// EvolutionConfig holds the genetic algorithm parameters.
type EvolutionConfig struct {
	Population    int     `yaml:"population"`
	Iterations    int     `yaml:"iterations"`
	MutationProb  float64 `yaml:"mutation_prob"`  // Per-bit flip probability
	MutationRate  float64 `yaml:"mutation_rate"`  // Operator weight of mutation
	CrossoverRate float64 `yaml:"crossover_rate"` // Operator weight of crossover
	Tournament    int     `yaml:"tournament"`
	CacheSize     int     `yaml:"cache_size"`
	Seed          int64   `yaml:"seed"`
	Workers       int     `yaml:"workers"` // 0 = GOMAXPROCS
}

// TaskConfig holds task parameters for controller optimization.
type TaskConfig struct {
	Name   string  `yaml:"name"`
	FinalT float64 `yaml:"final_t"`
}

// ControllerConfig holds controller optimization parameters.
type ControllerConfig struct {
	Kind         string  `yaml:"kind"` // phase or neural
	HiddenLayers []int   `yaml:"hidden_layers"`
	InitStepSize float64 `yaml:"init_step_size"`
	Population   int     `yaml:"population"` // CMA-ES population (0 = auto)
	MaxEvals     int     `yaml:"max_evals"`
}

// OutputConfig holds result output parameters.
type OutputConfig struct {
	Dir               string `yaml:"dir"`
	HallOfFameSize    int    `yaml:"hall_of_fame_size"`
	LogGenerations    bool   `yaml:"log_generations"`
	PlotDistributions bool   `yaml:"plot_distributions"`
	PerfWindow        int    `yaml:"perf_window"`       // GA iterations averaged in perf stats
	StagnationWindow  int    `yaml:"stagnation_window"` // GA iterations without a new best before a stagnation bookmark
}

// StorageConfig holds archive parameters.
type StorageConfig struct {
	Driver string `yaml:"driver"` // memory or sqlite
	Path   string `yaml:"path"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Cells int // Body.Width * Body.Height
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Defaults returns a fresh copy of the embedded defaults.
func Defaults() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate reports parameter combinations the evaluator cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Physics.DT <= 0 {
		errs = append(errs, fmt.Errorf("physics.dt must be positive, got %v", c.Physics.DT))
	}
	if c.Body.Width < 1 || c.Body.Height < 1 {
		errs = append(errs, fmt.Errorf("body size must be at least 1x1, got %dx%d", c.Body.Width, c.Body.Height))
	}
	if c.Criticality.BinSize < 1 {
		errs = append(errs, fmt.Errorf("criticality.bin_size must be at least 1, got %d", c.Criticality.BinSize))
	}
	if c.Criticality.SettleT < 0 {
		errs = append(errs, fmt.Errorf("criticality.settle_t must not be negative, got %v", c.Criticality.SettleT))
	}
	if c.Criticality.Threshold < 0 {
		errs = append(errs, fmt.Errorf("criticality.threshold must not be negative, got %v", c.Criticality.Threshold))
	}
	switch c.Scoring.Formula {
	case "canonical", "mean_r2", "duplicated_ks":
	default:
		errs = append(errs, fmt.Errorf("unknown scoring.formula %q", c.Scoring.Formula))
	}
	switch c.Scoring.LogBase {
	case "e", "10":
	default:
		errs = append(errs, fmt.Errorf("unknown scoring.log_base %q", c.Scoring.LogBase))
	}
	switch c.Scoring.KS {
	case "cumulative", "two_sample":
	default:
		errs = append(errs, fmt.Errorf("unknown scoring.ks %q", c.Scoring.KS))
	}
	return errors.Join(errs...)
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	if c.Physics.Substeps < 1 {
		c.Physics.Substeps = 1
	}
	if c.Criticality.Workers < 1 {
		c.Criticality.Workers = 1
	}
	if c.Output.HallOfFameSize < 1 {
		c.Output.HallOfFameSize = 10
	}
	c.Derived.Cells = c.Body.Width * c.Body.Height
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
