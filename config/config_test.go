package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if cfg.Body.Width != 10 || cfg.Body.Height != 10 {
		t.Errorf("body = %dx%d, want 10x10", cfg.Body.Width, cfg.Body.Height)
	}
	if cfg.Criticality.Threshold != 0.0002 {
		t.Errorf("threshold = %v, want 0.0002", cfg.Criticality.Threshold)
	}
	if cfg.Criticality.BinSize != 10 {
		t.Errorf("bin_size = %d, want 10", cfg.Criticality.BinSize)
	}
	if cfg.Scoring.Formula != "canonical" {
		t.Errorf("formula = %q, want canonical", cfg.Scoring.Formula)
	}
	if cfg.Criticality.SettleT != 5 {
		t.Errorf("settle_t = %v, want 5", cfg.Criticality.SettleT)
	}
	if cfg.Output.PerfWindow != 10 || cfg.Output.StagnationWindow != 20 {
		t.Errorf("perf_window = %d, stagnation_window = %d, want 10 and 20", cfg.Output.PerfWindow, cfg.Output.StagnationWindow)
	}
	if cfg.Derived.Cells != 100 {
		t.Errorf("derived cells = %d, want 100", cfg.Derived.Cells)
	}
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.yaml")
	data := "criticality:\n  threshold: 0.01\nbody:\n  width: 4\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Criticality.Threshold != 0.01 {
		t.Errorf("threshold = %v, want 0.01", cfg.Criticality.Threshold)
	}
	if cfg.Body.Width != 4 {
		t.Errorf("width = %d, want 4", cfg.Body.Width)
	}
	// untouched fields keep their defaults
	if cfg.Body.Height != 10 || cfg.Criticality.BinSize != 10 {
		t.Error("overlay should only change the fields it names")
	}
	if cfg.Derived.Cells != 40 {
		t.Errorf("derived cells = %d, want 40", cfg.Derived.Cells)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero dt", func(c *Config) { c.Physics.DT = 0 }, "physics.dt"},
		{"empty body", func(c *Config) { c.Body.Width = 0 }, "body size"},
		{"zero bin", func(c *Config) { c.Criticality.BinSize = 0 }, "bin_size"},
		{"negative threshold", func(c *Config) { c.Criticality.Threshold = -1 }, "threshold"},
		{"negative settle", func(c *Config) { c.Criticality.SettleT = -1 }, "settle_t"},
		{"bad formula", func(c *Config) { c.Scoring.Formula = "magic" }, "scoring.formula"},
		{"bad log base", func(c *Config) { c.Scoring.LogBase = "2" }, "log_base"},
		{"bad ks", func(c *Config) { c.Scoring.KS = "textbook" }, "scoring.ks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}

	if err := Defaults().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg := Defaults()
	cfg.Criticality.BinSize = 7
	cfg.Controller.HiddenLayers = []int{4, 3}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Criticality.BinSize != 7 {
		t.Errorf("bin_size = %d, want 7", got.Criticality.BinSize)
	}
	if len(got.Controller.HiddenLayers) != 2 || got.Controller.HiddenLayers[1] != 3 {
		t.Errorf("hidden layers = %v, want [4 3]", got.Controller.HiddenLayers)
	}
}

func TestCfgAfterInit(t *testing.T) {
	MustInit("")
	if Cfg().Body.Width != 10 {
		t.Error("Cfg should return the initialized defaults")
	}
}
