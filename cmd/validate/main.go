// Package main evaluates the criticality of stored bodies and writes their
// avalanche distributions.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/pthm-cable/voxsoc/body"
	"github.com/pthm-cable/voxsoc/config"
	"github.com/pthm-cable/voxsoc/criticality"
	"github.com/pthm-cable/voxsoc/evolve"
	"github.com/pthm-cable/voxsoc/storage"
	"github.com/pthm-cable/voxsoc/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	encoded := flag.String("body", "", "Encoded body to evaluate")
	bodyFile := flag.String("body-file", "", "File with one encoded body per line")
	genome := flag.String("genome", "", "Bit-string genome decoded with the bitmask mapper")
	random := flag.Int("random", 0, "Evaluate a random connected body with this many voxels")
	seed := flag.Int64("seed", 1, "RNG seed for -random")
	finalT := flag.Float64("final-t", 0, "Pulse run horizon in seconds (0 = use config)")
	outputDir := flag.String("output", "", "Output directory for measurements, distributions and plots")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *finalT > 0 {
		cfg.Criticality.FinalT = *finalT
	}

	bodies, err := loadBodies(cfg, *encoded, *bodyFile, *genome, *random, *seed)
	if err != nil {
		slog.Error("failed to load bodies", "error", err)
		os.Exit(1)
	}
	if len(bodies) == 0 {
		slog.Error("nothing to evaluate: pass -body, -body-file, -genome or -random")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := validate(ctx, cfg, bodies, *outputDir); err != nil {
		slog.Error("validation failed", "error", err)
		os.Exit(1)
	}
}

// validate evaluates every body and writes one output directory per body.
func validate(ctx context.Context, cfg *config.Config, bodies []*body.Body, outputDir string) error {
	store, err := storage.New(ctx, cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	run := storage.NewRun("validate", "")
	if err := store.SaveRun(ctx, run); err != nil {
		return err
	}

	ev := criticality.NewEvaluator(cfg)
	for i, b := range bodies {
		r, err := ev.Evaluate(ctx, b)
		if err != nil {
			return fmt.Errorf("body %d: %w", i, err)
		}

		spatialSum, temporalSum := 0, 0
		for _, m := range r.Measurements {
			spatialSum += m.Spatial
			temporalSum += m.Temporal
		}
		slog.Info("body evaluated",
			"run", run.ID,
			"body", i,
			"voxels", b.Count(),
			"fitness", r.Fitness,
			"spatial_sum", spatialSum,
			"temporal_sum", temporalSum,
			"spatial_r2", r.Spatial.Fit.R2,
			"temporal_r2", r.Temporal.Fit.R2,
			"failures", r.Failures,
			"reason", r.Reason,
		)
		fmt.Print(body.Render(b))

		enc, err := body.Encode(b)
		if err != nil {
			slog.Warn("failed to encode body", "index", i, "error", err)
		}
		if err := store.SaveRecords(ctx, run.ID, []storage.Record{{Body: enc, Fitness: r.Fitness}}); err != nil {
			return err
		}
		if outputDir != "" {
			if err := writeResult(filepath.Join(outputDir, fmt.Sprintf("body-%03d", i)), cfg, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeResult(dir string, cfg *config.Config, r *criticality.Result) error {
	om, err := telemetry.NewOutputManager(dir)
	if err != nil {
		return err
	}
	defer om.Close()

	if err := om.WriteConfig(cfg); err != nil {
		return err
	}
	if err := om.WriteMeasurements("measurements.csv", r.Measurements); err != nil {
		return err
	}
	for name, d := range map[string]criticality.Distribution{"spatial": r.Spatial, "temporal": r.Temporal} {
		if err := om.WriteDistribution(name+".csv", d); err != nil {
			return err
		}
		if len(d.Points) > 0 {
			if err := om.WritePlot(name+".png", name+" avalanches", d); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadBodies collects bodies from every source that was given.
func loadBodies(cfg *config.Config, encoded, bodyFile, genome string, random int, seed int64) ([]*body.Body, error) {
	var out []*body.Body
	if encoded != "" {
		b, err := body.Decode(encoded)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if bodyFile != "" {
		bs, err := readBodyFile(bodyFile)
		if err != nil {
			return nil, err
		}
		out = append(out, bs...)
	}
	tmpl := body.MaterialFromConfig(cfg.Material)
	if genome != "" {
		g, err := evolve.ParseGenome(genome)
		if err != nil {
			return nil, err
		}
		b := body.BitMask{W: cfg.Body.Width, H: cfg.Body.Height, Template: tmpl}.Map(g)
		if b == nil {
			return nil, fmt.Errorf("genome %s: %w", genome, body.ErrEmptyBody)
		}
		out = append(out, b)
	}
	if random > 0 {
		if random > cfg.Derived.Cells {
			return nil, errors.New("-random exceeds the body grid")
		}
		out = append(out, body.Random(cfg.Body.Width, cfg.Body.Height, random, tmpl, rand.New(rand.NewSource(seed))))
	}
	return out, nil
}

func readBodyFile(path string) ([]*body.Body, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening body file: %w", err)
	}
	defer f.Close()

	var out []*body.Body
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		b, err := body.Decode(text)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, b)
	}
	return out, sc.Err()
}
