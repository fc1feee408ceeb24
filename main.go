package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/voxsoc/body"
	"github.com/pthm-cable/voxsoc/config"
	"github.com/pthm-cable/voxsoc/criticality"
	"github.com/pthm-cable/voxsoc/evolve"
	"github.com/pthm-cable/voxsoc/storage"
	"github.com/pthm-cable/voxsoc/telemetry"
)

// bitsPerGene is the bit width of one real-valued gene when a bit string
// drives the gaussian mapper.
const bitsPerGene = 8

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, plots and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = evolution.seed, then time-based)")
	iterations := flag.Int("iterations", 0, "GA iterations (0 = use config)")
	verbose := flag.Bool("verbose", false, "Log every evaluation")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *iterations > 0 {
		cfg.Evolution.Iterations = *iterations
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = cfg.Evolution.Seed
	}
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, rngSeed); err != nil {
		slog.Error("evolution failed", "error", err)
		os.Exit(1)
	}
}

// run evolves bodies for criticality and writes the results.
func run(ctx context.Context, cfg *config.Config, seed int64) error {
	genomeLen, mapBody, err := bodyMapper(cfg)
	if err != nil {
		return err
	}

	om, err := telemetry.NewOutputManager(cfg.Output.Dir)
	if err != nil {
		return err
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		return err
	}

	store, err := storage.New(ctx, cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	cfgYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	runRec := storage.NewRun("evolve", string(cfgYAML))
	if err := store.SaveRun(ctx, runRec); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	ev := criticality.NewEvaluator(cfg)
	cache, err := evolve.NewCache(cfg.Evolution.CacheSize)
	if err != nil {
		return err
	}
	fitness := func(ctx context.Context, g evolve.Genome) (float64, error) {
		b := mapBody(g)
		if b == nil {
			return 0, nil
		}
		r, err := ev.Evaluate(ctx, b)
		if err != nil {
			return 0, err
		}
		return r.Fitness, nil
	}

	rec := &recorder{
		mapBody:        mapBody,
		cache:          cache,
		hof:            telemetry.NewHallOfFame(cfg.Output.HallOfFameSize),
		perf:           telemetry.NewPerfCollector(cfg.Output.PerfWindow),
		bookmarks:      telemetry.NewBookmarkDetector(cfg.Output.StagnationWindow),
		store:          store,
		runID:          runRec.ID,
		om:             om,
		logGenerations: cfg.Output.LogGenerations,
	}
	evolver := evolve.NewEvolver(cfg.Evolution, genomeLen, cache.Wrap(fitness))
	evolver.Listener = func(gen evolve.Generation) { rec.record(ctx, gen) }

	slog.Info("starting evolution",
		"run", runRec.ID,
		"seed", seed,
		"population", cfg.Evolution.Population,
		"iterations", cfg.Evolution.Iterations,
		"genome_len", genomeLen,
		"mapper", cfg.Body.Mapper,
	)
	start := time.Now()
	rec.perf.Start()
	rec.perf.StartPhase(telemetry.PhaseEvolve)
	pop, solveErr := evolver.Solve(ctx, cfg.Evolution.Iterations, rand.New(rand.NewSource(seed)))

	// keep whatever was found before an interrupt
	if err := om.WriteHallOfFame(rec.hof); err != nil {
		slog.Warn("failed to write hall of fame", "error", err)
	}
	if solveErr != nil {
		return solveErr
	}

	hits, misses := cache.Stats()
	slog.Info("evolution complete",
		"elapsed", time.Since(start).Round(time.Second).String(),
		"best", pop[0].Fitness,
		"cache_hits", hits,
		"cache_misses", misses,
	)
	return reportBest(ctx, ev, mapBody(pop[0].Genome), om, cfg.Output.PlotDistributions)
}

// recorder logs, archives and ranks GA iterations.
type recorder struct {
	mapBody        func(evolve.Genome) *body.Body
	cache          *evolve.Cache
	hof            *telemetry.HallOfFame
	perf           *telemetry.PerfCollector
	bookmarks      *telemetry.BookmarkDetector
	store          storage.Store
	runID          string
	om             *telemetry.OutputManager
	logGenerations bool

	lastEvaluations int
}

// archiveBody encodes b for storage. A nil body archives as "" and an
// encoding failure is logged with attrs.
func archiveBody(b *body.Body, attrs ...any) string {
	if b == nil {
		return ""
	}
	encoded, err := body.Encode(b)
	if err != nil {
		slog.Warn("failed to encode body", append(attrs, "error", err)...)
	}
	return encoded
}

// record handles one GA iteration. The time since the previous call is
// charged to the evolve phase.
func (r *recorder) record(ctx context.Context, gen evolve.Generation) {
	r.perf.StartPhase(telemetry.PhaseArchive)
	fitness := make([]float64, len(gen.Population))
	keys := make([]string, len(gen.Population))
	var records []storage.Record
	for i, ind := range gen.Population {
		fitness[i] = ind.Fitness
		keys[i] = ind.Genome.String()

		b := r.mapBody(ind.Genome)
		encoded := archiveBody(b, "iteration", gen.Iteration, "genome", keys[i])
		if ind.Birth == gen.Iteration {
			records = append(records, storage.Record{
				Iteration: gen.Iteration,
				Genome:    keys[i],
				Body:      encoded,
				Fitness:   ind.Fitness,
			})
		}
		if b != nil {
			r.hof.Consider(telemetry.HallEntry{
				Genome:    keys[i],
				Body:      encoded,
				Fitness:   ind.Fitness,
				Iteration: ind.Birth,
				Voxels:    b.Count(),
			})
		}
	}
	if err := r.store.SaveRecords(ctx, r.runID, records); err != nil {
		slog.Warn("failed to archive generation", "iteration", gen.Iteration, "error", err)
	}

	r.perf.StartPhase(telemetry.PhaseReport)
	stats := telemetry.NewGenerationStats(gen.Iteration, gen.Evaluations, fitness, keys)
	stats.CacheHits, _ = r.cache.Stats()
	if b := r.mapBody(gen.Population[0].Genome); b != nil {
		stats.BestVoxels = b.Count()
	}
	stats.LogStats()
	for _, bm := range r.bookmarks.Check(stats) {
		bm.LogBookmark()
	}
	if r.logGenerations {
		if err := r.om.WriteGeneration(stats); err != nil {
			slog.Warn("failed to write generation", "error", err)
		}
	}

	r.perf.End(gen.Evaluations - r.lastEvaluations)
	r.lastEvaluations = gen.Evaluations
	perf := r.perf.Stats()
	slog.Debug("perf", "iteration", gen.Iteration, "stats", perf)
	if r.logGenerations {
		if err := r.om.WritePerf(perf.ToCSV(gen.Iteration)); err != nil {
			slog.Warn("failed to write perf", "error", err)
		}
	}

	r.perf.Start()
	r.perf.StartPhase(telemetry.PhaseEvolve)
}

// reportBest re-evaluates the best body and writes its measurements and
// distributions.
func reportBest(ctx context.Context, ev *criticality.Evaluator, best *body.Body, om *telemetry.OutputManager, plots bool) error {
	if best == nil {
		slog.Warn("best genome maps to an empty body")
		return nil
	}
	r, err := ev.Evaluate(ctx, best)
	if err != nil {
		return fmt.Errorf("evaluating best body: %w", err)
	}
	encoded, err := body.Encode(best)
	if err != nil {
		return err
	}
	slog.Info("best body",
		"fitness", r.Fitness,
		"voxels", best.Count(),
		"spatial_r2", r.Spatial.Fit.R2,
		"temporal_r2", r.Temporal.Fit.R2,
		"body", encoded,
	)
	fmt.Print(body.Render(best))

	if err := om.WriteMeasurements("measurements.csv", r.Measurements); err != nil {
		return err
	}
	if err := om.WriteJSON("best.json", r); err != nil {
		// NaN statistics have no JSON form
		slog.Warn("failed to write best.json", "error", err)
	}
	for name, d := range map[string]criticality.Distribution{"spatial": r.Spatial, "temporal": r.Temporal} {
		if err := om.WriteDistribution(name+".csv", d); err != nil {
			return err
		}
		if plots && len(d.Points) > 0 {
			if err := om.WritePlot(name+".png", name+" avalanches", d); err != nil {
				slog.Warn("failed to plot distribution", "axis", name, "error", err)
			}
		}
	}
	return nil
}

// bodyMapper returns the genome length and genome-to-body function selected
// by body.mapper.
func bodyMapper(cfg *config.Config) (int, func(evolve.Genome) *body.Body, error) {
	tmpl := body.MaterialFromConfig(cfg.Material)
	switch cfg.Body.Mapper {
	case "bitmask":
		m := body.BitMask{W: cfg.Body.Width, H: cfg.Body.Height, Template: tmpl}
		return m.GenomeLen(), func(g evolve.Genome) *body.Body { return m.Map(g) }, nil
	case "gaussian":
		m := body.GaussianField{
			W:         cfg.Body.Width,
			H:         cfg.Body.Height,
			Kernels:   cfg.Body.Gaussians,
			Threshold: cfg.Body.FieldThreshold,
			Template:  tmpl,
		}
		return m.GenomeLen() * bitsPerGene, func(g evolve.Genome) *body.Body { return m.Map(genes(g)) }, nil
	default:
		return 0, nil, fmt.Errorf("unknown body.mapper %q", cfg.Body.Mapper)
	}
}

// genes reads consecutive bitsPerGene-bit groups as values in [0, 1].
func genes(g evolve.Genome) []float64 {
	out := make([]float64, len(g)/bitsPerGene)
	for i := range out {
		v := 0
		for _, bit := range g[i*bitsPerGene : (i+1)*bitsPerGene] {
			v <<= 1
			if bit {
				v |= 1
			}
		}
		out[i] = float64(v) / float64(1<<bitsPerGene-1)
	}
	return out
}
