// Package main provides CMA-ES optimization of gait controllers for a fixed
// voxel body on a task.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/optimize"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/voxsoc/body"
	"github.com/pthm-cable/voxsoc/config"
	"github.com/pthm-cable/voxsoc/storage"
	"github.com/pthm-cable/voxsoc/task"
	"github.com/pthm-cable/voxsoc/telemetry"
)

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// bestController is the JSON summary written at the end of a run.
type bestController struct {
	Task   string    `json:"task"`
	Kind   string    `json:"kind"`
	Body   string    `json:"body"`
	Metric float64   `json:"metric"`
	Hidden []int     `json:"hidden_layers,omitempty"`
	Params []float64 `json:"params"`
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	encoded := flag.String("body", "", "Encoded body to optimize (empty = random body)")
	voxels := flag.Int("voxels", 0, "Voxels of the random body (0 = body.voxels)")
	seed := flag.Int64("seed", 1, "RNG seed for the random body")
	taskName := flag.String("task", "", "Task name (empty = task.name)")
	kind := flag.String("kind", "", "Controller kind: phase or neural (empty = controller.kind)")
	maxEvals := flag.Int("max-evals", 0, "Maximum number of evaluations (0 = controller.max_evals)")
	population := flag.Int("population", 0, "CMA-ES population size (0 = controller.population, then auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}

	// Load base config
	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Cfg()
	if *taskName != "" {
		cfg.Task.Name = *taskName
	}
	if *kind != "" {
		cfg.Controller.Kind = *kind
	}
	if *maxEvals > 0 {
		cfg.Controller.MaxEvals = *maxEvals
	}
	if *population > 0 {
		cfg.Controller.Population = *population
	}
	if *voxels > 0 {
		cfg.Body.Voxels = *voxels
	}
	cfg.Output.Dir = *outputDir

	b, err := loadBody(cfg, *encoded, *seed)
	if err != nil {
		log.Fatalf("failed to load body: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, b); err != nil {
		log.Fatalf("optimization failed: %v", err)
	}
}

func loadBody(cfg *config.Config, encoded string, seed int64) (*body.Body, error) {
	if encoded != "" {
		return body.Decode(encoded)
	}
	if cfg.Body.Voxels > cfg.Derived.Cells {
		return nil, fmt.Errorf("body.voxels %d exceeds a %dx%d grid", cfg.Body.Voxels, cfg.Body.Width, cfg.Body.Height)
	}
	tmpl := body.MaterialFromConfig(cfg.Material)
	return body.Random(cfg.Body.Width, cfg.Body.Height, cfg.Body.Voxels, tmpl, rand.New(rand.NewSource(seed))), nil
}

func run(ctx context.Context, cfg *config.Config, b *body.Body) error {
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
	runRec := storage.NewRun("optimize", string(cfgYAML))
	if err := store.SaveRun(ctx, runRec); err != nil {
		return err
	}

	t, err := task.Lookup(cfg.Task.Name, cfg)
	if err != nil {
		return err
	}

	// Create parameter vector
	params, err := NewParamVector(cfg.Controller.Kind, b, cfg.Controller.HiddenLayers)
	if err != nil {
		return err
	}
	evaluator := NewFitnessEvaluator(ctx, params, b, t)

	// Set up CMA-ES
	dim := params.Dim()
	if dim == 0 {
		return fmt.Errorf("%s controller has no parameters", cfg.Controller.Kind)
	}
	initX := params.Normalize(params.DefaultVector())

	// Create optimization problem
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			// Denormalize to get raw parameter values
			return evaluator.Evaluate(params.Denormalize(x))
		},
	}

	maxEvals := cfg.Controller.MaxEvals
	settings := &optimize.Settings{
		FuncEvaluations: maxEvals,
		Concurrent:      0, // Sequential evaluation
	}

	// Population size
	popSize := cfg.Controller.Population
	if popSize == 0 {
		// Auto-size: 4 + floor(3*ln(n))
		popSize = 4 + int(math.Floor(3*math.Log(float64(dim))))
	}

	method := &optimize.CmaEsChol{
		InitStepSize: cfg.Controller.InitStepSize,
		Population:   popSize,
	}

	// Track evaluations and timing
	evalCount := 0
	startTime := time.Now()

	// Wrap the function to log evaluations
	originalFunc := problem.Func
	problem.Func = func(x []float64) float64 {
		if ctx.Err() != nil {
			return 0
		}
		fitness := originalFunc(x)
		evalCount++

		// Log clamped values (these are the values actually used)
		clamped := params.Clamp(params.Denormalize(x))
		if err := om.WriteEvaluation(telemetry.EvaluationRecord{
			Eval:    evalCount,
			Fitness: fitness,
			Params:  formatParams(clamped),
		}); err != nil {
			slog.Warn("failed to log evaluation", "error", err)
		}

		// Calculate timing
		elapsed := time.Since(startTime)
		avgPerEval := elapsed / time.Duration(evalCount)
		remaining := time.Duration(maxEvals-evalCount) * avgPerEval

		bestMetric, _ := evaluator.Best()
		fmt.Printf("Eval %d/%d: %s=%.4f (best=%.4f, unstable=%d) | elapsed: %s, ETA: %s\n",
			evalCount, maxEvals, t.Name(), evaluator.LastMetric(), bestMetric, evaluator.Unstable(),
			formatDuration(elapsed), formatDuration(remaining))

		return fitness
	}

	// Run optimization
	fmt.Printf("Starting CMA-ES optimization of a %s controller with %d parameters, population=%d, max_evals=%d\n",
		cfg.Controller.Kind, dim, popSize, maxEvals)
	fmt.Printf("Task: %s, body voxels: %d\n", t.Name(), b.Count())
	fmt.Print(body.Render(b))

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}

	// Use best params found (may be from any evaluation, not just final)
	bestMetric, bestParams := evaluator.Best()
	if len(bestParams) == 0 && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}

	if evalCount == 0 {
		return ctx.Err()
	}

	totalTime := time.Since(startTime)
	fmt.Printf("\nOptimization complete after %d evaluations in %s\n", evalCount, formatDuration(totalTime))
	fmt.Printf("Best %s: %.4f\n", t.Name(), bestMetric)

	encoded, err := body.Encode(b)
	if err != nil {
		return err
	}
	summary := bestController{
		Task:   t.Name(),
		Kind:   cfg.Controller.Kind,
		Body:   encoded,
		Metric: bestMetric,
		Params: bestParams,
	}
	if cfg.Controller.Kind == "neural" {
		summary.Hidden = cfg.Controller.HiddenLayers
	}
	if err := om.WriteJSON("best_controller.json", summary); err != nil {
		log.Printf("failed to write best controller: %v", err)
	} else {
		fmt.Printf("\nBest controller saved to: %s\n", om.Dir()+"/best_controller.json")
	}

	paramsJSON, _ := json.Marshal(bestParams)
	return store.SaveRecords(ctx, runRec.ID, []storage.Record{{
		Iteration: evalCount,
		Genome:    string(paramsJSON),
		Body:      encoded,
		Fitness:   bestMetric,
	}})
}

func formatParams(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'f', 6, 64)
	}
	return strings.Join(parts, " ")
}
