package evolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"github.com/pthm-cable/voxsoc/config"
)

// FitnessFunc scores a genome; higher is better. It must be safe for
// concurrent use.
type FitnessFunc func(ctx context.Context, g Genome) (float64, error)

// Individual is an evaluated genome.
type Individual struct {
	Genome  Genome
	Fitness float64
	Birth   int // Iteration that produced it; 0 for the initial population
}

// Generation is reported to the listener after each iteration.
type Generation struct {
	Iteration   int
	Evaluations int          // Fitness calls so far
	Population  []Individual // Sorted best first; only valid during the listener call
}

// Evolver is a steady-state GA with overlapping generations: each iteration
// breeds Offspring children from tournament-selected parents, merges them
// into the population and removes the worst until PopulationSize remain.
type Evolver struct {
	GenomeLen      int
	PopulationSize int
	Offspring      int
	Tournament     int
	Operators      []Weighted
	Workers        int
	Fitness        FitnessFunc
	Listener       func(Generation)

	evaluations int
}

// NewEvolver configures an evolver from cfg. Offspring per iteration equal
// the population size.
func NewEvolver(cfg config.EvolutionConfig, genomeLen int, fitness FitnessFunc) *Evolver {
	workers := cfg.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Evolver{
		GenomeLen:      genomeLen,
		PopulationSize: cfg.Population,
		Offspring:      cfg.Population,
		Tournament:     cfg.Tournament,
		Operators: []Weighted{
			{Op: BitFlip{P: cfg.MutationProb}, Weight: cfg.MutationRate},
			{Op: UniformCrossover{}, Weight: cfg.CrossoverRate},
		},
		Workers: workers,
		Fitness: fitness,
	}
}

// Solve runs the given number of iterations and returns the final
// population, best first. All randomness comes from rng, so a fixed seed
// and a deterministic fitness give a reproducible run.
func (e *Evolver) Solve(ctx context.Context, iterations int, rng *rand.Rand) ([]Individual, error) {
	if e.PopulationSize < 1 || e.GenomeLen < 1 {
		return nil, fmt.Errorf("population %d and genome length %d must be positive", e.PopulationSize, e.GenomeLen)
	}
	if len(e.Operators) == 0 {
		return nil, errors.New("no variation operators")
	}

	genomes := make([]Genome, e.PopulationSize)
	for i := range genomes {
		genomes[i] = RandomGenome(e.GenomeLen, rng)
	}
	pop, err := e.evaluate(ctx, genomes, 0)
	if err != nil {
		return nil, err
	}
	sortByFitness(pop)
	e.report(0, pop)

	for it := 1; it <= iterations; it++ {
		children := make([]Genome, e.Offspring)
		for i := range children {
			op := pick(e.Operators, rng)
			parents := make([]Genome, op.Arity())
			for p := range parents {
				parents[p] = e.tournament(pop, rng).Genome
			}
			children[i] = op.Apply(parents, rng)
		}

		offspring, err := e.evaluate(ctx, children, it)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", it, err)
		}
		pop = append(pop, offspring...)
		sortByFitness(pop)
		pop = pop[:e.PopulationSize]
		e.report(it, pop)
	}
	return pop, nil
}

// tournament returns the fittest of Tournament individuals drawn with
// replacement.
func (e *Evolver) tournament(pop []Individual, rng *rand.Rand) Individual {
	best := pop[rng.Intn(len(pop))]
	for i := 1; i < e.Tournament; i++ {
		if c := pop[rng.Intn(len(pop))]; c.Fitness > best.Fitness {
			best = c
		}
	}
	return best
}

// evaluate scores genomes concurrently. Results keep the input order.
func (e *Evolver) evaluate(ctx context.Context, genomes []Genome, birth int) ([]Individual, error) {
	out := make([]Individual, len(genomes))
	p := pool.New().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(max(e.Workers, 1))
	for i, g := range genomes {
		p.Go(func(ctx context.Context) error {
			f, err := e.Fitness(ctx, g)
			if err != nil {
				return err
			}
			if math.IsNaN(f) || math.IsInf(f, 0) {
				f = 0
			}
			out[i] = Individual{Genome: g, Fitness: f, Birth: birth}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	e.evaluations += len(genomes)
	return out, nil
}

func (e *Evolver) report(it int, pop []Individual) {
	slog.Debug("generation",
		"iteration", it,
		"evaluations", e.evaluations,
		"best", pop[0].Fitness,
	)
	if e.Listener != nil {
		e.Listener(Generation{Iteration: it, Evaluations: e.evaluations, Population: pop})
	}
}

// sortByFitness orders best first. Ties keep their order, so older
// individuals survive over equally fit newcomers.
func sortByFitness(pop []Individual) {
	sort.SliceStable(pop, func(i, j int) bool { return pop[i].Fitness > pop[j].Fitness })
}
