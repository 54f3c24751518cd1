package evo

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"knapsackga/internal/model"
)

// Config describes one evolutionary search over a knapsack catalogue.
type Config struct {
	Items          []model.Item
	Capacity       float64
	PopulationSize int
	Generations    int
	CrossoverRate  float64
	MutationRate   float64
	// Selector defaults to roulette selection with the uniform degenerate fallback.
	Selector Selector
	// Rand is the only random source the engine draws from. When nil a source seeded
	// with Seed is created.
	Rand    *rand.Rand
	Seed    int64
	Logger  *zap.Logger
	Metrics *Metrics
}

type RunResult struct {
	BestByGeneration []float64
	Diagnostics      []model.GenerationDiagnostics
	FinalPopulation  []model.Individual
	Champion         model.Champion
}

// Evolver owns the population and drives the generational loop:
// selection, crossover, mutation, then scoring for the generation summary.
type Evolver struct {
	cfg       Config
	rng       *rand.Rand
	log       *zap.Logger
	evaluator Evaluator
	crossover SinglePointCrossover
	mutator   BitFlipMutator

	population  []model.Individual
	generation  int
	bestHistory []float64
	diagnostics []model.GenerationDiagnostics
}

type generationStats struct {
	model.GenerationDiagnostics
	populationSize int
	elapsed        time.Duration
}

func NewEvolver(cfg Config) (*Evolver, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.Selector == nil {
		cfg.Selector = RouletteSelector{Policy: DegenerateUniform}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	cfg.Items = append([]model.Item(nil), cfg.Items...)

	return &Evolver{
		cfg:         cfg,
		rng:         rng,
		log:         cfg.Logger.With(zap.String("selection", cfg.Selector.Name())),
		evaluator:   NewEvaluator(cfg.Items, cfg.Capacity),
		crossover:   SinglePointCrossover{Rate: cfg.CrossoverRate},
		mutator:     BitFlipMutator{Rate: cfg.MutationRate},
		population:  InitPopulation(rng, cfg.PopulationSize, len(cfg.Items)),
		bestHistory: make([]float64, 0, cfg.Generations),
		diagnostics: make([]model.GenerationDiagnostics, 0, cfg.Generations),
	}, nil
}

func validateConfig(cfg Config) error {
	if len(cfg.Items) == 0 {
		return fmt.Errorf("%w: catalogue must contain at least one item", ErrInvalidConfiguration)
	}
	totalValue, totalWeight := 0.0, 0.0
	for i, item := range cfg.Items {
		if !nonNegativeFinite(item.Value) || !nonNegativeFinite(item.Weight) {
			return fmt.Errorf("%w: item %d must have finite non-negative value and weight", ErrInvalidConfiguration, i)
		}
		totalValue += item.Value
		totalWeight += item.Weight
	}
	if math.IsInf(totalValue, 1) || math.IsInf(totalWeight, 1) {
		return fmt.Errorf("%w: catalogue value and weight totals must be finite", ErrInvalidConfiguration)
	}
	if !nonNegativeFinite(cfg.Capacity) {
		return fmt.Errorf("%w: capacity must be finite and >= 0, got %v", ErrInvalidConfiguration, cfg.Capacity)
	}
	if cfg.PopulationSize < 1 {
		return fmt.Errorf("%w: population size must be >= 1, got %d", ErrInvalidConfiguration, cfg.PopulationSize)
	}
	// Roulette selection sums fitness over the whole population.
	if math.IsInf(totalValue*float64(cfg.PopulationSize), 1) {
		return fmt.Errorf("%w: population fitness total overflows", ErrInvalidConfiguration)
	}
	if cfg.Generations < 0 {
		return fmt.Errorf("%w: generations must be >= 0, got %d", ErrInvalidConfiguration, cfg.Generations)
	}
	if !isProbability(cfg.CrossoverRate) {
		return fmt.Errorf("%w: crossover rate must be in [0, 1], got %v", ErrInvalidConfiguration, cfg.CrossoverRate)
	}
	if !isProbability(cfg.MutationRate) {
		return fmt.Errorf("%w: mutation rate must be in [0, 1], got %v", ErrInvalidConfiguration, cfg.MutationRate)
	}
	return nil
}

func nonNegativeFinite(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}

func isProbability(v float64) bool {
	return v >= 0 && v <= 1
}

// Generation is the number of completed generations.
func (e *Evolver) Generation() int {
	return e.generation
}

// Population returns a copy of the current population.
func (e *Evolver) Population() []model.Individual {
	return clonePopulation(e.population)
}

func (e *Evolver) Champion() model.Champion {
	return e.evaluator.Champion(e.population)
}

// Step runs one generation. The context is only consulted before the generation
// starts; once started a generation always completes or fails as a whole.
func (e *Evolver) Step(ctx context.Context) (model.GenerationDiagnostics, error) {
	if err := ctx.Err(); err != nil {
		return model.GenerationDiagnostics{}, err
	}
	start := time.Now()

	scores := e.evaluator.Scores(e.population)
	selected, err := e.cfg.Selector.Select(e.rng, e.population, scores)
	if err != nil {
		return model.GenerationDiagnostics{}, fmt.Errorf("generation %d selection: %w", e.generation, err)
	}
	if selected.Degenerate {
		e.log.Warn("all individuals infeasible or valueless, selecting uniformly",
			zap.Int("generation", e.generation),
			zap.Int("population", len(e.population)),
		)
	}

	next, crossovers := e.crossover.Apply(e.rng, selected.Population)
	flips := e.mutator.Apply(e.rng, next)
	e.population = next

	stats := generationStats{
		GenerationDiagnostics: e.summarize(),
		populationSize:        len(next),
	}
	stats.Crossovers = crossovers
	stats.Mutations = flips
	stats.DegenerateSelection = selected.Degenerate
	stats.elapsed = time.Since(start)

	e.bestHistory = append(e.bestHistory, stats.BestValue)
	e.diagnostics = append(e.diagnostics, stats.GenerationDiagnostics)
	e.generation++
	e.cfg.Metrics.observe(stats)

	e.log.Debug("generation complete",
		zap.Int("generation", stats.Generation),
		zap.Float64("best_value", stats.BestValue),
		zap.Float64("mean_fitness", stats.MeanFitness),
		zap.Int("feasible", stats.FeasibleCount),
		zap.Int("crossovers", crossovers),
		zap.Int("flips", flips),
	)
	return stats.GenerationDiagnostics, nil
}

func (e *Evolver) summarize() model.GenerationDiagnostics {
	diag := model.GenerationDiagnostics{
		Generation:          e.generation,
		DistinctIndividuals: distinctIndividuals(e.population),
	}
	total := 0.0
	for i, ind := range e.population {
		value, weight := e.evaluator.Totals(ind)
		fitness := 0.0
		if weight <= e.evaluator.Capacity() {
			fitness = value
			diag.FeasibleCount++
		}
		total += fitness
		if i == 0 || fitness > diag.BestValue {
			diag.BestValue = fitness
		}
	}
	if len(e.population) > 0 {
		diag.MeanFitness = total / float64(len(e.population))
	}
	return diag
}

// Run executes the remaining generations, reporting each one to observe (which may be nil).
func (e *Evolver) Run(ctx context.Context, observe func(model.GenerationSummary)) (RunResult, error) {
	for e.generation < e.cfg.Generations {
		diag, err := e.Step(ctx)
		if err != nil {
			return RunResult{}, err
		}
		if observe != nil {
			observe(model.GenerationSummary{Generation: diag.Generation, BestValue: diag.BestValue})
		}
	}

	champion := e.Champion()
	e.log.Info("run complete",
		zap.Int("generations", e.generation),
		zap.Float64("champion_value", champion.Value),
		zap.Float64("champion_weight", champion.Weight),
		zap.Stringer("champion", champion.Genes),
	)
	return RunResult{
		BestByGeneration: append([]float64(nil), e.bestHistory...),
		Diagnostics:      append([]model.GenerationDiagnostics(nil), e.diagnostics...),
		FinalPopulation:  e.Population(),
		Champion:         champion,
	}, nil
}
