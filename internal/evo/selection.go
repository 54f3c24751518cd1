package evo

import (
	"fmt"
	"math/rand"
	"sort"

	"knapsackga/internal/model"
)

// DegeneratePolicy decides what roulette selection does when every score is zero.
type DegeneratePolicy string

const (
	// DegenerateUniform falls back to uniform draws with replacement.
	DegenerateUniform DegeneratePolicy = "uniform"
	// DegenerateFail aborts the generation with ErrDegenerateSelection.
	DegenerateFail DegeneratePolicy = "fail"
)

func ParseDegeneratePolicy(name string) (DegeneratePolicy, error) {
	switch DegeneratePolicy(name) {
	case "", DegenerateUniform:
		return DegenerateUniform, nil
	case DegenerateFail:
		return DegenerateFail, nil
	default:
		return "", fmt.Errorf("unsupported degenerate policy: %s", name)
	}
}

// Selection is the population produced by a selector.
type Selection struct {
	Population []model.Individual
	// Degenerate reports that the scores carried no signal and the fallback was used.
	Degenerate bool
}

// Selector builds the next mating population from the scored current one.
type Selector interface {
	Name() string
	Select(rng *rand.Rand, population []model.Individual, scores []float64) (Selection, error)
}

// RouletteSelector draws len(population) individuals with replacement, each with
// probability proportional to its score. Every draw consumes one rng.Float64(), or one
// rng.Intn(P) under the uniform fallback.
type RouletteSelector struct {
	Policy DegeneratePolicy
}

func (RouletteSelector) Name() string {
	return "roulette"
}

func (s RouletteSelector) Select(rng *rand.Rand, population []model.Individual, scores []float64) (Selection, error) {
	if rng == nil {
		return Selection{}, fmt.Errorf("random source is required")
	}
	if len(scores) != len(population) {
		return Selection{}, fmt.Errorf("score count mismatch: got=%d want=%d", len(scores), len(population))
	}
	size := len(population)
	if size == 0 {
		return Selection{Population: []model.Individual{}}, nil
	}

	cumulative := make([]float64, size)
	total := 0.0
	lastPositive := -1
	for i, score := range scores {
		total += score
		cumulative[i] = total
		if score > 0 {
			lastPositive = i
		}
	}

	next := make([]model.Individual, size)
	if total <= 0 {
		if s.Policy == DegenerateFail {
			return Selection{}, ErrDegenerateSelection
		}
		for i := range next {
			next[i] = population[rng.Intn(size)].Clone()
		}
		return Selection{Population: next, Degenerate: true}, nil
	}

	for i := range next {
		r := rng.Float64() * total
		idx := sort.Search(size, func(j int) bool { return cumulative[j] > r })
		if idx == size {
			// r rounded up onto the total.
			idx = lastPositive
		}
		next[i] = population[idx].Clone()
	}
	return Selection{Population: next}, nil
}

// TournamentSelector fills each slot with the best of Size uniformly drawn contestants.
type TournamentSelector struct {
	Size int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) Select(rng *rand.Rand, population []model.Individual, scores []float64) (Selection, error) {
	if rng == nil {
		return Selection{}, fmt.Errorf("random source is required")
	}
	if len(scores) != len(population) {
		return Selection{}, fmt.Errorf("score count mismatch: got=%d want=%d", len(scores), len(population))
	}
	size := len(population)

	tournamentSize := s.Size
	if tournamentSize <= 0 {
		tournamentSize = 3
	}
	if tournamentSize > size {
		tournamentSize = size
	}

	next := make([]model.Individual, size)
	for i := range next {
		best := rng.Intn(size)
		for k := 1; k < tournamentSize; k++ {
			candidate := rng.Intn(size)
			if scores[candidate] > scores[best] {
				best = candidate
			}
		}
		next[i] = population[best].Clone()
	}
	return Selection{Population: next}, nil
}

// SelectorFromName resolves a selection strategy by name.
func SelectorFromName(name string, tournamentSize int, policy DegeneratePolicy) (Selector, error) {
	switch name {
	case "", "roulette":
		return RouletteSelector{Policy: policy}, nil
	case "tournament":
		return TournamentSelector{Size: tournamentSize}, nil
	default:
		return nil, fmt.Errorf("unsupported selection strategy: %s", name)
	}
}
