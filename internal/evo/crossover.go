package evo

import (
	"math/rand"

	"knapsackga/internal/model"
)

// SinglePointCrossover recombines the selected population pairwise into a new population
// of the same size.
//
// Per pair the draws are: one rng.Float64() for participation, two rng.Intn for the distinct
// parent slots, then one rng.Intn(L-1) for the cut when recombining. An odd population
// is padded with a clone of one more uniformly drawn parent so the size never shrinks.
type SinglePointCrossover struct {
	Rate float64
}

func (c SinglePointCrossover) Apply(rng *rand.Rand, population []model.Individual) ([]model.Individual, int) {
	size := len(population)
	next := make([]model.Individual, size)
	crossovers := 0

	for pair := 0; pair < size/2; pair++ {
		recombine := rng.Float64() < c.Rate
		a, b := distinctPair(rng, size)
		length := len(population[a])
		slot := pair * 2
		if recombine && length >= 2 {
			cut := 1 + rng.Intn(length-1)
			next[slot], next[slot+1] = Recombine(population[a], population[b], cut)
			crossovers++
			continue
		}
		next[slot] = population[a].Clone()
		next[slot+1] = population[b].Clone()
	}

	if size%2 == 1 {
		next[size-1] = population[rng.Intn(size)].Clone()
	}
	return next, crossovers
}

// Recombine swaps the tails of two parents at cut, returning
// p1[:cut]++p2[cut:] and p2[:cut]++p1[cut:]. The parents are left untouched.
func Recombine(p1, p2 model.Individual, cut int) (model.Individual, model.Individual) {
	length := len(p1)
	o1 := make(model.Individual, length)
	o2 := make(model.Individual, length)
	copy(o1, p1[:cut])
	copy(o1[cut:], p2[cut:])
	copy(o2, p2[:cut])
	copy(o2[cut:], p1[cut:])
	return o1, o2
}

// distinctPair draws two different slot indices from [0, size). size must be >= 2.
func distinctPair(rng *rand.Rand, size int) (int, int) {
	a := rng.Intn(size)
	b := rng.Intn(size - 1)
	if b >= a {
		b++
	}
	return a, b
}
