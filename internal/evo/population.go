package evo

import (
	"math/rand"

	"knapsackga/internal/model"
)

// InitPopulation draws size individuals of the given length with every gene uniform
// over {0,1}. Genes are drawn row-major, one rng.Intn(2) each.
func InitPopulation(rng *rand.Rand, size, length int) []model.Individual {
	population := make([]model.Individual, size)
	for i := range population {
		ind := make(model.Individual, length)
		for j := range ind {
			ind[j] = uint8(rng.Intn(2))
		}
		population[i] = ind
	}
	return population
}

func clonePopulation(population []model.Individual) []model.Individual {
	out := make([]model.Individual, len(population))
	for i, ind := range population {
		out[i] = ind.Clone()
	}
	return out
}

func distinctIndividuals(population []model.Individual) int {
	seen := make(map[string]struct{}, len(population))
	for _, ind := range population {
		seen[ind.String()] = struct{}{}
	}
	return len(seen)
}
