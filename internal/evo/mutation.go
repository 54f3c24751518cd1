package evo

import (
	"math/rand"

	"knapsackga/internal/model"
)

// BitFlipMutator flips each gene independently with probability Rate, in place.
// Draws are row-major: one rng.Float64() per gene of every individual.
type BitFlipMutator struct {
	Rate float64
}

func (m BitFlipMutator) Apply(rng *rand.Rand, population []model.Individual) int {
	flips := 0
	for _, ind := range population {
		for j := range ind {
			if rng.Float64() < m.Rate {
				ind[j] = 1 - ind[j]
				flips++
			}
		}
	}
	return flips
}
