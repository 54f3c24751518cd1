package evo

import "knapsackga/internal/model"

// Evaluator scores individuals against a fixed catalogue and capacity.
type Evaluator struct {
	items    []model.Item
	capacity float64
}

func NewEvaluator(items []model.Item, capacity float64) Evaluator {
	return Evaluator{
		items:    append([]model.Item(nil), items...),
		capacity: capacity,
	}
}

func (e Evaluator) Capacity() float64 {
	return e.capacity
}

// Totals folds the included items into their summed value and weight.
func (e Evaluator) Totals(ind model.Individual) (value, weight float64) {
	for i, gene := range ind {
		if gene == 0 {
			continue
		}
		value += e.items[i].Value
		weight += e.items[i].Weight
	}
	return value, weight
}

func (e Evaluator) Feasible(ind model.Individual) bool {
	_, weight := e.Totals(ind)
	return weight <= e.capacity
}

// Fitness returns the packed value, or zero when the capacity is exceeded by any amount.
func (e Evaluator) Fitness(ind model.Individual) float64 {
	value, weight := e.Totals(ind)
	if weight > e.capacity {
		return 0
	}
	return value
}

func (e Evaluator) Scores(population []model.Individual) []float64 {
	scores := make([]float64, len(population))
	for i, ind := range population {
		scores[i] = e.Fitness(ind)
	}
	return scores
}

// Champion returns the fittest individual, preferring the lowest index on ties.
func (e Evaluator) Champion(population []model.Individual) model.Champion {
	if len(population) == 0 {
		return model.Champion{}
	}
	best := 0
	bestFitness := e.Fitness(population[0])
	for i := 1; i < len(population); i++ {
		if f := e.Fitness(population[i]); f > bestFitness {
			best = i
			bestFitness = f
		}
	}
	value, weight := e.Totals(population[best])
	return model.Champion{
		Genes:  population[best].Clone(),
		Value:  value,
		Weight: weight,
	}
}
