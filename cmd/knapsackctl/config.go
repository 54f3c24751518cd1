package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"knapsackga/internal/evo"
	"knapsackga/pkg/knapsackga"
)

func loadRunRequestFromConfig(path string) (knapsackga.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return knapsackga.RunRequest{}, err
	}

	var req knapsackga.RunRequest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		return knapsackga.RunRequest{}, fmt.Errorf("parse run config %s: %w", path, err)
	}
	return req, nil
}

type runFlags struct {
	configPath       string
	catalogue        string
	capacity         float64
	population       int
	generations      int
	crossoverRate    float64
	mutationRate     float64
	selection        string
	tournamentSize   int
	degeneratePolicy string
	seed             int64
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "YAML run configuration file")
	fs.StringVar(&f.catalogue, "catalogue", "", "built-in catalogue name (default example)")
	fs.Float64Var(&f.capacity, "capacity", 0, "knapsack capacity override")
	fs.IntVar(&f.population, "pop", 100, "population size")
	fs.IntVar(&f.generations, "gens", 50, "generations")
	fs.Float64Var(&f.crossoverRate, "crossover-rate", 0.7, "crossover probability per parent pair")
	fs.Float64Var(&f.mutationRate, "mutation-rate", 0.01, "bit flip probability per gene")
	fs.StringVar(&f.selection, "selection", "roulette", "selection strategy: roulette|tournament")
	fs.IntVar(&f.tournamentSize, "tournament-size", 3, "tournament size for tournament selection")
	fs.StringVar(&f.degeneratePolicy, "degenerate", "uniform", "all-zero fitness policy: uniform|fail")
	fs.Int64Var(&f.seed, "seed", 1, "random seed")
}

// request loads the config file when given and then applies every flag the user set.
// Without a config file the flag defaults apply as well.
func (f *runFlags) request(fs *pflag.FlagSet) (knapsackga.RunRequest, error) {
	var req knapsackga.RunRequest
	fromFile := f.configPath != ""
	if fromFile {
		loaded, err := loadRunRequestFromConfig(f.configPath)
		if err != nil {
			return knapsackga.RunRequest{}, err
		}
		req = loaded
	}
	use := func(name string) bool {
		return !fromFile || fs.Changed(name)
	}

	if fs.Changed("catalogue") {
		req.Catalogue = f.catalogue
		req.Items = nil
	}
	if fs.Changed("capacity") {
		capacity := f.capacity
		req.Capacity = &capacity
	}
	if use("pop") {
		if f.population < 1 {
			return knapsackga.RunRequest{}, fmt.Errorf("%w: --pop must be >= 1, got %d", evo.ErrInvalidConfiguration, f.population)
		}
		req.PopulationSize = f.population
	}
	if use("gens") {
		generations := f.generations
		req.Generations = &generations
	}
	if use("crossover-rate") {
		rate := f.crossoverRate
		req.CrossoverRate = &rate
	}
	if use("mutation-rate") {
		rate := f.mutationRate
		req.MutationRate = &rate
	}
	if use("selection") {
		req.Selection = f.selection
	}
	if use("tournament-size") {
		req.TournamentSize = f.tournamentSize
	}
	if use("degenerate") {
		req.DegeneratePolicy = f.degeneratePolicy
	}
	if use("seed") {
		req.Seed = f.seed
	}
	return req, nil
}
