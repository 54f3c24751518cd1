package model

import (
	"encoding/json"
	"fmt"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Item is one catalogue entry that may be packed.
type Item struct {
	Value  float64 `json:"value" yaml:"value" validate:"min=0"`
	Weight float64 `json:"weight" yaml:"weight" validate:"min=0"`
}

// Individual is an inclusion vector over the catalogue: gene i is 1 when item i is packed.
type Individual []uint8

// Clone returns an independent copy so population slots never share backing arrays.
func (ind Individual) Clone() Individual {
	return append(Individual(nil), ind...)
}

// String renders the genes as a bit string, e.g. "0101".
func (ind Individual) String() string {
	buf := make([]byte, len(ind))
	for i, gene := range ind {
		buf[i] = '0' + gene
	}
	return string(buf)
}

// MarshalJSON encodes the genes as a bit string instead of base64.
func (ind Individual) MarshalJSON() ([]byte, error) {
	return json.Marshal(ind.String())
}

func (ind *Individual) UnmarshalJSON(data []byte) error {
	var bits string
	if err := json.Unmarshal(data, &bits); err != nil {
		return err
	}
	genes, err := ParseIndividual(bits)
	if err != nil {
		return err
	}
	*ind = genes
	return nil
}

// ParseIndividual decodes a bit string produced by Individual.String.
func ParseIndividual(bits string) (Individual, error) {
	out := make(Individual, len(bits))
	for i := 0; i < len(bits); i++ {
		switch bits[i] {
		case '0':
		case '1':
			out[i] = 1
		default:
			return nil, fmt.Errorf("invalid gene %q at position %d", bits[i], i)
		}
	}
	return out, nil
}

// Included returns the catalogue indices switched on in the individual.
func (ind Individual) Included() []int {
	out := make([]int, 0, len(ind))
	for i, gene := range ind {
		if gene == 1 {
			out = append(out, i)
		}
	}
	return out
}

type GenerationSummary struct {
	Generation int     `json:"generation"`
	BestValue  float64 `json:"best_value"`
}

type GenerationDiagnostics struct {
	Generation          int     `json:"generation"`
	BestValue           float64 `json:"best_value"`
	MeanFitness         float64 `json:"mean_fitness"`
	FeasibleCount       int     `json:"feasible_count"`
	DistinctIndividuals int     `json:"distinct_individuals"`
	Crossovers          int     `json:"crossovers"`
	Mutations           int     `json:"mutations"`
	DegenerateSelection bool    `json:"degenerate_selection,omitempty"`
}

type RunConfig struct {
	Catalogue        string  `json:"catalogue,omitempty"`
	Items            []Item  `json:"items"`
	Capacity         float64 `json:"capacity"`
	PopulationSize   int     `json:"population_size"`
	Generations      int     `json:"generations"`
	CrossoverRate    float64 `json:"crossover_rate"`
	MutationRate     float64 `json:"mutation_rate"`
	Selection        string  `json:"selection"`
	TournamentSize   int     `json:"tournament_size,omitempty"`
	DegeneratePolicy string  `json:"degenerate_policy"`
	Seed             int64   `json:"seed"`
}

type Champion struct {
	Genes  Individual `json:"genes"`
	Value  float64    `json:"value"`
	Weight float64    `json:"weight"`
}

// RunRecord is the persisted outcome of one completed run.
type RunRecord struct {
	VersionedRecord
	ID             string    `json:"id"`
	CreatedAtUTC   string    `json:"created_at_utc"`
	Config         RunConfig `json:"config"`
	FinalBestValue float64   `json:"final_best_value"`
	BestEverValue  float64   `json:"best_ever_value"`
	Champion       Champion  `json:"champion"`
}
