package knapsackga

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"knapsackga/internal/evo"
	"knapsackga/internal/model"
)

const (
	defaultPopulation    = 100
	defaultGenerations   = 50
	defaultCrossoverRate = 0.7
	defaultMutationRate  = 0.01
	defaultSelection     = "roulette"
)

// RunRequest configures one run. It doubles as the YAML run configuration file.
// Nil pointers take the documented defaults; zero is a meaningful value for each of them.
type RunRequest struct {
	Catalogue        string       `yaml:"catalogue"`
	Items            []model.Item `yaml:"items" validate:"dive"`
	Capacity         *float64     `yaml:"capacity" validate:"omitempty,min=0"`
	PopulationSize   int          `yaml:"population_size" validate:"min=1"`
	Generations      *int         `yaml:"generations" validate:"omitempty,min=0"`
	CrossoverRate    *float64     `yaml:"crossover_rate" validate:"omitempty,min=0,max=1"`
	MutationRate     *float64     `yaml:"mutation_rate" validate:"omitempty,min=0,max=1"`
	Selection        string       `yaml:"selection" validate:"oneof=roulette tournament"`
	TournamentSize   int          `yaml:"tournament_size" validate:"min=0"`
	DegeneratePolicy string       `yaml:"degenerate_policy" validate:"oneof=uniform fail"`
	Seed             int64        `yaml:"seed"`

	// Observe receives every generation summary as it is produced.
	Observe func(model.GenerationSummary) `yaml:"-"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(field.Name)
		}
		return name
	})
	return v
}

func withDefaults(req RunRequest) RunRequest {
	if req.Catalogue == "" && len(req.Items) == 0 {
		req.Catalogue = defaultCatalogue
	}
	if req.PopulationSize == 0 {
		req.PopulationSize = defaultPopulation
	}
	if req.Generations == nil {
		g := defaultGenerations
		req.Generations = &g
	}
	if req.CrossoverRate == nil {
		rate := defaultCrossoverRate
		req.CrossoverRate = &rate
	}
	if req.MutationRate == nil {
		rate := defaultMutationRate
		req.MutationRate = &rate
	}
	if req.Selection == "" {
		req.Selection = defaultSelection
	}
	if req.DegeneratePolicy == "" {
		req.DegeneratePolicy = string(evo.DegenerateUniform)
	}
	return req
}

// resolve validates a defaulted request and expands it into the persisted run configuration.
func resolve(req RunRequest) (model.RunConfig, error) {
	if err := validate.Struct(req); err != nil {
		return model.RunConfig{}, fmt.Errorf("%w: %s", evo.ErrInvalidConfiguration, formatValidationError(err))
	}

	cfg := model.RunConfig{
		Catalogue:        req.Catalogue,
		PopulationSize:   req.PopulationSize,
		Generations:      *req.Generations,
		CrossoverRate:    *req.CrossoverRate,
		MutationRate:     *req.MutationRate,
		Selection:        req.Selection,
		TournamentSize:   req.TournamentSize,
		DegeneratePolicy: req.DegeneratePolicy,
		Seed:             req.Seed,
	}

	switch {
	case req.Catalogue != "" && len(req.Items) > 0:
		return model.RunConfig{}, fmt.Errorf("%w: use either catalogue or items", evo.ErrInvalidConfiguration)
	case len(req.Items) > 0:
		if req.Capacity == nil {
			return model.RunConfig{}, fmt.Errorf("%w: capacity is required with items", evo.ErrInvalidConfiguration)
		}
		cfg.Items = append([]model.Item(nil), req.Items...)
		cfg.Capacity = *req.Capacity
	default:
		catalogue, ok := LookupCatalogue(req.Catalogue)
		if !ok {
			return model.RunConfig{}, fmt.Errorf("%w: unknown catalogue %q", evo.ErrInvalidConfiguration, req.Catalogue)
		}
		cfg.Items = catalogue.Items
		cfg.Capacity = catalogue.Capacity
		if req.Capacity != nil {
			cfg.Capacity = *req.Capacity
		}
	}
	return cfg, nil
}

func formatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}
	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, formatFieldError(e))
	}
	return strings.Join(messages, "; ")
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be >= %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be <= %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
