package knapsackga

import (
	"sort"

	"knapsackga/internal/model"
)

const defaultCatalogue = "example"

type Catalogue struct {
	Name        string
	Description string
	Items       []model.Item
	Capacity    float64
}

var catalogues = map[string]Catalogue{
	"example": {
		Name:        "example",
		Description: "four items, capacity 50",
		Items: []model.Item{
			{Value: 10, Weight: 5},
			{Value: 40, Weight: 10},
			{Value: 30, Weight: 20},
			{Value: 50, Weight: 30},
		},
		Capacity: 50,
	},
}

// LookupCatalogue returns a copy of a built-in catalogue.
func LookupCatalogue(name string) (Catalogue, bool) {
	c, ok := catalogues[name]
	if !ok {
		return Catalogue{}, false
	}
	c.Items = append([]model.Item(nil), c.Items...)
	return c, true
}

// Catalogues lists the built-in catalogues by name.
func Catalogues() []Catalogue {
	out := make([]Catalogue, 0, len(catalogues))
	for name := range catalogues {
		c, _ := LookupCatalogue(name)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
