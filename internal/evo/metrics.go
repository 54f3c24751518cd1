package evo

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsNamespace = "knapsackga"
	evolverSubsystem = "evolver"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Generations          prometheus.Counter
	DegenerateSelections prometheus.Counter
	Crossovers           prometheus.Counter
	Mutations            prometheus.Counter
	BestValue            prometheus.Gauge
	FeasibleRatio        prometheus.Gauge
	GenerationDuration   prometheus.Histogram
}

// NewMetrics builds the collectors and registers them with reg when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: evolverSubsystem,
			Name:      "generations_total",
			Help:      "Completed generations.",
		}),
		DegenerateSelections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: evolverSubsystem,
			Name:      "degenerate_selections_total",
			Help:      "Selections where every individual scored zero.",
		}),
		Crossovers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: evolverSubsystem,
			Name:      "crossovers_total",
			Help:      "Parent pairs recombined at a cut point.",
		}),
		Mutations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: evolverSubsystem,
			Name:      "gene_flips_total",
			Help:      "Genes flipped by mutation.",
		}),
		BestValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: evolverSubsystem,
			Name:      "best_value",
			Help:      "Best feasible value in the latest generation.",
		}),
		FeasibleRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: evolverSubsystem,
			Name:      "feasible_ratio",
			Help:      "Share of the latest population within capacity.",
		}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: evolverSubsystem,
			Name:      "generation_duration_seconds",
			Help:      "Wall time of one selection, crossover and mutation cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Generations,
			m.DegenerateSelections,
			m.Crossovers,
			m.Mutations,
			m.BestValue,
			m.FeasibleRatio,
			m.GenerationDuration,
		)
	}
	return m
}

func (m *Metrics) observe(diag generationStats) {
	if m == nil {
		return
	}
	m.Generations.Inc()
	if diag.DegenerateSelection {
		m.DegenerateSelections.Inc()
	}
	m.Crossovers.Add(float64(diag.Crossovers))
	m.Mutations.Add(float64(diag.Mutations))
	m.BestValue.Set(diag.BestValue)
	if diag.populationSize > 0 {
		m.FeasibleRatio.Set(float64(diag.FeasibleCount) / float64(diag.populationSize))
	}
	m.GenerationDuration.Observe(diag.elapsed.Seconds())
}
