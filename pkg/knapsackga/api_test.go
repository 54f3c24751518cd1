package knapsackga

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knapsackga/internal/evo"
	"knapsackga/internal/model"
)

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	base := t.TempDir()
	if opts.StoreKind == "" {
		opts.StoreKind = "memory"
	}
	opts.RunsDir = filepath.Join(base, "runs")
	opts.BenchmarksDir = filepath.Join(base, "benchmarks")
	opts.ExportsDir = filepath.Join(base, "exports")
	client, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestClientRunRunsAndExport(t *testing.T) {
	client := newTestClient(t, Options{})
	ctx := context.Background()

	var observed []model.GenerationSummary
	summary, err := client.Run(ctx, RunRequest{
		PopulationSize: 20,
		Generations:    intPtr(15),
		Seed:           7,
		Observe: func(s model.GenerationSummary) {
			observed = append(observed, s)
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, summary.RunID)
	require.Len(t, summary.BestByGeneration, 15)
	require.Len(t, observed, 15)
	for i, s := range observed {
		assert.Equal(t, i, s.Generation)
		assert.Equal(t, summary.BestByGeneration[i], s.BestValue)
		assert.LessOrEqual(t, s.BestValue, 100.0)
	}
	assert.Equal(t, summary.BestByGeneration[14], summary.FinalBestValue)
	assert.GreaterOrEqual(t, summary.BestEverValue, summary.FinalBestValue)
	assert.Equal(t, summary.FinalBestValue, summary.Champion.Value)
	assert.LessOrEqual(t, summary.Champion.Weight, 50.0)
	assert.DirExists(t, summary.ArtifactsDir)

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].RunID)
	assert.Equal(t, "example", runs[0].Catalogue)
	assert.Equal(t, 4, runs[0].Items)
	assert.Equal(t, "roulette", runs[0].Selection)

	history, err := client.FitnessHistory(ctx, FitnessHistoryRequest{Latest: true, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, summary.BestByGeneration[:3], history)

	diagnostics, err := client.Diagnostics(ctx, DiagnosticsRequest{RunID: summary.RunID})
	require.NoError(t, err)
	require.Len(t, diagnostics, 15)
	assert.LessOrEqual(t, diagnostics[0].FeasibleCount, 20)

	record, err := client.RunDetails(ctx, RunDetailsRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, record.ID)
	assert.Equal(t, 0.7, record.Config.CrossoverRate)
	assert.Equal(t, 0.01, record.Config.MutationRate)
	assert.Equal(t, "uniform", record.Config.DegeneratePolicy)
	assert.Equal(t, summary.Champion.Genes.String(), record.Champion.Genes.String())

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, exported.RunID)
	for _, name := range []string{"config.json", "fitness_history.csv", "generation_diagnostics.json", "champion.json"} {
		assert.FileExists(t, filepath.Join(exported.Directory, name))
	}
}

func TestClientRunIsReproducibleBySeed(t *testing.T) {
	client := newTestClient(t, Options{})
	req := RunRequest{PopulationSize: 12, Generations: intPtr(10), Seed: 99}

	first, err := client.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := client.Run(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.BestByGeneration, second.BestByGeneration)
	assert.Equal(t, first.Champion.Genes.String(), second.Champion.Genes.String())
}

func TestClientRunCustomItems(t *testing.T) {
	client := newTestClient(t, Options{})

	summary, err := client.Run(context.Background(), RunRequest{
		Items:          []model.Item{{Value: 5, Weight: 1}, {Value: 6, Weight: 2}, {Value: 100, Weight: 50}},
		Capacity:       floatPtr(3),
		PopulationSize: 10,
		Generations:    intPtr(20),
		Selection:      "tournament",
		TournamentSize: 2,
		Seed:           3,
	})
	require.NoError(t, err)
	for _, best := range summary.BestByGeneration {
		assert.LessOrEqual(t, best, 11.0)
	}
	assert.LessOrEqual(t, summary.Champion.Weight, 3.0)
}

func TestClientRunZeroGenerations(t *testing.T) {
	client := newTestClient(t, Options{})

	summary, err := client.Run(context.Background(), RunRequest{PopulationSize: 4, Generations: intPtr(0)})
	require.NoError(t, err)
	assert.Empty(t, summary.BestByGeneration)
	assert.Zero(t, summary.FinalBestValue)
	assert.Zero(t, summary.BestEverValue)

	history, err := client.FitnessHistory(context.Background(), FitnessHistoryRequest{RunID: summary.RunID})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestClientRunValidation(t *testing.T) {
	client := newTestClient(t, Options{})

	cases := map[string]RunRequest{
		"negative population": {PopulationSize: -1},
		"negative generations": {Generations: intPtr(-1)},
		"crossover above one":  {CrossoverRate: floatPtr(1.5)},
		"negative mutation":    {MutationRate: floatPtr(-0.1)},
		"unknown selection":    {Selection: "rank"},
		"unknown degenerate":   {DegeneratePolicy: "retry"},
		"unknown catalogue":    {Catalogue: "missing"},
		"items without capacity": {
			Items: []model.Item{{Value: 1, Weight: 1}},
		},
		"catalogue and items": {
			Catalogue: "example",
			Items:     []model.Item{{Value: 1, Weight: 1}},
			Capacity:  floatPtr(1),
		},
		"negative item weight": {
			Items:    []model.Item{{Value: 1, Weight: -1}},
			Capacity: floatPtr(1),
		},
		"negative capacity": {Capacity: floatPtr(-5)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := client.Run(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, evo.ErrInvalidConfiguration)
		})
	}

	runs, err := client.Runs(context.Background(), RunsRequest{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestClientRunValidationMessages(t *testing.T) {
	client := newTestClient(t, Options{})

	_, err := client.Run(context.Background(), RunRequest{
		Items:    []model.Item{{Value: 1, Weight: -2}},
		Capacity: floatPtr(1),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "items[0].weight must be >= 0")

	_, err = client.Run(context.Background(), RunRequest{Selection: "rank"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selection must be one of: roulette tournament")
}

func TestClientRunDegeneratePolicies(t *testing.T) {
	client := newTestClient(t, Options{})
	heavy := []model.Item{{Value: 10, Weight: 100}, {Value: 20, Weight: 200}}

	summary, err := client.Run(context.Background(), RunRequest{
		Items:          heavy,
		Capacity:       floatPtr(1),
		PopulationSize: 6,
		Generations:    intPtr(3),
		MutationRate:   floatPtr(0),
	})
	require.NoError(t, err)
	assert.Greater(t, summary.DegenerateGenerations, 0)

	_, err = client.Run(context.Background(), RunRequest{
		Items:            heavy,
		Capacity:         floatPtr(0),
		PopulationSize:   6,
		Generations:      intPtr(3),
		DegeneratePolicy: "fail",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, evo.ErrDegenerateSelection)
}

func TestClientRunCancelledContext(t *testing.T) {
	client := newTestClient(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Run(ctx, RunRequest{PopulationSize: 4, Generations: intPtr(5)})
	require.ErrorIs(t, err, context.Canceled)
}

func TestClientRunsLatestErrors(t *testing.T) {
	client := newTestClient(t, Options{})
	ctx := context.Background()

	_, err := client.FitnessHistory(ctx, FitnessHistoryRequest{Latest: true})
	require.EqualError(t, err, "no runs available")

	_, err = client.FitnessHistory(ctx, FitnessHistoryRequest{RunID: "a", Latest: true})
	require.EqualError(t, err, "use either run id or latest")

	_, err = client.Diagnostics(ctx, DiagnosticsRequest{})
	require.EqualError(t, err, "diagnostics requires run id or latest")

	_, err = client.Diagnostics(ctx, DiagnosticsRequest{RunID: "a", Limit: -1})
	require.EqualError(t, err, "limit must be >= 0")

	_, err = client.Export(ctx, ExportRequest{})
	require.EqualError(t, err, "export requires run id or latest")

	missing := uuid.NewString()
	_, err = client.Diagnostics(ctx, DiagnosticsRequest{RunID: missing})
	require.EqualError(t, err, "diagnostics not found for run id: "+missing)

	for _, id := range []string{"..", ".", "../runs", "not-a-uuid"} {
		_, err = client.FitnessHistory(ctx, FitnessHistoryRequest{RunID: id})
		require.ErrorContains(t, err, "invalid run id", id)
		_, err = client.Export(ctx, ExportRequest{RunID: id})
		require.ErrorContains(t, err, "invalid run id", id)
	}
}

func TestClientDelete(t *testing.T) {
	client := newTestClient(t, Options{})
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{PopulationSize: 4, Generations: intPtr(2)})
	require.NoError(t, err)
	require.NoError(t, client.Delete(ctx, summary.RunID))

	runs, err := client.Runs(ctx, RunsRequest{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	_, err = client.RunDetails(ctx, RunDetailsRequest{RunID: summary.RunID})
	require.Error(t, err)
	_, statErr := os.Stat(summary.ArtifactsDir)
	assert.True(t, os.IsNotExist(statErr))

	require.Error(t, client.Delete(ctx, ""))
}

func TestClientDeleteRejectsUnknownAndPathLikeIDs(t *testing.T) {
	root := t.TempDir()
	sibling := filepath.Join(root, "keep.txt")
	require.NoError(t, os.WriteFile(sibling, []byte("x"), 0o644))

	client, err := New(Options{StoreKind: "memory", RunsDir: filepath.Join(root, "runs")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{PopulationSize: 4, Generations: intPtr(2)})
	require.NoError(t, err)

	for _, id := range []string{"..", ".", "../runs", summary.RunID + "/.."} {
		err := client.Delete(ctx, id)
		require.ErrorContains(t, err, "invalid run id", id)
	}

	missing := uuid.NewString()
	require.EqualError(t, client.Delete(ctx, missing), "run not found: "+missing)

	assert.FileExists(t, sibling)
	assert.DirExists(t, summary.ArtifactsDir)
	runs, err := client.Runs(ctx, RunsRequest{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].RunID)
}

func TestClientRunsFallsBackToIndex(t *testing.T) {
	base := t.TempDir()
	opts := Options{StoreKind: "memory", RunsDir: filepath.Join(base, "runs")}

	first, err := New(opts)
	require.NoError(t, err)
	older, err := first.Run(context.Background(), RunRequest{PopulationSize: 4, Generations: intPtr(2), Seed: 1})
	require.NoError(t, err)
	newer, err := first.Run(context.Background(), RunRequest{PopulationSize: 4, Generations: intPtr(2), Seed: 2})
	require.NoError(t, err)

	fromStore, err := first.Runs(context.Background(), RunsRequest{})
	require.NoError(t, err)
	require.Len(t, fromStore, 2)
	assert.Equal(t, newer.RunID, fromStore[0].RunID)
	assert.Equal(t, int64(2), fromStore[0].Seed)
	require.NoError(t, first.Close())

	second, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	fromIndex, err := second.Runs(context.Background(), RunsRequest{Limit: 1})
	require.NoError(t, err)
	require.Len(t, fromIndex, 1)
	assert.Equal(t, newer.RunID, fromIndex[0].RunID)
	assert.NotEqual(t, older.RunID, fromIndex[0].RunID)
}

func TestClientReadsArtifactsAcrossClients(t *testing.T) {
	base := t.TempDir()
	opts := Options{StoreKind: "memory", RunsDir: filepath.Join(base, "runs")}

	first, err := New(opts)
	require.NoError(t, err)
	summary, err := first.Run(context.Background(), RunRequest{PopulationSize: 6, Generations: intPtr(3), Seed: 5})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	history, err := second.FitnessHistory(context.Background(), FitnessHistoryRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, summary.BestByGeneration, history)

	diagnostics, err := second.Diagnostics(context.Background(), DiagnosticsRequest{RunID: summary.RunID})
	require.NoError(t, err)
	assert.Len(t, diagnostics, 3)

	record, err := second.RunDetails(context.Background(), RunDetailsRequest{RunID: summary.RunID})
	require.NoError(t, err)
	assert.Equal(t, summary.FinalBestValue, record.FinalBestValue)
	assert.Equal(t, summary.Champion.Genes.String(), record.Champion.Genes.String())
	assert.Equal(t, 6, record.Config.PopulationSize)
}

func TestClientPersistentStores(t *testing.T) {
	for _, kind := range []string{"sqlite", "badger"} {
		t.Run(kind, func(t *testing.T) {
			dbPath := filepath.Join(t.TempDir(), "knapsackga-"+kind)
			client := newTestClient(t, Options{StoreKind: kind, DBPath: dbPath})

			summary, err := client.Run(context.Background(), RunRequest{PopulationSize: 8, Generations: intPtr(4), Seed: 11})
			require.NoError(t, err)

			record, err := client.RunDetails(context.Background(), RunDetailsRequest{RunID: summary.RunID})
			require.NoError(t, err)
			assert.Equal(t, summary.FinalBestValue, record.FinalBestValue)

			history, err := client.FitnessHistory(context.Background(), FitnessHistoryRequest{RunID: summary.RunID})
			require.NoError(t, err)
			assert.Equal(t, summary.BestByGeneration, history)
		})
	}
}

func TestClientRegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	client := newTestClient(t, Options{Registerer: reg})

	_, err := client.Run(context.Background(), RunRequest{PopulationSize: 6, Generations: intPtr(4)})
	require.NoError(t, err)
	_, err = client.Run(context.Background(), RunRequest{PopulationSize: 6, Generations: intPtr(3)})
	require.NoError(t, err)

	assert.Equal(t, 7.0, testutil.ToFloat64(client.metrics.Generations))
}

func TestClientBenchmark(t *testing.T) {
	client := newTestClient(t, Options{})

	summary, err := client.Benchmark(context.Background(), BenchmarkRequest{
		Run:  RunRequest{PopulationSize: 30, Generations: intPtr(40), Seed: 1},
		Runs: 3,
		Goal: 100,
	})
	require.NoError(t, err)
	assert.FileExists(t, summary.ReportPath)
	assert.Equal(t, 3, summary.Stats.TotalRuns)
	require.Len(t, summary.Stats.Runs, 3)
	for i, run := range summary.Stats.Runs {
		assert.Equal(t, int64(1+i), run.Seed)
		assert.LessOrEqual(t, run.BestEver, 100.0)
	}
	assert.InDelta(t, float64(summary.Stats.SuccessRuns)/3, summary.Stats.SuccessRate, 1e-9)

	runs, err := client.Runs(context.Background(), RunsRequest{})
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestClientBenchmarkDefaultGoal(t *testing.T) {
	client := newTestClient(t, Options{})

	summary, err := client.Benchmark(context.Background(), BenchmarkRequest{
		Run:  RunRequest{PopulationSize: 10, Generations: intPtr(5)},
		Runs: 2,
	})
	require.NoError(t, err)
	assert.Greater(t, summary.Stats.Goal, 0.0)
	assert.GreaterOrEqual(t, summary.Stats.SuccessRuns, 1)

	_, err = client.Benchmark(context.Background(), BenchmarkRequest{Runs: -1})
	require.ErrorIs(t, err, evo.ErrInvalidConfiguration)
}

func TestCatalogues(t *testing.T) {
	all := Catalogues()
	require.Len(t, all, 1)
	assert.Equal(t, "example", all[0].Name)

	c, ok := LookupCatalogue("example")
	require.True(t, ok)
	assert.Equal(t, 50.0, c.Capacity)
	c.Items[0].Value = -1

	again, _ := LookupCatalogue("example")
	assert.Equal(t, 10.0, again.Items[0].Value)

	_, ok = LookupCatalogue("missing")
	assert.False(t, ok)
}
