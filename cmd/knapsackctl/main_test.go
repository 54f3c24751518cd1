package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knapsackga/internal/evo"
)

type cliEnv struct {
	base string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	return cliEnv{base: t.TempDir()}
}

func (e cliEnv) exec(t *testing.T, args ...string) (string, error) {
	t.Helper()
	full := append([]string{}, args...)
	full = append(full,
		"--store", "memory",
		"--runs-dir", filepath.Join(e.base, "runs"),
		"--benchmarks-dir", filepath.Join(e.base, "benchmarks"),
		"--exports-dir", filepath.Join(e.base, "exports"),
		"--log-level", "error",
	)
	var out bytes.Buffer
	err := run(context.Background(), full, &out)
	return out.String(), err
}

func runIDFrom(t *testing.T, output string) string {
	t.Helper()
	for _, field := range strings.Fields(output) {
		if id, ok := strings.CutPrefix(field, "run_id="); ok {
			return id
		}
	}
	t.Fatalf("no run_id in output:\n%s", output)
	return ""
}

func generationLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, "Generation ") {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestRunPrintsEveryGeneration(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.exec(t, "run", "--pop", "20", "--gens", "6", "--seed", "3")
	require.NoError(t, err)

	lines := generationLines(out)
	require.Len(t, lines, 6)
	for i, line := range lines {
		assert.True(t, strings.HasPrefix(line, fmt.Sprintf("Generation %d: Best Value = ", i)), line)
	}
	assert.NotEmpty(t, runIDFrom(t, out))
}

func TestRunThenQueryCommands(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.exec(t, "run", "--pop", "10", "--gens", "4", "--seed", "9")
	require.NoError(t, err)
	runID := runIDFrom(t, out)
	runLines := generationLines(out)

	history, err := env.exec(t, "history", "--latest")
	require.NoError(t, err)
	assert.Equal(t, runLines, generationLines(history))

	runs, err := env.exec(t, "runs")
	require.NoError(t, err)
	assert.Contains(t, runs, "run_id="+runID)
	assert.Contains(t, runs, "catalogue=example")

	diagnostics, err := env.exec(t, "diagnostics", "--run-id", runID)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(diagnostics, "generation="))

	show, err := env.exec(t, "show", "--latest")
	require.NoError(t, err)
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(show), &record))
	assert.Equal(t, runID, record["id"])
	champion := record["champion"].(map[string]any)
	var wantIncluded []any
	for i, gene := range champion["genes"].(string) {
		if gene == '1' {
			wantIncluded = append(wantIncluded, float64(i))
		}
	}
	included, ok := record["included"].([]any)
	require.True(t, ok, "included missing from show output")
	assert.Equal(t, len(wantIncluded), len(included))
	for i := range wantIncluded {
		assert.Equal(t, wantIncluded[i], included[i])
	}

	exportDir := filepath.Join(env.base, "out")
	exported, err := env.exec(t, "export", "--latest", "--out", exportDir)
	require.NoError(t, err)
	assert.Contains(t, exported, "exported run_id="+runID)
	assert.FileExists(t, filepath.Join(exportDir, runID, "fitness_history.csv"))

	deleted, err := env.exec(t, "delete", "--run-id", runID)
	require.NoError(t, err)
	assert.Contains(t, deleted, "deleted run_id="+runID)

	runs, err = env.exec(t, "runs")
	require.NoError(t, err)
	assert.Contains(t, runs, "no runs found")
}

func TestRunFromConfigWithFlagOverride(t *testing.T) {
	env := newCLIEnv(t)
	configPath := filepath.Join(env.base, "run.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
items:
  - {value: 5, weight: 1}
  - {value: 6, weight: 2}
  - {value: 100, weight: 50}
capacity: 3
population_size: 8
generations: 3
mutation_rate: 0.05
selection: tournament
tournament_size: 2
seed: 4
`), 0o644))

	out, err := env.exec(t, "run", "--config", configPath, "--gens", "5")
	require.NoError(t, err)
	assert.Len(t, generationLines(out), 5)

	show, err := env.exec(t, "show", "--latest")
	require.NoError(t, err)
	var record struct {
		Config struct {
			PopulationSize int     `json:"population_size"`
			Generations    int     `json:"generations"`
			Capacity       float64 `json:"capacity"`
			MutationRate   float64 `json:"mutation_rate"`
			CrossoverRate  float64 `json:"crossover_rate"`
			Selection      string  `json:"selection"`
			Seed           int64   `json:"seed"`
		} `json:"config"`
	}
	require.NoError(t, json.Unmarshal([]byte(show), &record))
	assert.Equal(t, 8, record.Config.PopulationSize)
	assert.Equal(t, 5, record.Config.Generations)
	assert.Equal(t, 3.0, record.Config.Capacity)
	assert.Equal(t, 0.05, record.Config.MutationRate)
	assert.Equal(t, 0.7, record.Config.CrossoverRate)
	assert.Equal(t, "tournament", record.Config.Selection)
	assert.Equal(t, int64(4), record.Config.Seed)
}

func TestRunConfigRejectsUnknownFields(t *testing.T) {
	env := newCLIEnv(t)
	configPath := filepath.Join(env.base, "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("popsize: 10\n"), 0o644))

	_, err := env.exec(t, "run", "--config", configPath)
	require.Error(t, err)
}

func TestRunRejectsInvalidFlags(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.exec(t, "run", "--crossover-rate", "1.5")
	require.ErrorIs(t, err, evo.ErrInvalidConfiguration)

	_, err = env.exec(t, "run", "--pop", "0")
	require.ErrorIs(t, err, evo.ErrInvalidConfiguration)

	_, err = env.exec(t, "run", "--selection", "rank")
	require.ErrorIs(t, err, evo.ErrInvalidConfiguration)
}

func TestRunWritesMetrics(t *testing.T) {
	env := newCLIEnv(t)
	metricsPath := filepath.Join(env.base, "metrics.prom")

	_, err := env.exec(t, "run", "--pop", "6", "--gens", "3", "--metrics-out", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "knapsackga_evolver_generations_total 3")
	assert.Contains(t, string(data), "knapsackga_evolver_best_value")
}

func TestBenchmarkCommand(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.exec(t, "benchmark", "--pop", "20", "--gens", "10", "--runs", "2", "--goal", "100")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "seed="))
	assert.Contains(t, out, "runs=2 goal=100")
}

func TestCatalogueCommand(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.exec(t, "catalogue")
	require.NoError(t, err)
	assert.Contains(t, out, "catalogue=example capacity=50 items=4")
	assert.Contains(t, out, "item=3 value=50 weight=30")
}

func TestDeleteRejectsPathLikeRunID(t *testing.T) {
	env := newCLIEnv(t)
	sibling := filepath.Join(env.base, "keep.txt")
	require.NoError(t, os.WriteFile(sibling, []byte("x"), 0o644))

	_, err := env.exec(t, "run", "--pop", "4", "--gens", "1")
	require.NoError(t, err)

	_, err = env.exec(t, "delete", "--run-id", "..")
	require.ErrorContains(t, err, "invalid run id")
	assert.FileExists(t, sibling)
	assert.DirExists(t, filepath.Join(env.base, "runs"))
}

func TestQueryErrors(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.exec(t, "history", "--latest")
	require.EqualError(t, err, "no runs available")

	_, err = env.exec(t, "export", "--run-id", "a", "--latest")
	require.EqualError(t, err, "use either run id or latest")

	_, err = env.exec(t, "runs", "--limit", "0")
	require.EqualError(t, err, "limit must be > 0")

	_, err = env.exec(t, "bogus")
	require.Error(t, err)
}
