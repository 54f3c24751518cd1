package knapsackga

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"knapsackga/internal/evo"
	"knapsackga/internal/stats"
)

const defaultBenchmarkRuns = 5

// BenchmarkRequest repeats Run over consecutive seeds starting at Run.Seed.
type BenchmarkRequest struct {
	Run  RunRequest
	Runs int
	// Goal is the value a run must reach to count as a success. Zero means the best
	// value any of the runs reached.
	Goal float64
}

type BenchmarkSummary struct {
	BenchmarkID string
	ReportPath  string
	Stats       stats.BenchmarkStats
}

func (c *Client) Benchmark(ctx context.Context, req BenchmarkRequest) (BenchmarkSummary, error) {
	if req.Runs < 0 {
		return BenchmarkSummary{}, fmt.Errorf("%w: benchmark runs must be >= 0", evo.ErrInvalidConfiguration)
	}
	if req.Runs == 0 {
		req.Runs = defaultBenchmarkRuns
	}
	if req.Goal < 0 {
		return BenchmarkSummary{}, fmt.Errorf("%w: benchmark goal must be >= 0", evo.ErrInvalidConfiguration)
	}

	run := withDefaults(req.Run)
	cfg, err := resolve(run)
	if err != nil {
		return BenchmarkSummary{}, err
	}

	type seeded struct {
		runID  string
		seed   int64
		series []float64
	}
	results := make([]seeded, 0, req.Runs)
	goal := req.Goal
	for i := 0; i < req.Runs; i++ {
		seedReq := run
		seedReq.Seed = run.Seed + int64(i)
		summary, err := c.Run(ctx, seedReq)
		if err != nil {
			return BenchmarkSummary{}, fmt.Errorf("benchmark run %d: %w", i, err)
		}
		results = append(results, seeded{runID: summary.RunID, seed: seedReq.Seed, series: summary.BestByGeneration})
		if req.Goal == 0 && summary.BestEverValue > goal {
			goal = summary.BestEverValue
		}
	}

	runs := make([]stats.BenchmarkRun, 0, len(results))
	for _, r := range results {
		runs = append(runs, stats.EvaluateSeries(r.runID, r.seed, r.series, goal))
	}

	benchmarkID := uuid.NewString()
	report := stats.BenchmarkReport{
		BenchmarkID: benchmarkID,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Config:      stats.RunConfig{RunID: benchmarkID, RunConfig: cfg},
		Stats:       stats.BuildBenchmarkStats(runs, goal),
	}
	path, err := stats.WriteBenchmarkReport(c.benchmarksDir, report)
	if err != nil {
		return BenchmarkSummary{}, err
	}

	c.log.Info("benchmark complete",
		zap.String("benchmark_id", benchmarkID),
		zap.Int("runs", report.Stats.TotalRuns),
		zap.Float64("goal", goal),
		zap.Float64("success_rate", report.Stats.SuccessRate),
	)
	return BenchmarkSummary{
		BenchmarkID: benchmarkID,
		ReportPath:  filepath.Clean(path),
		Stats:       report.Stats,
	}, nil
}
