package stats

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
)

const benchmarkReportFile = "benchmark_report.json"

// BenchmarkRun is one seeded run inside a benchmark.
type BenchmarkRun struct {
	RunID             string  `json:"run_id"`
	Seed              int64   `json:"seed"`
	FinalBest         float64 `json:"final_best"`
	BestEver          float64 `json:"best_ever"`
	Success           bool    `json:"success"`
	ReachedGeneration int     `json:"reached_generation"`
}

type BenchmarkStats struct {
	TotalRuns      int            `json:"total_runs"`
	SuccessRuns    int            `json:"success_runs"`
	SuccessRate    float64        `json:"success_rate"`
	Goal           float64        `json:"goal"`
	MeanFinalBest  float64        `json:"mean_final_best"`
	StdFinalBest   float64        `json:"std_final_best"`
	MinFinalBest   float64        `json:"min_final_best"`
	MaxFinalBest   float64        `json:"max_final_best"`
	MeanReachedGen float64        `json:"mean_reached_generation,omitempty"`
	Runs           []BenchmarkRun `json:"runs"`
}

type BenchmarkReport struct {
	BenchmarkID string         `json:"benchmark_id"`
	GeneratedAt string         `json:"generated_at_utc"`
	Config      RunConfig      `json:"config"`
	Stats       BenchmarkStats `json:"stats"`
}

// EvaluateSeries marks a run successful once its best value reaches goal, recording the
// first generation that did. ReachedGeneration is -1 for unsuccessful runs.
func EvaluateSeries(runID string, seed int64, series []float64, goal float64) BenchmarkRun {
	run := BenchmarkRun{RunID: runID, Seed: seed, ReachedGeneration: -1}
	for i, best := range series {
		if best > run.BestEver || i == 0 {
			run.BestEver = best
		}
		if !run.Success && best >= goal {
			run.Success = true
			run.ReachedGeneration = i
		}
	}
	if len(series) > 0 {
		run.FinalBest = series[len(series)-1]
	}
	return run
}

func BuildBenchmarkStats(runs []BenchmarkRun, goal float64) BenchmarkStats {
	out := BenchmarkStats{
		TotalRuns: len(runs),
		Goal:      goal,
		Runs:      append([]BenchmarkRun(nil), runs...),
	}
	if len(runs) == 0 {
		return out
	}

	finals := make([]float64, 0, len(runs))
	reached := make([]float64, 0, len(runs))
	for _, run := range runs {
		finals = append(finals, run.FinalBest)
		if run.Success {
			out.SuccessRuns++
			reached = append(reached, float64(run.ReachedGeneration))
		}
	}
	out.SuccessRate = float64(out.SuccessRuns) / float64(out.TotalRuns)
	out.MeanFinalBest, out.StdFinalBest, out.MinFinalBest, out.MaxFinalBest = describe(finals)
	if len(reached) > 0 {
		out.MeanReachedGen, _, _, _ = describe(reached)
	}
	return out
}

func WriteBenchmarkReport(baseDir string, report BenchmarkReport) (string, error) {
	if report.BenchmarkID == "" {
		return "", fmt.Errorf("benchmark id is required")
	}
	dir := filepath.Join(baseDir, report.BenchmarkID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, benchmarkReportFile)
	if err := writeJSON(path, report); err != nil {
		return "", err
	}
	return path, nil
}

// describe returns mean, population standard deviation, min and max.
func describe(values []float64) (mean, std, lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		mean += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean /= float64(len(values))
	for _, v := range values {
		std += (v - mean) * (v - mean)
	}
	std = math.Sqrt(std / float64(len(values)))
	return mean, std, lo, hi
}
