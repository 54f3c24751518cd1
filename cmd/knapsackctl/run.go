package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"knapsackga/internal/model"
	"knapsackga/pkg/knapsackga"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	rf := &runFlags{}
	var metricsOut string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one evolution and print the best value of every generation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := rf.request(cmd.Flags())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			req.Observe = func(s model.GenerationSummary) {
				fmt.Fprintf(out, "Generation %d: Best Value = %g\n", s.Generation, s.BestValue)
			}

			var opts knapsackga.Options
			var reg *prometheus.Registry
			if metricsOut != "" {
				reg = prometheus.NewRegistry()
				opts.Registerer = reg
			}
			client, cleanup, err := openClient(flags, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			summary, err := client.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "run_id=%s final_best=%g best_ever=%g champion=%s champion_weight=%g artifacts=%s\n",
				summary.RunID,
				summary.FinalBestValue,
				summary.BestEverValue,
				summary.Champion.Genes,
				summary.Champion.Weight,
				summary.ArtifactsDir,
			)
			if summary.DegenerateGenerations > 0 {
				fmt.Fprintf(out, "degenerate_generations=%d\n", summary.DegenerateGenerations)
			}
			if reg != nil {
				if err := prometheus.WriteToTextfile(metricsOut, reg); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
			}
			return nil
		},
	}
	rf.register(cmd.Flags())
	cmd.Flags().StringVar(&metricsOut, "metrics-out", "", "write Prometheus metrics in text format to this file")
	return cmd
}

func newBenchmarkCmd(flags *globalFlags) *cobra.Command {
	rf := &runFlags{}
	var (
		runs int
		goal float64
	)

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Repeat a run over consecutive seeds and report how often it reached the goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := rf.request(cmd.Flags())
			if err != nil {
				return err
			}
			client, cleanup, err := openClient(flags, knapsackga.Options{})
			if err != nil {
				return err
			}
			defer cleanup()

			summary, err := client.Benchmark(cmd.Context(), knapsackga.BenchmarkRequest{
				Run:  req,
				Runs: runs,
				Goal: goal,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range summary.Stats.Runs {
				fmt.Fprintf(out, "seed=%d run_id=%s final_best=%g best_ever=%g success=%t reached_generation=%d\n",
					r.Seed, r.RunID, r.FinalBest, r.BestEver, r.Success, r.ReachedGeneration)
			}
			s := summary.Stats
			fmt.Fprintf(out, "benchmark_id=%s runs=%d goal=%g success_rate=%.3f mean_final=%g std_final=%g min_final=%g max_final=%g report=%s\n",
				summary.BenchmarkID, s.TotalRuns, s.Goal, s.SuccessRate, s.MeanFinalBest, s.StdFinalBest, s.MinFinalBest, s.MaxFinalBest, summary.ReportPath)
			return nil
		},
	}
	rf.register(cmd.Flags())
	cmd.Flags().IntVar(&runs, "runs", 5, "number of seeded runs")
	cmd.Flags().Float64Var(&goal, "goal", 0, "value counted as success (0 uses the best value reached)")
	return cmd
}
