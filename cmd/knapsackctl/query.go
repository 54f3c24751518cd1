package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"knapsackga/internal/model"
	"knapsackga/pkg/knapsackga"
)

type runSelector struct {
	runID  string
	latest bool
}

func (s *runSelector) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.runID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&s.latest, "latest", false, "use the most recent run from the run index")
}

func newRunsCmd(flags *globalFlags) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("limit must be > 0")
			}
			client, cleanup, err := openClient(flags, knapsackga.Options{})
			if err != nil {
				return err
			}
			defer cleanup()

			runs, err := client.Runs(cmd.Context(), knapsackga.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs found")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "run_id=%s created_at=%s catalogue=%s items=%d capacity=%g seed=%d pop=%d gens=%d selection=%s final_best=%g best_ever=%g\n",
					r.RunID, r.CreatedAtUTC, r.Catalogue, r.Items, r.Capacity, r.Seed, r.Population, r.Generations, r.Selection, r.FinalBestValue, r.BestEverValue)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit runs list as JSON")
	return cmd
}

func newShowCmd(flags *globalFlags) *cobra.Command {
	sel := &runSelector{}
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored record of a run, including its champion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, cleanup, err := openClient(flags, knapsackga.Options{})
			if err != nil {
				return err
			}
			defer cleanup()

			record, err := client.RunDetails(cmd.Context(), knapsackga.RunDetailsRequest{RunID: sel.runID, Latest: sel.latest})
			if err != nil {
				return err
			}
			return writeJSON(cmd, struct {
				model.RunRecord
				Included []int `json:"included"`
			}{record, record.Champion.Genes.Included()})
		},
	}
	sel.register(cmd)
	return cmd
}

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	sel := &runSelector{}
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the best value of every generation of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, cleanup, err := openClient(flags, knapsackga.Options{})
			if err != nil {
				return err
			}
			defer cleanup()

			history, err := client.FitnessHistory(cmd.Context(), knapsackga.FitnessHistoryRequest{
				RunID:  sel.runID,
				Latest: sel.latest,
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, best := range history {
				fmt.Fprintf(out, "Generation %d: Best Value = %g\n", i, best)
			}
			return nil
		},
	}
	sel.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 0, "max generations to print (0 prints all)")
	return cmd
}

func newDiagnosticsCmd(flags *globalFlags) *cobra.Command {
	sel := &runSelector{}
	var limit int
	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Print per-generation population diagnostics of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, cleanup, err := openClient(flags, knapsackga.Options{})
			if err != nil {
				return err
			}
			defer cleanup()

			diagnostics, err := client.Diagnostics(cmd.Context(), knapsackga.DiagnosticsRequest{
				RunID:  sel.runID,
				Latest: sel.latest,
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range diagnostics {
				fmt.Fprintf(out, "generation=%d best=%g mean=%.4f feasible=%d distinct=%d crossovers=%d flips=%d degenerate=%t\n",
					d.Generation, d.BestValue, d.MeanFitness, d.FeasibleCount, d.DistinctIndividuals, d.Crossovers, d.Mutations, d.DegenerateSelection)
			}
			return nil
		},
	}
	sel.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 0, "max generations to print (0 prints all)")
	return cmd
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	sel := &runSelector{}
	var outDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy the artifacts of a run into an export directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, cleanup, err := openClient(flags, knapsackga.Options{})
			if err != nil {
				return err
			}
			defer cleanup()

			exported, err := client.Export(cmd.Context(), knapsackga.ExportRequest{
				RunID:  sel.runID,
				Latest: sel.latest,
				OutDir: outDir,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
			return nil
		},
	}
	sel.register(cmd)
	cmd.Flags().StringVar(&outDir, "out", "", "export output directory (defaults to --exports-dir)")
	return cmd
}

func newDeleteCmd(flags *globalFlags) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove a run from the store and the artifacts directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, cleanup, err := openClient(flags, knapsackga.Options{})
			if err != nil {
				return err
			}
			defer cleanup()

			if err := client.Delete(cmd.Context(), runID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted run_id=%s\n", runID)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id")
	return cmd
}

func newCatalogueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalogue",
		Short: "List the built-in item catalogues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, c := range knapsackga.Catalogues() {
				fmt.Fprintf(out, "catalogue=%s capacity=%g items=%d description=%q\n", c.Name, c.Capacity, len(c.Items), c.Description)
				for i, item := range c.Items {
					fmt.Fprintf(out, "  item=%d value=%g weight=%g\n", i, item.Value, item.Weight)
				}
			}
			return nil
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
