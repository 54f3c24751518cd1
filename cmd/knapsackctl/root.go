package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"knapsackga/internal/logging"
	"knapsackga/internal/storage"
	"knapsackga/pkg/knapsackga"
)

type globalFlags struct {
	storeKind     string
	dbPath        string
	runsDir       string
	benchmarksDir string
	exportsDir    string
	logLevel      string
	devLogs       bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "knapsackctl",
		Short:         "Solve 0/1 knapsack instances with a generational genetic algorithm",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.storeKind, "store", storage.DefaultStoreKind(), "store backend: memory|sqlite|badger")
	pf.StringVar(&flags.dbPath, "db-path", "", "sqlite database file or badger directory")
	pf.StringVar(&flags.runsDir, "runs-dir", "runs", "run artifacts directory")
	pf.StringVar(&flags.benchmarksDir, "benchmarks-dir", "benchmarks", "benchmark reports directory")
	pf.StringVar(&flags.exportsDir, "exports-dir", "exports", "default export directory")
	pf.StringVar(&flags.logLevel, "log-level", "warn", "log level: debug|info|warn|error")
	pf.BoolVar(&flags.devLogs, "dev-logs", false, "human readable development logs")

	root.AddCommand(
		newRunCmd(flags),
		newBenchmarkCmd(flags),
		newRunsCmd(flags),
		newShowCmd(flags),
		newHistoryCmd(flags),
		newDiagnosticsCmd(flags),
		newExportCmd(flags),
		newDeleteCmd(flags),
		newCatalogueCmd(),
	)
	return root
}

// openClient builds the logger and client shared by every command. The returned
// cleanup closes the store and flushes the logger.
func openClient(flags *globalFlags, opts knapsackga.Options) (*knapsackga.Client, func(), error) {
	logger, err := logging.New(flags.logLevel, flags.devLogs)
	if err != nil {
		return nil, nil, err
	}

	opts.StoreKind = flags.storeKind
	opts.DBPath = flags.dbPath
	opts.RunsDir = flags.runsDir
	opts.BenchmarksDir = flags.benchmarksDir
	opts.ExportsDir = flags.exportsDir
	opts.Logger = logger

	client, err := knapsackga.New(opts)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return client, cleanup, nil
}
