package knapsackga

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"knapsackga/internal/evo"
	"knapsackga/internal/model"
	"knapsackga/internal/stats"
	"knapsackga/internal/storage"
)

const (
	defaultRunsDir       = "runs"
	defaultBenchmarksDir = "benchmarks"
	defaultExportsDir    = "exports"
	defaultDBPath        = "knapsackga.db"
	defaultBadgerPath    = "knapsackga.badger"

	// createdAtLayout is fixed width so timestamps order correctly as strings.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

type Options struct {
	StoreKind     string
	DBPath        string
	RunsDir       string
	BenchmarksDir string
	ExportsDir    string
	Logger        *zap.Logger
	// Registerer receives the engine collectors when set.
	Registerer prometheus.Registerer
}

type Client struct {
	store   storage.Store
	log     *zap.Logger
	metrics *evo.Metrics

	initMu      sync.Mutex
	initialized bool

	runsDir       string
	benchmarksDir string
	exportsDir    string
}

type RunSummary struct {
	RunID                 string
	ArtifactsDir          string
	BestByGeneration      []float64
	FinalBestValue        float64
	BestEverValue         float64
	Champion              model.Champion
	DegenerateGenerations int
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID          string
	CreatedAtUTC   string
	Catalogue      string
	Items          int
	Capacity       float64
	Seed           int64
	Population     int
	Generations    int
	Selection      string
	FinalBestValue float64
	BestEverValue  float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type RunDetailsRequest struct {
	RunID  string
	Latest bool
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
		if storeKind == "badger" {
			dbPath = defaultBadgerPath
		}
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		log:           logger.With(zap.String("store", storeKind)),
		metrics:       evo.NewMetrics(opts.Registerer),
		runsDir:       runsDir,
		benchmarksDir: benchmarksDir,
		exportsDir:    exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Init opens the backing store. Every other method calls it on first use.
func (c *Client) Init(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.initialized = true
	return nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	req = withDefaults(req)
	cfg, err := resolve(req)
	if err != nil {
		return RunSummary{}, err
	}
	policy, err := evo.ParseDegeneratePolicy(cfg.DegeneratePolicy)
	if err != nil {
		return RunSummary{}, err
	}
	selector, err := evo.SelectorFromName(cfg.Selection, cfg.TournamentSize, policy)
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	runID := uuid.NewString()
	runLog := c.log.With(zap.String("run_id", runID))

	evolver, err := evo.NewEvolver(evo.Config{
		Items:          cfg.Items,
		Capacity:       cfg.Capacity,
		PopulationSize: cfg.PopulationSize,
		Generations:    cfg.Generations,
		CrossoverRate:  cfg.CrossoverRate,
		MutationRate:   cfg.MutationRate,
		Selector:       selector,
		Seed:           cfg.Seed,
		Logger:         runLog,
		Metrics:        c.metrics,
	})
	if err != nil {
		return RunSummary{}, err
	}

	result, err := evolver.Run(ctx, req.Observe)
	if err != nil {
		return RunSummary{}, err
	}

	finalBest, bestEver := finalAndBestEver(result.BestByGeneration)
	degenerate := 0
	for _, diag := range result.Diagnostics {
		if diag.DegenerateSelection {
			degenerate++
		}
	}

	createdAt := time.Now().UTC().Format(createdAtLayout)
	record := storage.Stamp(model.RunRecord{
		ID:             runID,
		CreatedAtUTC:   createdAt,
		Config:         cfg,
		FinalBestValue: finalBest,
		BestEverValue:  bestEver,
		Champion:       result.Champion,
	})
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run %s: %w", runID, err)
	}
	if err := c.store.SaveFitnessHistory(ctx, runID, result.BestByGeneration); err != nil {
		return RunSummary{}, fmt.Errorf("save fitness history %s: %w", runID, err)
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, runID, result.Diagnostics); err != nil {
		return RunSummary{}, fmt.Errorf("save generation diagnostics %s: %w", runID, err)
	}

	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config:                stats.RunConfig{RunID: runID, RunConfig: cfg},
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.Diagnostics,
		Champion:              result.Champion,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:          runID,
		Catalogue:      cfg.Catalogue,
		Items:          len(cfg.Items),
		Capacity:       cfg.Capacity,
		PopulationSize: cfg.PopulationSize,
		Generations:    cfg.Generations,
		Seed:           cfg.Seed,
		Selection:      cfg.Selection,
		FinalBestValue: finalBest,
		BestEverValue:  bestEver,
		CreatedAtUTC:   createdAt,
	}); err != nil {
		return RunSummary{}, err
	}

	runLog.Info("run persisted",
		zap.String("artifacts", runDir),
		zap.Float64("final_best", finalBest),
		zap.Float64("best_ever", bestEver),
		zap.Int("degenerate_generations", degenerate),
	)

	return RunSummary{
		RunID:                 runID,
		ArtifactsDir:          filepath.Clean(runDir),
		BestByGeneration:      append([]float64(nil), result.BestByGeneration...),
		FinalBestValue:        finalBest,
		BestEverValue:         bestEver,
		Champion:              result.Champion,
		DegenerateGenerations: degenerate,
	}, nil
}

// finalAndBestEver reports zero for both when no generation ran.
func finalAndBestEver(history []float64) (final, best float64) {
	for i, v := range history {
		if i == 0 || v > best {
			best = v
		}
	}
	if len(history) > 0 {
		final = history[len(history)-1]
	}
	return final, best
}

// Runs lists recorded runs newest first. The store is consulted first; the run index
// covers runs a previous process left behind in an in-memory store.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	records, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		if len(records) > req.Limit {
			records = records[:req.Limit]
		}
		out := make([]RunItem, 0, len(records))
		for _, r := range records {
			out = append(out, RunItem{
				RunID:          r.ID,
				CreatedAtUTC:   r.CreatedAtUTC,
				Catalogue:      r.Config.Catalogue,
				Items:          len(r.Config.Items),
				Capacity:       r.Config.Capacity,
				Seed:           r.Config.Seed,
				Population:     r.Config.PopulationSize,
				Generations:    r.Config.Generations,
				Selection:      r.Config.Selection,
				FinalBestValue: r.FinalBestValue,
				BestEverValue:  r.BestEverValue,
			})
		}
		return out, nil
	}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:          e.RunID,
			CreatedAtUTC:   e.CreatedAtUTC,
			Catalogue:      e.Catalogue,
			Items:          e.Items,
			Capacity:       e.Capacity,
			Seed:           e.Seed,
			Population:     e.PopulationSize,
			Generations:    e.Generations,
			Selection:      e.Selection,
			FinalBestValue: e.FinalBestValue,
			BestEverValue:  e.BestEverValue,
		})
	}
	return out, nil
}

// RunDetails loads the persisted record of one run, including its champion.
func (c *Client) RunDetails(ctx context.Context, req RunDetailsRequest) (model.RunRecord, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "run details")
	if err != nil {
		return model.RunRecord{}, err
	}
	if err := c.Init(ctx); err != nil {
		return model.RunRecord{}, err
	}
	record, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.RunRecord{}, err
	}
	if ok {
		return record, nil
	}
	record, ok, err = c.recordFromArtifacts(runID)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("run not found: %s", runID)
	}
	return record, nil
}

// recordFromArtifacts rebuilds a run record from the artifacts directory, which
// outlives the in-memory store between processes.
func (c *Client) recordFromArtifacts(runID string) (model.RunRecord, bool, error) {
	cfg, ok, err := stats.ReadRunConfig(c.runsDir, runID)
	if err != nil || !ok {
		return model.RunRecord{}, false, err
	}
	champion, _, err := stats.ReadChampion(c.runsDir, runID)
	if err != nil {
		return model.RunRecord{}, false, err
	}
	record := model.RunRecord{ID: runID, Config: cfg.RunConfig, Champion: champion}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return model.RunRecord{}, false, err
	}
	for _, e := range entries {
		if e.RunID == runID {
			record.CreatedAtUTC = e.CreatedAtUTC
			record.FinalBestValue = e.FinalBestValue
			record.BestEverValue = e.BestEverValue
			break
		}
	}
	return storage.Stamp(record), true, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "fitness history")
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadFitnessSeries(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
		}
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "diagnostics")
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadGenerationDiagnostics(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
		}
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

// Delete removes a run from the store and from the artifacts directory.
func (c *Client) Delete(ctx context.Context, runID string) error {
	if runID == "" {
		return errors.New("delete requires run id")
	}
	if err := checkRunID(runID); err != nil {
		return err
	}
	if err := c.Init(ctx); err != nil {
		return err
	}
	known, err := c.knownRun(ctx, runID)
	if err != nil {
		return err
	}
	if !known {
		return fmt.Errorf("run not found: %s", runID)
	}
	if err := c.store.DeleteRun(ctx, runID); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if err := stats.RemoveRunArtifacts(c.runsDir, runID); err != nil {
		return err
	}
	c.log.Info("run deleted", zap.String("run_id", runID))
	return nil
}

func (c *Client) resolveRunID(runID string, latest bool, op string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if latest {
		entries, err := stats.ListRunIndex(c.runsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", op)
	}
	if err := checkRunID(runID); err != nil {
		return "", err
	}
	return runID, nil
}

// checkRunID accepts only ids minted by Run.
func checkRunID(runID string) error {
	if _, err := uuid.Parse(runID); err != nil {
		return fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	return nil
}

// knownRun reports whether the store or the run index holds runID.
func (c *Client) knownRun(ctx context.Context, runID string) (bool, error) {
	_, ok, err := c.store.GetRun(ctx, runID)
	if err != nil || ok {
		return ok, err
	}
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.RunID == runID {
			return true, nil
		}
	}
	return false, nil
}
