// Package main provides the unified lab server that runs all jobs together:
// - Pull (scheduled): WRDS stock/index/CDS snapshots
// - Datasets (scheduled): panels, benchmark comparison, CSV/Excel exports
// - Progress (continuous): websocket event stream, status and metrics
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"crsp-equity-lab/internal/benchmark"
	"crsp-equity-lab/internal/config"
	"crsp-equity-lab/internal/delisting"
	"crsp-equity-lab/internal/export"
	"crsp-equity-lab/internal/logging"
	"crsp-equity-lab/internal/observability"
	"crsp-equity-lab/internal/panel"
	"crsp-equity-lab/internal/progress"
	"crsp-equity-lab/internal/pull"
	"crsp-equity-lab/internal/storage"
	chstore "crsp-equity-lab/internal/storage/clickhouse"
	"crsp-equity-lab/internal/storage/memory"
	"crsp-equity-lab/internal/storage/migrations"
	pgstore "crsp-equity-lab/internal/storage/postgres"
	"crsp-equity-lab/internal/timeseries"
	"crsp-equity-lab/internal/wrds"
)

// Server holds all components of the unified service.
type Server struct {
	// Configuration
	wrdsCfg          wrds.Config
	kinds            []string
	start, end       time.Time
	policyName       string
	batchSize        int
	outputDir        string
	pullInterval     time.Duration
	datasetsInterval time.Duration

	// Components
	stores *allStores
	hub    *progress.Hub
	logger zerolog.Logger

	// State
	mu              sync.Mutex
	started         time.Time
	lastPullRun     time.Time
	lastDatasetsRun time.Time
	pullRunning     bool
	datasetsRunning bool

	// Stats
	pullRuns     int
	datasetsRuns int
}

// allStores holds all storage implementations.
type allStores struct {
	stocks  storage.MonthlyStockStore
	indexes storage.MonthlyIndexStore
	spreads storage.CDSSpreadStore
	runs    storage.PullRunStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Parse flags; defaults come from the environment
	addr := flag.String("addr", fmt.Sprintf(":%d", cfg.Server.Port), "HTTP listen address")
	kinds := flag.String("kind", "stock,index", "Comma-separated scheduled pull kinds: stock, index, cds")
	start := flag.String("start", cfg.Pull.StartDate, "Pull window start (YYYY-MM-DD)")
	end := flag.String("end", cfg.Pull.EndDate, "Pull window end (YYYY-MM-DD)")
	policyName := flag.String("delisting-policy", cfg.Pull.DelistingPolicy, "Delisting return policy: imputed, additive or none")
	batchSize := flag.Int("batch-size", cfg.Pull.BatchSize, "Snapshot insert batch size")
	wrdsUser := flag.String("wrds-user", cfg.WRDS.Username, "WRDS username")
	wrdsPassword := flag.String("wrds-password", cfg.WRDS.Password, "WRDS password")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickHouse.DSN, "ClickHouse connection string for snapshots")
	postgresDSN := flag.String("postgres-dsn", cfg.Postgres.DSN, "PostgreSQL connection string for the pull ledger")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of ClickHouse and PostgreSQL")
	outputDir := flag.String("output-dir", "datasets", "Output directory for dataset exports")
	pullInterval := flag.Duration("pull-interval", cfg.Server.PullInterval, "Scheduled pull interval")
	datasetsInterval := flag.Duration("datasets-interval", cfg.Server.DatasetInterval, "Scheduled dataset build interval")

	flag.Parse()

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Pretty = cfg.Logging.Pretty
	logCfg.File = cfg.Logging.File
	logger := logging.WithJob(logging.New(logCfg), "server")

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal().Msg("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	kindList := resolveKinds(*kinds)
	if len(kindList) == 0 {
		logger.Fatal().Str("kind", *kinds).Msg("no pull kinds specified")
	}

	startDate, endDate, err := config.PullConfig{StartDate: *start, EndDate: *end}.Window()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid pull window")
	}

	if _, err := resolvePolicy(*policyName); err != nil {
		logger.Fatal().Err(err).Msg("invalid delisting policy")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create stores")
	}
	defer cleanup()

	hub := progress.NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	server := &Server{
		wrdsCfg: wrds.Config{
			Username: *wrdsUser,
			Password: *wrdsPassword,
			Host:     cfg.WRDS.Host,
			Port:     cfg.WRDS.Port,
			Database: cfg.WRDS.Database,
		},
		kinds:            kindList,
		start:            startDate,
		end:              endDate,
		policyName:       *policyName,
		batchSize:        *batchSize,
		outputDir:        *outputDir,
		pullInterval:     *pullInterval,
		datasetsInterval: *datasetsInterval,
		stores:           stores,
		hub:              hub,
		logger:           logger,
		started:          time.Now(),
	}

	httpServer := server.startHTTPServer(*addr, cfg.Server)

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn().Msg("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = server.Run(ctx)
	done <- err
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error().Err(shutdownErr).Msg("http server shutdown error")
	}

	if err != nil && err != context.Canceled {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("shutdown complete")
}

// resolveKinds splits and validates the kind list, preserving order and
// dropping repeats.
func resolveKinds(kinds string) []string {
	seen := make(map[string]bool)
	var list []string
	for _, k := range strings.Split(kinds, ",") {
		k = strings.TrimSpace(strings.ToLower(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		list = append(list, k)
	}
	return list
}

// resolvePolicy maps a policy flag to the delisting adjustment, nil for
// "none" or empty.
func resolvePolicy(name string) (delisting.Policy, error) {
	if name == "" || name == "none" {
		return nil, nil
	}
	return delisting.FromName(name)
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			stocks:  memory.NewMonthlyStockStore(),
			indexes: memory.NewMonthlyIndexStore(),
			spreads: memory.NewCDSSpreadStore(),
			runs:    memory.NewPullRunStore(),
		}
		return stores, func() {}, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		conn.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	stores := &allStores{
		stocks:  chstore.NewMonthlyStockStore(conn),
		indexes: chstore.NewMonthlyIndexStore(conn),
		spreads: chstore.NewCDSSpreadStore(conn),
		runs:    pgstore.NewPullRunStore(pool),
	}

	cleanup := func() {
		conn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// Run starts the schedulers and blocks until the context ends or a
// scheduler fails.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info().
		Strs("kinds", s.kinds).
		Dur("pull_interval", s.pullInterval).
		Dur("datasets_interval", s.datasetsInterval).
		Msg("starting schedulers")

	errCh := make(chan error, 3)

	go func() {
		err := s.runPullScheduler(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("pull scheduler: %w", err)
		}
	}()

	go func() {
		err := s.runDatasetsScheduler(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("datasets scheduler: %w", err)
		}
	}()

	go func() {
		err := s.runStatsLoop(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("stats loop: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// PullProgress forwards runner progress to the websocket hub and counts the
// event. Server implements pull.Notifier.
func (s *Server) PullProgress(kind, stage string, records int) {
	s.hub.PullProgress(kind, stage, records)
	observability.RecordProgressEvent()
}

func (s *Server) publish(e progress.Event) {
	s.hub.Publish(e)
	observability.RecordProgressEvent()
}

// runPullScheduler runs pulls on schedule, starting immediately.
func (s *Server) runPullScheduler(ctx context.Context) error {
	s.runPull(ctx)

	ticker := time.NewTicker(s.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runPull(ctx)
		}
	}
}

// runPull pulls every configured kind once. Kinds whose last completed run
// is fresher than the interval skip, so a restart does not trigger an
// immediate re-pull.
func (s *Server) runPull(ctx context.Context) {
	s.mu.Lock()
	if s.pullRunning {
		s.mu.Unlock()
		s.logger.Info().Msg("pull already running, skipping")
		return
	}
	s.pullRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.pullRunning = false
		s.lastPullRun = time.Now()
		s.pullRuns++
		s.mu.Unlock()
	}()

	client, err := wrds.NewClient(ctx, s.wrdsCfg)
	if err != nil {
		s.logger.Error().Err(err).Msg("wrds connection failed")
		return
	}
	defer client.Close()

	policy, err := resolvePolicy(s.policyName)
	if err != nil {
		s.logger.Error().Err(err).Msg("delisting policy resolution failed")
		return
	}

	runner := pull.NewRunner(pull.Options{
		StockSource: client,
		IndexSource: client,
		CDSSource:   client,
		StockStore:  s.stores.stocks,
		IndexStore:  s.stores.indexes,
		CDSStore:    s.stores.spreads,
		Runs:        s.stores.runs,
		Policy:      policy,
		BatchSize:   s.batchSize,
		Notifier:    s,
		Logger:      s.logger,
	})

	for _, kind := range s.kinds {
		if last, err := s.stores.runs.GetLastCompleted(ctx, kind); err == nil && time.Since(last.StartedAt) < s.pullInterval {
			s.logger.Info().Str("kind", kind).Time("started_at", last.StartedAt).Msg("recent completed pull found, skipping")
			continue
		}

		var result *pull.Result
		var pullErr error

		switch kind {
		case "stock":
			result, pullErr = runner.PullStock(ctx, s.start, s.end)
		case "index":
			result, pullErr = runner.PullIndex(ctx, s.start, s.end)
		case "cds":
			result, pullErr = runner.PullCDS(ctx, s.start, s.end)
		default:
			s.logger.Error().Str("kind", kind).Msg("unknown pull kind")
			continue
		}

		if pullErr != nil {
			if ctx.Err() != nil {
				return
			}
			observability.RecordPullRun(kind, "failed", 0, 0, 0)
			s.logger.Error().Err(pullErr).Str("kind", kind).Msg("pull failed")
			continue
		}

		observability.RecordPullRun(kind, "completed",
			result.RecordsPulled, result.RecordsStored, result.Duration.Seconds())
		observability.RecordPullSuccess(kind, time.Now().Unix())
	}
}

// runDatasetsScheduler builds datasets on schedule, starting immediately.
// The first build usually finds snapshots from earlier sessions.
func (s *Server) runDatasetsScheduler(ctx context.Context) error {
	s.runDatasets(ctx)

	ticker := time.NewTicker(s.datasetsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runDatasets(ctx)
		}
	}
}

// runDatasets rebuilds the panel datasets, the benchmark comparison and the
// pull ledger report from the current snapshots.
func (s *Server) runDatasets(ctx context.Context) {
	s.mu.Lock()
	if s.datasetsRunning {
		s.mu.Unlock()
		s.logger.Info().Msg("datasets build already running, skipping")
		return
	}
	s.datasetsRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.datasetsRunning = false
		s.lastDatasetsRun = time.Now()
		s.datasetsRuns++
		s.mu.Unlock()
	}()

	n, err := s.stores.stocks.Count(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("stock snapshot count failed")
		return
	}
	if n == 0 {
		s.logger.Info().Msg("no stock snapshots yet, skipping datasets build")
		return
	}

	s.publish(progress.Event{Kind: progress.KindDatasets, Job: "datasets", Message: "started"})
	start := time.Now()

	written, err := s.buildDatasets(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error().Err(err).Msg("datasets build failed")
		s.publish(progress.Event{Kind: progress.KindDatasets, Job: "datasets", Message: "failed"})
		return
	}

	s.logger.Info().
		Dur("elapsed", time.Since(start)).
		Int("files", len(written)).
		Str("dir", s.outputDir).
		Msg("datasets build complete")
	s.publish(progress.Event{
		Kind:    progress.KindDatasets,
		Job:     "datasets",
		Message: "completed",
		Extra:   map[string]any{"files": len(written)},
	})
}

func (s *Server) buildDatasets(ctx context.Context) ([]string, error) {
	stocks, err := s.stores.stocks.GetByDateRange(ctx, s.start, s.end)
	if err != nil {
		return nil, fmt.Errorf("read stock snapshots: %w", err)
	}
	indexes, err := s.stores.indexes.GetByDateRange(ctx, s.start, s.end)
	if err != nil {
		return nil, fmt.Errorf("read index snapshots: %w", err)
	}

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	indexSeries, err := panel.BuildIndexSeries(indexes)
	if err != nil {
		return nil, fmt.Errorf("build index series: %w", err)
	}

	opts := timeseries.DatasetOptions{
		Start:     &s.start,
		End:       &s.end,
		Frequency: timeseries.FrequencyMonthly,
	}

	var written []string
	var sheets []export.TableSheet

	for _, field := range []panel.ReturnField{panel.FieldRet, panel.FieldRetx} {
		series, err := panel.BuildReturnSeries(stocks, field)
		if err != nil {
			return nil, fmt.Errorf("build %s series: %w", field, err)
		}
		ds, err := panel.BuildDataset(series, indexSeries, opts)
		if err != nil {
			return nil, fmt.Errorf("assemble %s dataset: %w", field, err)
		}

		path := filepath.Join(s.outputDir, string(field)+".csv")
		if err := os.WriteFile(path, []byte(export.RenderTableCSV(ds.Y())), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
		sheets = append(sheets, export.TableSheet{Name: string(field), Table: ds.Y()})
		observability.RecordDatasetBuilt(string(field))
	}

	computed := benchmark.MonthlyIndexReturns(stocks)
	benchPath := filepath.Join(s.outputDir, "benchmark_returns.csv")
	if err := os.WriteFile(benchPath, []byte(export.RenderIndexReturnsCSV(computed)), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", benchPath, err)
	}
	written = append(written, benchPath)

	divergences := benchmark.Compare(computed, indexes)
	divPath := filepath.Join(s.outputDir, "benchmark_divergence.csv")
	if err := os.WriteFile(divPath, []byte(export.RenderDivergencesCSV(divergences)), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", divPath, err)
	}
	written = append(written, divPath)

	maxDiff := 0.0
	for _, d := range divergences {
		if d.VWDiff != nil && absFloat(*d.VWDiff) > maxDiff {
			maxDiff = absFloat(*d.VWDiff)
		}
	}
	observability.RecordBenchmarkDiff(maxDiff)

	workbookPath := filepath.Join(s.outputDir, "datasets.xlsx")
	if err := export.WriteTableWorkbook(workbookPath, sheets); err != nil {
		return nil, fmt.Errorf("write %s: %w", workbookPath, err)
	}
	written = append(written, workbookPath)

	runs, err := s.stores.runs.GetRecent(ctx, 20)
	if err != nil {
		return nil, fmt.Errorf("read pull ledger: %w", err)
	}
	ledgerPath := filepath.Join(s.outputDir, "pull_runs.md")
	if err := os.WriteFile(ledgerPath, []byte(export.RenderPullSummary(runs)), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", ledgerPath, err)
	}
	written = append(written, ledgerPath)

	return written, nil
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// runStatsLoop keeps the subscriber gauge and uptime counter current.
func (s *Server) runStatsLoop(ctx context.Context) error {
	const tick = 15 * time.Second

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			observability.SetProgressClients(s.hub.ClientCount())
			observability.AddUptime(tick.Seconds())
		}
	}
}

// startHTTPServer starts the HTTP server for health, status, metrics and the
// progress stream. Returns the server so main can shut it down.
func (s *Server) startHTTPServer(addr string, cfg config.ServerConfig) *http.Server {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	// Progress event stream
	mux.HandleFunc("/ws", s.hub.ServeWS)

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		s.logger.Info().Str("addr", addr).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("http server error")
		}
	}()

	return srv
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status          string       `json:"status"`
	Uptime          string       `json:"uptime"`
	Started         time.Time    `json:"started"`
	LastPullRun     time.Time    `json:"last_pull_run,omitempty"`
	LastDatasetsRun time.Time    `json:"last_datasets_run,omitempty"`
	PullRuns        int          `json:"pull_runs"`
	DatasetsRuns    int          `json:"datasets_runs"`
	PullRunning     bool         `json:"pull_running"`
	DatasetsRunning bool         `json:"datasets_running"`
	ProgressClients int          `json:"progress_clients"`
	RecentRuns      []runSummary `json:"recent_runs,omitempty"`
}

type runSummary struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Records   int64     `json:"records"`
	StartedAt time.Time `json:"started_at"`
	Error     string    `json:"error,omitempty"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(s.started).String(),
		Started:         s.started,
		LastPullRun:     s.lastPullRun,
		LastDatasetsRun: s.lastDatasetsRun,
		PullRuns:        s.pullRuns,
		DatasetsRuns:    s.datasetsRuns,
		PullRunning:     s.pullRunning,
		DatasetsRunning: s.datasetsRunning,
		ProgressClients: s.hub.ClientCount(),
	}
	s.mu.Unlock()

	if runs, err := s.stores.runs.GetRecent(r.Context(), 5); err == nil {
		for _, run := range runs {
			summary := runSummary{
				ID:        run.ID,
				Kind:      run.Kind,
				Status:    run.Status,
				Records:   run.RecordCount,
				StartedAt: run.StartedAt,
			}
			if run.ErrorText != nil {
				summary.Error = *run.ErrorText
			}
			resp.RecentRuns = append(resp.RecentRuns, summary)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
