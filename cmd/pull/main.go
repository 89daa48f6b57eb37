package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"crsp-equity-lab/internal/config"
	"crsp-equity-lab/internal/delisting"
	"crsp-equity-lab/internal/logging"
	"crsp-equity-lab/internal/observability"
	"crsp-equity-lab/internal/pull"
	"crsp-equity-lab/internal/storage"
	chstore "crsp-equity-lab/internal/storage/clickhouse"
	"crsp-equity-lab/internal/storage/memory"
	"crsp-equity-lab/internal/storage/migrations"
	pgstore "crsp-equity-lab/internal/storage/postgres"
	"crsp-equity-lab/internal/wrds"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Parse flags; defaults come from the environment
	kinds := flag.String("kind", "stock,index", "Comma-separated pull kinds: stock, index, cds")
	start := flag.String("start", cfg.Pull.StartDate, "Pull window start (YYYY-MM-DD)")
	end := flag.String("end", cfg.Pull.EndDate, "Pull window end (YYYY-MM-DD)")
	policyName := flag.String("delisting-policy", cfg.Pull.DelistingPolicy, "Delisting return policy: imputed, additive or none")
	batchSize := flag.Int("batch-size", cfg.Pull.BatchSize, "Snapshot insert batch size")
	wrdsUser := flag.String("wrds-user", cfg.WRDS.Username, "WRDS username")
	wrdsPassword := flag.String("wrds-password", cfg.WRDS.Password, "WRDS password")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickHouse.DSN, "ClickHouse connection string for snapshots")
	postgresDSN := flag.String("postgres-dsn", cfg.Postgres.DSN, "PostgreSQL connection string for the pull ledger")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of ClickHouse and PostgreSQL")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Pretty = cfg.Logging.Pretty
	logCfg.File = cfg.Logging.File
	logger := logging.WithJob(logging.New(logCfg), "pull")

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	kindList := resolveKinds(*kinds)
	if len(kindList) == 0 {
		logger.Fatal().Str("kind", *kinds).Msg("no pull kinds specified")
	}

	startDate, endDate, err := config.PullConfig{StartDate: *start, EndDate: *end}.Window()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid pull window")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go handleSignals(cancel, done, logger)

	err = run(ctx, logger, runConfig{
		kinds:         kindList,
		start:         startDate,
		end:           endDate,
		policyName:    *policyName,
		batchSize:     *batchSize,
		wrdsUser:      *wrdsUser,
		wrdsPassword:  *wrdsPassword,
		wrdsHost:      cfg.WRDS.Host,
		wrdsPort:      cfg.WRDS.Port,
		wrdsDatabase:  cfg.WRDS.Database,
		clickhouseDSN: *clickhouseDSN,
		postgresDSN:   *postgresDSN,
		useMemory:     *useMemory,
	})

	close(done)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn().Msg("pull interrupted")
			return
		}
		logger.Fatal().Err(err).Msg("pull failed")
	}
	logger.Info().Msg("pull complete")
}

type runConfig struct {
	kinds         []string
	start, end    time.Time
	policyName    string
	batchSize     int
	wrdsUser      string
	wrdsPassword  string
	wrdsHost      string
	wrdsPort      int
	wrdsDatabase  string
	clickhouseDSN string
	postgresDSN   string
	useMemory     bool
}

func run(ctx context.Context, logger zerolog.Logger, rc runConfig) error {
	client, err := wrds.NewClient(ctx, wrds.Config{
		Username: rc.wrdsUser,
		Password: rc.wrdsPassword,
		Host:     rc.wrdsHost,
		Port:     rc.wrdsPort,
		Database: rc.wrdsDatabase,
	})
	if err != nil {
		return fmt.Errorf("connect to wrds: %w", err)
	}
	defer client.Close()

	// Create stores (use interfaces)
	var stockStore storage.MonthlyStockStore = memory.NewMonthlyStockStore()
	var indexStore storage.MonthlyIndexStore = memory.NewMonthlyIndexStore()
	var cdsStore storage.CDSSpreadStore = memory.NewCDSSpreadStore()
	var runStore storage.PullRunStore = memory.NewPullRunStore()

	if !rc.useMemory {
		if rc.clickhouseDSN == "" {
			return fmt.Errorf("--clickhouse-dsn is required (use --use-memory for in-memory storage)")
		}
		if rc.postgresDSN == "" {
			return fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
		}

		conn, err := migrations.RunClickhouseMigrations(ctx, rc.clickhouseDSN)
		if err != nil {
			return fmt.Errorf("migrate clickhouse: %w", err)
		}
		defer conn.Close()

		pool, err := pgstore.NewPool(ctx, rc.postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}

		stockStore = chstore.NewMonthlyStockStore(conn)
		indexStore = chstore.NewMonthlyIndexStore(conn)
		cdsStore = chstore.NewCDSSpreadStore(conn)
		runStore = pgstore.NewPullRunStore(pool)
	}

	var policy delisting.Policy
	if rc.policyName != "" && rc.policyName != "none" {
		policy, err = delisting.FromName(rc.policyName)
		if err != nil {
			return fmt.Errorf("resolve delisting policy %q: %w", rc.policyName, err)
		}
	}

	runner := pull.NewRunner(pull.Options{
		StockSource: client,
		IndexSource: client,
		CDSSource:   client,
		StockStore:  stockStore,
		IndexStore:  indexStore,
		CDSStore:    cdsStore,
		Runs:        runStore,
		Policy:      policy,
		BatchSize:   rc.batchSize,
		Logger:      logger,
	})

	for _, kind := range rc.kinds {
		var result *pull.Result
		var pullErr error

		switch kind {
		case "stock":
			result, pullErr = runner.PullStock(ctx, rc.start, rc.end)
		case "index":
			result, pullErr = runner.PullIndex(ctx, rc.start, rc.end)
		case "cds":
			result, pullErr = runner.PullCDS(ctx, rc.start, rc.end)
		default:
			return fmt.Errorf("unknown pull kind %q", kind)
		}

		if pullErr != nil {
			observability.RecordPullRun(kind, "failed", 0, 0, 0)
			return fmt.Errorf("pull %s: %w", kind, pullErr)
		}

		observability.RecordPullRun(kind, "completed",
			result.RecordsPulled, result.RecordsStored, result.Duration.Seconds())
		observability.RecordPullSuccess(kind, time.Now().Unix())
	}

	return nil
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

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.Info().Str("addr", addr).Msg("starting metrics server")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

// handleSignals cancels the context on the first signal and forces exit on
// the second or after the grace period.
func handleSignals(cancel context.CancelFunc, done <-chan struct{}, logger zerolog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		cancel()
	case <-done:
		return
	}

	select {
	case sig := <-sigCh:
		logger.Warn().Str("signal", sig.String()).Msg("forcing immediate shutdown")
		os.Exit(1)
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("graceful shutdown timed out after 30s, forcing exit")
		os.Exit(1)
	case <-done:
	}
}
