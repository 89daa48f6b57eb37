package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"crsp-equity-lab/internal/cds"
	"crsp-equity-lab/internal/config"
	"crsp-equity-lab/internal/export"
	"crsp-equity-lab/internal/logging"
	"crsp-equity-lab/internal/observability"
	"crsp-equity-lab/internal/rates"
	chstore "crsp-equity-lab/internal/storage/clickhouse"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Parse flags; defaults come from the environment
	start := flag.String("start", cfg.CDS.StartDate, "Portfolio window start (YYYY-MM-DD)")
	end := flag.String("end", cfg.CDS.EndDate, "Portfolio window end (YYYY-MM-DD)")
	output := flag.String("output", cfg.CDS.Output, "Output workbook path")
	fredURL := flag.String("fred-url", cfg.CDS.FREDURL, "FRED fredgraph.csv endpoint (empty for the public one)")
	fedURL := flag.String("fed-url", cfg.CDS.FedURL, "Fed yield curve CSV endpoint (empty for the published file)")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickHouse.DSN, "ClickHouse connection string for snapshots")
	metricsAddr := flag.String("metrics-addr", ":9091", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Pretty = cfg.Logging.Pretty
	logCfg.File = cfg.Logging.File
	logger := logging.WithJob(logging.New(logCfg), "cds")

	if *clickhouseDSN == "" {
		logger.Fatal().Msg("--clickhouse-dsn is required (or set CRSPLAB_CLICKHOUSE_DSN)")
	}

	startDate, endDate, err := config.CDSConfig{StartDate: *start, EndDate: *end}.Window()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid portfolio window")
	}

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go handleSignals(cancel, done, logger)

	err = run(ctx, logger, *clickhouseDSN, *fredURL, *fedURL, *output, startDate, endDate)

	close(done)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn().Msg("cds pipeline interrupted")
			return
		}
		logger.Fatal().Err(err).Msg("cds pipeline failed")
	}
	logger.Info().Str("output", *output).Msg("cds pipeline complete")
}

func run(ctx context.Context, logger zerolog.Logger, clickhouseDSN, fredURL, fedURL, output string, start, end time.Time) error {
	conn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		return fmt.Errorf("connect to clickhouse: %w", err)
	}
	defer conn.Close()

	records, err := chstore.NewCDSSpreadStore(conn).GetByDateRange(ctx, start, end)
	if err != nil {
		return fmt.Errorf("read cds snapshots: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no cds snapshots between %s and %s, run the pull command with --kind cds first",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	logger.Info().Int("records", len(records)).Msg("loaded cds snapshots")

	discount, err := buildDiscountGrid(ctx, logger, fredURL, fedURL, start, end)
	if err != nil {
		return err
	}

	portfolios, err := cds.BuildPortfolios(records, start, end)
	if err != nil {
		return fmt.Errorf("build portfolios: %w", err)
	}
	observability.RecordPortfoliosBuilt(len(portfolios))
	logger.Info().Int("portfolios", len(portfolios)).Msg("built tenor-quintile portfolios")

	series, err := cds.ComputeReturns(portfolios, discount)
	if err != nil {
		return fmt.Errorf("compute returns: %w", err)
	}

	blocks := make([]export.MonthlyReturnBlock, len(series))
	dailyCount := 0
	for i, s := range series {
		dailyCount += len(s.Returns)
		blocks[i] = export.MonthlyReturnBlock{
			Key:     s.Key,
			Returns: cds.MonthlyCompound(s),
		}
	}
	observability.RecordReturnsComputed(dailyCount)
	logger.Info().Int("daily_returns", dailyCount).Msg("computed portfolio returns")

	if err := export.WriteAllReturnsWorkbook(output, blocks); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	observability.RecordWorkbookWritten()

	return nil
}

// buildDiscountGrid fetches the short FRED series and the Fed zero-coupon
// curve, joins them, resamples onto the quarterly maturities and converts to
// discount factors.
func buildDiscountGrid(ctx context.Context, logger zerolog.Logger, fredURL, fedURL string, start, end time.Time) (rates.TermStructure, error) {
	short, err := rates.NewFREDClient(fredURL, nil).ShortRates(ctx, start)
	if err != nil {
		return rates.TermStructure{}, fmt.Errorf("fetch fred short rates: %w", err)
	}
	logger.Info().Int("dates", short.Len()).Msg("fetched fred short rates")

	curve, err := rates.NewFedCurveClient(fedURL, nil).YieldCurve(ctx, start, end)
	if err != nil {
		return rates.TermStructure{}, fmt.Errorf("fetch fed yield curve: %w", err)
	}
	logger.Info().Int("dates", curve.Len()).Msg("fetched fed yield curve")

	merged, err := rates.Merge(curve, short)
	if err != nil {
		return rates.TermStructure{}, fmt.Errorf("merge term structures: %w", err)
	}
	if merged.Len() == 0 {
		return rates.TermStructure{}, fmt.Errorf("fred and fed series share no dates between %s and %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	quarterly, err := rates.ExtrapolateQuarterly(merged)
	if err != nil {
		return rates.TermStructure{}, fmt.Errorf("resample term structure: %w", err)
	}

	return rates.Discount(quarterly), nil
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
