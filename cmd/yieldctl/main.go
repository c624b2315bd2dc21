/*
main.go - Batch pipeline without the HTTP server

PURPOSE:
  Runs reconcile -> yield -> export in one process: reads the PMS and CM
  exports, stores the canonical inventory, runs the engine and writes the
  wide allocation table as CSV.

COMMAND-LINE FLAGS:
  -pms      PMS room-code export (CSV, required)
  -cm       Channel manager "Left for sale" sheet (CSV, required)
  -raw      Inputs are already per-date category tables; skip normalization
  -driver   sqlite | postgres (DB_DRIVER, default: sqlite)
  -db       Database (DATABASE_URL, default: ":memory:")
  -config   JSON configuration (complete; defaults when omitted)
  -out      Output CSV path (default: daily_inventory_allocation.csv)
  -workers  Parallel row evaluation (YIELD_WORKERS, default: GOMAXPROCS)

EXIT CODES:
  0 success, 1 pipeline failure, 2 usage error

EXAMPLES:
  yieldctl -pms pms.csv -cm cm.csv -db yield.db -out allocation.csv
  yieldctl -pms pms.csv -cm cm.csv -config custom.json
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/warp/yield-engine/factory"
	"github.com/warp/yield-engine/ingest"
	"github.com/warp/yield-engine/logging"
	"github.com/warp/yield-engine/store"
	"github.com/warp/yield-engine/yield"
)

type options struct {
	pms, cm    string
	raw        bool
	driver     string
	dsn        string
	configPath string
	out        string
	workers    int
}

func main() {
	logger := logging.New()
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to load .env: %v", err)
	}

	var opts options
	flag.StringVar(&opts.pms, "pms", "", "PMS export (CSV)")
	flag.StringVar(&opts.cm, "cm", "", "Channel manager export (CSV)")
	flag.BoolVar(&opts.raw, "raw", false, "Inputs are already per-date category tables")
	flag.StringVar(&opts.driver, "driver", envOr("DB_DRIVER", store.DriverSQLite), "Database driver: sqlite or postgres")
	flag.StringVar(&opts.dsn, "db", envOr("DATABASE_URL", ":memory:"), "SQLite path or PostgreSQL connection string")
	flag.StringVar(&opts.configPath, "config", "", "JSON configuration file")
	flag.StringVar(&opts.out, "out", "daily_inventory_allocation.csv", "Output CSV path")
	flag.IntVar(&opts.workers, "workers", envInt("YIELD_WORKERS", 0), "Parallel row evaluation (0 = GOMAXPROCS)")
	flag.Parse()

	if opts.pms == "" || opts.cm == "" {
		fmt.Fprintln(os.Stderr, "both -pms and -cm are required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *logging.Logger) error {
	cfg, matrix := yield.DefaultConfig(), yield.DefaultMatrix()
	if opts.configPath != "" {
		data, err := os.ReadFile(opts.configPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		if cfg, matrix, err = factory.NewConfigFactory().ParseConfig(data); err != nil {
			return err
		}
	}

	first, err := ingest.ReadCSVFile(opts.pms)
	if err != nil {
		return err
	}
	second, err := ingest.ReadCSVFile(opts.cm)
	if err != nil {
		return err
	}
	if !opts.raw {
		first = ingest.NewPMSNormalizer(logger).Normalize(first)
		second = ingest.NormalizeCM(second, logger)
	}

	backend, err := store.Open(opts.driver, opts.dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer backend.Close()

	svc := yield.NewService(backend, backend, logger)
	svc.Workers = opts.workers

	if _, err := svc.Reconcile(ctx, first, second); err != nil {
		return err
	}
	rep, err := svc.Run(ctx, cfg, matrix)
	if err != nil {
		return err
	}

	if err := ingest.WriteAllocationsFile(opts.out, rep.Result.Allocations, cfg.Categories()); err != nil {
		return err
	}
	logger.Info("Wrote %d rows to %s (run %s, %d skipped, %d warnings)",
		len(rep.Result.Allocations), opts.out, rep.ID, rep.Result.Skipped, len(rep.Result.Warnings))
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
