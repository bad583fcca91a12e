// Command fintrack-import loads a backup file into the configured backend.
//
//	fintrack-import -file backup.json [-mode merge|replace]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/sources"
)

func main() {
	file := flag.String("file", "", "backup JSON file to import (required)")
	modeFlag := flag.String("mode", string(sources.ImportMerge), "merge or replace")
	timeout := flag.Duration("timeout", 2*time.Minute, "maximum time for the import")
	flag.Parse()

	envErr := cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger("info", log.FormatText))
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat).WithComponent(log.ComponentLedger)
	if envErr != nil {
		logger.Warn("Failed to load .env file", log.FieldError, envErr)
	}

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: fintrack-import -file backup.json [-mode merge|replace]")
		os.Exit(2)
	}
	mode, ok := sources.ParseImportMode(*modeFlag)
	if !ok {
		fmt.Fprintf(os.Stderr, "invalid -mode %q: want merge or replace\n", *modeFlag)
		os.Exit(2)
	}

	if err := run(logger, cfg, *file, mode, *timeout); err != nil {
		logger.Error("Import failed", log.FieldOperation, log.OpImport, log.FieldError, err)
		os.Exit(1)
	}
}

func run(logger *log.Logger, cfg *config.Config, path string, mode sources.ImportMode, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	normalizer, err := cli.Normalizer(cfg)
	if err != nil {
		return fmt.Errorf("time zone: %w", err)
	}

	res := cli.InitBackend(ctx, logger, cfg)
	defer res.Close()

	ledger := services.NewLedgerService(res.Store, res.Publisher, normalizer, logger)
	result, err := ledger.Import(ctx, f, mode)
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		logger.Warn("Import warning", "warning", w)
	}
	fmt.Printf("imported %d transactions (%d dropped), %d budget months, revision %d\n",
		result.Imported, result.Dropped, result.Summary.BudgetMonths, result.Revision)
	return nil
}
