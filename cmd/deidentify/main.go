package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"dicom-deident/internal/config"
	"dicom-deident/internal/engine"
	"dicom-deident/internal/evidence"
	"dicom-deident/internal/identity"
	"dicom-deident/internal/logger"
	"dicom-deident/internal/policy"
	"dicom-deident/internal/trace"
)

func main() {
	input := flag.String("input", "", "Input folder containing DICOM files")
	inputShort := flag.String("i", "", "Input folder (shorthand)")

	profileName := flag.String("profile", "", "Compliance profile (minimal-repair, safe-harbor, strict-jurisdictional, legal-disclosure)")
	configPath := flag.String("config", "", "Configuration file path")

	output := flag.String("output", "", "Output folder (default: <input>/deidentified)")
	ledgerPath := flag.String("db", "", "Decision ledger database path")
	evidenceDir := flag.String("evidence", "", "Evidence bundle output directory")

	strict := flag.Bool("strict", false, "Fail a record on any field transform error")
	workers := flag.Int("workers", 4, "Parallel patient-group workers")

	recursive := flag.Bool("recursive", true, "Search subdirectories")
	recursiveShort := flag.Bool("r", true, "Recursive (shorthand)")

	dryRun := flag.Bool("dry-run", false, "Preview only, no files modified")
	dryRunShort := flag.Bool("n", false, "Dry run (shorthand)")

	flag.Parse()

	inputFolder := *input
	if inputFolder == "" {
		inputFolder = *inputShort
	}
	isRecursive := *recursive
	if !*recursiveShort {
		isRecursive = false
	}
	isDryRun := *dryRun || *dryRunShort

	if inputFolder == "" {
		fmt.Fprintln(os.Stderr, "Error: input folder is required (-input)")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(inputFolder, *profileName, *configPath, *output, *ledgerPath,
		*evidenceDir, *strict, *workers, isRecursive, isDryRun); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(inputFolder, profileName, configPath, output, ledgerPath, evidenceDir string,
	strict bool, workers int, recursive, dryRun bool) error {

	info, err := os.Stat(inputFolder)
	if err != nil {
		return fmt.Errorf("input folder does not exist: %s", inputFolder)
	}
	if !info.IsDir() {
		return fmt.Errorf("input path is not a directory: %s", inputFolder)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if profileName != "" {
		cfg.Profile = profileName
	}
	if strict {
		cfg.Strict = true
	}
	if ledgerPath != "" {
		cfg.LedgerPath = ledgerPath
	}
	if evidenceDir != "" {
		cfg.EvidenceDir = evidenceDir
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	profile, err := policy.ParseProfile(cfg.Profile)
	if err != nil {
		return err
	}

	salt := cfg.Salt()
	if len(salt) == 0 {
		return fmt.Errorf("no salt configured: set %s", cfg.SaltEnv)
	}

	log, err := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return err
	}
	defer log.Sync()

	bounds := identity.DefaultShiftBounds
	if b, ok := cfg.ShiftBounds[cfg.Profile]; ok {
		bounds = identity.ShiftBounds{MinDays: b.MinDays, MaxDays: b.MaxDays}
	}

	if output == "" {
		output = filepath.Join(inputFolder, "deidentified")
	}

	batchCfg := engine.BatchConfig{
		Config: engine.Config{
			Profile:     profile,
			Strict:      cfg.Strict,
			Salt:        salt,
			ShiftBounds: bounds,
		},
		InputFolder:  inputFolder,
		OutputFolder: output,
		Recursive:    recursive,
		DryRun:       dryRun,
		Workers:      workers,
	}

	if !dryRun {
		store, err := trace.OpenStore(cfg.LedgerPath)
		if err != nil {
			return fmt.Errorf("could not open ledger store: %w", err)
		}
		defer store.Close()
		batchCfg.Store = store
		batchCfg.Evidence = evidence.NewWriter(cfg.EvidenceDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := engine.ProcessBatch(ctx, batchCfg, logger.WithComponent(log, "batch"))
	if err != nil {
		return err
	}

	fmt.Printf("Complete! %d succeeded, %d failed, %d skipped (%d patients)\n",
		stats.Success, stats.Failed, stats.Skipped, stats.TotalPatients)
	if stats.Violations > 0 {
		return fmt.Errorf("%d pixel invariant violation(s)", stats.Violations)
	}
	return nil
}
