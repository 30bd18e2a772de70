package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/claude/mafwalk/internal/config"
	"github.com/claude/mafwalk/internal/health"
	"github.com/claude/mafwalk/internal/importer"
	"github.com/claude/mafwalk/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	path := flag.String("path", "", "HAE REST payload file, or a directory of *.json payloads")
	device := flag.Bool("device", false, "pull workouts from the Health Auto Export TCP server instead of files")
	days := flag.Int("days", 30, "with -device, how many days back to import")
	dryRun := flag.Bool("dry-run", false, "report counts without writing to storage")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *path == "" && !*device {
		fmt.Fprintf(os.Stderr, "Usage: mafwalk-import [-config config.yaml] (-path <file|dir> | -device [-days N]) [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *device && *days <= 0 {
		fmt.Fprintf(os.Stderr, "Error: -days must be positive\n")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if *dryRun {
		log.Info("DRY RUN mode: nothing will be written to storage")
	}

	backend, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN())
	if err != nil {
		log.Error("failed to open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer func() { _ = backend.Close() }()
	log.Info("storage opened", "driver", cfg.Storage.Driver)

	store := storage.NewStore(backend, log)
	imp := importer.New(store, log, *dryRun,
		importer.WithPolicy(cfg.Policy.StrideLengthKm, cfg.Policy.ZoneWidthBPM))

	var result *importer.Result
	if *device {
		native := health.NewNative(cfg.Health.Host, cfg.Health.Port, cfg.Health.Timeout, log)
		end := time.Now()
		result, err = imp.ImportFromSource(ctx, native, end.AddDate(0, 0, -*days), end)
	} else {
		result, err = imp.ImportPath(ctx, *path)
	}
	if err != nil {
		log.Error("import failed", "error", err)
		if result != nil {
			printResult(log, result)
		}
		os.Exit(1)
	}

	printResult(log, result)
	log.Info("import complete")
}

func printResult(log *slog.Logger, r *importer.Result) {
	log.Info("import stats",
		"files_processed", r.FilesProcessed,
		"files_errored", r.FilesErrored,
		"workouts_received", r.WorkoutsReceived,
		"workouts_imported", r.WorkoutsImported,
		"workouts_duplicated", r.WorkoutsDuplicated,
		"workouts_skipped", r.WorkoutsSkipped,
		"hr_correlated", r.HRCorrelated,
	)
}
