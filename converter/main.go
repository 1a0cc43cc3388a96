package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gnn-reco/converter_go/internal/logging"
	converter "github.com/gnn-reco/converter_go/pkg"
	"github.com/gnn-reco/converter_go/pkg/hdf5calib"
)

var logger = logging.New(os.Stdout, os.Stderr, slog.LevelDebug)

func main() {
	os.Exit(run())
}

func run() int {
	configFilename := flag.String("config", "", "Configuration file path")
	workers := flag.Int("workers", 0, "Number of workers, overrides the configuration file")
	overwrite := flag.Bool("overwrite", false, "Replace an existing output database")
	flag.Parse()

	configuration, err := LoadConfiguration(*configFilename)
	if err != nil {
		message := fmt.Errorf("Error reading configuration file: %w", err)
		logger.Error(message.Error())
		return 1
	}
	if *workers > 0 {
		configuration.NumWorkers = *workers
	}
	if *overwrite {
		configuration.Overwrite = true
	}

	converter.SetLogger(logger)
	converter.SetVerbosity(configuration.Verbosity)
	hdf5calib.Register()

	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Reading configuration file: %s", *configFilename)
		logger.Info(message, "main")
		printConfiguration(configuration, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := converter.NewConverter(configuration).Run(ctx)
	if errors.Is(err, converter.ErrNoFilesFound) {
		logger.Error(fmt.Sprintf("Nothing to convert: %v", err))
		return 1
	}
	if err != nil {
		message := fmt.Errorf("Conversion failed after %d frames (%d skipped): %w", report.Frames, report.SkippedFrames, err)
		logger.Error(message.Error())
		return 1
	}
	return 0
}
