package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gnn-reco/converter_go/internal/logging"
	converter "github.com/gnn-reco/converter_go/pkg"
)

var logger = logging.New(os.Stdout, os.Stderr, slog.LevelInfo)

func main() {
	dir := flag.String("dir", "", "Working directory, a temporary one if empty")
	runs := flag.Int("runs", 4, "Number of run directories to generate")
	files := flag.Int("files", 4, "Event files per run")
	events := flag.Int("events", 500, "Physics frames per file")
	sensors := flag.Int("sensors", 5160, "Sensors in the geometry")
	pulses := flag.Int("pulses", 30, "Mean number of pulses per frame")
	batches := flag.String("batches", "100,1000,10000", "Comma separated max_dictionary_size values")
	workers := flag.String("workers", "1,2,4,8", "Comma separated worker counts")
	seed := flag.Int64("seed", 1, "Random seed for the synthetic data")
	verbosity := flag.Int("verbosity", 0, "Converter verbosity")
	flag.Parse()

	batchSizes, err := parseList(*batches)
	if err != nil {
		logger.Error(fmt.Sprintf("Error parsing -batches: %v", err))
		os.Exit(1)
	}
	workerCounts, err := parseList(*workers)
	if err != nil {
		logger.Error(fmt.Sprintf("Error parsing -workers: %v", err))
		os.Exit(1)
	}

	workDir := *dir
	if workDir == "" {
		workDir, err = os.MkdirTemp("", "measureBatch")
		if err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
		defer os.RemoveAll(workDir)
	}

	converter.SetLogger(logger)
	converter.SetVerbosity(*verbosity)

	dataset := Dataset{
		Dir:      filepath.Join(workDir, "input"),
		Runs:     *runs,
		Files:    *files,
		Events:   *events,
		Sensors:  *sensors,
		Pulses:   *pulses,
		Pulsemap: "SRTInIcePulses",
	}
	start := time.Now()
	if err := dataset.Generate(rand.New(rand.NewSource(*seed))); err != nil {
		logger.Error(fmt.Sprintf("Error generating input: %v", err))
		os.Exit(1)
	}
	logger.Info(fmt.Sprintf("Generated %d files in %d ms", dataset.Runs*dataset.Files, time.Since(start).Milliseconds()), "main")

	for _, batchSize := range batchSizes {
		for _, nWorkers := range workerCounts {
			config := converter.DefaultConfiguration()
			config.Paths = []string{dataset.Dir}
			config.OutDir = filepath.Join(workDir, "output")
			config.DBName = fmt.Sprintf("batch%d_workers%d", batchSize, nWorkers)
			config.Pulsemap = dataset.Pulsemap
			config.MaxBatchSize = batchSize
			config.NumWorkers = nWorkers
			config.Seed = *seed
			config.Overwrite = true

			report, err := converter.NewConverter(config).Run(context.Background())
			if err != nil {
				logger.Error(fmt.Sprintf("(batch %d, workers %d) %v", batchSize, nWorkers, err))
				continue
			}
			fileInfo, err := os.Stat(report.Database)
			if err != nil {
				logger.Error(fmt.Sprintf("Error getting file info: %v", err))
				continue
			}
			fmt.Printf("(batch %d, workers %d) Time: %d ms, shards %d, events %d, size %d bytes\n",
				batchSize, nWorkers, report.Duration.Milliseconds(), report.Shards, report.TruthRows, fileInfo.Size())
			os.RemoveAll(config.RootDir())
		}
	}
}

func parseList(list string) ([]int, error) {
	var values []int
	for _, item := range strings.Split(list, ",") {
		value, err := strconv.Atoi(strings.TrimSpace(item))
		if err != nil {
			return nil, err
		}
		if value < 1 {
			return nil, fmt.Errorf("%d is not positive", value)
		}
		values = append(values, value)
	}
	return values, nil
}
