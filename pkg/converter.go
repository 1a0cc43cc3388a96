package converter

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Report summarises one conversion run.
type Report struct {
	RunID            string
	Files            int
	Workers          int
	Shards           int
	Frames           int
	SkippedFrames    int
	EmptyPulseFrames int
	TruthRows        int64
	PulseRows        int64
	AuxRows          int64
	AuxTable         bool
	Database         string
	Duration         time.Duration
	WorkerResults    []WorkerResult
}

// Converter runs discovery, parallel extraction and the merge.
type Converter struct {
	Config    Configuration
	Extractor Extractor
	Loader    CalibrationLoader
	Metrics   *Metrics
}

func NewConverter(config Configuration) *Converter {
	return &Converter{
		Config:    config,
		Extractor: DefaultExtractor{},
		Loader:    Loaders{},
		Metrics:   NewMetrics(),
	}
}

func (c *Converter) observe(stage string, start time.Time) {
	c.Metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Run converts every event file under the configured paths into
// data/<db_name>.db. ErrNoFilesFound is returned, and nothing is created
// besides the output root, when discovery finds no event file.
func (c *Converter) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{RunID: uuid.NewString(), Database: c.Config.DatabasePath()}
	if err := c.Config.Validate(); err != nil {
		return report, fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Metrics == nil {
		c.Metrics = NewMetrics()
	}
	if c.Extractor == nil {
		c.Extractor = DefaultExtractor{}
	}
	if c.Loader == nil {
		c.Loader = Loaders{}
	}
	if _, err := os.Stat(c.Config.DatabasePath()); err == nil && !c.Config.Overwrite {
		return report, fmt.Errorf("%w: %s", ErrDatabaseExists, c.Config.DatabasePath())
	}

	if verbosity > 0 {
		message := fmt.Sprintf("Run %s: counting files in %v, this might take a few minutes", report.RunID, c.Config.Paths)
		logger.Info(message, "converter")
	}
	stageStart := time.Now()
	seed := c.Config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	manifest, err := FindFiles(c.Config.Paths, c.Config.Extensions, c.Config.GcdRescue, c.Config.SearchDepth, rand.New(rand.NewSource(seed)))
	if err != nil {
		return report, fmt.Errorf("error searching input files: %w", err)
	}
	c.observe("discovery", stageStart)
	report.Files = len(manifest)
	if len(manifest) == 0 {
		return report, fmt.Errorf("%w in %v", ErrNoFilesFound, c.Config.Paths)
	}
	if err := manifest.Save(c.Config.ManifestPath()); err != nil {
		return report, fmt.Errorf("error saving file list: %w", err)
	}

	shards, err := c.extract(ctx, manifest, &report)
	if err != nil {
		return report, err
	}
	if len(shards) == 0 {
		return report, fmt.Errorf("%w in %s", ErrNoShards, c.Config.TmpDir())
	}

	if err := c.merge(ctx, shards, &report); err != nil {
		return report, err
	}
	report.Duration = time.Since(start)

	if verbosity > 0 {
		logReport(report)
	}
	if c.Config.MetricsFile != "" {
		if err := c.Metrics.WriteToTextfile(c.Config.MetricsFile); err != nil {
			return report, fmt.Errorf("error writing metrics to %s: %w", c.Config.MetricsFile, err)
		}
	}
	return report, nil
}

// extract runs one goroutine per worker and waits for all of them. Every
// worker result is kept; the errors of all failed workers are returned
// together.
func (c *Converter) extract(ctx context.Context, manifest Manifest, report *Report) ([]string, error) {
	stageStart := time.Now()
	defer c.observe("extraction", stageStart)

	workers := c.Config.NumWorkers
	if workers > len(manifest) {
		workers = len(manifest)
	}
	report.Workers = workers

	ranges, err := AllocateEventIDs(c.Config.MaxEventNo, workers)
	if err != nil {
		return nil, err
	}
	parts := manifest.Split(workers)

	// Shards left by an interrupted run use event numbers of that run
	if err := os.RemoveAll(c.Config.TmpDir()); err != nil {
		return nil, fmt.Errorf("error removing stale temporary databases: %w", err)
	}
	for _, dir := range []string{c.Config.TmpDir(), c.Config.DataDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating output directory: %w", err)
		}
	}

	if verbosity > 0 {
		message := fmt.Sprintf("Starting %d workers on %d files. event_no is unique within this run only", workers, len(manifest))
		logger.Info(message, "converter")
	}

	results := make([]WorkerResult, workers)
	workerErrs := make([]error, workers)
	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		worker := &Worker{
			ID:           i,
			Files:        parts[i],
			Range:        ranges[i],
			MaxBatchSize: c.Config.MaxBatchSize,
			TmpDir:       c.Config.TmpDir(),
			Mode:         c.Config.Mode,
			Pulsemap:     c.Config.Pulsemap,
			Extractor:    c.Extractor,
			Loader:       c.Loader,
			Metrics:      c.Metrics,
		}
		group.Go(func() error {
			results[i], workerErrs[i] = worker.Run(groupCtx)
			return workerErrs[i]
		})
	}
	// Each worker records its own error, Wait is only the barrier
	group.Wait()

	report.WorkerResults = results
	var shards []string
	for _, result := range results {
		shards = append(shards, result.Shards...)
		report.Frames += result.Frames
		report.SkippedFrames += result.SkippedFrames
		report.EmptyPulseFrames += result.EmptyPulseFrames
	}
	report.Shards = len(shards)

	var failed []error
	for _, err := range workerErrs {
		// Workers stopped because a sibling failed are not failures of their own
		if err != nil && !errors.Is(err, context.Canceled) {
			failed = append(failed, err)
		}
	}
	if len(failed) == 0 {
		for _, err := range workerErrs {
			if err != nil {
				failed = append(failed, err)
			}
		}
	}
	if len(failed) > 0 {
		return shards, fmt.Errorf("extraction failed, not merging: %w", errors.Join(failed...))
	}
	return shards, nil
}

func (c *Converter) merge(ctx context.Context, shards []string, report *Report) error {
	stageStart := time.Now()
	schema, err := InferSchema(ctx, shards, c.Config.Pulsemap)
	if err != nil {
		return err
	}
	c.observe("schema", stageStart)
	report.AuxTable = schema.Aux != nil

	stageStart = time.Now()
	merger := &Merger{
		Path:      c.Config.DatabasePath(),
		Schema:    schema,
		IndexAux:  c.Config.IndexAux,
		Overwrite: c.Config.Overwrite,
		Metrics:   c.Metrics,
	}
	if verbosity > 0 {
		message := fmt.Sprintf("Merging %d temporary databases into %s", len(shards), merger.Path)
		logger.Info(message, "converter")
	}
	stats, err := merger.Merge(ctx, shards)
	report.TruthRows, report.PulseRows, report.AuxRows = stats.TruthRows, stats.PulseRows, stats.AuxRows
	if err != nil {
		return fmt.Errorf("merge failed, %s must be removed before retrying: %w", merger.Path, err)
	}
	c.observe("merge", stageStart)

	if c.Config.KeepShards {
		return nil
	}
	if err := Cleanup(c.Config.TmpDir(), shards); err != nil {
		return fmt.Errorf("error removing temporary databases: %w", err)
	}
	return nil
}

func logReport(report Report) {
	logger.Info(fmt.Sprintf("Run %s finished in %v", report.RunID, report.Duration.Round(time.Millisecond)), "converter")
	logger.Info(fmt.Sprintf("Files: %d, workers: %d, shards: %d", report.Files, report.Workers, report.Shards), "converter")
	logger.Info(fmt.Sprintf("Frames: %d, skipped frames: %d, frames without pulses: %d",
		report.Frames, report.SkippedFrames, report.EmptyPulseFrames), "converter")
	logger.Info(fmt.Sprintf("Rows: truth %d, pulsemap %d, %s %d", report.TruthRows, report.PulseRows, AuxTable, report.AuxRows), "converter")
	logger.Info(fmt.Sprintf("Database: %s", report.Database), "converter")
}
