package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Worker extracts its share of the manifest into shard databases. A worker
// owns its buffers, its id cursor and the shard files it writes.
type Worker struct {
	ID           int
	Files        Manifest
	Range        IdRange
	MaxBatchSize int
	TmpDir       string
	Mode         string
	Pulsemap     string
	Extractor    Extractor
	Loader       CalibrationLoader
	Metrics      *Metrics
}

type WorkerResult struct {
	WorkerID         int
	Range            IdRange
	Shards           []string
	Files            int
	Frames           int
	SkippedFrames    int
	EmptyPulseFrames int
	TruthRows        int
	PulseRows        int
	AuxRows          int
}

type workerState struct {
	cursor     *IdCursor
	truth      *TableBuffer
	pulses     *TableBuffer
	aux        *TableBuffer
	shardIndex int
	result     WorkerResult
}

// Run processes every file of the worker. Frames that cannot be decoded
// are skipped and counted; a file or calibration that cannot be opened
// stops the worker with a *WorkerError. The result is valid in both cases.
func (w *Worker) Run(ctx context.Context) (WorkerResult, error) {
	if w.Metrics == nil {
		w.Metrics = NewMetrics()
	}
	state := &workerState{
		cursor: NewIdCursor(w.Range),
		truth:  NewTableBuffer(TruthTable),
		pulses: NewTableBuffer(w.Pulsemap),
		aux:    NewTableBuffer(AuxTable),
		result: WorkerResult{WorkerID: w.ID, Range: w.Range},
	}

	calibrations := make(map[string]*Calibration)
	for _, pair := range w.Files {
		if err := ctx.Err(); err != nil {
			return state.result, &WorkerError{WorkerID: w.ID, Err: err}
		}

		calibration, ok := calibrations[pair.CalibrationFile]
		if !ok {
			var err error
			calibration, err = w.Loader.Load(pair.CalibrationFile)
			if err != nil {
				return state.result, &WorkerError{WorkerID: w.ID, Err: &ErrLoadCalibration{Filename: pair.CalibrationFile, Err: err}}
			}
			calibrations[pair.CalibrationFile] = calibration
		}

		reader, err := OpenFrameReader(pair.EventFile)
		if err != nil {
			return state.result, &WorkerError{WorkerID: w.ID, Err: err}
		}
		if verbosity > 1 {
			message := fmt.Sprintf("Worker %d processing %s with %s", w.ID, pair.EventFile, pair.CalibrationFile)
			logger.Info(message, "worker")
		}
		err = w.processFile(ctx, reader, calibration, state)
		reader.Close()
		if err != nil {
			return state.result, &WorkerError{WorkerID: w.ID, Err: err}
		}
		state.result.Files++
		w.Metrics.FilesProcessed.WithLabelValues(workerLabel(w.ID)).Inc()
	}

	if state.truth.Len() > 0 {
		if err := w.flush(state); err != nil {
			return state.result, &WorkerError{WorkerID: w.ID, Err: err}
		}
	}
	return state.result, nil
}

func (w *Worker) processFile(ctx context.Context, reader *FrameReader, calibration *Calibration, state *workerState) error {
	label := workerLabel(w.ID)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, frameData, err := reader.NextPhysics()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			// The frame boundaries are lost, nothing after this point can be read
			errMessage := fmt.Errorf("worker %d: dropping rest of %s after frame %d: %w", w.ID, reader.Filename, reader.FrameCount+1, err)
			logger.Error(errMessage.Error())
			state.result.SkippedFrames++
			w.Metrics.FramesSkipped.WithLabelValues(label).Inc()
			return nil
		}

		frame := Frame{Header: header, Data: frameData, Filename: reader.Filename}
		fragments, err := w.extract(frame, calibration)
		if err == nil {
			err = validateFragments(fragments)
		}
		if err != nil {
			errMessage := fmt.Errorf("worker %d: skipping frame %d of %s: %w", w.ID, header.FrameEventId, reader.Filename, err)
			logger.Error(errMessage.Error())
			state.result.SkippedFrames++
			w.Metrics.FramesSkipped.WithLabelValues(label).Inc()
			continue
		}

		eventNo, err := state.cursor.Next()
		if err != nil {
			return err
		}
		if err := w.record(state, fragments, eventNo); err != nil {
			return err
		}
		state.result.Frames++
		w.Metrics.FramesProcessed.WithLabelValues(label).Inc()

		if state.truth.Len() >= w.MaxBatchSize {
			if err := w.flush(state); err != nil {
				return err
			}
		}
	}
}

// extract calls the extractor, turning a panic into an error for the frame.
func (w *Worker) extract(frame Frame, calibration *Calibration) (fragments Fragments, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor recovered from panic: %v", r)
		}
	}()
	return w.Extractor.Extract(frame, w.Mode, w.Pulsemap, calibration)
}

func validateFragments(fragments Fragments) error {
	if rows := fragments.Truth.Rows(); rows != 1 {
		return fmt.Errorf("truth fragment has %d rows, expected 1", rows)
	}
	if fragments.Pulses.Rows() < 0 {
		return fmt.Errorf("pulse fragment columns have different lengths")
	}
	if fragments.Aux.Rows() < 0 {
		return fmt.Errorf("aux fragment columns have different lengths")
	}
	for _, fragment := range []Fragment{fragments.Truth, fragments.Pulses, fragments.Aux} {
		for column := range fragment {
			if reservedColumn(column) {
				return fmt.Errorf("fragment carries reserved column %s", column)
			}
		}
	}
	return nil
}

// Shards are merged in rowid order, a column with one of these names
// would hide the real rowid.
var rowidAliases = []string{"rowid", "oid", "_rowid_"}

func reservedColumn(column string) bool {
	if column == EventNoColumn {
		return true
	}
	for _, alias := range rowidAliases {
		if strings.EqualFold(column, alias) {
			return true
		}
	}
	return false
}

func (w *Worker) record(state *workerState, fragments Fragments, eventNo int64) error {
	if err := state.truth.Append(fragments.Truth, eventNo); err != nil {
		return err
	}
	state.result.TruthRows++

	if pulsesEmpty(fragments.Pulses) {
		state.result.EmptyPulseFrames++
		w.Metrics.EmptyPulses.WithLabelValues(workerLabel(w.ID)).Inc()
	} else {
		if err := state.pulses.Append(fragments.Pulses, eventNo); err != nil {
			return err
		}
		state.result.PulseRows += fragments.Pulses.Rows()
	}

	if fragments.Aux.Rows() > 0 {
		if err := state.aux.Append(fragments.Aux, eventNo); err != nil {
			return err
		}
		state.result.AuxRows += fragments.Aux.Rows()
	}
	return nil
}

func (w *Worker) flush(state *workerState) error {
	path := filepath.Join(w.TmpDir, ShardName(w.ID, state.shardIndex))
	if err := WriteShard(path, state.truth, state.pulses, state.aux); err != nil {
		return fmt.Errorf("error writing shard %s: %w", path, err)
	}
	if verbosity > 1 {
		message := fmt.Sprintf("Worker %d wrote %s (%d events)", w.ID, path, state.truth.Len())
		logger.Info(message, "worker")
	}
	state.result.Shards = append(state.result.Shards, path)
	state.shardIndex++
	state.truth.Reset()
	state.pulses.Reset()
	state.aux.Reset()
	w.Metrics.ShardsWritten.WithLabelValues(workerLabel(w.ID)).Inc()
	return nil
}
