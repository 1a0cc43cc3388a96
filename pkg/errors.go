package converter

import (
	"errors"
	"fmt"
)

var (
	ErrNoFilesFound     = errors.New("no input files found")
	ErrNoShards         = errors.New("no temporary database files found")
	ErrIdRangeExhausted = errors.New("event_no range exhausted")
	ErrSchemaMismatch   = errors.New("shard schema does not match final schema")
	ErrDatabaseExists   = errors.New("final database already exists")
	ErrBadMagic         = errors.New("bad frame magic number")
	ErrFrameTooLarge    = errors.New("frame larger than MaxFrameSize")
)

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error { return e.Err }

// ErrLoadCalibration represents an error when reading geometry or
// calibration constants.
type ErrLoadCalibration struct {
	Filename string
	Err      error
}

func (e *ErrLoadCalibration) Error() string {
	return fmt.Sprintf("error loading calibration %q: %v", e.Filename, e.Err)
}

func (e *ErrLoadCalibration) Unwrap() error { return e.Err }

// ErrCreateTable represents an error when creating a table.
type ErrCreateTable struct {
	TableName string
	Err       error
}

func (e *ErrCreateTable) Error() string {
	return fmt.Sprintf("error creating table %q: %v", e.TableName, e.Err)
}

func (e *ErrCreateTable) Unwrap() error { return e.Err }

// ErrInsertRows represents an error when writing rows into a table.
type ErrInsertRows struct {
	TableName string
	Err       error
}

func (e *ErrInsertRows) Error() string {
	return fmt.Sprintf("error inserting rows into %q: %v", e.TableName, e.Err)
}

func (e *ErrInsertRows) Unwrap() error { return e.Err }

// ErrMergeShard represents an error when merging one shard into the final
// database.
type ErrMergeShard struct {
	Shard string
	Err   error
}

func (e *ErrMergeShard) Error() string {
	return fmt.Sprintf("error merging shard %q: %v", e.Shard, e.Err)
}

func (e *ErrMergeShard) Unwrap() error { return e.Err }

// WorkerError is returned by a worker that could not finish its files.
type WorkerError struct {
	WorkerID int
	Err      error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %d: %v", e.WorkerID, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }
