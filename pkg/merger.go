package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sqlx "github.com/jmoiron/sqlx"
)

const shardSchema = "shard"

type MergeStats struct {
	Shards    int
	TruthRows int64
	PulseRows int64
	AuxRows   int64
}

// Merger is the only writer of the final database.
type Merger struct {
	Path      string
	Schema    Schema
	IndexAux  bool
	Overwrite bool
	Metrics   *Metrics
}

// Merge creates the final database from the schema and appends every
// shard in order. A failure leaves the final database as it is at that
// point: it has to be removed before trying again.
func (m *Merger) Merge(ctx context.Context, shards []string) (MergeStats, error) {
	stats := MergeStats{}
	if m.Metrics == nil {
		m.Metrics = NewMetrics()
	}
	if _, err := os.Stat(m.Path); err == nil {
		if !m.Overwrite {
			return stats, fmt.Errorf("%w: %s", ErrDatabaseExists, m.Path)
		}
		if err := os.Remove(m.Path); err != nil {
			return stats, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(m.Path), 0o755); err != nil {
		return stats, err
	}

	db, err := OpenSQLite(m.Path, finalPragmas...)
	if err != nil {
		return stats, &ErrOpenFile{Filename: m.Path, Err: err}
	}
	defer db.Close()

	// Attached shards live on the connection, keep the same one throughout
	conn, err := db.Connx(ctx)
	if err != nil {
		return stats, err
	}
	defer conn.Close()

	if err := CreateTables(ctx, conn, m.Schema, m.IndexAux); err != nil {
		return stats, err
	}

	for i, shard := range shards {
		if err := m.mergeShard(ctx, conn, shard, &stats); err != nil {
			return stats, &ErrMergeShard{Shard: shard, Err: err}
		}
		stats.Shards++
		if verbosity > 1 {
			message := fmt.Sprintf("Merged shard %d/%d: %s", i+1, len(shards), shard)
			logger.Info(message, "merger")
		}
	}
	return stats, nil
}

type tableStatement struct {
	table string
	sql   string
}

// CreateTables creates the truth, auxiliary (if any) and pulsemap tables
// and the event_no index of the pulsemap.
func CreateTables(ctx context.Context, db sqlx.ExecerContext, schema Schema, indexAux bool) error {
	statements := []tableStatement{
		{TruthTable, createTableSQL(TruthTable, schema.Truth, truthTable)},
	}
	if schema.Aux != nil {
		statements = append(statements, tableStatement{AuxTable, createTableSQL(AuxTable, schema.Aux, auxTable)})
		if indexAux {
			statements = append(statements, tableStatement{AuxTable, createIndexSQL(AuxTable)})
		}
	}
	statements = append(statements,
		tableStatement{schema.Pulsemap, createTableSQL(schema.Pulsemap, schema.Pulses, pulsemapTable)},
		tableStatement{schema.Pulsemap, createIndexSQL(schema.Pulsemap)},
	)

	for _, statement := range statements {
		if verbosity > 2 {
			logger.Info(statement.sql, "merger")
		}
		if _, err := db.ExecContext(ctx, statement.sql); err != nil {
			return &ErrCreateTable{TableName: statement.table, Err: err}
		}
	}
	return nil
}

func (m *Merger) mergeShard(ctx context.Context, conn *sqlx.Conn, shard string, stats *MergeStats) (err error) {
	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS "+shardSchema, shard); err != nil {
		return err
	}
	defer func() {
		_, detachErr := conn.ExecContext(context.Background(), "DETACH DATABASE "+shardSchema)
		if err == nil {
			err = detachErr
		}
	}()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	tables := []struct {
		name    string
		columns []string
		rows    *int64
	}{
		{TruthTable, m.Schema.Truth, &stats.TruthRows},
		{m.Schema.Pulsemap, m.Schema.Pulses, &stats.PulseRows},
		{AuxTable, m.Schema.Aux, &stats.AuxRows},
	}
	copied := make([]int64, len(tables))
	for i, table := range tables {
		copied[i], err = copyTable(ctx, tx, table.name, table.columns)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for i, table := range tables {
		*table.rows += copied[i]
		m.Metrics.RowsMerged.WithLabelValues(table.name).Add(float64(copied[i]))
	}
	return nil
}

// copyTable appends the rows of shard.table to main.table keeping their
// order. finalColumns is nil when the final database has no such table.
func copyTable(ctx context.Context, tx *sqlx.Tx, table string, finalColumns []string) (int64, error) {
	has, err := tableHasRows(ctx, tx, shardSchema, table)
	if err != nil || !has {
		return 0, err
	}
	if finalColumns == nil {
		return 0, fmt.Errorf("%w: table %s is not in the final schema", ErrSchemaMismatch, table)
	}
	columns, err := tableColumns(ctx, tx, shardSchema, table)
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(finalColumns))
	for _, column := range finalColumns {
		known[column] = true
	}
	for _, column := range columns {
		if !known[column] {
			return 0, fmt.Errorf("%w: column %s.%s", ErrSchemaMismatch, table, column)
		}
	}

	list := quoteIdentifiers(columns)
	query := fmt.Sprintf("INSERT INTO main.%s (%s) SELECT %s FROM %s.%s ORDER BY rowid",
		quoteIdentifier(table), list, list, shardSchema, quoteIdentifier(table))
	result, err := tx.ExecContext(ctx, query)
	if err != nil {
		return 0, &ErrInsertRows{TableName: table, Err: err}
	}
	return result.RowsAffected()
}

// Cleanup deletes the merged shards and the temporary directory.
func Cleanup(tmpDir string, shards []string) error {
	var errs []error
	for _, shard := range shards {
		if err := os.Remove(shard); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if err := os.RemoveAll(tmpDir); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
