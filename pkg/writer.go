package converter

import (
	"fmt"
	"os"
	"path/filepath"

	sqlx "github.com/jmoiron/sqlx"
)

func ShardName(workerID int, shardIndex int) string {
	return fmt.Sprintf("worker-%d-%d.db", workerID, shardIndex)
}

// WriteShard writes the buffers into a new SQLite file at path. Empty
// buffers produce no table. On failure the partial file is removed.
func WriteShard(path string, buffers ...*TableBuffer) (err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		return fmt.Errorf("shard %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	db, err := OpenSQLite(path, shardPragmas...)
	if err != nil {
		return &ErrOpenFile{Filename: path, Err: err}
	}
	defer func() {
		closeErr := db.Close()
		if err == nil && closeErr != nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	for _, buffer := range buffers {
		if buffer == nil || buffer.Len() == 0 {
			continue
		}
		if err := writeTable(tx, buffer); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func writeTable(tx *sqlx.Tx, buffer *TableBuffer) error {
	columns := buffer.Columns()
	if _, err := tx.Exec(createTableSQL(buffer.Name, columns, shardTable)); err != nil {
		return &ErrCreateTable{TableName: buffer.Name, Err: err}
	}

	stmt, err := tx.Preparex(insertSQL(buffer.Name, columns))
	if err != nil {
		return &ErrInsertRows{TableName: buffer.Name, Err: err}
	}
	defer stmt.Close()

	for i := 0; i < buffer.Len(); i++ {
		if _, err := stmt.Exec(buffer.Row(i, columns)...); err != nil {
			return &ErrInsertRows{TableName: buffer.Name, Err: err}
		}
	}
	if verbosity > 2 {
		message := fmt.Sprintf("Wrote %d rows into %s", buffer.Len(), buffer.Name)
		logger.Info(message, "writer")
	}
	return nil
}
