package converter

import (
	"context"
	"fmt"

	sqlx "github.com/jmoiron/sqlx"
)

// Schema is the column set of every table of the final database. Aux is
// nil when no shard has auxiliary rows.
type Schema struct {
	Pulsemap string
	Truth    []string
	Pulses   []string
	Aux      []string
}

type columnInfo struct {
	CID  int    `db:"cid"`
	Name string `db:"name"`
	Type string `db:"type"`
	PK   int    `db:"pk"`
}

func tableColumns(ctx context.Context, db sqlx.QueryerContext, schemaName string, table string) ([]string, error) {
	var infos []columnInfo
	query := "SELECT cid, name, type, pk FROM pragma_table_info(?, ?) ORDER BY cid"
	if err := sqlx.SelectContext(ctx, db, &infos, query, table, schemaName); err != nil {
		return nil, err
	}
	columns := make([]string, len(infos))
	for i, info := range infos {
		columns[i] = info.Name
	}
	return columns, nil
}

// tableHasRows reports whether table exists in schemaName and holds at
// least one row.
func tableHasRows(ctx context.Context, db sqlx.QueryerContext, schemaName string, table string) (bool, error) {
	var exists int
	query := fmt.Sprintf("SELECT count(*) FROM %s.sqlite_master WHERE type = 'table' AND name = ?", quoteIdentifier(schemaName))
	if err := sqlx.GetContext(ctx, db, &exists, query, table); err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}
	var rows int
	query = fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s.%s)", quoteIdentifier(schemaName), quoteIdentifier(table))
	if err := sqlx.GetContext(ctx, db, &rows, query); err != nil {
		return false, err
	}
	return rows == 1, nil
}

// InferSchema takes the truth columns from the first shard and the
// pulsemap and auxiliary columns from the first shard that has rows in
// those tables. Shards are assumed to come from the same extractor.
func InferSchema(ctx context.Context, shards []string, pulsemap string) (Schema, error) {
	schema := Schema{Pulsemap: pulsemap}
	if len(shards) == 0 {
		return schema, ErrNoShards
	}

	for i, shard := range shards {
		err := inspectShard(ctx, shard, i == 0, &schema)
		if err != nil {
			return schema, fmt.Errorf("error reading schema of %s: %w", shard, err)
		}
		if schema.Pulses != nil && schema.Aux != nil {
			break
		}
	}
	if schema.Pulses == nil {
		logger.Info(fmt.Sprintf("No shard has %s rows, creating it with %s only", pulsemap, EventNoColumn), "schema")
		schema.Pulses = []string{EventNoColumn}
	}
	return schema, nil
}

func inspectShard(ctx context.Context, shard string, first bool, schema *Schema) error {
	db, err := OpenSQLite(shard)
	if err != nil {
		return err
	}
	defer db.Close()

	if first {
		hasTruth, err := tableHasRows(ctx, db, "main", TruthTable)
		if err != nil {
			return err
		}
		if !hasTruth {
			return fmt.Errorf("shard has no %s rows", TruthTable)
		}
		if schema.Truth, err = tableColumns(ctx, db, "main", TruthTable); err != nil {
			return err
		}
	}
	if schema.Pulses == nil {
		has, err := tableHasRows(ctx, db, "main", schema.Pulsemap)
		if err != nil {
			return err
		}
		if has {
			if schema.Pulses, err = tableColumns(ctx, db, "main", schema.Pulsemap); err != nil {
				return err
			}
		}
	}
	if schema.Aux == nil {
		has, err := tableHasRows(ctx, db, "main", AuxTable)
		if err != nil {
			return err
		}
		if has {
			if schema.Aux, err = tableColumns(ctx, db, "main", AuxTable); err != nil {
				return err
			}
		}
	}
	return nil
}
