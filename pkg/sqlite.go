package converter

import (
	"fmt"
	"strings"

	sqlx "github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

type tableKind int

const (
	shardTable tableKind = iota
	truthTable
	pulsemapTable
	auxTable
)

// OpenSQLite opens a SQLite file with a single connection: per-connection
// state (pragmas, attached databases) then applies to every statement.
func OpenSQLite(path string, pragmas ...string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

var shardPragmas = []string{
	"PRAGMA journal_mode=MEMORY",
	"PRAGMA synchronous=OFF",
}

var finalPragmas = []string{
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=OFF",
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdentifiers(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quoteIdentifier(name)
	}
	return strings.Join(quoted, ", ")
}

// createTableSQL declares event_no according to the table kind and every
// other column as FLOAT.
func createTableSQL(table string, columns []string, kind tableKind) string {
	definitions := make([]string, len(columns))
	for i, column := range columns {
		if column != EventNoColumn {
			definitions[i] = quoteIdentifier(column) + " FLOAT"
			continue
		}
		switch kind {
		case truthTable:
			definitions[i] = quoteIdentifier(column) + " INTEGER PRIMARY KEY NOT NULL"
		case pulsemapTable:
			definitions[i] = quoteIdentifier(column) + " NOT NULL"
		default:
			definitions[i] = quoteIdentifier(column) + " INTEGER NOT NULL"
		}
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdentifier(table), strings.Join(definitions, ", "))
}

func createIndexSQL(table string) string {
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
		quoteIdentifier(EventNoColumn+"_"+table), quoteIdentifier(table), quoteIdentifier(EventNoColumn))
}

func insertSQL(table string, columns []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdentifier(table), quoteIdentifiers(columns), placeholders)
}
