// Package sqlstore loads clickstream events into relational databases.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/pkg/types"
)

// Dialect captures the per-database differences the event sink cares about.
type Dialect struct {
	// Name is the dialect name used in configuration
	Name string

	// Driver is the database/sql driver name
	Driver string

	types          map[types.ColumnType]string
	numbered       bool
	inlineIndexes  bool
	truncateFormat string
}

var (
	// MySQL targets go-sql-driver/mysql.
	MySQL = Dialect{
		Name:   "mysql",
		Driver: "mysql",
		types: map[types.ColumnType]string{
			types.ColumnInteger:   "BIGINT",
			types.ColumnText:      "VARCHAR(64)",
			types.ColumnTimestamp: "DATETIME",
			types.ColumnDecimal:   "DECIMAL(10,2)",
		},
		// MySQL has no CREATE INDEX IF NOT EXISTS.
		inlineIndexes:  true,
		truncateFormat: "TRUNCATE TABLE %s",
	}

	// Postgres targets lib/pq.
	Postgres = Dialect{
		Name:   "postgres",
		Driver: "postgres",
		types: map[types.ColumnType]string{
			types.ColumnInteger:   "BIGINT",
			types.ColumnText:      "TEXT",
			types.ColumnTimestamp: "TIMESTAMP",
			types.ColumnDecimal:   "NUMERIC(10,2)",
		},
		numbered:       true,
		truncateFormat: "TRUNCATE TABLE %s",
	}

	// SQLite targets mattn/go-sqlite3.
	SQLite = Dialect{
		Name:   "sqlite",
		Driver: "sqlite3",
		types: map[types.ColumnType]string{
			types.ColumnInteger:   "INTEGER",
			types.ColumnText:      "TEXT",
			types.ColumnTimestamp: "TIMESTAMP",
			types.ColumnDecimal:   "NUMERIC",
		},
		truncateFormat: "DELETE FROM %s",
	}
)

// DialectByName returns the dialect registered under name.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, errors.NewInvalidConfiguration("unknown sql dialect: %s (must be mysql, postgres, or sqlite)", name)
	}
}

// Placeholder returns the bind marker for the i-th (1-based) parameter.
func (d Dialect) Placeholder(i int) string {
	if d.numbered {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// Placeholders returns n comma-separated bind markers.
func (d Dialect) Placeholders(n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = d.Placeholder(i + 1)
	}
	return strings.Join(marks, ", ")
}

// ColumnType maps a store-neutral column type to the dialect's SQL type.
func (d Dialect) ColumnType(t types.ColumnType) string {
	if s, ok := d.types[t]; ok {
		return s
	}
	return "TEXT"
}

// Open opens and pings a database for the dialect.
func Open(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, errors.NewConnectionError(fmt.Sprintf("%s: failed to open database", d.Name), err)
	}
	if d.Driver == "sqlite3" {
		// Single writer avoids SQLITE_BUSY inside load transactions.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.NewConnectionError(fmt.Sprintf("%s: failed to connect", d.Name), err)
	}
	return db, nil
}
