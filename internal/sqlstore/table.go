package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/pkg/types"
)

// DefaultBatchSize is the number of rows committed per load transaction.
const DefaultBatchSize = 500

// EventTable is a relational table holding flat event records.
type EventTable struct {
	DB      *sql.DB
	Dialect Dialect
	Name    string
	Logger  logrus.FieldLogger

	schema types.Schema
}

// LoadResult summarizes a Load call.
type LoadResult struct {
	Rows     int
	Batches  int
	Duration time.Duration
}

// NewEventTable returns a table handle. An empty name defaults to "events".
func NewEventTable(db *sql.DB, d Dialect, name string, logger logrus.FieldLogger) *EventTable {
	if name == "" {
		name = "events"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &EventTable{
		DB:      db,
		Dialect: d,
		Name:    name,
		Logger:  logger.WithFields(logrus.Fields{"dialect": d.Name, "table": name}),
		schema:  types.EventSchema(),
	}
}

// CreateTableSQL returns the DDL statements that create the table and its indexes.
func (t *EventTable) CreateTableSQL() []string {
	var cols []string
	for _, c := range t.schema.Columns {
		def := c.Name + " " + t.Dialect.ColumnType(c.Type)
		if c.PrimaryKey {
			def += " PRIMARY KEY"
		} else if !c.Nullable {
			def += " NOT NULL"
		}
		cols = append(cols, def)
	}

	if t.Dialect.inlineIndexes {
		for _, idx := range t.schema.Indexes {
			cols = append(cols, fmt.Sprintf("%s %s (%s)",
				indexKeyword(idx), t.indexName(idx), strings.Join(idx.Columns, ", ")))
		}
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.Name, strings.Join(cols, ",\n\t"))}
	if !t.Dialect.inlineIndexes {
		for _, idx := range t.schema.Indexes {
			unique := ""
			if idx.Unique {
				unique = "UNIQUE "
			}
			stmts = append(stmts, fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s(%s)",
				unique, t.indexName(idx), t.Name, strings.Join(idx.Columns, ", ")))
		}
	}
	return stmts
}

func indexKeyword(idx types.IndexDef) string {
	if idx.Unique {
		return "UNIQUE INDEX"
	}
	return "INDEX"
}

// indexName scopes schema index names to the table.
func (t *EventTable) indexName(idx types.IndexDef) string {
	return strings.Replace(idx.Name, "events", t.Name, 1)
}

// CreateTable creates the table and its indexes if they do not exist.
func (t *EventTable) CreateTable(ctx context.Context) error {
	for _, stmt := range t.CreateTableSQL() {
		if _, err := t.DB.ExecContext(ctx, stmt); err != nil {
			return errors.NewQueryError(fmt.Sprintf("create table %s", t.Name), err)
		}
	}
	return nil
}

// InsertSQL returns the parameterized insert statement.
func (t *EventTable) InsertSQL() string {
	names := t.schema.ColumnNames()
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.Name, strings.Join(names, ", "), t.Dialect.Placeholders(len(names)))
}

// Load inserts events in transactions of batchSize rows using a prepared
// statement. It stops at the first failing row; batches committed before the
// failure stay committed.
func (t *EventTable) Load(ctx context.Context, events []types.Event, batchSize int) (*LoadResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	start := time.Now()
	res := &LoadResult{}

	for lo := 0; lo < len(events); lo += batchSize {
		hi := lo + batchSize
		if hi > len(events) {
			hi = len(events)
		}
		if err := t.loadBatch(ctx, events[lo:hi]); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
		res.Rows += hi - lo
		res.Batches++
		t.Logger.WithField("rows", res.Rows).Debug("batch committed")
	}

	res.Duration = time.Since(start)
	t.Logger.WithFields(logrus.Fields{
		"rows":     res.Rows,
		"batches":  res.Batches,
		"duration": res.Duration,
	}).Info("events loaded")
	return res, nil
}

func (t *EventTable) loadBatch(ctx context.Context, batch []types.Event) error {
	tx, err := t.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewLoadError("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, t.InsertSQL())
	if err != nil {
		return errors.NewLoadError("prepare insert", err)
	}
	defer stmt.Close()

	for i := range batch {
		if _, err := stmt.ExecContext(ctx, RowArgs(&batch[i])...); err != nil {
			return errors.NewLoadError(fmt.Sprintf("insert event %d", batch[i].EventID), err).
				WithDetails(map[string]interface{}{"event_id": batch[i].EventID, "session_id": batch[i].SessionID})
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewLoadError("commit", err)
	}
	return nil
}

// RowArgs returns the insert arguments for e in schema column order, with
// nil for absent product fields.
func RowArgs(e *types.Event) []interface{} {
	var productID, category, price interface{}
	if e.Product != nil {
		productID = e.Product.ID
		category = e.Product.Category
		price = e.Product.Price.String()
	}
	return []interface{}{
		e.EventID,
		e.UserID,
		e.SessionID,
		e.EventTime.UTC(),
		string(e.EventType),
		productID,
		category,
		price,
		e.City,
		e.DeviceType,
	}
}

// Count returns the number of rows in the table.
func (t *EventTable) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := t.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.Name).Scan(&n); err != nil {
		return 0, errors.NewQueryError(fmt.Sprintf("count %s", t.Name), err)
	}
	return n, nil
}

// CountByType returns row counts per event type.
func (t *EventTable) CountByType(ctx context.Context) (map[types.EventType]int64, error) {
	rows, err := t.DB.QueryContext(ctx,
		fmt.Sprintf("SELECT event_type, COUNT(*) FROM %s GROUP BY event_type", t.Name))
	if err != nil {
		return nil, errors.NewQueryError(fmt.Sprintf("count by type %s", t.Name), err)
	}
	defer rows.Close()

	counts := make(map[types.EventType]int64)
	for rows.Next() {
		var et string
		var n int64
		if err := rows.Scan(&et, &n); err != nil {
			return nil, errors.NewQueryError("scan count", err)
		}
		counts[types.EventType(et)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryError("iterate counts", err)
	}
	return counts, nil
}

// SessionEvents returns the events of one session ordered by event id.
func (t *EventTable) SessionEvents(ctx context.Context, sessionID string) ([]types.Event, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE session_id = %s ORDER BY event_id",
		strings.Join(t.schema.ColumnNames(), ", "), t.Name, t.Dialect.Placeholder(1))
	rows, err := t.DB.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, errors.NewQueryError(fmt.Sprintf("session %s", sessionID), err)
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		var (
			e                   types.Event
			et                  string
			productID, category sql.NullString
			price               sql.NullFloat64
		)
		if err := rows.Scan(&e.EventID, &e.UserID, &e.SessionID, &e.EventTime, &et,
			&productID, &category, &price, &e.City, &e.DeviceType); err != nil {
			return nil, errors.NewQueryError("scan event", err)
		}
		e.EventType = types.EventType(et)
		e.EventTime = e.EventTime.UTC()
		if productID.Valid {
			e.Product = &types.Product{
				ID:       productID.String,
				Category: category.String,
				Price:    types.Price(math.Round(price.Float64 * 100)),
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryError("iterate events", err)
	}
	return events, nil
}

// Truncate removes every row from the table.
func (t *EventTable) Truncate(ctx context.Context) error {
	if _, err := t.DB.ExecContext(ctx, fmt.Sprintf(t.Dialect.truncateFormat, t.Name)); err != nil {
		return errors.NewQueryError(fmt.Sprintf("truncate %s", t.Name), err)
	}
	return nil
}
