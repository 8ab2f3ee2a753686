package sqlstore

import (
	"context"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/internal/eventgen"
	"github.com/storelabs/storelabs/pkg/types"
)

func generateEvents(t *testing.T, n int) []types.Event {
	t.Helper()
	cfg := eventgen.DefaultConfig()
	cfg.TotalEvents = n
	cfg.Users = 10
	cfg.Products = 20
	seq, err := eventgen.NewSequencer(cfg, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	events, err := seq.Generate(context.Background())
	require.NoError(t, err)
	return events
}

func openSQLite(t *testing.T) *EventTable {
	t.Helper()
	db, err := Open(context.Background(), SQLite, filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger, _ := test.NewNullLogger()
	table := NewEventTable(db, SQLite, "", logger)
	require.NoError(t, table.CreateTable(context.Background()))
	return table
}

func TestEventTable_LoadAndCount(t *testing.T) {
	ctx := context.Background()
	table := openSQLite(t)
	events := generateEvents(t, 230)

	res, err := table.Load(ctx, events, 50)
	require.NoError(t, err)
	assert.Equal(t, 230, res.Rows)
	assert.Equal(t, 5, res.Batches)

	n, err := table.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(230), n)

	want := make(map[types.EventType]int64)
	for _, e := range events {
		want[e.EventType]++
	}
	got, err := table.CountByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEventTable_SessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	table := openSQLite(t)
	events := generateEvents(t, 120)
	_, err := table.Load(ctx, events, 0)
	require.NoError(t, err)

	var session []types.Event
	for _, e := range events {
		if e.SessionID == events[0].SessionID {
			session = append(session, e)
		}
	}

	got, err := table.SessionEvents(ctx, events[0].SessionID)
	require.NoError(t, err)
	require.Len(t, got, len(session))
	for i := range session {
		assert.Equal(t, session[i].EventID, got[i].EventID)
		assert.True(t, session[i].EventTime.Equal(got[i].EventTime), "event %d time", session[i].EventID)
		assert.Equal(t, session[i].EventType, got[i].EventType)
		assert.Equal(t, session[i].Product, got[i].Product)
		assert.Equal(t, session[i].City, got[i].City)
	}
}

func TestEventTable_LoadStopsOnFirstError(t *testing.T) {
	ctx := context.Background()
	table := openSQLite(t)
	events := generateEvents(t, 30)

	// Duplicate primary key in the third batch.
	events[25].EventID = events[3].EventID

	res, err := table.Load(ctx, events, 10)
	require.Error(t, err)
	assert.Equal(t, errors.CodeLoadFailed, errors.GetCode(err))
	assert.Equal(t, 20, res.Rows)

	n, err := table.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20), n, "failed batch should roll back")
}

func TestEventTable_Truncate(t *testing.T) {
	ctx := context.Background()
	table := openSQLite(t)
	_, err := table.Load(ctx, generateEvents(t, 40), 0)
	require.NoError(t, err)

	require.NoError(t, table.Truncate(ctx))
	n, err := table.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// CreateTable is idempotent.
	require.NoError(t, table.CreateTable(ctx))
}

func TestCreateTableSQL_Dialects(t *testing.T) {
	my := NewEventTable(nil, MySQL, "events", nil).CreateTableSQL()
	require.Len(t, my, 1)
	assert.Contains(t, my[0], "event_id BIGINT PRIMARY KEY")
	assert.Contains(t, my[0], "price DECIMAL(10,2)")
	assert.Contains(t, my[0], "event_time DATETIME NOT NULL")
	assert.Contains(t, my[0], "INDEX idx_events_user_time (user_id, event_time)")
	assert.NotContains(t, my[0], "product_id VARCHAR(64) NOT NULL")

	pg := NewEventTable(nil, Postgres, "clicks", nil).CreateTableSQL()
	require.Len(t, pg, 3)
	assert.Contains(t, pg[0], "CREATE TABLE IF NOT EXISTS clicks")
	assert.Contains(t, pg[0], "price NUMERIC(10,2)")
	assert.Equal(t, "CREATE INDEX IF NOT EXISTS idx_clicks_user_time ON clicks(user_id, event_time)", pg[1])
	assert.Equal(t, "CREATE INDEX IF NOT EXISTS idx_clicks_session ON clicks(session_id)", pg[2])
}

func TestInsertSQL_Placeholders(t *testing.T) {
	pg := NewEventTable(nil, Postgres, "events", nil).InsertSQL()
	assert.True(t, strings.HasSuffix(pg, "VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)"), pg)

	my := NewEventTable(nil, MySQL, "events", nil).InsertSQL()
	assert.Equal(t, 10, strings.Count(my, "?"))
	assert.Contains(t, my, "(event_id, user_id, session_id, event_time, event_type, product_id, category, price, city, device_type)")
}

func TestRowArgs_NullProduct(t *testing.T) {
	events := generateEvents(t, 10)
	args := RowArgs(&events[0])
	require.Len(t, args, 10)
	assert.Equal(t, types.EventOpenSession, events[0].EventType)
	assert.Nil(t, args[5])
	assert.Nil(t, args[6])
	assert.Nil(t, args[7])

	for i := range events {
		if events[i].Product != nil {
			args := RowArgs(&events[i])
			assert.Equal(t, events[i].Product.Price.String(), args[7])
			break
		}
	}
}

func TestDialectByName(t *testing.T) {
	for name, want := range map[string]string{"mysql": "mysql", "PostgreSQL": "postgres", "sqlite3": "sqlite"} {
		d, err := DialectByName(name)
		require.NoError(t, err)
		assert.Equal(t, want, d.Name)
	}
	_, err := DialectByName("oracle")
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidConfiguration, errors.GetCode(err))
}
