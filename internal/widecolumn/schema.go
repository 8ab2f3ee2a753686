// Package widecolumn stores clickstream events in a Cassandra table keyed for
// per-user history and runs the read, update and delete scenarios against it.
package widecolumn

import (
	"fmt"
	"sort"
	"time"

	"gopkg.in/inf.v0"

	"github.com/storelabs/storelabs/pkg/types"
)

// TableName is the query-first events table, partitioned by user.
const TableName = "events_by_user"

// Key is the full primary key of one row.
type Key struct {
	UserID    string
	EventTime time.Time
	EventID   int
}

// Row is one events_by_user row.
type Row struct {
	Key
	SessionID  string
	EventType  string
	ProductID  string
	Category   string
	Price      *inf.Dec
	City       string
	DeviceType string
}

// columns lists the table columns in insert and select order.
var columns = "user_id, event_time, event_id, session_id, event_type, product_id, category, price, city, device_type"

// KeyspaceCQL returns the statement creating a SimpleStrategy keyspace.
func KeyspaceCQL(keyspace string, replicationFactor int) string {
	return fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = "+
		"{ 'class' : 'SimpleStrategy', 'replication_factor' : %d }", keyspace, replicationFactor)
}

// TableCQL returns the statement creating the events table.
func TableCQL(keyspace string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	user_id text,
	event_time timestamp,
	event_id int,
	session_id text,
	event_type text,
	product_id text,
	category text,
	price decimal,
	city text,
	device_type text,
	PRIMARY KEY (user_id, event_time, event_id)
) WITH CLUSTERING ORDER BY (event_time DESC, event_id ASC)`, keyspace, TableName)
}

// InsertCQL returns the parameterized insert, with a TTL bind marker when ttl is set.
func InsertCQL(keyspace string, withTTL bool) string {
	stmt := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", keyspace, TableName, columns)
	if withTTL {
		stmt += " USING TTL ?"
	}
	return stmt
}

// PriceDecimal converts a cent amount to a two-place decimal.
func PriceDecimal(p types.Price) *inf.Dec {
	return inf.NewDec(int64(p), 2)
}

// DecimalPrice converts a decimal back to cents, rounding half up.
func DecimalPrice(d *inf.Dec) types.Price {
	r := new(inf.Dec).Round(d, 2, inf.RoundHalfUp)
	return types.Price(r.UnscaledBig().Int64())
}

// insertArgs returns the bind values for e in column order. Absent product
// fields bind as null.
func insertArgs(e *types.Event) []interface{} {
	var productID, category, price interface{}
	if e.Product != nil {
		productID = e.Product.ID
		category = e.Product.Category
		price = PriceDecimal(e.Product.Price)
	}
	return []interface{}{
		e.UserID,
		e.EventTime.UTC(),
		int(e.EventID),
		e.SessionID,
		string(e.EventType),
		productID,
		category,
		price,
		e.City,
		e.DeviceType,
	}
}

// CityCount is a per-city purchase tally.
type CityCount struct {
	City  string
	Count int
}

// sortedCounts orders counts by descending count, then city name.
func sortedCounts(counts map[string]int) []CityCount {
	out := make([]CityCount, 0, len(counts))
	for city, n := range counts {
		out = append(out, CityCount{City: city, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].City < out[j].City
	})
	return out
}

// olderThan returns the keys whose event time is strictly before cutoff.
func olderThan(keys []Key, cutoff time.Time) []Key {
	var out []Key
	for _, k := range keys {
		if k.EventTime.Before(cutoff) {
			out = append(out, k)
		}
	}
	return out
}
