package types

// ColumnType is a store-neutral column type. Each sink maps it to its own
// dialect (VARCHAR vs text, DATETIME vs timestamp, and so on).
type ColumnType string

const (
	ColumnInteger   ColumnType = "INTEGER"
	ColumnText      ColumnType = "TEXT"
	ColumnTimestamp ColumnType = "TIMESTAMP"
	ColumnDecimal   ColumnType = "DECIMAL"
)

// Schema defines the flat record layout shared by the event sinks.
type Schema struct {
	// Version tracks schema evolution for backward compatibility
	Version int `json:"version"`

	// Columns defines the columns in order; the order is the CSV column order
	Columns []ColumnDef `json:"columns"`

	// Indexes defines the secondary indexes relational sinks create
	Indexes []IndexDef `json:"indexes"`
}

// ColumnDef defines a single column in the schema.
type ColumnDef struct {
	// Name is the column name
	Name string `json:"name"`

	// Type is the store-neutral column type
	Type ColumnType `json:"type"`

	// Nullable indicates whether the column can contain NULL values
	Nullable bool `json:"nullable"`

	// PrimaryKey indicates whether this column is part of the primary key
	PrimaryKey bool `json:"primary_key"`
}

// IndexDef defines a secondary index.
type IndexDef struct {
	// Name is the index name
	Name string `json:"name"`

	// Columns lists the columns included in the index
	Columns []string `json:"columns"`

	// Unique indicates whether the index enforces uniqueness
	Unique bool `json:"unique"`
}

// ColumnNames returns the column names in schema order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// EventSchema returns the flat event record layout. Downstream loaders depend
// on this exact column order.
func EventSchema() Schema {
	return Schema{
		Version: 1,
		Columns: []ColumnDef{
			{Name: "event_id", Type: ColumnInteger, PrimaryKey: true},
			{Name: "user_id", Type: ColumnText},
			{Name: "session_id", Type: ColumnText},
			{Name: "event_time", Type: ColumnTimestamp},
			{Name: "event_type", Type: ColumnText},
			{Name: "product_id", Type: ColumnText, Nullable: true},
			{Name: "category", Type: ColumnText, Nullable: true},
			{Name: "price", Type: ColumnDecimal, Nullable: true},
			{Name: "city", Type: ColumnText},
			{Name: "device_type", Type: ColumnText},
		},
		Indexes: []IndexDef{
			{Name: "idx_events_user_time", Columns: []string{"user_id", "event_time"}},
			{Name: "idx_events_session", Columns: []string{"session_id"}},
		},
	}
}
