package resilient

import "github.com/jackc/pgx/v5"

// Row is one result row with its select-list column order preserved.
// Lookups by name resolve to the first column carrying that name.
type Row struct {
	columns []string
	values  []any
}

// Columns returns the column names in select-list order.
func (r Row) Columns() []string {
	return r.columns
}

// Values returns the row values in select-list order.
func (r Row) Values() []any {
	return r.values
}

// Get returns the value of the named column and whether the column exists.
func (r Row) Get(name string) (any, bool) {
	for i, col := range r.columns {
		if col == name {
			return r.values[i], true
		}
	}

	return nil, false
}

// Map returns the row as a name-to-value map. Duplicate column names keep
// the first occurrence.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.columns))
	for i, col := range r.columns {
		if _, seen := out[col]; seen {
			continue
		}
		out[col] = r.values[i]
	}

	return out
}

// newRow captures the current row of rs.
func newRow(rs pgx.Rows) (Row, error) {
	values, err := rs.Values()
	if err != nil {
		return Row{}, err
	}

	fields := rs.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	return Row{columns: columns, values: values}, nil
}

// collectRows drains rs into a slice of rows and closes it.
func collectRows(rs pgx.Rows) ([]Row, error) {
	defer rs.Close()

	var out []Row
	for rs.Next() {
		row, err := newRow(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
