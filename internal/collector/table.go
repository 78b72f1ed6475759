package collector

import (
	"net/url"
	"sort"
)

// Dataset names an upstream table and the query parameters selecting it.
type Dataset struct {
	Name   string
	Params map[string]string
}

// String renders the dataset as name?k=v with sorted keys.
func (d Dataset) String() string {
	if len(d.Params) == 0 {
		return d.Name
	}
	q := url.Values{}
	for k, v := range d.Params {
		q.Set(k, v)
	}
	return d.Name + "?" + q.Encode()
}

// Row is one upstream record keyed by column header. Values keep the
// upstream's literal text so numbers can be parsed without float rounding.
// Null cells are absent.
type Row map[string]string

// Value returns the literal text of a column.
func (r Row) Value(col string) (string, bool) {
	v, ok := r[col]
	return v, ok
}

// Table is an immutable snapshot of an upstream dataset.
type Table struct {
	Dataset Dataset
	Columns []string
	Rows    []Row
}

// NewTable builds a table, deriving the column set from the rows when none is given.
func NewTable(ds Dataset, columns []string, rows []Row) *Table {
	if columns == nil {
		seen := make(map[string]struct{})
		for _, r := range rows {
			for k := range r {
				if _, ok := seen[k]; !ok {
					seen[k] = struct{}{}
					columns = append(columns, k)
				}
			}
		}
		sort.Strings(columns)
	}
	return &Table{Dataset: ds, Columns: columns, Rows: rows}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether the upstream schema carries col.
func (t *Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}
