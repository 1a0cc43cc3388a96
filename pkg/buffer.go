package converter

import (
	"database/sql"
	"fmt"
	"sort"

	"golang.org/x/exp/maps"
)

const EventNoColumn = "event_no"

// TableBuffer accumulates the rows of one table in memory, column by
// column. A column first seen after some rows were added is back-filled
// with NULLs, and rows without a known column get a NULL.
type TableBuffer struct {
	Name     string
	eventNos []int64
	columns  map[string][]sql.NullFloat64
}

func NewTableBuffer(name string) *TableBuffer {
	return &TableBuffer{Name: name, columns: make(map[string][]sql.NullFloat64)}
}

// Append adds the rows of fragment, all of them tagged with eventNo.
func (b *TableBuffer) Append(fragment Fragment, eventNo int64) error {
	rows := fragment.Rows()
	if rows < 0 {
		return fmt.Errorf("table %s: fragment columns have different lengths", b.Name)
	}
	if rows == 0 {
		return nil
	}
	if _, ok := fragment[EventNoColumn]; ok {
		return fmt.Errorf("table %s: fragment carries reserved column %s", b.Name, EventNoColumn)
	}

	existing := len(b.eventNos)
	for name, values := range fragment {
		column, ok := b.columns[name]
		if !ok {
			column = make([]sql.NullFloat64, existing, existing+rows)
		}
		for _, value := range values {
			column = append(column, sql.NullFloat64{Float64: value, Valid: true})
		}
		b.columns[name] = column
	}
	for name, column := range b.columns {
		if _, ok := fragment[name]; !ok {
			b.columns[name] = append(column, make([]sql.NullFloat64, rows)...)
		}
	}
	for i := 0; i < rows; i++ {
		b.eventNos = append(b.eventNos, eventNo)
	}
	return nil
}

func (b *TableBuffer) Len() int {
	return len(b.eventNos)
}

// Columns returns event_no followed by the other columns sorted by name.
func (b *TableBuffer) Columns() []string {
	names := maps.Keys(b.columns)
	sort.Strings(names)
	return append([]string{EventNoColumn}, names...)
}

// Row returns the values of row i in the order given by Columns.
func (b *TableBuffer) Row(i int, columns []string) []any {
	values := make([]any, len(columns))
	for j, name := range columns {
		if name == EventNoColumn {
			values[j] = b.eventNos[i]
			continue
		}
		values[j] = b.columns[name][i]
	}
	return values
}

func (b *TableBuffer) Reset() {
	b.eventNos = nil
	b.columns = make(map[string][]sql.NullFloat64)
}
