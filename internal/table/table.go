package table

import (
	"errors"
	"fmt"
	"time"
)

// KeyName is the conventional name of the timestamp key column.
const KeyName = "timestamp"

var (
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrNoColumn        = errors.New("no such column")
)

// Value is a single nullable reading. The zero Value is unset.
type Value struct {
	V     float64
	Valid bool
}

// Set returns a populated Value.
func Set(v float64) Value {
	return Value{V: v, Valid: true}
}

// Stamp is a nullable timestamp stored in the key column.
type Stamp struct {
	T     time.Time
	Valid bool
}

// Column holds the readings of one physical unit or scalar field.
type Column struct {
	Name   string
	Values []Value
}

// Table is an ordered set of equally long columns, one row per sampling
// cycle, with an optional timestamp key column.
type Table struct {
	KeyName string
	Keys    []Stamp
	Columns []*Column

	index map[string]int
	rows  int
}

// New creates an empty table with the given columns in order. A repeated
// name is kept once, at its first position.
func New(names ...string) *Table {
	t := &Table{index: make(map[string]int, len(names))}
	for _, n := range names {
		if _, ok := t.index[n]; ok {
			continue
		}
		t.index[n] = len(t.Columns)
		t.Columns = append(t.Columns, &Column{Name: n})
	}
	return t
}

// WithKey creates an empty table carrying a key column.
func WithKey(key string, names ...string) *Table {
	t := New(names...)
	t.KeyName = key
	return t
}

// HasKey reports whether the table carries a key column.
func (t *Table) HasKey() bool {
	return t.KeyName != ""
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return t.rows
}

// Width returns the number of value columns, excluding the key.
func (t *Table) Width() int {
	return len(t.Columns)
}

// Names returns the value column names in order, excluding the key.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Header returns all column names with the key first.
func (t *Table) Header() []string {
	if !t.HasKey() {
		return t.Names()
	}
	return append([]string{t.KeyName}, t.Names()...)
}

// Column returns the named column or nil.
func (t *Table) Column(name string) *Column {
	if i, ok := t.index[name]; ok {
		return t.Columns[i]
	}
	return nil
}

// AddColumn appends an unset column padded to the current row count.
func (t *Table) AddColumn(name string) error {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if _, ok := t.index[name]; ok || (t.HasKey() && name == t.KeyName) {
		return fmt.Errorf("%w: %s", ErrDuplicateColumn, name)
	}
	t.index[name] = len(t.Columns)
	t.Columns = append(t.Columns, &Column{Name: name, Values: make([]Value, t.rows)})
	return nil
}

// Grow pads every column to at least n rows with unset cells.
func (t *Table) Grow(n int) {
	if n <= t.rows {
		return
	}
	for _, c := range t.Columns {
		c.Values = append(c.Values, make([]Value, n-len(c.Values))...)
	}
	if t.HasKey() {
		t.Keys = append(t.Keys, make([]Stamp, n-len(t.Keys))...)
	}
	t.rows = n
}

// Set stores v at row in the named column, growing the table as needed.
func (t *Table) Set(row int, name string, v float64) error {
	c := t.Column(name)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrNoColumn, name)
	}
	t.Grow(row + 1)
	c.Values[row] = Set(v)
	return nil
}

// Get returns the cell at row in the named column.
func (t *Table) Get(row int, name string) Value {
	c := t.Column(name)
	if c == nil || row < 0 || row >= t.rows {
		return Value{}
	}
	return c.Values[row]
}

// SetKey stores a timestamp in the key column.
func (t *Table) SetKey(row int, ts time.Time) error {
	if !t.HasKey() {
		return fmt.Errorf("%w: table has no key column", ErrNoColumn)
	}
	t.Grow(row + 1)
	t.Keys[row] = Stamp{T: ts, Valid: true}
	return nil
}

// Truncate drops rows beyond n.
func (t *Table) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n >= t.rows {
		return
	}
	for _, c := range t.Columns {
		c.Values = c.Values[:n]
	}
	if t.HasKey() {
		t.Keys = t.Keys[:n]
	}
	t.rows = n
}

// Unset counts unset value cells.
func (t *Table) Unset() int {
	n := 0
	for _, c := range t.Columns {
		for _, v := range c.Values {
			if !v.Valid {
				n++
			}
		}
	}
	return n
}

// Clone returns a deep copy of the first n rows (all rows when n < 0).
func (t *Table) Clone(n int) *Table {
	if n < 0 || n > t.rows {
		n = t.rows
	}
	out := &Table{KeyName: t.KeyName, index: make(map[string]int, len(t.Columns)), rows: n}
	if t.HasKey() {
		out.Keys = append([]Stamp(nil), t.Keys[:n]...)
	}
	for i, c := range t.Columns {
		out.index[c.Name] = i
		out.Columns = append(out.Columns, &Column{
			Name:   c.Name,
			Values: append([]Value(nil), c.Values[:n]...),
		})
	}
	return out
}
