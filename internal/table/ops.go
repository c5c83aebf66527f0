package table

import (
	"fmt"
	"regexp"

	"gonum.org/v1/gonum/stat"
)

// Stock qualifiers stripped from column names to form averaging groups.
var (
	ThreadQualifier     = regexp.MustCompile(`_Thread_\d+$`)
	CoreThreadQualifier = regexp.MustCompile(`_Core_\d+_Thread_\d+$`)
	CoreQualifier       = regexp.MustCompile(`_Core_\d+$`)
)

const (
	SuffixUtil = "_Avg_Util"
	SuffixTemp = "_Avg_Temp"
)

// MinLen returns the smallest row count among tables, 0 for none.
func MinLen(tables ...*Table) int {
	if len(tables) == 0 {
		return 0
	}
	n := tables[0].Len()
	for _, t := range tables[1:] {
		n = min(n, t.Len())
	}
	return n
}

// Align truncates every table in place to the shortest row count and
// returns that count. Excess rows are discarded.
func Align(tables ...*Table) int {
	n := MinLen(tables...)
	for _, t := range tables {
		t.Truncate(n)
	}
	return n
}

// Merge joins tables column-wise by row position after aligning copies of
// them to the shortest row count. The key column of the first keyed table
// becomes the first column of the result. Inputs are left untouched.
func Merge(tables ...*Table) (*Table, error) {
	n := MinLen(tables...)
	out := New()
	for _, t := range tables {
		if t.HasKey() {
			if out.HasKey() {
				return nil, fmt.Errorf("%w: key %s", ErrDuplicateColumn, t.KeyName)
			}
			out.KeyName = t.KeyName
			out.Keys = append([]Stamp(nil), t.Keys[:n]...)
		}
	}
	out.Grow(n)
	for _, t := range tables {
		for _, c := range t.Columns {
			if err := out.AddColumn(c.Name); err != nil {
				return nil, err
			}
			copy(out.Column(c.Name).Values, c.Values[:n])
		}
	}
	return out, nil
}

// JoinLeft joins tables column-wise by row position onto the first one.
// The result has exactly as many rows as the first table: rows of later
// tables beyond it are dropped and shorter tables leave unset cells.
func JoinLeft(tables ...*Table) (*Table, error) {
	n := 0
	if len(tables) > 0 {
		n = tables[0].Len()
	}
	out := New()
	for _, t := range tables {
		if !t.HasKey() {
			continue
		}
		if out.HasKey() {
			return nil, fmt.Errorf("%w: key %s", ErrDuplicateColumn, t.KeyName)
		}
		out.KeyName = t.KeyName
	}
	out.Grow(n)
	for _, t := range tables {
		if t.HasKey() {
			copy(out.Keys, t.Keys)
		}
		for _, c := range t.Columns {
			if err := out.AddColumn(c.Name); err != nil {
				return nil, err
			}
			copy(out.Column(c.Name).Values, c.Values)
		}
	}
	return out, nil
}

// GroupMean averages columns sharing a name once strip has removed their
// trailing qualifier. Output columns are named group+suffix in order of
// first appearance. Each cell is the mean of the valid member cells; a row
// with no valid members stays unset. The key column is carried through.
func GroupMean(t *Table, strip *regexp.Regexp, suffix string) *Table {
	var order []string
	members := make(map[string][]*Column)
	for _, c := range t.Columns {
		g := strip.ReplaceAllString(c.Name, "")
		if _, ok := members[g]; !ok {
			order = append(order, g)
		}
		members[g] = append(members[g], c)
	}

	out := New()
	if t.HasKey() {
		out.KeyName = t.KeyName
	}
	out.Grow(t.Len())
	if t.HasKey() {
		copy(out.Keys, t.Keys)
	}

	buf := make([]float64, 0, len(t.Columns))
	for _, g := range order {
		name := g + suffix
		if err := out.AddColumn(name); err != nil {
			continue // clashes with the key column
		}
		dst := out.Column(name)
		for row := range t.Len() {
			buf = buf[:0]
			for _, c := range members[g] {
				if v := c.Values[row]; v.Valid {
					buf = append(buf, v.V)
				}
			}
			if len(buf) > 0 {
				dst.Values[row] = Set(stat.Mean(buf, nil))
			}
		}
	}
	return out
}

// Collapse replaces the member columns with a single column holding their
// mean-of-available, placed where the first member was.
func Collapse(t *Table, name string, members ...string) (*Table, error) {
	cols := make([]*Column, 0, len(members))
	drop := make(map[string]bool, len(members))
	for _, m := range members {
		c := t.Column(m)
		if c == nil {
			return nil, fmt.Errorf("collapse %s: %w: %s", name, ErrNoColumn, m)
		}
		cols = append(cols, c)
		drop[m] = true
	}

	out := New()
	if t.HasKey() {
		out.KeyName = t.KeyName
	}
	out.Grow(t.Len())
	if t.HasKey() {
		copy(out.Keys, t.Keys)
	}

	placed := false
	buf := make([]float64, 0, len(cols))
	for _, c := range t.Columns {
		if !drop[c.Name] {
			if err := out.AddColumn(c.Name); err != nil {
				return nil, err
			}
			copy(out.Column(c.Name).Values, c.Values)
			continue
		}
		if placed {
			continue
		}
		placed = true
		if err := out.AddColumn(name); err != nil {
			return nil, err
		}
		dst := out.Column(name)
		for row := range t.Len() {
			buf = buf[:0]
			for _, m := range cols {
				if v := m.Values[row]; v.Valid {
					buf = append(buf, v.V)
				}
			}
			if len(buf) > 0 {
				dst.Values[row] = Set(stat.Mean(buf, nil))
			}
		}
	}
	return out, nil
}

// Scale multiplies every valid cell of the named column by factor.
func Scale(t *Table, name string, factor float64) error {
	c := t.Column(name)
	if c == nil {
		return fmt.Errorf("scale: %w: %s", ErrNoColumn, name)
	}
	for i, v := range c.Values {
		if v.Valid {
			c.Values[i].V = v.V * factor
		}
	}
	return nil
}
