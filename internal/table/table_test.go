package table

import (
	"errors"
	"math"
	"regexp"
	"slices"
	"testing"
	"time"
)

func filled(name string, rows int, base float64) *Table {
	t := New(name)
	for i := range rows {
		_ = t.Set(i, name, base+float64(i))
	}
	return t
}

func TestSetGrowsAllColumns(t *testing.T) {
	tbl := New("a", "b")
	if err := tbl.Set(3, "a", 1.5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if tbl.Len() != 4 {
		t.Fatalf("expected 4 rows, got %d", tbl.Len())
	}
	for _, c := range tbl.Columns {
		if len(c.Values) != 4 {
			t.Errorf("column %s: expected 4 values, got %d", c.Name, len(c.Values))
		}
	}
	if got := tbl.Get(3, "a"); !got.Valid || got.V != 1.5 {
		t.Errorf("expected 1.5, got %+v", got)
	}
	if got := tbl.Get(0, "b"); got.Valid {
		t.Errorf("expected unset cell, got %+v", got)
	}
	if tbl.Unset() != 7 {
		t.Errorf("expected 7 unset cells, got %d", tbl.Unset())
	}
}

func TestSetUnknownColumn(t *testing.T) {
	tbl := New("a")
	if err := tbl.Set(0, "missing", 1); !errors.Is(err, ErrNoColumn) {
		t.Errorf("expected ErrNoColumn, got %v", err)
	}
}

func TestAddColumnDuplicate(t *testing.T) {
	tbl := WithKey(KeyName, "a")
	if err := tbl.AddColumn("a"); !errors.Is(err, ErrDuplicateColumn) {
		t.Errorf("expected ErrDuplicateColumn, got %v", err)
	}
	if err := tbl.AddColumn(KeyName); !errors.Is(err, ErrDuplicateColumn) {
		t.Errorf("expected key clash, got %v", err)
	}
}

func TestNewKeepsRepeatedNamesOnce(t *testing.T) {
	tbl := New("a", "b", "a")
	if !slices.Equal(tbl.Names(), []string{"a", "b"}) {
		t.Fatalf("expected [a b], got %v", tbl.Names())
	}
	if err := tbl.Set(0, "a", 1); err != nil {
		t.Fatal(err)
	}
	if tbl.Width() != 2 || tbl.Len() != 1 {
		t.Errorf("unexpected shape %dx%d", tbl.Len(), tbl.Width())
	}
	if err := tbl.AddColumn("b"); !errors.Is(err, ErrDuplicateColumn) {
		t.Errorf("expected ErrDuplicateColumn, got %v", err)
	}
}

func TestZeroIsNotUnset(t *testing.T) {
	tbl := New("a")
	_ = tbl.Set(0, "a", 0)
	if v := tbl.Get(0, "a"); !v.Valid {
		t.Error("zero reading must be a valid cell")
	}
}

func TestAlign(t *testing.T) {
	a, b, c := filled("a", 5, 0), filled("b", 7, 0), filled("c", 3, 0)
	n := Align(a, b, c)
	if n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}
	for _, tbl := range []*Table{a, b, c} {
		if tbl.Len() != 3 {
			t.Errorf("expected 3 rows, got %d", tbl.Len())
		}
	}
}

func TestMergeTruncatesToShortest(t *testing.T) {
	a, b, c := filled("a", 5, 0), filled("b", 7, 10), filled("c", 3, 20)
	m, err := Merge(a, b, c)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if m.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", m.Len())
	}
	want := []string{"a", "b", "c"}
	for i, n := range m.Names() {
		if n != want[i] {
			t.Errorf("column %d: expected %s, got %s", i, want[i], n)
		}
	}
	if got := m.Get(2, "b"); got.V != 12 {
		t.Errorf("expected positional value 12, got %v", got.V)
	}
	if b.Len() != 7 {
		t.Errorf("Merge must not modify inputs, b has %d rows", b.Len())
	}
}

func TestMergePromotesKey(t *testing.T) {
	base := time.Date(2023, 7, 10, 14, 15, 33, 0, time.UTC)
	keyed := WithKey(KeyName, "temp")
	for i := range 4 {
		_ = keyed.SetKey(i, base.Add(time.Duration(i)*time.Minute))
		_ = keyed.Set(i, "temp", 40+float64(i))
	}
	m, err := Merge(filled("gpu", 4, 0), keyed)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	header := m.Header()
	if header[0] != KeyName {
		t.Fatalf("expected key first, got %v", header)
	}
	if !m.Keys[1].T.Equal(base.Add(time.Minute)) {
		t.Errorf("unexpected key %v", m.Keys[1].T)
	}
}

func TestMergeDuplicateColumn(t *testing.T) {
	_, err := Merge(filled("a", 2, 0), filled("a", 2, 0))
	if !errors.Is(err, ErrDuplicateColumn) {
		t.Errorf("expected ErrDuplicateColumn, got %v", err)
	}
	_, err = Merge(WithKey(KeyName), WithKey(KeyName))
	if !errors.Is(err, ErrDuplicateColumn) {
		t.Errorf("expected duplicate key error, got %v", err)
	}
}

func TestJoinLeft(t *testing.T) {
	tests := []struct {
		name   string
		first  int
		second int
	}{
		{"second longer", 2, 4},
		{"second shorter", 4, 2},
		{"equal", 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := JoinLeft(filled("a", tt.first, 0), filled("b", tt.second, 0))
			if err != nil {
				t.Fatalf("JoinLeft: %v", err)
			}
			if j.Len() != tt.first {
				t.Fatalf("expected %d rows, got %d", tt.first, j.Len())
			}
			for row := range tt.first {
				if got := j.Get(row, "b").Valid; got != (row < tt.second) {
					t.Errorf("row %d of b: valid=%v", row, got)
				}
			}
		})
	}
}

func TestJoinLeftKeepsKeyLength(t *testing.T) {
	keyed := WithKey(KeyName, "temp")
	for i := range 2 {
		if err := keyed.SetKey(i, time.Date(2023, 7, 10, 14, 15, 5*i, 0, time.UTC)); err != nil {
			t.Fatal(err)
		}
		if err := keyed.Set(i, "temp", 40); err != nil {
			t.Fatal(err)
		}
	}
	j, err := JoinLeft(keyed, filled("util", 5, 0))
	if err != nil {
		t.Fatal(err)
	}
	if j.Len() != 2 || len(j.Keys) != 2 {
		t.Fatalf("expected 2 rows, got %d (%d keys)", j.Len(), len(j.Keys))
	}
	for i, k := range j.Keys {
		if !k.Valid {
			t.Errorf("row %d has no timestamp", i)
		}
	}
}

func TestGroupMean(t *testing.T) {
	tests := []struct {
		name   string
		cols   map[string][]Value
		order  []string
		strip  *regexp.Regexp
		suffix string
		want   map[string][]Value
	}{
		{
			name: "threads to cores",
			cols: map[string][]Value{
				"CPU_1_Core_0_Thread_0": {Set(10), Set(20)},
				"CPU_1_Core_0_Thread_1": {Set(30), {}},
				"CPU_1_Core_1_Thread_0": {{}, {}},
				"CPU_1_Core_1_Thread_1": {{}, {}},
			},
			order:  []string{"CPU_1_Core_0_Thread_0", "CPU_1_Core_0_Thread_1", "CPU_1_Core_1_Thread_0", "CPU_1_Core_1_Thread_1"},
			strip:  ThreadQualifier,
			suffix: SuffixUtil,
			want: map[string][]Value{
				"CPU_1_Core_0_Avg_Util": {Set(20), Set(20)},
				"CPU_1_Core_1_Avg_Util": {{}, {}},
			},
		},
		{
			name: "cores to sockets with an all-unset member",
			cols: map[string][]Value{
				"CPU_1_Core_0": {Set(40), Set(42)},
				"CPU_1_Core_1": {{}, {}},
				"CPU_2_Core_0": {Set(50), {}},
			},
			order:  []string{"CPU_1_Core_0", "CPU_1_Core_1", "CPU_2_Core_0"},
			strip:  CoreQualifier,
			suffix: SuffixTemp,
			want: map[string][]Value{
				"CPU_1_Avg_Temp": {Set(40), Set(42)},
				"CPU_2_Avg_Temp": {Set(50), {}},
			},
		},
		{
			name: "threads to sockets",
			cols: map[string][]Value{
				"CPU_1_Core_0_Thread_0": {Set(1)},
				"CPU_1_Core_9_Thread_1": {Set(3)},
				"CPU_2_Core_0_Thread_0": {Set(5)},
			},
			order:  []string{"CPU_1_Core_0_Thread_0", "CPU_1_Core_9_Thread_1", "CPU_2_Core_0_Thread_0"},
			strip:  CoreThreadQualifier,
			suffix: SuffixUtil,
			want: map[string][]Value{
				"CPU_1_Avg_Util": {Set(2)},
				"CPU_2_Avg_Util": {Set(5)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := New(tt.order...)
			for name, vals := range tt.cols {
				tbl.Grow(len(vals))
				copy(tbl.Column(name).Values, vals)
			}
			got := GroupMean(tbl, tt.strip, tt.suffix)
			if got.Width() != len(tt.want) {
				t.Fatalf("expected %d columns, got %v", len(tt.want), got.Names())
			}
			for name, want := range tt.want {
				c := got.Column(name)
				if c == nil {
					t.Fatalf("missing column %s in %v", name, got.Names())
				}
				for i, w := range want {
					g := c.Values[i]
					if g.Valid != w.Valid || math.Abs(g.V-w.V) > 1e-9 {
						t.Errorf("%s[%d]: expected %+v, got %+v", name, i, w, g)
					}
				}
			}
		})
	}
}

func TestGroupMeanEmpty(t *testing.T) {
	got := GroupMean(New(), ThreadQualifier, SuffixUtil)
	if got.Width() != 0 || got.Len() != 0 {
		t.Errorf("expected empty table, got %d cols %d rows", got.Width(), got.Len())
	}
}

func TestGroupMeanCarriesKey(t *testing.T) {
	tbl := WithKey(KeyName, "CPU_1_Core_0", "CPU_1_Core_1")
	ts := time.Date(2023, 7, 10, 0, 0, 0, 0, time.UTC)
	_ = tbl.SetKey(0, ts)
	_ = tbl.Set(0, "CPU_1_Core_0", 1)
	got := GroupMean(tbl, CoreQualifier, SuffixTemp)
	if !got.HasKey() || !got.Keys[0].T.Equal(ts) {
		t.Errorf("expected key to be carried, got %+v", got.Keys)
	}
	if got.Names()[0] != "CPU_1_Avg_Temp" {
		t.Errorf("unexpected columns %v", got.Names())
	}
}

func TestCollapse(t *testing.T) {
	tbl := WithKey(KeyName, "CPU_1_Avg_Temp", "CPU_2_Avg_Temp", "other")
	_ = tbl.Set(0, "CPU_1_Avg_Temp", 40)
	_ = tbl.Set(0, "CPU_2_Avg_Temp", 50)
	_ = tbl.Set(1, "CPU_2_Avg_Temp", 60)
	_ = tbl.Set(1, "other", 7)

	got, err := Collapse(tbl, "CPU_Avg_Temp", "CPU_1_Avg_Temp", "CPU_2_Avg_Temp")
	if err != nil {
		t.Fatalf("Collapse: %v", err)
	}
	names := got.Names()
	if len(names) != 2 || names[0] != "CPU_Avg_Temp" || names[1] != "other" {
		t.Fatalf("unexpected columns %v", names)
	}
	if v := got.Get(0, "CPU_Avg_Temp"); v.V != 45 {
		t.Errorf("row 0: expected 45, got %v", v.V)
	}
	if v := got.Get(1, "CPU_Avg_Temp"); v.V != 60 {
		t.Errorf("row 1: expected 60, got %v", v.V)
	}

	if _, err := Collapse(tbl, "x", "nope"); !errors.Is(err, ErrNoColumn) {
		t.Errorf("expected ErrNoColumn, got %v", err)
	}
}

func TestScale(t *testing.T) {
	tbl := New("gpu_GRAM")
	_ = tbl.Set(0, "gpu_GRAM", 7611)
	_ = tbl.Set(2, "gpu_GRAM", 3805.5)
	if err := Scale(tbl, "gpu_GRAM", 100.0/7611); err != nil {
		t.Fatalf("Scale: %v", err)
	}
	if v := tbl.Get(0, "gpu_GRAM"); math.Abs(v.V-100) > 1e-9 {
		t.Errorf("expected 100, got %v", v.V)
	}
	if v := tbl.Get(1, "gpu_GRAM"); v.Valid {
		t.Error("unset cell must stay unset")
	}
	if err := Scale(tbl, "missing", 2); !errors.Is(err, ErrNoColumn) {
		t.Errorf("expected ErrNoColumn, got %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	tbl := filled("a", 3, 0)
	c := tbl.Clone(2)
	_ = c.Set(0, "a", 99)
	if tbl.Get(0, "a").V == 99 {
		t.Error("clone shares storage with source")
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 rows, got %d", c.Len())
	}
}
