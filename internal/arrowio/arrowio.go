// Package arrowio converts reading tables to Arrow records and serializes
// them as CSV through the Arrow CSV codec.
//
// Value columns map to nullable float64 fields. The key column maps to a
// second-resolution timestamp without a zone, carrying the wall-clock time
// as it was printed in the dump.
package arrowio

import (
	"errors"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-sysdiag/internal/table"
)

var ErrUnsupportedType = errors.New("unsupported column type")

var keyType = &arrow.TimestampType{Unit: arrow.Second}

// Schema describes t's columns, key first.
func Schema(t *table.Table) *arrow.Schema {
	fields := make([]arrow.Field, 0, t.Width()+1)
	if t.HasKey() {
		fields = append(fields, arrow.Field{Name: t.KeyName, Type: keyType, Nullable: true})
	}
	for _, name := range t.Names() {
		fields = append(fields, arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}

// SchemaFor builds the schema of a table with the given header. A leading
// column named key becomes the timestamp key.
func SchemaFor(header []string, key string) *arrow.Schema {
	fields := make([]arrow.Field, len(header))
	for i, name := range header {
		typ := arrow.DataType(arrow.PrimitiveTypes.Float64)
		if i == 0 && key != "" && name == key {
			typ = keyType
		}
		fields[i] = arrow.Field{Name: name, Type: typ, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func naive(t time.Time) arrow.Timestamp {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return arrow.Timestamp(time.Date(y, mo, d, h, mi, s, 0, time.UTC).Unix())
}

// ToRecord builds a single record holding every row of t. The caller owns
// the record and must Release it.
func ToRecord(t *table.Table, mem memory.Allocator) arrow.Record {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	schema := Schema(t)
	cols := make([]arrow.Array, 0, len(schema.Fields()))
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	if t.HasKey() {
		b := array.NewTimestampBuilder(mem, keyType)
		b.Reserve(t.Len())
		for _, k := range t.Keys {
			if k.Valid {
				b.Append(naive(k.T))
			} else {
				b.AppendNull()
			}
		}
		cols = append(cols, b.NewArray())
		b.Release()
	}

	for _, c := range t.Columns {
		b := array.NewFloat64Builder(mem)
		b.Reserve(t.Len())
		for _, v := range c.Values {
			if v.Valid {
				b.Append(v.V)
			} else {
				b.AppendNull()
			}
		}
		cols = append(cols, b.NewArray())
		b.Release()
	}

	return array.NewRecord(schema, cols, int64(t.Len()))
}

// FromRecords rebuilds a table from records sharing schema. A leading
// timestamp field becomes the key column.
func FromRecords(schema *arrow.Schema, recs ...arrow.Record) (*table.Table, error) {
	fields := schema.Fields()
	t := table.New()
	start := 0
	if len(fields) > 0 {
		if _, ok := fields[0].Type.(*arrow.TimestampType); ok {
			t.KeyName = fields[0].Name
			start = 1
		}
	}
	for _, f := range fields[start:] {
		if f.Type.ID() != arrow.FLOAT64 {
			return nil, fmt.Errorf("%w: %s is %s", ErrUnsupportedType, f.Name, f.Type)
		}
		if err := t.AddColumn(f.Name); err != nil {
			return nil, err
		}
	}

	for _, rec := range recs {
		if !rec.Schema().Equal(schema) {
			return nil, fmt.Errorf("record schema %s does not match %s", rec.Schema(), schema)
		}
		base := t.Len()
		t.Grow(base + int(rec.NumRows()))
		if start == 1 {
			ts := rec.Column(0).(*array.Timestamp)
			unit := ts.DataType().(*arrow.TimestampType).Unit
			for i := range ts.Len() {
				if ts.IsValid(i) {
					if err := t.SetKey(base+i, ts.Value(i).ToTime(unit)); err != nil {
						return nil, err
					}
				}
			}
		}
		for ci, c := range t.Columns {
			arr := rec.Column(start + ci).(*array.Float64)
			for i := range arr.Len() {
				if arr.IsValid(i) {
					c.Values[base+i] = table.Set(arr.Value(i))
				}
			}
		}
	}
	return t, nil
}
