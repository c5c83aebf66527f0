package arrowio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-sysdiag/internal/table"
)

// WriteCSV writes t with a header row, key column first. Unset cells are
// written as empty fields.
func WriteCSV(w io.Writer, t *table.Table) error {
	rec := ToRecord(t, memory.DefaultAllocator)
	defer rec.Release()

	cw := csv.NewWriter(w, rec.Schema(), csv.WithHeader(true), csv.WithNullWriter(""))
	if err := cw.Write(rec); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err := cw.Flush(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteFile writes t to path, creating parent directories.
func WriteFile(path string, t *table.Table) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	if err := WriteCSV(bw, t); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// ReadCSV reads a table written by WriteCSV. A first column named key is
// parsed as the timestamp key; every other column must be numeric.
func ReadCSV(r io.Reader, key string) (*table.Table, error) {
	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, fmt.Errorf("read csv header: empty input")
	}
	schema := SchemaFor(strings.Split(line, ","), key)

	cr := csv.NewReader(io.MultiReader(strings.NewReader(line+"\n"), br), schema,
		csv.WithHeader(true),
		csv.WithNullReader(true, ""),
		csv.WithChunk(-1),
	)
	defer cr.Release()

	var recs []arrow.Record
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for cr.Next() {
		rec := cr.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := cr.Err(); err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return FromRecords(schema, recs...)
}

// ReadFile reads a CSV table from path.
func ReadFile(path, key string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f, key)
}
