package flightsink

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/23skdu/longbow-sysdiag/internal/arrowio"
	"github.com/23skdu/longbow-sysdiag/internal/metrics"
	"github.com/23skdu/longbow-sysdiag/internal/table"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DirSink writes each table to <Dir>/<name>.csv.
type DirSink struct {
	Dir string
}

func (d DirSink) Path(name string) (string, error) {
	clean := unsafeName.ReplaceAllString(name, "_")
	if clean == "" || clean == "." || clean == ".." {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return filepath.Join(d.Dir, clean+".csv"), nil
}

func (d DirSink) Put(ctx context.Context, name string, t *table.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := d.Path(name)
	if err != nil {
		return err
	}
	if err := arrowio.WriteFile(path, t); err != nil {
		return err
	}
	metrics.RecordRowsWritten("csv", t.Len())
	return nil
}

// MemorySink keeps tables in memory, keyed by name.
type MemorySink struct {
	mu     sync.RWMutex
	tables map[string]*table.Table
}

func NewMemorySink() *MemorySink {
	return &MemorySink{tables: make(map[string]*table.Table)}
}

// Put stores a copy of t, replacing any table of the same name.
func (m *MemorySink) Put(ctx context.Context, name string, t *table.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[name] = t.Clone(-1)
	return nil
}

func (m *MemorySink) Get(name string) (*table.Table, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[name]
	return t, ok
}

func (m *MemorySink) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.tables))
	for n := range m.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Reset clears all stored data
func (m *MemorySink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables = make(map[string]*table.Table)
}

// Multi fans a table out to every sink, stopping at the first error.
type Multi []Sink

func (ms Multi) Put(ctx context.Context, name string, t *table.Table) error {
	for _, s := range ms {
		if err := s.Put(ctx, name, t); err != nil {
			return err
		}
	}
	return nil
}
