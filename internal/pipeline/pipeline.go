// Package pipeline composes scans, averaging and merging into the tables
// the command line tools emit.
package pipeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/23skdu/longbow-sysdiag/internal/config"
	"github.com/23skdu/longbow-sysdiag/internal/flightsink"
	"github.com/23skdu/longbow-sysdiag/internal/logger"
	"github.com/23skdu/longbow-sysdiag/internal/metrics"
	"github.com/23skdu/longbow-sysdiag/internal/table"
)

const (
	GRAMField   = "gpu_GRAM"
	AvgTemp     = "CPU" + table.SuffixTemp
	AvgUtil     = "CPU" + table.SuffixUtil
	SummaryName = "_CPU_Avg_Statistics"
)

func socketColumns(top config.Topology, suffix string) []string {
	cols := make([]string, top.Sockets)
	for s := range top.Sockets {
		cols[s] = fmt.Sprintf("CPU_%d%s", s+1, suffix)
	}
	return cols
}

func merge(tables ...*table.Table) (*table.Table, error) {
	lengths := make([]int, len(tables))
	for i, t := range tables {
		lengths[i] = t.Len()
	}
	m, err := table.Merge(tables...)
	if err != nil {
		return nil, err
	}
	metrics.RecordAlignment(lengths, m.Len())
	if len(lengths) > 0 && m.Len() < slices.Max(lengths) {
		logger.Log.Info("tables truncated to common length", "lengths", lengths, "rows", m.Len())
	}
	return m, nil
}

// Diagnostics merges the raw temperature, utilization and GPU tables by row
// position, truncated to the shortest, timestamp first.
func Diagnostics(ctx context.Context, cfg *config.Config) (*table.Table, error) {
	temp, err := Temperature(cfg)
	if err != nil {
		return nil, err
	}
	util, err := Utilization(cfg)
	if err != nil {
		return nil, err
	}
	gpu, err := GPU(cfg)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return merge(temp, util, gpu)
}

// CPUSummary averages temperature and utilization per socket and joins the
// utilization averages onto the temperature rows by position, so the result
// has one row per temperature cycle. With perCore set, per-core utilization
// averages are appended.
func CPUSummary(ctx context.Context, cfg *config.Config, perCore bool) (*table.Table, error) {
	temp, err := Temperature(cfg)
	if err != nil {
		return nil, err
	}
	util, err := Utilization(cfg)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parts := []*table.Table{
		table.GroupMean(temp, table.CoreQualifier, table.SuffixTemp),
		table.GroupMean(util, table.CoreThreadQualifier, table.SuffixUtil),
	}
	if perCore {
		parts = append(parts, table.GroupMean(util, table.ThreadQualifier, table.SuffixUtil))
	}
	return table.JoinLeft(parts...)
}

// Preprocess reduces the CPU summary to machine-wide averages, merges it
// with the GPU table and rescales GPU memory to a percentage of the card's
// capacity.
func Preprocess(ctx context.Context, cfg *config.Config) (*table.Table, error) {
	summary, err := CPUSummary(ctx, cfg, false)
	if err != nil {
		return nil, err
	}
	summary, err = table.Collapse(summary, AvgTemp, socketColumns(cfg.Topology, table.SuffixTemp)...)
	if err != nil {
		return nil, err
	}
	summary, err = table.Collapse(summary, AvgUtil, socketColumns(cfg.Topology, table.SuffixUtil)...)
	if err != nil {
		return nil, err
	}

	gpu, err := GPU(cfg)
	if err != nil {
		return nil, err
	}
	out, err := merge(summary, gpu)
	if err != nil {
		return nil, err
	}
	if out.Column(GRAMField) == nil {
		logger.Log.Warn("no GPU memory column to normalise", "field", GRAMField)
		return out, nil
	}
	if err := table.Scale(out, GRAMField, 100/cfg.GPU.MemoryMiB); err != nil {
		return nil, err
	}
	return out, nil
}

// Publish hands t to sink under name and records the run.
func Publish(ctx context.Context, sink flightsink.Sink, tool, name string, t *table.Table) error {
	if err := sink.Put(ctx, name, t); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	metrics.RecordRun(tool)
	logger.Log.Info("table written", "name", name, "rows", t.Len(), "columns", len(t.Header()))
	return nil
}
