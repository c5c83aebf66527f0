package pipeline

import (
	"fmt"
	"os"

	"github.com/23skdu/longbow-sysdiag/internal/config"
	"github.com/23skdu/longbow-sysdiag/internal/logger"
	"github.com/23skdu/longbow-sysdiag/internal/metrics"
	"github.com/23skdu/longbow-sysdiag/internal/scan"
	"github.com/23skdu/longbow-sysdiag/internal/table"
)

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read dump: %w", err)
	}
	return string(data), nil
}

func report(path string, st scan.Stats) {
	metrics.RecordScan(st.Source, st.Readings, st.Rows, st.Dropped, st.Unset)
	logger.Log.Info("dump scanned",
		"source", st.Source,
		"path", path,
		"readings", st.Readings,
		"rows", st.Rows,
		"dropped", st.Dropped,
		"unset", st.Unset,
	)
	if st.Dropped > 0 {
		logger.Log.Warn("readings beyond topology dropped", "source", st.Source, "count", st.Dropped)
	}
}

// Utilization scans the configured utilization dump.
func Utilization(cfg *config.Config) (*table.Table, error) {
	text, err := readSource(cfg.Sources.Utilization)
	if err != nil {
		return nil, err
	}
	t, st, err := scan.ScanUtilization(text, cfg.Topology)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", cfg.Sources.Utilization, err)
	}
	report(cfg.Sources.Utilization, st)
	return t, nil
}

// Temperature scans the configured temperature dump.
func Temperature(cfg *config.Config) (*table.Table, error) {
	text, err := readSource(cfg.Sources.Temperature)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	t, st, err := scan.ScanTemperature(text, cfg.Topology, scan.TemperatureOptions{
		Markers:  cfg.Cleanup,
		Location: loc,
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", cfg.Sources.Temperature, err)
	}
	report(cfg.Sources.Temperature, st)
	if st.Stamps == 0 {
		logger.Log.Warn("no timestamps found", "path", cfg.Sources.Temperature)
	}
	return t, nil
}

// GPU scans the configured GPU status dump.
func GPU(cfg *config.Config) (*table.Table, error) {
	text, err := readSource(cfg.Sources.GPU)
	if err != nil {
		return nil, err
	}
	fields, err := scan.CompileFields(cfg.GPU.Fields)
	if err != nil {
		return nil, err
	}
	t, st, err := scan.ScanGPUStatus(text, fields)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", cfg.Sources.GPU, err)
	}
	report(cfg.Sources.GPU, st)
	return t, nil
}
