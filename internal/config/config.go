package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"go.yaml.in/yaml/v2"
)

var ErrInvalid = errors.New("invalid config")

// Topology describes the monitored machine. Readings are attributed to
// physical units by their position in the dump, so this must match the
// host the dumps were taken on.
type Topology struct {
	Sockets int `yaml:"sockets"`
	Cores   int `yaml:"cores"`
	Threads int `yaml:"threads"`
}

type Sources struct {
	Utilization string `yaml:"utilization"`
	Temperature string `yaml:"temperature"`
	GPU         string `yaml:"gpu"`
}

type Timestamp struct {
	Location string `yaml:"location"`
}

type GPUField struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

type GPU struct {
	MemoryMiB float64    `yaml:"memory_mib"`
	Fields    []GPUField `yaml:"fields"`
}

type Output struct {
	Dir     string `yaml:"dir"`
	Name    string `yaml:"name"`
	PerCore bool   `yaml:"per_core"`
}

type Flight struct {
	Addr string `yaml:"addr"`
}

type Metrics struct {
	Listen  string `yaml:"listen"`
	PushURL string `yaml:"push_url"`
	Job     string `yaml:"job"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Bench struct {
	Kernels []string `yaml:"kernels"`
	Seed    uint64   `yaml:"seed"`
	Scale   float64  `yaml:"scale"`
}

type Config struct {
	Topology  Topology  `yaml:"topology"`
	Sources   Sources   `yaml:"sources"`
	Timestamp Timestamp `yaml:"timestamp"`
	Cleanup   []string  `yaml:"cleanup"`
	GPU       GPU       `yaml:"gpu"`
	Output    Output    `yaml:"output"`
	Flight    Flight    `yaml:"flight"`
	Metrics   Metrics   `yaml:"metrics"`
	Log       Log       `yaml:"log"`
	Bench     Bench     `yaml:"bench"`
}

// DefaultGPUFields are the nvidia-smi summary fields scanned by default.
func DefaultGPUFields() []GPUField {
	return []GPUField{
		{Name: "gpu_temp", Pattern: `(\d{1,3})C`},
		{Name: "gpu_power", Pattern: `(\d{1,2})W /`},
		{Name: "gpu_GRAM", Pattern: `(\d{1,4})MiB /`},
		{Name: "gpu_util", Pattern: `(\d{1,3})%`},
	}
}

func Default() *Config {
	return &Config{
		Topology: Topology{Sockets: 2, Cores: 10, Threads: 2},
		Sources: Sources{
			Utilization: "cpu_util.txt",
			Temperature: "cpu_temp.txt",
			GPU:         "gpu_status.txt",
		},
		Timestamp: Timestamp{Location: "UTC"},
		Cleanup:   []string{"Â°"},
		GPU: GPU{
			MemoryMiB: 7611,
			Fields:    DefaultGPUFields(),
		},
		Output:  Output{Dir: "."},
		Metrics: Metrics{Job: "sysdiag"},
		Log:     Log{Level: "info", Format: "console"},
		Bench:   Bench{Scale: 1},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(bytes.TrimSpace(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Topology.Sockets <= 0 {
		return fmt.Errorf("%w: sockets: %d (must be positive)", ErrInvalid, c.Topology.Sockets)
	}
	if c.Topology.Cores <= 0 {
		return fmt.Errorf("%w: cores: %d (must be positive)", ErrInvalid, c.Topology.Cores)
	}
	if c.Topology.Threads <= 0 {
		return fmt.Errorf("%w: threads: %d (must be positive)", ErrInvalid, c.Topology.Threads)
	}
	if c.GPU.MemoryMiB <= 0 {
		return fmt.Errorf("%w: gpu memory_mib: %g (must be positive)", ErrInvalid, c.GPU.MemoryMiB)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: timestamp location %q: %v", ErrInvalid, c.Timestamp.Location, err)
	}
	seen := make(map[string]bool, len(c.GPU.Fields))
	for _, f := range c.GPU.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: gpu field with empty name", ErrInvalid)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: duplicate gpu field %s", ErrInvalid, f.Name)
		}
		seen[f.Name] = true
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return fmt.Errorf("%w: gpu field %s: %v", ErrInvalid, f.Name, err)
		}
		if re.NumSubexp() != 1 {
			return fmt.Errorf("%w: gpu field %s: pattern needs exactly one group", ErrInvalid, f.Name)
		}
	}
	if c.Bench.Scale <= 0 {
		return fmt.Errorf("%w: bench scale: %g (must be positive)", ErrInvalid, c.Bench.Scale)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: log format %q (console or json)", ErrInvalid, c.Log.Format)
	}
	return nil
}

// Location resolves the zone dump timestamps are interpreted in. The zone
// abbreviation printed by date(1) is ambiguous and is not used.
func (c *Config) Location() (*time.Location, error) {
	if c.Timestamp.Location == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timestamp.Location)
}

// Cycle is the number of per-core readings in one sampling cycle.
func (t Topology) Cycle() int {
	return t.Sockets * t.Cores
}
