// Package scan turns plain-text diagnostic dumps into reading tables.
//
// Dumps carry no unit labels next to their readings. Readings are assigned
// to physical units purely by their position in the stream, using the
// topology's Layout. Lines that do not match simply contribute nothing, so a
// malformed dump yields fewer rows or unset cells rather than an error.
package scan

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/23skdu/longbow-sysdiag/internal/config"
	"github.com/23skdu/longbow-sysdiag/internal/table"
)

var ErrBadTimestamp = errors.New("bad timestamp")

var (
	utilReading = regexp.MustCompile(`(\d{1,3}\.\d{1,2}) us`)
	tempReading = regexp.MustCompile(`\D{4} \d{1,2}:\s{7,8}\+(\d{2}.\d)`)
	dateStamp   = regexp.MustCompile(`\D\D\D \D\D\D \d\d \d\d:\d\d:\d\d \D\D \D\D\D \d\d\d\d`)
)

// date(1) layout once the zone abbreviation is removed.
const dateLayout = "Mon Jan 02 03:04:05 PM 2006"

// Stats summarises one scan.
type Stats struct {
	Source   string
	Readings int
	Rows     int
	Dropped  int
	Unset    int
	Stamps   int
}

func finish(source string, t *table.Table, readings, dropped int) Stats {
	return Stats{
		Source:   source,
		Readings: readings,
		Rows:     t.Len(),
		Dropped:  dropped,
		Unset:    t.Unset(),
	}
}

// StripMarkers removes every marker from text. The default marker is the
// UTF-8 degree sign mis-decoded as Latin-1, which sensors output picks up
// when captured through some terminals.
func StripMarkers(text string, markers ...string) string {
	for _, m := range markers {
		if m != "" {
			text = strings.ReplaceAll(text, m, "")
		}
	}
	return text
}

func parseReading(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("reading %q: %w", s, err)
	}
	return v, nil
}

// UtilizationColumns lists the thread columns for a topology in layout order.
func UtilizationColumns(top config.Topology) []string {
	cores := CoreLayout(top).Labels()
	names := make([]string, 0, len(cores)*top.Threads)
	for _, c := range cores {
		for th := range top.Threads {
			names = append(names, ThreadLabel(c, th))
		}
	}
	return names
}

// ScanUtilization reads per-thread user-time percentages. Each line with at
// least one "<pct> us" reading consumes one core slot; its i-th reading is
// thread i of that core. Readings beyond the topology's thread count are
// dropped and counted.
func ScanUtilization(text string, top config.Topology) (*table.Table, Stats, error) {
	layout := CoreLayout(top)
	t := table.New(UtilizationColumns(top)...)

	ordinal, readings, dropped := 0, 0, 0
	for line := range strings.Lines(text) {
		matches := utilReading.FindAllStringSubmatch(line, -1)
		if len(matches) == 0 {
			continue
		}
		row, core := layout.Locate(ordinal)
		ordinal++
		for th, m := range matches {
			if th >= top.Threads {
				dropped++
				continue
			}
			v, err := parseReading(m[1])
			if err != nil {
				return nil, Stats{}, err
			}
			if err := t.Set(row, ThreadLabel(core, th), v); err != nil {
				return nil, Stats{}, err
			}
			readings++
		}
	}
	return t, finish("utilization", t, readings, dropped), nil
}

// TemperatureOptions controls cleanup and timestamp parsing.
type TemperatureOptions struct {
	Markers  []string
	Location *time.Location
}

// ScanTemperature reads per-core temperatures from sensors output. Every
// reading consumes the next core slot, including several on one line. Every
// date(1) stamp found in the text is stored in the timestamp key column at
// its own index, independently of the readings.
func ScanTemperature(text string, top config.Topology, opts TemperatureOptions) (*table.Table, Stats, error) {
	text = StripMarkers(text, opts.Markers...)
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	layout := CoreLayout(top)
	t := table.WithKey(table.KeyName, layout.Labels()...)

	stamps := dateStamp.FindAllString(text, -1)
	for i, raw := range stamps {
		ts, err := parseStamp(raw, loc)
		if err != nil {
			return nil, Stats{}, err
		}
		if err := t.SetKey(i, ts); err != nil {
			return nil, Stats{}, err
		}
	}

	ordinal := 0
	for line := range strings.Lines(text) {
		for _, m := range tempReading.FindAllStringSubmatch(line, -1) {
			v, err := parseReading(m[1])
			if err != nil {
				return nil, Stats{}, err
			}
			row, core := layout.Locate(ordinal)
			ordinal++
			if err := t.Set(row, core, v); err != nil {
				return nil, Stats{}, err
			}
		}
	}
	stats := finish("temperature", t, ordinal, 0)
	stats.Stamps = len(stamps)
	return t, stats, nil
}

// parseStamp parses "Mon Jul 10 02:15:33 PM PDT 2023" in loc, ignoring the
// zone abbreviation.
func parseStamp(raw string, loc *time.Location) (time.Time, error) {
	f := strings.Fields(raw)
	if len(f) != 7 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, raw)
	}
	f = append(f[:5], f[6])
	ts, err := time.ParseInLocation(dateLayout, strings.Join(f, " "), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrBadTimestamp, raw, err)
	}
	return ts, nil
}

// Field is one scalar GPU reading with a single-group pattern.
type Field struct {
	Name    string
	Pattern *regexp.Regexp
}

// CompileFields compiles configured GPU field patterns.
func CompileFields(specs []config.GPUField) ([]Field, error) {
	fields := make([]Field, 0, len(specs))
	for _, s := range specs {
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return nil, fmt.Errorf("gpu field %s: %w", s.Name, err)
		}
		fields = append(fields, Field{Name: s.Name, Pattern: re})
	}
	return fields, nil
}

// ScanGPUStatus applies each field pattern to the whole text; the i-th match
// of a field becomes row i of its column.
func ScanGPUStatus(text string, fields []Field) (*table.Table, Stats, error) {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	t := table.New(names...)

	readings := 0
	for _, f := range fields {
		for row, m := range f.Pattern.FindAllStringSubmatch(text, -1) {
			v, err := parseReading(m[1])
			if err != nil {
				return nil, Stats{}, fmt.Errorf("%s: %w", f.Name, err)
			}
			if err := t.Set(row, f.Name, v); err != nil {
				return nil, Stats{}, err
			}
			readings++
		}
	}
	return t, finish("gpu", t, readings, 0), nil
}
