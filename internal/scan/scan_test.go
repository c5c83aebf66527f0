package scan

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/23skdu/longbow-sysdiag/internal/config"
	"github.com/23skdu/longbow-sysdiag/internal/table"
)

var topology = config.Topology{Sockets: 2, Cores: 10, Threads: 2}

// topLines renders n per-core lines of top's per-CPU view, two hardware
// threads per line, continuing from line offset start.
func topLines(start, n int) string {
	var b strings.Builder
	b.WriteString("top - 14:15:33 up 3 days,  2 users,  load average: 0.52, 0.58, 0.59\n")
	for i := start; i < start+n; i++ {
		fmt.Fprintf(&b, "%%Cpu%-3d: %4.1f us,  1.0 sy,  0.0 ni, 95.0 id   %%Cpu%-3d: %.2f us,  0.5 sy,  0.0 ni, 96.0 id\n",
			2*i, float64(i%20)+0.5, 2*i+1, float64(i%20)+0.25)
	}
	return b.String()
}

func sensorsCycle(stamp string, base float64, cores int, marker string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", stamp)
	for s := range 2 {
		fmt.Fprintf(&b, "coretemp-isa-000%d\nAdapter: ISA adapter\n", s)
		fmt.Fprintf(&b, "Package id %d:  +%.1f%sC  (high = +80.0%sC, crit = +100.0%sC)\n", s, base, marker, marker, marker)
		for c := range cores {
			pad := strings.Repeat(" ", 8-len(fmt.Sprint(c))+1)
			fmt.Fprintf(&b, "Core %d:%s+%.1f%sC  (high = +80.0%sC, crit = +100.0%sC)\n",
				c, pad, base+float64(s*10+c), marker, marker, marker)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func TestLayoutLocate(t *testing.T) {
	l := CoreLayout(topology)
	tests := []struct {
		ordinal int
		row     int
		label   string
	}{
		{0, 0, "CPU_1_Core_0"},
		{9, 0, "CPU_1_Core_9"},
		{10, 0, "CPU_2_Core_0"},
		{19, 0, "CPU_2_Core_9"},
		{20, 1, "CPU_1_Core_0"},
		{45, 2, "CPU_1_Core_5"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.ordinal), func(t *testing.T) {
			row, label := l.Locate(tt.ordinal)
			if row != tt.row || label != tt.label {
				t.Errorf("Locate(%d) = (%d, %s), want (%d, %s)", tt.ordinal, row, label, tt.row, tt.label)
			}
		})
	}
	if l.Len() != 20 {
		t.Errorf("expected 20 slots, got %d", l.Len())
	}
}

func TestLayoutSingleSocket(t *testing.T) {
	l := CoreLayout(config.Topology{Sockets: 1, Cores: 4, Threads: 1})
	row, label := l.Locate(5)
	if row != 1 || label != "CPU_1_Core_1" {
		t.Errorf("got (%d, %s)", row, label)
	}
}

func TestScanUtilizationCompleteCycles(t *testing.T) {
	for _, cycles := range []int{1, 3, 7} {
		t.Run(fmt.Sprintf("%d cycles", cycles), func(t *testing.T) {
			tbl, stats, err := ScanUtilization(topLines(0, 20*cycles), topology)
			if err != nil {
				t.Fatalf("ScanUtilization: %v", err)
			}
			if tbl.Len() != cycles {
				t.Fatalf("expected %d rows, got %d", cycles, tbl.Len())
			}
			if tbl.Width() != 40 {
				t.Fatalf("expected 40 columns, got %d", tbl.Width())
			}
			if tbl.Unset() != 0 {
				t.Errorf("expected every cell populated, %d unset", tbl.Unset())
			}
			if stats.Readings != 40*cycles || stats.Rows != cycles {
				t.Errorf("unexpected stats %+v", stats)
			}
		})
	}
}

func TestScanUtilizationAttribution(t *testing.T) {
	tbl, _, err := ScanUtilization(topLines(0, 20), topology)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		column string
		want   float64
	}{
		{"CPU_1_Core_0_Thread_0", 0.5},
		{"CPU_1_Core_0_Thread_1", 0.25},
		{"CPU_1_Core_9_Thread_0", 9.5},
		{"CPU_2_Core_0_Thread_0", 10.5},
		{"CPU_2_Core_9_Thread_1", 19.25},
	}
	for _, tt := range tests {
		if got := tbl.Get(0, tt.column); !got.Valid || got.V != tt.want {
			t.Errorf("%s: expected %v, got %+v", tt.column, tt.want, got)
		}
	}
}

func TestScanUtilizationTruncated(t *testing.T) {
	tbl, _, err := ScanUtilization(topLines(0, 6), topology)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 1 {
		t.Fatalf("expected one partial row, got %d", tbl.Len())
	}
	for c := range 10 {
		for th := range 2 {
			s1 := tbl.Get(0, ThreadLabel(CoreLabel(1, c), th))
			if (c < 6) != s1.Valid {
				t.Errorf("socket 1 core %d thread %d: valid=%v", c, th, s1.Valid)
			}
			if s2 := tbl.Get(0, ThreadLabel(CoreLabel(2, c), th)); s2.Valid {
				t.Errorf("socket 2 core %d thread %d must be unset", c, th)
			}
		}
	}
}

func TestScanUtilizationPartialTrailingCycle(t *testing.T) {
	tbl, _, err := ScanUtilization(topLines(0, 25), topology)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}
	if !tbl.Get(1, "CPU_1_Core_4_Thread_1").Valid || tbl.Get(1, "CPU_1_Core_5_Thread_0").Valid {
		t.Error("partial row attribution wrong")
	}
}

func TestScanUtilizationNoMatchLinesSkipped(t *testing.T) {
	text := "header\n" +
		"%Cpu0  : 12.5 us,  1.0 sy\n" +
		"garbage 12.5 sy\n" +
		"\n" +
		"%Cpu1  : 7.25 us,  1.0 sy\n"
	tbl, _, err := ScanUtilization(text, topology)
	if err != nil {
		t.Fatal(err)
	}
	if got := tbl.Get(0, "CPU_1_Core_1_Thread_0"); got.V != 7.25 {
		t.Errorf("non-matching lines must not advance the slot, got %+v", got)
	}
	if tbl.Get(0, "CPU_1_Core_0_Thread_1").Valid {
		t.Error("single-reading line must leave thread 1 unset")
	}
}

func TestScanUtilizationDropsExtraThreads(t *testing.T) {
	text := "%Cpu0 : 1.0 us, %Cpu1 : 2.0 us, %Cpu2 : 3.0 us\n"
	tbl, stats, err := ScanUtilization(text, topology)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Dropped != 1 {
		t.Errorf("expected 1 dropped reading, got %d", stats.Dropped)
	}
	if tbl.Width() != 40 {
		t.Errorf("extra readings must not add columns, got %d", tbl.Width())
	}
}

func TestScanUtilizationEmpty(t *testing.T) {
	tbl, stats, err := ScanUtilization("", topology)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 0 || stats.Readings != 0 {
		t.Errorf("expected empty table, got %d rows", tbl.Len())
	}
}

func TestScanTemperature(t *testing.T) {
	text := sensorsCycle("Mon Jul 10 02:15:33 PM PDT 2023", 40, 10, "") +
		sensorsCycle("Mon Jul 10 02:15:38 PM PDT 2023", 41, 10, "")
	tbl, stats, err := ScanTemperature(text, topology, TemperatureOptions{})
	if err != nil {
		t.Fatalf("ScanTemperature: %v", err)
	}
	if tbl.Len() != 2 || tbl.Width() != 20 {
		t.Fatalf("expected 2x20, got %dx%d", tbl.Len(), tbl.Width())
	}
	if tbl.Unset() != 0 {
		t.Errorf("expected full table, %d unset", tbl.Unset())
	}
	if got := tbl.Get(1, "CPU_2_Core_9"); got.V != 60 {
		t.Errorf("CPU_2_Core_9 row 1: expected 60, got %v", got.V)
	}
	want := time.Date(2023, 7, 10, 14, 15, 33, 0, time.UTC)
	if !tbl.Keys[0].Valid || !tbl.Keys[0].T.Equal(want) {
		t.Errorf("expected %v, got %+v", want, tbl.Keys[0])
	}
	if stats.Stamps != 2 || stats.Readings != 40 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if tbl.Header()[0] != table.KeyName {
		t.Errorf("expected key column first, got %v", tbl.Header())
	}
}

func TestScanTemperatureTwoDigitCore(t *testing.T) {
	top := config.Topology{Sockets: 1, Cores: 12, Threads: 1}
	text := "Core 9:        +44.0C  (high = +80.0C)\n" +
		"Core 10:       +45.0C  (high = +80.0C)\n" +
		"Core 11:       +46.0C  (high = +80.0C)\n"
	tbl, _, err := ScanTemperature(text, top, TemperatureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got := tbl.Get(0, "CPU_1_Core_2"); got.V != 46 {
		t.Errorf("expected third reading in slot 2, got %+v", got)
	}
}

func TestScanTemperatureSeveralReadingsPerLine(t *testing.T) {
	text := "Core 0:        +41.0C  Core 1:        +42.0C\n" +
		"Core 2:        +43.0C\n"
	tbl, st, err := ScanTemperature(text, topology, TemperatureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if st.Readings != 3 {
		t.Errorf("expected 3 readings, got %d", st.Readings)
	}
	for core, want := range []float64{41, 42, 43} {
		if got := tbl.Get(0, CoreLabel(1, core)); !got.Valid || got.V != want {
			t.Errorf("core %d: expected %v, got %+v", core, want, got)
		}
	}
}

func TestScanTemperatureMarkerCleanup(t *testing.T) {
	opts := TemperatureOptions{Markers: []string{"Â°"}}
	clean := sensorsCycle("Tue Jul 11 09:00:00 AM PDT 2023", 50, 10, "")
	dirty := sensorsCycle("Tue Jul 11 09:00:00 AM PDT 2023", 50, 10, "Â°")

	a, _, err := ScanTemperature(clean, topology, opts)
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := ScanTemperature(dirty, topology, opts)
	if err != nil {
		t.Fatal(err)
	}
	if a.Len() != b.Len() || a.Width() != b.Width() {
		t.Fatalf("shape differs: %dx%d vs %dx%d", a.Len(), a.Width(), b.Len(), b.Width())
	}
	for _, name := range a.Names() {
		for row := range a.Len() {
			if a.Get(row, name) != b.Get(row, name) {
				t.Errorf("%s[%d]: %+v vs %+v", name, row, a.Get(row, name), b.Get(row, name))
			}
		}
	}
	if a.Keys[0] != b.Keys[0] {
		t.Errorf("stamps differ: %+v vs %+v", a.Keys[0], b.Keys[0])
	}
}

func TestScanTemperatureTruncatedSocket(t *testing.T) {
	text := "Wed Jul 12 10:00:00 AM PDT 2023\n" +
		"Core 0:        +40.0C\nCore 1:        +41.0C\nCore 2:        +42.0C\n"
	tbl, _, err := ScanTemperature(text, topology, TemperatureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for c := range 10 {
		if tbl.Get(0, CoreLabel(1, c)).Valid != (c < 3) {
			t.Errorf("socket 1 core %d validity wrong", c)
		}
		if tbl.Get(0, CoreLabel(2, c)).Valid {
			t.Errorf("socket 2 core %d must be unset", c)
		}
	}
}

func TestScanTemperatureStampsIndependentOfReadings(t *testing.T) {
	text := "Mon Jul 10 02:15:33 PM PDT 2023\nMon Jul 10 02:15:38 PM PDT 2023\nMon Jul 10 02:15:43 PM PDT 2023\n" +
		"Core 0:        +40.0C\n"
	tbl, _, err := ScanTemperature(text, topology, TemperatureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 3 {
		t.Fatalf("expected rows = max(stamps, readings) = 3, got %d", tbl.Len())
	}
	if tbl.Get(2, "CPU_1_Core_0").Valid {
		t.Error("row without readings must be unset")
	}
}

func TestScanTemperatureLocation(t *testing.T) {
	loc := time.FixedZone("PDT", -7*3600)
	tbl, _, err := ScanTemperature("Mon Jul 10 02:15:33 PM PDT 2023\n", topology, TemperatureOptions{Location: loc})
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2023, 7, 10, 21, 15, 33, 0, time.UTC)
	if !tbl.Keys[0].T.Equal(want) {
		t.Errorf("expected %v, got %v", want, tbl.Keys[0].T.UTC())
	}
}

func TestScanTemperatureBadStamp(t *testing.T) {
	_, _, err := ScanTemperature("Mon Foo 10 02:15:33 PM PDT 2023\n", topology, TemperatureOptions{})
	if !errors.Is(err, ErrBadTimestamp) {
		t.Errorf("expected ErrBadTimestamp, got %v", err)
	}
}

func TestScanGPUStatus(t *testing.T) {
	var b strings.Builder
	b.WriteString("+-----------------------------------------------------------------------------+\n")
	for i := range 4 {
		fmt.Fprintf(&b, "| N/A   %dC    P0    %dW /  70W |   %dMiB / 15360MiB |     %d%%      Default |\n",
			35+i, 20+i, 1000+i, 50+i)
	}
	fields, err := CompileFields(config.DefaultGPUFields())
	if err != nil {
		t.Fatal(err)
	}
	tbl, stats, err := ScanGPUStatus(b.String(), fields)
	if err != nil {
		t.Fatalf("ScanGPUStatus: %v", err)
	}
	want := []string{"gpu_temp", "gpu_power", "gpu_GRAM", "gpu_util"}
	for i, n := range tbl.Names() {
		if n != want[i] {
			t.Errorf("column %d: expected %s, got %s", i, want[i], n)
		}
	}
	if tbl.Len() != 4 {
		t.Fatalf("expected 4 rows, got %d", tbl.Len())
	}
	checks := map[string]float64{"gpu_temp": 38, "gpu_power": 23, "gpu_GRAM": 1003, "gpu_util": 53}
	for name, v := range checks {
		if got := tbl.Get(3, name); got.V != v {
			t.Errorf("%s: expected %v, got %+v", name, v, got)
		}
	}
	if stats.Readings != 16 {
		t.Errorf("expected 16 readings, got %d", stats.Readings)
	}
}

func TestScanGPUStatusUnevenFields(t *testing.T) {
	fields, _ := CompileFields(config.DefaultGPUFields())
	text := "| 35C P0 20W / 70W | 100MiB / 15360MiB | 5% |\n| 36C |\n"
	tbl, _, err := ScanGPUStatus(text, fields)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}
	if tbl.Get(1, "gpu_power").Valid {
		t.Error("missing reading must be unset")
	}
	if got := tbl.Get(1, "gpu_temp"); got.V != 36 {
		t.Errorf("expected 36, got %+v", got)
	}
}

func TestStripMarkers(t *testing.T) {
	got := StripMarkers("+45.0Â°C", "Â°", "")
	if got != "+45.0C" {
		t.Errorf("got %q", got)
	}
}
