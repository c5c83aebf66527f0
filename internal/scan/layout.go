package scan

import (
	"fmt"

	"github.com/23skdu/longbow-sysdiag/internal/config"
)

// Layout is the ordered list of slot labels making up one sampling cycle.
// The n-th reading of a stream belongs to row n/len and slot n%len; the
// row advances exactly when the slot wraps back to zero.
type Layout struct {
	labels []string
}

func NewLayout(labels ...string) Layout {
	return Layout{labels: labels}
}

// CoreLayout lists CPU_<socket>_Core_<core> for every core, socket-major,
// sockets 1-based and cores 0-based.
func CoreLayout(top config.Topology) Layout {
	labels := make([]string, 0, top.Cycle())
	for s := 1; s <= top.Sockets; s++ {
		for c := range top.Cores {
			labels = append(labels, CoreLabel(s, c))
		}
	}
	return NewLayout(labels...)
}

func CoreLabel(socket, core int) string {
	return fmt.Sprintf("CPU_%d_Core_%d", socket, core)
}

func ThreadLabel(core string, thread int) string {
	return fmt.Sprintf("%s_Thread_%d", core, thread)
}

func (l Layout) Len() int {
	return len(l.labels)
}

func (l Layout) Labels() []string {
	return l.labels
}

// Locate maps a reading ordinal to its row and slot label.
func (l Layout) Locate(ordinal int) (row int, label string) {
	n := len(l.labels)
	return ordinal / n, l.labels[ordinal%n]
}
