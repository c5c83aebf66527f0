package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/23skdu/longbow-sysdiag/internal/config"
)

// Writes synthetic top, sensors and nvidia-smi dumps for trying the tools
// without a monitored machine.

var (
	dir     = flag.String("dir", ".", "Directory to write the dumps into")
	cycles  = flag.Int("cycles", 10, "Sampling cycles to generate")
	cfgPath = flag.String("config", "", "Configuration file supplying the topology")
	seed    = flag.Uint64("seed", 1, "Random seed")
)

func create(name string, fill func(w *bufio.Writer)) {
	path := filepath.Join(*dir, name)
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("create %s: %v", path, err)
	}
	w := bufio.NewWriter(f)
	fill(w)
	if err := w.Flush(); err != nil {
		log.Fatalf("write %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("close %s: %v", path, err)
	}
	log.Printf("wrote %s", path)
}

func main() {
	flag.Parse()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	top := cfg.Topology
	rng := rand.New(rand.NewPCG(*seed, *seed))
	start := time.Date(2023, 7, 10, 14, 15, 33, 0, time.UTC)

	create(filepath.Base(cfg.Sources.Utilization), func(w *bufio.Writer) {
		for range *cycles {
			cpu := 0
			for range top.Sockets * top.Cores {
				for range top.Threads {
					fmt.Fprintf(w, "%%Cpu%-3d: %5.1f us,  %4.1f sy,  0.0 ni  ", cpu, 100*rng.Float64(), 5*rng.Float64())
					cpu++
				}
				fmt.Fprintln(w)
			}
		}
	})

	create(filepath.Base(cfg.Sources.Temperature), func(w *bufio.Writer) {
		for c := range *cycles {
			fmt.Fprintln(w, start.Add(time.Duration(c)*5*time.Second).Format("Mon Jan 02 03:04:05 PM MST 2006"))
			for s := range top.Sockets {
				fmt.Fprintf(w, "coretemp-isa-%04d\nPackage id %d:  +%.1fÂ°C  (high = +82.0Â°C, crit = +92.0Â°C)\n", s, s, 40+20*rng.Float64())
				for core := range top.Cores {
					pad := "        "
					if core >= 10 {
						pad = "       "
					}
					fmt.Fprintf(w, "Core %d:%s+%.1fÂ°C  (high = +82.0Â°C, crit = +92.0Â°C)\n", core, pad, 35+30*rng.Float64())
				}
			}
		}
	})

	create(filepath.Base(cfg.Sources.GPU), func(w *bufio.Writer) {
		for range *cycles {
			mem := rng.IntN(int(cfg.GPU.MemoryMiB))
			fmt.Fprintf(w, "| N/A   %dC    P0    %dW /  70W |   %dMiB / 15360MiB |     %d%%      Default |\n",
				30+rng.IntN(50), 10+rng.IntN(60), mem, rng.IntN(101))
		}
	})
}
