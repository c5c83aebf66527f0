package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/23skdu/longbow-sysdiag/internal/bench"
	"github.com/23skdu/longbow-sysdiag/internal/cli"
	"github.com/23skdu/longbow-sysdiag/internal/logger"
	"github.com/23skdu/longbow-sysdiag/internal/monitoring"
)

var (
	kernelList = flag.String("kernels", "", "Comma-separated kernels to run (default all: "+strings.Join(bench.Names(), ",")+")")
	iterations = flag.Int("iterations", 0, "Fixed iteration count (default: random per kernel)")
	scale      = flag.Float64("scale", 0, "Problem size multiplier")
	seed       = flag.Uint64("seed", 0, "Random seed (default: time based)")
	jsonOut    = flag.Bool("json", false, "Print results as JSON")
	slow       = flag.Duration("slow", time.Second, "Alert on iterations slower than this")
)

func main() {
	flags := cli.Register(flag.CommandLine)
	flag.Parse()

	cfg, err := flags.Setup()
	if err != nil {
		cli.Fatal("load configuration", err)
	}
	if *kernelList != "" {
		cfg.Bench.Kernels = strings.Split(*kernelList, ",")
	}
	if *scale > 0 {
		cfg.Bench.Scale = *scale
	}
	if *seed != 0 {
		cfg.Bench.Seed = *seed
	}
	if cfg.Bench.Seed == 0 {
		cfg.Bench.Seed = uint64(time.Now().UnixNano())
	}

	kernels, err := bench.Select(cfg.Bench.Kernels)
	if err != nil {
		cli.Fatal("select kernels", err)
	}

	ctx, stop := cli.Context()
	defer stop()

	monitor := monitoring.NewHealthMonitor(*slow)
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := monitor.Start(cfg.Metrics.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.Error("health monitor", "error", err)
			}
		}()
		defer func() {
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = monitor.Stop(shutdown)
		}()
	}

	runner := bench.NewRunner(cfg.Bench.Seed, cfg.Bench.Scale)
	runner.Iterations = *iterations
	runner.Recorder = monitor
	runner.OnResult = monitor.RecordResult
	logger.Log.Info("benchmark starting", "kernels", len(kernels), "seed", cfg.Bench.Seed, "scale", cfg.Bench.Scale)

	results, runErr := runner.RunAll(ctx, kernels)

	if err := report(results); err != nil {
		logger.Log.Error("write results", "error", err)
	}
	cli.Finish(context.WithoutCancel(ctx), cfg, nil)
	if runErr != nil {
		cli.Fatal("benchmark", runErr)
	}
}

func report(results []bench.Result) error {
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, r := range results {
		if _, err := fmt.Printf("%-12s %8d/%-8d total %10.3fs  mean %10.4fms  p95 %10.4fms  %12.1f it/s\n",
			r.Kernel, r.Completed, r.Iterations, r.TotalSeconds, r.MeanMs, r.P95Ms, r.PerSecond); err != nil {
			return err
		}
	}
	return nil
}
