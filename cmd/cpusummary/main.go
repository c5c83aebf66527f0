package main

import (
	"flag"
	"os"

	"github.com/23skdu/longbow-sysdiag/internal/cli"
	"github.com/23skdu/longbow-sysdiag/internal/logger"
	"github.com/23skdu/longbow-sysdiag/internal/pipeline"
	"github.com/23skdu/longbow-sysdiag/internal/prompt"
)

const tool = "cpusummary"

var perCore = flag.Bool("per-core", false, "Append per-core utilization averages")

func main() {
	flags := cli.Register(flag.CommandLine)
	flag.Parse()

	cfg, err := flags.Setup()
	if err != nil {
		cli.Fatal("load configuration", err)
	}
	if *perCore {
		cfg.Output.PerCore = true
	}
	ctx, stop := cli.Context()
	defer stop()
	srv := cli.ServeMetrics(cfg.Metrics.Listen)

	prefix, err := prompt.Name(cfg.Output.Name, os.Stdin, os.Stdout, "Output file prefix: ")
	if err != nil {
		cli.Fatal("output prefix", err)
	}

	out, err := pipeline.CPUSummary(ctx, cfg, cfg.Output.PerCore)
	if err != nil {
		cli.Fatal("summarise cpu", err)
	}

	if err := cli.Publish(ctx, cfg, tool, prefix+pipeline.SummaryName, out); err != nil {
		cli.Fatal("write table", err)
	}

	cli.Finish(ctx, cfg, srv)
	logger.Log.Info("done", "tool", tool, "rows", out.Len(), "per_core", cfg.Output.PerCore)
}
