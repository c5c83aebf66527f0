package main

import (
	"flag"
	"os"

	"github.com/23skdu/longbow-sysdiag/internal/cli"
	"github.com/23skdu/longbow-sysdiag/internal/logger"
	"github.com/23skdu/longbow-sysdiag/internal/pipeline"
	"github.com/23skdu/longbow-sysdiag/internal/prompt"
)

const tool = "preprocess"

func main() {
	flags := cli.Register(flag.CommandLine)
	flag.Parse()

	cfg, err := flags.Setup()
	if err != nil {
		cli.Fatal("load configuration", err)
	}
	ctx, stop := cli.Context()
	defer stop()
	srv := cli.ServeMetrics(cfg.Metrics.Listen)

	name, err := prompt.Name(cfg.Output.Name, os.Stdin, os.Stdout, "Output file name: ")
	if err != nil {
		cli.Fatal("output name", err)
	}

	out, err := pipeline.Preprocess(ctx, cfg)
	if err != nil {
		cli.Fatal("preprocess", err)
	}

	if err := cli.Publish(ctx, cfg, tool, name, out); err != nil {
		cli.Fatal("write table", err)
	}

	cli.Finish(ctx, cfg, srv)
	logger.Log.Info("done", "tool", tool, "rows", out.Len(), "gram_mib", cfg.GPU.MemoryMiB)
}
