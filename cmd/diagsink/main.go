package main

import (
	"context"
	"flag"

	"github.com/23skdu/longbow-sysdiag/internal/cli"
	"github.com/23skdu/longbow-sysdiag/internal/flightsink"
	"github.com/23skdu/longbow-sysdiag/internal/logger"
)

var listen = flag.String("listen", "localhost:8815", "Address for the Flight server")

func main() {
	flags := cli.Register(flag.CommandLine)
	flag.Parse()

	cfg, err := flags.Setup()
	if err != nil {
		cli.Fatal("load configuration", err)
	}
	ctx, stop := cli.Context()
	defer stop()
	metricsSrv := cli.ServeMetrics(cfg.Metrics.Listen)

	srv := flightsink.NewServer(flightsink.DirSink{Dir: cfg.Output.Dir})
	if err := srv.Listen(*listen); err != nil {
		cli.Fatal("listen", err)
	}
	logger.Log.Info("flight sink listening", "addr", srv.Addr().String(), "dir", cfg.Output.Dir)

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve() }()

	select {
	case <-ctx.Done():
		logger.Log.Info("interrupt received, shutting down")
		srv.Shutdown()
	case err := <-errc:
		if err != nil {
			cli.Fatal("serve", err)
		}
	}
	cli.Finish(context.WithoutCancel(ctx), cfg, metricsSrv)
}
