// Package cli holds the flags and process wiring shared by the command line
// tools.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/23skdu/longbow-sysdiag/internal/config"
	"github.com/23skdu/longbow-sysdiag/internal/flightsink"
	"github.com/23skdu/longbow-sysdiag/internal/logger"
	"github.com/23skdu/longbow-sysdiag/internal/metrics"
	"github.com/23skdu/longbow-sysdiag/internal/pipeline"
	"github.com/23skdu/longbow-sysdiag/internal/table"
)

// Flags are the options every tool accepts. Non-empty values override the
// configuration file.
type Flags struct {
	Config    string
	Out       string
	Dir       string
	LogLevel  string
	LogFormat string
	Flight    string
	Push      string
	Metrics   string
}

// Register binds the common flags to fs.
func Register(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to YAML configuration file")
	fs.StringVar(&f.Out, "out", "", "Output file name (prompted for when empty)")
	fs.StringVar(&f.Dir, "dir", "", "Output directory")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFormat, "log-format", "", "Log format (console or json)")
	fs.StringVar(&f.Flight, "flight", "", "Flight sink address to upload tables to")
	fs.StringVar(&f.Push, "push", "", "Pushgateway URL")
	fs.StringVar(&f.Metrics, "metrics", "", "Address to serve Prometheus metrics")
	return f
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Setup loads the configuration, applies the flags and configures logging.
func (f *Flags) Setup() (*config.Config, error) {
	cfg, err := config.Load(f.Config)
	if err != nil {
		return nil, err
	}
	override(&cfg.Output.Name, f.Out)
	override(&cfg.Output.Dir, f.Dir)
	override(&cfg.Log.Level, f.LogLevel)
	override(&cfg.Log.Format, f.LogFormat)
	override(&cfg.Flight.Addr, f.Flight)
	override(&cfg.Metrics.PushURL, f.Push)
	override(&cfg.Metrics.Listen, f.Metrics)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

// Context returns a context cancelled on SIGINT or SIGTERM.
func Context() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ServeMetrics serves /metrics on addr in the background. It returns nil
// when addr is empty.
func ServeMetrics(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Log.Info("metrics serving", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("metrics server", "error", err)
		}
	}()
	return srv
}

// OpenSink returns a sink writing CSV into the output directory, uploading
// to the Flight sink as well when one is configured. The returned function
// releases the connection.
func OpenSink(ctx context.Context, cfg *config.Config) (flightsink.Sink, func(), error) {
	dir := flightsink.DirSink{Dir: cfg.Output.Dir}
	if cfg.Flight.Addr == "" {
		return dir, func() {}, nil
	}
	client, err := flightsink.NewClient(cfg.Flight.Addr)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := client.Close(); err != nil {
			logger.Log.Warn("close flight client", "error", err)
		}
	}
	return flightsink.Multi{dir, client}, release, nil
}

var openSink = OpenSink

// Publish writes t under name to the configured sinks. The Flight
// connection, if any, is closed before Publish returns, also on failure.
func Publish(ctx context.Context, cfg *config.Config, tool, name string, t *table.Table) error {
	sink, release, err := openSink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open sink: %w", err)
	}
	defer release()
	return pipeline.Publish(ctx, sink, tool, name, t)
}

// Finish pushes the collected metrics when a Pushgateway is configured and
// stops the metrics server.
func Finish(ctx context.Context, cfg *config.Config, srv *http.Server) {
	if err := metrics.Push(ctx, cfg.Metrics.PushURL, cfg.Metrics.Job); err != nil {
		logger.Log.Warn("metrics push failed", "url", cfg.Metrics.PushURL, "error", err)
	}
	if srv != nil {
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			logger.Log.Warn("metrics server shutdown", "error", err)
		}
	}
}

// Fatal logs err and exits non-zero.
func Fatal(msg string, err error) {
	logger.Log.Error(msg, "error", err)
	os.Exit(1)
}
