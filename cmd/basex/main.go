// Command basex manages databases, documents and queries of a BaseX server
// through its REST interface.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"stealthcompany.com/basex/internal/config"
	"stealthcompany.com/basex/internal/lifecycle"
	"stealthcompany.com/basex/internal/metrics"
	"stealthcompany.com/basex/pkg/basex"
	"stealthcompany.com/basex/pkg/zerolog_config"
)

const systemMetricsInterval = 15 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("basex", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML, TOML or JSON configuration file")
	envFile := fs.String("env-file", "", "path to a .env file (default ../.env, then .env)")
	url := fs.String("url", "", "BaseX REST root, overrides BASEX_URL")
	database := fs.String("db", "", "default database, overrides BASEX_DATABASE")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: basex [flags] <command> [args]\n\nCommands:\n%s\nFlags:\n", commandUsage())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cmd, err := lookupCommand(fs.Args())
	if err != nil {
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return exitCode(err)
	}

	var files []string
	if *configPath != "" {
		files = append(files, *configPath)
	}
	cfg, err := config.Load(*envFile, files...)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if *url != "" {
		cfg.URL = *url
	}
	if *database != "" {
		cfg.Database = *database
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	level, _ := cfg.LogLevel()
	logger := zerolog_config.Startup(zerolog_config.Options{
		App:              "basex",
		Level:            level,
		ElasticsearchURL: cfg.Log.ElasticsearchURL,
		Index:            cfg.Log.Index,
		Console:          stderr,
	})

	sh := lifecycle.NewSignalHandler()
	defer sh.Stop()
	ctx := sh.HandleSignals(context.Background())

	timeout, _ := cfg.TimeoutDuration()
	opts := []basex.Option{
		basex.WithDefaultDatabase(cfg.Database),
		basex.WithCredentials(cfg.User, cfg.Password),
		basex.WithLogger(logger),
		basex.WithTimeout(timeout),
	}

	if cfg.MetricsAddr != "" {
		metricsOpts, stop, err := startMetrics(ctx, cfg.MetricsAddr, timeout, logger)
		if err != nil {
			logger.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("Failed to start metrics server")
			return 1
		}
		defer stop()
		opts = append(opts, metricsOpts...)
	}

	client := basex.New(cfg.URL, opts...)
	err = client.WithSession(func(c *basex.Client) error {
		return cmd.run(ctx, c, fs.Args()[1:], stdout)
	})
	if err != nil {
		logger.Error().Err(err).Str("command", fs.Arg(0)).Msg("Command failed")
	}
	return exitCode(err)
}

// startMetrics serves /metrics on addr and returns the client options that
// feed it. stop shuts the server down.
func startMetrics(ctx context.Context, addr string, timeout time.Duration, logger zerolog.Logger) ([]basex.Option, func(), error) {
	mm := metrics.NewMetricsManager()
	cm := metrics.NewClientMetrics(mm.Registry())

	svcCtx, cancel := context.WithCancel(ctx)
	mux := http.NewServeMux()
	mux.Handle("/metrics", mm.Handler())
	svc, err := lifecycle.StartService(svcCtx, "metrics", addr, mux)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	mm.StartSystemMetrics(svcCtx, systemMetricsInterval)
	logger.Info().Str("addr", svc.Addr()).Msg("Serving metrics")

	transport := http.DefaultTransport.(*http.Transport).Clone()
	opts := []basex.Option{
		basex.WithObserver(cm),
		basex.WithHTTPClient(&http.Client{
			Transport: cm.InstrumentTransport(transport),
			Timeout:   timeout,
		}),
	}
	stop := func() {
		cancel()
		svc.Wait()
	}
	return opts, stop, nil
}
