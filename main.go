package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"cloudgenerator/cloud"
	"cloudgenerator/config"
	"cloudgenerator/internal/logging"
	"cloudgenerator/internal/metrics"
	"cloudgenerator/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "cloudgenerator: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("cloudgenerator", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "Settings file (.json, .yaml); defaults to settings.json if present")
		outPath    = fs.String("out", "", "Output OBJ path (overrides settings)")
		seed       = fs.String("seed", "", "Random seed (overrides settings)")
		serve      = fs.Bool("serve", false, "Start the preview server after exporting")
		port       = fs.Int("port", 0, "Preview server port (overrides settings)")
		logLevel   = fs.String("log-level", "", "debug, info, warn or error (overrides settings)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, err := config.Load(*configPath, nil)
	if err != nil {
		return err
	}
	if *outPath != "" {
		settings.Output.Path = *outPath
	}
	if *seed != "" {
		n, err := strconv.ParseUint(*seed, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid -seed %q: %w", *seed, err)
		}
		settings.Cloud.Seed = n
	}
	if *serve {
		settings.Server.Enabled = true
	}
	if *port != 0 {
		settings.Server.Port = *port
	}
	if *logLevel != "" {
		settings.Log.Level = *logLevel
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	logger, err := logging.New(settings.Log)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("generating cloud",
		zap.Uint64("seed", settings.Cloud.Seed),
		zap.Int("spheres", len(settings.Cloud.Spheres)),
		zap.Int("approx_vertices", settings.ApproximateVertexCount()),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg, "cloudgen", logger)
	generator := cloud.New(logger, collector)

	stats, err := generator.Run(settings.CloudSpec(), settings.Output.Path, settings.ObjOptions())
	if err != nil {
		logger.Error("generation failed", zap.Error(err))
		return err
	}
	logger.Info("done",
		zap.String("path", settings.Output.Path),
		zap.Int("vertices", stats.Vertices),
		zap.Int("faces", stats.Faces),
		zap.Float64s("bounds_min", stats.Bounds.Min[:]),
		zap.Float64s("bounds_max", stats.Bounds.Max[:]),
	)

	if !settings.Server.Enabled {
		return nil
	}

	srv, err := server.New(settings, generator, logger, collector, reg)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
