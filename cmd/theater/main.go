package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"

	"github.com/zsiec/theater/internal/app"
	"github.com/zsiec/theater/internal/config"
	"github.com/zsiec/theater/internal/logger"
	"github.com/zsiec/theater/internal/server"
	"github.com/zsiec/theater/internal/simhost"
	"github.com/zsiec/theater/internal/videoconfig"
	"github.com/zsiec/theater/pkg/version"
)

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "configs/theater.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	base, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Base(base)

	log.WithField("version", version.GetInfo().Short()).Info("Starting theater sync engine")
	log.WithField("config_path", configPath).Debug("Configuration loaded")
	if version.GetInfo().IsDev() {
		log.Warn("Running an unversioned development build")
	}

	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics, log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	}()

	fs := afero.NewOsFs()
	seedLoader := videoconfig.NewLoader(fs, &cfg.Plugin, videoconfig.NewCache(), log)
	level, videoPath, err := simhost.Seed(fs, seedLoader, cfg)
	if err != nil {
		base.WithError(err).Fatal("Failed to prepare demo level")
	}

	host := simhost.New(&cfg.Simulation, level, videoPath, log)
	engine, err := app.New(ctx, cfg, log, host.AppHost(), app.Options{Fs: fs, WatchConfigs: true})
	if err != nil {
		base.WithError(err).Fatal("Failed to create playback engine")
	}
	defer engine.Close()
	go engine.Run(ctx)

	var srv *server.Server
	srvErr := make(chan error, 1)
	if cfg.Server.Enabled {
		srv = server.New(&cfg.Server, log, engine.Health(), engine)
		go func() { srvErr <- srv.Start(ctx) }()
	}

	host.Start(engine)
	runTicks(ctx, host, cfg.Simulation.TickRate, srvErr, log)
	cancel()

	if srv != nil {
		if err := <-srvErr; err != nil {
			log.WithError(err).Error("Status server error")
		}
	}

	log.WithField("rounds", host.Rounds()).Info("Shutdown complete")
}

// runTicks drives the simulated game at rate ticks per second until ctx is
// done, the session ends or the status server fails.
func runTicks(ctx context.Context, host *simhost.Host, rate int, srvErr chan error, log logger.Logger) {
	if rate <= 0 {
		rate = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-srvErr:
			// Hand the result back for the shutdown path.
			srvErr <- err
			return
		case now := <-ticker.C:
			host.Step(now.Sub(last))
			last = now
			if host.Done() {
				log.Info("Simulated session finished")
				return
			}
		}
	}
}

func startMetricsServer(cfg config.MetricsConfig, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.WithField("addr", addr).Info("Starting metrics server")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("Metrics server error")
	}
}
