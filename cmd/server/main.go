// Command server boots the attribute collection engine: it loads a
// device catalogue, builds the engine, starts the HTTP control
// surface, and runs until interrupted, matching the teacher's
// cmd/server/main.go boot/run/shutdown sequence.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pv/attrengine/internal/config"
	"github.com/pv/attrengine/internal/device"
	"github.com/pv/attrengine/internal/device/sm"
	"github.com/pv/attrengine/internal/device/uwsgate"
	"github.com/pv/attrengine/internal/engine"
	"github.com/pv/attrengine/internal/logger"
	"github.com/pv/attrengine/internal/metrics"
	"github.com/pv/attrengine/internal/rpc"
	"github.com/pv/attrengine/internal/sensorconfig"
	"github.com/pv/attrengine/internal/sink"
	"github.com/pv/attrengine/internal/ts"
)

func main() {
	logger.Init("text", slog.LevelInfo)
	log := logger.Log

	cfg := config.Parse()

	devices, err := config.LoadDevicesFromYAML(cfg.DevicesFile)
	if err != nil {
		log.Error("failed to load devices", "error", err)
		os.Exit(1)
	}

	var sensorCfg *sensorconfig.SensorConfig
	if cfg.SensorConfigFile != "" {
		sensorCfg, err = sensorconfig.LoadFromFile(cfg.SensorConfigFile)
		if err != nil {
			log.Error("failed to load sensor config", "error", err)
			os.Exit(1)
		}
		specs := sensorCfg.ToAttributeSpecs()
		for i := range devices {
			devices = config.MergeSensorConfig(devices, devices[i].Name, specs)
		}
	}

	var snk sink.PersistentSink
	switch cfg.Sink {
	case config.SinkSQLite:
		snk, err = sink.NewSQLite(cfg.SQLitePath)
		if err != nil {
			log.Error("failed to open sqlite sink", "error", err)
			os.Exit(1)
		}
		log.Info("using sqlite persistent sink", "path", cfg.SQLitePath)
	default:
		snk = sink.NewMemory()
		log.Info("using in-memory persistent sink")
	}
	defer snk.Close()

	registry := device.NewRegistry()
	registry.Register("sm", sm.Factory{})
	registry.Register("uwsgate", uwsgate.Factory{Logger: log})

	metricsRegistry := metrics.New(prometheus.DefaultRegisterer)

	builder := &engine.Builder{
		Registry:         registry,
		Sink:             snk,
		Metrics:          metricsRegistry,
		Logger:           log,
		Clock:            &ts.Clock{},
		PersistThreshold: cfg.PersistThreshold,
		UpdateThreshold:  cfg.UpdateThreshold,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := builder.Build(ctx, devices)
	if err != nil {
		log.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	if failed := eng.FailedAttributes(); len(failed) > 0 {
		log.Warn("some attributes could not be resolved", "attributes", failed)
	}

	if err := eng.Start(ctx, engine.ModeLightPoll); err != nil {
		log.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	router := rpc.NewHandlers(eng, sensorCfg).Router()
	router.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := rpc.NewServer(addr, router, os.Stderr)

	go func() {
		log.Info("starting control surface", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil {
			log.Error("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := eng.Stop(stopCtx); err != nil {
		log.Error("engine stop error", "error", err)
	}

	if err := rpc.Shutdown(context.Background(), httpServer, 10*time.Second); err != nil {
		log.Error("server shutdown error", "error", err)
	}

	log.Info("stopped")
}
