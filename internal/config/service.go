// Package config loads the engine's process-level settings (via flag,
// grounded on the teacher's internal/config/config.go) and its
// device/attribute catalogue (via YAML, and optionally an XML
// ObjectsMap, grounded on internal/sensorconfig).
package config

import (
	"flag"
	"time"
)

// SinkType selects which PersistentSink implementation the engine uses.
type SinkType string

const (
	SinkMemory SinkType = "memory"
	SinkSQLite SinkType = "sqlite"
)

// ServiceConfig is the process-level configuration, grounded on the
// teacher's Config/Parse, generalized from a single UniSet2 URL to a
// devices-file path and sink selection.
type ServiceConfig struct {
	DevicesFile      string
	SensorConfigFile string // optional XML ObjectsMap supplement
	Port             int
	Sink             SinkType
	SQLitePath       string
	PersistThreshold uint64
	UpdateThreshold  uint64
}

// Parse reads process flags into a ServiceConfig, matching the
// teacher's config.Parse shape.
func Parse() *ServiceConfig {
	cfg := &ServiceConfig{}

	flag.StringVar(&cfg.DevicesFile, "devices", "./devices.yaml", "Device and attribute catalogue (YAML)")
	flag.StringVar(&cfg.SensorConfigFile, "sensor-config", "", "Optional XML ObjectsMap attribute catalogue to merge in")
	flag.IntVar(&cfg.Port, "port", 8000, "Control surface HTTP port")

	var sinkStr string
	flag.StringVar(&sinkStr, "sink", "memory", "Persistent sink type: memory or sqlite")
	flag.StringVar(&cfg.SQLitePath, "sqlite-path", "./history.db", "SQLite database path")

	var persist, update int64
	flag.Int64Var(&persist, "persist-threshold", 1_000_000, "Values between persist-to-sink evictions")
	flag.Int64Var(&update, "update-threshold", 500_000, "Values between threshold-timestamp updates")

	flag.Parse()

	cfg.Sink = SinkType(sinkStr)
	if cfg.Sink != SinkMemory && cfg.Sink != SinkSQLite {
		cfg.Sink = SinkMemory
	}
	cfg.PersistThreshold = uint64(persist)
	cfg.UpdateThreshold = uint64(update)

	return cfg
}

// pollIntervalFallback matches the teacher's default poll-interval flag
// value. Nothing reads it: an attribute that omits a delay gets the
// engine Builder's own defaultDelay, which has the same value.
const pollIntervalFallback = 5 * time.Second
