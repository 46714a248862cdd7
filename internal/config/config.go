// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load(ctx) layers defaults, an optional YAML file and SORTIE_* env vars.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8090".
	Addr string `koanf:"addr"`

	// StoreDriver selects the record store backend: memory, sqlite or mongo.
	StoreDriver string `koanf:"store_driver"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// MongoURI and MongoDatabase configure the mongo driver.
	MongoURI      string `koanf:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database"`

	// DefaultGroup is assigned to imported members whose group cell is blank.
	DefaultGroup string `koanf:"default_group"`

	// DefaultLocation and DefaultMeetingTime are stamped on events
	// machine-created during an import.
	DefaultLocation    string `koanf:"default_location"`
	DefaultMeetingTime string `koanf:"default_meeting_time"`

	// WriteDelayMS paces successive record store writes.
	WriteDelayMS int `koanf:"write_delay_ms"`

	// WriterCount sets the number of write pump workers.
	WriterCount int `koanf:"writer_count"`

	// QueueSize bounds the in-memory write queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize bounds the request-id deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":8090",
		StoreDriver:        "memory",
		SQLitePath:         "sortie.db",
		MongoURI:           "mongodb://localhost:27017",
		MongoDatabase:      "sortie",
		DefaultGroup:       "Route",
		DefaultLocation:    "départ club",
		DefaultMeetingTime: "08:30",
		WriteDelayMS:       250,
		WriterCount:        runtime.NumCPU(),
		QueueSize:          10_000,
		DedupeSize:         10_000,
	}
}
