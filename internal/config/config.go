// Package config provides configuration management for the Framecut Agent.
// Defaults are overlaid first by an optional YAML config file and then by
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 8791
	DefaultLogLevel = "info"
	DefaultDataDir  = ".framecut"

	// Environment variable names
	EnvPort       = "FRAMECUT_PORT"
	EnvLogLevel   = "FRAMECUT_LOG_LEVEL"
	EnvDataDir    = "FRAMECUT_DATA_DIR"
	EnvConfigFile = "FRAMECUT_CONFIG_FILE"
	EnvEngineBin  = "FRAMECUT_ENGINE_BIN"
	EnvHeadless   = "FRAMECUT_HEADLESS"

	// Database filename
	DBFilename = "framecut.db"

	// Engine defaults
	DefaultEngineCommandTimeout = 1800 // seconds, per engine invocation
	DefaultEngineLoadRetries    = 1    // extra attempts after a failed load

	// Export defaults
	DefaultExportContainer  = "mp4"
	DefaultExportVideoCodec = "libx264"
	DefaultExportAudioCodec = "aac"
	DefaultExportCRF        = 23
	DefaultExportPreset     = "medium"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	AssetsDir() string
	ThumbnailsDir() string
	EngineWorkspaceDir() string
	EngineBin() string
	EngineCommandTimeout() time.Duration
	EngineLoadRetries() int
	ExportContainer() string
	ExportVideoCodec() string
	ExportAudioCodec() string
	ExportCRF() int
	ExportPreset() string
	Headless() bool
}

// EnvConfig reads configuration from a YAML file and environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	headless bool

	engineBin            string
	engineCommandTimeout time.Duration
	engineLoadRetries    int

	exportContainer  string
	exportVideoCodec string
	exportAudioCodec string
	exportCRF        int
	exportPreset     string
}

// New creates a new EnvConfig with defaults, YAML file overrides, and
// environment variable overrides, in that order.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:                 DefaultPort,
		logLevel:             DefaultLogLevel,
		dataDir:              defaultDataDir(),
		engineCommandTimeout: DefaultEngineCommandTimeout * time.Second,
		engineLoadRetries:    DefaultEngineLoadRetries,
		exportContainer:      DefaultExportContainer,
		exportVideoCodec:     DefaultExportVideoCodec,
		exportAudioCodec:     DefaultExportAudioCodec,
		exportCRF:            DefaultExportCRF,
		exportPreset:         DefaultExportPreset,
	}

	path := os.Getenv(EnvConfigFile)
	if path == "" {
		path = filepath.Join(cfg.dataDir, "config.yaml")
	}
	if err := cfg.applyFile(path); err != nil {
		return nil, err
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if eb := os.Getenv(EnvEngineBin); eb != "" {
		cfg.engineBin = eb
	}

	if h := os.Getenv(EnvHeadless); h == "1" || h == "true" {
		cfg.headless = true
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// AssetsDir returns the directory holding ingested media copies and sidecars
func (c *EnvConfig) AssetsDir() string {
	return filepath.Join(c.dataDir, "assets")
}

// ThumbnailsDir returns the directory holding generated asset thumbnails
func (c *EnvConfig) ThumbnailsDir() string {
	return filepath.Join(c.dataDir, "thumbnails")
}

// EngineWorkspaceDir returns the sandbox directory backing the engine's
// virtual filesystem
func (c *EnvConfig) EngineWorkspaceDir() string {
	return filepath.Join(c.dataDir, "engine")
}

// EngineBin returns an explicit codec engine binary path, or empty for
// PATH lookup
func (c *EnvConfig) EngineBin() string {
	return c.engineBin
}

func (c *EnvConfig) EngineCommandTimeout() time.Duration {
	return c.engineCommandTimeout
}

func (c *EnvConfig) EngineLoadRetries() int {
	return c.engineLoadRetries
}

func (c *EnvConfig) ExportContainer() string {
	return c.exportContainer
}

func (c *EnvConfig) ExportVideoCodec() string {
	return c.exportVideoCodec
}

func (c *EnvConfig) ExportAudioCodec() string {
	return c.exportAudioCodec
}

func (c *EnvConfig) ExportCRF() int {
	return c.exportCRF
}

func (c *EnvConfig) ExportPreset() string {
	return c.exportPreset
}

func (c *EnvConfig) Headless() bool {
	return c.headless
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
