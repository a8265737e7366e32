// Package config loads the process configuration from a YAML file with
// sensible defaults for a single-binary deployment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/orgdesk/modelgate/internal/store"
	"github.com/orgdesk/modelgate/internal/util"
)

// DefaultConfigPath is used when no path is given on the command line.
const DefaultConfigPath = "config.yaml"

// Config is the full process configuration.
type Config struct {
	// Listen is the HTTP bind address.
	Listen string `yaml:"listen"`

	Database DatabaseConfig `yaml:"database"`

	// DataDir anchors relative data paths (database file, legacy log,
	// report archive).
	DataDir string `yaml:"data-dir"`

	// LegacyUsageFile is the old flat-file usage log imported on first
	// startup.
	LegacyUsageFile string `yaml:"legacy-usage-file"`

	// LegacyImportGuard selects the import gate: "rowcount" (historical
	// behavior, runs when the table is empty) or "marker" (persisted
	// completion row, safe when several processes race startup).
	LegacyImportGuard string `yaml:"legacy-import-guard"`

	// ArchiveDir receives copies of exported reports.
	ArchiveDir string `yaml:"archive-dir"`

	// RequestTimeoutSeconds bounds each outbound model call.
	RequestTimeoutSeconds int `yaml:"request-timeout-seconds"`

	Log LogConfig `yaml:"log"`
}

// DatabaseConfig selects the usage store backend by DSN.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// LogConfig controls log output and rotation.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// Load reads the configuration file at path. A missing file yields the
// defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath
	}
	raw, errRead := os.ReadFile(path)
	if errRead != nil && !os.IsNotExist(errRead) {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(raw, cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Listen) == "" {
		c.Listen = ":8317"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		if writable := util.WritablePath(); writable != "" {
			c.DataDir = filepath.Join(writable, "data")
		} else {
			c.DataDir = "data"
		}
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		c.Database.DSN = filepath.Join(c.DataDir, "app.db")
	}
	if strings.TrimSpace(c.LegacyUsageFile) == "" {
		c.LegacyUsageFile = filepath.Join(c.DataDir, "usage.json")
	}
	if strings.TrimSpace(c.LegacyImportGuard) == "" {
		c.LegacyImportGuard = store.GuardRowCount
	}
	if strings.TrimSpace(c.ArchiveDir) == "" {
		c.ArchiveDir = filepath.Join(c.DataDir, "dept-reports")
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = 60
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) applyEnvOverrides() {
	if dsn := strings.TrimSpace(os.Getenv("MODELGATE_DSN")); dsn != "" {
		c.Database.DSN = dsn
	}
	if listen := strings.TrimSpace(os.Getenv("MODELGATE_LISTEN")); listen != "" {
		c.Listen = listen
	}
}
