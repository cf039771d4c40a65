// Package config provides application settings loaded from environment
// variables and per-job configuration loaded from YAML.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
//
// Job configuration lives in <ConfigDir>/jobs/<job>/config.yaml and is
// loaded with LoadJobConfig.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Default directory locations, relative to the working directory.
const (
	DefaultConfigDir   = "./.kronologi"
	DefaultActivityDir = "./activity"
	DefaultSummaryDir  = "./summary"
	DefaultContextDir  = "./context"
	DefaultDBPath      = ""
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// Default history and summary depths, per period type.
const (
	DefaultHistoryMonths = 3
	DefaultSummaryMonths = 2
	DefaultHistoryWeeks  = 4
	DefaultSummaryWeeks  = 3
)

// DefaultMaxFileSize is the largest file tools may read, in bytes.
const DefaultMaxFileSize = 1024 * 1024

// Settings holds all application configuration.
type Settings struct {
	Dirs    DirConfig
	Log     LogConfig
	Storage StorageConfig
}

// DirConfig holds the directories a run reads from and writes to.
type DirConfig struct {
	Config   string
	Activity string
	Summary  string
	Context  string
}

// JobDir returns the configuration directory of one job.
func (d DirConfig) JobDir(job string) string {
	return filepath.Join(d.Config, "jobs", job)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig holds transcript storage and tool sandbox configuration.
type StorageConfig struct {
	// DBPath is the SQLite transcript database. Empty disables transcripts.
	DBPath      string
	MaxFileSize int64
}

// New creates settings, loading values from environment variables.
// Returns an error if environment variables contain invalid values.
func New() (Settings, error) {
	maxFileSize, err := getEnvInt64("KRONOLOGI_MAX_FILE_SIZE", DefaultMaxFileSize)
	if err != nil {
		return Settings{}, err
	}
	if maxFileSize <= 0 {
		return Settings{}, fmt.Errorf("invalid value for KRONOLOGI_MAX_FILE_SIZE: %d: must be positive", maxFileSize)
	}

	level := strings.ToLower(getEnv("KRONOLOGI_LOG_LEVEL", DefaultLogLevel))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return Settings{}, fmt.Errorf("invalid value for KRONOLOGI_LOG_LEVEL: %q", level)
	}

	format := strings.ToLower(getEnv("KRONOLOGI_LOG_FORMAT", DefaultLogFormat))
	if format != "text" && format != "json" {
		return Settings{}, fmt.Errorf("invalid value for KRONOLOGI_LOG_FORMAT: %q", format)
	}

	return Settings{
		Dirs: DirConfig{
			Config:   getEnv("KRONOLOGI_CONFIG_DIR", DefaultConfigDir),
			Activity: getEnv("KRONOLOGI_ACTIVITY_DIR", DefaultActivityDir),
			Summary:  getEnv("KRONOLOGI_SUMMARY_DIR", DefaultSummaryDir),
			Context:  getEnv("KRONOLOGI_CONTEXT_DIR", DefaultContextDir),
		},
		Log: LogConfig{
			Level:  level,
			Format: format,
		},
		Storage: StorageConfig{
			DBPath:      getEnv("KRONOLOGI_DB", DefaultDBPath),
			MaxFileSize: maxFileSize,
		},
	}, nil
}

// MustNew creates settings.
// Panics if environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew() Settings {
	settings, err := New()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// Environment variable helpers with proper error handling

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}
