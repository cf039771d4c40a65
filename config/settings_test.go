package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"KRONOLOGI_CONFIG_DIR", "KRONOLOGI_ACTIVITY_DIR", "KRONOLOGI_SUMMARY_DIR",
		"KRONOLOGI_CONTEXT_DIR", "KRONOLOGI_LOG_LEVEL", "KRONOLOGI_LOG_FORMAT",
		"KRONOLOGI_DB", "KRONOLOGI_MAX_FILE_SIZE",
	} {
		t.Setenv(key, "")
	}
}

func TestNewDefaults(t *testing.T) {
	clearEnv(t)

	settings, err := New()
	require.NoError(t, err)

	assert.Equal(t, DefaultConfigDir, settings.Dirs.Config)
	assert.Equal(t, DefaultActivityDir, settings.Dirs.Activity)
	assert.Equal(t, DefaultSummaryDir, settings.Dirs.Summary)
	assert.Equal(t, DefaultContextDir, settings.Dirs.Context)
	assert.Equal(t, "info", settings.Log.Level)
	assert.Equal(t, "text", settings.Log.Format)
	assert.Empty(t, settings.Storage.DBPath)
	assert.Equal(t, int64(DefaultMaxFileSize), settings.Storage.MaxFileSize)
}

func TestNewFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("KRONOLOGI_CONFIG_DIR", "/etc/kronologi")
	t.Setenv("KRONOLOGI_ACTIVITY_DIR", "/data/activity")
	t.Setenv("KRONOLOGI_LOG_LEVEL", "DEBUG")
	t.Setenv("KRONOLOGI_LOG_FORMAT", "json")
	t.Setenv("KRONOLOGI_DB", "/tmp/runs.db")
	t.Setenv("KRONOLOGI_MAX_FILE_SIZE", "2048")

	settings, err := New()
	require.NoError(t, err)

	assert.Equal(t, "/etc/kronologi", settings.Dirs.Config)
	assert.Equal(t, "/data/activity", settings.Dirs.Activity)
	assert.Equal(t, "debug", settings.Log.Level)
	assert.Equal(t, "json", settings.Log.Format)
	assert.Equal(t, "/tmp/runs.db", settings.Storage.DBPath)
	assert.Equal(t, int64(2048), settings.Storage.MaxFileSize)
	assert.Equal(t, "/etc/kronologi/jobs/monthly", settings.Dirs.JobDir("monthly"))
}

func TestNewInvalidValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"KRONOLOGI_MAX_FILE_SIZE", "lots", "invalid value for KRONOLOGI_MAX_FILE_SIZE"},
		{"KRONOLOGI_MAX_FILE_SIZE", "-1", "must be positive"},
		{"KRONOLOGI_LOG_LEVEL", "loud", "invalid value for KRONOLOGI_LOG_LEVEL"},
		{"KRONOLOGI_LOG_FORMAT", "xml", "invalid value for KRONOLOGI_LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := New()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMustNewPanicsOnInvalidEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("KRONOLOGI_LOG_LEVEL", "loud")

	assert.Panics(t, func() { MustNew() })
}
