package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundtrip(t *testing.T) {
	// Load resolves env vars; keep them out of the comparison.
	t.Setenv("ROOKERY_DB_PATH", "")
	t.Setenv("ROOKERY_SOURCE_DIR", "")
	t.Setenv("METRICS_ADDR", "")
	path := filepath.Join(t.TempDir(), "conf", "rookery.yaml")

	cfg := Default()
	cfg.Schedule.SampleSize = 3
	cfg.Collector.SourceDir = "/data/exports"
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	ok := Default()
	require.NoError(t, ok.Validate())

	bad := Default()
	bad.Schedule.WindowStartHour = -1
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.Schedule.WindowEndHour = 25
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.Schedule.WindowStartHour = 12
	bad.Schedule.WindowEndHour = 12
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.Schedule.SampleSize = -1
	assert.Error(t, bad.Validate())
}

func TestWindowFallsBackToUTC(t *testing.T) {
	cfg := Default()
	cfg.Schedule.Timezone = "Not/AZone"
	assert.Equal(t, time.UTC, cfg.Window().Loc)

	cfg.Schedule.Timezone = "America/New_York"
	assert.Equal(t, "America/New_York", cfg.Window().Loc.String())
}

func TestResolveEnv(t *testing.T) {
	t.Setenv("ROOKERY_DB_PATH", "/tmp/other.db")
	t.Setenv("ROOKERY_SOURCE_DIR", "/tmp/exports")

	cfg := Default()
	cfg.ResolveEnv()
	assert.Equal(t, "/tmp/other.db", cfg.Storage.DBPath)
	assert.Equal(t, "/tmp/exports", cfg.Collector.SourceDir)
}

func TestTaskCeilingDefault(t *testing.T) {
	cfg := Default()
	cfg.Collector.TaskCeilingMinutes = 0
	assert.Equal(t, 20*time.Minute, cfg.TaskCeiling())
	cfg.Collector.TaskCeilingMinutes = 5
	assert.Equal(t, 5*time.Minute, cfg.TaskCeiling())
}
