package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 11, cfg.Beds.Count)
	assert.Equal(t, 11, cfg.Beds.TractionBed)
	assert.Equal(t, "queue", cfg.Session.Scheduling)
	assert.Equal(t, time.Second, cfg.Session.Tick)
	assert.Equal(t, 5*time.Second, cfg.Sync.SuppressionWindow)
	assert.Equal(t, 12*time.Hour, cfg.Sync.ZombieMaxAge)
	assert.Equal(t, "physiotrack-beds-v1", cfg.Sync.StorageKey)
	assert.Equal(t, 3*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, "physiotrack:beds", cfg.Redis.Channel)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, 3600, cfg.Push.TTL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
beds:
  count: 4
session:
  scheduling: linear
  tick_millis: 250
sync:
  suppression_window_millis: 2000
  zombie_max_age_hours: 6
  storage_key: beds-v2
database:
  enabled: true
  driver: sqlite
  dsn: "file::memory:"
redis:
  enabled: true
  addr: "localhost:6379"
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  topic_prefix: clinic
alarm:
  sound_enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Beds.Count)
	assert.Equal(t, 4, cfg.Beds.TractionBed, "traction follows the last bed")
	assert.Equal(t, "linear", cfg.Session.Scheduling)
	assert.Equal(t, 250*time.Millisecond, cfg.Session.Tick)
	assert.Equal(t, 2*time.Second, cfg.Sync.SuppressionWindow)
	assert.Equal(t, 6*time.Hour, cfg.Sync.ZombieMaxAge)
	assert.Equal(t, "beds-v2", cfg.Sync.StorageKey)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "clinic", cfg.MQTT.TopicPrefix)
	assert.True(t, cfg.Alarm.SoundEnabled)
}

func TestLoad_TractionBed(t *testing.T) {
	cfg, err := Load(writeConfig(t, "beds:\n  count: 8\n  traction_bed: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Beds.TractionBed)

	cfg, err = Load(writeConfig(t, "beds:\n  count: 8\n  traction_bed: -1\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Beds.TractionBed)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
