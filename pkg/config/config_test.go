package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.True(t, cfg.Tracking.Enabled)
	assert.False(t, cfg.Tracking.Async)
	assert.True(t, cfg.Tracking.Silent)
	assert.Equal(t, DetailModeOptIn, cfg.Tracking.Detail.Mode)
	assert.True(t, cfg.Tracking.Detail.Dedup)
	assert.Equal(t, 90, cfg.Tracking.Retention.SummaryDays)
	assert.Equal(t, 30, cfg.Tracking.Retention.DetailDays)
	assert.Equal(t, "tracker:access", cfg.Tracking.Queue.Name)
	assert.Equal(t, 3, cfg.Tracking.Queue.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Tracking.Queue.TaskTimeout)
	assert.Equal(t, 2, cfg.Tracking.Mapping.AutoExtractSegment)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
tracking:
  enabled: false
  detail:
    mode: all
    dedup: false
  exclude:
    - "regex:^health"
    - metrics
  module_mapping:
    auto_extract_segment: 1
    patterns:
      - pattern: "parent/look-up"
        target: "parents.lookup|Parent Lookup"
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.False(t, cfg.Tracking.Enabled)
	assert.Equal(t, DetailModeAll, cfg.Tracking.Detail.Mode)
	assert.False(t, cfg.Tracking.Detail.Dedup)
	assert.Equal(t, []string{"regex:^health", "metrics"}, cfg.Tracking.Exclude)
	assert.Equal(t, 1, cfg.Tracking.Mapping.AutoExtractSegment)
	require.Len(t, cfg.Tracking.Mapping.Patterns, 1)
	assert.Equal(t, "parent/look-up", cfg.Tracking.Mapping.Patterns[0].Pattern)
	assert.Equal(t, "parents.lookup|Parent Lookup", cfg.Tracking.Mapping.Patterns[0].Target)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("TRACKER_ENABLED", "false")
	t.Setenv("TRACKER_ASYNC", "1")
	t.Setenv("TRACKER_DETAIL_MODE", "all")
	t.Setenv("TRACKER_QUEUE", "custom:queue")
	t.Setenv("DB_PORT", "5433")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.False(t, cfg.Tracking.Enabled)
	assert.True(t, cfg.Tracking.Async)
	assert.Equal(t, DetailModeAll, cfg.Tracking.Detail.Mode)
	assert.Equal(t, "custom:queue", cfg.Tracking.Queue.Name)
	assert.Equal(t, 5433, cfg.Database.Port)
}
