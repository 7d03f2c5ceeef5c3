package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "downloads", cfg.OutputDir)
	require.Equal(t, 5, cfg.Fetch.Concurrency)
	require.Equal(t, 5, cfg.Fetch.Retries)
	require.Equal(t, ResumeStrict, cfg.Resume.Mode)
	require.Equal(t, "file", cfg.Resume.Provider)
	require.True(t, cfg.Fetch.Validate)
	require.Equal(t, 60*time.Second, cfg.RequestTimeout())
	require.Equal(t, time.Second, cfg.MinDelay())
	require.Equal(t, 3*time.Second, cfg.MaxDelay())
	require.Equal(t, 20*time.Minute, cfg.BlockPause())
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
output_dir: /tmp/pdfs
fetch:
  concurrency: 2
  min_delay_ms: 500
  max_delay_ms: 1500
  block_markers:
    - "Access Denied"
    - "Request unsuccessful"
resume:
  mode: fast
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/pdfs", cfg.OutputDir)
	require.Equal(t, 2, cfg.Fetch.Concurrency)
	require.Equal(t, ResumeFast, cfg.Resume.Mode)
	require.Len(t, cfg.Fetch.BlockMarkers, 2)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errStr string
	}{
		{"missing output dir", func(c *Config) { c.OutputDir = "" }, "output_dir"},
		{"zero concurrency", func(c *Config) { c.Fetch.Concurrency = 0 }, "concurrency"},
		{"inverted delays", func(c *Config) { c.Fetch.MaxDelayMs = 10; c.Fetch.MinDelayMs = 20 }, "max_delay_ms"},
		{"short block pause", func(c *Config) { c.Fetch.BlockPauseSec = 30 }, "block_pause_seconds"},
		{"bad resume mode", func(c *Config) { c.Resume.Mode = "sometimes" }, "resume.mode"},
		{"postgres without dsn", func(c *Config) { c.Resume.Provider = "postgres" }, "resume.dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errStr)
		})
	}
}
