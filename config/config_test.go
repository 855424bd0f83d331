package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.PerPublisherCap)
	require.Equal(t, 3, cfg.MaxConcurrency)
	require.Equal(t, "all_books.json", cfg.SnapshotPath)
	require.Equal(t, "book_images", cfg.ImageDir)
	require.Equal(t, RenderBrowser, cfg.RenderMode)
	require.Equal(t, 90*time.Second, cfg.NavigationTimeout)
	require.Equal(t, 30*time.Second, cfg.FetchTimeout)
	require.Equal(t, 465, cfg.SMTPPort)
	require.Empty(t, cfg.Publishers)
	require.Empty(t, cfg.ArchiveDSN)
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PER_PUBLISHER_CAP", "5")
	t.Setenv("PUBLISHERS", "Tor Books,DAW Books")
	t.Setenv("RENDER_MODE", "static")
	t.Setenv("FETCH_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 5, cfg.PerPublisherCap)
	require.Equal(t, []string{"Tor Books", "DAW Books"}, cfg.Publishers)
	require.Equal(t, RenderStatic, cfg.RenderMode)
	require.Equal(t, 5*time.Second, cfg.FetchTimeout)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "zero cap", mutate: func(c *Config) { c.PerPublisherCap = 0 }},
		{name: "zero concurrency", mutate: func(c *Config) { c.MaxConcurrency = 0 }},
		{name: "bad render mode", mutate: func(c *Config) { c.RenderMode = "firefox" }},
		{name: "no snapshot path", mutate: func(c *Config) { c.SnapshotPath = "" }},
		{name: "zero fetch timeout", mutate: func(c *Config) { c.FetchTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestMailConfigured(t *testing.T) {
	cfg := &Config{SMTPHost: "smtp.example.com"}
	require.False(t, cfg.MailConfigured())

	cfg.SMTPUsername = "bot@example.com"
	require.True(t, cfg.MailConfigured())

	cfg.SMTPHost = ""
	require.False(t, cfg.MailConfigured())
}
