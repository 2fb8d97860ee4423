package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.Security.AllowedOrigins)
	assert.True(t, cfg.Security.RateLimit.Enabled)
	assert.Equal(t, 100, cfg.Drive.PageSize)
	assert.Equal(t, DefaultMaxConcurrentDownloads, cfg.Drive.MaxConcurrentDownloads)
	assert.Equal(t, 2*time.Minute, cfg.Cache.RemoteTimeout)
	assert.Equal(t, "downloaded_files.zip", cfg.Archive.FileName)
	assert.Equal(t, []string{"original"}, cfg.Archive.DefaultOptions)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFilePrecedence(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9000
  read_timeout: 20s
drive:
  parent_folder_id: folder-from-file
  page_size: 50
cache:
  remote_timeout: 30s
archive:
  default_options: [original, overview]
`)

	t.Setenv("NR_SERVER_PORT", "9100")
	t.Setenv("NR_DRIVE_CREDENTIALS_FILE", "/secrets/sa.json")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "environment wins over file")
	assert.Equal(t, 20*time.Second, cfg.Server.ReadTimeout, "file wins over defaults")
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout, "untouched keys keep defaults")
	assert.Equal(t, "folder-from-file", cfg.Drive.ParentFolderID)
	assert.Equal(t, "/secrets/sa.json", cfg.Drive.CredentialsFile)
	assert.Equal(t, 50, cfg.Drive.PageSize)
	assert.Equal(t, 30*time.Second, cfg.Cache.RemoteTimeout)
	assert.Equal(t, []string{"original", "overview"}, cfg.Archive.DefaultOptions)
}

func TestLoadFileEnvironmentLists(t *testing.T) {
	t.Setenv("NR_ARCHIVE_DEFAULT_OPTIONS", "compiled,overview")
	t.Setenv("NR_SECURITY_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, []string{"compiled", "overview"}, cfg.Archive.DefaultOptions)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFile(writeConfigFile(t, "server: [not, a, map]"))
	assert.Error(t, err)

	t.Setenv("NR_SERVER_PORT", "not-a-number")
	_, err = LoadFile("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }, "read timeout"},
		{"origins", func(c *Config) { c.Security.AllowedOrigins = nil }, "allowed origin"},
		{"rate limit", func(c *Config) { c.Security.RateLimit.RPS = 0 }, "rate limit"},
		{"page size", func(c *Config) { c.Drive.PageSize = 5000 }, "page size"},
		{"remote timeout", func(c *Config) { c.Cache.RemoteTimeout = -time.Second }, "remote timeout"},
		{"max files", func(c *Config) { c.Archive.MaxFiles = 0 }, "max files"},
		{"archive option", func(c *Config) { c.Archive.DefaultOptions = []string{"maps"} }, "unknown archive option"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateNormalisesLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "syslog"
	cfg.Logging.FilePath = ""

	require.NoError(t, cfg.validate())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "console", cfg.Logging.Output)
	assert.Equal(t, "logs/noisereports.log", cfg.Logging.FilePath)
}

func TestGetConfigFilePathFromEnv(t *testing.T) {
	t.Setenv("NR_CONFIG_FILE", "/etc/noisereports/config.yaml")
	assert.Equal(t, "/etc/noisereports/config.yaml", getConfigFilePath())
}
