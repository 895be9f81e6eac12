// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML/JSON/TOML loading, env var expansion, defaults and validation

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server: "play.example.net"
target: "Notch"
emails:
  - "a@example.com"
  - "b@example.com"
protocol_version: "1.8.9"

auth:
  endpoint: "localhost:2000"
  timeout: "2m"

timing:
  connect_stagger: "3s"
  search_cycle: "15s"
  swap_retry: "7s"

search:
  zone: "Arena"
  zone_command: "/play arena"
  match: "token"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  addr: ":9100"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "play.example.net", cfg.Server)
	assert.Equal(t, "Notch", cfg.Target)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Emails)
	assert.Equal(t, "localhost:2000", cfg.Auth.Endpoint)
	assert.Equal(t, 2*time.Minute, cfg.Auth.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Timing.ConnectStagger)
	assert.Equal(t, 15*time.Second, cfg.Timing.SearchCycle)
	assert.Equal(t, 7*time.Second, cfg.Timing.SwapRetry)
	assert.Equal(t, "Arena", cfg.Search.Zone)
	assert.Equal(t, "/play arena", cfg.Search.ZoneCommand)
	assert.Equal(t, MatchToken, cfg.Search.Match)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)

	// untouched fields fall back to defaults
	assert.Equal(t, time.Second, cfg.Timing.ChatStagger)
	assert.Equal(t, 500*time.Millisecond, cfg.Timing.SearchStagger)
	assert.Equal(t, "Hub", cfg.Search.Hub)
	assert.Equal(t, "/hub", cfg.Search.HubCommand)
	assert.Equal(t, DefaultSwapFailurePhrases, cfg.Search.SwapFailurePhrases)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_LegacyJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
    "server": "example.minecraftserver.net",
    "target": "TargetPlayerIGN",
    "emails": ["bot1@example.com", "bot2@example.com"]
}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "example.minecraftserver.net", cfg.Server)
	assert.Len(t, cfg.Emails, 2)
	assert.Equal(t, 2*time.Second, cfg.Timing.ConnectStagger)
	assert.Equal(t, 10*time.Second, cfg.Timing.SearchCycle)
	assert.Equal(t, "1.8.9", cfg.ProtocolVersion)
	assert.Equal(t, "localhost:12345", cfg.Auth.Endpoint)
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
server = "play.example.net"
target = "Notch"
emails = ["a@example.com"]

[timing]
swap_retry = "4s"

[search]
match = "substring"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Notch", cfg.Target)
	assert.Equal(t, 4*time.Second, cfg.Timing.SwapRetry)
	assert.Equal(t, MatchSubstring, cfg.Search.Match)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("SCOUT_TEST_TARGET", "Herobrine")
	path := writeConfig(t, "config.yaml", `
server: "play.example.net"
target: "${SCOUT_TEST_TARGET}"
emails: ["a@example.com"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Herobrine", cfg.Target)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing emails",
			content: `{"server": "s", "target": "t"}`,
			wantErr: "validating config",
		},
		{
			name:    "emails not an array",
			content: `{"server": "s", "target": "t", "emails": "a@example.com"}`,
			wantErr: "validating config",
		},
		{
			name:    "empty emails",
			content: `{"server": "s", "target": "t", "emails": []}`,
			wantErr: "emails must list at least one account",
		},
		{
			name:    "missing target",
			content: `{"server": "s", "emails": ["a@example.com"]}`,
			wantErr: "target is required",
		},
		{
			name:    "missing server",
			content: `{"target": "t", "emails": ["a@example.com"]}`,
			wantErr: "server is required",
		},
		{
			name:    "duplicate identity",
			content: `{"server": "s", "target": "t", "emails": ["a@example.com", "a@example.com"]}`,
			wantErr: "more than once",
		},
		{
			name:    "bad duration",
			content: `{"server": "s", "target": "t", "emails": ["a@example.com"], "timing": {"search_cycle": "soon"}}`,
			wantErr: "parsing timing.search_cycle",
		},
		{
			name:    "numeric duration",
			content: `{"server": "s", "target": "t", "emails": ["a@example.com"], "timing": {"search_cycle": 10}}`,
			wantErr: "validating config",
		},
		{
			name:    "metrics enabled not a boolean",
			content: `{"server": "s", "target": "t", "emails": ["a@example.com"], "metrics": {"enabled": 1.5}}`,
			wantErr: "validating config",
		},
		{
			name:    "bad match mode",
			content: `{"server": "s", "target": "t", "emails": ["a@example.com"], "search": {"match": "fuzzy"}}`,
			wantErr: "validating config",
		},
		{
			name:    "empty file",
			content: ``,
			wantErr: "config file is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "config.yaml", tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotExist))
}

func TestWriteDefault(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.json", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, WriteDefault(path))

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, "TargetPlayerIGN", cfg.Target)
			assert.Len(t, cfg.Emails, 3)

			assert.Error(t, WriteDefault(path), "must not overwrite an existing file")
		})
	}
}
