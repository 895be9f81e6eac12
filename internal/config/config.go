// ABOUTME: Configuration loading and parsing for lobby-scout
// ABOUTME: Supports YAML/JSON/TOML files with environment variable expansion and duration parsing

package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed config.schema.json
var schemaJSON string

// ErrNotExist is returned by Load when the config file is missing.
var ErrNotExist = errors.New("config file does not exist")

// Match modes for target detection in server text.
const (
	MatchSubstring = "substring"
	MatchToken     = "token"
)

// Config represents the complete lobby-scout configuration
type Config struct {
	Server          string          `yaml:"server" toml:"server"`
	Target          string          `yaml:"target" toml:"target"`
	Emails          []string        `yaml:"emails" toml:"emails"`
	ProtocolVersion string          `yaml:"protocol_version" toml:"protocol_version"`
	Bridge          BridgeConfig    `yaml:"bridge" toml:"bridge"`
	Auth            AuthConfig      `yaml:"auth" toml:"auth"`
	Timing          TimingConfig    `yaml:"timing" toml:"timing"`
	Search          SearchConfig    `yaml:"search" toml:"search"`
	Database        DatabaseConfig  `yaml:"database" toml:"database"`
	Logging         LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics         MetricsConfig   `yaml:"metrics" toml:"metrics"`
	Dashboard       DashboardConfig `yaml:"dashboard" toml:"dashboard"`
}

// BridgeConfig points at the game-client bridge that hosts agent sessions
type BridgeConfig struct {
	URL string `yaml:"url" toml:"url"`
}

// AuthConfig holds the authentication pre-flight settings
type AuthConfig struct {
	Endpoint string        `yaml:"endpoint" toml:"endpoint"`
	Mode     string        `yaml:"mode" toml:"mode"`
	Timeout  time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// TimingConfig holds the stagger and retry intervals
type TimingConfig struct {
	ConnectStagger time.Duration `yaml:"-" toml:"-"`
	ChatStagger    time.Duration `yaml:"-" toml:"-"`
	SearchStagger  time.Duration `yaml:"-" toml:"-"`
	SearchCycle    time.Duration `yaml:"-" toml:"-"`
	SwapRetry      time.Duration `yaml:"-" toml:"-"`
	ReconnectDelay time.Duration `yaml:"-" toml:"-"`
	EchoWindow     time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ConnectStaggerRaw string `yaml:"connect_stagger" toml:"connect_stagger"`
	ChatStaggerRaw    string `yaml:"chat_stagger" toml:"chat_stagger"`
	SearchStaggerRaw  string `yaml:"search_stagger" toml:"search_stagger"`
	SearchCycleRaw    string `yaml:"search_cycle" toml:"search_cycle"`
	SwapRetryRaw      string `yaml:"swap_retry" toml:"swap_retry"`
	ReconnectDelayRaw string `yaml:"reconnect_delay" toml:"reconnect_delay"`
	EchoWindowRaw     string `yaml:"echo_window" toml:"echo_window"`
}

// SearchConfig describes the two lobbies agents rotate between
type SearchConfig struct {
	Zone               string   `yaml:"zone" toml:"zone"`
	Hub                string   `yaml:"hub" toml:"hub"`
	ZoneCommand        string   `yaml:"zone_command" toml:"zone_command"`
	HubCommand         string   `yaml:"hub_command" toml:"hub_command"`
	Match              string   `yaml:"match" toml:"match"`
	SwapFailurePhrases []string `yaml:"swap_failure_phrases" toml:"swap_failure_phrases"`
}

// DatabaseConfig holds the sightings ledger location
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	File   string `yaml:"file" toml:"file"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
	Path    string `yaml:"path" toml:"path"`
}

// DashboardConfig controls how the status block is drawn
type DashboardConfig struct {
	// ClearScreen redraws the block in place. Nil means "only when stdout
	// is a terminal".
	ClearScreen *bool `yaml:"clear_screen" toml:"clear_screen"`
}

// DefaultSwapFailurePhrases are server replies that mean a lobby move was refused.
var DefaultSwapFailurePhrases = []string{
	"You are already connected to this server",
	"Cannot join another game",
	"You were spawned in Limbo",
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values and unset fields
// receive their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := []byte(expandEnvVars(string(data)))
	isTOML := strings.EqualFold(filepath.Ext(path), ".toml")

	var doc any
	if isTOML {
		var m map[string]any
		if _, err := toml.Decode(string(expanded), &m); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		doc = m
	} else if err := yaml.Unmarshal(expanded, &doc); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := validateSchema(doc); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var cfg Config
	if isTOML {
		if _, err := toml.Decode(string(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// validateSchema checks the decoded document against the embedded schema.
// The document is round-tripped through JSON so YAML and TOML scalars
// reach the validator as JSON values.
func validateSchema(doc any) error {
	if doc == nil {
		return errors.New("config file is empty")
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", strings.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("loading schema: %w", err)
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	return schema.Validate(v)
}

// ApplyDefaults fills every unset tunable with its default value.
func (c *Config) ApplyDefaults() {
	if c.ProtocolVersion == "" {
		c.ProtocolVersion = "1.8.9"
	}
	if c.Bridge.URL == "" {
		c.Bridge.URL = "ws://127.0.0.1:8765/session"
	}
	if c.Auth.Endpoint == "" {
		c.Auth.Endpoint = "localhost:12345"
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = "microsoft"
	}

	t := &c.Timing
	setDuration(&t.ConnectStagger, 2*time.Second)
	setDuration(&t.ChatStagger, time.Second)
	setDuration(&t.SearchStagger, 500*time.Millisecond)
	setDuration(&t.SearchCycle, 10*time.Second)
	setDuration(&t.SwapRetry, 10*time.Second)
	setDuration(&t.ReconnectDelay, 3*time.Second)
	setDuration(&t.EchoWindow, 5*time.Second)

	s := &c.Search
	if s.Zone == "" {
		s.Zone = "Pit"
	}
	if s.Hub == "" {
		s.Hub = "Hub"
	}
	if s.ZoneCommand == "" {
		s.ZoneCommand = "/play pit"
	}
	if s.HubCommand == "" {
		s.HubCommand = "/hub"
	}
	if s.Match == "" {
		s.Match = MatchSubstring
	}
	if len(s.SwapFailurePhrases) == 0 {
		s.SwapFailurePhrases = append([]string(nil), DefaultSwapFailurePhrases...)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = "127.0.0.1:9464"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server) == "" {
		return fmt.Errorf("server is required")
	}
	if len(c.Emails) == 0 {
		return fmt.Errorf("emails must list at least one account")
	}
	seen := make(map[string]bool, len(c.Emails))
	for _, email := range c.Emails {
		if strings.TrimSpace(email) == "" {
			return fmt.Errorf("emails must not contain blank entries")
		}
		if seen[email] {
			return fmt.Errorf("emails lists %q more than once", email)
		}
		seen[email] = true
	}
	if strings.TrimSpace(c.Target) == "" {
		return fmt.Errorf("target is required")
	}
	if c.Search.Match != MatchSubstring && c.Search.Match != MatchToken {
		return fmt.Errorf("search.match must be %q or %q", MatchSubstring, MatchToken)
	}
	if c.Auth.Timeout < 0 {
		return fmt.Errorf("auth.timeout must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"auth.timeout", cfg.Auth.TimeoutRaw, &cfg.Auth.Timeout},
		{"timing.connect_stagger", cfg.Timing.ConnectStaggerRaw, &cfg.Timing.ConnectStagger},
		{"timing.chat_stagger", cfg.Timing.ChatStaggerRaw, &cfg.Timing.ChatStagger},
		{"timing.search_stagger", cfg.Timing.SearchStaggerRaw, &cfg.Timing.SearchStagger},
		{"timing.search_cycle", cfg.Timing.SearchCycleRaw, &cfg.Timing.SearchCycle},
		{"timing.swap_retry", cfg.Timing.SwapRetryRaw, &cfg.Timing.SwapRetry},
		{"timing.reconnect_delay", cfg.Timing.ReconnectDelayRaw, &cfg.Timing.ReconnectDelay},
		{"timing.echo_window", cfg.Timing.EchoWindowRaw, &cfg.Timing.EchoWindow},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
