// ABOUTME: Writes a starter configuration file on first run
// ABOUTME: Template format follows the file extension (yaml, json or toml)

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const defaultYAML = `# lobby-scout configuration
server: "example.minecraftserver.net"
target: "TargetPlayerIGN"
emails:
  - "bot1@example.com"
  - "bot2@example.com"
  - "bot3@example.com"

timing:
  connect_stagger: "2s"
  search_cycle: "10s"
  swap_retry: "10s"

logging:
  level: "info"
  file: "lobby-scout.log"
`

// defaultDocument is the JSON/TOML form of the starter file.
type defaultDocument struct {
	Server string   `json:"server" toml:"server"`
	Target string   `json:"target" toml:"target"`
	Emails []string `json:"emails" toml:"emails"`
}

func starter() defaultDocument {
	return defaultDocument{
		Server: "example.minecraftserver.net",
		Target: "TargetPlayerIGN",
		Emails: []string{"bot1@example.com", "bot2@example.com", "bot3@example.com"},
	}
}

// WriteDefault creates a starter config at path. It refuses to overwrite an
// existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		b, err := json.MarshalIndent(starter(), "", "    ")
		if err != nil {
			return fmt.Errorf("encoding default config: %w", err)
		}
		data = append(b, '\n')
	case ".toml":
		var sb strings.Builder
		if err := toml.NewEncoder(&sb).Encode(starter()); err != nil {
			return fmt.Errorf("encoding default config: %w", err)
		}
		data = []byte(sb.String())
	default:
		data = []byte(defaultYAML)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
