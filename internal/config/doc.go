// Package config loads the lobby-scout configuration.
//
// # Configuration File
//
// The binary looks for its file in this order:
//
//  1. --config flag
//  2. LOBBY_SCOUT_CONFIG environment variable
//  3. ./config.yaml
//
// YAML and JSON files are parsed with yaml.v3 (JSON is valid YAML, so a
// config.json written by older tooling keeps working). Files ending in
// .toml are parsed with BurntSushi/toml. When the file does not exist the
// binary writes a template with WriteDefault and exits.
//
// # Environment Variable Expansion
//
// Values may reference the environment:
//
//	bridge:
//	  url: "${LOBBY_SCOUT_BRIDGE}"
//
// # Sections
//
//	server: "play.example.net"      # remote server every agent joins
//	target: "TargetPlayerIGN"       # identity the fleet searches for
//	emails:                         # one agent per identity, in order
//	  - "bot1@example.com"
//	protocol_version: "1.8.9"
//
//	bridge:
//	  url: "ws://127.0.0.1:8765/session"
//
//	auth:
//	  endpoint: "localhost:12345"   # auth-only sessions dial here
//	  mode: "microsoft"
//	  timeout: "0s"                 # 0 waits for every identity
//
//	timing:
//	  connect_stagger: "2s"
//	  chat_stagger: "1s"
//	  search_stagger: "500ms"
//	  search_cycle: "10s"
//	  swap_retry: "10s"
//	  reconnect_delay: "3s"
//	  echo_window: "5s"
//
//	search:
//	  zone: "Pit"
//	  hub: "Hub"
//	  zone_command: "/play pit"
//	  hub_command: "/hub"
//	  match: "substring"            # substring or token
//
//	database:
//	  path: ""                      # empty disables the sightings ledger
//
//	logging:
//	  level: "info"
//	  format: "text"
//	  file: "lobby-scout.log"
//
//	metrics:
//	  enabled: false
//	  addr: "127.0.0.1:9464"
//	  path: "/metrics"
//
// # Validation
//
// Load checks the document shape against an embedded JSON schema, then
// parses durations, applies defaults and runs Validate.
package config
