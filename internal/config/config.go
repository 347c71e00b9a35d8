// Package config loads agentpane settings from ~/.agentpane/config.toml
// with AGENTPANE_* environment overrides. A missing or corrupt file
// yields defaults rather than an error so a bad edit never locks the
// user out of their sessions.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// MinScrollbackLines and MaxScrollbackLines bound the emulator
	// scrollback regardless of what the config asks for. Shrinking
	// below the minimum would silently discard visible history.
	MinScrollbackLines = 200
	MaxScrollbackLines = 100000

	defaultScrollbackLines = 10000
	defaultListenAddr      = "127.0.0.1:7336"
)

// Config is the full config.toml structure.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Terminal TerminalConfig `toml:"terminal"`
}

// ServerConfig configures the session host daemon.
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// TerminalConfig configures the client-side terminal and the stream
// sync protocol knobs.
type TerminalConfig struct {
	// ScrollbackLines is clamped to [MinScrollbackLines, MaxScrollbackLines].
	ScrollbackLines int `toml:"scrollback_lines"`
	// SeedTimeoutSeconds bounds how long a chunked snapshot may take
	// to assemble before partial recovery kicks in.
	SeedTimeoutSeconds int `toml:"seed_timeout_seconds"`
	// HistoryCooldownSeconds throttles scrollback reload requests.
	HistoryCooldownSeconds int `toml:"history_cooldown_seconds"`
	// ScrollPollMillis is the interval of the scroll-position poll
	// that backstops unreliable scroll events.
	ScrollPollMillis int `toml:"scroll_poll_millis"`
	// WriteSeedContent renders the snapshot text directly instead of
	// relying on the forced-redraw jiggle. Off by default; only useful
	// for remote programs that do not repaint on resize.
	WriteSeedContent bool `toml:"write_seed_content"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{ListenAddr: defaultListenAddr},
		Terminal: TerminalConfig{
			ScrollbackLines:        defaultScrollbackLines,
			SeedTimeoutSeconds:     30,
			HistoryCooldownSeconds: 2,
			ScrollPollMillis:       100,
		},
	}
}

// Path returns the config file location.
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".agentpane", "config.toml")
}

// Load reads the config file at path, fills defaults for missing or
// invalid values, and applies environment overrides. Load never fails:
// a parse error returns the defaults.
func Load(path string) Config {
	cfg := Default()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			var parsed Config
			if toml.Unmarshal(data, &parsed) == nil {
				merge(&cfg, parsed)
			}
		}
	}

	applyEnv(&cfg)
	cfg.Terminal.ScrollbackLines = ClampScrollback(cfg.Terminal.ScrollbackLines)
	return cfg
}

// ClampScrollback forces a scrollback line count into the supported
// range.
func ClampScrollback(lines int) int {
	if lines < MinScrollbackLines {
		return MinScrollbackLines
	}
	if lines > MaxScrollbackLines {
		return MaxScrollbackLines
	}
	return lines
}

// SeedTimeout returns the assembly timeout as a duration.
func (t TerminalConfig) SeedTimeout() time.Duration {
	return time.Duration(t.SeedTimeoutSeconds) * time.Second
}

// HistoryCooldown returns the reload cooldown as a duration.
func (t TerminalConfig) HistoryCooldown() time.Duration {
	return time.Duration(t.HistoryCooldownSeconds) * time.Second
}

// ScrollPollInterval returns the scroll poll interval as a duration.
func (t TerminalConfig) ScrollPollInterval() time.Duration {
	return time.Duration(t.ScrollPollMillis) * time.Millisecond
}

func merge(dst *Config, src Config) {
	if src.Server.ListenAddr != "" {
		dst.Server.ListenAddr = src.Server.ListenAddr
	}
	if src.Terminal.ScrollbackLines > 0 {
		dst.Terminal.ScrollbackLines = src.Terminal.ScrollbackLines
	}
	if src.Terminal.SeedTimeoutSeconds > 0 {
		dst.Terminal.SeedTimeoutSeconds = src.Terminal.SeedTimeoutSeconds
	}
	if src.Terminal.HistoryCooldownSeconds > 0 {
		dst.Terminal.HistoryCooldownSeconds = src.Terminal.HistoryCooldownSeconds
	}
	if src.Terminal.ScrollPollMillis > 0 {
		dst.Terminal.ScrollPollMillis = src.Terminal.ScrollPollMillis
	}
	dst.Terminal.WriteSeedContent = src.Terminal.WriteSeedContent
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("AGENTPANE_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("AGENTPANE_SCROLLBACK_LINES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Terminal.ScrollbackLines = n
		}
	}
	if v := os.Getenv("AGENTPANE_WRITE_SEED_CONTENT"); v != "" {
		cfg.Terminal.WriteSeedContent = v == "1" || v == "true" || v == "enabled"
	}
}
