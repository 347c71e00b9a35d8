package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Load Tests
// ============================================================

// TestLoadMissingFileReturnsDefaults verifies a missing config file is
// not an error.
func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Equal(t, Default(), cfg)
}

// TestLoadCorruptFileReturnsDefaults verifies a bad edit never locks
// the user out.
func TestLoadCorruptFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nnot toml"), 0644))

	cfg := Load(path)
	assert.Equal(t, Default(), cfg)
}

// TestLoadMergesPartialFile verifies set values override and unset
// values keep their defaults.
func TestLoadMergesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `[server]
listen_addr = "0.0.0.0:9000"

[terminal]
scrollback_lines = 5000
write_seed_content = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := Load(path)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr)
	assert.Equal(t, 5000, cfg.Terminal.ScrollbackLines)
	assert.True(t, cfg.Terminal.WriteSeedContent)
	assert.Equal(t, 30, cfg.Terminal.SeedTimeoutSeconds, "unset keeps default")
}

// TestLoadClampsScrollback verifies out-of-range values land inside the
// supported range.
func TestLoadClampsScrollback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `[terminal]
scrollback_lines = 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := Load(path)
	assert.Equal(t, MinScrollbackLines, cfg.Terminal.ScrollbackLines)
}

// ============================================================
// Environment Override Tests
// ============================================================

// TestEnvOverridesFile verifies AGENTPANE_* env vars win over the file.
func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `[server]
listen_addr = "127.0.0.1:1111"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("AGENTPANE_LISTEN_ADDR", "127.0.0.1:2222")
	t.Setenv("AGENTPANE_SCROLLBACK_LINES", "4000")
	t.Setenv("AGENTPANE_WRITE_SEED_CONTENT", "enabled")

	cfg := Load(path)
	assert.Equal(t, "127.0.0.1:2222", cfg.Server.ListenAddr)
	assert.Equal(t, 4000, cfg.Terminal.ScrollbackLines)
	assert.True(t, cfg.Terminal.WriteSeedContent)
}

// TestEnvInvalidNumberIgnored verifies a garbage numeric override keeps
// the configured value.
func TestEnvInvalidNumberIgnored(t *testing.T) {
	t.Setenv("AGENTPANE_SCROLLBACK_LINES", "lots")

	cfg := Load("")
	assert.Equal(t, Default().Terminal.ScrollbackLines, cfg.Terminal.ScrollbackLines)
}

// ============================================================
// Helper Tests
// ============================================================

// TestClampScrollbackBounds verifies both edges of the clamp.
func TestClampScrollbackBounds(t *testing.T) {
	assert.Equal(t, MinScrollbackLines, ClampScrollback(0))
	assert.Equal(t, MinScrollbackLines, ClampScrollback(MinScrollbackLines))
	assert.Equal(t, 5000, ClampScrollback(5000))
	assert.Equal(t, MaxScrollbackLines, ClampScrollback(MaxScrollbackLines+1))
}

// TestDurationHelpers verifies the seconds/millis fields convert
// correctly.
func TestDurationHelpers(t *testing.T) {
	tc := TerminalConfig{
		SeedTimeoutSeconds:     30,
		HistoryCooldownSeconds: 2,
		ScrollPollMillis:       100,
	}
	assert.Equal(t, 30*time.Second, tc.SeedTimeout())
	assert.Equal(t, 2*time.Second, tc.HistoryCooldown())
	assert.Equal(t, 100*time.Millisecond, tc.ScrollPollInterval())
}
