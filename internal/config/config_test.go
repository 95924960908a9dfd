package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, ":2342", cfg.Address())
	assert.Equal(t, 5*time.Second, cfg.RefreshInterval())
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout())
	assert.Equal(t, 3*time.Second, cfg.SettleDelay())
	assert.Equal(t, 500*time.Millisecond, cfg.BlinkInterval())
	assert.Equal(t, 2*time.Second, cfg.ErrorRecheck())
	assert.Equal(t, []string{"0", "255"}, cfg.Wipe.Patterns)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesOnlyGivenFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shreddy.yaml")
	data := []byte(`
server:
  port: 0
wipe:
  profile: alternating
logging:
  level: DEBUG
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Address())
	assert.Equal(t, []string{"170", "85"}, cfg.Wipe.Patterns)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "mkfs.vfat", cfg.Tools.Mkfs)
	assert.Equal(t, 10, cfg.Server.History)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "same patterns", body: "wipe:\n  patterns: [\"7\", \"7\"]\n"},
		{name: "three patterns", body: "wipe:\n  patterns: [\"0\", \"1\", \"2\"]\n"},
		{name: "pattern out of range", body: "wipe:\n  patterns: [\"0\", \"256\"]\n"},
		{name: "bad port", body: "server:\n  port: 70000\n"},
		{name: "zero write timeout", body: "server:\n  write_timeout: 0s\n"},
		{name: "bad write timeout", body: "server:\n  write_timeout: soon\n"},
		{name: "bad level", body: "logging:\n  level: TRACE\n"},
		{name: "unknown profile", body: "wipe:\n  profile: gutmann\n"},
		{name: "nats without subject", body: "feed:\n  nats_url: nats://127.0.0.1:4222\n  subject: \"\"\n"},
		{name: "broken yaml", body: "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cfg.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "shreddy.yaml")

	cfg := Default()
	cfg.Server.Port = 4000
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4000, loaded.Server.Port)
	assert.Equal(t, cfg.Tools.Partition, loaded.Tools.Partition)
}

func TestApplyProfile(t *testing.T) {
	for _, name := range Profiles() {
		cfg := Default()
		require.NoError(t, ApplyProfile(cfg, name))
		assert.NoError(t, Validate(cfg), name)
	}

	assert.Error(t, ApplyProfile(Default(), "unknown"))
}
