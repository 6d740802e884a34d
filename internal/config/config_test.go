package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
twitch:
  username: midibot
  token: oauth:secret
  channel: somestreamer
midi:
  port: "Through"
  channel: 2
database: /tmp/test-aliases.db
tempo: 90
volume: 80
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "midibot", cfg.Twitch.Username)
	assert.Equal(t, "somestreamer", cfg.Twitch.Channel)
	assert.Equal(t, "!", cfg.Twitch.Prefix, "prefix defaults when omitted")
	assert.Equal(t, "Through", cfg.MIDI.Port)
	assert.Equal(t, uint8(2), cfg.MIDI.Channel)
	assert.Equal(t, 90, cfg.Tempo)
	assert.Equal(t, 80, cfg.Volume)
}

func TestLoad_DefaultsWhenMostlyEmpty(t *testing.T) {
	path := writeConfig(t, "{}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "twitch: [not a map\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"channel too high", func(c *Config) { c.MIDI.Channel = 16 }},
		{"zero tempo", func(c *Config) { c.Tempo = 0 }},
		{"tempo below clock range", func(c *Config) { c.Tempo = 10 }},
		{"tempo above clock range", func(c *Config) { c.Tempo = 401 }},
		{"negative volume", func(c *Config) { c.Volume = -1 }},
		{"volume too high", func(c *Config) { c.Volume = 101 }},
		{"empty prefix", func(c *Config) { c.Twitch.Prefix = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())

	// The full clock range passes.
	for _, bpm := range []int{20, 400} {
		cfg := Default()
		cfg.Tempo = bpm
		assert.NoError(t, cfg.Validate())
	}
}
