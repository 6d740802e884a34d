// Package config loads the YAML configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kant/TwitchMIDI/internal/scheduler"
)

// Config is the full runtime configuration.
type Config struct {
	Twitch struct {
		// Username is the bot account name.
		Username string `yaml:"username"`
		// Token is the OAuth token, with or without the "oauth:" prefix.
		Token string `yaml:"token"`
		// Channel is the chat channel to join.
		Channel string `yaml:"channel"`
		// Prefix is the command prefix, "!" by default.
		Prefix string `yaml:"prefix"`
	} `yaml:"twitch"`

	MIDI struct {
		// Port is a case-insensitive substring of the output port name.
		Port string `yaml:"port"`
		// Channel is the MIDI channel, 0-15.
		Channel uint8 `yaml:"channel"`
	} `yaml:"midi"`

	// Database is the path to the SQLite alias database.
	Database string `yaml:"database"`

	// Tempo is the startup tempo in BPM.
	Tempo int `yaml:"tempo"`

	// Volume is the startup velocity scale in percent.
	Volume int `yaml:"volume"`
}

// Load reads and validates a configuration file, filling defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a configuration with all defaults set.
func Default() *Config {
	cfg := &Config{}
	cfg.Twitch.Prefix = "!"
	cfg.Database = "twitchmidi.db"
	cfg.Tempo = 120
	cfg.Volume = 100
	return cfg
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.MIDI.Channel > 15 {
		return fmt.Errorf("midi.channel must be 0-15, got %d", c.MIDI.Channel)
	}
	if c.Tempo < scheduler.MinTempo || c.Tempo > scheduler.MaxTempo {
		return fmt.Errorf("tempo must be %d-%d BPM, got %d",
			scheduler.MinTempo, scheduler.MaxTempo, c.Tempo)
	}
	if c.Volume < 0 || c.Volume > 100 {
		return fmt.Errorf("volume must be 0-100, got %d", c.Volume)
	}
	if c.Twitch.Prefix == "" {
		return fmt.Errorf("twitch.prefix must not be empty")
	}
	return nil
}
