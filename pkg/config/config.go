// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

// Defaults applied by PostProcess when a field is zero or out of range.
const (
	DefaultTranslation      = "kjv"
	DefaultCacheMaxEntries  = 128
	DefaultCacheTTL         = 12 * time.Hour
	DefaultMaxMessageLength = 2000
)

// Config is the top-level configuration file.
type Config struct {
	Matrix   MatrixConfig `yaml:"matrix"`
	Bot      BotConfig    `yaml:"bot"`
	APIKeys  APIKeys      `yaml:"api_keys"`
	APIBible APIBible     `yaml:"apibible"`
}

// MatrixConfig holds the homeserver binding and the room allowlist.
// Homeserver and User are only consulted in legacy access-token mode;
// the interactive login flow stores them in the credentials file instead.
type MatrixConfig struct {
	Homeserver string     `yaml:"homeserver"`
	User       string     `yaml:"user"`
	RoomIDs    []string   `yaml:"room_ids"`
	E2EE       E2EEConfig `yaml:"e2ee"`
}

// E2EEConfig toggles end-to-end encryption support.
type E2EEConfig struct {
	Enabled bool `yaml:"enabled"`
}

// BotConfig holds message handling behavior.
type BotConfig struct {
	DefaultTranslation string `yaml:"default_translation"`

	CacheEnabled    bool     `yaml:"cache_enabled"`
	CacheMaxEntries int      `yaml:"cache_max_entries"`
	CacheTTL        Duration `yaml:"cache_ttl"`

	// MaxMessageLength is the hard cap on outgoing replies; longer passages
	// are truncated with an indicator. SplitMessageLength, when positive,
	// splits long passages into chunks of at most that size instead of
	// truncating.
	MaxMessageLength   int `yaml:"max_message_length"`
	SplitMessageLength int `yaml:"split_message_length"`

	DetectReferencesAnywhere bool `yaml:"detect_references_anywhere"`
	PreservePoetryFormatting bool `yaml:"preserve_poetry_formatting"`
}

// APIKeys holds per-provider credentials. Environment variables take
// precedence so keys can stay out of the config file.
type APIKeys struct {
	ESV      string `yaml:"esv"`
	APIBible string `yaml:"apibible"`
}

// APIBible binds translation codes to api.bible bible IDs.
type APIBible struct {
	Bibles map[string]string `yaml:"bibles"`
}

// Duration wraps time.Duration so YAML values like "12h" parse directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Load reads and validates the config file at path. A .env file in the
// working directory is loaded first so its variables participate in the
// environment overlay, but the process environment always wins.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err = yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnv()
	if err = cfg.PostProcess(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays credential environment variables onto the parsed file.
func (c *Config) applyEnv() {
	if v := os.Getenv("ESV_API_KEY"); v != "" {
		c.APIKeys.ESV = v
	}
	if v := os.Getenv("APIBIBLE_API_KEY"); v != "" {
		c.APIKeys.APIBible = v
	}
}

// LegacyAccessToken returns the deprecated MATRIX_ACCESS_TOKEN variable.
// When set and no credentials file exists, the bot logs in with it directly
// instead of the stored session.
func LegacyAccessToken() string {
	return os.Getenv("MATRIX_ACCESS_TOKEN")
}

// PostProcess validates required fields and fills defaults.
func (c *Config) PostProcess() error {
	if len(c.Matrix.RoomIDs) == 0 {
		return fmt.Errorf("matrix.room_ids must list at least one room")
	}
	for _, room := range c.Matrix.RoomIDs {
		if len(room) < 2 || (room[0] != '!' && room[0] != '#') {
			return fmt.Errorf("matrix.room_ids entry %q is neither a room ID nor an alias", room)
		}
	}
	if c.Bot.DefaultTranslation == "" {
		c.Bot.DefaultTranslation = DefaultTranslation
	}
	if c.Bot.CacheMaxEntries <= 0 {
		c.Bot.CacheMaxEntries = DefaultCacheMaxEntries
	}
	if c.Bot.CacheTTL <= 0 {
		c.Bot.CacheTTL = Duration(DefaultCacheTTL)
	}
	if c.Bot.MaxMessageLength <= 0 {
		c.Bot.MaxMessageLength = DefaultMaxMessageLength
	}
	if c.Bot.SplitMessageLength > c.Bot.MaxMessageLength {
		c.Bot.SplitMessageLength = c.Bot.MaxMessageLength
	}
	if c.Bot.SplitMessageLength < 0 {
		c.Bot.SplitMessageLength = 0
	}
	return nil
}

// Generate writes the example config to path, refusing to overwrite.
func Generate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	return os.WriteFile(path, []byte(ExampleConfig), 0o644)
}
