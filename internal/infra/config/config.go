// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Playback      PlaybackConfig      `yaml:"playback"`
	Collaborators CollaboratorsConfig `yaml:"collaborators"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr string `yaml:"addr" default:":8080"`
}

// PlaybackConfig represents playback engine configuration.
type PlaybackConfig struct {
	SeekDebounceMs     int     `yaml:"seek_debounce_ms" default:"150" validate:"gte=0,lte=5000"`
	LegacyThresholdSec int     `yaml:"legacy_threshold_sec" default:"30" validate:"gte=0,lte=600"`
	InitialVolume      float64 `yaml:"initial_volume" default:"1.0" validate:"gte=0,lte=1"`
	FinalizeTimeoutMs  int     `yaml:"finalize_timeout_ms" default:"5000" validate:"gte=0,lte=60000"`
}

// SeekDebounce returns the seek settle window as a duration.
func (p PlaybackConfig) SeekDebounce() time.Duration {
	return time.Duration(p.SeekDebounceMs) * time.Millisecond
}

// LegacyThreshold returns the in-progress play record gate as a duration.
func (p PlaybackConfig) LegacyThreshold() time.Duration {
	return time.Duration(p.LegacyThresholdSec) * time.Second
}

// FinalizeTimeout returns the tracking finalization budget as a duration.
func (p PlaybackConfig) FinalizeTimeout() time.Duration {
	return time.Duration(p.FinalizeTimeoutMs) * time.Millisecond
}

// CollaboratorsConfig groups the backend services the engine reports to.
type CollaboratorsConfig struct {
	Credit  EndpointConfig `yaml:"credit"`
	Playlog EndpointConfig `yaml:"playlog"`
	Catalog EndpointConfig `yaml:"catalog"`
}

// EndpointConfig represents one collaborator endpoint. A disabled endpoint
// gets a no-op client.
type EndpointConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url" validate:"required_if=Enabled true,omitempty,url"`
	Token     string `yaml:"token"`
	TimeoutMs int    `yaml:"timeout_ms" default:"10000" validate:"gte=0,lte=60000"`
}

// Timeout returns the request timeout as a duration.
func (e EndpointConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutMs) * time.Millisecond
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for tokens.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("PLAYHEAD_CREDIT_TOKEN"); v != "" {
		c.Collaborators.Credit.Token = v
	}
	if v := os.Getenv("PLAYHEAD_PLAYLOG_TOKEN"); v != "" {
		c.Collaborators.Playlog.Token = v
	}
	if v := os.Getenv("PLAYHEAD_CATALOG_TOKEN"); v != "" {
		c.Collaborators.Catalog.Token = v
	}
	if v := os.Getenv("PLAYHEAD_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
