// Package config loads the faros configuration file. Flags override
// file values; file values override defaults.
package config

import (
	"errors"
	"os"
	"time"

	yaml "github.com/goccy/go-yaml"
)

var (
	errPassesMustBePositive  = errors.New("discover.passes must be positive")
	errTimeoutMustBePositive = errors.New("discover.timeout_ms must be positive")
	errListenMustBeSet       = errors.New("http.listen must be set")
)

const (
	defaultPasses    = 3
	defaultTimeoutMS = 800
	defaultListen    = ":8089"
	defaultFetchRate = 64
)

// DiscoverConfig tunes device enumeration and the fetch waves.
type DiscoverConfig struct {
	// Passes is how many enumeration passes compensate for lossy
	// discovery broadcasts.
	Passes int `yaml:"passes"`
	// TimeoutMS is the per-pass discovery timeout in milliseconds.
	TimeoutMS int `yaml:"timeout_ms"`
	// IPv6 selects IPv6 discovery.
	IPv6 bool `yaml:"ipv6"`
	// FetchRate caps status fetches per second across a wave.
	FetchRate int `yaml:"fetch_rate"`
	// EnumerateCommand is the external discovery helper invoked for
	// live enumeration.
	EnumerateCommand []string `yaml:"enumerate_command"`
}

// Timeout returns the discovery timeout as a duration.
func (d DiscoverConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutMS) * time.Millisecond
}

// AuthConfig carries the fleet shell credentials.
type AuthConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// Config is the root configuration document.
type Config struct {
	Discover DiscoverConfig `yaml:"discover"`
	Auth     AuthConfig     `yaml:"auth"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Discover: DiscoverConfig{
			Passes:    defaultPasses,
			TimeoutMS: defaultTimeoutMS,
			FetchRate: defaultFetchRate,
		},
		HTTP: HTTPConfig{Listen: defaultListen},
	}
}

// Load reads the configuration at path, applying defaults. An empty
// path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if c.Discover.Passes <= 0 {
		return errPassesMustBePositive
	}

	if c.Discover.TimeoutMS <= 0 {
		return errTimeoutMustBePositive
	}

	if c.HTTP.Listen == "" {
		return errListenMustBeSet
	}

	return nil
}
