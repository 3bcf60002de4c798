// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by [Load].
const (
	EnvConfigFile    = "TLS_TRUST_ENGINE_CONFIG"
	EnvRepositoryURL = "TLS_TRUST_ENGINE_REPOSITORY_URL"
)

// Interaction policies.
const (
	PolicyPrompt        = "prompt"
	PolicyDeny          = "deny"
	PolicyAcceptSession = "accept-session"
)

var (
	// ErrInvalidConfig is returned when a file does not match the schema.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	//go:embed schema.json
	schemaJSON string
)

// format represents supported configuration file formats.
type format int

const (
	formatJSON format = iota
	formatYAML
)

// Duration is a time.Duration written as "10s", "1h30m" in files.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	*d = Duration(v)
	return nil
}

// Config is the engine configuration.
//
// It is loaded from a JSON or YAML file named by the --config flag or the
// TLS_TRUST_ENGINE_CONFIG environment variable. Missing values keep their
// defaults.
type Config struct {
	Store struct {
		// Path is the bbolt database file. Empty keeps the store in memory.
		Path string `json:"path,omitempty" yaml:"path,omitempty"`
	} `json:"store" yaml:"store"`

	Network struct {
		Timeout          Duration `json:"timeout" yaml:"timeout"`
		IdleTimeout      Duration `json:"idleTimeout" yaml:"idleTimeout"`
		MaxResponseBytes int64    `json:"maxResponseBytes" yaml:"maxResponseBytes"`
		MaxRetries       uint     `json:"maxRetries" yaml:"maxRetries"`
		RetryDelay       Duration `json:"retryDelay" yaml:"retryDelay"`
		UserAgent        string   `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	} `json:"network" yaml:"network"`

	Repository struct {
		// URL is the feed base URL. Can also be set via TLS_TRUST_ENGINE_REPOSITORY_URL.
		URL     string `json:"url,omitempty" yaml:"url,omitempty"`
		Enabled bool   `json:"enabled" yaml:"enabled"`
		// RetryWindow is how long a failed certificate lookup is not repeated.
		RetryWindow Duration `json:"retryWindow" yaml:"retryWindow"`
	} `json:"repository" yaml:"repository"`

	Revocation struct {
		Enabled         bool     `json:"enabled" yaml:"enabled"`
		OCSP            bool     `json:"ocsp" yaml:"ocsp"`
		CRL             bool     `json:"crl" yaml:"crl"`
		CRLCacheSize    int      `json:"crlCacheSize" yaml:"crlCacheSize"`
		CRLCacheCleanup Duration `json:"crlCacheCleanup" yaml:"crlCacheCleanup"`
	} `json:"revocation" yaml:"revocation"`

	Security struct {
		MinRSABits       int  `json:"minRSABits" yaml:"minRSABits"`
		PreferredRSABits int  `json:"preferredRSABits" yaml:"preferredRSABits"`
		MinECBits        int  `json:"minECBits" yaml:"minECBits"`
		PreferredECBits  int  `json:"preferredECBits" yaml:"preferredECBits"`
		StrictUnknownCA  bool `json:"strictUnknownCA" yaml:"strictUnknownCA"`
	} `json:"security" yaml:"security"`

	Interaction struct {
		// Policy is one of prompt, deny or accept-session.
		Policy string `json:"policy" yaml:"policy"`
	} `json:"interaction" yaml:"interaction"`

	Metrics struct {
		// Listen is the address of the /metrics endpoint. Empty disables it.
		Listen string `json:"listen,omitempty" yaml:"listen,omitempty"`
	} `json:"metrics" yaml:"metrics"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.Network.Timeout = Duration(10 * time.Second)
	c.Network.IdleTimeout = Duration(5 * time.Second)
	c.Network.MaxResponseBytes = 10 << 20
	c.Network.MaxRetries = 1
	c.Network.RetryDelay = Duration(200 * time.Millisecond)

	c.Repository.Enabled = true
	c.Repository.RetryWindow = Duration(24 * time.Hour)

	c.Revocation.Enabled = true
	c.Revocation.OCSP = true
	c.Revocation.CRL = true
	c.Revocation.CRLCacheSize = 100
	c.Revocation.CRLCacheCleanup = Duration(time.Hour)

	c.Security.MinRSABits = 1024
	c.Security.PreferredRSABits = 2048
	c.Security.MinECBits = 224
	c.Security.PreferredECBits = 256

	c.Interaction.Policy = PolicyPrompt
	return c
}

// RepositoryEnabled reports whether repository lookups should run.
func (c *Config) RepositoryEnabled() bool {
	return c.Repository.Enabled && c.Repository.URL != ""
}

// Load reads the configuration at path, or at $TLS_TRUST_ENGINE_CONFIG when
// path is empty, over the defaults. Without either it returns the defaults.
//
// Configuration priority:
//  1. Defaults
//  2. File values, validated against the embedded schema
//  3. TLS_TRUST_ENGINE_REPOSITORY_URL
func Load(path string) (*Config, error) {
	c := Default()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := parse(data, detectFormat(path), c); err != nil {
			return nil, err
		}
	}

	if u := os.Getenv(EnvRepositoryURL); u != "" {
		c.Repository.URL = u
	}
	c.normalize()
	return c, nil
}

// detectFormat picks the decoder from the file extension.
func detectFormat(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatJSON
	}
}

// parse validates data against the schema and decodes it over c.
func parse(data []byte, f format, c *Config) error {
	var doc gojsonschema.JSONLoader
	switch f {
	case formatYAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("config: failed to parse YAML: %w", err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
		doc = gojsonschema.NewGoLoader(raw)
	default:
		doc = gojsonschema.NewBytesLoader(data)
	}

	if err := validate(doc); err != nil {
		return err
	}

	switch f {
	case formatYAML:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("config: failed to parse YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("config: failed to parse JSON: %w", err)
		}
	}
	return nil
}

func validate(doc gojsonschema.JSONLoader) error {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schemaJSON), doc)
	if err != nil {
		return fmt.Errorf("config: validate: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// normalize replaces unusable values with defaults.
func (c *Config) normalize() {
	def := Default()
	if c.Network.Timeout <= 0 {
		c.Network.Timeout = def.Network.Timeout
	}
	if c.Network.IdleTimeout <= 0 {
		c.Network.IdleTimeout = def.Network.IdleTimeout
	}
	if c.Network.MaxResponseBytes <= 0 {
		c.Network.MaxResponseBytes = def.Network.MaxResponseBytes
	}
	if c.Network.RetryDelay <= 0 {
		c.Network.RetryDelay = def.Network.RetryDelay
	}
	if c.Repository.RetryWindow <= 0 {
		c.Repository.RetryWindow = def.Repository.RetryWindow
	}
	if c.Revocation.CRLCacheCleanup <= 0 {
		c.Revocation.CRLCacheCleanup = def.Revocation.CRLCacheCleanup
	}
	if c.Security.PreferredRSABits < c.Security.MinRSABits {
		c.Security.PreferredRSABits = c.Security.MinRSABits
	}
	if c.Security.PreferredECBits < c.Security.MinECBits {
		c.Security.PreferredECBits = c.Security.MinECBits
	}
	if c.Interaction.Policy == "" {
		c.Interaction.Policy = def.Interaction.Policy
	}
}
