// Package config loads and stores tdbctl settings in the XDG config dir.
// Passwords are never written here; they live in the keychain under the
// profile name.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LLIEPJIOK/tdb-client/internal/xdg"
	"github.com/LLIEPJIOK/tdb-client/pkg/ws"
)

const (
	DefaultURL              = "ws://localhost:7085"
	DefaultLogLevel         = "info"
	DefaultHandshakeTimeout = 45 * time.Second
	DefaultRequestTimeout   = 30 * time.Second
)

var ErrProfileNotFound = errors.New("profile not found")

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel         string             `yaml:"log_level"`
	HandshakeTimeout time.Duration      `yaml:"handshake_timeout"`
	RequestTimeout   time.Duration      `yaml:"request_timeout"`
	Profiles         map[string]Profile `yaml:"profiles,omitempty"`
}

// Profile is a saved set of connection parameters without the password.
type Profile struct {
	URL        string `yaml:"url"`
	DBName     string `yaml:"db_name"`
	Schema     string `yaml:"schema,omitempty"`
	SchemaFile string `yaml:"schema_file,omitempty"`
	Username   string `yaml:"username"`
}

func Default() Config {
	return Config{
		LogLevel:         DefaultLogLevel,
		HandshakeTimeout: DefaultHandshakeTimeout,
		RequestTimeout:   DefaultRequestTimeout,
		Profiles:         make(map[string]Profile),
	}
}

// Path returns the default config file location.
func Path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads configuration from path, or from Path() when path is empty.
// A missing file yields defaults.
func Load(path string) (Config, error) {
	c := Default()

	if path == "" {
		p, err := Path()
		if err != nil {
			return c, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, err
	}

	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}

	c.fillDefaults()

	return c, nil
}

// Save writes configuration with 0600 permissions.
func Save(path string, c Config) error {
	if path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		path = p
	}

	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	return os.WriteFile(path, b, 0o600)
}

func (c *Config) fillDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}

	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}

	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}

	if c.Profiles == nil {
		c.Profiles = make(map[string]Profile)
	}
}

func (c *Config) Profile(name string) (Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	return p, nil
}

// SetProfile adds or replaces a profile, defaulting its URL.
func (c *Config) SetProfile(name string, p Profile) {
	if c.Profiles == nil {
		c.Profiles = make(map[string]Profile)
	}

	if p.URL == "" {
		p.URL = DefaultURL
	}

	c.Profiles[name] = p
}

func (c *Config) RemoveProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	delete(c.Profiles, name)

	return nil
}

// ProfileNames returns profile names in sorted order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// SchemaText returns the inline schema, or the contents of SchemaFile when
// no inline schema is set.
func (p Profile) SchemaText() (string, error) {
	if p.Schema != "" || p.SchemaFile == "" {
		return p.Schema, nil
	}

	data, err := os.ReadFile(p.SchemaFile)
	if err != nil {
		return "", fmt.Errorf("read schema file: %w", err)
	}

	return string(data), nil
}

// Parameters combines the profile with a password into connect parameters.
func (p Profile) Parameters(password string) (ws.ConnectionParameters, error) {
	schema, err := p.SchemaText()
	if err != nil {
		return ws.ConnectionParameters{}, err
	}

	url := p.URL
	if url == "" {
		url = DefaultURL
	}

	return ws.ConnectionParameters{
		URL:      url,
		DBName:   p.DBName,
		Schema:   schema,
		Username: p.Username,
		Password: password,
	}, nil
}
