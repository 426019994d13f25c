// Package config resolves the settings of a run from, in increasing
// order of precedence: a YAML file, a .env file, the process
// environment and command line flags (applied by the caller).
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/matta/chatsweep/internal/homedir"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	EnvToken    = "CHATSWEEP_TOKEN"
	EnvBot      = "CHATSWEEP_BOT"
	EnvBaseURL  = "CHATSWEEP_BASE_URL"
	DefaultName = ".chatsweep.yaml"
)

type Config struct {
	// Token is the Discord credential.  It is never written back
	// out or logged.
	Token string `yaml:"token"`

	// Bot marks Token as a bot token.
	Bot bool `yaml:"bot"`

	BaseURL string `yaml:"base_url"`

	Channels []string `yaml:"channels"`

	// Max caps deletions per channel; 0 means all.
	Max int `yaml:"max"`

	// Pace is a time.Duration string such as "1.25s".
	Pace string `yaml:"pace"`
}

// DefaultPath is the config file used when none is named.
func DefaultPath() string {
	h := homedir.Get()
	if h == "" {
		return DefaultName
	}
	return filepath.Join(h, DefaultName)
}

// LoadFromFile reads the YAML config at path.  A missing file is not
// an error unless required is set.
func LoadFromFile(path string, required bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !required {
		return &Config{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %q", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config file %q", path)
	}
	return &cfg, nil
}

// ReadDotEnv returns the variables of the .env file at path, or an
// empty map if there is no such file.
func ReadDotEnv(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if os.IsNotExist(errors.Cause(err)) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", path)
	}
	return vars, nil
}

// Lookup finds an environment variable, like os.LookupEnv.
type Lookup func(key string) (string, bool)

// Chain returns a Lookup that tries each of lookups in turn.
func Chain(lookups ...Lookup) Lookup {
	return func(key string) (string, bool) {
		for _, l := range lookups {
			if v, ok := l(key); ok {
				return v, true
			}
		}
		return "", false
	}
}

// MapLookup adapts a map, such as the result of ReadDotEnv.
func MapLookup(m map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// ApplyEnv overrides c with any of the CHATSWEEP_* variables found by
// lookup.
func (c *Config) ApplyEnv(lookup Lookup) error {
	if v, ok := lookup(EnvToken); ok && v != "" {
		c.Token = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.BaseURL = v
	}
	if v, ok := lookup(EnvBot); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", EnvBot)
		}
		c.Bot = b
	}
	return nil
}

// PaceDuration parses Pace; an empty Pace yields 0, meaning the
// default.
func (c *Config) PaceDuration() (time.Duration, error) {
	if c.Pace == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Pace)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing pace %q", c.Pace)
	}
	if d < 0 {
		return 0, errors.Errorf("pace %q is negative", c.Pace)
	}
	return d, nil
}

// Validate checks the values that do not depend on the operator
// being asked for anything.
func (c *Config) Validate() error {
	if c.Max < 0 {
		return errors.Errorf("max must not be negative, got %d", c.Max)
	}
	if _, err := c.PaceDuration(); err != nil {
		return err
	}
	for _, ch := range c.Channels {
		if _, err := strconv.ParseUint(ch, 10, 64); err != nil {
			return errors.Errorf("channel %q is not a numeric id", ch)
		}
	}
	return nil
}
