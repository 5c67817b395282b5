package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration.
//
// Values are layered: embedded defaults, then the TOML file, then the environment, then flags.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Poll     PollConfig     `toml:"poll"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig contains HTTP and real-time listener settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// UpstreamConfig contains the currently playing source settings.
//
// Endpoint mode bypasses token management entirely.
type UpstreamConfig struct {
	Endpoint      string        `toml:"endpoint"`
	ClientID      string        `toml:"client_id"`
	ClientSecret  string        `toml:"client_secret"`
	RefreshToken  string        `toml:"refresh_token"`
	TokenURL      string        `toml:"token_url"`
	NowPlayingURL string        `toml:"now_playing_url"`
	Platform      string        `toml:"platform"`
	Timeout       time.Duration `toml:"timeout"`
}

// PollConfig contains poll loop settings.
type PollConfig struct {
	Interval time.Duration `toml:"interval"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// EndpointMode reports whether a pre-built currently playing URL replaces direct credentials.
func (c *Config) EndpointMode() bool {
	return c.Upstream.Endpoint != ""
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

// Validate checks that the configuration can start a server, naming the first missing variable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: PORT must be between 1 and 65535, got %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("%w: POLL_INTERVAL must be positive", ErrInvalidConfig)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("%w: UPSTREAM_TIMEOUT must be positive", ErrInvalidConfig)
	}

	if c.EndpointMode() {
		u, err := url.Parse(c.Upstream.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: ENDPOINT is not an absolute URL: %q", ErrInvalidConfig, c.Upstream.Endpoint)
		}
		return nil
	}

	required := []struct {
		name  string
		value string
	}{
		{"CLIENT_ID", c.Upstream.ClientID},
		{"CLIENT_SECRET", c.Upstream.ClientSecret},
		{"REFRESH_TOKEN", c.Upstream.RefreshToken},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s is required when ENDPOINT is not set", ErrMissingConfig, r.name)
		}
	}
	return nil
}

// ApplyEnv overlays recognized environment variables onto the configuration.
//
// lookup is usually [os.LookupEnv]; unset variables leave the current value untouched.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
		*dst = d
		return nil
	}

	str("HOST", &c.Server.Host)
	str("ENDPOINT", &c.Upstream.Endpoint)
	str("CLIENT_ID", &c.Upstream.ClientID)
	str("CLIENT_SECRET", &c.Upstream.ClientSecret)
	str("REFRESH_TOKEN", &c.Upstream.RefreshToken)
	str("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT: %v", ErrInvalidConfig, err)
		}
		c.Server.Port = port
	}

	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}

	if err := dur("POLL_INTERVAL", &c.Poll.Interval); err != nil {
		return err
	}
	return dur("UPSTREAM_TIMEOUT", &c.Upstream.Timeout)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadEnv loads variables from a dotenv file into the process environment without overriding existing ones.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMissingConfig, path, err)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys absent from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// ResolveConfig loads path when it exists and falls back to defaults otherwise, then overlays the environment.
func ResolveConfig(path string, lookup func(string) (string, bool)) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		loaded, err := LoadConfig(path)
		switch {
		case err == nil:
			config = loaded
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := config.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: config file already exists at %s", ErrInvalidArgument, path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
