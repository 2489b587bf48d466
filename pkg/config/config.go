package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up on the search path
const FileName = "registry.yaml"

// Environment variables consulted by Load and LoadClient
const (
	EnvConfigPath   = "ICE_CONFIG_PATH"
	EnvRegistryHost = "ICE_REGISTRY_HOST"
	EnvRegistryPort = "ICE_REGISTRY_PORT"
)

// Defaults
const (
	DefaultHost           = "localhost"
	DefaultPort           = 5000
	DefaultListenHost     = "0.0.0.0"
	DefaultStorageBackend = "bolt"
	DefaultDataDir        = "/var/lib/ice"
	DefaultPublicIPPolicy = "fallback"
	DefaultNATSSubject    = "ice.registry.events"
	DefaultLogLevel       = "info"
)

// Config is the content of registry.yaml
type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
}

// ServerConfig configures the registry server
type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	Storage           StorageConfig `yaml:"storage"`
	TrustForwardedFor bool          `yaml:"trust_forwarded_for"`
	PublicIPPolicy    string        `yaml:"public_ip_policy"`
	Metrics           *bool         `yaml:"metrics"`
	NATS              NATSConfig    `yaml:"nats"`
	Log               LogConfig     `yaml:"log"`
}

// StorageConfig selects the document store
type StorageConfig struct {
	Backend string `yaml:"backend"`
	DataDir string `yaml:"data_dir"`
}

// NATSConfig enables event export when URL is set
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// LogConfig configures pkg/log
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ClientConfig locates the registry for the CLI
type ClientConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns host:port
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MetricsEnabled reports whether /metrics is served. It defaults to true.
func (s ServerConfig) MetricsEnabled() bool {
	return s.Metrics == nil || *s.Metrics
}

// Default returns a Config with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultListenHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Storage.Backend == "" {
		c.Server.Storage.Backend = DefaultStorageBackend
	}
	if c.Server.Storage.DataDir == "" {
		c.Server.Storage.DataDir = DefaultDataDir
	}
	if c.Server.PublicIPPolicy == "" {
		c.Server.PublicIPPolicy = DefaultPublicIPPolicy
	}
	if c.Server.NATS.Subject == "" {
		c.Server.NATS.Subject = DefaultNATSSubject
	}
	if c.Server.Log.Level == "" {
		c.Server.Log.Level = DefaultLogLevel
	}
	if c.Client.Host == "" {
		c.Client.Host = DefaultHost
	}
	if c.Client.Port == 0 {
		c.Client.Port = DefaultPort
	}
}

// Validate checks values that defaults cannot repair
func (c *Config) Validate() error {
	switch c.Server.Storage.Backend {
	case "bolt", "badger":
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Server.Storage.Backend)
	}
	switch c.Server.PublicIPPolicy {
	case "fallback", "observed":
	default:
		return fmt.Errorf("public_ip_policy: unknown policy %q", c.Server.PublicIPPolicy)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	if c.Client.Port < 0 || c.Client.Port > 65535 {
		return fmt.Errorf("client.port: %d out of range", c.Client.Port)
	}
	return nil
}

// SearchPath returns the directories scanned for registry.yaml, in order
func SearchPath(getenv func(string) string) []string {
	var dirs []string
	if dir := getenv(EnvConfigPath); dir != "" {
		dirs = append(dirs, dir)
	}
	dirs = append(dirs, ".")
	if home := getenv("HOME"); home != "" {
		dirs = append(dirs, filepath.Join(home, ".ice"))
	}
	return append(dirs, "/etc/ice")
}

// Find returns the first registry.yaml on the search path, or "" if none
// exists
func Find(getenv func(string) string) string {
	for _, dir := range SearchPath(getenv) {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// LoadFile reads a configuration file and applies defaults
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Load reads the file named by path, or the first registry.yaml on the
// search path when path is empty, then applies environment overrides.
// A missing file on the search path is not an error.
func Load(path string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if path == "" {
		path = Find(getenv)
	}

	cfg := Default()
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClient is Load narrowed to the client section. A broken file on the
// search path is reported.
func LoadClient(getenv func(string) string) (ClientConfig, error) {
	cfg, err := Load("", getenv)
	if err != nil {
		return ClientConfig{}, err
	}
	return cfg.Client, nil
}

var errBadPort = errors.New("invalid port")

func applyEnv(cfg *Config, getenv func(string) string) error {
	if host := getenv(EnvRegistryHost); host != "" {
		cfg.Client.Host = host
	}
	if raw := getenv(EnvRegistryPort); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("%s=%q: %w", EnvRegistryPort, raw, errBadPort)
		}
		cfg.Client.Port = port
	}
	return nil
}
