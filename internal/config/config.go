package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the application configuration
type Config struct {
	// General settings
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	OutputDir string `yaml:"output_dir"`

	Scanning ScanningConfig `yaml:"scanning"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ScanningConfig controls how probes are built and sent
type ScanningConfig struct {
	Timeout         int               `yaml:"timeout"` // seconds
	UserAgent       string            `yaml:"user_agent"`
	FollowRedirects bool              `yaml:"follow_redirects"`
	MaxRedirects    int               `yaml:"max_redirects"`
	VerifySSL       bool              `yaml:"verify_ssl"`
	MaxBodySize     int               `yaml:"max_body_size"`
	PayloadLimit    int               `yaml:"payload_limit"`
	Randomize       bool              `yaml:"randomize"`
	Seed            int64             `yaml:"seed"` // 0 means seed from the clock
	Proxy           string            `yaml:"proxy"`
	Contexts        []string          `yaml:"contexts"`
	Headers         map[string]string `yaml:"headers"`
}

// CacheConfig configures where scan results are stored
type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	TTL           int    `yaml:"ttl"` // seconds
	Encrypt       bool   `yaml:"encrypt"`
	Secret        string `yaml:"secret"`
}

// searchPaths lists config files in lookup order; the first one found wins
var searchPaths = []string{
	"./configs/default.yaml",
	"~/.reflectscan.yaml",
	"/etc/reflectscan/config.yaml",
}

// Load loads configuration from the first config file found and environment variables
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom loads configuration from path, or from the search paths when path is empty
func LoadFrom(path string) (*Config, error) {
	config := Default()

	if err := loadFromFile(config, path); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		OutputDir: ".",
		Scanning: ScanningConfig{
			Timeout:         8,
			UserAgent:       "reflectscan/1.0",
			FollowRedirects: true,
			MaxRedirects:    10,
			VerifySSL:       true,
			MaxBodySize:     10 * 1024 * 1024,
			PayloadLimit:    2,
			Contexts:        []string{"attribute-name", "attribute-value", "text-node", "script"},
		},
		Cache: CacheConfig{
			RedisDB: 0,
			TTL:     7 * 24 * 3600,
		},
	}
}

func loadFromFile(config *Config, path string) error {
	paths := searchPaths
	if path != "" {
		paths = []string{path}
	}

	for _, p := range paths {
		p = expandPath(p)
		data, err := os.ReadFile(p)
		if err != nil {
			if path != "" {
				return err
			}
			continue
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", p, err)
		}
		return nil
	}

	// No config file found, use defaults
	return nil
}

func loadFromEnv(config *Config) error {
	if v := os.Getenv("REFLECTSCAN_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv("REFLECTSCAN_PROXY"); v != "" {
		config.Scanning.Proxy = v
	}
	if v := os.Getenv("REFLECTSCAN_REDIS_ADDR"); v != "" {
		config.Cache.RedisAddr = v
	}
	if v := os.Getenv("REFLECTSCAN_REDIS_PASSWORD"); v != "" {
		config.Cache.RedisPassword = v
	}
	if v := os.Getenv("REFLECTSCAN_CACHE_SECRET"); v != "" {
		config.Cache.Secret = v
		config.Cache.Encrypt = true
	}
	if v := os.Getenv("REFLECTSCAN_TIMEOUT"); v != "" {
		timeout, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REFLECTSCAN_TIMEOUT: %w", err)
		}
		config.Scanning.Timeout = timeout
	}

	return nil
}

// Validate checks value ranges and cross-field constraints
func Validate(config *Config) error {
	switch config.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, config.LogLevel)
	}

	if config.Scanning.Timeout < 1 || config.Scanning.Timeout > 300 {
		return fmt.Errorf("%w: timeout must be between 1 and 300 seconds", ErrInvalidConfig)
	}

	if config.Scanning.PayloadLimit < 1 {
		return fmt.Errorf("%w: payload_limit must be at least 1", ErrInvalidConfig)
	}

	if config.Scanning.MaxRedirects < 0 {
		return fmt.Errorf("%w: max_redirects must not be negative", ErrInvalidConfig)
	}

	if config.Cache.Encrypt && config.Cache.Secret == "" {
		return fmt.Errorf("%w: cache encryption requires a secret", ErrInvalidConfig)
	}

	if p := config.Scanning.Proxy; p != "" {
		scheme, _, _ := strings.Cut(strings.ToLower(p), "://")
		switch scheme {
		case "http", "https", "socks5", "socks5h":
		default:
			return fmt.Errorf("%w: unsupported proxy scheme in %q", ErrInvalidConfig, p)
		}
	}

	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
