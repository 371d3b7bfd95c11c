package client

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/apimgr/weather-probe/src/nws"
)

// CLIConfig represents the probe configuration (cli.yml)
type CLIConfig struct {
	// Upstream NWS API settings
	Server ServerConfig `yaml:"server,omitempty"`
	// Smoke-test targets
	Probe ProbeConfig `yaml:"probe,omitempty"`
	// Output preferences
	Output OutputConfig `yaml:"output,omitempty"`
	// Response cache
	Cache CacheConfig `yaml:"cache,omitempty"`
	// Logging
	Logging LoggingConfig `yaml:"logging,omitempty"`
	// Metrics export
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
	// HTTP API (serve command)
	Serve ServeConfig `yaml:"serve,omitempty"`
	// Scheduled probing (watch command)
	Watch WatchConfig `yaml:"watch,omitempty"`
	// Fail on upstream errors instead of printing fallback messages
	Strict bool `yaml:"strict,omitempty"`
	// Debug mode
	Debug bool `yaml:"debug,omitempty"`
}

// ServerConfig holds upstream API settings
type ServerConfig struct {
	BaseURL   string `yaml:"base_url,omitempty"`
	UserAgent string `yaml:"user_agent,omitempty"`
	Timeout   string `yaml:"timeout,omitempty"`
}

// ProbeConfig holds the coordinates and area code the smoke test queries
type ProbeConfig struct {
	Latitude      float64 `yaml:"latitude"`
	Longitude     float64 `yaml:"longitude"`
	LocationLabel string  `yaml:"location_label,omitempty"`
	Area          string  `yaml:"area,omitempty"`
	AreaLabel     string  `yaml:"area_label,omitempty"`
}

// OutputConfig holds output preferences
type OutputConfig struct {
	Format string `yaml:"format,omitempty"`
	Color  string `yaml:"color,omitempty"`
}

// CacheConfig holds response cache settings
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	TTL     string `yaml:"ttl,omitempty"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
	File  string `yaml:"file,omitempty"`
}

// MetricsConfig holds metrics export settings
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// ServeConfig holds HTTP API settings
type ServeConfig struct {
	Listen    string `yaml:"listen,omitempty"`
	RateLimit int    `yaml:"rate_limit,omitempty"`
}

// WatchConfig holds scheduled probing settings
type WatchConfig struct {
	Schedule string `yaml:"schedule,omitempty"`
}

// DefaultConfig returns the default configuration: the Cape Town forecast
// and the Western Cape alerts
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		Server: ServerConfig{
			BaseURL:   nws.DefaultBaseURL,
			UserAgent: nws.DefaultUserAgent,
			Timeout:   "30s",
		},
		Probe: ProbeConfig{
			Latitude:      -33.9249,
			Longitude:     18.4241,
			LocationLabel: "Cape Town",
			Area:          "WC",
			AreaLabel:     "Western Cape (ZA)",
		},
		Output: OutputConfig{
			Format: "plain",
			Color:  "auto",
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     "5m",
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
		Serve: ServeConfig{
			Listen:    "127.0.0.1:64950",
			RateLimit: 60,
		},
		Watch: WatchConfig{
			Schedule: "@every 10m",
		},
	}
}

// TimeoutDuration returns the upstream request timeout
func (c *CLIConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Server.Timeout)
	if err != nil || d <= 0 {
		return nws.DefaultTimeout
	}
	return d
}

// CacheTTL returns the response cache TTL, zero when caching is off
func (c *CLIConfig) CacheTTL() time.Duration {
	if !c.Cache.Enabled {
		return 0
	}
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil || d < 0 {
		return nws.DefaultCacheTTL
	}
	return d
}

// Validate checks values that would otherwise fail late
func (c *CLIConfig) Validate() error {
	if c.Server.BaseURL == "" {
		return NewConfigError("server.base_url must not be empty")
	}
	if c.Server.Timeout != "" {
		if _, err := time.ParseDuration(c.Server.Timeout); err != nil {
			return NewConfigError(fmt.Sprintf("server.timeout: %v", err))
		}
	}
	if c.Cache.TTL != "" {
		if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
			return NewConfigError(fmt.Sprintf("cache.ttl: %v", err))
		}
	}
	switch c.Output.Format {
	case "plain", "json":
	default:
		return NewConfigError("output.format must be plain or json")
	}
	switch c.Output.Color {
	case "auto", "always", "never":
	default:
		return NewConfigError("output.color must be auto, always, or never")
	}
	return nil
}

// ResolveConfigPath returns path, or the default config file when path is empty.
// A bare name without separators resolves to {config_dir}/{name}.yml.
func ResolveConfigPath(path string) string {
	if path == "" {
		return CLIConfigFile()
	}
	if !strings.ContainsRune(path, os.PathSeparator) && !strings.Contains(path, "/") {
		if !strings.HasSuffix(path, ".yml") && !strings.HasSuffix(path, ".yaml") {
			path = path + ".yml"
		}
		return filepath.Join(CLIConfigDir(), path)
	}
	return path
}

// LoadConfig loads configuration from path (see ResolveConfigPath).
// Precedence: defaults, config file, environment (.env included).
func LoadConfig(path string) (*CLIConfig, error) {
	// A missing .env is not an error
	_ = godotenv.Load()

	configPath := ResolveConfigPath(path)

	// Start with defaults
	config := DefaultConfig()

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, NewConfigError(fmt.Sprintf("failed to parse config: %v", err))
		}
	} else if !os.IsNotExist(err) {
		return nil, NewConfigError(fmt.Sprintf("failed to read config: %v", err))
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnv applies WEATHER_PROBE_{SECTION}_{KEY} overrides
func applyEnv(config *CLIConfig) error {
	for key := range configKeys {
		envName := "WEATHER_PROBE_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		if v, ok := os.LookupEnv(envName); ok && v != "" {
			if err := setValue(config, key, v); err != nil {
				return NewConfigError(fmt.Sprintf("%s: %v", envName, err))
			}
		}
	}
	if IsTruthy(os.Getenv("WEATHER_PROBE_DEBUG")) {
		config.Debug = true
	}
	return nil
}

// SaveConfig writes the configuration to path (see ResolveConfigPath)
func SaveConfig(path string, config *CLIConfig) error {
	configPath := ResolveConfigPath(path)

	if err := EnsureDir(filepath.Dir(configPath)); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return NewConfigError(fmt.Sprintf("failed to marshal config: %v", err))
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return NewConfigError(fmt.Sprintf("failed to write config: %v", err))
	}

	return nil
}

// InitConfig writes a default configuration file, refusing to overwrite
func InitConfig(path string) (string, error) {
	configPath := ResolveConfigPath(path)

	if _, err := os.Stat(configPath); err == nil {
		return "", NewConfigError("config file already exists: " + configPath)
	}

	config := DefaultConfig()
	config.Logging.File = CLILogFile()
	if err := SaveConfig(configPath, config); err != nil {
		return "", err
	}
	return configPath, nil
}

// configKeys lists the dot-notation keys accepted by get/set and the environment
var configKeys = map[string]func(c *CLIConfig) string{
	"server.base_url":      func(c *CLIConfig) string { return c.Server.BaseURL },
	"server.user_agent":    func(c *CLIConfig) string { return c.Server.UserAgent },
	"server.timeout":       func(c *CLIConfig) string { return c.Server.Timeout },
	"probe.latitude":       func(c *CLIConfig) string { return nws.FormatCoordinate(c.Probe.Latitude) },
	"probe.longitude":      func(c *CLIConfig) string { return nws.FormatCoordinate(c.Probe.Longitude) },
	"probe.location_label": func(c *CLIConfig) string { return c.Probe.LocationLabel },
	"probe.area":           func(c *CLIConfig) string { return c.Probe.Area },
	"probe.area_label":     func(c *CLIConfig) string { return c.Probe.AreaLabel },
	"output.format":        func(c *CLIConfig) string { return c.Output.Format },
	"output.color":         func(c *CLIConfig) string { return c.Output.Color },
	"cache.enabled":        func(c *CLIConfig) string { return strconv.FormatBool(c.Cache.Enabled) },
	"cache.ttl":            func(c *CLIConfig) string { return c.Cache.TTL },
	"logging.level":        func(c *CLIConfig) string { return c.Logging.Level },
	"logging.file":         func(c *CLIConfig) string { return c.Logging.File },
	"metrics.textfile":     func(c *CLIConfig) string { return c.Metrics.Textfile },
	"serve.listen":         func(c *CLIConfig) string { return c.Serve.Listen },
	"serve.rate_limit":     func(c *CLIConfig) string { return strconv.Itoa(c.Serve.RateLimit) },
	"watch.schedule":       func(c *CLIConfig) string { return c.Watch.Schedule },
	"strict":               func(c *CLIConfig) string { return strconv.FormatBool(c.Strict) },
}

// GetConfigValue returns a configuration value by dot-notation key
func GetConfigValue(config *CLIConfig, key string) (string, error) {
	getter, ok := configKeys[key]
	if !ok {
		return "", NewConfigError(fmt.Sprintf("unknown config key: %s", key))
	}
	return getter(config), nil
}

// SetConfigValue loads the config at path, sets key and saves it
func SetConfigValue(path, key, value string) error {
	config, err := LoadConfig(path)
	if err != nil {
		return err
	}

	if err := setValue(config, key, value); err != nil {
		return NewConfigError(err.Error())
	}
	if err := config.Validate(); err != nil {
		return err
	}

	return SaveConfig(path, config)
}

func setValue(config *CLIConfig, key, value string) error {
	switch key {
	case "server.base_url":
		config.Server.BaseURL = strings.TrimSuffix(value, "/")
	case "server.user_agent":
		config.Server.UserAgent = value
	case "server.timeout":
		config.Server.Timeout = value
	case "probe.latitude", "probe.longitude":
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("%s must be a number", key)
		}
		if key == "probe.latitude" {
			config.Probe.Latitude = f
		} else {
			config.Probe.Longitude = f
		}
	case "probe.location_label":
		config.Probe.LocationLabel = value
	case "probe.area":
		config.Probe.Area = strings.ToUpper(strings.TrimSpace(value))
	case "probe.area_label":
		config.Probe.AreaLabel = value
	case "output.format":
		config.Output.Format = value
	case "output.color":
		config.Output.Color = value
	case "cache.enabled":
		config.Cache.Enabled = IsTruthy(value)
	case "cache.ttl":
		config.Cache.TTL = value
	case "logging.level":
		config.Logging.Level = value
	case "logging.file":
		config.Logging.File = value
	case "metrics.textfile":
		config.Metrics.Textfile = value
	case "serve.listen":
		config.Serve.Listen = value
	case "serve.rate_limit":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return fmt.Errorf("serve.rate_limit must be a non-negative integer")
		}
		config.Serve.RateLimit = n
	case "watch.schedule":
		config.Watch.Schedule = value
	case "strict":
		config.Strict = IsTruthy(value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// IsTruthy parses a boolean string value.
// Supports: true/false, yes/no, 1/0, on/off, enable/disable
func IsTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "1", "on", "enable", "enabled":
		return true
	default:
		return false
	}
}
