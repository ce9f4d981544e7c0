package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-yaml"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".giztoy"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("cli: invalid config")

// Check validates settings whose legal values belong to another package,
// such as the threshold range or the history kinds. A failing Check should
// wrap ErrInvalidConfig.
type Check func(*Config) error

// Config is the speakerid configuration file.
type Config struct {
	// AppName is the application name (e.g., "speakerid")
	AppName string `yaml:"-"`

	// Threshold is the cosine similarity needed to accept a match.
	Threshold float64 `yaml:"threshold"`

	// Model selects the embedding backend by registry name.
	Model string `yaml:"model"`

	// DataDir holds the template blob and the history database.
	// Relative paths are resolved against the config directory.
	DataDir string `yaml:"data_dir"`

	// ReferenceDir holds one normalized recording per enrolled speaker.
	ReferenceDir string `yaml:"reference_dir"`

	// ProbeDir receives the last microphone identification probe.
	ProbeDir string `yaml:"probe_dir"`

	// Include lists the reference directory patterns for auto-registration.
	Include []string `yaml:"include"`

	// RecordSeconds is the microphone capture length.
	RecordSeconds int `yaml:"record_seconds"`

	// SampleRate is the normalized sample rate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// MinDuration is the shortest accepted clip, as a Go duration string.
	MinDuration string `yaml:"min_duration"`

	// History selects the identification history store: badger, memory
	// or off.
	History string `yaml:"history"`

	// CacheSize bounds the embedding cache. Zero disables it.
	CacheSize int `yaml:"cache_size"`

	// AutoRegisterOnStart enrolls the reference directory when the shell
	// or server starts.
	AutoRegisterOnStart bool `yaml:"auto_register_on_start"`

	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server"`

	// configPath is the path to the config file
	configPath string

	// checks run after the built-in rules in Validate.
	checks []Check
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig(appName string) *Config {
	return &Config{
		AppName:             appName,
		Threshold:           0.75,
		Model:               "fbank",
		DataDir:             "data",
		ReferenceDir:        "ref_voices",
		ProbeDir:            "test_voices",
		Include:             []string{"*.wav", "*.mp3"},
		RecordSeconds:       5,
		SampleRate:          16000,
		MinDuration:         "2s",
		History:             "badger",
		CacheSize:           64,
		AutoRegisterOnStart: true,
		Server:              ServerConfig{Addr: "127.0.0.1:8765"},
	}
}

// LoadConfig loads or creates configuration for the specified app
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from a custom path. A missing file
// is created with defaults. Keys absent from the file keep their defaults.
// The checks are kept on the config and run by every later Validate.
func LoadConfigWithPath(appName, customPath string, checks ...Check) (*Config, error) {
	var configPath string

	if customPath != "" {
		configPath = customPath
	} else {
		paths, err := NewPaths(appName)
		if err != nil {
			return nil, err
		}
		configPath = paths.ConfigFile()
	}

	// Ensure config directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := DefaultConfig(appName)
	cfg.configPath = configPath
	cfg.checks = checks

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
	}
	cfg.AppName = appName
	cfg.configPath = configPath
	cfg.checks = checks

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	return cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the config directory path
func (c *Config) Dir() string {
	return filepath.Dir(c.configPath)
}

// AddCheck appends a Check run by later calls to Validate and Set.
func (c *Config) AddCheck(check Check) {
	c.checks = append(c.checks, check)
}

// Validate checks every setting, then runs the registered checks.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model is empty", ErrInvalidConfig)
	}
	if c.RecordSeconds <= 0 {
		return fmt.Errorf("%w: record_seconds must be positive", ErrInvalidConfig)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample_rate must be positive", ErrInvalidConfig)
	}
	if _, err := c.MinDurationValue(); err != nil {
		return err
	}
	if c.History == "" {
		return fmt.Errorf("%w: history is empty", ErrInvalidConfig)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("%w: cache_size must not be negative", ErrInvalidConfig)
	}
	for _, p := range c.Include {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("%w: include pattern %q", ErrInvalidConfig, p)
		}
	}
	for _, check := range c.checks {
		if err := check(c); err != nil {
			return err
		}
	}
	return nil
}

// MinDurationValue parses MinDuration.
func (c *Config) MinDurationValue() (time.Duration, error) {
	d, err := time.ParseDuration(c.MinDuration)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: min_duration %q", ErrInvalidConfig, c.MinDuration)
	}
	return d, nil
}

// RecordDuration returns RecordSeconds as a duration.
func (c *Config) RecordDuration() time.Duration {
	return time.Duration(c.RecordSeconds) * time.Second
}

// ResolveDir expands "~/" and makes p absolute relative to the config
// directory.
func (c *Config) ResolveDir(p string) string {
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir(), p)
}

// DataPath returns the resolved data directory.
func (c *Config) DataPath() string { return c.ResolveDir(c.DataDir) }

// ReferencePath returns the resolved reference directory.
func (c *Config) ReferencePath() string { return c.ResolveDir(c.ReferenceDir) }

// ProbePath returns the resolved probe directory.
func (c *Config) ProbePath() string { return c.ResolveDir(c.ProbeDir) }

// Keys lists the settable keys in file order.
func Keys() []string {
	return []string{
		"threshold", "model", "data_dir", "reference_dir", "probe_dir",
		"include", "record_seconds", "sample_rate", "min_duration",
		"history", "cache_size", "auto_register_on_start", "server.addr",
	}
}

// Set assigns one key from its string form, validates the result and
// saves. The config is unchanged when validation fails.
func (c *Config) Set(key, value string) error {
	next := *c
	next.Include = append([]string(nil), c.Include...)

	var err error
	switch key {
	case "threshold":
		next.Threshold, err = strconv.ParseFloat(value, 64)
	case "model":
		next.Model = value
	case "data_dir":
		next.DataDir = value
	case "reference_dir":
		next.ReferenceDir = value
	case "probe_dir":
		next.ProbeDir = value
	case "include":
		next.Include = splitList(value)
	case "record_seconds":
		next.RecordSeconds, err = strconv.Atoi(value)
	case "sample_rate":
		next.SampleRate, err = strconv.Atoi(value)
	case "min_duration":
		next.MinDuration = value
	case "history":
		next.History = value
	case "cache_size":
		next.CacheSize, err = strconv.Atoi(value)
	case "auto_register_on_start":
		next.AutoRegisterOnStart, err = strconv.ParseBool(value)
	case "server.addr":
		next.Server.Addr = value
	default:
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return c.Save()
}

// Get returns the string form of one key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "threshold":
		return strconv.FormatFloat(c.Threshold, 'f', -1, 64), nil
	case "model":
		return c.Model, nil
	case "data_dir":
		return c.DataDir, nil
	case "reference_dir":
		return c.ReferenceDir, nil
	case "probe_dir":
		return c.ProbeDir, nil
	case "include":
		return strings.Join(c.Include, ","), nil
	case "record_seconds":
		return strconv.Itoa(c.RecordSeconds), nil
	case "sample_rate":
		return strconv.Itoa(c.SampleRate), nil
	case "min_duration":
		return c.MinDuration, nil
	case "history":
		return c.History, nil
	case "cache_size":
		return strconv.Itoa(c.CacheSize), nil
	case "auto_register_on_start":
		return strconv.FormatBool(c.AutoRegisterOnStart), nil
	case "server.addr":
		return c.Server.Addr, nil
	}
	return "", fmt.Errorf("unknown config key %q", key)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
