// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/slidecraft/slides-cli/internal/hostutil"
)

// Config holds the resolved configuration.
type Config struct {
	// Server
	BaseURL   string `json:"base_url" validate:"required,http_url"`
	APIPrefix string `json:"api_prefix" validate:"omitempty,startswith=/"`

	// Storage
	KeyPrefix      string `json:"key_prefix"`
	CacheDir       string `json:"cache_dir" validate:"required"`
	SessionBackend string `json:"session_backend" validate:"oneof=file redis"`
	RedisAddr      string `json:"redis_addr" validate:"required_if=SessionBackend redis"`
	RedisPassword  string `json:"redis_password"`
	RedisDB        int    `json:"redis_db" validate:"gte=0,lte=15"`

	// Timeouts
	RequestTimeout time.Duration `json:"request_timeout" validate:"gt=0"`
	FetchTimeout   time.Duration `json:"fetch_timeout" validate:"gte=0"`

	// Output
	Format string `json:"format" validate:"oneof=auto json markdown md styled quiet ids count"`

	// Sources tracks where each value came from.
	Sources map[string]string `json:"-"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceSystem  Source = "system"
	SourceGlobal  Source = "global"
	SourceLocal   Source = "local"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// FlagOverrides holds command-line flag values.
type FlagOverrides struct {
	Host     string
	CacheDir string
	Format   string
}

// Keys lists every settable key in display order.
var Keys = []string{
	"base_url",
	"api_prefix",
	"key_prefix",
	"cache_dir",
	"session_backend",
	"redis_addr",
	"redis_password",
	"redis_db",
	"request_timeout",
	"fetch_timeout",
	"format",
}

// authorityKeys decide where tokens are sent; local config may not set them.
var authorityKeys = map[string]bool{"base_url": true, "api_prefix": true}

// IsAuthorityKey reports whether key is ignored in local config files.
func IsAuthorityKey(key string) bool { return authorityKeys[key] }

// Defaults.
const (
	DefaultBaseURL        = "http://localhost:8000"
	DefaultAPIPrefix      = "/api"
	DefaultKeyPrefix      = "slides_"
	DefaultRequestTimeout = 180 * time.Second
	DefaultFetchTimeout   = 30 * time.Second
)

// Warnings receives non-fatal config problems. Tests may redirect it.
var Warnings io.Writer = os.Stderr

// Default returns the default configuration.
func Default() *Config {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}

	return &Config{
		BaseURL:        DefaultBaseURL,
		APIPrefix:      DefaultAPIPrefix,
		KeyPrefix:      DefaultKeyPrefix,
		CacheDir:       filepath.Join(cacheDir, "slides"),
		SessionBackend: "file",
		RequestTimeout: DefaultRequestTimeout,
		FetchTimeout:   DefaultFetchTimeout,
		Format:         "auto",
		Sources:        make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > local > global > system > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	loadFromFile(cfg, SystemConfigPath(), SourceSystem)
	loadFromFile(cfg, GlobalConfigPath(), SourceGlobal)
	loadFromFile(cfg, LocalConfigPath(), SourceLocal)

	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	ApplyOverrides(cfg, overrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string, source Source) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return
	}

	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(Warnings, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	for _, key := range Keys {
		v, ok := fileCfg[key]
		if !ok || v == nil {
			continue
		}
		if source == SourceLocal && authorityKeys[key] {
			fmt.Fprintf(Warnings, "warning: ignoring %s from local config at %s (authority keys are not trusted from local config)\n", key, path)
			continue
		}
		if err := cfg.set(key, stringValue(v)); err != nil {
			fmt.Fprintf(Warnings, "warning: ignoring %s in %s: %v\n", key, path, err)
			continue
		}
		cfg.Sources[key] = string(source)
	}
}

// LoadFromEnv loads configuration from SLIDES_* environment variables.
func LoadFromEnv(cfg *Config) error {
	for _, key := range Keys {
		env := EnvVar(key)
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		if err := cfg.set(key, v); err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
		cfg.Sources[key] = string(SourceEnv)
	}
	return nil
}

// EnvVar returns the environment variable for a key.
func EnvVar(key string) string {
	return "SLIDES_" + strings.ToUpper(key)
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.Host != "" {
		cfg.BaseURL = NormalizeBaseURL(hostutil.Normalize(o.Host))
		cfg.Sources["base_url"] = string(SourceFlag)
	}
	if o.CacheDir != "" {
		cfg.CacheDir = o.CacheDir
		cfg.Sources["cache_dir"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
}

// set parses a string value into the named field.
func (cfg *Config) set(key, value string) error {
	switch key {
	case "base_url":
		cfg.BaseURL = NormalizeBaseURL(value)
	case "api_prefix":
		cfg.APIPrefix = NormalizeBaseURL(value)
	case "key_prefix":
		cfg.KeyPrefix = value
	case "cache_dir":
		cfg.CacheDir = value
	case "session_backend":
		cfg.SessionBackend = value
	case "redis_addr":
		cfg.RedisAddr = value
	case "redis_password":
		cfg.RedisPassword = value
	case "redis_db":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("redis_db must be an integer")
		}
		cfg.RedisDB = n
	case "request_timeout":
		d, err := ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.RequestTimeout = d
	case "fetch_timeout":
		d, err := ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.FetchTimeout = d
	case "format":
		cfg.Format = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

// Value returns the display form of a key's value.
func (cfg *Config) Value(key string) string {
	switch key {
	case "base_url":
		return cfg.BaseURL
	case "api_prefix":
		return cfg.APIPrefix
	case "key_prefix":
		return cfg.KeyPrefix
	case "cache_dir":
		return cfg.CacheDir
	case "session_backend":
		return cfg.SessionBackend
	case "redis_addr":
		return cfg.RedisAddr
	case "redis_password":
		if cfg.RedisPassword != "" {
			return "********"
		}
		return ""
	case "redis_db":
		return strconv.Itoa(cfg.RedisDB)
	case "request_timeout":
		return cfg.RequestTimeout.String()
	case "fetch_timeout":
		return cfg.FetchTimeout.String()
	case "format":
		return cfg.Format
	}
	return ""
}

// Source returns where a key's value came from.
func (cfg *Config) Source(key string) string {
	if s := cfg.Sources[key]; s != "" {
		return s
	}
	return string(SourceDefault)
}

// ParseDuration accepts Go durations ("30s") or a bare number of seconds.
func ParseDuration(value string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return d, nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks the resolved configuration.
func (cfg *Config) Validate() error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: invalid value %q (%s)", fe.Field(), fmt.Sprint(fe.Value()), fe.Tag()))
	}
	sort.Strings(msgs)
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Path helpers

// SystemConfigPath is the machine-wide config file.
func SystemConfigPath() string {
	return "/etc/slides/config.json"
}

// GlobalConfigDir returns the per-user config directory.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "slides")
}

// GlobalConfigPath is the per-user config file.
func GlobalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}

// LocalConfigPath is the config file in the current directory.
func LocalConfigPath() string {
	return filepath.Join(".slides", "config.json")
}

// NormalizeBaseURL ensures consistent URL format (no trailing slash).
func NormalizeBaseURL(url string) string {
	return strings.TrimSuffix(url, "/")
}

// SetFileValue sets key in the JSON config file at path, creating it if needed.
func SetFileValue(path, key, value string) error {
	candidate := Default()
	if err := candidate.set(key, value); err != nil {
		return err
	}

	data, err := readFileMap(path)
	if err != nil {
		return err
	}
	switch key {
	case "redis_db":
		data[key] = candidate.RedisDB
	default:
		data[key] = value
	}
	return writeFileMap(path, data)
}

// UnsetFileValue removes key from the JSON config file at path.
// It reports whether the key was present.
func UnsetFileValue(path, key string) (bool, error) {
	data, err := readFileMap(path)
	if err != nil {
		return false, err
	}
	if _, ok := data[key]; !ok {
		return false, nil
	}
	delete(data, key)
	return true, writeFileMap(path, data)
}

func readFileMap(path string) (map[string]any, error) {
	data := make(map[string]any)
	raw, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config location
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, err
	}
	_ = json.Unmarshal(raw, &data) // start fresh if invalid
	return data, nil
}

func writeFileMap(path string, m map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return atomicWriteFile(path, append(data, '\n'))
}

// atomicWriteFile writes data to a file atomically using temp+rename.
// Files are always created with 0600 permissions.
func atomicWriteFile(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(path)
			return os.Rename(tmpPath, path)
		}
		os.Remove(tmpPath)
		return err
	}
	return nil
}
