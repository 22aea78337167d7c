package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL      = "http://127.0.0.1:31352"
	DefaultDBFileName  = ".assetgate.db"
	DefaultLogLevel    = "info"
	DefaultUpstreamURL = "https://apis.roblox.com"

	DefaultHTTPTimeout           = 60 * time.Second
	DefaultKeyLimit              = 5
	DefaultMaxRequestBytes int64 = 4 * 1024 * 1024
	DefaultPollInterval          = time.Second
	DefaultPollTimeout           = 10 * time.Minute

	configFileName           = ".assetgate.toml"
	configDirEnvKey          = "ASSETGATE_CONFIG_DIR"
	trustProjectConfigEnvKey = "ASSETGATE_TRUST_PROJECT_CONFIG"

	redactedValue = "<set>"
)

// Duration is a time.Duration that decodes from TOML strings such as "1s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UpstreamConfig locates and authenticates against the asset service.
type UpstreamConfig struct {
	BaseURL        string   `toml:"base_url"`
	APIKey         string   `toml:"api_key"`
	UploaderUserID int64    `toml:"uploader_user_id"`
	UniverseID     int64    `toml:"universe_id"`
	HTTPTimeout    Duration `toml:"http_timeout"`
}

// AssetsConfig tunes the upload workflow.
type AssetsConfig struct {
	KeyLimit        int      `toml:"key_limit"`
	MaxRequestBytes int64    `toml:"max_request_bytes"`
	PollInterval    Duration `toml:"poll_interval"`
	PollTimeout     Duration `toml:"poll_timeout"`
	ArchiveDir      string   `toml:"archive_dir"`
}

// Config defines runtime configuration for assetgate.
type Config struct {
	APIURL                   string         `toml:"api_url"`
	DBPath                   string         `toml:"db_path"`
	LogLevel                 string         `toml:"log_level"`
	AdminPassword            string         `toml:"admin_password"`
	AdminPasswordHash        string         `toml:"admin_password_hash"`
	Upstream                 UpstreamConfig `toml:"upstream"`
	Assets                   AssetsConfig   `toml:"assets"`
	TrustedProjectConfigPath string         `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		DBPath:   "",
		LogLevel: DefaultLogLevel,
		Upstream: UpstreamConfig{
			BaseURL:     DefaultUpstreamURL,
			HTTPTimeout: Duration{DefaultHTTPTimeout},
		},
		Assets: AssetsConfig{
			KeyLimit:        DefaultKeyLimit,
			MaxRequestBytes: DefaultMaxRequestBytes,
			PollInterval:    Duration{DefaultPollInterval},
			PollTimeout:     Duration{DefaultPollTimeout},
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"log_level",
	"admin_password",
	"admin_password_hash",
	"upstream.base_url",
	"upstream.api_key",
	"upstream.uploader_user_id",
	"upstream.universe_id",
	"upstream.http_timeout",
	"assets.key_limit",
	"assets.max_request_bytes",
	"assets.poll_interval",
	"assets.poll_timeout",
	"assets.archive_dir",
}

var secretKeys = map[string]bool{
	"admin_password":      true,
	"admin_password_hash": true,
	"upstream.api_key":    true,
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key. Secrets are reported only as set
// or empty.
func (c *Config) Get(key string) (string, error) {
	var value string
	switch key {
	case "api_url":
		value = c.APIURL
	case "db_path":
		value = c.DBPath
	case "log_level":
		value = c.LogLevel
	case "admin_password":
		value = c.AdminPassword
	case "admin_password_hash":
		value = c.AdminPasswordHash
	case "upstream.base_url":
		value = c.Upstream.BaseURL
	case "upstream.api_key":
		value = c.Upstream.APIKey
	case "upstream.uploader_user_id":
		value = strconv.FormatInt(c.Upstream.UploaderUserID, 10)
	case "upstream.universe_id":
		value = strconv.FormatInt(c.Upstream.UniverseID, 10)
	case "upstream.http_timeout":
		value = c.Upstream.HTTPTimeout.String()
	case "assets.key_limit":
		value = strconv.Itoa(c.Assets.KeyLimit)
	case "assets.max_request_bytes":
		value = strconv.FormatInt(c.Assets.MaxRequestBytes, 10)
	case "assets.poll_interval":
		value = c.Assets.PollInterval.String()
	case "assets.poll_timeout":
		value = c.Assets.PollTimeout.String()
	case "assets.archive_dir":
		value = c.Assets.ArchiveDir
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
	if secretKeys[key] && value != "" {
		return redactedValue, nil
	}
	return value, nil
}

// AdminConfigured reports whether key administration can be unlocked.
func (c *Config) AdminConfigured() bool {
	return c.AdminPassword != "" || strings.TrimSpace(c.AdminPasswordHash) != ""
}

// ArchiveRoot returns the upload archive directory, defaulting to a
// directory next to the database.
func (c *Config) ArchiveRoot() string {
	if dir := strings.TrimSpace(c.Assets.ArchiveDir); dir != "" {
		return dir
	}
	return filepath.Join(filepath.Dir(c.DBPath), ".assetgate", "archive")
}

// Validate checks the settings the server needs before it starts.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, fmt.Errorf("db_path is required"))
	}
	if strings.TrimSpace(c.Upstream.APIKey) == "" {
		errs = append(errs, fmt.Errorf("upstream.api_key is required"))
	}
	if c.Upstream.UploaderUserID <= 0 {
		errs = append(errs, fmt.Errorf("upstream.uploader_user_id must be > 0"))
	}
	if c.Upstream.UniverseID <= 0 {
		errs = append(errs, fmt.Errorf("upstream.universe_id must be > 0"))
	}
	if c.Upstream.HTTPTimeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("upstream.http_timeout must be > 0"))
	}
	if c.Assets.KeyLimit <= 0 {
		errs = append(errs, fmt.Errorf("assets.key_limit must be > 0"))
	}
	if c.Assets.MaxRequestBytes <= 0 {
		errs = append(errs, fmt.Errorf("assets.max_request_bytes must be > 0"))
	}
	if c.Assets.PollInterval.Duration <= 0 {
		errs = append(errs, fmt.Errorf("assets.poll_interval must be > 0"))
	}
	if c.Assets.PollTimeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("assets.poll_timeout must be >= 0"))
	}
	return errors.Join(errs...)
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	perm := os.FileMode(0o644)
	if secretKeys[key] {
		perm = 0o600
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	stringVars := []struct {
		env string
		dst *string
	}{
		{"ASSETGATE_API_URL", &c.APIURL},
		{"ASSETGATE_DB", &c.DBPath},
		{"ASSETGATE_ADMIN_PASSWORD", &c.AdminPassword},
		{"ASSETGATE_ADMIN_PASSWORD_HASH", &c.AdminPasswordHash},
		{"ASSETGATE_UPSTREAM_URL", &c.Upstream.BaseURL},
		{"ASSETGATE_UPSTREAM_API_KEY", &c.Upstream.APIKey},
	}
	for _, v := range stringVars {
		if value := os.Getenv(v.env); value != "" {
			*v.dst = value
		}
	}

	intVars := []struct {
		env string
		dst *int64
	}{
		{"ASSETGATE_UPLOADER_USER_ID", &c.Upstream.UploaderUserID},
		{"ASSETGATE_UNIVERSE_ID", &c.Upstream.UniverseID},
	}
	for _, v := range intVars {
		raw := strings.TrimSpace(os.Getenv(v.env))
		if raw == "" {
			continue
		}
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: must be an integer", v.env, raw)
		}
		*v.dst = parsed
	}
	return nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "upstream.uploader_user_id", "upstream.universe_id", "assets.max_request_bytes":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "assets.key_limit":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "upstream.http_timeout", "assets.poll_interval", "assets.poll_timeout":
		parsed, err := parseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return parsed.String(), nil
	default:
		return value, nil
	}
}

// parseDuration accepts Go duration strings and bare integer seconds.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds < 0 {
			return 0, fmt.Errorf("duration %q must not be negative", raw)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", raw)
	}
	return d, nil
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}
