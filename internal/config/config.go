// Package config loads aoide settings from a file and the environment.
//
// Files may be YAML, JSON or TOML, chosen by extension. AOIDE_* environment
// variables override file values (AOIDE_ENDPOINT_URL sets endpoint_url).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/aretw0/aoide/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides.
const EnvPrefix = "AOIDE_"

// Store backends.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Config is the full settings tree.
type Config struct {
	EndpointURL    string        `mapstructure:"endpoint_url" json:"endpoint_url" yaml:"endpoint_url"`
	GatewayURL     string        `mapstructure:"gateway_url" json:"gateway_url" yaml:"gateway_url"`
	Wallet         string        `mapstructure:"wallet" json:"wallet,omitempty" yaml:"wallet,omitempty"`
	Module         string        `mapstructure:"module" json:"module" yaml:"module"`
	Readiness      string        `mapstructure:"readiness" json:"readiness" yaml:"readiness"`
	PollInterval   time.Duration `mapstructure:"poll_interval" json:"poll_interval" yaml:"poll_interval"`
	ReadyTimeout   time.Duration `mapstructure:"ready_timeout" json:"ready_timeout" yaml:"ready_timeout"`
	RegisterDelay  time.Duration `mapstructure:"register_delay" json:"register_delay" yaml:"register_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout" yaml:"request_timeout"`
	Proxy          string        `mapstructure:"proxy" json:"proxy,omitempty" yaml:"proxy,omitempty"`
	LogLevel       string        `mapstructure:"log_level" json:"log_level" yaml:"log_level"`
	LogFile        string        `mapstructure:"log_file" json:"log_file,omitempty" yaml:"log_file,omitempty"`
	Store          string        `mapstructure:"store" json:"store" yaml:"store"`
	StorePath      string        `mapstructure:"store_path" json:"store_path" yaml:"store_path"`
	RedisAddr      string        `mapstructure:"redis_addr" json:"redis_addr" yaml:"redis_addr"`
	RedisPassword  string        `mapstructure:"redis_password" json:"-" yaml:"-"`
	EncryptionKey  string        `mapstructure:"encryption_key" json:"-" yaml:"-"`
	RedactSecrets  bool          `mapstructure:"redact_secrets" json:"redact_secrets" yaml:"redact_secrets"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		EndpointURL:    "http://localhost:8734",
		GatewayURL:     "https://arweave.net",
		Module:         domain.DefaultModule,
		Readiness:      "await",
		PollInterval:   time.Second,
		ReadyTimeout:   5 * time.Second,
		RegisterDelay:  100 * time.Millisecond,
		RequestTimeout: 30 * time.Second,
		LogLevel:       "info",
		Store:          StoreFile,
		StorePath:      filepath.Join(".aoide", "projects"),
		RedisAddr:      "localhost:6379",
	}
}

// Candidates are probed in order when no file is given.
var Candidates = []string{"aoide.yaml", "aoide.yml", "aoide.toml", "aoide.json"}

// Load reads path (or the first existing candidate when path is empty),
// applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	return load(path, os.Environ())
}

func load(path string, environ []string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = findCandidate()
	}
	if path != "" {
		fileRaw, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		raw := make(map[string]any, len(fileRaw))
		for k, v := range fileRaw {
			raw[strings.ToLower(k)] = v
		}
		if err := decode(raw, &cfg, true); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	}

	// Unrelated AOIDE_* variables are ignored.
	if err := decode(envOverrides(environ), &cfg, false); err != nil {
		return Config{}, fmt.Errorf("environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func findCandidate() string {
	for _, c := range Candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	raw := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".json":
		err = json.Unmarshal(data, &raw)
	case ".toml":
		_, err = toml.Decode(string(data), &raw)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return raw, nil
}

func envOverrides(environ []string) map[string]any {
	out := map[string]any{}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		out[strings.ToLower(strings.TrimPrefix(k, EnvPrefix))] = v
	}
	return out
}

func decode(raw map[string]any, cfg *Config, strict bool) error {
	var meta mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Metadata:         &meta,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if strict && len(meta.Unused) > 0 {
		return fmt.Errorf("unknown config keys: %s", strings.Join(meta.Unused, ", "))
	}
	return nil
}

// Validate checks enumerations and bounds.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Readiness) {
	case "await", "fire-and-forget":
	default:
		errs = append(errs, fmt.Errorf("readiness must be await or fire-and-forget, got %q", c.Readiness))
	}
	switch c.Store {
	case StoreFile, StoreMemory, StoreRedis, StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("store must be file, memory, redis or sqlite, got %q", c.Store))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}
	if c.ReadyTimeout <= 0 {
		errs = append(errs, errors.New("ready_timeout must be positive"))
	}
	if c.RegisterDelay < 0 {
		errs = append(errs, errors.New("register_delay must not be negative"))
	}
	if c.EndpointURL == "" {
		errs = append(errs, errors.New("endpoint_url is required"))
	}
	return errors.Join(errs...)
}
