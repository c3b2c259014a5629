// Package config loads rfqflow settings.
//
// Precedence is defaults, then the YAML file, then RFQFLOW_* environment variables.
// Every leaf field carries an env tag; nested sections join their tags with "_", so
// runner.node_timeout is read from RFQFLOW_RUNNER_NODE_TIMEOUT.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RFQFLOW"

// Checkpoint drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverSQL    = "sql"
)

// LLM providers.
const (
	ProviderOpenAI   = "openai"
	ProviderScripted = "scripted"
)

type Config struct {
	Server     ServerConfig     `yaml:"server" env:"SERVER"`
	Auth       AuthConfig       `yaml:"auth" env:"AUTH"`
	LLM        LLMConfig        `yaml:"llm" env:"LLM"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" env:"CHECKPOINT"`
	Database   DatabaseConfig   `yaml:"database" env:"DATABASE"`
	Runner     RunnerConfig     `yaml:"runner" env:"RUNNER"`
	Export     ExportConfig     `yaml:"export" env:"EXPORT"`
	Log        LogConfig        `yaml:"log" env:"LOG"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	MCPAddr         string        `yaml:"mcp_addr" env:"MCP_ADDR"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
	RateLimit       float64       `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst       int           `yaml:"rate_burst" env:"RATE_BURST"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// AuthConfig enables bearer tokens when Secret is set. Without it every request
// runs as DefaultTenant.
type AuthConfig struct {
	Secret        string `yaml:"secret" env:"SECRET"`
	Issuer        string `yaml:"issuer" env:"ISSUER"`
	DefaultTenant string `yaml:"default_tenant" env:"DEFAULT_TENANT"`
}

type LLMConfig struct {
	Provider   string        `yaml:"provider" env:"PROVIDER"`
	APIKey     string        `yaml:"api_key" env:"API_KEY"`
	BaseURL    string        `yaml:"base_url" env:"BASE_URL"`
	Model      string        `yaml:"model" env:"MODEL"`
	MaxRetries int           `yaml:"max_retries" env:"MAX_RETRIES"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type CheckpointConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	// Path is the directory of the file driver.
	Path string `yaml:"path" env:"PATH"`

	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB"`
	TTL           time.Duration `yaml:"ttl" env:"TTL"`

	// HistoryLimit bounds the versions the sql driver keeps per thread. Zero keeps all.
	HistoryLimit int `yaml:"history_limit" env:"HISTORY_LIMIT"`

	// EncryptionKey and FallbackKeys are hex-encoded AES-256 keys.
	EncryptionKey string   `yaml:"encryption_key" env:"ENCRYPTION_KEY"`
	FallbackKeys  []string `yaml:"fallback_keys" env:"FALLBACK_KEYS"`
	// Redact lists patterns of session keys whose values are masked before storage.
	Redact []string `yaml:"redact" env:"REDACT"`
}

// DatabaseConfig selects the relational store backing documents, proposals and
// memories. An empty Driver keeps them in memory.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	DSN    string `yaml:"dsn" env:"DSN"`
}

type RunnerConfig struct {
	RecursionLimit int           `yaml:"recursion_limit" env:"RECURSION_LIMIT"`
	NodeTimeout    time.Duration `yaml:"node_timeout" env:"NODE_TIMEOUT"`
	MaxRevisions   int           `yaml:"max_revisions" env:"MAX_REVISIONS"`
	RetrievalK     int           `yaml:"retrieval_k" env:"RETRIEVAL_K"`
	MemoryK        int           `yaml:"memory_k" env:"MEMORY_K"`
	LockTTL        time.Duration `yaml:"lock_ttl" env:"LOCK_TTL"`
}

type ExportConfig struct {
	Root string `yaml:"root" env:"ROOT"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the settings used for anything left unset.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			RateLimit:       5,
			RateBurst:       10,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{DefaultTenant: "default"},
		LLM: LLMConfig{
			Provider:   ProviderOpenAI,
			MaxRetries: 2,
			Timeout:    2 * time.Minute,
		},
		Checkpoint: CheckpointConfig{
			Driver: DriverMemory,
			Path:   ".rfqflow/threads",
		},
		Runner: RunnerConfig{
			RecursionLimit: 25,
			MaxRevisions:   5,
			RetrievalK:     3,
			MemoryK:        5,
			LockTTL:        5 * time.Minute,
		},
		Export: ExportConfig{Root: ".rfqflow/export"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (optional; a missing file is not an error) and applies environment overrides.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(reflect.ValueOf(cfg).Elem(), EnvPrefix, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Checkpoint.Driver {
	case DriverMemory, DriverFile, DriverRedis:
	case DriverSQL:
		if c.Database.Driver == "" {
			errs = append(errs, errors.New("checkpoint driver sql needs database.driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown checkpoint driver %q", c.Checkpoint.Driver))
	}
	if c.Checkpoint.Driver == DriverRedis && c.Checkpoint.RedisAddr == "" {
		errs = append(errs, errors.New("checkpoint driver redis needs checkpoint.redis_addr"))
	}
	if c.Checkpoint.EncryptionKey != "" {
		if _, _, err := c.Checkpoint.Keys(); err != nil {
			errs = append(errs, err)
		}
	}
	switch c.Database.Driver {
	case "", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderScripted:
	default:
		errs = append(errs, fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
	}
	if c.Runner.RecursionLimit <= 0 {
		errs = append(errs, errors.New("runner.recursion_limit must be positive"))
	}
	if c.Runner.MaxRevisions < 0 {
		errs = append(errs, errors.New("runner.max_revisions must not be negative"))
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		errs = append(errs, errors.New("server rate limits must not be negative"))
	}
	if c.Auth.Secret != "" && len(c.Auth.Secret) < 32 {
		errs = append(errs, errors.New("auth.secret must be at least 32 bytes"))
	}
	if c.Auth.DefaultTenant == "" && c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.default_tenant is required when auth is disabled"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Keys decodes the encryption keys.
func (c CheckpointConfig) Keys() (active []byte, fallback [][]byte, err error) {
	active, err = hex.DecodeString(c.EncryptionKey)
	if err != nil || len(active) != 32 {
		return nil, nil, errors.New("checkpoint.encryption_key must be 64 hex characters")
	}
	for i, k := range c.FallbackKeys {
		key, err := hex.DecodeString(k)
		if err != nil || len(key) != 32 {
			return nil, nil, fmt.Errorf("checkpoint.fallback_keys[%d] must be 64 hex characters", i)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func applyEnv(v reflect.Value, prefix string, lookup func(string) (string, bool)) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + tag
		if field.Kind() == reflect.Struct {
			if err := applyEnv(field, key, lookup); err != nil {
				return err
			}
			continue
		}
		raw, ok := lookup(key)
		if !ok {
			continue
		}
		if err := setField(field, raw); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func setField(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		var parts []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		field.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
