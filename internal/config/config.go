package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"
	EnvPort         = "PORT"
	EnvOracleURL    = "ORACLE_URL"
	EnvOracleModel  = "ORACLE_MODEL"
	EnvBackendURL   = "BACKEND_URL"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// defaultPort is used when neither config nor environment set one.
const defaultPort = 8080

// LoadPort resolves the listen port from the environment or config file.
func LoadPort(configPath string) int {
	if raw := strings.TrimSpace(os.Getenv(EnvPort)); raw != "" {
		if port, errParse := strconv.Atoi(raw); errParse == nil && port > 0 && port < 65536 {
			return port
		}
	}

	// fileConfig maps the YAML field needed for the listen port.
	type fileConfig struct {
		Port int `yaml:"port"`
	}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil && cfg.Port > 0 && cfg.Port < 65536 {
			return cfg.Port
		}
	}
	return defaultPort
}

// OracleConfig holds the decision oracle endpoint settings.
type OracleConfig struct {
	BaseURL        string  `yaml:"base-url"`
	Model          string  `yaml:"model"`
	TimeoutSeconds float64 `yaml:"timeout-seconds"`
}

// Timeout returns the configured per-call deadline, or zero when unset.
func (c OracleConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// LoadOracleConfig loads oracle settings from the YAML config file with
// environment overrides.
func LoadOracleConfig(configPath string) OracleConfig {
	// fileConfig maps the YAML fields needed for oracle settings.
	type fileConfig struct {
		Oracle OracleConfig `yaml:"oracle"`
	}

	result := OracleConfig{
		BaseURL: "http://localhost:11434",
		Model:   "llama3.2:3b",
	}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			if base := strings.TrimSpace(cfg.Oracle.BaseURL); base != "" {
				result.BaseURL = base
			}
			if model := strings.TrimSpace(cfg.Oracle.Model); model != "" {
				result.Model = model
			}
			if cfg.Oracle.TimeoutSeconds > 0 {
				result.TimeoutSeconds = cfg.Oracle.TimeoutSeconds
			}
		}
	}

	if base := strings.TrimSpace(os.Getenv(EnvOracleURL)); base != "" {
		result.BaseURL = base
	}
	if model := strings.TrimSpace(os.Getenv(EnvOracleModel)); model != "" {
		result.Model = model
	}
	return result
}

// LoadBackendURL resolves the upstream base URL requests are proxied to.
// Empty means the gate answers admitted requests itself.
func LoadBackendURL(configPath string) string {
	if base := strings.TrimSpace(os.Getenv(EnvBackendURL)); base != "" {
		return strings.TrimRight(base, "/")
	}

	// fileConfig maps the YAML field needed for the backend URL.
	type fileConfig struct {
		BackendURL string `yaml:"backend-url"`
	}

	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		return ""
	}
	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(cfg.BackendURL), "/")
}

// TierSpec mirrors one tier entry in the YAML config file.
type TierSpec struct {
	Name          string  `yaml:"name"`
	BaselineRPS   float64 `yaml:"baseline-rps"`
	CapRPS        float64 `yaml:"cap-rps"`
	Burst         int     `yaml:"burst"`
	RevenueWeight float64 `yaml:"revenue-weight"`
}

// LoadTiers loads tier overrides from the YAML config file. An empty result
// means the built-in catalog applies.
func LoadTiers(configPath string) []TierSpec {
	// fileConfig maps the YAML field needed for tier overrides.
	type fileConfig struct {
		Tiers []TierSpec `yaml:"tiers"`
	}

	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		return nil
	}
	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return nil
	}

	out := make([]TierSpec, 0, len(cfg.Tiers))
	for _, t := range cfg.Tiers {
		if strings.TrimSpace(t.Name) == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

// LoadAPIKeys loads the API key to tier mapping from the YAML config file.
func LoadAPIKeys(configPath string) map[string]string {
	// fileConfig maps the YAML field needed for API key resolution.
	type fileConfig struct {
		APIKeys map[string]string `yaml:"api-keys"`
	}

	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		return nil
	}
	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return nil
	}

	out := make(map[string]string, len(cfg.APIKeys))
	for key, tierName := range cfg.APIKeys {
		key = strings.TrimSpace(key)
		tierName = strings.TrimSpace(tierName)
		if key == "" || tierName == "" {
			continue
		}
		out[key] = tierName
	}
	return out
}
