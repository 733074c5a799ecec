// Package config loads server configuration from an optional .env file, an
// optional YAML file and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the API server configuration.
type Config struct {
	// Server settings
	HTTPPort int `yaml:"http_port"`
	GRPCPort int `yaml:"grpc_port"`

	// Storage
	DatabaseURL string `yaml:"database_url"`
	MongoURI    string `yaml:"mongodb_uri"`
	RedisURL    string `yaml:"redis_url"`

	// Auth
	JWTSecret    string            `yaml:"jwt_secret"`
	JWTKeys      map[string]string `yaml:"jwt_keys"`
	JWTActiveKID string            `yaml:"jwt_active_kid"`
	TokenTTL     time.Duration     `yaml:"token_ttl"`
	RateLimitRPM int               `yaml:"rate_limit_rpm"`

	// External identity provider
	Identity struct {
		URL        string `yaml:"url"`
		PublicKey  string `yaml:"public_key"`
		ServiceKey string `yaml:"service_key"`
	} `yaml:"identity"`

	// gRPC transport security
	TLSCert    string `yaml:"tls_cert"`
	TLSKey     string `yaml:"tls_key"`
	RequireTLS bool   `yaml:"require_tls"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // text|json
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		HTTPPort:     8080,
		GRPCPort:     50051,
		DatabaseURL:  "file:hubfreelance.db?cache=shared&mode=rwc",
		TokenTTL:     24 * time.Hour,
		RateLimitRPM: 10,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// Load builds the configuration. A missing .env file is not an error; a
// CONFIG_FILE that cannot be read or parsed is.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = getEnvInt("GRPC_PORT", cfg.GRPCPort)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.MongoURI = getEnv("MONGODB_URI", cfg.MongoURI)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTActiveKID = getEnv("JWT_ACTIVE_KID", cfg.JWTActiveKID)
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", cfg.TokenTTL)
	cfg.RateLimitRPM = getEnvInt("RATE_LIMIT_RPM", cfg.RateLimitRPM)
	cfg.Identity.URL = getEnv("IDENTITY_URL", cfg.Identity.URL)
	cfg.Identity.PublicKey = getEnv("IDENTITY_PUBLIC_KEY", cfg.Identity.PublicKey)
	cfg.Identity.ServiceKey = getEnv("IDENTITY_SERVICE_KEY", cfg.Identity.ServiceKey)
	cfg.TLSCert = getEnv("TLS_CERT", cfg.TLSCert)
	cfg.TLSKey = getEnv("TLS_KEY", cfg.TLSKey)
	cfg.RequireTLS = getEnv("REQUIRE_TLS", strconv.FormatBool(cfg.RequireTLS)) == "true"
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	if v := os.Getenv("JWT_KEYS"); v != "" {
		keys, err := ParseJWTKeys(v)
		if err != nil {
			return err
		}
		cfg.JWTKeys = keys
	}
	return nil
}

// ParseJWTKeys parses "kid:secret,kid2:secret2".
func ParseJWTKeys(s string) (map[string]string, error) {
	keys := map[string]string{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kid, secret, ok := strings.Cut(p, ":")
		if !ok || kid == "" || secret == "" {
			return nil, fmt.Errorf("invalid JWT_KEYS entry: %s", p)
		}
		keys[kid] = secret
	}
	return keys, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" && len(c.JWTKeys) == 0 {
		return errors.New("either JWT_SECRET or JWT_KEYS must be set")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL must be set")
	}
	if c.RequireTLS && (c.TLSCert == "" || c.TLSKey == "") {
		return errors.New("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	return nil
}

// SigningKeys returns the JWT key set and the active kid. A lone
// JWT_SECRET becomes a single-key set.
func (c *Config) SigningKeys() (map[string]string, string) {
	if len(c.JWTKeys) > 0 {
		return c.JWTKeys, c.JWTActiveKID
	}
	return map[string]string{"default": c.JWTSecret}, "default"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
