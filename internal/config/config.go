// Package config assembles the process configuration from a YAML file
// layered with environment-variable overrides. The core components never
// import this package; they receive plain structs or scalars carved out of
// it at startup, so every policy knob stays testable without a config file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Security  SecurityConfig  `yaml:"security"`
	SMS       SMSConfig       `yaml:"sms"`
	Login     LoginConfig     `yaml:"login"`
	Password  PasswordConfig  `yaml:"password"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
}

// ServerConfig contains the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Env  string `yaml:"env"`
}

// DatabaseConfig contains the relational store settings.
type DatabaseConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	Database         string `yaml:"database"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	PoolSize         int    `yaml:"pool_size"`
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms"`
	MaxRetries       int    `yaml:"max_retries"`
	RetryIntervalMs  int    `yaml:"retry_interval_ms"`
}

// RedisConfig contains the cache settings.
type RedisConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	PoolSize      int    `yaml:"pool_size"`
	DialTimeoutMs int    `yaml:"dial_timeout_ms"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
	WaitTimeoutMs int    `yaml:"wait_timeout_ms"`
}

// SecurityConfig contains the token-signing settings.
type SecurityConfig struct {
	JWTSecret              string `yaml:"jwt_secret"`
	JWTIssuer              string `yaml:"jwt_issuer"`
	AccessTokenTTLSeconds  int    `yaml:"access_token_ttl_seconds"`
	RefreshTokenTTLSeconds int    `yaml:"refresh_token_ttl_seconds"`
}

// SMSConfig contains the one-time-code settings.
type SMSConfig struct {
	CodeLen             int `yaml:"code_len"`
	CodeTTLSeconds      int `yaml:"code_ttl_seconds"`
	SendIntervalSeconds int `yaml:"send_interval_seconds"`
	MaxRetryCount       int `yaml:"max_retry_count"`
	RetryTTLSeconds     int `yaml:"retry_ttl_seconds"`
	LockSeconds         int `yaml:"lock_seconds"`
}

// LoginConfig contains the login-attempt limiter settings.
type LoginConfig struct {
	MaxFailedAttempts           int `yaml:"max_failed_attempts"`
	FailedAttemptsWindowSeconds int `yaml:"failed_attempts_window_seconds"`
	LockDurationSeconds         int `yaml:"lock_duration_seconds"`
	MaxSessionsPerUser          int `yaml:"max_sessions_per_user"`
}

// PasswordConfig contains the password policy.
type PasswordConfig struct {
	MinLength          int  `yaml:"min_length"`
	MaxLength          int  `yaml:"max_length"`
	RequireUppercase   bool `yaml:"require_uppercase"`
	RequireLowercase   bool `yaml:"require_lowercase"`
	RequireDigit       bool `yaml:"require_digit"`
	RequireSpecialChar bool `yaml:"require_special_char"`
}

// ZookeeperConfig contains the coordination-service settings.
type ZookeeperConfig struct {
	Hosts            []string `yaml:"hosts"`
	SessionTimeoutMs int      `yaml:"session_timeout_ms"`
	Enabled          bool     `yaml:"enabled"`
	RootPath         string   `yaml:"root_path"`
	ServiceName      string   `yaml:"service_name"`
	RegisterSelf     bool     `yaml:"register_self"`
	Weight           int      `yaml:"weight"`
}

// Load reads path, applies environment overrides, and validates. A missing
// file is not an error — defaults plus environment variables alone are a
// complete configuration for containerized deployments.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Env:  "development",
		},
		Database: DatabaseConfig{
			Host:             "localhost",
			Port:             5432,
			Database:         "authsvc",
			Username:         "authsvc",
			PoolSize:         8,
			ConnectTimeoutMs: 5000,
			MaxRetries:       3,
			RetryIntervalMs:  500,
		},
		Redis: RedisConfig{
			Host:          "localhost",
			Port:          6379,
			PoolSize:      8,
			DialTimeoutMs: 3000,
			ReadTimeoutMs: 3000,
			WaitTimeoutMs: 3000,
		},
		Security: SecurityConfig{
			JWTIssuer:              "authsvc",
			AccessTokenTTLSeconds:  900,
			RefreshTokenTTLSeconds: 7 * 24 * 3600,
		},
		SMS: SMSConfig{
			CodeLen:             6,
			CodeTTLSeconds:      300,
			SendIntervalSeconds: 60,
			MaxRetryCount:       5,
			RetryTTLSeconds:     300,
			LockSeconds:         1800,
		},
		Login: LoginConfig{
			MaxFailedAttempts:           5,
			FailedAttemptsWindowSeconds: 900,
			LockDurationSeconds:         1800,
			MaxSessionsPerUser:          10,
		},
		Password: PasswordConfig{
			MinLength:          8,
			MaxLength:          64,
			RequireUppercase:   true,
			RequireLowercase:   true,
			RequireDigit:       true,
			RequireSpecialChar: true,
		},
		Zookeeper: ZookeeperConfig{
			Hosts:            []string{"localhost:2181"},
			SessionTimeoutMs: 10000,
			RootPath:         "/services",
			ServiceName:      "user-service",
			RegisterSelf:     true,
			Weight:           100,
		},
	}
}

// applyEnvOverrides layers the deployment environment on top of the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Security.JWTSecret = v
	}
	if v := os.Getenv("ZK_HOSTS"); v != "" {
		cfg.Zookeeper.Hosts = strings.Split(v, ",")
	}
	if v := os.Getenv("ZK_SERVICE_NAME"); v != "" {
		cfg.Zookeeper.ServiceName = v
	}
	if v := os.Getenv("ZK_ENABLED"); v != "" {
		cfg.Zookeeper.Enabled = parseBool(v, cfg.Zookeeper.Enabled)
	}
	if v := os.Getenv("ZK_REGISTER_SELF"); v != "" {
		cfg.Zookeeper.RegisterSelf = parseBool(v, cfg.Zookeeper.RegisterSelf)
	}
	if v := os.Getenv("ZK_WEIGHT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Zookeeper.Weight = n
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Server.Env = v
	}
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}

// Validate checks the configuration for errors that would only surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Database.PoolSize < 1 {
		errs = append(errs, "database.pool_size must be at least 1")
	}
	if c.Security.JWTSecret == "" {
		errs = append(errs, "security.jwt_secret is required (set JWT_SECRET)")
	} else if len(c.Security.JWTSecret) < 32 {
		errs = append(errs, "security.jwt_secret must be at least 32 bytes")
	}
	if c.SMS.CodeLen < 4 || c.SMS.CodeLen > 10 {
		errs = append(errs, "sms.code_len must be between 4 and 10")
	}
	if c.SMS.CodeTTLSeconds < 1 {
		errs = append(errs, "sms.code_ttl_seconds must be positive")
	}
	if c.Login.MaxFailedAttempts < 1 {
		errs = append(errs, "login.max_failed_attempts must be at least 1")
	}
	if c.Zookeeper.Enabled && len(c.Zookeeper.Hosts) == 0 {
		errs = append(errs, "zookeeper.hosts is required when zookeeper.enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DSN builds the Postgres connection string for the database block.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?connect_timeout=%d",
		c.Database.Username, c.Database.Password,
		c.Database.Host, c.Database.Port, c.Database.Database,
		c.Database.ConnectTimeoutMs/1000)
}

// RedisAddr returns "host:port" for the redis block.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// AccessTokenTTL returns the access-token lifetime as a Duration.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.Security.AccessTokenTTLSeconds) * time.Second
}

// RefreshTokenTTL returns the refresh-token lifetime as a Duration.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.Security.RefreshTokenTTLSeconds) * time.Second
}

// ZKSessionTimeout returns the coordination session timeout as a Duration.
func (c *Config) ZKSessionTimeout() time.Duration {
	return time.Duration(c.Zookeeper.SessionTimeoutMs) * time.Millisecond
}
