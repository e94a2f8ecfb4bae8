// Package config provides configuration management for the Raworc control plane.
// It supports loading configuration from environment variables, a config file, and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for Raworc.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Docker    DockerConfig    `mapstructure:"docker"`
	HostAgent HostAgentConfig `mapstructure:"hostAgent"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Session   SessionConfig   `mapstructure:"session"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // seconds
}

// DatabaseConfig holds the Postgres connection configuration.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int    `mapstructure:"maxConns"`
	MinConns int    `mapstructure:"minConns"`
}

// NATSConfig holds NATS messaging configuration. An empty URL falls back
// to an in-memory event bus.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// DockerConfig holds container-engine client configuration.
type DockerConfig struct {
	Host       string `mapstructure:"host"`
	APIVersion string `mapstructure:"apiVersion"`
	TLSVerify  bool   `mapstructure:"tlsVerify"`
}

// HostAgentConfig holds the per-session container's resource limits and
// network/image defaults, per the in-container agent contract (spec §4.3).
type HostAgentConfig struct {
	Image       string  `mapstructure:"image"`
	CPULimit    float64 `mapstructure:"cpuLimit"`    // CPUs, e.g. 1.5
	MemoryLimit int64   `mapstructure:"memoryLimit"` // bytes
	DiskLimit   int64   `mapstructure:"diskLimit"`   // bytes, informational
	Network     string  `mapstructure:"network"`
	VolumesPath string  `mapstructure:"volumesPath"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwtSecret"`
	TokenDuration int    `mapstructure:"tokenDuration"` // seconds
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// SessionConfig holds session-lifecycle tuning knobs.
type SessionConfig struct {
	DefaultWaitingTimeoutSeconds int `mapstructure:"defaultWaitingTimeoutSeconds"`
	StopGraceSeconds             int `mapstructure:"stopGraceSeconds"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// TokenDurationTime returns the token duration as a time.Duration.
func (a *AuthConfig) TokenDurationTime() time.Duration {
	return time.Duration(a.TokenDuration) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	v.SetDefault("database.maxConns", 25)
	v.SetDefault("database.minConns", 5)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "raworc")
	v.SetDefault("nats.maxReconnects", 10)

	v.SetDefault("docker.host", "unix:///var/run/docker.sock")
	v.SetDefault("docker.apiVersion", "1.41")
	v.SetDefault("docker.tlsVerify", false)

	v.SetDefault("hostAgent.image", "raworc/session-agent:latest")
	v.SetDefault("hostAgent.cpuLimit", 1.0)
	v.SetDefault("hostAgent.memoryLimit", int64(1024*1024*1024))
	v.SetDefault("hostAgent.diskLimit", int64(5*1024*1024*1024))
	v.SetDefault("hostAgent.network", "")
	v.SetDefault("hostAgent.volumesPath", "/var/lib/raworc/volumes")

	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.tokenDuration", 24*3600)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")

	v.SetDefault("session.defaultWaitingTimeoutSeconds", 300)
	v.SetDefault("session.stopGraceSeconds", 10)
}

// Load reads configuration from environment variables, an optional config
// file, and defaults. The environment variable names below match spec §6
// exactly and take precedence over the nested RAWORC_ prefix convention.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RAWORC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind the literal environment variable names named in spec §6, which
	// don't follow the nested RAWORC_<SECTION>_<KEY> convention.
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("auth.jwtSecret", "JWT_SECRET")
	_ = v.BindEnv("server.host", "RAWORC_HOST")
	_ = v.BindEnv("server.port", "RAWORC_PORT")
	_ = v.BindEnv("hostAgent.image", "HOST_AGENT_IMAGE")
	_ = v.BindEnv("hostAgent.cpuLimit", "HOST_AGENT_CPU_LIMIT")
	_ = v.BindEnv("hostAgent.memoryLimit", "HOST_AGENT_MEMORY_LIMIT")
	_ = v.BindEnv("hostAgent.diskLimit", "HOST_AGENT_DISK_LIMIT")
	_ = v.BindEnv("hostAgent.network", "HOST_AGENT_NETWORK")
	_ = v.BindEnv("hostAgent.volumesPath", "HOST_AGENT_VOLUMES_PATH")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/raworc/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if cfg.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if cfg.Auth.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	}
	if cfg.Auth.TokenDuration <= 0 {
		errs = append(errs, "auth.tokenDuration must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "console": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, console, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
