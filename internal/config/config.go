// Package config loads the YAML configuration file.
package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables overriding the file.
const (
	EnvURL      = "XWHEP_URL"
	EnvLogin    = "XWHEP_LOGIN"
	EnvPassword = "XWHEP_PASSWORD"
	EnvToken    = "XWHEP_TOKEN"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	XWHEP        XWHEPConfig        `yaml:"xwhep"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Database     DatabaseConfig     `yaml:"database"`
	API          APIConfig          `yaml:"api"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	PathPrefix string `yaml:"path_prefix"`
}

// XWHEPConfig locates the grid service and the credentials used on it.
// Token, when set, is exchanged for a session state at startup and replaces
// Login and Password.
type XWHEPConfig struct {
	URL               string  `yaml:"url"`
	Login             string  `yaml:"login"`
	Password          string  `yaml:"password"`
	Token             string  `yaml:"token"`
	InsecureTLS       bool    `yaml:"insecure_tls"`
	Timeout           string  `yaml:"timeout"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type OrchestratorConfig struct {
	PollInterval     string `yaml:"poll_interval"`
	DataPollInterval string `yaml:"data_poll_interval"`
	DataWaitTimeout  string `yaml:"data_wait_timeout"`
	RefreshTimeout   string `yaml:"refresh_timeout"`
	ResultDir        string `yaml:"result_dir"`
	StagingDir       string `yaml:"staging_dir"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type APIConfig struct {
	// TokenHash is the bcrypt hash of the X-API-Token clients must send.
	TokenHash     string `yaml:"token_hash"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
	// RateLimit and RateBurst bound requests per client IP.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func (c *XWHEPConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 60*time.Second)
}

func (c *OrchestratorConfig) GetPollInterval() time.Duration {
	return parseDuration(c.PollInterval, 10*time.Second)
}

func (c *OrchestratorConfig) GetDataPollInterval() time.Duration {
	return parseDuration(c.DataPollInterval, time.Second)
}

func (c *OrchestratorConfig) GetDataWaitTimeout() time.Duration {
	return parseDuration(c.DataWaitTimeout, 2*time.Minute)
}

func (c *OrchestratorConfig) GetRefreshTimeout() time.Duration {
	return parseDuration(c.RefreshTimeout, 2*time.Minute)
}

// Load reads path, applies environment overrides and defaults. A missing
// file is not an error: defaults and the environment are used alone.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	applyEnv(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvURL); v != "" {
		cfg.XWHEP.URL = v
	}
	if v := os.Getenv(EnvLogin); v != "" {
		cfg.XWHEP.Login = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		cfg.XWHEP.Password = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		cfg.XWHEP.Token = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.XWHEP.URL == "" {
		cfg.XWHEP.URL = "https://localhost:4430"
	}
	if cfg.XWHEP.Timeout == "" {
		cfg.XWHEP.Timeout = "60s"
	}
	if cfg.XWHEP.RequestsPerSecond == 0 {
		cfg.XWHEP.RequestsPerSecond = 20
	}
	if cfg.XWHEP.Burst == 0 {
		cfg.XWHEP.Burst = 10
	}
	if cfg.Orchestrator.PollInterval == "" {
		cfg.Orchestrator.PollInterval = "10s"
	}
	if cfg.Orchestrator.DataPollInterval == "" {
		cfg.Orchestrator.DataPollInterval = "1s"
	}
	if cfg.Orchestrator.DataWaitTimeout == "" {
		cfg.Orchestrator.DataWaitTimeout = "2m"
	}
	if cfg.Orchestrator.ResultDir == "" {
		cfg.Orchestrator.ResultDir = "./results"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/xwhep.db"
	}
	if cfg.API.MaxUploadSize == 0 {
		cfg.API.MaxUploadSize = 100 << 20
	}
	if cfg.API.RateLimit == 0 {
		cfg.API.RateLimit = 10
	}
	if cfg.API.RateBurst == 0 {
		cfg.API.RateBurst = 20
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}
