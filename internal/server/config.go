package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	ListenAddr string              `json:"listen_addr" yaml:"listen_addr"`
	Database   DatabaseConfig      `json:"database" yaml:"database"`
	Auth       AuthConfig          `json:"auth" yaml:"auth"`
	Security   SecurityConfig      `json:"security" yaml:"security"`
	Targets    []TargetConfig      `json:"targets" yaml:"targets"`
	Runs       RunLimitConfig      `json:"runs" yaml:"runs"`
	Observer   ObservabilityConfig `json:"observability" yaml:"observability"`
	Limits     QuickCheckLimits    `json:"limits" yaml:"limits"`
}

type DatabaseConfig struct {
	DSN            string `json:"dsn" yaml:"dsn"`
	MaxConns       int32  `json:"max_conns" yaml:"max_conns"`
	MigrationsPath string `json:"migrations_path" yaml:"migrations_path"`
}

type AuthConfig struct {
	SessionTTL string `json:"session_ttl" yaml:"session_ttl"`
	CookieName string `json:"cookie_name" yaml:"cookie_name"`
}

type SecurityConfig struct {
	AdminToken string `json:"admin_token" yaml:"admin_token"`
}

// TargetConfig describes one application whose authentication state the
// service verifies.
type TargetConfig struct {
	Name             string `json:"name" yaml:"name"`
	BaseURL          string `json:"base_url" yaml:"base_url"`
	SessionPath      string `json:"session_path" yaml:"session_path"`
	ProtectedPath    string `json:"protected_path" yaml:"protected_path"`
	CookieName       string `json:"cookie_name" yaml:"cookie_name"`
	StorageStatePath string `json:"storage_state_path" yaml:"storage_state_path"`
	// MaxConcurrentRuns and RPM bound how hard the service may lean on this
	// target; verification must never amplify load on a struggling server.
	MaxConcurrentRuns int `json:"max_concurrent_runs" yaml:"max_concurrent_runs"`
	RPM               int `json:"rpm" yaml:"rpm"`
}

type RunLimitConfig struct {
	DefaultTimeoutSec int `json:"default_timeout_sec" yaml:"default_timeout_sec"`
	MaxParallelRuns   int `json:"max_parallel_runs" yaml:"max_parallel_runs"`
}

type ObservabilityConfig struct {
	OTLPEndpoint string  `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	ServiceName  string  `json:"service_name" yaml:"service_name"`
	SampleRatio  float64 `json:"sample_ratio" yaml:"sample_ratio"`
}

type QuickCheckLimits struct {
	QuickCheckRPM int `json:"quick_check_rpm" yaml:"quick_check_rpm"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr: ":8080",
		Database: DatabaseConfig{
			MaxConns:       10,
			MigrationsPath: "./migrations",
		},
		Auth: AuthConfig{
			SessionTTL: "8h",
			CookieName: "authwatch_session",
		},
		Runs: RunLimitConfig{
			DefaultTimeoutSec: 120,
			MaxParallelRuns:   2,
		},
		Observer: ObservabilityConfig{
			ServiceName: "authwatch-api",
			SampleRatio: 1,
		},
		Limits: QuickCheckLimits{
			QuickCheckRPM: 6,
		},
	}
}

func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse json config: %w", err)
		}
	default:
		var yamlErr error
		if yamlErr = yaml.Unmarshal(data, &cfg); yamlErr == nil {
			break
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.New("config format not recognized (expected yaml/json)")
		}
	}
	normalizeConfig(&cfg)
	return cfg, nil
}

func normalizeConfig(cfg *ServerConfig) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if strings.TrimSpace(cfg.Database.MigrationsPath) == "" {
		cfg.Database.MigrationsPath = "./migrations"
	}
	if strings.TrimSpace(cfg.Auth.CookieName) == "" {
		cfg.Auth.CookieName = "authwatch_session"
	}
	if strings.TrimSpace(cfg.Auth.SessionTTL) == "" {
		cfg.Auth.SessionTTL = "8h"
	}
	if cfg.Runs.DefaultTimeoutSec <= 0 {
		cfg.Runs.DefaultTimeoutSec = 120
	}
	if cfg.Runs.MaxParallelRuns <= 0 {
		cfg.Runs.MaxParallelRuns = 2
	}
	if cfg.Observer.SampleRatio <= 0 || cfg.Observer.SampleRatio > 1 {
		cfg.Observer.SampleRatio = 1
	}
	if strings.TrimSpace(cfg.Observer.ServiceName) == "" {
		cfg.Observer.ServiceName = "authwatch-api"
	}
	if cfg.Limits.QuickCheckRPM <= 0 {
		cfg.Limits.QuickCheckRPM = 6
	}
	for i := range cfg.Targets {
		target := &cfg.Targets[i]
		target.Name = strings.ToLower(strings.TrimSpace(target.Name))
		if target.MaxConcurrentRuns <= 0 {
			target.MaxConcurrentRuns = 1
		}
		if target.RPM <= 0 {
			target.RPM = 12
		}
	}
}

// FindTarget resolves a configured target by its lowercase name.
func (c ServerConfig) FindTarget(name string) (TargetConfig, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, target := range c.Targets {
		if target.Name == needle {
			return target, true
		}
	}
	return TargetConfig{}, false
}
