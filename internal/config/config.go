package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	NodeODM    NodeODMConfig    `koanf:"nodeodm"`
	Cache      CacheConfig      `koanf:"cache"`
	PointCloud PointCloudConfig `koanf:"pointcloud"`
	Logging    LoggingConfig    `koanf:"logging"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type NodeODMConfig struct {
	URL     string `koanf:"url"`
	Timeout string `koanf:"timeout"`
}

type CacheConfig struct {
	Dir string `koanf:"dir"`
	TTL string `koanf:"ttl"`
}

type PointCloudConfig struct {
	MaxPoints     int `koanf:"max_points"`
	DefaultPoints int `koanf:"default_points"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load reads config from TOML file (if provided) then overlays env vars.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	// 2. Load TOML config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, err
		}
	}

	// 3. Load env vars: ODM_SERVER_PORT -> server.port
	// Only set env vars that have non-empty values to avoid overriding TOML config.
	if err := k.Load(env.ProviderWithValue("ODM_", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		mapped := strings.Replace(
			strings.ToLower(strings.TrimPrefix(key, "ODM_")),
			"_", ".", -1,
		)
		return mapped, value
	}), nil); err != nil {
		return nil, err
	}

	// 4. Handle top-level convenience env vars
	if v := os.Getenv("NODEODM_URL"); v != "" {
		k.Set("nodeodm.url", v)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = os.TempDir()
	}

	return &cfg, nil
}

// CacheTTL returns the parsed cache TTL, falling back to one hour.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// NodeODMTimeout returns the remote client timeout; zero means the
// http.Client default.
func (c *Config) NodeODMTimeout() time.Duration {
	d, err := time.ParseDuration(c.NodeODM.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
