// Package config loads and validates the TOML configuration of the
// compression service.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ServerConfig configures one service process: the wire listener, the HTTP
// ops surface, and logging.
type ServerConfig struct {
	Name        string   `toml:"name"`
	Addr        string   `toml:"addr"`
	OpsAddr     string   `toml:"ops_addr"`
	CorsOrigins []string `toml:"cors_origins"`
	LogLevel    string   `toml:"log_level"`
}

// DefaultServerConfig is the configuration used when no file is given.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Name:     "stryd",
		Addr:     "127.0.0.1:4000",
		OpsAddr:  ":9100",
		LogLevel: "info",
	}
}

func LoadServerConfig(path string) (ServerConfig, error) {
	var cfg ServerConfig
	if err := loadToml(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "stryd"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:4000"
	}
	if cfg.OpsAddr == "" {
		cfg.OpsAddr = ":9100"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("server config missing name")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("server config missing addr")
	}
	if strings.TrimSpace(cfg.OpsAddr) == "" {
		return fmt.Errorf("server config missing ops_addr")
	}
	if cfg.Addr == cfg.OpsAddr {
		return fmt.Errorf("addr and ops_addr must differ")
	}
	return nil
}
