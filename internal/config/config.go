package config

import "time"

// Config is the root configuration for Taskmux.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Database DatabaseConfig `yaml:"database"`
	Tracker  TrackerConfig  `yaml:"tracker"`
}

type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`
	AuthToken string `yaml:"auth_token"`
}

// UpstreamConfig points at the agent runtime whose tasks are tracked.
// When base_url is empty the built-in loopback runtime is used.
type UpstreamConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Token        string        `yaml:"token"`
	ReconnectMin time.Duration `yaml:"reconnect_min"`
	ReconnectMax time.Duration `yaml:"reconnect_max"`
}

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type TrackerConfig struct {
	// MaxFinished caps how many terminal tasks stay in memory.
	// 0 keeps everything; finished tasks are still archived either way.
	MaxFinished int `yaml:"max_finished"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     8430,
			LogLevel: "info",
		},
		Upstream: UpstreamConfig{
			ReconnectMin: 1 * time.Second,
			ReconnectMax: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:          "~/.config/taskmux/taskmux.db",
			RetentionDays: 90,
		},
		Tracker: TrackerConfig{
			MaxFinished: 500,
		},
	}
}
